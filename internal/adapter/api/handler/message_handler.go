package handler

import (
	"github.com/labstack/echo/v4"

	"holachat/internal/domain/entity"
	"holachat/internal/usecase"
	"holachat/pkg/response"
	"holachat/pkg/utils"
)

type MessageHandler struct {
	relayUseCase *usecase.RelayUseCase
}

func NewMessageHandler(relayUseCase *usecase.RelayUseCase) *MessageHandler {
	return &MessageHandler{
		relayUseCase: relayUseCase,
	}
}

type sendMessageRequest struct {
	ReceiverID entity.UserRef `json:"receiver_id" validate:"required,notblank"`
	Content    string         `json:"content" validate:"required,notblank,max=4000"`
}

type usersByIDsRequest struct {
	IDs []entity.UserRef `json:"ids" validate:"required,max=500,dive,required"`
}

// ListPartners returns the ids the caller has exchanged messages with.
func (h *MessageHandler) ListPartners(c echo.Context) error {
	userID := c.Get("uid").(string)

	partners, err := h.relayUseCase.ListPartners(c.Request().Context(), userID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, partners)
}

func (h *MessageHandler) GetUsersByIDs(c echo.Context) error {
	var req usersByIDsRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	ids := make([]string, 0, len(req.IDs))
	for _, id := range req.IDs {
		ids = append(ids, string(id))
	}

	users, err := h.relayUseCase.GetUsersByIDs(c.Request().Context(), ids)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, users)
}

// GetConversation returns the messages between the caller and :id, oldest
// first. limit and page are optional.
func (h *MessageHandler) GetConversation(c echo.Context) error {
	userID := c.Get("uid").(string)
	counterpartID := c.Param("id")

	pagination := utils.GetPaginationParams(c, 0)

	messages, err := h.relayUseCase.GetConversation(c.Request().Context(), userID, counterpartID, pagination.PageSize, pagination.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, messages)
}

func (h *MessageHandler) SendMessage(c echo.Context) error {
	userID := c.Get("uid").(string)

	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	message, err := h.relayUseCase.SendMessage(c.Request().Context(), userID, usecase.SendMessageInput{
		ReceiverID: string(req.ReceiverID),
		Content:    req.Content,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, message)
}
