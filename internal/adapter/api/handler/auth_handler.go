package handler

import (
	"github.com/labstack/echo/v4"

	"holachat/internal/domain/entity"
	"holachat/internal/usecase"
	"holachat/pkg/response"
)

type AuthHandler struct {
	authUseCase *usecase.AuthUseCase
}

func NewAuthHandler(authUseCase *usecase.AuthUseCase) *AuthHandler {
	return &AuthHandler{
		authUseCase: authUseCase,
	}
}

type loginRequest struct {
	ID       entity.UserRef `json:"id" validate:"required,notblank"`
	Password string         `json:"password" validate:"required"`
}

// Login returns the session blob the client stores as-is.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	session, err := h.authUseCase.Login(c.Request().Context(), string(req.ID), req.Password)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, session)
}
