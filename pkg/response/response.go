package response

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	apperrors "holachat/pkg/errors"
)

// ErrorResponse is the body of every non-2xx reply. Message is duplicated at
// the top level because clients read either shape.
type ErrorResponse struct {
	Success   bool       `json:"success"`
	Message   string     `json:"message"`
	Error     *ErrorInfo `json:"error"`
	Timestamp string     `json:"timestamp"`
}

type ErrorInfo struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// Success writes data as the bare JSON body. The messaging contract returns
// arrays and records directly, without an envelope.
func Success(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, data)
}

func Created(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusCreated, data)
}

func Error(c echo.Context, err error) error {
	var validationErr validator.ValidationErrors
	if errors.As(err, &validationErr) {
		return handleValidationError(c, validationErr)
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return write(c, appErr.Status, appErr.Code, appErr.Message)
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		msg, ok := httpErr.Message.(string)
		if !ok {
			msg = http.StatusText(httpErr.Code)
		}
		return write(c, httpErr.Code, codeForStatus(httpErr.Code), msg)
	}

	return write(c, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred")
}

// ErrorHandler adapts Error to echo's HTTPErrorHandler so middleware
// failures use the same body.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	_ = Error(c, err)
}

func handleValidationError(c echo.Context, validationErr validator.ValidationErrors) error {
	for _, err := range validationErr {
		field := strings.ToLower(err.Field())
		param := err.Param()

		var message string
		switch err.Tag() {
		case "required":
			message = field + " is required"
		case "min":
			message = field + " must be at least " + param
		case "max":
			message = field + " must be at most " + param
		case "notblank":
			message = field + " must not be blank"
		default:
			message = field + " is invalid"
		}

		return write(c, http.StatusBadRequest, "VALIDATION_ERROR", message)
	}

	return write(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid input data")
}

func write(c echo.Context, status int, code, message string) error {
	return c.JSON(status, ErrorResponse{
		Success:   false,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	})
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusTooManyRequests:
		return "TOO_MANY_REQUESTS"
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	default:
		return "INTERNAL_ERROR"
	}
}
