package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "casei/internal/errors"
	"casei/internal/logger"
	"casei/internal/pagination"
)

// Response is the envelope every API response is wrapped in.
type Response struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Data    interface{}      `json:"data"`
	Code    string           `json:"code,omitempty"`
	Meta    *pagination.Meta `json:"meta,omitempty"`
}

// ErrorResponse documents the envelope of a failed request.
type ErrorResponse struct {
	Success bool   `json:"success" example:"false"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// DetailResponse is returned by authentication and permission checks.
type DetailResponse struct {
	Detail string `json:"detail"`
}

// respond writes a successful envelope.
func respond(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, Response{Success: true, Message: message, Data: data})
}

// respondPage writes one page of items with its pagination metadata.
func respondPage[T any](c *gin.Context, page *pagination.Page[T]) {
	c.JSON(http.StatusOK, Response{Success: true, Data: page.Data, Meta: &page.Meta})
}

// getUserID extracts the authenticated user ID from the Gin context.
// Returns ErrUnauthorized if not present.
func getUserID(c *gin.Context) (string, error) {
	userID := c.GetString("userID")
	if userID == "" {
		return "", apperrors.ErrUnauthorized
	}
	return userID, nil
}

// parsePathID reads a UUID path parameter.
// Returns ErrInvalidInput if the parameter is not a UUID.
func parsePathID(c *gin.Context, param string) (string, error) {
	raw := c.Param(param)
	if _, err := uuid.Parse(raw); err != nil {
		return "", apperrors.Newf(apperrors.ErrInvalidInput, "Invalid %s", param)
	}
	return raw, nil
}

// respondWithError writes the failure envelope for err. Errors that are not
// AppErrors, and AppErrors carrying a cause, are logged before the generic
// response goes out.
func respondWithError(c *gin.Context, err error) {
	appErr, known := apperrors.Resolve(err)
	if !known || appErr.Internal != nil {
		logger.Get().Errorw("request failed",
			"code", appErr.Code,
			"error", appErr.Internal,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		)
	}
	c.JSON(appErr.StatusCode, Response{Message: appErr.Message, Code: appErr.Code})
}

// bindError converts a binding failure into an INVALID_INPUT error.
func bindError(err error) error {
	return apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
}
