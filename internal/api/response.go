package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/guarzo/listforge/internal/model"
)

// Response is the envelope of every API answer
type Response struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
	RequestID string     `json:"requestId,omitempty"`
}

// ErrorInfo describes a failed request
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	CodeBadRequest        = "ERR_BAD_REQUEST"
	CodeConfiguration     = "ERR_CONFIGURATION"
	CodeNotAuthenticated  = "ERR_NOT_AUTHENTICATED"
	CodeAuthExchange      = "ERR_AUTH_EXCHANGE"
	CodeUnsupported       = "ERR_UNSUPPORTED_MARKETPLACE"
	CodeNoProgrammaticAPI = "ERR_NO_PROGRAMMATIC_PUBLISH"
	CodeNotFound          = "ERR_NOT_FOUND"
	CodeInvalidTransition = "ERR_INVALID_TRANSITION"
	CodeInternal          = "ERR_INTERNAL"
)

// statusFor maps an error kind to its HTTP status and code
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrConfiguration):
		return http.StatusServiceUnavailable, CodeConfiguration
	case errors.Is(err, model.ErrNotAuthenticated), errors.Is(err, model.ErrAuthRefresh):
		return http.StatusUnauthorized, CodeNotAuthenticated
	case errors.Is(err, model.ErrAuthExchange):
		return http.StatusBadRequest, CodeAuthExchange
	case errors.Is(err, model.ErrUnsupportedMarketplace):
		return http.StatusBadRequest, CodeUnsupported
	case errors.Is(err, model.ErrNoProgrammaticPublish):
		return http.StatusUnprocessableEntity, CodeNoProgrammaticAPI
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, model.ErrInvalidTransition):
		return http.StatusConflict, CodeInvalidTransition
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, Response{Success: true, Data: data, RequestID: c.GetString(RequestIDKey)})
}

func fail(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, Response{
		Error:     &ErrorInfo{Code: code, Message: message},
		RequestID: c.GetString(RequestIDKey),
	})
}

func badRequest(c *gin.Context, message string) {
	fail(c, http.StatusBadRequest, CodeBadRequest, message)
}

// failWith reports err with the status of its kind. Internal errors are logged
// and their detail is not echoed to the caller.
func (s *Server) failWith(c *gin.Context, err error) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		s.requestLogger(c).Error("request failed", zap.Error(err))
		fail(c, status, code, "internal error")
		return
	}
	fail(c, status, code, err.Error())
}
