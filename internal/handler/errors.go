// Package handler exposes the orchestrators over HTTP.
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/uptube/content-ingestion-go/internal/models"
	"github.com/uptube/content-ingestion-go/internal/service"
	"github.com/uptube/content-ingestion-go/internal/validation"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var kindStatus = map[service.Kind]int{
	service.KindValidation:         http.StatusBadRequest,
	service.KindConflict:           http.StatusConflict,
	service.KindNotFound:           http.StatusNotFound,
	service.KindUpstream:           http.StatusBadGateway,
	service.KindTransactionAborted: http.StatusInternalServerError,
	service.KindIO:                 http.StatusInternalServerError,
}

func respond(c *gin.Context, status int, message string, details map[string]any) {
	c.JSON(status, models.ErrorResponse{
		Status:    status,
		Error:     http.StatusText(status),
		Message:   message,
		Details:   details,
		Timestamp: time.Now(),
		Path:      c.Request.URL.Path,
	})
}

func badRequest(c *gin.Context, message string) {
	respond(c, http.StatusBadRequest, message, nil)
}

// handleError writes the envelope for err. Internal causes are logged, not
// returned to the client.
func handleError(c *gin.Context, logger *zap.Logger, err error) {
	_ = c.Error(err)

	var fe *validation.FieldError
	if errors.As(err, &fe) {
		respond(c, http.StatusBadRequest, fe.Error(), map[string]any{"field": fe.Field})
		return
	}

	var se *service.Error
	if !errors.As(err, &se) {
		logger.Error("unexpected error", zap.Error(err), zap.String("path", c.Request.URL.Path))
		respond(c, http.StatusInternalServerError, "an unexpected error occurred", nil)
		return
	}

	status, ok := kindStatus[se.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("kind", string(se.Kind)),
			zap.Error(err),
			zap.String("path", c.Request.URL.Path),
		)
	}
	respond(c, status, se.Message, se.Details)
}
