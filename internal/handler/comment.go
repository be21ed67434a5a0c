package handler

import (
	"context"
	"net/http"

	dbmodels "github.com/uptube/content-ingestion-go/internal/db/models"
	"github.com/uptube/content-ingestion-go/internal/middleware"
	"github.com/uptube/content-ingestion-go/internal/models"
	"github.com/uptube/content-ingestion-go/internal/service"
	"github.com/uptube/content-ingestion-go/internal/validation"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Commenter creates comments and removes whole threads.
type Commenter interface {
	Create(ctx context.Context, req service.NewCommentRequest) (*dbmodels.Comment, error)
	DeleteThread(ctx context.Context, id uuid.UUID) (int, error)
}

// CommentHandler serves the /comments routes.
type CommentHandler struct {
	comments Commenter
	logger   *zap.Logger
}

// NewCommentHandler creates a CommentHandler.
func NewCommentHandler(comments Commenter, logger *zap.Logger) *CommentHandler {
	return &CommentHandler{comments: comments, logger: logger}
}

// Create handles POST /comments.
func (h *CommentHandler) Create(c *gin.Context) {
	var body models.CommentRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request payload: "+err.Error())
		return
	}

	owner, _ := middleware.ActorID(c)
	req := service.NewCommentRequest{OwnerID: owner, Body: body.Body}
	var err error
	if req.ContentID, err = optionalID("content_id", body.ContentID); err != nil {
		handleError(c, h.logger, err)
		return
	}
	if req.ParentID, err = optionalID("parent_id", body.ParentID); err != nil {
		handleError(c, h.logger, err)
		return
	}

	comment, err := h.comments.Create(c.Request.Context(), req)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// Delete handles DELETE /comments/:id, removing the comment and every reply
// beneath it.
func (h *CommentHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	n, err := h.comments.DeleteThread(context.WithoutCancel(c.Request.Context()), id)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, models.DeleteThreadResponse{ID: id, Deleted: n})
}

func optionalID(field string, raw *string) (*uuid.UUID, error) {
	if raw == nil {
		return nil, nil
	}
	id, err := validation.ParseID(field, *raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
