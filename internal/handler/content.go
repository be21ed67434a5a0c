package handler

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"

	dbmodels "github.com/uptube/content-ingestion-go/internal/db/models"
	"github.com/uptube/content-ingestion-go/internal/middleware"
	"github.com/uptube/content-ingestion-go/internal/models"
	"github.com/uptube/content-ingestion-go/internal/service"
	"github.com/uptube/content-ingestion-go/internal/validation"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// multipartOverhead covers the text fields and part headers of an upload.
const multipartOverhead = 1 << 20

// Uploader runs the upload saga.
type Uploader interface {
	Upload(ctx context.Context, req service.UploadRequest) (*dbmodels.ContentItem, error)
}

// Deleter runs the delete saga.
type Deleter interface {
	Delete(ctx context.Context, id uuid.UUID) (*dbmodels.ContentItem, error)
}

// ContentManager covers the remaining content operations.
type ContentManager interface {
	Get(ctx context.Context, id uuid.UUID) (*dbmodels.ContentItem, error)
	Copy(ctx context.Context, id, ownerID uuid.UUID) (*dbmodels.ContentItem, error)
	IncrementViews(ctx context.Context, id uuid.UUID) (int64, error)
	UpdateDetails(ctx context.Context, id uuid.UUID, req service.UpdateRequest) (*dbmodels.ContentItem, error)
	AttachAds(ctx context.Context, id uuid.UUID, adIDs []uuid.UUID) (*dbmodels.ContentItem, error)
	DetachAds(ctx context.Context, id uuid.UUID, adIDs []uuid.UUID) (*dbmodels.ContentItem, error)
}

// ContentHandler serves the /content routes.
type ContentHandler struct {
	uploader  Uploader
	deleter   Deleter
	content   ContentManager
	validator *validation.Validator
	tempDir   string
	maxSize   int64
	logger    *zap.Logger
}

// NewContentHandler creates a ContentHandler. Uploaded parts are staged in
// tempDir and handed to the orchestrators, which remove them.
func NewContentHandler(
	uploader Uploader,
	deleter Deleter,
	content ContentManager,
	tempDir string,
	maxSize int64,
	logger *zap.Logger,
) *ContentHandler {
	return &ContentHandler{
		uploader:  uploader,
		deleter:   deleter,
		content:   content,
		validator: validation.New(maxSize),
		tempDir:   tempDir,
		maxSize:   maxSize,
		logger:    logger,
	}
}

// Upload handles POST /content.
func (h *ContentHandler) Upload(c *gin.Context) {
	h.limitBody(c)

	kind, err := validation.ParseKind(c.PostForm("kind"))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	published, err := validation.ParseBool("published", c.PostForm("published"))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}

	mediaPath, ok := h.stage(c, "media", dbmodels.ResourceVideo)
	if !ok {
		return
	}
	thumbPath, ok := h.stage(c, "thumbnail", dbmodels.ResourceImage)
	if !ok {
		removeStaged(mediaPath)
		return
	}

	owner, _ := middleware.ActorID(c)
	req := service.UploadRequest{
		OwnerID:       owner,
		Title:         c.PostForm("title"),
		Description:   c.PostForm("description"),
		Kind:          kind,
		Published:     published != nil && *published,
		MediaPath:     mediaPath,
		ThumbnailPath: thumbPath,
	}

	item, err := h.uploader.Upload(context.WithoutCancel(c.Request.Context()), req)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// Get handles GET /content/:id.
func (h *ContentHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	item, err := h.content.Get(c.Request.Context(), id)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// Delete handles DELETE /content/:id.
func (h *ContentHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	item, err := h.deleter.Delete(context.WithoutCancel(c.Request.Context()), id)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// Update handles PATCH /content/:id. Only the fields present in the form
// are changed.
func (h *ContentHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	h.limitBody(c)

	var req service.UpdateRequest
	if v, present := c.GetPostForm("title"); present {
		req.Title = &v
	}
	if v, present := c.GetPostForm("description"); present {
		req.Description = &v
	}
	published, err := validation.ParseBool("published", c.PostForm("published"))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	req.Published = published

	if req.ThumbnailPath, ok = h.stage(c, "thumbnail", dbmodels.ResourceImage); !ok {
		return
	}

	item, err := h.content.UpdateDetails(context.WithoutCancel(c.Request.Context()), id, req)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// Copy handles POST /content/:id/copy. The copy belongs to the caller.
func (h *ContentHandler) Copy(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	owner, _ := middleware.ActorID(c)
	item, err := h.content.Copy(context.WithoutCancel(c.Request.Context()), id, owner)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// View handles POST /content/:id/views.
func (h *ContentHandler) View(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	count, err := h.content.IncrementViews(c.Request.Context(), id)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, models.ViewsResponse{ID: id, ViewCount: count})
}

// AttachAds handles POST /content/:id/ads.
func (h *ContentHandler) AttachAds(c *gin.Context) {
	h.ads(c, h.content.AttachAds)
}

// DetachAds handles DELETE /content/:id/ads.
func (h *ContentHandler) DetachAds(c *gin.Context) {
	h.ads(c, h.content.DetachAds)
}

func (h *ContentHandler) ads(c *gin.Context, op func(context.Context, uuid.UUID, []uuid.UUID) (*dbmodels.ContentItem, error)) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var body models.AdsRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request payload: "+err.Error())
		return
	}
	adIDs, err := validation.ParseIDs("ads", body.Ads)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	item, err := op(c.Request.Context(), id, adIDs)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *ContentHandler) limitBody(c *gin.Context) {
	if h.maxSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 2*h.maxSize+multipartOverhead)
	}
}

// stage saves the multipart file field to the temp dir. A missing field
// yields an empty path. On failure the response is written and ok is false.
func (h *ContentHandler) stage(c *gin.Context, field string, kind dbmodels.ResourceKind) (path string, ok bool) {
	fh, err := c.FormFile(field)
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return "", true
	case err != nil:
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond(c, http.StatusRequestEntityTooLarge, "request body too large", nil)
			return "", false
		}
		badRequest(c, "invalid multipart form: "+err.Error())
		return "", false
	}

	if err := h.validator.CheckFile(field, fh); err != nil {
		handleError(c, h.logger, err)
		return "", false
	}

	path = filepath.Join(h.tempDir, uuid.NewString()+filepath.Ext(fh.Filename))
	if err := c.SaveUploadedFile(fh, path); err != nil {
		removeStaged(path)
		handleError(c, h.logger, err)
		return "", false
	}
	if err := h.validator.CheckMediaType(field, path, kind); err != nil {
		removeStaged(path)
		handleError(c, h.logger, err)
		return "", false
	}
	return path, true
}

func removeStaged(path string) {
	if path != "" {
		_ = os.Remove(path)
	}
}

func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := validation.ParseID(name, c.Param(name))
	if err != nil {
		badRequest(c, err.Error())
		return uuid.Nil, false
	}
	return id, true
}
