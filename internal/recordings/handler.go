package recordings

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vidvault/backend/internal/models"
	"github.com/vidvault/backend/pkg/queue"
	"github.com/vidvault/backend/pkg/response"
	"github.com/vidvault/backend/pkg/storage"
)

// Store is the metadata persistence the handler depends on.
type Store interface {
	Create(ctx context.Context, rec *models.Recording) error
	List(ctx context.Context) ([]models.Recording, error)
	GetByID(ctx context.Context, id int64) (*models.Recording, error)
}

// CleanupQueue reclaims blobs whose metadata insert failed. Optional; nil
// leaves the orphan on disk and logs it.
type CleanupQueue interface {
	EnqueueBlobCleanup(ctx context.Context, payload queue.BlobCleanupPayload) error
}

// Handler handles recording HTTP endpoints.
type Handler struct {
	store   Store
	blobs   storage.BlobStore
	cleanup CleanupQueue
	logger  *zap.Logger
}

// NewHandler creates a recordings handler.
func NewHandler(store Store, blobs storage.BlobStore, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, blobs: blobs, logger: logger}
}

// SetCleanupQueue sets the optional orphaned-blob cleanup queue.
func (h *Handler) SetCleanupQueue(q CleanupQueue) { h.cleanup = q }

// Upload handles POST /api/recordings. Expects one multipart file field
// named "video". The blob write completes before the metadata insert, so a
// row never references bytes that were not durably stored.
func (h *Handler) Upload(c *gin.Context) {
	file, err := c.FormFile("video")
	if err != nil {
		response.BadRequest(c, "no video file in request")
		return
	}

	src, err := file.Open()
	if err != nil {
		h.logger.Error("open uploaded file failed", zap.Error(err), zap.String("filename", file.Filename))
		response.Internal(c, "failed to read uploaded file")
		return
	}
	defer src.Close()

	// Timestamp prefix avoids collisions between uploads sharing a name.
	storedName := fmt.Sprintf("%d_%s", time.Now().UnixMilli(), filepath.Base(file.Filename))
	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = storage.ContentTypeForFilename(file.Filename)
	}

	location, err := h.blobs.Save(c.Request.Context(), storedName, contentType, src, file.Size)
	if err != nil {
		h.logger.Error("store video failed", zap.Error(err), zap.String("filename", storedName))
		response.Internal(c, "failed to store video")
		return
	}

	rec := &models.Recording{
		Filename: storedName,
		Location: location,
		Filesize: file.Size,
	}
	if err := h.store.Create(c.Request.Context(), rec); err != nil {
		h.logger.Error("insert recording failed", zap.Error(err), zap.String("location", location))
		h.reclaimOrphan(c.Request.Context(), location, storedName)
		response.Internal(c, "failed to save recording")
		return
	}

	response.Created(c, gin.H{"message": "video uploaded successfully", "recording": rec})
}

// reclaimOrphan hands a durably stored blob with no metadata row to the
// cleanup queue; without a queue the orphan is only logged.
func (h *Handler) reclaimOrphan(ctx context.Context, location, filename string) {
	if h.cleanup == nil {
		h.logger.Warn("orphaned blob left in storage (no cleanup queue configured)",
			zap.String("location", location))
		return
	}
	err := h.cleanup.EnqueueBlobCleanup(ctx, queue.BlobCleanupPayload{
		Location: location,
		Filename: filename,
	})
	if err != nil {
		h.logger.Error("enqueue blob cleanup failed", zap.Error(err), zap.String("location", location))
	}
}

// List handles GET /api/recordings. Returns all recordings newest-first.
func (h *Handler) List(c *gin.Context) {
	list, err := h.store.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list recordings failed", zap.Error(err))
		response.Internal(c, "failed to list recordings")
		return
	}
	if list == nil {
		list = []models.Recording{}
	}
	response.OK(c, list)
}

// GetByID handles GET /api/recordings/:id. With an S3-backed store it
// returns a presigned download URL; with local storage it streams the file
// honoring Range requests.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid recording id")
		return
	}

	rec, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("get recording failed", zap.Error(err), zap.Int64("id", id))
		response.Internal(c, "failed to fetch recording")
		return
	}
	if rec == nil {
		response.NotFound(c, "recording not found")
		return
	}

	if signer, ok := h.blobs.(storage.URLSigner); ok {
		url, err := signer.PresignURL(c.Request.Context(), rec.Location)
		if err != nil {
			h.logger.Error("presign recording url failed", zap.Error(err), zap.Int64("id", id))
			response.Internal(c, "failed to generate download URL")
			return
		}
		response.OK(c, gin.H{"url": url})
		return
	}

	ServeFileRange(c, rec.Location, storage.ContentTypeForFilename(rec.Filename))
}
