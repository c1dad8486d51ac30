package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/secure-ai-studio/backend/internal/services"
	"github.com/secure-ai-studio/backend/pkg/response"
)

// UploadRequest is the request body for POST /api/uploads.
type UploadRequest struct {
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
}

type StorageHandler struct {
	transfer *services.SecureTransferManager
}

func NewStorageHandler(transfer *services.SecureTransferManager) *StorageHandler {
	return &StorageHandler{transfer: transfer}
}

// IssueUpload validates upload metadata and returns a time-limited upload URL
// POST /api/uploads
func (h *StorageHandler) IssueUpload(c *gin.Context) {
	var req UploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	url, err := h.transfer.IssueUploadURL(&services.UploadMeta{
		Filename:  req.Filename,
		SizeBytes: req.SizeBytes,
	})
	if err != nil {
		var valErr *services.ValidationError
		if errors.As(err, &valErr) {
			response.BadRequest(c, valErr.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, gin.H{"upload_url": url})
}

// Download resolves a signed token to its stored content. Expired or unknown
// tokens always come back 404, never the content.
// GET /files/:token
func (h *StorageHandler) Download(c *gin.Context) {
	contentRef, err := h.transfer.Resolve(c.Param("token"))
	if err != nil {
		response.NotFound(c, "file not found")
		return
	}
	response.Success(c, gin.H{"content_ref": contentRef})
}
