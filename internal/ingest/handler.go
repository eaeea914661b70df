package ingest

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"pdfqa-backend/internal/apikeys"
	"pdfqa-backend/internal/session"
	"pdfqa-backend/internal/shared/metrics"
	"pdfqa-backend/internal/shared/server/middleware"
	"pdfqa-backend/internal/shared/server/respond"
	"pdfqa-backend/internal/vectorstore"
)

type Handler struct {
	pipeline *Pipeline
	index    vectorstore.Index
	session  *session.Manager
}

func NewHandler(pipeline *Pipeline, index vectorstore.Index, manager *session.Manager) *Handler {
	return &Handler{pipeline: pipeline, index: index, session: manager}
}

// RegisterRoutes attaches the upload endpoint.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/upload", h.upload)
}

// RegisterDebugRoutes attaches index inspection endpoints. The router only
// calls this outside production.
func (h *Handler) RegisterDebugRoutes(rg *gin.RouterGroup) {
	rg.GET("/debug/index-info", h.indexInfo)
	rg.POST("/debug/clear-index", h.clearIndex)
}

type uploadResponse struct {
	Message   string `json:"message"`
	Namespace string `json:"namespace"`
}

func (h *Handler) upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, respond.CodePayloadInvalid, "file is required", nil)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, respond.CodePayloadInvalid, "failed to read file", nil)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, MaxFileBytes+1))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, respond.CodePayloadInvalid, "failed to read file", nil)
		return
	}

	apiKey := middleware.APIKeyFromContext(c)
	userID := middleware.UserIDFromContext(c)

	result, err := h.pipeline.Ingest(c.Request.Context(), apiKey, userID, fileHeader.Filename, content)
	if err != nil {
		metrics.IncUploadFailed()
		writePipelineError(c, err)
		return
	}

	metrics.IncUpload()
	c.Set("namespace", result.Namespace)
	respond.JSON(c, http.StatusOK, uploadResponse{
		Message: fmt.Sprintf("PDF processed successfully. Created %d chunks in namespace %s.",
			result.ChunkCount, result.Namespace),
		Namespace: result.Namespace,
	})
}

func writePipelineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrPayloadInvalid):
		respond.Error(c, http.StatusBadRequest, respond.CodePayloadInvalid, err.Error(), nil)
	case errors.Is(err, apikeys.ErrQuotaExceeded):
		respond.Error(c, http.StatusTooManyRequests, respond.CodeQuotaExceeded, "Daily quota exceeded", nil)
	case errors.Is(err, ErrUpstream):
		respond.Error(c, http.StatusBadGateway, respond.CodeUpstreamFailure, "Failed to process PDF", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "Unexpected server error", nil)
	}
}

type indexInfoResponse struct {
	VectorCount      int                                   `json:"vector_count"`
	Dimension        int                                   `json:"dimension"`
	Namespaces       map[string]vectorstore.NamespaceStats `json:"namespaces"`
	CurrentNamespace string                                `json:"current_namespace"`
}

func (h *Handler) indexInfo(c *gin.Context) {
	stats, err := h.index.Stats(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusBadGateway, respond.CodeUpstreamFailure, "Failed to describe index", nil)
		return
	}
	current, _ := h.session.Active()
	respond.JSON(c, http.StatusOK, indexInfoResponse{
		VectorCount:      stats.TotalVectorCount,
		Dimension:        stats.Dimension,
		Namespaces:       stats.Namespaces,
		CurrentNamespace: current,
	})
}

func (h *Handler) clearIndex(c *gin.Context) {
	if err := h.index.DeleteAll(c.Request.Context()); err != nil {
		respond.Error(c, http.StatusBadGateway, respond.CodeUpstreamFailure, "Failed to clear index", nil)
		return
	}
	h.session.Clear()
	respond.JSON(c, http.StatusOK, gin.H{"message": "Index cleared successfully"})
}
