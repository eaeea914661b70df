package query

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"pdfqa-backend/internal/shared/metrics"
	"pdfqa-backend/internal/shared/server/respond"
)

type Handler struct {
	pipeline *Pipeline
}

func NewHandler(pipeline *Pipeline) *Handler {
	return &Handler{pipeline: pipeline}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/ask", h.ask)
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Answer  string `json:"answer"`
	Context string `json:"context"`
}

func (h *Handler) ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, respond.CodePayloadInvalid, "invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		respond.Error(c, http.StatusBadRequest, respond.CodePayloadInvalid, "question is required", nil)
		return
	}

	result, err := h.pipeline.Ask(c.Request.Context(), req.Question)
	if err != nil {
		metrics.IncQuestionFailed()
		switch {
		case errors.Is(err, ErrNoActiveDocument):
			respond.Error(c, http.StatusBadRequest, respond.CodeNoActiveDocument,
				"No document has been uploaded yet. Please upload a PDF first.", nil)
		case errors.Is(err, ErrUpstream):
			respond.Error(c, http.StatusBadGateway, respond.CodeUpstreamFailure, "Failed to answer question", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "Unexpected server error", nil)
		}
		return
	}

	metrics.IncQuestion()
	respond.JSON(c, http.StatusOK, askResponse{Answer: result.Answer, Context: result.Context})
}
