package ingest

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"pdfqa-backend/internal/llm"
	"pdfqa-backend/internal/pdfextract"
	"pdfqa-backend/internal/session"
	"pdfqa-backend/internal/shared/telemetry"
	"pdfqa-backend/internal/vectorstore"
)

const (
	// MaxFileBytes bounds accepted uploads.
	MaxFileBytes = 10 << 20

	// MaxPages bounds accepted documents, computed by parsing the PDF.
	MaxPages = 50
)

var (
	// ErrPayloadInvalid covers every upload validation failure: wrong type,
	// too large, too many pages.
	ErrPayloadInvalid = errors.New("payload invalid")

	// ErrUpstream covers failures of external collaborators.
	ErrUpstream = errors.New("upstream failure")
)

// Extractor parses PDF payloads.
type Extractor interface {
	PageCount(data []byte) (int, error)
	ExtractPages(data []byte) ([]pdfextract.Page, error)
}

// UsageMeter is the slice of the credential service the pipeline needs.
type UsageMeter interface {
	CheckQuota(key string) error
	TouchUsage(ctx context.Context, key string, bytes int64) error
}

// Pipeline sequences an upload: validation, quota, extraction, chunking,
// embedding and indexing. The heavy lifting happens in the collaborators; this
// component orders them and attaches chunk metadata.
type Pipeline struct {
	Extractor Extractor
	Chunker   Chunker
	Embedder  llm.Embedder
	Index     vectorstore.Index
	Meter     UsageMeter
	Session   *session.Manager
}

// Result reports a completed ingestion.
type Result struct {
	Namespace  string
	ChunkCount int
}

// Ingest runs the full upload sequence. Any step's failure aborts the rest,
// except that a failed namespace clear is logged and tolerated. Usage is
// recorded only after the chunks are indexed, so a failed upload never counts
// against the quota.
func (p *Pipeline) Ingest(ctx context.Context, apiKey, userID, filename string, content []byte) (Result, error) {
	if len(content) > MaxFileBytes {
		return Result{}, fmt.Errorf("%w: file size exceeds maximum limit of %dMB", ErrPayloadInvalid, MaxFileBytes>>20)
	}
	if !pdfextract.IsPDF(content) {
		return Result{}, fmt.Errorf("%w: only PDF files are allowed", ErrPayloadInvalid)
	}
	pageCount, err := p.Extractor.PageCount(content)
	if err != nil {
		return Result{}, fmt.Errorf("%w: invalid PDF file", ErrPayloadInvalid)
	}
	if pageCount > MaxPages {
		return Result{}, fmt.Errorf("%w: PDF exceeds maximum page limit of %d", ErrPayloadInvalid, MaxPages)
	}

	if err := p.Meter.CheckQuota(apiKey); err != nil {
		return Result{}, err
	}

	pages, err := p.Extractor.ExtractPages(content)
	if err != nil {
		return Result{}, fmt.Errorf("%w: extract text: %v", ErrUpstream, err)
	}

	namespace := session.Namespace(userID, filename)
	chunks := p.buildChunks(pages, filename)

	telemetry.Info("ingest.chunked", map[string]any{
		"namespace": namespace,
		"filename":  filename,
		"pages":     len(pages),
		"chunks":    len(chunks),
	})

	p.clearNamespace(ctx, namespace)

	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, chunk := range chunks {
			texts[i] = chunk.Text
		}
		embeddings, err := p.Embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return Result{}, fmt.Errorf("%w: embed chunks: %v", ErrUpstream, err)
		}

		vectors := make([]vectorstore.Vector, len(chunks))
		for i, chunk := range chunks {
			vectors[i] = vectorstore.Vector{
				ID:       uuid.NewString(),
				Values:   embeddings[i],
				Metadata: chunk.Metadata,
			}
		}
		if _, err := p.Index.Upsert(ctx, namespace, vectors); err != nil {
			return Result{}, fmt.Errorf("%w: index chunks: %v", ErrUpstream, err)
		}
	} else {
		telemetry.Warn("ingest.empty_document", map[string]any{"namespace": namespace})
	}

	p.Session.SetActive(namespace)

	if err := p.Meter.TouchUsage(ctx, apiKey, int64(len(content))); err != nil {
		return Result{}, err
	}

	return Result{Namespace: namespace, ChunkCount: len(chunks)}, nil
}

type chunk struct {
	Text     string
	Metadata map[string]string
}

// buildChunks splits every page and attaches the metadata contract: chunk
// index across the whole document, source filename, page number (or "unknown"
// when page metadata is absent) and the chunk's start offset within its page.
func (p *Pipeline) buildChunks(pages []pdfextract.Page, filename string) []chunk {
	var out []chunk
	for _, page := range pages {
		pageLabel := "unknown"
		if page.Number > 0 {
			pageLabel = strconv.Itoa(page.Number)
		}
		for _, split := range p.Chunker.Split(page.Text) {
			out = append(out, chunk{
				Text: split.Text,
				Metadata: map[string]string{
					"chunk_id":    strconv.Itoa(len(out)),
					"filename":    filename,
					"page":        pageLabel,
					"start_index": strconv.Itoa(split.Start),
					"text":        split.Text,
				},
			})
		}
	}
	return out
}

// clearNamespace wipes pre-existing vectors under the namespace. The clear is
// skipped when the namespace does not exist yet, and a failed clear never
// fails the upload.
func (p *Pipeline) clearNamespace(ctx context.Context, namespace string) {
	stats, err := p.Index.Stats(ctx)
	if err != nil {
		telemetry.Error("ingest.stats_failed", map[string]any{
			"namespace": namespace,
			"err":       err.Error(),
		})
		return
	}
	if _, exists := stats.Namespaces[namespace]; !exists {
		telemetry.Info("ingest.namespace_new", map[string]any{"namespace": namespace})
		return
	}
	if err := p.Index.DeleteNamespace(ctx, namespace); err != nil {
		telemetry.Warn("ingest.clear_failed", map[string]any{
			"namespace": namespace,
			"err":       err.Error(),
		})
		return
	}
	telemetry.Info("ingest.namespace_cleared", map[string]any{"namespace": namespace})
}
