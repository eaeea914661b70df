package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pdfqa-backend/internal/llm"
	"pdfqa-backend/internal/session"
	"pdfqa-backend/internal/shared/metrics"
	"pdfqa-backend/internal/shared/telemetry"
	"pdfqa-backend/internal/vectorstore"
)

// TopK is how many chunks are retrieved per question.
const TopK = 5

var (
	// ErrNoActiveDocument means no upload has set a namespace yet.
	ErrNoActiveDocument = errors.New("no active document")

	// ErrUpstream covers failures of the embedder, index or model.
	ErrUpstream = errors.New("upstream failure")
)

// Fixed responses for the no-match case. Returned without consulting the
// model, so they are part of the API contract.
const (
	noMatchAnswer  = "I don't have enough information in the document to answer this question."
	noMatchContext = "No relevant content found in the document."
)

const systemPrompt = `You have access to a PDF document. Your task is to answer the user's questions strictly based on the content of the PDF.
If a question cannot be answered from the PDF, respond with: "The answer is not found in the document."
Be accurate, concise, and reference relevant sections or quotes when possible. Wait for the user's question.`

const userPromptFormat = `CONTEXT:
%s

QUESTION: %s

Remember: ONLY use information from the document provided. If the answer isn't in the document, say "I don't have enough information in the document to answer this question."`

// Pipeline answers questions against the active document: embed the question,
// retrieve the closest chunks, assemble the context block and call the model
// once. No retries, no streaming, no conversation memory.
type Pipeline struct {
	Embedder llm.Embedder
	Index    vectorstore.Index
	Chat     llm.Chat
	Session  *session.Manager

	// Now and ObserveLLM are injectable for tests; nil means time.Now and the
	// model-latency histogram. The observation brackets only the model call,
	// not embedding or retrieval.
	Now        func() time.Time
	ObserveLLM func(ms float64)
}

// Result carries the model's answer together with the exact context block it
// was shown.
type Result struct {
	Answer  string
	Context string
}

// Ask runs one retrieval-augmented completion.
func (p *Pipeline) Ask(ctx context.Context, question string) (Result, error) {
	namespace, ok := p.Session.Active()
	if !ok {
		return Result{}, ErrNoActiveDocument
	}

	telemetry.Info("query.received", map[string]any{
		"namespace": namespace,
		"question":  question,
	})

	vector, err := p.Embedder.EmbedQuery(ctx, question)
	if err != nil {
		return Result{}, fmt.Errorf("%w: embed question: %v", ErrUpstream, err)
	}

	matches, err := p.Index.Query(ctx, namespace, vector, TopK)
	if err != nil {
		return Result{}, fmt.Errorf("%w: query index: %v", ErrUpstream, err)
	}

	if len(matches) == 0 {
		telemetry.Info("query.no_matches", map[string]any{"namespace": namespace})
		return Result{Answer: noMatchAnswer, Context: noMatchContext}, nil
	}

	contextBlock := buildContext(matches)

	telemetry.Info("query.prompting", map[string]any{
		"namespace":      namespace,
		"matches":        len(matches),
		"context_length": len(contextBlock),
	})

	now := p.Now
	if now == nil {
		now = time.Now
	}
	observe := p.ObserveLLM
	if observe == nil {
		observe = metrics.ObserveLLMDurationMs
	}

	started := now()
	answer, err := p.Chat.Complete(ctx, systemPrompt, fmt.Sprintf(userPromptFormat, contextBlock, question))
	if err != nil {
		return Result{}, fmt.Errorf("%w: model completion: %v", ErrUpstream, err)
	}
	observe(float64(now().Sub(started).Milliseconds()))

	return Result{Answer: answer, Context: contextBlock}, nil
}

// buildContext renders retrieved chunks as numbered sections with their source
// metadata, so the model can cite where an answer came from.
func buildContext(matches []vectorstore.Match) string {
	parts := make([]string, 0, len(matches))
	for i, m := range matches {
		parts = append(parts, fmt.Sprintf("DOCUMENT SECTION %d [Document: %s, Page: %s]:\n%s",
			i+1,
			metadataOr(m.Metadata, "filename", "Unknown"),
			metadataOr(m.Metadata, "page", "Unknown"),
			m.Metadata["text"],
		))
	}
	return "\n\n" + strings.Join(parts, "\n\n")
}

func metadataOr(metadata map[string]string, key, fallback string) string {
	if v, ok := metadata[key]; ok && v != "" {
		return v
	}
	return fallback
}
