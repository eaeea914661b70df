package ingest

import (
	"context"
	"strings"
	"testing"

	"pdfqa-backend/internal/pdfextract"
	"pdfqa-backend/internal/pdfextract/pdftest"
	"pdfqa-backend/internal/query"
	"pdfqa-backend/internal/session"
	"pdfqa-backend/internal/vectorstore"
)

// memIndex is an in-process index: Upsert stores vectors per namespace and
// Query returns them in insertion order, so retrieval hands back whatever
// ingestion wrote.
type memIndex struct {
	vectors map[string][]vectorstore.Vector
}

func newMemIndex() *memIndex {
	return &memIndex{vectors: make(map[string][]vectorstore.Vector)}
}

func (m *memIndex) Upsert(ctx context.Context, namespace string, vectors []vectorstore.Vector) (int, error) {
	m.vectors[namespace] = append(m.vectors[namespace], vectors...)
	return len(vectors), nil
}

func (m *memIndex) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]vectorstore.Match, error) {
	stored := m.vectors[namespace]
	if len(stored) > topK {
		stored = stored[:topK]
	}
	matches := make([]vectorstore.Match, len(stored))
	for i, v := range stored {
		matches[i] = vectorstore.Match{ID: v.ID, Score: 1, Metadata: v.Metadata}
	}
	return matches, nil
}

func (m *memIndex) DeleteNamespace(ctx context.Context, namespace string) error {
	delete(m.vectors, namespace)
	return nil
}

func (m *memIndex) DeleteAll(ctx context.Context) error {
	m.vectors = make(map[string][]vectorstore.Vector)
	return nil
}

func (m *memIndex) Stats(ctx context.Context) (vectorstore.Stats, error) {
	stats := vectorstore.Stats{Namespaces: make(map[string]vectorstore.NamespaceStats)}
	for ns, vs := range m.vectors {
		stats.Namespaces[ns] = vectorstore.NamespaceStats{VectorCount: len(vs)}
		stats.TotalVectorCount += len(vs)
	}
	return stats, nil
}

type recordingModel struct {
	answer string
	calls  int
	users  []string
}

func (m *recordingModel) Complete(ctx context.Context, system, user string) (string, error) {
	m.calls++
	m.users = append(m.users, user)
	return m.answer, nil
}

// TestUploadThenAskAgainstRealDocument runs a built PDF through the real
// parser and chunker, indexes it, and answers a question from the retrieved
// chunks. Only the external services (embeddings, index, model) are in-process
// substitutes.
func TestUploadThenAskAgainstRealDocument(t *testing.T) {
	doc := pdftest.Document("The sky is blue.", "Grass is green.")

	sess := session.NewManager()
	idx := newMemIndex()
	embedder := &stubEmbedder{dim: 3}

	uploads := &Pipeline{
		Extractor: pdfextract.Extractor{},
		Chunker:   NewChunker(),
		Embedder:  embedder,
		Index:     idx,
		Meter:     &stubMeter{},
		Session:   sess,
	}

	res, err := uploads.Ingest(context.Background(), "key-1", "u1", "sky.pdf", doc)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Namespace != "u1_sky" {
		t.Fatalf("expected namespace u1_sky, got %q", res.Namespace)
	}
	if res.ChunkCount != 2 {
		t.Fatalf("expected one chunk per page, got %d", res.ChunkCount)
	}

	model := &recordingModel{answer: "It is blue."}
	questions := &query.Pipeline{
		Embedder: embedder,
		Index:    idx,
		Chat:     model,
		Session:  sess,
	}

	result, err := questions.Ask(context.Background(), "What color is the sky?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if result.Answer != "It is blue." {
		t.Fatalf("unexpected answer %q", result.Answer)
	}
	if model.calls != 1 {
		t.Fatalf("expected exactly one model call, got %d", model.calls)
	}
	if !strings.Contains(result.Context, "DOCUMENT SECTION 1 [Document: sky.pdf, Page: 1]") {
		t.Fatalf("context missing first page attribution: %q", result.Context)
	}
	if !strings.Contains(result.Context, "The sky is blue.") {
		t.Fatalf("context missing extracted page text: %q", result.Context)
	}
	if !strings.Contains(result.Context, "Page: 2]") {
		t.Fatalf("context missing second page attribution: %q", result.Context)
	}
	if !strings.Contains(model.users[0], "The sky is blue.") {
		t.Fatalf("model prompt missing the document text: %q", model.users[0])
	}
}
