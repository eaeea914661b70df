package vectorstore

import "context"

// Vector is one embedded chunk ready for indexing.
type Vector struct {
	ID       string
	Values   []float32
	Metadata map[string]string
}

// Match is a retrieved vector with its similarity score.
type Match struct {
	ID       string
	Score    float32
	Metadata map[string]string
}

// NamespaceStats describes one namespace inside the index.
type NamespaceStats struct {
	VectorCount int `json:"vector_count"`
}

// Stats describes the whole index.
type Stats struct {
	Dimension        int                       `json:"dimension"`
	TotalVectorCount int                       `json:"total_vector_count"`
	Namespaces       map[string]NamespaceStats `json:"namespaces"`
}

// Index abstracts the external vector index.
type Index interface {
	Upsert(ctx context.Context, namespace string, vectors []Vector) (int, error)
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]Match, error)
	DeleteNamespace(ctx context.Context, namespace string) error
	DeleteAll(ctx context.Context) error
	Stats(ctx context.Context) (Stats, error)
}
