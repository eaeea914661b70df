package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"pdfqa-backend/internal/vectorstore"
)

// Client talks to a Pinecone serverless index over its REST data plane.
type Client struct {
	host       string
	apiKey     string
	httpClient *http.Client
}

// NewClient constructs a Pinecone client for the given index host.
func NewClient(apiKey, host string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("PINECONE_API_KEY is required")
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return nil, fmt.Errorf("PINECONE_INDEX_HOST is required")
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}
	timeout := 10 * time.Second
	if raw := strings.TrimSpace(os.Getenv("PINECONE_TIMEOUT_SECONDS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			timeout = time.Duration(parsed) * time.Second
		}
	}
	return &Client{
		host:       strings.TrimSuffix(host, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type upsertRequest struct {
	Vectors   []vectorPayload `json:"vectors"`
	Namespace string          `json:"namespace,omitempty"`
}

type vectorPayload struct {
	ID       string            `json:"id"`
	Values   []float32         `json:"values"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type upsertResponse struct {
	UpsertedCount int `json:"upsertedCount"`
}

func (c *Client) Upsert(ctx context.Context, namespace string, vectors []vectorstore.Vector) (int, error) {
	payload := upsertRequest{Namespace: namespace}
	for _, v := range vectors {
		payload.Vectors = append(payload.Vectors, vectorPayload{
			ID:       v.ID,
			Values:   v.Values,
			Metadata: v.Metadata,
		})
	}
	var parsed upsertResponse
	if err := c.post(ctx, "/vectors/upsert", payload, &parsed); err != nil {
		return 0, err
	}
	return parsed.UpsertedCount, nil
}

type queryRequest struct {
	Namespace       string    `json:"namespace,omitempty"`
	TopK            int       `json:"topK"`
	Vector          []float32 `json:"vector"`
	IncludeMetadata bool      `json:"includeMetadata"`
}

type queryResponse struct {
	Matches []struct {
		ID       string            `json:"id"`
		Score    float32           `json:"score"`
		Metadata map[string]string `json:"metadata"`
	} `json:"matches"`
}

func (c *Client) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]vectorstore.Match, error) {
	payload := queryRequest{
		Namespace:       namespace,
		TopK:            topK,
		Vector:          vector,
		IncludeMetadata: true,
	}
	var parsed queryResponse
	if err := c.post(ctx, "/query", payload, &parsed); err != nil {
		return nil, err
	}
	matches := make([]vectorstore.Match, 0, len(parsed.Matches))
	for _, m := range parsed.Matches {
		matches = append(matches, vectorstore.Match{
			ID:       m.ID,
			Score:    m.Score,
			Metadata: m.Metadata,
		})
	}
	return matches, nil
}

type deleteRequest struct {
	DeleteAll bool   `json:"deleteAll"`
	Namespace string `json:"namespace,omitempty"`
}

func (c *Client) DeleteNamespace(ctx context.Context, namespace string) error {
	return c.post(ctx, "/vectors/delete", deleteRequest{DeleteAll: true, Namespace: namespace}, nil)
}

func (c *Client) DeleteAll(ctx context.Context) error {
	return c.post(ctx, "/vectors/delete", deleteRequest{DeleteAll: true}, nil)
}

type statsResponse struct {
	Dimension        int `json:"dimension"`
	TotalVectorCount int `json:"totalVectorCount"`
	Namespaces       map[string]struct {
		VectorCount int `json:"vectorCount"`
	} `json:"namespaces"`
}

func (c *Client) Stats(ctx context.Context) (vectorstore.Stats, error) {
	var parsed statsResponse
	if err := c.post(ctx, "/describe_index_stats", struct{}{}, &parsed); err != nil {
		return vectorstore.Stats{}, err
	}
	stats := vectorstore.Stats{
		Dimension:        parsed.Dimension,
		TotalVectorCount: parsed.TotalVectorCount,
		Namespaces:       make(map[string]vectorstore.NamespaceStats, len(parsed.Namespaces)),
	}
	for name, ns := range parsed.Namespaces {
		stats.Namespaces[name] = vectorstore.NamespaceStats{VectorCount: ns.VectorCount}
	}
	return stats, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("pinecone %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("pinecone %s: read response: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("pinecone %s: status %d: %s", path, resp.StatusCode, truncate(string(raw), 200))
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("pinecone %s: parse response: %w", path, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ vectorstore.Index = (*Client)(nil)
