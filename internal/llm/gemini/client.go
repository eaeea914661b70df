package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"pdfqa-backend/internal/llm"
)

// Client implements llm.Chat and llm.Embedder against the Gemini API.
type Client struct {
	client     *genai.Client
	model      string
	embedModel string
}

// NewClient constructs a Gemini client.
func NewClient(ctx context.Context, apiKey, model, embedModel string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("GEMINI_MODEL is required")
	}
	if strings.TrimSpace(embedModel) == "" {
		return nil, fmt.Errorf("GEMINI_EMBED_MODEL is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Client{client: client, model: model, embedModel: embedModel}, nil
}

// Complete sends a single two-message prompt and returns the response text.
// No retries and no streaming.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	model := c.client.GenerativeModel(c.model)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(system)},
	}

	resp, err := model.GenerateContent(ctx, genai.Text(user))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := responseText(resp)
	if text == "" {
		return "", fmt.Errorf("gemini response empty")
	}
	return text, nil
}

// EmbedTexts embeds chunk texts in a single batch call.
func (c *Client) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	em := c.client.EmbeddingModel(c.embedModel)
	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}
	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("gemini embed batch: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini embed batch: expected %d embeddings, got %d", len(texts), len(resp.Embeddings))
	}
	out := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}

// EmbedQuery embeds a single question.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	em := c.client.EmbeddingModel(c.embedModel)
	resp, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if resp.Embedding == nil {
		return nil, fmt.Errorf("gemini embed: empty embedding")
	}
	return resp.Embedding.Values, nil
}

// Close releases the underlying API connection.
func (c *Client) Close() error {
	return c.client.Close()
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
	}
	return strings.TrimSpace(b.String())
}

var (
	_ llm.Chat     = (*Client)(nil)
	_ llm.Embedder = (*Client)(nil)
)
