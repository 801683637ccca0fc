package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
)

// Embedder turns texts into vectors. Output order matches input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

type EmbeddingConfig struct {
	Model     string `envconfig:"MODEL" default:"text-embedding-3-small"`
	BatchSize int    `split_words:"true" default:"512"`
	TopK      int    `split_words:"true" default:"4"`
	CacheSize int    `split_words:"true" default:"1024"`
}

// OpenAIEmbedder calls the embeddings endpoint in batches.
type OpenAIEmbedder struct {
	client    *openai.Client
	model     string
	batchSize int
}

func NewOpenAIEmbedder(client *openai.Client, cfg EmbeddingConfig) (*OpenAIEmbedder, error) {
	if client == nil {
		return nil, errors.New("openai client is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = openai.EmbeddingModelTextEmbedding3Small
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 512
	}
	return &OpenAIEmbedder{client: client, model: model, batchSize: batch}, nil
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))

		resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts[start:end]},
			Model: openai.EmbeddingModel(e.model),
		})
		if err != nil {
			return nil, fmt.Errorf("embed batch [%d:%d]: %w", start, end, err)
		}
		if len(resp.Data) != end-start {
			return nil, fmt.Errorf("embed batch [%d:%d]: got %d vectors", start, end, len(resp.Data))
		}
		for _, d := range resp.Data {
			idx := start + int(d.Index)
			if idx < start || idx >= end {
				return nil, fmt.Errorf("embed batch [%d:%d]: vector index %d out of range", start, end, d.Index)
			}
			out[idx] = d.Embedding
		}
	}
	return out, nil
}
