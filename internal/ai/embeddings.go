package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/windoze95/manas-api/internal/logger"
	"go.uber.org/zap"
)

// maxEmbeddingChars keeps memory text well under the model's token limit.
const maxEmbeddingChars = 8000

// OpenAIEmbedder implements EmbeddingProvider using OpenAI embeddings. The
// vectors are 1536-dimensional to match the memories.embedding column.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// NewEmbeddingProvider creates an embedder using text-embedding-3-small.
func NewEmbeddingProvider(apiKey string) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		client: openai.NewClient(apiKey),
		model:  openai.SmallEmbedding3,
	}
}

// GenerateEmbedding produces a vector embedding for a memory or recall query.
func (p *OpenAIEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return nil, errors.New("embedding text is empty")
	}
	text = truncateRunes(text, maxEmbeddingChars)

	const maxRetries = 3
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: p.model,
			Input: []string{text},
		})
		if err == nil {
			if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
				return nil, errors.New("embedding API returned empty result")
			}
			return resp.Data[0].Embedding, nil
		}

		lastErr = err
		shouldRetry, waitTime := classifyOpenAIError(err)
		if !shouldRetry {
			return nil, fmt.Errorf("embedding API error: %w", err)
		}

		logger.Get().Warn("embedding API error, retrying",
			zap.Error(err),
			zap.Int("attempt", i+1),
		)

		if i < maxRetries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(waitTime * time.Duration(i+1)):
			}
		}
	}

	return nil, fmt.Errorf("embedding API: exhausted %d retries: %w", maxRetries, lastErr)
}
