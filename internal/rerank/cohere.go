package rerank

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
)

// DefaultModel is the embedding model used when none is configured.
const DefaultModel = "embed-english-v3.0"

// maxBatch is the most texts the embed endpoint accepts per call.
const maxBatch = 96

// CohereEmbedder embeds text with the Cohere Embed API (v2).
type CohereEmbedder struct {
	client *cohereclient.Client
	model  string
}

// NewCohereEmbedder creates an embedder authenticated with apiKey.
func NewCohereEmbedder(apiKey, model string, httpClient *http.Client) *CohereEmbedder {
	if model == "" {
		model = DefaultModel
	}
	client := cohereclient.NewClient(
		cohereclient.WithToken(apiKey),
		cohereclient.WithHTTPClient(httpClient),
	)
	return &CohereEmbedder{client: client, model: model}
}

// Embed returns one vector per text. Query selects the search-query input type.
func (c *CohereEmbedder) Embed(ctx context.Context, texts []string, query bool) ([][]float32, error) {
	inputType := cohere.EmbedInputTypeSearchDocument
	if query {
		inputType = cohere.EmbedInputTypeSearchQuery
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatch {
		end := min(start+maxBatch, len(texts))
		batch := texts[start:end]

		resp, err := c.client.V2.Embed(ctx, &cohere.V2EmbedRequest{
			Texts:          batch,
			Model:          c.model,
			InputType:      inputType,
			EmbeddingTypes: []cohere.EmbeddingType{cohere.EmbeddingTypeFloat},
		})
		if err != nil {
			return nil, fmt.Errorf("cohere embed: %w", err)
		}
		if resp == nil || resp.Embeddings == nil || resp.Embeddings.Float == nil {
			return nil, errors.New("cohere embed returned no float embeddings")
		}
		if len(resp.Embeddings.Float) != len(batch) {
			return nil, fmt.Errorf("cohere embed returned %d vectors for %d texts", len(resp.Embeddings.Float), len(batch))
		}

		for _, vec := range resp.Embeddings.Float {
			fv := make([]float32, len(vec))
			for j, v := range vec {
				fv[j] = float32(v)
			}
			out = append(out, fv)
		}
	}
	return out, nil
}
