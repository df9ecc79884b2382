package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go"
	contractx "github.com/tanpawarit/claims-responder-agent/agent/contract"
	chatmodelx "github.com/tanpawarit/claims-responder-agent/pkg/chatmodel"
)

// Embedder turns a search term into the query vector of a hybrid search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

type OpenAIEmbedder struct {
	client *openaisdk.Client
	model  string
}

// NewOpenAIEmbedder builds an embedder on the OpenAI or Azure OpenAI endpoint in
// cfg; for Azure cfg.Model is the embedding deployment.
func NewOpenAIEmbedder(cfg chatmodelx.Config) (*OpenAIEmbedder, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, errors.New("embedding model is required")
	}
	client := chatmodelx.NewClient(cfg)
	if client == nil {
		return nil, errors.New("embedding api key is required")
	}
	return &OpenAIEmbedder{client: client, model: model}, nil
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := e.client.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Input: openaisdk.EmbeddingNewParamsInputUnion{OfString: openaisdk.String(text)},
		Model: openaisdk.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: embed search term: %v", contractx.ErrSearchBackend, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: embedding response is empty", contractx.ErrSearchBackend)
	}
	return resp.Data[0].Embedding, nil
}
