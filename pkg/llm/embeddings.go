package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type EmbeddingClient interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

type EmbeddingProvider struct {
	client   *http.Client
	apiKey   string
	apiURL   string
	model    string
	provider string
}

func NewEmbeddingClient(cfg Config) (EmbeddingClient, error) {
	if cfg.Model == "" {
		return nil, errors.New("embedding model is required")
	}
	provider := strings.ToLower(cfg.Provider)
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = "https://api.openai.com/v1"
		if provider == ProviderOllama {
			apiURL = defaultOllamaURL
		}
	}

	return &EmbeddingProvider{
		client:   &http.Client{Timeout: 120 * time.Second},
		apiKey:   cfg.APIKey,
		apiURL:   apiURL,
		model:    cfg.Model,
		provider: provider,
	}, nil
}

func (p *EmbeddingProvider) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, errors.New("inputs are required")
	}
	switch p.provider {
	case ProviderOllama:
		return p.embedOllama(ctx, inputs)
	case ProviderOpenAI, "":
		return p.embedOpenAI(ctx, inputs)
	default:
		return nil, fmt.Errorf("embedding provider %q is not supported", p.provider)
	}
}

// EmbedText embeds a single string.
func EmbedText(ctx context.Context, client EmbeddingClient, text string) ([]float32, error) {
	vectors, err := client.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, errors.New("embedding response was empty")
	}
	return vectors[0], nil
}

type openAIEmbeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (p *EmbeddingProvider) embedOpenAI(ctx context.Context, inputs []string) ([][]float32, error) {
	payload, err := json.Marshal(openAIEmbeddingRequest{Model: p.model, Input: inputs})
	if err != nil {
		return nil, fmt.Errorf("openai embed: marshal request: %w", err)
	}
	body, err := p.post(ctx, p.apiURL+"/embeddings", payload)
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	var response openAIEmbeddingResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("openai embed: decode response: %w", err)
	}
	if len(response.Data) != len(inputs) {
		return nil, fmt.Errorf("openai embed: unexpected embeddings count: %d", len(response.Data))
	}
	vectors := make([][]float32, len(inputs))
	for i, entry := range response.Data {
		idx := entry.Index
		if idx < 0 || idx >= len(vectors) {
			idx = i
		}
		vectors[idx] = entry.Embedding
	}
	return vectors, nil
}

type ollamaEmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (p *EmbeddingProvider) embedOllama(ctx context.Context, inputs []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(inputs))
	for _, input := range inputs {
		payload, err := json.Marshal(ollamaEmbeddingRequest{Model: p.model, Prompt: input})
		if err != nil {
			return nil, fmt.Errorf("ollama embed: marshal request: %w", err)
		}
		body, err := p.post(ctx, p.apiURL+"/api/embeddings", payload)
		if err != nil {
			return nil, fmt.Errorf("ollama embed: %w", err)
		}
		var response ollamaEmbeddingResponse
		if err := json.Unmarshal(body, &response); err != nil {
			return nil, fmt.Errorf("ollama embed: decode response: %w", err)
		}
		vectors = append(vectors, response.Embedding)
	}
	return vectors, nil
}

// ProbeEmbeddingDimensions makes a single embedding call and returns the
// vector length. Use this at startup to discover the model's output dimensions
// without hardcoding a model-to-dimension mapping.
func ProbeEmbeddingDimensions(ctx context.Context, client EmbeddingClient) (int, error) {
	vec, err := EmbedText(ctx, client, "dimension probe")
	if err != nil {
		return 0, fmt.Errorf("probe embedding dimensions: %w", err)
	}
	return len(vec), nil
}

func (p *EmbeddingProvider) post(ctx context.Context, endpoint string, payload []byte) ([]byte, error) {
	resp, err := postJSON(ctx, p.client, endpoint, payload, map[string]string{
		"Authorization": bearer(p.apiKey),
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}
