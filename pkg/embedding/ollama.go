package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"biobyia-go/internal/config"
	"biobyia-go/internal/model"
)

// ollamaProvider calls a local Ollama server. The server exposes one
// embedding per request, so batches are sent text by text.
type ollamaProvider struct {
	baseURL string
	modelID string
	client  *http.Client
}

func newOllamaProvider(cfg config.EmbeddingConfig) (*ollamaProvider, error) {
	if cfg.OllamaBaseURL == "" {
		return nil, model.NewConfigurationError("embedding.ollama_base_url", "missing endpoint for the Ollama provider")
	}
	if cfg.Model == "" {
		return nil, model.NewConfigurationError("embedding.model", "missing model name for the Ollama provider")
	}
	return &ollamaProvider{
		baseURL: strings.TrimRight(cfg.OllamaBaseURL, "/"),
		modelID: cfg.Model,
		client:  &http.Client{},
	}, nil
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (p *ollamaProvider) embedOne(ctx context.Context, text string) ([]float32, error) {
	reqBytes, err := json.Marshal(ollamaEmbedRequest{Model: p.modelID, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/api/embeddings", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call ollama api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &APIError{Provider: "ollama", StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var embeddingResp ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embeddingResp); err != nil {
		return nil, fmt.Errorf("failed to decode ollama response: %w", err)
	}
	if len(embeddingResp.Embedding) == 0 {
		return nil, fmt.Errorf("received empty embedding from ollama api")
	}
	return embeddingResp.Embedding, nil
}

func (p *ollamaProvider) embedMany(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vector, err := p.embedOne(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, vector)
	}
	return vectors, nil
}

func (p *ollamaProvider) fixedDimension() int { return 0 }

func (p *ollamaProvider) model() string { return p.modelID }

func (p *ollamaProvider) name() string { return "ollama" }
