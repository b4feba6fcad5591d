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

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

// geminiProvider calls the Google Generative Language REST API.
type geminiProvider struct {
	apiKey  string
	baseURL string
	modelID string
	client  *http.Client
}

func newGeminiProvider(cfg config.EmbeddingConfig) (*geminiProvider, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, model.NewConfigurationError("embedding.gemini_api_key", "missing API key for the Gemini provider")
	}
	baseURL := cfg.GeminiBaseURL
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	modelID := strings.TrimPrefix(cfg.Model, "models/")
	if modelID == "" {
		modelID = "text-embedding-004"
	}
	return &geminiProvider{
		apiKey:  cfg.GeminiAPIKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		modelID: modelID,
		client:  &http.Client{},
	}, nil
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiEmbedRequest struct {
	Model   string        `json:"model"`
	Content geminiContent `json:"content"`
}

type geminiValues struct {
	Values []float32 `json:"values"`
}

type geminiEmbedResponse struct {
	Embedding geminiValues `json:"embedding"`
}

type geminiBatchRequest struct {
	Requests []geminiEmbedRequest `json:"requests"`
}

type geminiBatchResponse struct {
	Embeddings []geminiValues `json:"embeddings"`
}

func (p *geminiProvider) embedOne(ctx context.Context, text string) ([]float32, error) {
	reqBody := geminiEmbedRequest{
		Model:   "models/" + p.modelID,
		Content: geminiContent{Parts: []geminiPart{{Text: text}}},
	}

	var embeddingResp geminiEmbedResponse
	if err := p.post(ctx, ":embedContent", reqBody, &embeddingResp); err != nil {
		return nil, err
	}
	if len(embeddingResp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("received empty embedding from gemini api")
	}
	return embeddingResp.Embedding.Values, nil
}

func (p *geminiProvider) embedMany(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := geminiBatchRequest{Requests: make([]geminiEmbedRequest, 0, len(texts))}
	for _, text := range texts {
		reqBody.Requests = append(reqBody.Requests, geminiEmbedRequest{
			Model:   "models/" + p.modelID,
			Content: geminiContent{Parts: []geminiPart{{Text: text}}},
		})
	}

	var batchResp geminiBatchResponse
	if err := p.post(ctx, ":batchEmbedContents", reqBody, &batchResp); err != nil {
		return nil, err
	}
	if len(batchResp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini api returned %d embeddings for %d texts", len(batchResp.Embeddings), len(texts))
	}

	vectors := make([][]float32, 0, len(texts))
	for _, e := range batchResp.Embeddings {
		if len(e.Values) == 0 {
			return nil, fmt.Errorf("received empty embedding from gemini api")
		}
		vectors = append(vectors, e.Values)
	}
	return vectors, nil
}

// post sends one JSON request to a model method such as ":embedContent" and
// decodes the JSON response into out.
func (p *geminiProvider) post(ctx context.Context, method string, in any, out any) error {
	reqBytes, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal gemini request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s%s?key=%s", p.baseURL, p.modelID, method, p.apiKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(reqBytes))
	if err != nil {
		return fmt.Errorf("failed to create gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call gemini api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{Provider: "gemini", StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode gemini response: %w", err)
	}
	return nil
}

func (p *geminiProvider) fixedDimension() int {
	// text-embedding-004 always produces 768-dimensional vectors.
	if strings.Contains(p.modelID, "text-embedding-004") {
		return 768
	}
	return 0
}

func (p *geminiProvider) model() string { return p.modelID }

func (p *geminiProvider) name() string { return "gemini" }
