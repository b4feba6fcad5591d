package vectorstore

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

// pineconeStore talks to one Pinecone index over its data-plane REST API.
type pineconeStore struct {
	apiKey    string
	baseURL   string
	indexName string
	namespace string
	client    *http.Client
}

func newPineconeStore(cfg config.VectorConfig) (*pineconeStore, error) {
	if cfg.APIKey == "" {
		return nil, model.NewConfigurationError("vector.api_key", "missing API key for the Pinecone backend")
	}
	if cfg.Host == "" {
		return nil, model.NewConfigurationError("vector.host", "missing index host for the Pinecone backend")
	}
	baseURL := cfg.Host
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "https://" + baseURL
	}
	return &pineconeStore{
		apiKey:    cfg.APIKey,
		baseURL:   strings.TrimRight(baseURL, "/"),
		indexName: cfg.IndexName,
		namespace: cfg.Namespace,
		client:    &http.Client{},
	}, nil
}

type pineconeUpsertRequest struct {
	Vectors   []Record `json:"vectors"`
	Namespace string   `json:"namespace,omitempty"`
}

type pineconeQueryRequest struct {
	Vector          []float32      `json:"vector"`
	TopK            int            `json:"topK"`
	Filter          map[string]any `json:"filter,omitempty"`
	Namespace       string         `json:"namespace,omitempty"`
	IncludeMetadata bool           `json:"includeMetadata"`
}

type pineconeQueryResponse struct {
	Matches []struct {
		ID       string         `json:"id"`
		Score    float64        `json:"score"`
		Metadata map[string]any `json:"metadata"`
	} `json:"matches"`
}

type pineconeDeleteRequest struct {
	DeleteAll bool   `json:"deleteAll"`
	Namespace string `json:"namespace,omitempty"`
}

type pineconeStatsResponse struct {
	Dimension int `json:"dimension"`
}

func (s *pineconeStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	return s.post(ctx, "/vectors/upsert", pineconeUpsertRequest{
		Vectors:   records,
		Namespace: s.namespace,
	}, nil)
}

func (s *pineconeStore) Query(ctx context.Context, req QueryRequest) ([]Match, error) {
	var resp pineconeQueryResponse
	err := s.post(ctx, "/query", pineconeQueryRequest{
		Vector:          req.Vector,
		TopK:            req.TopK,
		Filter:          req.Filter,
		Namespace:       s.namespace,
		IncludeMetadata: true,
	}, &resp)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		matches = append(matches, Match{ID: m.ID, Score: m.Score, Metadata: m.Metadata})
	}
	return matches, nil
}

func (s *pineconeStore) DeleteAll(ctx context.Context) error {
	return s.post(ctx, "/vectors/delete", pineconeDeleteRequest{
		DeleteAll: true,
		Namespace: s.namespace,
	}, nil)
}

func (s *pineconeStore) Dimension(ctx context.Context) (int, error) {
	var resp pineconeStatsResponse
	if err := s.post(ctx, "/describe_index_stats", struct{}{}, &resp); err != nil {
		return 0, err
	}
	return resp.Dimension, nil
}

func (s *pineconeStore) IndexName() string { return s.indexName }

func (s *pineconeStore) Namespace() string { return s.namespace }

func (s *pineconeStore) Name() string { return "pinecone" }

// post sends one JSON request to the index host and decodes the response
// into out when out is non-nil.
func (s *pineconeStore) post(ctx context.Context, path string, in any, out any) error {
	reqBytes, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal pinecone request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+path, bytes.NewReader(reqBytes))
	if err != nil {
		return fmt.Errorf("failed to create pinecone request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call pinecone api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("pinecone %s returned status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode pinecone response: %w", err)
	}
	return nil
}
