// Package service holds the business logic between the CLI/HTTP layer and
// the storage and embedding clients.
package service

import (
	"context"
	"fmt"
	"strings"

	"biobyia-go/internal/config"
	"biobyia-go/internal/model"
	"biobyia-go/pkg/embedding"
	"biobyia-go/pkg/log"
	"biobyia-go/pkg/vectorstore"
)

// defaultMinScore is the similarity floor used when FilterByScore is called
// with a non-positive threshold.
const defaultMinScore = 0.7

// noContextMessage is returned by FormatContext when there are no matches.
const noContextMessage = "Nenhum contexto relevante encontrado."

// filterOperators are the comparison operators accepted inside a structured
// filter value. A map value containing any of these keys is passed to the
// store as-is; every other value is wrapped in an equality match.
var filterOperators = []string{"$eq", "$ne", "$in", "$gt", "$gte", "$lt", "$lte"}

// QueryService answers similarity queries against the ingested corpus.
type QueryService interface {
	Query(ctx context.Context, text string, topK int, filters map[string]any) ([]model.QueryResult, error)
	FilterByScore(results []model.QueryResult, minScore float64) []model.QueryResult
	UniqueArticles(results []model.QueryResult) []string
	FormatContext(results []model.QueryResult) string
}

type queryService struct {
	embeddingClient embedding.Client
	store           vectorstore.Store
	defaultTopK     int
}

// NewQueryService creates a new QueryService instance.
func NewQueryService(embeddingClient embedding.Client, store vectorstore.Store, cfg config.QueryConfig) QueryService {
	topK := cfg.TopK
	if topK <= 0 {
		topK = 5
	}
	return &queryService{
		embeddingClient: embeddingClient,
		store:           store,
		defaultTopK:     topK,
	}
}

// Query embeds the question text and returns the topK most similar chunks.
// A nil filters map matches everything; bare filter values are equality
// matches and operator maps ($gte, $in, ...) are forwarded unchanged.
func (s *queryService) Query(ctx context.Context, text string, topK int, filters map[string]any) ([]model.QueryResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, model.NewValidationError("query", "query text is empty")
	}
	if topK <= 0 {
		topK = s.defaultTopK
	}
	log.Infof("[QueryService] running query, text: '%s', topK: %d, index: %s", text, topK, s.store.IndexName())

	log.Info("[QueryService] step 1: embedding query text")
	vector, err := s.embeddingClient.EmbedOne(ctx, text)
	if err != nil {
		log.Errorf("[QueryService] failed to embed query text: %v", err)
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	log.Infof("[QueryService] step 1: query embedded, dimension: %d", len(vector))

	log.Info("[QueryService] step 2: searching vector store")
	matches, err := s.store.Query(ctx, vectorstore.QueryRequest{
		Vector: vector,
		TopK:   topK,
		Filter: translateFilters(filters),
	})
	if err != nil {
		log.Errorf("[QueryService] vector store query failed: %v", err)
		return nil, fmt.Errorf("vector store query failed: %w", err)
	}
	log.Infof("[QueryService] step 2: vector store returned %d matches", len(matches))

	results := make([]model.QueryResult, 0, len(matches))
	for _, match := range matches {
		results = append(results, model.QueryResult{
			Text:       metadataString(match.Metadata, "text"),
			Score:      match.Score,
			Metadata:   match.Metadata,
			ArticleID:  metadataString(match.Metadata, "article_id"),
			ChunkIndex: metadataInt(match.Metadata, "chunk_index"),
		})
	}
	log.Infof("[QueryService] query finished, returning %d results", len(results))
	return results, nil
}

// FilterByScore keeps only results at or above minScore. A non-positive
// minScore falls back to the default floor of 0.7.
func (s *queryService) FilterByScore(results []model.QueryResult, minScore float64) []model.QueryResult {
	if minScore <= 0 {
		minScore = defaultMinScore
	}
	filtered := make([]model.QueryResult, 0, len(results))
	for _, r := range results {
		if r.Score >= minScore {
			filtered = append(filtered, r)
		}
	}
	if len(filtered) < len(results) {
		log.Infof("[QueryService] score filter kept %d of %d results (min: %.2f)", len(filtered), len(results), minScore)
	}
	return filtered
}

// UniqueArticles returns the distinct article ids in first-seen order.
func (s *queryService) UniqueArticles(results []model.QueryResult) []string {
	seen := make(map[string]struct{}, len(results))
	articles := make([]string, 0, len(results))
	for _, r := range results {
		if r.ArticleID == "" {
			continue
		}
		if _, ok := seen[r.ArticleID]; ok {
			continue
		}
		seen[r.ArticleID] = struct{}{}
		articles = append(articles, r.ArticleID)
	}
	return articles
}

// FormatContext renders the results as a numbered context block for a chat
// model prompt.
func (s *queryService) FormatContext(results []model.QueryResult) string {
	if len(results) == 0 {
		return noContextMessage
	}
	parts := make([]string, 0, len(results))
	for i, r := range results {
		parts = append(parts, fmt.Sprintf("[Contexto %d] (Artigo: %s, Score: %.3f)\n%s\n", i+1, r.ArticleID, r.Score, r.Text))
	}
	return strings.Join(parts, "\n")
}

// translateFilters converts the user-facing filter map into the store's
// filter language. Values that are already operator maps pass through.
func translateFilters(filters map[string]any) map[string]any {
	if len(filters) == 0 {
		return nil
	}
	translated := make(map[string]any, len(filters))
	for key, value := range filters {
		if opMap, ok := value.(map[string]any); ok && hasOperator(opMap) {
			translated[key] = opMap
			continue
		}
		translated[key] = map[string]any{"$eq": value}
	}
	return translated
}

func hasOperator(value map[string]any) bool {
	for _, op := range filterOperators {
		if _, ok := value[op]; ok {
			return true
		}
	}
	return false
}

func metadataString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// metadataInt reads an integer metadata value. JSON decoding yields float64
// for numbers, so both shapes are accepted.
func metadataInt(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float32:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
