package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"biobyia-go/internal/config"
)

// memoryStore is an in-memory backend for local runs and tests. Search is
// brute-force cosine similarity over every stored record.
type memoryStore struct {
	mu        sync.RWMutex
	records   map[string]Record
	indexName string
	namespace string
}

func newMemoryStore(cfg config.VectorConfig) *memoryStore {
	return &memoryStore{
		records:   make(map[string]Record),
		indexName: cfg.IndexName,
		namespace: cfg.Namespace,
	}
}

func (s *memoryStore) Upsert(ctx context.Context, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range records {
		s.records[record.ID] = record
	}
	return nil
}

func (s *memoryStore) Query(ctx context.Context, req QueryRequest) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]Match, 0, len(s.records))
	for _, record := range s.records {
		if len(record.Values) == 0 {
			continue
		}
		if !matchesFilter(record.Metadata, req.Filter) {
			continue
		}
		matches = append(matches, Match{
			ID:       record.ID,
			Score:    cosineSimilarity(req.Vector, record.Values),
			Metadata: record.Metadata,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if req.TopK > 0 && len(matches) > req.TopK {
		matches = matches[:req.TopK]
	}
	return matches, nil
}

func (s *memoryStore) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]Record)
	return nil
}

func (s *memoryStore) Dimension(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, record := range s.records {
		return len(record.Values), nil
	}
	return 0, nil
}

func (s *memoryStore) IndexName() string { return s.indexName }

func (s *memoryStore) Namespace() string { return s.namespace }

func (s *memoryStore) Name() string { return "memory" }

// Count reports the number of stored records.
func (s *memoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// cosineSimilarity returns a value between -1 and 1, where 1 means
// identical direction. Mismatched or zero-length vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// matchesFilter evaluates a comparator-operator filter against record
// metadata. Bare values mean equality.
func matchesFilter(metadata, filter map[string]any) bool {
	for field, raw := range filter {
		value, present := metadata[field]
		ops, ok := raw.(map[string]any)
		if !ok {
			if !present || !valuesEqual(value, raw) {
				return false
			}
			continue
		}
		for op, want := range ops {
			if !evalOperator(op, value, present, want) {
				return false
			}
		}
	}
	return true
}

func evalOperator(op string, value any, present bool, want any) bool {
	switch op {
	case "$eq":
		return present && valuesEqual(value, want)
	case "$ne":
		return !present || !valuesEqual(value, want)
	case "$in":
		items, ok := want.([]any)
		if !ok || !present {
			return false
		}
		for _, item := range items {
			if valuesEqual(value, item) {
				return true
			}
		}
		return false
	case "$gt", "$gte", "$lt", "$lte":
		if !present {
			return false
		}
		have, okA := toFloat(value)
		limit, okB := toFloat(want)
		if !okA || !okB {
			return false
		}
		switch op {
		case "$gt":
			return have > limit
		case "$gte":
			return have >= limit
		case "$lt":
			return have < limit
		default:
			return have <= limit
		}
	default:
		return false
	}
}

// valuesEqual compares primitives, treating numeric types as equal when
// their values match.
func valuesEqual(a, b any) bool {
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if okA && okB {
		return fa == fb
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
