package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"biobyia-go/internal/config"
	"biobyia-go/internal/model"
)

func newTestMemoryStore() *memoryStore {
	return newMemoryStore(config.VectorConfig{IndexName: "biobyia", Namespace: "test"})
}

func TestMemoryUpsertAndQuery(t *testing.T) {
	s := newTestMemoryStore()
	ctx := context.Background()

	err := s.Upsert(ctx, []Record{
		{ID: "a", Values: []float32{1, 0}, Metadata: map[string]any{"article_id": "a1"}},
		{ID: "b", Values: []float32{0, 1}, Metadata: map[string]any{"article_id": "b1"}},
		{ID: "c", Values: []float32{0.9, 0.1}, Metadata: map[string]any{"article_id": "c1"}},
	})
	require.NoError(t, err)

	matches, err := s.Query(ctx, QueryRequest{Vector: []float32{1, 0}, TopK: 2})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "a", matches[0].ID)
	assert.Equal(t, "c", matches[1].ID)
	assert.GreaterOrEqual(t, matches[0].Score, matches[1].Score)
	assert.Equal(t, "a1", matches[0].Metadata["article_id"])
}

func TestMemoryUpsertReplacesByID(t *testing.T) {
	s := newTestMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []Record{{ID: "a", Values: []float32{1, 0}, Metadata: map[string]any{"v": 1}}}))
	require.NoError(t, s.Upsert(ctx, []Record{{ID: "a", Values: []float32{0, 1}, Metadata: map[string]any{"v": 2}}}))

	assert.Equal(t, 1, s.Count())
	matches, err := s.Query(ctx, QueryRequest{Vector: []float32{0, 1}, TopK: 1})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 2, matches[0].Metadata["v"])
}

func TestMemoryQueryFilters(t *testing.T) {
	s := newTestMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []Record{
		{ID: "x", Values: []float32{1, 0}, Metadata: map[string]any{"year": 2019}},
		{ID: "y", Values: []float32{1, 0}, Metadata: map[string]any{"year": 2021}},
		{ID: "z", Values: []float32{1, 0}, Metadata: map[string]any{"year": 2021, "label": "yes"}},
	}))

	queryIDs := func(filter map[string]any) []string {
		matches, err := s.Query(ctx, QueryRequest{Vector: []float32{1, 0}, TopK: 10, Filter: filter})
		require.NoError(t, err)
		ids := make([]string, 0, len(matches))
		for _, m := range matches {
			ids = append(ids, m.ID)
		}
		return ids
	}

	assert.ElementsMatch(t, []string{"y", "z"}, queryIDs(map[string]any{"year": map[string]any{"$eq": 2021}}))
	assert.ElementsMatch(t, []string{"y", "z"}, queryIDs(map[string]any{"year": map[string]any{"$gt": 2019}}))
	assert.ElementsMatch(t, []string{"y", "z"}, queryIDs(map[string]any{"year": map[string]any{"$ne": 2019}}))
	assert.ElementsMatch(t, []string{"x"}, queryIDs(map[string]any{"year": map[string]any{"$lte": 2019}}))
	assert.ElementsMatch(t, []string{"z"}, queryIDs(map[string]any{"label": "yes"}))
	assert.ElementsMatch(t, []string{"x", "y", "z"}, queryIDs(map[string]any{"year": map[string]any{"$in": []any{2019, 2021}}}))
	assert.Empty(t, queryIDs(map[string]any{"year": map[string]any{"$eq": 1980}}))

	// Numbers compare by value even when the filter came through JSON as
	// float64.
	assert.ElementsMatch(t, []string{"y", "z"}, queryIDs(map[string]any{"year": map[string]any{"$eq": float64(2021)}}))
}

func TestMemoryDeleteAll(t *testing.T) {
	s := newTestMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []Record{{ID: "a", Values: []float32{1, 0}}}))
	require.NoError(t, s.DeleteAll(ctx))

	assert.Equal(t, 0, s.Count())
	matches, err := s.Query(ctx, QueryRequest{Vector: []float32{1, 0}, TopK: 5})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestMemoryDimension(t *testing.T) {
	s := newTestMemoryStore()
	ctx := context.Background()

	dim, err := s.Dimension(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, dim)

	require.NoError(t, s.Upsert(ctx, []Record{{ID: "a", Values: []float32{1, 0, 0}}}))
	dim, err = s.Dimension(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, dim)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Zero(t, cosineSimilarity([]float32{1, 0}, []float32{1, 0, 0}))
	assert.Zero(t, cosineSimilarity(nil, nil))
}

func TestNewStoreSelection(t *testing.T) {
	memCfg := &config.Config{Vector: config.VectorConfig{Driver: "memory", IndexName: "biobyia"}}
	store, err := NewStore(memCfg)
	require.NoError(t, err)
	assert.Equal(t, "memory", store.Name())

	pineCfg := &config.Config{Vector: config.VectorConfig{
		APIKey: "key", Host: "index-abc.svc.pinecone.io", IndexName: "biobyia",
	}}
	store, err = NewStore(pineCfg)
	require.NoError(t, err)
	assert.Equal(t, "pinecone", store.Name())

	var cfgErr *model.ConfigurationError
	_, err = NewStore(&config.Config{})
	require.Error(t, err)
	assert.ErrorAs(t, err, &cfgErr)

	_, err = NewStore(&config.Config{Vector: config.VectorConfig{Driver: "bogus"}})
	require.Error(t, err)
	assert.ErrorAs(t, err, &cfgErr)

	// Pinecone without a host cannot be constructed even with a key.
	_, err = NewStore(&config.Config{Vector: config.VectorConfig{APIKey: "key"}})
	require.Error(t, err)
	assert.ErrorAs(t, err, &cfgErr)
}
