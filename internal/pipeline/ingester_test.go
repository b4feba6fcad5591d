package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"biobyia-go/internal/config"
	"biobyia-go/internal/model"
	"biobyia-go/pkg/retry"
	"biobyia-go/pkg/vectorstore"
)

// stubEmbedder returns a fixed vector per text and can fail on chosen
// calls.
type stubEmbedder struct {
	mu        sync.Mutex
	calls     int
	failCalls map[int]error
}

func (e *stubEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if err := e.failCalls[e.calls]; err != nil {
		return nil, err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, 0, 0}
	}
	return vectors, nil
}

func (e *stubEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *stubEmbedder) Dimension(ctx context.Context) (int, error) { return 3, nil }

func (e *stubEmbedder) Model() string { return "stub" }

// fakeStore records upserted batches and can fail any upsert whose first
// record ID is marked.
type fakeStore struct {
	mu        sync.Mutex
	records   map[string]vectorstore.Record
	batches   [][]string
	failIDs   map[string]bool
	calls     int
	namespace string
}

func newFakeStore(namespace string) *fakeStore {
	return &fakeStore{records: make(map[string]vectorstore.Record), namespace: namespace}
}

func (s *fakeStore) Upsert(ctx context.Context, records []vectorstore.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(records) > 0 && s.failIDs[records[0].ID] {
		return errors.New("upsert exploded")
	}
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
		s.records[r.ID] = r
	}
	s.batches = append(s.batches, ids)
	return nil
}

func (s *fakeStore) Query(ctx context.Context, req vectorstore.QueryRequest) ([]vectorstore.Match, error) {
	return nil, nil
}

func (s *fakeStore) DeleteAll(ctx context.Context) error { return nil }

func (s *fakeStore) Dimension(ctx context.Context) (int, error) { return 0, nil }

func (s *fakeStore) IndexName() string { return "biobyia" }

func (s *fakeStore) Namespace() string { return s.namespace }

func (s *fakeStore) Name() string { return "fake" }

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func chunkFixtures(n int) []model.Chunk {
	chunks := make([]model.Chunk, 0, n)
	for i := 0; i < n; i++ {
		chunks = append(chunks, model.Chunk{
			ArticleID:  "a1",
			ChunkIndex: i,
			Text:       fmt.Sprintf("chunk text %d", i),
			Metadata:   map[string]any{"year": 2020, "chunk_index": i},
		})
	}
	return chunks
}

func fastUpsertRetrier() *retry.Retrier {
	return retry.New(retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		retry.WithSleep(func(ctx context.Context, d time.Duration) error { return nil }))
}

func newTestIngester(store vectorstore.Store, dir string, batchSize int, opts ...IngesterOption) *Ingester {
	base := []IngesterOption{
		WithBatchSize(batchSize),
		WithPause(0),
		WithUpsertRetrier(fastUpsertRetrier()),
	}
	return NewIngester(&stubEmbedder{}, store, NewCheckpointStore(dir),
		config.IngestionConfig{BatchSize: batchSize, CheckpointEvery: 10},
		append(base, opts...)...)
}

func TestIngestHappyPath(t *testing.T) {
	store := newFakeStore("")
	dir := t.TempDir()
	ing := newTestIngester(store, dir, 3)

	report, err := ing.Ingest(context.Background(), chunkFixtures(10), true)
	require.NoError(t, err)

	assert.Equal(t, 10, report.TotalChunks)
	assert.Equal(t, 10, report.VectorsWritten)
	assert.Equal(t, 4, report.Batches)
	assert.Empty(t, report.Errors)
	assert.False(t, report.Interrupted)

	require.Len(t, store.batches, 4)
	assert.Equal(t, []string{"article_a1_chunk_0", "article_a1_chunk_1", "article_a1_chunk_2"}, store.batches[0])
	assert.Equal(t, []string{"article_a1_chunk_9"}, store.batches[3])

	// Clean completion removes the checkpoint.
	assert.Nil(t, NewCheckpointStore(dir).Load("biobyia", ""))
}

func TestIngestRecordShape(t *testing.T) {
	store := newFakeStore("")
	ing := newTestIngester(store, t.TempDir(), 10)

	chunks := []model.Chunk{{
		ArticleID:  "pmid_7",
		ChunkIndex: 2,
		Text:       "Mitochondria regulate apoptosis.",
		Metadata: map[string]any{
			"year":    2021,
			"meshes":  []any{"Humans", 42, []int{1, 2}},
			"nested":  map[string]any{"a": 1},
			"nothing": nil,
		},
	}}
	_, err := ing.Ingest(context.Background(), chunks, false)
	require.NoError(t, err)

	record, ok := store.records["article_pmid_7_chunk_2"]
	require.True(t, ok)
	assert.Equal(t, []float32{1, 0, 0}, record.Values)
	assert.Equal(t, "Mitochondria regulate apoptosis.", record.Metadata["text"])
	assert.Equal(t, "pmid_7", record.Metadata["article_id"])
	assert.Equal(t, 2, record.Metadata["chunk_index"])
	assert.Equal(t, 2021, record.Metadata["year"])
	// Non-primitive values are stringified, nils dropped.
	assert.Equal(t, []any{"Humans", 42, "[1 2]"}, record.Metadata["meshes"])
	assert.Equal(t, "map[a:1]", record.Metadata["nested"])
	assert.NotContains(t, record.Metadata, "nothing")
}

func TestIngestBatchFailureIsNotFatal(t *testing.T) {
	store := newFakeStore("")
	store.failIDs = map[string]bool{"article_a1_chunk_3": true}
	dir := t.TempDir()
	ing := newTestIngester(store, dir, 3)

	report, err := ing.Ingest(context.Background(), chunkFixtures(9), true)
	require.NoError(t, err)

	assert.Equal(t, 6, report.VectorsWritten)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "batch 2")
	assert.Contains(t, report.Errors[0], "3 attempts")
	assert.False(t, report.Interrupted)

	// One call for each good batch plus three attempts for the bad one.
	assert.Equal(t, 5, store.calls)
	// The failed batch still counts as attempted, so completion is clean.
	assert.Nil(t, NewCheckpointStore(dir).Load("biobyia", ""))
}

func TestIngestEmbedFailureIsNotFatal(t *testing.T) {
	store := newFakeStore("")
	dir := t.TempDir()
	embedder := &stubEmbedder{failCalls: map[int]error{1: errors.New("embed exploded")}}
	ing := NewIngester(embedder, store, NewCheckpointStore(dir),
		config.IngestionConfig{BatchSize: 3, CheckpointEvery: 10},
		WithPause(0), WithUpsertRetrier(fastUpsertRetrier()))

	report, err := ing.Ingest(context.Background(), chunkFixtures(6), true)
	require.NoError(t, err)

	assert.Equal(t, 3, report.VectorsWritten)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "batch 1")
	assert.Contains(t, report.Errors[0], "failed to embed batch")
	assert.Equal(t, 1, store.calls)
}

func TestIngestInterruptAndResume(t *testing.T) {
	store := newFakeStore("")
	dir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	ing := newTestIngester(store, dir, 3, WithProgress(func(p Progress) {
		if p.Batch == 1 {
			cancel()
		}
	}))

	report, err := ing.Ingest(ctx, chunkFixtures(10), true)
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, report.Interrupted)
	assert.Equal(t, 3, report.VectorsWritten)

	// The interruption saved a checkpoint with the attempted chunks.
	data, readErr := os.ReadFile(filepath.Join(dir, "ingestion_checkpoint_biobyia_default.json"))
	require.NoError(t, readErr)
	assert.Contains(t, string(data), `"namespace":null`)
	var checkpoint Checkpoint
	require.NoError(t, json.Unmarshal(data, &checkpoint))
	assert.Equal(t, []int{0, 1, 2}, checkpoint.ProcessedIndices)
	assert.Equal(t, 10, checkpoint.TotalChunks)

	// Resuming processes only the remaining chunks and finishes the run.
	resumed := newTestIngester(store, dir, 3)
	report, err = resumed.Ingest(context.Background(), chunkFixtures(10), true)
	require.NoError(t, err)
	assert.Equal(t, 7, report.VectorsWritten)
	assert.False(t, report.Interrupted)

	assert.Equal(t, 10, store.count())
	require.Len(t, store.batches, 4)
	assert.Equal(t, "article_a1_chunk_3", store.batches[1][0])
	assert.Nil(t, NewCheckpointStore(dir).Load("biobyia", ""))
}

func TestIngestCancelDuringUpsertBackoff(t *testing.T) {
	store := newFakeStore("")
	store.failIDs = map[string]bool{"article_a1_chunk_0": true}
	dir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	retrier := retry.New(retry.Policy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: time.Second},
		retry.WithSleep(func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		}))
	ing := newTestIngester(store, dir, 3, WithUpsertRetrier(retrier))

	report, err := ing.Ingest(ctx, chunkFixtures(6), true)
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, report.Interrupted)
	assert.Zero(t, report.VectorsWritten)
	// Only the first attempt ran; the wait was cancelled, not retried.
	assert.Equal(t, 1, store.calls)

	// The in-flight batch was not marked processed.
	checkpoint := NewCheckpointStore(dir).Load("biobyia", "")
	require.NotNil(t, checkpoint)
	assert.Empty(t, checkpoint.ProcessedIndices)
	assert.Equal(t, 6, checkpoint.TotalChunks)
}

func TestIngestIncompatibleCheckpointIgnored(t *testing.T) {
	store := newFakeStore("")
	dir := t.TempDir()

	// A checkpoint for a different total chunk count must not be applied.
	cs := NewCheckpointStore(dir)
	require.NoError(t, cs.Save(&Checkpoint{
		ProcessedIndices: []int{0, 1, 2, 3, 4},
		TotalChunks:      999,
		IndexName:        "biobyia",
	}))

	ing := newTestIngester(store, dir, 3)
	report, err := ing.Ingest(context.Background(), chunkFixtures(6), true)
	require.NoError(t, err)

	assert.Equal(t, 6, report.VectorsWritten)
	require.NotEmpty(t, store.batches)
	assert.Equal(t, "article_a1_chunk_0", store.batches[0][0])
}

func TestIngestNamedNamespaceCheckpoint(t *testing.T) {
	store := newFakeStore("medical")
	dir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	ing := newTestIngester(store, dir, 2, WithProgress(func(p Progress) {
		if p.Batch == 1 {
			cancel()
		}
	}))
	_, err := ing.Ingest(ctx, chunkFixtures(6), true)
	require.ErrorIs(t, err, context.Canceled)

	data, readErr := os.ReadFile(filepath.Join(dir, "ingestion_checkpoint_biobyia_medical.json"))
	require.NoError(t, readErr)
	assert.Contains(t, string(data), `"namespace":"medical"`)

	resumed := newTestIngester(store, dir, 2)
	report, err := resumed.Ingest(context.Background(), chunkFixtures(6), true)
	require.NoError(t, err)
	assert.Equal(t, 4, report.VectorsWritten)
	assert.Equal(t, 6, store.count())
}

func TestIngestCheckpointInterval(t *testing.T) {
	store := newFakeStore("")
	dir := t.TempDir()
	path := filepath.Join(dir, "ingestion_checkpoint_biobyia_default.json")

	var sawCheckpoint []bool
	ing := NewIngester(&stubEmbedder{}, store, NewCheckpointStore(dir),
		config.IngestionConfig{BatchSize: 1, CheckpointEvery: 2},
		WithPause(0), WithUpsertRetrier(fastUpsertRetrier()),
		WithProgress(func(p Progress) {
			_, err := os.Stat(path)
			sawCheckpoint = append(sawCheckpoint, err == nil)
		}))

	_, err := ing.Ingest(context.Background(), chunkFixtures(4), true)
	require.NoError(t, err)

	// Saved after every second batch, removed after completion.
	assert.Equal(t, []bool{false, true, true, true}, sawCheckpoint)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestIngestIdempotentRewrite(t *testing.T) {
	cfg := &config.Config{Vector: config.VectorConfig{Driver: "memory", IndexName: "biobyia"}}
	store, err := vectorstore.NewStore(cfg)
	require.NoError(t, err)
	dir := t.TempDir()

	chunks := chunkFixtures(10)
	queryIDs := func() []string {
		matches, qErr := store.Query(context.Background(), vectorstore.QueryRequest{
			Vector: []float32{1, 0, 0}, TopK: 100,
		})
		require.NoError(t, qErr)
		ids := make([]string, 0, len(matches))
		for _, m := range matches {
			ids = append(ids, m.ID)
		}
		return ids
	}

	ing := newTestIngester(store, dir, 3)
	_, err = ing.Ingest(context.Background(), chunks, false)
	require.NoError(t, err)
	first := queryIDs()
	require.Len(t, first, 10)

	_, err = ing.Ingest(context.Background(), chunks, false)
	require.NoError(t, err)
	second := queryIDs()
	assert.Len(t, second, 10)
	assert.ElementsMatch(t, first, second)
}

func TestIngestEmptyInput(t *testing.T) {
	store := newFakeStore("")
	ing := newTestIngester(store, t.TempDir(), 3)

	report, err := ing.Ingest(context.Background(), nil, true)
	require.NoError(t, err)
	assert.Zero(t, report.TotalChunks)
	assert.Zero(t, report.VectorsWritten)
	assert.Zero(t, store.calls)
}
