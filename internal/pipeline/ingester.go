// Package pipeline implements the corpus write path: batching chunks,
// embedding them and upserting the vectors with checkpointed, resumable
// progress.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"biobyia-go/internal/config"
	"biobyia-go/internal/model"
	"biobyia-go/pkg/embedding"
	"biobyia-go/pkg/log"
	"biobyia-go/pkg/retry"
	"biobyia-go/pkg/vectorstore"
)

const defaultBatchPause = 100 * time.Millisecond

// Report summarizes one ingestion run. Batch failures are collected here
// instead of aborting the run.
type Report struct {
	TotalChunks    int      `json:"total_chunks"`
	VectorsWritten int      `json:"vectors_written"`
	Batches        int      `json:"batches"`
	Errors         []string `json:"errors"`
	Interrupted    bool     `json:"interrupted"`
}

// Progress is emitted after every batch for callers that want to follow a
// run, such as the ingestion websocket.
type Progress struct {
	Batch          int `json:"batch"`
	TotalBatches   int `json:"total_batches"`
	ChunksDone     int `json:"chunks_done"`
	TotalChunks    int `json:"total_chunks"`
	VectorsWritten int `json:"vectors_written"`
	ErrorCount     int `json:"error_count"`
}

// Ingester writes chunks to the vector store in order, batch by batch,
// saving checkpoints so an interrupted run can pick up where it stopped.
type Ingester struct {
	embedder        embedding.Client
	store           vectorstore.Store
	checkpoints     *CheckpointStore
	retrier         *retry.Retrier
	batchSize       int
	checkpointEvery int
	pause           time.Duration
	onProgress      func(Progress)
}

// IngesterOption adjusts an Ingester built by NewIngester.
type IngesterOption func(*Ingester)

// WithBatchSize overrides the configured batch size.
func WithBatchSize(n int) IngesterOption {
	return func(ing *Ingester) {
		if n > 0 {
			ing.batchSize = n
		}
	}
}

// WithPause sets the delay between batches. Zero disables it.
func WithPause(d time.Duration) IngesterOption {
	return func(ing *Ingester) { ing.pause = d }
}

// WithUpsertRetrier replaces the backoff schedule for vector store writes.
func WithUpsertRetrier(r *retry.Retrier) IngesterOption {
	return func(ing *Ingester) { ing.retrier = r }
}

// WithProgress registers a callback invoked after every attempted batch.
func WithProgress(fn func(Progress)) IngesterOption {
	return func(ing *Ingester) { ing.onProgress = fn }
}

// NewIngester wires the write path together. Batch size and checkpoint
// interval come from the ingestion config; options override them.
func NewIngester(
	embedder embedding.Client,
	store vectorstore.Store,
	checkpoints *CheckpointStore,
	cfg config.IngestionConfig,
	opts ...IngesterOption,
) *Ingester {
	ing := &Ingester{
		embedder:        embedder,
		store:           store,
		checkpoints:     checkpoints,
		batchSize:       cfg.BatchSize,
		checkpointEvery: cfg.CheckpointEvery,
		pause:           defaultBatchPause,
		retrier: retry.New(retry.Policy{
			MaxAttempts: 3,
			BaseDelay:   2 * time.Second,
			MaxDelay:    10 * time.Second,
		}, retry.WithOnRetry(func(attempt int, delay time.Duration, err error) {
			log.Warnf("[Ingester] upsert attempt %d failed, retrying in %s: %v", attempt, delay, err)
		})),
	}
	if ing.batchSize <= 0 {
		ing.batchSize = 100
	}
	if ing.checkpointEvery <= 0 {
		ing.checkpointEvery = 10
	}
	for _, opt := range opts {
		opt(ing)
	}
	return ing
}

// Ingest writes the chunks to the vector store. With resume enabled, a
// checkpoint whose index name, namespace and total chunk count all match
// the current run restores progress; any other checkpoint is ignored.
// Cancellation saves a checkpoint before the context error is returned, so
// the next invocation resumes at the same point. A failed batch is recorded
// in the report and skipped, never fatal to the run.
func (ing *Ingester) Ingest(ctx context.Context, chunks []model.Chunk, resume bool) (*Report, error) {
	total := len(chunks)
	totalBatches := (total + ing.batchSize - 1) / ing.batchSize
	report := &Report{TotalChunks: total, Batches: totalBatches, Errors: []string{}}
	if total == 0 {
		log.Warnf("[Ingester] no chunks to ingest")
		return report, nil
	}

	log.Infof("[Ingester] starting run, index: %s, namespace: %s, chunks: %d, batch size: %d",
		ing.store.IndexName(), displayNamespace(ing.store.Namespace()), total, ing.batchSize)
	ing.warnOnDimensionMismatch(ctx)

	processed := make([]int, 0, total)
	startIndex := 0
	if resume {
		if checkpoint := ing.checkpoints.Load(ing.store.IndexName(), ing.store.Namespace()); checkpoint != nil {
			if checkpoint.Matches(ing.store.IndexName(), ing.store.Namespace(), total) {
				processed = append(processed, checkpoint.ProcessedIndices...)
				startIndex = checkpoint.NextIndex()
				log.Infof("[Ingester] resuming from chunk %d/%d", startIndex, total)
			} else {
				log.Warnf("[Ingester] ignoring incompatible checkpoint for index %s", ing.store.IndexName())
			}
		}
	}

	batchesSinceSave := 0
	for start := startIndex; start < total; start += ing.batchSize {
		select {
		case <-ctx.Done():
			ing.saveCheckpoint(processed, total)
			report.Interrupted = true
			return report, ctx.Err()
		default:
		}

		end := min(start+ing.batchSize, total)
		batch := chunks[start:end]
		batchNum := start/ing.batchSize + 1
		log.Infof("[Ingester] batch %d/%d, chunks %d-%d", batchNum, totalBatches, start, end-1)

		if err := ing.processBatch(ctx, batch); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				ing.saveCheckpoint(processed, total)
				report.Interrupted = true
				return report, err
			}
			msg := fmt.Sprintf("batch %d: %v", batchNum, err)
			report.Errors = append(report.Errors, msg)
			log.Warnf("[Ingester] %s, continuing with the next batch", msg)
		} else {
			report.VectorsWritten += len(batch)
		}

		// Attempted chunks count as processed, failed batches included,
		// so a resume never replays a batch that already burned its
		// retries.
		for i := start; i < end; i++ {
			processed = append(processed, i)
		}
		batchesSinceSave++
		if batchesSinceSave >= ing.checkpointEvery {
			ing.saveCheckpoint(processed, total)
			batchesSinceSave = 0
		}
		if ing.onProgress != nil {
			ing.onProgress(Progress{
				Batch:          batchNum,
				TotalBatches:   totalBatches,
				ChunksDone:     len(processed),
				TotalChunks:    total,
				VectorsWritten: report.VectorsWritten,
				ErrorCount:     len(report.Errors),
			})
		}

		if end < total && ing.pause > 0 {
			if err := ing.sleepBetweenBatches(ctx); err != nil {
				ing.saveCheckpoint(processed, total)
				report.Interrupted = true
				return report, err
			}
		}
	}

	if err := ing.checkpoints.Delete(ing.store.IndexName(), ing.store.Namespace()); err != nil {
		log.Warnf("[Ingester] failed to remove checkpoint after completion: %v", err)
	}
	log.Infof("[Ingester] run complete, vectors written: %d/%d, batches: %d, errors: %d",
		report.VectorsWritten, total, totalBatches, len(report.Errors))
	return report, nil
}

// processBatch embeds one batch and upserts it with bounded retries.
func (ing *Ingester) processBatch(ctx context.Context, batch []model.Chunk) error {
	texts := make([]string, len(batch))
	for i, chunk := range batch {
		texts[i] = chunk.Text
	}

	vectors, err := ing.embedder.EmbedMany(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed batch: %w", err)
	}
	if len(vectors) != len(batch) {
		return fmt.Errorf("embedding count mismatch: got %d vectors for %d chunks", len(vectors), len(batch))
	}

	records := make([]vectorstore.Record, len(batch))
	for i, chunk := range batch {
		metadata := sanitizeMetadata(chunk.Metadata)
		metadata["text"] = chunk.Text
		metadata["article_id"] = chunk.ArticleID
		metadata["chunk_index"] = chunk.ChunkIndex
		records[i] = vectorstore.Record{
			ID:       chunk.VectorID(),
			Values:   vectors[i],
			Metadata: metadata,
		}
	}

	return ing.retrier.Do(ctx, "upsert", func() error {
		return ing.store.Upsert(ctx, records)
	})
}

// warnOnDimensionMismatch compares the embedder's vector size against the
// index's. A mismatch degrades similarity search but does not block the
// run.
func (ing *Ingester) warnOnDimensionMismatch(ctx context.Context) {
	embedderDim, err := ing.embedder.Dimension(ctx)
	if err != nil {
		log.Warnf("[Ingester] could not determine embedding dimension: %v", err)
		return
	}
	storeDim, err := ing.store.Dimension(ctx)
	if err != nil {
		log.Warnf("[Ingester] could not determine index dimension: %v", err)
		return
	}
	if embedderDim > 0 && storeDim > 0 && embedderDim != storeDim {
		log.Warnf("[Ingester] embedding dimension %d does not match index dimension %d", embedderDim, storeDim)
	}
}

func (ing *Ingester) saveCheckpoint(processed []int, total int) {
	checkpoint := &Checkpoint{
		ProcessedIndices: processed,
		TotalChunks:      total,
		IndexName:        ing.store.IndexName(),
		Timestamp:        float64(time.Now().UnixNano()) / 1e9,
	}
	if ns := ing.store.Namespace(); ns != "" {
		checkpoint.Namespace = &ns
	}
	if err := ing.checkpoints.Save(checkpoint); err != nil {
		log.Errorf("[Ingester] failed to save checkpoint: %v", err)
		return
	}
	log.Infof("[Ingester] checkpoint saved, %d/%d chunks processed", len(processed), total)
}

func (ing *Ingester) sleepBetweenBatches(ctx context.Context) error {
	timer := time.NewTimer(ing.pause)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// sanitizeMetadata keeps primitive values, stringifies everything else and
// drops nils, matching what the vector store accepts. List elements are
// stringified individually when not primitive.
func sanitizeMetadata(metadata map[string]any) map[string]any {
	clean := make(map[string]any, len(metadata)+3)
	for key, value := range metadata {
		switch v := value.(type) {
		case nil:
			continue
		case string, bool, int, int32, int64, float32, float64:
			clean[key] = v
		case []string:
			clean[key] = v
		case []any:
			items := make([]any, len(v))
			for i, item := range v {
				switch item.(type) {
				case string, bool, int, int32, int64, float32, float64:
					items[i] = item
				default:
					items[i] = fmt.Sprintf("%v", item)
				}
			}
			clean[key] = items
		default:
			clean[key] = fmt.Sprintf("%v", v)
		}
	}
	return clean
}

func displayNamespace(namespace string) string {
	if namespace == "" {
		return "default"
	}
	return namespace
}
