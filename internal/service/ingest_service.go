package service

import (
	"context"
	"fmt"
	"time"

	"biobyia-go/internal/config"
	"biobyia-go/internal/dataset"
	"biobyia-go/internal/model"
	"biobyia-go/internal/pipeline"
	"biobyia-go/internal/repository"
	"biobyia-go/internal/splitter"
	"biobyia-go/pkg/embedding"
	"biobyia-go/pkg/log"
	"biobyia-go/pkg/vectorstore"
)

// minDocumentRunes is the shortest document text worth embedding. Shorter
// entries carry no usable context and are dropped before chunking.
const minDocumentRunes = 50

// IngestService runs the full corpus preparation pipeline: load, anonymize,
// chunk, embed and write vectors.
type IngestService interface {
	IngestFile(ctx context.Context, path string, resume bool, onProgress func(pipeline.Progress)) (*pipeline.Report, error)
	IngestDataset(ctx context.Context, ds dataset.Dataset, source string, resume bool, onProgress func(pipeline.Progress)) (*pipeline.Report, error)
	IngestDocuments(ctx context.Context, docs []model.Document, source string, resume bool, onProgress func(pipeline.Progress)) (*pipeline.Report, error)
	Purge(ctx context.Context) error
}

type ingestService struct {
	embeddingClient embedding.Client
	store           vectorstore.Store
	runRepo         repository.RunRepository
	cfg             *config.Config
	builder         *dataset.Builder
	split           *splitter.Splitter
}

// NewIngestService creates a new IngestService instance. runRepo may be nil
// when no database is configured; run history is then skipped.
func NewIngestService(embeddingClient embedding.Client, store vectorstore.Store, runRepo repository.RunRepository, cfg *config.Config) (IngestService, error) {
	split, err := splitter.New(cfg.Ingestion.ChunkSize, cfg.Ingestion.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	return &ingestService{
		embeddingClient: embeddingClient,
		store:           store,
		runRepo:         runRepo,
		cfg:             cfg,
		builder:         dataset.NewBuilder(true),
		split:           split,
	}, nil
}

// IngestFile loads a PubMedQA-style JSON file and ingests every valid entry.
func (s *ingestService) IngestFile(ctx context.Context, path string, resume bool, onProgress func(pipeline.Progress)) (*pipeline.Report, error) {
	log.Infof("[IngestService] starting ingestion, source: %s, resume: %v", path, resume)

	log.Info("[IngestService] step 1: loading dataset")
	ds, err := dataset.Load(path)
	if err != nil {
		log.Errorf("[IngestService] failed to load dataset: %v", err)
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}

	return s.IngestDataset(ctx, ds, path, resume, onProgress)
}

// IngestDataset validates a loaded dataset, builds anonymized documents and
// writes their vectors. Callers holding a dataset from another source, such
// as an object fetched from MinIO, enter here.
func (s *ingestService) IngestDataset(ctx context.Context, ds dataset.Dataset, source string, resume bool, onProgress func(pipeline.Progress)) (*pipeline.Report, error) {
	log.Info("[IngestService] step 2: validating dataset")
	valid, warnings := ds.Validate()
	for _, warning := range warnings {
		log.Warnf("[IngestService] dataset validation: %s", warning)
	}
	if !valid && len(ds) == 0 {
		return nil, model.NewValidationError("ingest", "dataset is empty")
	}

	log.Info("[IngestService] step 3: building anonymized documents")
	docs := s.builder.BuildBatch(ds)
	docs = dataset.FilterValid(docs, minDocumentRunes)
	if len(docs) == 0 {
		return nil, model.NewValidationError("ingest", "no valid documents after filtering")
	}
	log.Infof("[IngestService] step 3: built %d documents", len(docs))

	return s.IngestDocuments(ctx, docs, source, resume, onProgress)
}

// IngestDocuments chunks the given documents and writes their vectors. It is
// the entry point for callers that already hold built documents, such as the
// Kafka worker.
func (s *ingestService) IngestDocuments(ctx context.Context, docs []model.Document, source string, resume bool, onProgress func(pipeline.Progress)) (*pipeline.Report, error) {
	log.Infof("[IngestService] step 4: chunking %d documents", len(docs))
	chunks := s.split.SplitBatch(docs)
	log.Infof("[IngestService] step 4: produced %d chunks", len(chunks))

	opts := []pipeline.IngesterOption{}
	if onProgress != nil {
		opts = append(opts, pipeline.WithProgress(onProgress))
	}
	checkpoints := pipeline.NewCheckpointStore(s.cfg.Ingestion.CheckpointDir)
	ingester := pipeline.NewIngester(s.embeddingClient, s.store, checkpoints, s.cfg.Ingestion, opts...)

	log.Info("[IngestService] step 5: writing vectors")
	startedAt := time.Now()
	report, err := ingester.Ingest(ctx, chunks, resume)
	if report != nil {
		s.recordRun(source, report, startedAt)
	}
	if err != nil {
		return report, err
	}

	log.Infof("[IngestService] ingestion finished, vectors written: %d, errors: %d", report.VectorsWritten, len(report.Errors))
	return report, nil
}

// Purge removes every vector from the configured index and namespace.
func (s *ingestService) Purge(ctx context.Context) error {
	log.Warnf("[IngestService] purging all vectors, index: %s", s.store.IndexName())
	if err := s.store.DeleteAll(ctx); err != nil {
		return fmt.Errorf("failed to purge vectors: %w", err)
	}
	log.Info("[IngestService] purge finished")
	return nil
}

// recordRun writes one history row for this run. Failures are logged and
// swallowed so a missing database never fails an ingestion.
func (s *ingestService) recordRun(source string, report *pipeline.Report, startedAt time.Time) {
	if s.runRepo == nil {
		return
	}
	run := &model.IngestionRun{
		Source:         source,
		IndexName:      s.store.IndexName(),
		Namespace:      s.store.Namespace(),
		TotalChunks:    report.TotalChunks,
		VectorsWritten: report.VectorsWritten,
		Batches:        report.Batches,
		ErrorCount:     len(report.Errors),
		Interrupted:    report.Interrupted,
		StartedAt:      model.LocalTime(startedAt),
		FinishedAt:     model.Now(),
	}
	if err := s.runRepo.Create(run); err != nil {
		log.Warnf("[IngestService] failed to record ingestion run: %v", err)
	}
}
