package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"biobyia-go/internal/config"
	"biobyia-go/internal/model"
	"biobyia-go/internal/pipeline"
	"biobyia-go/internal/repository"
	"biobyia-go/pkg/vectorstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunRepo struct {
	runs []model.IngestionRun
	err  error
}

func (f *fakeRunRepo) Create(run *model.IngestionRun) error {
	if f.err != nil {
		return f.err
	}
	f.runs = append(f.runs, *run)
	return nil
}

func (f *fakeRunRepo) FindRecent(limit int) ([]model.IngestionRun, error) {
	return f.runs, nil
}

func (f *fakeRunRepo) FindByIndex(indexName string, limit int) ([]model.IngestionRun, error) {
	return f.runs, nil
}

const ingestSampleJSON = `{
	"21645374": {
		"QUESTION": "Do mitochondria play a role in remodelling lace plant leaves during programmed cell death?",
		"CONTEXTS": [
			"Programmed cell death is the regulated death of cells within an organism and occurs in lace plant leaves.",
			"The role of mitochondrial dynamics during remodelling was examined in vivo using single leaf cultures."
		],
		"LONG_ANSWER": "The results depicted mitochondrial dynamics in vivo and suggest mitochondria play a critical and early role in cell death.",
		"MESHES": ["Apoptosis", "Mitochondria"],
		"YEAR": "2011",
		"final_decision": "yes"
	},
	"21699651": {
		"QUESTION": "Does landolt C and snellen e acuity measurement differ in strabismic amblyopes?",
		"CONTEXTS": [
			"Assessment of visual acuity depends on the optotypes used for measurement, and the acuity differs systematically between charts."
		],
		"LONG_ANSWER": "Using the charts described, there was only a slight overestimation of visual acuity compared to the standard.",
		"MESHES": ["Amblyopia", "Vision Tests"],
		"YEAR": "2011",
		"final_decision": "no"
	}
}`

func writeIngestSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ori_pqal.json")
	require.NoError(t, os.WriteFile(path, []byte(ingestSampleJSON), 0o644))
	return path
}

func newTestIngestService(t *testing.T, runRepo *fakeRunRepo) (IngestService, vectorstore.Store, *fakeEmbedder) {
	t.Helper()
	cfg := &config.Config{
		Vector: config.VectorConfig{Driver: "memory", IndexName: "biobyia"},
		Ingestion: config.IngestionConfig{
			ChunkSize:       200,
			ChunkOverlap:    20,
			BatchSize:       3,
			CheckpointDir:   t.TempDir(),
			CheckpointEvery: 2,
		},
	}
	store, err := vectorstore.NewStore(cfg)
	require.NoError(t, err)

	embedder := &fakeEmbedder{vector: []float32{0.1, 0.2, 0.3}}
	var repo repository.RunRepository
	if runRepo != nil {
		repo = runRepo
	}
	svc, err := NewIngestService(embedder, store, repo, cfg)
	require.NoError(t, err)
	return svc, store, embedder
}

func TestIngestFileEndToEnd(t *testing.T) {
	runRepo := &fakeRunRepo{}
	svc, store, _ := newTestIngestService(t, runRepo)
	path := writeIngestSample(t)

	var updates []pipeline.Progress
	report, err := svc.IngestFile(context.Background(), path, false, func(p pipeline.Progress) {
		updates = append(updates, p)
	})
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Positive(t, report.TotalChunks)
	assert.Equal(t, report.TotalChunks, report.VectorsWritten)
	assert.Empty(t, report.Errors)
	assert.False(t, report.Interrupted)
	assert.NotEmpty(t, updates)
	assert.Equal(t, report.TotalChunks, updates[len(updates)-1].ChunksDone)

	matches, err := store.Query(context.Background(), vectorstore.QueryRequest{
		Vector: []float32{0.1, 0.2, 0.3},
		TopK:   100,
	})
	require.NoError(t, err)
	assert.Len(t, matches, report.VectorsWritten)

	require.Len(t, runRepo.runs, 1)
	run := runRepo.runs[0]
	assert.Equal(t, path, run.Source)
	assert.Equal(t, "biobyia", run.IndexName)
	assert.Equal(t, report.VectorsWritten, run.VectorsWritten)
	assert.Equal(t, report.Batches, run.Batches)
	assert.False(t, run.Interrupted)
}

func TestIngestFileAnonymizesBeforeWrite(t *testing.T) {
	svc, store, _ := newTestIngestService(t, nil)
	path := filepath.Join(t.TempDir(), "data.json")
	sample := `{
		"1": {
			"QUESTION": "What was recorded for Paciente ID: 4421 during the study?",
			"CONTEXTS": ["The patient identified as Paciente ID: 4421 was admitted on 12/05/2024 and monitored for the full study period."],
			"LONG_ANSWER": "Monitoring results were within the expected range for the cohort."
		}
	}`
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	_, err := svc.IngestFile(context.Background(), path, false, nil)
	require.NoError(t, err)

	matches, err := store.Query(context.Background(), vectorstore.QueryRequest{
		Vector: []float32{0.1, 0.2, 0.3},
		TopK:   100,
	})
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	for _, match := range matches {
		text := match.Metadata["text"].(string)
		assert.NotContains(t, text, "4421")
		assert.NotContains(t, text, "12/05/2024")
	}
}

func TestIngestFileMissingFile(t *testing.T) {
	svc, _, _ := newTestIngestService(t, nil)

	_, err := svc.IngestFile(context.Background(), "does-not-exist.json", false, nil)
	require.ErrorContains(t, err, "failed to load dataset")
}

func TestIngestFileEmptyDataset(t *testing.T) {
	svc, _, _ := newTestIngestService(t, nil)
	path := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	_, err := svc.IngestFile(context.Background(), path, false, nil)
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestIngestFileAllEntriesTooShort(t *testing.T) {
	svc, _, _ := newTestIngestService(t, nil)
	path := filepath.Join(t.TempDir(), "short.json")
	sample := `{"1": {"QUESTION": "Hm?", "CONTEXTS": ["No."], "LONG_ANSWER": "Yes."}}`
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	_, err := svc.IngestFile(context.Background(), path, false, nil)
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, err.Error(), "no valid documents")
}

func TestPurge(t *testing.T) {
	svc, store, _ := newTestIngestService(t, nil)
	path := writeIngestSample(t)

	_, err := svc.IngestFile(context.Background(), path, false, nil)
	require.NoError(t, err)

	require.NoError(t, svc.Purge(context.Background()))

	matches, err := store.Query(context.Background(), vectorstore.QueryRequest{
		Vector: []float32{0.1, 0.2, 0.3},
		TopK:   100,
	})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestRecordRunSwallowsRepositoryErrors(t *testing.T) {
	runRepo := &fakeRunRepo{err: assert.AnError}
	svc, _, _ := newTestIngestService(t, runRepo)
	path := writeIngestSample(t)

	_, err := svc.IngestFile(context.Background(), path, false, nil)
	require.NoError(t, err)
}
