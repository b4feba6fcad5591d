package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"biobyia-go/internal/dataset"
	"biobyia-go/internal/pipeline"
	"biobyia-go/internal/service"
	"biobyia-go/pkg/log"
	"biobyia-go/pkg/storage"

	"github.com/spf13/cobra"
)

var (
	ingestResume     bool
	ingestBatchSize  int
	ingestNamespace  string
	ingestFromObject bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [dataset.json]",
	Short: "Chunk, embed and write a PubMedQA-style corpus into the vector store",
	Long: `Loads a PubMedQA-style JSON corpus, anonymizes and chunks every entry,
embeds the chunks and upserts them into the configured vector store in
batches. Progress is checkpointed; an interrupted run resumes where it
stopped when invoked again with --resume (the default).`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestResume, "resume", true, "resume from the last checkpoint when one matches")
	ingestCmd.Flags().IntVar(&ingestBatchSize, "batch-size", 0, "override the configured batch size")
	ingestCmd.Flags().StringVar(&ingestNamespace, "namespace", "", "override the configured namespace")
	ingestCmd.Flags().BoolVar(&ingestFromObject, "object", false, "treat the argument as an object name in the configured MinIO bucket")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestBatchSize > 0 {
		cfg.Ingestion.BatchSize = ingestBatchSize
	}
	if ingestNamespace != "" {
		cfg.Vector.Namespace = ingestNamespace
	}

	embedder, store, err := buildClients()
	if err != nil {
		return err
	}
	ingestService, err := service.NewIngestService(embedder, store, openRunRepository(), cfg)
	if err != nil {
		return err
	}

	// SIGINT lands as a context cancellation inside the pipeline, which
	// saves a checkpoint before returning.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	onProgress := func(p pipeline.Progress) {
		log.Infof("progress: batch %d/%d, chunks %d/%d, vectors %d, errors %d",
			p.Batch, p.TotalBatches, p.ChunksDone, p.TotalChunks, p.VectorsWritten, p.ErrorCount)
	}

	var report *pipeline.Report
	if ingestFromObject {
		storageClient, serr := storage.New(cfg.MinIO)
		if serr != nil {
			return serr
		}
		ds, derr := dataset.LoadFromStorage(ctx, storageClient, args[0])
		if derr != nil {
			return derr
		}
		report, err = ingestService.IngestDataset(ctx, ds, "minio:"+args[0], ingestResume, onProgress)
	} else {
		report, err = ingestService.IngestFile(ctx, args[0], ingestResume, onProgress)
	}

	if report != nil && report.Interrupted {
		fmt.Println("\nIngestion interrupted, progress checkpoint saved.")
		fmt.Printf("Run the same command again to resume:\n  biobyia ingest %s --config %s\n", args[0], cfgPath)
		return nil
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	fmt.Println("\nIngestion complete")
	fmt.Printf("  chunks:   %d\n", report.TotalChunks)
	fmt.Printf("  vectors:  %d\n", report.VectorsWritten)
	fmt.Printf("  batches:  %d\n", report.Batches)
	fmt.Printf("  errors:   %d\n", len(report.Errors))
	for _, msg := range report.Errors {
		fmt.Printf("    - %s\n", msg)
	}
	return nil
}
