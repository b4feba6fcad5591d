package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"biobyia-go/internal/pipeline"
	"biobyia-go/internal/service"
	"biobyia-go/pkg/database"
	"biobyia-go/pkg/kafka"
	"biobyia-go/pkg/storage"
	"biobyia-go/pkg/tika"

	"github.com/spf13/cobra"
)

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Run the document ingestion worker",
	Long: `Consumes document tasks from Kafka and processes each one: download
from MinIO, extract text through Tika, anonymize, chunk, embed and
upsert into the vector store. Redis tracks per-message attempts so a
poisonous document is dropped after three failures.`,
	RunE: runConsume,
}

func init() {
	rootCmd.AddCommand(consumeCmd)
}

func runConsume(cmd *cobra.Command, args []string) error {
	redisClient, err := database.InitRedis(cfg.Database.Redis)
	if err != nil {
		return err
	}
	storageClient, err := storage.New(cfg.MinIO)
	if err != nil {
		return err
	}
	embedder, store, err := buildClients()
	if err != nil {
		return err
	}
	ingestService, err := service.NewIngestService(embedder, store, openRunRepository(), cfg)
	if err != nil {
		return err
	}

	processor := pipeline.NewProcessor(storageClient, tika.NewClient(cfg.Tika), ingestService)
	consumer := kafka.NewConsumer(cfg.Kafka, redisClient)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := consumer.Run(ctx, processor); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
