package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"biobyia-go/internal/handler"
	"biobyia-go/internal/middleware"
	"biobyia-go/internal/service"
	"biobyia-go/pkg/kafka"
	"biobyia-go/pkg/llm"
	"biobyia-go/pkg/log"
	"biobyia-go/pkg/storage"
	"biobyia-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Starts the authenticated HTTP API: retrieval queries, question
answering, asynchronous ingestion runs with websocket progress, document
uploads and run history.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	embedder, store, err := buildClients()
	if err != nil {
		return err
	}
	runRepo := openRunRepository()

	queryService := service.NewQueryService(embedder, store, cfg.Query)
	ingestService, err := service.NewIngestService(embedder, store, runRepo, cfg)
	if err != nil {
		return err
	}
	answerService := service.NewAnswerService(queryService, llm.NewClient(cfg.LLM))
	runManager := service.NewRunManager()
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.TokenExpireHours)

	// The upload path needs both the object store and the task queue; with
	// either missing the endpoint is simply not registered.
	var storageClient *storage.Client
	if cfg.MinIO.Endpoint != "" {
		storageClient, err = storage.New(cfg.MinIO)
		if err != nil {
			return err
		}
	}
	var documentHandler *handler.DocumentHandler
	if storageClient != nil && cfg.Kafka.Brokers != "" {
		producer := kafka.NewProducer(cfg.Kafka)
		defer func() {
			if cerr := producer.Close(); cerr != nil {
				log.Warnf("failed to close kafka producer: %v", cerr)
			}
		}()
		documentHandler = handler.NewDocumentHandler(storageClient, producer)
	} else {
		log.Info("document uploads disabled, minio or kafka not configured")
	}

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiV1 := r.Group("/api/v1")
	apiV1.POST("/auth/token", handler.NewAuthHandler(jwtManager, cfg.API).Token)

	authed := apiV1.Group("/")
	authed.Use(middleware.AuthMiddleware(jwtManager))
	{
		authed.POST("/query", handler.NewQueryHandler(queryService).Query)
		authed.POST("/ask", handler.NewAskHandler(answerService).Ask)

		ingestHandler := handler.NewIngestHandler(ingestService, runManager, runRepo, storageClient)
		authed.POST("/ingest", ingestHandler.Ingest)
		authed.GET("/ingest", ingestHandler.ListRuns)
		authed.GET("/ingest/:id", ingestHandler.GetRun)
		authed.POST("/ingest/:id/cancel", ingestHandler.CancelRun)
		authed.GET("/ingest/:id/ws", ingestHandler.RunProgress)
		authed.GET("/runs", ingestHandler.RunHistory)

		if documentHandler != nil {
			authed.POST("/documents", documentHandler.Upload)
		}
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("HTTP API listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutdown signal received, stopping server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Info("server stopped")
	return nil
}
