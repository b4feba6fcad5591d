package main

import (
	"fmt"

	"biobyia-go/internal/config"
	"biobyia-go/internal/model"
	"biobyia-go/internal/repository"
	"biobyia-go/pkg/database"
	"biobyia-go/pkg/embedding"
	"biobyia-go/pkg/log"
	"biobyia-go/pkg/vectorstore"

	"github.com/spf13/cobra"
)

var (
	cfgPath string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "biobyia",
	Short: "Biomedical QA corpus preparation and retrieval",
	Long: `biobyia prepares a biomedical question-answering corpus for RAG and
fine-tuning: it anonymizes, chunks, embeds and writes documents into a
vector store with resumable checkpointed batches, serves similarity
queries over the result and exports instruction-tuning datasets.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("failed to load config %s: %w", cfgPath, err)
		}
		cfg = loaded
		log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "configs/config.yaml", "path to the configuration file")
}

// buildClients constructs the embedding client and the vector store from the
// loaded configuration. Every command that touches vectors goes through it.
func buildClients() (embedding.Client, vectorstore.Store, error) {
	embedder, err := embedding.NewClient(cfg.Embedding)
	if err != nil {
		return nil, nil, err
	}
	store, err := vectorstore.NewStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	return embedder, store, nil
}

// openRunRepository opens the MySQL-backed run history. History is best
// effort: with no DSN configured, or a failed connection, it returns nil and
// the caller proceeds without history.
func openRunRepository() repository.RunRepository {
	if cfg.Database.MySQL.DSN == "" {
		log.Info("run history disabled, no database.mysql.dsn configured")
		return nil
	}
	db, err := database.InitMySQL(cfg.Database.MySQL)
	if err != nil {
		log.Warnf("run history disabled, cannot connect to MySQL: %v", err)
		return nil
	}
	if err := db.AutoMigrate(&model.IngestionRun{}); err != nil {
		log.Warnf("run history disabled, migration failed: %v", err)
		return nil
	}
	return repository.NewRunRepository(db)
}
