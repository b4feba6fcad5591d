// Package vectorstore stores and searches embedding vectors behind a common
// interface. Three backends exist: the Pinecone REST API, an Elasticsearch
// index and an in-memory store for local runs and tests.
package vectorstore

import (
	"context"
	"fmt"

	"biobyia-go/internal/config"
	"biobyia-go/internal/model"
	"biobyia-go/pkg/log"
)

// Record is one vector with its identifier and metadata, as accepted by the
// upsert operation. Upserting a record replaces any prior record with the
// same ID.
type Record struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// QueryRequest is a similarity search. Filter values use the comparator
// operator form, for example {"year": {"$eq": "2020"}}.
type QueryRequest struct {
	Vector []float32
	TopK   int
	Filter map[string]any
}

// Match is one similarity search hit, ordered by descending score.
type Match struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

// Store is a vector index scoped to one index name and namespace.
type Store interface {
	Upsert(ctx context.Context, records []Record) error
	Query(ctx context.Context, req QueryRequest) ([]Match, error)
	// DeleteAll removes every vector in the store's namespace.
	DeleteAll(ctx context.Context) error
	// Dimension reports the index vector size, or 0 when unknown.
	Dimension(ctx context.Context) (int, error)
	IndexName() string
	Namespace() string
	// Name identifies the backend, such as "pinecone".
	Name() string
}

// NewStore picks a backend by priority: an explicit vector.driver wins,
// otherwise a Pinecone API key, otherwise Elasticsearch addresses. With
// none of those configured construction fails.
func NewStore(cfg *config.Config) (Store, error) {
	driver := cfg.Vector.Driver
	if driver == "" {
		switch {
		case cfg.Vector.APIKey != "":
			driver = "pinecone"
		case cfg.Elasticsearch.Addresses != "":
			driver = "elastic"
		default:
			return nil, model.NewConfigurationError("vector.driver",
				"no vector store configured: set vector.api_key, elasticsearch.addresses or vector.driver")
		}
	}

	var store Store
	var err error
	switch driver {
	case "pinecone":
		store, err = newPineconeStore(cfg.Vector)
	case "elastic", "elasticsearch":
		store, err = newElasticStore(cfg.Elasticsearch, cfg.Vector, cfg.Embedding.Dimensions)
	case "memory":
		store = newMemoryStore(cfg.Vector)
	default:
		return nil, model.NewConfigurationError("vector.driver", fmt.Sprintf("unknown driver %q", driver))
	}
	if err != nil {
		return nil, err
	}

	log.Infof("[VectorStore] backend selected: %s, index: %s, namespace: %s",
		store.Name(), store.IndexName(), displayNamespace(store.Namespace()))
	return store, nil
}

func displayNamespace(namespace string) string {
	if namespace == "" {
		return "default"
	}
	return namespace
}
