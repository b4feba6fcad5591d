package vectorstore

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"biobyia-go/internal/config"
	"biobyia-go/internal/model"
	"biobyia-go/pkg/log"
)

const defaultElasticDims = 768

// elasticStore keeps vectors in one Elasticsearch index. Namespaces are
// emulated with a keyword field on every document.
type elasticStore struct {
	client    *elasticsearch.Client
	indexName string
	namespace string
	dims      int
}

func newElasticStore(esCfg config.ElasticsearchConfig, vecCfg config.VectorConfig, dims int) (*elasticStore, error) {
	if esCfg.Addresses == "" {
		return nil, model.NewConfigurationError("elasticsearch.addresses", "missing addresses for the Elasticsearch backend")
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{esCfg.Addresses},
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	indexName := vecCfg.IndexName
	if indexName == "" {
		indexName = esCfg.IndexName
	}
	if dims <= 0 {
		dims = defaultElasticDims
	}

	store := &elasticStore{
		client:    client,
		indexName: indexName,
		namespace: vecCfg.Namespace,
		dims:      dims,
	}
	if err := store.createIndexIfNotExists(context.Background()); err != nil {
		return nil, err
	}
	return store, nil
}

// createIndexIfNotExists checks for the index and creates it with a
// dense_vector mapping when absent.
func (s *elasticStore) createIndexIfNotExists(ctx context.Context) error {
	res, err := s.client.Indices.Exists([]string{s.indexName}, s.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		log.Errorf("[VectorStore] failed to check index existence: %v", err)
		return err
	}
	defer res.Body.Close()

	if !res.IsError() && res.StatusCode == http.StatusOK {
		log.Infof("[VectorStore] index '%s' already exists", s.indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("unexpected status %d while checking index existence", res.StatusCode)
	}

	mapping := fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"vector_id": { "type": "keyword" },
				"namespace": { "type": "keyword" },
				"text": { "type": "text" },
				"metadata": { "type": "flattened" },
				"vector": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				}
			}
		}
	}`, s.dims)

	createRes, err := s.client.Indices.Create(
		s.indexName,
		s.client.Indices.Create.WithContext(ctx),
		s.client.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		log.Errorf("[VectorStore] failed to create index '%s': %v", s.indexName, err)
		return err
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		log.Errorf("[VectorStore] elasticsearch returned an error creating index '%s': %s", s.indexName, createRes.String())
		return errors.New("failed to create elasticsearch index")
	}

	log.Infof("[VectorStore] index '%s' created with %d dims", s.indexName, s.dims)
	return nil
}

type elasticDocument struct {
	VectorID  string         `json:"vector_id"`
	Namespace string         `json:"namespace,omitempty"`
	Text      string         `json:"text,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Vector    []float32      `json:"vector"`
}

func (s *elasticStore) Upsert(ctx context.Context, records []Record) error {
	for _, record := range records {
		text, _ := record.Metadata["text"].(string)
		doc := elasticDocument{
			VectorID:  record.ID,
			Namespace: s.namespace,
			Text:      text,
			Metadata:  record.Metadata,
			Vector:    record.Values,
		}
		docBytes, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to marshal document %s: %w", record.ID, err)
		}

		req := esapi.IndexRequest{
			Index:      s.indexName,
			DocumentID: record.ID,
			Body:       bytes.NewReader(docBytes),
			Refresh:    "true",
		}
		res, err := req.Do(ctx, s.client)
		if err != nil {
			return fmt.Errorf("failed to index document %s: %w", record.ID, err)
		}
		res.Body.Close()
		if res.IsError() {
			return fmt.Errorf("elasticsearch rejected document %s: %s", record.ID, res.String())
		}
	}
	return nil
}

func (s *elasticStore) Query(ctx context.Context, req QueryRequest) ([]Match, error) {
	knn := map[string]any{
		"field":          "vector",
		"query_vector":   req.Vector,
		"k":              req.TopK,
		"num_candidates": req.TopK * 10,
	}
	if filters := s.translateFilter(req.Filter); len(filters) > 0 {
		knn["filter"] = map[string]any{"bool": map[string]any{"filter": filters}}
	}
	esQuery := map[string]any{
		"knn":  knn,
		"size": req.TopK,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.indexName),
		s.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch returned an error: %s", string(bodyBytes))
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source elasticDocument `json:"_source"`
				Score  float64         `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("failed to decode es response: %w", err)
	}

	matches := make([]Match, 0, len(esResponse.Hits.Hits))
	for _, hit := range esResponse.Hits.Hits {
		matches = append(matches, Match{
			ID:       hit.Source.VectorID,
			Score:    hit.Score,
			Metadata: hit.Source.Metadata,
		})
	}
	return matches, nil
}

// translateFilter maps comparator operators onto Elasticsearch bool clauses.
// The namespace term is always included when one is configured.
func (s *elasticStore) translateFilter(filter map[string]any) []map[string]any {
	clauses := make([]map[string]any, 0, len(filter)+1)
	if s.namespace != "" {
		clauses = append(clauses, map[string]any{"term": map[string]any{"namespace": s.namespace}})
	}
	for field, raw := range filter {
		esField := "metadata." + field
		ops, ok := raw.(map[string]any)
		if !ok {
			clauses = append(clauses, map[string]any{"term": map[string]any{esField: raw}})
			continue
		}
		for op, value := range ops {
			switch op {
			case "$eq":
				clauses = append(clauses, map[string]any{"term": map[string]any{esField: value}})
			case "$ne":
				clauses = append(clauses, map[string]any{
					"bool": map[string]any{"must_not": map[string]any{"term": map[string]any{esField: value}}},
				})
			case "$in":
				clauses = append(clauses, map[string]any{"terms": map[string]any{esField: value}})
			case "$gt", "$gte", "$lt", "$lte":
				clauses = append(clauses, map[string]any{
					"range": map[string]any{esField: map[string]any{strings.TrimPrefix(op, "$"): value}},
				})
			default:
				log.Warnf("[VectorStore] ignoring unsupported filter operator %q on %q", op, field)
			}
		}
	}
	return clauses
}

func (s *elasticStore) DeleteAll(ctx context.Context) error {
	query := `{"query":{"match_all":{}}}`
	if s.namespace != "" {
		query = fmt.Sprintf(`{"query":{"term":{"namespace":%q}}}`, s.namespace)
	}

	res, err := s.client.DeleteByQuery(
		[]string{s.indexName},
		strings.NewReader(query),
		s.client.DeleteByQuery.WithContext(ctx),
		s.client.DeleteByQuery.WithRefresh(true),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch delete by query failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch returned an error: %s", res.String())
	}
	return nil
}

func (s *elasticStore) Dimension(ctx context.Context) (int, error) {
	return s.dims, nil
}

func (s *elasticStore) IndexName() string { return s.indexName }

func (s *elasticStore) Namespace() string { return s.namespace }

func (s *elasticStore) Name() string { return "elastic" }
