package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"biobyia-go/pkg/log"
)

// Checkpoint records ingestion progress for one index and namespace so an
// interrupted run can resume. A checkpoint is only trusted when index name,
// namespace and total chunk count all match the current run.
type Checkpoint struct {
	ProcessedIndices []int   `json:"processed_indices"`
	TotalChunks      int     `json:"total_chunks"`
	IndexName        string  `json:"index_name"`
	Namespace        *string `json:"namespace"`
	Timestamp        float64 `json:"timestamp"`
}

// Matches reports whether the checkpoint belongs to the run identified by
// the three discriminating fields. A mismatch on any of them means the
// checkpoint must be discarded whole.
func (c *Checkpoint) Matches(indexName, namespace string, totalChunks int) bool {
	if c.IndexName != indexName || c.TotalChunks != totalChunks {
		return false
	}
	checkpointNS := ""
	if c.Namespace != nil {
		checkpointNS = *c.Namespace
	}
	return checkpointNS == namespace
}

// NextIndex returns the first chunk index that still needs processing.
func (c *Checkpoint) NextIndex() int {
	next := 0
	for _, idx := range c.ProcessedIndices {
		if idx+1 > next {
			next = idx + 1
		}
	}
	return next
}

// CheckpointStore persists checkpoints as JSON files, one per index and
// namespace pair.
type CheckpointStore struct {
	dir string
}

func NewCheckpointStore(dir string) *CheckpointStore {
	return &CheckpointStore{dir: dir}
}

func (cs *CheckpointStore) path(indexName, namespace string) string {
	if namespace == "" {
		namespace = "default"
	}
	return filepath.Join(cs.dir, fmt.Sprintf("ingestion_checkpoint_%s_%s.json", indexName, namespace))
}

// Load reads the checkpoint for the given index and namespace. A missing or
// unreadable file yields nil without an error; a stale checkpoint is the
// caller's problem to validate via Matches.
func (cs *CheckpointStore) Load(indexName, namespace string) *Checkpoint {
	path := cs.path(indexName, namespace)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warnf("[Checkpoint] failed to read %s: %v", path, err)
		}
		return nil
	}

	var checkpoint Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		log.Warnf("[Checkpoint] discarding corrupt checkpoint %s: %v", path, err)
		return nil
	}
	return &checkpoint
}

// Save writes the checkpoint to disk, creating the directory when needed.
func (cs *CheckpointStore) Save(checkpoint *Checkpoint) error {
	if err := os.MkdirAll(cs.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create checkpoint dir: %w", err)
	}

	namespace := ""
	if checkpoint.Namespace != nil {
		namespace = *checkpoint.Namespace
	}
	data, err := json.Marshal(checkpoint)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	if err := os.WriteFile(cs.path(checkpoint.IndexName, namespace), data, 0o644); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	return nil
}

// Delete removes the checkpoint file. Deleting a missing file is not an
// error.
func (cs *CheckpointStore) Delete(indexName, namespace string) error {
	err := os.Remove(cs.path(indexName, namespace))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}
