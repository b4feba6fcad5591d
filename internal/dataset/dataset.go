// Package dataset loads the PubMedQA-style corpus file and turns its
// entries into documents ready for chunking and ingestion.
package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"biobyia-go/pkg/log"
	"biobyia-go/pkg/storage"
)

// Entry is one record of the corpus file, keyed by article id in the
// top-level JSON object.
type Entry struct {
	Question              string   `json:"QUESTION"`
	Contexts              []string `json:"CONTEXTS"`
	LongAnswer            string   `json:"LONG_ANSWER"`
	Meshes                []string `json:"MESHES"`
	Year                  string   `json:"YEAR"`
	Labels                []string `json:"LABELS"`
	FinalDecision         string   `json:"final_decision"`
	ReasoningRequiredPred string   `json:"reasoning_required_pred"`
}

// Dataset maps article ids to their entries.
type Dataset map[string]Entry

// Load reads the corpus JSON file. The first entry is inspected for the
// expected fields and a warning is logged when any are absent, but loading
// still succeeds.
func Load(path string) (Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset file %s: %w", path, err)
	}
	return Decode(data, path)
}

// LoadFromStorage reads the corpus object from the object store, letting
// ingestion consume corpora published to MinIO instead of the local disk.
func LoadFromStorage(ctx context.Context, client *storage.Client, objectName string) (Dataset, error) {
	data, err := client.GetObject(ctx, objectName)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset object %s: %w", objectName, err)
	}
	return Decode(data, objectName)
}

// Decode parses raw corpus JSON. source only labels log lines and errors.
func Decode(data []byte, source string) (Dataset, error) {
	var ds Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("failed to decode dataset %s: %w", source, err)
	}

	if len(ds) > 0 {
		warnOnMissingFields(ds)
	}
	log.Infof("[Dataset] loaded %d entries from %s", len(ds), source)
	return ds, nil
}

func warnOnMissingFields(ds Dataset) {
	sample := ds[ds.SortedIDs()[0]]
	missing := make([]string, 0, 4)
	if sample.Question == "" {
		missing = append(missing, "QUESTION")
	}
	if len(sample.Contexts) == 0 {
		missing = append(missing, "CONTEXTS")
	}
	if sample.LongAnswer == "" {
		missing = append(missing, "LONG_ANSWER")
	}
	if len(sample.Meshes) == 0 {
		missing = append(missing, "MESHES")
	}
	if len(missing) > 0 {
		log.Warnf("[Dataset] expected fields absent from the first entry: %v", missing)
	}
}

// Validate checks field coverage across the dataset. It returns false with
// a warning per field populated in less than 90%% of the entries, and false
// for an empty dataset.
func (d Dataset) Validate() (bool, []string) {
	if len(d) == 0 {
		return false, []string{"dataset is empty"}
	}

	total := len(d)
	withQuestion, withContexts, withAnswer := 0, 0, 0
	for _, entry := range d {
		if entry.Question != "" {
			withQuestion++
		}
		if len(entry.Contexts) > 0 {
			withContexts++
		}
		if entry.LongAnswer != "" {
			withAnswer++
		}
	}

	threshold := float64(total) * 0.9
	var warnings []string
	if float64(withQuestion) < threshold {
		warnings = append(warnings, fmt.Sprintf("only %d/%d entries have QUESTION", withQuestion, total))
	}
	if float64(withContexts) < threshold {
		warnings = append(warnings, fmt.Sprintf("only %d/%d entries have CONTEXTS", withContexts, total))
	}
	if float64(withAnswer) < threshold {
		warnings = append(warnings, fmt.Sprintf("only %d/%d entries have LONG_ANSWER", withAnswer, total))
	}
	return len(warnings) == 0, warnings
}

// Stats summarizes the dataset for the stats command.
type Stats struct {
	TotalEntries        int     `json:"total_entries"`
	WithQuestion        int     `json:"entries_with_question"`
	WithContexts        int     `json:"entries_with_contexts"`
	WithAnswer          int     `json:"entries_with_answer"`
	AvgContextsPerEntry float64 `json:"avg_contexts_per_entry"`
	AvgAnswerLength     float64 `json:"avg_answer_length"`
}

// Stats computes coverage counts and averages over the dataset.
func (d Dataset) Stats() Stats {
	stats := Stats{TotalEntries: len(d)}
	totalContexts := 0
	totalAnswerLength := 0
	for _, entry := range d {
		if entry.Question != "" {
			stats.WithQuestion++
		}
		if len(entry.Contexts) > 0 {
			stats.WithContexts++
			totalContexts += len(entry.Contexts)
		}
		if entry.LongAnswer != "" {
			stats.WithAnswer++
			totalAnswerLength += len(entry.LongAnswer)
		}
	}
	if stats.WithContexts > 0 {
		stats.AvgContextsPerEntry = float64(totalContexts) / float64(stats.WithContexts)
	}
	if stats.WithAnswer > 0 {
		stats.AvgAnswerLength = float64(totalAnswerLength) / float64(stats.WithAnswer)
	}
	return stats
}

// SortedIDs returns the article ids in lexical order so batch processing is
// deterministic.
func (d Dataset) SortedIDs() []string {
	ids := make([]string, 0, len(d))
	for id := range d {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
