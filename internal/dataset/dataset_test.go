package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"biobyia-go/internal/model"
)

const sampleJSON = `{
	"21645374": {
		"QUESTION": "Do mitochondria play a role in remodelling lace plant leaves?",
		"CONTEXTS": ["Programmed cell death is the regulated death of cells.", "The lace plant produces perforations in its leaves."],
		"LONG_ANSWER": "Results depicted mitochondrial dynamics in vivo.",
		"MESHES": ["Alismataceae", "Apoptosis"],
		"YEAR": "2011",
		"final_decision": "yes"
	},
	"10071804": {
		"QUESTION": "Is anorectal endosonography valuable?",
		"CONTEXTS": ["Anorectal endosonography was performed."],
		"LONG_ANSWER": "Endosonography provides useful information.",
		"MESHES": ["Adult", "Endosonography"],
		"YEAR": "1999",
		"LABELS": ["AIMS", "METHODS"]
	}
}`

func writeDataset(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "ori_pqal.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	ds, err := Load(writeDataset(t, sampleJSON))
	require.NoError(t, err)
	require.Len(t, ds, 2)

	entry := ds["21645374"]
	assert.Equal(t, "Do mitochondria play a role in remodelling lace plant leaves?", entry.Question)
	assert.Len(t, entry.Contexts, 2)
	assert.Equal(t, "2011", entry.Year)
	assert.Equal(t, "yes", entry.FinalDecision)
	assert.Equal(t, []string{"AIMS", "METHODS"}, ds["10071804"].Labels)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}

func TestLoadInvalidJSON(t *testing.T) {
	_, err := Load(writeDataset(t, "{broken"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	ds := Dataset{}
	for i := 0; i < 10; i++ {
		entry := Entry{
			Contexts:   []string{"some context"},
			LongAnswer: "some answer",
		}
		// Two entries lack a question, putting coverage below 90%.
		if i >= 2 {
			entry.Question = "a question?"
		}
		ds[fmt.Sprintf("id_%02d", i)] = entry
	}

	valid, warnings := ds.Validate()
	assert.False(t, valid)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "8/10 entries have QUESTION")

	for id, entry := range ds {
		entry.Question = "a question?"
		ds[id] = entry
	}
	valid, warnings = ds.Validate()
	assert.True(t, valid)
	assert.Empty(t, warnings)
}

func TestValidateEmpty(t *testing.T) {
	valid, warnings := Dataset{}.Validate()
	assert.False(t, valid)
	assert.Equal(t, []string{"dataset is empty"}, warnings)
}

func TestStats(t *testing.T) {
	ds := Dataset{
		"a": {Question: "q?", Contexts: []string{"c1", "c2"}, LongAnswer: "0123456789"},
		"b": {Question: "q?", Contexts: []string{"c1", "c2", "c3"}, LongAnswer: "01234567890123456789"},
		"c": {},
	}

	stats := ds.Stats()
	assert.Equal(t, 3, stats.TotalEntries)
	assert.Equal(t, 2, stats.WithQuestion)
	assert.Equal(t, 2, stats.WithContexts)
	assert.Equal(t, 2, stats.WithAnswer)
	assert.InDelta(t, 2.5, stats.AvgContextsPerEntry, 1e-9)
	assert.InDelta(t, 15.0, stats.AvgAnswerLength, 1e-9)
}

func TestBuildDocument(t *testing.T) {
	builder := NewBuilder(false)

	doc, err := builder.BuildDocument("21645374", Entry{
		Question:      "Do mitochondria play a role?",
		Contexts:      []string{"First context.", " Second context. "},
		LongAnswer:    "Yes, they do.",
		Meshes:        []string{"Mitochondria", "Apoptosis"},
		Year:          "2011",
		FinalDecision: "yes",
	})
	require.NoError(t, err)

	assert.Equal(t, "21645374", doc.ArticleID)
	assert.Equal(t,
		"Context: First context. Second context. "+
			"Question: Do mitochondria play a role? "+
			"Answer: Yes, they do. "+
			"Medical Terms: Mitochondria, Apoptosis",
		doc.Text)
	assert.Equal(t, "21645374", doc.Metadata["article_id"])
	assert.Equal(t, "pubmedqa", doc.Metadata["source"])
	assert.Equal(t, "medical_qa", doc.Metadata["type"])
	assert.Equal(t, "2011", doc.Metadata["year"])
	assert.Equal(t, "Mitochondria, Apoptosis", doc.Metadata["meshes"])
	assert.Equal(t, "yes", doc.Metadata["final_decision"])
	assert.NotContains(t, doc.Metadata, "labels")
}

func TestBuildDocumentAnonymizes(t *testing.T) {
	builder := NewBuilder(true)

	doc, err := builder.BuildDocument("a1", Entry{
		Question: "Was the patient with ID: 4421 treated?",
		Contexts: []string{"Patient seen on 2024-03-15."},
	})
	require.NoError(t, err)

	assert.Contains(t, doc.Text, "[PACIENTE_ID]")
	assert.Contains(t, doc.Text, "[DATA]")
	assert.NotContains(t, doc.Text, "4421")
	assert.Contains(t, doc.Metadata["question"], "[PACIENTE_ID]")
}

func TestBuildDocumentRejectsEmptyEntry(t *testing.T) {
	builder := NewBuilder(false)
	_, err := builder.BuildDocument("a1", Entry{LongAnswer: "answer without question"})
	require.Error(t, err)
}

func TestBuildBatchSortedAndIsolated(t *testing.T) {
	builder := NewBuilder(false)
	ds := Dataset{
		"30": {Question: "third?"},
		"10": {Question: "first?"},
		"20": {LongAnswer: "invalid, no question or contexts"},
	}

	docs := builder.BuildBatch(ds)
	require.Len(t, docs, 2)
	assert.Equal(t, "10", docs[0].ArticleID)
	assert.Equal(t, "30", docs[1].ArticleID)
}

func TestFilterValid(t *testing.T) {
	docs := []model.Document{
		{ArticleID: "a", Text: "too short"},
		{ArticleID: "b", Text: "this text is comfortably longer than the fifty rune minimum we enforce"},
	}

	valid := FilterValid(docs, 50)
	require.Len(t, valid, 1)
	assert.Equal(t, "b", valid[0].ArticleID)
}
