package dataset

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"biobyia-go/internal/anonymizer"
	"biobyia-go/internal/model"
	"biobyia-go/pkg/log"
)

// Builder turns dataset entries into documents: contexts, question and
// answer are combined into one embeddable text and the remaining fields
// become metadata.
type Builder struct {
	anonymize bool
}

// NewBuilder creates a Builder. With anonymize enabled, every text field is
// scrubbed before it reaches the document.
func NewBuilder(anonymize bool) *Builder {
	return &Builder{anonymize: anonymize}
}

// BuildDocument processes one entry. An entry without a question and
// without contexts is invalid.
func (b *Builder) BuildDocument(articleID string, entry Entry) (model.Document, error) {
	question := strings.TrimSpace(entry.Question)
	contextText := joinNonEmpty(entry.Contexts, " ")
	longAnswer := strings.TrimSpace(entry.LongAnswer)

	if question == "" && contextText == "" {
		return model.Document{}, model.NewValidationError("build",
			fmt.Sprintf("entry %s has neither QUESTION nor CONTEXTS", articleID))
	}

	if b.anonymize {
		question = anonymizer.Anonymize(question)
		contextText = anonymizer.Anonymize(contextText)
		longAnswer = anonymizer.Anonymize(longAnswer)
	}

	meshes := joinNonEmpty(entry.Meshes, ", ")
	labels := joinNonEmpty(entry.Labels, ", ")

	parts := make([]string, 0, 4)
	if contextText != "" {
		parts = append(parts, "Context: "+contextText)
	}
	if question != "" {
		parts = append(parts, "Question: "+question)
	}
	if longAnswer != "" {
		parts = append(parts, "Answer: "+longAnswer)
	}
	if meshes != "" {
		parts = append(parts, "Medical Terms: "+meshes)
	}

	metadata := map[string]any{
		"article_id": articleID,
		"question":   question,
		"source":     "pubmedqa",
		"type":       "medical_qa",
	}
	if entry.Year != "" {
		metadata["year"] = entry.Year
	}
	if meshes != "" {
		metadata["meshes"] = meshes
	}
	if labels != "" {
		metadata["labels"] = labels
	}
	if entry.FinalDecision != "" {
		metadata["final_decision"] = entry.FinalDecision
	}
	if entry.ReasoningRequiredPred != "" {
		metadata["reasoning_required"] = entry.ReasoningRequiredPred
	}

	return model.Document{
		ArticleID: articleID,
		Text:      strings.Join(parts, " "),
		Metadata:  metadata,
	}, nil
}

// BuildBatch processes every entry in lexical article id order, skipping
// invalid ones.
func (b *Builder) BuildBatch(ds Dataset) []model.Document {
	docs := make([]model.Document, 0, len(ds))
	for _, articleID := range ds.SortedIDs() {
		doc, err := b.BuildDocument(articleID, ds[articleID])
		if err != nil {
			log.Warnf("[Dataset] skipping entry %s: %v", articleID, err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs
}

// FilterValid drops documents whose text is shorter than minTextLength
// runes.
func FilterValid(docs []model.Document, minTextLength int) []model.Document {
	valid := make([]model.Document, 0, len(docs))
	for _, doc := range docs {
		if utf8.RuneCountInString(doc.Text) >= minTextLength {
			valid = append(valid, doc)
		}
	}
	return valid
}

func joinNonEmpty(items []string, sep string) string {
	kept := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			kept = append(kept, trimmed)
		}
	}
	return strings.Join(kept, sep)
}
