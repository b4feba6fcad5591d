package service

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"biobyia-go/internal/anonymizer"
	"biobyia-go/internal/dataset"
	"biobyia-go/pkg/log"
)

// exportInstruction is the task instruction attached to every exported
// fine-tuning example.
const exportInstruction = "Responda à pergunta baseando-se nos contextos fornecidos."

// chatMLSystemPrompt opens every ChatML conversation.
const chatMLSystemPrompt = "You are a medical assistant that answers questions based on scientific evidence."

// AlpacaItem is one instruction/input/output fine-tuning example.
type AlpacaItem struct {
	Instruction string `json:"instruction"`
	Input       string `json:"input"`
	Output      string `json:"output"`
}

// ChatMessage is one turn of a ChatML conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatMLEntry is one JSONL line of the ChatML export.
type ChatMLEntry struct {
	Messages []ChatMessage `json:"messages"`
}

// ExportReport summarizes one export run.
type ExportReport struct {
	Total   int `json:"total"`
	Written int `json:"written"`
	Skipped int `json:"skipped"`
}

// ExportService converts a loaded dataset into fine-tuning files.
type ExportService interface {
	ExportAlpaca(ds dataset.Dataset, path string) (*ExportReport, error)
	ExportChatML(ds dataset.Dataset, path string) (*ExportReport, error)
}

type exportService struct {
	anonymize bool
}

// NewExportService creates a new ExportService instance. When anonymize is
// true, contexts and answers are scrubbed before they are written out.
func NewExportService(anonymize bool) ExportService {
	return &exportService{anonymize: anonymize}
}

// ExportAlpaca writes the dataset as a JSON array of Alpaca examples.
func (s *exportService) ExportAlpaca(ds dataset.Dataset, path string) (*ExportReport, error) {
	log.Infof("[ExportService] exporting %d entries to Alpaca format, path: %s", len(ds), path)

	items := make([]AlpacaItem, 0, len(ds))
	report := &ExportReport{Total: len(ds)}
	for _, articleID := range ds.SortedIDs() {
		item, ok := s.buildExample(articleID, ds[articleID])
		if !ok {
			report.Skipped++
			continue
		}
		items = append(items, item)
	}
	report.Written = len(items)

	if err := writeJSONFile(path, items, true); err != nil {
		return nil, err
	}
	log.Infof("[ExportService] Alpaca export finished, written: %d, skipped: %d", report.Written, report.Skipped)
	return report, nil
}

// ExportChatML writes the dataset as JSONL, one ChatML conversation per line.
func (s *exportService) ExportChatML(ds dataset.Dataset, path string) (*ExportReport, error) {
	log.Infof("[ExportService] exporting %d entries to ChatML format, path: %s", len(ds), path)

	report := &ExportReport{Total: len(ds)}

	if err := ensureParentDir(path); err != nil {
		return nil, err
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetEscapeHTML(false)
	for _, articleID := range ds.SortedIDs() {
		item, ok := s.buildExample(articleID, ds[articleID])
		if !ok {
			report.Skipped++
			continue
		}
		entry := ChatMLEntry{
			Messages: []ChatMessage{
				{Role: "system", Content: chatMLSystemPrompt},
				{Role: "user", Content: fmt.Sprintf("Instruction: %s\nInput: %s", item.Instruction, item.Input)},
				{Role: "assistant", Content: item.Output},
			},
		}
		if err := encoder.Encode(entry); err != nil {
			return nil, fmt.Errorf("failed to encode entry %s: %w", articleID, err)
		}
		report.Written++
	}

	log.Infof("[ExportService] ChatML export finished, written: %d, skipped: %d", report.Written, report.Skipped)
	return report, nil
}

// buildExample assembles one fine-tuning example from a dataset entry. The
// second return value is false when the entry lacks an input or an answer.
func (s *exportService) buildExample(articleID string, entry dataset.Entry) (AlpacaItem, bool) {
	contextText := strings.TrimSpace(strings.Join(entry.Contexts, " "))
	answer := strings.TrimSpace(entry.LongAnswer)
	question := strings.TrimSpace(entry.Question)
	meshes := strings.Join(entry.Meshes, ", ")

	if s.anonymize {
		contextText = anonymizer.Anonymize(contextText)
		answer = anonymizer.Anonymize(answer)
	}

	var inputParts []string
	if contextText != "" {
		inputParts = append(inputParts, "Contexto: "+contextText)
	}
	if meshes != "" {
		inputParts = append(inputParts, "Termos técnicos: "+meshes)
	}
	if question != "" {
		inputParts = append(inputParts, "Pergunta: "+question)
	}
	input := strings.Join(inputParts, "\n")

	if input == "" || answer == "" {
		log.Warnf("[ExportService] skipping entry %s: missing input or answer", articleID)
		return AlpacaItem{}, false
	}

	return AlpacaItem{
		Instruction: exportInstruction,
		Input:       input,
		Output:      answer,
	}, true
}

// writeJSONFile marshals v to path, optionally indented.
func writeJSONFile(path string, v any, indent bool) error {
	if err := ensureParentDir(path); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetEscapeHTML(false)
	if indent {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode export file: %w", err)
	}
	return nil
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	return nil
}
