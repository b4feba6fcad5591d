package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"biobyia-go/internal/anonymizer"
	"biobyia-go/internal/model"
	"biobyia-go/pkg/log"
	"biobyia-go/pkg/storage"
	"biobyia-go/pkg/tasks"
	"biobyia-go/pkg/tika"
)

// DocumentIngester writes built documents into the vector store. It is
// satisfied by the ingest service.
type DocumentIngester interface {
	IngestDocuments(ctx context.Context, docs []model.Document, source string, resume bool, onProgress func(Progress)) (*Report, error)
}

// Processor handles one document task end to end: download, extract,
// anonymize and ingest.
type Processor struct {
	storageClient *storage.Client
	tikaClient    *tika.Client
	ingester      DocumentIngester
}

// NewProcessor creates a new Processor instance.
func NewProcessor(storageClient *storage.Client, tikaClient *tika.Client, ingester DocumentIngester) *Processor {
	return &Processor{
		storageClient: storageClient,
		tikaClient:    tikaClient,
		ingester:      ingester,
	}
}

// Process downloads the task's object, extracts its text and ingests it as
// one document. Chunk ids are deterministic, so reprocessing after a retry
// overwrites instead of duplicating.
func (p *Processor) Process(ctx context.Context, task tasks.DocumentTask) error {
	log.Infof("[Processor] processing document task, article: %s, object: %s", task.ArticleID, task.ObjectName)

	log.Infof("[Processor] step 1: downloading object from bucket %s", p.storageClient.Bucket())
	data, err := p.storageClient.GetObject(ctx, task.ObjectName)
	if err != nil {
		log.Errorf("[Processor] failed to download object %s: %v", task.ObjectName, err)
		return fmt.Errorf("failed to download object: %w", err)
	}
	log.Infof("[Processor] step 1: downloaded %d bytes", len(data))
	if len(data) == 0 {
		log.Warnf("[Processor] object '%s' is empty, aborting", task.ObjectName)
		return errors.New("object content is empty")
	}

	log.Info("[Processor] step 2: extracting text")
	text, err := p.extractText(ctx, data, task)
	if err != nil {
		log.Errorf("[Processor] text extraction failed for %s: %v", task.FileName, err)
		return fmt.Errorf("failed to extract text: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		log.Warnf("[Processor] extracted text is empty, aborting, file: %s", task.FileName)
		return errors.New("extracted text is empty")
	}
	log.Infof("[Processor] step 2: extracted %d characters", utf8.RuneCountInString(text))

	log.Info("[Processor] step 3: anonymizing document")
	doc := model.Document{
		ArticleID: task.ArticleID,
		Text:      anonymizer.Anonymize(text),
		Metadata: map[string]any{
			"article_id": task.ArticleID,
			"file_name":  task.FileName,
			"source":     "upload",
			"type":       "document",
		},
	}

	log.Info("[Processor] step 4: ingesting document")
	report, err := p.ingester.IngestDocuments(ctx, []model.Document{doc}, "kafka:"+task.ObjectName, false, nil)
	if err != nil {
		return fmt.Errorf("failed to ingest document: %w", err)
	}
	if len(report.Errors) > 0 {
		return fmt.Errorf("ingestion finished with %d failed batches: %s", len(report.Errors), report.Errors[0])
	}

	log.Infof("[Processor] document task finished, article: %s, vectors written: %d", task.ArticleID, report.VectorsWritten)
	return nil
}

// extractText returns the object's plain text. Text-like payloads skip the
// Tika round trip.
func (p *Processor) extractText(ctx context.Context, data []byte, task tasks.DocumentTask) (string, error) {
	if isPlainText(task.ContentType) && utf8.Valid(data) {
		return string(data), nil
	}
	return p.tikaClient.ExtractText(ctx, bytes.NewReader(data), task.FileName)
}

func isPlainText(contentType string) bool {
	if strings.HasPrefix(contentType, "text/") {
		return true
	}
	return contentType == "application/json"
}
