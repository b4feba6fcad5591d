// Package tasks defines the message payloads exchanged over Kafka.
package tasks

// DocumentTask asks the worker to extract, anonymize and ingest one uploaded
// document. ArticleID doubles as the retry dedupe key.
type DocumentTask struct {
	ArticleID   string `json:"article_id"`
	ObjectName  string `json:"object_name"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Namespace   string `json:"namespace,omitempty"`
}
