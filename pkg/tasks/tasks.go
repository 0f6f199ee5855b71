// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// IngestionTask asks a worker to extract and ingest one uploaded document.
type IngestionTask struct {
	DocumentID string `json:"document_id"`
	ObjectKey  string `json:"object_key"`
	FileName   string `json:"file_name"`
}
