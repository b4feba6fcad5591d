package model

// IngestionRun maps to the ingestion_runs table. One row is written per
// ingestion run (CLI, API or worker) with the final report totals.
type IngestionRun struct {
	ID             uint      `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	Source         string    `gorm:"type:varchar(255);not null;column:source" json:"source"`
	IndexName      string    `gorm:"type:varchar(100);not null;index;column:index_name" json:"index_name"`
	Namespace      string    `gorm:"type:varchar(100);column:namespace" json:"namespace"`
	TotalChunks    int       `gorm:"not null;column:total_chunks" json:"total_chunks"`
	VectorsWritten int       `gorm:"not null;column:vectors_written" json:"vectors_written"`
	Batches        int       `gorm:"not null;column:batches" json:"batches"`
	ErrorCount     int       `gorm:"not null;default:0;column:error_count" json:"error_count"`
	Interrupted    bool      `gorm:"not null;default:false;column:interrupted" json:"interrupted"`
	StartedAt      LocalTime `gorm:"column:started_at" json:"started_at"`
	FinishedAt     LocalTime `gorm:"column:finished_at" json:"finished_at"`
}

func (IngestionRun) TableName() string {
	return "ingestion_runs"
}
