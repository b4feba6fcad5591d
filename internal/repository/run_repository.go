// Package repository defines the database access layer.
package repository

import (
	"biobyia-go/internal/model"

	"gorm.io/gorm"
)

// RunRepository persists ingestion run history.
type RunRepository interface {
	Create(run *model.IngestionRun) error
	FindRecent(limit int) ([]model.IngestionRun, error)
	FindByIndex(indexName string, limit int) ([]model.IngestionRun, error)
}

// runRepository is the GORM implementation of RunRepository.
type runRepository struct {
	db *gorm.DB
}

// NewRunRepository creates a new RunRepository instance.
func NewRunRepository(db *gorm.DB) RunRepository {
	return &runRepository{db: db}
}

// Create inserts a new ingestion run record.
func (r *runRepository) Create(run *model.IngestionRun) error {
	return r.db.Create(run).Error
}

// FindRecent returns the newest runs first, capped at limit.
func (r *runRepository) FindRecent(limit int) ([]model.IngestionRun, error) {
	var runs []model.IngestionRun
	err := r.db.Order("id DESC").Limit(limit).Find(&runs).Error
	return runs, err
}

// FindByIndex returns the newest runs for one index, capped at limit.
func (r *runRepository) FindByIndex(indexName string, limit int) ([]model.IngestionRun, error) {
	var runs []model.IngestionRun
	err := r.db.Where("index_name = ?", indexName).Order("id DESC").Limit(limit).Find(&runs).Error
	return runs, err
}
