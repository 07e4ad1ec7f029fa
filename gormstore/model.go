package gormstore

import "time"

// taskRow is the database representation of a task occurrence. The
// unique composite index on (series_id, occurrence) is what makes
// Save idempotent under duplicate event delivery.
type taskRow struct {
	ID          string `gorm:"primaryKey"`
	Title       string
	Description string
	Priority    string
	Tags        string
	DueAt       time.Time
	RemindAt    *time.Time
	Status      string
	CompletedAt *time.Time
	IsRecurring bool `gorm:"default:false"`
	Pattern     string
	Interval    int
	EndDate     *time.Time
	SeriesID    string `gorm:"index;uniqueIndex:idx_series_occurrence"`
	Occurrence  int    `gorm:"uniqueIndex:idx_series_occurrence"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName keeps the table name stable regardless of struct renames.
func (taskRow) TableName() string { return "tasks" }
