// Package gormstore provides the reference TaskStore backed by GORM and
// SQLite. Duplicate successor detection relies on the database's unique
// index rather than a read-then-write, so concurrent deliveries of the
// same completion event cannot race past it.
package gormstore

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	nextdue "github.com/NextDue/nextdue-go"
)

// Store persists task occurrences.
type Store struct {
	db *gorm.DB
}

// New creates a Store on top of an opened gorm DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Save inserts a new successor row. It returns
// nextdue.ErrDuplicateSuccessor when the (series, occurrence) identity
// or the task ID has already been persisted.
func (s *Store) Save(ctx context.Context, t *nextdue.Task) error {
	row := toRow(t)
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("save task %s: %w", t.ID, nextdue.ErrDuplicateSuccessor)
		}
		return fmt.Errorf("save task %s: %w", t.ID, err)
	}
	return nil
}

// FindBySeriesOccurrence loads one occurrence of a series, or
// gorm.ErrRecordNotFound.
func (s *Store) FindBySeriesOccurrence(ctx context.Context, seriesID string, occurrence int) (*nextdue.Task, error) {
	var row taskRow
	if err := s.db.WithContext(ctx).
		Where("series_id = ? AND occurrence = ?", seriesID, occurrence).
		First(&row).Error; err != nil {
		return nil, err
	}
	return fromRow(&row), nil
}

// ListSeries returns every persisted occurrence of a series ordered by
// occurrence number.
func (s *Store) ListSeries(ctx context.Context, seriesID string) ([]*nextdue.Task, error) {
	var rows []taskRow
	if err := s.db.WithContext(ctx).
		Where("series_id = ?", seriesID).
		Order("occurrence").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*nextdue.Task, 0, len(rows))
	for i := range rows {
		out = append(out, fromRow(&rows[i]))
	}
	return out, nil
}

func toRow(t *nextdue.Task) *taskRow {
	row := &taskRow{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Priority:    t.Priority,
		Tags:        t.Tags,
		DueAt:       t.DueAt,
		RemindAt:    t.RemindAt,
		Status:      string(t.Status),
		CompletedAt: t.CompletedAt,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if rec := t.Recurrence; rec != nil {
		row.IsRecurring = rec.IsRecurring
		row.Pattern = rec.Pattern
		row.Interval = rec.Interval
		row.EndDate = rec.EndDate
		row.SeriesID = rec.OriginalTaskID
		row.Occurrence = rec.Occurrence
	}
	return row
}

func fromRow(row *taskRow) *nextdue.Task {
	t := &nextdue.Task{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		Priority:    row.Priority,
		Tags:        row.Tags,
		DueAt:       row.DueAt,
		RemindAt:    row.RemindAt,
		Status:      nextdue.Status(row.Status),
		CompletedAt: row.CompletedAt,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	if row.IsRecurring || row.SeriesID != "" {
		t.Recurrence = &nextdue.Recurrence{
			IsRecurring:    row.IsRecurring,
			Pattern:        row.Pattern,
			Interval:       row.Interval,
			EndDate:        row.EndDate,
			OriginalTaskID: row.SeriesID,
			Occurrence:     row.Occurrence,
		}
	}
	return t
}
