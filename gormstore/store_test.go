package gormstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	nextdue "github.com/NextDue/nextdue-go"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return New(db)
}

func occurrence(seriesID string, n int) *nextdue.Task {
	due := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC).AddDate(0, 0, 7*(n-1))
	return &nextdue.Task{
		ID:       nextdue.SuccessorID(seriesID, n),
		Title:    "weekly report",
		Priority: "medium",
		Tags:     "work",
		DueAt:    due,
		Status:   nextdue.StatusPending,
		Recurrence: &nextdue.Recurrence{
			IsRecurring:    true,
			Pattern:        "weekly",
			Interval:       1,
			OriginalTaskID: seriesID,
			Occurrence:     n,
		},
	}
}

func TestStore_SaveAndFind(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	task := occurrence("root-1", 2)
	require.NoError(t, s.Save(ctx, task))

	got, err := s.FindBySeriesOccurrence(ctx, "root-1", 2)
	require.NoError(t, err)
	require.Equal(t, task.ID, got.ID)
	require.Equal(t, task.Title, got.Title)
	require.True(t, task.DueAt.Equal(got.DueAt))
	require.NotNil(t, got.Recurrence)
	require.Equal(t, "root-1", got.Recurrence.OriginalTaskID)
	require.Equal(t, 2, got.Recurrence.Occurrence)
}

func TestStore_DuplicateIdentityRejected(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, occurrence("root-1", 2)))

	// Same (series, occurrence) built again from a redelivered event.
	err := s.Save(ctx, occurrence("root-1", 2))
	require.ErrorIs(t, err, nextdue.ErrDuplicateSuccessor)

	// A different occurrence of the same series is fine.
	require.NoError(t, s.Save(ctx, occurrence("root-1", 3)))
}

func TestStore_ListSeries(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	// Insert out of order; ListSeries sorts by occurrence.
	require.NoError(t, s.Save(ctx, occurrence("root-1", 3)))
	require.NoError(t, s.Save(ctx, occurrence("root-1", 2)))
	require.NoError(t, s.Save(ctx, occurrence("root-2", 2)))

	series, err := s.ListSeries(ctx, "root-1")
	require.NoError(t, err)
	require.Len(t, series, 2)
	require.Equal(t, 2, series[0].Recurrence.Occurrence)
	require.Equal(t, 3, series[1].Recurrence.Occurrence)
}

func TestStore_FindMissing(t *testing.T) {
	s := newStore(t)
	_, err := s.FindBySeriesOccurrence(context.Background(), "nope", 1)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestStore_ReminderRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	task := occurrence("root-1", 2)
	remind := task.DueAt.Add(-2 * time.Hour)
	task.RemindAt = &remind
	require.NoError(t, s.Save(ctx, task))

	got, err := s.FindBySeriesOccurrence(ctx, "root-1", 2)
	require.NoError(t, err)
	require.NotNil(t, got.RemindAt)
	require.True(t, remind.Equal(*got.RemindAt))
}
