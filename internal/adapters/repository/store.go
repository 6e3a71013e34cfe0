// Package repository holds the in-memory monitoring session: vigilance score,
// per-frame series and alert history.
package repository

import (
	"context"

	"github.com/okian/drowsywatch/internal/domain/alert"
	"github.com/okian/drowsywatch/internal/domain/model"
)

// Store provides read/write access to the session state.
type Store interface {
	// Record folds one processed frame into the session and returns the
	// resulting snapshot. Tripped conditions in d lower the vigilance score
	// and append history records.
	Record(ctx context.Context, r model.Reading, d alert.Decision) model.Snapshot

	// Snapshot returns the current session summary.
	Snapshot(ctx context.Context) model.Snapshot

	// History returns up to limit most recent records, oldest first.
	// A limit of 0 returns everything; negative limits are ErrInvalidLimit.
	History(ctx context.Context, limit int) ([]model.HistoryRecord, error)

	// Series returns up to limit most recent samples of each series.
	Series(ctx context.Context, limit int) (model.Series, error)

	// Reset discards everything and starts a new session.
	Reset(ctx context.Context) model.Snapshot
}
