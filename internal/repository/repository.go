// Package repository persists snapshot summaries.
package repository

import (
	"context"

	"github.com/heap-snapshot/pkg/model"
)

// SummaryRepository stores and reads snapshot summaries.
type SummaryRepository interface {
	// SaveSummary stores summary with its histogram and returns the new id.
	SaveSummary(ctx context.Context, summary *model.SnapshotSummary) (int64, error)

	// GetLatestSummary returns the most recent summary saved for key,
	// histogram included, largest classes first.
	GetLatestSummary(ctx context.Context, key string) (*model.SnapshotSummary, error)

	// ListSummaries returns up to limit summaries for key, newest first,
	// without histograms. An empty key lists every dump.
	ListSummaries(ctx context.Context, key string, limit int) ([]*model.SnapshotSummary, error)

	// DeleteSummaries removes every summary saved for key and returns how
	// many were removed.
	DeleteSummaries(ctx context.Context, key string) (int64, error)
}
