package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "github.com/heap-snapshot/pkg/errors"
	"github.com/heap-snapshot/pkg/model"
)

// histogramBatchSize bounds the rows of one histogram INSERT.
const histogramBatchSize = 500

// GormSummaryRepository implements SummaryRepository using GORM.
type GormSummaryRepository struct {
	db *gorm.DB
}

// NewGormSummaryRepository creates a new GormSummaryRepository.
func NewGormSummaryRepository(db *gorm.DB) *GormSummaryRepository {
	return &GormSummaryRepository{db: db}
}

// SaveSummary stores the summary and its histogram in one transaction.
func (r *GormSummaryRepository) SaveSummary(ctx context.Context, summary *model.SnapshotSummary) (int64, error) {
	record, rows, err := newSnapshotRecord(summary)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to marshal summary", err)
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(record).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		for i := range rows {
			rows[i].SnapshotID = record.ID
		}
		return tx.CreateInBatches(rows, histogramBatchSize).Error
	})
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to save summary", err)
	}

	return record.ID, nil
}

// GetLatestSummary returns the newest summary for key.
func (r *GormSummaryRepository) GetLatestSummary(ctx context.Context, key string) (*model.SnapshotSummary, error) {
	var record SnapshotRecord

	err := r.db.WithContext(ctx).
		Preload("Histogram", func(db *gorm.DB) *gorm.DB {
			return db.Order("bytes DESC").Order("class_name")
		}).
		Where("dump_key = ?", key).
		Order("id DESC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Newf(apperrors.CodeNotFound, "no summary saved for %s", key)
		}
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to get summary", err)
	}

	summary, err := record.ToModel()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to decode summary", err)
	}
	return summary, nil
}

// ListSummaries returns summaries newest first.
func (r *GormSummaryRepository) ListSummaries(ctx context.Context, key string, limit int) ([]*model.SnapshotSummary, error) {
	var records []SnapshotRecord

	query := r.db.WithContext(ctx).Order("id DESC")
	if key != "" {
		query = query.Where("dump_key = ?", key)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&records).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to list summaries", err)
	}

	summaries := make([]*model.SnapshotSummary, 0, len(records))
	for i := range records {
		s, err := records[i].ToModel()
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to decode summary", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, nil
}

// DeleteSummaries removes the summaries of key and their histograms.
func (r *GormSummaryRepository) DeleteSummaries(ctx context.Context, key string) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := tx.Model(&SnapshotRecord{}).Select("id").Where("dump_key = ?", key)
		if err := tx.Where("snapshot_id IN (?)", ids).Delete(&ClassHistogramRecord{}).Error; err != nil {
			return err
		}
		res := tx.Where("dump_key = ?", key).Delete(&SnapshotRecord{})
		deleted = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to delete summaries", err)
	}
	return deleted, nil
}
