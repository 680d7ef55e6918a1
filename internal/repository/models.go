package repository

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/heap-snapshot/pkg/model"
)

// SnapshotRecord represents the heap_snapshots table.
type SnapshotRecord struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	DumpKey     string    `gorm:"column:dump_key;type:varchar(512);index"`
	Format      string    `gorm:"column:format;type:varchar(32)"`
	IDSize      int       `gorm:"column:id_size"`
	DumpedAt    time.Time `gorm:"column:dumped_at"`
	Classes     int       `gorm:"column:classes"`
	Objects     int       `gorm:"column:objects"`
	Roots       int       `gorm:"column:roots"`
	TotalBytes  int64     `gorm:"column:total_bytes"`
	Baseline    string    `gorm:"column:baseline;type:varchar(512)"`
	NewObjects  int       `gorm:"column:new_objects"`
	RootsByType JSONField `gorm:"column:roots_by_type;type:json"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`

	Histogram []ClassHistogramRecord `gorm:"foreignKey:SnapshotID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for SnapshotRecord.
func (SnapshotRecord) TableName() string {
	return "heap_snapshots"
}

// ClassHistogramRecord represents the class_histograms table.
type ClassHistogramRecord struct {
	ID           int64  `gorm:"column:id;primaryKey;autoIncrement"`
	SnapshotID   int64  `gorm:"column:snapshot_id;index"`
	ClassName    string `gorm:"column:class_name;type:varchar(1024)"`
	Category     string `gorm:"column:category;type:varchar(32)"`
	Instances    int    `gorm:"column:instances"`
	Bytes        int64  `gorm:"column:bytes"`
	NewInstances int    `gorm:"column:new_instances"`
}

// TableName returns the table name for ClassHistogramRecord.
func (ClassHistogramRecord) TableName() string {
	return "class_histograms"
}

// newSnapshotRecord converts a summary for storage. Histogram rows are
// returned separately so they can be inserted in batches.
func newSnapshotRecord(s *model.SnapshotSummary) (*SnapshotRecord, []ClassHistogramRecord, error) {
	roots, err := json.Marshal(s.RootsByType)
	if err != nil {
		return nil, nil, err
	}

	record := &SnapshotRecord{
		DumpKey:     s.Key,
		Format:      s.Format,
		IDSize:      s.IDSize,
		DumpedAt:    s.DumpedAt,
		Classes:     s.Classes,
		Objects:     s.Objects,
		Roots:       s.Roots,
		TotalBytes:  s.TotalBytes,
		Baseline:    s.Baseline,
		NewObjects:  s.NewObjects,
		RootsByType: roots,
	}

	rows := make([]ClassHistogramRecord, len(s.Histogram))
	for i, e := range s.Histogram {
		rows[i] = ClassHistogramRecord{
			ClassName:    e.ClassName,
			Category:     e.Category,
			Instances:    e.Instances,
			Bytes:        e.Bytes,
			NewInstances: e.NewInstances,
		}
	}
	return record, rows, nil
}

// ToModel converts SnapshotRecord to model.SnapshotSummary.
func (r *SnapshotRecord) ToModel() (*model.SnapshotSummary, error) {
	summary := &model.SnapshotSummary{
		Key:        r.DumpKey,
		Format:     r.Format,
		IDSize:     r.IDSize,
		DumpedAt:   r.DumpedAt,
		CreatedAt:  r.CreatedAt,
		Classes:    r.Classes,
		Objects:    r.Objects,
		Roots:      r.Roots,
		TotalBytes: r.TotalBytes,
		Baseline:   r.Baseline,
		NewObjects: r.NewObjects,
	}

	if r.RootsByType != nil {
		if err := json.Unmarshal(r.RootsByType, &summary.RootsByType); err != nil {
			return nil, err
		}
	}

	for _, h := range r.Histogram {
		summary.Histogram = append(summary.Histogram, model.ClassHistogramEntry{
			ClassName:    h.ClassName,
			Category:     h.Category,
			Instances:    h.Instances,
			Bytes:        h.Bytes,
			NewInstances: h.NewInstances,
		})
	}

	return summary, nil
}

// JSONField is a custom type for handling JSON fields in GORM.
type JSONField []byte

// Value implements driver.Valuer interface.
func (j JSONField) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return []byte(j), nil
}

// Scan implements sql.Scanner interface.
func (j *JSONField) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
		return nil
	case string:
		*j = []byte(v)
		return nil
	default:
		return errors.New("unsupported type for JSONField")
	}
}

// MarshalJSON implements json.Marshaler interface.
func (j JSONField) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON implements json.Unmarshaler interface.
func (j *JSONField) UnmarshalJSON(data []byte) error {
	if data == nil || string(data) == "null" {
		*j = nil
		return nil
	}
	*j = append((*j)[0:0], data...)
	return nil
}
