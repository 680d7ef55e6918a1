package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	apperrors "github.com/heap-snapshot/pkg/errors"
)

func newMockDB(t *testing.T, dialect string) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	var dialector gorm.Dialector
	switch dialect {
	case "mysql":
		dialector = mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true})
	case "postgres":
		dialector = postgres.New(postgres.Config{Conn: sqlDB})
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	return db, mock
}

func TestSaveSummary_MySQL(t *testing.T) {
	db, mock := newMockDB(t, "mysql")
	repo := NewGormSummaryRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `heap_snapshots`").
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectExec("INSERT INTO `class_histograms`").
		WillReturnResult(sqlmock.NewResult(1, 3))
	mock.ExpectCommit()

	id, err := repo.SaveSummary(context.Background(), testSummary("app.hprof", 2))
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveSummary_MySQLRollback(t *testing.T) {
	db, mock := newMockDB(t, "mysql")
	repo := NewGormSummaryRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `heap_snapshots`").
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectExec("INSERT INTO `class_histograms`").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := repo.SaveSummary(context.Background(), testSummary("app.hprof", 2))
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeDatabaseError, apperrors.GetErrorCode(err))
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLatestSummary_MySQL(t *testing.T) {
	db, mock := newMockDB(t, "mysql")
	repo := NewGormSummaryRepository(db)

	mock.ExpectQuery("SELECT \\* FROM `heap_snapshots` WHERE dump_key = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"id", "dump_key", "format", "id_size", "objects", "roots_by_type"}).
			AddRow(int64(7), "app.hprof", "JAVA PROFILE 1.0.2", 8, 12, []byte(`{"Java Local":1}`)))
	mock.ExpectQuery("SELECT \\* FROM `class_histograms` WHERE `class_histograms`.`snapshot_id` = \\?").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "snapshot_id", "class_name", "category", "instances", "bytes"}).
			AddRow(int64(1), int64(7), "com.example.Node", "application", 2, int64(64)))

	got, err := repo.GetLatestSummary(context.Background(), "app.hprof")
	require.NoError(t, err)
	assert.Equal(t, 12, got.Objects)
	assert.Equal(t, map[string]int{"Java Local": 1}, got.RootsByType)
	require.Len(t, got.Histogram, 1)
	assert.Equal(t, "com.example.Node", got.Histogram[0].ClassName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveSummary_Postgres(t *testing.T) {
	db, mock := newMockDB(t, "postgres")
	repo := NewGormSummaryRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "heap_snapshots"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))
	mock.ExpectQuery(`INSERT INTO "class_histograms"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)).AddRow(int64(2)).AddRow(int64(3)))
	mock.ExpectCommit()

	id, err := repo.SaveSummary(context.Background(), testSummary("app.hprof", 2))
	require.NoError(t, err)
	assert.Equal(t, int64(11), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteSummaries_Postgres(t *testing.T) {
	db, mock := newMockDB(t, "postgres")
	repo := NewGormSummaryRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "class_histograms" WHERE snapshot_id IN \(SELECT .+ FROM "heap_snapshots" WHERE dump_key = \$1\)`).
		WithArgs("app.hprof").
		WillReturnResult(sqlmock.NewResult(0, 6))
	mock.ExpectExec(`DELETE FROM "heap_snapshots" WHERE dump_key = \$1`).
		WithArgs("app.hprof").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	deleted, err := repo.DeleteSummaries(context.Background(), "app.hprof")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
