package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/schoolfees/backend/internal/domain/academic"
	"github.com/schoolfees/backend/internal/domain/identity"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newMockGormDB opens a postgres-dialect GORM connection on top of sqlmock
func newMockGormDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})
	gormDB, err := Open(dialector, logger.Default.LogMode(logger.Silent))
	require.NoError(t, err)

	return gormDB, mock, mockDB
}

// newSQLiteDB opens a private in-memory database with the ledger schema
func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=on"
	db, err := Open(sqlite.Open(dsn), logger.Default.LogMode(logger.Silent))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, AutoMigrate(context.Background(), db))
	return db
}

type ledgerFixture struct {
	school  *identity.School
	period  *academic.AcademicPeriod
	student *academic.Student
}

// seedLedger stores a school with one active period and one student
func seedLedger(t *testing.T, db *gorm.DB) ledgerFixture {
	t.Helper()
	ctx := context.Background()

	school, err := identity.NewSchool("SCH001", "Hill School")
	require.NoError(t, err)
	school.PaybillShortcode = "600100"
	require.NoError(t, NewGormSchoolRepository(db).Save(ctx, school))

	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	period, err := academic.NewAcademicPeriod(school.ID, 2025, 1, start, start.AddDate(0, 3, 0))
	require.NoError(t, err)
	period.Activate()
	require.NoError(t, NewGormAcademicPeriodRepository(db).Save(ctx, period))

	student, err := academic.NewStudent(school.ID, "ADM001", "Amani", "Otieno", nil)
	require.NoError(t, err)
	require.NoError(t, NewGormStudentRepository(db).Save(ctx, student))

	return ledgerFixture{school: school, period: period, student: student}
}
