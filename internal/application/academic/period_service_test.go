package academic_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	appacademic "github.com/schoolfees/backend/internal/application/academic"
	"github.com/schoolfees/backend/internal/domain/audit"
	"github.com/schoolfees/backend/internal/domain/identity"
	"github.com/schoolfees/backend/internal/domain/shared"
	"github.com/schoolfees/backend/internal/infrastructure/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm/logger"
)

func newPeriodService(t *testing.T) (*appacademic.PeriodService, *persistence.GormAuditRepository, identity.Actor) {
	t.Helper()
	ctx := context.Background()

	db, err := persistence.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared&_foreign_keys=on"), logger.Default.LogMode(logger.Silent))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, persistence.AutoMigrate(ctx, db))

	school, err := identity.NewSchool("SCH001", "Hill School")
	require.NoError(t, err)
	require.NoError(t, persistence.NewGormSchoolRepository(db).Save(ctx, school))

	bursar := identity.Actor{UserID: uuid.New(), SchoolID: school.ID, Role: identity.RoleFinanceManager, Username: "bursar"}
	return appacademic.NewPeriodService(persistence.NewGormTransactionScope(db), nil), persistence.NewGormAuditRepository(db), bursar
}

func termCommand(year, term int, activate bool) appacademic.CreatePeriodCommand {
	start := time.Date(year, time.Month(1+(term-1)*4), 6, 0, 0, 0, 0, time.UTC)
	return appacademic.CreatePeriodCommand{
		AcademicYear: year,
		Term:         term,
		StartDate:    start,
		EndDate:      start.AddDate(0, 3, 0),
		Activate:     activate,
	}
}

func TestPeriodService_Activation(t *testing.T) {
	svc, auditRepo, bursar := newPeriodService(t)
	ctx := context.Background()

	_, err := svc.Current(ctx, bursar.SchoolID)
	assert.ErrorIs(t, err, appacademic.ErrNoActivePeriod)

	term1, err := svc.Create(ctx, bursar, termCommand(2025, 1, true))
	require.NoError(t, err)
	assert.True(t, term1.IsActive)
	assert.Equal(t, "2025 Term 1", term1.Name)

	term2, err := svc.Create(ctx, bursar, termCommand(2025, 2, false))
	require.NoError(t, err)
	assert.False(t, term2.IsActive)

	current, err := svc.Current(ctx, bursar.SchoolID)
	require.NoError(t, err)
	assert.Equal(t, term1.ID, current.ID)

	_, err = svc.Activate(ctx, bursar, term2.ID)
	require.NoError(t, err)

	current, err = svc.Current(ctx, bursar.SchoolID)
	require.NoError(t, err)
	assert.Equal(t, term2.ID, current.ID)

	periods, err := svc.List(ctx, bursar)
	require.NoError(t, err)
	require.Len(t, periods, 2)
	active := 0
	for _, p := range periods {
		if p.IsActive {
			active++
		}
	}
	assert.Equal(t, 1, active, "exactly one period stays active")

	entries, err := auditRepo.ListByEntity(ctx, bursar.SchoolID, audit.EntityAcademicPeriod, term2.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionAcademicPeriodActivated, entries[0].Action)

	t.Run("reactivating the active period is harmless", func(t *testing.T) {
		_, err := svc.Activate(ctx, bursar, term2.ID)
		require.NoError(t, err)
		current, err := svc.Current(ctx, bursar.SchoolID)
		require.NoError(t, err)
		assert.Equal(t, term2.ID, current.ID)
	})
}

func TestPeriodService_Validation(t *testing.T) {
	svc, _, bursar := newPeriodService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, bursar, termCommand(2025, 1, false))
	require.NoError(t, err)

	t.Run("duplicate term", func(t *testing.T) {
		_, err := svc.Create(ctx, bursar, termCommand(2025, 1, false))
		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
	})

	t.Run("term out of range", func(t *testing.T) {
		_, err := svc.Create(ctx, bursar, termCommand(2025, 4, false))
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_TERM", domainErr.Code)
	})

	t.Run("parents cannot manage periods", func(t *testing.T) {
		parent := identity.Actor{UserID: uuid.New(), SchoolID: bursar.SchoolID, Role: identity.RoleParent}
		_, err := svc.Create(ctx, parent, termCommand(2026, 1, false))
		assert.ErrorIs(t, err, shared.ErrForbidden)
	})

	t.Run("other school period", func(t *testing.T) {
		outsider := identity.Actor{UserID: uuid.New(), SchoolID: uuid.New(), Role: identity.RolePrincipal}
		_, err := svc.Activate(ctx, outsider, uuid.New())
		assert.True(t, shared.IsNotFound(err))
	})
}
