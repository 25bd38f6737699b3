package academic

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	appfinance "github.com/schoolfees/backend/internal/application/finance"
	"github.com/schoolfees/backend/internal/domain/academic"
	"github.com/schoolfees/backend/internal/domain/audit"
	"github.com/schoolfees/backend/internal/domain/identity"
	"github.com/schoolfees/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// ErrNoActivePeriod is returned when a school has no active academic period
var ErrNoActivePeriod = shared.NewDomainError("NO_ACTIVE_PERIOD", "School has no active academic period")

// PeriodService manages academic periods. Activation is transactional so a
// school never has two active periods.
type PeriodService struct {
	scope  appfinance.TransactionScope
	audit  *appfinance.AuditRecorder
	logger *zap.Logger
}

// NewPeriodService creates a new PeriodService
func NewPeriodService(scope appfinance.TransactionScope, logger *zap.Logger) *PeriodService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PeriodService{
		scope:  scope,
		audit:  appfinance.NewAuditRecorder(),
		logger: logger,
	}
}

// CreatePeriodCommand describes a new term
type CreatePeriodCommand struct {
	AcademicYear int
	Term         int
	StartDate    time.Time
	EndDate      time.Time
	Activate     bool
}

// Create adds a period to the actor's school, optionally activating it
func (s *PeriodService) Create(ctx context.Context, actor identity.Actor, cmd CreatePeriodCommand) (*academic.AcademicPeriod, error) {
	if err := actor.EnsureRole(identity.FinanceStaff...); err != nil {
		return nil, err
	}
	period, err := academic.NewAcademicPeriod(actor.SchoolID, cmd.AcademicYear, cmd.Term, cmd.StartDate, cmd.EndDate)
	if err != nil {
		return nil, err
	}

	err = s.scope.Execute(ctx, func(repos appfinance.TransactionalRepositories) error {
		if err := repos.Periods().Save(ctx, period); err != nil {
			return fmt.Errorf("save academic period: %w", err)
		}
		if cmd.Activate {
			return s.activate(ctx, repos, actor, period)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Academic period created",
		zap.String("school_id", period.SchoolID.String()),
		zap.String("period", period.Label()),
		zap.Bool("active", period.IsActive))
	return period, nil
}

// Activate makes the period the school's only active one
func (s *PeriodService) Activate(ctx context.Context, actor identity.Actor, periodID uuid.UUID) (*academic.AcademicPeriod, error) {
	if err := actor.EnsureRole(identity.FinanceStaff...); err != nil {
		return nil, err
	}

	var period *academic.AcademicPeriod
	err := s.scope.Execute(ctx, func(repos appfinance.TransactionalRepositories) error {
		var err error
		period, err = repos.Periods().FindByID(ctx, appfinance.ActorScope(actor), periodID)
		if err != nil {
			return err
		}
		if err := actor.EnsureSchool(period.SchoolID); err != nil {
			return err
		}
		return s.activate(ctx, repos, actor, period)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Academic period activated",
		zap.String("school_id", period.SchoolID.String()),
		zap.String("period", period.Label()))
	return period, nil
}

func (s *PeriodService) activate(ctx context.Context, repos appfinance.TransactionalRepositories, actor identity.Actor, period *academic.AcademicPeriod) error {
	if err := repos.Periods().DeactivateAll(ctx, period.SchoolID); err != nil {
		return fmt.Errorf("deactivate periods: %w", err)
	}
	// DeactivateAll cleared the flag in storage; force the save to write it back.
	period.IsActive = false
	period.Activate()
	if err := repos.Periods().Save(ctx, period); err != nil {
		return fmt.Errorf("save academic period: %w", err)
	}
	return s.audit.Record(ctx, repos, actor, period.SchoolID, audit.ActionAcademicPeriodActivated, audit.EntityAcademicPeriod, period.ID, map[string]any{
		"period": period.Label(),
		"name":   period.Name,
	})
}

// Current returns the school's active period
func (s *PeriodService) Current(ctx context.Context, schoolID uuid.UUID) (*academic.AcademicPeriod, error) {
	var period *academic.AcademicPeriod
	err := s.scope.Execute(ctx, func(repos appfinance.TransactionalRepositories) error {
		var err error
		period, err = repos.Periods().FindActive(ctx, schoolID)
		return err
	})
	if shared.IsNotFound(err) {
		return nil, ErrNoActivePeriod
	}
	return period, err
}

// List returns the periods of the actor's school
func (s *PeriodService) List(ctx context.Context, actor identity.Actor) ([]academic.AcademicPeriod, error) {
	var periods []academic.AcademicPeriod
	err := s.scope.Execute(ctx, func(repos appfinance.TransactionalRepositories) error {
		var err error
		periods, err = repos.Periods().FindBySchool(ctx, actor.SchoolID)
		return err
	})
	return periods, err
}
