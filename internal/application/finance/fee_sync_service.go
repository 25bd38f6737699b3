package finance

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/schoolfees/backend/internal/domain/academic"
	"github.com/schoolfees/backend/internal/domain/audit"
	"github.com/schoolfees/backend/internal/domain/finance"
	"github.com/schoolfees/backend/internal/domain/identity"
	"github.com/schoolfees/backend/internal/domain/shared"
	"github.com/schoolfees/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SyncError describes one student the sync could not patch
type SyncError struct {
	StudentID       uuid.UUID `json:"student_id"`
	AdmissionNumber string    `json:"admission_number"`
	Message         string    `json:"message"`
}

// SyncResult summarizes a fee structure propagation run.
// Created counts invoices created by the run, Updated counts existing
// invoices whose line was added or refreshed, Removed counts lines deleted
// because the structure was deactivated.
type SyncResult struct {
	FeeStructureID uuid.UUID   `json:"fee_structure_id"`
	Processed      int         `json:"processed"`
	Created        int         `json:"created"`
	Updated        int         `json:"updated"`
	Removed        int         `json:"removed"`
	Failed         int         `json:"failed"`
	Errors         []SyncError `json:"errors,omitempty"`
}

// FeeSyncService propagates a fee structure onto the invoices of every
// student it applies to
type FeeSyncService struct {
	scope       TransactionScope
	feeRepo     finance.FeeStructureRepository
	periodRepo  academic.AcademicPeriodRepository
	studentRepo academic.StudentRepository
	metrics     LedgerMetrics
	logger      *zap.Logger
}

// FeeSyncServiceConfig holds the FeeSyncService dependencies
type FeeSyncServiceConfig struct {
	Scope       TransactionScope
	FeeRepo     finance.FeeStructureRepository
	PeriodRepo  academic.AcademicPeriodRepository
	StudentRepo academic.StudentRepository
	Metrics     LedgerMetrics
	Logger      *zap.Logger
}

// NewFeeSyncService creates a new FeeSyncService
func NewFeeSyncService(config FeeSyncServiceConfig) *FeeSyncService {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := config.Metrics
	if metrics == nil {
		metrics = NoopLedgerMetrics{}
	}
	return &FeeSyncService{
		scope:       config.Scope,
		feeRepo:     config.FeeRepo,
		periodRepo:  config.PeriodRepo,
		studentRepo: config.StudentRepo,
		metrics:     metrics,
		logger:      logger,
	}
}

// Sync patches the invoices of all active students in the structure's scope.
// Each student is handled in its own transaction; a failure is recorded in
// the result and the run continues.
func (s *FeeSyncService) Sync(ctx context.Context, schoolID, feeStructureID uuid.UUID) (*SyncResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "fee_sync", "sync")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrSchoolID, schoolID.String(),
		telemetry.SpanAttrFeeStructureID, feeStructureID.String(),
	)

	fs, err := s.feeRepo.FindByID(ctx, schoolID, feeStructureID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	period, err := s.periodRepo.FindByID(ctx, schoolID, fs.AcademicPeriodID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("load academic period: %w", err)
	}
	students, err := s.studentRepo.FindBySchool(ctx, schoolID, academic.StudentFilter{
		ClassID:    fs.ClassID,
		ActiveOnly: true,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("resolve students: %w", err)
	}

	result := &SyncResult{FeeStructureID: fs.ID}
	for i := range students {
		student := &students[i]
		if !student.IsActive() {
			continue
		}
		result.Processed++

		outcome, err := s.syncStudent(ctx, fs, period, student)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, SyncError{
				StudentID:       student.ID,
				AdmissionNumber: student.AdmissionNumber,
				Message:         err.Error(),
			})
			s.logger.Warn("Fee sync failed for student",
				zap.String("fee_structure_id", fs.ID.String()),
				zap.String("student_id", student.ID.String()),
				zap.Error(err))
			continue
		}
		switch outcome {
		case syncCreated:
			result.Created++
		case syncUpdated:
			result.Updated++
		case syncRemoved:
			result.Removed++
		}
	}

	s.metrics.RecordFeeSync(ctx, schoolID, result.Processed, result.Failed)
	s.logger.Info("Fee structure synced",
		zap.String("school_id", schoolID.String()),
		zap.String("fee_structure_id", fs.ID.String()),
		zap.Bool("active", fs.IsActive),
		zap.Int("processed", result.Processed),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("removed", result.Removed),
		zap.Int("failed", result.Failed))
	return result, nil
}

type syncOutcome int

const (
	syncUnchanged syncOutcome = iota
	syncCreated
	syncUpdated
	syncRemoved
)

func (s *FeeSyncService) syncStudent(
	ctx context.Context,
	fs *finance.FeeStructure,
	period *academic.AcademicPeriod,
	student *academic.Student,
) (syncOutcome, error) {
	outcome := syncUnchanged
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if !fs.IsActive {
			existing, err := repos.Invoices().FindByStudentAndPeriod(ctx, student.ID, period.ID)
			if err != nil {
				if shared.IsNotFound(err) {
					// Nothing was ever billed for this student.
					return nil
				}
				return err
			}
			inv, err := repos.Invoices().FindByIDForUpdate(ctx, existing.SchoolID, existing.ID)
			if err != nil {
				return err
			}
			removed, err := inv.RemoveFeeItem(fs.ID)
			if err != nil || !removed {
				return err
			}
			outcome = syncRemoved
			return recalculateInvoice(ctx, repos, inv)
		}

		inv, created, err := findOrCreateInvoice(ctx, repos, student, period, nil)
		if err != nil {
			return err
		}
		if _, err := inv.UpsertFeeItem(fs); err != nil {
			return err
		}
		if created {
			outcome = syncCreated
		} else {
			outcome = syncUpdated
		}
		return recalculateInvoice(ctx, repos, inv)
	})
	if err != nil {
		return syncUnchanged, err
	}
	return outcome, nil
}

// FeeStructureService manages fee structures and propagates every change
// to issued invoices
type FeeStructureService struct {
	scope      TransactionScope
	feeRepo    finance.FeeStructureRepository
	periodRepo academic.AcademicPeriodRepository
	sync       *FeeSyncService
	audit      *AuditRecorder
	logger     *zap.Logger
}

// NewFeeStructureService creates a new FeeStructureService
func NewFeeStructureService(
	scope TransactionScope,
	feeRepo finance.FeeStructureRepository,
	periodRepo academic.AcademicPeriodRepository,
	sync *FeeSyncService,
	logger *zap.Logger,
) *FeeStructureService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeeStructureService{
		scope:      scope,
		feeRepo:    feeRepo,
		periodRepo: periodRepo,
		sync:       sync,
		audit:      NewAuditRecorder(),
		logger:     logger,
	}
}

// CreateFeeStructureCommand carries the fields of a new fee structure
type CreateFeeStructureCommand struct {
	AcademicPeriodID uuid.UUID
	ClassID          *uuid.UUID
	Name             string
	Description      string
	Amount           decimal.Decimal
	Category         finance.FeeCategory
}

// UpdateFeeStructureCommand carries the editable fields of a fee structure
type UpdateFeeStructureCommand struct {
	Name        string
	Description string
	Amount      decimal.Decimal
	Category    finance.FeeCategory
}

// FeeStructureChange is the structure after a change plus its propagation
type FeeStructureChange struct {
	FeeStructure *finance.FeeStructure
	Sync         *SyncResult
}

// Create adds a fee structure to a period of the actor's school and bills it
func (s *FeeStructureService) Create(ctx context.Context, actor identity.Actor, cmd CreateFeeStructureCommand) (*FeeStructureChange, error) {
	if err := actor.EnsureRole(identity.FinanceStaff...); err != nil {
		return nil, err
	}
	period, err := s.periodRepo.FindByID(ctx, ActorScope(actor), cmd.AcademicPeriodID)
	if err != nil {
		return nil, err
	}
	if err := actor.EnsureSchool(period.SchoolID); err != nil {
		return nil, err
	}

	fs, err := finance.NewFeeStructure(period.SchoolID, period.ID, cmd.ClassID, cmd.Name, cmd.Description, cmd.Amount, cmd.Category)
	if err != nil {
		return nil, err
	}
	if err := s.feeRepo.Save(ctx, fs); err != nil {
		return nil, fmt.Errorf("save fee structure: %w", err)
	}
	return s.propagate(ctx, actor, fs)
}

// Update edits a fee structure and re-syncs every affected invoice
func (s *FeeStructureService) Update(ctx context.Context, actor identity.Actor, id uuid.UUID, cmd UpdateFeeStructureCommand) (*FeeStructureChange, error) {
	if err := actor.EnsureRole(identity.FinanceStaff...); err != nil {
		return nil, err
	}
	fs, err := s.feeRepo.FindByID(ctx, ActorScope(actor), id)
	if err != nil {
		return nil, err
	}
	if err := fs.Update(cmd.Name, cmd.Description, cmd.Amount, cmd.Category); err != nil {
		return nil, err
	}
	if err := s.feeRepo.Save(ctx, fs); err != nil {
		return nil, fmt.Errorf("save fee structure: %w", err)
	}
	return s.propagate(ctx, actor, fs)
}

// Deactivate soft-deletes a fee structure and strips its lines from invoices
func (s *FeeStructureService) Deactivate(ctx context.Context, actor identity.Actor, id uuid.UUID) (*FeeStructureChange, error) {
	if err := actor.EnsureRole(identity.FinanceStaff...); err != nil {
		return nil, err
	}
	fs, err := s.feeRepo.FindByID(ctx, ActorScope(actor), id)
	if err != nil {
		return nil, err
	}
	fs.Deactivate()
	if err := s.feeRepo.Save(ctx, fs); err != nil {
		return nil, fmt.Errorf("save fee structure: %w", err)
	}
	return s.propagate(ctx, actor, fs)
}

// List returns the fee structures of the actor's school
func (s *FeeStructureService) List(ctx context.Context, actor identity.Actor, filter finance.FeeStructureFilter) ([]finance.FeeStructure, error) {
	if err := actor.EnsureRole(identity.FinanceStaff...); err != nil {
		return nil, err
	}
	return s.feeRepo.List(ctx, actor.SchoolID, filter)
}

func (s *FeeStructureService) propagate(ctx context.Context, actor identity.Actor, fs *finance.FeeStructure) (*FeeStructureChange, error) {
	result, err := s.sync.Sync(ctx, fs.SchoolID, fs.ID)
	if err != nil {
		return nil, fmt.Errorf("sync fee structure: %w", err)
	}

	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		return s.audit.Record(ctx, repos, actor, fs.SchoolID, audit.ActionFeeStructureSynced, audit.EntityFeeStructure, fs.ID, map[string]any{
			"amount":    fs.Amount.StringFixed(2),
			"is_active": fs.IsActive,
			"processed": result.Processed,
			"created":   result.Created,
			"updated":   result.Updated,
			"removed":   result.Removed,
			"failed":    result.Failed,
		})
	})
	if err != nil {
		// The ledger is already patched; a missing audit row must not hide that.
		s.logger.Error("Failed to audit fee structure sync",
			zap.String("fee_structure_id", fs.ID.String()),
			zap.Error(err))
	}
	return &FeeStructureChange{FeeStructure: fs, Sync: result}, nil
}
