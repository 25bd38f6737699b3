package finance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/schoolfees/backend/internal/domain/academic"
	"github.com/schoolfees/backend/internal/domain/finance"
	"github.com/schoolfees/backend/internal/domain/identity"
	"github.com/schoolfees/backend/internal/domain/shared"
	"github.com/schoolfees/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GenerateInvoicesCommand selects who gets billed for a period
type GenerateInvoicesCommand struct {
	SchoolID         uuid.UUID
	AcademicPeriodID uuid.UUID
	ClassID          *uuid.UUID
	// FeeStructureIDs restricts billing to these structures; empty means
	// every active structure of the period
	FeeStructureIDs []uuid.UUID
	// DueDate overrides the period end date
	DueDate *time.Time
}

// GenerateResult reports a bulk generation run
type GenerateResult struct {
	CreatedCount int         `json:"created_count"`
	SkippedCount int         `json:"skipped_count"`
	FailedCount  int         `json:"failed_count"`
	InvoiceIDs   []uuid.UUID `json:"invoice_ids"`
	Errors       []SyncError `json:"errors,omitempty"`
}

// InvoiceGeneratorService issues invoices for a period
type InvoiceGeneratorService struct {
	scope       TransactionScope
	feeRepo     finance.FeeStructureRepository
	periodRepo  academic.AcademicPeriodRepository
	studentRepo academic.StudentRepository
	dispatcher  *EventDispatcher
	metrics     LedgerMetrics
	logger      *zap.Logger
}

// InvoiceGeneratorServiceConfig holds the InvoiceGeneratorService dependencies
type InvoiceGeneratorServiceConfig struct {
	Scope       TransactionScope
	FeeRepo     finance.FeeStructureRepository
	PeriodRepo  academic.AcademicPeriodRepository
	StudentRepo academic.StudentRepository
	Dispatcher  *EventDispatcher
	Metrics     LedgerMetrics
	Logger      *zap.Logger
}

// NewInvoiceGeneratorService creates a new InvoiceGeneratorService
func NewInvoiceGeneratorService(config InvoiceGeneratorServiceConfig) *InvoiceGeneratorService {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := config.Metrics
	if metrics == nil {
		metrics = NoopLedgerMetrics{}
	}
	return &InvoiceGeneratorService{
		scope:       config.Scope,
		feeRepo:     config.FeeRepo,
		periodRepo:  config.PeriodRepo,
		studentRepo: config.StudentRepo,
		dispatcher:  config.Dispatcher,
		metrics:     metrics,
		logger:      logger,
	}
}

type generateOutcome int

const (
	generateCreated generateOutcome = iota
	generateSkippedExisting
	generateSkippedEmpty
)

// Generate bills every targeted active student for the period. Re-running it
// is safe: students who already have an invoice for the period are skipped.
func (s *InvoiceGeneratorService) Generate(ctx context.Context, actor identity.Actor, cmd GenerateInvoicesCommand) (*GenerateResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice_generator", "generate")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrSchoolID, cmd.SchoolID.String(),
		telemetry.SpanAttrPeriodID, cmd.AcademicPeriodID.String(),
	)

	if err := actor.EnsureRole(identity.FinanceStaff...); err != nil {
		return nil, err
	}
	if err := actor.EnsureSchool(cmd.SchoolID); err != nil {
		return nil, err
	}

	period, err := s.periodRepo.FindByID(ctx, cmd.SchoolID, cmd.AcademicPeriodID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	structures, err := s.resolveStructures(ctx, cmd.SchoolID, period.ID, cmd.FeeStructureIDs)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	students, err := s.studentRepo.FindBySchool(ctx, cmd.SchoolID, academic.StudentFilter{
		ClassID:    cmd.ClassID,
		ActiveOnly: true,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("resolve students: %w", err)
	}

	result := &GenerateResult{InvoiceIDs: make([]uuid.UUID, 0)}
	var lastCreated *finance.Invoice
	for i := range students {
		student := &students[i]
		if !student.IsActive() {
			continue
		}
		inv, outcome, err := s.generateForStudent(ctx, period, student, structures, cmd.DueDate)
		if err != nil {
			result.FailedCount++
			result.Errors = append(result.Errors, SyncError{
				StudentID:       student.ID,
				AdmissionNumber: student.AdmissionNumber,
				Message:         err.Error(),
			})
			s.logger.Warn("Invoice generation failed for student",
				zap.String("student_id", student.ID.String()),
				zap.String("period", period.Label()),
				zap.Error(err))
			continue
		}
		if outcome != generateCreated {
			result.SkippedCount++
			continue
		}
		result.CreatedCount++
		result.InvoiceIDs = append(result.InvoiceIDs, inv.ID)
		lastCreated = inv
	}

	switch {
	case result.CreatedCount > 1:
		s.dispatcher.Dispatch(ctx, finance.NewInvoicesBulkGeneratedEvent(cmd.SchoolID, period.ID, result.InvoiceIDs))
	case result.CreatedCount == 1:
		s.dispatcher.Dispatch(ctx, finance.NewInvoiceGeneratedEvent(lastCreated))
	}

	s.metrics.RecordInvoicesGenerated(ctx, cmd.SchoolID, result.CreatedCount, result.SkippedCount, result.FailedCount)
	s.logger.Info("Invoices generated",
		zap.String("school_id", cmd.SchoolID.String()),
		zap.String("period", period.Label()),
		zap.Int("created", result.CreatedCount),
		zap.Int("skipped", result.SkippedCount),
		zap.Int("failed", result.FailedCount))
	return result, nil
}

// GenerateForStudent issues the invoice of one student for the period.
// It returns the existing invoice and created=false when one was already issued.
func (s *InvoiceGeneratorService) GenerateForStudent(
	ctx context.Context,
	actor identity.Actor,
	schoolID, studentID, periodID uuid.UUID,
	dueDate *time.Time,
) (*finance.Invoice, bool, error) {
	if err := actor.EnsureRole(identity.FinanceStaff...); err != nil {
		return nil, false, err
	}
	if err := actor.EnsureSchool(schoolID); err != nil {
		return nil, false, err
	}
	period, err := s.periodRepo.FindByID(ctx, schoolID, periodID)
	if err != nil {
		return nil, false, err
	}
	student, err := s.studentRepo.FindByID(ctx, schoolID, studentID)
	if err != nil {
		return nil, false, err
	}
	if !student.IsActive() {
		return nil, false, shared.NewDomainError("STUDENT_NOT_ACTIVE", "Only active students can be invoiced")
	}
	structures, err := s.resolveStructures(ctx, schoolID, period.ID, nil)
	if err != nil {
		return nil, false, err
	}

	inv, outcome, err := s.generateForStudent(ctx, period, student, structures, dueDate)
	if err != nil {
		return nil, false, err
	}
	switch outcome {
	case generateSkippedEmpty:
		return nil, false, shared.NewDomainError("NO_APPLICABLE_FEES", "No fee structures apply to this student")
	case generateSkippedExisting:
		existing, err := s.periodInvoice(ctx, student.ID, period.ID)
		return existing, false, err
	}

	s.dispatcher.Dispatch(ctx, finance.NewInvoiceGeneratedEvent(inv))
	return inv, true, nil
}

func (s *InvoiceGeneratorService) periodInvoice(ctx context.Context, studentID, periodID uuid.UUID) (*finance.Invoice, error) {
	var inv *finance.Invoice
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		inv, err = repos.Invoices().FindByStudentAndPeriod(ctx, studentID, periodID)
		return err
	})
	return inv, err
}

func (s *InvoiceGeneratorService) resolveStructures(ctx context.Context, schoolID, periodID uuid.UUID, ids []uuid.UUID) ([]finance.FeeStructure, error) {
	var (
		structures []finance.FeeStructure
		err        error
	)
	if len(ids) > 0 {
		structures, err = s.feeRepo.FindByIDs(ctx, schoolID, lo.Uniq(ids))
	} else {
		structures, err = s.feeRepo.FindActiveForPeriod(ctx, schoolID, periodID)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve fee structures: %w", err)
	}
	return lo.Filter(structures, func(fs finance.FeeStructure, _ int) bool {
		return fs.IsActive && fs.AcademicPeriodID == periodID
	}), nil
}

func (s *InvoiceGeneratorService) generateForStudent(
	ctx context.Context,
	period *academic.AcademicPeriod,
	student *academic.Student,
	structures []finance.FeeStructure,
	dueDate *time.Time,
) (*finance.Invoice, generateOutcome, error) {
	applicable := lo.Filter(structures, func(fs finance.FeeStructure, _ int) bool {
		return fs.AppliesTo(student.ClassID)
	})
	if len(applicable) == 0 {
		return nil, generateSkippedEmpty, nil
	}

	due := period.EndDate
	if dueDate != nil {
		due = *dueDate
	}
	number := finance.FormatInvoiceNumber(period.AcademicYear, period.Term, student.AdmissionNumber)

	var (
		inv     *finance.Invoice
		outcome generateOutcome
	)
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		_, err := repos.Invoices().FindByStudentAndPeriod(ctx, student.ID, period.ID)
		if err == nil {
			outcome = generateSkippedExisting
			return nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return err
		}

		inv, err = finance.NewInvoice(student.SchoolID, student.ID, period.ID, number, due)
		if err != nil {
			return err
		}
		for i := range applicable {
			fs := &applicable[i]
			if _, err := inv.UpsertFeeItem(fs); err != nil {
				return err
			}
		}
		inv.Recalculate(decimal.Zero)
		if !inv.TotalAmount.IsPositive() {
			outcome = generateSkippedEmpty
			return nil
		}

		created, err := repos.Invoices().CreateIfAbsent(ctx, inv)
		if err != nil {
			return fmt.Errorf("create invoice %s: %w", number, err)
		}
		if !created {
			outcome = generateSkippedExisting
			return nil
		}
		outcome = generateCreated
		return nil
	})
	if err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			// A concurrent run inserted the same invoice number first.
			return nil, generateSkippedExisting, nil
		}
		return nil, generateCreated, err
	}
	return inv, outcome, nil
}
