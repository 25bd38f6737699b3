package academic

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/schoolfees/backend/internal/domain/shared"
)

// Term numbers run 1..MaxTerm within an academic year.
const MaxTerm = 3

// AcademicPeriod is one term of an academic year for a school.
// At most one period per school is active at a time; activation is done by
// the period service inside a single transaction.
type AcademicPeriod struct {
	shared.SchoolAggregateRoot
	AcademicYear int
	Term         int
	Name         string
	StartDate    time.Time
	EndDate      time.Time
	IsActive     bool
}

// NewAcademicPeriod creates an inactive academic period
func NewAcademicPeriod(schoolID uuid.UUID, academicYear, term int, startDate, endDate time.Time) (*AcademicPeriod, error) {
	if schoolID == uuid.Nil {
		return nil, shared.InvalidInput("School ID cannot be empty")
	}
	if academicYear < 2000 || academicYear > 2100 {
		return nil, shared.NewDomainError("INVALID_ACADEMIC_YEAR", "Academic year must be between 2000 and 2100")
	}
	if term < 1 || term > MaxTerm {
		return nil, shared.NewDomainError("INVALID_TERM", fmt.Sprintf("Term must be between 1 and %d", MaxTerm))
	}
	if !endDate.After(startDate) {
		return nil, shared.NewDomainError("INVALID_PERIOD_DATES", "End date must be after start date")
	}

	return &AcademicPeriod{
		SchoolAggregateRoot: shared.NewSchoolAggregateRoot(schoolID),
		AcademicYear:        academicYear,
		Term:                term,
		Name:                fmt.Sprintf("%d Term %d", academicYear, term),
		StartDate:           startDate,
		EndDate:             endDate,
	}, nil
}

// Activate marks the period active. Callers must deactivate the school's
// other periods in the same transaction.
func (p *AcademicPeriod) Activate() {
	if p.IsActive {
		return
	}
	p.IsActive = true
	p.Touch()
	p.IncrementVersion()
	p.AddDomainEvent(NewPeriodActivatedEvent(p))
}

// Deactivate marks the period inactive
func (p *AcademicPeriod) Deactivate() {
	if !p.IsActive {
		return
	}
	p.IsActive = false
	p.Touch()
	p.IncrementVersion()
}

// Label is the "{year}-{term}" fragment used in invoice numbers
func (p *AcademicPeriod) Label() string {
	return fmt.Sprintf("%d-%d", p.AcademicYear, p.Term)
}

const (
	EventTypePeriodActivated = "AcademicPeriodActivated"
	AggregateTypePeriod      = "AcademicPeriod"
)

// PeriodActivatedEvent is raised when a period becomes the school's active period
type PeriodActivatedEvent struct {
	shared.BaseDomainEvent
	AcademicYear int `json:"academic_year"`
	Term         int `json:"term"`
}

// NewPeriodActivatedEvent creates a PeriodActivatedEvent
func NewPeriodActivatedEvent(p *AcademicPeriod) *PeriodActivatedEvent {
	return &PeriodActivatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePeriodActivated, AggregateTypePeriod, p.ID, p.SchoolID),
		AcademicYear:    p.AcademicYear,
		Term:            p.Term,
	}
}
