package academic

import (
	"context"

	"github.com/google/uuid"
)

// AcademicPeriodRepository persists academic periods
type AcademicPeriodRepository interface {
	FindByID(ctx context.Context, schoolID, id uuid.UUID) (*AcademicPeriod, error)
	FindActive(ctx context.Context, schoolID uuid.UUID) (*AcademicPeriod, error)
	FindBySchool(ctx context.Context, schoolID uuid.UUID) ([]AcademicPeriod, error)
	// DeactivateAll clears is_active on every period of the school
	DeactivateAll(ctx context.Context, schoolID uuid.UUID) error
	Save(ctx context.Context, period *AcademicPeriod) error
}

// StudentFilter narrows student listings
type StudentFilter struct {
	ClassID    *uuid.UUID
	ActiveOnly bool
}

// StudentRepository persists students and their guardian links
type StudentRepository interface {
	FindByID(ctx context.Context, schoolID, id uuid.UUID) (*Student, error)
	FindByAdmissionNumber(ctx context.Context, schoolID uuid.UUID, admissionNumber string) (*Student, error)
	FindBySchool(ctx context.Context, schoolID uuid.UUID, filter StudentFilter) ([]Student, error)
	IsGuardian(ctx context.Context, studentID, userID uuid.UUID) (bool, error)
	Save(ctx context.Context, student *Student) error
}
