package finance

import (
	"strings"

	"github.com/google/uuid"
	"github.com/schoolfees/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// FeeCategory classifies a charge
type FeeCategory string

const (
	FeeCategoryTuition     FeeCategory = "TUITION"
	FeeCategoryTransport   FeeCategory = "TRANSPORT"
	FeeCategoryMeals       FeeCategory = "MEALS"
	FeeCategoryBoarding    FeeCategory = "BOARDING"
	FeeCategoryActivity    FeeCategory = "ACTIVITY"
	FeeCategoryUniform     FeeCategory = "UNIFORM"
	FeeCategoryExamination FeeCategory = "EXAMINATION"
	FeeCategoryOther       FeeCategory = "OTHER"
	// FeeCategoryAdjustment marks lines written by an approved balance adjustment
	FeeCategoryAdjustment FeeCategory = "ADJUSTMENT"
)

// IsValid checks if the category is valid
func (c FeeCategory) IsValid() bool {
	switch c {
	case FeeCategoryTuition, FeeCategoryTransport, FeeCategoryMeals, FeeCategoryBoarding,
		FeeCategoryActivity, FeeCategoryUniform, FeeCategoryExamination, FeeCategoryOther,
		FeeCategoryAdjustment:
		return true
	}
	return false
}

// IsMandatory reports whether items of this category can never be dismissed
func (c FeeCategory) IsMandatory() bool {
	return c == FeeCategoryTuition || c == FeeCategoryAdjustment
}

// FeeStructure is a charge template that generates invoice line items for
// every student in scope. A nil ClassID means the charge is school-wide.
// Fee structures are never hard-deleted once referenced; IsActive=false is
// the soft delete.
type FeeStructure struct {
	shared.SchoolAggregateRoot
	AcademicPeriodID uuid.UUID
	ClassID          *uuid.UUID
	Name             string
	Description      string
	Amount           decimal.Decimal
	Category         FeeCategory
	IsActive         bool
}

// NewFeeStructure creates an active fee structure
func NewFeeStructure(schoolID, periodID uuid.UUID, classID *uuid.UUID, name, description string, amount decimal.Decimal, category FeeCategory) (*FeeStructure, error) {
	if schoolID == uuid.Nil {
		return nil, shared.InvalidInput("School ID cannot be empty")
	}
	if periodID == uuid.Nil {
		return nil, shared.InvalidInput("Academic period ID cannot be empty")
	}
	fs := &FeeStructure{
		SchoolAggregateRoot: shared.NewSchoolAggregateRoot(schoolID),
		AcademicPeriodID:    periodID,
		ClassID:             classID,
		IsActive:            true,
	}
	if err := fs.apply(name, description, amount, category); err != nil {
		return nil, err
	}
	return fs, nil
}

// Update changes the charge. Already-issued invoices pick it up on the next sync.
func (fs *FeeStructure) Update(name, description string, amount decimal.Decimal, category FeeCategory) error {
	if err := fs.apply(name, description, amount, category); err != nil {
		return err
	}
	fs.Touch()
	fs.IncrementVersion()
	return nil
}

func (fs *FeeStructure) apply(name, description string, amount decimal.Decimal, category FeeCategory) error {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 200 {
		return shared.NewDomainError("INVALID_NAME", "Fee name must be 1-200 characters")
	}
	if !amount.IsPositive() {
		return shared.NewDomainError("INVALID_AMOUNT", "Fee amount must be positive")
	}
	if !category.IsValid() || category == FeeCategoryAdjustment {
		return shared.NewDomainError("INVALID_CATEGORY", "Invalid fee category: "+string(category))
	}
	fs.Name = name
	fs.Description = strings.TrimSpace(description)
	fs.Amount = amount.Round(2)
	fs.Category = category
	return nil
}

// Deactivate soft-deletes the fee structure
func (fs *FeeStructure) Deactivate() {
	if !fs.IsActive {
		return
	}
	fs.IsActive = false
	fs.Touch()
	fs.IncrementVersion()
}

// Activate restores a soft-deleted fee structure
func (fs *FeeStructure) Activate() {
	if fs.IsActive {
		return
	}
	fs.IsActive = true
	fs.Touch()
	fs.IncrementVersion()
}

// IsSchoolWide reports whether the charge applies to every class
func (fs *FeeStructure) IsSchoolWide() bool {
	return fs.ClassID == nil
}

// AppliesTo reports whether a student in studentClassID is charged.
func (fs *FeeStructure) AppliesTo(studentClassID *uuid.UUID) bool {
	if fs.ClassID == nil {
		return true
	}
	return studentClassID != nil && *studentClassID == *fs.ClassID
}

// ItemDescription is the text copied onto invoice line items
func (fs *FeeStructure) ItemDescription() string {
	if fs.Description == "" {
		return fs.Name
	}
	return fs.Name + " - " + fs.Description
}
