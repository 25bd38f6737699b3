package handler

import (
	"time"

	"github.com/google/uuid"
	appfinance "github.com/schoolfees/backend/internal/application/finance"
	"github.com/schoolfees/backend/internal/domain/finance"
	"github.com/shopspring/decimal"
)

// FeeStructureResponse is a charge template
// @Description Fee structure of an academic period
type FeeStructureResponse struct {
	ID               uuid.UUID       `json:"id"`
	SchoolID         uuid.UUID       `json:"school_id"`
	AcademicPeriodID uuid.UUID       `json:"academic_period_id"`
	ClassID          *uuid.UUID      `json:"class_id,omitempty"`
	Name             string          `json:"name" example:"Tuition"`
	Description      string          `json:"description,omitempty"`
	Amount           decimal.Decimal `json:"amount" swaggertype:"string" example:"15000.00"`
	Category         string          `json:"category" example:"TUITION"`
	IsActive         bool            `json:"is_active"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// FeeStructureChangeResponse is a structure plus the result of syncing it
// onto existing invoices
// @Description Fee structure after a change with its propagation summary
type FeeStructureChangeResponse struct {
	FeeStructure FeeStructureResponse   `json:"fee_structure"`
	Sync         *appfinance.SyncResult `json:"sync,omitempty"`
}

func toFeeStructureResponse(fs *finance.FeeStructure) FeeStructureResponse {
	return FeeStructureResponse{
		ID:               fs.ID,
		SchoolID:         fs.SchoolID,
		AcademicPeriodID: fs.AcademicPeriodID,
		ClassID:          fs.ClassID,
		Name:             fs.Name,
		Description:      fs.Description,
		Amount:           fs.Amount,
		Category:         string(fs.Category),
		IsActive:         fs.IsActive,
		CreatedAt:        fs.CreatedAt,
		UpdatedAt:        fs.UpdatedAt,
	}
}

func toFeeStructureChangeResponse(change *appfinance.FeeStructureChange) FeeStructureChangeResponse {
	return FeeStructureChangeResponse{
		FeeStructure: toFeeStructureResponse(change.FeeStructure),
		Sync:         change.Sync,
	}
}

// CreateFeeStructureRequest adds a fee structure
// @Description New fee structure. Omit class_id for a school-wide charge.
type CreateFeeStructureRequest struct {
	AcademicPeriodID string          `json:"academic_period_id" binding:"required,uuid"`
	ClassID          string          `json:"class_id" binding:"omitempty,uuid"`
	Name             string          `json:"name" binding:"required,max=100" example:"Tuition"`
	Description      string          `json:"description" binding:"max=255"`
	Amount           decimal.Decimal `json:"amount" swaggertype:"string" example:"15000.00"`
	Category         string          `json:"category" binding:"required,fee_category" example:"TUITION"`
}

// UpdateFeeStructureRequest edits a fee structure
// @Description Editable fee structure fields
type UpdateFeeStructureRequest struct {
	Name        string          `json:"name" binding:"required,max=100" example:"Tuition"`
	Description string          `json:"description" binding:"max=255"`
	Amount      decimal.Decimal `json:"amount" swaggertype:"string" example:"16000.00"`
	Category    string          `json:"category" binding:"required,fee_category" example:"TUITION"`
}

// ListFeeStructuresQuery filters the fee structure list
type ListFeeStructuresQuery struct {
	AcademicPeriodID string `form:"academic_period_id" binding:"omitempty,uuid"`
	ClassID          string `form:"class_id" binding:"omitempty,uuid"`
	ActiveOnly       bool   `form:"active_only"`
}
