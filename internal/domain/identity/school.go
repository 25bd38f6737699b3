package identity

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/schoolfees/backend/internal/domain/shared"
)

// PlanTier is the school's subscription tier
type PlanTier string

const (
	PlanTierBasic      PlanTier = "BASIC"
	PlanTierStandard   PlanTier = "STANDARD"
	PlanTierPremium    PlanTier = "PREMIUM"
	PlanTierEnterprise PlanTier = "ENTERPRISE"
)

// PlanStatus is the school's subscription status
type PlanStatus string

const (
	PlanStatusActive    PlanStatus = "ACTIVE"
	PlanStatusTrial     PlanStatus = "TRIAL"
	PlanStatusSuspended PlanStatus = "SUSPENDED"
)

// School is the tenant boundary. Every ledger row is owned by a school.
type School struct {
	shared.BaseAggregateRoot
	Code             string
	Name             string
	PaybillShortcode string
	PlanTier         PlanTier
	PlanStatus       PlanStatus
}

// NewSchool creates a school on the basic plan
func NewSchool(code, name string) (*School, error) {
	code = strings.TrimSpace(code)
	name = strings.TrimSpace(name)
	if code == "" || len(code) > 50 {
		return nil, shared.NewDomainError("INVALID_CODE", "School code must be 1-50 characters")
	}
	if name == "" || len(name) > 200 {
		return nil, shared.NewDomainError("INVALID_NAME", "School name must be 1-200 characters")
	}
	return &School{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Code:              strings.ToUpper(code),
		Name:              name,
		PlanTier:          PlanTierBasic,
		PlanStatus:        PlanStatusActive,
	}, nil
}

// IsSuspended reports whether the school's plan is suspended
func (s *School) IsSuspended() bool {
	return s.PlanStatus == PlanStatusSuspended
}

// SchoolRepository reads schools
type SchoolRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*School, error)
	FindByPaybillShortcode(ctx context.Context, shortcode string) (*School, error)
	Save(ctx context.Context, school *School) error
}
