package models

import (
	"github.com/schoolfees/backend/internal/domain/identity"
)

// SchoolModel is the persistence model for the School aggregate.
// PaybillShortcode is nullable so that unique applies only to schools with a paybill.
type SchoolModel struct {
	AggregateModel
	Code             string              `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name             string              `gorm:"type:varchar(200);not null"`
	PaybillShortcode *string             `gorm:"type:varchar(20);uniqueIndex"`
	PlanTier         identity.PlanTier   `gorm:"type:varchar(20);not null;default:'BASIC'"`
	PlanStatus       identity.PlanStatus `gorm:"type:varchar(20);not null;default:'ACTIVE'"`
}

// TableName returns the table name for GORM
func (SchoolModel) TableName() string {
	return "schools"
}

// ToDomain converts the persistence model to a domain School entity.
func (m *SchoolModel) ToDomain() *identity.School {
	s := &identity.School{
		BaseAggregateRoot: m.ToAggregateRoot(),
		Code:              m.Code,
		Name:              m.Name,
		PlanTier:          m.PlanTier,
		PlanStatus:        m.PlanStatus,
	}
	if m.PaybillShortcode != nil {
		s.PaybillShortcode = *m.PaybillShortcode
	}
	return s
}

// FromDomain populates the persistence model from a domain School entity.
func (m *SchoolModel) FromDomain(s *identity.School) {
	m.FromDomainAggregateRoot(s.BaseAggregateRoot)
	m.Code = s.Code
	m.Name = s.Name
	m.PlanTier = s.PlanTier
	m.PlanStatus = s.PlanStatus
	m.PaybillShortcode = nil
	if s.PaybillShortcode != "" {
		code := s.PaybillShortcode
		m.PaybillShortcode = &code
	}
}

// SchoolModelFromDomain creates a new persistence model from a domain School entity.
func SchoolModelFromDomain(s *identity.School) *SchoolModel {
	m := &SchoolModel{}
	m.FromDomain(s)
	return m
}
