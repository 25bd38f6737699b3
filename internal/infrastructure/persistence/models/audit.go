package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/schoolfees/backend/internal/domain/audit"
	"gorm.io/datatypes"
)

// AuditEntryModel is the persistence model for audit entries. Rows are
// inserted and read, never updated.
type AuditEntryModel struct {
	ID         uuid.UUID      `gorm:"type:uuid;primary_key"`
	SchoolID   uuid.UUID      `gorm:"type:uuid;not null;index"`
	UserID     *uuid.UUID     `gorm:"type:uuid;index"`
	Action     audit.Action   `gorm:"type:varchar(50);not null;index"`
	EntityType string         `gorm:"type:varchar(50);not null;index:idx_audit_entity,priority:1"`
	EntityID   uuid.UUID      `gorm:"type:uuid;not null;index:idx_audit_entity,priority:2"`
	Details    datatypes.JSON `gorm:"not null"`
	CreatedAt  time.Time      `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (AuditEntryModel) TableName() string {
	return "audit_entries"
}

// ToDomain converts the persistence model to a domain audit Entry.
// Malformed details are surfaced as a raw string rather than dropped.
func (m *AuditEntryModel) ToDomain() *audit.Entry {
	details := map[string]any{}
	if len(m.Details) > 0 {
		if err := json.Unmarshal(m.Details, &details); err != nil {
			details = map[string]any{"raw": string(m.Details)}
		}
	}
	return &audit.Entry{
		ID:         m.ID,
		SchoolID:   m.SchoolID,
		UserID:     m.UserID,
		Action:     m.Action,
		EntityType: m.EntityType,
		EntityID:   m.EntityID,
		Details:    details,
		CreatedAt:  m.CreatedAt,
	}
}

// AuditEntryModelFromDomain creates a new persistence model from a domain audit Entry.
func AuditEntryModelFromDomain(e *audit.Entry) (*AuditEntryModel, error) {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return nil, err
	}
	return &AuditEntryModel{
		ID:         e.ID,
		SchoolID:   e.SchoolID,
		UserID:     e.UserID,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Details:    datatypes.JSON(details),
		CreatedAt:  e.CreatedAt,
	}, nil
}
