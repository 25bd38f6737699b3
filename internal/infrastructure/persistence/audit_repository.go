package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/schoolfees/backend/internal/domain/audit"
	"github.com/schoolfees/backend/internal/domain/shared"
	"github.com/schoolfees/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormAuditRepository implements audit.Repository using GORM.
// It only ever inserts.
type GormAuditRepository struct {
	db *gorm.DB
}

// NewGormAuditRepository creates a new GormAuditRepository
func NewGormAuditRepository(db *gorm.DB) *GormAuditRepository {
	return &GormAuditRepository{db: db}
}

// Append inserts an audit entry
func (r *GormAuditRepository) Append(ctx context.Context, entry *audit.Entry) error {
	model, err := models.AuditEntryModelFromDomain(entry)
	if err != nil {
		return fmt.Errorf("encode audit details: %w", err)
	}
	return r.db.WithContext(ctx).Create(model).Error
}

// ListByEntity returns the trail of one entity, oldest first
func (r *GormAuditRepository) ListByEntity(ctx context.Context, schoolID uuid.UUID, entityType string, entityID uuid.UUID) ([]audit.Entry, error) {
	var entryModels []models.AuditEntryModel
	if err := r.db.WithContext(ctx).
		Scopes(schoolScope(schoolID)).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at ASC").
		Find(&entryModels).Error; err != nil {
		return nil, err
	}
	return auditEntriesToDomain(entryModels), nil
}

// ListBySchool returns a page of the school's audit log, newest first
func (r *GormAuditRepository) ListBySchool(ctx context.Context, schoolID uuid.UUID, page shared.Filter) ([]audit.Entry, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&models.AuditEntryModel{}).
		Where("school_id = ?", schoolID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entryModels []models.AuditEntryModel
	if err := r.db.WithContext(ctx).
		Where("school_id = ?", schoolID).
		Order("created_at DESC").
		Scopes(paginate(page)).
		Find(&entryModels).Error; err != nil {
		return nil, 0, err
	}
	return auditEntriesToDomain(entryModels), total, nil
}

func auditEntriesToDomain(entryModels []models.AuditEntryModel) []audit.Entry {
	entries := make([]audit.Entry, len(entryModels))
	for i := range entryModels {
		entries[i] = *entryModels[i].ToDomain()
	}
	return entries
}

// Ensure GormAuditRepository implements Repository
var _ audit.Repository = (*GormAuditRepository)(nil)
