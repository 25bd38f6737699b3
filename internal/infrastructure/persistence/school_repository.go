package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/schoolfees/backend/internal/domain/identity"
	"github.com/schoolfees/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormSchoolRepository implements identity.SchoolRepository using GORM
type GormSchoolRepository struct {
	db *gorm.DB
}

// NewGormSchoolRepository creates a new GormSchoolRepository
func NewGormSchoolRepository(db *gorm.DB) *GormSchoolRepository {
	return &GormSchoolRepository{db: db}
}

// FindByID finds a school by its ID
func (r *GormSchoolRepository) FindByID(ctx context.Context, id uuid.UUID) (*identity.School, error) {
	var model models.SchoolModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "School")
	}
	return model.ToDomain(), nil
}

// FindByPaybillShortcode resolves the school owning a paybill shortcode
func (r *GormSchoolRepository) FindByPaybillShortcode(ctx context.Context, shortcode string) (*identity.School, error) {
	var model models.SchoolModel
	if err := r.db.WithContext(ctx).
		Where("paybill_shortcode = ?", shortcode).
		First(&model).Error; err != nil {
		return nil, translateError(err, "School")
	}
	return model.ToDomain(), nil
}

// Save creates or updates a school
func (r *GormSchoolRepository) Save(ctx context.Context, school *identity.School) error {
	model := models.SchoolModelFromDomain(school)
	return translateError(r.db.WithContext(ctx).Save(model).Error, "School")
}

// Ensure GormSchoolRepository implements SchoolRepository
var _ identity.SchoolRepository = (*GormSchoolRepository)(nil)
