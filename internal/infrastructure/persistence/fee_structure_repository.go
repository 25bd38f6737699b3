package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/schoolfees/backend/internal/domain/finance"
	"github.com/schoolfees/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormFeeStructureRepository implements finance.FeeStructureRepository using GORM
type GormFeeStructureRepository struct {
	db *gorm.DB
}

// NewGormFeeStructureRepository creates a new GormFeeStructureRepository
func NewGormFeeStructureRepository(db *gorm.DB) *GormFeeStructureRepository {
	return &GormFeeStructureRepository{db: db}
}

// FindByID finds a fee structure of the school
func (r *GormFeeStructureRepository) FindByID(ctx context.Context, schoolID, id uuid.UUID) (*finance.FeeStructure, error) {
	var model models.FeeStructureModel
	if err := r.db.WithContext(ctx).
		Scopes(schoolScope(schoolID)).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		return nil, translateError(err, "Fee structure")
	}
	return model.ToDomain(), nil
}

// FindByIDs loads the listed fee structures of the school; unknown IDs are skipped
func (r *GormFeeStructureRepository) FindByIDs(ctx context.Context, schoolID uuid.UUID, ids []uuid.UUID) ([]finance.FeeStructure, error) {
	if len(ids) == 0 {
		return []finance.FeeStructure{}, nil
	}
	var feeModels []models.FeeStructureModel
	if err := r.db.WithContext(ctx).
		Where("school_id = ? AND id IN ?", schoolID, ids).
		Order("created_at ASC").
		Find(&feeModels).Error; err != nil {
		return nil, err
	}
	return feeStructuresToDomain(feeModels), nil
}

// FindActiveForPeriod returns the active structures of a period
func (r *GormFeeStructureRepository) FindActiveForPeriod(ctx context.Context, schoolID, periodID uuid.UUID) ([]finance.FeeStructure, error) {
	var feeModels []models.FeeStructureModel
	if err := r.db.WithContext(ctx).
		Where("school_id = ? AND academic_period_id = ? AND is_active = ?", schoolID, periodID, true).
		Order("created_at ASC").
		Find(&feeModels).Error; err != nil {
		return nil, err
	}
	return feeStructuresToDomain(feeModels), nil
}

// List returns the school's fee structures matching the filter
func (r *GormFeeStructureRepository) List(ctx context.Context, schoolID uuid.UUID, filter finance.FeeStructureFilter) ([]finance.FeeStructure, error) {
	query := r.db.WithContext(ctx).Where("school_id = ?", schoolID)
	if filter.AcademicPeriodID != nil {
		query = query.Where("academic_period_id = ?", *filter.AcademicPeriodID)
	}
	if filter.ClassID != nil {
		query = query.Where("class_id = ?", *filter.ClassID)
	}
	if filter.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}

	var feeModels []models.FeeStructureModel
	if err := query.Order("created_at ASC").Find(&feeModels).Error; err != nil {
		return nil, err
	}
	return feeStructuresToDomain(feeModels), nil
}

// Save creates or updates a fee structure
func (r *GormFeeStructureRepository) Save(ctx context.Context, fs *finance.FeeStructure) error {
	model := models.FeeStructureModelFromDomain(fs)
	return translateError(r.db.WithContext(ctx).Save(model).Error, "Fee structure")
}

func feeStructuresToDomain(feeModels []models.FeeStructureModel) []finance.FeeStructure {
	structures := make([]finance.FeeStructure, len(feeModels))
	for i, model := range feeModels {
		structures[i] = *model.ToDomain()
	}
	return structures
}

// Ensure GormFeeStructureRepository implements FeeStructureRepository
var _ finance.FeeStructureRepository = (*GormFeeStructureRepository)(nil)
