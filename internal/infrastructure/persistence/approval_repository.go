package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/schoolfees/backend/internal/domain/finance"
	"github.com/schoolfees/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormApprovalRequestRepository implements finance.ApprovalRequestRepository using GORM
type GormApprovalRequestRepository struct {
	db *gorm.DB
}

// NewGormApprovalRequestRepository creates a new GormApprovalRequestRepository
func NewGormApprovalRequestRepository(db *gorm.DB) *GormApprovalRequestRepository {
	return &GormApprovalRequestRepository{db: db}
}

// FindByID finds a request of the school
func (r *GormApprovalRequestRepository) FindByID(ctx context.Context, schoolID, id uuid.UUID) (*finance.ApprovalRequest, error) {
	var model models.ApprovalRequestModel
	if err := r.db.WithContext(ctx).
		Scopes(schoolScope(schoolID)).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		return nil, translateError(err, "Approval request")
	}
	return model.ToDomain()
}

// FindByIDForUpdate finds a request and locks its row
func (r *GormApprovalRequestRepository) FindByIDForUpdate(ctx context.Context, schoolID, id uuid.UUID) (*finance.ApprovalRequest, error) {
	var model models.ApprovalRequestModel
	if err := r.db.WithContext(ctx).
		Scopes(schoolScope(schoolID), forUpdate).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		return nil, translateError(err, "Approval request")
	}
	return model.ToDomain()
}

// List returns the school's requests, newest first
func (r *GormApprovalRequestRepository) List(ctx context.Context, schoolID uuid.UUID, status *finance.ApprovalStatus) ([]finance.ApprovalRequest, error) {
	query := r.db.WithContext(ctx).Where("school_id = ?", schoolID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var requestModels []models.ApprovalRequestModel
	if err := query.Order("created_at DESC").Find(&requestModels).Error; err != nil {
		return nil, err
	}
	requests := make([]finance.ApprovalRequest, 0, len(requestModels))
	for i := range requestModels {
		req, err := requestModels[i].ToDomain()
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	return requests, nil
}

// Save creates or updates a request
func (r *GormApprovalRequestRepository) Save(ctx context.Context, request *finance.ApprovalRequest) error {
	model := &models.ApprovalRequestModel{}
	if err := model.FromDomain(request); err != nil {
		return err
	}
	return translateError(r.db.WithContext(ctx).Save(model).Error, "Approval request")
}

// Ensure GormApprovalRequestRepository implements ApprovalRequestRepository
var _ finance.ApprovalRequestRepository = (*GormApprovalRequestRepository)(nil)
