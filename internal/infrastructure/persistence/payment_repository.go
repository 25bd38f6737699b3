package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/schoolfees/backend/internal/domain/finance"
	"github.com/schoolfees/backend/internal/domain/shared"
	"github.com/schoolfees/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormPaymentRepository implements finance.PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// FindByID finds a payment of the school
func (r *GormPaymentRepository) FindByID(ctx context.Context, schoolID, id uuid.UUID) (*finance.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).
		Scopes(schoolScope(schoolID)).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		return nil, translateError(err, "Payment")
	}
	return model.ToDomain(), nil
}

// FindByIDForUpdate finds a payment and locks its row
func (r *GormPaymentRepository) FindByIDForUpdate(ctx context.Context, schoolID, id uuid.UUID) (*finance.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).
		Scopes(schoolScope(schoolID), forUpdate).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		return nil, translateError(err, "Payment")
	}
	return model.ToDomain(), nil
}

// FindByTransactionRefForUpdate locks the payment carrying a gateway reference
func (r *GormPaymentRepository) FindByTransactionRefForUpdate(ctx context.Context, method finance.PaymentMethod, ref string) (*finance.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).
		Scopes(forUpdate).
		Where("method = ? AND transaction_ref = ?", method, ref).
		Order("created_at ASC").
		First(&model).Error; err != nil {
		return nil, translateError(err, "Payment")
	}
	return model.ToDomain(), nil
}

// FindByTransactionRef finds the payment carrying a gateway reference
func (r *GormPaymentRepository) FindByTransactionRef(ctx context.Context, method finance.PaymentMethod, ref string) (*finance.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).
		Where("method = ? AND transaction_ref = ?", method, ref).
		Order("created_at ASC").
		First(&model).Error; err != nil {
		return nil, translateError(err, "Payment")
	}
	return model.ToDomain(), nil
}

// SumCompletedByInvoice sums the COMPLETED payments attached to an invoice
func (r *GormPaymentRepository) SumCompletedByInvoice(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	if err := r.db.WithContext(ctx).
		Model(&models.PaymentModel{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("invoice_id = ? AND status = ?", invoiceID, finance.PaymentStatusCompleted).
		Scan(&sum).Error; err != nil {
		return decimal.Zero, fmt.Errorf("sum completed payments: %w", err)
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal.Round(2), nil
}

// Create inserts a new payment. A duplicate gateway reference yields
// shared.ErrAlreadyExists.
func (r *GormPaymentRepository) Create(ctx context.Context, payment *finance.Payment) error {
	model := models.PaymentModelFromDomain(payment)
	return translateError(r.db.WithContext(ctx).Create(model).Error, "Payment")
}

// Save updates a payment with optimistic locking. The caller has already
// bumped Version.
func (r *GormPaymentRepository) Save(ctx context.Context, payment *finance.Payment) error {
	model := models.PaymentModelFromDomain(payment)
	result := r.db.WithContext(ctx).
		Model(&models.PaymentModel{}).
		Where("id = ? AND version = ?", payment.ID, payment.Version-1).
		Updates(map[string]any{
			"student_id":     model.StudentID,
			"invoice_id":     model.InvoiceID,
			"amount":         model.Amount,
			"status":         model.Status,
			"receipt_number": model.ReceiptNumber,
			"payer_phone":    model.PayerPhone,
			"payer_name":     model.PayerName,
			"unassigned":     model.Unassigned,
			"failure_reason": model.FailureReason,
			"notes":          model.Notes,
			"completed_at":   model.CompletedAt,
			"version":        model.Version,
			"updated_at":     model.UpdatedAt,
		})
	if result.Error != nil {
		return translateError(result.Error, "Payment")
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError("CONCURRENCY_CONFLICT", "Payment was modified by another transaction")
	}
	return nil
}

// PaymentSortFields contains allowed sort fields for payments
var PaymentSortFields = map[string]bool{
	"created_at":   true,
	"updated_at":   true,
	"completed_at": true,
	"amount":       true,
	"method":       true,
	"status":       true,
}

// List returns a page of the school's payments and the total match count
func (r *GormPaymentRepository) List(ctx context.Context, schoolID uuid.UUID, filter finance.PaymentFilter, page shared.Filter) ([]finance.Payment, int64, error) {
	var total int64
	countQuery := r.db.WithContext(ctx).Model(&models.PaymentModel{})
	if err := applyPaymentFilter(countQuery, schoolID, filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var paymentModels []models.PaymentModel
	if err := applyPaymentFilter(r.db.WithContext(ctx), schoolID, filter).
		Scopes(orderBy(page, PaymentSortFields, "created_at"), paginate(page)).
		Find(&paymentModels).Error; err != nil {
		return nil, 0, err
	}
	payments := make([]finance.Payment, len(paymentModels))
	for i := range paymentModels {
		payments[i] = *paymentModels[i].ToDomain()
	}
	return payments, total, nil
}

func applyPaymentFilter(query *gorm.DB, schoolID uuid.UUID, filter finance.PaymentFilter) *gorm.DB {
	query = query.Scopes(schoolScope(schoolID))
	if filter.InvoiceID != nil {
		query = query.Where("invoice_id = ?", *filter.InvoiceID)
	}
	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.UnassignedOnly {
		query = query.Where("unassigned = ?", true)
	}
	return query
}

// Ensure GormPaymentRepository implements PaymentRepository
var _ finance.PaymentRepository = (*GormPaymentRepository)(nil)
