package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/schoolfees/backend/internal/domain/finance"
	"github.com/schoolfees/backend/internal/domain/shared"
	"github.com/schoolfees/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormInvoiceRepository implements finance.InvoiceRepository using GORM.
// Invoices are always loaded with their items.
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

func preloadItems(db *gorm.DB) *gorm.DB {
	return db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC, id ASC")
	})
}

func (r *GormInvoiceRepository) first(query *gorm.DB) (*finance.Invoice, error) {
	var model models.InvoiceModel
	if err := query.Scopes(preloadItems).First(&model).Error; err != nil {
		return nil, translateError(err, "Invoice")
	}
	return model.ToDomain(), nil
}

// FindByID finds an invoice of the school
func (r *GormInvoiceRepository) FindByID(ctx context.Context, schoolID, id uuid.UUID) (*finance.Invoice, error) {
	return r.first(r.db.WithContext(ctx).
		Scopes(schoolScope(schoolID)).
		Where("id = ?", id))
}

// FindByIDForUpdate finds an invoice and locks its row
func (r *GormInvoiceRepository) FindByIDForUpdate(ctx context.Context, schoolID, id uuid.UUID) (*finance.Invoice, error) {
	return r.first(r.db.WithContext(ctx).
		Scopes(schoolScope(schoolID), forUpdate).
		Where("id = ?", id))
}

// FindByItemID finds the invoice owning a line item
func (r *GormInvoiceRepository) FindByItemID(ctx context.Context, itemID uuid.UUID) (*finance.Invoice, error) {
	var item models.InvoiceItemModel
	if err := r.db.WithContext(ctx).
		Select("id", "invoice_id").
		Where("id = ?", itemID).
		First(&item).Error; err != nil {
		return nil, translateError(err, "Invoice item")
	}
	return r.FindByID(ctx, uuid.Nil, item.InvoiceID)
}

// FindByNumber matches the invoice number case-insensitively within the school
func (r *GormInvoiceRepository) FindByNumber(ctx context.Context, schoolID uuid.UUID, invoiceNumber string) (*finance.Invoice, error) {
	return r.first(r.db.WithContext(ctx).
		Where("school_id = ? AND UPPER(invoice_number) = ?", schoolID, strings.ToUpper(strings.TrimSpace(invoiceNumber))))
}

// FindByStudentAndPeriod finds the single invoice of a student for a period
func (r *GormInvoiceRepository) FindByStudentAndPeriod(ctx context.Context, studentID, periodID uuid.UUID) (*finance.Invoice, error) {
	return r.first(r.db.WithContext(ctx).
		Where("student_id = ? AND academic_period_id = ?", studentID, periodID))
}

// FindOutstandingByStudentForUpdate locks the student's unpaid invoices, oldest first
func (r *GormInvoiceRepository) FindOutstandingByStudentForUpdate(ctx context.Context, schoolID, studentID uuid.UUID) ([]finance.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Scopes(forUpdate, preloadItems).
		Where("school_id = ? AND student_id = ? AND status IN ?", schoolID, studentID, finance.OutstandingInvoiceStatuses).
		Order("created_at ASC, id ASC").
		Find(&invoiceModels).Error; err != nil {
		return nil, err
	}
	return invoicesToDomain(invoiceModels), nil
}

// CreateIfAbsent inserts the invoice and its items unless the student
// already has an invoice for the period
func (r *GormInvoiceRepository) CreateIfAbsent(ctx context.Context, invoice *finance.Invoice) (bool, error) {
	model := models.InvoiceModelFromDomain(invoice)
	db := r.db.WithContext(ctx)

	result := db.Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "student_id"}, {Name: "academic_period_id"}},
			DoNothing: true,
		}).
		Create(model)
	if result.Error != nil {
		return false, translateError(result.Error, "Invoice")
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	if len(model.Items) > 0 {
		if err := db.Create(&model.Items).Error; err != nil {
			return false, fmt.Errorf("insert invoice items: %w", translateError(err, "Invoice item"))
		}
	}
	invoice.ClearRemovedItems()
	return true, nil
}

// Save writes the invoice with optimistic locking, upserts its items and
// deletes items removed since load. The caller has already bumped Version.
func (r *GormInvoiceRepository) Save(ctx context.Context, invoice *finance.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	db := r.db.WithContext(ctx)

	result := db.Model(&models.InvoiceModel{}).
		Where("id = ? AND version = ?", invoice.ID, invoice.Version-1).
		Updates(map[string]any{
			"total_amount":        model.TotalAmount,
			"paid_amount":         model.PaidAmount,
			"balance":             model.Balance,
			"status":              model.Status,
			"due_date":            model.DueDate,
			"cancelled_at":        model.CancelledAt,
			"cancellation_reason": model.CancellationReason,
			"version":             model.Version,
			"updated_at":          model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError("CONCURRENCY_CONFLICT", "Invoice "+invoice.InvoiceNumber+" was modified by another transaction")
	}

	if removed := invoice.RemovedItemIDs(); len(removed) > 0 {
		if err := db.Where("invoice_id = ? AND id IN ?", invoice.ID, removed).
			Delete(&models.InvoiceItemModel{}).Error; err != nil {
			return fmt.Errorf("delete invoice items: %w", err)
		}
	}
	if len(model.Items) > 0 {
		if err := db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"fee_structure_id", "description", "amount", "category", "is_dismissed", "updated_at",
			}),
		}).Create(&model.Items).Error; err != nil {
			return fmt.Errorf("upsert invoice items: %w", translateError(err, "Invoice item"))
		}
	}
	invoice.ClearRemovedItems()
	return nil
}

// InvoiceSortFields contains allowed sort fields for invoices
var InvoiceSortFields = map[string]bool{
	"created_at":     true,
	"updated_at":     true,
	"invoice_number": true,
	"due_date":       true,
	"total_amount":   true,
	"balance":        true,
	"status":         true,
}

// List returns a page of the school's invoices and the total match count
func (r *GormInvoiceRepository) List(ctx context.Context, schoolID uuid.UUID, filter finance.InvoiceFilter, page shared.Filter) ([]finance.Invoice, int64, error) {
	var total int64
	countQuery := r.db.WithContext(ctx).Model(&models.InvoiceModel{})
	if err := applyInvoiceFilter(countQuery, schoolID, filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var invoiceModels []models.InvoiceModel
	if err := applyInvoiceFilter(r.db.WithContext(ctx), schoolID, filter).
		Scopes(preloadItems, orderBy(page, InvoiceSortFields, "created_at"), paginate(page)).
		Find(&invoiceModels).Error; err != nil {
		return nil, 0, err
	}
	return invoicesToDomain(invoiceModels), total, nil
}

func applyInvoiceFilter(query *gorm.DB, schoolID uuid.UUID, filter finance.InvoiceFilter) *gorm.DB {
	query = query.Scopes(schoolScope(schoolID))
	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}
	if filter.AcademicPeriodID != nil {
		query = query.Where("academic_period_id = ?", *filter.AcademicPeriodID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	return query
}

func invoicesToDomain(invoiceModels []models.InvoiceModel) []finance.Invoice {
	invoices := make([]finance.Invoice, len(invoiceModels))
	for i := range invoiceModels {
		invoices[i] = *invoiceModels[i].ToDomain()
	}
	return invoices
}

// Ensure GormInvoiceRepository implements InvoiceRepository
var _ finance.InvoiceRepository = (*GormInvoiceRepository)(nil)
