package persistence

import (
	"context"
	"fmt"

	"github.com/schoolfees/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// LedgerModels lists every table of the ledger in dependency order
func LedgerModels() []any {
	return []any{
		&models.SchoolModel{},
		&models.AcademicPeriodModel{},
		&models.StudentModel{},
		&models.StudentGuardianModel{},
		&models.FeeStructureModel{},
		&models.InvoiceModel{},
		&models.InvoiceItemModel{},
		&models.PaymentModel{},
		&models.ApprovalRequestModel{},
		&models.AuditEntryModel{},
	}
}

// ledgerIndexes are the composite and partial unique indexes struct tags
// cannot express. The syntax is shared by PostgreSQL and SQLite.
var ledgerIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_period_school_year_term ON academic_periods (school_id, academic_year, term)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_student_school_admission ON students (school_id, admission_number)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_invoice_school_number ON invoices (school_id, invoice_number)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_invoice_items_fee ON invoice_items (invoice_id, fee_structure_id) WHERE fee_structure_id IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_gateway_ref ON payments (method, transaction_ref) WHERE transaction_ref <> '' AND method IN ('MPESA', 'MPESA_C2B', 'BANK_TRANSFER')`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_period_single_active ON academic_periods (school_id) WHERE is_active`,
}

// AutoMigrate creates the ledger tables and indexes. Production schemas are
// managed by the SQL migrations; this serves tests and local development.
func AutoMigrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(LedgerModels()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	for _, stmt := range ledgerIndexes {
		if err := db.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}
