package finance_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	appfinance "github.com/schoolfees/backend/internal/application/finance"
	"github.com/schoolfees/backend/internal/domain/academic"
	"github.com/schoolfees/backend/internal/domain/audit"
	"github.com/schoolfees/backend/internal/domain/finance"
	"github.com/schoolfees/backend/internal/domain/identity"
	"github.com/schoolfees/backend/internal/infrastructure/persistence"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ledgerHarness wires the application services to an in-memory SQLite ledger
type ledgerHarness struct {
	db    *gorm.DB
	scope *persistence.GormTransactionScope

	invoices *persistence.GormInvoiceRepository
	payments *persistence.GormPaymentRepository
	fees     *persistence.GormFeeStructureRepository
	periods  *persistence.GormAcademicPeriodRepository
	students *persistence.GormStudentRepository
	audit    *persistence.GormAuditRepository

	school   *identity.School
	period   *academic.AcademicPeriod
	classID  uuid.UUID
	studentA *academic.Student // in classID, has a guardian
	studentB *academic.Student // no class

	bursar    identity.Actor
	principal identity.Actor
	deputy    identity.Actor
	parent    identity.Actor
}

func newLedgerHarness(t *testing.T) *ledgerHarness {
	t.Helper()
	ctx := context.Background()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=on"
	db, err := persistence.Open(sqlite.Open(dsn), logger.Default.LogMode(logger.Silent))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, persistence.AutoMigrate(ctx, db))

	h := &ledgerHarness{
		db:       db,
		scope:    persistence.NewGormTransactionScope(db),
		invoices: persistence.NewGormInvoiceRepository(db),
		payments: persistence.NewGormPaymentRepository(db),
		fees:     persistence.NewGormFeeStructureRepository(db),
		periods:  persistence.NewGormAcademicPeriodRepository(db),
		students: persistence.NewGormStudentRepository(db),
		audit:    persistence.NewGormAuditRepository(db),
		classID:  uuid.New(),
	}

	h.school, err = identity.NewSchool("SCH001", "Hill School")
	require.NoError(t, err)
	h.school.PaybillShortcode = "600100"
	require.NoError(t, persistence.NewGormSchoolRepository(db).Save(ctx, h.school))

	h.period = h.addPeriod(t, 2025, 1, true)

	h.studentA, err = academic.NewStudent(h.school.ID, "ADM001", "Amani", "Otieno", &h.classID)
	require.NoError(t, err)
	h.studentB, err = academic.NewStudent(h.school.ID, "ADM002", "Baraka", "Mwangi", nil)
	require.NoError(t, err)

	h.bursar = identity.Actor{UserID: uuid.New(), SchoolID: h.school.ID, Role: identity.RoleFinanceManager, Username: "bursar"}
	h.principal = identity.Actor{UserID: uuid.New(), SchoolID: h.school.ID, Role: identity.RolePrincipal, Username: "principal"}
	h.deputy = identity.Actor{UserID: uuid.New(), SchoolID: h.school.ID, Role: identity.RolePrincipal, Username: "deputy"}
	h.parent = identity.Actor{UserID: uuid.New(), SchoolID: h.school.ID, Role: identity.RoleParent, Username: "guardian"}

	h.studentA.AddGuardian(h.parent.UserID)
	require.NoError(t, h.students.Save(ctx, h.studentA))
	require.NoError(t, h.students.Save(ctx, h.studentB))

	return h
}

func (h *ledgerHarness) addPeriod(t *testing.T, year, term int, active bool) *academic.AcademicPeriod {
	t.Helper()
	start := time.Date(year, time.Month(1+(term-1)*4), 6, 0, 0, 0, 0, time.UTC)
	p, err := academic.NewAcademicPeriod(h.school.ID, year, term, start, start.AddDate(0, 3, 0))
	require.NoError(t, err)
	if active {
		p.Activate()
	}
	require.NoError(t, h.periods.Save(context.Background(), p))
	return p
}

func (h *ledgerHarness) addFee(t *testing.T, periodID uuid.UUID, classID *uuid.UUID, name string, amount int64, category finance.FeeCategory) *finance.FeeStructure {
	t.Helper()
	fs, err := finance.NewFeeStructure(h.school.ID, periodID, classID, name, "", decimal.NewFromInt(amount), category)
	require.NoError(t, err)
	require.NoError(t, h.fees.Save(context.Background(), fs))
	return fs
}

// seedStandardFees adds tuition 1000 for everyone and transport 500 for classID
func (h *ledgerHarness) seedStandardFees(t *testing.T) (tuition, transport *finance.FeeStructure) {
	t.Helper()
	tuition = h.addFee(t, h.period.ID, nil, "Tuition", 1000, finance.FeeCategoryTuition)
	transport = h.addFee(t, h.period.ID, &h.classID, "Transport", 500, finance.FeeCategoryTransport)
	return tuition, transport
}

func (h *ledgerHarness) generator() *appfinance.InvoiceGeneratorService {
	return appfinance.NewInvoiceGeneratorService(appfinance.InvoiceGeneratorServiceConfig{
		Scope:       h.scope,
		FeeRepo:     h.fees,
		PeriodRepo:  h.periods,
		StudentRepo: h.students,
	})
}

func (h *ledgerHarness) feeSync() *appfinance.FeeSyncService {
	return appfinance.NewFeeSyncService(appfinance.FeeSyncServiceConfig{
		Scope:       h.scope,
		FeeRepo:     h.fees,
		PeriodRepo:  h.periods,
		StudentRepo: h.students,
	})
}

func (h *ledgerHarness) feeStructures() *appfinance.FeeStructureService {
	return appfinance.NewFeeStructureService(h.scope, h.fees, h.periods, h.feeSync(), nil)
}

func (h *ledgerHarness) reconciler(gateway appfinance.MobileMoneyGateway) *appfinance.PaymentReconcilerService {
	return appfinance.NewPaymentReconcilerService(appfinance.PaymentReconcilerServiceConfig{
		Scope:   h.scope,
		Gateway: gateway,
	})
}

// generate bills the harness period and returns the invoice of each student
func (h *ledgerHarness) generate(t *testing.T) (invA, invB *finance.Invoice) {
	t.Helper()
	_, err := h.generator().Generate(context.Background(), h.bursar, appfinance.GenerateInvoicesCommand{
		SchoolID:         h.school.ID,
		AcademicPeriodID: h.period.ID,
	})
	require.NoError(t, err)
	return h.invoiceOf(t, h.studentA, h.period), h.invoiceOf(t, h.studentB, h.period)
}

func (h *ledgerHarness) invoiceOf(t *testing.T, student *academic.Student, period *academic.AcademicPeriod) *finance.Invoice {
	t.Helper()
	inv, err := h.invoices.FindByStudentAndPeriod(context.Background(), student.ID, period.ID)
	require.NoError(t, err)
	return inv
}

func (h *ledgerHarness) reload(t *testing.T, inv *finance.Invoice) *finance.Invoice {
	t.Helper()
	fresh, err := h.invoices.FindByID(context.Background(), h.school.ID, inv.ID)
	require.NoError(t, err)
	return fresh
}

// assertLedger checks the stored invoice against expected totals and the
// balance identity, recomputing paid from the payments table
func (h *ledgerHarness) assertLedger(t *testing.T, inv *finance.Invoice, total, paid int64) *finance.Invoice {
	t.Helper()
	fresh := h.reload(t, inv)
	assert.Truef(t, fresh.TotalAmount.Equal(decimal.NewFromInt(total)), "total: got %s want %d", fresh.TotalAmount, total)
	assert.Truef(t, fresh.PaidAmount.Equal(decimal.NewFromInt(paid)), "paid: got %s want %d", fresh.PaidAmount, paid)
	assert.True(t, fresh.Balance.Equal(fresh.TotalAmount.Sub(fresh.PaidAmount)), "balance must equal total minus paid")

	sum, err := h.payments.SumCompletedByInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.True(t, fresh.PaidAmount.Equal(sum), "paid must equal the completed payments")
	return fresh
}

func (h *ledgerHarness) auditActions(t *testing.T, entityType string, entityID uuid.UUID) []audit.Action {
	t.Helper()
	entries, err := h.audit.ListByEntity(context.Background(), h.school.ID, entityType, entityID)
	require.NoError(t, err)
	actions := make([]audit.Action, len(entries))
	for i, e := range entries {
		actions[i] = e.Action
	}
	return actions
}

// fakeGateway accepts every STK push and hands out sequential checkout IDs
type fakeGateway struct {
	mu       sync.Mutex
	requests []appfinance.STKPushRequest
	reject   bool
}

func (g *fakeGateway) InitiateSTKPush(_ context.Context, req appfinance.STKPushRequest) (*appfinance.STKPushResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.reject {
		return &appfinance.STKPushResponse{ResponseCode: "1", ResponseDescription: "Rejected"}, nil
	}
	return &appfinance.STKPushResponse{
		MerchantRequestID: "mr-" + req.AccountReference,
		CheckoutRequestID: "ws_CO_" + req.AccountReference + "_" + decimal.NewFromInt(int64(len(g.requests))).String(),
		ResponseCode:      "0",
	}, nil
}
