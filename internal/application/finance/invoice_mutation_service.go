package finance

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/schoolfees/backend/internal/domain/audit"
	"github.com/schoolfees/backend/internal/domain/finance"
	"github.com/schoolfees/backend/internal/domain/identity"
	"github.com/schoolfees/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InvoiceMutationService edits invoice line items. Each call locks the
// invoice, mutates it, recomputes the balances and writes an audit entry in
// one transaction.
type InvoiceMutationService struct {
	scope  TransactionScope
	audit  *AuditRecorder
	logger *zap.Logger
}

// NewInvoiceMutationService creates a new InvoiceMutationService
func NewInvoiceMutationService(scope TransactionScope, logger *zap.Logger) *InvoiceMutationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoiceMutationService{
		scope:  scope,
		audit:  NewAuditRecorder(),
		logger: logger,
	}
}

// AddItemCommand describes an ad-hoc charge
type AddItemCommand struct {
	InvoiceID   uuid.UUID
	Description string
	Amount      decimal.Decimal
	Category    finance.FeeCategory
}

// AddItem appends a line to the invoice. Staff only.
func (s *InvoiceMutationService) AddItem(ctx context.Context, actor identity.Actor, cmd AddItemCommand) (*finance.Invoice, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "add_item")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrInvoiceID, cmd.InvoiceID.String())

	if err := actor.EnsureRole(identity.FinanceStaff...); err != nil {
		return nil, err
	}
	if cmd.Category == finance.FeeCategoryAdjustment {
		return nil, finance.ErrAdjustmentCategoryReserved
	}

	var inv *finance.Invoice
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		inv, err = repos.Invoices().FindByIDForUpdate(ctx, ActorScope(actor), cmd.InvoiceID)
		if err != nil {
			return err
		}
		if err := authorizeInvoiceAccess(ctx, repos, actor, inv, false); err != nil {
			return err
		}

		oldTotal := inv.TotalAmount
		item, err := inv.AddItem(cmd.Description, cmd.Amount, cmd.Category, nil)
		if err != nil {
			return err
		}
		itemID, amount, desc, category := item.ID, item.Amount, item.Description, item.Category
		if err := recalculateInvoice(ctx, repos, inv); err != nil {
			return err
		}
		return s.audit.Record(ctx, repos, actor, inv.SchoolID, audit.ActionInvoiceItemAdded, audit.EntityInvoice, inv.ID,
			itemDelta(inv, itemID, desc, category, amount, oldTotal))
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("Invoice item added",
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("user_id", actor.UserID.String()),
		zap.String("new_total", inv.TotalAmount.String()))
	return inv, nil
}

// RemoveItem deletes a line from its invoice. Staff only.
func (s *InvoiceMutationService) RemoveItem(ctx context.Context, actor identity.Actor, itemID uuid.UUID) (*finance.Invoice, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "remove_item")
	defer span.End()

	if err := actor.EnsureRole(identity.FinanceStaff...); err != nil {
		return nil, err
	}

	var inv *finance.Invoice
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		inv, err = lockInvoiceOfItem(ctx, repos, itemID)
		if err != nil {
			return err
		}
		if err := authorizeInvoiceAccess(ctx, repos, actor, inv, false); err != nil {
			return err
		}

		oldTotal := inv.TotalAmount
		removed, err := inv.RemoveItem(itemID)
		if err != nil {
			return err
		}
		if err := recalculateInvoice(ctx, repos, inv); err != nil {
			return err
		}
		return s.audit.Record(ctx, repos, actor, inv.SchoolID, audit.ActionInvoiceItemRemoved, audit.EntityInvoice, inv.ID,
			itemDelta(inv, removed.ID, removed.Description, removed.Category, removed.Amount, oldTotal))
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("Invoice item removed",
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("item_id", itemID.String()),
		zap.String("new_total", inv.TotalAmount.String()))
	return inv, nil
}

// SetDismissed waives or restores a line. Staff and guardians of the
// invoiced student may do this; mandatory lines can never be waived.
func (s *InvoiceMutationService) SetDismissed(ctx context.Context, actor identity.Actor, itemID uuid.UUID, dismissed bool) (*finance.Invoice, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "set_dismissed")
	defer span.End()
	telemetry.SetAttributes(span, "dismissed", dismissed)

	var inv *finance.Invoice
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		inv, err = lockInvoiceOfItem(ctx, repos, itemID)
		if err != nil {
			return err
		}
		if err := authorizeInvoiceAccess(ctx, repos, actor, inv, true); err != nil {
			return err
		}

		oldTotal := inv.TotalAmount
		item, err := inv.SetItemDismissed(itemID, dismissed)
		if err != nil {
			return err
		}
		snapshot := *item
		if err := recalculateInvoice(ctx, repos, inv); err != nil {
			return err
		}

		action := audit.ActionInvoiceItemRestored
		if dismissed {
			action = audit.ActionInvoiceItemDismissed
		}
		return s.audit.Record(ctx, repos, actor, inv.SchoolID, action, audit.EntityInvoice, inv.ID,
			itemDelta(inv, snapshot.ID, snapshot.Description, snapshot.Category, snapshot.Amount, oldTotal))
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("Invoice item dismissal changed",
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("item_id", itemID.String()),
		zap.Bool("dismissed", dismissed),
		zap.String("role", string(actor.Role)))
	return inv, nil
}

// GetInvoice returns an invoice visible to the actor
func (s *InvoiceMutationService) GetInvoice(ctx context.Context, actor identity.Actor, invoiceID uuid.UUID) (*finance.Invoice, error) {
	var inv *finance.Invoice
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		inv, err = repos.Invoices().FindByID(ctx, ActorScope(actor), invoiceID)
		if err != nil {
			return err
		}
		return authorizeInvoiceAccess(ctx, repos, actor, inv, true)
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func lockInvoiceOfItem(ctx context.Context, repos TransactionalRepositories, itemID uuid.UUID) (*finance.Invoice, error) {
	owner, err := repos.Invoices().FindByItemID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	inv, err := repos.Invoices().FindByIDForUpdate(ctx, owner.SchoolID, owner.ID)
	if err != nil {
		return nil, fmt.Errorf("lock invoice %s: %w", owner.InvoiceNumber, err)
	}
	return inv, nil
}

func itemDelta(inv *finance.Invoice, itemID uuid.UUID, description string, category finance.FeeCategory, amount, oldTotal decimal.Decimal) map[string]any {
	return map[string]any{
		"invoice_number": inv.InvoiceNumber,
		"item_id":        itemID.String(),
		"description":    description,
		"category":       string(category),
		"item_amount":    amount.StringFixed(2),
		"old_total":      oldTotal.StringFixed(2),
		"new_total":      inv.TotalAmount.StringFixed(2),
		"new_balance":    inv.Balance.StringFixed(2),
	}
}

// ActorScope is the school filter applied to lookups on behalf of the
// actor. Super admins see every school, signalled by uuid.Nil.
func ActorScope(actor identity.Actor) uuid.UUID {
	if actor.Role == identity.RoleSuperAdmin {
		return uuid.Nil
	}
	return actor.SchoolID
}
