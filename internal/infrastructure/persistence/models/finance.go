package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/schoolfees/backend/internal/domain/finance"
	"github.com/schoolfees/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// FeeStructureModel is the persistence model for fee structures.
type FeeStructureModel struct {
	SchoolAggregateModel
	AcademicPeriodID uuid.UUID           `gorm:"type:uuid;not null;index"`
	ClassID          *uuid.UUID          `gorm:"type:uuid;index"`
	Name             string              `gorm:"type:varchar(200);not null"`
	Description      string              `gorm:"type:text"`
	Amount           decimal.Decimal     `gorm:"type:decimal(18,2);not null"`
	Category         finance.FeeCategory `gorm:"type:varchar(20);not null"`
	IsActive         bool                `gorm:"not null;default:true;index"`
}

// TableName returns the table name for GORM
func (FeeStructureModel) TableName() string {
	return "fee_structures"
}

// ToDomain converts the persistence model to a domain FeeStructure.
func (m *FeeStructureModel) ToDomain() *finance.FeeStructure {
	return &finance.FeeStructure{
		SchoolAggregateRoot: m.ToSchoolAggregateRoot(),
		AcademicPeriodID:    m.AcademicPeriodID,
		ClassID:             m.ClassID,
		Name:                m.Name,
		Description:         m.Description,
		Amount:              m.Amount,
		Category:            m.Category,
		IsActive:            m.IsActive,
	}
}

// FromDomain populates the persistence model from a domain FeeStructure.
func (m *FeeStructureModel) FromDomain(fs *finance.FeeStructure) {
	m.FromDomainSchoolAggregateRoot(fs.SchoolAggregateRoot)
	m.AcademicPeriodID = fs.AcademicPeriodID
	m.ClassID = fs.ClassID
	m.Name = fs.Name
	m.Description = fs.Description
	m.Amount = fs.Amount
	m.Category = fs.Category
	m.IsActive = fs.IsActive
}

// FeeStructureModelFromDomain creates a new persistence model from a domain FeeStructure.
func FeeStructureModelFromDomain(fs *finance.FeeStructure) *FeeStructureModel {
	m := &FeeStructureModel{}
	m.FromDomain(fs)
	return m
}

// InvoiceModel is the persistence model for invoices.
// (student_id, academic_period_id) is unique: one invoice per student per term.
type InvoiceModel struct {
	SchoolAggregateModel
	InvoiceNumber      string                `gorm:"type:varchar(100);not null"`
	StudentID          uuid.UUID             `gorm:"type:uuid;not null;uniqueIndex:idx_invoice_student_period,priority:1"`
	AcademicPeriodID   uuid.UUID             `gorm:"type:uuid;not null;uniqueIndex:idx_invoice_student_period,priority:2"`
	TotalAmount        decimal.Decimal       `gorm:"type:decimal(18,2);not null;default:0"`
	PaidAmount         decimal.Decimal       `gorm:"type:decimal(18,2);not null;default:0"`
	Balance            decimal.Decimal       `gorm:"type:decimal(18,2);not null;default:0"`
	Status             finance.InvoiceStatus `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	DueDate            time.Time             `gorm:"not null"`
	CancelledAt        *time.Time
	CancellationReason string             `gorm:"type:varchar(500)"`
	Items              []InvoiceItemModel `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice.
// Items must have been preloaded.
func (m *InvoiceModel) ToDomain() *finance.Invoice {
	inv := &finance.Invoice{
		SchoolAggregateRoot: m.ToSchoolAggregateRoot(),
		InvoiceNumber:       m.InvoiceNumber,
		StudentID:           m.StudentID,
		AcademicPeriodID:    m.AcademicPeriodID,
		TotalAmount:         m.TotalAmount,
		PaidAmount:          m.PaidAmount,
		Balance:             m.Balance,
		Status:              m.Status,
		DueDate:             m.DueDate,
		CancelledAt:         m.CancelledAt,
		CancellationReason:  m.CancellationReason,
		Items:               make([]finance.InvoiceItem, len(m.Items)),
	}
	for i := range m.Items {
		inv.Items[i] = m.Items[i].ToDomain()
	}
	return inv
}

// FromDomain populates the persistence model from a domain Invoice.
func (m *InvoiceModel) FromDomain(inv *finance.Invoice) {
	m.FromDomainSchoolAggregateRoot(inv.SchoolAggregateRoot)
	m.InvoiceNumber = inv.InvoiceNumber
	m.StudentID = inv.StudentID
	m.AcademicPeriodID = inv.AcademicPeriodID
	m.TotalAmount = inv.TotalAmount
	m.PaidAmount = inv.PaidAmount
	m.Balance = inv.Balance
	m.Status = inv.Status
	m.DueDate = inv.DueDate
	m.CancelledAt = inv.CancelledAt
	m.CancellationReason = inv.CancellationReason
	m.Items = make([]InvoiceItemModel, len(inv.Items))
	for i := range inv.Items {
		m.Items[i] = *InvoiceItemModelFromDomain(&inv.Items[i])
		m.Items[i].InvoiceID = inv.ID
	}
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice.
func InvoiceModelFromDomain(inv *finance.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// InvoiceItemModel is the persistence model for invoice line items.
type InvoiceItemModel struct {
	BaseModel
	InvoiceID      uuid.UUID           `gorm:"type:uuid;not null;index"`
	FeeStructureID *uuid.UUID          `gorm:"type:uuid;index"`
	Description    string              `gorm:"type:varchar(500);not null"`
	Amount         decimal.Decimal     `gorm:"type:decimal(18,2);not null"`
	Category       finance.FeeCategory `gorm:"type:varchar(20);not null"`
	IsDismissed    bool                `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (InvoiceItemModel) TableName() string {
	return "invoice_items"
}

// ToDomain converts the persistence model to a domain InvoiceItem.
func (m *InvoiceItemModel) ToDomain() finance.InvoiceItem {
	return finance.InvoiceItem{
		BaseEntity:     m.BaseModel.ToDomain(),
		InvoiceID:      m.InvoiceID,
		FeeStructureID: m.FeeStructureID,
		Description:    m.Description,
		Amount:         m.Amount,
		Category:       m.Category,
		IsDismissed:    m.IsDismissed,
	}
}

// InvoiceItemModelFromDomain creates a new persistence model from a domain InvoiceItem.
func InvoiceItemModelFromDomain(item *finance.InvoiceItem) *InvoiceItemModel {
	m := &InvoiceItemModel{
		InvoiceID:      item.InvoiceID,
		FeeStructureID: item.FeeStructureID,
		Description:    item.Description,
		Amount:         item.Amount,
		Category:       item.Category,
		IsDismissed:    item.IsDismissed,
	}
	m.FromDomainBaseEntity(item.BaseEntity)
	return m
}

// PaymentModel is the persistence model for payments.
// Gateway references are unique per method through a partial index created
// by the schema helper; manual splits may share a reference.
type PaymentModel struct {
	SchoolAggregateModel
	StudentID      *uuid.UUID            `gorm:"type:uuid;index"`
	InvoiceID      *uuid.UUID            `gorm:"type:uuid;index"`
	Amount         decimal.Decimal       `gorm:"type:decimal(18,2);not null"`
	Method         finance.PaymentMethod `gorm:"type:varchar(20);not null"`
	Status         finance.PaymentStatus `gorm:"type:varchar(20);not null;index"`
	TransactionRef string                `gorm:"type:varchar(100);index"`
	ReceiptNumber  string                `gorm:"type:varchar(100)"`
	PayerPhone     string                `gorm:"type:varchar(20)"`
	PayerName      string                `gorm:"type:varchar(200)"`
	Unassigned     bool                  `gorm:"not null;default:false;index"`
	FailureReason  string                `gorm:"type:varchar(500)"`
	Notes          string                `gorm:"type:text"`
	RecordedBy     *uuid.UUID            `gorm:"type:uuid"`
	CompletedAt    *time.Time
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment.
func (m *PaymentModel) ToDomain() *finance.Payment {
	return &finance.Payment{
		SchoolAggregateRoot: m.ToSchoolAggregateRoot(),
		StudentID:           m.StudentID,
		InvoiceID:           m.InvoiceID,
		Amount:              m.Amount,
		Method:              m.Method,
		Status:              m.Status,
		TransactionRef:      m.TransactionRef,
		ReceiptNumber:       m.ReceiptNumber,
		PayerPhone:          m.PayerPhone,
		PayerName:           m.PayerName,
		Unassigned:          m.Unassigned,
		FailureReason:       m.FailureReason,
		Notes:               m.Notes,
		RecordedBy:          m.RecordedBy,
		CompletedAt:         m.CompletedAt,
	}
}

// FromDomain populates the persistence model from a domain Payment.
func (m *PaymentModel) FromDomain(p *finance.Payment) {
	m.FromDomainSchoolAggregateRoot(p.SchoolAggregateRoot)
	m.StudentID = p.StudentID
	m.InvoiceID = p.InvoiceID
	m.Amount = p.Amount
	m.Method = p.Method
	m.Status = p.Status
	m.TransactionRef = p.TransactionRef
	m.ReceiptNumber = p.ReceiptNumber
	m.PayerPhone = p.PayerPhone
	m.PayerName = p.PayerName
	m.Unassigned = p.Unassigned
	m.FailureReason = p.FailureReason
	m.Notes = p.Notes
	m.RecordedBy = p.RecordedBy
	m.CompletedAt = p.CompletedAt
}

// PaymentModelFromDomain creates a new persistence model from a domain Payment.
func PaymentModelFromDomain(p *finance.Payment) *PaymentModel {
	m := &PaymentModel{}
	m.FromDomain(p)
	return m
}

// ApprovalRequestModel is the persistence model for approval requests.
// The action is stored as a type discriminator plus a JSON payload.
type ApprovalRequestModel struct {
	SchoolAggregateModel
	Type          finance.ApprovalType   `gorm:"type:varchar(30);not null"`
	InvoiceID     uuid.UUID              `gorm:"type:uuid;not null;index"`
	Payload       datatypes.JSON         `gorm:"not null"`
	Reason        string                 `gorm:"type:text;not null"`
	Status        finance.ApprovalStatus `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	RequestedByID uuid.UUID              `gorm:"type:uuid;not null"`
	ApprovedByID  *uuid.UUID             `gorm:"type:uuid"`
	DecidedAt     *time.Time
	DecisionNote  string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (ApprovalRequestModel) TableName() string {
	return "approval_requests"
}

// ToDomain converts the persistence model to a domain ApprovalRequest.
func (m *ApprovalRequestModel) ToDomain() (*finance.ApprovalRequest, error) {
	action, err := finance.DecodeApprovalAction(m.Type, m.Payload)
	if err != nil {
		return nil, fmt.Errorf("approval request %s: %w", m.ID, err)
	}
	return &finance.ApprovalRequest{
		SchoolAggregateRoot: m.ToSchoolAggregateRoot(),
		Action:              action,
		Reason:              m.Reason,
		Status:              m.Status,
		RequestedByID:       m.RequestedByID,
		ApprovedByID:        m.ApprovedByID,
		DecidedAt:           m.DecidedAt,
		DecisionNote:        m.DecisionNote,
	}, nil
}

// FromDomain populates the persistence model from a domain ApprovalRequest.
func (m *ApprovalRequestModel) FromDomain(r *finance.ApprovalRequest) error {
	if r.Action == nil {
		return shared.InvalidInput("Approval action is required")
	}
	payload, err := finance.EncodeApprovalAction(r.Action)
	if err != nil {
		return fmt.Errorf("encode approval action: %w", err)
	}
	m.FromDomainSchoolAggregateRoot(r.SchoolAggregateRoot)
	m.Type = r.Action.Type()
	m.InvoiceID = r.Action.TargetInvoiceID()
	m.Payload = datatypes.JSON(payload)
	m.Reason = r.Reason
	m.Status = r.Status
	m.RequestedByID = r.RequestedByID
	m.ApprovedByID = r.ApprovedByID
	m.DecidedAt = r.DecidedAt
	m.DecisionNote = r.DecisionNote
	return nil
}
