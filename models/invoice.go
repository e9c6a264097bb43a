package models

import (
	"time"

	"gorm.io/datatypes"
)

type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "draft"
	InvoiceSent      InvoiceStatus = "sent"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceOverdue   InvoiceStatus = "overdue"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

// Invoice is the current/live state of a billing document.
type Invoice struct {
	ID            uint    `json:"id" gorm:"primaryKey"`
	InvoiceNumber string  `json:"invoice_number" gorm:"unique"`
	ProjectID     string  `json:"project_id" gorm:"not null;index"`
	Project       Project `json:"-" gorm:"foreignKey:ProjectID;references:Id"`
	Recipient     string  `json:"recipient_email"`

	// Live items (latest state)
	Items          []InvoiceItem `json:"items" gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
	TotalAmount    float64       `json:"total_amount" gorm:"type:numeric(12,2)"`
	TaxAmount      float64       `json:"tax_amount" gorm:"type:numeric(12,2)"`
	DiscountAmount float64       `json:"discount_amount" gorm:"type:numeric(12,2)"`
	// Always recomputed as total + tax - discount, never edited directly.
	FinalAmount float64 `json:"final_amount" gorm:"type:numeric(12,2)"`

	Status    InvoiceStatus `json:"status" gorm:"type:VARCHAR(20);default:'draft'"`
	IssueDate time.Time     `json:"issue_date"`
	DueDate   *time.Time    `json:"due_date"`
	SentAt    *time.Time    `json:"sent_at"`
	PaidAt    *time.Time    `json:"paid_at"`

	// Cancellation audit. The typed columns are authoritative; Notes carries a
	// redundant human-readable trail for existing reporting.
	OriginalTotalAmount *float64   `json:"original_total_amount,omitempty" gorm:"type:numeric(12,2)"`
	OriginalFinalAmount *float64   `json:"original_final_amount,omitempty" gorm:"type:numeric(12,2)"`
	CancellationReason  string     `json:"cancellation_reason,omitempty"`
	CancelledAt         *time.Time `json:"cancelled_at,omitempty"`

	Notes string `json:"notes"`

	CreatedAt time.Time `json:"created_at"`
}

// InvoiceItem links one task to one invoice. One item per (invoice, task) pair;
// the sum of item amounts defines the invoice's total_amount.
type InvoiceItem struct {
	ID          uint    `json:"id" gorm:"primaryKey"`
	InvoiceID   uint    `json:"-" gorm:"index:idx_invoice_items_invoice_task,unique,priority:1"`
	TaskID      string  `json:"task_id" gorm:"not null;index:idx_invoice_items_invoice_task,unique,priority:2"`
	Task        Task    `json:"-" gorm:"foreignKey:TaskID;references:Id;constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT"`
	Description string  `json:"description"`
	HoursBilled float64 `json:"hours_billed" gorm:"type:numeric(8,2)"`
	Rate        float64 `json:"rate" gorm:"type:numeric(12,2)"`
	Amount      float64 `json:"amount" gorm:"type:numeric(12,2)"`
}

// Immutable snapshot taken at finalization and at cancellation.
type InvoiceSnapshot struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	InvoiceID uint           `json:"invoice_id" gorm:"index:idx_invoice_snapshots_invoice_version,unique,priority:1"`
	VersionNo int            `json:"version_no" gorm:"not null;index:idx_invoice_snapshots_invoice_version,unique,priority:2"`
	Kind      string         `json:"kind" gorm:"type:VARCHAR(20)"` // "sent" | "cancelled"
	Snapshot  datatypes.JSON `json:"snapshot" gorm:"type:jsonb"`
	CreatedAt time.Time      `json:"created_at"`
}
