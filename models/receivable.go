package models

import "time"

type ReceivableStatus string

const (
	ReceivableOpen      ReceivableStatus = "open"
	ReceivablePaid      ReceivableStatus = "paid"
	ReceivableCancelled ReceivableStatus = "cancelled"
)

// Receivable is the amount owed for one invoiced task. Created only when an
// invoice is finalized, never when a task merely completes. At most one per task.
type Receivable struct {
	ID        uint    `json:"id" gorm:"primaryKey"`
	TaskID    string  `json:"task_id" gorm:"not null;uniqueIndex"`
	Task      Task    `json:"-" gorm:"foreignKey:TaskID;references:Id;constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT"`
	ProjectID string  `json:"project_id" gorm:"not null;index"`
	Project   Project `json:"-" gorm:"foreignKey:ProjectID;references:Id"`

	Amount      float64 `json:"amount" gorm:"type:numeric(12,2)"`
	HoursBilled float64 `json:"hours_billed" gorm:"type:numeric(8,2)"`
	RateUsed    float64 `json:"rate_used" gorm:"type:numeric(12,2)"`
	// Rollup of recorded payments; always equals the sum of the receivable's
	// revenue records.
	PaidTotal float64 `json:"paid_total" gorm:"type:numeric(12,2);default:0"`

	Status ReceivableStatus `json:"status" gorm:"type:VARCHAR(20);default:'open'"`
	PaidAt *time.Time       `json:"paid_at"`
	Notes  string           `json:"notes"`

	CreatedAt time.Time `json:"created_at"`
}

// RevenueRecord is one payment event against a receivable. Append-only; never
// updated or deleted, cancellation included.
type RevenueRecord struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	ReceivableID uint      `json:"receivable_id" gorm:"index:idx_revenue_records_receivable_recorded,priority:1"`
	Amount       float64   `json:"amount" gorm:"type:numeric(12,2)"`
	Notes        string    `json:"notes"`
	RecordedAt   time.Time `json:"recorded_at" gorm:"index:idx_revenue_records_receivable_recorded,priority:2"`
	CreatedAt    time.Time `json:"created_at"`
}
