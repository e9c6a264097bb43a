package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskReview     TaskStatus = "review"
	TaskCompleted  TaskStatus = "completed"
	TaskHold       TaskStatus = "hold"
	TaskArchived   TaskStatus = "archived"
)

// BillingStatus tracks how far a task has travelled through the invoicing
// pipeline. It only advances not_invoiced → created → invoiced → paid, or jumps
// to cancelled; it never regresses otherwise.
type BillingStatus string

const (
	BillingNotInvoiced BillingStatus = "not_invoiced"
	BillingCreated     BillingStatus = "created"
	BillingInvoiced    BillingStatus = "invoiced"
	BillingPaid        BillingStatus = "paid"
	BillingCancelled   BillingStatus = "cancelled"
)

type Task struct {
	Id        string  `json:"id" gorm:"primaryKey"`
	ProjectID string  `json:"project_id" gorm:"not null;index"`
	Project   Project `json:"-" gorm:"foreignKey:ProjectID;references:Id;constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT"`

	Title       string     `json:"title" gorm:"not null"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status" gorm:"type:VARCHAR(20);default:'todo'"`
	Priority    string     `json:"priority" gorm:"size:20"`

	HoursWorked    float64 `json:"hours_worked" gorm:"type:numeric(8,2)"`
	EstimatedHours float64 `json:"estimated_hours" gorm:"type:numeric(8,2)"`
	Progress       int     `json:"progress_percentage"`

	BillingStatus BillingStatus `json:"invoice_status" gorm:"type:VARCHAR(20);default:'not_invoiced'"`

	CreatedAt   time.Time  `json:"created_on"`
	CompletedOn *time.Time `json:"completed_on"`

	// Set only while archived; restore puts PreviousStatus back and clears both.
	PreviousStatus *TaskStatus `json:"previous_status,omitempty" gorm:"type:VARCHAR(20)"`
	ArchivedAt     *time.Time  `json:"archived_at,omitempty"`
}

func (task *Task) BeforeCreate(tx *gorm.DB) (err error) {
	// UUID version 4
	task.Id = uuid.NewString()
	return
}
