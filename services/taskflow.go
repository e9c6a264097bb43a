package services

import (
	"errors"
	"time"

	"billing-backend/models"

	"gorm.io/gorm"
)

// Default progress percentage applied when a status change does not carry an
// explicit value. Hold and archived preserve the prior value.
var defaultProgress = map[models.TaskStatus]int{
	models.TaskTodo:       0,
	models.TaskInProgress: 30,
	models.TaskReview:     80,
	models.TaskCompleted:  100,
}

var billingRank = map[models.BillingStatus]int{
	models.BillingNotInvoiced: 0,
	models.BillingCreated:     1,
	models.BillingInvoiced:    2,
	models.BillingPaid:        3,
}

// advanceBilling moves a task's billing status forward along
// not_invoiced → created → invoiced → paid, or to cancelled from anywhere.
// Regressions are rejected; re-billing after cancellation requires a new task.
func advanceBilling(task *models.Task, next models.BillingStatus) error {
	if next == models.BillingCancelled {
		task.BillingStatus = next
		return nil
	}
	if task.BillingStatus == models.BillingCancelled || billingRank[next] < billingRank[task.BillingStatus] {
		return &StateConflictError{Entity: "task", Current: string(task.BillingStatus), Op: "set invoice status " + string(next)}
	}
	task.BillingStatus = next
	return nil
}

func validTaskStatus(s models.TaskStatus) bool {
	switch s {
	case models.TaskTodo, models.TaskInProgress, models.TaskReview,
		models.TaskCompleted, models.TaskHold, models.TaskArchived:
		return true
	}
	return false
}

func GetTask(db *gorm.DB, id string) (*models.Task, error) {
	var task models.Task
	if err := db.First(&task, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "task", ID: id}
		}
		return nil, err
	}
	return &task, nil
}

// ChangeTaskStatus applies a manual status change for every status except
// completed, which is a two-phase operation (RequestCompletion then
// ConfirmCompletion so the caller supplies actual hours worked).
// Transition adjacency is deliberately not enforced; billing-status regressions
// are.
func ChangeTaskStatus(db *gorm.DB, taskID string, status models.TaskStatus, progress *int) (*models.Task, error) {
	if !validTaskStatus(status) {
		return nil, &ValidationError{Field: "status", Reason: "unknown status " + string(status)}
	}
	if status == models.TaskCompleted {
		return nil, &ValidationError{Field: "status", Reason: "completion requires hours_worked; use the completion confirm step"}
	}
	if status == models.TaskArchived {
		return ArchiveTask(db, taskID)
	}

	task, err := GetTask(db, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status == models.TaskArchived {
		return nil, &StateConflictError{Entity: "task", Current: string(task.Status), Op: "change status of"}
	}

	// Leaving completed clears completed_on, but only while the task has not
	// entered the invoicing pipeline yet.
	if task.Status == models.TaskCompleted && task.BillingStatus == models.BillingNotInvoiced {
		task.CompletedOn = nil
	}

	task.Status = status
	if progress != nil {
		task.Progress = clampProgress(*progress)
	} else if def, ok := defaultProgress[status]; ok {
		task.Progress = def
	}

	if err := db.Save(task).Error; err != nil {
		return nil, err
	}
	return task, nil
}

// RequestCompletion is phase one of completing a task: it validates the task can
// complete and tells the caller to come back with hours_worked.
func RequestCompletion(db *gorm.DB, taskID string) (*models.Task, error) {
	task, err := GetTask(db, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status == models.TaskArchived {
		return nil, &StateConflictError{Entity: "task", Current: string(task.Status), Op: "complete"}
	}
	return task, nil
}

// ConfirmCompletion is phase two: it applies the transition with the confirmed
// hours. completed_on is set exactly once.
func ConfirmCompletion(db *gorm.DB, taskID string, hoursWorked float64) (*models.Task, error) {
	if hoursWorked < 0 {
		return nil, &ValidationError{Field: "hours_worked", Reason: "must not be negative"}
	}
	task, err := RequestCompletion(db, taskID)
	if err != nil {
		return nil, err
	}

	task.Status = models.TaskCompleted
	task.Progress = 100
	task.HoursWorked = hoursWorked
	if task.CompletedOn == nil {
		now := time.Now().UTC()
		task.CompletedOn = &now
	}

	if err := db.Save(task).Error; err != nil {
		return nil, err
	}
	return task, nil
}

// ArchiveTask parks a task in archived, remembering where it came from.
func ArchiveTask(db *gorm.DB, taskID string) (*models.Task, error) {
	task, err := GetTask(db, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status == models.TaskArchived {
		return nil, &StateConflictError{Entity: "task", Current: string(task.Status), Op: "archive"}
	}

	prev := task.Status
	now := time.Now().UTC()
	task.PreviousStatus = &prev
	task.ArchivedAt = &now
	task.Status = models.TaskArchived

	if err := db.Save(task).Error; err != nil {
		return nil, err
	}
	return task, nil
}

// RestoreTask brings an archived task back to its previous status.
func RestoreTask(db *gorm.DB, taskID string) (*models.Task, error) {
	task, err := GetTask(db, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != models.TaskArchived {
		return nil, &StateConflictError{Entity: "task", Current: string(task.Status), Op: "restore"}
	}

	restored := models.TaskTodo
	if task.PreviousStatus != nil {
		restored = *task.PreviousStatus
	}
	task.Status = restored
	task.PreviousStatus = nil
	task.ArchivedAt = nil

	if err := db.Save(task).Error; err != nil {
		return nil, err
	}
	return task, nil
}

// PurgeArchivedTasks bulk-deletes archived tasks that never entered the
// invoicing pipeline. Tasks referenced by invoice items are protected by the
// not_invoiced filter (and by FK RESTRICT underneath).
func PurgeArchivedTasks(db *gorm.DB) (int64, error) {
	res := db.Where("status = ? AND billing_status = ?", models.TaskArchived, models.BillingNotInvoiced).
		Delete(&models.Task{})
	return res.RowsAffected, res.Error
}

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
