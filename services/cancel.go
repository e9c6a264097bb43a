package services

import (
	"fmt"
	"strings"
	"time"

	"billing-backend/models"

	"gorm.io/gorm"
)

// Appended to a completed task's description on cancellation; re-billing the
// work requires creating a new task.
const reInvoiceMarker = "[cancelled] re-invoicing requires a new task"

// CancelInvoice reverses a paid invoice: amounts are zeroed with the originals
// preserved in typed columns, receivables and tasks flip to cancelled, and the
// revenue records stay untouched as the audit trail of what was actually paid.
// Runs inside the caller's transaction; any failure rolls the whole thing back.
func CancelInvoice(db *gorm.DB, id uint, reason string) (*models.Invoice, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, &ValidationError{Field: "reason", Reason: "must not be empty"}
	}

	invoice, err := GetInvoice(db, id)
	if err != nil {
		return nil, err
	}
	if invoice.Status != models.InvoicePaid {
		return nil, &StateConflictError{Entity: "invoice", Current: string(invoice.Status), Op: "cancel"}
	}

	// Snapshot before the amounts are zeroed.
	if err := snapshotInvoice(db, invoice, "cancelled"); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	origTotal := invoice.TotalAmount
	origFinal := invoice.FinalAmount

	invoice.OriginalTotalAmount = &origTotal
	invoice.OriginalFinalAmount = &origFinal
	invoice.TotalAmount = 0
	invoice.FinalAmount = 0
	invoice.Status = models.InvoiceCancelled
	invoice.CancellationReason = reason
	invoice.CancelledAt = &now
	invoice.Notes = appendNote(invoice.Notes, fmt.Sprintf(
		"cancelled %s: %s (original total %.2f, original final %.2f)",
		now.Format("2006-01-02"), reason, origTotal, origFinal))

	if err := db.Save(invoice).Error; err != nil {
		return nil, err
	}

	for _, item := range invoice.Items {
		task, err := GetTask(db, item.TaskID)
		if err != nil {
			return nil, err
		}
		if err := advanceBilling(task, models.BillingCancelled); err != nil {
			return nil, err
		}
		if task.Status == models.TaskCompleted && !strings.Contains(task.Description, reInvoiceMarker) {
			task.Description = appendNote(task.Description, reInvoiceMarker)
		}
		if err := db.Save(task).Error; err != nil {
			return nil, err
		}

		var recv models.Receivable
		if err := db.Where("task_id = ?", item.TaskID).First(&recv).Error; err != nil {
			return nil, err
		}
		recv.Status = models.ReceivableCancelled
		recv.Notes = appendNote(recv.Notes, fmt.Sprintf(
			"cancelled %s: %s (original amount %.2f)",
			now.Format("2006-01-02"), reason, recv.Amount))
		if err := db.Save(&recv).Error; err != nil {
			return nil, err
		}
	}

	return invoice, nil
}

func appendNote(existing, note string) string {
	if existing == "" {
		return note
	}
	return existing + "\n" + note
}
