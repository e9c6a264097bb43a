package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"billing-backend/models"
	"billing-backend/utils"

	"gorm.io/gorm"
)

// DraftInvoiceInput carries everything needed to build a draft invoice.
type DraftInvoiceInput struct {
	ProjectID      string
	TaskIDs        []string
	Recipient      string
	TaxAmount      float64
	DiscountAmount float64
	DueDate        *time.Time
}

func GetInvoice(db *gorm.DB, id uint) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := db.Preload("Items").First(&invoice, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "invoice", ID: fmt.Sprint(id)}
		}
		return nil, err
	}
	return &invoice, nil
}

// CreateDraftInvoice aggregates the selected completed, not-yet-invoiced tasks
// into a draft. Item amounts come from the project's rate; selected tasks move
// to invoice_status=created.
func CreateDraftInvoice(db *gorm.DB, in DraftInvoiceInput) (*models.Invoice, error) {
	if len(in.TaskIDs) == 0 {
		return nil, &ValidationError{Field: "task_ids", Reason: "no tasks selected"}
	}

	var project models.Project
	if err := db.First(&project, "id = ?", in.ProjectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "project", ID: in.ProjectID}
		}
		return nil, err
	}
	rate, err := ProjectRate(&project)
	if err != nil {
		return nil, err
	}

	var tasks []models.Task
	if err := db.Where("id IN ? AND project_id = ?", in.TaskIDs, project.Id).Find(&tasks).Error; err != nil {
		return nil, err
	}
	if len(tasks) != len(in.TaskIDs) {
		found := make(map[string]bool, len(tasks))
		for _, t := range tasks {
			found[t.Id] = true
		}
		for _, id := range in.TaskIDs {
			if !found[id] {
				return nil, &NotFoundError{Entity: "task", ID: id}
			}
		}
	}

	var (
		items []models.InvoiceItem
		total float64
	)
	for i := range tasks {
		task := &tasks[i]
		if task.Status != models.TaskCompleted {
			return nil, &StateConflictError{Entity: "task " + task.Id, Current: string(task.Status), Op: "invoice"}
		}
		if task.BillingStatus != models.BillingNotInvoiced {
			return nil, &StateConflictError{Entity: "task " + task.Id, Current: string(task.BillingStatus), Op: "invoice"}
		}

		amount := rate.Amount(task.HoursWorked, len(tasks))
		total += amount
		items = append(items, models.InvoiceItem{
			TaskID:      task.Id,
			Description: task.Title,
			HoursBilled: task.HoursWorked,
			Rate:        rate.Value(),
			Amount:      amount,
		})
	}

	invoice := models.Invoice{
		ProjectID:      project.Id,
		Recipient:      strings.TrimSpace(in.Recipient),
		Items:          items,
		TotalAmount:    utils.Round2(total),
		TaxAmount:      utils.Round2(in.TaxAmount),
		DiscountAmount: utils.Round2(in.DiscountAmount),
		Status:         models.InvoiceDraft,
		IssueDate:      time.Now().UTC(),
		DueDate:        in.DueDate,
	}
	invoice.FinalAmount = finalAmount(&invoice)

	// The generated number is unique-indexed; retry with the next counter on a
	// collision (two drafts created in the same instant). The insert runs under
	// a savepoint because a unique violation aborts the surrounding Postgres
	// transaction and nothing would be retryable without one.
	for attempt := 0; ; attempt++ {
		number, err := nextInvoiceNumber(db, attempt)
		if err != nil {
			return nil, err
		}
		invoice.InvoiceNumber = number
		if err := db.SavePoint("invoice_number").Error; err != nil {
			return nil, err
		}
		if err := db.Create(&invoice).Error; err != nil {
			if attempt < 3 && isUniqueViolation(err) {
				if e := db.RollbackTo("invoice_number").Error; e != nil {
					return nil, e
				}
				invoice.ID = 0
				for i := range invoice.Items {
					invoice.Items[i].ID = 0
				}
				continue
			}
			return nil, err
		}
		if err := db.Exec("RELEASE SAVEPOINT invoice_number").Error; err != nil {
			return nil, err
		}
		break
	}

	for i := range tasks {
		if err := advanceBilling(&tasks[i], models.BillingCreated); err != nil {
			return nil, err
		}
		if err := db.Save(&tasks[i]).Error; err != nil {
			return nil, err
		}
	}

	return &invoice, nil
}

// UpdateDraftInvoice patches recipient/tax/discount/due date on a draft and
// recomputes final_amount. Non-drafts are immutable through this path.
func UpdateDraftInvoice(db *gorm.DB, id uint, recipient *string, tax, discount *float64, dueDate *time.Time) (*models.Invoice, error) {
	invoice, err := GetInvoice(db, id)
	if err != nil {
		return nil, err
	}
	if invoice.Status != models.InvoiceDraft {
		return nil, &StateConflictError{Entity: "invoice", Current: string(invoice.Status), Op: "update"}
	}

	if recipient != nil {
		invoice.Recipient = strings.TrimSpace(*recipient)
	}
	if tax != nil {
		invoice.TaxAmount = utils.Round2(*tax)
	}
	if discount != nil {
		invoice.DiscountAmount = utils.Round2(*discount)
	}
	if dueDate != nil {
		invoice.DueDate = dueDate
	}
	invoice.FinalAmount = finalAmount(invoice)

	if err := db.Save(invoice).Error; err != nil {
		return nil, err
	}
	return invoice, nil
}

// RemoveDraftItem drops one task from a draft invoice, releases the task back
// to not_invoiced, and recomputes totals.
func RemoveDraftItem(db *gorm.DB, invoiceID uint, taskID string) (*models.Invoice, error) {
	invoice, err := GetInvoice(db, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.Status != models.InvoiceDraft {
		return nil, &StateConflictError{Entity: "invoice", Current: string(invoice.Status), Op: "edit items of"}
	}

	idx := -1
	for i, item := range invoice.Items {
		if item.TaskID == taskID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, &NotFoundError{Entity: "invoice item for task", ID: taskID}
	}
	if len(invoice.Items) == 1 {
		return nil, &ValidationError{Field: "remove_task_id", Reason: "cannot remove the last item; delete the draft instead"}
	}

	if err := db.Delete(&invoice.Items[idx]).Error; err != nil {
		return nil, err
	}
	if err := releaseTask(db, taskID); err != nil {
		return nil, err
	}
	invoice.Items = append(invoice.Items[:idx], invoice.Items[idx+1:]...)

	var total float64
	for _, item := range invoice.Items {
		total += item.Amount
	}
	invoice.TotalAmount = utils.Round2(total)
	invoice.FinalAmount = finalAmount(invoice)

	if err := db.Save(invoice).Error; err != nil {
		return nil, err
	}
	return invoice, nil
}

// DeleteDraftInvoice is the draft-discard path: the draft and its items go away
// and every selected task returns to not_invoiced. Cancellation is a different
// operation reserved for paid invoices.
func DeleteDraftInvoice(db *gorm.DB, id uint) error {
	invoice, err := GetInvoice(db, id)
	if err != nil {
		return err
	}
	if invoice.Status != models.InvoiceDraft {
		return &StateConflictError{Entity: "invoice", Current: string(invoice.Status), Op: "delete"}
	}

	for _, item := range invoice.Items {
		if err := releaseTask(db, item.TaskID); err != nil {
			return err
		}
	}
	if err := db.Where("invoice_id = ?", invoice.ID).Delete(&models.InvoiceItem{}).Error; err != nil {
		return err
	}
	return db.Delete(invoice).Error
}

// FinalizeInvoice transitions a draft to sent. This is the sole creation point
// for receivables: one open receivable per item, upserted by task (a leftover
// receivable from an earlier run gets its amount/hours/rate overwritten and its
// status reset to open).
func FinalizeInvoice(db *gorm.DB, id uint) (*models.Invoice, []models.Receivable, error) {
	invoice, err := GetInvoice(db, id)
	if err != nil {
		return nil, nil, err
	}
	if invoice.Status != models.InvoiceDraft {
		return nil, nil, &StateConflictError{Entity: "invoice", Current: string(invoice.Status), Op: "finalize"}
	}
	if len(invoice.Items) == 0 {
		return nil, nil, &StateConflictError{Entity: "invoice", Current: string(invoice.Status), Op: "finalize item-less"}
	}

	now := time.Now().UTC()
	invoice.Status = models.InvoiceSent
	invoice.SentAt = &now
	if err := db.Save(invoice).Error; err != nil {
		return nil, nil, err
	}

	receivables := make([]models.Receivable, 0, len(invoice.Items))
	for _, item := range invoice.Items {
		var recv models.Receivable
		err := db.Where("task_id = ?", item.TaskID).First(&recv).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			recv = models.Receivable{
				TaskID:    item.TaskID,
				ProjectID: invoice.ProjectID,
			}
		case err != nil:
			return nil, nil, err
		}
		recv.Amount = item.Amount
		recv.HoursBilled = item.HoursBilled
		recv.RateUsed = item.Rate
		recv.Status = models.ReceivableOpen
		recv.PaidTotal = 0
		recv.PaidAt = nil
		if err := db.Save(&recv).Error; err != nil {
			return nil, nil, err
		}
		receivables = append(receivables, recv)

		task, err := GetTask(db, item.TaskID)
		if err != nil {
			return nil, nil, err
		}
		if err := advanceBilling(task, models.BillingInvoiced); err != nil {
			return nil, nil, err
		}
		if err := db.Save(task).Error; err != nil {
			return nil, nil, err
		}
	}

	if err := snapshotInvoice(db, invoice, "sent"); err != nil {
		return nil, nil, err
	}
	return invoice, receivables, nil
}

// SweepOverdueInvoices flips sent invoices past their due date to overdue.
func SweepOverdueInvoices(db *gorm.DB) (int64, error) {
	res := db.Model(&models.Invoice{}).
		Where("status = ? AND due_date IS NOT NULL AND due_date < ?", models.InvoiceSent, time.Now().UTC()).
		Update("status", models.InvoiceOverdue)
	return res.RowsAffected, res.Error
}

// releaseTask puts a draft-selected task back into the selectable pool. This is
// the one sanctioned invoice-status regression: discarding a draft undoes the
// selection, it does not bill anything.
func releaseTask(db *gorm.DB, taskID string) error {
	return db.Model(&models.Task{}).Where("id = ?", taskID).
		Update("billing_status", models.BillingNotInvoiced).Error
}

func finalAmount(invoice *models.Invoice) float64 {
	return utils.Round2(invoice.TotalAmount + invoice.TaxAmount - invoice.DiscountAmount)
}

// nextInvoiceNumber produces the human-readable sequence token INV-YYYY-NNNN.
// bump shifts the counter on collision retries.
func nextInvoiceNumber(db *gorm.DB, bump int) (string, error) {
	year := time.Now().UTC().Year()
	var count int64
	if err := db.Model(&models.Invoice{}).
		Where("invoice_number LIKE ?", fmt.Sprintf("INV-%d-%%", year)).
		Count(&count).Error; err != nil {
		return "", err
	}
	return fmt.Sprintf("INV-%d-%04d", year, count+int64(1+bump)), nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}

// snapshotInvoice appends an immutable jsonb snapshot of the invoice and its
// items under the next version number.
func snapshotInvoice(db *gorm.DB, invoice *models.Invoice, kind string) error {
	blob, err := json.Marshal(invoice)
	if err != nil {
		return err
	}

	var maxVersion int
	row := db.Model(&models.InvoiceSnapshot{}).
		Where("invoice_id = ?", invoice.ID).
		Select("COALESCE(MAX(version_no), 0)").
		Row()
	if err := row.Scan(&maxVersion); err != nil {
		return err
	}

	return db.Create(&models.InvoiceSnapshot{
		InvoiceID: invoice.ID,
		VersionNo: maxVersion + 1,
		Kind:      kind,
		Snapshot:  blob,
	}).Error
}
