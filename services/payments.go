package services

import (
	"errors"
	"fmt"
	"time"

	"billing-backend/models"
	"billing-backend/utils"

	"gorm.io/gorm"
)

// centEpsilon absorbs float drift when comparing money sums.
const centEpsilon = 0.005

func GetReceivable(db *gorm.DB, id uint) (*models.Receivable, error) {
	var recv models.Receivable
	if err := db.First(&recv, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "receivable", ID: fmt.Sprint(id)}
		}
		return nil, err
	}
	return &recv, nil
}

// PaidSum returns the cumulative revenue already recorded against a receivable.
func PaidSum(db *gorm.DB, receivableID uint) (float64, error) {
	var sum float64
	row := db.Model(&models.RevenueRecord{}).
		Where("receivable_id = ?", receivableID).
		Select("COALESCE(SUM(amount), 0)").
		Row()
	if err := row.Scan(&sum); err != nil {
		return 0, err
	}
	return sum, nil
}

// RecordPayment appends a revenue record against a receivable. The rollup
// update re-checks status and remaining under the row lock it takes, so two
// payments racing past the initial read cannot both apply. When the receivable
// is fully paid it closes, its task moves to invoice_status=paid, and once
// every task on the parent invoice is paid the invoice itself flips to paid.
func RecordPayment(db *gorm.DB, receivableID uint, amount float64, notes string) (*models.RevenueRecord, error) {
	if amount <= 0 {
		return nil, &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}
	amount = utils.Round2(amount)

	recv, err := GetReceivable(db, receivableID)
	if err != nil {
		return nil, err
	}
	if recv.Status != models.ReceivableOpen {
		return nil, &StateConflictError{Entity: "receivable", Current: string(recv.Status), Op: "record payment against"}
	}
	remaining := utils.Round2(recv.Amount - recv.PaidTotal)
	if amount > remaining+centEpsilon {
		return nil, &OverpaymentError{Requested: amount, Remaining: remaining}
	}

	res := db.Model(&models.Receivable{}).
		Where("id = ? AND status = ? AND paid_total + ? <= amount + ?",
			recv.ID, models.ReceivableOpen, amount, centEpsilon).
		Update("paid_total", gorm.Expr("paid_total + ?", amount))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// Lost a race since the read above; re-read for an accurate error.
		recv, err = GetReceivable(db, receivableID)
		if err != nil {
			return nil, err
		}
		if recv.Status != models.ReceivableOpen {
			return nil, &StateConflictError{Entity: "receivable", Current: string(recv.Status), Op: "record payment against"}
		}
		return nil, &OverpaymentError{Requested: amount, Remaining: utils.Round2(recv.Amount - recv.PaidTotal)}
	}

	record := models.RevenueRecord{
		ReceivableID: recv.ID,
		Amount:       amount,
		Notes:        notes,
		RecordedAt:   time.Now().UTC(),
	}
	if err := db.Create(&record).Error; err != nil {
		return nil, err
	}

	recv, err = GetReceivable(db, receivableID)
	if err != nil {
		return nil, err
	}
	if recv.PaidTotal >= recv.Amount-centEpsilon {
		if err := closeReceivable(db, recv); err != nil {
			return nil, err
		}
	}
	return &record, nil
}

func closeReceivable(db *gorm.DB, recv *models.Receivable) error {
	now := time.Now().UTC()
	recv.Status = models.ReceivablePaid
	recv.PaidAt = &now
	if err := db.Save(recv).Error; err != nil {
		return err
	}

	task, err := GetTask(db, recv.TaskID)
	if err != nil {
		return err
	}
	if err := advanceBilling(task, models.BillingPaid); err != nil {
		return err
	}
	if err := db.Save(task).Error; err != nil {
		return err
	}

	return settleInvoiceIfPaid(db, recv.TaskID)
}

// settleInvoiceIfPaid marks the parent invoice paid once every one of its tasks
// has been paid in full.
func settleInvoiceIfPaid(db *gorm.DB, taskID string) error {
	var item models.InvoiceItem
	err := db.Joins("JOIN invoices ON invoices.id = invoice_items.invoice_id").
		Where("invoice_items.task_id = ? AND invoices.status IN ?", taskID,
			[]models.InvoiceStatus{models.InvoiceSent, models.InvoiceOverdue}).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Payment against a receivable whose invoice is already settled or gone.
		return nil
	}
	if err != nil {
		return err
	}

	invoice, err := GetInvoice(db, item.InvoiceID)
	if err != nil {
		return err
	}

	var unpaid int64
	if err := db.Model(&models.Task{}).
		Where("id IN (?) AND billing_status <> ?",
			db.Model(&models.InvoiceItem{}).Select("task_id").Where("invoice_id = ?", invoice.ID),
			models.BillingPaid).
		Count(&unpaid).Error; err != nil {
		return err
	}
	if unpaid > 0 {
		return nil
	}

	now := time.Now().UTC()
	invoice.Status = models.InvoicePaid
	invoice.PaidAt = &now
	return db.Save(invoice).Error
}

// ListPayments returns the append-only revenue ledger of one receivable.
func ListPayments(db *gorm.DB, receivableID uint) ([]models.RevenueRecord, error) {
	if _, err := GetReceivable(db, receivableID); err != nil {
		return nil, err
	}
	var records []models.RevenueRecord
	err := db.Where("receivable_id = ?", receivableID).
		Order("recorded_at ASC").
		Find(&records).Error
	return records, err
}
