package services

import (
	"testing"

	"billing-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFullPaymentClosesReceivableAndInvoice(t *testing.T) {
	db := newTestDB(t)
	project := seedProject(t, db, models.RateHourly, 50, 0)
	task := seedCompletedTask(t, db, project.Id, "work", 6) // 300

	invoice, receivables := buildSentInvoice(t, db, project, []string{task.Id}, 0, 0)
	require.Len(t, receivables, 1)
	require.Equal(t, 300.0, receivables[0].Amount)

	record, err := RecordPayment(db, receivables[0].ID, 300, "bank transfer")
	require.NoError(t, err)
	assert.Equal(t, 300.0, record.Amount)

	recv, err := GetReceivable(db, receivables[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReceivablePaid, recv.Status)
	require.NotNil(t, recv.PaidAt)

	paidTask, err := GetTask(db, task.Id)
	require.NoError(t, err)
	assert.Equal(t, models.BillingPaid, paidTask.BillingStatus)

	settled, err := GetInvoice(db, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoicePaid, settled.Status)
	require.NotNil(t, settled.PaidAt)
}

func TestOverpaymentIsRejected(t *testing.T) {
	db := newTestDB(t)
	project := seedProject(t, db, models.RateHourly, 50, 0)
	task := seedCompletedTask(t, db, project.Id, "work", 6) // 300

	_, receivables := buildSentInvoice(t, db, project, []string{task.Id}, 0, 0)

	_, err := RecordPayment(db, receivables[0].ID, 350, "")
	var over *OverpaymentError
	require.ErrorAs(t, err, &over)
	assert.Equal(t, 350.0, over.Requested)
	assert.Equal(t, 300.0, over.Remaining)

	// Nothing was recorded.
	paid, err := PaidSum(db, receivables[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, paid)
}

func TestPartialPaymentsAccumulate(t *testing.T) {
	db := newTestDB(t)
	project := seedProject(t, db, models.RateHourly, 50, 0)
	task := seedCompletedTask(t, db, project.Id, "work", 6) // 300

	_, receivables := buildSentInvoice(t, db, project, []string{task.Id}, 0, 0)
	id := receivables[0].ID

	_, err := RecordPayment(db, id, 100, "first installment")
	require.NoError(t, err)

	recv, err := GetReceivable(db, id)
	require.NoError(t, err)
	assert.Equal(t, models.ReceivableOpen, recv.Status)

	// The remaining amount is re-read; one cent over is refused.
	_, err = RecordPayment(db, id, 200.01, "")
	var over *OverpaymentError
	require.ErrorAs(t, err, &over)

	_, err = RecordPayment(db, id, 200, "second installment")
	require.NoError(t, err)

	recv, err = GetReceivable(db, id)
	require.NoError(t, err)
	assert.Equal(t, models.ReceivablePaid, recv.Status)

	records, err := ListPayments(db, id)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 100.0, records[0].Amount)
	assert.Equal(t, 200.0, records[1].Amount)

	// The rollup mirrors the ledger.
	assert.Equal(t, 300.0, recv.PaidTotal)
}

func TestOverpaymentGuardUsesRollupNotLedger(t *testing.T) {
	db := newTestDB(t)
	project := seedProject(t, db, models.RateHourly, 50, 0)
	task := seedCompletedTask(t, db, project.Id, "work", 6) // 300

	_, receivables := buildSentInvoice(t, db, project, []string{task.Id}, 0, 0)
	id := receivables[0].ID

	// A payment committed by another request after this caller read the
	// receivable: the rollup already carries it.
	require.NoError(t, db.Model(&models.Receivable{}).Where("id = ?", id).
		Update("paid_total", 250.0).Error)

	_, err := RecordPayment(db, id, 100, "")
	var over *OverpaymentError
	require.ErrorAs(t, err, &over)
	assert.Equal(t, 50.0, over.Remaining)

	// The refused attempt changed nothing.
	recv, err := GetReceivable(db, id)
	require.NoError(t, err)
	assert.Equal(t, 250.0, recv.PaidTotal)
	assert.Equal(t, models.ReceivableOpen, recv.Status)

	// Paying exactly the remaining closes the receivable off the rollup.
	_, err = RecordPayment(db, id, 50, "")
	require.NoError(t, err)

	recv, err = GetReceivable(db, id)
	require.NoError(t, err)
	assert.Equal(t, models.ReceivablePaid, recv.Status)
	assert.Equal(t, 300.0, recv.PaidTotal)
}

func TestNonPositivePaymentRejected(t *testing.T) {
	db := newTestDB(t)
	project := seedProject(t, db, models.RateHourly, 50, 0)
	task := seedCompletedTask(t, db, project.Id, "work", 1)

	_, receivables := buildSentInvoice(t, db, project, []string{task.Id}, 0, 0)

	var valErr *ValidationError
	_, err := RecordPayment(db, receivables[0].ID, 0, "")
	require.ErrorAs(t, err, &valErr)
	_, err = RecordPayment(db, receivables[0].ID, -5, "")
	require.ErrorAs(t, err, &valErr)
}

func TestPaymentAgainstClosedReceivableRejected(t *testing.T) {
	db := newTestDB(t)
	project := seedProject(t, db, models.RateHourly, 50, 0)
	task := seedCompletedTask(t, db, project.Id, "work", 2) // 100

	_, receivables := buildSentInvoice(t, db, project, []string{task.Id}, 0, 0)
	payInFull(t, db, receivables)

	_, err := RecordPayment(db, receivables[0].ID, 10, "")
	var conflict *StateConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestInvoiceSettlesOnlyWhenEveryTaskIsPaid(t *testing.T) {
	db := newTestDB(t)
	project := seedProject(t, db, models.RateHourly, 50, 0)
	t1 := seedCompletedTask(t, db, project.Id, "design", 2) // 100
	t2 := seedCompletedTask(t, db, project.Id, "build", 3)  // 150

	invoice, receivables := buildSentInvoice(t, db, project, []string{t1.Id, t2.Id}, 0, 0)
	require.Len(t, receivables, 2)

	_, err := RecordPayment(db, receivables[0].ID, receivables[0].Amount, "")
	require.NoError(t, err)

	partial, err := GetInvoice(db, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceSent, partial.Status)

	_, err = RecordPayment(db, receivables[1].ID, receivables[1].Amount, "")
	require.NoError(t, err)

	settled, err := GetInvoice(db, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoicePaid, settled.Status)
}

func TestPaymentAgainstUnknownReceivable(t *testing.T) {
	db := newTestDB(t)

	_, err := RecordPayment(db, 9999, 10, "")
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestOverduePaymentStillSettlesInvoice(t *testing.T) {
	db := newTestDB(t)
	project := seedProject(t, db, models.RateHourly, 50, 0)
	task := seedCompletedTask(t, db, project.Id, "late work", 2)

	invoice, receivables := buildSentInvoice(t, db, project, []string{task.Id}, 0, 0)
	require.NoError(t, db.Model(&models.Invoice{}).Where("id = ?", invoice.ID).
		Update("status", models.InvoiceOverdue).Error)

	payInFull(t, db, receivables)

	settled, err := GetInvoice(db, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoicePaid, settled.Status)
}
