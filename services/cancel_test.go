package services

import (
	"strings"
	"testing"

	"billing-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func buildPaidInvoice(t *testing.T, db *gorm.DB) (*models.Invoice, []models.Receivable, []string) {
	t.Helper()

	project := seedProject(t, db, models.RateHourly, 50, 0)
	t1 := seedCompletedTask(t, db, project.Id, "design", 2) // 100
	t2 := seedCompletedTask(t, db, project.Id, "build", 3)  // 150

	invoice, receivables := buildSentInvoice(t, db, project, []string{t1.Id, t2.Id}, 10, 5)
	payInFull(t, db, receivables)

	paid, err := GetInvoice(db, invoice.ID)
	require.NoError(t, err)
	require.Equal(t, models.InvoicePaid, paid.Status)
	return paid, receivables, []string{t1.Id, t2.Id}
}

func TestCancelPaidInvoice(t *testing.T) {
	db := newTestDB(t)
	invoice, receivables, taskIDs := buildPaidInvoice(t, db)

	cancelled, err := CancelInvoice(db, invoice.ID, "refund requested")
	require.NoError(t, err)

	assert.Equal(t, models.InvoiceCancelled, cancelled.Status)
	assert.Equal(t, 0.0, cancelled.TotalAmount)
	assert.Equal(t, 0.0, cancelled.FinalAmount)
	assert.Equal(t, "refund requested", cancelled.CancellationReason)
	require.NotNil(t, cancelled.CancelledAt)

	// Originals are recoverable from typed columns, no notes parsing needed.
	require.NotNil(t, cancelled.OriginalTotalAmount)
	require.NotNil(t, cancelled.OriginalFinalAmount)
	assert.Equal(t, 250.0, *cancelled.OriginalTotalAmount)
	assert.Equal(t, 255.0, *cancelled.OriginalFinalAmount)
	assert.Contains(t, cancelled.Notes, "refund requested")

	for _, recv := range receivables {
		reloaded, err := GetReceivable(db, recv.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ReceivableCancelled, reloaded.Status)
		assert.Contains(t, reloaded.Notes, "refund requested")
	}

	for _, id := range taskIDs {
		task, err := GetTask(db, id)
		require.NoError(t, err)
		assert.Equal(t, models.BillingCancelled, task.BillingStatus)
		assert.Contains(t, task.Description, reInvoiceMarker)
	}
}

func TestCancelLeavesRevenueRecordsUntouched(t *testing.T) {
	db := newTestDB(t)
	invoice, receivables, _ := buildPaidInvoice(t, db)

	var before int64
	require.NoError(t, db.Model(&models.RevenueRecord{}).Count(&before).Error)
	require.Equal(t, int64(len(receivables)), before)

	_, err := CancelInvoice(db, invoice.ID, "dispute")
	require.NoError(t, err)

	var after int64
	require.NoError(t, db.Model(&models.RevenueRecord{}).Count(&after).Error)
	assert.Equal(t, before, after)

	var total float64
	row := db.Model(&models.RevenueRecord{}).Select("COALESCE(SUM(amount), 0)").Row()
	require.NoError(t, row.Scan(&total))
	assert.Equal(t, 250.0, total)
}

func TestCancelRequiresReason(t *testing.T) {
	db := newTestDB(t)
	invoice, _, _ := buildPaidInvoice(t, db)

	var valErr *ValidationError
	_, err := CancelInvoice(db, invoice.ID, "")
	require.ErrorAs(t, err, &valErr)
	_, err = CancelInvoice(db, invoice.ID, "   ")
	require.ErrorAs(t, err, &valErr)
}

func TestCancelRequiresPaidInvoice(t *testing.T) {
	db := newTestDB(t)
	project := seedProject(t, db, models.RateHourly, 50, 0)
	task := seedCompletedTask(t, db, project.Id, "work", 2)

	draft, err := CreateDraftInvoice(db, DraftInvoiceInput{
		ProjectID: project.Id, TaskIDs: []string{task.Id}, Recipient: "a@example.com",
	})
	require.NoError(t, err)

	var conflict *StateConflictError
	_, err = CancelInvoice(db, draft.ID, "changed my mind")
	require.ErrorAs(t, err, &conflict)

	sent, _, err := FinalizeInvoice(db, draft.ID)
	require.NoError(t, err)
	_, err = CancelInvoice(db, sent.ID, "changed my mind")
	require.ErrorAs(t, err, &conflict)
}

func TestCancelAppendsSnapshotWithOriginalAmounts(t *testing.T) {
	db := newTestDB(t)
	invoice, _, _ := buildPaidInvoice(t, db)

	_, err := CancelInvoice(db, invoice.ID, "refund requested")
	require.NoError(t, err)

	var snapshots []models.InvoiceSnapshot
	require.NoError(t, db.Where("invoice_id = ?", invoice.ID).
		Order("version_no ASC").Find(&snapshots).Error)
	require.Len(t, snapshots, 2)
	assert.Equal(t, "sent", snapshots[0].Kind)
	assert.Equal(t, "cancelled", snapshots[1].Kind)
	// The cancellation snapshot was taken before the amounts were zeroed.
	assert.True(t, strings.Contains(string(snapshots[1].Snapshot), `"final_amount":255`))
}

func TestCancelMarkerAppendedOnce(t *testing.T) {
	db := newTestDB(t)
	invoice, _, taskIDs := buildPaidInvoice(t, db)

	_, err := CancelInvoice(db, invoice.ID, "refund requested")
	require.NoError(t, err)

	task, err := GetTask(db, taskIDs[0])
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(task.Description, reInvoiceMarker))
}
