package services

import (
	"fmt"
	"testing"
	"time"

	"billing-backend/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.Project{},
		&models.Task{},
		&models.Invoice{},
		&models.InvoiceItem{},
		&models.InvoiceSnapshot{},
		&models.Receivable{},
		&models.RevenueRecord{},
	))
	return db
}

func seedProject(t *testing.T, db *gorm.DB, rateType models.RateType, hourly, fixed float64) *models.Project {
	t.Helper()

	project := &models.Project{
		Name:             fmt.Sprintf("%s-%s", t.Name(), rateType),
		RateType:         rateType,
		HourlyRate:       hourly,
		FixedRate:        fixed,
		Currency:         "EUR",
		ConversionFactor: 1,
	}
	require.NoError(t, db.Create(project).Error)
	return project
}

func seedCompletedTask(t *testing.T, db *gorm.DB, projectID, title string, hours float64) *models.Task {
	t.Helper()

	now := time.Now().UTC()
	task := &models.Task{
		ProjectID:     projectID,
		Title:         title,
		Status:        models.TaskCompleted,
		Progress:      100,
		HoursWorked:   hours,
		BillingStatus: models.BillingNotInvoiced,
		CompletedOn:   &now,
	}
	require.NoError(t, db.Create(task).Error)
	return task
}

// buildSentInvoice runs build+finalize over the given hourly tasks and returns
// the invoice with its receivables.
func buildSentInvoice(t *testing.T, db *gorm.DB, project *models.Project, taskIDs []string, tax, discount float64) (*models.Invoice, []models.Receivable) {
	t.Helper()

	draft, err := CreateDraftInvoice(db, DraftInvoiceInput{
		ProjectID:      project.Id,
		TaskIDs:        taskIDs,
		Recipient:      "billing@example.com",
		TaxAmount:      tax,
		DiscountAmount: discount,
	})
	require.NoError(t, err)

	invoice, receivables, err := FinalizeInvoice(db, draft.ID)
	require.NoError(t, err)
	return invoice, receivables
}

// payInFull records one covering payment per receivable so the invoice settles.
func payInFull(t *testing.T, db *gorm.DB, receivables []models.Receivable) {
	t.Helper()

	for _, recv := range receivables {
		_, err := RecordPayment(db, recv.ID, recv.Amount, "wire transfer")
		require.NoError(t, err)
	}
}
