package services

import (
	"testing"

	"billing-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedTodoTask(t *testing.T, db *gorm.DB, projectID string) *models.Task {
	t.Helper()
	task := &models.Task{
		ProjectID:     projectID,
		Title:         "write report",
		Status:        models.TaskTodo,
		BillingStatus: models.BillingNotInvoiced,
	}
	require.NoError(t, db.Create(task).Error)
	return task
}

func TestStatusChangeAppliesDefaultProgress(t *testing.T) {
	db := newTestDB(t)
	project := seedProject(t, db, models.RateHourly, 50, 0)
	task := seedTodoTask(t, db, project.Id)

	task, err := ChangeTaskStatus(db, task.Id, models.TaskInProgress, nil)
	require.NoError(t, err)
	assert.Equal(t, 30, task.Progress)

	task, err = ChangeTaskStatus(db, task.Id, models.TaskReview, nil)
	require.NoError(t, err)
	assert.Equal(t, 80, task.Progress)
}

func TestStatusChangeHonorsExplicitProgress(t *testing.T) {
	db := newTestDB(t)
	project := seedProject(t, db, models.RateHourly, 50, 0)
	task := seedTodoTask(t, db, project.Id)

	p := 55
	task, err := ChangeTaskStatus(db, task.Id, models.TaskInProgress, &p)
	require.NoError(t, err)
	assert.Equal(t, 55, task.Progress)
}

func TestHoldPreservesProgress(t *testing.T) {
	db := newTestDB(t)
	project := seedProject(t, db, models.RateHourly, 50, 0)
	task := seedTodoTask(t, db, project.Id)

	p := 42
	_, err := ChangeTaskStatus(db, task.Id, models.TaskInProgress, &p)
	require.NoError(t, err)

	task, err = ChangeTaskStatus(db, task.Id, models.TaskHold, nil)
	require.NoError(t, err)
	assert.Equal(t, 42, task.Progress)
}

func TestCompletionIsTwoPhase(t *testing.T) {
	db := newTestDB(t)
	project := seedProject(t, db, models.RateHourly, 50, 0)
	task := seedTodoTask(t, db, project.Id)

	// Phase one: a plain status change to completed is refused; the caller must
	// confirm with hours.
	_, err := ChangeTaskStatus(db, task.Id, models.TaskCompleted, nil)
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)

	task, err = ConfirmCompletion(db, task.Id, 6.5)
	require.NoError(t, err)
	assert.Equal(t, models.TaskCompleted, task.Status)
	assert.Equal(t, 100, task.Progress)
	assert.Equal(t, 6.5, task.HoursWorked)
	require.NotNil(t, task.CompletedOn)
}

func TestCompletedOnIsSetExactlyOnce(t *testing.T) {
	db := newTestDB(t)
	project := seedProject(t, db, models.RateHourly, 50, 0)
	task := seedTodoTask(t, db, project.Id)

	task, err := ConfirmCompletion(db, task.Id, 2)
	require.NoError(t, err)
	first := *task.CompletedOn

	task, err = ConfirmCompletion(db, task.Id, 3)
	require.NoError(t, err)
	assert.Equal(t, first, *task.CompletedOn)
	assert.Equal(t, 3.0, task.HoursWorked)
}

func TestLeavingCompletedClearsCompletedOnWhileNotInvoiced(t *testing.T) {
	db := newTestDB(t)
	project := seedProject(t, db, models.RateHourly, 50, 0)
	task := seedTodoTask(t, db, project.Id)

	task, err := ConfirmCompletion(db, task.Id, 2)
	require.NoError(t, err)
	require.NotNil(t, task.CompletedOn)

	task, err = ChangeTaskStatus(db, task.Id, models.TaskReview, nil)
	require.NoError(t, err)
	assert.Nil(t, task.CompletedOn)
}

func TestLeavingCompletedKeepsCompletedOnOnceBilled(t *testing.T) {
	db := newTestDB(t)
	project := seedProject(t, db, models.RateHourly, 50, 0)
	task := seedTodoTask(t, db, project.Id)

	task, err := ConfirmCompletion(db, task.Id, 2)
	require.NoError(t, err)

	require.NoError(t, db.Model(task).Update("billing_status", models.BillingCreated).Error)

	task, err = ChangeTaskStatus(db, task.Id, models.TaskReview, nil)
	require.NoError(t, err)
	assert.NotNil(t, task.CompletedOn)
}

func TestNegativeHoursRejected(t *testing.T) {
	db := newTestDB(t)
	project := seedProject(t, db, models.RateHourly, 50, 0)
	task := seedTodoTask(t, db, project.Id)

	_, err := ConfirmCompletion(db, task.Id, -1)
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
}

func TestArchiveRestoreRoundTrip(t *testing.T) {
	db := newTestDB(t)
	project := seedProject(t, db, models.RateHourly, 50, 0)
	task := seedTodoTask(t, db, project.Id)

	_, err := ChangeTaskStatus(db, task.Id, models.TaskInProgress, nil)
	require.NoError(t, err)

	task, err = ArchiveTask(db, task.Id)
	require.NoError(t, err)
	assert.Equal(t, models.TaskArchived, task.Status)
	require.NotNil(t, task.PreviousStatus)
	assert.Equal(t, models.TaskInProgress, *task.PreviousStatus)
	assert.NotNil(t, task.ArchivedAt)

	task, err = RestoreTask(db, task.Id)
	require.NoError(t, err)
	assert.Equal(t, models.TaskInProgress, task.Status)
	assert.Nil(t, task.PreviousStatus)
	assert.Nil(t, task.ArchivedAt)
}

func TestRestoreRequiresArchived(t *testing.T) {
	db := newTestDB(t)
	project := seedProject(t, db, models.RateHourly, 50, 0)
	task := seedTodoTask(t, db, project.Id)

	_, err := RestoreTask(db, task.Id)
	var conflict *StateConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestArchivedTaskRefusesStatusChange(t *testing.T) {
	db := newTestDB(t)
	project := seedProject(t, db, models.RateHourly, 50, 0)
	task := seedTodoTask(t, db, project.Id)

	_, err := ArchiveTask(db, task.Id)
	require.NoError(t, err)

	_, err = ChangeTaskStatus(db, task.Id, models.TaskInProgress, nil)
	var conflict *StateConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestPurgeOnlyTouchesArchivedUnbilledTasks(t *testing.T) {
	db := newTestDB(t)
	project := seedProject(t, db, models.RateHourly, 50, 0)

	archived := seedTodoTask(t, db, project.Id)
	_, err := ArchiveTask(db, archived.Id)
	require.NoError(t, err)

	active := seedTodoTask(t, db, project.Id)

	billed := seedCompletedTask(t, db, project.Id, "billed work", 4)
	_, err = ArchiveTask(db, billed.Id)
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.Task{}).Where("id = ?", billed.Id).
		Update("billing_status", models.BillingInvoiced).Error)

	purged, err := PurgeArchivedTasks(db)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	var remaining int64
	require.NoError(t, db.Model(&models.Task{}).Count(&remaining).Error)
	assert.Equal(t, int64(2), remaining)

	_, err = GetTask(db, active.Id)
	assert.NoError(t, err)
}

func TestBillingStatusNeverRegresses(t *testing.T) {
	task := &models.Task{BillingStatus: models.BillingInvoiced}

	err := advanceBilling(task, models.BillingCreated)
	var conflict *StateConflictError
	require.ErrorAs(t, err, &conflict)

	require.NoError(t, advanceBilling(task, models.BillingPaid))
	require.NoError(t, advanceBilling(task, models.BillingCancelled))

	// Cancelled is terminal; re-billing needs a new task.
	err = advanceBilling(task, models.BillingInvoiced)
	require.ErrorAs(t, err, &conflict)
}
