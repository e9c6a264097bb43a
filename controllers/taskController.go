package controllers

import (
	"errors"
	"strings"

	"billing-backend/database"
	"billing-backend/middlewares"
	"billing-backend/models"
	"billing-backend/services"
	"billing-backend/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type TaskCreateDTO struct {
	ProjectID      string  `json:"project_id" validate:"required,uuid4"`
	Title          string  `json:"title" validate:"required,min=1"`
	Description    string  `json:"description" validate:"omitempty"`
	Priority       string  `json:"priority" validate:"omitempty"`
	EstimatedHours float64 `json:"estimated_hours" validate:"omitempty,gte=0"`
}

type TaskUpdateDTO struct {
	Title          *string  `json:"title" validate:"omitempty,min=1"`
	Description    *string  `json:"description" validate:"omitempty"`
	Priority       *string  `json:"priority" validate:"omitempty"`
	EstimatedHours *float64 `json:"estimated_hours" validate:"omitempty,gte=0"`
}

type TaskStatusDTO struct {
	Status      string   `json:"status" validate:"required"`
	Progress    *int     `json:"progress_percentage" validate:"omitempty,gte=0,lte=100"`
	HoursWorked *float64 `json:"hours_worked" validate:"omitempty,gte=0"`
}

// POST /api/task
func CreateTask(c *fiber.Ctx) error {
	var in TaskCreateDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	utils.NormalizeDTO(&in)

	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	var project models.Project
	if err := db.First(&project, "id = ?", in.ProjectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "project not found")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "db error")
	}

	task := models.Task{
		ProjectID:      project.Id,
		Title:          in.Title,
		Description:    in.Description,
		Priority:       in.Priority,
		EstimatedHours: in.EstimatedHours,
		Status:         models.TaskTodo,
		BillingStatus:  models.BillingNotInvoiced,
	}
	if err := db.Create(&task).Error; err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "could not create task")
	}
	return c.Status(201).JSON(task)
}

// GET /api/tasks
func GetTasks(c *fiber.Ctx) error {
	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	q := db.Model(&models.Task{})
	if projectID := strings.TrimSpace(c.Query("project_id")); projectID != "" {
		q = q.Where("project_id = ?", projectID)
	}
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		q = q.Where("status = ?", status)
	}
	if billing := strings.TrimSpace(c.Query("invoice_status")); billing != "" {
		q = q.Where("billing_status = ?", billing)
	}
	// billable=true narrows to the invoice-builder selectable set
	if c.Query("billable") == "true" {
		q = q.Where("status = ? AND billing_status = ?", models.TaskCompleted, models.BillingNotInvoiced)
	}

	var tasks []models.Task
	if err := q.Order("created_at DESC").Find(&tasks).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "db error")
	}
	return c.JSON(fiber.Map{"tasks": tasks, "message": "success"})
}

// GET /api/task/:id
func GetTaskByID(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing task id in path")
	}

	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	task, err := services.GetTask(db, id)
	if err != nil {
		return err
	}
	return c.JSON(task)
}

// PUT /api/task/:id
func UpdateTask(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing task id in path")
	}

	var in TaskUpdateDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	utils.NormalizePtrDTO(&in)

	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	if _, err := services.GetTask(db, id); err != nil {
		return err
	}

	updates := utils.UpdatesFromPtrDTO(&in, nil)
	if len(updates) > 0 {
		if err := db.Model(&models.Task{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "could not update task")
		}
	}

	task, err := services.GetTask(db, id)
	if err != nil {
		return err
	}
	return c.JSON(task)
}

// PUT /api/task/:id/status
//
// Completion is a two-phase protocol: a status change to "completed" without
// hours_worked answers with an hours prompt and changes nothing; the follow-up
// carrying hours_worked applies the transition.
func ChangeTaskStatus(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing task id in path")
	}

	var in TaskStatusDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}

	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	status := models.TaskStatus(strings.TrimSpace(in.Status))
	if status == models.TaskCompleted {
		if in.HoursWorked == nil {
			task, err := services.RequestCompletion(db, id)
			if err != nil {
				return err
			}
			return c.JSON(fiber.Map{
				"hours_required":  true,
				"estimated_hours": task.EstimatedHours,
				"message":         "confirm completion with hours_worked",
			})
		}
		task, err := services.ConfirmCompletion(db, id, *in.HoursWorked)
		if err != nil {
			return err
		}
		return c.JSON(task)
	}

	task, err := services.ChangeTaskStatus(db, id, status, in.Progress)
	if err != nil {
		return err
	}
	return c.JSON(task)
}

// PUT /api/task/:id/archive
func ArchiveTask(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing task id in path")
	}

	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	task, err := services.ArchiveTask(db, id)
	if err != nil {
		return err
	}
	return c.JSON(task)
}

// PUT /api/task/:id/restore
func RestoreTask(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing task id in path")
	}

	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	task, err := services.RestoreTask(db, id)
	if err != nil {
		return err
	}
	return c.JSON(task)
}

// POST /api/tasks/purge
func PurgeTasks(c *fiber.Ctx) error {
	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	purged, err := services.PurgeArchivedTasks(db)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "purge failed")
	}
	return c.JSON(fiber.Map{"purged": purged, "message": "success"})
}
