package controllers

import (
	"strings"
	"time"

	"billing-backend/database"
	"billing-backend/middlewares"
	"billing-backend/models"
	"billing-backend/services"
	"billing-backend/utils"

	"github.com/gofiber/fiber/v2"
)

type InvoiceCreateDTO struct {
	ProjectID      string   `json:"project_id" validate:"required,uuid4"`
	TaskIDs        []string `json:"task_ids" validate:"required"`
	Recipient      string   `json:"recipient_email" validate:"required,email"`
	TaxAmount      float64  `json:"tax_amount" validate:"omitempty,gte=0"`
	DiscountAmount float64  `json:"discount_amount" validate:"omitempty,gte=0"`
	DueDate        string   `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
}

type InvoiceUpdateDTO struct {
	Recipient      *string  `json:"recipient_email" validate:"omitempty,email"`
	TaxAmount      *float64 `json:"tax_amount" validate:"omitempty,gte=0"`
	DiscountAmount *float64 `json:"discount_amount" validate:"omitempty,gte=0"`
	DueDate        *string  `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	RemoveTaskID   *string  `json:"remove_task_id" validate:"omitempty,uuid4"`
}

type InvoiceCancelDTO struct {
	Reason string `json:"reason" validate:"required,min=1"`
}

func parseInvoiceID(c *fiber.Ctx) (uint, error) {
	id := utils.ParseIntDefault(c.Params("id"), -1)
	if id < 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid invoice id in path")
	}
	return uint(id), nil
}

// POST /api/invoice
func CreateInvoice(c *fiber.Ctx) error {
	var in InvoiceCreateDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	utils.NormalizeDTO(&in)

	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	input := services.DraftInvoiceInput{
		ProjectID:      in.ProjectID,
		TaskIDs:        in.TaskIDs,
		Recipient:      in.Recipient,
		TaxAmount:      in.TaxAmount,
		DiscountAmount: in.DiscountAmount,
	}
	if in.DueDate != "" {
		due, err := time.Parse("2006-01-02", in.DueDate)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid due_date")
		}
		input.DueDate = &due
	}

	invoice, err := services.CreateDraftInvoice(db, input)
	if err != nil {
		return err
	}
	return c.Status(201).JSON(invoice)
}

// GET /api/invoices
func GetInvoices(c *fiber.Ctx) error {
	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	q := db.Model(&models.Invoice{}).Preload("Items")
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		q = q.Where("status = ?", status)
	}
	if projectID := strings.TrimSpace(c.Query("project_id")); projectID != "" {
		q = q.Where("project_id = ?", projectID)
	}

	var invoices []models.Invoice
	if err := q.Order("created_at DESC").Find(&invoices).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "db error")
	}
	return c.JSON(fiber.Map{"invoices": invoices, "message": "success"})
}

// GET /api/invoice/:id
func GetInvoice(c *fiber.Ctx) error {
	id, err := parseInvoiceID(c)
	if err != nil {
		return err
	}

	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	invoice, err := services.GetInvoice(db, id)
	if err != nil {
		return err
	}
	return c.JSON(invoice)
}

// PUT /api/invoices/:id (drafts only)
func UpdateInvoice(c *fiber.Ctx) error {
	id, err := parseInvoiceID(c)
	if err != nil {
		return err
	}

	var in InvoiceUpdateDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	utils.NormalizePtrDTO(&in)

	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	if in.RemoveTaskID != nil {
		invoice, err := services.RemoveDraftItem(db, id, *in.RemoveTaskID)
		if err != nil {
			return err
		}
		return c.JSON(invoice)
	}

	var due *time.Time
	if in.DueDate != nil {
		d, err := time.Parse("2006-01-02", *in.DueDate)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid due_date")
		}
		due = &d
	}

	invoice, err := services.UpdateDraftInvoice(db, id, in.Recipient, in.TaxAmount, in.DiscountAmount, due)
	if err != nil {
		return err
	}
	return c.JSON(invoice)
}

// DELETE /api/invoices/:id (draft discard; releases selected tasks)
func DeleteInvoice(c *fiber.Ctx) error {
	id, err := parseInvoiceID(c)
	if err != nil {
		return err
	}

	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	if err := services.DeleteDraftInvoice(db, id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "success"})
}

// POST /api/invoices/:id/finalize
func FinalizeInvoice(c *fiber.Ctx) error {
	id, err := parseInvoiceID(c)
	if err != nil {
		return err
	}

	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	invoice, receivables, err := services.FinalizeInvoice(db, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"invoice":     invoice,
		"receivables": receivables,
	})
}

// POST /api/invoices/:id/cancel
func CancelInvoice(c *fiber.Ctx) error {
	id, err := parseInvoiceID(c)
	if err != nil {
		return err
	}

	var in InvoiceCancelDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}

	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	invoice, err := services.CancelInvoice(db, id, in.Reason)
	if err != nil {
		return err
	}
	return c.JSON(invoice)
}

// POST /api/invoices/sweep-overdue
func SweepOverdueInvoices(c *fiber.Ctx) error {
	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	flipped, err := services.SweepOverdueInvoices(db)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "sweep failed")
	}
	return c.JSON(fiber.Map{"overdue": flipped, "message": "success"})
}

// GET /api/invoices/:id/snapshots
func GetInvoiceSnapshots(c *fiber.Ctx) error {
	id, err := parseInvoiceID(c)
	if err != nil {
		return err
	}

	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	if _, err := services.GetInvoice(db, id); err != nil {
		return err
	}

	var snapshots []models.InvoiceSnapshot
	if err := db.Where("invoice_id = ?", id).Order("version_no ASC").Find(&snapshots).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "db error")
	}
	return c.JSON(fiber.Map{"snapshots": snapshots, "message": "success"})
}
