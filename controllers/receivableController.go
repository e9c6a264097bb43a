package controllers

import (
	"strings"

	"billing-backend/database"
	"billing-backend/middlewares"
	"billing-backend/models"
	"billing-backend/services"
	"billing-backend/utils"

	"github.com/gofiber/fiber/v2"
)

type PaymentCreateDTO struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
	Notes  string  `json:"notes" validate:"omitempty"`
}

func parseReceivableID(c *fiber.Ctx) (uint, error) {
	id := utils.ParseIntDefault(c.Params("id"), -1)
	if id < 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid receivable id in path")
	}
	return uint(id), nil
}

// GET /api/receivables
func GetReceivables(c *fiber.Ctx) error {
	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	q := db.Model(&models.Receivable{})
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		q = q.Where("status = ?", status)
	}
	if projectID := strings.TrimSpace(c.Query("project_id")); projectID != "" {
		q = q.Where("project_id = ?", projectID)
	}

	var receivables []models.Receivable
	if err := q.Order("created_at DESC").Find(&receivables).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "db error")
	}
	return c.JSON(fiber.Map{"receivables": receivables, "message": "success"})
}

// GET /api/receivable/:id
func GetReceivable(c *fiber.Ctx) error {
	id, err := parseReceivableID(c)
	if err != nil {
		return err
	}

	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	recv, err := services.GetReceivable(db, id)
	if err != nil {
		return err
	}

	paid, err := services.PaidSum(db, recv.ID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "db error")
	}
	return c.JSON(fiber.Map{
		"receivable": recv,
		"paid":       utils.Round2(paid),
		"remaining":  utils.Round2(recv.Amount - paid),
	})
}

// POST /api/receivables/:id/payments
func CreatePayment(c *fiber.Ctx) error {
	id, err := parseReceivableID(c)
	if err != nil {
		return err
	}

	var in PaymentCreateDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	utils.NormalizeDTO(&in)

	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	record, err := services.RecordPayment(db, id, in.Amount, in.Notes)
	if err != nil {
		return err
	}
	return c.Status(201).JSON(record)
}

// GET /api/receivables/:id/payments
func ListPayments(c *fiber.Ctx) error {
	id, err := parseReceivableID(c)
	if err != nil {
		return err
	}

	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	records, err := services.ListPayments(db, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"payments": records, "message": "success"})
}
