package controllers

import (
	"errors"
	"strings"

	"billing-backend/database"
	"billing-backend/middlewares"
	"billing-backend/models"
	"billing-backend/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type ProjectCreateDTO struct {
	Name             string  `json:"name" validate:"required,min=1"`
	RateType         string  `json:"rate_type" validate:"required,oneof=hourly fixed"`
	HourlyRate       float64 `json:"hourly_rate" validate:"omitempty,gte=0"`
	FixedRate        float64 `json:"fixed_rate" validate:"omitempty,gte=0"`
	Currency         string  `json:"currency" validate:"omitempty,len=3"`
	ConversionFactor float64 `json:"conversion_factor" validate:"omitempty,gt=0"`
	Priority         string  `json:"priority" validate:"omitempty"`
}

type ProjectUpdateDTO struct {
	Name             *string  `json:"name" validate:"omitempty,min=1"`
	RateType         *string  `json:"rate_type" validate:"omitempty,oneof=hourly fixed"`
	HourlyRate       *float64 `json:"hourly_rate" validate:"omitempty,gte=0"`
	FixedRate        *float64 `json:"fixed_rate" validate:"omitempty,gte=0"`
	Currency         *string  `json:"currency" validate:"omitempty,len=3"`
	ConversionFactor *float64 `json:"conversion_factor" validate:"omitempty,gt=0"`
	Status           *string  `json:"status" validate:"omitempty"`
	Priority         *string  `json:"priority" validate:"omitempty"`
}

// POST /api/project
func CreateProject(c *fiber.Ctx) error {
	var in ProjectCreateDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	utils.NormalizeDTO(&in)

	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	project := models.Project{
		Name:             in.Name,
		RateType:         models.RateType(in.RateType),
		HourlyRate:       in.HourlyRate,
		FixedRate:        in.FixedRate,
		Priority:         in.Priority,
		ConversionFactor: 1,
	}
	if in.Currency != "" {
		project.Currency = strings.ToUpper(in.Currency)
	}
	if in.ConversionFactor > 0 {
		project.ConversionFactor = in.ConversionFactor
	}

	if err := db.Create(&project).Error; err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "could not create project")
	}
	return c.Status(201).JSON(project)
}

// GET /api/projects
func GetProjects(c *fiber.Ctx) error {
	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	var projects []models.Project
	q := db.Model(&models.Project{})
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Order("created_at DESC").Find(&projects).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "db error")
	}
	return c.JSON(fiber.Map{"projects": projects, "message": "success"})
}

// GET /api/project/:id
func GetProject(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing project id in path")
	}

	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	var project models.Project
	if err := db.First(&project, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "project not found")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "db error")
	}
	return c.JSON(project)
}

// PUT /api/project/:id
func UpdateProject(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing project id in path")
	}

	var in ProjectUpdateDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	utils.NormalizePtrDTO(&in)

	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	// Ensure exists
	var existing models.Project
	if err := db.First(&existing, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "project not found")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "db error")
	}

	updates := utils.UpdatesFromPtrDTO(&in, nil)
	if len(updates) > 0 {
		if err := db.Model(&models.Project{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "could not update project")
		}
	}

	var out models.Project
	if err := db.First(&out, "id = ?", id).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to reload project")
	}
	return c.JSON(out)
}
