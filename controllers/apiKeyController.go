package controllers

import (
	"fmt"
	"strings"
	"time"

	"billing-backend/database"
	"billing-backend/middlewares"
	"billing-backend/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type ApiKeyCreateDTO struct {
	Name string `json:"name" validate:"required,min=1"`
}

// POST /api/apikey
//
// The full token (bk_<schema>_<prefix>_<secret>) is returned exactly once;
// only the bcrypt hash is stored.
func CreateApiKey(c *fiber.Ctx) error {
	var in ApiKeyCreateDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}

	schema, _ := c.Locals("schema").(string)
	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	secret := strings.ReplaceAll(uuid.NewString(), "-", "")
	prefix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]

	key := models.ApiKey{
		Name:   strings.TrimSpace(in.Name),
		Prefix: prefix,
	}
	if err := key.SetSecret(secret); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "could not hash key")
	}
	if err := db.Create(&key).Error; err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "could not create api key")
	}

	return c.Status(201).JSON(fiber.Map{
		"api_key": key,
		"token":   fmt.Sprintf("bk_%s_%s_%s", schema, prefix, secret),
		"message": "store this token now; it will not be shown again",
	})
}

// GET /api/apikeys
func GetApiKeys(c *fiber.Ctx) error {
	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	var keys []models.ApiKey
	if err := db.Order("created_at DESC").Find(&keys).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "db error")
	}
	return c.JSON(fiber.Map{"api_keys": keys, "message": "success"})
}

// DELETE /api/apikey/:id (revoke, not delete: the row stays for audit)
func RevokeApiKey(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing api key id in path")
	}

	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
	}

	now := time.Now().UTC()
	res := db.Model(&models.ApiKey{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Update("revoked_at", &now)
	if res.Error != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "db error")
	}
	if res.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, "api key not found")
	}
	return c.JSON(fiber.Map{"message": "success"})
}
