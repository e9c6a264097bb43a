package controllers

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"billing-backend/database"
	"billing-backend/models"
	"billing-backend/services"
	"billing-backend/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

var rateFetcher = services.NewRateFetcher(os.Getenv("FX_RATES_URL"), time.Hour)

// GET /api/rates/:currency?project_id=...&amount=...
//
// Returns the fetched rate and, when a project and amount are given, the
// display-converted amount (rate × project conversion factor). Conversion is
// presentational; stored amounts stay in the base currency.
func GetRate(c *fiber.Ctx) error {
	currency := strings.ToUpper(strings.TrimSpace(c.Params("currency")))
	if len(currency) != 3 {
		return fiber.NewError(fiber.StatusBadRequest, "invalid currency code")
	}

	rate := rateFetcher.Rate(currency)
	out := fiber.Map{"currency": currency, "rate": rate}

	if projectID := strings.TrimSpace(c.Query("project_id")); projectID != "" {
		db, err := database.GetTenantDB(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "tenant db unavailable")
		}
		var project models.Project
		if err := db.First(&project, "id = ?", projectID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "project not found")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "db error")
		}

		amount := utils.Round2(parseFloatDefault(c.Query("amount"), 0))
		out["conversion_factor"] = project.ConversionFactor
		out["display_amount"] = services.DisplayAmount(amount, rate, project.ConversionFactor)
	}

	return c.JSON(out)
}

func parseFloatDefault(s string, def float64) float64 {
	if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && v >= 0 {
		return v
	}
	return def
}
