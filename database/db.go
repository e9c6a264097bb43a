package database

import (
	"fmt"
	"os"

	"billing-backend/logger"
	"billing-backend/models"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func Connect() {
	if err := godotenv.Load(); err != nil {
		logger.Warn("no .env file found, relying on environment")
	}

	host := os.Getenv("DB_HOST")
	if host == "" {
		host = "db"
	}
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=5432 sslmode=disable TimeZone=UTC",
		host, os.Getenv("DB_USER"), os.Getenv("DB_PASSWORD"), os.Getenv("DB_NAME"))

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		logger.Error("database connection failed", err)
		panic("Could not connect to database")
	}
}

// AutoMigrate covers the public schema: the tenant registry. Tenant schemas are
// migrated individually via MigrateTenantSchema.
func AutoMigrate() {
	if err := DB.AutoMigrate(&models.User{}, &models.Company{}); err != nil {
		logger.Error("public schema migration failed", err)
		panic("Could not migrate public schema")
	}
}
