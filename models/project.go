package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RateType selects the billing model of a project. Exactly one of
// HourlyRate/FixedRate is active, determined by this field.
type RateType string

const (
	RateHourly RateType = "hourly"
	RateFixed  RateType = "fixed"
)

type Project struct {
	Id       string   `json:"id" gorm:"primaryKey"`
	Name     string   `json:"name" gorm:"not null;unique"`
	RateType RateType `json:"rate_type" gorm:"type:VARCHAR(10);not null"`

	HourlyRate float64 `json:"hourly_rate" gorm:"type:numeric(12,2)"`
	FixedRate  float64 `json:"fixed_rate" gorm:"type:numeric(12,2)"`

	// Display currency. ConversionFactor is applied on top of the fetched
	// exchange rate; stored amounts stay in the base currency.
	Currency         string  `json:"currency" gorm:"size:3;default:'EUR'"`
	ConversionFactor float64 `json:"conversion_factor" gorm:"default:1"`

	Status   string `json:"status" gorm:"size:20;default:'active'"`
	Priority string `json:"priority" gorm:"size:20"`

	CreatedAt time.Time `json:"created_at"`
}

func (project *Project) BeforeCreate(tx *gorm.DB) (err error) {
	// UUID version 4
	project.Id = uuid.NewString()
	return
}
