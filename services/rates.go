package services

import (
	"billing-backend/models"
	"billing-backend/utils"
)

// Rate is a project's billing rate as a tagged variant over hourly/fixed, so an
// unknown rate_type cannot travel past the parse boundary (no silent zero
// amounts).
type Rate struct {
	hourly bool
	value  float64
}

func HourlyRate(rate float64) Rate {
	return Rate{hourly: true, value: rate}
}

func FixedRate(amount float64) Rate {
	return Rate{hourly: false, value: amount}
}

// ProjectRate reads the active rate model off a project.
func ProjectRate(project *models.Project) (Rate, error) {
	switch project.RateType {
	case models.RateHourly:
		return HourlyRate(project.HourlyRate), nil
	case models.RateFixed:
		return FixedRate(project.FixedRate), nil
	default:
		return Rate{}, &ValidationError{Field: "rate_type", Reason: "unknown rate type " + string(project.RateType)}
	}
}

// Amount computes the charge for one invoice item. Hourly projects bill
// hoursWorked at the hourly rate. Fixed projects bill the whole contract value,
// split evenly across the itemCount tasks on the invoice (documented
// simplification: the split is by count, not by effort).
func (r Rate) Amount(hoursWorked float64, itemCount int) float64 {
	if r.hourly {
		return utils.Round2(hoursWorked * r.value)
	}
	if itemCount < 1 {
		itemCount = 1
	}
	return utils.Round2(r.value / float64(itemCount))
}

// Value is the raw rate recorded on receivables: the hourly rate, or the fixed
// contract value.
func (r Rate) Value() float64 {
	return r.value
}

// DisplayAmount converts a stored base-currency amount for presentation only.
// The stored canonical amount is never mutated.
func DisplayAmount(amount, externalRate, conversionFactor float64) float64 {
	return utils.Round2(amount * externalRate * conversionFactor)
}
