package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Company is the tenant registry entry; its SchemaName points at the Postgres
// schema holding all of the tenant's billing data.
type Company struct {
	Id          string `json:"id" gorm:"primaryKey"`
	CompanyName string `json:"company_name" gorm:"not null;unique"`
	Address     string `json:"address"`
	City        string `json:"city"`
	Country     string `json:"country"`
	Zip         string `json:"zip"`
	Email       string `json:"email"`
	UserId      string `json:"-"`
	User        User   `json:"user" gorm:"foreignKey:UserId;references:Id"`
	SchemaName  string `json:"-"`
}

func (company *Company) BeforeCreate(tx *gorm.DB) (err error) {
	// UUID version 4
	company.Id = uuid.NewString()
	return
}
