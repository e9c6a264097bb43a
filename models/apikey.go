package models

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ApiKey authenticates third-party read/write API calls as an alternative to a
// user JWT. The secret is shown once at creation; only a bcrypt hash is stored.
// Lookup goes through the short public Prefix.
type ApiKey struct {
	Id         string     `json:"id" gorm:"primaryKey"`
	Name       string     `json:"name" gorm:"not null"`
	Prefix     string     `json:"prefix" gorm:"size:12;uniqueIndex"`
	Hash       []byte     `json:"-" gorm:"not null"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at"`
	RevokedAt  *time.Time `json:"revoked_at"`
}

func (key *ApiKey) BeforeCreate(tx *gorm.DB) (err error) {
	// UUID version 4
	key.Id = uuid.NewString()
	return
}

func (key *ApiKey) SetSecret(secret string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), 10)
	if err != nil {
		return err
	}
	key.Hash = hash
	return nil
}

func (key *ApiKey) CompareSecret(secret string) error {
	return bcrypt.CompareHashAndPassword(key.Hash, []byte(secret))
}
