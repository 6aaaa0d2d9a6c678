package models

import (
	"strings"

	"gorm.io/gorm"
)

// User is a tenant. Every ingredient, recipe and bill of materials belongs to
// exactly one user.
type User struct {
	gorm.Model
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`
	Name         string `json:"name"`
	APIKey       string `gorm:"uniqueIndex;size:64;not null" json:"-"`
	IsActive     bool   `gorm:"not null;default:true" json:"is_active"`
}

// NormalizeEmail trims and lowercases an email address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
