package model

import (
	"time"

	"gorm.io/gorm"
)

// User is a directory account. The messaging core only needs the primary
// role and display name; the rest of the profile lives in other subsystems.
type User struct {
	ID           uint           `gorm:"primaryKey"`
	Username     string         `gorm:"type:varchar(64);not null;uniqueIndex"`
	Email        string         `gorm:"type:varchar(128);uniqueIndex"`
	PasswordHash string         `gorm:"type:varchar(255);not null"`
	FirstName    string         `gorm:"type:varchar(64)"`
	LastName     string         `gorm:"type:varchar(64)"`
	Role         Role           `gorm:"type:varchar(32);not null;index"`
	IsActive     bool           `gorm:"default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    gorm.DeletedAt `gorm:"index"`
}

func (User) TableName() string { return "user" }

// FullName is the display name used in notification previews.
func (u *User) FullName() string {
	if u.FirstName == "" && u.LastName == "" {
		return u.Username
	}
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
