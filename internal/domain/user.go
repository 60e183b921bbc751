package domain

import "time"

type User struct {
	ID                          uint       `gorm:"primaryKey" json:"id"`
	Email                       string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash                string     `gorm:"size:1024;not null" json:"-"`
	Verified                    bool       `gorm:"not null;default:false" json:"verified"`
	CreatedAt                   time.Time  `json:"created_at"`
	UpdatedAt                   time.Time  `json:"updated_at"`
	LastVerificationEmailSentAt *time.Time `json:"-"`
}
