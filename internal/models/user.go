package models

import "time"

// User represents an end-user account with its quota state.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ExternalID string `gorm:"type:text;not null;uniqueIndex"` // Caller-supplied user id.

	Level         string `gorm:"type:text;not null;default:''"` // Membership level name.
	BonusRequests int    `gorm:"not null;default:0"`            // Supplemental request balance.

	UsageDate  string `gorm:"type:text;not null;default:''"` // Calendar day of the usage counter.
	UsageCount int    `gorm:"not null;default:0"`            // Requests consumed on UsageDate.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
