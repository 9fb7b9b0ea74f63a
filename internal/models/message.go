package models

import "time"

// Message roles stored in a session log.
const (
	// RoleSystem marks a system prompt entry.
	RoleSystem = "system"
	// RoleUser marks an end-user entry.
	RoleUser = "user"
	// RoleAssistant marks a generated reply entry.
	RoleAssistant = "assistant"
)

// Message represents one entry of a user's session log.
type Message struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key; also the append order.

	UserExternalID string `gorm:"type:text;not null;index"` // Owning user id.

	Role    string `gorm:"type:text;not null"` // One of system, user, assistant.
	Content string `gorm:"type:text;not null"` // Message text.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Append timestamp.
}
