package session

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/chatrelay/chatrelay/internal/models"
)

// DefaultLimit is the session length cap applied when none is configured.
const DefaultLimit = 12

// Store is the durable per-user conversation log. Logs are bounded in size:
// every append truncates to the newest entries, dropping from the front.
type Store struct {
	db    *gorm.DB
	limit int
}

// NewStore constructs a Store with the given length cap.
func NewStore(db *gorm.DB, limit int) *Store {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Store{db: db, limit: limit}
}

// Append adds one timestamped entry to the user's log, creating the log if
// absent, then truncates to the newest entries. Persisted before returning.
func (s *Store) Append(ctx context.Context, externalID, role, content string) error {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return fmt.Errorf("session: empty user id")
	}

	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry := models.Message{
			UserExternalID: externalID,
			Role:           role,
			Content:        content,
		}
		if errCreate := tx.Create(&entry).Error; errCreate != nil {
			return errCreate
		}
		// FIFO truncation: keep the newest limit rows for this user.
		return tx.Exec(`
			DELETE FROM messages
			WHERE user_external_id = ?
			AND id NOT IN (
				SELECT id FROM messages
				WHERE user_external_id = ?
				ORDER BY id DESC
				LIMIT ?
			)
		`, externalID, externalID, s.limit).Error
	})
	if errTx != nil {
		return fmt.Errorf("session: append: %w", errTx)
	}
	return nil
}

// History returns the user's log in append order. Users without a log get an
// empty slice, not an error.
func (s *Store) History(ctx context.Context, externalID string) ([]models.Message, error) {
	externalID = strings.TrimSpace(externalID)

	var rows []models.Message
	if errFind := s.db.WithContext(ctx).
		Where("user_external_id = ?", externalID).
		Order("id ASC").
		Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("session: history: %w", errFind)
	}
	return rows, nil
}
