package quota

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/chatrelay/chatrelay/internal/clock"
	"github.com/chatrelay/chatrelay/internal/db"
	"github.com/chatrelay/chatrelay/internal/models"
	"github.com/chatrelay/chatrelay/internal/tier"
)

// ErrUserNotFound indicates a consume against a user that was never ensured.
var ErrUserNotFound = errors.New("quota: user not found")

// Remaining reports the allowance left after a quota decision.
type Remaining struct {
	Unlimited bool // The tier has no daily bound.
	Requests  int  // Requests left today; zero when unlimited or exhausted.
}

// Result is the outcome of a consume decision.
type Result struct {
	Allowed   bool      // Whether the request may proceed.
	Remaining Remaining // Allowance left after this decision.
	Model     string    // Downstream model resolved from the user's tier.
}

// Store is the durable user/quota collection. Every operation is a single
// read-modify-write transaction against the backing store; no state is held
// in memory between calls.
type Store struct {
	db    *gorm.DB
	tiers *tier.Table
	clock clock.Clock
}

// NewStore constructs a Store.
func NewStore(db *gorm.DB, tiers *tier.Table, clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.System()
	}
	return &Store{db: db, tiers: tiers, clock: clk}
}

// EnsureUser creates the user on first contact and performs the lazy daily
// rollover: when the stored usage date is not today, the counter resets to
// zero before any quota decision. Idempotent; safe to call on every request.
func (s *Store) EnsureUser(ctx context.Context, externalID string) (*models.User, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, fmt.Errorf("quota: empty user id")
	}

	today := clock.DayKey(s.clock.Now())
	var user models.User

	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		errFind := db.LockForUpdate(tx).
			Where("external_id = ?", externalID).
			First(&user).Error
		if errFind != nil {
			if !errors.Is(errFind, gorm.ErrRecordNotFound) {
				return errFind
			}
			now := s.clock.Now().UTC()
			user = models.User{
				ExternalID: externalID,
				Level:      s.tiers.DefaultName(),
				UsageDate:  today,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			if errCreate := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "external_id"}},
				DoNothing: true,
			}).Create(&user).Error; errCreate != nil {
				return errCreate
			}
			// A concurrent ensure may have won the insert; load the surviving row.
			return tx.Where("external_id = ?", externalID).First(&user).Error
		}

		if user.UsageDate != today {
			user.UsageDate = today
			user.UsageCount = 0
			return tx.Model(&models.User{}).
				Where("id = ?", user.ID).
				Updates(map[string]any{
					"usage_date":  today,
					"usage_count": 0,
					"updated_at":  s.clock.Now().UTC(),
				}).Error
		}
		return nil
	})
	if errTx != nil {
		return nil, fmt.Errorf("quota: ensure user: %w", errTx)
	}
	return &user, nil
}

// Consume applies one request against the user's quota. The daily allowance
// is spent first and the bonus balance second; this ordering is a fixed
// policy. Denial is reported in the Result, not as an error.
func (s *Store) Consume(ctx context.Context, externalID string) (Result, error) {
	externalID = strings.TrimSpace(externalID)

	var result Result
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		errFind := db.LockForUpdate(tx).
			Where("external_id = ?", externalID).
			First(&user).Error
		if errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return errFind
		}

		entry := s.tiers.Resolve(user.Level)
		result.Model = entry.Model

		if entry.Allowance.IsUnlimited() {
			result.Allowed = true
			result.Remaining = Remaining{Unlimited: true}
			return nil
		}

		allowed := entry.Allowance.Requests()
		switch {
		case user.UsageCount < allowed:
			user.UsageCount++
			result.Allowed = true
			result.Remaining = Remaining{Requests: allowed - user.UsageCount}
			return tx.Model(&models.User{}).
				Where("id = ?", user.ID).
				Updates(map[string]any{
					"usage_count": user.UsageCount,
					"updated_at":  s.clock.Now().UTC(),
				}).Error
		case user.BonusRequests > 0:
			user.BonusRequests--
			result.Allowed = true
			result.Remaining = Remaining{}
			return tx.Model(&models.User{}).
				Where("id = ?", user.ID).
				Updates(map[string]any{
					"bonus_requests": user.BonusRequests,
					"updated_at":     s.clock.Now().UTC(),
				}).Error
		default:
			result.Allowed = false
			result.Remaining = Remaining{}
			return nil
		}
	})
	if errTx != nil {
		if errors.Is(errTx, ErrUserNotFound) {
			return Result{}, ErrUserNotFound
		}
		return Result{}, fmt.Errorf("quota: consume: %w", errTx)
	}
	return result, nil
}

// UpdateEntitlement upserts a user's level and bonus balance. Nil fields are
// left untouched; absence is not zero. This is the sole mutation path for
// entitlements and is driven by the external membership system.
func (s *Store) UpdateEntitlement(ctx context.Context, externalID string, level *string, bonus *int) (*models.User, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, fmt.Errorf("quota: empty user id")
	}
	if bonus != nil && *bonus < 0 {
		return nil, fmt.Errorf("quota: negative bonus")
	}

	today := clock.DayKey(s.clock.Now())
	var user models.User

	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		errFind := db.LockForUpdate(tx).
			Where("external_id = ?", externalID).
			First(&user).Error
		if errFind != nil {
			if !errors.Is(errFind, gorm.ErrRecordNotFound) {
				return errFind
			}
			now := s.clock.Now().UTC()
			user = models.User{
				ExternalID: externalID,
				Level:      s.tiers.DefaultName(),
				UsageDate:  today,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			if errCreate := tx.Create(&user).Error; errCreate != nil {
				return errCreate
			}
		}

		updates := map[string]any{"updated_at": s.clock.Now().UTC()}
		if level != nil {
			if trimmed := strings.TrimSpace(*level); trimmed != "" {
				user.Level = trimmed
				updates["level"] = trimmed
			}
		}
		if bonus != nil {
			user.BonusRequests = *bonus
			updates["bonus_requests"] = *bonus
		}
		return tx.Model(&models.User{}).
			Where("id = ?", user.ID).
			Updates(updates).Error
	})
	if errTx != nil {
		return nil, fmt.Errorf("quota: update entitlement: %w", errTx)
	}
	return &user, nil
}

// BulkResetUsage zeroes every user's usage counter and refreshes its date.
// Tier and bonus are untouched. Privileged; also used by the midnight sweep.
func (s *Store) BulkResetUsage(ctx context.Context) (int64, error) {
	today := clock.DayKey(s.clock.Now())
	res := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("usage_count <> 0 OR usage_date <> ?", today).
		Updates(map[string]any{
			"usage_count": 0,
			"usage_date":  today,
			"updated_at":  s.clock.Now().UTC(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("quota: bulk reset: %w", res.Error)
	}
	return res.RowsAffected, nil
}
