// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Participant model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: no business logic, only persistence and query composition.
//
// Error semantics:
//   - Missing rows return ErrNotFound (alias of gorm.ErrRecordNotFound).
//   - Unique violations on user_id or referral_code return ErrDuplicate.
//   - Other DB errors are propagated unchanged.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/fallfest-referrals/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = gorm.ErrRecordNotFound

// unsetReferrer matches rows whose referrer field may still be written.
const unsetReferrer = "(referred_by IS NULL OR TRIM(referred_by) = '')"

// CreateParticipant inserts p and fills its ID.
func CreateParticipant(ctx context.Context, db *gorm.DB, p *domain.Participant) error {
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetParticipantByUserID returns the participant owned by userID.
func GetParticipantByUserID(ctx context.Context, db *gorm.DB, userID string) (*domain.Participant, error) {
	var p domain.Participant
	if err := db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// GetParticipantByID returns the participant with the given primary key.
func GetParticipantByID(ctx context.Context, db *gorm.DB, id uint) (*domain.Participant, error) {
	var p domain.Participant
	if err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// GetParticipantByCode returns the participant whose referral code equals
// code exactly.
func GetParticipantByCode(ctx context.Context, db *gorm.DB, code string) (*domain.Participant, error) {
	var p domain.Participant
	if err := db.WithContext(ctx).Where("referral_code = ?", code).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// ReferralCodeExists reports whether any participant already holds code.
func ReferralCodeExists(ctx context.Context, db *gorm.DB, code string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Participant{}).
		Where("referral_code = ?", code).
		Limit(1).
		Count(&n).Error
	return n > 0, err
}

// SetReferredByIfUnset writes the referrer of participant id only while the
// field is unset. It reports whether the row was updated.
func SetReferredByIfUnset(ctx context.Context, db *gorm.DB, id, referrerID uint) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Participant{}).
		Where("id = ? AND "+unsetReferrer, id).
		Updates(map[string]any{
			"referred_by": domain.FormatParticipantID(referrerID),
			"updated_at":  time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// IncrementTotalReferrals bumps the cached counter of participant id by one.
func IncrementTotalReferrals(ctx context.Context, db *gorm.DB, id uint) error {
	res := db.WithContext(ctx).
		Model(&domain.Participant{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"total_referrals": gorm.Expr("total_referrals + ?", 1),
			"updated_at":      time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountReferrals counts rows whose referrer is participant id.
func CountReferrals(ctx context.Context, db *gorm.DB, id uint) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Participant{}).
		Where("referred_by = ?", domain.FormatParticipantID(id)).
		Count(&n).Error
	return n, err
}

// ListReferredUsers returns the participants referred by id, newest first.
func ListReferredUsers(ctx context.Context, db *gorm.DB, id uint) ([]domain.Participant, error) {
	var out []domain.Participant
	err := db.WithContext(ctx).
		Where("referred_by = ?", domain.FormatParticipantID(id)).
		Order("created_at desc").
		Order("id desc").
		Find(&out).Error
	return out, err
}

// ReferralEdges returns every non-blank referred_by value as stored,
// malformed values included.
func ReferralEdges(ctx context.Context, db *gorm.DB) ([]string, error) {
	var out []string
	err := db.WithContext(ctx).
		Model(&domain.Participant{}).
		Where("referred_by IS NOT NULL AND TRIM(referred_by) <> ''").
		Pluck("referred_by", &out).Error
	return out, err
}

// ListParticipantsByIDs loads the participants with the given IDs in
// ascending ID order. Unknown IDs are skipped.
func ListParticipantsByIDs(ctx context.Context, db *gorm.DB, ids []uint) ([]domain.Participant, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []domain.Participant
	err := db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("id asc").
		Find(&out).Error
	return out, err
}

// CountParticipants returns the number of registered participants.
func CountParticipants(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Participant{}).Count(&n).Error
	return n, err
}

// IsNotFound reports whether err is a missing-row error.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
