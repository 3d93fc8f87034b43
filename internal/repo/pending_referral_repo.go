// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file stores referral codes captured from links before
// the visitor registers.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/fallfest-referrals/internal/domain"
)

// UpsertPendingReferral records code for visitorKey, replacing any earlier
// capture and restarting its TTL.
func UpsertPendingReferral(ctx context.Context, db *gorm.DB, visitorKey, code string, ttl time.Duration, now time.Time) (*domain.PendingReferral, error) {
	if strings.TrimSpace(visitorKey) == "" {
		return nil, errors.New("visitor key must not be empty")
	}
	rec := &domain.PendingReferral{
		ID:         uuid.NewString(),
		VisitorKey: visitorKey,
		Code:       code,
		CapturedAt: now,
		ExpiresAt:  now.Add(ttl),
	}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "visitor_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"code", "captured_at", "expires_at"}),
		}).
		Create(rec).Error
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// GetPendingReferral returns a non-expired record or ErrNotFound.
func GetPendingReferral(ctx context.Context, db *gorm.DB, visitorKey string, now time.Time) (*domain.PendingReferral, error) {
	if strings.TrimSpace(visitorKey) == "" {
		return nil, ErrNotFound
	}
	var rec domain.PendingReferral
	err := db.WithContext(ctx).
		Where("visitor_key = ? AND expires_at > ?", visitorKey, now).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// DeletePendingReferral removes the record for visitorKey. Missing rows are
// not an error.
func DeletePendingReferral(ctx context.Context, db *gorm.DB, visitorKey string) error {
	return db.WithContext(ctx).
		Where("visitor_key = ?", visitorKey).
		Delete(&domain.PendingReferral{}).Error
}

// PurgeExpiredPendingReferrals deletes records that expired at or before now.
func PurgeExpiredPendingReferrals(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&domain.PendingReferral{})
	return res.RowsAffected, res.Error
}
