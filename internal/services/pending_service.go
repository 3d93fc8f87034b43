// Package services – PendingService
//
// A pending referral is a code captured from a `ref` link before the visitor
// registers. It is kept per visitor key and consumed by registration.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/fallfest-referrals/internal/repo"
)

// PendingService manages the pending referral slot.
type PendingService struct {
	DB  *gorm.DB
	TTL time.Duration

	now func() time.Time
}

// NewPendingService returns a PendingService whose captures live for ttl.
func NewPendingService(db *gorm.DB, ttl time.Duration) *PendingService {
	return &PendingService{DB: db, TTL: ttl, now: func() time.Time { return time.Now().UTC() }}
}

func (s *PendingService) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now().UTC()
}

// Capture stores code for visitorKey, replacing an older capture.
// Blank keys or codes are ignored.
func (s *PendingService) Capture(ctx context.Context, visitorKey, code string) error {
	visitorKey, code = strings.TrimSpace(visitorKey), strings.TrimSpace(code)
	if visitorKey == "" || code == "" {
		return nil
	}
	if _, err := repo.UpsertPendingReferral(ctx, s.DB, visitorKey, code, s.TTL, s.clock()); err != nil {
		return storeErr(err)
	}
	return nil
}

// Get returns the live captured code for visitorKey, or "" when none.
func (s *PendingService) Get(ctx context.Context, visitorKey string) (string, error) {
	rec, err := repo.GetPendingReferral(ctx, s.DB, strings.TrimSpace(visitorKey), s.clock())
	if errors.Is(err, repo.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", storeErr(err)
	}
	return rec.Code, nil
}

// Clear removes the slots of the given keys. Blank keys are skipped.
func (s *PendingService) Clear(ctx context.Context, visitorKeys ...string) error {
	seen := make(map[string]struct{}, len(visitorKeys))
	for _, k := range visitorKeys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if err := repo.DeletePendingReferral(ctx, s.DB, k); err != nil {
			return storeErr(err)
		}
	}
	return nil
}

// Purge deletes expired captures and returns how many were removed.
func (s *PendingService) Purge(ctx context.Context) (int64, error) {
	n, err := repo.PurgeExpiredPendingReferrals(ctx, s.DB, s.clock())
	if err != nil {
		return 0, storeErr(err)
	}
	return n, nil
}
