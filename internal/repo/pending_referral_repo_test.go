package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/fallfest-referrals/internal/domain"
)

func TestPendingReferral_UpsertGetDelete(t *testing.T) {
	db := newTestDB(t, &domain.PendingReferral{})
	ctx := context.Background()
	now := time.Now().UTC()

	first, err := UpsertPendingReferral(ctx, db, "v1", "ABCD1234", time.Hour, now)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if first.ID == "" || !first.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("unexpected record: %+v", first)
	}

	// Second capture for the same visitor replaces the code.
	if _, err := UpsertPendingReferral(ctx, db, "v1", "WXYZ9876", 2*time.Hour, now); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	var rows int64
	db.Model(&domain.PendingReferral{}).Where("visitor_key = ?", "v1").Count(&rows)
	if rows != 1 {
		t.Fatalf("expected one row per visitor, got %d", rows)
	}

	got, err := GetPendingReferral(ctx, db, "v1", now)
	if err != nil || got.Code != "WXYZ9876" {
		t.Fatalf("get: got=%+v err=%v", got, err)
	}

	if err := DeletePendingReferral(ctx, db, "v1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := GetPendingReferral(ctx, db, "v1", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("after delete: want ErrNotFound, got %v", err)
	}
	if err := DeletePendingReferral(ctx, db, "v1"); err != nil {
		t.Fatalf("delete missing should be nil, got %v", err)
	}
}

func TestPendingReferral_ExpiredAndBlankKey(t *testing.T) {
	db := newTestDB(t, &domain.PendingReferral{})
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := UpsertPendingReferral(ctx, db, "v1", "ABCD1234", time.Minute, now.Add(-time.Hour)); err != nil {
		t.Fatalf("seed expired: %v", err)
	}
	if _, err := GetPendingReferral(ctx, db, "v1", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired: want ErrNotFound, got %v", err)
	}
	if _, err := GetPendingReferral(ctx, db, "  ", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("blank key: want ErrNotFound, got %v", err)
	}
	if _, err := UpsertPendingReferral(ctx, db, " ", "ABCD1234", time.Minute, now); err == nil {
		t.Fatalf("blank key upsert should fail")
	}

	if _, err := UpsertPendingReferral(ctx, db, "v2", "LIVE0001", time.Hour, now); err != nil {
		t.Fatalf("seed live: %v", err)
	}
	n, err := PurgeExpiredPendingReferrals(ctx, db, now)
	if err != nil || n != 1 {
		t.Fatalf("purge: n=%d err=%v; want 1", n, err)
	}
	if _, err := GetPendingReferral(ctx, db, "v2", now); err != nil {
		t.Fatalf("live row should survive purge: %v", err)
	}
}
