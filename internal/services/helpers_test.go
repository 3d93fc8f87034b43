package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/fallfest-referrals/internal/domain"
	"github.com/tbourn/fallfest-referrals/internal/feed"
	"github.com/tbourn/fallfest-referrals/internal/repo"
)

// newServiceDB opens a private in-memory database on a single connection,
// which serializes writers the way a real store's row locks would.
func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

type fixture struct {
	db       *gorm.DB
	referral *ReferralService
	board    *LeaderboardService
	pending  *PendingService
	changes  *feed.Broker[domain.ChangeEvent]
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newServiceDB(t)
	changes := feed.NewBroker[domain.ChangeEvent](64)
	pending := NewPendingService(db, 24*time.Hour)
	return &fixture{
		db:       db,
		referral: NewReferralService(db, NewCodeGenerator(db, 10), pending, changes),
		board:    &LeaderboardService{DB: db},
		pending:  pending,
		changes:  changes,
	}
}

func ident(uid string) domain.Identity {
	return domain.Identity{UserID: uid, Email: uid + "@fallfest.test", Name: "Name " + uid}
}

// register creates a participant with an optional referral code and fails
// the test on error.
func (f *fixture) register(t *testing.T, uid, code string) *RegistrationResult {
	t.Helper()
	res, err := f.referral.Register(context.Background(), ident(uid), RegisterInput{ReferralCode: code})
	if err != nil {
		t.Fatalf("Register(%s): %v", uid, err)
	}
	return res
}

func (f *fixture) reload(t *testing.T, id uint) *domain.Participant {
	t.Helper()
	p, err := repo.GetParticipantByID(context.Background(), f.db, id)
	if err != nil {
		t.Fatalf("reload %d: %v", id, err)
	}
	return p
}
