package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/fallfest-referrals/internal/auth"
	"github.com/tbourn/fallfest-referrals/internal/domain"
	"github.com/tbourn/fallfest-referrals/internal/feed"
	"github.com/tbourn/fallfest-referrals/internal/http/middleware"
	"github.com/tbourn/fallfest-referrals/internal/repo"
	"github.com/tbourn/fallfest-referrals/internal/services"
)

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", uuid.NewString())
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
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// harness wires real services over a private database, the way the router
// does, with trusted identity headers.
type harness struct {
	db       *gorm.DB
	r        *gin.Engine
	referral *services.ReferralService
	board    *services.LeaderboardService
	pending  *services.PendingService
	cache    *services.LeaderboardCache
	snaps    *feed.Broker[domain.LeaderboardSnapshot]
}

type harnessOpts struct {
	withCache bool
	heartbeat time.Duration
}

func newHarness(t *testing.T, opts harnessOpts) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := newHandlerDB(t)
	pending := services.NewPendingService(db, time.Hour)
	codes := services.NewCodeGenerator(db, 10)
	board := &services.LeaderboardService{DB: db}
	snaps := feed.NewBroker[domain.LeaderboardSnapshot](8)
	t.Cleanup(snaps.Close)

	hs := &harness{
		db:       db,
		referral: services.NewReferralService(db, codes, pending, nil),
		board:    board,
		pending:  pending,
		snaps:    snaps,
	}
	deps := Deps{
		Codes:        codes,
		Referrals:    hs.referral,
		Leaderboard:  board,
		Snapshots:    snaps,
		Pending:      pending,
		DefaultLimit: 10,
		MaxLimit:     50,
		Heartbeat:    opts.heartbeat,
	}
	if opts.withCache {
		hs.cache = services.NewLeaderboardCache(board, 3, snaps)
		deps.Cache = hs.cache
	}
	h := New(deps)

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.ContextLogger())
	r.Use(middleware.Authenticate(auth.NewVerifier(""), true))
	r.Use(middleware.ReferralCapture(pending.Capture))

	api := r.Group("/api/v1")
	api.POST("/referral-codes", h.GenerateCode)
	api.POST("/registrations", h.Register)
	api.GET("/me", h.Me)
	api.POST("/me/referral", h.ApplyReferral)
	api.GET("/me/referrals", h.MyReferrals)
	api.GET("/referrals/pending", h.PendingReferral)
	api.GET("/participants/:id/referrals/count", h.CountReferrals)
	api.GET("/leaderboard", h.Leaderboard)
	api.GET("/leaderboard/summary", h.Summary)
	api.GET("/leaderboard/stream", h.StreamLeaderboard)
	hs.r = r
	return hs
}

type reqOpt func(*http.Request)

func as(userID, name string) reqOpt {
	return func(r *http.Request) {
		r.Header.Set(middleware.HeaderUserID, userID)
		r.Header.Set(middleware.HeaderUserName, name)
		r.Header.Set(middleware.HeaderUserEmail, userID+"@example.com")
	}
}

func visitor(key string) reqOpt {
	return func(r *http.Request) { r.Header.Set(middleware.HeaderVisitorID, key) }
}

func header(k, v string) reqOpt {
	return func(r *http.Request) { r.Header.Set(k, v) }
}

func (hs *harness) do(t *testing.T, method, path string, body any, opts ...reqOpt) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, o := range opts {
		o(req)
	}
	w := httptest.NewRecorder()
	hs.r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %T: %v (body=%s)", v, err, w.Body.String())
	}
	return v
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d; want %d (body=%s)", w.Code, status, w.Body.String())
	}
	if er := decode[ErrorResponse](t, w); er.Code != code {
		t.Fatalf("code = %q; want %q", er.Code, code)
	}
}

// register signs up userID and returns the stored view.
func (hs *harness) register(t *testing.T, userID, code string, opts ...reqOpt) ParticipantView {
	t.Helper()
	opts = append([]reqOpt{as(userID, "Name "+userID)}, opts...)
	w := hs.do(t, http.MethodPost, "/api/v1/registrations", RegisterRequest{ReferralCode: code}, opts...)
	if w.Code != http.StatusCreated {
		t.Fatalf("register %s: %d %s", userID, w.Code, w.Body.String())
	}
	return decode[RegisterResponse](t, w).Participant
}
