package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/fallfest-referrals/internal/domain"
	"github.com/tbourn/fallfest-referrals/internal/http/middleware"
	"github.com/tbourn/fallfest-referrals/internal/services"
)

//
// Service contracts
//

// CodeService mints unused referral codes.
type CodeService interface {
	Generate(ctx context.Context) (string, error)
}

// ReferralService registers participants and attributes referrals.
type ReferralService interface {
	Register(ctx context.Context, actor domain.Identity, in services.RegisterInput) (*services.RegistrationResult, error)
	ApplyReferral(ctx context.Context, actor domain.Identity, code, visitorKey string) (*domain.Participant, error)
	State(ctx context.Context, userID, visitorKey string) (domain.ParticipantState, error)
	Participant(ctx context.Context, userID string) (*domain.Participant, error)
	ReferrerOf(ctx context.Context, p *domain.Participant) (*domain.Participant, error)
}

// LeaderboardService aggregates referral counts.
type LeaderboardService interface {
	CountReferrals(ctx context.Context, participantID uint) (int64, error)
	TopReferrers(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
	ReferredUsers(ctx context.Context, participantID uint) ([]domain.ReferredUser, error)
	Summary(ctx context.Context) (domain.ReferralSummary, error)
	Stats(ctx context.Context) (int64, *time.Time, error)
}

// LeaderboardCache serves the most recent top-N snapshot.
type LeaderboardCache interface {
	Top(limit int) ([]domain.LeaderboardEntry, bool)
	Snapshot() (domain.LeaderboardSnapshot, bool)
}

// SnapshotFeed fans out leaderboard snapshots to stream clients.
type SnapshotFeed interface {
	Subscribe() (<-chan domain.LeaderboardSnapshot, func())
}

// PendingReader reads a visitor's captured referral code.
type PendingReader interface {
	Get(ctx context.Context, visitorKey string) (string, error)
}

// Deps wires Handlers. Cache, Snapshots and Pending are optional.
type Deps struct {
	Codes       CodeService
	Referrals   ReferralService
	Leaderboard LeaderboardService
	Cache       LeaderboardCache
	Snapshots   SnapshotFeed
	Pending     PendingReader

	// DefaultLimit and MaxLimit bound ?limit= on the leaderboard.
	DefaultLimit int
	MaxLimit     int
	// Heartbeat is the keep-alive interval of the leaderboard stream.
	Heartbeat time.Duration
}

// Handlers groups the HTTP endpoints.
type Handlers struct {
	codes     CodeService
	referrals ReferralService
	board     LeaderboardService
	cache     LeaderboardCache
	snapshots SnapshotFeed
	pending   PendingReader

	defaultLimit int
	maxLimit     int
	heartbeat    time.Duration
}

// New constructs Handlers, filling unset limits with 10/50 and the stream
// heartbeat with 15s.
func New(d Deps) *Handlers {
	h := &Handlers{
		codes:        d.Codes,
		referrals:    d.Referrals,
		board:        d.Leaderboard,
		cache:        d.Cache,
		snapshots:    d.Snapshots,
		pending:      d.Pending,
		defaultLimit: d.DefaultLimit,
		maxLimit:     d.MaxLimit,
		heartbeat:    d.Heartbeat,
	}
	if h.defaultLimit <= 0 {
		h.defaultLimit = 10
	}
	if h.maxLimit <= 0 {
		h.maxLimit = 50
	}
	if h.maxLimit < h.defaultLimit {
		h.maxLimit = h.defaultLimit
	}
	if h.heartbeat <= 0 {
		h.heartbeat = 15 * time.Second
	}
	return h
}

// currentUser returns the authenticated caller or writes a 401.
func currentUser(c *gin.Context) (domain.Identity, bool) {
	id, found := middleware.IdentityFrom(c)
	if !found {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
	}
	return id, found
}

//
// DTOs
//

// ParticipantView is a participant as returned to its owner.
type ParticipantView struct {
	ID             uint      `json:"id" example:"42"`
	FullName       string    `json:"full_name" example:"Ana Pérez"`
	Email          string    `json:"email" example:"ana@example.com"`
	ReferralCode   string    `json:"referral_code" example:"K7Q2M9XA"`
	Locked         bool      `json:"locked"`
	ReferrerCode   string    `json:"referrer_code,omitempty" example:"B4T8ZC1D"`
	TotalReferrals int64     `json:"total_referrals" example:"3"`
	CreatedAt      time.Time `json:"created_at"`
}

func participantView(p *domain.Participant, referrer *domain.Participant) ParticipantView {
	v := ParticipantView{
		ID:             p.ID,
		FullName:       p.FullName,
		Email:          p.Email,
		ReferralCode:   p.ReferralCode,
		Locked:         p.Locked(),
		TotalReferrals: p.TotalReferrals,
		CreatedAt:      p.CreatedAt,
	}
	if referrer != nil {
		v.ReferrerCode = referrer.ReferralCode
	}
	return v
}

// ReferralError describes a referral code that was not applied.
type ReferralError struct {
	Code    string `json:"code" example:"invalid_code"`
	Message string `json:"message" example:"Invalid referral code."`
}

// CodeResponse carries a freshly generated referral code.
type CodeResponse struct {
	Code string `json:"code" example:"K7Q2M9XA"`
}

// RegisterRequest is the registration form.
type RegisterRequest struct {
	FullName     string `json:"full_name" binding:"max=255" example:"Ana Pérez"`
	Email        string `json:"email" binding:"omitempty,email,max=320" example:"ana@example.com"`
	ReferralCode string `json:"referral_code" binding:"max=64" example:"B4T8ZC1D"`
}

// RegisterResponse reports the new participant. ReferralError is set when a
// supplied code was rejected; the registration itself succeeded.
type RegisterResponse struct {
	Participant   ParticipantView `json:"participant"`
	ReferralError *ReferralError  `json:"referral_error,omitempty"`
}

// MeResponse is the caller's state.
type MeResponse struct {
	Registered  bool             `json:"registered"`
	Participant *ParticipantView `json:"participant,omitempty"`
	PendingCode string           `json:"pending_code,omitempty" example:"B4T8ZC1D"`
}

// ApplyReferralRequest submits a friend's code.
type ApplyReferralRequest struct {
	Code string `json:"code" binding:"max=64" example:"B4T8ZC1D"`
}

// MyReferralsResponse lists the people the caller referred.
type MyReferralsResponse struct {
	Count    int64                 `json:"count" example:"2"`
	Referred []domain.ReferredUser `json:"referred"`
}

// PendingResponse is the captured code for the current visitor.
type PendingResponse struct {
	Code string `json:"code" example:"B4T8ZC1D"`
}

// CountResponse is a participant's live referral count.
type CountResponse struct {
	ParticipantID uint  `json:"participant_id" example:"42"`
	Count         int64 `json:"count" example:"3"`
}

// LeaderboardResponse is a ranked list of referrers.
type LeaderboardResponse struct {
	Entries     []domain.LeaderboardEntry `json:"entries"`
	Limit       int                       `json:"limit" example:"10"`
	RefreshedAt *time.Time                `json:"refreshed_at,omitempty"`
}
