// Package domain defines the persistence models and value types of the
// referral engine. The GORM-mapped types are shared by the repository and
// service layers; the value types travel through the change feed and the
// HTTP layer.
package domain

import (
	"strconv"
	"strings"
	"time"
)

// Participant is a registered attendee. Each participant owns exactly one
// referral code and may be attributed to at most one referrer.
//
// Fields:
//   - ID: auto-increment primary key. Its order is the code-generation order
//     and breaks ties on the leaderboard.
//   - UserID: identity-provider user id (unique, immutable).
//   - ReferralCode: 8 chars of [A-Z0-9] (unique, immutable).
//   - ReferredBy: decimal ID of the referrer, nil while unset. Write-once.
//   - TotalReferrals: cached counter, incremented with each attribution.
type Participant struct {
	ID             uint      `json:"id"              gorm:"primaryKey;autoIncrement"`
	UserID         string    `json:"user_id"         gorm:"type:varchar(128);not null;uniqueIndex:ux_participants_user"`
	FullName       string    `json:"full_name"       gorm:"type:varchar(255);not null;default:''"`
	Email          string    `json:"email"           gorm:"type:varchar(320);not null;default:''"`
	ReferralCode   string    `json:"referral_code"   gorm:"type:varchar(16);not null;uniqueIndex:ux_participants_code"`
	ReferredBy     *string   `json:"referred_by"     gorm:"type:text;index:idx_participants_referred_by"`
	TotalReferrals int64     `json:"total_referrals" gorm:"not null;default:0"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName returns the database table name for Participant.
func (Participant) TableName() string { return "participants" }

// Locked reports whether the referrer field has been written. Blank values
// left by older rows count as unset; anything else, including "-", locks.
func (p Participant) Locked() bool {
	return p.ReferredBy != nil && strings.TrimSpace(*p.ReferredBy) != ""
}

// ReferrerID parses ReferredBy as a participant ID. It returns false for
// unset or malformed values.
func (p Participant) ReferrerID() (uint, bool) {
	if p.ReferredBy == nil {
		return 0, false
	}
	return ParseParticipantID(*p.ReferredBy)
}

// ParseParticipantID parses a stored referrer reference. Only the canonical
// form written by FormatParticipantID is accepted, so padded or zero-prefixed
// legacy values are malformed here exactly as they are to an equality match
// on referred_by.
func ParseParticipantID(s string) (uint, bool) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 || n > uint64(^uint(0)) {
		return 0, false
	}
	if FormatParticipantID(uint(n)) != s {
		return 0, false
	}
	return uint(n), true
}

// FormatParticipantID renders an ID the way referred_by stores it.
func FormatParticipantID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParticipantState is either Unregistered or Registered.
type ParticipantState interface {
	participantState()
}

// Unregistered is an authenticated user with no participant row yet.
// PendingCode is the referral code captured from a link, if any.
type Unregistered struct {
	UserID      string
	PendingCode string
}

// Registered wraps the stored participant row.
type Registered struct {
	Participant Participant
}

func (Unregistered) participantState() {}
func (Registered) participantState()   {}

// LeaderboardEntry is one ranked referrer.
type LeaderboardEntry struct {
	Rank          int    `json:"rank"`
	ParticipantID uint   `json:"participant_id"`
	FullName      string `json:"full_name"`
	Email         string `json:"email"`
	ReferralCode  string `json:"referral_code"`
	Count         int64  `json:"count"`
}

// ReferredUser is a participant as seen by the person who referred them.
type ReferredUser struct {
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// ReferralSummary holds event-wide totals.
type ReferralSummary struct {
	Participants      int64 `json:"participants"`
	TotalReferrals    int64 `json:"total_referrals"`
	DistinctReferrers int64 `json:"distinct_referrers"`
}

// Change kinds published on the participant change feed.
const (
	ChangeParticipantRegistered = "participant_registered"
	ChangeReferralAttributed    = "referral_attributed"
)

// ChangeEvent describes a write to the participants table.
type ChangeEvent struct {
	Kind          string    `json:"kind"`
	ParticipantID uint      `json:"participant_id"`
	ReferrerID    uint      `json:"referrer_id,omitempty"`
	At            time.Time `json:"at"`
}

// LeaderboardSnapshot is a computed leaderboard at a point in time.
type LeaderboardSnapshot struct {
	Entries     []LeaderboardEntry `json:"entries"`
	RefreshedAt time.Time          `json:"refreshed_at"`
	Reason      string             `json:"reason"`
}

// Identity is the authenticated caller as asserted by the identity provider.
type Identity struct {
	UserID string
	Email  string
	Name   string
}
