// Package services – LeaderboardService
//
// LeaderboardService aggregates referral edges (participants.referred_by) into
// per-referrer counts. Edges are tallied in Go rather than with GROUP BY so
// that malformed legacy values ("", "-", "NaN", dangling ids) can be dropped
// with the same rules on every store driver.
package services

import (
	"context"
	"sort"
	"time"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/fallfest-referrals/internal/domain"
	"github.com/tbourn/fallfest-referrals/internal/repo"
)

// LeaderboardService implements the read side of the referral engine.
type LeaderboardService struct {
	DB *gorm.DB
}

// CountReferrals returns the exact number of participants attributed to
// participantID. Unknown ids count zero.
func (s *LeaderboardService) CountReferrals(ctx context.Context, participantID uint) (int64, error) {
	n, err := repo.CountReferrals(ctx, s.DB, participantID)
	if err != nil {
		return 0, storeErr(err)
	}
	return n, nil
}

// TopReferrers returns referrers ordered by count descending, then by id
// ascending. Referrers with zero referrals are never listed. limit <= 0
// returns every referrer.
func (s *LeaderboardService) TopReferrers(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	tr := otel.Tracer("services/LeaderboardService")
	ctx, span := tr.Start(ctx, "TopReferrers",
		trace.WithAttributes(attribute.Int("limit", limit)),
	)
	defer span.End()

	counts, referrers, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := RankReferrers(referrers, counts, limit)
	span.SetAttributes(attribute.Int("entries", len(out)))
	return out, nil
}

// ReferredUsers lists the participants attributed to participantID, newest
// first.
func (s *LeaderboardService) ReferredUsers(ctx context.Context, participantID uint) ([]domain.ReferredUser, error) {
	rows, err := repo.ListReferredUsers(ctx, s.DB, participantID)
	if err != nil {
		return nil, storeErr(err)
	}
	out := make([]domain.ReferredUser, 0, len(rows))
	for _, p := range rows {
		out = append(out, domain.ReferredUser{FullName: p.FullName, Email: p.Email, CreatedAt: p.CreatedAt})
	}
	return out, nil
}

// Summary returns event-wide totals. Only edges that resolve to an existing
// participant are counted.
func (s *LeaderboardService) Summary(ctx context.Context) (domain.ReferralSummary, error) {
	var sum domain.ReferralSummary
	n, err := repo.CountParticipants(ctx, s.DB)
	if err != nil {
		return sum, storeErr(err)
	}
	sum.Participants = n

	counts, referrers, err := s.load(ctx)
	if err != nil {
		return sum, err
	}
	for _, p := range referrers {
		if c := counts[p.ID]; c > 0 {
			sum.TotalReferrals += c
			sum.DistinctReferrers++
		}
	}
	return sum, nil
}

// Stats returns the participant count and latest update time, used to build
// ETags for leaderboard responses.
func (s *LeaderboardService) Stats(ctx context.Context) (int64, *time.Time, error) {
	n, at, err := repo.ParticipantsStats(ctx, s.DB)
	if err != nil {
		return 0, nil, storeErr(err)
	}
	return n, at, nil
}

// load tallies every edge and fetches the referrers that still exist.
func (s *LeaderboardService) load(ctx context.Context) (map[uint]int64, []domain.Participant, error) {
	edges, err := repo.ReferralEdges(ctx, s.DB)
	if err != nil {
		return nil, nil, storeErr(err)
	}
	counts := TallyReferrals(edges)
	if len(counts) == 0 {
		return counts, nil, nil
	}
	ids := make([]uint, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	referrers, err := repo.ListParticipantsByIDs(ctx, s.DB, ids)
	if err != nil {
		return nil, nil, storeErr(err)
	}
	return counts, referrers, nil
}

// TallyReferrals counts edges per referrer id. Values that do not parse as a
// positive decimal id are ignored.
func TallyReferrals(edges []string) map[uint]int64 {
	counts := make(map[uint]int64)
	for _, e := range edges {
		if id, ok := domain.ParseParticipantID(e); ok {
			counts[id]++
		}
	}
	return counts
}

// RankReferrers builds ranked entries for referrers with a positive count.
// Ids in counts without a matching participant (dangling edges) are dropped.
func RankReferrers(referrers []domain.Participant, counts map[uint]int64, limit int) []domain.LeaderboardEntry {
	out := make([]domain.LeaderboardEntry, 0, len(referrers))
	for _, p := range referrers {
		c := counts[p.ID]
		if c <= 0 {
			continue
		}
		out = append(out, domain.LeaderboardEntry{
			ParticipantID: p.ID,
			FullName:      p.FullName,
			Email:         p.Email,
			ReferralCode:  p.ReferralCode,
			Count:         c,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].ParticipantID < out[j].ParticipantID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
