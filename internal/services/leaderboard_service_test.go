package services

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/tbourn/fallfest-referrals/internal/domain"
	"github.com/tbourn/fallfest-referrals/internal/repo"
)

func TestTallyReferrals_DropsMalformed(t *testing.T) {
	got := TallyReferrals([]string{"1", "1", " 1 ", "01", "2", "", "-", "NaN", "abc", "0", "-3", "1.5"})
	if len(got) != 2 || got[1] != 2 || got[2] != 1 {
		t.Fatalf("unexpected tally: %v", got)
	}
}

func TestRankReferrers_OrderTiesAndLimit(t *testing.T) {
	ps := []domain.Participant{
		{ID: 1, FullName: "one"},
		{ID: 2, FullName: "two"},
		{ID: 3, FullName: "three"},
		{ID: 4, FullName: "four"},
	}
	counts := map[uint]int64{1: 2, 2: 5, 3: 2, 99: 7} // 4 has zero, 99 dangles

	all := RankReferrers(ps, counts, 0)
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}
	wantIDs := []uint{2, 1, 3}
	for i, e := range all {
		if e.ParticipantID != wantIDs[i] || e.Rank != i+1 {
			t.Fatalf("entry %d = %+v; want id %d rank %d", i, e, wantIDs[i], i+1)
		}
	}

	top := RankReferrers(ps, counts, 2)
	if len(top) != 2 || top[1].ParticipantID != 1 {
		t.Fatalf("limit 2 unexpected: %+v", top)
	}
	if empty := RankReferrers(nil, counts, 10); len(empty) != 0 {
		t.Fatalf("expected no entries without participants")
	}
}

func TestTopReferrers_LiveCountsAndMalformedEdges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "a", "").Participant
	b := f.register(t, "b", "").Participant
	f.register(t, "c", "")

	f.register(t, "a1", a.ReferralCode)
	f.register(t, "a2", a.ReferralCode)
	f.register(t, "b1", b.ReferralCode)

	// legacy junk written straight to the table
	for i, junk := range []string{"-", "NaN", "   ", "424242"} {
		v := junk
		p := &domain.Participant{UserID: "junk" + string(rune('a'+i)), ReferralCode: "JUNK000" + string(rune('A'+i)), ReferredBy: &v}
		if err := repo.CreateParticipant(ctx, f.db, p); err != nil {
			t.Fatalf("seed junk: %v", err)
		}
	}

	top, err := f.board.TopReferrers(ctx, 10)
	if err != nil {
		t.Fatalf("TopReferrers: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("expected 2 referrers, got %+v", top)
	}
	if top[0].ParticipantID != a.ID || top[0].Count != 2 || top[1].ParticipantID != b.ID || top[1].Count != 1 {
		t.Fatalf("unexpected ranking: %+v", top)
	}
	if top[0].ReferralCode != a.ReferralCode || top[0].FullName == "" {
		t.Fatalf("display fields missing: %+v", top[0])
	}

	sum, err := f.board.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.TotalReferrals != 3 || sum.DistinctReferrers != 2 || sum.Participants != 10 {
		t.Fatalf("unexpected summary: %+v", sum)
	}

	users, err := f.board.ReferredUsers(ctx, a.ID)
	if err != nil || len(users) != 2 {
		t.Fatalf("ReferredUsers: %+v %v", users, err)
	}
}

func TestCountReferrals_AgreesWithLeaderboardOnPaddedEdges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "a", "").Participant
	f.register(t, "a1", a.ReferralCode)

	// legacy spellings of a's id that an equality match on referred_by misses
	for i, v := range []string{"0" + domain.FormatParticipantID(a.ID), " " + domain.FormatParticipantID(a.ID)} {
		v := v
		p := &domain.Participant{UserID: fmt.Sprintf("legacy%d", i), ReferralCode: fmt.Sprintf("LEGACY0%d", i), ReferredBy: &v}
		if err := repo.CreateParticipant(ctx, f.db, p); err != nil {
			t.Fatalf("seed legacy: %v", err)
		}
	}

	n, err := f.board.CountReferrals(ctx, a.ID)
	if err != nil {
		t.Fatalf("CountReferrals: %v", err)
	}
	top, err := f.board.TopReferrers(ctx, 10)
	if err != nil || len(top) != 1 {
		t.Fatalf("TopReferrers: %+v %v", top, err)
	}
	if n != 1 || top[0].Count != n {
		t.Fatalf("CountReferrals=%d leaderboard=%d; want both 1", n, top[0].Count)
	}
	sum, err := f.board.Summary(ctx)
	if err != nil || sum.TotalReferrals != n {
		t.Fatalf("summary total = %+v %v; want %d", sum, err, n)
	}
}

func TestTopReferrers_TieBreakIsInsertionOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.register(t, "first", "").Participant
	second := f.register(t, "second", "").Participant
	f.register(t, "s1", second.ReferralCode)
	f.register(t, "f1", first.ReferralCode)

	top, err := f.board.TopReferrers(ctx, 0)
	if err != nil || len(top) != 2 {
		t.Fatalf("TopReferrers: %+v %v", top, err)
	}
	if top[0].ParticipantID != first.ID {
		t.Fatalf("tie must go to the earlier participant: %+v", top)
	}
}

// TestTopReferrers_RandomForest builds random referral forests and checks the
// aggregation against a direct count of the stored edges.
func TestTopReferrers_RandomForest(t *testing.T) {
	rng := rand.New(rand.NewSource(20251018))
	for round := 0; round < 3; round++ {
		t.Run(fmt.Sprintf("round%d", round), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			n := 20 + rng.Intn(20)
			var ps []*domain.Participant
			for i := 0; i < n; i++ {
				code := ""
				if len(ps) > 0 && rng.Intn(3) > 0 {
					code = ps[rng.Intn(len(ps))].ReferralCode
				}
				ps = append(ps, f.register(t, fmt.Sprintf("user-%d", i), code).Participant)
			}

			want := map[uint]int64{}
			for _, p := range ps {
				if id, ok := p.ReferrerID(); ok {
					want[id]++
				}
			}

			for _, p := range ps {
				got, err := f.board.CountReferrals(ctx, p.ID)
				if err != nil || got != want[p.ID] {
					t.Fatalf("CountReferrals(%d) = %d, %v; want %d", p.ID, got, err, want[p.ID])
				}
				if stored := f.reload(t, p.ID).TotalReferrals; stored != want[p.ID] {
					t.Fatalf("total_referrals(%d) = %d; want %d", p.ID, stored, want[p.ID])
				}
			}

			top, err := f.board.TopReferrers(ctx, 0)
			if err != nil {
				t.Fatalf("TopReferrers: %v", err)
			}
			if len(top) != len(want) {
				t.Fatalf("%d entries; want %d", len(top), len(want))
			}
			sorted := sort.SliceIsSorted(top, func(i, j int) bool {
				if top[i].Count != top[j].Count {
					return top[i].Count > top[j].Count
				}
				return top[i].ParticipantID < top[j].ParticipantID
			})
			if !sorted {
				t.Fatalf("ranking not sorted: %+v", top)
			}
			for _, e := range top {
				if e.Count != want[e.ParticipantID] || e.Count == 0 {
					t.Fatalf("entry %+v; want count %d", e, want[e.ParticipantID])
				}
			}
		})
	}
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n, at, err := f.board.Stats(ctx)
	if err != nil || n != 0 || at != nil {
		t.Fatalf("empty stats: %d %v %v", n, at, err)
	}
	f.register(t, "a", "")
	n, at, err = f.board.Stats(ctx)
	if err != nil || n != 1 || at == nil {
		t.Fatalf("stats: %d %v %v", n, at, err)
	}
}
