package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/fallfest-referrals/internal/domain"
	"github.com/tbourn/fallfest-referrals/internal/utils"
)

// CountReferrals godoc
// @ID          countReferrals
// @Summary     Live referral count
// @Description Counts participants whose referrer is the given participant. Unknown ids count 0.
// @Tags        Leaderboard
// @Produce     json
// @Param       id   path  int  true  "Participant id"  minimum(1)
// @Success     200  {object}  handlers.CountResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad id"
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /participants/{id}/referrals/count [get]
func (h *Handlers) CountReferrals(c *gin.Context) {
	id, valid := domain.ParseParticipantID(c.Param("id"))
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "participant id must be a positive integer")
		return
	}
	n, err := h.board.CountReferrals(c.Request.Context(), id)
	if err != nil {
		failWith(c, err)
		return
	}
	ok(c, http.StatusOK, CountResponse{ParticipantID: id, Count: n})
}

// Leaderboard godoc
// @ID          getLeaderboard
// @Summary     Top referrers
// @Description Referrers ordered by referral count (desc), ties broken by registration order.
// @Description Participants with no referrals are omitted. Supports weak ETags via If-None-Match.
// @Tags        Leaderboard
// @Produce     json
// @Param       limit          query   int     false  "Entries to return"           minimum(1) maximum(50) default(10)
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Success     200  {object}  handlers.LeaderboardResponse
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string "Not Modified"
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /leaderboard [get]
func (h *Handlers) Leaderboard(c *gin.Context) {
	limit := utils.LimitParam(c.Query("limit"), h.defaultLimit, h.maxLimit)

	if h.cache != nil {
		if snap, ready := h.cache.Snapshot(); ready {
			if entries, hit := h.cache.Top(limit); hit {
				etag := fmt.Sprintf(`W/"leaderboard:%d:s%d"`, limit, snap.RefreshedAt.UnixNano())
				if notModified(c, etag) {
					return
				}
				at := snap.RefreshedAt
				ok(c, http.StatusOK, LeaderboardResponse{Entries: entries, Limit: limit, RefreshedAt: &at})
				return
			}
		}
	}

	ctx := c.Request.Context()
	count, maxTS, err := h.board.Stats(ctx)
	if err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.UnixNano()
		}
		if notModified(c, fmt.Sprintf(`W/"leaderboard:%d:%d:%d"`, limit, count, ts)) {
			return
		}
	}

	entries, err := h.board.TopReferrers(ctx, limit)
	if err != nil {
		c.Header("ETag", "")
		failWith(c, err)
		return
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	ok(c, http.StatusOK, LeaderboardResponse{Entries: entries, Limit: limit})
}

// notModified sets etag and answers 304 when the client already has it.
func notModified(c *gin.Context, etag string) bool {
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}

// Summary godoc
// @ID          getReferralSummary
// @Summary     Event-wide referral totals
// @Tags        Leaderboard
// @Produce     json
// @Success     200  {object}  domain.ReferralSummary
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /leaderboard/summary [get]
func (h *Handlers) Summary(c *gin.Context) {
	sum, err := h.board.Summary(c.Request.Context())
	if err != nil {
		failWith(c, err)
		return
	}
	ok(c, http.StatusOK, sum)
}

// StreamLeaderboard godoc
// @ID          streamLeaderboard
// @Summary     Live leaderboard (Server-Sent Events)
// @Description Sends the current snapshot, then a `leaderboard` event after every refresh and a
// @Description `ping` event on idle intervals. Each payload is a LeaderboardResponse.
// @Tags        Leaderboard
// @Produce     text/event-stream
// @Param       limit  query  int  false  "Entries per event"  minimum(1) default(10)
// @Success     200  {object}  handlers.LeaderboardResponse
// @Failure     503  {object}  handlers.ErrorResponse  "Stream unavailable"
// @Router      /leaderboard/stream [get]
func (h *Handlers) StreamLeaderboard(c *gin.Context) {
	if h.snapshots == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeStoreUnavailable, "live updates are not available")
		return
	}
	limit := utils.LimitParam(c.Query("limit"), h.defaultLimit, h.maxLimit)

	events, cancel := h.snapshots.Subscribe()
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	send := func(snap domain.LeaderboardSnapshot) {
		entries := snap.Entries
		if len(entries) > limit {
			entries = entries[:limit]
		}
		at := snap.RefreshedAt
		c.SSEvent("leaderboard", LeaderboardResponse{Entries: entries, Limit: limit, RefreshedAt: &at})
		c.Writer.Flush()
	}

	if h.cache != nil {
		if snap, ready := h.cache.Snapshot(); ready {
			send(snap)
		}
	}
	c.Writer.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case snap, open := <-events:
			if !open {
				return
			}
			send(snap)
		case t := <-heartbeat.C:
			c.SSEvent("ping", t.UTC().Format(time.RFC3339))
			c.Writer.Flush()
		}
	}
}
