package services

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// attributionOutcomes counts ApplyReferral/Register outcomes by result.
	attributionOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_attributions_total",
			Help: "Referral attribution attempts by outcome.",
		},
		[]string{"outcome"},
	)

	codeCollisions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "referral_code_exhausted_total",
			Help: "Code generations that ran out of attempts.",
		},
	)

	leaderboardRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leaderboard_refreshes_total",
			Help: "Leaderboard snapshot refreshes by reason and result.",
		},
		[]string{"reason", "result"},
	)
)

func init() {
	prometheus.MustRegister(attributionOutcomes, codeCollisions, leaderboardRefreshes)
}

// outcomeLabel maps an attribution result onto a bounded label value.
func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "attributed"
	case errors.Is(err, ErrEmptyCode):
		return "empty_code"
	case errors.Is(err, ErrInvalidCode):
		return "invalid_code"
	case errors.Is(err, ErrSelfReferral):
		return "self_referral"
	case errors.Is(err, ErrAlreadyLocked):
		return "already_locked"
	case errors.Is(err, ErrAlreadyRegistered):
		return "already_registered"
	case errors.Is(err, ErrCollision):
		return "collision"
	default:
		return "store_unavailable"
	}
}
