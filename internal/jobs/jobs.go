// Package jobs runs the background work of the service on a gocron scheduler:
// the periodic leaderboard refresh, the purge of expired pending referrals,
// and the change-feed listener that refreshes the leaderboard on writes.
package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/fallfest-referrals/internal/domain"
)

// Refresh reasons reported on snapshots and metrics.
const (
	ReasonPoll   = "poll"
	ReasonChange = "change"
	ReasonStart  = "startup"
)

// Refresher recomputes the leaderboard snapshot.
type Refresher interface {
	Refresh(ctx context.Context, reason string) (domain.LeaderboardSnapshot, error)
}

// Purger removes expired pending referrals.
type Purger interface {
	Purge(ctx context.Context) (int64, error)
}

// Options configures Start.
type Options struct {
	RefreshEvery time.Duration
	PurgeEvery   time.Duration // 0 disables the purge job

	// Changes, when set, triggers a refresh per received event.
	Changes <-chan domain.ChangeEvent
}

// Runner owns the scheduler and the change listener.
type Runner struct {
	sched  gocron.Scheduler
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Start schedules the jobs, performs one refresh right away, and starts
// listening for change events. Stop releases everything.
func Start(ctx context.Context, lb Refresher, pending Purger, opts Options) (*Runner, error) {
	if lb == nil {
		return nil, errors.New("jobs: refresher is required")
	}
	if opts.RefreshEvery <= 0 {
		return nil, errors.New("jobs: refresh interval must be > 0")
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	r := &Runner{sched: sched, cancel: cancel}

	_, err = sched.NewJob(
		gocron.DurationJob(opts.RefreshEvery),
		gocron.NewTask(func() { refresh(ctx, lb, ReasonPoll) }),
		gocron.WithName("leaderboard-refresh"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		cancel()
		_ = sched.Shutdown()
		return nil, err
	}

	if pending != nil && opts.PurgeEvery > 0 {
		_, err = sched.NewJob(
			gocron.DurationJob(opts.PurgeEvery),
			gocron.NewTask(func() {
				n, err := pending.Purge(ctx)
				if err != nil {
					log.Warn().Err(err).Msg("pending referral purge failed")
					return
				}
				if n > 0 {
					log.Info().Int64("purged", n).Msg("expired pending referrals removed")
				}
			}),
			gocron.WithName("pending-referral-purge"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			cancel()
			_ = sched.Shutdown()
			return nil, err
		}
	}

	refresh(ctx, lb, ReasonStart)
	sched.Start()

	if opts.Changes != nil {
		r.wg.Add(1)
		go r.listen(ctx, lb, opts.Changes)
	}
	return r, nil
}

func (r *Runner) listen(ctx context.Context, lb Refresher, changes <-chan domain.ChangeEvent) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-changes:
			if !ok {
				return
			}
			// collapse a burst into one refresh
		drain:
			for {
				select {
				case _, ok := <-changes:
					if !ok {
						break drain
					}
				default:
					break drain
				}
			}
			log.Debug().Str("kind", ev.Kind).Uint("participant_id", ev.ParticipantID).Msg("change received")
			refresh(ctx, lb, ReasonChange)
		}
	}
}

// Stop cancels the listener and shuts the scheduler down.
func (r *Runner) Stop() error {
	r.cancel()
	err := r.sched.Shutdown()
	r.wg.Wait()
	return err
}

func refresh(ctx context.Context, lb Refresher, reason string) {
	if ctx.Err() != nil {
		return
	}
	snap, err := lb.Refresh(ctx, reason)
	if err != nil {
		log.Warn().Err(err).Str("reason", reason).Msg("leaderboard refresh failed")
		return
	}
	log.Debug().Str("reason", reason).Int("entries", len(snap.Entries)).Msg("leaderboard refreshed")
}
