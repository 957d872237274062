// Package jobs runs the console's periodic housekeeping.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"usermgmt/console/internal/kv"
	"usermgmt/console/internal/media"
	"usermgmt/console/internal/metrics"
)

const (
	KindWorkspaces = "workspaces"
	KindNamespaces = "namespaces"
	KindPreviews   = "previews"

	jobTimeout = time.Minute
)

// WorkspaceSweeper drops in-memory workspaces idle for longer than idle.
type WorkspaceSweeper interface {
	Sweep(ctx context.Context, idle time.Duration) int
}

type Settings struct {
	WorkspaceTTL time.Duration
	StoreTTL     time.Duration
	PreviewTTL   time.Duration
}

type Scheduler struct {
	cron       *cron.Cron
	workspaces WorkspaceSweeper
	store      kv.Sweeper
	stager     media.Stager
	settings   Settings
	log        zerolog.Logger
	now        func() time.Time
}

// NewScheduler wires the sweeps. store may be nil for backends that expire
// namespaces themselves.
func NewScheduler(workspaces WorkspaceSweeper, store kv.Sweeper, stager media.Stager, settings Settings, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:       c,
		workspaces: workspaces,
		store:      store,
		stager:     stager,
		settings:   settings,
		log:        log.With().Str("component", "scheduler").Logger(),
		now:        time.Now,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("0 */5 * * * *", s.sweepWorkspaces); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("0 */10 * * * *", s.purgePreviews); err != nil {
		return err
	}
	if s.store != nil {
		if _, err := s.cron.AddFunc("0 0 */1 * * *", s.sweepNamespaces); err != nil { // hourly
			return err
		}
	}

	s.cron.Start()
	return nil
}

// Stop halts the schedule and returns a context that is done once running
// jobs have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) sweepWorkspaces() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n := s.workspaces.Sweep(ctx, s.settings.WorkspaceTTL)
	metrics.AddSwept(KindWorkspaces, n)
}

func (s *Scheduler) sweepNamespaces() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n, err := s.store.Sweep(ctx, s.settings.StoreTTL)
	if err != nil {
		s.log.Error().Err(err).Msg("namespace sweep failed")
	}
	metrics.AddSwept(KindNamespaces, n)
	if n > 0 {
		s.log.Info().Int("count", n).Msg("swept idle session namespaces")
	}
}

func (s *Scheduler) purgePreviews() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n, err := s.stager.Purge(ctx, s.now().Add(-s.settings.PreviewTTL))
	if err != nil {
		s.log.Error().Err(err).Msg("preview purge failed")
	}
	metrics.AddSwept(KindPreviews, n)
	if n > 0 {
		s.log.Info().Int("count", n).Msg("purged stale previews")
	}
}
