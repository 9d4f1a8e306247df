package workers

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"

	"github.com/open-builders/giveaway-draw/internal/common/logger"
	gsvc "github.com/open-builders/giveaway-draw/internal/service/giveaway"
)

// Sweeper draws and announces every due giveaway.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (*gsvc.SweepReport, error)
}

// Scheduler runs the periodic sweep and notification dispatch jobs. Each job
// runs in singleton mode so a slow run is never overlapped by the next tick.
type Scheduler struct {
	sched      gocron.Scheduler
	ctx        context.Context
	sweeper    Sweeper
	dispatcher *Dispatcher
	now        func() time.Time
	log        zerolog.Logger
}

// NewScheduler registers the jobs. dispatcher may be nil, in which case only
// the sweep is scheduled. Jobs use ctx for every run.
func NewScheduler(ctx context.Context, sweeper Sweeper, dispatcher *Dispatcher, sweepEvery, dispatchEvery time.Duration) (*Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	s := &Scheduler{
		sched:      sched,
		ctx:        ctx,
		sweeper:    sweeper,
		dispatcher: dispatcher,
		now:        func() time.Time { return time.Now().UTC() },
		log:        logger.Component("scheduler"),
	}

	if _, err := sched.NewJob(
		gocron.DurationJob(sweepEvery),
		gocron.NewTask(s.runSweep),
		gocron.WithName("sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		_ = sched.Shutdown()
		return nil, err
	}

	if dispatcher != nil {
		if _, err := sched.NewJob(
			gocron.DurationJob(dispatchEvery),
			gocron.NewTask(s.runDispatch),
			gocron.WithName("notify_dispatch"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		); err != nil {
			_ = sched.Shutdown()
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.sched.Start()
	s.log.Info().Int("jobs", len(s.sched.Jobs())).Msg("scheduler started")
}

func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}

func (s *Scheduler) runSweep() {
	if s.ctx.Err() != nil {
		return
	}
	report, err := s.sweeper.Sweep(s.ctx, s.now())
	if err != nil {
		s.log.Error().Err(err).Msg("sweep failed")
		return
	}
	if len(report.Items) > 0 {
		s.log.Info().
			Int("drawn", report.Count(gsvc.OutcomeDrawn)).
			Int("announced", report.Count(gsvc.OutcomeAnnounced)).
			Int("failed", report.Count(gsvc.OutcomeDrawFailed)+report.Count(gsvc.OutcomeAnnounceFailed)).
			Msg("sweep finished")
	}
}

func (s *Scheduler) runDispatch() {
	if s.ctx.Err() != nil {
		return
	}
	if _, err := s.dispatcher.DispatchOnce(s.ctx); err != nil {
		s.log.Error().Err(err).Msg("notification dispatch failed")
	}
}
