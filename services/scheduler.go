package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/HSouheill/herbreserve_backend/models"
	"github.com/HSouheill/herbreserve_backend/utils"
)

// DefaultDailyProfitSchedule fires at 00:30 in the canonical timezone.
const DefaultDailyProfitSchedule = "30 0 * * *"

var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule parses a standard five field cron expression.
func ParseSchedule(spec string) (cron.Schedule, error) {
	if spec == "" {
		spec = DefaultDailyProfitSchedule
	}
	s, err := scheduleParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse cron schedule %q: %w", spec, err)
	}
	return s, nil
}

// Scheduler fires the daily profit run on its cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	runner  ProfitRunner
	log     *logrus.Logger
	onFatal func(error)
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewScheduler builds a scheduler in clock's location. onFatal receives errors that
// mean the batch could not run at all.
func NewScheduler(runner ProfitRunner, schedule cron.Schedule, clock *utils.DayClock, log *logrus.Logger, onFatal func(error)) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(clock.Location())),
		runner:  runner,
		log:     log,
		onFatal: onFatal,
		ctx:     ctx,
		cancel:  cancel,
	}
	s.cron.Schedule(schedule, cron.FuncJob(s.runDailyProfit))
	return s
}

func (s *Scheduler) Start() {
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		s.log.WithField("next_run", e.Next).Info("daily profit scheduler started")
	}
}

// Stop cancels an in-flight run and waits for it, or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out with a run in flight")
	}
}

func (s *Scheduler) runDailyProfit() {
	result, err := s.runner.Run(s.ctx, models.TriggeredBySchedule)
	switch {
	case errors.Is(err, ErrAlreadyRunning):
		s.log.WithField("cron_name", models.CronDailyProfit).Warn("daily profit run skipped, another run in progress")
	case errors.Is(err, context.Canceled):
		s.log.WithError(err).Warn("daily profit run interrupted by shutdown")
	case err != nil:
		if s.onFatal != nil {
			s.onFatal(err)
			return
		}
		s.log.WithError(err).Error("daily profit run failed")
	default:
		s.log.WithFields(logrus.Fields{
			"execution_id": result.ExecutionID.Hex(),
			"status":       result.Status,
		}).Info("scheduled daily profit run done")
	}
}
