package schedsvc

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/pkg/errors"

	"github.com/trezcool/clubhouse/core"
	"github.com/trezcool/clubhouse/core/reminder"
)

// Dispatcher sends the pending reminders of one type.
type Dispatcher interface {
	Dispatch(ctx context.Context, t reminder.Type) (core.BatchSummary, error)
}

// Scheduler runs one periodic dispatch job per reminder type, in the program's time zone.
// Runs overlap the same reminder windows; the reminder records keep each send unique.
type Scheduler struct {
	cron       *gocron.Scheduler
	dispatcher Dispatcher
	logger     core.Logger
	interval   time.Duration
	timeout    time.Duration
}

func New(dispatcher Dispatcher, logger core.Logger, conf *core.Config) *Scheduler {
	cron := gocron.NewScheduler(conf.Location())
	// a run still in progress makes the next one wait instead of overlapping
	cron.SingletonModeAll()
	return &Scheduler{
		cron:       cron,
		dispatcher: dispatcher,
		logger:     logger,
		interval:   conf.Reminders.Interval,
		timeout:    time.Hour,
	}
}

// Register adds the reminder jobs. It must be called before Start.
// An interval wider than a reminder window would let sessions fall between two runs.
func (s *Scheduler) Register() error {
	if s.interval <= 0 || s.interval > reminder.WindowWidth {
		return errors.Errorf("reminder interval must be between 0 and %s, got %s", reminder.WindowWidth, s.interval)
	}
	for _, t := range reminder.Types() {
		t := t
		_, err := s.cron.Every(s.interval).Tag("reminder", string(t)).Do(func() { s.Run(t) })
		if err != nil {
			return errors.Wrapf(err, "scheduling %s reminders every %s", t, s.interval)
		}
	}
	return nil
}

// Run dispatches the reminders of type t once.
func (s *Scheduler) Run(t reminder.Type) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	summary, err := s.dispatcher.Dispatch(ctx, t)
	if err != nil {
		s.logger.Error(fmt.Sprintf("schedsvc.Run(%s): %v", t, err), err, map[string]interface{}{"summary": summary})
	}
}

func (s *Scheduler) Start() {
	s.cron.StartAsync()
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// Jobs returns the scheduled jobs' tags.
func (s *Scheduler) Jobs() [][]string {
	jobs := s.cron.Jobs()
	tags := make([][]string, 0, len(jobs))
	for _, j := range jobs {
		tags = append(tags, j.Tags())
	}
	return tags
}
