package background

import (
	"context"
	"log"
	"time"

	"mizan2/internal/jobs"

	"github.com/go-co-op/gocron/v2"
)

// JobScheduler owns the recurring maintenance work: the daily lapsed-
// subscription sweep and the settlement retry drain.
type JobScheduler struct {
	scheduler gocron.Scheduler
	sweeper   *jobs.SubscriptionSweeper
	retrier   *jobs.SettlementRetrier
}

func NewJobScheduler(sweeper *jobs.SubscriptionSweeper, retrier *jobs.SettlementRetrier) (*JobScheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	js := &JobScheduler{
		scheduler: scheduler,
		sweeper:   sweeper,
		retrier:   retrier,
	}
	if err := js.registerJobs(); err != nil {
		return nil, err
	}
	return js, nil
}

func (js *JobScheduler) registerJobs() error {
	// Shortly after midnight, once the calendar day has rolled over.
	_, err := js.scheduler.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 5, 0))),
		gocron.NewTask(func() {
			js.sweeper.Run(context.Background())
		}),
		gocron.WithName("subscription-sweep"),
	)
	if err != nil {
		return err
	}

	_, err = js.scheduler.NewJob(
		gocron.DurationJob(time.Minute),
		gocron.NewTask(func() {
			js.retrier.Run(context.Background())
		}),
		gocron.WithName("settlement-retry"),
	)
	return err
}

func (js *JobScheduler) Start() {
	log.Printf("Starting background job scheduler")
	js.scheduler.Start()
}

func (js *JobScheduler) Stop() error {
	log.Printf("Stopping background job scheduler")
	return js.scheduler.Shutdown()
}
