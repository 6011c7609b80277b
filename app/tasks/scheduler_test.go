package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/atrishin/feedline/app/database"
)

func TestSchedulerPollIntervalOverride(t *testing.T) {
	cases := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"unset falls back to config", "", 10 * time.Minute},
		{"setting overrides config", "5", 5 * time.Minute},
		{"non-numeric ignored", "soon", 10 * time.Minute},
		{"non-positive ignored", "-2", 10 * time.Minute},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			settings := &stubSettingRepo{values: map[string]string{}}
			if tc.value != "" {
				settings.values[database.SettingPollInterval] = tc.value
			}
			s := &Scheduler{
				settingRepo: settings,
				interval:    10 * time.Minute,
				ctx:         context.Background(),
			}

			if got := s.pollInterval(); got != tc.want {
				t.Errorf("Expected interval %v, got %v", tc.want, got)
			}
		})
	}
}

func TestSchedulerJitteredIntervalStaysInBand(t *testing.T) {
	s := &Scheduler{
		settingRepo: &stubSettingRepo{values: map[string]string{database.SettingPollInterval: "10"}},
		interval:    30 * time.Minute,
		ctx:         context.Background(),
	}

	for i := 0; i < 50; i++ {
		d := s.jitteredInterval()
		if d < 7*time.Minute || d > 13*time.Minute {
			t.Fatalf("Expected jittered interval within ±30%% of 10m, got %v", d)
		}
	}
}

type alwaysFailingTask struct {
	Task
}

func (t *alwaysFailingTask) Execute(ctx context.Context) error {
	return errors.New("boom")
}

func TestSchedulerStopWaitsForPendingRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:      cron.New(),
		ctx:       ctx,
		cancel:    cancel,
		taskQueue: make(chan TaskInterface, 1),
	}

	task := &alwaysFailingTask{Task: NewTask(TaskTypeDrainQueue, "queue")}
	s.executeTask(0, task)

	if task.GetRetryCount() != 1 {
		t.Errorf("Expected 1 retry scheduled, got %d", task.GetRetryCount())
	}

	// Stop must wait out the scheduled retry before closing the task queue,
	// so the retry's enqueue attempt can never hit a closed channel.
	s.Stop()
}
