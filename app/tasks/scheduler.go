package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/atrishin/feedline/app/cfg"
	"github.com/atrishin/feedline/app/content"
	"github.com/atrishin/feedline/app/database"
	"github.com/atrishin/feedline/app/fetch"
	"github.com/atrishin/feedline/app/publish"
)

const (
	drainInterval   = time.Minute
	cleanupInterval = 6 * time.Hour
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

// Scheduler drives the four recurring cycles: jittered feed polling, queue
// draining, retention cleanup and the cron-scheduled digest. All cycles feed
// one shared worker pool.
type Scheduler struct {
	feedRepo    database.FeedRepository
	entryRepo   database.EntryRepository
	queueRepo   database.QueueRepository
	settingRepo database.SettingRepository
	pubRepo     database.PublicationRepository
	fetcher     *fetch.Fetcher
	gate        *content.Gate
	publisher   publish.Publisher
	interval    time.Duration
	workerCount int
	batchSize   int
	maxAttempts int
	retention   [3]int
	cron        *cron.Cron
	digestCron  string
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface
}

func NewScheduler(feedRepo database.FeedRepository, entryRepo database.EntryRepository,
	queueRepo database.QueueRepository, settingRepo database.SettingRepository,
	pubRepo database.PublicationRepository, fetcher *fetch.Fetcher, gate *content.Gate,
	publisher publish.Publisher) TaskSchedulerInterface {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := cfg.Get()

	return &Scheduler{
		feedRepo:    feedRepo,
		entryRepo:   entryRepo,
		queueRepo:   queueRepo,
		settingRepo: settingRepo,
		pubRepo:     pubRepo,
		fetcher:     fetcher,
		gate:        gate,
		publisher:   publisher,
		interval:    time.Duration(cfg.PollInterval) * time.Minute,
		workerCount: cfg.WorkerCount,
		batchSize:   cfg.QueueBatchSize,
		maxAttempts: cfg.MaxAttempts,
		retention:   [3]int{cfg.EntryRetention, cfg.QueueRetention, cfg.PublicationRetention},
		cron:        cron.New(),
		digestCron:  cfg.DigestCron,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, 300),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.enqueuePollTasks()

		// Jittered poll interval so polling never locks onto server-side
		// caching or rate-limit windows. Drain and cleanup run on fixed
		// tickers of their own.
		pollTimer := time.NewTimer(s.jitteredInterval())
		defer pollTimer.Stop()
		drainTicker := time.NewTicker(drainInterval)
		defer drainTicker.Stop()
		cleanupTicker := time.NewTicker(cleanupInterval)
		defer cleanupTicker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-pollTimer.C:
				s.enqueuePollTasks()
				pollTimer.Reset(s.jitteredInterval())
			case <-drainTicker.C:
				s.enqueueDrainTask()
			case <-cleanupTicker.C:
				s.enqueueCleanupTask()
			}
		}
	}()

	if _, err := s.cron.AddFunc(s.digestCron, s.enqueueDigestTask); err != nil {
		slog.Error("Invalid digest schedule, digest disabled", "schedule", s.digestCron, "error", err)
	}
	s.cron.Start()
}

func (s *Scheduler) Stop() {
	cronCtx := s.cron.Stop()
	<-cronCtx.Done()

	s.cancel()
	s.wg.Wait()
	close(s.taskQueue)
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

// enqueuePollTasks schedules one poll task per enabled feed.
func (s *Scheduler) enqueuePollTasks() {
	feeds, err := s.feedRepo.GetEnabledFeeds(s.ctx)
	if err != nil {
		slog.Error("Failed to load enabled feeds", "error", err)
	} else if len(feeds) == 0 {
		slog.Debug("No enabled feeds to poll")
	}

	for _, feed := range feeds {
		task := NewPollFeedTask(feed, s.fetcher, s.gate, s.feedRepo)
		if err := s.EnqueueTask(task); err != nil {
			slog.Warn("Failed to enqueue PollFeedTask", "feed", feed.URL, "error", err)
		}
	}
}

func (s *Scheduler) enqueueDrainTask() {
	task := NewDrainQueueTask(s.queueRepo, s.entryRepo, s.settingRepo, s.pubRepo,
		s.publisher, s.batchSize, s.maxAttempts)
	if err := s.EnqueueTask(task); err != nil {
		slog.Warn("Failed to enqueue DrainQueueTask", "error", err)
	}
}

func (s *Scheduler) enqueueDigestTask() {
	task := NewDigestTask(s.entryRepo, s.settingRepo, s.pubRepo, s.publisher)
	if err := s.EnqueueTask(task); err != nil {
		slog.Warn("Failed to enqueue DigestTask", "error", err)
	}
}

func (s *Scheduler) enqueueCleanupTask() {
	task := NewCleanupTask(s.entryRepo, s.queueRepo, s.pubRepo,
		s.retention[0], s.retention[1], s.retention[2])
	if err := s.EnqueueTask(task); err != nil {
		slog.Warn("Failed to enqueue CleanupTask", "error", err)
	}
}

// pollInterval resolves the effective poll interval for the next cycle. The
// runtime setting overrides the configured default; unset or invalid values
// fall back to it.
func (s *Scheduler) pollInterval() time.Duration {
	value, err := s.settingRepo.Get(s.ctx, database.SettingPollInterval)
	if err != nil {
		slog.Warn("Failed to read poll interval setting", "error", err)
		return s.interval
	}
	if value == "" {
		return s.interval
	}

	minutes, err := strconv.Atoi(value)
	if err != nil || minutes <= 0 {
		slog.Warn("Ignoring invalid poll interval setting", "value", value)
		return s.interval
	}
	return time.Duration(minutes) * time.Minute
}

// jitteredInterval spreads each cycle within ±30% of the effective poll
// interval.
func (s *Scheduler) jitteredInterval() time.Duration {
	jitter := 0.7 + rand.Float64()*0.6
	return time.Duration(float64(s.pollInterval()) * jitter)
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)

	if err != nil {
		slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

		if task.CanRetry() {
			task.IncrementRetryCount()
			retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
			if retryDelay > 30*time.Second {
				retryDelay = 30 * time.Second
			}

			slog.Warn("Task retry scheduled", "type", string(task.GetType()), "subject", task.GetSubject(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

			// Tracked in the WaitGroup so Stop cannot close the task queue
			// while a retry is still waiting to enqueue.
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				select {
				case <-s.ctx.Done():
					slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
				case <-time.After(retryDelay):
					if retryErr := s.EnqueueTask(task); retryErr != nil {
						slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
					}
				}
			}()
		} else {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		}
	}
}
