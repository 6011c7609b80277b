package tasks

// TaskSchedulerInterface is what the main application uses to manage
// background processing: the recurring polling and queue-draining cycles,
// cron-driven digest and cleanup, and the shared worker pool.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}
