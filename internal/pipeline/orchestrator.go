package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/flashgest/internal/generate"
)

var (
	// ErrQueueFull is returned by Submit when the job queue has no room.
	ErrQueueFull = errors.New("job queue is full")
	// ErrStopped is returned by Submit after Stop.
	ErrStopped = errors.New("pipeline is stopped")
)

// Settings size the orchestrator.
type Settings struct {
	WorkerCount           int
	MaxQueueSize          int
	MaxConcurrentGenerate int
	JobTTL                time.Duration
	CleanupInterval       time.Duration
}

// Orchestrator manages the document pipeline.
type Orchestrator struct {
	jobs     *JobStore
	queue    chan *Job
	gen      generate.Generator
	log      *slog.Logger
	settings Settings
	defaults Defaults

	cancel context.CancelFunc
	wg     sync.WaitGroup

	// mu guards stopped and the close of queue against concurrent Submits.
	mu      sync.RWMutex
	stopped bool
}

// NewOrchestrator creates the pipeline. Call Start to launch workers.
func NewOrchestrator(settings Settings, defaults Defaults, gen generate.Generator, log *slog.Logger) *Orchestrator {
	if settings.WorkerCount <= 0 {
		settings.WorkerCount = 1
	}
	if settings.MaxQueueSize <= 0 {
		settings.MaxQueueSize = 100
	}
	if settings.JobTTL <= 0 {
		settings.JobTTL = time.Hour
	}
	if settings.CleanupInterval <= 0 {
		settings.CleanupInterval = 5 * time.Minute
	}
	return &Orchestrator{
		jobs:     NewJobStore(settings.JobTTL),
		queue:    make(chan *Job, settings.MaxQueueSize),
		gen:      gen,
		log:      log,
		settings: settings,
		defaults: defaults,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.settings.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.gen, o.log, o.defaults, o.settings.MaxConcurrentGenerate)
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(o.settings.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline. Later Submits fail with
// ErrStopped. Stop may be called more than once.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.stopped {
		o.stopped = true
		close(o.queue)
	}
	o.mu.Unlock()

	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.mu.RLock()
	defer o.mu.RUnlock()

	o.jobs.Put(job)
	if o.stopped {
		job.AddError("shutting down")
		job.SetStatus(StatusFailed, "stopped")
		return ErrStopped
	}
	select {
	case o.queue <- job:
		o.log.Info("job queued", "job_id", job.ID, "filename", job.Filename)
		return nil
	default:
		job.AddError("queue full")
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("%w (%d)", ErrQueueFull, o.settings.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Generator returns the configured generator, which may be nil.
func (o *Orchestrator) Generator() generate.Generator {
	return o.gen
}

// Defaults returns the service-wide job defaults.
func (o *Orchestrator) Defaults() Defaults {
	return o.defaults
}
