package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"vivuplanner/internal/config"
	"vivuplanner/internal/models/db_models"
	"vivuplanner/internal/models/request_models"
	resp "vivuplanner/internal/models/response_models"
	"vivuplanner/internal/repositories"
	"vivuplanner/internal/telemetry"
	"vivuplanner/pkg/utils"
)

// TaskWorkerPool executes queued deep-plan tasks with a fixed number of workers
// reading one bounded queue. Each worker runs one task end to end.
type TaskWorkerPool struct {
	repo         repositories.TaskRepository
	orchestrator PlanOrchestratorInterface
	workers      int
	drainTimeout time.Duration
	metrics      *telemetry.Metrics
	log          *zap.Logger
	now          func() time.Time

	queue chan string

	mu      sync.RWMutex
	started bool
	closed  bool

	done      chan struct{}
	runCtx    context.Context
	cancelRun context.CancelFunc
	wg        sync.WaitGroup
}

func NewTaskWorkerPool(repo repositories.TaskRepository, orchestrator PlanOrchestratorInterface, cfg config.TaskConfig, metrics *telemetry.Metrics, log *zap.Logger) *TaskWorkerPool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	runCtx, cancel := context.WithCancel(context.Background())
	return &TaskWorkerPool{
		repo:         repo,
		orchestrator: orchestrator,
		workers:      cfg.Workers,
		drainTimeout: cfg.DrainTimeout,
		metrics:      metrics,
		log:          log,
		now:          func() time.Time { return time.Now().UTC() },
		queue:        make(chan string, cfg.QueueSize),
		done:         make(chan struct{}),
		runCtx:       runCtx,
		cancelRun:    cancel,
	}
}

// Enqueue never blocks; a full or stopped queue returns ErrQueueFull.
func (p *TaskWorkerPool) Enqueue(taskID string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return fmt.Errorf("%w: worker pool is stopped", utils.ErrQueueFull)
	}
	select {
	case p.queue <- taskID:
		p.metrics.SetQueueDepth(len(p.queue))
		return nil
	default:
		return fmt.Errorf("%w: capacity %d", utils.ErrQueueFull, cap(p.queue))
	}
}

// Start fails tasks left running by a previous process, starts the workers,
// then re-enqueues tasks still queued.
func (p *TaskWorkerPool) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return nil
	}
	p.started = true
	p.mu.Unlock()

	failed, err := p.failInterrupted(ctx)
	if err != nil {
		return err
	}

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	requeued, backlog, err := p.requeue(ctx)
	if err != nil {
		return err
	}
	p.log.Info("task worker pool started",
		zap.Int("workers", p.workers),
		zap.Int("queue_size", cap(p.queue)),
		zap.Int("recovered_failed", failed),
		zap.Int("recovered_requeued", requeued),
		zap.Int("recovered_backlog", backlog))
	return nil
}

func (p *TaskWorkerPool) failInterrupted(ctx context.Context) (int, error) {
	running, err := p.repo.ListByStatus(ctx, db_models.TaskRunning)
	if err != nil {
		return 0, fmt.Errorf("list running tasks: %w", err)
	}
	restartErr := encodeTaskError(utils.ErrTaskRestarted)
	failed := 0
	for _, t := range running {
		ok, err := p.repo.Fail(ctx, t.ID, []string{db_models.TaskRunning}, restartErr, p.now())
		if err != nil {
			return failed, fmt.Errorf("fail interrupted task %s: %w", t.ID, err)
		}
		if ok {
			failed++
			p.metrics.RecordTaskEvent("recovered_failed")
		}
	}
	return failed, nil
}

// requeue enqueues recovered queued tasks in created order. Rows that do not fit in the
// queue stay queued and are handed to the workers by feed as space frees up.
func (p *TaskWorkerPool) requeue(ctx context.Context) (int, int, error) {
	queued, err := p.repo.ListByStatus(ctx, db_models.TaskQueued)
	if err != nil {
		return 0, 0, fmt.Errorf("list queued tasks: %w", err)
	}
	ids := make([]string, 0, len(queued))
	for _, t := range queued {
		ids = append(ids, t.ID)
	}

	requeued := 0
	for len(ids) > 0 && p.Enqueue(ids[0]) == nil {
		ids = ids[1:]
		requeued++
		p.metrics.RecordTaskEvent("recovered_requeued")
	}
	if len(ids) > 0 {
		p.wg.Add(1)
		go p.feed(ids)
	}
	return requeued, len(ids), nil
}

// feed blocks on queue space for each id. On stop the remaining rows stay queued for the
// next start.
func (p *TaskWorkerPool) feed(ids []string) {
	defer p.wg.Done()
	for _, id := range ids {
		select {
		case <-p.done:
			return
		case p.queue <- id:
			p.metrics.SetQueueDepth(len(p.queue))
			p.metrics.RecordTaskEvent("recovered_requeued")
		}
	}
}

// Stop refuses new work and waits for in-flight tasks. Tasks still in the queue stay
// queued and are picked up by the next start. In-flight tasks still running after the
// drain timeout have their context canceled and end failed.
func (p *TaskWorkerPool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.done)
	p.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(finished)
	}()

	var timeout <-chan time.Time
	if p.drainTimeout > 0 {
		timer := time.NewTimer(p.drainTimeout)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case <-finished:
		p.cancelRun()
		return nil
	case <-ctx.Done():
	case <-timeout:
	}

	p.log.Warn("task drain timed out, canceling in-flight tasks")
	p.cancelRun()
	<-finished
	return nil
}

func (p *TaskWorkerPool) worker(n int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			return
		default:
		}
		select {
		case <-p.done:
			return
		case id := <-p.queue:
			p.metrics.SetQueueDepth(len(p.queue))
			p.process(id, n)
		}
	}
}

func (p *TaskWorkerPool) process(id string, worker int) {
	ctx := p.runCtx
	log := p.log.With(zap.String("task_id", id), zap.Int("worker", worker))

	claimed, err := p.repo.ClaimQueued(ctx, id, p.now())
	if err != nil {
		log.Error("task claim failed", zap.Error(err))
		return
	}
	if !claimed {
		log.Debug("task already claimed or gone")
		return
	}
	p.metrics.AddActiveWorkers(1)
	defer p.metrics.AddActiveWorkers(-1)

	task, err := p.repo.GetByID(ctx, id)
	if err != nil || task == nil {
		log.Error("claimed task unreadable", zap.Error(err))
		p.finishFailed(id, fmt.Errorf("%w: claimed task unreadable", utils.ErrDatabaseError), log)
		return
	}

	var req request_models.PlanRequest
	if err := json.Unmarshal(task.Payload, &req); err != nil {
		p.finishFailed(id, fmt.Errorf("%w: stored payload: %v", utils.ErrInvalidInput, err), log)
		return
	}
	req.Mode = request_models.ModeDeep
	req.Async = false
	req.TraceID = ""

	started := time.Now()
	result, runErr := p.run(ctx, req)
	if runErr != nil {
		p.finishFailed(id, runErr, log)
		return
	}

	raw, err := json.Marshal(result)
	if err != nil {
		p.finishFailed(id, fmt.Errorf("encode result: %w", err), log)
		return
	}
	ok, err := p.repo.Complete(context.WithoutCancel(ctx), id, datatypes.JSON(raw), p.now())
	if err != nil || !ok {
		log.Error("task completion not recorded", zap.Bool("updated", ok), zap.Error(err))
		return
	}
	p.metrics.RecordTaskEvent(db_models.TaskSucceeded)
	log.Info("task succeeded",
		zap.String("trace_id", result.TraceID),
		zap.Bool("fallback_to_fast", result.Metrics.FallbackToFast),
		zap.Duration("elapsed", time.Since(started)))
}

func (p *TaskWorkerPool) run(ctx context.Context, req request_models.PlanRequest) (result *resp.PlanResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return p.orchestrator.Run(ctx, req)
}

func (p *TaskWorkerPool) finishFailed(id string, cause error, log *zap.Logger) {
	ok, err := p.repo.Fail(context.WithoutCancel(p.runCtx), id, []string{db_models.TaskRunning}, encodeTaskError(cause), p.now())
	if err != nil || !ok {
		log.Error("task failure not recorded", zap.Bool("updated", ok), zap.Error(err))
		return
	}
	p.metrics.RecordTaskEvent(db_models.TaskFailed)
	log.Warn("task failed", zap.String("code", utils.ErrorCode(cause)), zap.Error(cause))
}
