package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/datatypes"
	"vivuplanner/internal/config"
	"vivuplanner/internal/models/db_models"
	"vivuplanner/internal/models/request_models"
	resp "vivuplanner/internal/models/response_models"
	"vivuplanner/internal/repositories"
	"vivuplanner/internal/telemetry"
	"vivuplanner/pkg/utils"
)

type stubOrchestrator struct {
	mu   sync.Mutex
	reqs []request_models.PlanRequest
	run  func(ctx context.Context, req request_models.PlanRequest) (*resp.PlanResult, error)
}

func (s *stubOrchestrator) Run(ctx context.Context, req request_models.PlanRequest) (*resp.PlanResult, error) {
	s.mu.Lock()
	s.reqs = append(s.reqs, req)
	s.mu.Unlock()
	return s.run(ctx, req)
}

func okResult(_ context.Context, _ request_models.PlanRequest) (*resp.PlanResult, error) {
	return &resp.PlanResult{TraceID: "trace-w", Trip: validTrip(), Metrics: resp.PlanMetrics{Mode: "deep"}}, nil
}

func taskConfig() config.TaskConfig {
	return config.TaskConfig{Workers: 2, QueueSize: 8, PerUserLimit: 3, DrainTimeout: time.Second}
}

func insertTask(t *testing.T, repo repositories.TaskRepository, id, status string) {
	t.Helper()
	req := asyncRequest(id)
	payload, err := req.CanonicalPayload()
	require.NoError(t, err)
	created, err := repo.Create(context.Background(), &db_models.PlanTask{
		ID:        id,
		UserID:    req.UserID,
		RequestID: id,
		Status:    status,
		Payload:   datatypes.JSON(payload),
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	require.True(t, created)
}

func waitForStatus(t *testing.T, repo repositories.TaskRepository, id, want string) *db_models.PlanTask {
	t.Helper()
	var task *db_models.PlanTask
	require.Eventually(t, func() bool {
		got, err := repo.GetByID(context.Background(), id)
		if err != nil || got == nil {
			return false
		}
		task = got
		return got.Status == want
	}, 5*time.Second, 10*time.Millisecond, "task %s never reached %s", id, want)
	return task
}

func errorCodeOf(t *testing.T, task *db_models.PlanTask) string {
	t.Helper()
	var te resp.TaskError
	require.NoError(t, json.Unmarshal(task.Error, &te))
	return te.Code
}

func TestTaskWorkerPool_RecoversOnStart(t *testing.T) {
	repo := repositories.NewTaskRepository(newTestDB(t))
	insertTask(t, repo, "interrupted", db_models.TaskRunning)
	insertTask(t, repo, "waiting", db_models.TaskQueued)

	orch := &stubOrchestrator{run: okResult}
	pool := NewTaskWorkerPool(repo, orch, taskConfig(), telemetry.NewMetrics(), zaptest.NewLogger(t))
	require.NoError(t, pool.Start(context.Background()))
	t.Cleanup(func() { _ = pool.Stop(context.Background()) })

	failed := waitForStatus(t, repo, "interrupted", db_models.TaskFailed)
	assert.Equal(t, "restart", errorCodeOf(t, failed))

	done := waitForStatus(t, repo, "waiting", db_models.TaskSucceeded)
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.FinishedAt)

	view := TaskViewOf(done)
	require.NotNil(t, view.Result)
	assert.Equal(t, "trace-w", view.Result.TraceID)

	orch.mu.Lock()
	defer orch.mu.Unlock()
	require.Len(t, orch.reqs, 1)
	assert.Equal(t, request_models.ModeDeep, orch.reqs[0].Mode)
	assert.False(t, orch.reqs[0].Async)
	assert.Empty(t, orch.reqs[0].TraceID)
}

func TestTaskWorkerPool_RecoversBacklogLargerThanQueue(t *testing.T) {
	repo := repositories.NewTaskRepository(newTestDB(t))
	ids := []string{"q0", "q1", "q2", "q3", "q4", "q5"}
	for _, id := range ids {
		insertTask(t, repo, id, db_models.TaskQueued)
	}

	orch := &stubOrchestrator{run: okResult}
	pool := NewTaskWorkerPool(repo, orch, config.TaskConfig{Workers: 1, QueueSize: 2, DrainTimeout: time.Second}, nil, nil)
	require.NoError(t, pool.Start(context.Background()))
	t.Cleanup(func() { _ = pool.Stop(context.Background()) })

	for _, id := range ids {
		task := waitForStatus(t, repo, id, db_models.TaskSucceeded)
		assert.Nil(t, TaskViewOf(task).Error)
	}
	orch.mu.Lock()
	defer orch.mu.Unlock()
	assert.Len(t, orch.reqs, len(ids))
}

func TestTaskWorkerPool_StopLeavesBacklogQueued(t *testing.T) {
	repo := repositories.NewTaskRepository(newTestDB(t))
	for _, id := range []string{"b0", "b1", "b2", "b3"} {
		insertTask(t, repo, id, db_models.TaskQueued)
	}

	started := make(chan struct{})
	var once sync.Once
	orch := &stubOrchestrator{run: func(ctx context.Context, _ request_models.PlanRequest) (*resp.PlanResult, error) {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	pool := NewTaskWorkerPool(repo, orch, config.TaskConfig{Workers: 1, QueueSize: 1, DrainTimeout: 50 * time.Millisecond}, nil, nil)
	require.NoError(t, pool.Start(context.Background()))
	<-started
	require.NoError(t, pool.Stop(context.Background()))

	queued, err := repo.ListByStatus(context.Background(), db_models.TaskQueued)
	require.NoError(t, err)
	assert.Len(t, queued, 3)
	failed, err := repo.ListByStatus(context.Background(), db_models.TaskFailed)
	require.NoError(t, err)
	assert.Len(t, failed, 1)
}

func TestTaskWorkerPool_EndToEnd(t *testing.T) {
	db := newTestDB(t)
	repo := repositories.NewTaskRepository(db)
	cfg := testConfig()

	pool := &staticPool{pool: testvillePool()}
	fast := newTestFastPlanner(t, pool)
	deep, err := NewDeepPlanner(&scriptedChat{respond: goodModel}, nil, pool, fast, nil, cfg, nil, nil)
	require.NoError(t, err)
	journeys := NewJourneyService(repositories.NewJourneyRepository(db))
	orch := NewPlanOrchestrator(fast, deep, nil, journeys, cfg.Planner.MaxDays, nil, nil)

	workers := NewTaskWorkerPool(repo, orch, taskConfig(), nil, nil)
	require.NoError(t, workers.Start(context.Background()))
	t.Cleanup(func() { _ = workers.Stop(context.Background()) })

	svc := NewTaskService(repo, workers, cfg, nil, nil)
	req := asyncRequest("e2e")
	req.Save = true
	out, err := svc.Submit(context.Background(), req)
	require.NoError(t, err)

	waitForStatus(t, repo, out.TaskID, db_models.TaskSucceeded)
	view, err := svc.Get(context.Background(), "user-1", out.TaskID)
	require.NoError(t, err)
	require.NotNil(t, view.Result)
	assert.Equal(t, "deep", view.Result.Metrics.Mode)
	assert.False(t, view.Result.Metrics.FallbackToFast)
	require.NotNil(t, view.Result.Saved)
	assert.Len(t, view.Result.Trip.DayCards, 2)
	assert.Nil(t, view.Error)
}

func TestTaskWorkerPool_PlanErrorFailsTask(t *testing.T) {
	repo := repositories.NewTaskRepository(newTestDB(t))
	orch := &stubOrchestrator{run: func(context.Context, request_models.PlanRequest) (*resp.PlanResult, error) {
		return nil, &utils.PlanFailure{TraceID: "t", Stage: StagePlan, Err: &utils.DayGenerationError{Attempts: 3, Err: utils.ErrNoProgress}}
	}}
	pool := NewTaskWorkerPool(repo, orch, taskConfig(), nil, nil)
	require.NoError(t, pool.Start(context.Background()))
	t.Cleanup(func() { _ = pool.Stop(context.Background()) })

	insertTask(t, repo, "doomed", db_models.TaskQueued)
	require.NoError(t, pool.Enqueue("doomed"))

	task := waitForStatus(t, repo, "doomed", db_models.TaskFailed)
	assert.Equal(t, "no_progress", errorCodeOf(t, task))
	assert.Nil(t, TaskViewOf(task).Result)
}

func TestTaskWorkerPool_PanicFailsTask(t *testing.T) {
	repo := repositories.NewTaskRepository(newTestDB(t))
	orch := &stubOrchestrator{run: func(context.Context, request_models.PlanRequest) (*resp.PlanResult, error) {
		panic("nil map write")
	}}
	pool := NewTaskWorkerPool(repo, orch, taskConfig(), nil, nil)
	require.NoError(t, pool.Start(context.Background()))
	t.Cleanup(func() { _ = pool.Stop(context.Background()) })

	insertTask(t, repo, "boom", db_models.TaskQueued)
	require.NoError(t, pool.Enqueue("boom"))

	task := waitForStatus(t, repo, "boom", db_models.TaskFailed)
	view := TaskViewOf(task)
	require.NotNil(t, view.Error)
	assert.Equal(t, "internal_error", view.Error.Code)
	assert.Contains(t, view.Error.Message, "nil map write")

	// The worker survives the panic.
	insertTask(t, repo, "boom-2", db_models.TaskQueued)
	require.NoError(t, pool.Enqueue("boom-2"))
	waitForStatus(t, repo, "boom-2", db_models.TaskFailed)
}

func TestTaskWorkerPool_SkipsCanceledTask(t *testing.T) {
	repo := repositories.NewTaskRepository(newTestDB(t))
	orch := &stubOrchestrator{run: okResult}
	pool := NewTaskWorkerPool(repo, orch, config.TaskConfig{Workers: 1, QueueSize: 4}, nil, nil)

	insertTask(t, repo, "gone", db_models.TaskQueued)
	require.NoError(t, pool.Enqueue("gone"))
	ok, err := repo.Cancel(context.Background(), "gone", time.Now())
	require.NoError(t, err)
	require.True(t, ok)

	insertTask(t, repo, "next", db_models.TaskRunning)
	require.NoError(t, pool.Start(context.Background()))
	t.Cleanup(func() { _ = pool.Stop(context.Background()) })

	waitForStatus(t, repo, "next", db_models.TaskFailed)
	insertTask(t, repo, "after", db_models.TaskQueued)
	require.NoError(t, pool.Enqueue("after"))
	waitForStatus(t, repo, "after", db_models.TaskSucceeded)

	orch.mu.Lock()
	defer orch.mu.Unlock()
	assert.Len(t, orch.reqs, 1)
}

func TestTaskWorkerPool_EnqueueBounds(t *testing.T) {
	repo := repositories.NewTaskRepository(newTestDB(t))
	pool := NewTaskWorkerPool(repo, &stubOrchestrator{run: okResult}, config.TaskConfig{Workers: 1, QueueSize: 1}, nil, nil)

	require.NoError(t, pool.Enqueue("a"))
	err := pool.Enqueue("b")
	assert.ErrorIs(t, err, utils.ErrQueueFull)

	require.NoError(t, pool.Stop(context.Background()))
	assert.ErrorIs(t, pool.Enqueue("c"), utils.ErrQueueFull)
}

func TestTaskWorkerPool_DrainTimeoutCancelsInFlight(t *testing.T) {
	repo := repositories.NewTaskRepository(newTestDB(t))
	started := make(chan struct{})
	orch := &stubOrchestrator{run: func(ctx context.Context, _ request_models.PlanRequest) (*resp.PlanResult, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	pool := NewTaskWorkerPool(repo, orch, config.TaskConfig{Workers: 1, QueueSize: 4, DrainTimeout: 50 * time.Millisecond}, nil, nil)
	require.NoError(t, pool.Start(context.Background()))

	insertTask(t, repo, "slow", db_models.TaskQueued)
	require.NoError(t, pool.Enqueue("slow"))
	<-started

	require.NoError(t, pool.Stop(context.Background()))
	task, err := repo.GetByID(context.Background(), "slow")
	require.NoError(t, err)
	assert.Equal(t, db_models.TaskFailed, task.Status)
}
