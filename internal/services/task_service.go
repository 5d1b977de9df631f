package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
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

// taskNamespace scopes deterministic task ids derived from (user id, request id).
var taskNamespace = uuid.MustParse("6f1c2a4e-8d3b-5c7a-9e21-4b5d6c7e8f90")

// TaskQueue accepts task ids for execution without blocking.
type TaskQueue interface {
	Enqueue(taskID string) error
}

type TaskServiceInterface interface {
	Submit(ctx context.Context, req request_models.PlanRequest) (*resp.SubmitResponse, error)
	Get(ctx context.Context, userID, taskID string) (*resp.TaskView, error)
	Cancel(ctx context.Context, userID, taskID string) (*resp.TaskView, error)
}

type TaskService struct {
	repo    repositories.TaskRepository
	queue   TaskQueue
	cfg     config.TaskConfig
	maxDays int
	metrics *telemetry.Metrics
	log     *zap.Logger
	now     func() time.Time

	// mu serializes the check-then-create of Submit within this process.
	mu sync.Mutex
}

func NewTaskService(repo repositories.TaskRepository, queue TaskQueue, cfg config.Config, metrics *telemetry.Metrics, log *zap.Logger) *TaskService {
	if log == nil {
		log = zap.NewNop()
	}
	return &TaskService{
		repo:    repo,
		queue:   queue,
		cfg:     cfg.Tasks,
		maxDays: cfg.Planner.MaxDays,
		metrics: metrics,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// TaskIDFor returns the deterministic id for an idempotency key, or a random one.
func TaskIDFor(userID, requestID string) string {
	if requestID == "" {
		return uuid.NewString()
	}
	return uuid.NewSHA1(taskNamespace, []byte(userID+"\x00"+requestID)).String()
}

func (s *TaskService) Submit(ctx context.Context, req request_models.PlanRequest) (*resp.SubmitResponse, error) {
	if req.UserID == "" {
		return nil, utils.ErrUnauthorized
	}
	in, err := NormalizeRequest(req, s.maxDays)
	if err != nil {
		return nil, err
	}
	stored := in.Request
	stored.Mode = request_models.ModeDeep
	stored.Async = true
	payload, err := stored.CanonicalPayload()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrInvalidInput, err)
	}
	id := TaskIDFor(stored.UserID, stored.RequestID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if stored.RequestID != "" {
		existing, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
		}
		if existing != nil {
			return s.replay(existing, payload)
		}
	}

	active, err := s.repo.CountActiveByUser(ctx, stored.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}
	if limit := s.cfg.PerUserLimit; limit > 0 && active >= int64(limit) {
		s.metrics.RecordTaskEvent("rejected_cap")
		return nil, fmt.Errorf("%w: %d of %d active", utils.ErrTooManyActiveTasks, active, limit)
	}

	task := &db_models.PlanTask{
		ID:        id,
		UserID:    stored.UserID,
		RequestID: stored.RequestID,
		Status:    db_models.TaskQueued,
		Payload:   datatypes.JSON(payload),
		CreatedAt: s.now(),
	}
	created, err := s.repo.Create(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}
	if !created {
		// Another process inserted the same id first.
		existing, err := s.repo.GetByID(ctx, id)
		if err != nil || existing == nil {
			return nil, fmt.Errorf("%w: task %s vanished after conflict", utils.ErrDatabaseError, id)
		}
		return s.replay(existing, payload)
	}

	if err := s.queue.Enqueue(id); err != nil {
		taskErr := encodeTaskError(err)
		if _, ferr := s.repo.Fail(ctx, id, []string{db_models.TaskQueued}, taskErr, s.now()); ferr != nil {
			s.log.Error("failed to mark unqueued task", zap.String("task_id", id), zap.Error(ferr))
		}
		s.metrics.RecordTaskEvent("rejected_queue_full")
		return nil, err
	}

	s.metrics.RecordTaskEvent("submitted")
	s.log.Info("task submitted",
		zap.String("task_id", id),
		zap.String("user_id", stored.UserID),
		zap.String("trace_id", req.TraceID))
	return &resp.SubmitResponse{TaskID: id, Status: db_models.TaskQueued}, nil
}

// replay returns the existing task when its stored payload equals payload.
func (s *TaskService) replay(existing *db_models.PlanTask, payload []byte) (*resp.SubmitResponse, error) {
	var prev request_models.PlanRequest
	if err := json.Unmarshal(existing.Payload, &prev); err != nil {
		return nil, fmt.Errorf("%w: stored payload unreadable", utils.ErrIdempotencyConflict)
	}
	prevPayload, err := prev.CanonicalPayload()
	if err != nil || !bytes.Equal(prevPayload, payload) {
		s.metrics.RecordTaskEvent("conflict")
		return nil, fmt.Errorf("%w: task %s", utils.ErrIdempotencyConflict, existing.ID)
	}
	s.metrics.RecordTaskEvent("replayed")
	return &resp.SubmitResponse{TaskID: existing.ID, Status: existing.Status, Replayed: true}, nil
}

func (s *TaskService) Get(ctx context.Context, userID, taskID string) (*resp.TaskView, error) {
	task, err := s.owned(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	return TaskViewOf(task), nil
}

// Cancel moves a queued task to canceled. A claimed task runs to completion.
func (s *TaskService) Cancel(ctx context.Context, userID, taskID string) (*resp.TaskView, error) {
	task, err := s.owned(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if task.IsTerminal() {
		return nil, fmt.Errorf("%w: task is %s", utils.ErrTaskNotCancelable, task.Status)
	}
	ok, err := s.repo.Cancel(ctx, task.ID, s.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: task is %s", utils.ErrTaskNotCancelable, task.Status)
	}
	s.metrics.RecordTaskEvent(db_models.TaskCanceled)
	return s.Get(ctx, userID, taskID)
}

func (s *TaskService) owned(ctx context.Context, userID, taskID string) (*db_models.PlanTask, error) {
	task, err := s.repo.GetByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}
	if task == nil || task.UserID != userID {
		return nil, utils.ErrTaskNotFound
	}
	return task, nil
}

func TaskViewOf(task *db_models.PlanTask) *resp.TaskView {
	view := &resp.TaskView{
		TaskID:     task.ID,
		Status:     task.Status,
		RequestID:  task.RequestID,
		CreatedAt:  task.CreatedAt,
		StartedAt:  task.StartedAt,
		FinishedAt: task.FinishedAt,
	}
	if len(task.Result) > 0 && task.Status == db_models.TaskSucceeded {
		var result resp.PlanResult
		if err := json.Unmarshal(task.Result, &result); err == nil {
			view.Result = &result
		}
	}
	if len(task.Error) > 0 {
		var taskErr resp.TaskError
		if err := json.Unmarshal(task.Error, &taskErr); err == nil {
			view.Error = &taskErr
		}
	}
	return view
}

func encodeTaskError(err error) datatypes.JSON {
	te := resp.TaskError{
		Code:    utils.ErrorCode(err),
		Message: err.Error(),
		Issues:  utils.IssuesOf(err),
	}
	raw, mErr := json.Marshal(te)
	if mErr != nil {
		raw, _ = json.Marshal(resp.TaskError{Code: "internal_error", Message: err.Error()})
	}
	return datatypes.JSON(raw)
}
