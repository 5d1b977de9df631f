package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"vivuplanner/internal/models/db_models"
)

// TaskRepository is the durable task store. Every status transition is a conditional
// UPDATE on the expected prior status so concurrent workers never double-claim.
type TaskRepository interface {
	// Create inserts task unless a row with the same id exists; created reports which happened.
	Create(ctx context.Context, task *db_models.PlanTask) (created bool, err error)
	GetByID(ctx context.Context, id string) (*db_models.PlanTask, error)
	CountActiveByUser(ctx context.Context, userID string) (int64, error)
	ListByStatus(ctx context.Context, statuses ...string) ([]db_models.PlanTask, error)

	ClaimQueued(ctx context.Context, id string, now time.Time) (bool, error)
	Complete(ctx context.Context, id string, result datatypes.JSON, now time.Time) (bool, error)
	Fail(ctx context.Context, id string, from []string, taskErr datatypes.JSON, now time.Time) (bool, error)
	Cancel(ctx context.Context, id string, now time.Time) (bool, error)
}

type taskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

func (r *taskRepository) Create(ctx context.Context, task *db_models.PlanTask) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(task)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *taskRepository) GetByID(ctx context.Context, id string) (*db_models.PlanTask, error) {
	var task db_models.PlanTask
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &task, nil
}

func (r *taskRepository) CountActiveByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db_models.PlanTask{}).
		Where("user_id = ? AND status IN ?", userID, []string{db_models.TaskQueued, db_models.TaskRunning}).
		Count(&count).Error
	return count, err
}

func (r *taskRepository) ListByStatus(ctx context.Context, statuses ...string) ([]db_models.PlanTask, error) {
	var tasks []db_models.PlanTask
	err := r.db.WithContext(ctx).
		Where("status IN ?", statuses).
		Order("created_at ASC").
		Find(&tasks).Error
	return tasks, err
}

func (r *taskRepository) transition(ctx context.Context, id string, from []string, updates map[string]interface{}) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&db_models.PlanTask{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *taskRepository) ClaimQueued(ctx context.Context, id string, now time.Time) (bool, error) {
	return r.transition(ctx, id, []string{db_models.TaskQueued}, map[string]interface{}{
		"status":     db_models.TaskRunning,
		"started_at": now,
		"updated_at": now,
	})
}

func (r *taskRepository) Complete(ctx context.Context, id string, result datatypes.JSON, now time.Time) (bool, error) {
	return r.transition(ctx, id, []string{db_models.TaskRunning}, map[string]interface{}{
		"status":      db_models.TaskSucceeded,
		"result":      result,
		"finished_at": now,
		"updated_at":  now,
	})
}

func (r *taskRepository) Fail(ctx context.Context, id string, from []string, taskErr datatypes.JSON, now time.Time) (bool, error) {
	return r.transition(ctx, id, from, map[string]interface{}{
		"status":      db_models.TaskFailed,
		"error":       taskErr,
		"finished_at": now,
		"updated_at":  now,
	})
}

func (r *taskRepository) Cancel(ctx context.Context, id string, now time.Time) (bool, error) {
	return r.transition(ctx, id, []string{db_models.TaskQueued}, map[string]interface{}{
		"status":      db_models.TaskCanceled,
		"finished_at": now,
		"updated_at":  now,
	})
}
