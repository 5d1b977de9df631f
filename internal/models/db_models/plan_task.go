package db_models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	TaskQueued    = "queued"
	TaskRunning   = "running"
	TaskSucceeded = "succeeded"
	TaskFailed    = "failed"
	TaskCanceled  = "canceled"
)

// PlanTask is one durable unit of asynchronous deep planning.
type PlanTask struct {
	ID         string `gorm:"primaryKey;size:36"`
	UserID     string `gorm:"index:idx_plan_task_user_status;size:128"`
	RequestID  string `gorm:"size:128"`
	Status     string `gorm:"index:idx_plan_task_user_status;size:16"`
	Payload    datatypes.JSON
	Result     datatypes.JSON
	Error      datatypes.JSON
	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
	UpdatedAt  time.Time
}

func (t *PlanTask) IsTerminal() bool {
	return IsTerminalStatus(t.Status)
}

func IsTerminalStatus(status string) bool {
	switch status {
	case TaskSucceeded, TaskFailed, TaskCanceled:
		return true
	}
	return false
}
