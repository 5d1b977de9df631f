package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"vivuplanner/internal/services"
	"vivuplanner/pkg/utils"
)

type TaskController struct {
	tasks services.TaskServiceInterface
}

func NewTaskController(tasks services.TaskServiceInterface) *TaskController {
	return &TaskController{tasks: tasks}
}

// GetTaskHandler godoc
// @Summary Get a plan task
// @Tags Task
// @Produce json
// @Param taskId path string true "Task ID"
// @Success 200 {object} response_models.TaskView
// @Failure 404 {object} utils.APIResponse
// @Security BearerAuth
// @Router /tasks/{taskId} [get]
func (t *TaskController) GetTaskHandler(c *gin.Context) {
	taskID := c.Param("taskId")
	if taskID == "" {
		utils.RespondError(c, http.StatusBadRequest, "Task ID is required")
		return
	}

	view, err := t.tasks.Get(c.Request.Context(), c.GetString("user_id"), taskID)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, view, "Task fetched successfully")
}

// CancelTaskHandler godoc
// @Summary Cancel a queued plan task
// @Tags Task
// @Produce json
// @Param taskId path string true "Task ID"
// @Success 200 {object} response_models.TaskView
// @Failure 404 {object} utils.APIResponse
// @Failure 409 {object} utils.APIResponse
// @Security BearerAuth
// @Router /tasks/{taskId}/cancel [post]
func (t *TaskController) CancelTaskHandler(c *gin.Context) {
	taskID := c.Param("taskId")
	if taskID == "" {
		utils.RespondError(c, http.StatusBadRequest, "Task ID is required")
		return
	}

	view, err := t.tasks.Cancel(c.Request.Context(), c.GetString("user_id"), taskID)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, view, "Task canceled")
}
