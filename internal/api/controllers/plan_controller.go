package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"vivuplanner/internal/models/request_models"
	"vivuplanner/internal/services"
	"vivuplanner/pkg/utils"
)

type PlanController struct {
	orchestrator services.PlanOrchestratorInterface
	tasks        services.TaskServiceInterface
}

func NewPlanController(orchestrator services.PlanOrchestratorInterface, tasks services.TaskServiceInterface) *PlanController {
	return &PlanController{
		orchestrator: orchestrator,
		tasks:        tasks,
	}
}

// CreatePlanHandler godoc
// @Summary Generate a travel plan
// @Description Fast plans and synchronous deep plans are returned inline. An async deep request
// @Description is queued as a task and answered with 202 and the task id.
// @Tags Plan
// @Accept json
// @Produce json
// @Param request body request_models.PlanRequest true "Destination, dates, mode and preferences"
// @Success 200 {object} response_models.PlanResult
// @Success 202 {object} response_models.SubmitResponse
// @Failure 400 {object} utils.APIResponse
// @Security BearerAuth
// @Router /plans [post]
func (p *PlanController) CreatePlanHandler(c *gin.Context) {
	var req request_models.PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request format")
		return
	}
	req.UserID = c.GetString("user_id")
	req.TraceID = c.GetString("trace_id")

	if req.Async && !req.IsFast() {
		submitted, err := p.tasks.Submit(c.Request.Context(), req)
		if err != nil {
			utils.HandleServiceError(c, err)
			return
		}
		utils.RespondWithStatus(c, http.StatusAccepted, submitted, "Plan task queued")
		return
	}

	// Fast plans are cheap; an async flag on them is ignored.
	req.Async = false
	result, err := p.orchestrator.Run(c.Request.Context(), req)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, result, "Travel plan created successfully")
}
