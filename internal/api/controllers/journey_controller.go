package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"vivuplanner/internal/services"
	"vivuplanner/pkg/utils"
)

type JourneyController struct {
	journeyService services.JourneyServiceInterface
}

func NewJourneyController(journeyService services.JourneyServiceInterface) *JourneyController {
	return &JourneyController{
		journeyService: journeyService,
	}
}

// GetDetailsInfoOfJourneyById godoc
// @Summary Get journey details by ID
// @Description Fetch a saved trip with its day cards and sub trips
// @Tags Journey
// @Produce json
// @Param journeyId path string true "Journey ID"
// @Success 200 {object} response_models.JourneyDetailResponse
// @Failure 404 {object} utils.APIResponse
// @Security BearerAuth
// @Router /journeys/{journeyId} [get]
func (j *JourneyController) GetDetailsInfoOfJourneyById(c *gin.Context) {
	journeyId := c.Param("journeyId")
	if journeyId == "" {
		utils.RespondError(c, http.StatusBadRequest, "Journey ID is required")
		return
	}

	journey, err := j.journeyService.GetDetailsInfoOfJourneyById(c.Request.Context(), c.GetString("user_id"), journeyId)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, journey, "Journey details fetched successfully")
}
