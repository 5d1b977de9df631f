package services

import (
	"context"
	"encoding/json"
	"fmt"

	"vivuplanner/internal/models/db_models"
	"vivuplanner/internal/models/response_models"
	"vivuplanner/internal/repositories"
	"vivuplanner/pkg/utils"
)

// JourneyServiceInterface is the trip store: it persists generated trips and reads them back.
type JourneyServiceInterface interface {
	SaveTrip(ctx context.Context, in repositories.SaveTripInput) (*response_models.SavedTrip, error)
	GetDetailsInfoOfJourneyById(ctx context.Context, userID, journeyId string) (*response_models.JourneyDetailResponse, error)
}

type JourneyService struct {
	journeyRepo repositories.JourneyRepository
}

func NewJourneyService(journeyRepo repositories.JourneyRepository) JourneyServiceInterface {
	return &JourneyService{
		journeyRepo: journeyRepo,
	}
}

func (j *JourneyService) SaveTrip(ctx context.Context, in repositories.SaveTripInput) (*response_models.SavedTrip, error) {
	if in.Trip == nil || len(in.Trip.DayCards) == 0 {
		return nil, utils.ErrInvalidInput
	}
	saved, err := j.journeyRepo.SaveTrip(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("%w: save trip: %v", utils.ErrDatabaseError, err)
	}
	return saved, nil
}

func (j *JourneyService) GetDetailsInfoOfJourneyById(ctx context.Context, userID, journeyId string) (*response_models.JourneyDetailResponse, error) {
	journey, err := j.journeyRepo.GetDetailsOfJourneyById(ctx, journeyId)
	if err != nil {
		return nil, fmt.Errorf("%w: load journey: %v", utils.ErrDatabaseError, err)
	}
	if journey == nil || (userID != "" && journey.UserID != userID) {
		return nil, utils.ErrJourneyNotFound
	}
	return buildJourneyDetail(journey), nil
}

func buildJourneyDetail(journey *db_models.Journey) *response_models.JourneyDetailResponse {
	out := &response_models.JourneyDetailResponse{
		ID:        journey.ID.String(),
		Title:     journey.Title,
		Mode:      journey.Mode,
		TraceID:   journey.TraceID,
		CreatedAt: journey.CreatedAt,
		DayIDs:    make([]string, 0, len(journey.Days)),
		Trip: response_models.PlanTrip{
			Destination: journey.Destination,
			StartDate:   journey.StartDate,
			EndDate:     journey.EndDate,
			DayCount:    journey.DayCount,
			DayCards:    make([]response_models.DayCard, 0, len(journey.Days)),
		},
	}

	for _, day := range journey.Days {
		out.DayIDs = append(out.DayIDs, day.ID.String())
		card := response_models.DayCard{
			DayIndex: day.DayIndex,
			Date:     day.Date,
			SubTrips: make([]response_models.SubTrip, 0, len(day.Activities)),
		}
		for _, act := range day.Activities {
			st := response_models.SubTrip{
				OrderIndex:   act.OrderIndex,
				Activity:     act.Activity,
				LocationName: act.LocationName,
				Transport:    act.Transport,
				StartTime:    act.StartTime,
				EndTime:      act.EndTime,
			}
			if act.PoiProvider != "" || act.PoiProviderID != "" {
				st.Poi = &response_models.PoiKey{Provider: act.PoiProvider, ProviderID: act.PoiProviderID}
			}
			if len(act.Metadata) > 0 {
				_ = json.Unmarshal(act.Metadata, &st.Metadata)
			}
			card.SubTrips = append(card.SubTrips, st)
		}
		out.TotalActivities += len(card.SubTrips)
		out.Trip.DayCards = append(out.Trip.DayCards, card)
	}
	return out
}
