package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	dbm "vivuplanner/internal/models/db_models"
	resp "vivuplanner/internal/models/response_models"
)

type SaveTripInput struct {
	UserID  string
	Mode    string
	TraceID string
	Trip    *resp.PlanTrip
}

// JourneyRepository persists generated trips.
type JourneyRepository interface {
	SaveTrip(ctx context.Context, in SaveTripInput) (*resp.SavedTrip, error)
	GetDetailsOfJourneyById(ctx context.Context, journeyId string) (*dbm.Journey, error)
}

type journeyRepository struct {
	db *gorm.DB
}

func NewJourneyRepository(db *gorm.DB) JourneyRepository {
	return &journeyRepository{db: db}
}

func (r *journeyRepository) SaveTrip(ctx context.Context, in SaveTripInput) (*resp.SavedTrip, error) {
	if in.Trip == nil {
		return nil, errors.New("trip is required")
	}

	var saved resp.SavedTrip
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		j := dbm.Journey{
			UserID:      in.UserID,
			Title:       fmt.Sprintf("%s, %d days", in.Trip.Destination, in.Trip.DayCount),
			Destination: in.Trip.Destination,
			StartDate:   in.Trip.StartDate,
			EndDate:     in.Trip.EndDate,
			DayCount:    in.Trip.DayCount,
			Mode:        in.Mode,
			TraceID:     in.TraceID,
		}
		if err := tx.Create(&j).Error; err != nil {
			return err
		}
		saved.JourneyID = j.ID.String()

		for _, card := range in.Trip.DayCards {
			day := dbm.JourneyDay{
				JourneyID: j.ID,
				DayIndex:  card.DayIndex,
				Date:      card.Date,
			}
			if err := tx.Create(&day).Error; err != nil {
				return err
			}
			saved.DayIDs = append(saved.DayIDs, day.ID.String())

			if len(card.SubTrips) == 0 {
				continue
			}
			acts := make([]dbm.JourneyActivity, 0, len(card.SubTrips))
			for _, st := range card.SubTrips {
				meta, err := json.Marshal(st.Metadata)
				if err != nil {
					return err
				}
				act := dbm.JourneyActivity{
					JourneyDayID: day.ID,
					OrderIndex:   st.OrderIndex,
					Activity:     st.Activity,
					LocationName: st.LocationName,
					Transport:    st.Transport,
					StartTime:    st.StartTime,
					EndTime:      st.EndTime,
					Metadata:     meta,
				}
				if st.Poi != nil {
					act.PoiProvider = st.Poi.Provider
					act.PoiProviderID = st.Poi.ProviderID
				}
				acts = append(acts, act)
			}
			if err := tx.Create(&acts).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func (r *journeyRepository) GetDetailsOfJourneyById(ctx context.Context, journeyId string) (*dbm.Journey, error) {
	var journey dbm.Journey
	err := r.db.WithContext(ctx).
		Where("id = ?", journeyId).
		Preload("Days", func(db *gorm.DB) *gorm.DB { return db.Order("day_index ASC") }).
		Preload("Days.Activities", func(db *gorm.DB) *gorm.DB { return db.Order("order_index ASC") }).
		First(&journey).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &journey, nil
}
