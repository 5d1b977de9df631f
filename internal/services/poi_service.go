package services

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"vivuplanner/internal/models/db_models"
	"vivuplanner/internal/models/response_models"
	"vivuplanner/internal/repositories"
	"vivuplanner/pkg/utils"
)

// POIServiceInterface exposes the known-POI store read side.
type POIServiceInterface interface {
	GetPoisByDestination(ctx context.Context, destination string, page, pageSize int) ([]response_models.POI, error)
}

type PoiService struct {
	poiRepository repositories.POIRepository
	log           *zap.Logger
}

func NewPOIService(poiRepository repositories.POIRepository, log *zap.Logger) POIServiceInterface {
	if log == nil {
		log = zap.NewNop()
	}
	return &PoiService{
		poiRepository: poiRepository,
		log:           log,
	}
}

func (p *PoiService) GetPoisByDestination(ctx context.Context, destination string, page, pageSize int) ([]response_models.POI, error) {
	destination = strings.TrimSpace(destination)
	if destination == "" || page < 1 || pageSize < 1 {
		return nil, utils.ErrInvalidInput
	}

	// The store orders by rating; fetch through the requested page and cut it out.
	pois, err := p.poiRepository.ListByDestination(ctx, destination, page*pageSize)
	if err != nil {
		p.log.Error("list pois by destination", zap.String("destination", destination), zap.Error(err))
		return nil, utils.ErrDatabaseError
	}

	offset := (page - 1) * pageSize
	if offset >= len(pois) {
		return []response_models.POI{}, nil
	}
	pois = pois[offset:]

	out := make([]response_models.POI, 0, len(pois))
	for _, poi := range pois {
		out = append(out, toPOIResponse(poi))
	}
	return out, nil
}

func toPOIResponse(poi db_models.POI) response_models.POI {
	return response_models.POI{
		ID:          poi.ID.String(),
		Provider:    poi.Provider,
		ProviderID:  poi.ProviderID,
		Name:        poi.Name,
		Destination: poi.Destination,
		Category:    poi.Category,
		Address:     poi.Address,
		Rating:      poi.Rating,
		Latitude:    poi.Latitude,
		Longitude:   poi.Longitude,
		Tags:        []string(poi.Tags),
	}
}
