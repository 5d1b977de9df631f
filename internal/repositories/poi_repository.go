package repositories

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"vivuplanner/internal/models/db_models"
)

type BoundingBox struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

type POIRepository interface {
	ListByDestination(ctx context.Context, destination string, limit int) ([]db_models.POI, error)
	ListInBox(ctx context.Context, box BoundingBox, category string, limit int) ([]db_models.POI, error)
	UpsertMany(ctx context.Context, pois []db_models.POI) error
}

type poiRepository struct {
	db *gorm.DB
}

func NewPOIRepository(db *gorm.DB) POIRepository {
	return &poiRepository{db: db}
}

func (r *poiRepository) ListByDestination(ctx context.Context, destination string, limit int) ([]db_models.POI, error) {
	var pois []db_models.POI
	q := r.db.WithContext(ctx).
		Where("LOWER(destination) = ?", strings.ToLower(strings.TrimSpace(destination))).
		Order("rating DESC, name ASC, provider ASC, provider_id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&pois).Error; err != nil {
		return nil, err
	}
	return pois, nil
}

func (r *poiRepository) ListInBox(ctx context.Context, box BoundingBox, category string, limit int) ([]db_models.POI, error) {
	var pois []db_models.POI
	q := r.db.WithContext(ctx).
		Where("latitude BETWEEN ? AND ?", box.MinLat, box.MaxLat).
		Where("longitude BETWEEN ? AND ?", box.MinLng, box.MaxLng)
	if category != "" {
		q = q.Where("LOWER(category) = ?", strings.ToLower(category))
	}
	q = q.Order("rating DESC, name ASC, provider ASC, provider_id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&pois).Error; err != nil {
		return nil, err
	}
	return pois, nil
}

// UpsertMany refreshes POIs by (provider, provider_id), keeping the original row id.
func (r *poiRepository) UpsertMany(ctx context.Context, pois []db_models.POI) error {
	if len(pois) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "provider"}, {Name: "provider_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "destination", "category", "address", "rating", "latitude", "longitude", "updated_at",
		}),
	}).Create(&pois).Error
}
