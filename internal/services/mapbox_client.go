package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
	resp "vivuplanner/internal/models/response_models"
)

// PlaceProvider is the external geocoding and category search backend.
type PlaceProvider interface {
	Forward(ctx context.Context, query string) (GeoPoint, bool, error)
	SearchCategory(ctx context.Context, near GeoPoint, category string, limit int) ([]resp.CandidatePoi, error)
}

// MapboxClient talks to the Mapbox geocoding and search box APIs.
type MapboxClient struct {
	HTTP        *http.Client
	AccessToken string
	BaseURL     string
	limiter     *rate.Limiter
}

func NewMapboxClient(token string, timeout time.Duration) (*MapboxClient, error) {
	if token == "" {
		return nil, errors.New("MAPBOX_ACCESS_TOKEN is empty")
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &MapboxClient{
		HTTP:        &http.Client{Timeout: timeout},
		AccessToken: token,
		BaseURL:     "https://api.mapbox.com",
		limiter:     rate.NewLimiter(rate.Limit(10), 10),
	}, nil
}

func (c *MapboxClient) get(ctx context.Context, path string, q url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	q.Set("access_token", c.AccessToken)
	u := strings.TrimRight(c.BaseURL, "/") + path + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	res, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("mapbox http error: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		return fmt.Errorf("mapbox bad status: %s", res.Status)
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("mapbox decode: %w", err)
	}
	return nil
}

func (c *MapboxClient) Forward(ctx context.Context, query string) (GeoPoint, bool, error) {
	q := url.Values{}
	q.Set("limit", "1")
	q.Set("types", "place,locality,region")

	var payload struct {
		Features []struct {
			Center []float64 `json:"center"` // [lng, lat]
		} `json:"features"`
	}
	path := "/geocoding/v5/mapbox.places/" + url.PathEscape(query) + ".json"
	if err := c.get(ctx, path, q, &payload); err != nil {
		return GeoPoint{}, false, err
	}
	if len(payload.Features) == 0 || len(payload.Features[0].Center) < 2 {
		return GeoPoint{}, false, nil
	}
	center := payload.Features[0].Center
	return GeoPoint{Lat: center[1], Lng: center[0]}, true, nil
}

func (c *MapboxClient) SearchCategory(ctx context.Context, near GeoPoint, category string, limit int) ([]resp.CandidatePoi, error) {
	mbCategory, ok := mapboxCategory[category]
	if !ok {
		mbCategory = category
	}
	if limit <= 0 || limit > 25 {
		limit = 25
	}

	q := url.Values{}
	q.Set("proximity", fmt.Sprintf("%f,%f", near.Lng, near.Lat))
	q.Set("limit", fmt.Sprintf("%d", limit))

	var payload struct {
		Features []struct {
			Geometry struct {
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties struct {
				Name        string `json:"name"`
				MapboxID    string `json:"mapbox_id"`
				FullAddress string `json:"full_address"`
			} `json:"properties"`
		} `json:"features"`
	}
	if err := c.get(ctx, "/search/searchbox/v1/category/"+url.PathEscape(mbCategory), q, &payload); err != nil {
		return nil, err
	}

	out := make([]resp.CandidatePoi, 0, len(payload.Features))
	for _, f := range payload.Features {
		if f.Properties.MapboxID == "" || len(f.Geometry.Coordinates) < 2 {
			continue
		}
		p := GeoPoint{Lat: f.Geometry.Coordinates[1], Lng: f.Geometry.Coordinates[0]}
		out = append(out, resp.CandidatePoi{
			Provider:   "mapbox",
			ProviderID: f.Properties.MapboxID,
			Name:       f.Properties.Name,
			Category:   category,
			Address:    f.Properties.FullAddress,
			Lat:        p.Lat,
			Lng:        p.Lng,
			DistanceM:  HaversineMeters(near, p),
		})
	}
	return out, nil
}
