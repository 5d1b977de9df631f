package services

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"vivuplanner/internal/models/request_models"
	resp "vivuplanner/internal/models/response_models"
	"vivuplanner/pkg/utils"
)

// PlanInput is a normalized PlanRequest with its derived values.
type PlanInput struct {
	Request            request_models.PlanRequest
	Start              time.Time
	DayCount           int
	Interests          []string
	InterestsDefaulted bool
	Pace               string
}

// NormalizeRequest validates req and derives day_count and interests. It never plans.
func NormalizeRequest(req request_models.PlanRequest, maxDays int) (PlanInput, error) {
	req.Destination = strings.TrimSpace(req.Destination)
	if req.Destination == "" {
		return PlanInput{}, fmt.Errorf("%w: destination is required", utils.ErrInvalidInput)
	}

	mode := strings.ToLower(strings.TrimSpace(req.Mode))
	switch mode {
	case "":
		mode = request_models.ModeFast
	case request_models.ModeFast, request_models.ModeDeep:
	default:
		return PlanInput{}, fmt.Errorf("%w: unknown mode %q", utils.ErrInvalidInput, req.Mode)
	}
	req.Mode = mode

	if req.SeedMode != "" && req.SeedMode != request_models.SeedModeFast {
		return PlanInput{}, fmt.Errorf("%w: unknown seed_mode %q", utils.ErrInvalidInput, req.SeedMode)
	}
	if req.People < 0 {
		return PlanInput{}, fmt.Errorf("%w: people must not be negative", utils.ErrInvalidInput)
	}

	start, err := utils.ParseDate(req.StartDate)
	if err != nil {
		return PlanInput{}, err
	}
	dayCount, err := utils.DaysInclusive(req.StartDate, req.EndDate)
	if err != nil {
		return PlanInput{}, err
	}
	if err := checkDayCount(dayCount, maxDays); err != nil {
		return PlanInput{}, err
	}

	interests, defaulted, err := normalizeInterests(req.Preferences.Interests)
	if err != nil {
		return PlanInput{}, err
	}

	return PlanInput{
		Request:            req,
		Start:              start,
		DayCount:           dayCount,
		Interests:          interests,
		InterestsDefaulted: defaulted,
		Pace:               strings.ToLower(strings.TrimSpace(req.Preferences.Pace)),
	}, nil
}

func checkDayCount(dayCount, maxDays int) error {
	if dayCount <= 0 {
		return fmt.Errorf("%w: end date is before start date", utils.ErrInvalidRange)
	}
	if maxDays > 0 && dayCount > maxDays {
		return fmt.Errorf("%w: %d days requested, at most %d allowed", utils.ErrTooManyDays, dayCount, maxDays)
	}
	return nil
}

func normalizeInterests(raw []string) ([]string, bool, error) {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, it := range raw {
		v := strings.ToLower(strings.TrimSpace(it))
		if v == "" {
			continue
		}
		if len(v) > 64 {
			return nil, false, fmt.Errorf("%w: interest %q is too long", utils.ErrInvalidInput, it)
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		return append([]string(nil), request_models.DefaultInterests...), true, nil
	}
	return out, false, nil
}

// DateFor returns the calendar date of day dayIndex.
func (in PlanInput) DateFor(dayIndex int) string {
	return utils.FormatDate(in.Start.AddDate(0, 0, dayIndex))
}

// UsedPoiSet holds the POI keys already committed in a trip.
type UsedPoiSet struct {
	keys map[resp.PoiKey]struct{}
}

func NewUsedPoiSet(keys ...resp.PoiKey) *UsedPoiSet {
	s := &UsedPoiSet{keys: make(map[resp.PoiKey]struct{}, len(keys))}
	for _, k := range keys {
		s.keys[k] = struct{}{}
	}
	return s
}

func (s *UsedPoiSet) Has(k resp.PoiKey) bool {
	if s == nil {
		return false
	}
	_, ok := s.keys[k]
	return ok
}

func (s *UsedPoiSet) Add(k resp.PoiKey) {
	s.keys[k] = struct{}{}
}

func (s *UsedPoiSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

func (s *UsedPoiSet) Clone() *UsedPoiSet {
	c := NewUsedPoiSet()
	if s != nil {
		for k := range s.keys {
			c.keys[k] = struct{}{}
		}
	}
	return c
}

// Keys returns the keys in a stable order.
func (s *UsedPoiSet) Keys() []resp.PoiKey {
	if s == nil {
		return nil
	}
	out := make([]resp.PoiKey, 0, len(s.keys))
	for k := range s.keys {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
