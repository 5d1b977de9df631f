package services

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"vivuplanner/internal/config"
	resp "vivuplanner/internal/models/response_models"
	"vivuplanner/pkg/utils"
)

const (
	SlotMorning   = "morning"
	SlotAfternoon = "afternoon"
	SlotEvening   = "evening"

	TransportWalk    = "walk"
	TransportTransit = "transit"

	freeExplorationLabel = "Free exploration"
	freeExplorationNote  = "No unused point of interest matched this slot; explore the neighbourhood freely."
)

// FastPlan is a deterministic plan plus what the deep planner needs to reuse it as a draft.
type FastPlan struct {
	Trip      *resp.PlanTrip
	Metrics   resp.PlanMetrics
	Pool      *CandidatePool
	DraftKeys map[int][]resp.PoiKey
}

type FastPlannerInterface interface {
	Plan(ctx context.Context, in PlanInput) (*FastPlan, error)
}

type FastPlanner struct {
	pool             CandidatePoolServiceInterface
	maxDays          int
	dayStart, dayEnd int
	transitThreshold float64
}

func NewFastPlanner(pool CandidatePoolServiceInterface, cfg config.PlannerConfig) (*FastPlanner, error) {
	start, err := utils.ParseClock(cfg.DayStart)
	if err != nil {
		return nil, err
	}
	end, err := utils.ParseClock(cfg.DayEnd)
	if err != nil {
		return nil, err
	}
	if end <= start {
		return nil, fmt.Errorf("%w: day window %s-%s", utils.ErrInvalidTime, cfg.DayStart, cfg.DayEnd)
	}
	threshold := float64(cfg.TransitThreshold)
	if threshold <= 0 {
		threshold = 2000
	}
	return &FastPlanner{
		pool:             pool,
		maxDays:          cfg.MaxDays,
		dayStart:         start,
		dayEnd:           end,
		transitThreshold: threshold,
	}, nil
}

func (f *FastPlanner) Plan(ctx context.Context, in PlanInput) (*FastPlan, error) {
	if err := checkDayCount(in.DayCount, f.maxDays); err != nil {
		return nil, err
	}
	pool, err := f.pool.Build(ctx, in, 0)
	if err != nil {
		return nil, err
	}
	plan := f.PlanWithPool(in, pool)
	return plan, nil
}

// SeedFor returns the request seed, or one derived from the request fields.
func SeedFor(in PlanInput) int64 {
	if in.Request.Seed != nil {
		return *in.Request.Seed
	}
	return utils.StableSeed(
		normalizePlace(in.Request.Destination),
		in.Request.StartDate,
		in.Request.EndDate,
		strings.Join(in.Interests, ","),
		in.Pace,
	)
}

// PlanWithPool is the pure planning step: same input and pool give identical output.
func (f *FastPlanner) PlanWithPool(in PlanInput, pool *CandidatePool) *FastPlan {
	seed := SeedFor(in)
	rng := rand.New(rand.NewSource(seed))
	offset := 0
	if len(in.Interests) > 1 {
		offset = rng.Intn(len(in.Interests))
	}

	perSlot := 1
	if in.Pace == "fast" || in.Pace == "packed" || in.DayCount <= 2 {
		perSlot = 2
	}

	interestSet := make(map[string]bool, len(in.Interests))
	for _, it := range in.Interests {
		interestSet[it] = true
	}

	mid := f.dayStart + (f.dayEnd-f.dayStart)/2
	slots := []struct {
		name       string
		start, end int
	}{
		{SlotMorning, f.dayStart, mid},
		{SlotAfternoon, mid, f.dayEnd},
	}

	used := make(map[resp.PoiKey]bool)
	trip := &resp.PlanTrip{
		Destination: in.Request.Destination,
		StartDate:   in.Request.StartDate,
		EndDate:     in.Request.EndDate,
		DayCount:    in.DayCount,
		DayCards:    make([]resp.DayCard, 0, in.DayCount),
	}
	draft := make(map[int][]resp.PoiKey, in.DayCount)
	metrics := resp.PlanMetrics{
		Mode:           "fast",
		Seed:           seed,
		CandidateCount: len(pool.Candidates),
		SourceCounts:   pool.SourceCounts,
	}

	position := 0
	for day := 0; day < in.DayCount; day++ {
		card := resp.DayCard{DayIndex: day, Date: in.DateFor(day)}
		prevCategory := ""
		prevPoint := pool.Center.Point

		for _, slot := range slots {
			length := (slot.end - slot.start) / perSlot
			for k := 0; k < perSlot; k++ {
				interest := ""
				if len(in.Interests) > 0 {
					interest = in.Interests[(offset+position)%len(in.Interests)]
				}
				position++

				start := slot.start + k*length
				end := start + length
				if k == perSlot-1 {
					end = slot.end
				}

				st := resp.SubTrip{
					OrderIndex: len(card.SubTrips),
					StartTime:  utils.FormatClock(start),
					EndTime:    utils.FormatClock(end),
					Metadata: resp.SubTripMetadata{
						Slot:            slot.name,
						DurationMinutes: end - start,
					},
				}

				c := pickCandidate(pool.Candidates, used, interest, interestSet, prevCategory)
				if c == nil {
					st.Activity = freeExplorationLabel
					st.LocationName = in.Request.Destination
					st.Transport = TransportWalk
					st.Metadata.Note = freeExplorationNote
					metrics.Placeholders++
					prevCategory = ""
				} else {
					key := c.Key()
					used[key] = true
					snapshot := *c
					point := GeoPoint{Lat: c.Lat, Lng: c.Lng}

					st.Activity = activityLabel(c.Category, c.Name)
					st.Poi = &key
					st.LocationName = c.Name
					st.Transport = f.transportBetween(prevPoint, point)
					st.Metadata.Poi = &snapshot
					prevCategory = c.Category
					prevPoint = point
					draft[day] = append(draft[day], key)
				}
				card.SubTrips = append(card.SubTrips, st)
				metrics.Generated++
			}
		}
		trip.DayCards = append(trip.DayCards, card)
	}

	return &FastPlan{Trip: trip, Metrics: metrics, Pool: pool, DraftKeys: draft}
}

// pickCandidate applies the selection cascade over the ranked pool.
func pickCandidate(pool []resp.CandidatePoi, used map[resp.PoiKey]bool, interest string, interests map[string]bool, prevCategory string) *resp.CandidatePoi {
	match := func(pred func(c *resp.CandidatePoi) bool) *resp.CandidatePoi {
		for i := range pool {
			c := &pool[i]
			if used[c.Key()] {
				continue
			}
			if pred(c) {
				return c
			}
		}
		return nil
	}
	differs := func(c *resp.CandidatePoi) bool { return prevCategory == "" || c.Category != prevCategory }

	if c := match(func(c *resp.CandidatePoi) bool { return c.Category == interest && differs(c) }); c != nil {
		return c
	}
	if c := match(func(c *resp.CandidatePoi) bool { return interests[c.Category] && differs(c) }); c != nil {
		return c
	}
	if c := match(differs); c != nil {
		return c
	}
	return match(func(*resp.CandidatePoi) bool { return true })
}

func (f *FastPlanner) transportBetween(a, b GeoPoint) string {
	if HaversineMeters(a, b) > f.transitThreshold {
		return TransportTransit
	}
	return TransportWalk
}

func activityLabel(category, name string) string {
	switch category {
	case "food":
		return "Eat at " + name
	case "cafe":
		return "Coffee at " + name
	case "nature", "beach":
		return "Explore " + name
	case "shopping":
		return "Shop at " + name
	case "nightlife":
		return "Evening at " + name
	default:
		return "Visit " + name
	}
}
