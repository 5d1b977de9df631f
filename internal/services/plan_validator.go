package services

import (
	"fmt"
	"sort"

	resp "vivuplanner/internal/models/response_models"
	"vivuplanner/pkg/utils"
)

const (
	IssueEmptyDay         = "empty_day"
	IssueBelowMinimum     = "below_minimum"
	IssueDuplicateOrder   = "duplicate_order_index"
	IssueNonContiguous    = "non_contiguous_order_index"
	IssueMissingTimes     = "missing_times"
	IssueInvalidTime      = "invalid_time"
	IssueOverlap          = "overlap"
	IssueDuplicatePoi     = "duplicate_poi"
	IssuePoiReused        = "poi_reused"
	IssueDayCount         = "day_count_mismatch"
	IssueDayIndex         = "day_index_mismatch"
	IssueDateMismatch     = "date_mismatch"
	IssueMissingTrip      = "missing_trip"
	IssueDestinationBlank = "destination_missing"
)

type dayCheck struct {
	minSubTrips  int
	requireTimes bool
}

func intPtr(v int) *int { return &v }

// checkDay inspects one day's sub-trips for ordering, timing and in-day POI duplicates.
func checkDay(card resp.DayCard, opts dayCheck) []utils.Issue {
	day := card.DayIndex
	var issues []utils.Issue
	add := func(code string, order *int, format string, args ...any) {
		issues = append(issues, utils.Issue{Code: code, DayIndex: day, OrderIndex: order, Message: fmt.Sprintf(format, args...)})
	}

	n := len(card.SubTrips)
	if n == 0 {
		add(IssueEmptyDay, nil, "day has no sub-trips")
	}
	if opts.minSubTrips > 0 && n > 0 && n < opts.minSubTrips {
		add(IssueBelowMinimum, nil, "day has %d sub-trips, at least %d required", n, opts.minSubTrips)
	}

	seenOrder := make(map[int]bool, n)
	for _, st := range card.SubTrips {
		if seenOrder[st.OrderIndex] {
			add(IssueDuplicateOrder, intPtr(st.OrderIndex), "order_index %d appears more than once", st.OrderIndex)
		}
		seenOrder[st.OrderIndex] = true
	}
	for i := 0; i < n; i++ {
		if !seenOrder[i] {
			add(IssueNonContiguous, intPtr(i), "order_index %d is missing", i)
		}
	}

	type window struct {
		order      int
		start, end int
	}
	windows := make([]window, 0, n)
	for _, st := range card.SubTrips {
		hasStart, hasEnd := st.StartTime != "", st.EndTime != ""
		if hasStart != hasEnd || (opts.requireTimes && !hasStart) {
			add(IssueMissingTimes, intPtr(st.OrderIndex), "start and end time are both required")
			continue
		}
		if !hasStart {
			continue
		}
		s, errS := utils.ParseClock(st.StartTime)
		e, errE := utils.ParseClock(st.EndTime)
		if errS != nil || errE != nil {
			add(IssueInvalidTime, intPtr(st.OrderIndex), "unparseable time window %s-%s", st.StartTime, st.EndTime)
			continue
		}
		if e <= s {
			add(IssueInvalidTime, intPtr(st.OrderIndex), "end %s is not after start %s", st.EndTime, st.StartTime)
			continue
		}
		windows = append(windows, window{order: st.OrderIndex, start: s, end: e})
	}
	sort.SliceStable(windows, func(i, j int) bool { return windows[i].start < windows[j].start })
	for i := 1; i < len(windows); i++ {
		if windows[i].start < windows[i-1].end {
			add(IssueOverlap, intPtr(windows[i].order), "overlaps order_index %d", windows[i-1].order)
		}
	}

	seenPoi := make(map[resp.PoiKey]int, n)
	for _, st := range card.SubTrips {
		if st.Poi == nil {
			continue
		}
		if prev, dup := seenPoi[*st.Poi]; dup {
			add(IssueDuplicatePoi, intPtr(st.OrderIndex), "poi %s already used at order_index %d", st.Poi, prev)
			continue
		}
		seenPoi[*st.Poi] = st.OrderIndex
	}
	return issues
}

// verifyCommittedDay is the structural gate a generated day must pass before it joins the trip.
func verifyCommittedDay(card resp.DayCard, dayIndex int, date string, committed *UsedPoiSet) []utils.Issue {
	var issues []utils.Issue
	if card.DayIndex != dayIndex {
		issues = append(issues, utils.Issue{Code: IssueDayIndex, DayIndex: dayIndex,
			Message: fmt.Sprintf("day_index is %d, expected %d", card.DayIndex, dayIndex)})
	}
	if card.Date != date {
		issues = append(issues, utils.Issue{Code: IssueDateMismatch, DayIndex: dayIndex,
			Message: fmt.Sprintf("date is %s, expected %s", card.Date, date)})
	}
	issues = append(issues, checkDay(card, dayCheck{})...)
	for _, st := range card.SubTrips {
		if st.Poi != nil && committed.Has(*st.Poi) {
			issues = append(issues, utils.Issue{Code: IssuePoiReused, DayIndex: dayIndex, OrderIndex: intPtr(st.OrderIndex),
				Message: fmt.Sprintf("poi %s is already used earlier in the trip", st.Poi)})
		}
	}
	return issues
}

type PlanValidatorInterface interface {
	Validate(in PlanInput, trip *resp.PlanTrip) error
}

type PlanValidator struct{}

func NewPlanValidator() PlanValidatorInterface {
	return PlanValidator{}
}

// Validate returns a *utils.PlanValidationError carrying every issue found, or nil.
func (PlanValidator) Validate(in PlanInput, trip *resp.PlanTrip) error {
	issues := ValidatePlan(in, trip)
	if len(issues) == 0 {
		return nil
	}
	return &utils.PlanValidationError{Issues: issues}
}

// ValidatePlan checks a produced trip against the request it was built for.
func ValidatePlan(in PlanInput, trip *resp.PlanTrip) []utils.Issue {
	if trip == nil {
		return []utils.Issue{{Code: IssueMissingTrip, Message: "no trip produced"}}
	}

	var issues []utils.Issue
	if trip.Destination == "" {
		issues = append(issues, utils.Issue{Code: IssueDestinationBlank, Message: "trip has no destination"})
	}
	if trip.DayCount != len(trip.DayCards) || trip.DayCount != in.DayCount {
		issues = append(issues, utils.Issue{Code: IssueDayCount,
			Message: fmt.Sprintf("day_count=%d, day_cards=%d, requested=%d", trip.DayCount, len(trip.DayCards), in.DayCount)})
	}

	used := NewUsedPoiSet()
	for i, card := range trip.DayCards {
		if card.DayIndex != i {
			issues = append(issues, utils.Issue{Code: IssueDayIndex, DayIndex: card.DayIndex,
				Message: fmt.Sprintf("day at position %d has day_index %d", i, card.DayIndex)})
		}
		if want := in.DateFor(i); card.Date != want {
			issues = append(issues, utils.Issue{Code: IssueDateMismatch, DayIndex: card.DayIndex,
				Message: fmt.Sprintf("date is %s, expected %s", card.Date, want)})
		}
		issues = append(issues, checkDay(card, dayCheck{})...)
		for _, st := range card.SubTrips {
			if st.Poi == nil {
				continue
			}
			if used.Has(*st.Poi) {
				issues = append(issues, utils.Issue{Code: IssuePoiReused, DayIndex: card.DayIndex, OrderIndex: intPtr(st.OrderIndex),
					Message: fmt.Sprintf("poi %s appears more than once in the trip", st.Poi)})
				continue
			}
			used.Add(*st.Poi)
		}
	}
	return issues
}
