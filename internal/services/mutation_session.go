package services

import (
	"fmt"
	"sort"
	"strings"

	resp "vivuplanner/internal/models/response_models"
	"vivuplanner/pkg/utils"
)

const (
	PolicySequential = "sequential"
	PolicySlot       = "slot"

	defaultDurationMinutes = 90
)

var slotRank = map[string]int{SlotMorning: 0, SlotAfternoon: 1, SlotEvening: 2}

// MutationSession is the per-day scratchpad the deep planner edits through tools.
// The committed set is read-only here; keys the session binds are tracked in reserved.
type MutationSession struct {
	card        resp.DayCard
	candidates  []resp.CandidatePoi
	byKey       map[resp.PoiKey]int
	committed   *UsedPoiSet
	reserved    map[resp.PoiKey]struct{}
	slotStart   map[string]int
	minSubTrips int
	transitM    float64
	center      GeoPoint
}

type SessionOptions struct {
	DayIndex    int
	Date        string
	Candidates  []resp.CandidatePoi
	Committed   *UsedPoiSet
	DayStart    int
	DayEnd      int
	MinSubTrips int
	TransitM    float64
	Center      GeoPoint
}

func NewMutationSession(opts SessionOptions) *MutationSession {
	byKey := make(map[resp.PoiKey]int, len(opts.Candidates))
	for i, c := range opts.Candidates {
		if _, dup := byKey[c.Key()]; !dup {
			byKey[c.Key()] = i
		}
	}
	if opts.TransitM <= 0 {
		opts.TransitM = 2000
	}
	return &MutationSession{
		card:       resp.DayCard{DayIndex: opts.DayIndex, Date: opts.Date, SubTrips: []resp.SubTrip{}},
		candidates: opts.Candidates,
		byKey:      byKey,
		committed:  opts.Committed,
		reserved:   make(map[resp.PoiKey]struct{}),
		slotStart: map[string]int{
			SlotMorning:   opts.DayStart,
			SlotAfternoon: opts.DayStart + (opts.DayEnd-opts.DayStart)/2,
			SlotEvening:   opts.DayEnd,
		},
		minSubTrips: opts.MinSubTrips,
		transitM:    opts.TransitM,
		center:      opts.Center,
	}
}

func (s *MutationSession) DayIndex() int { return s.card.DayIndex }

// Day returns a copy of the in-progress day.
func (s *MutationSession) Day() resp.DayCard {
	out := s.card
	out.SubTrips = append([]resp.SubTrip(nil), s.card.SubTrips...)
	return out
}

func (s *MutationSession) Candidates() []resp.CandidatePoi { return s.candidates }

func (s *MutationSession) Reserved() []resp.PoiKey {
	keys := make([]resp.PoiKey, 0, len(s.reserved))
	for k := range s.reserved {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

func (s *MutationSession) checkDay(day int) error {
	if day != s.card.DayIndex {
		return fmt.Errorf("%w: session is for day %d, got %d", utils.ErrDayMismatch, s.card.DayIndex, day)
	}
	return nil
}

// resolve accepts "provider:provider_id" or a bare provider_id.
func (s *MutationSession) resolve(ref string) (*resp.CandidatePoi, error) {
	ref = strings.TrimSpace(ref)
	if provider, id, ok := strings.Cut(ref, ":"); ok {
		if i, found := s.byKey[resp.PoiKey{Provider: provider, ProviderID: id}]; found {
			return &s.candidates[i], nil
		}
	}
	for i := range s.candidates {
		if s.candidates[i].ProviderID == ref {
			return &s.candidates[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", utils.ErrPoiNotFound, ref)
}

func (s *MutationSession) isTaken(k resp.PoiKey) bool {
	if s.committed.Has(k) {
		return true
	}
	_, ok := s.reserved[k]
	return ok
}

func (s *MutationSession) latestEnd() int {
	latest := -1
	for _, st := range s.card.SubTrips {
		if st.EndTime == "" {
			continue
		}
		if e, err := utils.ParseClock(st.EndTime); err == nil && e > latest {
			latest = e
		}
	}
	return latest
}

func (s *MutationSession) prevPoint() GeoPoint {
	for i := len(s.card.SubTrips) - 1; i >= 0; i-- {
		if p := s.card.SubTrips[i].Metadata.Poi; p != nil {
			return GeoPoint{Lat: p.Lat, Lng: p.Lng}
		}
	}
	return s.center
}

type AddSubTripArgs struct {
	Day       int    `json:"day"`
	Slot      string `json:"slot"`
	PoiRef    string `json:"poi_ref"`
	Start     string `json:"start,omitempty"`
	Duration  int    `json:"duration"`
	Transport string `json:"transport,omitempty"`
	Activity  string `json:"activity,omitempty"`
}

func (s *MutationSession) AddSubTrip(args AddSubTripArgs) (resp.SubTrip, error) {
	if err := s.checkDay(args.Day); err != nil {
		return resp.SubTrip{}, err
	}
	slot := strings.ToLower(strings.TrimSpace(args.Slot))
	slotStart, ok := s.slotStart[slot]
	if !ok {
		return resp.SubTrip{}, fmt.Errorf("%w: %q", utils.ErrInvalidSlot, args.Slot)
	}
	c, err := s.resolve(args.PoiRef)
	if err != nil {
		return resp.SubTrip{}, err
	}
	key := c.Key()
	if s.isTaken(key) {
		return resp.SubTrip{}, fmt.Errorf("%w: %s", utils.ErrPoiAlreadyUsed, key)
	}

	duration := args.Duration
	if duration < 0 {
		return resp.SubTrip{}, fmt.Errorf("%w: duration must be positive", utils.ErrInvalidInput)
	}
	if duration == 0 {
		duration = defaultDurationMinutes
	}

	var start int
	if args.Start != "" {
		start, err = utils.ParseClock(args.Start)
		if err != nil {
			return resp.SubTrip{}, err
		}
	} else {
		start = slotStart
		if latest := s.latestEnd(); latest > start {
			start = latest
		}
	}
	end := start + duration
	if end >= 24*60 {
		return resp.SubTrip{}, fmt.Errorf("%w: %s + %d minutes runs past midnight", utils.ErrInvalidTime, utils.FormatClock(start), duration)
	}

	point := GeoPoint{Lat: c.Lat, Lng: c.Lng}
	transport := strings.TrimSpace(args.Transport)
	if transport == "" {
		transport = TransportWalk
		if HaversineMeters(s.prevPoint(), point) > s.transitM {
			transport = TransportTransit
		}
	}
	label := strings.TrimSpace(args.Activity)
	if label == "" {
		label = activityLabel(c.Category, c.Name)
	}

	snapshot := *c
	st := resp.SubTrip{
		OrderIndex:   len(s.card.SubTrips),
		Activity:     label,
		Poi:          &key,
		LocationName: c.Name,
		Transport:    transport,
		StartTime:    utils.FormatClock(start),
		EndTime:      utils.FormatClock(end),
		Metadata: resp.SubTripMetadata{
			Slot:            slot,
			DurationMinutes: duration,
			Poi:             &snapshot,
		},
	}
	s.card.SubTrips = append(s.card.SubTrips, st)
	s.reserved[key] = struct{}{}
	return st, nil
}

// AdjustTimes re-lays out windows without touching order_index or POI bindings.
func (s *MutationSession) AdjustTimes(day int, policy string) ([]resp.SubTrip, error) {
	if err := s.checkDay(day); err != nil {
		return nil, err
	}

	idx := make([]int, len(s.card.SubTrips))
	for i := range idx {
		idx[i] = i
	}
	byOrder := func(a, b int) bool { return s.card.SubTrips[a].OrderIndex < s.card.SubTrips[b].OrderIndex }

	switch strings.ToLower(strings.TrimSpace(policy)) {
	case PolicySequential:
		sort.SliceStable(idx, func(i, j int) bool { return byOrder(idx[i], idx[j]) })
	case PolicySlot:
		sort.SliceStable(idx, func(i, j int) bool {
			ri, rj := s.rankOf(idx[i]), s.rankOf(idx[j])
			if ri != rj {
				return ri < rj
			}
			return byOrder(idx[i], idx[j])
		})
	default:
		return nil, fmt.Errorf("%w: %q", utils.ErrInvalidPolicy, policy)
	}

	type window struct{ start, end int }
	layout := make(map[int]window, len(idx))
	cursor := -1
	for _, i := range idx {
		st := s.card.SubTrips[i]
		floor, ok := s.slotStart[st.Metadata.Slot]
		if !ok {
			floor = s.slotStart[SlotMorning]
		}
		start := floor
		if cursor > start {
			start = cursor
		}
		end := start + s.durationOf(st)
		if end >= 24*60 {
			return nil, fmt.Errorf("%w: order %d would end past midnight", utils.ErrInvalidTime, st.OrderIndex)
		}
		layout[i] = window{start, end}
		cursor = end
	}

	for i, w := range layout {
		s.card.SubTrips[i].StartTime = utils.FormatClock(w.start)
		s.card.SubTrips[i].EndTime = utils.FormatClock(w.end)
	}
	return s.Day().SubTrips, nil
}

func (s *MutationSession) rankOf(i int) int {
	if r, ok := slotRank[s.card.SubTrips[i].Metadata.Slot]; ok {
		return r
	}
	return len(slotRank)
}

func (s *MutationSession) durationOf(st resp.SubTrip) int {
	if st.Metadata.DurationMinutes > 0 {
		return st.Metadata.DurationMinutes
	}
	if st.StartTime != "" && st.EndTime != "" {
		a, errA := utils.ParseClock(st.StartTime)
		b, errB := utils.ParseClock(st.EndTime)
		if errA == nil && errB == nil && b > a {
			return b - a
		}
	}
	return 60
}

func (s *MutationSession) ReplacePoi(day, orderIndex int, poiRef string) (resp.SubTrip, error) {
	if err := s.checkDay(day); err != nil {
		return resp.SubTrip{}, err
	}
	target := -1
	for i, st := range s.card.SubTrips {
		if st.OrderIndex == orderIndex {
			target = i
			break
		}
	}
	if target < 0 {
		return resp.SubTrip{}, fmt.Errorf("%w: order_index %d", utils.ErrSubTripNotFound, orderIndex)
	}
	c, err := s.resolve(poiRef)
	if err != nil {
		return resp.SubTrip{}, err
	}

	st := &s.card.SubTrips[target]
	key := c.Key()
	if st.Poi != nil && *st.Poi == key {
		return *st, nil
	}
	if s.isTaken(key) {
		return resp.SubTrip{}, fmt.Errorf("%w: %s", utils.ErrPoiAlreadyUsed, key)
	}

	if st.Poi != nil {
		delete(s.reserved, *st.Poi)
	}
	s.reserved[key] = struct{}{}

	snapshot := *c
	st.Poi = &key
	st.LocationName = c.Name
	st.Activity = activityLabel(c.Category, c.Name)
	st.Metadata.Poi = &snapshot
	return *st, nil
}

type DayValidation struct {
	IssueCount int           `json:"issue_count"`
	Issues     []utils.Issue `json:"issues"`
}

func (s *MutationSession) ValidateDay(day int) (DayValidation, error) {
	if err := s.checkDay(day); err != nil {
		return DayValidation{}, err
	}
	issues := checkDay(s.card, dayCheck{minSubTrips: s.minSubTrips, requireTimes: true})
	if issues == nil {
		issues = []utils.Issue{}
	}
	return DayValidation{IssueCount: len(issues), Issues: issues}, nil
}
