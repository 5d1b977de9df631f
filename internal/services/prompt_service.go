package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	resp "vivuplanner/internal/models/response_models"
	"vivuplanner/pkg/utils"
)

const deepSystemPrompt = `You are a travel planner building ONE day of an itinerary through tools.
Rules:
- Only use POIs from the candidate list, referenced as provider:provider_id.
- Never use a POI listed under "Already used".
- Call add_sub_trip once per activity, then adjust_times if windows overlap, then validate_day.
- The day is finished when validate_day reports issue_count 0.
- If your client cannot call tools natively, answer with JSON only:
{"tool_calls":[{"name":"add_sub_trip","arguments":{"day":0,"slot":"morning","poi_ref":"provider:id","duration":90}}]}`

// dayPrompt is everything the model sees about the day it is building.
type dayPrompt struct {
	Destination string
	DayIndex    int
	DayCount    int
	Date        string
	DayStart    string
	DayEnd      string
	MinSubTrips int
	Interests   []string
	Pace        string
	Budget      string
	People      int
	Outline     []string
	Summaries   []string
	Candidates  []resp.CandidatePoi
	Used        []resp.PoiKey
	Memories    []string
}

func (p dayPrompt) String() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Plan day %d of %d (day index %d) in %s on %s.\n", p.DayIndex+1, p.DayCount, p.DayIndex, p.Destination, p.Date))
	b.WriteString(fmt.Sprintf("Day window: %s-%s. At least %d activities.\n", p.DayStart, p.DayEnd, p.MinSubTrips))
	b.WriteString(fmt.Sprintf("Interests: %s.", strings.Join(p.Interests, ", ")))
	if p.Pace != "" {
		b.WriteString(" Pace: " + p.Pace + ".")
	}
	if p.Budget != "" {
		b.WriteString(" Budget: " + p.Budget + ".")
	}
	if p.People > 0 {
		b.WriteString(fmt.Sprintf(" Travellers: %d.", p.People))
	}
	b.WriteString("\n")

	if len(p.Memories) > 0 {
		b.WriteString("\nKnown traveller preferences:\n")
		for _, m := range p.Memories {
			b.WriteString("- " + m + "\n")
		}
	}
	if len(p.Outline) > 0 {
		b.WriteString("\nDraft outline for this day (may be improved):\n")
		for _, o := range p.Outline {
			b.WriteString("- " + o + "\n")
		}
	}
	if len(p.Summaries) > 0 {
		b.WriteString("\nPrevious days:\n")
		for _, s := range p.Summaries {
			b.WriteString("- " + s + "\n")
		}
	}

	b.WriteString("\nCandidates:\n")
	for _, c := range p.Candidates {
		b.WriteString(fmt.Sprintf("- %s | %s | %s | rating %.1f | %.0fm\n", c.Key(), c.Name, c.Category, c.Rating, c.DistanceM))
	}
	if len(p.Used) > 0 {
		refs := make([]string, 0, len(p.Used))
		for _, k := range p.Used {
			refs = append(refs, k.String())
		}
		b.WriteString("\nAlready used: " + strings.Join(refs, ", ") + "\n")
	}
	return b.String()
}

func nudgePrompt(dayIndex int, issues []utils.Issue) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Day %d is not complete yet. Open issues:\n", dayIndex))
	for _, is := range issues {
		b.WriteString("- " + is.String() + "\n")
	}
	b.WriteString("Fix them with the tools, then call validate_day.")
	return b.String()
}

// inlineResultsPrompt reports tool results to a model that answered with inline JSON.
func inlineResultsPrompt(results []ToolResult) string {
	raw, err := json.Marshal(results)
	if err != nil {
		return "Tool results unavailable."
	}
	return "Tool results: " + string(raw)
}

func toolResultContent(res ToolResult) string {
	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Sprintf(`{"tool":%q,"ok":false}`, res.Tool)
	}
	return string(raw)
}

// summarizeDay renders a committed day as one line of at most maxLen bytes.
func summarizeDay(card resp.DayCard, maxLen int) string {
	parts := make([]string, 0, len(card.SubTrips))
	for _, st := range card.SubTrips {
		label := st.Activity
		if st.StartTime != "" {
			label = st.StartTime + " " + label
		}
		parts = append(parts, label)
	}
	return truncate(fmt.Sprintf("Day %d (%s): %s", card.DayIndex, card.Date, strings.Join(parts, "; ")), maxLen)
}

func outlineOf(card resp.DayCard) []string {
	out := make([]string, 0, len(card.SubTrips))
	for _, st := range card.SubTrips {
		line := fmt.Sprintf("%s %s-%s %s", st.Metadata.Slot, st.StartTime, st.EndTime, st.Activity)
		if st.Poi != nil {
			line += " (" + st.Poi.String() + ")"
		}
		out = append(out, line)
	}
	return out
}

func truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	const ellipsis = "..."
	cut, tail := maxLen-len(ellipsis), ellipsis
	if cut <= 0 {
		cut, tail = maxLen, ""
	}
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + tail
}
