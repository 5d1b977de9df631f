package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"vivuplanner/pkg/utils"
)

// MutationTool is one operation the deep planner's model may invoke on a session.
type MutationTool interface {
	Name() string
	Description() string
	Schema() map[string]any
	Invoke(s *MutationSession, args json.RawMessage) (any, error)
}

// ToolResult is what the model sees after each invocation.
type ToolResult struct {
	CallID    string `json:"call_id,omitempty"`
	Tool      string `json:"tool"`
	OK        bool   `json:"ok"`
	ErrorCode string `json:"error_code,omitempty"`
	Error     string `json:"error,omitempty"`
	Data      any    `json:"data,omitempty"`
}

// ToolRegistry is a closed, explicitly built set of mutation tools.
type ToolRegistry struct {
	tools map[string]MutationTool
	order []string
}

func NewToolRegistry(tools ...MutationTool) *ToolRegistry {
	r := &ToolRegistry{tools: make(map[string]MutationTool, len(tools))}
	for _, t := range tools {
		if _, dup := r.tools[t.Name()]; dup {
			panic(fmt.Sprintf("mutation tool %q registered twice", t.Name()))
		}
		r.tools[t.Name()] = t
		r.order = append(r.order, t.Name())
	}
	return r
}

func NewDefaultToolRegistry() *ToolRegistry {
	return NewToolRegistry(addSubTripTool{}, adjustTimesTool{}, replacePoiTool{}, validateDayTool{})
}

func (r *ToolRegistry) Names() []string {
	return append([]string(nil), r.order...)
}

func (r *ToolRegistry) Specs() []utils.ToolSpec {
	specs := make([]utils.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		specs = append(specs, utils.ToolSpec{Name: t.Name(), Description: t.Description(), Parameters: t.Schema()})
	}
	return specs
}

// Dispatch runs one model-requested call. Failures are reported in the result, never raised.
func (r *ToolRegistry) Dispatch(s *MutationSession, call utils.ToolCall) ToolResult {
	res := ToolResult{CallID: call.ID, Tool: call.Name}
	t, ok := r.tools[call.Name]
	if !ok {
		err := fmt.Errorf("%w: %q", utils.ErrUnknownTool, call.Name)
		res.ErrorCode, res.Error = utils.ErrorCode(err), err.Error()
		return res
	}

	args := json.RawMessage(strings.TrimSpace(call.Arguments))
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	data, err := t.Invoke(s, args)
	if err != nil {
		res.ErrorCode, res.Error = utils.ErrorCode(err), err.Error()
		return res
	}
	res.OK = true
	res.Data = data
	return res
}

func decodeArgs(raw json.RawMessage, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: malformed arguments: %v", utils.ErrInvalidInput, err)
	}
	return nil
}

var dayProperty = map[string]any{"type": "integer", "description": "0-based day index of the day being built"}

type addSubTripTool struct{}

func (addSubTripTool) Name() string { return "add_sub_trip" }

func (addSubTripTool) Description() string {
	return "Append a sub-trip bound to a candidate POI. Start defaults to the slot start, after the latest existing end."
}

func (addSubTripTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"day":       dayProperty,
			"slot":      map[string]any{"type": "string", "enum": []string{SlotMorning, SlotAfternoon, SlotEvening}},
			"poi_ref":   map[string]any{"type": "string", "description": "provider:provider_id or provider_id of a candidate"},
			"start":     map[string]any{"type": "string", "description": "optional HH:MM start"},
			"duration":  map[string]any{"type": "integer", "description": "duration in minutes"},
			"transport": map[string]any{"type": "string", "description": "walk, transit, taxi ..."},
			"activity":  map[string]any{"type": "string", "description": "optional short activity label"},
		},
		"required": []string{"day", "slot", "poi_ref", "duration"},
	}
}

func (addSubTripTool) Invoke(s *MutationSession, raw json.RawMessage) (any, error) {
	var args AddSubTripArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	return s.AddSubTrip(args)
}

type adjustTimesTool struct{}

func (adjustTimesTool) Name() string { return "adjust_times" }

func (adjustTimesTool) Description() string {
	return "Re-lay out time windows so they are contiguous and non-overlapping. policy=sequential keeps order_index order; policy=slot groups by slot first."
}

func (adjustTimesTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"day":    dayProperty,
			"policy": map[string]any{"type": "string", "enum": []string{PolicySequential, PolicySlot}},
		},
		"required": []string{"day", "policy"},
	}
}

func (adjustTimesTool) Invoke(s *MutationSession, raw json.RawMessage) (any, error) {
	var args struct {
		Day    int    `json:"day"`
		Policy string `json:"policy"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	return s.AdjustTimes(args.Day, args.Policy)
}

type replacePoiTool struct{}

func (replacePoiTool) Name() string { return "replace_poi" }

func (replacePoiTool) Description() string {
	return "Swap the POI of an existing sub-trip in place, keeping its order_index and times."
}

func (replacePoiTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"day":         dayProperty,
			"order_index": map[string]any{"type": "integer"},
			"poi_ref":     map[string]any{"type": "string", "description": "provider:provider_id or provider_id of a candidate"},
		},
		"required": []string{"day", "order_index", "poi_ref"},
	}
}

func (replacePoiTool) Invoke(s *MutationSession, raw json.RawMessage) (any, error) {
	var args struct {
		Day        int    `json:"day"`
		OrderIndex int    `json:"order_index"`
		PoiRef     string `json:"poi_ref"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	return s.ReplacePoi(args.Day, args.OrderIndex, args.PoiRef)
}

type validateDayTool struct{}

func (validateDayTool) Name() string { return "validate_day" }

func (validateDayTool) Description() string {
	return "Report structural issues of the day. issue_count=0 means the day is complete."
}

func (validateDayTool) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"day": dayProperty},
		"required":   []string{"day"},
	}
}

func (validateDayTool) Invoke(s *MutationSession, raw json.RawMessage) (any, error) {
	var args struct {
		Day int `json:"day"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	return s.ValidateDay(args.Day)
}
