package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"vivuplanner/internal/config"
	resp "vivuplanner/internal/models/response_models"
	"vivuplanner/internal/repositories"
	"vivuplanner/internal/telemetry"
	"vivuplanner/pkg/utils"
)

type DeepPlanOptions struct {
	// Draft is a fast plan over the same input; its outline and POIs seed generation.
	Draft *FastPlan
}

type DeepPlan struct {
	Trip    *resp.PlanTrip
	Metrics resp.PlanMetrics
}

type DeepPlannerInterface interface {
	Plan(ctx context.Context, in PlanInput, opts DeepPlanOptions) (*DeepPlan, error)
}

type DeepPlanner struct {
	chat    utils.ChatClient
	tools   *ToolRegistry
	pool    CandidatePoolServiceInterface
	fast    FastPlannerInterface
	memory  SemanticMemoryInterface
	cfg     config.DeepConfig
	llm     config.LLMConfig
	metrics *telemetry.Metrics
	log     *zap.Logger

	dayStart, dayEnd int
	transitM         float64
}

func NewDeepPlanner(
	chat utils.ChatClient,
	tools *ToolRegistry,
	pool CandidatePoolServiceInterface,
	fast FastPlannerInterface,
	memory SemanticMemoryInterface,
	cfg config.Config,
	metrics *telemetry.Metrics,
	log *zap.Logger,
) (*DeepPlanner, error) {
	start, err := utils.ParseClock(cfg.Planner.DayStart)
	if err != nil {
		return nil, err
	}
	end, err := utils.ParseClock(cfg.Planner.DayEnd)
	if err != nil {
		return nil, err
	}
	deep := cfg.Deep
	if deep.MaxSteps <= 0 {
		deep.MaxSteps = 8
	}
	if deep.MinSubTrips <= 0 {
		deep.MinSubTrips = 1
	}
	if deep.DayRetries < 0 {
		deep.DayRetries = 0
	}
	if deep.CandidateCap <= 0 {
		deep.CandidateCap = 24
	}
	if tools == nil {
		tools = NewDefaultToolRegistry()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &DeepPlanner{
		chat:     chat,
		tools:    tools,
		pool:     pool,
		fast:     fast,
		memory:   memory,
		cfg:      deep,
		llm:      cfg.LLM,
		metrics:  metrics,
		log:      log,
		dayStart: start,
		dayEnd:   end,
		transitM: float64(cfg.Planner.TransitThreshold),
	}, nil
}

// tripRun is the state of one deep generation; it is owned by a single goroutine.
type tripRun struct {
	in        PlanInput
	pool      *CandidatePool
	draft     *FastPlan
	committed *UsedPoiSet
	summaries []string
	memories  []string
	metrics   resp.PlanMetrics
}

func (d *DeepPlanner) Plan(ctx context.Context, in PlanInput, opts DeepPlanOptions) (*DeepPlan, error) {
	run := &tripRun{
		in:        in,
		draft:     opts.Draft,
		committed: NewUsedPoiSet(),
		metrics:   resp.PlanMetrics{Mode: "deep", Seed: SeedFor(in)},
	}
	d.augment(ctx, run)

	pool, err := d.candidates(ctx, run)
	if err != nil {
		return d.fallback(ctx, in, run, err)
	}
	run.pool = pool
	run.metrics.CandidateCount = len(pool.Candidates)
	run.metrics.SourceCounts = pool.SourceCounts

	trip := &resp.PlanTrip{
		Destination: in.Request.Destination,
		StartDate:   in.Request.StartDate,
		EndDate:     in.Request.EndDate,
		DayCount:    in.DayCount,
		DayCards:    make([]resp.DayCard, 0, in.DayCount),
	}

	for day := 0; day < in.DayCount; day++ {
		card, attempts, issues, err := d.generateDay(ctx, run, day)
		run.metrics.DayAttempts = append(run.metrics.DayAttempts, attempts)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			dayErr := &utils.DayGenerationError{DayIndex: day, Attempts: attempts, Issues: issues, Err: err}
			if d.cfg.FallbackToFast {
				return d.fallback(ctx, in, run, dayErr)
			}
			return nil, dayErr
		}

		for _, st := range card.SubTrips {
			if st.Poi != nil {
				run.committed.Add(*st.Poi)
			}
		}
		trip.DayCards = append(trip.DayCards, card)
		run.summaries = append(run.summaries, summarizeDay(card, d.cfg.SummaryMaxLen))
		run.metrics.Generated += len(card.SubTrips)
	}

	d.remember(ctx, run.in, trip)
	return &DeepPlan{Trip: trip, Metrics: run.metrics}, nil
}

func (d *DeepPlanner) candidates(ctx context.Context, run *tripRun) (*CandidatePool, error) {
	if run.draft != nil && run.draft.Pool != nil {
		p := *run.draft.Pool
		p.Candidates = RankCandidates(p.Candidates)
		if len(p.Candidates) > d.cfg.CandidateCap {
			p.Candidates = p.Candidates[:d.cfg.CandidateCap]
		}
		return &p, nil
	}
	return d.pool.Build(ctx, run.in, d.cfg.CandidateCap)
}

// generateDay runs up to 1+DayRetries attempts, each with a fresh session.
func (d *DeepPlanner) generateDay(ctx context.Context, run *tripRun, day int) (resp.DayCard, int, []utils.Issue, error) {
	maxAttempts := 1 + d.cfg.DayRetries
	blocked := run.committed.Clone()
	if run.draft != nil {
		for future, keys := range run.draft.DraftKeys {
			if future <= day {
				continue
			}
			for _, k := range keys {
				blocked.Add(k)
			}
		}
	}
	date := run.in.DateFor(day)

	var (
		lastErr    error
		lastIssues []utils.Issue
		attempt    int
	)
	for attempt = 1; attempt <= maxAttempts; attempt++ {
		session := NewMutationSession(SessionOptions{
			DayIndex:    day,
			Date:        date,
			Candidates:  run.pool.Candidates,
			Committed:   blocked,
			DayStart:    d.dayStart,
			DayEnd:      d.dayEnd,
			MinSubTrips: d.cfg.MinSubTrips,
			TransitM:    d.transitM,
			Center:      run.pool.Center.Point,
		})

		card, issues, err := d.runDay(ctx, run, session, blocked)
		if err == nil {
			if bad := verifyCommittedDay(card, day, date, run.committed); len(bad) > 0 {
				issues = bad
				err = &utils.PlanValidationError{Issues: bad}
			}
		}
		d.metrics.RecordDayAttempt(err == nil)
		if err == nil {
			return card, attempt, nil, nil
		}

		lastErr, lastIssues = err, issues
		d.log.Warn("deep day attempt failed",
			zap.String("trace_id", run.in.Request.TraceID),
			zap.Int("day", day),
			zap.Int("attempt", attempt),
			zap.String("code", utils.ErrorCode(err)),
			zap.Error(err))
		if ctx.Err() != nil {
			break
		}
	}
	if attempt > maxAttempts {
		attempt = maxAttempts
	}
	return resp.DayCard{}, attempt, lastIssues, lastErr
}

// runDay is the tool-calling interpreter loop for one attempt.
func (d *DeepPlanner) runDay(ctx context.Context, run *tripRun, s *MutationSession, blocked *UsedPoiSet) (resp.DayCard, []utils.Issue, error) {
	prompt := d.promptFor(run, s.DayIndex(), blocked)
	messages := []utils.ChatMessage{
		{Role: utils.RoleSystem, Content: deepSystemPrompt},
		{Role: utils.RoleUser, Content: prompt.String()},
	}
	specs := d.tools.Specs()

	var issues []utils.Issue
	idle := 0
	for step := 1; step <= d.cfg.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return resp.DayCard{}, issues, err
		}

		started := time.Now()
		res, err := d.chat.Chat(ctx, utils.ChatRequest{
			Messages:    messages,
			Tools:       specs,
			Temperature: d.llm.Temperature,
			MaxTokens:   d.llm.MaxTokens,
			Timeout:     d.llm.Timeout,
		})
		run.metrics.LLMCalls++
		d.metrics.RecordLLMCall(err == nil, time.Since(started))
		if err != nil {
			if !errors.Is(err, utils.ErrLLM) {
				err = fmt.Errorf("%w: %v", utils.ErrLLM, err)
			}
			return resp.DayCard{}, issues, err
		}
		run.metrics.PromptTokens += res.Usage.PromptTokens
		run.metrics.CompletionTokens += res.Usage.CompletionTokens

		native := len(res.ToolCalls) > 0
		calls := res.ToolCalls
		if !native {
			calls = utils.InlineToolCalls(res.Content)
		}

		if native {
			messages = append(messages, utils.ChatMessage{Role: utils.RoleAssistant, Content: res.Content, ToolCalls: calls})
		} else {
			messages = append(messages, utils.ChatMessage{Role: utils.RoleAssistant, Content: res.Content})
		}
		results := make([]ToolResult, 0, len(calls))
		for _, call := range calls {
			result := d.tools.Dispatch(s, call)
			run.metrics.ToolCalls++
			d.metrics.RecordToolCall(call.Name, result.OK)
			results = append(results, result)
			if native {
				messages = append(messages, utils.ChatMessage{
					Role:       utils.RoleTool,
					Name:       call.Name,
					ToolCallID: call.ID,
					Content:    toolResultContent(result),
				})
			}
		}
		if !native && len(results) > 0 {
			messages = append(messages, utils.ChatMessage{Role: utils.RoleUser, Content: inlineResultsPrompt(results)})
		}

		check, err := s.ValidateDay(s.DayIndex())
		if err != nil {
			return resp.DayCard{}, issues, err
		}
		issues = check.Issues
		if check.IssueCount == 0 {
			return s.Day(), nil, nil
		}

		if len(calls) == 0 {
			idle++
			if d.cfg.NoProgressLimit > 0 && idle >= d.cfg.NoProgressLimit {
				return resp.DayCard{}, issues, fmt.Errorf("%w: %d rounds without tool calls", utils.ErrNoProgress, idle)
			}
		} else {
			idle = 0
		}
		messages = append(messages, utils.ChatMessage{Role: utils.RoleUser, Content: nudgePrompt(s.DayIndex(), issues)})
	}
	return resp.DayCard{}, issues, fmt.Errorf("%w: day %d after %d steps", utils.ErrMaxStepsExceeded, s.DayIndex(), d.cfg.MaxSteps)
}

func (d *DeepPlanner) promptFor(run *tripRun, day int, blocked *UsedPoiSet) dayPrompt {
	available := make([]resp.CandidatePoi, 0, len(run.pool.Candidates))
	for _, c := range run.pool.Candidates {
		if !blocked.Has(c.Key()) {
			available = append(available, c)
		}
	}
	summaries := run.summaries
	if w := d.cfg.SummaryWindow; w > 0 && len(summaries) > w {
		summaries = summaries[len(summaries)-w:]
	}
	var outline []string
	if run.draft != nil && run.draft.Trip != nil && day < len(run.draft.Trip.DayCards) {
		outline = outlineOf(run.draft.Trip.DayCards[day])
	}
	req := run.in.Request
	return dayPrompt{
		Destination: req.Destination,
		DayIndex:    day,
		DayCount:    run.in.DayCount,
		Date:        run.in.DateFor(day),
		DayStart:    utils.FormatClock(d.dayStart),
		DayEnd:      utils.FormatClock(d.dayEnd),
		MinSubTrips: d.cfg.MinSubTrips,
		Interests:   run.in.Interests,
		Pace:        run.in.Pace,
		Budget:      req.Preferences.Budget,
		People:      req.People,
		Outline:     outline,
		Summaries:   summaries,
		Candidates:  available,
		Used:        blocked.Keys(),
		Memories:    run.memories,
	}
}

// fallback discards the deep run and returns a validated fast plan over the original input.
func (d *DeepPlanner) fallback(ctx context.Context, original PlanInput, run *tripRun, cause error) (*DeepPlan, error) {
	reason := utils.ErrorCode(cause)
	if !d.cfg.FallbackToFast {
		return nil, cause
	}
	d.log.Warn("deep plan falling back to fast",
		zap.String("trace_id", original.Request.TraceID),
		zap.String("reason", reason),
		zap.Error(cause))

	plan := run.draft
	if plan == nil {
		var err error
		plan, err = d.fast.Plan(ctx, original)
		if err != nil {
			return nil, fmt.Errorf("fast fallback after %s: %w", reason, err)
		}
	}
	if issues := ValidatePlan(original, plan.Trip); len(issues) > 0 {
		return nil, &utils.PlanValidationError{Issues: issues}
	}
	d.metrics.RecordFallback(reason)

	m := plan.Metrics
	m.Mode = "deep"
	m.FallbackToFast = true
	m.FallbackReason = reason
	m.DayAttempts = run.metrics.DayAttempts
	m.LLMCalls = run.metrics.LLMCalls
	m.ToolCalls = run.metrics.ToolCalls
	m.PromptTokens = run.metrics.PromptTokens
	m.CompletionTokens = run.metrics.CompletionTokens
	m.MemoryHits = run.metrics.MemoryHits
	return &DeepPlan{Trip: plan.Trip, Metrics: m}, nil
}

// augment backfills preferences the caller left empty from semantic memory. Failures are logged only.
func (d *DeepPlanner) augment(ctx context.Context, run *tripRun) {
	req := run.in.Request
	if d.memory == nil || req.UserID == "" || d.cfg.MemoryTopK <= 0 {
		return
	}
	query := fmt.Sprintf("travel preferences for %s: %s", req.Destination, strings.Join(run.in.Interests, ", "))
	hits, err := d.memory.Search(ctx, query, repositories.MemoryScope{UserID: req.UserID}, d.cfg.MemoryTopK)
	if err != nil {
		d.log.Warn("memory search failed", zap.String("trace_id", req.TraceID), zap.Error(err))
		return
	}
	run.metrics.MemoryHits = len(hits)
	if len(hits) == 0 {
		return
	}

	var interests []string
	for _, h := range hits {
		run.memories = append(run.memories, truncate(h.Text, 200))
		interests = append(interests, h.Tags...)
		if run.in.Pace == "" {
			if pace, ok := h.Attrs["pace"].(string); ok && pace != "" {
				run.in.Pace = strings.ToLower(pace)
				run.in.Request.Preferences.Pace = pace
			}
		}
		if run.in.Request.Preferences.Budget == "" {
			if budget, ok := h.Attrs["budget"].(string); ok && budget != "" {
				run.in.Request.Preferences.Budget = budget
			}
		}
	}
	if run.in.InterestsDefaulted && len(interests) > 0 {
		if normalized, defaulted, err := normalizeInterests(interests); err == nil && !defaulted {
			run.in.Interests = normalized
			run.in.InterestsDefaulted = false
		}
	}
}

// remember writes a compact trip summary back to memory. Failures are logged only.
func (d *DeepPlanner) remember(ctx context.Context, in PlanInput, trip *resp.PlanTrip) {
	req := in.Request
	if d.memory == nil || req.UserID == "" {
		return
	}
	text := fmt.Sprintf("Planned a %d-day trip to %s with interests %s", trip.DayCount, req.Destination, strings.Join(in.Interests, ", "))
	if in.Pace != "" {
		text += ", pace " + in.Pace
	}
	if req.Preferences.Budget != "" {
		text += ", budget " + req.Preferences.Budget
	}
	attrs := map[string]interface{}{"destination": req.Destination}
	if in.Pace != "" {
		attrs["pace"] = in.Pace
	}
	if req.Preferences.Budget != "" {
		attrs["budget"] = req.Preferences.Budget
	}
	err := d.memory.Write(ctx, text, MemoryMeta{
		UserID: req.UserID,
		Kind:   "trip_summary",
		Tags:   in.Interests,
		Attrs:  attrs,
	})
	if err != nil {
		d.log.Warn("memory write failed", zap.String("trace_id", req.TraceID), zap.Error(err))
	}
}
