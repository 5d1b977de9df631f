package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"vivuplanner/internal/models/request_models"
	resp "vivuplanner/internal/models/response_models"
	"vivuplanner/internal/repositories"
	"vivuplanner/internal/telemetry"
	"vivuplanner/pkg/utils"
)

const (
	StageNormalize = "normalize"
	StagePlan      = "plan"
	StageValidate  = "validate"
	StageAssemble  = "assemble"

	stageOK      = "ok"
	stageFailed  = "failed"
	stageSkipped = "skipped"
)

type PlanOrchestratorInterface interface {
	Run(ctx context.Context, req request_models.PlanRequest) (*resp.PlanResult, error)
}

type PlanOrchestrator struct {
	fast      FastPlannerInterface
	deep      DeepPlannerInterface
	validator PlanValidatorInterface
	journeys  JourneyServiceInterface
	maxDays   int
	metrics   *telemetry.Metrics
	log       *zap.Logger
}

func NewPlanOrchestrator(
	fast FastPlannerInterface,
	deep DeepPlannerInterface,
	validator PlanValidatorInterface,
	journeys JourneyServiceInterface,
	maxDays int,
	metrics *telemetry.Metrics,
	log *zap.Logger,
) PlanOrchestratorInterface {
	if validator == nil {
		validator = NewPlanValidator()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &PlanOrchestrator{
		fast:      fast,
		deep:      deep,
		validator: validator,
		journeys:  journeys,
		maxDays:   maxDays,
		metrics:   metrics,
		log:       log,
	}
}

// planState is request scoped; stages read and write it in order.
type planState struct {
	traceID string
	req     request_models.PlanRequest
	in      PlanInput
	trip    *resp.PlanTrip
	metrics resp.PlanMetrics
	saved   *resp.SavedTrip
	trace   []resp.StageTrace
	errs    []stageError
}

type stageError struct {
	stage string
	err   error
}

type stage struct {
	name string
	run  func(ctx context.Context, st *planState) (detail string, err error)
}

func (o *PlanOrchestrator) Run(ctx context.Context, req request_models.PlanRequest) (*resp.PlanResult, error) {
	started := time.Now()
	st := &planState{traceID: req.TraceID, req: req}
	if st.traceID == "" {
		st.traceID = uuid.NewString()
	}
	st.req.TraceID = st.traceID

	stages := []stage{
		{StageNormalize, o.normalize},
		{StagePlan, o.plan},
		{StageValidate, o.validate},
	}
	for _, s := range stages {
		if len(st.errs) > 0 {
			st.trace = append(st.trace, resp.StageTrace{Name: s.name, Status: stageSkipped})
			continue
		}
		o.runStage(ctx, st, s)
	}
	o.runStage(ctx, st, stage{StageAssemble, o.assemble})

	mode := st.in.Request.Mode
	if mode == "" {
		mode = req.Mode
	}
	o.metrics.RecordPlan(mode, len(st.errs) == 0, time.Since(started))

	if len(st.errs) > 0 {
		first := st.errs[0]
		o.log.Warn("plan failed",
			zap.String("trace_id", st.traceID),
			zap.String("stage", first.stage),
			zap.String("code", utils.ErrorCode(first.err)),
			zap.Error(first.err))
		return nil, &utils.PlanFailure{TraceID: st.traceID, Stage: first.stage, Err: first.err}
	}

	o.log.Info("plan produced",
		zap.String("trace_id", st.traceID),
		zap.String("mode", st.metrics.Mode),
		zap.Int("days", st.trip.DayCount),
		zap.Bool("fallback_to_fast", st.metrics.FallbackToFast),
		zap.Duration("elapsed", time.Since(started)))

	return &resp.PlanResult{
		TraceID: st.traceID,
		Trip:    st.trip,
		Metrics: st.metrics,
		Trace:   st.trace,
		Saved:   st.saved,
	}, nil
}

func (o *PlanOrchestrator) runStage(ctx context.Context, st *planState, s stage) {
	started := time.Now()
	detail, err := s.run(ctx, st)
	entry := resp.StageTrace{
		Name:      s.name,
		Status:    stageOK,
		LatencyMs: time.Since(started).Milliseconds(),
		Detail:    detail,
	}
	if err != nil {
		entry.Status = stageFailed
		entry.Detail = utils.ErrorCode(err)
		st.errs = append(st.errs, stageError{stage: s.name, err: err})
	} else if detail == stageSkipped {
		entry.Status = stageSkipped
		entry.Detail = ""
	}
	st.trace = append(st.trace, entry)
	o.log.Debug("plan stage",
		zap.String("trace_id", st.traceID),
		zap.String("stage", s.name),
		zap.String("status", entry.Status),
		zap.Int64("latency_ms", entry.LatencyMs))
}

func (o *PlanOrchestrator) normalize(_ context.Context, st *planState) (string, error) {
	in, err := NormalizeRequest(st.req, o.maxDays)
	if err != nil {
		return "", err
	}
	st.in = in
	return fmt.Sprintf("mode=%s days=%d", in.Request.Mode, in.DayCount), nil
}

func (o *PlanOrchestrator) plan(ctx context.Context, st *planState) (string, error) {
	if st.in.Request.Mode == request_models.ModeFast {
		plan, err := o.fast.Plan(ctx, st.in)
		if err != nil {
			return "", err
		}
		st.trip, st.metrics = plan.Trip, plan.Metrics
		return fmt.Sprintf("candidates=%d placeholders=%d", plan.Metrics.CandidateCount, plan.Metrics.Placeholders), nil
	}

	var opts DeepPlanOptions
	if st.in.Request.SeedMode == request_models.SeedModeFast {
		draft, err := o.fast.Plan(ctx, st.in)
		if err != nil {
			o.log.Warn("fast draft failed, deep plan continues without it",
				zap.String("trace_id", st.traceID), zap.Error(err))
		} else {
			opts.Draft = draft
		}
	}
	plan, err := o.deep.Plan(ctx, st.in, opts)
	if err != nil {
		return "", err
	}
	st.trip, st.metrics = plan.Trip, plan.Metrics
	detail := fmt.Sprintf("llm_calls=%d tool_calls=%d", plan.Metrics.LLMCalls, plan.Metrics.ToolCalls)
	if plan.Metrics.FallbackToFast {
		detail += " fallback=" + plan.Metrics.FallbackReason
	}
	return detail, nil
}

// validate is fatal on the fast path; deep output is validated inside the deep planner.
func (o *PlanOrchestrator) validate(_ context.Context, st *planState) (string, error) {
	if st.in.Request.Mode != request_models.ModeFast {
		return stageSkipped, nil
	}
	if err := o.validator.Validate(st.in, st.trip); err != nil {
		return "", err
	}
	return "", nil
}

func (o *PlanOrchestrator) assemble(ctx context.Context, st *planState) (string, error) {
	if len(st.errs) > 0 {
		return fmt.Sprintf("errors=%d", len(st.errs)), nil
	}
	if !st.in.Request.Save {
		return "", nil
	}
	if o.journeys == nil {
		return "", fmt.Errorf("%w: trip store not configured", utils.ErrDatabaseError)
	}
	saved, err := o.journeys.SaveTrip(ctx, repositories.SaveTripInput{
		UserID:  st.in.Request.UserID,
		Mode:    st.metrics.Mode,
		TraceID: st.traceID,
		Trip:    st.trip,
	})
	if err != nil {
		return "", err
	}
	st.saved = saved
	return "saved=" + saved.JourneyID, nil
}
