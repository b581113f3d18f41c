// Package pev drives plans through a plan-execute-verify loop: each step is
// gated by a permission policy and optional human confirmation, outcomes are
// judged by a verifier, and failed attempts may be replanned a bounded
// number of times.
package pev

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/rahul/mishri-pev/internal/observability"
)

const (
	DefaultMaxSteps   = 10
	DefaultMaxReplans = 2
)

// Step failure codes recorded in StepResult.Error.
const (
	ErrCodeUnmetDependency     = "unmet_dependency"
	ErrCodePermissionDenied    = "permission_denied"
	ErrCodeConfirmationMissing = "confirmation_required_but_unavailable"
	ErrCodeUserDeniedStep      = "user_denied_step"
	ErrCodePlanRejected        = "plan_rejected"
	ErrCodePlanGeneration      = "plan_generation_failed"
)

// ErrNoPlan is returned when Run has neither a plan nor a generator.
var ErrNoPlan = errors.New("no_plan: no plan supplied and no plan generator configured")

var errNoExecutor = errors.New("no executor configured")

// Config wires an Engine. Only the Executor is needed to run supplied
// plans; every other collaborator is optional.
type Config struct {
	Generator   PlanGenerator
	Executor    Executor
	Permissions PermissionChecker
	Confirmer   ConfirmationRequester
	Verifier    Verifier

	// Tools is handed to the generator as the set of available tools.
	Tools []ToolInfo

	// MaxSteps caps plan length; zero means DefaultMaxSteps.
	MaxSteps int
	// MaxReplans bounds replanning. Zero or negative disables it; callers
	// wanting the usual budget pass DefaultMaxReplans.
	MaxReplans int

	Logger *observability.Logger
}

// Engine executes plans. It holds only configuration, so one Engine may
// serve concurrent Run calls as long as its collaborators allow that.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	if cfg.MaxReplans < 0 {
		cfg.MaxReplans = 0
	}
	if cfg.Verifier == nil {
		cfg.Verifier = DefaultVerifier{}
	}
	return &Engine{cfg: cfg}
}

// run is the mutable state of a single Run call.
type run struct {
	*Engine
	id      string
	chatID  string
	goal    string
	replans int
}

// Run executes plan, or a generated plan when plan is nil, and returns the
// verdict and step results of the last attempt. The only error returned is
// ErrNoPlan; every other failure is reported through the verdict.
func (e *Engine) Run(ctx context.Context, goal string, plan *Plan) (VerifyResult, []StepResult, error) {
	if plan == nil && e.cfg.Generator == nil {
		return VerifyResult{}, nil, ErrNoPlan
	}

	r := &run{
		Engine: e,
		id:     uuid.NewString(),
		chatID: ChatID(ctx),
		goal:   goal,
	}

	done := observability.BeginRun(goal)
	defer done()

	ctx, span := startRunSpan(ctx, r.id, goal)

	for attempt := 1; ; attempt++ {
		verdict, results := r.attempt(ctx, attempt, plan)

		if verdict.Status == StatusSuccess ||
			e.cfg.Generator == nil ||
			r.replans >= e.cfg.MaxReplans ||
			ctx.Err() != nil {
			endRunSpan(span, verdict, r.replans)
			return verdict, results, nil
		}

		r.replans++
		e.cfg.Logger.LogReplan(r.chatID, r.id, r.replans, verdict.Explanation)
		plan = nil
	}
}

// attempt runs one plan from start to verdict. A nil plan is generated.
func (r *run) attempt(ctx context.Context, n int, plan *Plan) (VerifyResult, []StepResult) {
	ctx, span := startAttemptSpan(ctx, n)

	verdict, results := r.execute(ctx, n, plan)

	endAttemptSpan(span, verdict, len(results))
	r.cfg.Logger.LogVerify(r.chatID, r.id, string(verdict.Status), verdict.Explanation, verdict.FailedSteps)
	return verdict, results
}

func (r *run) execute(ctx context.Context, n int, plan *Plan) (VerifyResult, []StepResult) {
	observability.SetStatus(observability.PhasePlanning, r.goal)

	if plan == nil {
		var err error
		plan, err = r.cfg.Generator.Generate(ctx, r.goal, r.cfg.Tools)
		if err == nil && plan == nil {
			err = errors.New("generator returned no plan")
		}
		if err != nil {
			return VerifyResult{
				Status:      StatusFailed,
				Explanation: fmt.Sprintf("%s: %v", ErrCodePlanGeneration, err),
			}, nil
		}
	}

	plan = plan.Truncate(r.cfg.MaxSteps)
	r.cfg.Logger.LogPlan(r.chatID, r.id, r.goal, n, plan.Len(), string(plan.Risk()))

	if plan.RequiresConfirmation() {
		approved := r.cfg.Confirmer != nil && r.cfg.Confirmer.Ask(ctx, plan.Summary())
		r.cfg.Logger.LogConfirmation(r.chatID, r.id, "plan", approved)
		if !approved {
			reason := "plan was rejected by the user"
			if r.cfg.Confirmer == nil {
				reason = "plan requires confirmation but no confirmer is available; rejected"
			}
			return VerifyResult{
				Status:      StatusFailed,
				Explanation: fmt.Sprintf("%s: %s", ErrCodePlanRejected, reason),
			}, nil
		}
	}

	observability.SetStatus(observability.PhaseExecuting, r.goal)

	values := make(map[int]any, plan.Len())
	results := make([]StepResult, 0, plan.Len())
	for i := 0; i < plan.Len(); i++ {
		res := r.runStep(ctx, plan, i, values)
		results = append(results, res)
		if res.Success {
			values[res.StepIndex] = res.Result
		}
		if ctx.Err() != nil {
			break
		}
	}

	observability.SetStatus(observability.PhaseVerifying, r.goal)
	return r.cfg.Verifier.Verify(ctx, r.goal, results), results
}

// runStep applies the dependency and gate checks to the step at position i
// and executes it when they pass.
func (r *run) runStep(ctx context.Context, plan *Plan, i int, values map[int]any) (res StepResult) {
	step := plan.step(i)
	ctx, span := startStepSpan(ctx, step)
	defer func() {
		endStepSpan(span, res)
		r.cfg.Logger.LogStep(r.chatID, r.id, step.Index, step.ToolName, res.Success, res.Error)
	}()

	if err := ctx.Err(); err != nil {
		return failed(step.Index, err.Error())
	}

	for _, dep := range step.DependsOn {
		if _, ok := values[dep]; !ok {
			return failed(step.Index, fmt.Sprintf("%s: step %d", ErrCodeUnmetDependency, dep))
		}
	}

	if code := r.gate(ctx, step); code != "" {
		return failed(step.Index, code)
	}

	args := ResolveArgs(plan, i, values)
	out, err := r.invoke(ctx, step.ToolName, args)
	if err != nil {
		return failed(step.Index, err.Error())
	}
	return StepResult{StepIndex: step.Index, Success: true, Result: out}
}

// gate returns an empty string when the step may run, or the failure code
// explaining why it may not.
func (r *run) gate(ctx context.Context, step Step) string {
	decision := Allow
	if r.cfg.Permissions != nil {
		decision = r.cfg.Permissions.Check(ctx, step.ToolName, step.Description)
	}
	r.cfg.Logger.LogPolicyCheck(r.chatID, r.id, step.ToolName, decision.String())

	switch decision {
	case Allow:
		return ""
	case Confirm:
		if r.cfg.Confirmer == nil {
			return ErrCodeConfirmationMissing
		}
		approved := r.cfg.Confirmer.Ask(ctx, fmt.Sprintf("Step %d: %s\nTool: %s", step.Index, step.Description, step.ToolName))
		r.cfg.Logger.LogConfirmation(r.chatID, r.id, fmt.Sprintf("step %d", step.Index), approved)
		if !approved {
			return ErrCodeUserDeniedStep
		}
		return ""
	default:
		return ErrCodePermissionDenied
	}
}

func (r *run) invoke(ctx context.Context, tool string, args map[string]any) (out any, err error) {
	if r.cfg.Executor == nil {
		return nil, errNoExecutor
	}
	defer func() {
		if p := recover(); p != nil {
			out, err = nil, fmt.Errorf("tool %s panicked: %v", tool, p)
		}
	}()
	return r.cfg.Executor.Execute(ctx, tool, args)
}

func failed(index int, msg string) StepResult {
	return StepResult{StepIndex: index, Success: false, Error: msg}
}
