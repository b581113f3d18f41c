package pev

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/rahul/mishri-pev/internal/observability"
)

func echoExecutor() ExecutorFunc {
	return func(_ context.Context, _ string, args map[string]any) (any, error) {
		return args, nil
	}
}

func mustPlan(t *testing.T, goal string, risk Risk, steps ...Step) *Plan {
	t.Helper()
	p, err := NewPlan(goal, risk, steps...)
	if err != nil {
		t.Fatalf("NewPlan failed: %v", err)
	}
	return p
}

func TestEngine_ChainedArgumentsSucceed(t *testing.T) {
	plan := mustPlan(t, "schedule and announce", RiskLow,
		Step{Index: 1, ToolName: "calendar.create", Args: map[string]any{"title": "Meeting"}},
		Step{Index: 2, ToolName: "gmail.send", Args: map[string]any{"subject": "$prev_result.title"}},
	)

	var logs bytes.Buffer
	e := NewEngine(Config{Executor: echoExecutor(), Logger: observability.NewLoggerTo(&logs, t.TempDir())})
	verdict, results, err := e.Run(context.Background(), plan.Goal(), plan)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if verdict.Status != StatusSuccess {
		t.Errorf("Expected SUCCESS, got %s (%s)", verdict.Status, verdict.Explanation)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	sent, ok := results[1].Result.(map[string]any)
	if !ok {
		t.Fatalf("Expected map result, got %T", results[1].Result)
	}
	if sent["subject"] != "Meeting" {
		t.Errorf("Expected subject 'Meeting', got %v", sent["subject"])
	}
	if !strings.Contains(logs.String(), `"type":"verify"`) {
		t.Errorf("Expected a verify event in logs, got: %s", logs.String())
	}
}

func TestEngine_PermissionDeniedForEveryStep(t *testing.T) {
	plan := mustPlan(t, "send mail", RiskLow,
		Step{Index: 1, ToolName: "gmail.send"},
		Step{Index: 2, ToolName: "calendar.create"},
		Step{Index: 3, ToolName: "notify.send"},
	)

	called := false
	e := NewEngine(Config{
		Executor: ExecutorFunc(func(context.Context, string, map[string]any) (any, error) {
			called = true
			return nil, nil
		}),
		Permissions: PermissionCheckerFunc(func(context.Context, string, string) Decision { return Deny }),
	})

	verdict, results, err := e.Run(context.Background(), plan.Goal(), plan)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if called {
		t.Error("Executor must not run for denied steps")
	}
	if verdict.Status != StatusFailed {
		t.Errorf("Expected FAILED, got %s", verdict.Status)
	}
	for _, r := range results {
		if r.Success || r.Error != ErrCodePermissionDenied {
			t.Errorf("Step %d: expected %q, got success=%v error=%q", r.StepIndex, ErrCodePermissionDenied, r.Success, r.Error)
		}
	}
}

func TestEngine_HighRiskWithoutConfirmerIsRejected(t *testing.T) {
	plan := mustPlan(t, "delete everything", RiskHigh,
		Step{Index: 1, ToolName: "filesystem"},
	)

	e := NewEngine(Config{Executor: echoExecutor()})
	verdict, results, err := e.Run(context.Background(), plan.Goal(), plan)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if verdict.Status != StatusFailed {
		t.Errorf("Expected FAILED, got %s", verdict.Status)
	}
	if !strings.Contains(strings.ToLower(verdict.Explanation), "rejected") {
		t.Errorf("Expected rejection marker, got %q", verdict.Explanation)
	}
	if len(results) != 0 {
		t.Errorf("Expected no step results, got %d", len(results))
	}
}

func TestEngine_PlanConfirmation(t *testing.T) {
	plan := mustPlan(t, "risky", RiskHigh, Step{Index: 1, ToolName: "shell"})

	tests := []struct {
		name   string
		answer bool
		want   Status
	}{
		{"approved", true, StatusSuccess},
		{"refused", false, StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var asked string
			e := NewEngine(Config{
				Executor: echoExecutor(),
				Confirmer: ConfirmationRequesterFunc(func(_ context.Context, summary string) bool {
					asked = summary
					return tt.answer
				}),
			})
			verdict, _, err := e.Run(context.Background(), plan.Goal(), plan)
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			if verdict.Status != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, verdict.Status)
			}
			if !strings.Contains(asked, "Goal: risky") {
				t.Errorf("Expected plan summary in prompt, got %q", asked)
			}
			if !tt.answer && !strings.HasPrefix(verdict.Explanation, ErrCodePlanRejected) {
				t.Errorf("Expected %s explanation, got %q", ErrCodePlanRejected, verdict.Explanation)
			}
		})
	}
}

func TestEngine_MissingDependency(t *testing.T) {
	plan := mustPlan(t, "orphan", RiskLow,
		Step{Index: 1, ToolName: "notify.send", DependsOn: []int{99}},
	)

	e := NewEngine(Config{Executor: echoExecutor()})
	verdict, results, err := e.Run(context.Background(), plan.Goal(), plan)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(results) != 1 || results[0].Success {
		t.Fatalf("Expected one failed result, got %+v", results)
	}
	if !strings.Contains(results[0].Error, "unmet") {
		t.Errorf("Expected unmet marker, got %q", results[0].Error)
	}
	if verdict.Status != StatusFailed {
		t.Errorf("Expected FAILED, got %s", verdict.Status)
	}
}

func TestEngine_FailedDependencyDoesNotStopIndependentSteps(t *testing.T) {
	plan := mustPlan(t, "mixed", RiskLow,
		Step{Index: 1, ToolName: "broken"},
		Step{Index: 2, ToolName: "uses_broken", DependsOn: []int{1}},
		Step{Index: 3, ToolName: "independent"},
	)

	e := NewEngine(Config{
		Executor: ExecutorFunc(func(_ context.Context, tool string, _ map[string]any) (any, error) {
			if tool == "broken" {
				return nil, errors.New("calendar API returned 500")
			}
			return "ok", nil
		}),
	})

	verdict, results, err := e.Run(context.Background(), plan.Goal(), plan)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if verdict.Status != StatusPartial {
		t.Errorf("Expected PARTIAL, got %s", verdict.Status)
	}
	if results[0].Error != "calendar API returned 500" {
		t.Errorf("Expected executor error verbatim, got %q", results[0].Error)
	}
	if !strings.HasPrefix(results[1].Error, ErrCodeUnmetDependency) {
		t.Errorf("Expected unmet dependency, got %q", results[1].Error)
	}
	if !results[2].Success {
		t.Errorf("Expected independent step to succeed, got %q", results[2].Error)
	}
	if fmt.Sprint(verdict.FailedSteps) != "[1 2]" {
		t.Errorf("Expected failed steps [1 2], got %v", verdict.FailedSteps)
	}
}

func TestEngine_CapsPlanLength(t *testing.T) {
	steps := make([]Step, 15)
	for i := range steps {
		steps[i] = Step{Index: i + 1, ToolName: "noop"}
	}
	plan := mustPlan(t, "long", RiskLow, steps...)

	e := NewEngine(Config{
		Executor:  echoExecutor(),
		MaxSteps:  5,
		Confirmer: ConfirmationRequesterFunc(func(context.Context, string) bool { return true }),
	})
	_, results, err := e.Run(context.Background(), plan.Goal(), plan)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("Expected 5 results, got %d", len(results))
	}
	for i, r := range results {
		if r.StepIndex != i+1 {
			t.Errorf("Result %d: expected step %d, got %d", i, i+1, r.StepIndex)
		}
	}
	if plan.Len() != 15 {
		t.Errorf("Capping must not modify the original plan, got %d steps", plan.Len())
	}
}

func TestEngine_ReplansAfterFailure(t *testing.T) {
	var generated, executed int
	gen := PlanGeneratorFunc(func(_ context.Context, goal string, _ []ToolInfo) (*Plan, error) {
		generated++
		return NewPlan(goal, RiskLow, Step{Index: 1, ToolName: "calendar.create"})
	})
	exec := ExecutorFunc(func(context.Context, string, map[string]any) (any, error) {
		executed++
		if executed == 1 {
			return nil, errors.New("transient failure")
		}
		return map[string]any{"id": "evt-1"}, nil
	})

	e := NewEngine(Config{Generator: gen, Executor: exec, MaxReplans: 1})
	verdict, results, err := e.Run(context.Background(), "book a room", nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if generated != 2 {
		t.Errorf("Expected generator to be called twice, got %d", generated)
	}
	if verdict.Status != StatusSuccess {
		t.Errorf("Expected SUCCESS, got %s (%s)", verdict.Status, verdict.Explanation)
	}
	if len(results) != 1 || !results[0].Success {
		t.Errorf("Expected only the last attempt's results, got %+v", results)
	}
}

func TestEngine_ReplanBudgetIsBounded(t *testing.T) {
	var generated int
	gen := PlanGeneratorFunc(func(_ context.Context, goal string, _ []ToolInfo) (*Plan, error) {
		generated++
		return NewPlan(goal, RiskLow, Step{Index: 1, ToolName: "flaky"})
	})
	exec := ExecutorFunc(func(context.Context, string, map[string]any) (any, error) {
		return nil, errors.New("always down")
	})

	e := NewEngine(Config{Generator: gen, Executor: exec, MaxReplans: 3})
	verdict, _, err := e.Run(context.Background(), "goal", nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if generated != 4 {
		t.Errorf("Expected 1+3 generations, got %d", generated)
	}
	if verdict.Status != StatusFailed {
		t.Errorf("Expected FAILED, got %s", verdict.Status)
	}
}

func TestEngine_ZeroReplansMeansNoReplanning(t *testing.T) {
	for _, budget := range []int{0, -1} {
		var generated, executed int
		gen := PlanGeneratorFunc(func(_ context.Context, goal string, _ []ToolInfo) (*Plan, error) {
			generated++
			return NewPlan(goal, RiskLow, Step{Index: 1, ToolName: "calendar.create"})
		})
		exec := ExecutorFunc(func(context.Context, string, map[string]any) (any, error) {
			executed++
			return nil, errors.New("always down")
		})

		e := NewEngine(Config{Generator: gen, Executor: exec, MaxReplans: budget})
		verdict, _, err := e.Run(context.Background(), "goal", nil)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if generated != 1 || executed != 1 {
			t.Errorf("MaxReplans=%d: expected a single attempt, got %d generations and %d executions", budget, generated, executed)
		}
		if verdict.Status != StatusFailed {
			t.Errorf("MaxReplans=%d: expected FAILED, got %s", budget, verdict.Status)
		}
	}
}

func TestEngine_SuppliedPlanIsUsedBeforeReplanning(t *testing.T) {
	var generated int
	gen := PlanGeneratorFunc(func(_ context.Context, goal string, _ []ToolInfo) (*Plan, error) {
		generated++
		return NewPlan(goal, RiskLow, Step{Index: 1, ToolName: "good"})
	})
	exec := ExecutorFunc(func(_ context.Context, tool string, _ map[string]any) (any, error) {
		if tool == "bad" {
			return nil, errors.New("bad tool")
		}
		return "done", nil
	})
	plan := mustPlan(t, "goal", RiskLow, Step{Index: 1, ToolName: "bad"})

	e := NewEngine(Config{Generator: gen, Executor: exec, MaxReplans: 1})
	verdict, _, err := e.Run(context.Background(), "goal", plan)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if generated != 1 {
		t.Errorf("Expected one generation after the supplied plan failed, got %d", generated)
	}
	if verdict.Status != StatusSuccess {
		t.Errorf("Expected SUCCESS, got %s", verdict.Status)
	}
}

func TestEngine_NoPlanNoGenerator(t *testing.T) {
	e := NewEngine(Config{Executor: echoExecutor()})
	_, results, err := e.Run(context.Background(), "goal", nil)
	if !errors.Is(err, ErrNoPlan) {
		t.Fatalf("Expected ErrNoPlan, got %v", err)
	}
	if results != nil {
		t.Errorf("Expected no results, got %+v", results)
	}
}

func TestEngine_GenerationFailureIsRecorded(t *testing.T) {
	gen := PlanGeneratorFunc(func(context.Context, string, []ToolInfo) (*Plan, error) {
		return nil, errors.New("model unavailable")
	})
	e := NewEngine(Config{Generator: gen, Executor: echoExecutor(), MaxReplans: -1})
	verdict, _, err := e.Run(context.Background(), "goal", nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if verdict.Status != StatusFailed || !strings.HasPrefix(verdict.Explanation, ErrCodePlanGeneration) {
		t.Errorf("Expected generation failure verdict, got %+v", verdict)
	}
}

func TestEngine_StepConfirmation(t *testing.T) {
	plan := mustPlan(t, "send", RiskLow, Step{Index: 1, ToolName: "gmail.send", Description: "Send the invite"})
	confirmAll := PermissionCheckerFunc(func(context.Context, string, string) Decision { return Confirm })

	tests := []struct {
		name      string
		confirmer ConfirmationRequester
		wantErr   string
	}{
		{"no confirmer", nil, ErrCodeConfirmationMissing},
		{"user refuses", ConfirmationRequesterFunc(func(context.Context, string) bool { return false }), ErrCodeUserDeniedStep},
		{"user approves", ConfirmationRequesterFunc(func(context.Context, string) bool { return true }), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(Config{Executor: echoExecutor(), Permissions: confirmAll, Confirmer: tt.confirmer})
			_, results, err := e.Run(context.Background(), plan.Goal(), plan)
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			if results[0].Error != tt.wantErr {
				t.Errorf("Expected error %q, got %q", tt.wantErr, results[0].Error)
			}
			if results[0].Success != (tt.wantErr == "") {
				t.Errorf("Unexpected success=%v", results[0].Success)
			}
		})
	}
}

func TestEngine_ExecutorPanicIsCaptured(t *testing.T) {
	plan := mustPlan(t, "boom", RiskLow, Step{Index: 1, ToolName: "explode"}, Step{Index: 2, ToolName: "fine"})
	e := NewEngine(Config{
		Executor: ExecutorFunc(func(_ context.Context, tool string, _ map[string]any) (any, error) {
			if tool == "explode" {
				panic("nil calendar client")
			}
			return "ok", nil
		}),
	})

	verdict, results, err := e.Run(context.Background(), plan.Goal(), plan)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.Contains(results[0].Error, "nil calendar client") {
		t.Errorf("Expected panic message in error, got %q", results[0].Error)
	}
	if verdict.Status != StatusPartial {
		t.Errorf("Expected PARTIAL, got %s", verdict.Status)
	}
}

func TestEngine_CancellationStopsAtInterruptedStep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	plan := mustPlan(t, "cancel", RiskLow,
		Step{Index: 1, ToolName: "first"},
		Step{Index: 2, ToolName: "second"},
		Step{Index: 3, ToolName: "third"},
	)

	var generated int
	e := NewEngine(Config{
		Generator: PlanGeneratorFunc(func(context.Context, string, []ToolInfo) (*Plan, error) {
			generated++
			return plan, nil
		}),
		Executor: ExecutorFunc(func(ctx context.Context, tool string, _ map[string]any) (any, error) {
			if tool == "second" {
				cancel()
				return nil, ctx.Err()
			}
			return "ok", nil
		}),
	})

	verdict, results, err := e.Run(ctx, plan.Goal(), plan)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected results up to the interrupted step, got %d", len(results))
	}
	if !results[0].Success || results[1].Success {
		t.Errorf("Unexpected outcomes: %+v", results)
	}
	if generated != 0 {
		t.Errorf("Expected no replanning after cancellation, got %d", generated)
	}
	if verdict.Status != StatusPartial {
		t.Errorf("Expected PARTIAL, got %s", verdict.Status)
	}
}

func TestEngine_ConcurrentRuns(t *testing.T) {
	e := NewEngine(Config{Executor: echoExecutor()})

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for n := 0; n < 20; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			plan, err := NewPlan(fmt.Sprintf("goal %d", n), RiskLow,
				Step{Index: 1, ToolName: "a", Args: map[string]any{"n": n}},
				Step{Index: 2, ToolName: "b", Args: map[string]any{"n": "$step_1_result.n"}},
			)
			if err != nil {
				errs <- err
				return
			}
			_, results, err := e.Run(context.Background(), plan.Goal(), plan)
			if err != nil {
				errs <- err
				return
			}
			got := results[1].Result.(map[string]any)["n"]
			if got != n {
				errs <- fmt.Errorf("run %d saw value %v", n, got)
			}
		}(n)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestEngine_NoExecutor(t *testing.T) {
	plan := mustPlan(t, "goal", RiskLow, Step{Index: 1, ToolName: "x"})
	e := NewEngine(Config{})
	verdict, results, err := e.Run(context.Background(), plan.Goal(), plan)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if verdict.Status != StatusFailed || results[0].Error != errNoExecutor.Error() {
		t.Errorf("Expected executor failure, got %+v / %+v", verdict, results)
	}
}
