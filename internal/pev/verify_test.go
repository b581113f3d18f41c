package pev

import (
	"context"
	"reflect"
	"testing"
)

func TestDefaultVerifier(t *testing.T) {
	ok := func(i int) StepResult { return StepResult{StepIndex: i, Success: true, Result: "ok"} }
	bad := func(i int) StepResult { return StepResult{StepIndex: i, Error: "boom"} }

	tests := []struct {
		name       string
		results    []StepResult
		wantStatus Status
		wantFailed []int
	}{
		{"empty", nil, StatusFailed, nil},
		{"all succeed", []StepResult{ok(1), ok(2)}, StatusSuccess, nil},
		{"all fail", []StepResult{bad(1), bad(2)}, StatusFailed, []int{1, 2}},
		{"mixed", []StepResult{ok(1), bad(4), ok(2), bad(9)}, StatusPartial, []int{4, 9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DefaultVerifier{}.Verify(context.Background(), "goal", tt.results)
			if got.Status != tt.wantStatus {
				t.Errorf("Status = %s, want %s", got.Status, tt.wantStatus)
			}
			if !reflect.DeepEqual(got.FailedSteps, tt.wantFailed) {
				t.Errorf("FailedSteps = %v, want %v", got.FailedSteps, tt.wantFailed)
			}
			if got.Explanation == "" {
				t.Error("Expected an explanation")
			}
		})
	}
}

func TestEngine_UsesCustomVerifier(t *testing.T) {
	plan, err := NewPlan("create event", RiskLow, Step{Index: 1, ToolName: "calendar.create"})
	if err != nil {
		t.Fatal(err)
	}

	// Succeeds at the tool level but returns no event id.
	exec := ExecutorFunc(func(context.Context, string, map[string]any) (any, error) {
		return map[string]any{}, nil
	})
	verifier := VerifierFunc(func(ctx context.Context, goal string, results []StepResult) VerifyResult {
		for _, r := range results {
			m, _ := r.Result.(map[string]any)
			if _, ok := m["id"]; !ok {
				return VerifyResult{Status: StatusFailed, FailedSteps: []int{r.StepIndex}, Explanation: "no event id returned"}
			}
		}
		return DefaultVerifier{}.Verify(ctx, goal, results)
	})

	e := NewEngine(Config{Executor: exec, Verifier: verifier, MaxReplans: -1})
	verdict, _, err := e.Run(context.Background(), plan.Goal(), plan)
	if err != nil {
		t.Fatal(err)
	}
	if verdict.Status != StatusFailed || verdict.Explanation != "no event id returned" {
		t.Errorf("Expected custom verdict, got %+v", verdict)
	}
}
