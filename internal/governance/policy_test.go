package governance

import (
	"context"
	"strings"
	"testing"

	"github.com/rahul/mishri-pev/internal/pev"
)

func TestDefaultPolicyEngine_Evaluate(t *testing.T) {
	engine := NewDefaultPolicyEngine()
	ctx := context.Background()

	// Test Allow (Default)
	req1 := Request{Tool: "search"}
	res1, err := engine.Evaluate(ctx, req1)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if res1.Effect != EffectAllow {
		t.Errorf("Expected EffectAllow, got %s", res1.Effect)
	}

	// Test Deny
	engine.DenyTool("shell")
	req2 := Request{Tool: "shell"}
	res2, err := engine.Evaluate(ctx, req2)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if res2.Effect != EffectDeny {
		t.Errorf("Expected EffectDeny, got %s", res2.Effect)
	}

	// Test Confirm
	engine.RequireConfirmation("notify.send")
	res3, err := engine.Evaluate(ctx, Request{Tool: "notify.send"})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if res3.Effect != EffectConfirm {
		t.Errorf("Expected EffectConfirm, got %s", res3.Effect)
	}
}

func TestDefaultPolicyEngine_Check(t *testing.T) {
	engine := NewDefaultPolicyEngine()
	engine.DenyTool("shell")
	engine.RequireConfirmation("calendar.create")
	ctx := context.Background()

	tests := []struct {
		tool string
		want pev.Decision
	}{
		{"search", pev.Allow},
		{"shell", pev.Deny},
		{"calendar.create", pev.Confirm},
	}
	for _, tt := range tests {
		if got := engine.Check(ctx, tt.tool, "some step"); got != tt.want {
			t.Errorf("Check(%s) = %s, want %s", tt.tool, got, tt.want)
		}
	}
}

type failingPolicy struct{}

func (failingPolicy) Evaluate(context.Context, Request) (Result, error) {
	return Result{}, context.DeadlineExceeded
}

func TestDecide_ErrorDenies(t *testing.T) {
	if got := Decide(context.Background(), failingPolicy{}, "search", ""); got != pev.Deny {
		t.Errorf("Expected Deny on evaluation error, got %s", got)
	}
}

func TestGuardExecutor(t *testing.T) {
	engine := NewDefaultPolicyEngine()
	if err := engine.DenyArguments(`rm\s+-rf`); err != nil {
		t.Fatal(err)
	}

	calls := 0
	next := pev.ExecutorFunc(func(context.Context, string, map[string]any) (any, error) {
		calls++
		return "ran", nil
	})
	guarded := GuardExecutor(engine, next)
	ctx := context.Background()

	out, err := guarded.Execute(ctx, "shell", map[string]any{"command": "ls -la"})
	if err != nil || out != "ran" {
		t.Errorf("Expected safe command to run, got %v, %v", out, err)
	}

	_, err = guarded.Execute(ctx, "shell", map[string]any{"command": "rm -rf /"})
	if err == nil || !strings.Contains(err.Error(), "blocked by policy") {
		t.Errorf("Expected policy block, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call through the guard, got %d", calls)
	}
}
