package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rahul/mishri-pev/internal/governance"
	"github.com/rahul/mishri-pev/internal/pev"
	"github.com/rahul/mishri-pev/pkg/config"
)

func TestLoadPlan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	err := os.WriteFile(path, []byte(`
goal: book a meeting and tell me
estimated_risk: low
steps:
  - index: 1
    description: Create the event
    tool: calendar.create
    args:
      title: Meeting
      start: "2026-03-02T09:00:00Z"
  - index: 2
    description: Tell the user
    tool: notify.send
    args:
      text: $prev_result.title
    depends_on: [1]
`), 0644)
	if err != nil {
		t.Fatal(err)
	}

	plan, err := loadPlan(path)
	if err != nil {
		t.Fatalf("loadPlan failed: %v", err)
	}
	if plan.Goal() != "book a meeting and tell me" || plan.Len() != 2 || plan.Risk() != pev.RiskLow {
		t.Errorf("Unexpected plan:\n%s", plan.Summary())
	}
	if got := plan.Steps()[1].Args["text"]; got != "$prev_result.title" {
		t.Errorf("Expected placeholder to survive parsing, got %v", got)
	}

	dup := filepath.Join(t.TempDir(), "dup.yaml")
	_ = os.WriteFile(dup, []byte("steps:\n  - {index: 1, tool: a}\n  - {index: 1, tool: b}\n"), 0644)
	if _, err := loadPlan(dup); err == nil || !strings.Contains(err.Error(), "invalid plan") {
		t.Errorf("Expected duplicate index to be rejected, got %v", err)
	}
}

func TestNewPolicy(t *testing.T) {
	gov, err := newPolicy(config.GovernanceConfig{
		DenyTools:     []string{"browser"},
		ConfirmTools:  []string{"notify.send"},
		DenyArguments: []string{`DROP\s+TABLE`},
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	tests := []struct {
		tool string
		want pev.Decision
	}{
		{"browser", pev.Deny},
		{"shell", pev.Confirm},
		{"notify.send", pev.Confirm},
		{"calendar.list", pev.Allow},
	}
	for _, tt := range tests {
		if got := gov.Check(ctx, tt.tool, ""); got != tt.want {
			t.Errorf("%s: expected %s, got %s", tt.tool, tt.want, got)
		}
	}

	res, err := gov.Evaluate(ctx, governance.Request{Tool: "shell", Arguments: `{"command":"rm -rf /"}`})
	if err != nil || res.Effect != governance.EffectDeny {
		t.Errorf("Expected default destructive pattern to be denied, got %+v %v", res, err)
	}

	if _, err := newPolicy(config.GovernanceConfig{DenyArguments: []string{"("}}); err == nil {
		t.Error("Expected invalid pattern to fail")
	}
}
