package pev

import (
	"errors"
	"fmt"
	"strings"
)

// Risk is the planner's estimate of how dangerous a plan is.
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// confirmationStepThreshold is the plan length at which the whole plan
// needs a human sign-off regardless of risk.
const confirmationStepThreshold = 5

var (
	ErrDuplicateStep = errors.New("duplicate step index")
	ErrInvalidRisk   = errors.New("invalid risk level")
)

// ParseRisk converts a textual risk level into a Risk.
func ParseRisk(s string) (Risk, error) {
	switch r := Risk(strings.ToLower(strings.TrimSpace(s))); r {
	case RiskLow, RiskMedium, RiskHigh:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRisk, s)
	}
}

// Step is a single tool invocation inside a plan.
type Step struct {
	Index       int
	Description string
	ToolName    string
	Args        map[string]any
	DependsOn   []int
}

func (s Step) clone() Step {
	out := s
	if s.Args != nil {
		out.Args = make(map[string]any, len(s.Args))
		for k, v := range s.Args {
			out.Args[k] = v
		}
	}
	if s.DependsOn != nil {
		out.DependsOn = append([]int(nil), s.DependsOn...)
	}
	return out
}

// Plan is an ordered list of steps for one goal. It cannot be changed
// after NewPlan returns; replanning always produces a new Plan.
type Plan struct {
	goal  string
	risk  Risk
	steps []Step
}

// NewPlan validates and copies the given steps into a Plan.
func NewPlan(goal string, risk Risk, steps ...Step) (*Plan, error) {
	if _, err := ParseRisk(string(risk)); err != nil {
		return nil, err
	}

	seen := make(map[int]bool, len(steps))
	copied := make([]Step, 0, len(steps))
	for _, s := range steps {
		if seen[s.Index] {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateStep, s.Index)
		}
		seen[s.Index] = true
		copied = append(copied, s.clone())
	}

	return &Plan{goal: goal, risk: risk, steps: copied}, nil
}

func (p *Plan) Goal() string { return p.goal }

func (p *Plan) Risk() Risk { return p.risk }

func (p *Plan) Len() int { return len(p.steps) }

// Steps returns a copy of the plan's steps in plan order.
func (p *Plan) Steps() []Step {
	out := make([]Step, len(p.steps))
	for i, s := range p.steps {
		out[i] = s.clone()
	}
	return out
}

// step returns the step at position i without copying. Callers inside the
// package must not modify it.
func (p *Plan) step(i int) Step {
	return p.steps[i]
}

// RequiresConfirmation reports whether the whole plan must be approved
// before any step runs.
func (p *Plan) RequiresConfirmation() bool {
	return p.risk == RiskHigh || len(p.steps) >= confirmationStepThreshold
}

// Truncate returns a plan holding at most the first n steps. The receiver
// is returned unchanged when it is already short enough.
func (p *Plan) Truncate(n int) *Plan {
	if n < 0 || len(p.steps) <= n {
		return p
	}
	return &Plan{goal: p.goal, risk: p.risk, steps: p.steps[:n:n]}
}

// Summary renders the plan for a human approval prompt.
func (p *Plan) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\nRisk: %s\nSteps (%d):\n", p.goal, p.risk, len(p.steps))
	for _, s := range p.steps {
		fmt.Fprintf(&b, "  %d. [%s] %s", s.Index, s.ToolName, s.Description)
		if len(s.DependsOn) > 0 {
			fmt.Fprintf(&b, " (after %s)", joinInts(s.DependsOn))
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = fmt.Sprintf("%d", x)
	}
	return strings.Join(parts, ", ")
}

// PlanSpec is the serialized form of a plan, used by the LLM planner and
// by plan files passed on the command line.
type PlanSpec struct {
	Goal          string     `json:"goal" yaml:"goal"`
	EstimatedRisk string     `json:"estimated_risk" yaml:"estimated_risk"`
	Steps         []StepSpec `json:"steps" yaml:"steps"`
}

// StepSpec is the serialized form of a Step.
type StepSpec struct {
	Index       int            `json:"index" yaml:"index"`
	Description string         `json:"description" yaml:"description"`
	Tool        string         `json:"tool" yaml:"tool"`
	Args        map[string]any `json:"args,omitempty" yaml:"args,omitempty"`
	DependsOn   []int          `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
}

// Build converts the serialized plan into an immutable Plan. An empty risk
// is read as medium.
func (ps PlanSpec) Build() (*Plan, error) {
	riskText := ps.EstimatedRisk
	if strings.TrimSpace(riskText) == "" {
		riskText = string(RiskMedium)
	}
	risk, err := ParseRisk(riskText)
	if err != nil {
		return nil, err
	}

	steps := make([]Step, 0, len(ps.Steps))
	for _, s := range ps.Steps {
		steps = append(steps, Step{
			Index:       s.Index,
			Description: s.Description,
			ToolName:    s.Tool,
			Args:        s.Args,
			DependsOn:   s.DependsOn,
		})
	}
	return NewPlan(ps.Goal, risk, steps...)
}
