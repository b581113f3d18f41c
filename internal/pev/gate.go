package pev

import "context"

// Decision is the outcome of a permission check.
type Decision uint8

const (
	// Deny is the zero value so that an unset decision never grants access.
	Deny Decision = iota
	Allow
	Confirm
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Confirm:
		return "confirm"
	default:
		return "deny"
	}
}

// PermissionChecker decides whether a tool may run. It must not block for
// long and must not fail; policies that cannot decide should answer Deny.
type PermissionChecker interface {
	Check(ctx context.Context, toolName, description string) Decision
}

// ConfirmationRequester asks a human to approve something. Implementations
// own their timeouts and answer false when nobody responds.
type ConfirmationRequester interface {
	Ask(ctx context.Context, summary string) bool
}

// Executor performs a tool invocation.
type Executor interface {
	Execute(ctx context.Context, toolName string, args map[string]any) (any, error)
}

// ToolInfo describes a tool offered to the plan generator.
type ToolInfo struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// PlanGenerator produces a plan for a goal.
type PlanGenerator interface {
	Generate(ctx context.Context, goal string, tools []ToolInfo) (*Plan, error)
}

type PermissionCheckerFunc func(ctx context.Context, toolName, description string) Decision

func (f PermissionCheckerFunc) Check(ctx context.Context, toolName, description string) Decision {
	return f(ctx, toolName, description)
}

type ConfirmationRequesterFunc func(ctx context.Context, summary string) bool

func (f ConfirmationRequesterFunc) Ask(ctx context.Context, summary string) bool {
	return f(ctx, summary)
}

type ExecutorFunc func(ctx context.Context, toolName string, args map[string]any) (any, error)

func (f ExecutorFunc) Execute(ctx context.Context, toolName string, args map[string]any) (any, error) {
	return f(ctx, toolName, args)
}

type PlanGeneratorFunc func(ctx context.Context, goal string, tools []ToolInfo) (*Plan, error)

func (f PlanGeneratorFunc) Generate(ctx context.Context, goal string, tools []ToolInfo) (*Plan, error) {
	return f(ctx, goal, tools)
}
