package governance

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sync"

	"github.com/rahul/mishri-pev/internal/pev"
)

// Effect defines the result of a policy evaluation.
type Effect string

const (
	EffectAllow   Effect = "allow"
	EffectDeny    Effect = "deny"
	EffectConfirm Effect = "confirm"
)

// Request contains the context of a tool call to be evaluated.
type Request struct {
	Tool        string
	Description string
	Arguments   string
	ChatID      string
}

// Result contains the outcome of a policy evaluation.
type Result struct {
	Effect Effect
	Reason string
}

// PolicyEngine evaluates tool calls against a set of rules.
type PolicyEngine interface {
	Evaluate(ctx context.Context, req Request) (Result, error)
}

// DefaultPolicyEngine denies listed tools, asks for confirmation on others,
// and rejects arguments matching restricted patterns. Everything else is
// allowed.
type DefaultPolicyEngine struct {
	mu           sync.RWMutex
	DeniedTools  map[string]bool
	ConfirmTools map[string]bool
	DeniedRegex  []*regexp.Regexp
}

func NewDefaultPolicyEngine() *DefaultPolicyEngine {
	return &DefaultPolicyEngine{
		DeniedTools:  make(map[string]bool),
		ConfirmTools: make(map[string]bool),
		DeniedRegex:  make([]*regexp.Regexp, 0),
	}
}

func (e *DefaultPolicyEngine) DenyTool(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.DeniedTools[name] = true
}

// RequireConfirmation makes every step using the tool ask the user first.
func (e *DefaultPolicyEngine) RequireConfirmation(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ConfirmTools[name] = true
}

func (e *DefaultPolicyEngine) DenyArguments(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.DeniedRegex = append(e.DeniedRegex, re)
	return nil
}

func (e *DefaultPolicyEngine) Evaluate(ctx context.Context, req Request) (Result, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.DeniedTools[req.Tool] {
		return Result{
			Effect: EffectDeny,
			Reason: fmt.Sprintf("Tool '%s' is restricted by system policy", req.Tool),
		}, nil
	}

	if req.Arguments != "" {
		for _, re := range e.DeniedRegex {
			if re.MatchString(req.Arguments) {
				return Result{
					Effect: EffectDeny,
					Reason: fmt.Sprintf("Arguments match restricted pattern: %s", re.String()),
				}, nil
			}
		}
	}

	if e.ConfirmTools[req.Tool] {
		return Result{
			Effect: EffectConfirm,
			Reason: fmt.Sprintf("Tool '%s' requires user confirmation", req.Tool),
		}, nil
	}

	return Result{
		Effect: EffectAllow,
		Reason: "Approved by default policy",
	}, nil
}

// Check adapts the policy to the engine's permission gate. Evaluation
// errors deny.
func (e *DefaultPolicyEngine) Check(ctx context.Context, toolName, description string) pev.Decision {
	return Decide(ctx, e, toolName, description)
}

// Decide evaluates any PolicyEngine as an engine permission decision.
func Decide(ctx context.Context, p PolicyEngine, toolName, description string) pev.Decision {
	res, err := p.Evaluate(ctx, Request{
		Tool:        toolName,
		Description: description,
		ChatID:      pev.ChatID(ctx),
	})
	if err != nil {
		return pev.Deny
	}
	switch res.Effect {
	case EffectAllow:
		return pev.Allow
	case EffectConfirm:
		return pev.Confirm
	default:
		return pev.Deny
	}
}

// GuardExecutor screens resolved arguments with the policy before handing
// the call to next. Argument patterns are only enforced here; the engine's
// permission gate sees tool names and descriptions.
func GuardExecutor(p PolicyEngine, next pev.Executor) pev.Executor {
	return pev.ExecutorFunc(func(ctx context.Context, toolName string, args map[string]any) (any, error) {
		raw, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("encode arguments for policy check: %w", err)
		}
		res, err := p.Evaluate(ctx, Request{
			Tool:      toolName,
			Arguments: string(raw),
			ChatID:    pev.ChatID(ctx),
		})
		if err != nil {
			return nil, fmt.Errorf("policy evaluation failed: %w", err)
		}
		if res.Effect == EffectDeny {
			return nil, fmt.Errorf("blocked by policy: %s", res.Reason)
		}
		return next.Execute(ctx, toolName, args)
	})
}
