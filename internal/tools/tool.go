package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rahul/mishri-pev/internal/pev"
)

// Tool defines the interface for all agent capabilities.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any // JSON Schema for the tool's inputs
	Execute(ctx context.Context, args map[string]any) (any, error)
}

// Registry manages the set of available tools and executes plan steps
// against them.
type Registry struct {
	Tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{
		Tools: make(map[string]Tool),
	}
}

func (r *Registry) Register(t Tool) {
	r.Tools[t.Name()] = t
}

func (r *Registry) Get(name string) Tool {
	return r.Tools[name]
}

// Execute runs the named tool. It satisfies pev.Executor.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	t := r.Get(name)
	if t == nil {
		return nil, fmt.Errorf("tool %s not found", name)
	}
	return t.Execute(ctx, args)
}

// Describe lists the registered tools for the planner, sorted by name.
func (r *Registry) Describe() []pev.ToolInfo {
	infos := make([]pev.ToolInfo, 0, len(r.Tools))
	for _, t := range r.Tools {
		infos = append(infos, pev.ToolInfo{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// decodeArgs copies loosely typed plan arguments into a typed struct.
func decodeArgs(args map[string]any, dst any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("invalid input: %v", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("invalid input: %v", err)
	}
	return nil
}
