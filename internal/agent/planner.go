package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/rahul/mishri-pev/internal/observability"
	"github.com/rahul/mishri-pev/internal/pev"
)

const (
	proposePlanTool = "propose_plan"
	historyWindow   = 5
)

var ErrNoProposal = errors.New("planner did not propose a plan")

type HistoryStore interface {
	GetHistory(chatID string, limit int) ([]llms.MessageContent, error)
}

// Planner asks an LLM for a plan through a propose_plan tool call. It
// implements pev.PlanGenerator.
type Planner struct {
	Model     llms.Model
	ModelName string
	Prompts   *PromptManager
	History   HistoryStore
	Logger    *observability.Logger
}

func NewPlanner(model llms.Model, prompts *PromptManager, history HistoryStore, logger *observability.Logger) *Planner {
	return &Planner{
		Model:   model,
		Prompts: prompts,
		History: history,
		Logger:  logger,
	}
}

func (p *Planner) Generate(ctx context.Context, goal string, tools []pev.ToolInfo) (*pev.Plan, error) {
	systemPrompt, err := p.Prompts.GetPlannerPrompt()
	if err != nil {
		return nil, fmt.Errorf("failed to load planner prompt: %v", err)
	}

	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(systemPrompt + "\n\n" + describeTools(tools))},
		},
	}

	chatID := pev.ChatID(ctx)
	if p.History != nil && chatID != "" {
		// History is context only; a broken store must not block planning.
		if history, err := p.History.GetHistory(chatID, historyWindow); err == nil {
			messages = append(messages, history...)
		}
	}

	messages = append(messages, llms.MessageContent{
		Role:  llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{llms.TextPart(goal)},
	})

	resp, err := p.Model.GenerateContent(ctx, messages, llms.WithTools(plannerTools()))
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrNoProposal)
	}
	choice := resp.Choices[0]

	p.Logger.LogLLM(chatID, "", goal, choice.Content, choice.ToolCalls)
	p.logCost(chatID, choice)

	spec, err := proposal(choice)
	if err != nil {
		return nil, err
	}
	if spec.Goal == "" {
		spec.Goal = goal
	}
	if err := checkTools(spec, tools); err != nil {
		return nil, err
	}
	return spec.Build()
}

// proposal extracts the plan from a propose_plan call, falling back to a
// JSON plan in the text content.
func proposal(choice *llms.ContentChoice) (pev.PlanSpec, error) {
	var spec pev.PlanSpec
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil || tc.FunctionCall.Name != proposePlanTool {
			continue
		}
		if err := json.Unmarshal([]byte(tc.FunctionCall.Arguments), &spec); err != nil {
			return spec, fmt.Errorf("failed to parse %s arguments: %v", proposePlanTool, err)
		}
		return spec, nil
	}

	content := strings.TrimSpace(choice.Content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.Trim(content, "`\n ")
	if strings.HasPrefix(content, "{") && json.Unmarshal([]byte(content), &spec) == nil && len(spec.Steps) > 0 {
		return spec, nil
	}

	if len(content) > 200 {
		content = content[:200] + "..."
	}
	return spec, fmt.Errorf("%w: %q", ErrNoProposal, content)
}

func checkTools(spec pev.PlanSpec, tools []pev.ToolInfo) error {
	if len(tools) == 0 {
		return nil
	}
	known := make(map[string]bool, len(tools))
	for _, t := range tools {
		known[t.Name] = true
	}
	for _, s := range spec.Steps {
		if !known[s.Tool] {
			return fmt.Errorf("planner proposed unknown tool %q in step %d", s.Tool, s.Index)
		}
	}
	return nil
}

func (p *Planner) logCost(chatID string, choice *llms.ContentChoice) {
	prompt, _ := choice.GenerationInfo["PromptTokens"].(int)
	completion, _ := choice.GenerationInfo["CompletionTokens"].(int)
	if prompt == 0 && completion == 0 {
		return
	}
	p.Logger.LogCost(chatID, "", prompt, completion, p.ModelName)
}

func describeTools(tools []pev.ToolInfo) string {
	var b strings.Builder
	b.WriteString("## Available Tools:\n")
	for _, t := range tools {
		fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
		if len(t.Parameters) > 0 {
			if params, err := json.Marshal(t.Parameters); err == nil {
				fmt.Fprintf(&b, "  parameters: %s\n", params)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func plannerTools() []llms.Tool {
	return []llms.Tool{
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        proposePlanTool,
				Description: "Submit a structured plan of tool invocations that achieves the user's goal.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"goal": map[string]any{
							"type": "string",
						},
						"estimated_risk": map[string]any{
							"type": "string",
							"enum": []string{"low", "medium", "high"},
						},
						"steps": map[string]any{
							"type": "array",
							"items": map[string]any{
								"type": "object",
								"properties": map[string]any{
									"index": map[string]any{
										"type": "integer",
									},
									"description": map[string]any{
										"type": "string",
									},
									"tool": map[string]any{
										"type": "string",
									},
									"args": map[string]any{
										"type": "object",
									},
									"depends_on": map[string]any{
										"type":  "array",
										"items": map[string]any{"type": "integer"},
									},
								},
								"required": []string{"index", "description", "tool"},
							},
						},
					},
					"required": []string{"estimated_risk", "steps"},
				},
			},
		},
	}
}
