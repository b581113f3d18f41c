package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/rahul/mishri-pev/internal/pev"
	"github.com/rahul/mishri-pev/internal/store"
)

const minTaskInterval = 60

type CronStore interface {
	AddTask(chatID string, description string, intervalSeconds int) (int64, error)
	ListTasks(chatID string) ([]store.Task, error)
	ClearTasks(chatID string) error
}

// CronTool lets a plan schedule proactive checks. Scheduled descriptions
// are later run as goals by the scheduler.
type CronTool struct {
	Store CronStore
}

func NewCronTool(store CronStore) *CronTool {
	return &CronTool{Store: store}
}

func (c *CronTool) Name() string {
	return "schedule_task"
}

func (c *CronTool) Description() string {
	return "Manage recurring tasks: 'schedule' a goal to run every interval (0 = once), 'list' them, or 'clear' all. Returns {task_id} for schedule."
}

func (c *CronTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type":        "string",
				"enum":        []string{"schedule", "list", "clear"},
				"description": "The action to perform.",
			},
			"task_description": map[string]any{
				"type":        "string",
				"description": "The goal the agent should pursue when the task fires (only for 'schedule')",
			},
			"interval_seconds": map[string]any{
				"type":        "integer",
				"description": "The interval in seconds (0 for one-shot, otherwise minimum 60s; only for 'schedule')",
			},
		},
		"required": []string{"action"},
	}
}

func (c *CronTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	var in struct {
		Action   string `json:"action"`
		Desc     string `json:"task_description"`
		Interval int    `json:"interval_seconds"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}

	chatID := pev.ChatID(ctx)
	if chatID == "" {
		return nil, errors.New("missing chat id in context")
	}

	switch in.Action {
	case "clear":
		if err := c.Store.ClearTasks(chatID); err != nil {
			return nil, fmt.Errorf("failed to clear tasks: %v", err)
		}
		return map[string]any{"cleared": true}, nil

	case "list":
		tasks, err := c.Store.ListTasks(chatID)
		if err != nil {
			return nil, fmt.Errorf("failed to list tasks: %v", err)
		}
		list := make([]map[string]any, 0, len(tasks))
		for _, t := range tasks {
			list = append(list, map[string]any{
				"task_id":          t.ID,
				"task_description": t.Description,
				"interval_seconds": t.IntervalSeconds,
			})
		}
		return map[string]any{"tasks": list}, nil

	case "schedule":
		if in.Desc == "" {
			return nil, errors.New("task_description is required")
		}
		if in.Interval != 0 && in.Interval < minTaskInterval {
			return nil, fmt.Errorf("minimum interval is %d seconds", minTaskInterval)
		}
		id, err := c.Store.AddTask(chatID, in.Desc, in.Interval)
		if err != nil {
			return nil, fmt.Errorf("failed to schedule task: %v", err)
		}
		return map[string]any{
			"task_id":          id,
			"task_description": in.Desc,
			"interval_seconds": in.Interval,
		}, nil

	default:
		return nil, fmt.Errorf("invalid action %q: use 'schedule', 'list' or 'clear'", in.Action)
	}
}
