package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rahul/mishri-pev/internal/pev"
	"github.com/rahul/mishri-pev/internal/store"
)

type CalendarStore interface {
	AddEvent(chatID, title string, start, end time.Time, notes string) (store.Event, error)
	ListEvents(chatID string, from, to time.Time) ([]store.Event, error)
}

// CalendarCreateTool adds an event to the local calendar.
type CalendarCreateTool struct {
	Store CalendarStore
}

func NewCalendarCreateTool(s CalendarStore) *CalendarCreateTool {
	return &CalendarCreateTool{Store: s}
}

func (c *CalendarCreateTool) Name() string {
	return "calendar.create"
}

func (c *CalendarCreateTool) Description() string {
	return "Create a calendar event. Returns {id, title, start, end, notes}."
}

func (c *CalendarCreateTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]any{
				"type":        "string",
				"description": "Event title",
			},
			"start": map[string]any{
				"type":        "string",
				"description": "Start time in RFC3339 (e.g. 2026-03-02T09:00:00Z)",
			},
			"end": map[string]any{
				"type":        "string",
				"description": "End time in RFC3339; defaults to one hour after start",
			},
			"notes": map[string]any{
				"type": "string",
			},
		},
		"required": []string{"title", "start"},
	}
}

func (c *CalendarCreateTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	var in struct {
		Title string `json:"title"`
		Start string `json:"start"`
		End   string `json:"end"`
		Notes string `json:"notes"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	if in.Title == "" {
		return nil, errors.New("title is required")
	}

	start, err := time.Parse(time.RFC3339, in.Start)
	if err != nil {
		return nil, fmt.Errorf("invalid start time %q: %v", in.Start, err)
	}
	end := start.Add(time.Hour)
	if in.End != "" {
		if end, err = time.Parse(time.RFC3339, in.End); err != nil {
			return nil, fmt.Errorf("invalid end time %q: %v", in.End, err)
		}
	}

	evt, err := c.Store.AddEvent(pev.ChatID(ctx), in.Title, start, end, in.Notes)
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	return eventResult(evt), nil
}

// CalendarListTool lists events in a time window.
type CalendarListTool struct {
	Store CalendarStore
	Now   func() time.Time
}

func NewCalendarListTool(s CalendarStore) *CalendarListTool {
	return &CalendarListTool{Store: s, Now: time.Now}
}

func (c *CalendarListTool) Name() string {
	return "calendar.list"
}

func (c *CalendarListTool) Description() string {
	return "List calendar events between 'from' and 'to' (RFC3339). Defaults to the next 24 hours. Returns {count, events}."
}

func (c *CalendarListTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"from": map[string]any{
				"type":        "string",
				"description": "Window start in RFC3339",
			},
			"to": map[string]any{
				"type":        "string",
				"description": "Window end in RFC3339",
			},
		},
	}
}

func (c *CalendarListTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	var in struct {
		From string `json:"from"`
		To   string `json:"to"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}

	from := c.Now()
	if in.From != "" {
		t, err := time.Parse(time.RFC3339, in.From)
		if err != nil {
			return nil, fmt.Errorf("invalid from time %q: %v", in.From, err)
		}
		from = t
	}
	to := from.Add(24 * time.Hour)
	if in.To != "" {
		t, err := time.Parse(time.RFC3339, in.To)
		if err != nil {
			return nil, fmt.Errorf("invalid to time %q: %v", in.To, err)
		}
		to = t
	}

	events, err := c.Store.ListEvents(pev.ChatID(ctx), from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	list := make([]map[string]any, 0, len(events))
	for _, e := range events {
		list = append(list, eventResult(e))
	}
	return map[string]any{"count": len(list), "events": list}, nil
}

func eventResult(e store.Event) map[string]any {
	return map[string]any{
		"id":    e.ID,
		"title": e.Title,
		"start": e.Start.Format(time.RFC3339),
		"end":   e.End.Format(time.RFC3339),
		"notes": e.Notes,
	}
}
