package tools

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rahul/mishri-pev/internal/pev"
)

type Messenger interface {
	Send(chatID string, text string) error
}

// NotifyTool sends a message to the chat the run belongs to. The messenger
// is attached once the gateway exists.
type NotifyTool struct {
	mu        sync.RWMutex
	messenger Messenger
}

func NewNotifyTool() *NotifyTool {
	return &NotifyTool{}
}

func (n *NotifyTool) SetMessenger(m Messenger) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messenger = m
}

func (n *NotifyTool) Name() string {
	return "notify.send"
}

func (n *NotifyTool) Description() string {
	return "Send a text message to the user in the current chat. Returns {chat_id, text}."
}

func (n *NotifyTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text": map[string]any{
				"type":        "string",
				"description": "The message to send",
			},
		},
		"required": []string{"text"},
	}
}

func (n *NotifyTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	text, ok := args["text"]
	if !ok {
		return nil, errors.New("text is required")
	}
	msg := fmt.Sprint(text)

	n.mu.RLock()
	m := n.messenger
	n.mu.RUnlock()
	if m == nil {
		return nil, errors.New("no messaging gateway is connected")
	}

	chatID := pev.ChatID(ctx)
	if chatID == "" {
		return nil, errors.New("missing chat id in context")
	}
	if err := m.Send(chatID, msg); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	return map[string]any{"chat_id": chatID, "text": msg}, nil
}
