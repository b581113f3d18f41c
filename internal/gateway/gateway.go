package gateway

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/rahul/mishri-pev/internal/pev"
)

// Messenger defines the interface for communication gateways (Telegram, Discord, etc.)
type Messenger interface {
	// Start begins the message listening loop and blocks until ctx is done
	Start(ctx context.Context) error
	// Send sends a message to a specific chat
	Send(chatID string, text string) error
	// Stop gracefully shuts down the gateway
	Stop() error
}

// Runner executes a goal through the plan-execute-verify loop.
type Runner interface {
	Run(ctx context.Context, goal string, plan *pev.Plan) (pev.VerifyResult, []pev.StepResult, error)
}

type HistoryRecorder interface {
	AddMessage(chatID string, role string, content string) error
}

// Hub routes outgoing messages to the gateway owning a chat. Chat ids are
// matched by prefix; the empty prefix is the fallback route.
type Hub struct {
	mu     sync.RWMutex
	routes map[string]Messenger
}

func NewHub() *Hub {
	return &Hub{routes: make(map[string]Messenger)}
}

func (h *Hub) Register(prefix string, m Messenger) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.routes[prefix] = m
}

func (h *Hub) Send(chatID string, text string) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var (
		best   Messenger
		bestSz = -1
	)
	for prefix, m := range h.routes {
		if strings.HasPrefix(chatID, prefix) && len(prefix) > bestSz {
			best, bestSz = m, len(prefix)
		}
	}
	if best == nil {
		return fmt.Errorf("no gateway for chat %s", chatID)
	}
	return best.Send(chatID, text)
}

// Messengers returns the registered gateways.
func (h *Hub) Messengers() []Messenger {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Messenger, 0, len(h.routes))
	for _, m := range h.routes {
		out = append(out, m)
	}
	return out
}

// CLIChatID is the chat of runs started from the terminal.
const CLIChatID = "cli"

// LogMessenger writes messages to the process log. It serves chats that
// have no live gateway, such as tasks scheduled from the terminal.
type LogMessenger struct{}

func (LogMessenger) Start(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (LogMessenger) Send(chatID string, text string) error {
	log.Printf("[%s] %s", chatID, text)
	return nil
}

func (LogMessenger) Stop() error { return nil }
