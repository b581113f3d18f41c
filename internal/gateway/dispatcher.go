package gateway

import (
	"context"
	"log"
	"sync"

	"github.com/rahul/mishri-pev/internal/pev"
)

// Dispatcher turns incoming chat messages into goals. Each chat runs at most
// one goal at a time, in its own goroutine, so approval replies can reach
// the run that is waiting for them.
type Dispatcher struct {
	Runner    Runner
	History   HistoryRecorder
	Approvals *Approvals
	Send      func(chatID, text string) error

	mu   sync.Mutex
	busy map[string]bool
	wg   sync.WaitGroup
}

func NewDispatcher(runner Runner, history HistoryRecorder, approvals *Approvals, send func(chatID, text string) error) *Dispatcher {
	return &Dispatcher{
		Runner:    runner,
		History:   history,
		Approvals: approvals,
		Send:      send,
		busy:      make(map[string]bool),
	}
}

// Handle routes one incoming message. It never blocks on the run itself.
func (d *Dispatcher) Handle(ctx context.Context, chatID, text string) {
	if d.Approvals != nil && d.Approvals.Resolve(chatID, text) {
		return
	}

	d.mu.Lock()
	if d.busy[chatID] {
		d.mu.Unlock()
		d.reply(chatID, "⏳ Still working on your previous request.")
		return
	}
	d.busy[chatID] = true
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			d.mu.Lock()
			delete(d.busy, chatID)
			d.mu.Unlock()
		}()
		d.run(ctx, chatID, text)
	}()
}

// Wait blocks until every started run has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context, chatID, goal string) {
	d.record(chatID, "human", goal)

	verdict, results, err := d.Runner.Run(pev.WithChatID(ctx, chatID), goal, nil)
	if err != nil {
		log.Printf("Error running goal for chat %s: %v", chatID, err)
		d.reply(chatID, "I'm having trouble planning that right now...")
		return
	}

	report := FormatReport(verdict, results)
	d.record(chatID, "ai", report)
	d.reply(chatID, report)
}

func (d *Dispatcher) record(chatID, role, content string) {
	if d.History == nil {
		return
	}
	if err := d.History.AddMessage(chatID, role, content); err != nil {
		log.Printf("Error saving %s message for chat %s: %v", role, chatID, err)
	}
}

func (d *Dispatcher) reply(chatID, text string) {
	if err := d.Send(chatID, text); err != nil {
		log.Printf("Error replying to chat %s: %v", chatID, err)
	}
}
