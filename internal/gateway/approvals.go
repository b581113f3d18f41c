package gateway

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/rahul/mishri-pev/internal/pev"
)

const DefaultApprovalTimeout = 2 * time.Minute

const approvalFooter = "\n\nReply *yes* to approve or *no* to cancel."

// Approvals asks the chat a run belongs to for a yes/no answer and waits for
// the reply. It implements pev.ConfirmationRequester. A chat has at most one
// open question; unanswered questions count as a refusal.
type Approvals struct {
	mu      sync.Mutex
	pending map[string]chan bool
	send    func(chatID, text string) error
	Timeout time.Duration
}

func NewApprovals(send func(chatID, text string) error, timeout time.Duration) *Approvals {
	if timeout <= 0 {
		timeout = DefaultApprovalTimeout
	}
	return &Approvals{
		pending: make(map[string]chan bool),
		send:    send,
		Timeout: timeout,
	}
}

func (a *Approvals) Ask(ctx context.Context, summary string) bool {
	chatID := pev.ChatID(ctx)
	if chatID == "" {
		return false
	}

	reply := make(chan bool, 1)
	a.mu.Lock()
	if _, busy := a.pending[chatID]; busy {
		a.mu.Unlock()
		log.Printf("Approval already pending for chat %s, refusing", chatID)
		return false
	}
	a.pending[chatID] = reply
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		if a.pending[chatID] == reply {
			delete(a.pending, chatID)
		}
		a.mu.Unlock()
	}()

	if err := a.send(chatID, "🔐 *Approval needed*\n\n"+summary+approvalFooter); err != nil {
		log.Printf("Error sending approval request to %s: %v", chatID, err)
		return false
	}

	timer := time.NewTimer(a.Timeout)
	defer timer.Stop()

	select {
	case ok := <-reply:
		return ok
	case <-timer.C:
		_ = a.send(chatID, "⌛ No answer received, treating it as a no.")
		return false
	case <-ctx.Done():
		return false
	}
}

// Resolve delivers text as the answer to an open question for chatID. It
// reports whether the text was consumed as an answer.
func (a *Approvals) Resolve(chatID, text string) bool {
	approved, ok := parseReply(text)
	if !ok {
		return false
	}

	a.mu.Lock()
	reply, pending := a.pending[chatID]
	if pending {
		delete(a.pending, chatID)
	}
	a.mu.Unlock()

	if !pending {
		return false
	}
	reply <- approved
	return true
}

// Pending reports whether chatID has an open question.
func (a *Approvals) Pending(chatID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.pending[chatID]
	return ok
}

func parseReply(text string) (approved bool, ok bool) {
	switch strings.ToLower(strings.Trim(strings.TrimSpace(text), ".!")) {
	case "yes", "y", "ok", "approve", "approved", "go", "go ahead", "confirm", "👍":
		return true, true
	case "no", "n", "cancel", "stop", "deny", "reject", "👎":
		return false, true
	}
	return false, false
}
