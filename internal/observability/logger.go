package observability

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType defines the category of the log event.
type EventType string

const (
	EventTypePlan         EventType = "plan"
	EventTypeStep         EventType = "step"
	EventTypePolicyCheck  EventType = "policy_check"
	EventTypeConfirmation EventType = "confirmation"
	EventTypeVerify       EventType = "verify"
	EventTypeReplan       EventType = "replan"
	EventTypeCost         EventType = "cost"
	EventTypeHeartbeat    EventType = "heartbeat"
	EventTypeLLM          EventType = "llm"
)

// Event represents a structured log entry. TaskID carries the run id of
// the engine invocation that produced it.
type Event struct {
	Type      EventType `json:"type"`
	ChatID    string    `json:"chat_id,omitempty"`
	TaskID    string    `json:"task_id,omitempty"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Logger handles structured logging. A nil *Logger discards everything.
type Logger struct {
	mu         sync.Mutex
	out        io.Writer
	llmLogPath string
	maxSize    int64
}

func NewLogger() *Logger {
	return &Logger{
		out:        os.Stdout,
		llmLogPath: filepath.Join("logs", "llm.jsonl"),
		maxSize:    10 * 1024 * 1024, // 10MB
	}
}

// NewLoggerTo writes events to w and keeps the LLM transcript in dir.
func NewLoggerTo(w io.Writer, dir string) *Logger {
	return &Logger{
		out:        w,
		llmLogPath: filepath.Join(dir, "llm.jsonl"),
		maxSize:    10 * 1024 * 1024,
	}
}

// Log emits a structured JSON event.
func (l *Logger) Log(evt Event) {
	if l == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		data = []byte(fmt.Sprintf("{\"error\": %q}", "failed to marshal event: "+err.Error()))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.out, string(data))

	if evt.Type == EventTypeLLM {
		l.writeToFile(data)
	}
}

func (l *Logger) writeToFile(data []byte) {
	if err := os.MkdirAll(filepath.Dir(l.llmLogPath), 0755); err != nil {
		log.Printf("failed to create log directory: %v", err)
		return
	}

	// Check size before writing
	info, err := os.Stat(l.llmLogPath)
	if err == nil && info.Size() > l.maxSize {
		l.rotateLogs()
	}

	f, err := os.OpenFile(l.llmLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("failed to open log file: %v", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		log.Printf("failed to write to log file: %v", err)
	}
}

func (l *Logger) rotateLogs() {
	// Simple rotation: keep one .old file
	oldPath := l.llmLogPath + ".old"
	_ = os.Remove(oldPath)
	_ = os.Rename(l.llmLogPath, oldPath)
}

// Helper methods for common events

func (l *Logger) LogPlan(chatID, runID, goal string, attempt, steps int, risk string) {
	l.Log(Event{
		Type:   EventTypePlan,
		ChatID: chatID,
		TaskID: runID,
		Data: map[string]any{
			"goal":    goal,
			"attempt": attempt,
			"steps":   steps,
			"risk":    risk,
		},
	})
}

func (l *Logger) LogStep(chatID, runID string, index int, tool string, success bool, errMsg string) {
	data := map[string]any{
		"index":   index,
		"tool":    tool,
		"success": success,
	}
	if errMsg != "" {
		data["error"] = errMsg
	}
	l.Log(Event{Type: EventTypeStep, ChatID: chatID, TaskID: runID, Data: data})
}

func (l *Logger) LogPolicyCheck(chatID, runID, tool, decision string) {
	l.Log(Event{
		Type:   EventTypePolicyCheck,
		ChatID: chatID,
		TaskID: runID,
		Data: map[string]string{
			"tool":     tool,
			"decision": decision,
		},
	})
}

func (l *Logger) LogConfirmation(chatID, runID, scope string, approved bool) {
	l.Log(Event{
		Type:   EventTypeConfirmation,
		ChatID: chatID,
		TaskID: runID,
		Data: map[string]any{
			"scope":    scope,
			"approved": approved,
		},
	})
}

func (l *Logger) LogVerify(chatID, runID, status, explanation string, failed []int) {
	l.Log(Event{
		Type:   EventTypeVerify,
		ChatID: chatID,
		TaskID: runID,
		Data: map[string]any{
			"status":       status,
			"explanation":  explanation,
			"failed_steps": failed,
		},
	})
}

func (l *Logger) LogReplan(chatID, runID string, replan int, reason string) {
	l.Log(Event{
		Type:   EventTypeReplan,
		ChatID: chatID,
		TaskID: runID,
		Data: map[string]any{
			"replan": replan,
			"reason": reason,
		},
	})
}

func (l *Logger) LogCost(chatID, taskID string, promptTokens, completionTokens int, model string) {
	l.Log(Event{
		Type:   EventTypeCost,
		ChatID: chatID,
		TaskID: taskID,
		Data: map[string]any{
			"prompt_tokens":     promptTokens,
			"completion_tokens": completionTokens,
			"total_tokens":      promptTokens + completionTokens,
			"model":             model,
		},
	})
}

func (l *Logger) LogHeartbeat() {
	l.Log(Event{
		Type: EventTypeHeartbeat,
		Data: map[string]string{"status": "alive"},
	})
}

func (l *Logger) LogLLM(chatID, taskID string, prompt any, response string, toolCalls any) {
	l.Log(Event{
		Type:   EventTypeLLM,
		ChatID: chatID,
		TaskID: taskID,
		Data: map[string]any{
			"prompt":     prompt,
			"response":   response,
			"tool_calls": toolCalls,
		},
	})
}
