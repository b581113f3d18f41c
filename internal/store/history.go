package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/tmc/langchaingo/llms"
)

// HistoryStore keeps chat history, scheduled tasks and calendar events in
// one SQLite database.
type HistoryStore struct {
	DB *sql.DB
}

func NewHistoryStore(dbPath string) (*HistoryStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	// Create tables if not exist
	queries := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_id TEXT,
			role TEXT,
			content TEXT,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_id TEXT,
			task_description TEXT,
			interval_seconds INTEGER,
			last_run DATETIME,
			status TEXT DEFAULT 'active'
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_id TEXT,
			title TEXT NOT NULL,
			start_at TEXT NOT NULL,
			end_at TEXT NOT NULL,
			notes TEXT
		);`,
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &HistoryStore{DB: db}, nil
}

func (h *HistoryStore) Close() error {
	return h.DB.Close()
}

func (h *HistoryStore) AddMessage(chatID string, role string, content string) error {
	query := `INSERT INTO messages (chat_id, role, content) VALUES (?, ?, ?)`
	_, err := h.DB.Exec(query, chatID, role, content)
	return err
}

// GetHistory returns the last limit messages of a chat in chronological
// order.
func (h *HistoryStore) GetHistory(chatID string, limit int) ([]llms.MessageContent, error) {
	query := `SELECT role, content FROM messages WHERE chat_id = ? ORDER BY id DESC LIMIT ?`
	rows, err := h.DB.Query(query, chatID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []llms.MessageContent
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return nil, err
		}

		var msgRole llms.ChatMessageType
		switch role {
		case "ai":
			msgRole = llms.ChatMessageTypeAI
		case "system":
			msgRole = llms.ChatMessageTypeSystem
		default:
			msgRole = llms.ChatMessageTypeHuman
		}

		history = append(history, llms.MessageContent{
			Role:  msgRole,
			Parts: []llms.ContentPart{llms.TextPart(content)},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to get chronological order
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}

	return history, nil
}

// AddTask stores a task that becomes due immediately.
func (h *HistoryStore) AddTask(chatID string, description string, intervalSeconds int) (int64, error) {
	query := `INSERT INTO tasks (chat_id, task_description, interval_seconds, last_run) VALUES (?, ?, ?, datetime('now', '-365 days'))`
	res, err := h.DB.Exec(query, chatID, description, intervalSeconds)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (h *HistoryStore) GetPendingTasks() ([]Task, error) {
	query := `
		SELECT id, chat_id, task_description, interval_seconds
		FROM tasks
		WHERE status = 'active'
		AND (last_run IS NULL OR (julianday('now') - julianday(last_run)) * 86400 >= interval_seconds)
		ORDER BY id`
	return h.queryTasks(query)
}

func (h *HistoryStore) ListTasks(chatID string) ([]Task, error) {
	query := `SELECT id, chat_id, task_description, interval_seconds FROM tasks WHERE chat_id = ? AND status = 'active' ORDER BY id`
	return h.queryTasks(query, chatID)
}

func (h *HistoryStore) queryTasks(query string, args ...any) ([]Task, error) {
	rows, err := h.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.ChatID, &t.Description, &t.IntervalSeconds); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (h *HistoryStore) UpdateTaskLastRun(id int64) error {
	query := `UPDATE tasks SET last_run = datetime('now') WHERE id = ?`
	_, err := h.DB.Exec(query, id)
	return err
}

func (h *HistoryStore) DeleteTask(chatID string, taskID int64) error {
	query := `DELETE FROM tasks WHERE chat_id = ? AND id = ?`
	_, err := h.DB.Exec(query, chatID, taskID)
	return err
}

func (h *HistoryStore) ClearTasks(chatID string) error {
	query := `DELETE FROM tasks WHERE chat_id = ?`
	_, err := h.DB.Exec(query, chatID)
	return err
}

// AddEvent stores a calendar event. Times are kept in UTC.
func (h *HistoryStore) AddEvent(chatID, title string, start, end time.Time, notes string) (Event, error) {
	if end.Before(start) {
		return Event{}, fmt.Errorf("event ends before it starts")
	}
	start, end = start.UTC(), end.UTC()

	query := `INSERT INTO events (chat_id, title, start_at, end_at, notes) VALUES (?, ?, ?, ?, ?)`
	res, err := h.DB.Exec(query, chatID, title, start.Format(time.RFC3339), end.Format(time.RFC3339), notes)
	if err != nil {
		return Event{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Event{}, err
	}
	return Event{ID: id, ChatID: chatID, Title: title, Start: start, End: end, Notes: notes}, nil
}

// ListEvents returns the events of a chat that overlap [from, to).
func (h *HistoryStore) ListEvents(chatID string, from, to time.Time) ([]Event, error) {
	query := `
		SELECT id, chat_id, title, start_at, end_at, COALESCE(notes, '')
		FROM events
		WHERE chat_id = ? AND start_at < ? AND end_at > ?
		ORDER BY start_at, id`
	rows, err := h.DB.Query(query, chatID, to.UTC().Format(time.RFC3339), from.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var start, end string
		if err := rows.Scan(&e.ID, &e.ChatID, &e.Title, &start, &end, &e.Notes); err != nil {
			return nil, err
		}
		if e.Start, err = time.Parse(time.RFC3339, start); err != nil {
			return nil, fmt.Errorf("event %d: %w", e.ID, err)
		}
		if e.End, err = time.Parse(time.RFC3339, end); err != nil {
			return nil, fmt.Errorf("event %d: %w", e.ID, err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
