package agent

import (
	"context"
	"log"
	"time"

	"github.com/rahul/mishri-pev/internal/pev"
	"github.com/rahul/mishri-pev/internal/store"
)

type Messenger interface {
	Send(chatID string, text string) error
}

// Runner executes a goal through the plan-execute-verify loop.
type Runner interface {
	Run(ctx context.Context, goal string, plan *pev.Plan) (pev.VerifyResult, []pev.StepResult, error)
}

type TaskStore interface {
	GetPendingTasks() ([]store.Task, error)
	UpdateTaskLastRun(id int64) error
	DeleteTask(chatID string, taskID int64) error
}

// Scheduler runs due proactive checks as goals and reports the outcome to
// the chat that scheduled them.
type Scheduler struct {
	Runner   Runner
	Store    TaskStore
	Gateway  Messenger
	Report   func(pev.VerifyResult, []pev.StepResult) string
	Interval time.Duration
}

func NewScheduler(runner Runner, store TaskStore, gateway Messenger, report func(pev.VerifyResult, []pev.StepResult) string) *Scheduler {
	return &Scheduler{
		Runner:   runner,
		Store:    store,
		Gateway:  gateway,
		Report:   report,
		Interval: 30 * time.Second,
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	log.Println("Task scheduler started...")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.PollAndExecute(ctx)
		}
	}
}

// PollAndExecute runs every task that is currently due, one after another.
func (s *Scheduler) PollAndExecute(ctx context.Context) {
	tasks, err := s.Store.GetPendingTasks()
	if err != nil {
		log.Printf("Error polling tasks: %v", err)
		return
	}

	for _, t := range tasks {
		if ctx.Err() != nil {
			return
		}
		log.Printf("Executing scheduled task %d for chat %s: %s", t.ID, t.ChatID, t.Description)

		// Mark the run first so a slow run is not picked up again by the next tick.
		if err := s.Store.UpdateTaskLastRun(t.ID); err != nil {
			log.Printf("Error updating last run for task %d: %v", t.ID, err)
		}

		runCtx := pev.WithChatID(ctx, t.ChatID)
		verdict, results, err := s.Runner.Run(runCtx, t.Description, nil)
		if err != nil {
			log.Printf("Error executing scheduled task %d: %v", t.ID, err)
			continue
		}

		if t.IntervalSeconds == 0 {
			if err := s.Store.DeleteTask(t.ChatID, t.ID); err != nil {
				log.Printf("Error deleting one-time task %d: %v", t.ID, err)
			}
		}

		if s.Gateway != nil && s.Report != nil {
			if err := s.Gateway.Send(t.ChatID, "⏰ *Scheduled Task Output*\n\n"+s.Report(verdict, results)); err != nil {
				log.Printf("Error reporting task %d: %v", t.ID, err)
			}
		}
	}
}
