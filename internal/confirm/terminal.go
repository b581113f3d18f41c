// Package confirm asks a human at the terminal to approve plans and steps.
package confirm

import (
	"context"
	"log"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// Terminal implements pev.ConfirmationRequester with an interactive prompt.
// Without a terminal on stdin every request is refused.
type Terminal struct {
	AssumeYes bool
	IsTTY     func() bool
	Prompt    func(ctx context.Context, summary string) (bool, error)
}

func NewTerminal(assumeYes bool) *Terminal {
	return &Terminal{
		AssumeYes: assumeYes,
		IsTTY:     stdinIsTerminal,
		Prompt:    huhPrompt,
	}
}

func (t *Terminal) Ask(ctx context.Context, summary string) bool {
	if t.AssumeYes {
		log.Printf("Auto-approved:\n%s", summary)
		return true
	}
	if t.IsTTY != nil && !t.IsTTY() {
		log.Printf("Refusing without an interactive terminal:\n%s", summary)
		return false
	}

	ok, err := t.Prompt(ctx, summary)
	if err != nil {
		log.Printf("Confirmation prompt failed: %v", err)
		return false
	}
	return ok
}

func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func huhPrompt(ctx context.Context, summary string) (bool, error) {
	var ok bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Approve this action?").
				Description(summary).
				Affirmative("Approve").
				Negative("Cancel").
				Value(&ok),
		),
	)
	if err := form.RunWithContext(ctx); err != nil {
		return false, err
	}
	return ok, nil
}
