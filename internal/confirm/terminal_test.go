package confirm

import (
	"context"
	"errors"
	"testing"
)

func TestTerminal_Ask(t *testing.T) {
	tests := []struct {
		name      string
		assumeYes bool
		tty       bool
		answer    bool
		err       error
		want      bool
	}{
		{"assume yes skips prompt", true, false, false, nil, true},
		{"no terminal refuses", false, false, true, nil, false},
		{"approved", false, true, true, nil, true},
		{"cancelled", false, true, false, nil, false},
		{"prompt error refuses", false, true, true, errors.New("interrupted"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prompted := false
			c := &Terminal{
				AssumeYes: tt.assumeYes,
				IsTTY:     func() bool { return tt.tty },
				Prompt: func(context.Context, string) (bool, error) {
					prompted = true
					return tt.answer, tt.err
				},
			}

			if got := c.Ask(context.Background(), "Goal: wipe disk"); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
			if prompted && (tt.assumeYes || !tt.tty) {
				t.Error("Expected no prompt")
			}
		})
	}
}
