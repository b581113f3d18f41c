package agent

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPromptManager_GetPlannerPrompt(t *testing.T) {
	tempDir := t.TempDir()

	files := map[string]string{
		"identity.md": "Identity Content",
		"soul.md":     "Soul Content",
		"user.md":     "User Content",
		"extra.md":    "Extra Content",
		"planner.md":  "Planner Directive",
		"notes.txt":   "Ignored Content",
	}

	for name, content := range files {
		err := os.WriteFile(filepath.Join(tempDir, name), []byte(content), 0644)
		if err != nil {
			t.Fatal(err)
		}
	}

	pm := NewPromptManager(tempDir)
	prompt, err := pm.GetPlannerPrompt()
	if err != nil {
		t.Fatal(err)
	}

	expectedParts := []string{
		"Identity Content",
		"Soul Content",
		"User Content",
		"Extra Content",
		"Planner Directive",
	}

	for _, part := range expectedParts {
		if !strings.Contains(prompt, part) {
			t.Errorf("Prompt missing expected part: %s", part)
		}
	}
	if strings.Contains(prompt, "Ignored Content") {
		t.Error("Non-markdown files must not be included")
	}

	// Verify order
	if strings.Index(prompt, "Identity Content") >= strings.Index(prompt, "Soul Content") {
		t.Error("Identity should be before Soul")
	}
	if strings.Index(prompt, "Soul Content") >= strings.Index(prompt, "User Content") {
		t.Error("Soul should be before User")
	}
	if !strings.HasSuffix(prompt, "Planner Directive") {
		t.Error("Planner directive should come last")
	}
}

func TestPromptManager_DefaultDirective(t *testing.T) {
	pm := NewPromptManager(filepath.Join(t.TempDir(), "missing"))
	prompt, err := pm.GetPlannerPrompt()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(prompt, "propose_plan") {
		t.Errorf("Expected built-in planner directive, got %q", prompt)
	}
}
