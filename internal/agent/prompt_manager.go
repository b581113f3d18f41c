package agent

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const plannerFile = "planner.md"

// defaultPlannerDirective is used when the prompt directory has no
// planner.md.
const defaultPlannerDirective = `You are the planner of a personal automation assistant.
Break the user's goal into the smallest ordered list of tool invocations that achieves it and submit it with propose_plan.
Rules:
- Only use tools from the list of available tools.
- Give every step a unique integer index and list in depends_on the indices of earlier steps it needs.
- Order steps so that every dependency comes before the step that needs it.
- To pass an earlier result into an argument, use the whole value "$prev_result", "$prev_result.<field>", "$step_<N>_result" or "$step_<N>_result.<field>".
- Set estimated_risk to "high" for anything that sends messages to other people, deletes data or runs shell commands.`

type PromptManager struct {
	Directory string
}

func NewPromptManager(dir string) *PromptManager {
	return &PromptManager{Directory: dir}
}

// GetPlannerPrompt assembles the planner system prompt: persona files
// (identity, soul, user, then any other markdown) followed by planner.md.
func (pm *PromptManager) GetPlannerPrompt() (string, error) {
	files, err := os.ReadDir(pm.Directory)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("failed to read prompts directory: %v", err)
	}

	// We might want a specific order: identity, soul, user
	order := map[string]int{
		"identity.md": 1,
		"soul.md":     2,
		"user.md":     3,
	}

	sort.Slice(files, func(i, j int) bool {
		oi, okI := order[files[i].Name()]
		oj, okJ := order[files[j].Name()]
		if okI && okJ {
			return oi < oj
		}
		if okI {
			return true
		}
		if okJ {
			return false
		}
		return files[i].Name() < files[j].Name()
	})

	var contents []string
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".md") || f.Name() == plannerFile {
			continue
		}
		path := filepath.Join(pm.Directory, f.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("Warning: Failed to read prompt file %s: %v", path, err)
			continue
		}
		contents = append(contents, strings.TrimSpace(string(data)))
	}

	directive := defaultPlannerDirective
	data, err := os.ReadFile(filepath.Join(pm.Directory, plannerFile))
	switch {
	case err == nil:
		directive = strings.TrimSpace(string(data))
	case !errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("failed to read planner prompt: %v", err)
	}
	contents = append(contents, directive)

	return strings.Join(contents, "\n\n---\n\n"), nil
}
