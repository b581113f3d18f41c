package tools

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

type ShellTool struct {
	Dir string
}

func NewShellTool(dir string) *ShellTool {
	return &ShellTool{Dir: dir}
}

func (s *ShellTool) Name() string {
	return "shell"
}

func (s *ShellTool) Description() string {
	return "Execute system shell commands. Use with caution. Access to full shell environment. Returns {command, output}."
}

func (s *ShellTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{
				"type":        "string",
				"description": "The shell command to execute",
			},
		},
		"required": []string{"command"},
	}
}

func (s *ShellTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	var in struct {
		Command string `json:"command"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Command) == "" {
		return nil, errors.New("empty command")
	}

	cmd := exec.CommandContext(ctx, "bash", "-c", in.Command)
	cmd.Dir = s.Dir
	output, err := cmd.CombinedOutput()
	result := strings.TrimSpace(string(output))

	if err != nil {
		return nil, fmt.Errorf("command failed with error: %v\nOutput: %s", err, result)
	}
	return map[string]any{"command": in.Command, "output": result}, nil
}
