package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rahul/mishri-pev/internal/confirm"
	"github.com/rahul/mishri-pev/internal/gateway"
	"github.com/rahul/mishri-pev/internal/pev"
	"github.com/rahul/mishri-pev/pkg/config"
)

var runCmd = &cobra.Command{
	Use:   "run [goal]",
	Short: "Run a single goal from the terminal",
	Long: `Plan and execute one goal, asking for confirmation in the terminal.

With --plan the given YAML plan is executed first; the planner is only
consulted if the plan fails and replanning is enabled.

Examples:
  mishri run "list my meetings for tomorrow"
  mishri run --plan plan.yaml
  mishri run --yes "check the weather in Pune and write it to weather.txt"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		planPath, _ := cmd.Flags().GetString("plan")
		assumeYes, _ := cmd.Flags().GetBool("yes")
		goal := strings.TrimSpace(strings.Join(args, " "))

		var plan *pev.Plan
		if planPath != "" {
			p, err := loadPlan(planPath)
			if err != nil {
				return err
			}
			plan = p
			if goal == "" {
				goal = plan.Goal()
			}
		}
		if goal == "" {
			return errors.New("a goal or --plan is required")
		}

		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		rt, err := newRuntime(cfg, os.Stderr)
		if err != nil {
			return err
		}
		defer rt.Close()

		out := cmd.OutOrStdout()
		rt.notify.SetMessenger(printMessenger{w: out})

		ctx := pev.WithChatID(cmd.Context(), gateway.CLIChatID)
		verdict, results, err := rt.engine(confirm.NewTerminal(assumeYes)).Run(ctx, goal, plan)
		if err != nil {
			return err
		}

		fmt.Fprintln(out, gateway.FormatReport(verdict, results))
		if verdict.Status == pev.StatusFailed {
			return fmt.Errorf("goal not achieved: %s", verdict.Explanation)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().String("plan", "", "YAML plan to execute instead of asking the planner")
	runCmd.Flags().Bool("yes", false, "approve every confirmation without prompting")
}

func loadPlan(path string) (*pev.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}
	var spec pev.PlanSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}
	plan, err := spec.Build()
	if err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}
	return plan, nil
}

type printMessenger struct {
	w io.Writer
}

func (p printMessenger) Send(chatID, text string) error {
	_, err := fmt.Fprintf(p.w, "📣 %s\n", text)
	return err
}
