package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/tasktrack/internal/script"
)

// NewDemoCommand returns the demo subcommand.
func NewDemoCommand() *cli.Command {
	return &cli.Command{
		Name:   "demo",
		Usage:  "Walk through tasks, epics, subtasks and the view history",
		Action: runDemo,
	}
}

func runDemo(ctx context.Context, cmd *cli.Command) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := script.Demo()
	if err != nil {
		return fmt.Errorf("load demo: %w", err)
	}

	runID := script.NewRunID()
	tr := a.newTracker(ctx, runID)
	runner := script.NewRunner(tr, script.WithBus(a.bus), script.WithRunID(runID))

	report, err := runner.Run(ctx, s)
	p := newPrinter(os.Stdout)
	for i, res := range report.Results {
		var stepErr error
		if err != nil && i == len(report.Results)-1 {
			stepErr = err
		}
		p.result(res, stepErr)
	}
	if err != nil {
		return fmt.Errorf("demo: %w", err)
	}
	return nil
}
