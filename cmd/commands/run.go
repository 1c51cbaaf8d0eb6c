package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/tasktrack/internal/script"
)

// NewRunCommand returns the run subcommand.
func NewRunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Run YAML scripts, each against a fresh tracker",
		ArgsUsage: "<glob>...",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Only print the final state of each script",
			},
			&cli.BoolFlag{
				Name:  "keep-going",
				Usage: "Continue with the next script after a failure",
			},
		},
		Action: runScripts,
	}
}

func runScripts(ctx context.Context, cmd *cli.Command) error {
	patterns := cmd.Args().Slice()
	if len(patterns) == 0 {
		return fmt.Errorf("usage: tasktrack run <glob>...")
	}

	paths, err := expandGlobs(patterns)
	if err != nil {
		return err
	}

	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	p := newPrinter(os.Stdout)
	failed := 0
	for _, path := range paths {
		s, err := script.LoadFile(path)
		if err != nil {
			return err
		}

		runID := script.NewRunID()
		tr := a.newTracker(ctx, runID)
		runner := script.NewRunner(tr, script.WithBus(a.bus), script.WithRunID(runID))

		p.heading(fmt.Sprintf("%s (%s, %s)", s.Name, path, runID))
		report, runErr := runner.Run(ctx, s)
		if !cmd.Bool("quiet") {
			for i, res := range report.Results {
				var stepErr error
				if runErr != nil && i == len(report.Results)-1 {
					stepErr = runErr
				}
				p.result(res, stepErr)
			}
		}

		p.heading(s.Name + ": final state")
		if err := p.state(tr); err != nil {
			return err
		}

		if runErr != nil {
			failed++
			p.errorf("%s failed after %d step(s): %v", s.Name, len(report.Results), runErr)
			if !cmd.Bool("keep-going") {
				break
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d script(s) failed", failed)
	}
	return nil
}

// expandGlobs resolves every pattern, keeping the first occurrence of each
// path. A pattern matching nothing is an error.
func expandGlobs(patterns []string) ([]string, error) {
	var paths []string
	seen := make(map[string]bool)
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no scripts match %q", pattern)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				paths = append(paths, m)
			}
		}
	}
	return paths, nil
}
