package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/dohr-michael/tasktrack/internal/config"
	"github.com/dohr-michael/tasktrack/internal/events"
	"github.com/dohr-michael/tasktrack/internal/script"
	"github.com/dohr-michael/tasktrack/internal/tracker"
)

const shellHelp = `Commands are script steps written as: op [target] key=value ...
  create_task title="Buy milk" ref=milk
  create_epic title=Party ref=party
  create_subtask epic=party title=Invites ref=invites
  update_subtask invites status=done
  get_epic party
  delete_epic party expect=not_found
  list | history | find_by_title title=... | epic_subtasks party
Other commands: help, state, events [n], reload, quit`

const defaultEventCount = 10

// NewShellCommand returns the shell subcommand.
func NewShellCommand() *cli.Command {
	return &cli.Command{
		Name:   "shell",
		Usage:  "Interactive session against an in-memory tracker",
		Action: runShell,
	}
}

func runShell(ctx context.Context, cmd *cli.Command) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	runID := script.NewRunID()
	tr := a.newTracker(ctx, runID)
	runner := script.NewRunner(tr,
		script.WithBus(a.bus),
		script.WithRunID(runID),
		script.WithSource(events.SourceShell),
	)

	reloader := config.NewReloader(cmd.String("config"), config.DotenvPath(), a.cfg)
	reloader.OnReload(func(cfg *config.Config) {
		if err := a.applyConfig(cfg, tr, runID); err != nil {
			slog.Warn("keeping previous settings", "error", err)
		}
	})

	sh := &shell{
		tracker: tr,
		runner:  runner,
		bus:     a.bus,
		out:     newPrinter(os.Stdout),
		reload:  reloader.Reload,
	}
	if term.IsTerminal(int(os.Stdin.Fd())) {
		sh.prompt = "tasktrack> "
		fmt.Fprintf(os.Stdout, "tasktrack shell (%s). Type help for commands.\n", runID)
	}
	return sh.loop(ctx, os.Stdin)
}

// shell reads steps line by line and executes them until quit or EOF.
type shell struct {
	tracker *tracker.Tracker
	runner  *script.Runner
	bus     *events.Bus
	out     *printer
	prompt  string
	reload  func() error
}

func (sh *shell) loop(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		if sh.prompt != "" {
			fmt.Fprint(sh.out.w, sh.prompt)
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "quit", "exit":
			return nil
		case "help":
			fmt.Fprintln(sh.out.w, shellHelp)
			continue
		case "state":
			if err := sh.out.state(sh.tracker); err != nil {
				sh.out.errorf("%v", err)
			}
			continue
		case "events":
			if err := sh.recentEvents(fields[1:]); err != nil {
				sh.out.errorf("%v", err)
			}
			continue
		case "reload":
			if err := sh.reload(); err != nil {
				sh.out.errorf("%v", err)
			} else {
				fmt.Fprintln(sh.out.w, "config reloaded")
			}
			continue
		}

		step, err := script.ParseLine(scanner.Text())
		if errors.Is(err, script.ErrEmptyLine) {
			continue
		}
		if err != nil {
			sh.out.errorf("%v", err)
			continue
		}
		res, err := sh.runner.Exec(step)
		sh.out.result(res, err)
	}
}

// recentEvents prints the last n events seen on the bus, n defaulting to
// defaultEventCount.
func (sh *shell) recentEvents(args []string) error {
	n := defaultEventCount
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v <= 0 {
			return fmt.Errorf("events: count must be a positive number, got %q", args[0])
		}
		n = v
	}
	return sh.out.events(sh.bus.History(n))
}
