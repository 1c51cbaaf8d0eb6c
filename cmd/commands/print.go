package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"charm.land/lipgloss/v2"
	"golang.org/x/term"

	"github.com/dohr-michael/tasktrack/internal/events"
	"github.com/dohr-michael/tasktrack/internal/script"
	"github.com/dohr-michael/tasktrack/internal/tasks"
	"github.com/dohr-michael/tasktrack/internal/tracker"
)

var (
	headingStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	mutedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	newStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#60A5FA"))
	inProgressStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	doneStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#10B981"))
)

// printer renders step results and tracker state. Colors are used only when
// writing to a terminal.
type printer struct {
	w     io.Writer
	color bool
}

func newPrinter(f *os.File) *printer {
	return &printer{w: f, color: term.IsTerminal(int(f.Fd()))}
}

func (p *printer) style(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

func (p *printer) status(s tasks.Status) string {
	switch s {
	case tasks.StatusDone:
		return p.style(doneStyle, string(s))
	case tasks.StatusInProgress:
		return p.style(inProgressStyle, string(s))
	}
	return p.style(newStyle, string(s))
}

func (p *printer) heading(title string) {
	fmt.Fprintf(p.w, "\n%s\n", p.style(headingStyle, "## "+title))
}

func (p *printer) errorf(format string, args ...any) {
	fmt.Fprintln(p.w, p.style(errorStyle, "error: "+fmt.Sprintf(format, args...)))
}

// result prints one executed step.
func (p *printer) result(res script.Result, err error) {
	if res.Step.Note != "" {
		p.heading(res.Step.Note)
	}
	fmt.Fprintln(p.w, p.style(mutedStyle, "> "+describeStep(res.Step)))

	switch {
	case err != nil:
		p.errorf("%v", err)
	case res.Err != nil:
		fmt.Fprintln(p.w, p.style(mutedStyle, "rejected as expected: "+res.Err.Error()))
	case len(res.Entities) == 0:
		fmt.Fprintln(p.w, "ok")
	default:
		if err := p.entities(res.Entities); err != nil {
			slog.Error("write result", "op", res.Step.Op, "error", err)
		}
	}
}

// entities prints a table of entities.
func (p *printer) entities(list []tasks.Entity) error {
	if len(list) == 0 {
		fmt.Fprintln(p.w, "(none)")
		return nil
	}
	w := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tSTATUS\tTITLE\tDESCRIPTION\tLINKS")
	for _, e := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			e.EntityID(),
			e.EntityKind(),
			p.status(e.EntityStatus()),
			e.EntityTitle(),
			description(e),
			links(e),
		)
	}
	return w.Flush()
}

// events prints bus events, oldest first.
func (p *printer) events(list []events.Event) error {
	if len(list) == 0 {
		fmt.Fprintln(p.w, "(none)")
		return nil
	}
	w := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tTYPE\tSOURCE\tPAYLOAD")
	for _, e := range list {
		payload, err := json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("encode payload of event %s: %w", e.ID, err)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			e.Timestamp.Format(time.TimeOnly),
			e.Type,
			e.Source,
			payload,
		)
	}
	return w.Flush()
}

// state prints every entity held by tr.
func (p *printer) state(tr *tracker.Tracker) error {
	var all []tasks.Entity
	for _, v := range tr.Tasks() {
		all = append(all, v)
	}
	for _, v := range tr.Epics() {
		all = append(all, v)
	}
	for _, v := range tr.Subtasks() {
		all = append(all, v)
	}
	return p.entities(all)
}

func describeStep(s script.Step) string {
	parts := []string{string(s.Op)}
	add := func(key, value string) {
		if value != "" {
			parts = append(parts, fmt.Sprintf("%s=%q", key, value))
		}
	}
	add("ref", s.Ref)
	add("target", s.Target)
	add("epic", s.Epic)
	add("title", s.Title)
	add("description", s.Description)
	add("status", s.Status)
	add("expect", s.ExpectError)
	return strings.Join(parts, " ")
}

func description(e tasks.Entity) string {
	switch v := e.(type) {
	case *tasks.Task:
		return v.Description
	case *tasks.Epic:
		return v.Description
	case *tasks.Subtask:
		return v.Description
	}
	return ""
}

func links(e tasks.Entity) string {
	switch v := e.(type) {
	case *tasks.Epic:
		ids := v.SubtaskIDs()
		if len(ids) == 0 {
			return "-"
		}
		s := make([]string, len(ids))
		for i, id := range ids {
			s[i] = id.String()
		}
		return "subtasks=" + strings.Join(s, ",")
	case *tasks.Subtask:
		return "epic=" + v.EpicID.String()
	}
	return "-"
}
