package script

import (
	"errors"
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/shell"
)

// ErrEmptyLine is returned by ParseLine for blank and comment-only lines.
var ErrEmptyLine = errors.New("empty line")

// ParseLine turns a shell line of the form
//
//	op [target] key=value ...
//
// into a Step. Words are split and unquoted with POSIX shell rules, so
// `create_task title="Buy milk"` works as expected. $VAR references expand
// from the environment.
func ParseLine(line string) (Step, error) {
	fields, err := shell.Fields(line, nil)
	if err != nil {
		return Step{}, fmt.Errorf("split line: %w", err)
	}
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return Step{}, ErrEmptyLine
	}

	step := Step{Op: Op(fields[0])}
	for _, f := range fields[1:] {
		key, value, ok := strings.Cut(f, "=")
		if !ok {
			if step.Target != "" {
				return Step{}, fmt.Errorf("unexpected argument %q", f)
			}
			step.Target = f
			continue
		}
		switch key {
		case "ref":
			step.Ref = value
		case "target", "id":
			step.Target = value
		case "epic":
			step.Epic = value
		case "title":
			step.Title = value
		case "description", "desc":
			step.Description = value
		case "status":
			step.Status = value
		case "expect", "expect_error":
			step.ExpectError = value
		default:
			return Step{}, fmt.Errorf("unknown key %q", key)
		}
	}

	if err := step.Validate(); err != nil {
		return Step{}, err
	}
	return step, nil
}
