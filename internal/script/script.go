// Package script drives a tracker from YAML scripts and shell lines.
package script

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Op names a script step.
type Op string

const (
	OpCreateTask        Op = "create_task"
	OpCreateEpic        Op = "create_epic"
	OpCreateSubtask     Op = "create_subtask"
	OpGetTask           Op = "get_task"
	OpGetEpic           Op = "get_epic"
	OpGetSubtask        Op = "get_subtask"
	OpUpdateTask        Op = "update_task"
	OpUpdateEpic        Op = "update_epic"
	OpUpdateSubtask     Op = "update_subtask"
	OpDeleteTask        Op = "delete_task"
	OpDeleteEpic        Op = "delete_epic"
	OpDeleteSubtask     Op = "delete_subtask"
	OpDeleteAllTasks    Op = "delete_all_tasks"
	OpDeleteAllEpics    Op = "delete_all_epics"
	OpDeleteAllSubtasks Op = "delete_all_subtasks"
	OpEpicSubtasks      Op = "epic_subtasks"
	OpFindByTitle       Op = "find_by_title"
	OpFindByDescription Op = "find_by_description"
	OpList              Op = "list"
	OpHistory           Op = "history"
	OpExpectStatus      Op = "expect_status"
)

var knownOps = map[Op]bool{
	OpCreateTask: true, OpCreateEpic: true, OpCreateSubtask: true,
	OpGetTask: true, OpGetEpic: true, OpGetSubtask: true,
	OpUpdateTask: true, OpUpdateEpic: true, OpUpdateSubtask: true,
	OpDeleteTask: true, OpDeleteEpic: true, OpDeleteSubtask: true,
	OpDeleteAllTasks: true, OpDeleteAllEpics: true, OpDeleteAllSubtasks: true,
	OpEpicSubtasks: true, OpFindByTitle: true, OpFindByDescription: true,
	OpList: true, OpHistory: true, OpExpectStatus: true,
}

// Expected failure kinds accepted by Step.ExpectError.
const (
	ExpectNotFound            = "not_found"
	ExpectInvalidRelationship = "invalid_relationship"
)

// Script is a named list of steps.
type Script struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`
}

// Step is one tracker operation. Target and Epic accept either a ref name
// introduced by an earlier create step or a numeric id.
type Step struct {
	Note        string `yaml:"note,omitempty"` // heading printed before the step
	Op          Op     `yaml:"op"`
	Ref         string `yaml:"ref,omitempty"`
	Target      string `yaml:"target,omitempty"`
	Epic        string `yaml:"epic,omitempty"`
	Title       string `yaml:"title,omitempty"`
	Description string `yaml:"description,omitempty"`
	Status      string `yaml:"status,omitempty"`
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Validate checks the step shape without touching a tracker.
func (s Step) Validate() error {
	if !knownOps[s.Op] {
		return fmt.Errorf("unknown op %q", s.Op)
	}
	switch s.ExpectError {
	case "", ExpectNotFound, ExpectInvalidRelationship:
	default:
		return fmt.Errorf("op %s: unknown expect_error %q", s.Op, s.ExpectError)
	}
	switch s.Op {
	case OpGetTask, OpGetEpic, OpGetSubtask,
		OpUpdateTask, OpUpdateEpic, OpUpdateSubtask,
		OpDeleteTask, OpDeleteEpic, OpDeleteSubtask,
		OpEpicSubtasks, OpExpectStatus:
		if s.Target == "" {
			return fmt.Errorf("op %s: target is required", s.Op)
		}
	case OpCreateSubtask:
		if s.Epic == "" {
			return fmt.Errorf("op %s: epic is required", s.Op)
		}
	}
	if s.Op == OpExpectStatus && s.Status == "" {
		return fmt.Errorf("op %s: status is required", s.Op)
	}
	return nil
}

// Validate checks every step and reports the first problem.
func (s *Script) Validate() error {
	if len(s.Steps) == 0 {
		return fmt.Errorf("script %q has no steps", s.Name)
	}
	for i, step := range s.Steps {
		if err := step.Validate(); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return nil
}

// Parse decodes and validates a YAML script.
func Parse(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadFile reads a script from path. The file name, without extension,
// names scripts that do not declare one.
func LoadFile(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return s, nil
}

// NewRunID creates a unique run identifier.
func NewRunID() string {
	u := uuid.New().String()
	return "run_" + strings.ReplaceAll(u[:8], "-", "")
}
