// Package planner maintains the agent's self-decomposed task list.
package planner

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// Status tracks the lifecycle of a single plan task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusSkipped    Status = "skipped"
)

// ValidStatus reports whether s is one of the enumerated statuses.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusDone, StatusSkipped:
		return true
	}
	return false
}

// Task is one tracked subtask of the session goal.
type Task struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
	Status      Status `json:"status"`
}

// Planner owns the decomposition of one goal into ordered tasks.
// Mutated only as the loop reports progress; safe for concurrent reads
// by the prompt builder.
type Planner struct {
	mu    sync.Mutex
	goal  string
	tasks []Task
}

// New creates an empty planner.
func New() *Planner {
	return &Planner{}
}

var stepSplitRe = regexp.MustCompile(`(?m)(?:^\s*(?:\d+[.)]|[-*+])\s+|;\s+|\bthen\b|\band then\b)`)

// Decompose replaces the current plan with subtasks derived from the
// goal. Calling it again with the same goal yields the same plan, not a
// concatenation: re-planning is explicit and idempotent.
func (p *Planner) Decompose(goal string) []Task {
	steps := splitSteps(goal)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.goal = goal
	p.tasks = p.tasks[:0]
	for i, step := range steps {
		p.tasks = append(p.tasks, Task{
			ID:          i + 1,
			Description: step,
			Status:      StatusPending,
		})
	}
	return p.snapshotLocked()
}

// Replace installs an explicit task list, e.g. one the model wrote via
// the todo_write action. Statuses default to pending.
func (p *Planner) Replace(descriptions []string) []Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tasks = p.tasks[:0]
	for i, d := range descriptions {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		p.tasks = append(p.tasks, Task{ID: i + 1, Description: d, Status: StatusPending})
	}
	return p.snapshotLocked()
}

// Update mutates a single task's status.
func (p *Planner) Update(id int, status Status) error {
	if !ValidStatus(status) {
		return fmt.Errorf("invalid task status: %q", status)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.tasks {
		if p.tasks[i].ID == id {
			p.tasks[i].Status = status
			return nil
		}
	}
	return fmt.Errorf("no task with id %d", id)
}

// Tasks returns a copy of the current plan.
func (p *Planner) Tasks() []Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Progress returns the fraction of tasks that are done or skipped.
func (p *Planner) Progress() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.tasks) == 0 {
		return 0
	}
	settled := 0
	for _, t := range p.tasks {
		if t.Status == StatusDone || t.Status == StatusSkipped {
			settled++
		}
	}
	return float64(settled) / float64(len(p.tasks))
}

// Render produces the plan snippet injected into the next model prompt,
// so the model sees its own plan state each cycle.
func (p *Planner) Render() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.tasks) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("## Current Plan\n")
	if p.goal != "" {
		sb.WriteString(fmt.Sprintf("Goal: %s\n", p.goal))
	}
	settled := 0
	for _, t := range p.tasks {
		if t.Status == StatusDone || t.Status == StatusSkipped {
			settled++
		}
	}
	sb.WriteString(fmt.Sprintf("Progress: %d/%d\n", settled, len(p.tasks)))
	for _, t := range p.tasks {
		marker := " "
		switch t.Status {
		case StatusDone:
			marker = "x"
		case StatusInProgress:
			marker = ">"
		case StatusSkipped:
			marker = "-"
		}
		sb.WriteString(fmt.Sprintf("[%s] %d. %s\n", marker, t.ID, t.Description))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (p *Planner) snapshotLocked() []Task {
	out := make([]Task, len(p.tasks))
	copy(out, p.tasks)
	return out
}

// splitSteps breaks a goal into candidate subtasks. Single-clause goals
// become a single task; numbered or bulleted lists become one task per
// item.
func splitSteps(goal string) []string {
	goal = strings.TrimSpace(goal)
	if goal == "" {
		return nil
	}

	parts := stepSplitRe.Split(goal, -1)
	var steps []string
	for _, part := range parts {
		part = strings.TrimSpace(strings.Trim(part, ".,"))
		if part == "" {
			continue
		}
		steps = append(steps, part)
	}
	if len(steps) == 0 {
		steps = []string{goal}
	}
	return steps
}
