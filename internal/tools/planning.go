package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/helmsman-ai/helmsman/internal/permission"
	"github.com/helmsman-ai/helmsman/internal/planner"
	"github.com/helmsman-ai/helmsman/internal/registry"
)

// NewThinkDefinition gives the model a scratchpad action. The thought
// is recorded in the conversation but has no side effects.
func NewThinkDefinition() *registry.Definition {
	return &registry.Definition{
		Name:        "think",
		Description: "Record a thought or reasoning step. Use this to work through a problem before acting. Has no side effects.",
		Group:       GroupPlanning,
		Level:       permission.ReadOnly,
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"thought": map[string]any{
					"type":        "string",
					"description": "The thought to record",
				},
			},
			"required": []string{"thought"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			thought := strings.TrimSpace(GetString(args, "thought", ""))
			if thought == "" {
				return "", fmt.Errorf("empty thought")
			}
			return "Thought recorded.", nil
		},
	}
}

// NewTodoWriteDefinition lets the model rewrite its own task list. The
// planner is shared with the loop's prompt builder, so the updated plan
// shows up in the next cycle's context. onUpdate, when non-nil, is
// called with the new plan after each write.
func NewTodoWriteDefinition(p *planner.Planner, onUpdate func([]planner.Task)) *registry.Definition {
	return &registry.Definition{
		Name:        "todo_write",
		Description: "Replace the current task list with a new one. Pass every task, including completed ones, with their statuses.",
		Group:       GroupPlanning,
		Level:       permission.ReadOnly,
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"tasks": map[string]any{
					"type":        "array",
					"description": "The full task list, in order",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"description": map[string]any{"type": "string"},
							"status": map[string]any{
								"type": "string",
								"enum": []string{"pending", "in_progress", "done", "skipped"},
							},
						},
						"required": []string{"description"},
					},
				},
			},
			"required": []string{"tasks"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			raw, ok := args["tasks"].([]any)
			if !ok {
				return "", fmt.Errorf("tasks must be an array")
			}

			descriptions := make([]string, 0, len(raw))
			statuses := make([]planner.Status, 0, len(raw))
			for i, item := range raw {
				entry, ok := item.(map[string]any)
				if !ok {
					return "", fmt.Errorf("task %d: expected an object", i+1)
				}
				desc := strings.TrimSpace(GetString(entry, "description", ""))
				if desc == "" {
					return "", fmt.Errorf("task %d: description is required", i+1)
				}
				status := planner.Status(GetString(entry, "status", string(planner.StatusPending)))
				if !planner.ValidStatus(status) {
					return "", fmt.Errorf("task %d: invalid status %q", i+1, status)
				}
				descriptions = append(descriptions, desc)
				statuses = append(statuses, status)
			}

			tasks := p.Replace(descriptions)
			for i := range tasks {
				if statuses[i] != planner.StatusPending {
					if err := p.Update(tasks[i].ID, statuses[i]); err != nil {
						return "", err
					}
				}
			}
			updated := p.Tasks()
			if onUpdate != nil {
				onUpdate(updated)
			}
			return fmt.Sprintf("Plan updated: %d tasks.", len(updated)), nil
		},
	}
}
