package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/helmsman-ai/helmsman/internal/inference"
	"github.com/helmsman-ai/helmsman/internal/registry"
	"github.com/helmsman-ai/helmsman/internal/session"
)

const systemPreamble = `You are Helmsman, an autonomous assistant that accomplishes goals by invoking tools.

Work in small steps: pick the single next action, invoke exactly the tool that performs it, then wait for the observed result before deciding again. Never invent tool output.

When the goal is fully accomplished, reply with a plain-text summary and no tool call. A reply without a tool call ends the session.`

const toolSyntax = `## Invoking a tool

Reply with a JSON object:

{"tool": "tool_name", "params": {"param": "value"}}

The equivalent XML form is also accepted:

<use_tool name="tool_name"><param name="param">value</param></use_tool>

Multiple tool calls in one reply run in order of appearance.`

// buildSystemPrompt assembles the per-cycle system prompt: the standing
// instructions, the tool catalog, the current plan and a budget
// reminder so the model sees its own progress every cycle.
func buildSystemPrompt(defs []*registry.Definition, planSnippet string, iteration, maxIterations int) string {
	var sb strings.Builder
	sb.WriteString(systemPreamble)
	sb.WriteString("\n\n")
	sb.WriteString(toolSyntax)

	sb.WriteString("\n\n## Available tools\n")
	for _, def := range defs {
		sb.WriteString(fmt.Sprintf("\n### %s\n%s\n", def.Name, def.Description))
		if def.Parameters != nil {
			if schema, err := json.Marshal(def.Parameters); err == nil {
				sb.WriteString(fmt.Sprintf("Parameters schema: %s\n", schema))
			}
		}
	}

	if planSnippet != "" {
		sb.WriteString("\n")
		sb.WriteString(planSnippet)
		sb.WriteString("\n\nKeep the plan current with todo_write as tasks complete.")
	}

	if maxIterations > 0 {
		sb.WriteString(fmt.Sprintf("\n\nYou are on cycle %d of at most %d. Finish before the budget runs out.", iteration, maxIterations))
	}
	return sb.String()
}

// buildRequest converts the session conversation into an inference
// request. Action results are replayed as user turns so backends
// without a native tool role still see the observations.
func buildRequest(sess *session.Session, system string, params inference.Params, historyWindow int) *inference.Request {
	history := sess.History(historyWindow)
	turns := make([]inference.Turn, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case session.RoleAssistant:
			turns = append(turns, inference.Turn{Role: "assistant", Content: msg.Content})
		case session.RoleActionResult:
			content := msg.Content
			if msg.Result != nil {
				status := "ok"
				if !msg.Result.Success {
					status = "failed"
				}
				content = fmt.Sprintf("[tool %s %s]\n%s", msg.Result.Action, status, msg.Result.Output)
			}
			turns = append(turns, inference.Turn{Role: "user", Content: content})
		case session.RoleSystem:
			turns = append(turns, inference.Turn{Role: "user", Content: msg.Content})
		default:
			turns = append(turns, inference.Turn{Role: "user", Content: msg.Content})
		}
	}
	return &inference.Request{
		System:   system,
		Messages: turns,
		Params:   params,
	}
}
