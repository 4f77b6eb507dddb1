package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/helmsman-ai/helmsman/internal/permission"
	"github.com/helmsman-ai/helmsman/internal/registry"
)

// denyPatterns are commands the exec tool refuses outright, regardless
// of permission mode. Approval covers intent, not obviously destructive
// operations.
var denyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\brm\s+(-[a-zA-Z]*f[a-zA-Z]*\s+)?/(\s|$)`),
	regexp.MustCompile(`\brm\s+-[a-zA-Z]*r[a-zA-Z]*f`),
	regexp.MustCompile(`\brm\s+-[a-zA-Z]*f[a-zA-Z]*r`),
	regexp.MustCompile(`\bmkfs\b`),
	regexp.MustCompile(`\bdd\s+.*of=/dev/`),
	regexp.MustCompile(`>\s*/dev/sd[a-z]`),
	regexp.MustCompile(`:\(\)\s*\{.*\};\s*:`),
	regexp.MustCompile(`\bshutdown\b|\breboot\b|\bhalt\b`),
	regexp.MustCompile(`\bchmod\s+(-R\s+)?777\s+/(\s|$)`),
}

// DeniedCommand reports whether command matches a deny pattern, and the
// pattern it hit.
func DeniedCommand(command string) (string, bool) {
	for _, re := range denyPatterns {
		if re.MatchString(command) {
			return re.String(), true
		}
	}
	return "", false
}

// NewExecDefinition runs a shell command with a bounded timeout. The
// deny list is checked before the command ever reaches the shell.
func NewExecDefinition(workdir string, timeout time.Duration) *registry.Definition {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &registry.Definition{
		Name:        "exec",
		Description: "Execute a shell command and return its combined output. Long-running commands are killed at the timeout.",
		Group:       GroupShell,
		Level:       permission.Execute,
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"command": map[string]any{
					"type":        "string",
					"description": "The shell command to execute",
				},
				"workdir": map[string]any{
					"type":        "string",
					"description": "Working directory for the command (default: workspace)",
				},
			},
			"required": []string{"command"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			command := strings.TrimSpace(GetString(args, "command", ""))
			if command == "" {
				return "", fmt.Errorf("empty command")
			}
			if pattern, denied := DeniedCommand(command); denied {
				return "", fmt.Errorf("command refused by safety policy (matched %s)", pattern)
			}

			dir := expandPath(GetString(args, "workdir", workdir))

			runCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			cmd := exec.CommandContext(runCtx, "sh", "-c", command)
			cmd.Dir = dir
			var buf bytes.Buffer
			cmd.Stdout = &buf
			cmd.Stderr = &buf

			err := cmd.Run()
			output := buf.String()
			if runCtx.Err() == context.DeadlineExceeded {
				return "", fmt.Errorf("command timed out after %s", timeout)
			}
			if err != nil {
				if output == "" {
					return "", fmt.Errorf("command failed: %w", err)
				}
				return "", fmt.Errorf("command failed: %w\n%s", err, output)
			}
			if output == "" {
				return "(no output)", nil
			}
			return output, nil
		},
	}
}
