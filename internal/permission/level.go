// Package permission provides action authorization for the agent loop.
package permission

import (
	"fmt"
	"strings"
)

// Level classifies how sensitive an action's side effects are.
// Levels are ordered: a policy that admits a level admits everything below it.
type Level int

const (
	// ReadOnly actions observe state without modifying it.
	ReadOnly Level = iota
	// FileWrite actions create or modify files inside the workspace.
	FileWrite
	// Execute actions spawn processes or run shell commands.
	Execute
	// Git actions modify repository history or remotes.
	Git
	// Network actions reach outside the local machine.
	Network
	// Unrestricted actions have no containment guarantees.
	Unrestricted
)

var levelNames = map[Level]string{
	ReadOnly:     "read_only",
	FileWrite:    "file_write",
	Execute:      "execute",
	Git:          "git",
	Network:      "network",
	Unrestricted: "unrestricted",
}

// String returns the canonical name of the level.
func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// ParseLevel converts a config string into a Level.
func ParseLevel(s string) (Level, error) {
	needle := strings.ToLower(strings.TrimSpace(s))
	for l, name := range levelNames {
		if name == needle {
			return l, nil
		}
	}
	return ReadOnly, fmt.Errorf("unknown permission level: %q", s)
}
