package permission

import (
	"strings"
	"sync"
	"time"
)

// Mode selects how the engine treats actions that are not pre-approved.
type Mode string

const (
	// ModeManualApproval requires an interactive decision for every action
	// not already granted to the session. This is the default.
	ModeManualApproval Mode = "manual"
	// ModeAllowlist auto-approves actions whose name or group is listed;
	// everything else falls back to interactive approval.
	ModeAllowlist Mode = "allowlist"
	// ModeAutoApproveAll approves everything. Intended for sandboxes.
	ModeAutoApproveAll Mode = "auto"
)

// Verdict is the outcome of a policy evaluation.
type Verdict int

const (
	// Allowed means the action may be dispatched immediately.
	Allowed Verdict = iota
	// RequiresApproval means a ticket must be resolved before dispatch.
	RequiresApproval
	// Denied means the action must not run under the current policy.
	Denied
)

func (v Verdict) String() string {
	switch v {
	case Allowed:
		return "allowed"
	case RequiresApproval:
		return "requires_approval"
	case Denied:
		return "denied"
	}
	return "unknown"
}

// Policy is the externally supplied permission configuration.
// It is read by the engine and never mutated by the agent loop.
type Policy struct {
	Mode Mode
	// Allowlist holds action names or group names admitted under
	// ModeAllowlist. Ignored in other modes.
	Allowlist []string
	// MaxLevel caps the action level the policy will ever admit.
	// Actions above the cap are denied outright, approval cannot
	// override it.
	MaxLevel Level
	// ApprovalTimeout bounds how long a ticket may stay unresolved.
	// An expired ticket resolves as a denial, never as silent approval.
	ApprovalTimeout time.Duration
}

// DefaultPolicy returns the fail-safe default: manual approval for
// anything above read-only, 60s ticket timeout.
func DefaultPolicy() Policy {
	return Policy{
		Mode:            ModeManualApproval,
		MaxLevel:        Unrestricted,
		ApprovalTimeout: 60 * time.Second,
	}
}

// Check describes a pending action evaluation.
type Check struct {
	SessionID string
	Action    string
	Group     string
	Level     Level
}

// Engine evaluates whether actions may proceed and tracks per-session
// grants created by ApproveForSession decisions.
type Engine struct {
	mu     sync.Mutex
	policy Policy
	// grants maps session id -> action name -> granted.
	grants map[string]map[string]bool
}

// NewEngine creates a permission engine for the given policy.
func NewEngine(policy Policy) *Engine {
	if policy.Mode == "" {
		policy.Mode = ModeManualApproval
	}
	if policy.ApprovalTimeout <= 0 {
		policy.ApprovalTimeout = DefaultPolicy().ApprovalTimeout
	}
	return &Engine{
		policy: policy,
		grants: make(map[string]map[string]bool),
	}
}

// Policy returns a copy of the configured policy.
func (e *Engine) Policy() Policy {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.policy
}

// ApprovalTimeout returns the configured ticket expiry.
func (e *Engine) ApprovalTimeout() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.policy.ApprovalTimeout
}

// Evaluate decides whether the action may proceed for this session.
// Read-only actions are always admitted: they carry no side effects
// the gate exists to mediate. This holds in every mode, so under
// ModeAllowlist an unlisted read-only action is still Allowed rather
// than escalated to approval; the allowlist only discriminates among
// side-effecting actions.
func (e *Engine) Evaluate(c Check) Verdict {
	e.mu.Lock()
	defer e.mu.Unlock()

	if c.Level > e.policy.MaxLevel {
		return Denied
	}
	if c.Level == ReadOnly {
		return Allowed
	}

	switch e.policy.Mode {
	case ModeAutoApproveAll:
		return Allowed
	case ModeAllowlist:
		for _, entry := range e.policy.Allowlist {
			entry = strings.TrimSpace(entry)
			if entry == "" {
				continue
			}
			if entry == c.Action || (c.Group != "" && entry == c.Group) {
				return Allowed
			}
		}
		return RequiresApproval
	default: // ModeManualApproval
		if e.grants[c.SessionID][c.Action] {
			return Allowed
		}
		return RequiresApproval
	}
}

// Grant records a session-scoped approval for an action. Subsequent
// Evaluate calls for the same (session, action) pair return Allowed
// under ModeManualApproval.
func (e *Engine) Grant(sessionID, action string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.grants[sessionID] == nil {
		e.grants[sessionID] = make(map[string]bool)
	}
	e.grants[sessionID][action] = true
}

// ForgetSession drops all grants for a terminated session.
func (e *Engine) ForgetSession(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.grants, sessionID)
}
