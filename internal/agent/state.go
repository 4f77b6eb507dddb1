// Package agent runs the think-act-observe loop that turns a user goal
// into a sequence of gated, observed actions.
package agent

// State names the loop's position in its cycle. Transitions are driven
// exclusively by Run; collaborators observe states, they never set them.
type State string

const (
	StateIdle             State = "idle"
	StateThinking         State = "thinking"
	StateParsing          State = "parsing_tool_calls"
	StateAwaitingApproval State = "awaiting_approval"
	StateExecuting        State = "executing_tool"
	StateObserving        State = "observing_result"
	StateRetrying         State = "retrying"
	StateLoopDetection    State = "loop_detection_triggered"
	StateCompleted        State = "completed"
	StateFailed           State = "failed"
)

// Terminal reports whether the state ends the session.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Terminal reasons recorded on a failed session. A completed session
// has an empty reason. Recoverable faults (invalid arguments, action
// failures, permission denials) never terminate a session; they are
// folded back into the conversation as observations.
const (
	ReasonParseError      = "parse_error"
	ReasonBudgetExhausted = "budget_exhausted"
	ReasonCancelled       = "cancelled"
	ReasonBackendError    = "backend_error"
	ReasonLoopDetected    = "loop_detected"
)
