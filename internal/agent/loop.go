package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/helmsman-ai/helmsman/internal/config"
	"github.com/helmsman-ai/helmsman/internal/event"
	"github.com/helmsman-ai/helmsman/internal/inference"
	"github.com/helmsman-ai/helmsman/internal/permission"
	"github.com/helmsman-ai/helmsman/internal/planner"
	"github.com/helmsman-ai/helmsman/internal/progress"
	"github.com/helmsman-ai/helmsman/internal/registry"
	"github.com/helmsman-ai/helmsman/internal/session"
	"github.com/helmsman-ai/helmsman/internal/timeline"
	"github.com/helmsman-ai/helmsman/internal/trace"
)

const parseCorrective = `Your last reply attempted a tool call that could not be parsed. Reply again with exactly one tool call in the documented JSON form: {"tool": "tool_name", "params": {...}}. Do not wrap it in prose.`

const stallNudge = `You appear to be repeating the same action without making progress. Step back, reconsider the goal, and try a different approach. Update your plan with todo_write if the current plan is wrong.`

// Deps are the loop's collaborators. Registry, Engine, Tickets, Plan,
// Detector, Emitter and Client are required; Store, Timeline and Tracer
// are optional and skipped when nil.
type Deps struct {
	Registry *registry.Registry
	Engine   *permission.Engine
	Tickets  *permission.TicketManager
	Plan     *planner.Planner
	Detector *progress.Detector
	Emitter  *event.Emitter
	Client   inference.Client

	Store    *session.Manager
	Timeline *timeline.Service
	Tracer   *trace.Publisher
}

// Loop drives one session through think-act-observe cycles until a
// terminal state. A Loop instance runs one session at a time; the
// session is mutated only from Run's goroutine.
type Loop struct {
	cfg  *config.Config
	deps Deps
}

// New creates a loop. It returns an error when a required collaborator
// is missing so wiring mistakes fail at startup, not mid-session.
func New(cfg *config.Config, deps Deps) (*Loop, error) {
	switch {
	case cfg == nil:
		return nil, errors.New("agent: config is required")
	case deps.Registry == nil:
		return nil, errors.New("agent: registry is required")
	case deps.Engine == nil:
		return nil, errors.New("agent: permission engine is required")
	case deps.Tickets == nil:
		return nil, errors.New("agent: ticket manager is required")
	case deps.Plan == nil:
		return nil, errors.New("agent: planner is required")
	case deps.Detector == nil:
		return nil, errors.New("agent: detector is required")
	case deps.Emitter == nil:
		return nil, errors.New("agent: emitter is required")
	case deps.Client == nil:
		return nil, errors.New("agent: inference client is required")
	}
	return &Loop{cfg: cfg, deps: deps}, nil
}

// Run executes the session to a terminal state. It returns nil when the
// session completed and an error naming the terminal reason when it
// failed. The terminal state and reason are always recorded on the
// session itself, whatever the return value.
func (l *Loop) Run(ctx context.Context, sess *session.Session) error {
	start := time.Now()
	wallCtx, cancelWall := context.WithDeadline(ctx, start.Add(l.cfg.Loop.WallClock))
	defer cancelWall()

	l.begin(sess)

	parseFailures := 0
	nudged := false

	for {
		if ctx.Err() != nil {
			return l.fail(sess, ReasonCancelled, "cancelled before cycle start")
		}
		if sess.Iteration() >= l.cfg.Loop.MaxIterations {
			return l.fail(sess, ReasonBudgetExhausted,
				fmt.Sprintf("iteration ceiling reached (%d)", l.cfg.Loop.MaxIterations))
		}
		if time.Since(start) >= l.cfg.Loop.WallClock {
			return l.fail(sess, ReasonBudgetExhausted,
				fmt.Sprintf("wall clock budget exhausted (%s)", l.cfg.Loop.WallClock))
		}
		iteration := sess.NextIteration()
		slog.Debug("Cycle start", "session", sess.ID(), "iteration", iteration)

		l.transition(sess, StateThinking)
		llmStart := time.Now()
		text, err := l.generate(wallCtx, sess)
		if err != nil {
			return l.failGenerate(ctx, wallCtx, sess, err)
		}
		l.span(sess, trace.SpanLLM, "generation", text, llmStart)
		if l.deps.Timeline != nil {
			_ = l.deps.Timeline.AddEvent(sess.ID(), timeline.KindLLM, registry.Truncate(text, 1024), nil)
		}

		l.transition(sess, StateParsing)
		calls, perr := ParseResponse(text)
		if perr != nil {
			sess.Append(session.Message{Role: session.RoleAssistant, Content: text})
			parseFailures++
			if parseFailures > l.cfg.Loop.ParseRetries {
				return l.fail(sess, ReasonParseError, perr.Error())
			}
			l.transition(sess, StateRetrying)
			slog.Warn("Unparseable model output", "session", sess.ID(), "attempt", parseFailures, "error", perr)
			sess.Append(session.Message{Role: session.RoleSystem, Content: parseCorrective})
			continue
		}
		parseFailures = 0

		if len(calls) == 0 {
			sess.Append(session.Message{Role: session.RoleAssistant, Content: text})
			l.complete(sess)
			return nil
		}

		requests := make([]*session.ActionRequest, len(calls))
		for i, call := range calls {
			requests[i] = session.NewRequest(call.Name, call.Args)
		}
		sess.Append(session.Message{Role: session.RoleAssistant, Content: text, Requests: requests})

		// Requests run strictly in parse order. A denial settles only
		// its own request; the remaining ones still run.
		for _, req := range requests {
			if err := l.executeRequest(wallCtx, sess, req); err != nil {
				return l.failSuspended(ctx, wallCtx, sess, err)
			}
		}

		if l.deps.Detector.Check() == progress.Stalled {
			l.transition(sess, StateLoopDetection)
			if nudged {
				return l.fail(sess, ReasonLoopDetected, "stalled again after nudge")
			}
			nudged = true
			sess.Append(session.Message{Role: session.RoleSystem, Content: stallNudge})
			l.deps.Detector.Reset()
			if l.deps.Timeline != nil {
				_ = l.deps.Timeline.AddEvent(sess.ID(), timeline.KindState, "loop detection nudge", nil)
			}
		}
	}
}

// begin performs the session-start checkpoint: seed the conversation,
// decompose the goal into an initial plan, persist the start records.
func (l *Loop) begin(sess *session.Session) {
	l.transition(sess, StateIdle)
	sess.Append(session.Message{Role: session.RoleUser, Content: sess.Goal()})

	tasks := l.deps.Plan.Decompose(sess.Goal())
	l.deps.Emitter.Emit(event.Event{Kind: event.KindPlanUpdated, SessionID: sess.ID(), Tasks: tasks})

	if l.deps.Timeline != nil {
		if err := l.deps.Timeline.RecordSessionStart(sess.ID(), sess.Goal()); err != nil {
			slog.Warn("Timeline session start failed", "session", sess.ID(), "error", err)
		}
		_ = l.deps.Timeline.AddEvent(sess.ID(), timeline.KindPlan, l.deps.Plan.Render(), nil)
	}
	l.snapshot(sess)
}

// generate runs one model call, streaming fragments out as token chunk
// events. A retryable backend fault is retried once; a second fault, or
// a non-retryable one, is returned.
func (l *Loop) generate(ctx context.Context, sess *session.Session) (string, error) {
	system := buildSystemPrompt(l.deps.Registry.List(), l.deps.Plan.Render(), sess.Iteration(), l.cfg.Loop.MaxIterations)
	params := inference.Params{
		MaxTokens:   l.cfg.Model.MaxTokens,
		Temperature: l.cfg.Model.Temperature,
		TopP:        l.cfg.Model.TopP,
	}
	req := buildRequest(sess, system, params, l.cfg.Loop.HistoryWindow)

	retried := false
	for {
		text, err := l.generateOnce(ctx, sess, req)
		if err == nil {
			return text, nil
		}
		var be *inference.BackendError
		if errors.As(err, &be) && be.Retryable && !retried && ctx.Err() == nil {
			retried = true
			slog.Warn("Retrying after backend fault", "session", sess.ID(), "reason", be.Reason)
			continue
		}
		return "", err
	}
}

func (l *Loop) generateOnce(ctx context.Context, sess *session.Session, req *inference.Request) (string, error) {
	stream, err := l.deps.Client.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	return inference.Drain(stream, func(text string) {
		l.deps.Emitter.Emit(event.Event{Kind: event.KindTokenChunk, SessionID: sess.ID(), Text: text})
	})
}

// executeRequest takes one action request through gate, dispatch and
// observation. Recoverable faults settle the request and return nil;
// the returned error is reserved for suspension-point cancellation.
func (l *Loop) executeRequest(ctx context.Context, sess *session.Session, req *session.ActionRequest) error {
	l.deps.Emitter.Emit(event.Event{Kind: event.KindActionRequested, SessionID: sess.ID(), Request: req})

	def, lookupErr := l.deps.Registry.Lookup(req.Action)
	if lookupErr != nil {
		// Unknown action: no permission gate applies, the dispatch
		// failure below is the observation the model needs.
		req.Status = session.RequestFailed
		l.observe(sess, req, failedResult(req, fmt.Sprintf("unknown action: %s", req.Action)))
		return ctx.Err()
	}

	// Every known request passes through the approval gate; an Allowed
	// verdict resolves it without opening a ticket.
	l.transition(sess, StateAwaitingApproval)
	verdict := l.deps.Engine.Evaluate(permission.Check{
		SessionID: sess.ID(),
		Action:    req.Action,
		Group:     def.Group,
		Level:     def.Level,
	})
	switch verdict {
	case permission.Denied:
		req.Status = session.RequestDenied
		l.observe(sess, req, failedResult(req,
			fmt.Sprintf("permission denied: %s requires level %s, above the configured cap", req.Action, def.Level)))
		return ctx.Err()
	case permission.RequiresApproval:
		decision, err := l.awaitApproval(ctx, sess, req, def.Level)
		if err != nil {
			return err
		}
		if decision == permission.Deny {
			req.Status = session.RequestDenied
			l.observe(sess, req, failedResult(req,
				fmt.Sprintf("permission denied: approval for %s was refused or timed out", req.Action)))
			return ctx.Err()
		}
		if decision == permission.ApproveForSession {
			l.deps.Engine.Grant(sess.ID(), req.Action)
		}
		req.Status = session.RequestApproved
	}

	l.transition(sess, StateExecuting)
	toolStart := time.Now()
	res, err := l.deps.Registry.Dispatch(ctx, req.ID, req.Action, req.Arguments)
	if err != nil {
		// InvalidArguments (or a racing unregister): recoverable, the
		// validator's message goes back to the model verbatim.
		req.Status = session.RequestFailed
		l.observe(sess, req, failedResult(req, err.Error()))
		return ctx.Err()
	}
	if res.Success {
		req.Status = session.RequestExecuted
	} else {
		req.Status = session.RequestFailed
	}
	l.observe(sess, req, res)
	l.span(sess, trace.SpanTool, req.Action, registry.Truncate(res.Output, 512), toolStart)
	if l.deps.Timeline != nil {
		_ = l.deps.Timeline.AddEvent(sess.ID(), timeline.KindTool, req.Action, res)
	}
	return ctx.Err()
}

// awaitApproval suspends the loop on an approval ticket. Expiry of the
// approval timeout resolves as a denial; only caller cancellation is
// returned as an error.
func (l *Loop) awaitApproval(ctx context.Context, sess *session.Session, req *session.ActionRequest, level permission.Level) (permission.Decision, error) {
	ticket := &permission.Ticket{
		SessionID: sess.ID(),
		RequestID: req.ID,
		Action:    req.Action,
		Level:     level,
		Arguments: req.Arguments,
	}
	id := l.deps.Tickets.Create(ticket)
	l.deps.Emitter.Emit(event.Event{
		Kind:      event.KindApprovalRequested,
		SessionID: sess.ID(),
		Request:   req,
		TicketID:  id,
	})
	slog.Info("Awaiting approval", "session", sess.ID(), "action", req.Action, "ticket", id)

	waitCtx, cancel := context.WithTimeout(ctx, l.deps.Engine.ApprovalTimeout())
	defer cancel()
	decision, err := l.deps.Tickets.Wait(waitCtx, id)
	if err != nil {
		return permission.Deny, err
	}
	if ctx.Err() != nil {
		return permission.Deny, ctx.Err()
	}
	return decision, nil
}

// observe folds a settled result back into the conversation and the
// stagnation window, and emits it.
func (l *Loop) observe(sess *session.Session, req *session.ActionRequest, res *registry.Result) {
	l.deps.Detector.Observe(req.Action, req.Arguments, res.Success, res.Output)
	sess.Append(session.Message{Role: session.RoleActionResult, Result: res})
	l.deps.Emitter.Emit(event.Event{Kind: event.KindActionResult, SessionID: sess.ID(), Result: res})
	l.transition(sess, StateObserving)
}

func failedResult(req *session.ActionRequest, output string) *registry.Result {
	return &registry.Result{
		RequestID: req.ID,
		Action:    req.Action,
		Success:   false,
		Output:    output,
	}
}

// failGenerate classifies a generation fault into its terminal reason.
func (l *Loop) failGenerate(ctx, wallCtx context.Context, sess *session.Session, err error) error {
	switch {
	case ctx.Err() != nil:
		return l.fail(sess, ReasonCancelled, "cancelled during generation")
	case wallCtx.Err() == context.DeadlineExceeded:
		return l.fail(sess, ReasonBudgetExhausted,
			fmt.Sprintf("wall clock budget exhausted (%s)", l.cfg.Loop.WallClock))
	default:
		return l.fail(sess, ReasonBackendError, err.Error())
	}
}

// failSuspended classifies a fault raised at an action suspension point.
func (l *Loop) failSuspended(ctx, wallCtx context.Context, sess *session.Session, err error) error {
	switch {
	case ctx.Err() != nil:
		return l.fail(sess, ReasonCancelled, "cancelled during action handling")
	case wallCtx.Err() == context.DeadlineExceeded:
		return l.fail(sess, ReasonBudgetExhausted,
			fmt.Sprintf("wall clock budget exhausted (%s)", l.cfg.Loop.WallClock))
	default:
		return l.fail(sess, ReasonBackendError, err.Error())
	}
}

// complete performs the successful terminal checkpoint.
func (l *Loop) complete(sess *session.Session) {
	l.transition(sess, StateCompleted)
	sess.Terminate(string(StateCompleted), "")
	l.finish(sess, "completed")
	slog.Info("Session completed", "session", sess.ID(), "iterations", sess.Iteration())
}

// fail performs the failed terminal checkpoint and returns the error
// Run hands to its caller.
func (l *Loop) fail(sess *session.Session, reason, detail string) error {
	l.transition(sess, StateFailed)
	sess.Terminate(string(StateFailed), reason)
	l.finish(sess, reason)
	slog.Error("Session failed", "session", sess.ID(), "reason", reason, "detail", detail)
	return fmt.Errorf("session %s failed: %s (%s)", sess.ID(), reason, detail)
}

// finish runs the shared terminal bookkeeping.
func (l *Loop) finish(sess *session.Session, reason string) {
	l.deps.Emitter.Emit(event.Event{Kind: event.KindSessionTerminated, SessionID: sess.ID(), Reason: reason})
	if l.deps.Timeline != nil {
		if err := l.deps.Timeline.RecordSessionEnd(sess.ID(), sess.State(), reason, sess.Iteration()); err != nil {
			slog.Warn("Timeline session end failed", "session", sess.ID(), "error", err)
		}
	}
	l.span(sess, trace.SpanTerminal, sess.State(), reason, sess.StartedAt())
	l.snapshot(sess)
	l.deps.Engine.ForgetSession(sess.ID())
}

// transition moves the session to a new state, emitting the change.
func (l *Loop) transition(sess *session.Session, to State) {
	old := sess.State()
	if old == string(to) {
		return
	}
	sess.SetState(string(to))
	l.deps.Emitter.Emit(event.Event{
		Kind:      event.KindStateChanged,
		SessionID: sess.ID(),
		OldState:  old,
		NewState:  string(to),
	})
	if l.deps.Timeline != nil {
		_ = l.deps.Timeline.AddEvent(sess.ID(), timeline.KindState, old+" -> "+string(to), nil)
	}
}

func (l *Loop) snapshot(sess *session.Session) {
	if l.deps.Store == nil {
		return
	}
	if err := l.deps.Store.Save(sess); err != nil {
		slog.Warn("Session snapshot failed", "session", sess.ID(), "error", err)
	}
}

func (l *Loop) span(sess *session.Session, spanType, title, content string, start time.Time) {
	if l.deps.Tracer == nil {
		return
	}
	l.deps.Tracer.Publish(trace.NewSpan(sess.ID(), spanType, title, content, start))
}
