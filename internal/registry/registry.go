// Package registry holds the action capability set and dispatches
// validated invocations to their handlers.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/helmsman-ai/helmsman/internal/permission"
)

// MaxOutputBytes bounds the payload of a single action result. Larger
// output is truncated before it is folded into model context.
const MaxOutputBytes = 16 * 1024

// Handler executes one action invocation. It returns the output payload
// or an error describing the failure in terms the model can act on.
type Handler func(ctx context.Context, args map[string]any) (string, error)

// Definition describes a registered action: its schema, permission
// requirement and handler. Registered once at startup, read-only after.
type Definition struct {
	// Name is the unique key used in model tool calls.
	Name string
	// Description is shown to the model in the tool instructions.
	Description string
	// Group names a family of related actions for allowlisting.
	Group string
	// Level is the minimum permission level required to run the action.
	Level permission.Level
	// Parameters is a JSON Schema describing the arguments object.
	Parameters map[string]any
	// Handler is the bound implementation.
	Handler Handler

	compiled *jsonschema.Schema
}

// Result is the outcome of one dispatched action.
type Result struct {
	RequestID string        `json:"request_id"`
	Action    string        `json:"action"`
	Success   bool          `json:"success"`
	Output    string        `json:"output"`
	Duration  time.Duration `json:"duration"`
}

// Registry is a pure dispatch table plus validation. Registration is a
// one-time init phase; after Seal the table may be read concurrently by
// all sessions without locking concerns.
type Registry struct {
	mu     sync.RWMutex
	defs   map[string]*Definition
	sealed bool
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Register adds an action definition. The parameter schema is compiled
// here so malformed schemas fail at startup, not at dispatch time.
func (r *Registry) Register(def *Definition) error {
	if def == nil || strings.TrimSpace(def.Name) == "" {
		return errors.New("definition requires a name")
	}
	if def.Handler == nil {
		return fmt.Errorf("action %s: handler is required", def.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return ErrSealed
	}
	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateAction, def.Name)
	}

	if def.Parameters != nil {
		c := jsonschema.NewCompiler()
		if err := c.AddResource("schema.json", normalizeSchemaDoc(def.Parameters)); err != nil {
			return fmt.Errorf("action %s: add schema: %w", def.Name, err)
		}
		schema, err := c.Compile("schema.json")
		if err != nil {
			return fmt.Errorf("action %s: compile schema: %w", def.Name, err)
		}
		def.compiled = schema
	}

	r.defs[def.Name] = def
	return nil
}

// Seal ends the registration phase. Further Register calls fail.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Lookup returns the definition for a name.
func (r *Registry) Lookup(name string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return def, nil
}

// List returns all definitions sorted by name.
func (r *Registry) List() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Definition, 0, len(r.defs))
	for _, def := range r.defs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ListByLevel returns definitions at or below the given level.
func (r *Registry) ListByLevel(max permission.Level) []*Definition {
	var out []*Definition
	for _, def := range r.List() {
		if def.Level <= max {
			out = append(out, def)
		}
	}
	return out
}

// ListByGroup returns definitions belonging to the given group.
func (r *Registry) ListByGroup(group string) []*Definition {
	var out []*Definition
	for _, def := range r.List() {
		if def.Group == group {
			out = append(out, def)
		}
	}
	return out
}

// Dispatch validates the arguments and invokes the bound handler. All
// handler-level faults, panics included, come back as a failed Result;
// only NotFound and InvalidArguments surface as errors, and both are
// recoverable observations for the model, not session faults.
func (r *Registry) Dispatch(ctx context.Context, requestID, name string, args map[string]any) (*Result, error) {
	def, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}

	if args == nil {
		args = map[string]any{}
	}
	if def.compiled != nil {
		if err := def.compiled.Validate(normalizeArgs(args)); err != nil {
			return nil, &InvalidArgumentsError{
				Action: name,
				Field:  offendingField(err),
				Err:    err,
			}
		}
	}

	start := time.Now()
	output, handlerErr := r.invoke(ctx, def, args)
	res := &Result{
		RequestID: requestID,
		Action:    name,
		Duration:  time.Since(start),
	}
	if handlerErr != nil {
		res.Success = false
		res.Output = (&FailureError{Action: name, Reason: handlerErr.Error()}).Error()
		return res, nil
	}
	res.Success = true
	res.Output = Truncate(output, MaxOutputBytes)
	return res, nil
}

// invoke runs the handler with panic containment.
func (r *Registry) invoke(ctx context.Context, def *Definition, args map[string]any) (out string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Action handler panicked", "action", def.Name, "panic", rec)
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return def.Handler(ctx, args)
}

// Truncate trims s to at most max bytes, marking the cut. The cut
// backs up to a rune boundary so a multi-byte sequence is never split.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n[output truncated]"
}

// normalizeArgs converts Go-native numeric types into the JSON number
// representation the schema validator expects. Arguments parsed from
// model output are already float64; this covers handler-side callers.
func normalizeArgs(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		switch n := v.(type) {
		case int:
			out[k] = float64(n)
		case int64:
			out[k] = float64(n)
		case map[string]any:
			out[k] = normalizeArgs(n)
		default:
			out[k] = v
		}
	}
	return out
}

// normalizeSchemaDoc rewrites a hand-authored schema into the pure JSON
// value shapes the compiler accepts: string slices become []any, Go ints
// become float64.
func normalizeSchemaDoc(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeSchemaDoc(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeSchemaDoc(val)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case int:
		return float64(t)
	case int64:
		return float64(t)
	default:
		return v
	}
}

// offendingField extracts the instance path of the first leaf cause in
// a validation error, so the model is told which field to fix.
func offendingField(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return ""
	}
	leaf := ve
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	return strings.Join(leaf.InstanceLocation, "/")
}
