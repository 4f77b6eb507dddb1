// Package progress implements the stagnation heuristic over recent
// action history.
//
// Detection is heuristic by design. A legitimately repeated read that
// gathers new side information can trip it; that false positive is an
// accepted tradeoff, logged and surfaced as a nudge rather than a hard
// failure.
package progress

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
)

// Signal is the detector's verdict for a session.
type Signal int

const (
	// Progressing means recent history shows forward motion.
	Progressing Signal = iota
	// Stalled means the same invocation keeps repeating without
	// converging.
	Stalled
)

func (s Signal) String() string {
	if s == Stalled {
		return "stalled"
	}
	return "progressing"
}

const (
	// DefaultWindowSize is how many recent invocations are inspected.
	DefaultWindowSize = 6
	// DefaultRepeatThreshold is how many identical invocations within
	// the window signal a stall.
	DefaultRepeatThreshold = 3
)

// Record is one observed action invocation.
type Record struct {
	Action     string
	ArgHash    string
	Success    bool
	ResultHash string
}

// Detector keeps a bounded window of invocation records per session.
type Detector struct {
	mu        sync.Mutex
	window    int
	threshold int
	history   []Record
}

// NewDetector creates a detector. Zero values select the defaults.
func NewDetector(window, threshold int) *Detector {
	if window <= 0 {
		window = DefaultWindowSize
	}
	if threshold <= 0 {
		threshold = DefaultRepeatThreshold
	}
	return &Detector{window: window, threshold: threshold}
}

// Observe appends an invocation to the window, evicting the oldest
// entry once the window is full. The result output is digested so
// Check can tell identical outcomes from merely repeated calls.
func (d *Detector) Observe(action string, args map[string]any, success bool, output string) {
	rec := Record{
		Action:     action,
		ArgHash:    HashArgs(args),
		Success:    success,
		ResultHash: hashOutput(output),
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.history = append(d.history, rec)
	if len(d.history) > d.window {
		d.history = d.history[len(d.history)-d.window:]
	}
}

// Check inspects the window. Stalled is signaled when the same
// (action, arguments) pair appears at least threshold times and every
// occurrence either failed or returned the identical result.
// Repetition alone is not enough: a repeated call that keeps
// succeeding with fresh output is gathering new information.
func (d *Detector) Check() Signal {
	d.mu.Lock()
	defer d.mu.Unlock()

	type outcome struct {
		count      int
		failures   int
		resultHash string
		uniform    bool
	}
	seen := make(map[string]*outcome)
	for _, rec := range d.history {
		key := rec.Action + "\x00" + rec.ArgHash
		o := seen[key]
		if o == nil {
			o = &outcome{resultHash: rec.ResultHash, uniform: true}
			seen[key] = o
		}
		o.count++
		if !rec.Success {
			o.failures++
		}
		if rec.ResultHash != o.resultHash {
			o.uniform = false
		}
	}

	for key, o := range seen {
		if o.count < d.threshold {
			continue
		}
		// All failing, or all with the identical result: non-convergent
		// repetition.
		if o.failures == o.count || (o.failures == 0 && o.uniform) {
			slog.Warn("Loop detector signaled stall",
				"key", key, "count", o.count, "failures", o.failures)
			return Stalled
		}
	}
	return Progressing
}

// Reset clears the window, e.g. after a nudge produced fresh behavior.
func (d *Detector) Reset() {
	d.mu.Lock()
	d.history = d.history[:0]
	d.mu.Unlock()
}

// hashOutput digests a result payload for outcome comparison.
func hashOutput(output string) string {
	if output == "" {
		return ""
	}
	sum := sha1.Sum([]byte(output))
	return hex.EncodeToString(sum[:])
}

// HashArgs produces a stable digest of an argument map. Keys are sorted
// so semantically equal maps hash equally.
func HashArgs(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha1.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
		b, _ := json.Marshal(args[k])
		h.Write(b)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
