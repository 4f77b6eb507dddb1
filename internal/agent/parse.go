package agent

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Call is one tool invocation parsed out of model output.
type Call struct {
	Name string
	Args map[string]any
}

// ParseError reports model output that attempts a tool call but does
// not conform to either accepted syntax. It is fatal to the session
// once the parse retry budget is spent.
type ParseError struct {
	Detail string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unparseable tool call: %s", e.Detail)
}

var (
	jsonCallMarkerRe = regexp.MustCompile(`\{\s*"tool"\s*:`)
	fencedBlockRe    = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)```")
	xmlCallRe        = regexp.MustCompile(`(?s)<use_tool\s+name="([^"]+)"\s*>(.*?)</use_tool>`)
	xmlParamRe       = regexp.MustCompile(`(?s)<param\s+name="([^"]+)"\s*>(.*?)</param>`)
)

type positioned struct {
	pos  int
	call Call
}

// ParseResponse extracts tool calls from model output. Two syntaxes are
// accepted, in any mix, returned in order of appearance:
//
//	{"tool": "name", "params": {...}}          (optionally inside a ``` fence)
//	<use_tool name="name"><param name="k">v</param></use_tool>
//
// Output with no tool call at all is a final answer: nil calls, nil
// error. Output that attempts a call in either syntax but cannot be
// parsed returns a ParseError.
func ParseResponse(text string) ([]Call, error) {
	var found []positioned

	calls, err := parseXMLCalls(text)
	if err != nil {
		return nil, err
	}
	found = append(found, calls...)

	calls, err = parseJSONCalls(text)
	if err != nil {
		return nil, err
	}
	found = append(found, calls...)

	if len(found) == 0 {
		if jsonCallMarkerRe.MatchString(text) || strings.Contains(text, "<use_tool") {
			return nil, &ParseError{Detail: "tool call markers present but no call could be extracted"}
		}
		return nil, nil
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].pos < found[j].pos })
	out := make([]Call, len(found))
	for i, f := range found {
		out[i] = f.call
	}
	return out, nil
}

func parseXMLCalls(text string) ([]positioned, error) {
	var out []positioned
	for _, loc := range xmlCallRe.FindAllStringSubmatchIndex(text, -1) {
		name := text[loc[2]:loc[3]]
		body := text[loc[4]:loc[5]]

		args := map[string]any{}
		for _, p := range xmlParamRe.FindAllStringSubmatch(body, -1) {
			args[p[1]] = coerceParam(strings.TrimSpace(p[2]))
		}
		if strings.TrimSpace(name) == "" {
			return nil, &ParseError{Detail: "use_tool block with empty name"}
		}
		out = append(out, positioned{pos: loc[0], call: Call{Name: name, Args: args}})
	}
	// An opening tag without a matching close is an attempted call.
	if out == nil && strings.Contains(text, "<use_tool") {
		return nil, &ParseError{Detail: "unterminated use_tool block"}
	}
	return out, nil
}

// coerceParam converts XML parameter text into a typed value so "3" and
// "true" validate against numeric and boolean schemas.
func coerceParam(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		switch v.(type) {
		case float64, bool, []any, map[string]any:
			return v
		}
	}
	return s
}

func parseJSONCalls(text string) ([]positioned, error) {
	// Fenced blocks hide brace content from the bare scan below, so
	// strip the fence markers in place. Offsets survive because only
	// the backtick runs are blanked.
	scan := fencedBlockRe.ReplaceAllStringFunc(text, func(block string) string {
		return strings.Map(func(r rune) rune {
			if r == '`' {
				return ' '
			}
			return r
		}, block)
	})

	var out []positioned
	sawMarker := false
	for _, loc := range jsonCallMarkerRe.FindAllStringIndex(scan, -1) {
		sawMarker = true
		raw, ok := balancedObject(scan[loc[0]:])
		if !ok {
			return nil, &ParseError{Detail: "unbalanced JSON tool call"}
		}
		var envelope struct {
			Tool   string         `json:"tool"`
			Params map[string]any `json:"params"`
		}
		if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
			return nil, &ParseError{Detail: err.Error()}
		}
		if envelope.Tool == "" {
			return nil, &ParseError{Detail: "JSON tool call with empty tool name"}
		}
		if envelope.Params == nil {
			envelope.Params = map[string]any{}
		}
		out = append(out, positioned{pos: loc[0], call: Call{Name: envelope.Tool, Args: envelope.Params}})
	}
	if !sawMarker && out == nil {
		return nil, nil
	}
	return out, nil
}

// balancedObject returns the prefix of s that forms one complete JSON
// object, honoring strings and escapes.
func balancedObject(s string) (string, bool) {
	depth := 0
	inString := false
	escaped := false
	for i, r := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}
	return "", false
}
