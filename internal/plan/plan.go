package plan

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Action is a single capability invocation: one (module, function) pair plus
// its arguments. Actions are immutable once parsed.
type Action struct {
	Module   string
	Function string
	Args     map[string]Value
}

// Plan is the ordered sequence of Actions the planner produced for one command.
type Plan struct {
	Thought string
	Actions []Action
}

// Result is the outcome of executing one Action, indexed by step position.
type Result struct {
	Success bool           `json:"success"`
	Payload map[string]any `json:"payload,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Ok builds a successful Result around a payload.
func Ok(payload map[string]any) Result {
	return Result{Success: true, Payload: payload}
}

// Failed builds a failed Result carrying the error text.
func Failed(err error) Result {
	return Result{Success: false, Error: err.Error()}
}

// ValueKind discriminates the parsed forms an argument value can take.
type ValueKind int

const (
	KindLiteral ValueKind = iota
	KindRef
	KindTemplate
	KindMap
	KindList
)

// StepRef is a back-reference to a prior step's Result payload. Field names a
// single payload key; empty Field references the whole payload.
type StepRef struct {
	Step  int
	Field string
}

// Segment is one piece of a string template: either literal text or a
// back-reference to substitute.
type Segment struct {
	Text string
	Ref  *StepRef
}

// Value is one parsed argument value. Back-references are recognized once,
// at plan decode time; the Resolver never scans strings at dispatch time.
type Value struct {
	Kind    ValueKind
	Literal any
	Ref     StepRef
	Parts   []Segment
	Map     map[string]Value
	List    []Value
}

// Lit wraps a plain literal as a Value. Used by tests and by callers that
// build Plans by hand.
func Lit(v any) Value {
	return Value{Kind: KindLiteral, Literal: v}
}

// RefVal builds a whole-value back-reference.
func RefVal(step int, field string) Value {
	return Value{Kind: KindRef, Ref: StepRef{Step: step, Field: field}}
}

var refPattern = regexp.MustCompile(`\{result_of_action_(\d+)(?:\.([A-Za-z0-9_]+))?\}`)

// Parse decodes a planner response of the form
// {"thought": "...", "actions": [{"module","function","args"}, ...]}
// into a Plan, recognizing back-reference placeholders in argument values.
// Malformed input yields a *PlanningError.
func Parse(data []byte) (*Plan, error) {
	var raw struct {
		Thought string `json:"thought"`
		Actions []struct {
			Module   string         `json:"module"`
			Function string         `json:"function"`
			Args     map[string]any `json:"args"`
		} `json:"actions"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &PlanningError{Reason: fmt.Sprintf("planner returned invalid JSON: %v", err)}
	}

	p := &Plan{Thought: raw.Thought}
	for i, ra := range raw.Actions {
		if ra.Module == "" || ra.Function == "" {
			return nil, &PlanningError{Reason: fmt.Sprintf("action %d is missing module or function", i)}
		}
		args := make(map[string]Value, len(ra.Args))
		for k, v := range ra.Args {
			args[k] = parseValue(v)
		}
		p.Actions = append(p.Actions, Action{Module: ra.Module, Function: ra.Function, Args: args})
	}
	return p, nil
}

func parseValue(v any) Value {
	switch tv := v.(type) {
	case string:
		return parseString(tv)
	case map[string]any:
		m := make(map[string]Value, len(tv))
		for k, inner := range tv {
			m[k] = parseValue(inner)
		}
		return Value{Kind: KindMap, Map: m}
	case []any:
		l := make([]Value, 0, len(tv))
		for _, inner := range tv {
			l = append(l, parseValue(inner))
		}
		return Value{Kind: KindList, List: l}
	default:
		return Value{Kind: KindLiteral, Literal: v}
	}
}

func parseString(s string) Value {
	locs := refPattern.FindAllStringSubmatchIndex(s, -1)
	if locs == nil {
		return Value{Kind: KindLiteral, Literal: s}
	}

	// The entire value is one placeholder: pass the referenced payload
	// (or field) through untouched rather than stringifying it.
	if len(locs) == 1 && locs[0][0] == 0 && locs[0][1] == len(s) {
		return Value{Kind: KindRef, Ref: refAt(s, locs[0])}
	}

	var parts []Segment
	last := 0
	for _, loc := range locs {
		if loc[0] > last {
			parts = append(parts, Segment{Text: s[last:loc[0]]})
		}
		ref := refAt(s, loc)
		parts = append(parts, Segment{Ref: &ref})
		last = loc[1]
	}
	if last < len(s) {
		parts = append(parts, Segment{Text: s[last:]})
	}
	return Value{Kind: KindTemplate, Parts: parts}
}

func refAt(s string, loc []int) StepRef {
	step, _ := strconv.Atoi(s[loc[2]:loc[3]])
	ref := StepRef{Step: step}
	if loc[4] >= 0 {
		ref.Field = s[loc[4]:loc[5]]
	}
	return ref
}

// Summary renders a short human-readable description of an Action for
// confirmation prompts and progress lines.
func (a Action) Summary() string {
	var keys []string
	for k, v := range a.Args {
		keys = append(keys, fmt.Sprintf("%s=%v", k, previewValue(v)))
	}
	if len(keys) == 0 {
		return fmt.Sprintf("%s.%s()", a.Module, a.Function)
	}
	return fmt.Sprintf("%s.%s(%s)", a.Module, a.Function, strings.Join(keys, ", "))
}

func previewValue(v Value) string {
	switch v.Kind {
	case KindLiteral:
		s := fmt.Sprintf("%v", v.Literal)
		if len(s) > 60 {
			s = s[:57] + "..."
		}
		return s
	case KindRef:
		if v.Ref.Field != "" {
			return fmt.Sprintf("{result_of_action_%d.%s}", v.Ref.Step, v.Ref.Field)
		}
		return fmt.Sprintf("{result_of_action_%d}", v.Ref.Step)
	case KindTemplate:
		return "<template>"
	case KindMap:
		return "<object>"
	case KindList:
		return "<list>"
	}
	return "?"
}
