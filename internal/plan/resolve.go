package plan

import (
	"encoding/json"
	"fmt"
)

// ResolveArgs substitutes every back-reference in an Action's arguments with
// the referenced step's payload. index is the position of the Action being
// resolved; only steps strictly before it may be referenced. Resolution is
// all-or-nothing: the first bad reference aborts with a *ResolutionError and
// the caller must not invoke the capability.
func ResolveArgs(args map[string]Value, index int, results []Result) (map[string]any, error) {
	resolved := make(map[string]any, len(args))
	for k, v := range args {
		rv, err := resolveValue(v, index, results)
		if err != nil {
			return nil, err
		}
		resolved[k] = rv
	}
	return resolved, nil
}

func resolveValue(v Value, index int, results []Result) (any, error) {
	switch v.Kind {
	case KindLiteral:
		return v.Literal, nil

	case KindRef:
		return lookupRef(v.Ref, index, results)

	case KindTemplate:
		var out []byte
		for _, seg := range v.Parts {
			if seg.Ref == nil {
				out = append(out, seg.Text...)
				continue
			}
			val, err := lookupRef(*seg.Ref, index, results)
			if err != nil {
				return nil, err
			}
			out = append(out, stringify(val)...)
		}
		return string(out), nil

	case KindMap:
		m := make(map[string]any, len(v.Map))
		for k, inner := range v.Map {
			rv, err := resolveValue(inner, index, results)
			if err != nil {
				return nil, err
			}
			m[k] = rv
		}
		return m, nil

	case KindList:
		l := make([]any, 0, len(v.List))
		for _, inner := range v.List {
			rv, err := resolveValue(inner, index, results)
			if err != nil {
				return nil, err
			}
			l = append(l, rv)
		}
		return l, nil
	}
	return nil, &ResolutionError{Reason: "unknown value kind"}
}

func lookupRef(ref StepRef, index int, results []Result) (any, error) {
	if ref.Step >= index {
		return nil, &ResolutionError{Step: ref.Step, Reason: "refers to the current or a later step"}
	}
	if ref.Step < 0 || ref.Step >= len(results) {
		return nil, &ResolutionError{Step: ref.Step, Reason: "no result recorded for that step"}
	}
	res := results[ref.Step]
	if !res.Success {
		return nil, &ResolutionError{Step: ref.Step, Reason: fmt.Sprintf("referenced step failed: %s", res.Error)}
	}
	if ref.Field == "" {
		return res.Payload, nil
	}
	val, ok := res.Payload[ref.Field]
	if !ok {
		return nil, &ResolutionError{Step: ref.Step, Reason: fmt.Sprintf("payload has no field %q", ref.Field)}
	}
	return val, nil
}

func stringify(v any) string {
	switch tv := v.(type) {
	case string:
		return tv
	case map[string]any, []any:
		data, err := json.Marshal(tv)
		if err == nil {
			return string(data)
		}
	}
	return fmt.Sprintf("%v", v)
}
