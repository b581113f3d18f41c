package pev

import (
	"regexp"
	"strconv"
)

var (
	prevResultRef = regexp.MustCompile(`^\$prev_result(?:\.([^.\s]+))?$`)
	stepResultRef = regexp.MustCompile(`^\$step_(-?\d+)_result(?:\.([^.\s]+))?$`)
)

// ResolveArgs substitutes earlier step results into the argument template
// of the step at position pos of the plan. results holds the values of the
// steps that succeeded so far, keyed by step index.
//
// Only whole-value placeholders are recognised. A placeholder that cannot
// be resolved is left exactly as written.
func ResolveArgs(plan *Plan, pos int, results map[int]any) map[string]any {
	step := plan.step(pos)
	out := make(map[string]any, len(step.Args))
	for k, v := range step.Args {
		out[k] = resolveValue(plan, pos, v, results)
	}
	return out
}

func resolveValue(plan *Plan, pos int, v any, results map[int]any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}

	if m := prevResultRef.FindStringSubmatch(s); m != nil {
		if pos == 0 {
			return v
		}
		if r, ok := lookup(results, plan.step(pos-1).Index, m[1]); ok {
			return r
		}
		return v
	}

	if m := stepResultRef.FindStringSubmatch(s); m != nil {
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			return v
		}
		if r, ok := lookup(results, idx, m[2]); ok {
			return r
		}
		return v
	}

	return v
}

// lookup fetches the result of step idx, projecting field out of it when
// field is non-empty.
func lookup(results map[int]any, idx int, field string) (any, bool) {
	r, ok := results[idx]
	if !ok {
		return nil, false
	}
	if field == "" {
		return r, true
	}

	switch m := r.(type) {
	case map[string]any:
		f, ok := m[field]
		return f, ok
	case map[string]string:
		f, ok := m[field]
		return f, ok
	default:
		return nil, false
	}
}
