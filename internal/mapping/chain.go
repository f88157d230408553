package mapping

import "capi-forwarder/internal/util"

// candidate yields one possible value for an output field.
type candidate func() any

func key(obj map[string]any, name string) candidate {
	return func() any { return obj[name] }
}

func keys(obj map[string]any, names ...string) []candidate {
	out := make([]candidate, 0, len(names))
	for _, name := range names {
		out = append(out, key(obj, name))
	}
	return out
}

func constant(v any) candidate {
	return func() any { return v }
}

// rule fills one output field from the first candidate that passes present.
// present defaults to util.Truthy; convert, when set, is applied to the winner.
type rule struct {
	field      string
	candidates []candidate
	present    func(any) bool
	convert    func(any) any
}

func firstPresent(present func(any) bool, candidates []candidate) (any, bool) {
	for _, c := range candidates {
		if v := c(); present(v) {
			return v, true
		}
	}
	return nil, false
}

func (r rule) apply(dst map[string]any) {
	present := r.present
	if present == nil {
		present = util.Truthy
	}
	v, ok := firstPresent(present, r.candidates)
	if !ok {
		return
	}
	if r.convert != nil {
		v = r.convert(v)
	}
	dst[r.field] = v
}

func applyRules(dst map[string]any, rules []rule) {
	for _, r := range rules {
		r.apply(dst)
	}
}

func asString(v any) any { return util.String(v) }
