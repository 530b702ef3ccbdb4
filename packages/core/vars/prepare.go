package vars

// PrepareData returns a deep copy of data with Substitute applied to every
// string leaf. Map keys are copied verbatim. Nested maps and slices are walked with an explicit stack, so
// deeply nested input cannot grow the goroutine stack. Values of other types
// are copied as-is.
func (s *Store) PrepareData(data any) any {
	type item struct {
		src any
		set func(any)
	}

	var result any
	stack := []item{{src: data, set: func(v any) { result = v }}}

	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch v := it.src.(type) {
		case string:
			it.set(s.Substitute(v))
		case map[string]any:
			out := make(map[string]any, len(v))
			it.set(out)
			for k, child := range v {
				stack = append(stack, item{src: child, set: func(x any) { out[k] = x }})
			}
		case []any:
			out := make([]any, len(v))
			it.set(out)
			for i, child := range v {
				stack = append(stack, item{src: child, set: func(x any) { out[i] = x }})
			}
		case map[string]string:
			out := make(map[string]string, len(v))
			for k, child := range v {
				out[k] = s.Substitute(child)
			}
			it.set(out)
		case []string:
			out := make([]string, len(v))
			for i, child := range v {
				out[i] = s.Substitute(child)
			}
			it.set(out)
		default:
			it.set(v)
		}
	}
	return result
}

// PrepareMap is PrepareData for the header and param maps of a case.
func (s *Store) PrepareMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out, _ := s.PrepareData(m).(map[string]any)
	return out
}
