package types

// Field maps one optional input attribute onto a storage column.
type Field[T any] struct {
	Column string
	Value  func(T) (any, bool)
}

// Columns collects the columns set on input, keyed by column name. Attributes the
// caller left unset are skipped so the resulting map drives a partial update.
func Columns[T any](fields []Field[T], input T) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := f.Value(input); ok {
			out[f.Column] = v
		}
	}
	return out
}

// Optional reports the pointed-to value when p is set.
func Optional[V any](p *V) (any, bool) {
	if p == nil {
		return nil, false
	}
	return *p, true
}
