package format

// Or returns *p, or def when p is nil. Optional profile fields are pointers.
func Or[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}
