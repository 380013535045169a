package command

// Params holds named command parameters. After Schema.Validate, integer values are int64,
// string values are string and boolean values are bool.
type Params map[string]any

// Has reports whether name is set.
func (p Params) Has(name string) bool {
	_, ok := p[name]
	return ok
}

// Int returns an integer parameter, or 0 when it is absent.
func (p Params) Int(name string) int64 {
	n, _ := toInt64(p[name])
	return n
}

// Uint returns a non-negative integer parameter as uint64, or 0 when it is absent or negative.
func (p Params) Uint(name string) uint64 {
	n := p.Int(name)
	if n < 0 {
		return 0
	}

	return uint64(n)
}

// String returns a string parameter, or "" when it is absent.
func (p Params) String(name string) string {
	s, _ := toString(p[name])
	return s
}

// Bool returns a boolean parameter, or false when it is absent.
func (p Params) Bool(name string) bool {
	b, _ := p[name].(bool)
	return b
}

// Clone returns a shallow copy of p.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}

	return out
}
