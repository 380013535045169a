package command

import (
	"context"
	"fmt"
	"slices"
)

// EncodeFunc turns validated parameters into wire bytes.
// It must be pure and must not fail for parameters that passed the schema.
type EncodeFunc func(p Params) []byte

// DecodeFunc inspects one frame. It returns the extracted value and true when the frame
// is the response it waits for, or false to ignore the frame.
type DecodeFunc func(frame []byte) (any, bool)

// Exchanger is the I/O a command body may perform while it holds the device gate.
type Exchanger interface {
	// Write sends payload to the transport.
	Write(ctx context.Context, payload []byte) error
	// Query subscribes to frames, writes payload and returns the value of the first
	// frame accepted by decode, or a timeout error.
	Query(ctx context.Context, payload []byte, decode DecodeFunc) (any, error)
}

// ExecFunc is a command body for operations that are not a single write or query.
type ExecFunc func(ctx context.Context, x Exchanger, p Params) (any, error)

// Descriptor is one named operation. A descriptor with neither Encode nor Exec is
// declared but not implemented by the device.
//
// Exec takes precedence over Encode. With Encode only, the command is a fire-and-forget
// set; with Encode and Decode it is a get that resolves with the decoded value.
type Descriptor struct {
	Name     string
	Schema   *Schema
	Optional bool
	Encode   EncodeFunc
	Decode   DecodeFunc
	Exec     ExecFunc
}

// Implemented reports whether the descriptor can be invoked.
func (d *Descriptor) Implemented() bool {
	return d.Exec != nil || d.Encode != nil
}

// IsQuery reports whether invoking the descriptor waits for a response frame.
func (d *Descriptor) IsQuery() bool {
	return d.Exec == nil && d.Encode != nil && d.Decode != nil
}

// Validate checks raw against the descriptor schema.
func (d *Descriptor) Validate(raw Params) (Params, error) {
	return d.Schema.Validate(d.Name, raw)
}

// Registry is an immutable table of descriptors keyed by name, built once per device class.
type Registry struct {
	order  []string
	byName map[string]*Descriptor
}

// Lookup returns the named descriptor, implemented or not.
func (r *Registry) Lookup(name string) (*Descriptor, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// Declared reports whether name is a known command.
func (r *Registry) Declared(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// Implements reports whether name is declared and implemented.
func (r *Registry) Implements(name string) bool {
	d, ok := r.byName[name]
	return ok && d.Implemented()
}

// Names returns the implemented command names in declaration order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.order))
	for _, name := range r.order {
		if r.byName[name].Implemented() {
			out = append(out, name)
		}
	}

	return out
}

// DeclaredNames returns every declared command name in declaration order.
func (r *Registry) DeclaredNames() []string {
	return slices.Clone(r.order)
}

// Schema returns the JSON schema of a declared command.
func (r *Registry) Schema(name string) (map[string]any, error) {
	d, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}

	return d.Schema.JSONSchema(), nil
}

// Encode validates raw and returns the wire bytes of a Set or Get command without any I/O.
// The encoder is never reached when validation fails.
func (r *Registry) Encode(name string, raw Params) ([]byte, error) {
	d, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	if d.Encode == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotImplemented, name)
	}

	p, err := d.Validate(raw)
	if err != nil {
		return nil, err
	}

	return d.Encode(p), nil
}

// Builder assembles a Registry. It is not safe for concurrent use.
type Builder struct {
	order  []string
	byName map[string]*Descriptor
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{byName: make(map[string]*Descriptor)}
}

// Extend copies every descriptor of base into the builder, keeping base's order.
func (b *Builder) Extend(base *Registry) *Builder {
	for _, name := range base.order {
		d := *base.byName[name]
		b.put(&d)
	}

	return b
}

// Declare adds a command without implementation. optional marks capabilities that
// devices may lack.
func (b *Builder) Declare(name string, schema *Schema, optional bool) *Builder {
	return b.put(&Descriptor{Name: name, Schema: schema, Optional: optional})
}

// Set implements name as a fire-and-forget write.
func (b *Builder) Set(name string, schema *Schema, encode EncodeFunc) *Builder {
	return b.implement(&Descriptor{Name: name, Schema: schema, Encode: encode})
}

// Get implements name as a query resolved by decode.
func (b *Builder) Get(name string, schema *Schema, encode EncodeFunc, decode DecodeFunc) *Builder {
	return b.implement(&Descriptor{Name: name, Schema: schema, Encode: encode, Decode: decode})
}

// Exec implements name with a custom body.
func (b *Builder) Exec(name string, schema *Schema, fn ExecFunc) *Builder {
	return b.implement(&Descriptor{Name: name, Schema: schema, Exec: fn})
}

// Build returns the immutable registry.
func (b *Builder) Build() *Registry {
	r := &Registry{
		order:  slices.Clone(b.order),
		byName: make(map[string]*Descriptor, len(b.byName)),
	}
	for name, d := range b.byName {
		cp := *d
		r.byName[name] = &cp
	}

	return r
}

func (b *Builder) implement(d *Descriptor) *Builder {
	if prev, ok := b.byName[d.Name]; ok {
		d.Optional = prev.Optional
	}

	return b.put(d)
}

func (b *Builder) put(d *Descriptor) *Builder {
	if d.Schema == nil {
		d.Schema = Empty()
	}
	if _, ok := b.byName[d.Name]; !ok {
		b.order = append(b.order, d.Name)
	}
	b.byName[d.Name] = d

	return b
}
