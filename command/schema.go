package command

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"slices"
	"sort"
	"strconv"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
)

const schemaURL = "params.json"

// Kind is the JSON type of a parameter.
type Kind int

const (
	KindInteger Kind = iota
	KindString
	KindBoolean
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindString:
		return "string"
	case KindBoolean:
		return "boolean"
	default:
		return "unknown"
	}
}

// Field describes one named parameter. Fields are built with Int, Enum and Bool
// and refined with the chainable methods; they must not be changed once passed to Object.
type Field struct {
	name        string
	kind        Kind
	description string
	optional    bool
	def         any
	min, max    *int64
	step        int64
	enum        []string
}

// Int declares a required integer parameter in [min, max].
func Int(name string, min, max int64) *Field {
	return &Field{name: name, kind: KindInteger, min: &min, max: &max}
}

// Enum declares a required string parameter restricted to values.
func Enum(name string, values ...string) *Field {
	return &Field{name: name, kind: KindString, enum: slices.Clone(values)}
}

// Bool declares a required boolean parameter.
func Bool(name string) *Field {
	return &Field{name: name, kind: KindBoolean}
}

// Optional marks the field as not required.
func (f *Field) Optional() *Field {
	f.optional = true
	return f
}

// Default marks the field optional and fills v when it is absent.
func (f *Field) Default(v any) *Field {
	f.optional = true
	f.def = v
	return f
}

// Step restricts an integer field to multiples of n.
func (f *Field) Step(n int64) *Field {
	f.step = n
	return f
}

// Describe sets the field description exported in the JSON schema.
func (f *Field) Describe(s string) *Field {
	f.description = s
	return f
}

// Name returns the parameter name.
func (f *Field) Name() string { return f.name }

// Kind returns the parameter type.
func (f *Field) Kind() Kind { return f.kind }

// Required reports whether the parameter must be supplied.
func (f *Field) Required() bool { return !f.optional }

// Values returns the permitted enum members of a string field.
func (f *Field) Values() []string { return slices.Clone(f.enum) }

// Range returns the bounds of an integer field.
func (f *Field) Range() (min, max int64) {
	min, max = math.MinInt64, math.MaxInt64
	if f.min != nil {
		min = *f.min
	}
	if f.max != nil {
		max = *f.max
	}

	return min, max
}

// Schema is an immutable object schema: a set of named fields, no additional properties.
// Validate runs the JSON schema returned by JSONSchema, compiled on first use.
type Schema struct {
	fields []*Field
	byName map[string]*Field

	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
}

// Object builds a schema from fields. Field names must be unique.
func Object(fields ...*Field) *Schema {
	s := &Schema{byName: make(map[string]*Field, len(fields))}
	for _, f := range fields {
		if _, dup := s.byName[f.name]; dup {
			panic("command: duplicate field " + f.name)
		}
		s.fields = append(s.fields, f)
		s.byName[f.name] = f
	}

	return s
}

// Empty returns a schema that accepts no parameters.
func Empty() *Schema {
	return Object()
}

// Field returns the named field.
func (s *Schema) Field(name string) (*Field, bool) {
	f, ok := s.byName[name]
	return f, ok
}

// Fields returns the fields in declaration order.
func (s *Schema) Fields() []*Field {
	return slices.Clone(s.fields)
}

// Validate checks raw against the schema and returns a normalized copy: integers become int64,
// and defaults are filled in. name is reported in the ValidationError.
//
// When several parameters are wrong, an unknown parameter is reported first, then the first
// declared field in violation.
func (s *Schema) Validate(name string, raw Params) (Params, error) {
	sch, err := s.validator()
	if err != nil {
		return nil, fmt.Errorf("command: %s: %w", name, err)
	}

	given := make(Params, len(raw))
	for k, v := range raw {
		if v != nil {
			given[k] = v
		}
	}
	for _, f := range s.fields {
		if _, ok := given[f.name]; !ok && f.def != nil {
			given[f.name] = f.def
		}
	}

	instance := make(map[string]any, len(given))
	for k, v := range given {
		instance[k] = jsonValue(v)
	}

	if err := sch.Validate(instance); err != nil {
		var verr *jsonschema.ValidationError
		if !errors.As(err, &verr) {
			return nil, fmt.Errorf("command: %s: %w", name, err)
		}

		return nil, s.translate(name, given, verr)
	}

	out := make(Params, len(s.fields))
	for _, f := range s.fields {
		v, ok := given[f.name]
		if !ok {
			continue
		}

		norm, ok := f.normalize(v)
		if !ok {
			return nil, f.violation(name, ConstraintType, v)
		}
		out[f.name] = norm
	}

	return out, nil
}

func (s *Schema) validator() (*jsonschema.Schema, error) {
	s.compileOnce.Do(func() {
		s.compiled, s.compileErr = compileSchema(s.JSONSchema())
	})

	return s.compiled, s.compileErr
}

func compileSchema(doc map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}

	res, err := jsonschema.UnmarshalJSON(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, res); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}

	sch, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	return sch, nil
}

type violation struct {
	field      string
	constraint Constraint
}

// fieldOrder is the order in which violations of one field are reported.
var fieldOrder = []Constraint{
	ConstraintRequired,
	ConstraintType,
	ConstraintMinimum,
	ConstraintMaximum,
	ConstraintMultipleOf,
	ConstraintEnum,
}

// translate picks one violation out of the validator's error tree.
func (s *Schema) translate(name string, given Params, verr *jsonschema.ValidationError) error {
	found := collectViolations(verr, nil)

	var unknown []string
	for _, v := range found {
		if v.constraint == ConstraintUnknown {
			unknown = append(unknown, v.field)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return &ValidationError{Command: name, Field: unknown[0], Constraint: ConstraintUnknown, Value: given[unknown[0]]}
	}

	for _, f := range s.fields {
		for _, c := range fieldOrder {
			if slices.Contains(found, violation{field: f.name, constraint: c}) {
				return f.violation(name, c, given[f.name])
			}
		}
	}

	return fmt.Errorf("%w: %s: %v", ErrValidation, name, verr)
}

func collectViolations(e *jsonschema.ValidationError, out []violation) []violation {
	field := ""
	if len(e.InstanceLocation) > 0 {
		field = e.InstanceLocation[0]
	}

	switch k := e.ErrorKind.(type) {
	case *kind.Required:
		for _, m := range k.Missing {
			out = append(out, violation{field: m, constraint: ConstraintRequired})
		}
	case *kind.AdditionalProperties:
		for _, p := range k.Properties {
			out = append(out, violation{field: p, constraint: ConstraintUnknown})
		}
	case *kind.Type:
		out = append(out, violation{field: field, constraint: ConstraintType})
	case *kind.Minimum:
		out = append(out, violation{field: field, constraint: ConstraintMinimum})
	case *kind.Maximum:
		out = append(out, violation{field: field, constraint: ConstraintMaximum})
	case *kind.MultipleOf:
		out = append(out, violation{field: field, constraint: ConstraintMultipleOf})
	case *kind.Enum:
		out = append(out, violation{field: field, constraint: ConstraintEnum})
	}

	for _, c := range e.Causes {
		out = collectViolations(c, out)
	}

	return out
}

func (f *Field) violation(cmd string, c Constraint, v any) *ValidationError {
	e := &ValidationError{Command: cmd, Field: f.name, Constraint: c, Value: v}

	switch c {
	case ConstraintRequired:
		e.Value = nil
	case ConstraintType:
		e.Limit = f.kind.String()
	case ConstraintMinimum:
		e.Limit = *f.min
	case ConstraintMaximum:
		e.Limit = *f.max
	case ConstraintMultipleOf:
		e.Limit = f.step
	case ConstraintEnum:
		e.Limit = slices.Clone(f.enum)
	}

	return e
}

func (f *Field) normalize(v any) (any, bool) {
	switch f.kind {
	case KindInteger:
		return toInt64(v)
	case KindString:
		return toString(v)
	case KindBoolean:
		return toBool(v)
	}

	return nil, false
}

// jsonValue maps a Go parameter value onto the JSON data model the validator understands.
// Values with no JSON counterpart become an empty array, which fails every field type.
func jsonValue(v any) any {
	if n, ok := v.(json.Number); ok {
		if _, err := n.Float64(); err != nil {
			return []any{}
		}

		return n
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return json.Number(strconv.FormatInt(rv.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return json.Number(strconv.FormatUint(rv.Uint(), 10))
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return []any{}
		}

		return json.Number(strconv.FormatFloat(f, 'f', -1, 64))
	default:
		return []any{}
	}
}

func toBool(v any) (bool, bool) {
	if b, ok := v.(bool); ok {
		return b, true
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Bool {
		return rv.Bool(), true
	}

	return false, false
}

// toString accepts plain strings and named string types such as VFO enums.
func toString(v any) (string, bool) {
	if s, ok := v.(string); ok {
		return s, true
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String {
		return rv.String(), true
	}

	return "", false
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return uintToInt64(uint64(n))
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return uintToInt64(n)
	case float32:
		return floatToInt64(float64(n))
	case float64:
		return floatToInt64(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}

		return floatToInt64(f)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return uintToInt64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return floatToInt64(rv.Float())
	default:
		return 0, false
	}
}

func uintToInt64(n uint64) (int64, bool) {
	if n > math.MaxInt64 {
		return 0, false
	}

	return int64(n), true
}

func floatToInt64(f float64) (int64, bool) {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}

	return int64(f), true
}

// JSONSchema returns the schema as a JSON-Schema (draft 2020-12 subset) document.
// It is generated from the same fields Validate uses.
func (s *Schema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.fields))
	required := make([]string, 0, len(s.fields))

	for _, f := range s.fields {
		p := map[string]any{"type": f.kind.String()}
		if f.description != "" {
			p["description"] = f.description
		}
		if f.min != nil {
			p["minimum"] = *f.min
		}
		if f.max != nil {
			p["maximum"] = *f.max
		}
		if f.step > 0 {
			p["multipleOf"] = f.step
		}
		if len(f.enum) > 0 {
			p["enum"] = slices.Clone(f.enum)
		}
		if f.def != nil {
			p["default"] = f.def
		}
		props[f.name] = p

		if !f.optional {
			required = append(required, f.name)
		}
	}

	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}
