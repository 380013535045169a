package command

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation matches every *ValidationError with errors.Is.
	ErrValidation = errors.New("command: validation failed")

	// ErrUnknownCommand indicates a name that is not declared in the registry.
	ErrUnknownCommand = errors.New("command: unknown command")

	// ErrNotImplemented indicates a declared command without an implementation.
	ErrNotImplemented = errors.New("command: not implemented")
)

// Constraint names the schema rule a parameter violated. Values follow JSON-Schema keywords.
type Constraint string

const (
	ConstraintRequired   Constraint = "required"
	ConstraintType       Constraint = "type"
	ConstraintMinimum    Constraint = "minimum"
	ConstraintMaximum    Constraint = "maximum"
	ConstraintMultipleOf Constraint = "multipleOf"
	ConstraintEnum       Constraint = "enum"
	ConstraintUnknown    Constraint = "additionalProperties"
)

// ValidationError reports one parameter that failed its schema. The fields are meant
// to be rendered next to the offending form input without parsing the message.
type ValidationError struct {
	// Command is the command (or construction schema) name being validated.
	Command string
	// Field is the parameter name.
	Field string
	// Constraint is the violated rule.
	Constraint Constraint
	// Value is the received value, nil when the field is missing.
	Value any
	// Limit is the bound of the violated rule: the minimum, maximum, step, allowed
	// enum members or expected type name.
	Limit any
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("command: %s: field %q: %s", e.Command, e.Field, e.Describe())
}

// Describe returns a human readable description of the violation without the command prefix.
func (e *ValidationError) Describe() string {
	switch e.Constraint {
	case ConstraintRequired:
		return "required field is missing"
	case ConstraintType:
		return fmt.Sprintf("expected %v, got %T", e.Limit, e.Value)
	case ConstraintMinimum:
		return fmt.Sprintf("value below minimum %v (got %v)", e.Limit, e.Value)
	case ConstraintMaximum:
		return fmt.Sprintf("value above maximum %v (got %v)", e.Limit, e.Value)
	case ConstraintMultipleOf:
		return fmt.Sprintf("value is not a multiple of %v (got %v)", e.Limit, e.Value)
	case ConstraintEnum:
		return fmt.Sprintf("not a permitted enum member %v (got %v)", e.Limit, e.Value)
	case ConstraintUnknown:
		return "unknown field"
	default:
		return string(e.Constraint)
	}
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
