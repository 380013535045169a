package device

import (
	"fmt"
	"slices"

	"github.com/arloliu/go-cat/command"
	"github.com/arloliu/go-cat/transport"
)

// Class describes one device model: the transports it can use, its construction
// parameters, its frame delimiter and its command table.
type Class struct {
	// Name is the model name, such as "FT-991A".
	Name string
	// Vendor is the manufacturer, such as "Yaesu".
	Vendor string
	// Transports lists the transport kinds the model can talk over.
	Transports []transport.Type
	// Params validates construction parameters. nil accepts none.
	Params *command.Schema
	// Delimiter ends every frame the model sends.
	Delimiter byte
	// Commands builds the command table for validated construction parameters.
	// It is called once per device instance.
	Commands func(params command.Params) *command.Registry
}

// Supports reports whether the class can talk over typ.
func (c *Class) Supports(typ transport.Type) bool {
	return slices.Contains(c.Transports, typ)
}

func (c *Class) validate() error {
	switch {
	case c == nil:
		return fmt.Errorf("%w: nil", ErrClassInvalid)
	case c.Name == "":
		return fmt.Errorf("%w: missing name", ErrClassInvalid)
	case len(c.Transports) == 0:
		return fmt.Errorf("%w: %s has no transports", ErrClassInvalid, c.Name)
	case c.Commands == nil:
		return fmt.Errorf("%w: %s has no command table", ErrClassInvalid, c.Name)
	}

	return nil
}
