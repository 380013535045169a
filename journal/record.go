package journal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/arloliu/go-cat/device"
)

// Record is the stored form of a device.LogEntry. Error carries the error text, since
// errors do not survive serialization.
type Record struct {
	Time     time.Time      `cbor:"1,keyasint"`
	Device   string         `cbor:"2,keyasint"`
	Command  string         `cbor:"3,keyasint"`
	Params   map[string]any `cbor:"4,keyasint,omitempty"`
	Result   any            `cbor:"5,keyasint,omitempty"`
	Error    string         `cbor:"6,keyasint,omitempty"`
	Duration time.Duration  `cbor:"7,keyasint"`
}

// FromLogEntry converts a device log entry.
func FromLogEntry(e device.LogEntry) Record {
	rec := Record{
		Time:     e.Time,
		Device:   e.Device,
		Command:  e.Command,
		Result:   e.Result,
		Duration: e.Duration,
	}

	if len(e.Params) > 0 {
		rec.Params = map[string]any(e.Params.Clone())
	}

	if e.Err != nil {
		rec.Error = e.Err.Error()
	}

	return rec
}

// OK reports whether the command succeeded.
func (r Record) OK() bool {
	return r.Error == ""
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.EncOptions{
		Time:    cbor.TimeRFC3339Nano,
		TimeTag: cbor.EncTagRequired,
		Sort:    cbor.SortCanonical,
	}.EncMode()
	if err != nil {
		panic(err)
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// Encoder writes records as a stream of CBOR data items. It is safe for concurrent use.
type Encoder struct {
	mu  sync.Mutex
	enc *cbor.Encoder
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{enc: encMode.NewEncoder(w)}
}

// Encode writes one record.
func (e *Encoder) Encode(rec Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.enc.Encode(rec); err != nil {
		return fmt.Errorf("journal: encode record: %w", err)
	}

	return nil
}

// Write implements Sink.
func (e *Encoder) Write(_ context.Context, rec Record) error {
	return e.Encode(rec)
}

// Decoder reads records written by an Encoder.
type Decoder struct {
	dec *cbor.Decoder
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{dec: decMode.NewDecoder(r)}
}

// Decode reads the next record. It returns io.EOF at the end of the stream.
func (d *Decoder) Decode() (Record, error) {
	var rec Record
	if err := d.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}

		return Record{}, fmt.Errorf("journal: decode record: %w", err)
	}

	return rec, nil
}

// ReadAll decodes every record of r.
func ReadAll(r io.Reader) ([]Record, error) {
	dec := NewDecoder(r)

	var out []Record
	for {
		rec, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}

func marshalValue(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}

	return encMode.Marshal(v)
}

func unmarshalValue(b []byte, v any) error {
	if len(b) == 0 {
		return nil
	}

	return decMode.Unmarshal(b, v)
}
