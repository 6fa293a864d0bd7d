package wire

import (
	"bytes"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/noodles-scene/noodles-server/pkg/generic"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode

	// encodeBufPool recycles the scratch buffer Frame.Encode streams
	// into, since a broadcast frame is built and discarded once per
	// outbound message on every connected session's behalf.
	encodeBufPool = generic.NewPool(func() *bytes.Buffer { return new(bytes.Buffer) })
)

func init() {
	var err error
	encOpts := cbor.CanonicalEncOptions()
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Errorf("wire: build encode mode: %w", err))
	}

	decOpts := cbor.DecOptions{
		// Unknown fields on decode are ignored, per the protocol spec;
		// unknown top-level tags are a decode error handled by the caller.
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Errorf("wire: build decode mode: %w", err))
	}
}

// Element is one (tag, payload) pair of an outbound frame. Payload is
// marshalled as a CBOR map; it is typically one of the scene component
// structs (reused directly as the wire payload) or one of the message
// types in messages.go.
type Element struct {
	Tag     uint64
	Payload any
}

// Frame is an ordered sequence of messages packed into a single wire
// frame: a top-level CBOR array alternating tag, payload, tag, payload...
type Frame []Element

// Encode serializes f as the flat tag/payload CBOR array described in
// the protocol's message framing.
func (f Frame) Encode() ([]byte, error) {
	flat := make([]any, 0, len(f)*2)
	for _, el := range f {
		flat = append(flat, el.Tag, el.Payload)
	}

	buf := encodeBufPool.Get()
	buf.Reset()
	defer encodeBufPool.Put(buf)

	if err := encMode.NewEncoder(buf).Encode(flat); err != nil {
		return nil, fmt.Errorf("wire: encode frame: %w", err)
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// RawElement is a decoded (tag, payload) pair whose payload has not yet
// been unmarshalled into a concrete Go type — the caller looks up the
// tag to decide what type payload actually is.
type RawElement struct {
	Tag     uint64
	Payload cbor.RawMessage
}

// Decode splits a raw wire frame into its (tag, payload) elements without
// interpreting the payloads. It fails if the top-level value is not an
// array, if its length is odd, or if any tag position doesn't decode as
// a non-negative integer.
func Decode(data []byte) ([]RawElement, error) {
	var flat []cbor.RawMessage
	if err := decMode.Unmarshal(data, &flat); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	if len(flat)%2 != 0 {
		return nil, fmt.Errorf("%w: odd element count %d", ErrInvalidFrame, len(flat))
	}

	elements := make([]RawElement, 0, len(flat)/2)
	for i := 0; i < len(flat); i += 2 {
		var tag uint64
		if err := decMode.Unmarshal(flat[i], &tag); err != nil {
			return nil, fmt.Errorf("%w: tag at position %d: %v", ErrInvalidFrame, i, err)
		}
		elements = append(elements, RawElement{Tag: tag, Payload: flat[i+1]})
	}
	return elements, nil
}

// Unmarshal decodes a raw element's payload into v.
func (r RawElement) Unmarshal(v any) error {
	if err := decMode.Unmarshal(r.Payload, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	return nil
}
