package wire

import "errors"

var (
	// ErrInvalidFrame is returned when a received byte frame is not a
	// well-formed top-level CBOR array of alternating tag/payload pairs.
	ErrInvalidFrame = errors.New("wire: invalid frame")

	// ErrUnknownTag is returned when a decoded tag has no registered
	// message type for the session's current state.
	ErrUnknownTag = errors.New("wire: unknown tag")
)
