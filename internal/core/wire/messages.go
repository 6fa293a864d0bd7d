package wire

import "github.com/noodles-scene/noodles-server/internal/core/ids"

// IntroMessage is the single frame a client may send in the Accepted
// state: its name and nothing else.
type IntroMessage struct {
	ClientName string `cbor:"client_name"`
}

// RawInvokeMethod is the wire shape of a client's InvokeMethod frame,
// decoded before the method/context IDs are known to be alive or even
// well-kinded. Method and Context carry raw [slot, generation] pairs;
// Context's kind is determined by which of its sub-fields is present.
type RawInvokeMethod struct {
	Method   [2]uint32          `cbor:"method"`
	Context  *RawInvokeContext  `cbor:"context,omitempty"`
	InvokeID string             `cbor:"invoke_id"`
	Args     []any              `cbor:"args"`
}

// RawInvokeContext mirrors InvokeIDType: exactly one of its fields is
// populated, naming the entity/table/plot the method call targets. All
// three absent means the global context.
type RawInvokeContext struct {
	Entity *[2]uint32 `cbor:"entity,omitempty"`
	Table  *[2]uint32 `cbor:"table,omitempty"`
	Plot   *[2]uint32 `cbor:"plot,omitempty"`
}

// DocumentUpdate is the tag-31 snapshot summary of global methods and
// signals, sent once at the end of a client's init snapshot.
type DocumentUpdate struct {
	MethodsList []ids.ID `cbor:"methods_list,omitempty"`
	SignalsList []ids.ID `cbor:"signals_list,omitempty"`
}

// InvokeContext identifies the target of a signal invocation. Exactly
// one field is set, or none for the global/document context.
type InvokeContext struct {
	Entity *ids.ID `cbor:"entity,omitempty"`
	Table  *ids.ID `cbor:"table,omitempty"`
	Plot   *ids.ID `cbor:"plot,omitempty"`
}

// SignalInvoke is the tag-33 broadcast emitted when a handler invokes a
// signal on a component (or the document).
type SignalInvoke struct {
	ID      ids.ID         `cbor:"id"`
	Context *InvokeContext `cbor:"context,omitempty"`
	Args    []any          `cbor:"signal_data"`
}

// MethodException is the JSON-RPC-flavored exception payload carried in
// a MethodReply when a method invocation fails.
type MethodException struct {
	Code    int    `cbor:"code"`
	Message string `cbor:"message,omitempty"`
	Data    any    `cbor:"data,omitempty"`
}

// MethodReply is the tag-34 message targeted at the single session that
// sent the matching InvokeMethod.
type MethodReply struct {
	InvokeID        string           `cbor:"invoke_id"`
	Result          any              `cbor:"result,omitempty"`
	MethodException *MethodException `cbor:"method_exception,omitempty"`
}

// Empty is the payload shape for messages that carry no fields
// (DocumentReset, InitDone).
type Empty struct{}

// DeleteRef is the {id} payload shared by every Delete<Kind> message.
type DeleteRef struct {
	ID ids.ID `cbor:"id"`
}
