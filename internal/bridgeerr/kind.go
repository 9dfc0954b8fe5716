// Package bridgeerr classifies the failures the request execution engine
// can produce, per spec.md §7. Kinds exist for internal routing, logging,
// and metrics labels only — the wire protocol never carries a structured
// code, only the human-readable message (spec.md §7: "structured codes are
// not part of the wire format").
package bridgeerr

import "fmt"

// Kind names one of the eight error categories spec.md §7 enumerates.
type Kind string

const (
	KindTypeMismatch        Kind = "type_mismatch"
	KindHandleLookupFailed  Kind = "handle_lookup_failed"
	KindArgCountMismatch    Kind = "arg_count_mismatch"
	KindUnsupportedType     Kind = "unsupported_type"
	KindAllocationFailed    Kind = "allocation_failed"
	KindQueueFull           Kind = "queue_full"
	KindProtocolError       Kind = "protocol_error"
	KindFunctionIDOutOfRange Kind = "function_id_out_of_range"
)

// Error is a classified, wrapped error. Failures detected by the handle
// table, parser, dispatcher, and builtins are returned as one of these;
// JSON encode/decode errors in the demonstration generated stubs are
// returned unwrapped, and KindOf classifies those as KindProtocolError.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a Kind-classified error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a Kind to an existing error, preserving it as the cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf extracts the Kind from err if it (or something it wraps) is a
// *Error, defaulting to KindProtocolError for anything else — an
// unclassified failure is still a protocol-level failure from the host's
// point of view.
func KindOf(err error) Kind {
	var e *Error
	for err != nil {
		if be, ok := err.(*Error); ok {
			e = be
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if e == nil {
		return KindProtocolError
	}
	return e.Kind
}
