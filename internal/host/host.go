// Package host names the external collaborators spec.md §6 describes as
// "out of scope, treated as external collaborators via named interfaces":
// the messaging transport and the set of callable C functions. Both are
// supplied by whatever embeds internal/engine; this package only fixes
// their shape.
package host

import (
	"unsafe"

	"github.com/sirupsen/logrus"
)

// Messenger delivers a fully-encoded response back to the host, mirroring
// the source's `post_message(instance, Variant)`.
type Messenger interface {
	Post(response []byte)
}

// CFunc is the address of one of the statically linked, generator-known C
// functions — opaque to Go, passed through as a pointer-sized value.
type CFunc unsafe.Pointer

// FunctionTable resolves a generator-assigned function id to its address,
// backing the reserved `getFunc` dispatcher command (spec.md §4.5).
type FunctionTable interface {
	Lookup(id int32) (CFunc, bool)
}

// Logger is the structured logging handle every component threads
// through, per SPEC_FULL.md §2: one *logrus.Entry per engine instance,
// tagged with an engine_id field.
type Logger = *logrus.Entry
