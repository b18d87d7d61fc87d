package phasevocoder

import (
	"errors"
	"log"
)

// ErrBusTypeMismatch is returned when a node is bound to an input port that
// does not satisfy FrameProducer. This is fatal at construction time: the
// node refuses to build and the caller must treat it as a programmer error,
// not a runtime condition to recover from inside ProcessBlock.
var ErrBusTypeMismatch = errors.New("phasevocoder: input port is not a spectral frame bus")

// Diagnostics receives non-fatal advisory messages: configuration snaps to
// the next power of two, and upstream-reconfigure notices. The zero value
// routes to the standard library logger, matching the only logging
// precedent present in the retrieved corpus (no node is required to
// configure one explicitly).
type Diagnostics func(string)

func defaultDiagnostics(msg string) {
	log.Print(msg)
}

func resolveDiagnostics(d Diagnostics) func(string) {
	if d == nil {
		return defaultDiagnostics
	}

	return d
}
