package materialize

import (
	"errors"
	"fmt"
)

// FatalKind classifies internal inconsistencies that abort the whole run.
// Malformed upstream data is tolerated row by row; these are not.
type FatalKind int

const (
	KindKeyCollision FatalKind = iota + 1
	KindHeadsignConflict
	KindHeadsignNotDescriptive
	KindMissingCoordinate
)

func (k FatalKind) String() string {
	switch k {
	case KindKeyCollision:
		return "key collision"
	case KindHeadsignConflict:
		return "headsign conflict"
	case KindHeadsignNotDescriptive:
		return "headsign not descriptive"
	case KindMissingCoordinate:
		return "missing coordinate"
	default:
		return "unknown"
	}
}

// FatalError is an unrecoverable inconsistency raised inside a route task.
// The dispatcher is the single place that reacts: it cancels all other work
// and propagates the error; nothing below it assumes the process terminates.
type FatalError struct {
	Kind    FatalKind
	RouteID int
	Message string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("route %d: %s: %s", e.RouteID, e.Kind, e.Message)
}

func fatalf(kind FatalKind, routeID int, format string, args ...any) *FatalError {
	return &FatalError{Kind: kind, RouteID: routeID, Message: fmt.Sprintf(format, args...)}
}

// AsFatal extracts the fatal kind from an error chain.
func AsFatal(err error) (*FatalError, bool) {
	var fe *FatalError
	ok := errors.As(err, &fe)
	return fe, ok
}
