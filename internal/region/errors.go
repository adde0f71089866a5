package region

import "golang.org/x/xerrors"

// Kind enumerates the region-level error taxonomy.
type Kind int

const (
	_ Kind = iota
	RegionLoading
	EmptyRegion
	ChunkLoading
	CorruptedRegion
)

func (k Kind) String() string {
	switch k {
	case RegionLoading:
		return "RegionLoading"
	case EmptyRegion:
		return "EmptyRegion"
	case ChunkLoading:
		return "ChunkLoading"
	case CorruptedRegion:
		return "CorruptedRegion"
	default:
		return "RegionError"
	}
}

// Error is the base region-file error type. Reason carries extra context
// (e.g. which chunk index, which compression byte) for the error message.
// cause, if set, is reachable through Unwrap for errors.Is/As.
type Error struct {
	Kind   Kind
	Path   string
	Reason string
	cause  error
}

func (e *Error) Error() string {
	msg := e.Kind.String() + ": " + e.Path
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.cause }

// newErr builds a region error with no underlying cause, routed through
// xerrors.Errorf for frame capture.
func newErr(kind Kind, path, reason string) error {
	return xerrors.Errorf("%w", &Error{Kind: kind, Path: path, Reason: reason})
}

// wrapErr is like newErr but chains cause so errors.Is/As can reach it.
func wrapErr(kind Kind, path, reason string, cause error) error {
	return xerrors.Errorf("%w", &Error{Kind: kind, Path: path, Reason: reason, cause: cause})
}
