package errors

// Kind classifies a failure the way §7 of the update worker design does, so
// callers can branch on category while still getting cockroachdb's stack
// traces and Wrapf context chains on the underlying error.
type Kind int

const (
	// TransportFailure covers connect, read, write, and timeout failures
	// talking to the remote agent. Ends the session for the node.
	TransportFailure Kind = iota
	// ProtocolViolation covers an unparseable line or a missing response
	// terminator. Ends the session for the node.
	ProtocolViolation
	// MissingDeclaration means a field has no label attribute; the field
	// is skipped but the run continues.
	MissingDeclaration
	// StoreError means the round-robin engine rejected a create, update,
	// or tune call. The operation is skipped but the run continues.
	StoreError
	// DriftAmbiguity means a rename was warranted but both the old and
	// new on-disk paths already exist. No files are touched.
	DriftAmbiguity
	// NoSpoolfetchData is the benign sentinel for an agent that had
	// nothing new to stream back.
	NoSpoolfetchData
)

func (k Kind) String() string {
	switch k {
	case TransportFailure:
		return "transport_failure"
	case ProtocolViolation:
		return "protocol_violation"
	case MissingDeclaration:
		return "missing_declaration"
	case StoreError:
		return "store_error"
	case DriftAmbiguity:
		return "drift_ambiguity"
	case NoSpoolfetchData:
		return "no_spoolfetch_data"
	default:
		return "unknown"
	}
}

// kindError pairs a Kind with an underlying cause so errors.Is/As still see
// through to it via Unwrap, and GetKind can recover the category.
type kindError struct {
	kind  Kind
	cause error
}

func (e *kindError) Error() string { return e.kind.String() + ": " + e.cause.Error() }
func (e *kindError) Unwrap() error { return e.cause }

// WithKind tags err with a Kind. Returns nil if err is nil.
func WithKind(err error, kind Kind) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, cause: err}
}

// GetKind recovers the Kind attached by WithKind, if any.
func GetKind(err error) (Kind, bool) {
	var ke *kindError
	if As(err, &ke) {
		return ke.kind, true
	}
	return 0, false
}

// IsKind reports whether err (or anything it wraps) was tagged with kind.
func IsKind(err error, kind Kind) bool {
	k, ok := GetKind(err)
	return ok && k == kind
}
