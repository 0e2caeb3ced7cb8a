package apierr

import "errors"

// Error is a classified API failure. It is an immutable value: two errors
// with the same kind and message are equal.
type Error struct {
	Kind    Kind
	Message string
}

// New returns an Error of the given kind. An empty message is replaced by
// the kind's user-facing message.
func New(kind Kind, message string) Error {
	if message == "" {
		message = kind.UserMessage()
	}
	return Error{Kind: kind, Message: message}
}

func (e Error) Error() string {
	return e.Kind.String() + ": " + e.Message
}

// As extracts the classified error from err, if there is one.
func As(err error) (Error, bool) {
	var e Error
	if errors.As(err, &e) {
		return e, true
	}
	return Error{}, false
}

// IsKind reports whether err carries a classified error of the given kind.
func IsKind(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}
