package apierr

import (
	"bytes"
	"encoding/json"
)

// Messages used when the server did not tell us what went wrong.
const (
	GenericMessage    = "An unexpected error occurred."
	NoResponseMessage = "No response received from server. Please check your network connection."
	UnsentMessage     = "The request could not be sent. Please try again."
)

// Failure describes a failed exchange as the transport saw it.
type Failure struct {
	// Received reports whether the server answered at all.
	Received bool
	// Status and Body are meaningful only when Received is true.
	Status int
	Body   []byte
	// Unsent reports that the request could not be built or dispatched.
	Unsent bool
	// Err is the underlying transport error, kept for logging only.
	Err error
}

// Classify maps a failure into exactly one Error.
func Classify(f Failure) Error {
	switch {
	case f.Received:
		if e, ok := parseBody(f.Body); ok {
			return e
		}
		return Error{Kind: InternalServerError, Message: GenericMessage}
	case f.Unsent:
		return Error{Kind: InternalServerError, Message: UnsentMessage}
	default:
		return Error{Kind: InternalServerError, Message: NoResponseMessage}
	}
}

// parseBody recognises {errorKind, errorMessage} and, as a fallback, the
// older {errorType} body.
func parseBody(body []byte) (Error, bool) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return Error{}, false
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return Error{}, false
	}

	rawKind, hasKind := fields["errorKind"]
	rawMsg, hasMsg := fields["errorMessage"]
	if hasKind && hasMsg {
		kind, ok := decodeKind(rawKind)
		if !ok {
			return Error{}, false
		}
		var msg string
		if err := json.Unmarshal(rawMsg, &msg); err != nil {
			return Error{}, false
		}
		return Error{Kind: kind, Message: msg}, true
	}

	if rawType, ok := fields["errorType"]; ok {
		kind, ok := decodeKind(rawType)
		if !ok {
			return Error{}, false
		}
		return Error{Kind: kind, Message: kind.UserMessage()}, true
	}

	return Error{}, false
}

func decodeKind(raw json.RawMessage) (Kind, bool) {
	var v int
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	k, err := ParseKind(v)
	if err != nil {
		return 0, false
	}
	return k, true
}
