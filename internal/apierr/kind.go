package apierr

import (
	"fmt"
	"strconv"
)

// Kind is the server's error category. The numeric values are part of the
// wire format and must not be reordered.
type Kind int

const (
	InternalServerError Kind = iota
	RequestValidationError
	InvalidCredentialsError
	EmailTakenError
	UserNotFoundError
	TooManyRequestsError
	MfaNotRequestedError
	InvalidMfaOtpError
	InvalidSessionError
)

var kindNames = [...]string{
	InternalServerError:     "InternalServerError",
	RequestValidationError:  "RequestValidationError",
	InvalidCredentialsError: "InvalidCredentialsError",
	EmailTakenError:         "EmailTakenError",
	UserNotFoundError:       "UserNotFoundError",
	TooManyRequestsError:    "TooManyRequestsError",
	MfaNotRequestedError:    "MfaNotRequestedError",
	InvalidMfaOtpError:      "InvalidMfaOtpError",
	InvalidSessionError:     "InvalidSessionError",
}

var userMessages = [...]string{
	InternalServerError:     "An unexpected error occurred.",
	RequestValidationError:  "Invalid request data. Please check your input.",
	InvalidCredentialsError: "Invalid email or password. Please try again.",
	EmailTakenError:         "This email address is already registered. Please try logging in.",
	UserNotFoundError:       "User not found. Please check your email address.",
	TooManyRequestsError:    "Too many requests. Please wait a moment before trying again.",
	MfaNotRequestedError:    "MFA was not requested for this session.",
	InvalidMfaOtpError:      "Invalid OTP. Please check the code and try again.",
	InvalidSessionError:     "Your session is invalid or expired. Please sign in again.",
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k >= InternalServerError && k <= InvalidSessionError
}

func (k Kind) String() string {
	if !k.Valid() {
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindNames[k]
}

// UserMessage returns the text a UI should show for k. Unknown kinds get the
// generic message.
func (k Kind) UserMessage() string {
	if !k.Valid() {
		return userMessages[InternalServerError]
	}
	return userMessages[k]
}

// Retryable reports whether a caller may reasonably repeat the request
// unchanged. Only rate limiting qualifies; backoff is left to the caller.
func (k Kind) Retryable() bool {
	return k == TooManyRequestsError
}

// ParseKind converts a wire value into a Kind.
func ParseKind(v int) (Kind, error) {
	k := Kind(v)
	if !k.Valid() {
		return 0, fmt.Errorf("unknown error kind %d", v)
	}
	return k, nil
}
