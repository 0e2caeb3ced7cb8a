// Package apierr classifies failed API exchanges into a fixed, wire-stable
// set of error kinds.
//
// # Overview
//
// Every failure the transport observes is described by a Failure value and
// turned into exactly one Error by Classify:
//
//   - a response whose body is {errorKind, errorMessage} with a known kind
//     becomes that kind with the given message;
//   - a response whose body is {errorType} with a known kind becomes that
//     kind with the kind's user-facing message;
//   - any other response becomes InternalServerError with a generic message;
//   - a request that got no response, or could not be sent at all, becomes
//     InternalServerError with a message saying which of the two happened.
//
// Classify has no side effects; the same Failure always yields an equal Error.
//
// # Matching
//
// Error is a comparable value. Callers match it with errors.As or IsKind:
//
//	if apierr.IsKind(err, apierr.InvalidCredentialsError) {
//	    // ask for the password again
//	}
package apierr
