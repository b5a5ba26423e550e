package fault

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failed operation so callers branch on the failure class
// instead of matching error text.
type Kind string

const (
	// KindAuthentication marks a missing, malformed, expired, or unverifiable token.
	KindAuthentication Kind = "authentication"
	// KindAuthorization marks an admitted identity that lacks scope or ownership.
	KindAuthorization Kind = "authorization"
	// KindNotFound marks an absent record; a distinct outcome, not a server fault.
	KindNotFound Kind = "not_found"
	// KindValidation marks a request body that failed boundary validation.
	KindValidation Kind = "validation"
	// KindUpstream marks a failed directory call; carries the upstream status and body.
	KindUpstream Kind = "upstream"
	// KindStore marks a persistence failure in the record store.
	KindStore Kind = "store"
)

// ReasonInsufficientScope and ReasonNotOwner are the machine-readable
// authorization denial reasons surfaced in error envelopes.
const (
	ReasonInsufficientScope = "insufficient_scope"
	ReasonNotOwner          = "not_owner"
)

// Error is the classified error value every component operation returns on
// failure. The server layer maps it to the response envelope.
type Error struct {
	kind    Kind
	message string
	reason  string
	status  int
	body    []byte
	cause   error
}

func (e *Error) Error() string {
	switch {
	case e.cause != nil && e.reason != "":
		return fmt.Sprintf("%s (%s): %v", e.message, e.reason, e.cause)
	case e.cause != nil:
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	case e.reason != "":
		return fmt.Sprintf("%s (%s)", e.message, e.reason)
	default:
		return e.message
	}
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Kind reports the failure class.
func (e *Error) Kind() Kind {
	return e.kind
}

// Message returns the client-facing message for the error envelope.
func (e *Error) Message() string {
	return e.message
}

// Reason returns the machine-readable denial reason, empty when not applicable.
func (e *Error) Reason() string {
	return e.reason
}

// UpstreamBody returns the raw upstream response body captured for KindUpstream.
func (e *Error) UpstreamBody() []byte {
	return e.body
}

// HTTPStatus maps the failure class to the response status. Upstream failures
// mirror the status the directory returned when one was captured.
func (e *Error) HTTPStatus() int {
	switch e.kind {
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindUpstream:
		if e.status > 0 {
			return e.status
		}
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Authentication classifies a token verification failure.
func Authentication(message string, cause error) *Error {
	return &Error{kind: KindAuthentication, message: message, cause: cause}
}

// Authorization classifies a scope or ownership denial with a machine reason.
func Authorization(reason, message string) *Error {
	return &Error{kind: KindAuthorization, message: message, reason: reason}
}

// NotFound classifies an absent record.
func NotFound(message string) *Error {
	return &Error{kind: KindNotFound, message: message}
}

// Validation classifies a rejected request body.
func Validation(message string) *Error {
	return &Error{kind: KindValidation, message: message}
}

// Upstream classifies a failed directory call. A zero status means the call
// never produced a response.
func Upstream(message string, status int, body []byte, cause error) *Error {
	return &Error{kind: KindUpstream, message: message, status: status, body: body, cause: cause}
}

// Store classifies a persistence failure.
func Store(message string, cause error) *Error {
	return &Error{kind: KindStore, message: message, cause: cause}
}

// KindOf extracts the failure class from any error; unclassified errors report
// KindStore so they surface as 500s rather than leaking detail.
func KindOf(err error) Kind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.kind
	}
	return KindStore
}

// As returns the classified error wrapped anywhere in err's chain, or nil.
func As(err error) *Error {
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}
	return nil
}
