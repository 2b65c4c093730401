package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// GenericMessage is shown when a failure carries no readable message.
const GenericMessage = "Ocurrió un error inesperado. Intente nuevamente."

// Sentinels used by the server services; handlers map them to HTTP status codes.
var (
	ErrNotFound   = errors.New("resource not found")
	ErrConflict   = errors.New("conflicting state")
	ErrValidation = errors.New("validation error")
)

// NotFound, Conflict and Invalid wrap a sentinel with a message safe to show to operators.
func NotFound(msg string) error { return &detailed{msg: msg, kind: ErrNotFound} }
func Conflict(msg string) error { return &detailed{msg: msg, kind: ErrConflict} }
func Invalid(msg string) error  { return &detailed{msg: msg, kind: ErrValidation} }

type detailed struct {
	msg  string
	kind error
}

func (e *detailed) Error() string { return e.msg }
func (e *detailed) Unwrap() error { return e.kind }

// StatusFor maps a service error to the HTTP status the handler should answer with.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrValidation):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Kind classifies a failure seen by the client.
type Kind int

const (
	KindUnexpected Kind = iota
	KindValidation      // invalid input, caught locally or answered with 400/422
	KindConflict        // remote state conflict, including a replayed submission
	KindNotFound
	KindTransport // network failure, open breaker or server fault
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindTransport:
		return "transport"
	default:
		return "unexpected"
	}
}

// Error is the typed failure returned by the client core.
// Status is 0 for failures that never produced an HTTP response.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = GenericMessage
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// NewValidationError builds a local validation failure.
func NewValidationError(msg string, cause error) *Error {
	return &Error{Kind: KindValidation, Message: msg, Err: cause}
}

// NewTransportError wraps a failure that happened before any response was read.
func NewTransportError(cause error) *Error {
	return &Error{Kind: KindTransport, Err: cause}
}

// FromResponse classifies a non-2xx response. The message is taken from the {"detail"}
// envelope when present.
func FromResponse(status int, body []byte) *Error {
	e := &Error{Status: status, Message: detailOf(body)}
	switch {
	case status == http.StatusNotFound:
		e.Kind = KindNotFound
	case status == http.StatusConflict || status == http.StatusPreconditionFailed:
		e.Kind = KindConflict
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		e.Kind = KindValidation
	case status >= 500:
		e.Kind = KindTransport
	default:
		e.Kind = KindUnexpected
	}
	return e
}

func detailOf(body []byte) string {
	var env struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if len(body) == 0 || json.Unmarshal(body, &env) != nil {
		return ""
	}
	if env.Detail != "" {
		return strings.TrimSpace(env.Detail)
	}
	return strings.TrimSpace(env.Message)
}

// KindOf returns the kind of a typed failure, KindUnexpected otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }
func IsConflict(err error) bool { return KindOf(err) == KindConflict }

// UserMessage extracts a human-readable message for the operator, falling back to
// GenericMessage when the failure carries none.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return GenericMessage
}
