// Package apierror defines the failure payload of the cash ledger API and the typed
// failures the cash register client hands to its callers. Server handlers only answer
// with values built here so internal errors never reach the wire.
package apierror

// APIError is the body of every 4xx/5xx response: {"detail": "..."} plus, for rejected
// requests, the offending fields keyed by struct field name.
type APIError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields,omitempty"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// NewValidation reports failed validator tags per field.
func NewValidation(fields map[string]string) *APIError {
	return &APIError{Detail: "Error de validación", Fields: fields}
}
