package flow

import "fmt"

// Error is a flow failure carrying a stable code for handler summary logs.
type Error struct {
	code    string
	message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Code returns the stable error code.
func (e *Error) Code() string { return e.code }

func (e *Error) Unwrap() error { return e.cause }

func newTransportError(cause error) *Error {
	return &Error{code: "TRANSPORT_ERROR", message: "flow: outbound send failed", cause: cause}
}

func newCatalogError(cause error) *Error {
	return &Error{code: "CATALOG_ERROR", message: "flow: catalog lookup failed", cause: cause}
}
