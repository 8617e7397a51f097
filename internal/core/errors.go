package core

import "errors"

// Error categories shared by every layer. Concrete errors wrap one of these so
// callers can branch with errors.Is.
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrTransport  = errors.New("transport error")
	// ErrRejected is a permanent refusal by a remote peer; retrying the
	// same request will not help.
	ErrRejected = errors.New("rejected by remote")
)
