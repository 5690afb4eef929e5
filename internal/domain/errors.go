package domain

import "errors"

// Sentinel errors for the engine's failure taxonomy. Callers classify with
// errors.Is and wrap with fmt.Errorf("%w: ...") to add detail.
var (
	ErrValidation    = errors.New("validation error")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrConfiguration = errors.New("configuration error")
	ErrQueue         = errors.New("queue error")
	ErrUpstream      = errors.New("upstream lookup error")
)
