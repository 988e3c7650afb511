package registry

import "fmt"

// ValidationError reports a blank or malformed required field. It is raised
// before any remote call is made.
type ValidationError struct {
	Field   string
	Message string
	// Code is the translation message ID shown to the user.
	Code string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// RemoteError wraps a transport or store failure.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}
