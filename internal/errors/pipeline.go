package errors

import "fmt"

// MissingInputError reports a file a stage depends on that does not exist.
type MissingInputError struct {
	Artifact string
	Path     string
	Remedy   string
	Cause    error
}

func (e *MissingInputError) Error() string {
	msg := fmt.Sprintf("%s not found at %s", e.Artifact, e.Path)
	if e.Remedy != "" {
		msg += ": " + e.Remedy
	}
	return msg
}

func (e *MissingInputError) Unwrap() error {
	return e.Cause
}

// SchemaError reports a required column that is absent from the input header.
type SchemaError struct {
	Column string
	Path   string
}

func (e *SchemaError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("required column %q missing from input schema", e.Column)
	}
	return fmt.Sprintf("required column %q missing from input schema of %s", e.Column, e.Path)
}
