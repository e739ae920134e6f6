package extraction

import "fmt"

// ValidationError is a caller error detected before any gateway call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ParseError means the model's output did not match the quote schema.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unparseable model output: %s: %v", e.Reason, e.Err)
	}
	return "unparseable model output: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }
