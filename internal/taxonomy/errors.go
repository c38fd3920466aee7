package taxonomy

import "fmt"

// ParseError represents a failure to read the taxonomy reference page.
type ParseError struct {
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("taxonomy error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("taxonomy error: %s", e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}
