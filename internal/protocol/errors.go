package protocol

import "fmt"

// UnknownConditionCodeError is returned for a weight reply whose header is
// not a known condition token.
type UnknownConditionCodeError struct {
	Token string
}

func (e *UnknownConditionCodeError) Error() string {
	return fmt.Sprintf("unknown condition code %q", e.Token)
}

// MalformedWeightFieldError is returned when a weight reply does not carry a
// decimal value in its fixed-width numeric field.
type MalformedWeightFieldError struct {
	Line   string
	Reason string
	Err    error
}

func (e *MalformedWeightFieldError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed weight reply %q: %s: %v", e.Line, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed weight reply %q: %s", e.Line, e.Reason)
}

func (e *MalformedWeightFieldError) Unwrap() error { return e.Err }

// MalformedNumericFieldError is returned when a probe payload line is not a
// decimal number.
type MalformedNumericFieldError struct {
	Field string
	Err   error
}

func (e *MalformedNumericFieldError) Error() string {
	return fmt.Sprintf("malformed numeric field %q: %v", e.Field, e.Err)
}

func (e *MalformedNumericFieldError) Unwrap() error { return e.Err }

// ProtocolMismatchError is returned when an echoing instrument repeats
// something other than the request it was sent.
type ProtocolMismatchError struct {
	Expected string
	Actual   string
}

func (e *ProtocolMismatchError) Error() string {
	return fmt.Sprintf("protocol mismatch: expected echo %q, got %q", e.Expected, e.Actual)
}
