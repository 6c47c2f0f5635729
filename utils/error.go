package utils

import (
	"errors"
	"fmt"
)

var ErrorRecordNotFound = errors.New("record not found")

// ValidationError reports bad input, rejected before any calculation or
// persistence. Line is the zero-based detail index, -1 when the error is not
// scoped to a single line.
type ValidationError struct {
	Line  int
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Line >= 0 {
		return fmt.Sprintf("line %d: %s %s", e.Line, e.Field, e.Msg)
	}
	return fmt.Sprintf("%s %s", e.Field, e.Msg)
}

func NewValidationError(line int, field string, msg string) *ValidationError {
	return &ValidationError{Line: line, Field: field, Msg: msg}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
