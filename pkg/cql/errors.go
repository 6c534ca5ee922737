package cql

import (
	"fmt"
	"strings"
)

// Position is a location in a cql2-text input.
type Position struct {
	Line   int
	Column int
}

// ParseError represents a parsing error with position information.
// Position is zero for the JSON encoding.
type ParseError struct {
	Pos     Position
	Message string
}

func (e *ParseError) Error() string {
	if e.Pos.Line == 0 {
		return fmt.Sprintf("cql2 parse error: %s", e.Message)
	}
	return fmt.Sprintf("cql2 parse error at line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

// UnknownFieldError is raised when a filter references a property outside the
// caller-supplied whitelist. This is the authorization boundary preventing
// arbitrary column probing via filters.
type UnknownFieldError struct {
	Field   string
	Allowed []string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field %q, valid fields: %s", e.Field, strings.Join(e.Allowed, ", "))
}
