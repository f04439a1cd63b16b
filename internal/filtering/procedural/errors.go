package procedural

import "errors"

var (
	// ErrUnknownOperator indicates a task whose operator has no registered constructor
	ErrUnknownOperator = errors.New("unknown procedural operator")

	// ErrMalformedSelector indicates JSON that does not describe a procedural selector
	ErrMalformedSelector = errors.New("malformed procedural selector")

	// ErrInvalidArgument indicates a task argument that failed to compile
	// (bad regular expression, bad XPath, bad sub-selector)
	ErrInvalidArgument = errors.New("invalid task argument")
)
