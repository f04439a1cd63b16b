package cosmetic

import "errors"

var (
	// ErrMalformedRule indicates a procedural rule entry that could not be decoded
	ErrMalformedRule = errors.New("malformed cosmetic rule")

	// ErrEngineDisabled indicates the backend declined to enable filtering for the page
	ErrEngineDisabled = errors.New("cosmetic filtering disabled for page")

	// ErrEngineClosed indicates an operation on an engine that was shut down
	ErrEngineClosed = errors.New("cosmetic engine closed")
)
