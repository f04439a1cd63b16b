package dom

import "errors"

var (
	// ErrObserverUnavailable is returned when the document cannot report mutations.
	ErrObserverUnavailable = errors.New("mutation observer unavailable")

	// ErrInvalidSelector wraps selector syntax errors from the native query layer.
	ErrInvalidSelector = errors.New("invalid selector")

	// ErrDisconnected means the node is no longer part of the document.
	ErrDisconnected = errors.New("node not connected to document")

	// ErrHierarchy is returned for tree operations that would corrupt the tree.
	ErrHierarchy = errors.New("hierarchy request error")
)
