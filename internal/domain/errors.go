package domain

import "errors"

var (
	// ErrInvalidTarget is returned when an operation is not legal for the
	// node's kind, e.g. deleting the root.
	ErrInvalidTarget = errors.New("invalid target")
	// ErrCycleDetected is returned when a move would make a container its
	// own ancestor.
	ErrCycleDetected = errors.New("cycle detected")
	// ErrNotFound is returned when an ID does not resolve to a node in the tree.
	ErrNotFound = errors.New("node not found")
)
