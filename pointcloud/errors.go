package pointcloud

import (
	"fmt"

	"github.com/pkg/errors"
)

// NodeLoadError means backing storage for a node was unreadable or corrupt.
// It is fatal to the query the node belongs to.
type NodeLoadError struct {
	Node  NodeID
	cause error
}

// NewNodeLoadError wraps a storage failure for the given node.
func NewNodeLoadError(id NodeID, cause error) *NodeLoadError {
	return &NodeLoadError{Node: id, cause: cause}
}

func (e *NodeLoadError) Error() string {
	return fmt.Sprintf("failed to load node %q: %v", string(e.Node), e.cause)
}

// Unwrap returns the underlying storage error.
func (e *NodeLoadError) Unwrap() error {
	return e.cause
}

// AttributeMissingError means a requested attribute is absent from a node.
type AttributeMissingError struct {
	Node      NodeID
	Attribute string
}

// NewAttributeMissingError reports the given attribute absent from the node.
func NewAttributeMissingError(id NodeID, attribute string) *AttributeMissingError {
	return &AttributeMissingError{Node: id, Attribute: attribute}
}

func (e *AttributeMissingError) Error() string {
	return fmt.Sprintf("node %q has no attribute %q", string(e.Node), e.Attribute)
}

// IsNodeLoadError reports whether any error in err's chain is a
// NodeLoadError.
func IsNodeLoadError(err error) bool {
	var target *NodeLoadError
	return errors.As(err, &target)
}

// IsAttributeMissingError reports whether any error in err's chain is an
// AttributeMissingError.
func IsAttributeMissingError(err error) bool {
	var target *AttributeMissingError
	return errors.As(err, &target)
}
