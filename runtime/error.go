package runtime

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a per-item failure.
type ErrorKind string

const (
	// ErrorKindValidation marks parameters that failed validation.
	ErrorKindValidation ErrorKind = "validation"
	// ErrorKindNetwork marks transport failures and non-2xx responses.
	ErrorKindNetwork ErrorKind = "network"
	// ErrorKindParse marks a response body that could not be interpreted.
	ErrorKindParse ErrorKind = "parse"
	// ErrorKindUnknown is returned for errors carrying no classification.
	ErrorKindUnknown ErrorKind = ""
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNetwork    = errors.New("network request failed")
	ErrParse      = errors.New("response could not be parsed")
)

// Kind reports the classification of err.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return ErrorKindUnknown
	case errors.Is(err, ErrValidation):
		return ErrorKindValidation
	case errors.Is(err, ErrNetwork):
		return ErrorKindNetwork
	case errors.Is(err, ErrParse):
		return ErrorKindParse
	default:
		return ErrorKindUnknown
	}
}

// contextItemIndex is the context key under which the failing item position is stored.
const contextItemIndex = "itemIndex"

// NodeOperationError is raised by a node when an invocation has to be aborted.
// Context carries diagnostic fields; the host relies on "itemIndex" to point
// at the offending input record.
type NodeOperationError struct {
	Node    string
	Message string
	Cause   error
	Context map[string]any
}

// NewNodeOperationError creates an error for node with cause as the underlying error.
func NewNodeOperationError(node string, cause error) *NodeOperationError {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return &NodeOperationError{
		Node:    node,
		Message: msg,
		Cause:   cause,
		Context: make(map[string]any),
	}
}

// Error implements the error interface
func (e *NodeOperationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return fmt.Sprintf("node %s failed", e.Node)
}

// Unwrap returns the underlying error for errors.Is and errors.As
func (e *NodeOperationError) Unwrap() error {
	return e.Cause
}

// WithContext adds a context field to the error
func (e *NodeOperationError) WithContext(key string, value any) *NodeOperationError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// ItemIndex returns the index of the failing item if one was recorded.
func (e *NodeOperationError) ItemIndex() (int, bool) {
	v, ok := e.Context[contextItemIndex]
	if !ok {
		return 0, false
	}
	idx, ok := v.(int)
	return idx, ok
}

// AsNodeOperationError finds the first NodeOperationError in err's chain.
func AsNodeOperationError(err error) (*NodeOperationError, bool) {
	var opErr *NodeOperationError
	if errors.As(err, &opErr) {
		return opErr, true
	}
	return nil, false
}

// WrapItemError attaches the item position to err before it is propagated to the host.
// An error that already carries a NodeOperationError keeps its identity and
// context fields; only the item index is updated.
func WrapItemError(node string, err error, itemIndex int) error {
	if err == nil {
		return nil
	}
	if opErr, ok := AsNodeOperationError(err); ok {
		opErr.WithContext(contextItemIndex, itemIndex)
		return err
	}
	return NewNodeOperationError(node, err).WithContext(contextItemIndex, itemIndex)
}
