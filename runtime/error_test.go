package runtime

import (
	"errors"
	"fmt"
	"testing"
)

func TestKind(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorKind
	}{
		{"nil", nil, ErrorKindUnknown},
		{"validation", fmt.Errorf("%w: bad range", ErrValidation), ErrorKindValidation},
		{"network", fmt.Errorf("%w: %w", ErrNetwork, errors.New("connection refused")), ErrorKindNetwork},
		{"parse", fmt.Errorf("%w: not a number", ErrParse), ErrorKindParse},
		{"wrapped in node error", NewNodeOperationError("random", fmt.Errorf("%w: x", ErrParse)), ErrorKindParse},
		{"plain", errors.New("boom"), ErrorKindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Kind(tt.err); got != tt.expected {
				t.Errorf("Kind() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestNewNodeOperationError(t *testing.T) {
	baseErr := errors.New("something went wrong")
	opErr := NewNodeOperationError("random", baseErr)

	if opErr.Error() != "something went wrong" {
		t.Errorf("Expected cause message, got '%s'", opErr.Error())
	}
	if opErr.Unwrap() != baseErr {
		t.Errorf("Expected unwrapped error to be %v, got %v", baseErr, opErr.Unwrap())
	}
	if opErr.Context == nil {
		t.Error("Expected context map to be initialized")
	}
	if _, ok := opErr.ItemIndex(); ok {
		t.Error("Expected no item index on a fresh error")
	}

	var target *NodeOperationError
	if !errors.As(fmt.Errorf("outer: %w", opErr), &target) {
		t.Error("errors.As should find NodeOperationError")
	}
}

func TestNodeOperationError_NoCause(t *testing.T) {
	opErr := &NodeOperationError{Node: "random"}
	if opErr.Error() != "node random failed" {
		t.Errorf("Expected fallback message, got '%s'", opErr.Error())
	}
}

func TestNodeOperationError_WithContext(t *testing.T) {
	opErr := (&NodeOperationError{Node: "random"}).
		WithContext("status", 503).
		WithContext(contextItemIndex, 4)

	if opErr.Context["status"] != 503 {
		t.Errorf("Expected status=503, got %v", opErr.Context["status"])
	}
	idx, ok := opErr.ItemIndex()
	if !ok || idx != 4 {
		t.Errorf("Expected item index 4, got %d (ok=%v)", idx, ok)
	}
}

func TestWrapItemError(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		if err := WrapItemError("random", nil, 1); err != nil {
			t.Errorf("Expected nil, got %v", err)
		}
	})

	t.Run("plain error gains node error", func(t *testing.T) {
		cause := fmt.Errorf("%w: timeout", ErrNetwork)
		err := WrapItemError("random", cause, 2)

		opErr, ok := AsNodeOperationError(err)
		if !ok {
			t.Fatalf("Expected NodeOperationError, got %T", err)
		}
		if opErr.Node != "random" {
			t.Errorf("Expected node 'random', got '%s'", opErr.Node)
		}
		if idx, _ := opErr.ItemIndex(); idx != 2 {
			t.Errorf("Expected item index 2, got %d", idx)
		}
		if !errors.Is(err, ErrNetwork) {
			t.Error("Expected classification to survive wrapping")
		}
		if err.Error() != cause.Error() {
			t.Errorf("Expected message %q, got %q", cause.Error(), err.Error())
		}
	})

	t.Run("existing node error keeps identity", func(t *testing.T) {
		original := NewNodeOperationError("random", errors.New("boom")).WithContext("status", 500)
		wrapped := fmt.Errorf("outer: %w", original)

		err := WrapItemError("random", wrapped, 7)
		if err != wrapped {
			t.Error("Expected the same error value back")
		}
		if idx, _ := original.ItemIndex(); idx != 7 {
			t.Errorf("Expected item index 7, got %d", idx)
		}
		if original.Context["status"] != 500 {
			t.Error("Expected existing context fields to be kept")
		}
	})
}
