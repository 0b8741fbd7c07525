package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
)

var _ context.Context = &Execution{}

// Execution is the per-invocation context handed to a node.
// It implements context.Context so it can be passed straight to clients
// that honour cancellation.
type Execution struct {
	ID         string
	Node       NodeDescription
	Items      []Item
	Parameters map[string]any
	Logger     *slog.Logger

	continueOnFail bool
	ctx            context.Context // real context carrying deadline/cancellation
}

// context.Context implementation, delegating to the embedded ctx.

func (e *Execution) Deadline() (deadline time.Time, ok bool) {
	return e.ctx.Deadline()
}

func (e *Execution) Done() <-chan struct{} {
	return e.ctx.Done()
}

func (e *Execution) Err() error {
	return e.ctx.Err()
}

func (e *Execution) Value(key any) any {
	return e.ctx.Value(key)
}

// NewExecution builds the context for one invocation of node over batch.
func NewExecution(ctx context.Context, node NodeDescription, batch Batch, logger *slog.Logger) *Execution {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = slog.Default()
	}

	items := batch.Items
	if len(items) == 0 {
		// A manual trigger hands the node a single empty item.
		items = []Item{NewItem(map[string]any{})}
	}

	params := batch.Parameters
	if params == nil {
		params = map[string]any{}
	}

	id := uuid.New().String()
	return &Execution{
		ID:             id,
		Node:           node,
		Items:          items,
		Parameters:     params,
		Logger:         logger.With("execution_id", id, "node", node.Name),
		continueOnFail: batch.ContinueOnFail,
		ctx:            ctx,
	}
}

// InputData returns the items of the current batch.
func (e *Execution) InputData() []Item {
	return e.Items
}

// InputItem returns the item at index i.
func (e *Execution) InputItem(i int) (Item, error) {
	if i < 0 || i >= len(e.Items) {
		return Item{}, fmt.Errorf("item index %d out of range [0,%d)", i, len(e.Items))
	}
	return e.Items[i], nil
}

// ContinueOnFail reports whether per-item failures become annotated records.
func (e *Execution) ContinueOnFail() bool {
	return e.continueOnFail
}

// NodeParameter resolves a parameter for item i.
// Values written as ${ expression } are evaluated against the item, and a
// missing parameter falls back to the property default of the node. A null or
// empty value for a required property counts as missing.
func (e *Execution) NodeParameter(name string, itemIndex int) (any, error) {
	raw, ok := e.Parameters[name]
	if !ok || e.blankRequired(name, raw) {
		return e.defaultParameter(name)
	}

	expression, isExpr := IsExpression(raw)
	if !isExpr {
		return raw, nil
	}

	item, err := e.InputItem(itemIndex)
	if err != nil {
		return nil, err
	}

	value, err := Eval(expression, map[string]any{
		"json":        item.JSON,
		"itemIndex":   itemIndex,
		"executionId": e.ID,
	})
	if err != nil {
		e.Logger.ErrorContext(e, "Error evaluating parameter expression",
			"parameter", name,
			"expression", expression,
			"item_index", itemIndex,
			"error", err)
		return nil, fmt.Errorf("%w: parameter %q: %v", ErrValidation, name, err)
	}
	if e.blankRequired(name, value) {
		return e.defaultParameter(name)
	}
	return value, nil
}

func (e *Execution) defaultParameter(name string) (any, error) {
	prop, known := e.Node.Property(name)
	if !known {
		return nil, fmt.Errorf("%w: unknown parameter %q", ErrValidation, name)
	}
	if prop.Default == nil && prop.Required {
		return nil, fmt.Errorf("%w: parameter %q is required", ErrValidation, name)
	}
	return prop.Default, nil
}

// blankRequired reports whether v is null or an empty string for a required property.
func (e *Execution) blankRequired(name string, v any) bool {
	prop, known := e.Node.Property(name)
	if !known || !prop.Required {
		return false
	}
	switch v := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	}
	return false
}

// DecodeParameters resolves every declared property for item i and decodes them
// into target using its json tags. The decoded struct is validated afterwards.
func (e *Execution) DecodeParameters(itemIndex int, target any) error {
	values := make(map[string]any, len(e.Node.Properties))
	for _, prop := range e.Node.Properties {
		v, err := e.NodeParameter(prop.Name, itemIndex)
		if err != nil {
			return err
		}
		values[prop.Name] = v
	}

	if err := mapToStruct(values, target); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	v := reflect.ValueOf(target)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if err := validate.Struct(v.Interface()); err != nil {
		if msg, ok := formatValidationErrors(err); ok {
			return fmt.Errorf("%w: %s", ErrValidation, msg)
		}
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// PrepareOutputData wraps items as the single main output of the node.
func (e *Execution) PrepareOutputData(items []Item) [][]Item {
	return [][]Item{items}
}

// ErrorItem builds the continue-on-fail record for item i: the original
// payload plus an error field.
func (e *Execution) ErrorItem(i int, cause error) Item {
	item, err := e.InputItem(i)
	if err != nil {
		return Item{JSON: map[string]any{ErrorKey: cause.Error()}, Error: cause}
	}

	annotated, err := annotateItem(item.JSON, cause)
	if err != nil {
		e.Logger.WarnContext(e, "Could not copy item payload for error record",
			"item_index", i,
			"error", err)
		annotated = map[string]any{ErrorKey: cause.Error()}
	}
	return Item{JSON: annotated, Error: cause}
}
