package runtime

import (
	"encoding/json"
	"fmt"

	"github.com/Jeffail/gabs/v2"
)

// ErrorKey is the JSON field carrying a failure message in an output record.
const ErrorKey = "error"

// Item is a single record flowing between nodes.
// Error is only set on records produced by the continue-on-fail path.
type Item struct {
	JSON  map[string]any
	Error error
}

type itemJSON struct {
	JSON  map[string]any `json:"json"`
	Error *itemErrorJSON `json:"error,omitempty"`
}

type itemErrorJSON struct {
	Message   string         `json:"message"`
	Kind      string         `json:"kind,omitempty"`
	ItemIndex *int           `json:"itemIndex,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
}

func (i Item) MarshalJSON() ([]byte, error) {
	out := itemJSON{JSON: i.JSON}
	if out.JSON == nil {
		out.JSON = map[string]any{}
	}
	if i.Error != nil {
		e := &itemErrorJSON{
			Message: i.Error.Error(),
			Kind:    string(Kind(i.Error)),
		}
		if opErr, ok := AsNodeOperationError(i.Error); ok {
			if idx, ok := opErr.ItemIndex(); ok {
				e.ItemIndex = &idx
			}
			if len(opErr.Context) > 0 {
				e.Context = opErr.Context
			}
		}
		out.Error = e
	}
	return json.Marshal(out)
}

func (i *Item) UnmarshalJSON(data []byte) error {
	var in itemJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	i.JSON = in.JSON
	if in.Error != nil {
		i.Error = fmt.Errorf("%s", in.Error.Message)
	}
	return nil
}

// NewItem wraps a JSON payload.
func NewItem(data map[string]any) Item {
	return Item{JSON: data}
}

// annotateItem returns a deep copy of data with the error field set.
// The original map is left untouched so the input item can be inspected afterwards.
func annotateItem(data map[string]any, err error) (map[string]any, error) {
	raw, mErr := json.Marshal(data)
	if mErr != nil {
		return nil, fmt.Errorf("failed to copy item payload: %w", mErr)
	}

	container, pErr := gabs.ParseJSON(raw)
	if pErr != nil {
		return nil, fmt.Errorf("failed to parse item payload: %w", pErr)
	}
	if container.Data() == nil {
		container = gabs.New()
	}

	if _, sErr := container.Set(err.Error(), ErrorKey); sErr != nil {
		return nil, fmt.Errorf("failed to annotate item: %w", sErr)
	}

	result, ok := container.Data().(map[string]any)
	if !ok {
		return nil, fmt.Errorf("item payload is %T, expected object", container.Data())
	}
	return result, nil
}

// recordPayload returns the payload of a {"json": {...}} record. Any key other
// than json and error marks obj as a plain payload.
func recordPayload(obj map[string]any) (map[string]any, bool) {
	payload, ok := obj["json"].(map[string]any)
	if !ok {
		return nil, false
	}
	for key := range obj {
		if key != "json" && key != ErrorKey {
			return nil, false
		}
	}
	return payload, true
}

// ParseItems decodes a JSON document holding either an array of objects or
// an array of {"json": {...}} records into items.
func ParseItems(data []byte) ([]Item, error) {
	parsed, err := gabs.ParseJSON(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse items: %w", err)
	}

	var children []*gabs.Container
	switch parsed.Data().(type) {
	case []any:
		children = parsed.Children()
	case map[string]any:
		children = []*gabs.Container{parsed}
	default:
		return nil, fmt.Errorf("items must be a JSON array or object, got %T", parsed.Data())
	}

	items := make([]Item, 0, len(children))
	for i, child := range children {
		obj, ok := child.Data().(map[string]any)
		if !ok {
			return nil, fmt.Errorf("item %d is %T, expected object", i, child.Data())
		}
		if payload, ok := recordPayload(obj); ok {
			obj = payload
		}
		items = append(items, NewItem(obj))
	}
	return items, nil
}
