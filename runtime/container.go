package runtime

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
)

// configFieldName is the exported struct field the container fills from raw node config.
const configFieldName = "Config"

// ErrNodeNotFound is returned when a batch targets an unregistered node.
var ErrNodeNotFound = errors.New("node not found")

type Container struct {
	nodes map[string]NodeType
	order []string // registration order, used for lifecycle calls
}

func NewContainer() *Container {
	return &Container{
		nodes: make(map[string]NodeType),
	}
}

// RegisterNode registers a node under its description name and prepares its Config
// field, if it has one, from rawConfig.
func (c *Container) RegisterNode(node NodeType, rawConfig map[string]any) error {
	if node == nil {
		return fmt.Errorf("node cannot be nil")
	}

	name := node.Description().Name
	if name == "" {
		return fmt.Errorf("node %T has an empty name", node)
	}
	if _, exists := c.nodes[name]; exists {
		return fmt.Errorf("node %q already registered", name)
	}

	if cfg, ok := configOf(node); ok {
		if err := InitializeConfig(cfg, rawConfig); err != nil {
			return fmt.Errorf("node %q config: %w", name, err)
		}
	}

	c.nodes[name] = node
	c.order = append(c.order, name)
	return nil
}

// configOf returns a pointer to the exported Config field of a struct node.
func configOf(node NodeType) (any, bool) {
	v := reflect.ValueOf(node)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return nil, false
	}
	field := v.Elem().FieldByName(configFieldName)
	if !field.IsValid() || !field.CanAddr() || field.Kind() != reflect.Struct {
		return nil, false
	}
	return field.Addr().Interface(), true
}

// Node returns a registered node by name.
func (c *Container) Node(name string) (NodeType, error) {
	node, ok := c.nodes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, name)
	}
	return node, nil
}

// Descriptions returns the metadata of every registered node, sorted by name.
func (c *Container) Descriptions() []NodeDescription {
	names := make([]string, 0, len(c.nodes))
	for name := range c.nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]NodeDescription, 0, len(names))
	for _, name := range names {
		out = append(out, c.nodes[name].Description())
	}
	return out
}

// Initialize calls Initialize on every node implementing Initializer, in registration order.
// It stops at the first failure.
func (c *Container) Initialize(ctx context.Context) error {
	for _, name := range c.order {
		if initializer, ok := c.nodes[name].(Initializer); ok {
			if err := initializer.Initialize(ctx); err != nil {
				return fmt.Errorf("node %q initialization failed: %w", name, err)
			}
		}
	}
	return nil
}

// Shutdown calls Shutdown on every node implementing Shutdowner.
// Nodes are shut down in reverse order of registration; all errors are collected.
func (c *Container) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(c.order) - 1; i >= 0; i-- {
		name := c.order[i]
		if shutdowner, ok := c.nodes[name].(Shutdowner); ok {
			if err := shutdowner.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("node %q shutdown failed: %w", name, err))
			}
		}
	}
	return errors.Join(errs...)
}
