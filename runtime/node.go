package runtime

// Connection types understood by the host.
const (
	ConnectionMain = "main"
)

// NodeProperty describes one configurable parameter of a node.
// It is data only: the host uses it for registration and to fill in defaults
// when a batch does not provide a value.
type NodeProperty struct {
	DisplayName string `json:"displayName" yaml:"displayName"`
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type" yaml:"type"`
	Default     any    `json:"default" yaml:"default"`
	Required    bool   `json:"required" yaml:"required"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// NodeDefaults holds values the host applies when the node is placed in a workflow.
type NodeDefaults struct {
	Name string `json:"name" yaml:"name"`
}

// NodeDescription is the registration metadata of a node.
type NodeDescription struct {
	DisplayName string         `json:"displayName" yaml:"displayName"`
	Name        string         `json:"name" yaml:"name"`
	Icon        string         `json:"icon" yaml:"icon"`
	Group       []string       `json:"group" yaml:"group"`
	Version     int            `json:"version" yaml:"version"`
	Description string         `json:"description" yaml:"description"`
	Defaults    NodeDefaults   `json:"defaults" yaml:"defaults"`
	Inputs      []string       `json:"inputs" yaml:"inputs"`
	Outputs     []string       `json:"outputs" yaml:"outputs"`
	Properties  []NodeProperty `json:"properties" yaml:"properties"`
}

// Property returns the property with the given name.
func (d NodeDescription) Property(name string) (NodeProperty, bool) {
	for _, p := range d.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return NodeProperty{}, false
}

// NodeType is the capability every node must provide to the host:
// its metadata and the function executed once per batch of items.
type NodeType interface {
	Description() NodeDescription
	Execute(exec *Execution) ([][]Item, error)
}
