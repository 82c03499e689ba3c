package graph

// NodeKind enumerates the types of nodes in the scene graph.
type NodeKind int

const (
	NodePrimitive NodeKind = iota // geometric primitive (box, sphere, cylinder)
	NodeTransform                 // spatial transformation (place)
	NodeBoolean                   // union, intersect or difference of two children
	NodeGroup                     // named scene root, union of its children
)

func (k NodeKind) String() string {
	switch k {
	case NodePrimitive:
		return "primitive"
	case NodeTransform:
		return "transform"
	case NodeBoolean:
		return "boolean"
	case NodeGroup:
		return "group"
	default:
		return "unknown"
	}
}

// Node is the fundamental element of the scene graph.
type Node struct {
	ID       NodeID   `json:"id"`
	Kind     NodeKind `json:"kind"`
	Name     string   `json:"name,omitempty"`
	Children []NodeID `json:"children,omitempty"`
	Data     NodeData `json:"data"`
}

// NodeData is the interface for kind-specific node payloads.
type NodeData interface {
	nodeData() // marker method restricting implementations to this package
}
