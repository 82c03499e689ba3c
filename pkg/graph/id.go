package graph

import (
	"crypto/sha256"
	"encoding/hex"
)

// NodeID is a content-addressed identifier for graph nodes.
type NodeID string

// ZeroID is the empty NodeID.
const ZeroID NodeID = ""

// NewNodeID derives a stable ID from a node path such as "defsolid/lens".
func NewNodeID(path string) NodeID {
	sum := sha256.Sum256([]byte(path))
	return NodeID(hex.EncodeToString(sum[:]))
}

// IsZero reports whether id is unset.
func (id NodeID) IsZero() bool {
	return id == ZeroID
}

// Short returns the first 8 characters of the ID for log and error output.
func (id NodeID) Short() string {
	if len(id) <= 8 {
		return string(id)
	}
	return string(id[:8])
}
