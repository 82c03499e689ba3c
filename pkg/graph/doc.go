// Package graph defines the scene graph types for raycsg.
// The scene graph is an immutable DAG of primitives, transforms, boolean
// operations and scene groups that describes one or more CSG solids.
package graph
