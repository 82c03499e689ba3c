package graph

import "github.com/chazu/raycsg/pkg/interval"

// Vec3 is a 3D vector in scene units.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// IsZero reports whether all components are zero.
func (v Vec3) IsZero() bool {
	return v.X == 0 && v.Y == 0 && v.Z == 0
}

// ---------------------------------------------------------------------------
// Primitives
// ---------------------------------------------------------------------------

// PrimitiveKind distinguishes between primitive shapes.
type PrimitiveKind int

const (
	PrimBox PrimitiveKind = iota
	PrimSphere
	PrimCylinder
)

func (k PrimitiveKind) String() string {
	switch k {
	case PrimBox:
		return "box"
	case PrimSphere:
		return "sphere"
	case PrimCylinder:
		return "cylinder"
	default:
		return "unknown"
	}
}

// BoxData is an axis-aligned box with its minimum corner at the origin.
type BoxData struct {
	Size Vec3 `json:"size"`
}

func (BoxData) nodeData() {}

// SphereData is a sphere centered at the origin.
type SphereData struct {
	Radius float64 `json:"radius"`
}

func (SphereData) nodeData() {}

// CylinderData is a Z-aligned cylinder centered at the origin.
type CylinderData struct {
	Height float64 `json:"height"`
	Radius float64 `json:"radius"`
}

func (CylinderData) nodeData() {}

// ---------------------------------------------------------------------------
// Transform
// ---------------------------------------------------------------------------

// TransformData represents a spatial transformation applied to a child node.
// Created by the (place ...) Lisp form.
type TransformData struct {
	Translation *Vec3 `json:"translation,omitempty"`
	Rotation    *Vec3 `json:"rotation,omitempty"` // Euler angles in degrees
}

func (TransformData) nodeData() {}

// ---------------------------------------------------------------------------
// Boolean
// ---------------------------------------------------------------------------

// BooleanData combines exactly two children. For Difference the first child
// is the minuend.
type BooleanData struct {
	Op interval.Op `json:"op"`
}

func (BooleanData) nodeData() {}

// ---------------------------------------------------------------------------
// Group
// ---------------------------------------------------------------------------

// GroupData is a named scene. Its solid is the union of its children.
// Created by the (scene ...) Lisp form.
type GroupData struct {
	Description string `json:"description,omitempty"`
}

func (GroupData) nodeData() {}
