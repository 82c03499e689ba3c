// Package interval combines ray hit sequences with Boolean set operations.
//
// A hit sequence is the sorted list of surface crossings of one ray against
// one solid: even positions enter the solid, odd positions leave it, so the
// solid along the ray is the union of the closed intervals formed by
// consecutive pairs. Combining two solids with Union, Intersect or
// Difference reduces to merging their hit sequences and keeping the
// crossings where the running open-interval depth changes classification.
//
// Results have a fixed length of rows(A)+rows(B) per ray. Slots that are
// not boundaries of the combined solid hold Sentinel (+Inf). Sorted
// results can be fed back as operands, which is how nested CSG trees are
// evaluated.
package interval
