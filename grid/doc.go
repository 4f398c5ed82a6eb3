// Package grid maps geographic coordinates onto a fixed rectangular grid.
//
// A Grid is built once from a bounding box and a cell edge length in
// degrees, and is immutable afterwards. Every coordinate inside the box
// maps to exactly one Cell; coordinates outside the box are rejected with
// ErrOutOfBounds, never clamped.
package grid
