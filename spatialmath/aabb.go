// Package spatialmath defines the geometric primitives used to classify
// spatial index nodes against query volumes: axis-aligned boxes, oriented
// boxes and view frustums, each with a three-way Disjoint/Intersects/Contains
// relation to an axis-aligned box.
package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// AxisAlignedBox is a box whose faces are parallel to the coordinate planes,
// fully defined by its minimum and maximum corners.
type AxisAlignedBox struct {
	Min, Max r3.Vector
}

// NewAxisAlignedBox constructs an axis-aligned box from its two extreme
// corners. The box may be degenerate (zero extent along an axis) but min must
// not exceed max on any axis.
func NewAxisAlignedBox(min, max r3.Vector) (AxisAlignedBox, error) {
	if min.X > max.X || min.Y > max.Y || min.Z > max.Z {
		return AxisAlignedBox{}, errors.Errorf("invalid axis-aligned box, min %v exceeds max %v", min, max)
	}
	return AxisAlignedBox{Min: min, Max: max}, nil
}

// EmptyAxisAlignedBox returns a box that contains nothing and can be extended
// point by point.
func EmptyAxisAlignedBox() AxisAlignedBox {
	inf := math.Inf(1)
	return AxisAlignedBox{
		Min: r3.Vector{X: inf, Y: inf, Z: inf},
		Max: r3.Vector{X: -inf, Y: -inf, Z: -inf},
	}
}

// String returns a human readable representation of the box.
func (b AxisAlignedBox) String() string {
	return fmt.Sprintf("AxisAlignedBox(min: %v, max: %v)", b.Min, b.Max)
}

// Center returns the center point of the box.
func (b AxisAlignedBox) Center() r3.Vector {
	return b.Min.Add(b.Max).Mul(0.5)
}

// HalfSize returns the half extents of the box along each axis.
func (b AxisAlignedBox) HalfSize() [3]float64 {
	d := b.Max.Sub(b.Min).Mul(0.5)
	return [3]float64{d.X, d.Y, d.Z}
}

// ContainsPoint returns whether the given point lies inside the box,
// boundary included.
func (b AxisAlignedBox) ContainsPoint(pt r3.Vector) bool {
	return pt.X >= b.Min.X && pt.X <= b.Max.X &&
		pt.Y >= b.Min.Y && pt.Y <= b.Max.Y &&
		pt.Z >= b.Min.Z && pt.Z <= b.Max.Z
}

// ContainsBox returns whether other lies entirely inside b.
func (b AxisAlignedBox) ContainsBox(other AxisAlignedBox) bool {
	return b.ContainsPoint(other.Min) && b.ContainsPoint(other.Max)
}

// IntersectsBox returns whether b and other share any volume.
func (b AxisAlignedBox) IntersectsBox(other AxisAlignedBox) bool {
	return b.Min.X <= other.Max.X && b.Max.X >= other.Min.X &&
		b.Min.Y <= other.Max.Y && b.Max.Y >= other.Min.Y &&
		b.Min.Z <= other.Max.Z && b.Max.Z >= other.Min.Z
}

// RelationTo classifies other against b.
func (b AxisAlignedBox) RelationTo(other AxisAlignedBox) Relation {
	if !b.IntersectsBox(other) {
		return Disjoint
	}
	if b.ContainsBox(other) {
		return Contains
	}
	return Intersects
}

// Vertices returns the eight corners of the box.
func (b AxisAlignedBox) Vertices() []r3.Vector {
	verts := make([]r3.Vector, 0, 8)
	for _, x := range []float64{b.Min.X, b.Max.X} {
		for _, y := range []float64{b.Min.Y, b.Max.Y} {
			for _, z := range []float64{b.Min.Z, b.Max.Z} {
				verts = append(verts, r3.Vector{X: x, Y: y, Z: z})
			}
		}
	}
	return verts
}

// Extend grows the box to include the given point.
func (b AxisAlignedBox) Extend(pt r3.Vector) AxisAlignedBox {
	return AxisAlignedBox{
		Min: r3.Vector{X: math.Min(b.Min.X, pt.X), Y: math.Min(b.Min.Y, pt.Y), Z: math.Min(b.Min.Z, pt.Z)},
		Max: r3.Vector{X: math.Max(b.Max.X, pt.X), Y: math.Max(b.Max.Y, pt.Y), Z: math.Max(b.Max.Z, pt.Z)},
	}
}

// Expand grows the box by the given margin on every side.
func (b AxisAlignedBox) Expand(margin float64) AxisAlignedBox {
	m := r3.Vector{X: margin, Y: margin, Z: margin}
	return AxisAlignedBox{Min: b.Min.Sub(m), Max: b.Max.Add(m)}
}

// Octant returns the i-th (0-7) octant of the box, the standard cube
// subdivision used by octrees. Bit 0 selects the X half, bit 1 the Y half and
// bit 2 the Z half.
func (b AxisAlignedBox) Octant(i int) AxisAlignedBox {
	c := b.Center()
	min, max := b.Min, b.Max
	if i&1 != 0 {
		min.X = c.X
	} else {
		max.X = c.X
	}
	if i&2 != 0 {
		min.Y = c.Y
	} else {
		max.Y = c.Y
	}
	if i&4 != 0 {
		min.Z = c.Z
	} else {
		max.Z = c.Z
	}
	return AxisAlignedBox{Min: min, Max: max}
}
