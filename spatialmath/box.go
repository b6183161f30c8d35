package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/lidarview/pointstream/utils"
)

const floatEpsilon = 1e-6

// OrientedBox is a 3D rectangular prism with an arbitrary rigid rotation,
// fully defined by its center, half extents and rotation.
type OrientedBox struct {
	center   r3.Vector
	halfSize [3]float64
	rotation *RotationMatrix
}

// NewOrientedBox instantiates a new oriented box from its center, full
// dimensions and rotation. Negative dimensions are not allowed; zero
// dimensions are, for degenerate bounding volumes.
func NewOrientedBox(center, dims r3.Vector, rotation *RotationMatrix) (*OrientedBox, error) {
	if dims.X < 0 || dims.Y < 0 || dims.Z < 0 {
		return nil, errors.Errorf("box dimensions must be non-negative, got %v", dims)
	}
	if rotation == nil {
		rotation = NewZeroRotationMatrix()
	}
	return &OrientedBox{
		center:   center,
		halfSize: [3]float64{dims.X / 2, dims.Y / 2, dims.Z / 2},
		rotation: rotation,
	}, nil
}

// Center returns the center point of the box.
func (b *OrientedBox) Center() r3.Vector {
	return b.center
}

// HalfSize returns the half extents of the box along its local axes.
func (b *OrientedBox) HalfSize() [3]float64 {
	return b.halfSize
}

// Rotation returns the rotation of the box.
func (b *OrientedBox) Rotation() *RotationMatrix {
	return b.rotation
}

// String returns a human readable string that represents the box.
func (b *OrientedBox) String() string {
	return fmt.Sprintf("OrientedBox(center: %v, dims: X:%.2f, Y:%.2f, Z:%.2f)",
		b.center, 2*b.halfSize[0], 2*b.halfSize[1], 2*b.halfSize[2])
}

// axis returns the i-th local axis of the box in world coordinates.
func (b *OrientedBox) axis(i int) r3.Vector {
	return b.rotation.Col(i)
}

// ContainsPoint returns whether the given point lies inside the box. The
// point is brought into the box frame by the inverse rotation and then
// tested against the half extents.
func (b *OrientedBox) ContainsPoint(pt r3.Vector) bool {
	d := pt.Sub(b.center)
	for i := 0; i < 3; i++ {
		if math.Abs(d.Dot(b.axis(i))) > b.halfSize[i] {
			return false
		}
	}
	return true
}

// Vertices returns the eight corners of the box in world coordinates.
func (b *OrientedBox) Vertices() []r3.Vector {
	verts := make([]r3.Vector, 0, 8)
	for _, sx := range []float64{-1, 1} {
		for _, sy := range []float64{-1, 1} {
			for _, sz := range []float64{-1, 1} {
				v := b.center.
					Add(b.axis(0).Mul(sx * b.halfSize[0])).
					Add(b.axis(1).Mul(sy * b.halfSize[1])).
					Add(b.axis(2).Mul(sz * b.halfSize[2]))
				verts = append(verts, v)
			}
		}
	}
	return verts
}

// RelationTo classifies the given axis-aligned box against the oriented box.
// Disjointness is decided by the separating axis test over the 15 candidate
// axes of the box pair; containment by testing all eight corners of the
// axis-aligned box.
func (b *OrientedBox) RelationTo(other AxisAlignedBox) Relation {
	if obbVsAABBSeparated(b, other) {
		return Disjoint
	}
	for _, vertex := range other.Vertices() {
		if !b.ContainsPoint(vertex) {
			return Intersects
		}
	}
	return Contains
}

// obbVsAABBSeparated runs the separating axis test between an oriented box
// and an axis-aligned box. It returns true as soon as a separating plane is
// found, proving the boxes disjoint.
func obbVsAABBSeparated(b *OrientedBox, other AxisAlignedBox) bool {
	centerDist := other.Center().Sub(b.center)
	otherHalf := other.HalfSize()

	axesA := [3]r3.Vector{b.axis(0), b.axis(1), b.axis(2)}
	axesB := [3]r3.Vector{{X: 1}, {Y: 1}, {Z: 1}}

	for i := 0; i < 3; i++ {
		if separatingAxisTest(centerDist, axesA[i], b.halfSize, otherHalf, axesA, axesB) > 0 {
			return true
		}
		if separatingAxisTest(centerDist, axesB[i], b.halfSize, otherHalf, axesA, axesB) > 0 {
			return true
		}
		for j := 0; j < 3; j++ {
			crossProductPlane := axesA[i].Cross(axesB[j])

			// if edges are parallel, this check is already accounted for by one
			// of the face projections, so skip this case
			if !utils.Float64AlmostEqual(crossProductPlane.Norm(), 0, floatEpsilon) {
				if separatingAxisTest(centerDist, crossProductPlane.Normalize(), b.halfSize, otherHalf, axesA, axesB) > 0 {
					return true
				}
			}
		}
	}
	return false
}

// separatingAxisTest projects two boxes onto the given plane and computes how
// much distance is between them along this plane. Per the separating
// hyperplane theorem, if such a plane exists (and a positive number is
// returned) this proves that there is no collision between the boxes.
func separatingAxisTest(positionDelta, plane r3.Vector, halfSizeA, halfSizeB [3]float64, axesA, axesB [3]r3.Vector) float64 {
	sum := math.Abs(positionDelta.Dot(plane))
	for i := 0; i < 3; i++ {
		sum -= math.Abs(axesA[i].Mul(halfSizeA[i]).Dot(plane))
		sum -= math.Abs(axesB[i].Mul(halfSizeB[i]).Dot(plane))
	}
	return sum
}
