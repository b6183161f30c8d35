package spatialmath

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/num/quat"
)

// rotationAboutZ returns the rotation by the given angle about the Z axis.
func rotationAboutZ(radians float64) *RotationMatrix {
	return NewRotationMatrixFromQuaternion(quat.Number{
		Real: math.Cos(radians / 2),
		Kmag: math.Sin(radians / 2),
	})
}

func TestNewOrientedBox(t *testing.T) {
	_, err := NewOrientedBox(r3.Vector{}, r3.Vector{X: -1, Y: 1, Z: 1}, nil)
	test.That(t, err, test.ShouldNotBeNil)

	box, err := NewOrientedBox(r3.Vector{X: 1, Y: 2, Z: 3}, r3.Vector{X: 2, Y: 4, Z: 6}, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, box.Center(), test.ShouldResemble, r3.Vector{X: 1, Y: 2, Z: 3})
	test.That(t, box.HalfSize(), test.ShouldResemble, [3]float64{1, 2, 3})
}

func TestOrientedBoxContainsPoint(t *testing.T) {
	// a unit cube rotated 45 degrees about Z
	box, err := NewOrientedBox(r3.Vector{}, r3.Vector{X: 2, Y: 2, Z: 2}, rotationAboutZ(math.Pi/4))
	test.That(t, err, test.ShouldBeNil)

	test.That(t, box.ContainsPoint(r3.Vector{}), test.ShouldBeTrue)
	// the rotated cube reaches sqrt(2) along X but only within a thin wedge
	test.That(t, box.ContainsPoint(r3.Vector{X: 1.4}), test.ShouldBeTrue)
	// the unrotated corner direction is now outside
	test.That(t, box.ContainsPoint(r3.Vector{X: 0.99, Y: 0.99}), test.ShouldBeFalse)
	test.That(t, box.ContainsPoint(r3.Vector{Z: 1.01}), test.ShouldBeFalse)
}

func TestOrientedBoxRelationTo(t *testing.T) {
	t.Run("axis aligned orientation", func(t *testing.T) {
		box, err := NewOrientedBox(r3.Vector{X: 5, Y: 5, Z: 5}, r3.Vector{X: 10, Y: 10, Z: 10}, nil)
		test.That(t, err, test.ShouldBeNil)

		inner := AxisAlignedBox{Min: r3.Vector{X: 2, Y: 2, Z: 2}, Max: r3.Vector{X: 8, Y: 8, Z: 8}}
		test.That(t, box.RelationTo(inner), test.ShouldEqual, Contains)

		overlapping := AxisAlignedBox{Min: r3.Vector{X: 8, Y: 8, Z: 8}, Max: r3.Vector{X: 12, Y: 12, Z: 12}}
		test.That(t, box.RelationTo(overlapping), test.ShouldEqual, Intersects)

		outside := AxisAlignedBox{Min: r3.Vector{X: 11, Y: 0, Z: 0}, Max: r3.Vector{X: 12, Y: 1, Z: 1}}
		test.That(t, box.RelationTo(outside), test.ShouldEqual, Disjoint)
	})

	t.Run("rotated orientation", func(t *testing.T) {
		// a long thin box rotated 45 degrees about Z, slanting past the corner
		// of the axis-aligned boxes under test
		box, err := NewOrientedBox(r3.Vector{X: 3, Y: 0, Z: 0}, r3.Vector{X: 4, Y: 0.2, Z: 0.2}, rotationAboutZ(math.Pi/4))
		test.That(t, err, test.ShouldBeNil)

		near := AxisAlignedBox{Min: r3.Vector{X: 0.5, Y: -1.5, Z: -1}, Max: r3.Vector{X: 1.5, Y: -0.5, Z: 1}}
		test.That(t, box.RelationTo(near), test.ShouldEqual, Disjoint)

		crossing := AxisAlignedBox{Min: r3.Vector{X: 2.5, Y: -0.5, Z: -1}, Max: r3.Vector{X: 3.5, Y: 0.5, Z: 1}}
		test.That(t, box.RelationTo(crossing), test.ShouldEqual, Intersects)
	})

	t.Run("rotated containment", func(t *testing.T) {
		box, err := NewOrientedBox(r3.Vector{}, r3.Vector{X: 4, Y: 4, Z: 4}, rotationAboutZ(math.Pi/4))
		test.That(t, err, test.ShouldBeNil)

		// a small box at the center fits inside whatever the rotation
		inner := AxisAlignedBox{Min: r3.Vector{X: -0.5, Y: -0.5, Z: -0.5}, Max: r3.Vector{X: 0.5, Y: 0.5, Z: 0.5}}
		test.That(t, box.RelationTo(inner), test.ShouldEqual, Contains)

		// a box out to the unrotated corners pokes out of the rotated cube
		corner := AxisAlignedBox{Min: r3.Vector{X: -1.9, Y: -1.9, Z: -1.9}, Max: r3.Vector{X: 1.9, Y: 1.9, Z: 1.9}}
		test.That(t, box.RelationTo(corner), test.ShouldEqual, Intersects)
	})
}

func TestRotationMatrix(t *testing.T) {
	_, err := NewRotationMatrix([]float64{1, 2, 3})
	test.That(t, err, test.ShouldNotBeNil)

	rot := rotationAboutZ(math.Pi / 2)
	rotated := rot.Mul(r3.Vector{X: 1})
	test.That(t, rotated.X, test.ShouldAlmostEqual, 0, floatEpsilon)
	test.That(t, rotated.Y, test.ShouldAlmostEqual, 1, floatEpsilon)
	test.That(t, rotated.Z, test.ShouldAlmostEqual, 0, floatEpsilon)

	// the transpose undoes the rotation
	back := rot.Transpose().Mul(rotated)
	test.That(t, back.X, test.ShouldAlmostEqual, 1, floatEpsilon)
	test.That(t, back.Y, test.ShouldAlmostEqual, 0, floatEpsilon)

	// columns are the images of the coordinate axes
	col0 := rot.Col(0)
	test.That(t, col0.Y, test.ShouldAlmostEqual, 1, floatEpsilon)

	identity := NewZeroRotationMatrix()
	test.That(t, identity.Mul(r3.Vector{X: 1, Y: 2, Z: 3}), test.ShouldResemble, r3.Vector{X: 1, Y: 2, Z: 3})
	test.That(t, identity.At(0, 0), test.ShouldEqual, 1.)
	test.That(t, identity.At(0, 1), test.ShouldEqual, 0.)
}
