package spatialmath

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestNewAxisAlignedBox(t *testing.T) {
	_, err := NewAxisAlignedBox(r3.Vector{X: 1}, r3.Vector{})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "exceeds max")

	box, err := NewAxisAlignedBox(r3.Vector{X: -1, Y: -1, Z: -1}, r3.Vector{X: 1, Y: 1, Z: 1})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, box.Center(), test.ShouldResemble, r3.Vector{})
	test.That(t, box.HalfSize(), test.ShouldResemble, [3]float64{1, 1, 1})
}

func TestAxisAlignedBoxContainsPoint(t *testing.T) {
	box := AxisAlignedBox{Min: r3.Vector{}, Max: r3.Vector{X: 2, Y: 2, Z: 2}}
	test.That(t, box.ContainsPoint(r3.Vector{X: 1, Y: 1, Z: 1}), test.ShouldBeTrue)
	// boundary counts as inside
	test.That(t, box.ContainsPoint(r3.Vector{X: 2, Y: 2, Z: 2}), test.ShouldBeTrue)
	test.That(t, box.ContainsPoint(r3.Vector{X: 2.001, Y: 1, Z: 1}), test.ShouldBeFalse)
	test.That(t, box.ContainsPoint(r3.Vector{X: 1, Y: -0.001, Z: 1}), test.ShouldBeFalse)
}

func TestAxisAlignedBoxRelationTo(t *testing.T) {
	box := AxisAlignedBox{Min: r3.Vector{}, Max: r3.Vector{X: 10, Y: 10, Z: 10}}

	inner := AxisAlignedBox{Min: r3.Vector{X: 2, Y: 2, Z: 2}, Max: r3.Vector{X: 4, Y: 4, Z: 4}}
	test.That(t, box.RelationTo(inner), test.ShouldEqual, Contains)

	overlapping := AxisAlignedBox{Min: r3.Vector{X: 8, Y: 8, Z: 8}, Max: r3.Vector{X: 12, Y: 12, Z: 12}}
	test.That(t, box.RelationTo(overlapping), test.ShouldEqual, Intersects)

	outside := AxisAlignedBox{Min: r3.Vector{X: 11, Y: 11, Z: 11}, Max: r3.Vector{X: 12, Y: 12, Z: 12}}
	test.That(t, box.RelationTo(outside), test.ShouldEqual, Disjoint)

	// shared face counts as intersecting
	touching := AxisAlignedBox{Min: r3.Vector{X: 10, Y: 0, Z: 0}, Max: r3.Vector{X: 12, Y: 10, Z: 10}}
	test.That(t, box.RelationTo(touching), test.ShouldEqual, Intersects)
}

func TestAxisAlignedBoxExtend(t *testing.T) {
	box := EmptyAxisAlignedBox()
	test.That(t, box.ContainsPoint(r3.Vector{}), test.ShouldBeFalse)

	box = box.Extend(r3.Vector{X: 1, Y: 2, Z: 3})
	box = box.Extend(r3.Vector{X: -1, Y: 0, Z: 5})
	test.That(t, box.Min, test.ShouldResemble, r3.Vector{X: -1, Y: 0, Z: 3})
	test.That(t, box.Max, test.ShouldResemble, r3.Vector{X: 1, Y: 2, Z: 5})
}

func TestAxisAlignedBoxOctant(t *testing.T) {
	box := AxisAlignedBox{Min: r3.Vector{}, Max: r3.Vector{X: 2, Y: 2, Z: 2}}

	test.That(t, box.Octant(0), test.ShouldResemble,
		AxisAlignedBox{Min: r3.Vector{}, Max: r3.Vector{X: 1, Y: 1, Z: 1}})
	test.That(t, box.Octant(7), test.ShouldResemble,
		AxisAlignedBox{Min: r3.Vector{X: 1, Y: 1, Z: 1}, Max: r3.Vector{X: 2, Y: 2, Z: 2}})
	test.That(t, box.Octant(1).Min.X, test.ShouldEqual, 1.)
	test.That(t, box.Octant(2).Min.Y, test.ShouldEqual, 1.)
	test.That(t, box.Octant(4).Min.Z, test.ShouldEqual, 1.)

	// the octants partition the box
	for i := 0; i < 8; i++ {
		oct := box.Octant(i)
		test.That(t, box.ContainsBox(oct), test.ShouldBeTrue)
		d := oct.Max.Sub(oct.Min)
		test.That(t, d, test.ShouldResemble, r3.Vector{X: 1, Y: 1, Z: 1})
	}
}

func TestAxisAlignedBoxVertices(t *testing.T) {
	box := AxisAlignedBox{Min: r3.Vector{X: -1, Y: -2, Z: -3}, Max: r3.Vector{X: 1, Y: 2, Z: 3}}
	verts := box.Vertices()
	test.That(t, verts, test.ShouldHaveLength, 8)
	for _, v := range verts {
		test.That(t, math.Abs(v.X), test.ShouldEqual, 1.)
		test.That(t, math.Abs(v.Y), test.ShouldEqual, 2.)
		test.That(t, math.Abs(v.Z), test.ShouldEqual, 3.)
	}
}
