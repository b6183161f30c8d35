package query

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
	"github.com/pkg/errors"

	pc "github.com/lidarview/pointstream/pointcloud"
	"github.com/lidarview/pointstream/spatialmath"
	"github.com/lidarview/pointstream/utils"
)

// PointLocation is the closed set of query location predicates. Every
// predicate classifies a node bounding volume with a three-way relation and
// tests single points for inclusion; points of nodes classified Contains are
// accepted without per-point tests.
type PointLocation interface {
	// RelationToVolume classifies the node bounding volume against the
	// predicate. Disjoint and Contains verdicts must be exact; Intersects
	// may be conservative.
	RelationToVolume(vol pc.BoundingVolume) spatialmath.Relation

	// ContainsPoint is the exact per-point inclusion test.
	ContainsPoint(pt r3.Vector) bool

	validate() error
}

// AllPoints matches every point; no node is ever skipped or filtered.
type AllPoints struct{}

// RelationToVolume classifies every volume as contained.
func (AllPoints) RelationToVolume(pc.BoundingVolume) spatialmath.Relation {
	return spatialmath.Contains
}

// ContainsPoint accepts every point.
func (AllPoints) ContainsPoint(r3.Vector) bool {
	return true
}

func (AllPoints) validate() error { return nil }

// AxisAlignedBox matches points inside an axis-aligned box.
type AxisAlignedBox struct {
	Box spatialmath.AxisAlignedBox
}

// RelationToVolume classifies the volume's enclosing box against the query
// box.
func (l AxisAlignedBox) RelationToVolume(vol pc.BoundingVolume) spatialmath.Relation {
	return l.Box.RelationTo(vol.AABB())
}

// ContainsPoint tests box containment.
func (l AxisAlignedBox) ContainsPoint(pt r3.Vector) bool {
	return l.Box.ContainsPoint(pt)
}

func (l AxisAlignedBox) validate() error {
	if l.Box.Min.X > l.Box.Max.X || l.Box.Min.Y > l.Box.Max.Y || l.Box.Min.Z > l.Box.Max.Z {
		return errors.Errorf("axis-aligned box min %v exceeds max %v", l.Box.Min, l.Box.Max)
	}
	return nil
}

// OrientedBox matches points inside an arbitrarily rotated box.
type OrientedBox struct {
	Box *spatialmath.OrientedBox
}

// RelationToVolume classifies the volume's enclosing box via the separating
// axis test.
func (l OrientedBox) RelationToVolume(vol pc.BoundingVolume) spatialmath.Relation {
	return l.Box.RelationTo(vol.AABB())
}

// ContainsPoint brings the point into the box frame and tests the extents.
func (l OrientedBox) ContainsPoint(pt r3.Vector) bool {
	return l.Box.ContainsPoint(pt)
}

func (l OrientedBox) validate() error {
	if l.Box == nil {
		return errors.New("oriented box predicate has no box")
	}
	return nil
}

// Frustum matches points inside a six-plane view frustum.
type Frustum struct {
	Frustum *spatialmath.Frustum
}

// RelationToVolume classifies the volume's enclosing box against all six
// planes.
func (l Frustum) RelationToVolume(vol pc.BoundingVolume) spatialmath.Relation {
	return l.Frustum.RelationTo(vol.AABB())
}

// ContainsPoint tests the point against all six half spaces.
func (l Frustum) ContainsPoint(pt r3.Vector) bool {
	return l.Frustum.ContainsPoint(pt)
}

func (l Frustum) validate() error {
	if l.Frustum == nil {
		return errors.New("frustum predicate has no frustum")
	}
	return nil
}

// S2Cells matches points whose direction from the origin falls into a union
// of S2 cells. It works against both index variants: exact cell arithmetic
// against cell index nodes, a conservative spherical covering against octree
// boxes.
type S2Cells struct {
	Cells s2.CellUnion
}

// RelationToVolume classifies the node volume against the cell union.
func (l S2Cells) RelationToVolume(vol pc.BoundingVolume) spatialmath.Relation {
	if cv, ok := vol.(pc.CellVolume); ok {
		if l.Cells.ContainsCellID(cv.Cell) {
			return spatialmath.Contains
		}
		if l.Cells.IntersectsCellID(cv.Cell) {
			return spatialmath.Intersects
		}
		return spatialmath.Disjoint
	}
	return l.relationToBox(vol.AABB())
}

// relationToBox bounds the directions of all points in the box by a
// spherical cap and compares the cap's covering against the cell union. The
// cap radius asin(halfDiagonal/minDistance) is a rigorous bound: a point at
// distance at least minDistance from the origin and within halfDiagonal of
// the box center cannot deviate further from the center direction.
func (l S2Cells) relationToBox(box spatialmath.AxisAlignedBox) spatialmath.Relation {
	center := box.Center()
	halfDiagonal := box.Max.Sub(box.Min).Norm() / 2
	minDistance := closestToOrigin(box).Norm()
	if minDistance <= 0 || halfDiagonal >= minDistance {
		// the box surrounds or touches the origin; its points may lie in any
		// direction
		return spatialmath.Intersects
	}

	capAngle := s1.Angle(math.Asin(halfDiagonal / minDistance))
	capRegion := s2.CapFromCenterAngle(s2.PointFromCoords(center.X, center.Y, center.Z), capAngle)
	coverer := s2.RegionCoverer{MaxLevel: 30, MaxCells: 8}
	covering := coverer.Covering(capRegion)

	contained := true
	intersects := false
	for _, c := range covering {
		if !l.Cells.ContainsCellID(c) {
			contained = false
		}
		if l.Cells.IntersectsCellID(c) {
			intersects = true
		}
	}
	switch {
	case contained:
		return spatialmath.Contains
	case intersects:
		return spatialmath.Intersects
	default:
		return spatialmath.Disjoint
	}
}

// ContainsPoint looks up the cell containing the point's direction.
func (l S2Cells) ContainsPoint(pt r3.Vector) bool {
	if pt.Norm() == 0 {
		return false
	}
	return l.Cells.ContainsPoint(s2.PointFromCoords(pt.X, pt.Y, pt.Z))
}

func (l S2Cells) validate() error {
	if len(l.Cells) == 0 {
		return errors.New("cell union predicate is empty")
	}
	for _, c := range l.Cells {
		if !c.IsValid() {
			return errors.Errorf("invalid cell id %d", uint64(c))
		}
	}
	return nil
}

// closestToOrigin returns the point of the box closest to the origin.
func closestToOrigin(box spatialmath.AxisAlignedBox) r3.Vector {
	return r3.Vector{
		X: utils.Clamp(0, box.Min.X, box.Max.X),
		Y: utils.Clamp(0, box.Min.Y, box.Max.Y),
		Z: utils.Clamp(0, box.Min.Z, box.Max.Z),
	}
}
