package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/lidarview/pointstream/utils"
)

// Plane is a half space in Hessian normal form. A point p is inside the half
// space when Normal·p + Offset >= 0.
type Plane struct {
	Normal r3.Vector
	Offset float64
}

// SignedDistance returns the signed distance of the point to the plane,
// positive on the inside of the half space.
func (p Plane) SignedDistance(pt r3.Vector) float64 {
	return p.Normal.Dot(pt) + p.Offset
}

// normalized returns the plane scaled so its normal has unit length.
func (p Plane) normalized() (Plane, error) {
	n := p.Normal.Norm()
	if n < floatEpsilon {
		return Plane{}, errors.New("plane has a degenerate normal")
	}
	return Plane{Normal: p.Normal.Mul(1 / n), Offset: p.Offset / n}, nil
}

// Frustum is a convex volume bounded by six half space planes, the usual
// shape of a camera's field of view.
type Frustum struct {
	planes [6]Plane
}

// NewFrustum constructs a frustum from six half space planes whose normals
// point into the volume.
func NewFrustum(planes [6]Plane) (*Frustum, error) {
	f := &Frustum{}
	for i, p := range planes {
		normalized, err := p.normalized()
		if err != nil {
			return nil, errors.Wrapf(err, "frustum plane %d", i)
		}
		f.planes[i] = normalized
	}
	return f, nil
}

// NewFrustumFromMatrix extracts the six frustum planes from a 4x4 combined
// view-projection matrix using the Gribb-Hartmann method. The matrix maps
// world coordinates to clip space.
func NewFrustumFromMatrix(m *mat.Dense) (*Frustum, error) {
	if r, c := m.Dims(); r != 4 || c != 4 {
		return nil, errors.Errorf("view-projection matrix must be 4x4, got %dx%d", r, c)
	}
	row := func(i int) [4]float64 {
		return [4]float64{m.At(i, 0), m.At(i, 1), m.At(i, 2), m.At(i, 3)}
	}
	r0, r1, r2, r3row := row(0), row(1), row(2), row(3)

	add := func(a, b [4]float64) Plane {
		return Plane{
			Normal: r3.Vector{X: a[0] + b[0], Y: a[1] + b[1], Z: a[2] + b[2]},
			Offset: a[3] + b[3],
		}
	}
	sub := func(a, b [4]float64) Plane {
		return Plane{
			Normal: r3.Vector{X: a[0] - b[0], Y: a[1] - b[1], Z: a[2] - b[2]},
			Offset: a[3] - b[3],
		}
	}

	return NewFrustum([6]Plane{
		add(r3row, r0), // left
		sub(r3row, r0), // right
		add(r3row, r1), // bottom
		sub(r3row, r1), // top
		add(r3row, r2), // near
		sub(r3row, r2), // far
	})
}

// Planes returns the six planes bounding the frustum.
func (f *Frustum) Planes() [6]Plane {
	return f.planes
}

// ContainsPoint returns whether the given point lies inside all six half
// spaces.
func (f *Frustum) ContainsPoint(pt r3.Vector) bool {
	for _, p := range f.planes {
		if p.SignedDistance(pt) < 0 {
			return false
		}
	}
	return true
}

// RelationTo classifies the given axis-aligned box against the frustum using
// the positive/negative vertex test: for each plane only the corner furthest
// along the plane normal decides rejection and only the opposite corner
// decides containment.
func (f *Frustum) RelationTo(box AxisAlignedBox) Relation {
	inside := true
	for _, p := range f.planes {
		if p.SignedDistance(positiveVertex(box, p.Normal)) < 0 {
			return Disjoint
		}
		if p.SignedDistance(negativeVertex(box, p.Normal)) < 0 {
			inside = false
		}
	}
	if inside {
		return Contains
	}
	return Intersects
}

// positiveVertex returns the box corner furthest along the given direction.
func positiveVertex(box AxisAlignedBox, dir r3.Vector) r3.Vector {
	v := box.Min
	if dir.X >= 0 {
		v.X = box.Max.X
	}
	if dir.Y >= 0 {
		v.Y = box.Max.Y
	}
	if dir.Z >= 0 {
		v.Z = box.Max.Z
	}
	return v
}

// negativeVertex returns the box corner furthest against the given direction.
func negativeVertex(box AxisAlignedBox, dir r3.Vector) r3.Vector {
	v := box.Max
	if dir.X >= 0 {
		v.X = box.Min.X
	}
	if dir.Y >= 0 {
		v.Y = box.Min.Y
	}
	if dir.Z >= 0 {
		v.Z = box.Min.Z
	}
	return v
}

// NewPerspectiveFrustum builds the view-projection matrix of a perspective
// camera at eye looking towards target (up defining the roll) with the given
// vertical field of view in degrees, aspect ratio and near/far distances,
// and extracts its frustum.
func NewPerspectiveFrustum(eye, target, up r3.Vector, fovYDegrees, aspect, near, far float64) (*Frustum, error) {
	if near <= 0 || far <= near {
		return nil, errors.Errorf("invalid near/far planes %f/%f", near, far)
	}
	fovY := utils.DegToRad(fovYDegrees)
	if fovY <= 0 || fovY >= math.Pi {
		return nil, errors.Errorf("invalid vertical field of view %f degrees", fovYDegrees)
	}

	// right handed look-at view matrix
	forward := target.Sub(eye)
	if forward.Norm() < floatEpsilon {
		return nil, errors.New("eye and target coincide")
	}
	forward = forward.Normalize()
	side := forward.Cross(up).Normalize()
	upAdj := side.Cross(forward)

	view := mat.NewDense(4, 4, []float64{
		side.X, side.Y, side.Z, -side.Dot(eye),
		upAdj.X, upAdj.Y, upAdj.Z, -upAdj.Dot(eye),
		-forward.X, -forward.Y, -forward.Z, forward.Dot(eye),
		0, 0, 0, 1,
	})

	fTan := 1 / math.Tan(fovY/2)
	proj := mat.NewDense(4, 4, []float64{
		fTan / aspect, 0, 0, 0,
		0, fTan, 0, 0,
		0, 0, (far + near) / (near - far), 2 * far * near / (near - far),
		0, 0, -1, 0,
	})

	var viewProj mat.Dense
	viewProj.Mul(proj, view)
	return NewFrustumFromMatrix(&viewProj)
}
