package spatialmath

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"
)

// RotationMatrix is a 3x3 matrix in row major order that describes a rigid
// rotation of 3D space.
type RotationMatrix struct {
	mat [9]float64
}

// NewRotationMatrix creates a rotation matrix from the given row major slice,
// rejecting input of the wrong length.
func NewRotationMatrix(m []float64) (*RotationMatrix, error) {
	if len(m) != 9 {
		return nil, errors.Errorf("input slice has %d elements, need exactly 9", len(m))
	}
	mat := [9]float64{m[0], m[1], m[2], m[3], m[4], m[5], m[6], m[7], m[8]}
	return &RotationMatrix{mat}, nil
}

// NewZeroRotationMatrix returns the identity rotation.
func NewZeroRotationMatrix() *RotationMatrix {
	return &RotationMatrix{[9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}}
}

// NewRotationMatrixFromQuaternion converts a unit quaternion into the
// equivalent rotation matrix.
func NewRotationMatrixFromQuaternion(q quat.Number) *RotationMatrix {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return &RotationMatrix{[9]float64{
		1 - 2*y*y - 2*z*z, 2*x*y - 2*z*w, 2*x*z + 2*y*w,
		2*x*y + 2*z*w, 1 - 2*x*x - 2*z*z, 2*y*z - 2*x*w,
		2*x*z - 2*y*w, 2*y*z + 2*x*w, 1 - 2*x*x - 2*y*y,
	}}
}

// Row returns the a row of the matrix as an r3.Vector.
func (rm *RotationMatrix) Row(row int) r3.Vector {
	return r3.Vector{
		X: rm.mat[3*row],
		Y: rm.mat[3*row+1],
		Z: rm.mat[3*row+2],
	}
}

// Col returns the a column of the matrix as an r3.Vector. For a rotation
// matrix the columns are the images of the coordinate axes.
func (rm *RotationMatrix) Col(col int) r3.Vector {
	return r3.Vector{
		X: rm.mat[col],
		Y: rm.mat[col+3],
		Z: rm.mat[col+6],
	}
}

// At returns the float corresponding to the element at the given position.
func (rm *RotationMatrix) At(row, col int) float64 {
	return rm.mat[3*row+col]
}

// Transpose returns the transpose of the matrix, which for a rotation matrix
// is also its inverse.
func (rm *RotationMatrix) Transpose() *RotationMatrix {
	m := rm.mat
	return &RotationMatrix{[9]float64{
		m[0], m[3], m[6],
		m[1], m[4], m[7],
		m[2], m[5], m[8],
	}}
}

// RowMajor returns the matrix elements in row major order.
func (rm *RotationMatrix) RowMajor() [9]float64 {
	return rm.mat
}

// Mul returns the matrix applied to the given vector.
func (rm *RotationMatrix) Mul(v r3.Vector) r3.Vector {
	return r3.Vector{
		X: rm.mat[0]*v.X + rm.mat[1]*v.Y + rm.mat[2]*v.Z,
		Y: rm.mat[3]*v.X + rm.mat[4]*v.Y + rm.mat[5]*v.Z,
		Z: rm.mat[6]*v.X + rm.mat[7]*v.Y + rm.mat[8]*v.Z,
	}
}
