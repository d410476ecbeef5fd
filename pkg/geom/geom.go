// Package geom converts between rotation representations and applies fixed
// rigid offsets to positions and angles.
//
// Angles are Euler triples in degrees using the extrinsic "xyz" order, so the
// rotation they describe is R = Rz(yaw) * Ry(pitch) * Rx(roll). Matrices are
// nine values in row-major order. Quaternions are scalar-last (x, y, z, w)
// unless ScalarFirst is requested.
package geom

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Element counts of the encodings accepted by DecodeAngle.
const (
	QuaternionLen = 4
	Matrix6DLen   = 6
	MatrixLen     = 9
	EulerLen      = 3
	PositionLen   = 3

	gimbalEpsilon = 1e-9
)

// QuaternionOrder selects where the scalar part sits in a 4-vector.
type QuaternionOrder int

const (
	ScalarLast QuaternionOrder = iota
	ScalarFirst
)

// ErrDegenerate is returned for inputs that do not describe a rotation,
// such as an all-zero quaternion.
var ErrDegenerate = errors.New("degenerate rotation")

// ShapeError reports an input whose element count does not match what the
// function requires.
type ShapeError struct {
	Func string
	Want []int
	Got  int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: expected %v elements, got %d", e.Func, e.Want, e.Got)
}

func checkLen(fn string, v []float64, want int) error {
	if len(v) != want {
		return &ShapeError{Func: fn, Want: []int{want}, Got: len(v)}
	}
	return nil
}

func deg2rad(d float64) float64 { return d * math.Pi / 180 }
func rad2deg(r float64) float64 { return r * 180 / math.Pi }

// QuaternionToEuler converts a quaternion to degrees.
func QuaternionToEuler(q []float64, order QuaternionOrder) ([]float64, error) {
	if err := checkLen("QuaternionToEuler", q, QuaternionLen); err != nil {
		return nil, err
	}
	n, err := normalize(toNumber(q, order))
	if err != nil {
		return nil, err
	}
	return matrixToEulerRad(numberToMatrix(n)), nil
}

// EulerToQuaternion converts degrees to a unit quaternion.
func EulerToQuaternion(euler []float64, order QuaternionOrder) ([]float64, error) {
	if err := checkLen("EulerToQuaternion", euler, EulerLen); err != nil {
		return nil, err
	}
	return fromNumber(eulerToNumber(euler), order), nil
}

// MatrixToEuler converts a row-major 3x3 rotation matrix to degrees. The
// matrix is passed through a normalized quaternion first, so slightly
// non-orthogonal input is projected onto a nearby rotation.
func MatrixToEuler(m []float64) ([]float64, error) {
	if err := checkLen("MatrixToEuler", m, MatrixLen); err != nil {
		return nil, err
	}
	n, err := matrixToNumber(m)
	if err != nil {
		return nil, err
	}
	return matrixToEulerRad(numberToMatrix(n)), nil
}

// EulerToMatrix returns the row-major rotation matrix for an Euler triple.
func EulerToMatrix(euler []float64) ([]float64, error) {
	if err := checkLen("EulerToMatrix", euler, EulerLen); err != nil {
		return nil, err
	}
	return eulerToMatrix(euler), nil
}

// Matrix6DToEuler decodes the 6D rotation encoding. The six values are the
// first two matrix columns laid out as a row-major 3x2 block; the third
// column is their cross product.
func Matrix6DToEuler(m6 []float64) ([]float64, error) {
	if err := checkLen("Matrix6DToEuler", m6, Matrix6DLen); err != nil {
		return nil, err
	}
	c0 := r3.Vec{X: m6[0], Y: m6[2], Z: m6[4]}
	c1 := r3.Vec{X: m6[1], Y: m6[3], Z: m6[5]}
	c2 := r3.Cross(c0, c1)
	m := []float64{
		c0.X, c1.X, c2.X,
		c0.Y, c1.Y, c2.Y,
		c0.Z, c1.Z, c2.Z,
	}
	return MatrixToEuler(m)
}

// EulerToMatrix6D returns the first two columns of the rotation matrix in the
// layout Matrix6DToEuler accepts.
func EulerToMatrix6D(euler []float64) ([]float64, error) {
	if err := checkLen("EulerToMatrix6D", euler, EulerLen); err != nil {
		return nil, err
	}
	m := eulerToMatrix(euler)
	return []float64{m[0], m[1], m[3], m[4], m[6], m[7]}, nil
}

// DecodeAngle picks the decoding by element count: 4 is a quaternion, 6 the
// 6D encoding, 9 a matrix. Anything else is treated as Euler angles already
// and copied through unchanged.
func DecodeAngle(v []float64, order QuaternionOrder) ([]float64, error) {
	switch len(v) {
	case QuaternionLen:
		return QuaternionToEuler(v, order)
	case Matrix6DLen:
		return Matrix6DToEuler(v)
	case MatrixLen:
		return MatrixToEuler(v)
	default:
		return append([]float64(nil), v...), nil
	}
}

// PositionRotate applies the rotation described by offset (degrees) to pos.
func PositionRotate(pos, offset []float64) ([]float64, error) {
	if err := checkLen("PositionRotate", pos, PositionLen); err != nil {
		return nil, err
	}
	if err := checkLen("PositionRotate", offset, EulerLen); err != nil {
		return nil, err
	}
	rot := r3.Rotation(eulerToNumber(offset))
	p := rot.Rotate(r3.Vec{X: pos[0], Y: pos[1], Z: pos[2]})
	return []float64{p.X, p.Y, p.Z}, nil
}

// PositionSubtract returns a - b elementwise. Both vectors must have the
// same length.
func PositionSubtract(a, b []float64) ([]float64, error) {
	if len(a) != len(b) {
		return nil, &ShapeError{Func: "PositionSubtract", Want: []int{len(a)}, Got: len(b)}
	}
	if len(a) == PositionLen {
		d := r3.Sub(r3.Vec{X: a[0], Y: a[1], Z: a[2]}, r3.Vec{X: b[0], Y: b[1], Z: b[2]})
		return []float64{d.X, d.Y, d.Z}, nil
	}
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out, nil
}

// EulerAdd returns a + b elementwise.
func EulerAdd(a, b []float64) ([]float64, error) {
	if err := checkLen("EulerAdd", a, EulerLen); err != nil {
		return nil, err
	}
	if err := checkLen("EulerAdd", b, EulerLen); err != nil {
		return nil, err
	}
	return []float64{a[0] + b[0], a[1] + b[1], a[2] + b[2]}, nil
}

/* -------------------------------------------------------------------------- */
/*  Internal conversions (radians inside, degrees at the boundary)            */
/* -------------------------------------------------------------------------- */

func toNumber(q []float64, order QuaternionOrder) quat.Number {
	if order == ScalarFirst {
		return quat.Number{Real: q[0], Imag: q[1], Jmag: q[2], Kmag: q[3]}
	}
	return quat.Number{Real: q[3], Imag: q[0], Jmag: q[1], Kmag: q[2]}
}

func fromNumber(n quat.Number, order QuaternionOrder) []float64 {
	if order == ScalarFirst {
		return []float64{n.Real, n.Imag, n.Jmag, n.Kmag}
	}
	return []float64{n.Imag, n.Jmag, n.Kmag, n.Real}
}

func normalize(n quat.Number) (quat.Number, error) {
	norm := quat.Abs(n)
	if norm < gimbalEpsilon || math.IsNaN(norm) {
		return quat.Number{}, ErrDegenerate
	}
	return quat.Scale(1/norm, n), nil
}

// eulerToNumber composes the extrinsic x, y, z rotations: q = qz * qy * qx.
func eulerToNumber(euler []float64) quat.Number {
	half := func(deg float64) (float64, float64) {
		s, c := math.Sincos(deg2rad(deg) / 2)
		return s, c
	}
	sx, cx := half(euler[0])
	sy, cy := half(euler[1])
	sz, cz := half(euler[2])
	qx := quat.Number{Real: cx, Imag: sx}
	qy := quat.Number{Real: cy, Jmag: sy}
	qz := quat.Number{Real: cz, Kmag: sz}
	return quat.Mul(quat.Mul(qz, qy), qx)
}

func eulerToMatrix(euler []float64) []float64 {
	sa, ca := math.Sincos(deg2rad(euler[0]))
	sb, cb := math.Sincos(deg2rad(euler[1]))
	sg, cg := math.Sincos(deg2rad(euler[2]))
	return []float64{
		cg * cb, cg*sb*sa - sg*ca, cg*sb*ca + sg*sa,
		sg * cb, sg*sb*sa + cg*ca, sg*sb*ca - cg*sa,
		-sb, cb * sa, cb * ca,
	}
}

// numberToMatrix expects a unit quaternion.
func numberToMatrix(n quat.Number) []float64 {
	w, x, y, z := n.Real, n.Imag, n.Jmag, n.Kmag
	return []float64{
		1 - 2*(y*y+z*z), 2 * (x*y - z*w), 2 * (x*z + y*w),
		2 * (x*y + z*w), 1 - 2*(x*x+z*z), 2 * (y*z - x*w),
		2 * (x*z - y*w), 2 * (y*z + x*w), 1 - 2*(x*x+y*y),
	}
}

// matrixToNumber extracts a quaternion from the largest of the trace and
// diagonal terms, then normalizes it.
func matrixToNumber(m []float64) (quat.Number, error) {
	m00, m01, m02 := m[0], m[1], m[2]
	m10, m11, m12 := m[3], m[4], m[5]
	m20, m21, m22 := m[6], m[7], m[8]
	trace := m00 + m11 + m22

	var n quat.Number
	switch {
	case trace >= m00 && trace >= m11 && trace >= m22:
		s := math.Sqrt(1+trace) * 2
		if s < gimbalEpsilon || math.IsNaN(s) {
			return quat.Number{}, ErrDegenerate
		}
		n = quat.Number{Real: s / 4, Imag: (m21 - m12) / s, Jmag: (m02 - m20) / s, Kmag: (m10 - m01) / s}
	case m00 >= m11 && m00 >= m22:
		s := math.Sqrt(1+m00-m11-m22) * 2
		if s < gimbalEpsilon || math.IsNaN(s) {
			return quat.Number{}, ErrDegenerate
		}
		n = quat.Number{Real: (m21 - m12) / s, Imag: s / 4, Jmag: (m01 + m10) / s, Kmag: (m02 + m20) / s}
	case m11 >= m22:
		s := math.Sqrt(1-m00+m11-m22) * 2
		if s < gimbalEpsilon || math.IsNaN(s) {
			return quat.Number{}, ErrDegenerate
		}
		n = quat.Number{Real: (m02 - m20) / s, Imag: (m01 + m10) / s, Jmag: s / 4, Kmag: (m12 + m21) / s}
	default:
		s := math.Sqrt(1-m00-m11+m22) * 2
		if s < gimbalEpsilon || math.IsNaN(s) {
			return quat.Number{}, ErrDegenerate
		}
		n = quat.Number{Real: (m10 - m01) / s, Imag: (m02 + m20) / s, Jmag: (m12 + m21) / s, Kmag: s / 4}
	}
	return normalize(n)
}

// matrixToEulerRad reads the extrinsic xyz angles off a rotation matrix and
// returns them in degrees. At gimbal lock the yaw is pinned to zero and the
// roll absorbs the remaining rotation.
func matrixToEulerRad(m []float64) []float64 {
	sinPitch := math.Max(-1, math.Min(1, -m[6]))
	pitch := math.Asin(sinPitch)

	var roll, yaw float64
	if math.Abs(math.Abs(sinPitch)-1) < gimbalEpsilon {
		pitch = math.Copysign(math.Pi/2, sinPitch)
		roll = math.Atan2(-m[5], m[4])
		yaw = 0
	} else {
		roll = math.Atan2(m[7], m[8])
		yaw = math.Atan2(m[3], m[0])
	}
	return []float64{rad2deg(roll), rad2deg(pitch), rad2deg(yaw)}
}
