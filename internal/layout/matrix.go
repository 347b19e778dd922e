// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package layout

import "math"

// Matrix is an affine transform [a b c d e f] mapping (x, y) to
// (a·x + c·y + e, b·x + d·y + f), the PDF convention.
type Matrix [6]float64

// Identity returns the identity transform.
func Identity() Matrix {
	return Matrix{1, 0, 0, 1, 0, 0}
}

// ScaleMatrix returns a uniform scale by s.
func ScaleMatrix(s float64) Matrix {
	return Matrix{s, 0, 0, s, 0, 0}
}

// ViewportMatrix maps PDF user space (origin bottom-left, y up) of a page
// with the given native height into display space at scale s (origin
// top-left, y down).
func ViewportMatrix(s, pageHeight float64) Matrix {
	return Matrix{s, 0, 0, -s, 0, pageHeight * s}
}

// Multiply returns the transform that applies m first and then o.
func (m Matrix) Multiply(o Matrix) Matrix {
	return Matrix{
		m[0]*o[0] + m[1]*o[2],
		m[0]*o[1] + m[1]*o[3],
		m[2]*o[0] + m[3]*o[2],
		m[2]*o[1] + m[3]*o[3],
		m[4]*o[0] + m[5]*o[2] + o[4],
		m[4]*o[1] + m[5]*o[3] + o[5],
	}
}

// Apply transforms the point (x, y).
func (m Matrix) Apply(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// FontHeight returns the length of the transformed unit y vector, which is
// the rendered font size for a text matrix.
func (m Matrix) FontHeight() float64 {
	return math.Hypot(m[2], m[3])
}

// IsZero reports whether every element is zero, which marks a missing
// transform in decoded input.
func (m Matrix) IsZero() bool {
	return m == Matrix{}
}
