// Copyright 2025 The bfloat16-go Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bfloat16

import (
	"math"
)

// Class is the IEEE-754 category of a floating point bit pattern.
//
// NaNs are split into quiet and signaling because the encoder treats them
// differently: the generic math.IsNaN style predicates cannot tell the two
// apart, so classification works on the raw bits. A NaN is quiet when the
// most significant mantissa bit is set.
type Class int

const (
	ClassZero Class = iota
	ClassSubnormal
	ClassNormal
	ClassInf
	ClassQuietNaN
	ClassSignalingNaN
)

// String implements fmt.Stringer.
func (c Class) String() string {
	switch c {
	case ClassZero:
		return "zero"
	case ClassSubnormal:
		return "subnormal"
	case ClassNormal:
		return "normal"
	case ClassInf:
		return "inf"
	case ClassQuietNaN:
		return "qnan"
	case ClassSignalingNaN:
		return "snan"
	}
	return "invalid"
}

// ClassifyFloat32 classifies a float32 from its bit pattern. Pure
// function, no side effects.
func ClassifyFloat32(f float32) Class {
	bits := math.Float32bits(f)
	exponent := bits & f32ExponentMask
	mantissa := bits & f32MantissaMask
	switch {
	case exponent == f32ExponentMask:
		if mantissa == 0 {
			return ClassInf
		}
		if mantissa&f32QuietBit != 0 {
			return ClassQuietNaN
		}
		return ClassSignalingNaN
	case exponent == 0:
		if mantissa == 0 {
			return ClassZero
		}
		return ClassSubnormal
	default:
		return ClassNormal
	}
}

// Class classifies the 16 bits pattern itself. The layout being a prefix
// of float32, the categories line up with ClassifyFloat32 of the decoded
// value.
func (b BFloat16) Class() Class {
	exponent := b & exponentMask
	mantissa := b & mantissaMask
	switch {
	case exponent == exponentMask:
		if mantissa == 0 {
			return ClassInf
		}
		if mantissa&quietBit != 0 {
			return ClassQuietNaN
		}
		return ClassSignalingNaN
	case exponent == 0:
		if mantissa == 0 {
			return ClassZero
		}
		return ClassSubnormal
	default:
		return ClassNormal
	}
}
