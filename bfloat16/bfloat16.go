// Copyright 2025 The bfloat16-go Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package bfloat16 implements the google brain 16 bits floating point
// format: a float32 with the low 16 mantissa bits cut off.
//
// The format keeps the full float32 exponent, so decoding back to float32
// is exact. Encoding follows the Intel BFLOAT16 hardware numerics
// definition: round-to-nearest-even on the mantissa, denormals flushed to
// signed zero, signaling NaNs quieted.
//
// See https://en.wikipedia.org/wiki/Bfloat16_floating-point_format
package bfloat16

import (
	"math"
)

const (
	signOffset     = 15
	exponentOffset = 7

	signMask     = 0x8000
	exponentMask = 0x7F80
	mantissaMask = 0x007F
	// Most significant mantissa bit. Set on quiet NaNs.
	quietBit = 0x0040

	// https://en.wikipedia.org/wiki/Single-precision_floating-point_format
	f32SignOffset     = 31
	f32ExponentOffset = 23

	f32SignMask     = 0x8000_0000
	f32ExponentMask = 0x7F80_0000
	f32MantissaMask = 0x007F_FFFF
	f32QuietBit     = 0x0040_0000
)

// BFloat16 represents a google brain 16 float as its raw bit pattern.
//
// The zero value is +0. Values are plain scalars: copy and compare freely,
// use from any goroutine.
type BFloat16 uint16

// Common bit patterns.
const (
	Zero    BFloat16 = 0x0000
	NegZero BFloat16 = 0x8000
	One     BFloat16 = 0x3F80
	Inf     BFloat16 = 0x7F80
	NegInf  BFloat16 = 0xFF80
	// NaN is the canonical quiet NaN.
	NaN BFloat16 = 0x7FC0
	// MaxValue is the largest finite value, 3.38953139e38. Slightly below
	// math.MaxFloat32: float32 values above it round to Inf.
	MaxValue BFloat16 = 0x7F7F
	// SmallestNormal is 2^-126, the same as the smallest normal float32.
	SmallestNormal BFloat16 = 0x0080
	// Epsilon is 2^-7, the gap between 1.0 and the next larger value.
	Epsilon BFloat16 = 0x3C00
)

// FromFloat32 encodes a float32.
//
// The encoding is total: every float32 bit pattern has a defined result.
// It is lossy in four documented ways: the mantissa is rounded to nearest
// even over its low 16 bits, denormals are flushed to signed zero,
// magnitudes above MaxValue round to Inf, and signaling NaNs come out
// quiet. All arithmetic is done on the raw bits so the result does not
// depend on the hardware rounding mode.
func FromFloat32(f float32) BFloat16 {
	bits := math.Float32bits(f)
	switch {
	case bits&f32ExponentMask == f32ExponentMask:
		if bits&f32MantissaMask == 0 {
			// Inf.
			return BFloat16(bits >> 16)
		}
		// NaN. Truncating can leave the 7 bits mantissa at zero, which
		// would read back as Inf, so the quiet bit is forced on. This also
		// quiets signaling NaNs, matching what hardware FMA units do.
		return BFloat16(bits>>16) | quietBit
	case bits&f32ExponentMask == 0:
		// Zero or denormal. Denormals are treated as zero both as sources
		// and results, per the Intel hardware numerics definition.
		return BFloat16(bits>>16) & signMask
	default:
		// Round to nearest even: adding 0x7FFF rounds the low 16 bits up
		// when they exceed one half, and the extra low bit of the kept
		// mantissa breaks exact ties towards even. The carry propagates
		// into the exponent field on mantissa overflow, which takes
		// MaxFloat32 to Inf.
		bits += 0x7FFF + ((bits >> 16) & 1)
		return BFloat16(bits >> 16)
	}
}

// FromBits returns the value for a raw bit pattern, verbatim.
//
// No validation happens: the caller asserts the pattern is meaningful.
// Every pattern decodes to a defined float32, but a signaling NaN pattern
// built this way will not survive a decode/encode round trip, as encoding
// quiets it.
func FromBits(raw uint16) BFloat16 {
	return BFloat16(raw)
}

// integer matches every standard integer type.
type integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// FromInt encodes an integer.
//
// The integer is first widened to float32, itself lossy beyond 2^24, then
// encoded. The result is bit for bit the same as
// FromFloat32(float32(v)).
func FromInt[T integer](v T) BFloat16 {
	return FromFloat32(float32(v))
}

// Bits returns the raw bit pattern, for persistence by storage layers.
func (b BFloat16) Bits() uint16 {
	return uint16(b)
}

// Float32 returns the float32 equivalent. Exact for every bit pattern:
// the 16 bits are the upper half of the float32 layout.
func (b BFloat16) Float32() float32 {
	return math.Float32frombits(uint32(b) << 16)
}

// Float64 returns the float64 equivalent. Exact, same as Float32.
func (b BFloat16) Float64() float64 {
	return float64(b.Float32())
}

// SetFloat32 reassigns in place. Same bits as FromFloat32.
func (b *BFloat16) SetFloat32(f float32) {
	*b = FromFloat32(f)
}

// SetBits reassigns in place from a raw pattern. Same bits as FromBits.
func (b *BFloat16) SetBits(raw uint16) {
	*b = FromBits(raw)
}

// Components returns the sign, exponent and mantissa bits separated.
func (b BFloat16) Components() (uint8, uint8, uint8) {
	sign := b >> signOffset
	exponent := (b >> exponentOffset) & (exponentMask >> exponentOffset)
	mantissa := b & mantissaMask
	return uint8(sign), uint8(exponent), uint8(mantissa)
}

// Signbit reports whether the sign bit is set. True for -0 and for NaNs
// with a negative sign.
func (b BFloat16) Signbit() bool {
	return b&signMask != 0
}

// IsNaN reports whether b is a NaN, quiet or signaling.
func (b BFloat16) IsNaN() bool {
	return b&exponentMask == exponentMask && b&mantissaMask != 0
}

// IsInf reports whether b is an infinity, in either direction.
func (b BFloat16) IsInf() bool {
	return b&^signMask == Inf
}
