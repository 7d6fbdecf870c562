// Copyright 2025 The bfloat16-go Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bfloat16

import (
	"encoding/binary"
	"math"
)

// Decode decodes a little endian value.
func Decode(b []byte) BFloat16 {
	return BFloat16(binary.LittleEndian.Uint16(b))
}

// Append appends the little endian encoding to dst.
func (b BFloat16) Append(dst []byte) []byte {
	return binary.LittleEndian.AppendUint16(dst, uint16(b))
}

// EncodeFloat32s appends the packed little endian encoding of each value
// in src to dst. The output is half the size of the float32 payload.
func EncodeFloat32s(dst []byte, src []float32) []byte {
	for _, f := range src {
		dst = FromFloat32(f).Append(dst)
	}
	return dst
}

// DecodeFloat32s appends the decoded value of each packed little endian
// pattern in src to dst. A trailing odd byte is ignored.
func DecodeFloat32s(dst []float32, src []byte) []float32 {
	for i := 0; i+1 < len(src); i += 2 {
		dst = append(dst, Decode(src[i:]).Float32())
	}
	return dst
}

// EncodeFloat32sBits is EncodeFloat32s without the byte packing: the
// encoding of each value in src is appended to dst as raw patterns.
func EncodeFloat32sBits(dst []BFloat16, src []float32) []BFloat16 {
	for _, f := range src {
		dst = append(dst, FromFloat32(f))
	}
	return dst
}

// Float32sFromBits converts raw patterns back to float32, appending to
// dst.
func Float32sFromBits(dst []float32, src []BFloat16) []float32 {
	for _, b := range src {
		dst = append(dst, math.Float32frombits(uint32(b)<<16))
	}
	return dst
}
