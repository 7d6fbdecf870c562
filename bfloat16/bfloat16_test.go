// Copyright 2025 The bfloat16-go Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bfloat16

import (
	"fmt"
	"math"
	"testing"
)

func Test_Components(t *testing.T) {
	data := []struct {
		v        uint16
		f        float32
		sign     uint8
		exponent uint8
		mantissa uint8
	}{
		{0x3F80, 1.0, 0, 127, 0},
		{0xBF80, -1.0, 1, 127, 0},
		{0x3F00, 0.5, 0, 126, 0},
		{0xBF00, -0.5, 1, 126, 0},
		{0x4000, 2.0, 0, 128, 0},
		{0xC000, -2.0, 1, 128, 0},
		// https://en.wikipedia.org/wiki/Bfloat16_floating-point_format#Examples
		{0x0000, 0., 0, 0, 0},
		{0x8000, float32(math.Copysign(0, -1)), 1, 0, 0},
		{0x7F7F, 3.3895314e+38, 0, 254, 127},
		{0x0080, 1.175494351e-38, 0, 1, 0},
		{0x4049, 3.140625, 0, 128, 73},    // pi
		{0x3EAB, 0.333984375, 0, 125, 43}, // 1/3
		{0x7F80, float32(math.Inf(0)), 0, 255, 0},
		{0xFF80, float32(math.Inf(-1)), 1, 255, 0},
		{0x7FC0, float32(math.NaN()), 0, 255, 64},
		{0xFFC1, float32(math.NaN()), 1, 255, 65}, // qNaN
	}
	for i, line := range data {
		t.Run(fmt.Sprintf("#%d: %g", i, line.f), func(t *testing.T) {
			bf := FromBits(line.v)
			sign, exponent, mantissa := bf.Components()
			if sign != line.sign || exponent != line.exponent || mantissa != line.mantissa {
				t.Fatalf("%d == %d && %d == %d || %d == %d", sign, line.sign, exponent, line.exponent, mantissa, line.mantissa)
			}
			if actual := bf.Float32(); actual != line.f {
				if !math.IsNaN(float64(actual)) || !math.IsNaN(float64(line.f)) {
					t.Fatalf("%g != %g", actual, line.f)
				}
			}
			if math.Signbit(float64(bf.Float32())) != (line.sign == 1) {
				t.Fatal("sign bit lost in decode")
			}
		})
	}
}

func Test_FromFloat32(t *testing.T) {
	data := []struct {
		f    float32
		want uint16
	}{
		{0., 0x0000},
		{float32(math.Copysign(0, -1)), 0x8000},
		{1., 0x3F80},
		{-1., 0xBF80},
		{0.5, 0x3F00},
		{2., 0x4000},
		{-2., 0xC000},
		{256., 0x4380},
		{-256., 0xC380},
		// Truncation: low 16 bits of float32 pi (0x40490FDB) are below one
		// half, so the mantissa is cut.
		{math.Pi, 0x4049},
		// Rounding up: low 16 bits of 1/3 (0x3EAAAAAB) are above one half.
		{1.0 / 3.0, 0x3EAB},
		// Exact ties round to the even mantissa.
		{math.Float32frombits(0x3F808000), 0x3F80},
		{math.Float32frombits(0x3F818000), 0x3F82},
		// Just above the tie rounds up, just below truncates.
		{math.Float32frombits(0x3F808001), 0x3F81},
		{math.Float32frombits(0x3F807FFF), 0x3F80},
		{float32(math.Inf(0)), 0x7F80},
		{float32(math.Inf(-1)), 0xFF80},
		{float32(math.NaN()), 0x7FC0},
	}
	for i, line := range data {
		t.Run(fmt.Sprintf("#%d: %g", i, line.f), func(t *testing.T) {
			if got := FromFloat32(line.f); got.Bits() != line.want {
				t.Fatalf("want=%#04x  got=%#04x", line.want, got.Bits())
			}
		})
	}
}

func Test_ClassifyFloat32(t *testing.T) {
	data := []struct {
		f    float32
		want Class
	}{
		{0., ClassZero},
		{float32(math.Copysign(0, -1)), ClassZero},
		{1., ClassNormal},
		{-math.Pi, ClassNormal},
		{math.MaxFloat32, ClassNormal},
		{math.SmallestNonzeroFloat32, ClassSubnormal},
		{math.Float32frombits(0x807FFFFF), ClassSubnormal},
		{float32(math.Inf(0)), ClassInf},
		{float32(math.Inf(-1)), ClassInf},
		{float32(math.NaN()), ClassQuietNaN},
		{math.Float32frombits(0x7F800001), ClassSignalingNaN},
		{math.Float32frombits(0xFF810000), ClassSignalingNaN},
		{math.Float32frombits(0xFFC00000), ClassQuietNaN},
	}
	for i, line := range data {
		t.Run(fmt.Sprintf("#%d: %s", i, line.want), func(t *testing.T) {
			if got := ClassifyFloat32(line.f); got != line.want {
				t.Fatalf("want=%s  got=%s", line.want, got)
			}
		})
	}
}

func Test_Class_16bit(t *testing.T) {
	data := []struct {
		v    uint16
		want Class
	}{
		{0x0000, ClassZero},
		{0x8000, ClassZero},
		{0x0001, ClassSubnormal},
		{0x807F, ClassSubnormal},
		{0x0080, ClassNormal},
		{0x3F80, ClassNormal},
		{0x7F7F, ClassNormal},
		{0x7F80, ClassInf},
		{0xFF80, ClassInf},
		{0x7FC0, ClassQuietNaN},
		{0xFFC1, ClassQuietNaN},
		{0x7F81, ClassSignalingNaN},
		{0xFFBF, ClassSignalingNaN},
	}
	for i, line := range data {
		t.Run(fmt.Sprintf("#%d: %#04x", i, line.v), func(t *testing.T) {
			if got := FromBits(line.v).Class(); got != line.want {
				t.Fatalf("want=%s  got=%s", line.want, got)
			}
			// The 16 bits layout is a prefix of float32, so classifying
			// the decoded value must agree.
			if got := ClassifyFloat32(FromBits(line.v).Float32()); got != line.want {
				t.Fatalf("decoded: want=%s  got=%s", line.want, got)
			}
		})
	}
}

func Test_Constants(t *testing.T) {
	if f := MaxValue.Float32(); f != 3.38953139e38 {
		t.Fatalf("MaxValue = %g", f)
	}
	if f := SmallestNormal.Float32(); f != math.SmallestNonzeroFloat32*0x1p23 {
		t.Fatalf("SmallestNormal = %g", f)
	}
	if f := Epsilon.Float32(); f != 0x1p-7 {
		t.Fatalf("Epsilon = %g", f)
	}
	if One.Float32() != 1. || NegZero.Float32() != 0. || !NegZero.Signbit() {
		t.Fatal("One or NegZero")
	}
	if !NaN.IsNaN() || NaN.Class() != ClassQuietNaN {
		t.Fatal("NaN")
	}
	if !Inf.IsInf() || !NegInf.IsInf() || NegInf.Float32() != float32(math.Inf(-1)) {
		t.Fatal("Inf")
	}
}

func Test_Bytes(t *testing.T) {
	// little endian forever.
	b := []byte{0x80, 0x3F, 0x49, 0x40}
	if got := Decode(b); got != One {
		t.Fatalf("%#04x", got.Bits())
	}
	if got := Decode(b[2:]); got.Float32() != 3.140625 {
		t.Fatalf("%g", got.Float32())
	}
	if got := One.Append(nil); got[0] != 0x80 || got[1] != 0x3F {
		t.Fatalf("%v", got)
	}

	src := []float32{0, 1, -1, math.Pi, float32(math.Inf(1))}
	packed := EncodeFloat32s(nil, src)
	if len(packed) != 2*len(src) {
		t.Fatalf("len=%d", len(packed))
	}
	back := DecodeFloat32s(nil, packed)
	want := []float32{0, 1, -1, 3.140625, float32(math.Inf(1))}
	for i := range want {
		if back[i] != want[i] {
			t.Errorf("#%d: want=%g  got=%g", i, want[i], back[i])
		}
	}
	// Bits form agrees with the packed form.
	raw := EncodeFloat32sBits(nil, src)
	for i, r := range raw {
		if got := Decode(packed[2*i:]); got != r {
			t.Errorf("#%d: %#04x != %#04x", i, got.Bits(), r.Bits())
		}
	}
	back2 := Float32sFromBits(nil, raw)
	for i := range want {
		if back2[i] != want[i] {
			t.Errorf("#%d: want=%g  got=%g", i, want[i], back2[i])
		}
	}
}

func Benchmark_FromFloat32(b *testing.B) {
	v := float32(1.234567)
	var sink BFloat16
	for i := 0; i < b.N; i++ {
		sink = FromFloat32(v)
	}
	_ = sink
}

func Benchmark_Float32(b *testing.B) {
	v := FromBits(0x3F9D)
	var sink float32
	for i := 0; i < b.N; i++ {
		sink = v.Float32()
	}
	_ = sink
}
