// Copyright 2025 The bfloat16-go Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package bf16stats analyzes tensors stored as, or convertible to,
// bfloat16.
//
// It answers two questions about a model file: how the bit budget of
// existing bfloat16 tensors is actually used, and what a float32 tensor
// would lose if repacked as bfloat16.
package bf16stats

import (
	"fmt"
	"math"

	"github.com/biovault/bfloat16-go/bfloat16"
)

// Model is the analyzed data for a whole model.
type Model struct {
	Tensors []AnalyzedTensor `json:"tensors"`
}

// ClassCounts tallies values per IEEE-754 category.
type ClassCounts struct {
	Zero         int64 `json:"zero"`
	Subnormal    int64 `json:"subnormal"`
	Normal       int64 `json:"normal"`
	Inf          int64 `json:"inf"`
	QuietNaN     int64 `json:"qnan"`
	SignalingNaN int64 `json:"snan"`
}

// Add tallies one value.
func (c *ClassCounts) Add(cl bfloat16.Class) {
	switch cl {
	case bfloat16.ClassZero:
		c.Zero++
	case bfloat16.ClassSubnormal:
		c.Subnormal++
	case bfloat16.ClassNormal:
		c.Normal++
	case bfloat16.ClassInf:
		c.Inf++
	case bfloat16.ClassQuietNaN:
		c.QuietNaN++
	case bfloat16.ClassSignalingNaN:
		c.SignalingNaN++
	}
}

// Finite returns the number of values usable in arithmetic.
func (c *ClassCounts) Finite() int64 {
	return c.Zero + c.Subnormal + c.Normal
}

// AnalyzedTensor contains the stats coming from one bfloat16 tensor.
type AnalyzedTensor struct {
	Name  string `json:"name"`
	NumEl int64  `json:"numel"` // Number of weights.
	// Avg, Min and Max cover finite values only.
	Avg      float32     `json:"avg"`
	Min      float32     `json:"min"`
	Max      float32     `json:"max"`
	Classes  ClassCounts `json:"classes"`
	Sign     CountSet    `json:"s"`
	Exponent CountSet    `json:"exp"`
	Mantissa CountSet    `json:"man"`
}

// Bytes returns the number of bytes the tensor occupies.
func (a *AnalyzedTensor) Bytes() int64 {
	return a.NumEl * 2
}

// WastedBits estimates the bits per weight that carry no information,
// from the number of distinct values seen in each field.
func (a *AnalyzedTensor) WastedBits() int {
	wasted := 0
	wasted += 1 - usedBits(a.Sign.Effective())
	wasted += 8 - usedBits(a.Exponent.Effective())
	wasted += 7 - usedBits(a.Mantissa.Effective())
	return wasted
}

func usedBits(effective int32) int {
	if effective <= 1 {
		return 0
	}
	return int(math.Ceil(math.Log2(float64(effective))))
}

// decodeLookup trades 256kiB for skipping the shift and float
// reinterpretation in the hot loop.
var decodeLookup [1 << 16]float32

func init() {
	for i := range decodeLookup {
		decodeLookup[i] = bfloat16.FromBits(uint16(i)).Float32()
	}
}

// AnalyzeBF16 analyzes a tensor stored as packed little endian bfloat16.
func AnalyzeBF16(name string, data []byte) (AnalyzedTensor, error) {
	if len(data)%2 != 0 {
		return AnalyzedTensor{}, fmt.Errorf("%s: odd payload length %d", name, len(data))
	}
	a := AnalyzedTensor{
		Name:     name,
		NumEl:    int64(len(data) / 2),
		Min:      float32(math.MaxFloat32),
		Max:      float32(-math.MaxFloat32),
		Sign:     CountSet{Counts: make([]uint32, 1<<1)},
		Exponent: CountSet{Counts: make([]uint32, 1<<8)},
		Mantissa: CountSet{Counts: make([]uint32, 1<<7)},
	}
	total := 0.
	for i := 0; i+1 < len(data); i += 2 {
		b := bfloat16.Decode(data[i:])
		sign, exponent, mantissa := b.Components()
		a.Sign.Add(int(sign))
		a.Exponent.Add(int(exponent))
		a.Mantissa.Add(int(mantissa))
		cl := b.Class()
		a.Classes.Add(cl)
		if cl == bfloat16.ClassInf || cl == bfloat16.ClassQuietNaN || cl == bfloat16.ClassSignalingNaN {
			continue
		}
		v := decodeLookup[b.Bits()]
		total += float64(v)
		if v < a.Min {
			a.Min = v
		}
		if v > a.Max {
			a.Max = v
		}
	}
	if finite := a.Classes.Finite(); finite != 0 {
		a.Avg = float32(total / float64(finite))
	} else {
		a.Min = 0
		a.Max = 0
	}
	return a, nil
}

// ConversionReport describes what packing a float32 tensor as bfloat16
// loses.
type ConversionReport struct {
	Name  string `json:"name"`
	NumEl int64  `json:"numel"`
	// MaxAbsError is over values that stay finite.
	MaxAbsError float64 `json:"max_abs_error"`
	// Flushed counts denormal inputs turned into signed zero.
	Flushed int64 `json:"flushed"`
	// Overflowed counts finite inputs rounded to Inf.
	Overflowed int64 `json:"overflowed"`
	// Quieted counts signaling NaNs turned quiet.
	Quieted int64 `json:"quieted"`
	// Patterns records which of the 65536 bfloat16 patterns the converted
	// tensor uses.
	Patterns BitSet `json:"patterns"`
}

// Distinct returns the number of distinct bfloat16 values in the
// converted tensor.
func (r *ConversionReport) Distinct() int32 {
	return r.Patterns.Effective()
}

// Lossless reports whether every value survived unchanged.
func (r *ConversionReport) Lossless() bool {
	return r.MaxAbsError == 0 && r.Flushed == 0 && r.Overflowed == 0 && r.Quieted == 0
}

// ConvertFloat32 packs a tensor of little endian float32 into little
// endian bfloat16, reporting the damage done.
func ConvertFloat32(name string, data []byte) ([]byte, ConversionReport, error) {
	if len(data)%4 != 0 {
		return nil, ConversionReport{}, fmt.Errorf("%s: float32 payload length %d not a multiple of 4", name, len(data))
	}
	r := ConversionReport{Name: name, NumEl: int64(len(data) / 4)}
	r.Patterns.Resize(1 << 16)
	packed := make([]byte, 0, len(data)/2)
	for i := 0; i+3 < len(data); i += 4 {
		f := math.Float32frombits(uint32(data[i]) | uint32(data[i+1])<<8 | uint32(data[i+2])<<16 | uint32(data[i+3])<<24)
		b := bfloat16.FromFloat32(f)
		packed = b.Append(packed)
		r.Patterns.Set(int(b.Bits()))
		switch bfloat16.ClassifyFloat32(f) {
		case bfloat16.ClassSubnormal:
			r.Flushed++
		case bfloat16.ClassSignalingNaN:
			r.Quieted++
		case bfloat16.ClassNormal:
			if b.IsInf() {
				r.Overflowed++
				continue
			}
			fallthrough
		case bfloat16.ClassZero:
			if e := math.Abs(float64(f) - b.Float64()); e > r.MaxAbsError {
				r.MaxAbsError = e
			}
		}
	}
	return packed, r, nil
}
