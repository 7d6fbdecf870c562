// Copyright 2025 The bfloat16-go Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bf16stats

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"math/bits"
)

// BitSet records which indices occurred.
//
// It is designed to be densely stored in JSON: a tensor touching a few
// hundred of the 65536 possible patterns serializes to a couple kiB of
// base64 instead of an integer array.
type BitSet struct {
	Len  int
	Bits []uint64
}

// Resize grows or shrinks the set to l bits, keeping existing data.
func (b *BitSet) Resize(l int) {
	d := make([]uint64, (l+63)/64)
	copy(d, b.Bits)
	b.Len = l
	b.Bits = d
}

func (b *BitSet) Set(i int) {
	b.Bits[i/64] |= 1 << (i % 64)
}

func (b *BitSet) Get(i int) bool {
	return b.Bits[i/64]&(1<<(i%64)) != 0
}

// Effective returns the number of set bits.
func (b *BitSet) Effective() int32 {
	o := 0
	for _, v := range b.Bits {
		o += bits.OnesCount64(v)
	}
	return int32(o)
}

// MarshalJSON implements json.Marshaler.
//
// The first byte is the number of valid bits in the last uint64. If 0, it
// means 64.
func (b *BitSet) MarshalJSON() ([]byte, error) {
	var dst []byte
	if b.Len != 0 {
		d := make([]byte, 1, len(b.Bits)*8+1)
		d[0] = byte(b.Len % 64)
		var buf [8]byte
		for _, v := range b.Bits {
			binary.LittleEndian.PutUint64(buf[:], v)
			d = append(d, buf[:]...)
		}
		dst = make([]byte, base64.RawStdEncoding.EncodedLen(len(d)))
		base64.RawStdEncoding.Encode(dst, d)
	}
	return json.Marshal(string(dst))
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *BitSet) UnmarshalJSON(data []byte) error {
	s := ""
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if len(s) == 0 {
		b.Len = 0
		b.Bits = nil
		return nil
	}
	d, err := base64.RawStdEncoding.DecodeString(s)
	if err != nil {
		return err
	}
	if len(d) == 0 || len(d)%8 != 1 {
		return errors.New("invalid BitSet encoding")
	}
	last := d[0]
	if last > 63 {
		return errors.New("invalid BitSet encoding")
	}
	if last == 0 {
		last = 64
	}
	l := len(d) / 8
	b.Bits = make([]uint64, l)
	for i := range b.Bits {
		b.Bits[i] = binary.LittleEndian.Uint64(d[1+i*8 : 9+i*8])
	}
	b.Len = (l-1)*64 + int(last)
	return nil
}

// CountSet is a histogram over a fixed index space.
//
// Counts saturate at math.MaxUint32 instead of wrapping; tensors large
// enough to hit that still report the right set of values seen.
type CountSet struct {
	Counts []uint32
}

// Resize grows or shrinks the histogram to l buckets, keeping existing
// counts.
func (c *CountSet) Resize(l int) {
	d := make([]uint32, l)
	copy(d, c.Counts)
	c.Counts = d
}

func (c *CountSet) Add(i int) {
	if c.Counts[i] != 0xFFFFFFFF {
		c.Counts[i]++
	}
}

func (c *CountSet) Get(i int) uint32 {
	return c.Counts[i]
}

// Effective returns the number of non-zero buckets.
func (c *CountSet) Effective() int32 {
	o := int32(0)
	for _, v := range c.Counts {
		if v != 0 {
			o++
		}
	}
	return o
}

// MarshalJSON implements json.Marshaler.
func (c *CountSet) MarshalJSON() ([]byte, error) {
	var dst []byte
	if len(c.Counts) != 0 {
		d := make([]byte, len(c.Counts)*4)
		for i, v := range c.Counts {
			binary.LittleEndian.PutUint32(d[i*4:], v)
		}
		dst = make([]byte, base64.RawStdEncoding.EncodedLen(len(d)))
		base64.RawStdEncoding.Encode(dst, d)
	}
	return json.Marshal(string(dst))
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *CountSet) UnmarshalJSON(data []byte) error {
	s := ""
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if len(s) == 0 {
		c.Counts = nil
		return nil
	}
	d, err := base64.RawStdEncoding.DecodeString(s)
	if err != nil {
		return err
	}
	if len(d) == 0 || len(d)%4 != 0 {
		return errors.New("invalid CountSet encoding")
	}
	c.Counts = make([]uint32, len(d)/4)
	for i := range c.Counts {
		c.Counts[i] = binary.LittleEndian.Uint32(d[i*4 : i*4+4])
	}
	return nil
}
