// Copyright 2025 The kvview Authors
// This file is part of kvview.
//
// kvview is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// kvview is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with kvview. If not, see <http://www.gnu.org/licenses/>.

package kv

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"golang.org/x/exp/constraints"

	"github.com/erigontech/kvview/kv/internal/intmath"
)

// BinaryCodec is a fixed-width, big-endian encoding for any built-in
// integer type. Big-endian
// bytes are order-preserving for unsigned integers by construction; for
// signed integers the sign bit is flipped so two's-complement negative
// values still sort before non-negative ones byte-lexicographically. This
// is the same trick bbolt and badger each hand-roll internally for
// auto-increment keys — no pack dependency packages it as a library, so it
// lives here as a small, directly-tested stdlib routine.
type BinaryCodec[T constraints.Integer] struct{}

func (BinaryCodec[T]) width() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

func (c BinaryCodec[T]) Encode(v T) ([]byte, error) {
	n := c.width()
	u := toOrderedUint(v, n)
	buf := make([]byte, n)
	switch n {
	case 1:
		buf[0] = byte(u)
	case 2:
		binary.BigEndian.PutUint16(buf, uint16(u))
	case 4:
		binary.BigEndian.PutUint32(buf, uint32(u))
	case 8:
		binary.BigEndian.PutUint64(buf, u)
	default:
		return nil, fmt.Errorf("kvview: BinaryCodec: unsupported integer width %d", n)
	}
	return buf, nil
}

func (c BinaryCodec[T]) Decode(b []byte) (T, error) {
	var zero T
	n := c.width()
	if len(b) != n {
		return zero, fmt.Errorf("kvview: BinaryCodec: expected %d bytes, got %d", n, len(b))
	}
	var u uint64
	switch n {
	case 1:
		u = uint64(b[0])
	case 2:
		u = uint64(binary.BigEndian.Uint16(b))
	case 4:
		u = uint64(binary.BigEndian.Uint32(b))
	case 8:
		u = binary.BigEndian.Uint64(b)
	default:
		return zero, fmt.Errorf("kvview: BinaryCodec: unsupported integer width %d", n)
	}
	return fromOrderedUint[T](u, n), nil
}

// isSignedType reports whether T is a signed integer type by checking
// whether 0-1 underflows (unsigned) or goes negative (signed).
func isSignedType[T constraints.Integer]() bool {
	return T(0)-T(1) < T(0)
}

func maskToWidth(u uint64, n int) uint64 {
	switch n {
	case 1:
		return u & intmath.MaxUint8
	case 2:
		return u & intmath.MaxUint16
	case 4:
		return u & intmath.MaxUint32
	default:
		return u & intmath.MaxUint64
	}
}

func toOrderedUint[T constraints.Integer](v T, n int) uint64 {
	u := maskToWidth(uint64(v), n)
	if isSignedType[T]() {
		u ^= uint64(1) << uint(8*n-1)
	}
	return u
}

func fromOrderedUint[T constraints.Integer](u uint64, n int) T {
	if isSignedType[T]() {
		signBit := uint64(1) << uint(8*n-1)
		u ^= signBit
		if u&signBit != 0 && n < 8 {
			u |= ^uint64(0) << uint(8*n)
		}
	}
	return T(u)
}
