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
	"golang.org/x/exp/constraints"

	"github.com/erigontech/kvview/kv/internal/intmath"
)

// AutoInc yields a strictly increasing next key given the current maximum
// encoded key in a tree, for Tree.Push. Zero is the key assigned to the
// first push into an empty tree.
type AutoInc[K any] interface {
	Zero() K
	Next(cur K) (K, error)
}

type uintAutoInc[K constraints.Unsigned] struct{}

func (uintAutoInc[K]) Zero() K { return 0 }

func (uintAutoInc[K]) Next(cur K) (K, error) {
	next := cur + 1
	if next == 0 {
		// Unsigned wraparound: cur was already the type's maximum value.
		return 0, &AutoIncOverflowError{}
	}
	return next, nil
}

// Uint8AutoInc, Uint16AutoInc, Uint32AutoInc, Uint64AutoInc and UintAutoInc
// are the default AutoInc implementations provided for every unsigned
// integer width plus the platform-sized uint.
func Uint8AutoInc() AutoInc[uint8]   { return uintAutoInc[uint8]{} }
func Uint16AutoInc() AutoInc[uint16] { return uintAutoInc[uint16]{} }
func Uint32AutoInc() AutoInc[uint32] { return uintAutoInc[uint32]{} }
func UintAutoInc() AutoInc[uint]     { return uintAutoInc[uint]{} }

type uint64AutoInc struct{}

func (uint64AutoInc) Zero() uint64 { return 0 }

func (uint64AutoInc) Next(cur uint64) (uint64, error) {
	next, overflowed := intmath.SafeAdd(cur, 1)
	if overflowed {
		return 0, &AutoIncOverflowError{}
	}
	return next, nil
}

// Uint64AutoInc uses intmath.SafeAdd directly rather than the
// wraparound-detection trick the other widths rely on, since bits.Add64
// already carries the overflow flag out for the widest unsigned type.
func Uint64AutoInc() AutoInc[uint64] { return uint64AutoInc{} }
