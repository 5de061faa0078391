// Copyright 2017 The go-ethereum Authors
// (original work)
// Copyright 2024 The Erigon Authors
// (modifications)
// Copyright 2025 The kvview Authors
// (further modifications)
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

// Package intmath carries the integer-limit constants and overflow-checked
// arithmetic kvview's AutoInc and binary codec need, adapted down from
// erigon-lib/common/math's integer helpers to just what this library uses.
package intmath

import "math/bits"

// Integer limit values: the MaxUint constants back the binary codec's
// width masking, and the MinInt constants serve its signed-bound tests.
const (
	MinInt8  = -1 << 7
	MinInt16 = -1 << 15
	MinInt32 = -1 << 31
	MinInt64 = -1 << 63

	MaxUint8  = 1<<8 - 1
	MaxUint16 = 1<<16 - 1
	MaxUint32 = 1<<32 - 1
	MaxUint64 = 1<<64 - 1
)

// SafeAdd returns x+y and whether the addition overflowed a uint64.
func SafeAdd(x, y uint64) (sum uint64, overflowed bool) {
	sum, carryOut := bits.Add64(x, y, 0)
	return sum, carryOut != 0
}
