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
	"bytes"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/kvview/kv/internal/intmath"
)

func TestBinaryCodecRoundTrip(t *testing.T) {
	c := BinaryCodec[int64]{}
	for _, v := range []int64{0, 1, -1, 42, -42, 1 << 40, -(1 << 40)} {
		b, err := c.Encode(v)
		require.NoError(t, err)
		got, err := c.Decode(b)
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

func TestBinaryCodecOrderPreserving(t *testing.T) {
	c := BinaryCodec[int32]{}
	values := []int32{-100, -2, -1, 0, 1, 2, 100, 1 << 20, -(1 << 20)}
	sorted := append([]int32(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	encoded := make([][]byte, len(sorted))
	for i, v := range sorted {
		b, err := c.Encode(v)
		require.NoError(t, err)
		encoded[i] = b
	}
	for i := 1; i < len(encoded); i++ {
		require.True(t, bytes.Compare(encoded[i-1], encoded[i]) < 0, "encoding of %d must sort before %d", sorted[i-1], sorted[i])
	}
}

// TestBinaryCodecSignedBounds checks that the int8 and int32 minimum
// values (only the sign bit set, the case the XOR bias exists for)
// round-trip and sort below the maximum value of the same width.
func TestBinaryCodecSignedBounds(t *testing.T) {
	minI8, minI32 := BinaryCodec[int8]{}, BinaryCodec[int32]{}

	b8, err := minI8.Encode(int8(intmath.MinInt8))
	require.NoError(t, err)
	got8, err := minI8.Decode(b8)
	require.NoError(t, err)
	require.Equal(t, int8(intmath.MinInt8), got8)
	maxB8, err := minI8.Encode(math.MaxInt8)
	require.NoError(t, err)
	require.True(t, bytes.Compare(b8, maxB8) < 0)

	b32, err := minI32.Encode(int32(intmath.MinInt32))
	require.NoError(t, err)
	got32, err := minI32.Decode(b32)
	require.NoError(t, err)
	require.Equal(t, int32(intmath.MinInt32), got32)
	maxB32, err := minI32.Encode(math.MaxInt32)
	require.NoError(t, err)
	require.True(t, bytes.Compare(b32, maxB32) < 0)
}

func TestBinaryCodecUnsignedOrderPreserving(t *testing.T) {
	c := BinaryCodec[uint16]{}
	values := []uint16{0, 1, 2, 1000, 65535}
	var prev []byte
	for _, v := range values {
		b, err := c.Encode(v)
		require.NoError(t, err)
		if prev != nil {
			require.True(t, bytes.Compare(prev, b) < 0)
		}
		prev = b
	}
}

func TestStringCodecOrderPreserving(t *testing.T) {
	c := StringCodec{}
	a, _ := c.Encode("apple")
	b, _ := c.Encode("banana")
	require.True(t, bytes.Compare(a, b) < 0)
}
