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
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestTree(t *testing.T) *Tree[int32, int32] {
	t.Helper()
	db, err := OpenTempDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return OpenTree[int32, int32](db, "t", BinaryCodec[int32]{}, BinaryCodec[int32]{}, nil)
}

func TestTreeRoundTrip(t *testing.T) {
	tr := openTestTree(t)
	old, existed, err := tr.Insert(1, 100)
	require.NoError(t, err)
	require.False(t, existed)
	require.Zero(t, old)

	v, ok, err := tr.Get(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int32(100), v)

	has, err := tr.ContainsKey(1)
	require.NoError(t, err)
	require.True(t, has)

	old, existed, err = tr.Remove(1)
	require.NoError(t, err)
	require.True(t, existed)
	require.Equal(t, int32(100), old)

	_, ok, err = tr.Get(1)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTreeOrderingAndIter(t *testing.T) {
	tr := openTestTree(t)
	for _, k := range []int32{5, 1, 3, -2, 10} {
		_, _, err := tr.Insert(k, k*10)
		require.NoError(t, err)
	}

	lt, ok, err := tr.GetLT(3)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int32(1), lt.Key)

	gt, ok, err := tr.GetGT(3)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int32(5), gt.Key)

	_, ok, err = tr.GetLT(-2)
	require.NoError(t, err)
	require.False(t, ok)

	it := tr.Iter()
	defer it.Close()
	var keys []int32
	for {
		kv, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		keys = append(keys, kv.Key)
	}
	require.Equal(t, []int32{-2, 1, 3, 5, 10}, keys)
}

func TestTreePushMonotonic(t *testing.T) {
	db, err := OpenTempDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	tr := OpenTree[uint32, string](db, "p", BinaryCodec[uint32]{}, StringCodec{}, Uint32AutoInc())

	k0, err := tr.Push("a")
	require.NoError(t, err)
	k1, err := tr.Push("b")
	require.NoError(t, err)
	k2, err := tr.Push("c")
	require.NoError(t, err)
	require.Equal(t, []uint32{0, 1, 2}, []uint32{k0, k1, k2})

	it := tr.Iter()
	defer it.Close()
	var vals []string
	for {
		kv, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		vals = append(vals, kv.Value)
	}
	require.Equal(t, []string{"a", "b", "c"}, vals)
}

func TestTreePushRequiresAutoInc(t *testing.T) {
	tr := openTestTree(t)
	_, err := tr.Push(1)
	require.Error(t, err)
	var ce *CompositionError
	require.ErrorAs(t, err, &ce)
}

func TestTreePushOverflow(t *testing.T) {
	db, err := OpenTempDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	tr := OpenTree[uint8, string](db, "full", BinaryCodec[uint8]{}, StringCodec{}, Uint8AutoInc())

	_, _, err = tr.Insert(255, "max")
	require.NoError(t, err)
	_, err = tr.Push("one too many")
	var oe *AutoIncOverflowError
	require.ErrorAs(t, err, &oe)
}

func TestTreeStats(t *testing.T) {
	tr := openTestTree(t)
	for i := int32(0); i < 7; i++ {
		_, _, err := tr.Insert(i, i)
		require.NoError(t, err)
	}
	st, err := tr.Stats()
	require.NoError(t, err)
	require.Equal(t, 7, st.Entries)
	require.Equal(t, tr.Namespace(), st.Namespace)
}

func TestTreeFirstLast(t *testing.T) {
	tr := openTestTree(t)
	_, ok, err := tr.First()
	require.NoError(t, err)
	require.False(t, ok)

	for _, k := range []int32{4, -7, 12} {
		_, _, err := tr.Insert(k, k)
		require.NoError(t, err)
	}
	first, ok, err := tr.First()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int32(-7), first.Key)
	last, ok, err := tr.Last()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int32(12), last.Key)
}

func TestTreeClear(t *testing.T) {
	tr := openTestTree(t)
	_, _, err := tr.Insert(1, 1)
	require.NoError(t, err)
	require.NoError(t, tr.Clear())
	empty, err := tr.IsEmpty()
	require.NoError(t, err)
	require.True(t, empty)
}

func TestTreeRange(t *testing.T) {
	tr := openTestTree(t)
	for i := int32(0); i < 10; i++ {
		_, _, err := tr.Insert(i, i)
		require.NoError(t, err)
	}
	it, err := tr.Range(Incl[int32](3), Excl[int32](7))
	require.NoError(t, err)
	defer it.Close()
	var keys []int32
	for {
		kv, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		keys = append(keys, kv.Key)
	}
	require.Equal(t, []int32{3, 4, 5, 6}, keys)
}
