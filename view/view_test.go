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

package view

import (
	"testing"
	"time"

	"github.com/erigontech/kvview/kv"
	"github.com/stretchr/testify/require"
)

func openIntTree(t *testing.T) *kv.Tree[int32, int32] {
	t.Helper()
	db, err := kv.OpenTempDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return kv.OpenTree[int32, int32](db, "t", kv.BinaryCodec[int32]{}, kv.BinaryCodec[int32]{}, nil)
}

// S1 Map: for every k in 0..100, tree.map(v*2).Get(k) == 2k.
func TestMapScenario(t *testing.T) {
	tr := openIntTree(t)
	for i := int32(0); i < 100; i++ {
		_, _, err := tr.Insert(i, i)
		require.NoError(t, err)
	}
	doubled, err := Map[int32, int32, int32](tr, func(_, v int32) int32 { return v * 2 })
	require.NoError(t, err)
	for i := int32(0); i < 100; i++ {
		v, ok, err := doubled.Get(i)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, 2*i, v)
	}
}

func TestFilterCoherence(t *testing.T) {
	tr := openIntTree(t)
	for i := int32(0); i < 20; i++ {
		_, _, err := tr.Insert(i, i)
		require.NoError(t, err)
	}
	even, err := Filter[int32, int32](tr, func(_, v int32) bool { return v%2 == 0 })
	require.NoError(t, err)
	it := even.Iter()
	defer it.Close()
	var got []int32
	for {
		item, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, item.Key)
	}
	require.Equal(t, []int32{0, 2, 4, 6, 8, 10, 12, 14, 16, 18}, got)
}

func TestChainLeftWins(t *testing.T) {
	dbA, err := kv.OpenTempDB()
	require.NoError(t, err)
	t.Cleanup(func() { dbA.Close() })
	a := kv.OpenTree[int32, int32](dbA, "a", kv.BinaryCodec[int32]{}, kv.BinaryCodec[int32]{}, nil)
	b := kv.OpenTree[int32, int32](dbA, "b", kv.BinaryCodec[int32]{}, kv.BinaryCodec[int32]{}, nil)

	_, _, _ = a.Insert(1, 100)
	_, _, _ = b.Insert(1, 999)
	_, _, _ = b.Insert(2, 200)

	c := Chain[int32, int32](a, b, func(x, y int32) bool { return x < y })
	v, ok, err := c.Get(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int32(100), v)

	v, ok, err = c.Get(2)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int32(200), v)

	require.True(t, c.RequiresMaterialization())
}

// S4 Reducer: r.insert(1,5); r.insert(1,7) leaves the underlying tree at
// r(r(nil,5),7) == 12, and only at key 1.
func TestReducerScenario(t *testing.T) {
	tr := openIntTree(t)
	r := NewReducer[int32, int32, int32](tr, func(cur int32, hasCur bool, add int32) int32 {
		if !hasCur {
			return add
		}
		return cur + add
	})
	_, _, err := r.Insert(1, 5)
	require.NoError(t, err)
	_, _, err = r.Insert(1, 7)
	require.NoError(t, err)

	v, ok, err := tr.Get(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int32(12), v)

	_, ok, err = tr.Get(2)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFilterMapCombinesMapAndFilter(t *testing.T) {
	tr := openIntTree(t)
	for i := int32(0); i < 10; i++ {
		_, _, err := tr.Insert(i, i)
		require.NoError(t, err)
	}
	// Keep odd values, squared.
	odd, err := FilterMap[int32, int32, int32](tr, func(_, v int32) (int32, bool) {
		return v * v, v%2 == 1
	})
	require.NoError(t, err)

	v, ok, err := odd.Get(3)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int32(9), v)

	_, ok, err = odd.Get(4)
	require.NoError(t, err)
	require.False(t, ok)

	it := odd.Iter()
	defer it.Close()
	var keys []int32
	for {
		item, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		keys = append(keys, item.Key)
	}
	require.Equal(t, []int32{1, 3, 5, 7, 9}, keys)
}

func TestInserterTransformsValues(t *testing.T) {
	tr := openIntTree(t)
	in := NewInserter[int32, string, int32](tr, func(s string) int32 { return int32(len(s)) })

	_, _, err := in.Insert(1, "four")
	require.NoError(t, err)
	v, ok, err := tr.Get(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int32(4), v)

	old, existed, err := in.Remove(1)
	require.NoError(t, err)
	require.True(t, existed)
	require.Equal(t, int32(4), old)
}

func TestFilterInserterSkipsOnNone(t *testing.T) {
	tr := openIntTree(t)
	fi := NewFilterInserter[int32, int32, int32](tr, func(v int32) (int32, bool) {
		return v, v >= 0
	})

	_, _, err := fi.Insert(1, -5)
	require.NoError(t, err)
	_, ok, err := tr.Get(1)
	require.NoError(t, err)
	require.False(t, ok)

	_, _, err = fi.Insert(1, 5)
	require.NoError(t, err)
	v, ok, err := tr.Get(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int32(5), v)
}

func TestFilterReducerRemovesOnNone(t *testing.T) {
	tr := openIntTree(t)
	_, _, err := tr.Insert(1, 10)
	require.NoError(t, err)
	fr := NewFilterReducer[int32, int32, int32](tr, func(cur int32, hasCur bool, add int32) (int32, bool) {
		next := cur + add
		if !hasCur {
			next = add
		}
		return next, next != 0
	})
	_, _, err = fr.Insert(1, -10)
	require.NoError(t, err)

	_, ok, err := tr.Get(1)
	require.NoError(t, err)
	require.False(t, ok)
}

// S6 Watch + pipe: after A.pipe(B) and a quiesced write to A, a reader on
// B's watch stream observes the corresponding Insert.
func TestPipeAndWatchScenario(t *testing.T) {
	dbA, err := kv.OpenTempDB()
	require.NoError(t, err)
	t.Cleanup(func() { dbA.Close() })
	a := kv.OpenTree[int32, int32](dbA, "a", kv.BinaryCodec[int32]{}, kv.BinaryCodec[int32]{}, nil)
	b := kv.OpenTree[int32, int32](dbA, "b", kv.BinaryCodec[int32]{}, kv.BinaryCodec[int32]{}, nil)

	ps, cancelPipe := Pipe[int32, int32](a, b)
	defer cancelPipe()

	w := b.Watch()
	defer w.Close()

	_, _, err = a.Insert(1, 1)
	require.NoError(t, err)
	ps.Wait()

	// The write is already applied to B; its watch event may still be a
	// beat behind the apply, so allow a bounded wait for delivery.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for piped Insert to reach B's watch stream")
		default:
		}
		ev, ok := w.Recv()
		require.True(t, ok)
		if ev.IsLag {
			continue
		}
		if ev.Event.Kind == kv.Insert {
			got, err := kv.BinaryCodec[int32]{}.Decode(ev.Event.NewValue)
			require.NoError(t, err)
			require.Equal(t, int32(1), got)
			return
		}
	}
}

// Pipe quiescence doubles as property 10: after the pipe's sync drains,
// the sink holds every mutation applied to the source so far.
func TestPipeAppliesMutations(t *testing.T) {
	db, err := kv.OpenTempDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	a := kv.OpenTree[int32, int32](db, "src", kv.BinaryCodec[int32]{}, kv.BinaryCodec[int32]{}, nil)
	b := kv.OpenTree[int32, int32](db, "dst", kv.BinaryCodec[int32]{}, kv.BinaryCodec[int32]{}, nil)

	ps, cancelPipe := Pipe[int32, int32](a, b)
	defer cancelPipe()

	for i := int32(0); i < 10; i++ {
		_, _, err := a.Insert(i, i*i)
		require.NoError(t, err)
	}
	_, _, err = a.Remove(3)
	require.NoError(t, err)
	ps.Wait()
	require.True(t, ps.IsSync())

	for i := int32(0); i < 10; i++ {
		v, ok, err := b.Get(i)
		require.NoError(t, err)
		if i == 3 {
			require.False(t, ok)
			continue
		}
		require.True(t, ok)
		require.Equal(t, i*i, v)
	}
}

// Chaining map, filter or transform onto a multi-source view (here a
// chain) before it is materialized is a CompositionError, not silent
// misbehavior.
func TestComposeOnUnmaterializedViewFails(t *testing.T) {
	tr := openIntTree(t)
	c := Chain[int32, int32](tr, tr, func(x, y int32) bool { return x < y })

	_, err := Map[int32, int32, int32](c, func(_, v int32) int32 { return v })
	var ce *kv.CompositionError
	require.ErrorAs(t, err, &ce)

	_, err = Filter[int32, int32](c, func(_, _ int32) bool { return true })
	require.ErrorAs(t, err, &ce)

	_, err = Transform[int32, int32, int32, int32](c, func(k, v int32) []kv.KV[int32, int32] {
		return []kv.KV[int32, int32]{{Key: k, Value: v}}
	}, func(x, y int32) bool { return x < y })
	require.ErrorAs(t, err, &ce)
}

func TestZipCompleteness(t *testing.T) {
	tr := openIntTree(t)
	for i := int32(0); i < 10; i++ {
		_, _, err := tr.Insert(i, i)
		require.NoError(t, err)
	}
	doubled, err := Map[int32, int32, int32](tr, func(_, v int32) int32 { return v * 2 })
	require.NoError(t, err)
	z := Zip[int32, int32, int32](tr, doubled, func(x, y int32) bool { return x < y })
	it := z.Iter()
	defer it.Close()
	for {
		item, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		require.True(t, item.Value.HasV)
		require.True(t, item.Value.HasU)
		require.Equal(t, item.Key, item.Value.V)
		require.Equal(t, 2*item.Key, item.Value.U)
	}
}
