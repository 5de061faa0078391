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

package materialize

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/kvview/kv"
	"github.com/erigontech/kvview/view"
)

func openIntTree(t *testing.T) *kv.Tree[int32, int32] {
	t.Helper()
	db, err := kv.OpenTempDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return kv.OpenTree[int32, int32](db, "src", kv.BinaryCodec[int32]{}, kv.BinaryCodec[int32]{}, nil)
}

// Property 4 (map coherence): after tree.map(f).load() quiesces, the sink
// holds (k, f(k,v)) for every row in tree and nothing else.
func TestLoadMapCoherence(t *testing.T) {
	tr := openIntTree(t)
	for i := int32(0); i < 100; i++ {
		_, _, err := tr.Insert(i, i)
		require.NoError(t, err)
	}

	mapped, err := view.Map[int32, int32, int32](tr, func(_, v int32) int32 { return v * 2 })
	require.NoError(t, err)

	mv, err := Load[int32, int32](mapped, kv.BinaryCodec[int32]{}, kv.BinaryCodec[int32]{})
	require.NoError(t, err)
	defer mv.Close()
	mv.Wait()
	require.True(t, mv.Sync().IsSync())
	require.Zero(t, mv.Sync().Incoming())

	count := 0
	it := mv.Iter()
	defer it.Close()
	for {
		item, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		require.Equal(t, 2*item.Key, item.Value)
		count++
	}
	require.Equal(t, 100, count)

	// A write arriving after the initial fill also propagates.
	_, _, err = tr.Insert(100, 100)
	require.NoError(t, err)
	mv.Wait()
	v, ok, err := mv.Get(100)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int32(200), v)
}

// Property 5 (filter coherence): after tree.filter(p).store() quiesces,
// the sink holds exactly the rows for which p holds.
func TestStoreFilterCoherence(t *testing.T) {
	tr := openIntTree(t)
	for i := int32(0); i < 20; i++ {
		_, _, err := tr.Insert(i, i)
		require.NoError(t, err)
	}
	even, err := view.Filter[int32, int32](tr, func(_, v int32) bool { return v%2 == 0 })
	require.NoError(t, err)

	mv, err := Store[int32, int32]("evens", even, kv.BinaryCodec[int32]{}, kv.BinaryCodec[int32]{})
	require.NoError(t, err)
	defer mv.Close()
	mv.Wait()

	for i := int32(0); i < 20; i++ {
		v, ok, err := mv.Get(i)
		require.NoError(t, err)
		if i%2 == 0 {
			require.True(t, ok)
			require.Equal(t, i, v)
		} else {
			require.False(t, ok)
		}
	}

	// Flipping a row from visible to hidden removes it from the sink.
	_, _, err = tr.Insert(0, 1)
	require.NoError(t, err)
	mv.Wait()
	_, ok, err := mv.Get(0)
	require.NoError(t, err)
	require.False(t, ok)
}

// S2: tree.index(|k,_| vec![k.to_string()]).load()?.map(|_,v| v[0])
// yields, for every k in 0..100, key "{k}" with value k.
func TestIndexLoadMapScenario(t *testing.T) {
	tr := openIntTree(t)
	for i := int32(0); i < 100; i++ {
		_, _, err := tr.Insert(i, i)
		require.NoError(t, err)
	}

	spec, err := view.Index[int32, int32, string](tr, func(k, _ int32) []string {
		return []string{itoa32(k)}
	}, func(x, y string) bool { return x < y })
	require.NoError(t, err)

	idx, err := LoadTransform[int32, int32, string, int32](spec, kv.StringCodec{}, kv.CBORCodec[[]int32]{})
	require.NoError(t, err)
	defer idx.Close()
	idx.Wait()

	firstOf, err := view.Map[string, []int32, int32](idx, func(_ string, vs []int32) int32 { return vs[0] })
	require.NoError(t, err)

	for i := int32(0); i < 100; i++ {
		v, ok, err := firstOf.Get(itoa32(i))
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, i, v)
	}
}

func itoa32(n int32) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [16]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Property 6 (transform correctness): the sink multiset at k' equals the
// set of values contributed by every source row mapping to k'.
func TestTransformMultisetCorrectness(t *testing.T) {
	tr := openIntTree(t)
	for i := int32(0); i < 10; i++ {
		_, _, err := tr.Insert(i, i)
		require.NoError(t, err)
	}
	// Every row contributes to bucket k%3, so each bucket accumulates a
	// multiset of the source values landing in it.
	spec, err := view.Transform[int32, int32, int32, int32](tr, func(k, v int32) []kv.KV[int32, int32] {
		return []kv.KV[int32, int32]{{Key: k % 3, Value: v}}
	}, func(x, y int32) bool { return x < y })
	require.NoError(t, err)

	mv, err := LoadTransform[int32, int32, int32, int32](spec, kv.BinaryCodec[int32]{}, kv.CBORCodec[[]int32]{})
	require.NoError(t, err)
	defer mv.Close()
	mv.Wait()

	want := map[int32]map[int32]bool{0: {}, 1: {}, 2: {}}
	for i := int32(0); i < 10; i++ {
		want[i%3][i] = true
	}
	for bucket, members := range want {
		vs, ok, err := mv.Get(bucket)
		require.NoError(t, err)
		require.True(t, ok)
		require.Len(t, vs, len(members))
		for _, v := range vs {
			require.True(t, members[v])
		}
	}

	// Removing a source row shrinks its bucket's multiset: bucket 0 held
	// {0, 3, 6, 9} and drops to {3, 6, 9}.
	_, _, err = tr.Remove(0)
	require.NoError(t, err)
	mv.Wait()
	vs, ok, err := mv.Get(0)
	require.NoError(t, err)
	require.True(t, ok)
	require.ElementsMatch(t, []int32{3, 6, 9}, vs)
}

// Property 7 (chain identity): A.chain(B) materialized equals A union B
// with A winning on key collision, and stays coherent as either source
// changes.
func TestStoreChainLeftWins(t *testing.T) {
	db, err := kv.OpenTempDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	a := kv.OpenTree[int32, int32](db, "a", kv.BinaryCodec[int32]{}, kv.BinaryCodec[int32]{}, nil)
	b := kv.OpenTree[int32, int32](db, "b", kv.BinaryCodec[int32]{}, kv.BinaryCodec[int32]{}, nil)

	for i := int32(0); i < 5; i++ {
		_, _, err := a.Insert(i, 100+i)
		require.NoError(t, err)
	}
	for i := int32(3); i < 8; i++ {
		_, _, err := b.Insert(i, 900+i)
		require.NoError(t, err)
	}

	c := view.Chain[int32, int32](a, b, func(x, y int32) bool { return x < y })
	mv, err := Store[int32, int32]("merged", c, kv.BinaryCodec[int32]{}, kv.BinaryCodec[int32]{})
	require.NoError(t, err)
	defer mv.Close()
	mv.Wait()

	for i := int32(0); i < 8; i++ {
		v, ok, err := mv.Get(i)
		require.NoError(t, err)
		require.True(t, ok)
		if i < 5 {
			require.Equal(t, 100+i, v, "a wins at overlapping key %d", i)
		} else {
			require.Equal(t, 900+i, v)
		}
	}

	// A write to b at a key a holds is shadowed and must not reach the sink.
	_, _, err = b.Insert(0, 999)
	require.NoError(t, err)
	// A write to a always wins.
	_, _, err = a.Insert(7, 107)
	require.NoError(t, err)
	mv.Wait()

	v, _, err := mv.Get(0)
	require.NoError(t, err)
	require.Equal(t, int32(100), v)
	v, _, err = mv.Get(7)
	require.NoError(t, err)
	require.Equal(t, int32(107), v)
}

// Property 8 (zip completeness): the materialized zip has a key iff it is
// in either source, and each half matches its source.
func TestLoadZipCompleteness(t *testing.T) {
	db, err := kv.OpenTempDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	a := kv.OpenTree[int32, int32](db, "a", kv.BinaryCodec[int32]{}, kv.BinaryCodec[int32]{}, nil)
	b := kv.OpenTree[int32, string](db, "b", kv.BinaryCodec[int32]{}, kv.StringCodec{}, nil)

	for i := int32(0); i < 6; i++ {
		_, _, err := a.Insert(i, i*10)
		require.NoError(t, err)
	}
	_, _, err = b.Insert(4, "four")
	require.NoError(t, err)
	_, _, err = b.Insert(9, "nine")
	require.NoError(t, err)

	z := view.Zip[int32, int32, string](a, b, func(x, y int32) bool { return x < y })
	mv, err := Load[int32, view.Pair[int32, string]](z, kv.BinaryCodec[int32]{}, kv.CBORCodec[view.Pair[int32, string]]{})
	require.NoError(t, err)
	defer mv.Close()
	mv.Wait()

	for i := int32(0); i < 6; i++ {
		p, ok, err := mv.Get(i)
		require.NoError(t, err)
		require.True(t, ok)
		require.True(t, p.HasV)
		require.Equal(t, i*10, p.V)
		require.Equal(t, i == 4, p.HasU)
	}
	p, ok, err := mv.Get(9)
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, p.HasV)
	require.True(t, p.HasU)
	require.Equal(t, "nine", p.U)

	_, ok, err = mv.Get(42)
	require.NoError(t, err)
	require.False(t, ok)

	// Removing the only present half removes the key entirely.
	_, _, err = b.Remove(9)
	require.NoError(t, err)
	mv.Wait()
	_, ok, err = mv.Get(9)
	require.NoError(t, err)
	require.False(t, ok)
}

// Property 11 (sync): after Wait, IsSync is true and Incoming is 0.
func TestSyncQuiescence(t *testing.T) {
	tr := openIntTree(t)
	doubled, err := view.Map[int32, int32, int32](tr, func(_, v int32) int32 { return v * 2 })
	require.NoError(t, err)
	mv, err := Load[int32, int32](doubled, kv.BinaryCodec[int32]{}, kv.BinaryCodec[int32]{})
	require.NoError(t, err)
	defer mv.Close()

	for i := int32(0); i < 50; i++ {
		_, _, err := tr.Insert(i, i)
		require.NoError(t, err)
	}
	mv.Wait()
	require.True(t, mv.Sync().IsSync())
	require.Zero(t, mv.Sync().Incoming())
}
