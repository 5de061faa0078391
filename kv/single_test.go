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

type config struct {
	Name  string
	Limit int
}

func TestSingleSlot(t *testing.T) {
	db, err := OpenTempDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := OpenSingle[config](db, "cfg", CBORCodec[config]{})

	_, ok, err := s.Get()
	require.NoError(t, err)
	require.False(t, ok)

	_, existed, err := s.Set(config{Name: "a", Limit: 1})
	require.NoError(t, err)
	require.False(t, existed)

	old, existed, err := s.Set(config{Name: "b", Limit: 2})
	require.NoError(t, err)
	require.True(t, existed)
	require.Equal(t, config{Name: "a", Limit: 1}, old)

	got, ok, err := s.Get()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, config{Name: "b", Limit: 2}, got)

	require.NoError(t, s.Clear())
	_, ok, err = s.Get()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSingleIsolatedFromTreeNamespace(t *testing.T) {
	db, err := OpenTempDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := OpenSingle[string](db, "x", StringCodec{})
	tr := OpenTree[string, string](db, "x", StringCodec{}, StringCodec{}, nil)

	_, _, err = s.Set("slot")
	require.NoError(t, err)
	_, _, err = tr.Insert("v", "tree")
	require.NoError(t, err)

	got, ok, err := s.Get()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "slot", got)

	tv, ok, err := tr.Get("v")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "tree", tv)
}
