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

// Package kv is the typed tree layer over an embedded ordered byte-level KV
// engine: Database, Single, Tree, their Codecs and AutoInc capability, and
// the Engine abstraction (backed by bbolt on disk, by a tidwall/btree
// in-memory for ephemeral sinks) that the view and materialize packages
// build on without importing each other.
package kv
