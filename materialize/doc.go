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

// Package materialize turns a lazy view.View into a concrete kv.Tree kept
// current by a background propagation worker: Store persists
// the sink under a named tree in the source's Database, Load holds it in
// a private in-memory Engine. Both build on package view without either
// package importing the other's combinator internals, and both expose a
// kv.Sync handle so callers can wait for the worker to drain.
package materialize
