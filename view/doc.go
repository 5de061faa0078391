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

// Package view is the lazy combinator algebra built over package kv's
// Tree without importing package materialize: every read combinator (map,
// filter, filter_map, chain, zip) returns a new View that reads through
// its source(s) and knows how to translate a source Delta into its own
// Delta stream, but never writes anywhere itself. Transform and index
// return a TransformSpec that only package materialize can turn into a
// View. The write-side reducer/inserter adapters and Pipe are not Views:
// they write into a caller-supplied tree or sink. Turning a View into
// durable storage is package materialize's job.
package view
