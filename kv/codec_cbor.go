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
	"github.com/ugorji/go/codec"
)

var cborHandle = func() *codec.CborHandle {
	h := &codec.CborHandle{}
	h.Canonical = true
	return h
}()

// CBORCodec is a general-purpose structural format: it encodes any
// struct, slice, map, or scalar via CBOR (github.com/ugorji/go/codec).
// Canonical encoding is enabled so two equal values always
// produce identical bytes, but CBOR's map/slice encoding does not, in
// general, preserve a meaningful total order on arbitrary T: use CBORCodec
// for value types, or for key types whose only required property is
// byte-equality-implies-value-equality, not range ordering.
type CBORCodec[T any] struct{}

func (CBORCodec[T]) Encode(v T) ([]byte, error) {
	var buf []byte
	enc := codec.NewEncoderBytes(&buf, cborHandle)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf, nil
}

func (CBORCodec[T]) Decode(b []byte) (T, error) {
	var v T
	dec := codec.NewDecoderBytes(b, cborHandle)
	if err := dec.Decode(&v); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}
