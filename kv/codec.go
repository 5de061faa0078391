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

// Codec converts between a typed value of T and its byte encoding. Encode
// and Decode must be total on valid inputs: every value Encode produces
// must Decode back to an equal value.
//
// When T is used as a key type, Encode must additionally be an
// order-preserving injection: byte-lexicographic order of encoded keys must
// equal the intended total order on T. BinaryCodec, StringCodec and
// BytesCodec document and are tested for this property; CBORCodec does not
// guarantee it and should only be used for key types without a meaningful
// order beyond equality, or for value types.
type Codec[T any] interface {
	Encode(v T) ([]byte, error)
	Decode(b []byte) (T, error)
}

// BytesCodec is the identity codec for []byte keys/values: encoding is a
// copy of the input, which is trivially order-preserving since the byte
// slice's own lexicographic order is the KV engine's order.
type BytesCodec struct{}

func (BytesCodec) Encode(v []byte) ([]byte, error) {
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (BytesCodec) Decode(b []byte) ([]byte, error) {
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// StringCodec encodes a string as its UTF-8 bytes. Go compares strings
// byte-wise, so this is order-preserving.
type StringCodec struct{}

func (StringCodec) Encode(v string) ([]byte, error) { return []byte(v), nil }
func (StringCodec) Decode(b []byte) (string, error) { return string(b), nil }
