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

import "sync"

// singleKey is the one and only key ever written in a Single's namespace.
var singleKey = []byte("v")

// Single is the keyless one-slot namespace flavor: a namespace holding at
// most one value of T.
type Single[T any] struct {
	db    *Database
	ns    string
	codec Codec[T]

	bcOnce sync.Once
	bc     *Broadcaster
}

func (s *Single[T]) DB() *Database     { return s.db }
func (s *Single[T]) Namespace() string { return s.ns }

func (s *Single[T]) Get() (T, bool, error) {
	var zero T
	var bv []byte
	var found bool
	err := s.db.engine.View(func(txn Txn) error {
		v, ok, err := txn.Get(s.ns, singleKey)
		bv, found = v, ok
		return err
	})
	if err != nil {
		return zero, false, wrapStorage("get", err)
	}
	if !found {
		return zero, false, nil
	}
	v, err := s.codec.Decode(bv)
	if err != nil {
		return zero, false, &DecodeError{Namespace: s.ns, Key: singleKey, Err: err}
	}
	return v, true, nil
}

func (s *Single[T]) Set(v T) (T, bool, error) {
	var zero T
	bv, err := s.codec.Encode(v)
	if err != nil {
		return zero, false, &EncodeError{Namespace: s.ns, Err: err}
	}
	var old []byte
	var existed bool
	err = s.db.engine.Update(func(txn Txn) error {
		o, ex, err := txn.Put(s.ns, singleKey, bv)
		old, existed = o, ex
		return err
	})
	if err != nil {
		return zero, false, wrapStorage("set", err)
	}
	if !existed {
		return zero, false, nil
	}
	ov, err := s.codec.Decode(old)
	if err != nil {
		return zero, true, &DecodeError{Namespace: s.ns, Key: singleKey, Err: err}
	}
	return ov, true, nil
}

func (s *Single[T]) Clear() error {
	if err := s.db.engine.Update(func(txn Txn) error { return txn.Clear(s.ns) }); err != nil {
		return wrapStorage("clear", err)
	}
	return nil
}

func (s *Single[T]) Watch() *WatchReader {
	s.bcOnce.Do(func() {
		s.bc = newBroadcaster(s.ns)
		events, _ := s.db.engine.Subscribe(s.ns, nil)
		go func() {
			for ev := range events {
				s.bc.publish(ev)
			}
		}()
	})
	return s.bc.newReader()
}
