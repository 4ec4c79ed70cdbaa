/*
 * Gocbor - Concise Binary Object Representation Codec
 *
 * Copyright Flow Foundation
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *   http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package gocbor

import (
	"bytes"
	"math/big"

	"github.com/fxamacker/circlehash"
)

// Value is a CBOR data item. It is a sealed interface: only types in this
// package implement it.
//
// Scalar variants: Int, BigInt, Bytes, Text, Bool, Null, Undefined,
// Simple, Float.
//
// Container variants are pointer types so that object identity survives
// value sharing (tags 28/29): *Array, *Map, *Set, *Tagged.
//
// Semantic variants produced and consumed by the built-in tag registry:
// Time, Date, Decimal, BigFloat, Rational, Regexp, MIME, UUID, Addr,
// Prefix.
type Value interface {
	isValue()
}

// Int is an integer in the int64 range (major types 0 and 1).
type Int int64

// BigInt is an integer outside the int64 range, or a decoded bignum
// (tags 2 and 3). Magnitudes that fit in a CBOR integer head are encoded
// as major type 0/1; larger magnitudes use the bignum tags.
type BigInt struct {
	*big.Int
}

// NewBigInt wraps i as a Value. i must not be nil.
func NewBigInt(i *big.Int) BigInt {
	return BigInt{i}
}

// Bytes is a byte string (major type 2).
type Bytes []byte

// Text is a UTF-8 text string (major type 3).
type Text string

// Bool is a CBOR boolean (major type 7, argument 20/21).
type Bool bool

// Null is the null literal (major type 7, argument 22).
type Null struct{}

// Undefined is the undefined literal (major type 7, argument 23).
type Undefined struct{}

// Simple is a simple value in 0..19 or 32..255. Values 20..31 are the
// booleans, null, undefined, the float widths and break, which have their
// own representations; constructing a Simple in that range is rejected at
// encode time.
type Simple uint8

// Float is an IEEE 754 floating point number. The encoded width is chosen
// by the encoder mode: canonical mode picks the shortest width that round
// trips exactly, otherwise finite values are emitted as doubles. NaN and
// the infinities always use the half-width form.
type Float float64

// Array is an ordered sequence of values (major type 4).
//
// Arrays decoded in immutable context (map keys, set elements) are frozen,
// the analogue of a tuple: the flag is observable through Frozen and such
// arrays must not be mutated afterwards.
type Array struct {
	Elems  []Value
	frozen bool
}

// NewArray constructs an Array from elems.
func NewArray(elems ...Value) *Array {
	return &Array{Elems: elems}
}

// Frozen reports whether the array was decoded in immutable context.
func (a *Array) Frozen() bool {
	return a.frozen
}

// MapEntry is a single key/value pair of a Map.
type MapEntry struct {
	Key   Value
	Value Value
}

// Map is an ordered sequence of key/value pairs (major type 5) with keys
// pairwise distinct by CBOR equality. Entry order is preserved; lookup
// goes through a 64-bit digest of the canonical encoding of the key.
//
// Maps decoded in immutable context are frozen, the analogue of an
// immutable mapping: Set fails on a frozen map.
type Map struct {
	entries []MapEntry
	index   map[uint64][]int
	frozen  bool
}

// NewMap constructs an empty Map.
func NewMap() *Map {
	return &Map{index: make(map[uint64][]int)}
}

// Len returns the number of entries.
func (m *Map) Len() int {
	return len(m.entries)
}

// Frozen reports whether the map was decoded in immutable context.
func (m *Map) Frozen() bool {
	return m.frozen
}

// Entries returns the ordered entries. The returned slice is owned by the
// map and must not be modified.
func (m *Map) Entries() []MapEntry {
	return m.entries
}

// Get returns the value stored under a key equal to k by CBOR equality.
func (m *Map) Get(k Value) (Value, bool) {
	i, _, err := m.lookup(k)
	if err != nil || i < 0 {
		return nil, false
	}
	return m.entries[i].Value, true
}

// Set stores v under k, replacing the value of an existing equal key.
// It fails if the map is frozen or if k cannot be canonically encoded
// (for example, a cyclic key).
func (m *Map) Set(k, v Value) error {
	if m.frozen {
		return NewUnsupportedValueError("cannot modify a frozen map")
	}
	return m.insert(k, v, dupKeyLastWins)
}

type dupKeyPolicy uint8

const (
	dupKeyReject dupKeyPolicy = iota
	dupKeyLastWins
)

func (m *Map) insert(k, v Value, dup dupKeyPolicy) error {
	i, digest, err := m.lookup(k)
	if err != nil {
		return err
	}
	if i >= 0 {
		if dup == dupKeyReject {
			return NewMalformedItemError("duplicate map key")
		}
		m.entries[i].Value = v
		return nil
	}
	if m.index == nil {
		m.index = make(map[uint64][]int)
	}
	m.index[digest] = append(m.index[digest], len(m.entries))
	m.entries = append(m.entries, MapEntry{Key: k, Value: v})
	return nil
}

// lookup returns the entry index for a key equal to k, or -1, together
// with the key digest.
func (m *Map) lookup(k Value) (int, uint64, error) {
	kb, err := canonicalBytes(k)
	if err != nil {
		return -1, 0, err
	}
	digest := circlehash.Hash64(kb, keyDigestSeed)
	for _, i := range m.index[digest] {
		eb, err := canonicalBytes(m.entries[i].Key)
		if err != nil {
			return -1, 0, err
		}
		if bytes.Equal(kb, eb) {
			return i, digest, nil
		}
	}
	return -1, digest, nil
}

// Set is a collection of values unique by CBOR equality (tag 258).
// Element order is preserved as first-inserted.
//
// Sets decoded in immutable context are frozen, the analogue of a frozen
// set: Add fails on a frozen set.
type Set struct {
	elems  []Value
	index  map[uint64][]int
	frozen bool
}

// NewSet constructs a Set from elems, dropping duplicates. It fails if an
// element cannot be canonically encoded.
func NewSet(elems ...Value) (*Set, error) {
	s := &Set{index: make(map[uint64][]int)}
	for _, e := range elems {
		if err := s.Add(e); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Len returns the number of elements.
func (s *Set) Len() int {
	return len(s.elems)
}

// Frozen reports whether the set was decoded in immutable context.
func (s *Set) Frozen() bool {
	return s.frozen
}

// Elements returns the ordered elements. The returned slice is owned by
// the set and must not be modified.
func (s *Set) Elements() []Value {
	return s.elems
}

// Contains reports whether the set holds an element equal to v.
func (s *Set) Contains(v Value) bool {
	i, _, err := s.lookup(v)
	return err == nil && i >= 0
}

// Add inserts v unless an equal element is already present.
func (s *Set) Add(v Value) error {
	if s.frozen {
		return NewUnsupportedValueError("cannot modify a frozen set")
	}
	i, digest, err := s.lookup(v)
	if err != nil {
		return err
	}
	if i >= 0 {
		return nil
	}
	if s.index == nil {
		s.index = make(map[uint64][]int)
	}
	s.index[digest] = append(s.index[digest], len(s.elems))
	s.elems = append(s.elems, v)
	return nil
}

func (s *Set) lookup(v Value) (int, uint64, error) {
	vb, err := canonicalBytes(v)
	if err != nil {
		return -1, 0, err
	}
	digest := circlehash.Hash64(vb, keyDigestSeed)
	for _, i := range s.index[digest] {
		eb, err := canonicalBytes(s.elems[i])
		if err != nil {
			return -1, 0, err
		}
		if bytes.Equal(vb, eb) {
			return i, digest, nil
		}
	}
	return -1, digest, nil
}

// Tagged is a tagged value (major type 6). Decoded payloads of tag
// numbers with no built-in or registered decoder surface as Tagged; a
// Tagged may also be constructed directly to emit arbitrary tags.
type Tagged struct {
	Number  uint64
	Content Value
}

// NewTagged constructs a Tagged value.
func NewTagged(num uint64, content Value) *Tagged {
	return &Tagged{Number: num, Content: content}
}

// Equal reports whether a and b encode to the same canonical bytes, which
// is CBOR equality over the value domain. Values that cannot be encoded
// (for example, cyclic graphs) compare unequal.
func Equal(a, b Value) bool {
	ab, err := canonicalBytes(a)
	if err != nil {
		return false
	}
	bb, err := canonicalBytes(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

func (Int) isValue()       {}
func (BigInt) isValue()    {}
func (Bytes) isValue()     {}
func (Text) isValue()      {}
func (Bool) isValue()      {}
func (Null) isValue()      {}
func (Undefined) isValue() {}
func (Simple) isValue()    {}
func (Float) isValue()     {}
func (*Array) isValue()    {}
func (*Map) isValue()      {}
func (*Set) isValue()      {}
func (*Tagged) isValue()   {}
