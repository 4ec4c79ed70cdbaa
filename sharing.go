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

import "reflect"

// stringRefEligible reports whether a string of the given raw byte length
// is worth recording in a stringref namespace whose table currently holds
// tableSize entries: recording is useful only if a tag 25 reference to
// the next index would be shorter than re-emitting the string.
func stringRefEligible(tableSize uint64, length int) bool {
	switch {
	case tableSize < 24:
		return length >= 3
	case tableSize < 256:
		return length >= 4
	case tableSize < 65536:
		return length >= 5
	case tableSize < 4294967296:
		return length >= 7
	default:
		return length >= 11
	}
}

// stringRefKey keys the encode-side namespace. Byte and text strings with
// identical payloads are distinct entries.
type stringRefKey struct {
	text    bool
	payload string
}

// encStringRefs is the encode-side stringref namespace of one tag 256
// scope: already-emitted strings and their table indexes.
type encStringRefs struct {
	index map[stringRefKey]uint64
}

func newEncStringRefs() *encStringRefs {
	return &encStringRefs{index: make(map[stringRefKey]uint64)}
}

func (t *encStringRefs) lookup(k stringRefKey) (uint64, bool) {
	i, ok := t.index[k]
	return i, ok
}

// record adds k at the next index if referencing it later would save
// space given the current table size.
func (t *encStringRefs) record(k stringRefKey, length int) {
	size := uint64(len(t.index))
	if stringRefEligible(size, length) {
		t.index[k] = size
	}
}

// decStringRefs is the decode-side namespace: the ordered strings read so
// far within the active tag 256 scope.
type decStringRefs struct {
	values []Value
}

// record mirrors encStringRefs.record for decoded definite-length strings.
func (t *decStringRefs) record(v Value, length int) {
	if stringRefEligible(uint64(len(t.values)), length) {
		t.values = append(t.values, v)
	}
}

func (t *decStringRefs) resolve(index uint64) (Value, error) {
	if index >= uint64(len(t.values)) {
		return nil, NewMalformedItemError("string reference not found")
	}
	return t.values[index], nil
}

// shareKey identifies an input object across repeated appearances in one
// encode pass. Pointer-shaped Go values carry identity; scalars and
// strings do not and are never shared.
type shareKey struct {
	ptr uintptr
	len int
}

// shareKeyOf returns the identity key of v, reporting ok=false for values
// without identity.
func shareKeyOf(v interface{}) (shareKey, bool) {
	switch v.(type) {
	case *Array, *Map, *Set, *Tagged:
		return shareKey{ptr: reflect.ValueOf(v).Pointer()}, true
	case Bytes, []byte:
		// strings have no identity
		return shareKey{}, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.UnsafePointer:
		return shareKey{ptr: rv.Pointer()}, true
	case reflect.Slice:
		return shareKey{ptr: rv.Pointer(), len: rv.Len()}, true
	default:
		return shareKey{}, false
	}
}
