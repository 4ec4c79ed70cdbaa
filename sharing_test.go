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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValueSharingRoundTripIdentity(t *testing.T) {
	a := NewArray(Int(1), Int(2), Int(3))
	b := NewMap()
	require.NoError(t, b.Set(Text("a"), a))
	require.NoError(t, b.Set(Text("b"), a))

	data, err := Encode(b, EncOptions{ValueSharing: true})
	require.NoError(t, err)
	// tag 28 around the map and the first array occurrence, tag 29 at the
	// second reference
	require.Equal(t, mustHex(t, "d81ca26161d81c830102036162d81d01"), data)

	v, err := Decode(data, DecOptions{})
	require.NoError(t, err)
	m := v.(*Map)
	va, _ := m.Get(Text("a"))
	vb, _ := m.Get(Text("b"))
	require.Same(t, va, vb)
	require.Equal(t, []Value{Int(1), Int(2), Int(3)}, va.(*Array).Elems)
}

func TestValueSharingSavesSpace(t *testing.T) {
	leaf := make([]Value, 20)
	for i := range leaf {
		leaf[i] = Int(i + 100)
	}
	shared := NewArray(leaf...)
	graph := NewArray(shared, shared, shared)

	withSharing, err := Encode(graph, EncOptions{ValueSharing: true})
	require.NoError(t, err)

	// without sharing the graph is a tree, so the leaf is emitted three
	// times over
	flat := NewArray(
		NewArray(leaf...),
		NewArray(leaf...),
		NewArray(leaf...),
	)
	withoutSharing, err := Encode(flat, EncOptions{})
	require.NoError(t, err)

	require.Less(t, len(withSharing), len(withoutSharing))
}

func TestCyclicGraphRoundTrip(t *testing.T) {
	parent := NewMap()
	child := NewMap()
	require.NoError(t, child.Set(Text("parent"), parent))
	require.NoError(t, parent.Set(Text("children"), NewArray(child)))

	data, err := Encode(parent, EncOptions{ValueSharing: true})
	require.NoError(t, err)

	v, err := Decode(data, DecOptions{})
	require.NoError(t, err)
	p := v.(*Map)
	children, ok := p.Get(Text("children"))
	require.True(t, ok)
	c := children.(*Array).Elems[0].(*Map)
	back, ok := c.Get(Text("parent"))
	require.True(t, ok)
	require.Same(t, v, back)
}

func TestSelfReferentialArray(t *testing.T) {
	a := NewArray(Int(1))
	a.Elems = append(a.Elems, a)

	data, err := Encode(a, EncOptions{ValueSharing: true})
	require.NoError(t, err)
	// d81c 82 01 d81d00
	require.Equal(t, mustHex(t, "d81c8201d81d00"), data)

	v, err := Decode(data, DecOptions{})
	require.NoError(t, err)
	got := v.(*Array)
	require.Equal(t, Int(1), got.Elems[0])
	require.Same(t, got, got.Elems[1])
}

func TestCycleWithoutSharingFails(t *testing.T) {
	a := NewArray(Int(1))
	a.Elems = append(a.Elems, a)

	_, err := Encode(a, EncOptions{})
	var cyclic *CyclicReferenceError
	require.ErrorAs(t, err, &cyclic)
}

func TestRepeatedLeafWithoutSharingIsATree(t *testing.T) {
	// a diamond is not a cycle: without sharing it simply flattens
	leaf := NewArray(Int(7))
	v := NewArray(leaf, leaf)
	data, err := Encode(v, EncOptions{})
	require.NoError(t, err)
	require.Equal(t, mustHex(t, "8281078107"), data)
}

func TestSharedRefErrors(t *testing.T) {
	// reference with no share table slot
	_, err := Decode(mustHex(t, "d81d00"), DecOptions{})
	var shareErr *ShareIndexError
	require.ErrorAs(t, err, &shareErr)

	// reference to a slot that has been reserved but never initialized
	_, err = Decode(mustHex(t, "d81cd81d00"), DecOptions{})
	require.ErrorAs(t, err, &shareErr)

	// index of the wrong type
	_, err = Decode(mustHex(t, "d81d6161"), DecOptions{})
	var malformed *MalformedItemError
	require.ErrorAs(t, err, &malformed)
}

func TestStringReferencingRoundTrip(t *testing.T) {
	data, err := Encode([]interface{}{"aaaaaaaa", "aaaaaaaa"}, EncOptions{StringReferencing: true})
	require.NoError(t, err)
	require.Equal(t, mustHex(t, "d901008268"+"6161616161616161"+"d81900"), data)

	v, err := Decode(data, DecOptions{})
	require.NoError(t, err)
	arr := v.(*Array)
	require.Equal(t, []Value{Text("aaaaaaaa"), Text("aaaaaaaa")}, arr.Elems)
}

func TestStringReferencingThreshold(t *testing.T) {
	// two-byte strings never pay for a reference
	data, err := Encode([]interface{}{"aa", "aa"}, EncOptions{StringReferencing: true})
	require.NoError(t, err)
	require.Equal(t, mustHex(t, "d9010082"+"626161"+"626161"), data)

	// three bytes is the break-even point at small table sizes
	data, err = Encode([]interface{}{"aaa", "aaa"}, EncOptions{StringReferencing: true})
	require.NoError(t, err)
	require.Equal(t, mustHex(t, "d9010082" + "63616161" + "d81900"), data)

	v, err := Decode(data, DecOptions{})
	require.NoError(t, err)
	require.Equal(t, []Value{Text("aaa"), Text("aaa")}, v.(*Array).Elems)
}

func TestStringRefEligibility(t *testing.T) {
	require.False(t, stringRefEligible(0, 2))
	require.True(t, stringRefEligible(0, 3))
	require.False(t, stringRefEligible(23, 2))
	require.False(t, stringRefEligible(24, 3))
	require.True(t, stringRefEligible(24, 4))
	require.False(t, stringRefEligible(256, 4))
	require.True(t, stringRefEligible(256, 5))
	require.False(t, stringRefEligible(65536, 6))
	require.True(t, stringRefEligible(65536, 7))
	require.False(t, stringRefEligible(4294967296, 10))
	require.True(t, stringRefEligible(4294967296, 11))
}

func TestStringRefByteAndTextDistinct(t *testing.T) {
	data, err := Encode([]interface{}{"abc", []byte("abc"), "abc"}, EncOptions{StringReferencing: true})
	require.NoError(t, err)

	v, err := Decode(data, DecOptions{})
	require.NoError(t, err)
	arr := v.(*Array)
	require.Equal(t, Text("abc"), arr.Elems[0])
	require.Equal(t, Bytes("abc"), arr.Elems[1])
	require.Equal(t, Text("abc"), arr.Elems[2])
}

func TestStringRefScopesDoNotInherit(t *testing.T) {
	// outer scope records "aaa"; the nested scope starts empty, records
	// "bbb" at index 0, and its reference 0 resolves to "bbb"
	data := mustHex(t, "d9010082"+"63616161"+"d9010082"+"63626262"+"d81900")
	v, err := Decode(data, DecOptions{})
	require.NoError(t, err)
	arr := v.(*Array)
	require.Equal(t, Text("aaa"), arr.Elems[0])
	inner := arr.Elems[1].(*Array)
	require.Equal(t, []Value{Text("bbb"), Text("bbb")}, inner.Elems)
}

func TestStringRefOutsideNamespace(t *testing.T) {
	_, err := Decode(mustHex(t, "d81900"), DecOptions{})
	var malformed *MalformedItemError
	require.ErrorAs(t, err, &malformed)
}

func TestStringRefUnknownIndex(t *testing.T) {
	// a namespace with no recorded strings cannot resolve index 0
	_, err := Decode(mustHex(t, "d90100d81900"), DecOptions{})
	var malformed *MalformedItemError
	require.ErrorAs(t, err, &malformed)
}

func TestSharingDisabledTagsStillDecodeWhenPresent(t *testing.T) {
	// machinery tags surface as opaque Tagged values when the built-in
	// registry is disabled
	v, err := Decode(mustHex(t, "d81c00"), DecOptions{DisableBuiltinTags: true})
	require.NoError(t, err)
	tagged := v.(*Tagged)
	require.Equal(t, uint64(28), tagged.Number)
	require.Equal(t, Int(0), tagged.Content)
}
