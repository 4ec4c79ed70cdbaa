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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDecodeDateTimeString(t *testing.T) {
	v := mustDecode(t, "c074323031332d30332d32315432303a30343a30305a", DecOptions{})
	ts, ok := v.(Time)
	require.True(t, ok)
	require.Equal(t, time.Date(2013, 3, 21, 20, 4, 0, 0, time.UTC), ts.Time.UTC())

	// numeric offsets are preserved
	v = mustDecode(t, "c07819323031332d30332d32315432303a30343a30302b30313a3030", DecOptions{})
	ts = v.(Time)
	_, offset := ts.Zone()
	require.Equal(t, 3600, offset)

	_, err := Decode(mustHex(t, "c063616263"), DecOptions{})
	var malformed *MalformedItemError
	require.ErrorAs(t, err, &malformed)

	// payload of the wrong type
	_, err = Decode(mustHex(t, "c001"), DecOptions{})
	require.ErrorAs(t, err, &malformed)
}

func TestDecodeEpochDateTime(t *testing.T) {
	v := mustDecode(t, "c11a514b67b0", DecOptions{})
	require.Equal(t, int64(1363896240), v.(Time).Unix())

	v = mustDecode(t, "c1fb41d452d9ec200000", DecOptions{})
	ts := v.(Time)
	require.Equal(t, int64(1363896240), ts.Unix())
	require.Equal(t, 500000000, ts.Nanosecond())
}

func TestDecodeBignums(t *testing.T) {
	v := mustDecode(t, "c249010000000000000000", DecOptions{})
	require.Equal(t, "18446744073709551616", v.(BigInt).String())

	v = mustDecode(t, "c349010000000000000000", DecOptions{})
	require.Equal(t, "-18446744073709551617", v.(BigInt).String())

	// a small bignum collapses to the native integer variant
	v = mustDecode(t, "c24105", DecOptions{})
	require.Equal(t, Int(5), v)
}

func TestDecodeDecimalFraction(t *testing.T) {
	v := mustDecode(t, "c48221196ab3", DecOptions{})
	d, ok := v.(Decimal)
	require.True(t, ok)
	require.Equal(t, int64(-2), d.Exponent)
	require.Equal(t, "27315", d.Mantissa.String())

	_, err := Decode(mustHex(t, "c401"), DecOptions{})
	var malformed *MalformedItemError
	require.ErrorAs(t, err, &malformed)
}

func TestDecodeBigFloat(t *testing.T) {
	v := mustDecode(t, "c5822003", DecOptions{})
	bf, ok := v.(BigFloat)
	require.True(t, ok)
	f, _ := bf.Float64()
	require.Equal(t, 1.5, f)

	// encode side produces the same minimal mantissa form
	require.Equal(t, mustHex(t, "c5822003"), mustEncode(t, bf, EncOptions{}))
}

func TestDecodeRational(t *testing.T) {
	v := mustDecode(t, "d81e820102", DecOptions{})
	r, ok := v.(Rational)
	require.True(t, ok)
	require.Equal(t, "1/2", r.String())

	_, err := Decode(mustHex(t, "d81e820100"), DecOptions{})
	var malformed *MalformedItemError
	require.ErrorAs(t, err, &malformed)
}

func TestDecodeRegexp(t *testing.T) {
	v := mustDecode(t, "d8236461622b63", DecOptions{})
	re, ok := v.(Regexp)
	require.True(t, ok)
	require.True(t, re.MatchString("abbbc"))

	_, err := Decode(mustHex(t, "d8236128"), DecOptions{})
	var malformed *MalformedItemError
	require.ErrorAs(t, err, &malformed)
}

func TestDecodeMIME(t *testing.T) {
	raw := "Subject: hi\r\n\r\nbody"
	data, err := Encode(MIME{Raw: raw}, EncOptions{})
	require.NoError(t, err)
	v, err := Decode(data, DecOptions{})
	require.NoError(t, err)
	m, ok := v.(MIME)
	require.True(t, ok)
	require.Equal(t, raw, m.Raw)
	require.NotNil(t, m.Message)
	require.Equal(t, "hi", m.Message.Header.Get("Subject"))
}

func TestDecodeUUID(t *testing.T) {
	v := mustDecode(t, "d825500102030405060708090a0b0c0d0e0f10", DecOptions{})
	id, ok := v.(UUID)
	require.True(t, ok)
	require.Equal(t, "01020304-0506-0708-090a-0b0c0d0e0f10", id.String())

	_, err := Decode(mustHex(t, "d825430102ff"), DecOptions{})
	var malformed *MalformedItemError
	require.ErrorAs(t, err, &malformed)
}

func TestDecodeSet(t *testing.T) {
	v := mustDecode(t, "d90102820102", DecOptions{})
	s, ok := v.(*Set)
	require.True(t, ok)
	require.Equal(t, 2, s.Len())
	require.True(t, s.Contains(Int(1)))
	require.True(t, s.Contains(Int(2)))
	require.False(t, s.Frozen())

	// duplicate elements collapse
	v = mustDecode(t, "d90102820101", DecOptions{})
	require.Equal(t, 1, v.(*Set).Len())
}

func TestDecodeNetworkAddress(t *testing.T) {
	v := mustDecode(t, "d9010444c0a80001", DecOptions{})
	addr, ok := v.(Addr)
	require.True(t, ok)
	require.Equal(t, "192.168.0.1", addr.String())

	v = mustDecode(t, "d9010450"+"20010db8000000000000000000000001", DecOptions{})
	addr = v.(Addr)
	require.Equal(t, "2001:db8::1", addr.String())

	// a 6-byte payload is a MAC address and stays an opaque tag
	v = mustDecode(t, "d9010446010203040506", DecOptions{})
	tagged, ok := v.(*Tagged)
	require.True(t, ok)
	require.Equal(t, CBORTagNetworkAddress, tagged.Number)
	require.Equal(t, Bytes{1, 2, 3, 4, 5, 6}, tagged.Content)

	_, err := Decode(mustHex(t, "d9010443010203"), DecOptions{})
	require.Error(t, err)
}

func TestDecodeNetworkPrefix(t *testing.T) {
	v := mustDecode(t, "d90105a144c0a800001818", DecOptions{})
	p, ok := v.(Prefix)
	require.True(t, ok)
	require.Equal(t, "192.168.0.0/24", p.String())

	// prefix length beyond the address width
	_, err := Decode(mustHex(t, "d90105a144c0a800001821"), DecOptions{})
	var malformed *MalformedItemError
	require.ErrorAs(t, err, &malformed)
}

func TestDecodeSelfDescribe(t *testing.T) {
	require.Equal(t, Int(1), mustDecode(t, "d9d9f701", DecOptions{}))
}

func TestDecodeDates(t *testing.T) {
	v := mustDecode(t, "d903ec6a323031332d30332d3231", DecOptions{})
	require.Equal(t, NewDate(2013, time.March, 21), v)

	// tag 100 carries days since the epoch: 2013-03-21 is day 15785
	v = mustDecode(t, "d864193da9", DecOptions{})
	require.Equal(t, NewDate(2013, time.March, 21), v)
}

func TestDecodeUnknownTag(t *testing.T) {
	v := mustDecode(t, "d904d201", DecOptions{})
	tagged, ok := v.(*Tagged)
	require.True(t, ok)
	require.Equal(t, uint64(1234), tagged.Number)
	require.Equal(t, Int(1), tagged.Content)
}

func TestTagSetStaticHook(t *testing.T) {
	ts := NewTagSet()
	ts.Register(1234, func(tag *Tagged) (Value, error) {
		return Text("hooked"), nil
	})
	v := mustDecode(t, "d904d201", DecOptions{TagSet: ts})
	require.Equal(t, Text("hooked"), v)
}

func TestTagSetOverridesBuiltin(t *testing.T) {
	ts := NewTagSet()
	ts.Register(CBORTagDateTimeString, func(tag *Tagged) (Value, error) {
		return tag.Content, nil
	})
	v := mustDecode(t, "c074323031332d30332d32315432303a30343a30305a", DecOptions{TagSet: ts})
	require.Equal(t, Text("2013-03-21T20:04:00Z"), v)
}

func TestTagSetDynamicHookSeesImmutableContext(t *testing.T) {
	ts := NewTagSet()
	ts.RegisterDynamic(1000, func(d *Decoder, tag *Tagged) (Value, error) {
		if d.Immutable() {
			return Text("frozen"), nil
		}
		return Text("thawed"), nil
	})

	v := mustDecode(t, "d903e801", DecOptions{TagSet: ts})
	require.Equal(t, Text("thawed"), v)

	// the same tag in map key position decodes in immutable context
	v = mustDecode(t, "a1d903e801f4", DecOptions{TagSet: ts})
	m := v.(*Map)
	_, found := m.Get(Text("frozen"))
	require.True(t, found)
}

func TestTagSetDynamicHookReentrantDecode(t *testing.T) {
	ts := NewTagSet()
	ts.RegisterDynamic(1001, func(d *Decoder, tag *Tagged) (Value, error) {
		b, ok := tag.Content.(Bytes)
		if !ok {
			return nil, errors.New("expected a byte string payload")
		}
		return d.DecodeFromBytes(b)
	})
	v := mustDecode(t, "d903e943820102", DecOptions{TagSet: ts})
	require.Equal(t, []Value{Int(1), Int(2)}, v.(*Array).Elems)
}

func TestTagHookFailureWrapsCause(t *testing.T) {
	cause := errors.New("boom")
	ts := NewTagSet()
	ts.Register(999, func(tag *Tagged) (Value, error) {
		return nil, cause
	})
	_, err := Decode(mustHex(t, "d903e701"), DecOptions{TagSet: ts})
	var hookErr *TagHookError
	require.ErrorAs(t, err, &hookErr)
	require.ErrorIs(t, err, cause)
}

func TestObjectHook(t *testing.T) {
	opts := DecOptions{
		ObjectHook: func(d *Decoder, m *Map) (Value, error) {
			if v, ok := m.Get(Text("kind")); ok {
				return v, nil
			}
			return m, nil
		},
	}
	v := mustDecode(t, "a1646b696e64626f6b", opts)
	require.Equal(t, Text("ok"), v)
}

func TestDisableBuiltinTags(t *testing.T) {
	v := mustDecode(t, "c074323031332d30332d32315432303a30343a30305a", DecOptions{DisableBuiltinTags: true})
	tagged, ok := v.(*Tagged)
	require.True(t, ok)
	require.Equal(t, uint64(0), tagged.Number)

	v = mustDecode(t, "d9010063616161", DecOptions{DisableBuiltinTags: true})
	tagged = v.(*Tagged)
	require.Equal(t, uint64(256), tagged.Number)
	require.Equal(t, Text("aaa"), tagged.Content)
}

func TestImmutableContextFreezesContainers(t *testing.T) {
	// an array key decodes frozen, the tuple analogue
	v := mustDecode(t, "a1830102036161", DecOptions{})
	m := v.(*Map)
	require.Equal(t, 1, m.Len())
	key := m.Entries()[0].Key.(*Array)
	require.True(t, key.Frozen())

	// a map key decodes frozen, the immutable mapping analogue
	v = mustDecode(t, "a1a101026161", DecOptions{})
	key2 := v.(*Map).Entries()[0].Key.(*Map)
	require.True(t, key2.Frozen())
	require.Error(t, key2.Set(Int(9), Int(9)))

	// a set key decodes frozen, the frozen set analogue
	v = mustDecode(t, "a1d90102820102f4", DecOptions{})
	key3 := v.(*Map).Entries()[0].Key.(*Set)
	require.True(t, key3.Frozen())
	require.Error(t, key3.Add(Int(3)))

	// the same containers outside key position stay mutable
	v = mustDecode(t, "83010203", DecOptions{})
	require.False(t, v.(*Array).Frozen())
}
