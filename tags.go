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
	"fmt"
	"math"
	"math/big"
	"net/mail"
	"net/netip"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TagDecodeFunc is a static tag decoder: it receives the tag number and
// its already-decoded payload and returns the replacement value.
type TagDecodeFunc func(t *Tagged) (Value, error)

// DynamicTagDecodeFunc additionally receives the decoder handle, so the
// hook can query Immutable, call SetShareable before constructing
// self-referential state, or decode sub-payloads with DecodeFromBytes.
type DynamicTagDecodeFunc func(d *Decoder, t *Tagged) (Value, error)

type tagHandler struct {
	static  TagDecodeFunc
	dynamic DynamicTagDecodeFunc
}

func (h tagHandler) call(d *Decoder, t *Tagged) (Value, error) {
	if h.dynamic != nil {
		return h.dynamic(d, t)
	}
	return h.static(t)
}

// TagSet routes tag numbers to user decoders. A TagSet must not be
// mutated while a decode using it is in flight.
type TagSet struct {
	handlers map[uint64]tagHandler
}

// NewTagSet constructs an empty TagSet.
func NewTagSet() *TagSet {
	return &TagSet{handlers: make(map[uint64]tagHandler)}
}

// Register installs a static decoder for num, replacing any previous one.
func (ts *TagSet) Register(num uint64, fn TagDecodeFunc) {
	ts.handlers[num] = tagHandler{static: fn}
}

// RegisterDynamic installs a dynamic decoder for num, replacing any
// previous one.
func (ts *TagSet) RegisterDynamic(num uint64, fn DynamicTagDecodeFunc) {
	ts.handlers[num] = tagHandler{dynamic: fn}
}

func (ts *TagSet) handler(num uint64) (tagHandler, bool) {
	h, ok := ts.handlers[num]
	return h, ok
}

// decodeBuiltinTag maps the built-in tag numbers to semantic variants.
// handled=false leaves the payload as an opaque Tagged.
func decodeBuiltinTag(d *Decoder, num uint64, content Value) (Value, bool, error) {
	switch num {
	case CBORTagDateTimeString:
		s, ok := content.(Text)
		if !ok {
			return nil, false, NewMalformedItemError("tag 0 payload is not a text string")
		}
		t, err := parseDateTime(string(s))
		if err != nil {
			return nil, false, err
		}
		return Time{t}, true, nil

	case CBORTagEpochDateTime:
		switch x := content.(type) {
		case Int:
			return Time{time.Unix(int64(x), 0).UTC()}, true, nil
		case Float:
			sec, frac := math.Modf(float64(x))
			return Time{time.Unix(int64(sec), int64(math.Round(frac*1e9))).UTC()}, true, nil
		default:
			return nil, false, NewMalformedItemError("tag 1 payload is not a number")
		}

	case CBORTagUnsignedBignum:
		b, ok := content.(Bytes)
		if !ok {
			return nil, false, NewMalformedItemError("bignum payload is not a byte string")
		}
		return normalizeBig(new(big.Int).SetBytes(b)), true, nil

	case CBORTagNegativeBignum:
		b, ok := content.(Bytes)
		if !ok {
			return nil, false, NewMalformedItemError("bignum payload is not a byte string")
		}
		n := new(big.Int).SetBytes(b)
		n.Add(n, big.NewInt(1))
		n.Neg(n)
		return normalizeBig(n), true, nil

	case CBORTagDecimal:
		exp, mant, err := exponentPair(content, "tag 4")
		if err != nil {
			return nil, false, err
		}
		return Decimal{Mantissa: mant, Exponent: exp}, true, nil

	case CBORTagBigFloat:
		exp, mant, err := exponentPair(content, "tag 5")
		if err != nil {
			return nil, false, err
		}
		if exp > math.MaxInt32 || exp < math.MinInt32 {
			return nil, false, NewMalformedItemError("tag 5 exponent out of range")
		}
		f := new(big.Float).SetInt(mant)
		f.SetMantExp(f, int(exp))
		return BigFloat{f}, true, nil

	case CBORTagStringRef:
		if d.refs == nil {
			return nil, false, NewMalformedItemError("string reference outside of namespace")
		}
		index, ok := content.(Int)
		if !ok || index < 0 {
			return nil, false, NewMalformedItemError("string reference index is not an unsigned integer")
		}
		v, err := d.refs.resolve(uint64(index))
		if err != nil {
			return nil, false, err
		}
		return v, true, nil

	case CBORTagRational:
		arr, ok := content.(*Array)
		if !ok || len(arr.Elems) != 2 {
			return nil, false, NewMalformedItemError("tag 30 payload is not a two-element array")
		}
		numBig, err := bigFromValue(arr.Elems[0], "tag 30 numerator")
		if err != nil {
			return nil, false, err
		}
		denBig, err := bigFromValue(arr.Elems[1], "tag 30 denominator")
		if err != nil {
			return nil, false, err
		}
		if denBig.Sign() == 0 {
			return nil, false, NewMalformedItemError("tag 30 denominator is zero")
		}
		return Rational{new(big.Rat).SetFrac(numBig, denBig)}, true, nil

	case CBORTagRegexp:
		s, ok := content.(Text)
		if !ok {
			return nil, false, NewMalformedItemError("tag 35 payload is not a text string")
		}
		re, err := regexp.Compile(string(s))
		if err != nil {
			return nil, false, NewMalformedItemErrorWrapped("invalid regular expression", err)
		}
		return Regexp{re}, true, nil

	case CBORTagMIME:
		s, ok := content.(Text)
		if !ok {
			return nil, false, NewMalformedItemError("tag 36 payload is not a text string")
		}
		// headerless bodies are still representable; only the raw text is
		// authoritative on re-encode
		msg, err := mail.ReadMessage(strings.NewReader(string(s)))
		if err != nil {
			msg = nil
		}
		return MIME{Raw: string(s), Message: msg}, true, nil

	case CBORTagUUID:
		b, ok := content.(Bytes)
		if !ok || len(b) != 16 {
			return nil, false, NewMalformedItemError("tag 37 payload is not a 16-byte string")
		}
		id, err := uuid.FromBytes(b)
		if err != nil {
			return nil, false, NewMalformedItemErrorWrapped("invalid UUID", err)
		}
		return UUID{id}, true, nil

	case CBORTagEpochDate:
		days, ok := content.(Int)
		if !ok {
			return nil, false, NewMalformedItemError("tag 100 payload is not an integer")
		}
		y, m, day := time.Unix(int64(days)*86400, 0).UTC().Date()
		return Date{Year: y, Month: m, Day: day}, true, nil

	case CBORTagDateString:
		s, ok := content.(Text)
		if !ok {
			return nil, false, NewMalformedItemError("tag 1004 payload is not a text string")
		}
		t, err := time.Parse("2006-01-02", string(s))
		if err != nil {
			return nil, false, NewMalformedItemErrorWrapped("invalid date", err)
		}
		y, m, day := t.Date()
		return Date{Year: y, Month: m, Day: day}, true, nil

	case CBORTagSet:
		arr, ok := content.(*Array)
		if !ok {
			return nil, false, NewMalformedItemError("tag 258 payload is not an array")
		}
		set := &Set{}
		for _, el := range arr.Elems {
			if err := set.Add(el); err != nil {
				return nil, false, err
			}
		}
		if d.immutable {
			set.frozen = true
		}
		return set, true, nil

	case CBORTagNetworkAddress:
		b, ok := content.(Bytes)
		if !ok {
			return nil, false, NewMalformedItemError("tag 260 payload is not a byte string")
		}
		switch len(b) {
		case 4, 16:
			addr, aok := netip.AddrFromSlice(b)
			if !aok {
				return nil, false, NewMalformedItemError("invalid network address")
			}
			return Addr{addr}, true, nil
		case 6:
			// MAC addresses pass through as opaque tags
			return nil, false, nil
		default:
			return nil, false, NewMalformedItemError(fmt.Sprintf("invalid network address length %d", len(b)))
		}

	case CBORTagNetworkPrefix:
		m, ok := content.(*Map)
		if !ok || m.Len() != 1 {
			return nil, false, NewMalformedItemError("tag 261 payload is not a single-entry map")
		}
		ent := m.Entries()[0]
		b, bok := ent.Key.(Bytes)
		bits, iok := ent.Value.(Int)
		if !bok || !iok || (len(b) != 4 && len(b) != 16) {
			return nil, false, NewMalformedItemError("invalid network prefix payload")
		}
		addr, aok := netip.AddrFromSlice(b)
		if !aok || bits < 0 || int(bits) > addr.BitLen() {
			return nil, false, NewMalformedItemError("invalid network prefix")
		}
		return Prefix{netip.PrefixFrom(addr, int(bits))}, true, nil

	case CBORTagSelfDescribed:
		return content, true, nil

	default:
		return nil, false, nil
	}
}

// parseDateTime accepts the RFC 3339 date-time profile of ISO 8601, with
// optional fractional seconds and either Z or a numeric offset.
func parseDateTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, NewMalformedItemErrorWrapped("invalid date-time", err)
	}
	return t, nil
}

// normalizeBig collapses bignums that fit the int64 range into Int, so
// the semantic value has one representation in the value domain.
func normalizeBig(n *big.Int) Value {
	if n.IsInt64() {
		return Int(n.Int64())
	}
	return BigInt{n}
}

func bigFromValue(v Value, what string) (*big.Int, error) {
	switch x := v.(type) {
	case Int:
		return big.NewInt(int64(x)), nil
	case BigInt:
		return x.Int, nil
	default:
		return nil, NewMalformedItemError(what + " is not an integer")
	}
}

// exponentPair destructures the [exponent, mantissa] payload shared by
// tags 4 and 5.
func exponentPair(content Value, what string) (int64, *big.Int, error) {
	arr, ok := content.(*Array)
	if !ok || len(arr.Elems) != 2 {
		return 0, nil, NewMalformedItemError(what + " payload is not a two-element array")
	}
	exp, ok := arr.Elems[0].(Int)
	if !ok {
		return 0, nil, NewMalformedItemError(what + " exponent is not an integer")
	}
	mant, err := bigFromValue(arr.Elems[1], what+" mantissa")
	if err != nil {
		return 0, nil, err
	}
	return int64(exp), mant, nil
}
