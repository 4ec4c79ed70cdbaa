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
	"io"
	"math"
	"math/big"
	"net/netip"
	"regexp"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/x448/float16"
)

// DefaultFunc converts a value the encoder has no representation for into
// one it does. It is invoked at most once per object; the returned value
// is encoded in its place. The hook may re-enter the encoder through e to
// build composite output.
type DefaultFunc func(e *Encoder, v interface{}) (interface{}, error)

// EncOptions configures an encode pass.
type EncOptions struct {
	// Timezone is the location used to promote Dates under DateAsDatetime.
	// Promotion without a timezone fails.
	Timezone *time.Location

	// DatetimeAsTimestamp encodes times with tag 1 (epoch seconds, losing
	// the offset) instead of tag 0 text.
	DatetimeAsTimestamp bool

	// DateAsDatetime promotes Date values to midnight date-times in
	// Timezone before encoding, instead of emitting tag 1004.
	DateAsDatetime bool

	// ValueSharing wraps every container in tag 28 on first emission and
	// references repeats with tag 29, so shared subgraphs and cycles
	// round-trip with identity intact.
	ValueSharing bool

	// StringReferencing wraps the top-level item in a tag 256 scope and
	// replaces repeated strings with tag 25 references where that is
	// shorter.
	StringReferencing bool

	// Canonical enables the deterministic discipline: minimal heads,
	// definite lengths, map pairs and set elements sorted by encoded key
	// bytes, shortest exactly-round-tripping floats, one NaN encoding.
	Canonical bool

	// Default is invoked for values of unsupported types.
	Default DefaultFunc

	// MaxDepth bounds nesting; zero means the package default.
	MaxDepth int
}

// Encoder writes CBOR data items to an output cursor, optionally flushing
// each completed top-level item to an io.Writer.
//
// Auxiliary state (share table, stringref namespace, cycle set) belongs
// to one top-level Encode call and is reset on the next. A Default hook
// re-entering the encoder runs below the top level and shares that state.
type Encoder struct {
	w        io.Writer
	c        *writeCursor
	opts     EncOptions
	maxDepth int
	depth    int

	shared   map[shareKey]sharedEntry
	encoding map[shareKey]struct{}
	inHook   map[shareKey]struct{}
	refs     *encStringRefs
}

// sharedEntry records where a shareable object landed in the output.
type sharedEntry struct {
	index  uint64
	offset int
}

// NewEncoder creates an Encoder that flushes each completed top-level
// item to w.
func NewEncoder(w io.Writer, opts EncOptions) *Encoder {
	e := newEncoder(opts)
	e.w = w
	return e
}

func newEncoder(opts EncOptions) *Encoder {
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}
	return &Encoder{
		c:        &writeCursor{},
		opts:     opts,
		maxDepth: maxDepth,
	}
}

// Encode serializes v to a new byte slice.
func Encode(v interface{}, opts EncOptions) ([]byte, error) {
	e := newEncoder(opts)
	if err := e.Encode(v); err != nil {
		return nil, err
	}
	return e.c.bytes(), nil
}

// EncodeInto serializes v and writes the result to sink. Nothing is
// written if encoding fails.
func EncodeInto(v interface{}, opts EncOptions, sink io.Writer) error {
	data, err := Encode(v, opts)
	if err != nil {
		return err
	}
	_, err = sink.Write(data)
	return err
}

// Encode writes exactly one CBOR data item for v. At the top level it
// starts a fresh share table and stringref namespace; called re-entrantly
// from a Default hook it continues the pass in flight.
func (e *Encoder) Encode(v interface{}) error {
	if e.depth == 0 {
		e.beginTopLevel()
		if err := e.encodeItem(v); err != nil {
			if e.w != nil {
				// discard the partial item so the stream stays well formed
				e.c.reset()
			}
			return err
		}
		return e.flush()
	}
	return e.encodeItem(v)
}

// encodeStreamElement encodes one element of an indefinite-length
// container without resetting the share table: the whole container is one
// top-level item on the decode side, so share indexes must stay aligned
// across elements. String referencing still opens a fresh scope per
// element, mirroring the per-tag-256 scoping the decoder applies.
func (e *Encoder) encodeStreamElement(v interface{}) error {
	if e.shared == nil {
		e.shared = make(map[shareKey]sharedEntry)
		e.encoding = make(map[shareKey]struct{})
		e.inHook = make(map[shareKey]struct{})
	}
	var err error
	if e.opts.StringReferencing {
		writeHead(e.c, majorTag, CBORTagStringRefScope)
		saved := e.refs
		e.refs = newEncStringRefs()
		err = e.encodeItem(v)
		e.refs = saved
	} else {
		err = e.encodeItem(v)
	}
	if err != nil {
		e.c.reset()
		return err
	}
	return e.flush()
}

func (e *Encoder) beginTopLevel() {
	e.shared = make(map[shareKey]sharedEntry)
	e.encoding = make(map[shareKey]struct{})
	e.inHook = make(map[shareKey]struct{})
	e.refs = nil
	if e.opts.StringReferencing {
		writeHead(e.c, majorTag, CBORTagStringRefScope)
		e.refs = newEncStringRefs()
	}
}

func (e *Encoder) flush() error {
	if e.w == nil {
		return nil
	}
	_, err := e.w.Write(e.c.bytes())
	e.c.reset()
	return err
}

func (e *Encoder) encodeItem(v interface{}) error {
	if e.depth >= e.maxDepth {
		return NewMaxDepthError(e.maxDepth)
	}
	e.depth++
	defer func() { e.depth-- }()

	if v == nil {
		writeHead(e.c, majorSimple, 22)
		return nil
	}
	if val, ok := v.(Value); ok {
		return e.encodeValue(val)
	}
	return e.encodeGoValue(v)
}

func (e *Encoder) encodeValue(v Value) error {
	switch x := v.(type) {
	case Int:
		e.encodeInt64(int64(x))
		return nil
	case BigInt:
		return e.encodeBigInt(x.Int)
	case Bytes:
		e.encodeStringPayload(majorBytes, []byte(x))
		return nil
	case Text:
		e.encodeStringPayload(majorText, []byte(x))
		return nil
	case Bool:
		if x {
			writeHead(e.c, majorSimple, 21)
		} else {
			writeHead(e.c, majorSimple, 20)
		}
		return nil
	case Null:
		writeHead(e.c, majorSimple, 22)
		return nil
	case Undefined:
		writeHead(e.c, majorSimple, 23)
		return nil
	case Simple:
		return e.encodeSimple(uint8(x))
	case Float:
		e.encodeFloat(float64(x))
		return nil
	case *Array:
		return e.encodeShared(x, func() error {
			return e.encodeArray(x.Elems)
		})
	case *Map:
		return e.encodeShared(x, func() error {
			pairs := make([]kvPair, len(x.entries))
			for i, ent := range x.entries {
				pairs[i] = kvPair{k: ent.Key, v: ent.Value}
			}
			return e.encodeMapPairs(pairs)
		})
	case *Set:
		return e.encodeShared(x, func() error {
			return e.encodeSet(x.elems)
		})
	case *Tagged:
		return e.encodeShared(x, func() error {
			writeHead(e.c, majorTag, x.Number)
			return e.encodeItem(x.Content)
		})
	case Time:
		return e.encodeTime(x.Time)
	case Date:
		return e.encodeDate(x)
	case Decimal:
		return e.encodeDecimal(x)
	case BigFloat:
		return e.encodeBigFloat(x.Float)
	case Rational:
		writeHead(e.c, majorTag, CBORTagRational)
		writeHead(e.c, majorArray, 2)
		if err := e.encodeBigInt(x.Num()); err != nil {
			return err
		}
		return e.encodeBigInt(x.Denom())
	case Regexp:
		writeHead(e.c, majorTag, CBORTagRegexp)
		e.encodeStringPayload(majorText, []byte(x.String()))
		return nil
	case MIME:
		writeHead(e.c, majorTag, CBORTagMIME)
		e.encodeStringPayload(majorText, []byte(x.Raw))
		return nil
	case UUID:
		writeHead(e.c, majorTag, CBORTagUUID)
		b := x.UUID
		e.encodeStringPayload(majorBytes, b[:])
		return nil
	case Addr:
		writeHead(e.c, majorTag, CBORTagNetworkAddress)
		e.encodeStringPayload(majorBytes, x.AsSlice())
		return nil
	case Prefix:
		writeHead(e.c, majorTag, CBORTagNetworkPrefix)
		writeHead(e.c, majorMap, 1)
		e.encodeStringPayload(majorBytes, x.Addr().AsSlice())
		e.encodeInt64(int64(x.Bits()))
		return nil
	default:
		return NewUnsupportedTypeError(v)
	}
}

func (e *Encoder) encodeGoValue(v interface{}) error {
	switch x := v.(type) {
	case bool:
		return e.encodeValue(Bool(x))
	case int:
		e.encodeInt64(int64(x))
	case int8:
		e.encodeInt64(int64(x))
	case int16:
		e.encodeInt64(int64(x))
	case int32:
		e.encodeInt64(int64(x))
	case int64:
		e.encodeInt64(x)
	case uint:
		writeHead(e.c, majorUnsigned, uint64(x))
	case uint8:
		writeHead(e.c, majorUnsigned, uint64(x))
	case uint16:
		writeHead(e.c, majorUnsigned, uint64(x))
	case uint32:
		writeHead(e.c, majorUnsigned, uint64(x))
	case uint64:
		writeHead(e.c, majorUnsigned, x)
	case float32:
		e.encodeFloat(float64(x))
	case float64:
		e.encodeFloat(x)
	case string:
		e.encodeStringPayload(majorText, []byte(x))
	case []byte:
		e.encodeStringPayload(majorBytes, x)
	case []interface{}:
		return e.encodeShared(v, func() error {
			writeHead(e.c, majorArray, uint64(len(x)))
			for _, el := range x {
				if err := e.encodeItem(el); err != nil {
					return err
				}
			}
			return nil
		})
	case map[string]interface{}:
		return e.encodeShared(v, func() error {
			keys := make([]string, 0, len(x))
			for k := range x {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			pairs := make([]kvPair, len(keys))
			for i, k := range keys {
				pairs[i] = kvPair{k: k, v: x[k]}
			}
			return e.encodeMapPairs(pairs)
		})
	case time.Time:
		return e.encodeTime(x)
	case *big.Int:
		return e.encodeBigInt(x)
	case *big.Rat:
		return e.encodeValue(Rational{x})
	case *big.Float:
		return e.encodeBigFloat(x)
	case uuid.UUID:
		return e.encodeValue(UUID{x})
	case netip.Addr:
		return e.encodeValue(Addr{x})
	case netip.Prefix:
		return e.encodeValue(Prefix{x})
	case *regexp.Regexp:
		return e.encodeValue(Regexp{x})
	default:
		return e.encodeDefault(v)
	}
	return nil
}

// encodeDefault routes an unsupported value through the user hook, with
// the object itself registered as shareable so repeats and cycles behave
// like native containers.
func (e *Encoder) encodeDefault(v interface{}) error {
	if e.opts.Default == nil {
		return NewUnsupportedTypeError(v)
	}
	return e.encodeShared(v, func() error {
		key, hasIdentity := shareKeyOf(v)
		if hasIdentity {
			if _, active := e.inHook[key]; active {
				return NewUnsupportedValueError("default hook made no progress")
			}
			e.inHook[key] = struct{}{}
			defer delete(e.inHook, key)
		}
		replacement, err := e.opts.Default(e, v)
		if err != nil {
			return err
		}
		return e.encodeItem(replacement)
	})
}

// encodeShared guards a container emission with the sharing machinery:
// with ValueSharing on, the first appearance is wrapped in tag 28 and
// repeats collapse to tag 29 references; with it off, re-entering an
// object still being encoded is a cycle.
func (e *Encoder) encodeShared(v interface{}, fn func() error) error {
	key, ok := shareKeyOf(v)
	if !ok {
		return fn()
	}
	if e.opts.ValueSharing {
		if ent, found := e.shared[key]; found {
			writeHead(e.c, majorTag, CBORTagSharedRef)
			writeHead(e.c, majorUnsigned, ent.index)
			return nil
		}
		writeHead(e.c, majorTag, CBORTagShareable)
		e.shared[key] = sharedEntry{index: uint64(len(e.shared)), offset: e.c.tell()}
		return fn()
	}
	if _, active := e.encoding[key]; active {
		return NewCyclicReferenceError(v)
	}
	e.encoding[key] = struct{}{}
	defer delete(e.encoding, key)
	return fn()
}

func (e *Encoder) encodeInt64(i int64) {
	if i >= 0 {
		writeHead(e.c, majorUnsigned, uint64(i))
	} else {
		writeHead(e.c, majorNegative, uint64(-(i + 1)))
	}
}

func (e *Encoder) encodeBigInt(i *big.Int) error {
	if i == nil {
		return NewUnsupportedValueError("nil big integer")
	}
	if i.Sign() >= 0 {
		if i.IsUint64() {
			writeHead(e.c, majorUnsigned, i.Uint64())
			return nil
		}
		writeHead(e.c, majorTag, CBORTagUnsignedBignum)
		b := i.Bytes()
		writeHead(e.c, majorBytes, uint64(len(b)))
		e.c.write(b)
		return nil
	}
	// major type 1 carries -(n+1)
	n := new(big.Int).Neg(i)
	n.Sub(n, big.NewInt(1))
	if n.IsUint64() {
		writeHead(e.c, majorNegative, n.Uint64())
		return nil
	}
	writeHead(e.c, majorTag, CBORTagNegativeBignum)
	b := n.Bytes()
	writeHead(e.c, majorBytes, uint64(len(b)))
	e.c.write(b)
	return nil
}

// encodeStringPayload writes a byte or text string, consulting the active
// stringref namespace: a repeat becomes a tag 25 reference when that is
// strictly shorter, a first occurrence is recorded when a later reference
// would pay off.
func (e *Encoder) encodeStringPayload(major byte, payload []byte) {
	if e.refs != nil {
		key := stringRefKey{text: major == majorText, payload: string(payload)}
		if idx, ok := e.refs.lookup(key); ok {
			refSize := headSize(CBORTagStringRef) + headSize(idx)
			rawSize := headSize(uint64(len(payload))) + len(payload)
			if refSize < rawSize {
				writeHead(e.c, majorTag, CBORTagStringRef)
				writeHead(e.c, majorUnsigned, idx)
				return
			}
		} else {
			e.refs.record(key, len(payload))
		}
	}
	writeHead(e.c, major, uint64(len(payload)))
	e.c.write(payload)
}

func (e *Encoder) encodeSimple(n uint8) error {
	if n >= 20 && n <= 31 {
		return NewUnsupportedValueError("reserved simple value")
	}
	if n < 24 {
		writeHead(e.c, majorSimple, uint64(n))
	} else {
		e.c.writeByte(majorSimple<<5 | 24)
		e.c.writeByte(n)
	}
	return nil
}

func (e *Encoder) encodeFloat(f float64) {
	if math.IsNaN(f) {
		// one NaN on the wire regardless of payload bits
		e.c.write([]byte{0xf9, 0x7e, 0x00})
		return
	}
	if math.IsInf(f, 1) {
		e.c.write([]byte{0xf9, 0x7c, 0x00})
		return
	}
	if math.IsInf(f, -1) {
		e.c.write([]byte{0xf9, 0xfc, 0x00})
		return
	}
	if e.opts.Canonical {
		if f32 := float32(f); float64(f32) == f {
			// subnormal halves report PrecisionUnknown; keep them when the
			// conversion round-trips
			if p := float16.PrecisionFromfloat32(f32); p == float16.PrecisionExact ||
				(p == float16.PrecisionUnknown && float16.Fromfloat32(f32).Float32() == f32) {
				h := float16.Fromfloat32(f32)
				var s [2]byte
				s[0] = byte(uint16(h) >> 8)
				s[1] = byte(uint16(h))
				e.c.writeByte(majorSimple<<5 | 25)
				e.c.write(s[:])
				return
			}
			var s [4]byte
			bits := math.Float32bits(f32)
			s[0] = byte(bits >> 24)
			s[1] = byte(bits >> 16)
			s[2] = byte(bits >> 8)
			s[3] = byte(bits)
			e.c.writeByte(majorSimple<<5 | 26)
			e.c.write(s[:])
			return
		}
	}
	var s [8]byte
	bits := math.Float64bits(f)
	for i := 0; i < 8; i++ {
		s[i] = byte(bits >> (56 - 8*i))
	}
	e.c.writeByte(majorSimple<<5 | 27)
	e.c.write(s[:])
}

func (e *Encoder) encodeArray(elems []Value) error {
	writeHead(e.c, majorArray, uint64(len(elems)))
	for _, el := range elems {
		if err := e.encodeItem(el); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) encodeSet(elems []Value) error {
	writeHead(e.c, majorTag, CBORTagSet)
	if e.opts.Canonical && len(elems) > 1 {
		sorted := make([]Value, len(elems))
		copy(sorted, elems)
		encoded := make([][]byte, len(elems))
		var err error
		for i, el := range sorted {
			if encoded[i], err = encodeStandalone(el); err != nil {
				return err
			}
		}
		sort.Sort(&byEncoding{keys: encoded, swap: func(i, j int) {
			sorted[i], sorted[j] = sorted[j], sorted[i]
		}})
		elems = sorted
	}
	writeHead(e.c, majorArray, uint64(len(elems)))
	for _, el := range elems {
		if err := e.encodeItem(el); err != nil {
			return err
		}
	}
	return nil
}

type kvPair struct {
	k, v interface{}
}

func (e *Encoder) encodeMapPairs(pairs []kvPair) error {
	if e.opts.Canonical && len(pairs) > 1 {
		sorted := make([]kvPair, len(pairs))
		copy(sorted, pairs)
		encoded := make([][]byte, len(pairs))
		var err error
		for i, p := range sorted {
			if encoded[i], err = encodeStandalone(p.k); err != nil {
				return err
			}
		}
		sort.Sort(&byEncoding{keys: encoded, swap: func(i, j int) {
			sorted[i], sorted[j] = sorted[j], sorted[i]
		}})
		pairs = sorted
	}
	writeHead(e.c, majorMap, uint64(len(pairs)))
	for _, p := range pairs {
		if err := e.encodeItem(p.k); err != nil {
			return err
		}
		if err := e.encodeItem(p.v); err != nil {
			return err
		}
	}
	return nil
}

// byEncoding sorts parallel data by the bytewise order of encoded keys.
type byEncoding struct {
	keys [][]byte
	swap func(i, j int)
}

func (s *byEncoding) Len() int           { return len(s.keys) }
func (s *byEncoding) Less(i, j int) bool { return bytes.Compare(s.keys[i], s.keys[j]) < 0 }
func (s *byEncoding) Swap(i, j int) {
	s.keys[i], s.keys[j] = s.keys[j], s.keys[i]
	s.swap(i, j)
}

func (e *Encoder) encodeTime(t time.Time) error {
	if e.opts.DatetimeAsTimestamp {
		writeHead(e.c, majorTag, CBORTagEpochDateTime)
		if t.Nanosecond() == 0 {
			e.encodeInt64(t.Unix())
		} else {
			e.encodeFloat(float64(t.Unix()) + float64(t.Nanosecond())/1e9)
		}
		return nil
	}
	writeHead(e.c, majorTag, CBORTagDateTimeString)
	e.encodeStringPayload(majorText, []byte(t.Format(time.RFC3339Nano)))
	return nil
}

func (e *Encoder) encodeDate(d Date) error {
	if e.opts.DateAsDatetime {
		if e.opts.Timezone == nil {
			return NewUnsupportedValueError("date promotion requires a timezone")
		}
		return e.encodeTime(time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, e.opts.Timezone))
	}
	writeHead(e.c, majorTag, CBORTagDateString)
	e.encodeStringPayload(majorText, []byte(d.String()))
	return nil
}

func (e *Encoder) encodeDecimal(d Decimal) error {
	if d.Mantissa == nil {
		return NewUnsupportedValueError("nil decimal mantissa")
	}
	writeHead(e.c, majorTag, CBORTagDecimal)
	writeHead(e.c, majorArray, 2)
	e.encodeInt64(d.Exponent)
	return e.encodeBigInt(d.Mantissa)
}

// encodeBigFloat writes f as tag 5 [exponent, mantissa] with an integer
// mantissa of minimal precision, so mantissa × 2^exponent == f exactly.
func (e *Encoder) encodeBigFloat(f *big.Float) error {
	if f == nil {
		return NewUnsupportedValueError("nil big float")
	}
	if f.IsInf() {
		return NewUnsupportedValueError("infinite big float")
	}
	writeHead(e.c, majorTag, CBORTagBigFloat)
	writeHead(e.c, majorArray, 2)
	if f.Sign() == 0 {
		e.encodeInt64(0)
		e.encodeInt64(0)
		return nil
	}
	exp := f.MantExp(nil)
	prec := int(f.MinPrec())
	scaled := new(big.Float).SetMantExp(f, prec-exp)
	mant, _ := scaled.Int(nil)
	e.encodeInt64(int64(exp - prec))
	return e.encodeBigInt(mant)
}

// canonicalBytes is the canonical standalone encoding of v, the basis of
// CBOR equality and of the key digests.
func canonicalBytes(v Value) ([]byte, error) {
	return encodeStandalone(v)
}

// encodeStandalone encodes v canonically with sharing and string
// referencing off, for use as a sort key or an equality witness. Cyclic
// values fail with CyclicReference.
func encodeStandalone(v interface{}) ([]byte, error) {
	return Encode(v, EncOptions{Canonical: true})
}
