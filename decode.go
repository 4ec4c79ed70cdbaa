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
	"encoding/binary"
	"io"
	"math"
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/x448/float16"
)

// StrErrorsMode selects the policy for invalid UTF-8 in text strings.
type StrErrorsMode uint8

const (
	// StrErrorsStrict rejects invalid UTF-8 as a malformed item.
	StrErrorsStrict StrErrorsMode = iota
	// StrErrorsReplace substitutes U+FFFD for invalid sequences.
	StrErrorsReplace
	// StrErrorsIgnore drops invalid bytes.
	StrErrorsIgnore
)

// DupMapKeyMode selects the policy for duplicate map keys.
type DupMapKeyMode uint8

const (
	// DupMapKeyReject fails the decode on a duplicate key.
	DupMapKeyReject DupMapKeyMode = iota
	// DupMapKeyLastWins keeps the last value seen for a key.
	DupMapKeyLastWins
)

// ObjectHookFunc is invoked on every decoded map; the returned value is
// substituted in the output.
type ObjectHookFunc func(d *Decoder, m *Map) (Value, error)

// DecOptions configures a decode pass.
type DecOptions struct {
	// TagSet routes tag numbers to user decoders before the built-in
	// registry is consulted.
	TagSet *TagSet

	// ObjectHook rewrites decoded maps.
	ObjectHook ObjectHookFunc

	// DisableBuiltinTags skips the built-in registry, including the
	// sharing and stringref machinery tags; every tag then surfaces as a
	// Tagged or through TagSet.
	DisableBuiltinTags bool

	// StrErrors is the invalid UTF-8 policy.
	StrErrors StrErrorsMode

	// DupMapKey is the duplicate map key policy.
	DupMapKey DupMapKeyMode

	// Canonical rejects non-minimal heads and indefinite lengths.
	Canonical bool

	// MaxDepth bounds nesting; zero means the package default.
	MaxDepth int
}

// Decoder reads CBOR data items from an input cursor.
//
// The share table, stringref namespace and immutable flag belong to one
// top-level Decode call; hooks re-entering the decoder through
// DecodeFromBytes run below the top level and share that state.
type Decoder struct {
	c        *readCursor
	opts     DecOptions
	maxDepth int
	depth    int

	shareables []Value
	shareIndex int
	refs       *decStringRefs
	immutable  bool
}

// NewDecoder creates a Decoder reading from r.
func NewDecoder(r io.Reader, opts DecOptions) *Decoder {
	d := newDecoder(opts)
	d.c = newStreamReadCursor(r)
	return d
}

func newDecoder(opts DecOptions) *Decoder {
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}
	return &Decoder{
		opts:       opts,
		maxDepth:   maxDepth,
		shareIndex: -1,
	}
}

// Decode deserializes one complete data item from data and fails with
// TrailingData if bytes remain.
func Decode(data []byte, opts DecOptions) (Value, error) {
	d := newDecoder(opts)
	d.c = newByteReadCursor(data)
	v, err := d.Decode()
	if err != nil {
		return nil, err
	}
	if n := d.c.remaining(); n > 0 {
		return nil, NewTrailingDataError("decode finished with bytes remaining")
	}
	return v, nil
}

// DecodeFrom deserializes one data item from source.
func DecodeFrom(source io.Reader, opts DecOptions) (Value, error) {
	return NewDecoder(source, opts).Decode()
}

// Decode reads the next value from the stream. Each top-level call
// starts with a fresh share table and stringref namespace.
func (d *Decoder) Decode() (Value, error) {
	v, err := d.decodeSequenceItem()
	if err != nil {
		return nil, mapIOError(err)
	}
	return v, nil
}

// DecodeFromBytes decodes a complete item from buf against the decoder's
// live share table and stringref namespace. Intended for tag hooks that
// carry sub-payloads as byte strings.
func (d *Decoder) DecodeFromBytes(buf []byte) (Value, error) {
	old := d.c
	d.c = newByteReadCursor(buf)
	defer func() { d.c = old }()
	v, err := d.decodeItem(false, false)
	if err != nil {
		return nil, mapIOError(err)
	}
	return v, nil
}

// SetShareable installs v in the share table slot reserved for the tag 28
// item currently being decoded, if any, and returns v. Tag hooks for
// types whose state can reference themselves must call this with a shell
// before decoding children.
func (d *Decoder) SetShareable(v Value) Value {
	if d.shareIndex >= 0 {
		d.shareables[d.shareIndex] = v
	}
	return v
}

// Immutable reports whether the value currently being decoded will be
// used as a map key or set element. Hooks observing it must return a
// value whose canonical encoding is stable.
func (d *Decoder) Immutable() bool {
	return d.immutable
}

func mapIOError(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return NewMalformedItemErrorWrapped("premature end of stream", err)
	}
	return err
}

// decodeItem reads one data item. forceImmutable marks the item (and its
// children) as decoded in immutable context; unshared detaches the item
// from the share table slot currently reserved, so that map keys, tag
// payloads and reference indexes cannot clobber it.
func (d *Decoder) decodeItem(forceImmutable, unshared bool) (Value, error) {
	v, isBreak, err := d.decodeItemOrBreak(forceImmutable, unshared, false)
	if err != nil {
		return nil, err
	}
	if isBreak {
		return nil, NewMalformedItemError("break outside indefinite-length item")
	}
	return v, nil
}

func (d *Decoder) decodeItemOrBreak(forceImmutable, unshared, allowBreak bool) (Value, bool, error) {
	ib, err := d.c.readByte()
	if err != nil {
		if err == io.EOF && d.depth > 0 {
			// only the first byte of a top-level item may end cleanly
			err = io.ErrUnexpectedEOF
		}
		return nil, false, err
	}
	if ib == breakByte {
		if allowBreak {
			return nil, true, nil
		}
		return nil, false, NewMalformedItemError("break outside indefinite-length item")
	}

	if d.depth >= d.maxDepth {
		return nil, false, NewMaxDepthError(d.maxDepth)
	}
	d.depth++
	oldImmutable := d.immutable
	oldIndex := d.shareIndex
	if forceImmutable {
		d.immutable = true
	}
	if unshared {
		d.shareIndex = -1
	}
	defer func() {
		d.depth--
		d.immutable = oldImmutable
		d.shareIndex = oldIndex
	}()

	major := ib >> 5
	info := ib & 31
	var v Value
	switch major {
	case majorUnsigned:
		v, err = d.decodeUnsigned(info)
	case majorNegative:
		v, err = d.decodeNegative(info)
	case majorBytes:
		v, err = d.decodeByteString(info)
	case majorText:
		v, err = d.decodeTextString(info)
	case majorArray:
		v, err = d.decodeArray(info)
	case majorMap:
		v, err = d.decodeMap(info)
	case majorTag:
		v, err = d.decodeSemantic(info)
	default:
		v, err = d.decodeSpecial(info)
	}
	if err != nil {
		return nil, false, err
	}
	return v, false, nil
}

func (d *Decoder) decodeUnsigned(info byte) (Value, error) {
	arg, _, err := readArgument(d.c, info, false, d.opts.Canonical)
	if err != nil {
		return nil, err
	}
	if arg <= math.MaxInt64 {
		return d.SetShareable(Int(arg)), nil
	}
	return d.SetShareable(BigInt{new(big.Int).SetUint64(arg)}), nil
}

func (d *Decoder) decodeNegative(info byte) (Value, error) {
	arg, _, err := readArgument(d.c, info, false, d.opts.Canonical)
	if err != nil {
		return nil, err
	}
	if arg <= math.MaxInt64 {
		return d.SetShareable(Int(-int64(arg) - 1)), nil
	}
	n := new(big.Int).SetUint64(arg)
	n.Add(n, big.NewInt(1))
	n.Neg(n)
	return d.SetShareable(BigInt{n}), nil
}

func (d *Decoder) decodeByteString(info byte) (Value, error) {
	length, indefinite, err := readArgument(d.c, info, true, d.opts.Canonical)
	if err != nil {
		return nil, err
	}
	if indefinite {
		var buf []byte
		for {
			chunk, done, err := d.readChunk(majorBytes)
			if err != nil {
				return nil, err
			}
			if done {
				break
			}
			buf = append(buf, chunk...)
		}
		return d.SetShareable(Bytes(buf)), nil
	}
	raw, err := d.readDefinite(length)
	if err != nil {
		return nil, err
	}
	b := Bytes(append([]byte(nil), raw...))
	if d.refs != nil {
		d.refs.record(b, len(b))
	}
	return d.SetShareable(b), nil
}

func (d *Decoder) decodeTextString(info byte) (Value, error) {
	length, indefinite, err := readArgument(d.c, info, true, d.opts.Canonical)
	if err != nil {
		return nil, err
	}
	if indefinite {
		// chunks must each be definite-length text, so a UTF-8 sequence
		// cannot straddle a chunk boundary
		var sb strings.Builder
		for {
			chunk, done, err := d.readChunk(majorText)
			if err != nil {
				return nil, err
			}
			if done {
				break
			}
			s, err := d.applyStrPolicy(chunk)
			if err != nil {
				return nil, err
			}
			sb.WriteString(s)
		}
		return d.SetShareable(Text(sb.String())), nil
	}
	raw, err := d.readDefinite(length)
	if err != nil {
		return nil, err
	}
	s, err := d.applyStrPolicy(raw)
	if err != nil {
		return nil, err
	}
	t := Text(s)
	if d.refs != nil {
		d.refs.record(t, len(raw))
	}
	return d.SetShareable(t), nil
}

// readChunk reads one chunk of an indefinite-length string, rejecting
// chunks that are not definite-length strings of the expected major type.
func (d *Decoder) readChunk(major byte) ([]byte, bool, error) {
	ib, err := d.c.readByte()
	if err != nil {
		return nil, false, coerceTruncated(err)
	}
	if ib == breakByte {
		return nil, true, nil
	}
	if ib>>5 != major {
		return nil, false, NewMalformedItemError("mixed chunk types in indefinite-length string")
	}
	length, indefinite, err := readArgument(d.c, ib&31, true, d.opts.Canonical)
	if err != nil {
		return nil, false, err
	}
	if indefinite {
		return nil, false, NewMalformedItemError("nested indefinite-length string chunk")
	}
	chunk, err := d.readDefinite(length)
	if err != nil {
		return nil, false, err
	}
	return chunk, false, nil
}

func (d *Decoder) readDefinite(length uint64) ([]byte, error) {
	if length > uint64(math.MaxInt32) {
		return nil, NewMalformedItemError("unreasonable string length")
	}
	return d.c.read(int(length))
}

func (d *Decoder) applyStrPolicy(raw []byte) (string, error) {
	if utf8.Valid(raw) {
		return string(raw), nil
	}
	switch d.opts.StrErrors {
	case StrErrorsReplace:
		return strings.ToValidUTF8(string(raw), "�"), nil
	case StrErrorsIgnore:
		return strings.ToValidUTF8(string(raw), ""), nil
	default:
		return "", NewMalformedItemError("invalid UTF-8 in text string")
	}
}

func (d *Decoder) decodeArray(info byte) (Value, error) {
	length, indefinite, err := readArgument(d.c, info, true, d.opts.Canonical)
	if err != nil {
		return nil, err
	}
	shell := &Array{}
	if !d.immutable {
		// the shell must be addressable before children decode, so that
		// tag 29 references inside a cycle resolve to it
		d.SetShareable(shell)
	}
	if indefinite {
		for {
			v, isBreak, err := d.decodeItemOrBreak(false, true, true)
			if err != nil {
				return nil, err
			}
			if isBreak {
				break
			}
			shell.Elems = append(shell.Elems, v)
		}
	} else {
		if length > uint64(math.MaxInt32) {
			return nil, NewMalformedItemError("unreasonable array length")
		}
		for i := uint64(0); i < length; i++ {
			v, err := d.decodeItem(false, true)
			if err != nil {
				return nil, err
			}
			shell.Elems = append(shell.Elems, v)
		}
	}
	if d.immutable {
		shell.frozen = true
		d.SetShareable(shell)
	}
	return shell, nil
}

func (d *Decoder) decodeMap(info byte) (Value, error) {
	length, indefinite, err := readArgument(d.c, info, true, d.opts.Canonical)
	if err != nil {
		return nil, err
	}
	dup := dupKeyLastWins
	if d.opts.DupMapKey == DupMapKeyReject {
		dup = dupKeyReject
	}
	shell := NewMap()
	d.SetShareable(shell)
	if indefinite {
		for {
			k, isBreak, err := d.decodeItemOrBreak(true, true, true)
			if err != nil {
				return nil, err
			}
			if isBreak {
				break
			}
			v, err := d.decodeItem(false, true)
			if err != nil {
				return nil, err
			}
			if err := shell.insert(k, v, dup); err != nil {
				return nil, err
			}
		}
	} else {
		if length > uint64(math.MaxInt32) {
			return nil, NewMalformedItemError("unreasonable map length")
		}
		for i := uint64(0); i < length; i++ {
			k, err := d.decodeItem(true, true)
			if err != nil {
				return nil, err
			}
			v, err := d.decodeItem(false, true)
			if err != nil {
				return nil, err
			}
			if err := shell.insert(k, v, dup); err != nil {
				return nil, err
			}
		}
	}
	if d.opts.ObjectHook != nil {
		res, err := d.opts.ObjectHook(d, shell)
		if err != nil {
			return nil, err
		}
		return d.SetShareable(res), nil
	}
	if d.immutable {
		shell.frozen = true
	}
	return shell, nil
}

func (d *Decoder) decodeSemantic(info byte) (Value, error) {
	num, _, err := readArgument(d.c, info, false, d.opts.Canonical)
	if err != nil {
		return nil, err
	}

	// machinery tags are interpreted before descending into the payload
	if !d.opts.DisableBuiltinTags {
		switch num {
		case CBORTagShareable:
			oldIndex := d.shareIndex
			d.shareIndex = len(d.shareables)
			d.shareables = append(d.shareables, nil)
			v, err := d.decodeItem(false, false)
			d.shareIndex = oldIndex
			if err != nil {
				return nil, err
			}
			return v, nil
		case CBORTagSharedRef:
			iv, err := d.decodeItem(false, true)
			if err != nil {
				return nil, err
			}
			index, ok := iv.(Int)
			if !ok || index < 0 {
				return nil, NewMalformedItemError("shared reference index is not an unsigned integer")
			}
			if uint64(index) >= uint64(len(d.shareables)) {
				return nil, NewShareIndexError(uint64(index), "not found")
			}
			slot := d.shareables[index]
			if slot == nil {
				return nil, NewShareIndexError(uint64(index), "has not been initialized")
			}
			return slot, nil
		case CBORTagStringRefScope:
			oldRefs := d.refs
			d.refs = &decStringRefs{}
			v, err := d.decodeItem(false, true)
			d.refs = oldRefs
			if err != nil {
				return nil, err
			}
			return v, nil
		}
	}

	// the shell is registered before the payload decodes, so references
	// inside the payload observe the tagged identity
	shell := &Tagged{Number: num}
	d.SetShareable(shell)
	content, err := d.decodeItem(num == CBORTagSet, true)
	if err != nil {
		return nil, err
	}
	shell.Content = content

	if ts := d.opts.TagSet; ts != nil {
		if h, ok := ts.handler(num); ok {
			res, err := h.call(d, shell)
			if err != nil {
				return nil, NewTagHookError(num, err)
			}
			return d.SetShareable(res), nil
		}
	}
	if !d.opts.DisableBuiltinTags {
		res, handled, err := decodeBuiltinTag(d, num, content)
		if err != nil {
			return nil, err
		}
		if handled {
			return d.SetShareable(res), nil
		}
	}
	return d.SetShareable(shell), nil
}

func (d *Decoder) decodeSpecial(info byte) (Value, error) {
	switch {
	case info < 20:
		return Simple(info), nil
	case info == 20:
		return Bool(false), nil
	case info == 21:
		return Bool(true), nil
	case info == 22:
		return Null{}, nil
	case info == 23:
		return Undefined{}, nil
	case info == 24:
		b, err := d.c.readByte()
		if err != nil {
			return nil, coerceTruncated(err)
		}
		if b < 32 {
			return nil, NewMalformedItemError("invalid two-byte simple value")
		}
		return Simple(b), nil
	case info == 25:
		p, err := d.c.read(2)
		if err != nil {
			return nil, err
		}
		h := float16.Frombits(binary.BigEndian.Uint16(p))
		return d.SetShareable(Float(h.Float32())), nil
	case info == 26:
		p, err := d.c.read(4)
		if err != nil {
			return nil, err
		}
		return d.SetShareable(Float(math.Float32frombits(binary.BigEndian.Uint32(p)))), nil
	case info == 27:
		p, err := d.c.read(8)
		if err != nil {
			return nil, err
		}
		return d.SetShareable(Float(math.Float64frombits(binary.BigEndian.Uint64(p)))), nil
	default:
		// 28..30 are reserved; 31 is handled as break by the caller
		return nil, NewMalformedItemError("reserved major type 7 additional info")
	}
}
