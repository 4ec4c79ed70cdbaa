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
	"io"
	"unicode/utf8"
)

// selfDescribeMagic is the encoding of a tag 55799 head, the conventional
// CBOR file magic.
var selfDescribeMagic = []byte{0xd9, 0xd9, 0xf7}

// EncodeSelfDescribed serializes v wrapped in the tag 55799 self-describe
// marker.
func EncodeSelfDescribed(v interface{}, opts EncOptions) ([]byte, error) {
	e := newEncoder(opts)
	e.beginTopLevel()
	writeHead(e.c, majorTag, CBORTagSelfDescribed)
	if err := e.encodeItem(v); err != nil {
		return nil, err
	}
	return e.c.bytes(), nil
}

// indefiniteWriter is the shared machinery of the indefinite-length
// stream writers: the container head goes out before the first element,
// the break byte on Close.
type indefiniteWriter struct {
	w       io.Writer
	enc     *Encoder
	initial byte
	magic   bool
	begun   bool
	closed  bool
}

func newIndefiniteWriter(w io.Writer, opts EncOptions, major byte, selfDescribe bool) indefiniteWriter {
	return indefiniteWriter{
		w:       w,
		enc:     NewEncoder(w, opts),
		initial: major<<5 | additionalIndefinite,
		magic:   selfDescribe,
	}
}

func (iw *indefiniteWriter) begin() error {
	if iw.closed {
		return NewUnsupportedValueError("write to a closed stream writer")
	}
	if iw.begun {
		return nil
	}
	iw.begun = true
	head := []byte{iw.initial}
	if iw.magic {
		head = append(append([]byte(nil), selfDescribeMagic...), iw.initial)
	}
	_, err := iw.w.Write(head)
	return err
}

func (iw *indefiniteWriter) close() error {
	if iw.closed {
		return nil
	}
	if err := iw.begin(); err != nil {
		return err
	}
	iw.closed = true
	_, err := iw.w.Write([]byte{breakByte})
	return err
}

// ArrayStreamWriter emits an indefinite-length array, one element per
// Write. The resulting stream is a single well-formed data item.
type ArrayStreamWriter struct {
	iw indefiniteWriter
}

// NewArrayStreamWriter creates an ArrayStreamWriter on w. With
// selfDescribe, the array is preceded by the tag 55799 file magic.
func NewArrayStreamWriter(w io.Writer, opts EncOptions, selfDescribe bool) *ArrayStreamWriter {
	return &ArrayStreamWriter{iw: newIndefiniteWriter(w, opts, majorArray, selfDescribe)}
}

// Write appends one element.
func (aw *ArrayStreamWriter) Write(v interface{}) error {
	if err := aw.iw.begin(); err != nil {
		return err
	}
	return aw.iw.enc.encodeStreamElement(v)
}

// Close terminates the array with a break byte.
func (aw *ArrayStreamWriter) Close() error {
	return aw.iw.close()
}

// MapStreamWriter emits an indefinite-length map, one pair per Write.
type MapStreamWriter struct {
	iw indefiniteWriter
}

// NewMapStreamWriter creates a MapStreamWriter on w.
func NewMapStreamWriter(w io.Writer, opts EncOptions, selfDescribe bool) *MapStreamWriter {
	return &MapStreamWriter{iw: newIndefiniteWriter(w, opts, majorMap, selfDescribe)}
}

// Write appends one key/value pair. The key must be encodable standalone:
// unencodable keys are rejected before anything is emitted, keeping the
// stream well formed.
func (mw *MapStreamWriter) Write(k, v interface{}) error {
	if _, err := encodeStandalone(k); err != nil {
		return err
	}
	if err := mw.iw.begin(); err != nil {
		return err
	}
	if err := mw.iw.enc.encodeStreamElement(k); err != nil {
		return err
	}
	return mw.iw.enc.encodeStreamElement(v)
}

// Close terminates the map with a break byte.
func (mw *MapStreamWriter) Close() error {
	return mw.iw.close()
}

// ByteStreamWriter emits an indefinite-length byte string, one definite
// chunk per Write. It implements io.WriteCloser.
type ByteStreamWriter struct {
	iw indefiniteWriter
}

// NewByteStreamWriter creates a ByteStreamWriter on w.
func NewByteStreamWriter(w io.Writer, opts EncOptions, selfDescribe bool) *ByteStreamWriter {
	return &ByteStreamWriter{iw: newIndefiniteWriter(w, opts, majorBytes, selfDescribe)}
}

// Write appends p as one chunk.
func (bw *ByteStreamWriter) Write(p []byte) (int, error) {
	if err := bw.iw.begin(); err != nil {
		return 0, err
	}
	c := &writeCursor{}
	writeHead(c, majorBytes, uint64(len(p)))
	c.write(p)
	if _, err := bw.iw.w.Write(c.bytes()); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close terminates the byte string with a break byte.
func (bw *ByteStreamWriter) Close() error {
	return bw.iw.close()
}

// TextStreamWriter emits an indefinite-length text string, one definite
// chunk per WriteString. Chunks must be complete UTF-8: a multi-byte
// sequence cannot straddle a chunk boundary.
type TextStreamWriter struct {
	iw indefiniteWriter
}

// NewTextStreamWriter creates a TextStreamWriter on w.
func NewTextStreamWriter(w io.Writer, opts EncOptions, selfDescribe bool) *TextStreamWriter {
	return &TextStreamWriter{iw: newIndefiniteWriter(w, opts, majorText, selfDescribe)}
}

// WriteString appends s as one chunk.
func (tw *TextStreamWriter) WriteString(s string) error {
	if !utf8.ValidString(s) {
		return NewUnsupportedValueError("text chunk is not valid UTF-8")
	}
	if err := tw.iw.begin(); err != nil {
		return err
	}
	c := &writeCursor{}
	writeHead(c, majorText, uint64(len(s)))
	c.write([]byte(s))
	_, err := tw.iw.w.Write(c.bytes())
	return err
}

// Close terminates the text string with a break byte.
func (tw *TextStreamWriter) Close() error {
	return tw.iw.close()
}

// SequenceWriter writes an RFC 8742 CBOR sequence: independent data
// items concatenated on a stream, optionally preceded by a fixed 12-byte
// protocol header.
type SequenceWriter struct {
	w           io.Writer
	enc         *Encoder
	wroteHeader bool
	wroteItem   bool
}

// NewSequenceWriter creates a SequenceWriter on w.
func NewSequenceWriter(w io.Writer, opts EncOptions) *SequenceWriter {
	return &SequenceWriter{w: w, enc: NewEncoder(w, opts)}
}

// WriteHeader emits the 12-byte prolog: the tag 55799 magic, the protocol
// tag head, and the text "BOR". protocolTag must occupy the 4-byte head
// range. The header must precede all items.
func (sw *SequenceWriter) WriteHeader(protocolTag uint64) error {
	if sw.wroteHeader || sw.wroteItem {
		return NewUnsupportedValueError("sequence header must be written first")
	}
	if protocolTag < MinSequenceProtocolTag || protocolTag > MaxSequenceProtocolTag {
		return NewUnsupportedValueError("sequence protocol tag out of range")
	}
	sw.wroteHeader = true
	c := &writeCursor{}
	c.write(selfDescribeMagic)
	writeHead(c, majorTag, protocolTag)
	writeHead(c, majorText, 3)
	c.write([]byte("BOR"))
	_, err := sw.w.Write(c.bytes())
	return err
}

// Write emits one item of the sequence.
func (sw *SequenceWriter) Write(v interface{}) error {
	sw.wroteItem = true
	return sw.enc.Encode(v)
}

// SequenceReader reads an RFC 8742 CBOR sequence as a lazy, forward-only
// iterator. With headerTags set, the first item must be the protocol
// header matching those tags; it is verified and not yielded.
type SequenceReader struct {
	dec        *Decoder
	headerTags []uint64
	started    bool
}

// NewSequenceReader creates a SequenceReader on r.
func NewSequenceReader(r io.Reader, opts DecOptions, headerTags ...uint64) *SequenceReader {
	return &SequenceReader{dec: NewDecoder(r, opts), headerTags: headerTags}
}

// Next returns the next item of the sequence, or (nil, nil) once the
// input is exhausted on an item boundary. Exhaustion inside an item is
// TrailingData.
func (sr *SequenceReader) Next() (Value, error) {
	if !sr.started {
		sr.started = true
		if len(sr.headerTags) > 0 {
			if err := sr.readHeader(); err != nil {
				return nil, err
			}
		}
	}
	v, err := sr.dec.decodeSequenceItem()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, NewTrailingDataError("sequence ended in the middle of an item")
		}
		return nil, err
	}
	return v, nil
}

func (sr *SequenceReader) readHeader() error {
	v, err := sr.dec.decodeSequenceItem()
	if err != nil {
		return NewMalformedItemErrorWrapped("missing sequence header", mapIOError(err))
	}
	for _, want := range sr.headerTags {
		if t, ok := v.(*Tagged); ok && t.Number == want {
			v = t.Content
			continue
		}
		if want == CBORTagSelfDescribed {
			// consumed by the built-in registry before we see it
			continue
		}
		return NewMalformedItemError("unexpected sequence header tag")
	}
	if s, ok := v.(Text); !ok || s != "BOR" {
		return NewMalformedItemError("sequence header payload is not \"BOR\"")
	}
	return nil
}

// decodeSequenceItem decodes one item, propagating a clean io.EOF at the
// first byte so sequence readers can detect item boundaries.
func (d *Decoder) decodeSequenceItem() (Value, error) {
	if d.depth == 0 {
		d.shareables = d.shareables[:0]
		d.shareIndex = -1
		d.refs = nil
		d.immutable = false
	}
	return d.decodeItem(false, false)
}
