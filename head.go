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
	"fmt"
	"io"
	"math"
)

// CBOR major types.
const (
	majorUnsigned byte = 0
	majorNegative byte = 1
	majorBytes    byte = 2
	majorText     byte = 3
	majorArray    byte = 4
	majorMap      byte = 5
	majorTag      byte = 6
	majorSimple   byte = 7
)

const (
	additionalIndefinite byte = 31
	breakByte            byte = 0xff
)

// writeHead emits the shortest head encoding the major type and argument:
// immediate for arguments below 24, then 1, 2, 4 or 8 argument bytes.
func writeHead(c *writeCursor, major byte, arg uint64) {
	hi := major << 5
	switch {
	case arg < 24:
		c.writeByte(hi | byte(arg))
	case arg <= math.MaxUint8:
		c.writeByte(hi | 24)
		c.writeByte(byte(arg))
	case arg <= math.MaxUint16:
		var s [2]byte
		binary.BigEndian.PutUint16(s[:], uint16(arg))
		c.writeByte(hi | 25)
		c.write(s[:])
	case arg <= math.MaxUint32:
		var s [4]byte
		binary.BigEndian.PutUint32(s[:], uint32(arg))
		c.writeByte(hi | 26)
		c.write(s[:])
	default:
		var s [8]byte
		binary.BigEndian.PutUint64(s[:], arg)
		c.writeByte(hi | 27)
		c.write(s[:])
	}
}

// headSize returns the encoded size in bytes of the shortest head for arg.
func headSize(arg uint64) int {
	if arg < 24 {
		return 1
	}
	if arg <= math.MaxUint8 {
		return 2
	}
	if arg <= math.MaxUint16 {
		return 3
	}
	if arg <= math.MaxUint32 {
		return 5
	}
	return 9
}

// readArgument decodes the argument following an initial byte with the
// given additional info. It reports indefinite=true for info 31 when the
// caller allows it, and rejects the reserved info values 28..30. With
// requireMinimal set, non-minimal argument widths are rejected.
func readArgument(c *readCursor, info byte, allowIndefinite, requireMinimal bool) (arg uint64, indefinite bool, err error) {
	switch {
	case info < 24:
		return uint64(info), false, nil
	case info == 24:
		b, err := c.readByte()
		if err != nil {
			return 0, false, coerceTruncated(err)
		}
		if requireMinimal && b < 24 {
			return 0, false, NewMalformedItemError("non-minimal head")
		}
		return uint64(b), false, nil
	case info == 25:
		p, err := c.read(2)
		if err != nil {
			return 0, false, err
		}
		v := uint64(binary.BigEndian.Uint16(p))
		if requireMinimal && v <= math.MaxUint8 {
			return 0, false, NewMalformedItemError("non-minimal head")
		}
		return v, false, nil
	case info == 26:
		p, err := c.read(4)
		if err != nil {
			return 0, false, err
		}
		v := uint64(binary.BigEndian.Uint32(p))
		if requireMinimal && v <= math.MaxUint16 {
			return 0, false, NewMalformedItemError("non-minimal head")
		}
		return v, false, nil
	case info == 27:
		p, err := c.read(8)
		if err != nil {
			return 0, false, err
		}
		v := binary.BigEndian.Uint64(p)
		if requireMinimal && v <= math.MaxUint32 {
			return 0, false, NewMalformedItemError("non-minimal head")
		}
		return v, false, nil
	case info == additionalIndefinite && allowIndefinite:
		if requireMinimal {
			return 0, false, NewMalformedItemError("indefinite length in canonical mode")
		}
		return 0, true, nil
	default:
		return 0, false, NewMalformedItemError(fmt.Sprintf("reserved additional info 0x%x", info))
	}
}

// coerceTruncated turns a clean-EOF from a single byte read inside an
// item into the truncation error the rest of the engine expects.
func coerceTruncated(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
