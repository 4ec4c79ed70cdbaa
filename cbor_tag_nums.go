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

const (
	// Tag numbers from the IANA CBOR tag registry handled by the built-in
	// registry. Tags 25, 28, 29 and 256 are machinery tags consumed by the
	// engines themselves; the rest map payloads to semantic variants.

	CBORTagDateTimeString uint64 = 0   // text, RFC 3339 date-time
	CBORTagEpochDateTime  uint64 = 1   // int or float seconds
	CBORTagUnsignedBignum uint64 = 2   // byte string, big endian
	CBORTagNegativeBignum uint64 = 3   // byte string, -(n+1)
	CBORTagDecimal        uint64 = 4   // [exponent, mantissa], base 10
	CBORTagBigFloat       uint64 = 5   // [exponent, mantissa], base 2
	CBORTagStringRef      uint64 = 25  // uint index into the stringref namespace
	CBORTagShareable      uint64 = 28  // marks the next item as shareable
	CBORTagSharedRef      uint64 = 29  // uint index into the share table
	CBORTagRational       uint64 = 30  // [numerator, denominator]
	CBORTagRegexp         uint64 = 35  // text, regular expression source
	CBORTagMIME           uint64 = 36  // text, MIME message
	CBORTagUUID           uint64 = 37  // byte string of length 16
	CBORTagEpochDate      uint64 = 100 // int days since the epoch
	CBORTagStringRefScope uint64 = 256 // opens a stringref namespace
	CBORTagSet            uint64 = 258 // array of unique elements
	CBORTagNetworkAddress uint64 = 260 // byte string of length 4, 6 or 16
	CBORTagNetworkPrefix  uint64 = 261 // {address bytes: prefix length}
	CBORTagDateString     uint64 = 1004
	CBORTagSelfDescribed  uint64 = 55799
	CBORTagSequenceFile   uint64 = 55800 // not interpreted by the decoder
)

// Protocol tags carried in a CBOR sequence file header occupy the 4-byte
// head range so that the prolog has a fixed 12-byte size.
const (
	MinSequenceProtocolTag uint64 = 0x01000000
	MaxSequenceProtocolTag uint64 = 0xFFFFFFFF
)
