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
	"math/big"
	"net/mail"
	"net/netip"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Time is a point in time (tags 0 and 1). The offset of the wrapped time
// is preserved by the tag 0 text form and lost by the tag 1 epoch form.
type Time struct {
	time.Time
}

// NewTime wraps t as a Value.
func NewTime(t time.Time) Time {
	return Time{t}
}

// Date is a calendar date with no time of day (tag 1004). With the
// DateAsDatetime encoder option a Date is promoted to midnight in the
// configured Timezone before encoding.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate constructs a Date.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// String returns the RFC 3339 full-date form.
func (d Date) String() string {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
}

// Decimal is an arbitrary decimal fraction Mantissa × 10^Exponent
// (tag 4).
type Decimal struct {
	Mantissa *big.Int
	Exponent int64
}

// NewDecimal constructs a Decimal. mantissa must not be nil.
func NewDecimal(mantissa *big.Int, exponent int64) Decimal {
	return Decimal{Mantissa: mantissa, Exponent: exponent}
}

// BigFloat is an arbitrary binary fraction mantissa × 2^exponent (tag 5).
type BigFloat struct {
	*big.Float
}

// NewBigFloat wraps f as a Value. f must be finite and not nil.
func NewBigFloat(f *big.Float) BigFloat {
	return BigFloat{f}
}

// Rational is a rational number (tag 30).
type Rational struct {
	*big.Rat
}

// NewRational wraps r as a Value. r must not be nil.
func NewRational(r *big.Rat) Rational {
	return Rational{r}
}

// Regexp is a compiled regular expression (tag 35). The source text is
// what travels on the wire.
type Regexp struct {
	*regexp.Regexp
}

// NewRegexp wraps re as a Value. re must not be nil.
func NewRegexp(re *regexp.Regexp) Regexp {
	return Regexp{re}
}

// MIME is a MIME message (tag 36). Raw is the wire form; Message is the
// parse of Raw.
type MIME struct {
	Raw     string
	Message *mail.Message
}

// UUID is an RFC 4122 UUID (tag 37).
type UUID struct {
	uuid.UUID
}

// NewUUID wraps id as a Value.
func NewUUID(id uuid.UUID) UUID {
	return UUID{id}
}

// Addr is an IPv4 or IPv6 address (tag 260).
type Addr struct {
	netip.Addr
}

// NewAddr wraps a as a Value.
func NewAddr(a netip.Addr) Addr {
	return Addr{a}
}

// Prefix is an IP network (tag 261).
type Prefix struct {
	netip.Prefix
}

// NewPrefix wraps p as a Value.
func NewPrefix(p netip.Prefix) Prefix {
	return Prefix{p}
}

func (Time) isValue()     {}
func (Date) isValue()     {}
func (Decimal) isValue()  {}
func (BigFloat) isValue() {}
func (Rational) isValue() {}
func (Regexp) isValue()   {}
func (MIME) isValue()     {}
func (UUID) isValue()     {}
func (Addr) isValue()     {}
func (Prefix) isValue()   {}
