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

import "fmt"

type Error interface {
	// returns true if the error indicates a corrupt or unreadable stream
	// rather than an unsupported input value
	IsFatal() bool
	// and anything else that is needed to be an error
	error
}

// MalformedItemError is returned when the bytes being decoded violate the
// CBOR grammar: a reserved head, a stray break, a truncated item, invalid
// UTF-8 under the strict policy, or a built-in tag payload of the wrong
// shape.
type MalformedItemError struct {
	reason string
	err    error
}

// NewMalformedItemError constructs a MalformedItemError
func NewMalformedItemError(reason string) *MalformedItemError {
	return &MalformedItemError{reason: reason}
}

// NewMalformedItemErrorWrapped constructs a MalformedItemError wrapping a cause
func NewMalformedItemErrorWrapped(reason string, err error) *MalformedItemError {
	return &MalformedItemError{reason: reason, err: err}
}

func (e *MalformedItemError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("malformed CBOR item: %s: %s", e.reason, e.err.Error())
	}
	return fmt.Sprintf("malformed CBOR item: %s", e.reason)
}

// IsFatal returns true if the error is fatal
func (e *MalformedItemError) IsFatal() bool {
	return true
}

// Unwrap returns the wrapped err
func (e *MalformedItemError) Unwrap() error {
	return e.err
}

// UnsupportedValueError is returned when the encoder cannot represent the
// given value: an unknown type with no default hook, a reserved simple
// value, or a Date promotion with no configured timezone.
type UnsupportedValueError struct {
	reason string
}

// NewUnsupportedValueError constructs an UnsupportedValueError
func NewUnsupportedValueError(reason string) *UnsupportedValueError {
	return &UnsupportedValueError{reason: reason}
}

// NewUnsupportedTypeError constructs an UnsupportedValueError for a value
// of a type the encoder has no representation for
func NewUnsupportedTypeError(v interface{}) *UnsupportedValueError {
	return &UnsupportedValueError{reason: fmt.Sprintf("cannot serialize value of type %T", v)}
}

func (e *UnsupportedValueError) Error() string {
	return fmt.Sprintf("unsupported value: %s", e.reason)
}

// IsFatal returns true if the error is fatal
func (e *UnsupportedValueError) IsFatal() bool {
	return false
}

// CyclicReferenceError is returned when the encoder meets a reference
// cycle while value sharing is disabled.
type CyclicReferenceError struct {
	value interface{}
}

// NewCyclicReferenceError constructs a CyclicReferenceError
func NewCyclicReferenceError(value interface{}) *CyclicReferenceError {
	return &CyclicReferenceError{value: value}
}

func (e *CyclicReferenceError) Error() string {
	return fmt.Sprintf("cyclic reference to %T detected while value sharing is disabled", e.value)
}

// IsFatal returns true if the error is fatal
func (e *CyclicReferenceError) IsFatal() bool {
	return false
}

// ShareIndexError is returned when a tag 29 reference names a share table
// slot that does not exist or has not been initialized.
type ShareIndexError struct {
	index  uint64
	reason string
}

// NewShareIndexError constructs a ShareIndexError
func NewShareIndexError(index uint64, reason string) *ShareIndexError {
	return &ShareIndexError{index: index, reason: reason}
}

func (e *ShareIndexError) Error() string {
	return fmt.Sprintf("shared reference %d: %s", e.index, e.reason)
}

// IsFatal returns true if the error is fatal
func (e *ShareIndexError) IsFatal() bool {
	return true
}

// TrailingDataError is returned when a top-level decode finishes with
// bytes remaining, or when a CBOR sequence ends in the middle of an item.
type TrailingDataError struct {
	reason string
}

// NewTrailingDataError constructs a TrailingDataError
func NewTrailingDataError(reason string) *TrailingDataError {
	return &TrailingDataError{reason: reason}
}

func (e *TrailingDataError) Error() string {
	return fmt.Sprintf("trailing data: %s", e.reason)
}

// IsFatal returns true if the error is fatal
func (e *TrailingDataError) IsFatal() bool {
	return true
}

// MaxDepthError is returned when nesting exceeds the configured recursion
// limit.
type MaxDepthError struct {
	limit int
}

// NewMaxDepthError constructs a MaxDepthError
func NewMaxDepthError(limit int) *MaxDepthError {
	return &MaxDepthError{limit: limit}
}

func (e *MaxDepthError) Error() string {
	return fmt.Sprintf("nesting exceeds the maximum depth of %d", e.limit)
}

// IsFatal returns true if the error is fatal
func (e *MaxDepthError) IsFatal() bool {
	return true
}

// TagHookError is returned when a user hook fails; it carries the tag
// number and wraps the original cause.
type TagHookError struct {
	tag uint64
	err error
}

// NewTagHookError constructs a TagHookError
func NewTagHookError(tag uint64, err error) *TagHookError {
	return &TagHookError{tag: tag, err: err}
}

func (e *TagHookError) Error() string {
	return fmt.Sprintf("hook for tag %d failed: %s", e.tag, e.err.Error())
}

// IsFatal returns true if the error is fatal
func (e *TagHookError) IsFatal() bool {
	return false
}

// Unwrap returns the wrapped err
func (e *TagHookError) Unwrap() error {
	return e.err
}
