// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package rnerr defines the sentinel error kinds raised by vnio, codec and
// archive, so that callers can classify a failure with errors.As regardless
// of which layer raised it.
package rnerr

import (
	"github.com/luci/luci-go/common/errors"
)

// Kind identifies one of the error categories from the container/codec
// error handling design.
type Kind int

const (
	// UnexpectedEof: a fixed-width read ran past the end of the stream.
	UnexpectedEof Kind = iota + 1
	// BadString: a Shift-JIS decode produced replacement characters, or a
	// quoted string was missing its opening delimiter.
	BadString
	// UnknownCompressionTag: an NSA tag byte wasn't in {0, 1, 2, 4}.
	UnknownCompressionTag
	// TooManyEntries: a writer was asked to emit more than 65535 entries.
	TooManyEntries
	// CorruptSpb: the SPB decoder read a chunk header outside {0..7}.
	// 3-bit fields can't produce this; kept as a defensive backstop.
	CorruptSpb
	// CodecFailure: the bzip2 or LZSS decoder reported a decode error.
	CodecFailure
)

func (k Kind) String() string {
	switch k {
	case UnexpectedEof:
		return "UnexpectedEof"
	case BadString:
		return "BadString"
	case UnknownCompressionTag:
		return "UnknownCompressionTag"
	case TooManyEntries:
		return "TooManyEntries"
	case CorruptSpb:
		return "CorruptSpb"
	case CodecFailure:
		return "CodecFailure"
	default:
		return "Unknown"
	}
}

// Error wraps an error with one of the sentinel Kinds above. Use errors.As
// to recover it from an annotated error chain.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an annotated *Error with the given reason, in the style of the
// teacher's errors.Reason(...).Err() calls.
func New(kind Kind, reason string) error {
	return &Error{Kind: kind, Err: errors.Reason(reason).Err()}
}

// Wrap annotates an existing error with a Kind and reason.
func Wrap(kind Kind, err error, reason string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: errors.Annotate(err).Reason(reason).Err()}
}

// Unsupported is returned by operations the original tooling left
// unimplemented: writing NS2, and LZSS encoding.
var Unsupported = errors.New("operation not supported")
