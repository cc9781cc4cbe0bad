// Copyright 2020 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package obj

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/aclements/go-readelf/arch"
)

// Data represents byte data read from an object file.
type Data struct {
	// Off is the file offset at which this data starts.
	Off uint64

	// P stores the raw byte data. Callers must not modify this.
	P []byte

	// Layout specifies the byte order and class word size used to
	// decode records in P.
	Layout arch.Layout
}

// A Reader is a bounds-checked cursor over a Data.
//
// Reads past the end of the data do not panic. Instead the first such
// read records an ErrTruncated error, returned by Err, and that read
// and every later read return zero.
type Reader struct {
	d   *Data
	p   int // Offset into P
	err error
}

func NewReader(d *Data) *Reader {
	return &Reader{d: d}
}

// Err returns the first error encountered by r, or nil.
func (r *Reader) Err() error {
	return r.err
}

// Offset returns the current position of r's cursor as an offset from
// the beginning of r's data.
func (r *Reader) Offset() int {
	return r.p
}

// SetOffset moves r's cursor to the given offset from the beginning of
// r's data. Moving the cursor out of range is an error.
func (r *Reader) SetOffset(offset int) {
	if offset < 0 || offset > len(r.d.P) {
		r.fail(fmt.Errorf("%w: offset %d out of data's range [0,%d]", ErrTruncated, offset, len(r.d.P)))
		return
	}
	r.p = offset
}

// Avail returns the number of bytes remaining in r's Data.
func (r *Reader) Avail() int {
	return len(r.d.P) - r.p
}

func (r *Reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
	r.p = len(r.d.P)
}

// need reports whether n more bytes are available and records an
// error if they are not.
func (r *Reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if n > r.Avail() {
		r.fail(fmt.Errorf("%w: need %d bytes at file offset %#x, have %d", ErrTruncated, n, r.d.Off+uint64(r.p), r.Avail()))
		return false
	}
	return true
}

func (r *Reader) Uint8() uint8 {
	if !r.need(1) {
		return 0
	}
	o := r.p
	r.p++
	return r.d.P[o]
}

func (r *Reader) Uint16() uint16 {
	if !r.need(2) {
		return 0
	}
	o := r.p
	r.p += 2
	return r.d.Layout.Uint16(r.d.P[o:])
}

func (r *Reader) Uint32() uint32 {
	if !r.need(4) {
		return 0
	}
	o := r.p
	r.p += 4
	return r.d.Layout.Uint32(r.d.P[o:])
}

func (r *Reader) Uint64() uint64 {
	if !r.need(8) {
		return 0
	}
	o := r.p
	r.p += 8
	return r.d.Layout.Uint64(r.d.P[o:])
}

// Word reads an unsigned word using the word size from r's Data.
func (r *Reader) Word() uint64 {
	n := r.d.Layout.WordSize()
	if !r.need(n) {
		return 0
	}
	o := r.p
	r.p += n
	return r.d.Layout.Word(r.d.P[o:])
}

// SWord reads a signed word using the word size from r's Data and
// sign-extends it.
func (r *Reader) SWord() int64 {
	n := r.d.Layout.WordSize()
	if !r.need(n) {
		return 0
	}
	o := r.p
	r.p += n
	return r.d.Layout.SWord(r.d.P[o:])
}

// Skip advances r's cursor by n bytes.
func (r *Reader) Skip(n int) {
	if r.need(n) {
		r.p += n
	}
}

// CString reads a NULL-terminated string. The result omits the final
// NULL byte. If there is no NULL, this reads to the end of r's Data.
func (r *Reader) CString() []byte {
	if r.err != nil {
		return nil
	}
	s := r.d.P[r.p:]
	n := bytes.IndexByte(s, 0)
	if n < 0 {
		r.p = len(r.d.P)
		return s
	}
	r.p += n + 1
	return s[:n]
}

// readAt reads exactly size bytes at offset off of src. If fewer bytes
// are available it returns an error wrapping ErrTruncated.
//
// The buffer grows as data arrives, so a corrupt size field cannot
// force a huge allocation up front.
func readAt(src io.ReaderAt, off, size uint64) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}
	if off > math.MaxInt64 || size > math.MaxInt64-off {
		return nil, fmt.Errorf("%w: range [%#x,+%#x) overflows", ErrTruncated, off, size)
	}
	buf, err := io.ReadAll(io.NewSectionReader(src, int64(off), int64(size)))
	if err != nil {
		return nil, err
	}
	if uint64(len(buf)) != size {
		return nil, fmt.Errorf("%w: read %d of %d bytes at offset %#x", ErrTruncated, len(buf), size, off)
	}
	return buf, nil
}
