// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package obj

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/aclements/go-readelf/arch"
)

func TestReader(t *testing.T) {
	d := &Data{
		Off:    0x100,
		P:      []byte{1, 2, 3, 4, 5, 6, 7, 8, 0xff, 0xff, 0xff, 0xfc, 'h', 'i', 0, 'x'},
		Layout: arch.NewLayout(binary.BigEndian, 4),
	}
	r := NewReader(d)
	if v := r.Uint8(); v != 1 {
		t.Errorf("Uint8: want 1, got %d", v)
	}
	if v := r.Uint16(); v != 0x0203 {
		t.Errorf("Uint16: want 0x0203, got %#x", v)
	}
	r.Skip(1)
	if v := r.Word(); v != 0x05060708 {
		t.Errorf("Word: want 0x05060708, got %#x", v)
	}
	if v := r.SWord(); v != -4 {
		t.Errorf("SWord: want -4, got %d", v)
	}
	if s := r.CString(); string(s) != "hi" {
		t.Errorf("CString: want %q, got %q", "hi", s)
	}
	// No terminator: read to the end.
	if s := r.CString(); string(s) != "x" {
		t.Errorf("CString: want %q, got %q", "x", s)
	}
	if r.Err() != nil {
		t.Fatalf("unexpected error: %v", r.Err())
	}

	// Reading past the end is sticky and returns zero.
	r.SetOffset(14)
	if v := r.Uint32(); v != 0 {
		t.Errorf("Uint32 past end: want 0, got %#x", v)
	}
	if !errors.Is(r.Err(), ErrTruncated) {
		t.Errorf("want ErrTruncated, got %v", r.Err())
	}
	r.SetOffset(0)
	if v := r.Uint8(); v != 0 {
		t.Errorf("read after error: want 0, got %d", v)
	}
}

func TestReaderSetOffset(t *testing.T) {
	r := NewReader(&Data{P: make([]byte, 4), Layout: arch.NewLayout(binary.LittleEndian, 8)})
	r.SetOffset(4)
	if r.Err() != nil || r.Avail() != 0 {
		t.Fatalf("SetOffset(4): want no error and 0 available, got %v and %d", r.Err(), r.Avail())
	}
	r.SetOffset(5)
	if !errors.Is(r.Err(), ErrTruncated) {
		t.Fatalf("SetOffset(5): want ErrTruncated, got %v", r.Err())
	}
}

func TestReadAt(t *testing.T) {
	src := bytes.NewReader([]byte("0123456789"))
	if b, err := readAt(src, 2, 3); err != nil || string(b) != "234" {
		t.Errorf("want %q, got %q, %v", "234", b, err)
	}
	if b, err := readAt(src, 100, 0); err != nil || len(b) != 0 {
		t.Errorf("empty read: want no bytes, got %q, %v", b, err)
	}
	if _, err := readAt(src, 8, 3); !errors.Is(err, ErrTruncated) {
		t.Errorf("short read: want ErrTruncated, got %v", err)
	}
	if _, err := readAt(src, 1<<63, 1); !errors.Is(err, ErrTruncated) {
		t.Errorf("overflow: want ErrTruncated, got %v", err)
	}
}
