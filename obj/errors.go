// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package obj

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedHeader indicates the file header could not be
	// trusted: a bad signature, an unknown class or encoding, or a
	// short read. Decoding of the file stops.
	ErrMalformedHeader = errors.New("malformed ELF header")

	// ErrUnknownClass indicates the identification class byte is
	// neither ELFCLASS32 nor ELFCLASS64.
	ErrUnknownClass = fmt.Errorf("%w: unknown ELF class", ErrMalformedHeader)

	// ErrTruncated indicates fewer bytes were available than a table's
	// declared size implies. It is fatal only for the table being read.
	ErrTruncated = errors.New("truncated read")

	// ErrUnresolvableIndex indicates a string, section, or symbol index
	// is out of bounds.
	ErrUnresolvableIndex = errors.New("unresolvable index")

	// ErrUnsupportedCompression indicates a compressed section uses a
	// compression type this package cannot inflate.
	ErrUnsupportedCompression = errors.New("unsupported section compression")
)
