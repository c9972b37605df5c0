// Package wire provides bounds-checked primitives for reading and writing
// SSH wire encodings (RFC 4251 section 5): bytes, uint32, string and
// name-list.
//
// A Cursor never indexes past the end of its buffer. Every read either
// consumes exactly the bytes it reports or leaves the cursor where it was
// and returns an error, so decoders can be written as a flat sequence of
// reads without tracking offsets by hand.
package wire

import (
	"github.com/pzverkov/sshkex/internal/constants"
	qerrors "github.com/pzverkov/sshkex/internal/errors"
	"golang.org/x/crypto/cryptobyte"
)

// Cursor reads SSH wire types from a fixed byte buffer.
//
// Slices returned by ReadBytes and ReadLengthPrefixed alias the buffer
// passed to NewCursor; copy them if they must outlive it.
type Cursor struct {
	s       cryptobyte.String
	size    int
	ceiling int
}

// NewCursor creates a cursor over b using the default length ceiling.
func NewCursor(b []byte) *Cursor {
	return NewCursorWithCeiling(b, constants.LengthPrefixSlack)
}

// NewCursorWithCeiling creates a cursor over b. A length prefix that exceeds
// the remaining bytes by more than ceiling is reported as ErrLengthOverflow
// rather than ErrTruncated.
func NewCursorWithCeiling(b []byte, ceiling int) *Cursor {
	if ceiling < 0 {
		ceiling = 0
	}
	return &Cursor{
		s:       cryptobyte.String(b),
		size:    len(b),
		ceiling: ceiling,
	}
}

// Len returns the size of the underlying buffer.
func (c *Cursor) Len() int {
	return c.size
}

// Pos returns the number of bytes consumed so far.
func (c *Cursor) Pos() int {
	return c.size - len(c.s)
}

// Remaining returns the number of bytes not yet consumed.
func (c *Cursor) Remaining() int {
	return len(c.s)
}

// Empty reports whether all bytes have been consumed.
func (c *Cursor) Empty() bool {
	return c.s.Empty()
}

// ReadU8 reads a single byte.
func (c *Cursor) ReadU8() (byte, error) {
	var v uint8
	if !c.s.ReadUint8(&v) {
		return 0, qerrors.ErrTruncated
	}
	return v, nil
}

// ReadBool reads an SSH boolean. Any non-zero byte is true.
func (c *Cursor) ReadBool() (bool, error) {
	v, err := c.ReadU8()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// ReadU32 reads a big-endian uint32.
func (c *Cursor) ReadU32() (uint32, error) {
	var v uint32
	if !c.s.ReadUint32(&v) {
		return 0, qerrors.ErrTruncated
	}
	return v, nil
}

// ReadBytes reads exactly n bytes.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, qerrors.ErrLengthOverflow
	}
	var out []byte
	if !c.s.ReadBytes(&out, n) {
		return nil, qerrors.ErrTruncated
	}
	return out, nil
}

// ReadLengthPrefixed reads an SSH string: a big-endian uint32 length n
// followed by n bytes.
//
// The declared length is checked against the remaining buffer before any
// slicing. If n is larger than the remaining bytes plus the cursor's ceiling
// the result is ErrLengthOverflow, otherwise a short buffer is ErrTruncated.
// On failure the cursor is left at the length field.
func (c *Cursor) ReadLengthPrefixed() ([]byte, error) {
	start := c.s

	var n uint32
	if !c.s.ReadUint32(&n) {
		return nil, qerrors.ErrTruncated
	}

	if uint64(n) > uint64(len(c.s))+uint64(c.ceiling) {
		c.s = start
		return nil, qerrors.ErrLengthOverflow
	}

	var out []byte
	if !c.s.ReadBytes(&out, int(n)) {
		c.s = start
		return nil, qerrors.ErrTruncated
	}
	return out, nil
}
