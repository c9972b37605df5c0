package wire_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	qerrors "github.com/pzverkov/sshkex/internal/errors"
	"github.com/pzverkov/sshkex/pkg/wire"
)

func lengthPrefixed(declared uint32, body []byte) []byte {
	buf := make([]byte, 4, 4+len(body))
	binary.BigEndian.PutUint32(buf, declared)
	return append(buf, body...)
}

func TestCursorReadU8(t *testing.T) {
	c := wire.NewCursor([]byte{0x14})

	v, err := c.ReadU8()
	if err != nil {
		t.Fatalf("ReadU8 failed: %v", err)
	}
	if v != 0x14 {
		t.Errorf("ReadU8 = %#x, want 0x14", v)
	}
	if !c.Empty() {
		t.Error("cursor should be empty")
	}

	if _, err := c.ReadU8(); !errors.Is(err, qerrors.ErrTruncated) {
		t.Errorf("ReadU8 on empty cursor: got %v, want ErrTruncated", err)
	}
	if c.Pos() != 1 {
		t.Errorf("failed read moved cursor to %d", c.Pos())
	}
}

func TestCursorReadU32(t *testing.T) {
	c := wire.NewCursor([]byte{0x00, 0x00, 0x01, 0x02, 0xff})

	v, err := c.ReadU32()
	if err != nil {
		t.Fatalf("ReadU32 failed: %v", err)
	}
	if v != 0x0102 {
		t.Errorf("ReadU32 = %#x, want 0x102", v)
	}
	if c.Remaining() != 1 {
		t.Errorf("Remaining = %d, want 1", c.Remaining())
	}

	// Only one byte left: the read must fail and leave the cursor untouched.
	if _, err := c.ReadU32(); !errors.Is(err, qerrors.ErrTruncated) {
		t.Errorf("short ReadU32: got %v, want ErrTruncated", err)
	}
	if c.Remaining() != 1 {
		t.Errorf("failed ReadU32 consumed bytes, Remaining = %d", c.Remaining())
	}
}

func TestCursorReadBool(t *testing.T) {
	c := wire.NewCursor([]byte{0x00, 0x01, 0x7f})
	want := []bool{false, true, true}

	for i, w := range want {
		got, err := c.ReadBool()
		if err != nil {
			t.Fatalf("ReadBool %d failed: %v", i, err)
		}
		if got != w {
			t.Errorf("ReadBool %d = %v, want %v", i, got, w)
		}
	}
}

func TestCursorReadBytes(t *testing.T) {
	data := []byte("0123456789")
	c := wire.NewCursor(data)

	got, err := c.ReadBytes(4)
	if err != nil {
		t.Fatalf("ReadBytes failed: %v", err)
	}
	if !bytes.Equal(got, []byte("0123")) {
		t.Errorf("ReadBytes = %q, want %q", got, "0123")
	}

	if _, err := c.ReadBytes(7); !errors.Is(err, qerrors.ErrTruncated) {
		t.Errorf("ReadBytes past end: got %v, want ErrTruncated", err)
	}
	if _, err := c.ReadBytes(-1); !errors.Is(err, qerrors.ErrLengthOverflow) {
		t.Errorf("ReadBytes(-1): got %v, want ErrLengthOverflow", err)
	}
	if c.Pos() != 4 || c.Len() != 10 {
		t.Errorf("Pos/Len = %d/%d, want 4/10", c.Pos(), c.Len())
	}

	zero, err := c.ReadBytes(0)
	if err != nil || len(zero) != 0 {
		t.Errorf("ReadBytes(0) = %q, %v", zero, err)
	}
}

func TestCursorReadLengthPrefixed(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    []byte
		wantErr error
	}{
		{"empty string", lengthPrefixed(0, nil), []byte{}, nil},
		{"exact", lengthPrefixed(3, []byte("abc")), []byte("abc"), nil},
		{"missing length", []byte{0, 0, 0}, nil, qerrors.ErrTruncated},
		{"short body", lengthPrefixed(5, []byte("abc")), nil, qerrors.ErrTruncated},
		{"huge length", lengthPrefixed(0xffffffff, []byte("abc")), nil, qerrors.ErrLengthOverflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := wire.NewCursor(tt.data)
			got, err := c.ReadLengthPrefixed()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				if c.Pos() != 0 {
					t.Errorf("failed read moved cursor to %d", c.Pos())
				}
				return
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			if !c.Empty() {
				t.Errorf("%d bytes left over", c.Remaining())
			}
		})
	}
}

func TestCursorLengthCeiling(t *testing.T) {
	body := []byte("abcd")

	// Declared length exceeds remaining by exactly the ceiling: truncation.
	c := wire.NewCursorWithCeiling(lengthPrefixed(uint32(len(body)+16), body), 16)
	if _, err := c.ReadLengthPrefixed(); !errors.Is(err, qerrors.ErrTruncated) {
		t.Errorf("at ceiling: got %v, want ErrTruncated", err)
	}

	// One byte beyond the ceiling: overflow.
	c = wire.NewCursorWithCeiling(lengthPrefixed(uint32(len(body)+17), body), 16)
	if _, err := c.ReadLengthPrefixed(); !errors.Is(err, qerrors.ErrLengthOverflow) {
		t.Errorf("past ceiling: got %v, want ErrLengthOverflow", err)
	}

	// A negative ceiling behaves like zero.
	c = wire.NewCursorWithCeiling(lengthPrefixed(uint32(len(body)+1), body), -5)
	if _, err := c.ReadLengthPrefixed(); !errors.Is(err, qerrors.ErrLengthOverflow) {
		t.Errorf("zero ceiling: got %v, want ErrLengthOverflow", err)
	}
}

func TestCursorSequence(t *testing.T) {
	var buf []byte
	buf = append(buf, 20)
	buf = append(buf, lengthPrefixed(2, []byte("hi"))...)
	buf = append(buf, 0, 0, 0, 7)

	c := wire.NewCursor(buf)
	if v, err := c.ReadU8(); err != nil || v != 20 {
		t.Fatalf("ReadU8 = %d, %v", v, err)
	}
	if s, err := c.ReadLengthPrefixed(); err != nil || string(s) != "hi" {
		t.Fatalf("ReadLengthPrefixed = %q, %v", s, err)
	}
	if v, err := c.ReadU32(); err != nil || v != 7 {
		t.Fatalf("ReadU32 = %d, %v", v, err)
	}
	if !c.Empty() || c.Pos() != c.Len() {
		t.Errorf("Pos = %d, Len = %d after full read", c.Pos(), c.Len())
	}
}
