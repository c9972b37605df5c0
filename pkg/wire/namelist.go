package wire

import (
	"strings"
	"unicode/utf8"

	qerrors "github.com/pzverkov/sshkex/internal/errors"
	"golang.org/x/crypto/cryptobyte"
)

// NameList is an ordered list of algorithm names as carried in a name-list
// field, most preferred first. Duplicates are kept as transmitted.
type NameList []string

// ReadNameList reads a length-prefixed, comma-separated name-list.
//
// Empty content yields an empty list with no entries. Names are copied out
// of the cursor's buffer.
func ReadNameList(c *Cursor) (NameList, error) {
	raw, err := c.ReadLengthPrefixed()
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(raw) {
		return nil, qerrors.ErrInvalidUTF8
	}
	if len(raw) == 0 {
		return NameList{}, nil
	}
	return NameList(strings.Split(string(raw), ",")), nil
}

// String returns the list in wire form, joined by commas.
func (l NameList) String() string {
	return strings.Join(l, ",")
}

// Contains reports whether name appears in the list.
func (l NameList) Contains(name string) bool {
	for _, n := range l {
		if n == name {
			return true
		}
	}
	return false
}

// Validate checks that every name can be encoded unambiguously: names must
// be non-empty and must not contain a comma.
func (l NameList) Validate() error {
	for _, n := range l {
		if n == "" || strings.Contains(n, ",") {
			return qerrors.ErrInvalidName
		}
	}
	return nil
}

// Marshal appends the list to b as an SSH name-list. Call Validate first;
// Marshal does not check names.
func (l NameList) Marshal(b *cryptobyte.Builder) {
	s := l.String()
	//nolint:gosec // G115: callers bound the total message size
	b.AddUint32(uint32(len(s)))
	b.AddBytes([]byte(s))
}
