package destination

import (
	"errors"
	"testing"

	qerrors "github.com/pzverkov/sshkex/internal/errors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Destination
		address string
	}{
		{"git@github.com", Destination{"git", "github.com", 22}, "github.com:22"},
		{"root@10.0.0.1:2222", Destination{"root", "10.0.0.1", 2222}, "10.0.0.1:2222"},
		{"admin@[::1]:2200", Destination{"admin", "::1", 2200}, "[::1]:2200"},
		{"admin@[fe80::1]", Destination{"admin", "fe80::1", 22}, "[fe80::1]:22"},
		{"admin@fe80::1", Destination{"admin", "fe80::1", 22}, "[fe80::1]:22"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
			if got.Address() != tt.address {
				t.Errorf("Address() = %q, want %q", got.Address(), tt.address)
			}
		})
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []string{
		"",
		"github.com",
		"@github.com",
		"git@",
		"a@b@c",
		"git@host:0",
		"git@host:65536",
		"git@host:ssh",
		"git@:22",
		"git@[::1]:x",
		"git@[::1",
	}

	for _, in := range tests {
		t.Run(in, func(t *testing.T) {
			_, err := Parse(in)
			if !errors.Is(err, qerrors.ErrInvalidDestination) {
				t.Errorf("Parse(%q) error = %v, want ErrInvalidDestination", in, err)
			}
		})
	}
}

func TestParseAll(t *testing.T) {
	dests, err := ParseAll([]string{"a@h1", "b@h2:2022"})
	if err != nil {
		t.Fatal(err)
	}
	if len(dests) != 2 || dests[1].Port != 2022 {
		t.Errorf("ParseAll = %+v", dests)
	}

	if _, err := ParseAll([]string{"a@h1", "bad"}); err == nil {
		t.Error("expected error for invalid second destination")
	}
}

func TestString(t *testing.T) {
	tests := map[string]Destination{
		"git@github.com":     {"git", "github.com", 22},
		"root@10.0.0.1:2222": {"root", "10.0.0.1", 2222},
		"admin@[::1]:2200":   {"admin", "::1", 2200},
	}
	for want, d := range tests {
		if got := d.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}
