package protocol_test

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	qerrors "github.com/pzverkov/sshkex/internal/errors"
	"github.com/pzverkov/sshkex/pkg/protocol"
)

func TestParseBanner(t *testing.T) {
	tests := []struct {
		line     string
		raw      string
		software string
		comments string
	}{
		{"SSH-2.0-OpenSSH_8.9\r\n", "SSH-2.0-OpenSSH_8.9", "OpenSSH_8.9", ""},
		{"SSH-2.0-OpenSSH_8.9", "SSH-2.0-OpenSSH_8.9", "OpenSSH_8.9", ""},
		{"SSH-2.0-OpenSSH_9.6p1 Ubuntu-3ubuntu13\r\n", "SSH-2.0-OpenSSH_9.6p1 Ubuntu-3ubuntu13", "OpenSSH_9.6p1", "Ubuntu-3ubuntu13"},
		{"SSH-2.0-dropbear_2022.83\n", "SSH-2.0-dropbear_2022.83", "dropbear_2022.83", ""},
		{"SSH-2.0-Go", "SSH-2.0-Go", "Go", ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			b, err := protocol.ParseBanner(tt.line)
			if err != nil {
				t.Fatalf("ParseBanner failed: %v", err)
			}
			if b.ProtoVersion != "2.0" {
				t.Errorf("ProtoVersion = %q", b.ProtoVersion)
			}
			if b.Raw != tt.raw || b.String() != tt.raw {
				t.Errorf("Raw = %q, want %q", b.Raw, tt.raw)
			}
			if b.SoftwareVersion != tt.software {
				t.Errorf("SoftwareVersion = %q, want %q", b.SoftwareVersion, tt.software)
			}
			if b.Comments != tt.comments {
				t.Errorf("Comments = %q, want %q", b.Comments, tt.comments)
			}
		})
	}
}

func TestParseBannerRejects(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantErr error
	}{
		{"ssh1", "SSH-1.5-foo", qerrors.ErrUnsupportedVersion},
		{"compat 1.99", "SSH-1.99-OpenSSH_3.0", qerrors.ErrUnsupportedVersion},
		{"future", "SSH-3.0-foo", qerrors.ErrUnsupportedVersion},
		{"not ssh", "HTTP/1.1 400 Bad Request", qerrors.ErrUnsupportedVersion},
		{"lowercase", "ssh-2.0-foo", qerrors.ErrUnsupportedVersion},
		{"no software", "SSH-2.0-", qerrors.ErrInvalidBanner},
		{"no dash", "SSH-2.0", qerrors.ErrInvalidBanner},
		{"software starts with space", "SSH-2.0- comment", qerrors.ErrInvalidBanner},
		{"nul", "SSH-2.0-foo\x00bar", qerrors.ErrInvalidBanner},
		{"embedded cr", "SSH-2.0-foo\rbar", qerrors.ErrInvalidBanner},
		{"too long", "SSH-2.0-" + strings.Repeat("x", 250), qerrors.ErrBannerTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := protocol.ParseBanner(tt.line)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}

			var be *qerrors.BannerError
			if !errors.As(err, &be) {
				t.Fatalf("error %T is not a BannerError", err)
			}
			if be.Banner != strings.TrimSuffix(tt.line, "\r\n") {
				t.Errorf("BannerError.Banner = %q", be.Banner)
			}
		})
	}
}

func TestParseBannerUnsupportedKeepsText(t *testing.T) {
	_, err := protocol.ParseBanner("SSH-1.5-foo")
	if err == nil || !strings.Contains(err.Error(), "SSH-1.5-foo") {
		t.Errorf("error %v should quote the banner", err)
	}
	if got := qerrors.Kind(err); got != "unsupported_version" {
		t.Errorf("Kind = %q", got)
	}
}

func TestReadBanner(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		rest  string
	}{
		{"crlf", "SSH-2.0-OpenSSH_8.9\r\n", "SSH-2.0-OpenSSH_8.9", ""},
		{"bare lf", "SSH-2.0-dropbear\n", "SSH-2.0-dropbear", ""},
		{"stops at terminator", "SSH-2.0-x\r\n\x00\x00\x00\x0c", "SSH-2.0-x", "\x00\x00\x00\x0c"},
		{"pre-banner lines", "Welcome\r\nauthorized use only\r\nSSH-2.0-srv\r\n", "SSH-2.0-srv", ""},
		{"old version passes through", "SSH-1.5-foo\r\n", "SSH-1.5-foo", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := strings.NewReader(tt.input)
			got, err := protocol.ReadBanner(r, 0)
			if err != nil {
				t.Fatalf("ReadBanner failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			rest, _ := io.ReadAll(r)
			if string(rest) != tt.rest {
				t.Errorf("left %q unread, want %q", rest, tt.rest)
			}
		})
	}
}

func TestReadBannerErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		max     int
		wantErr error
	}{
		{"empty", "", 0, io.EOF},
		{"eof mid line", "SSH-2.0-Op", 0, io.ErrUnexpectedEOF},
		{"no terminator", strings.Repeat("A", 300), 0, qerrors.ErrBannerTooLong},
		{"preamble exhausts limit", strings.Repeat("junk\r\n", 50) + "SSH-2.0-x\r\n", 0, qerrors.ErrBannerTooLong},
		{"custom limit", "SSH-2.0-OpenSSH_8.9\r\n", 10, qerrors.ErrBannerTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := protocol.ReadBanner(strings.NewReader(tt.input), tt.max)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestReadBannerExactLimit(t *testing.T) {
	// 253 bytes of line plus CR LF is exactly 255.
	line := "SSH-2.0-" + strings.Repeat("v", 245)
	got, err := protocol.ReadBanner(strings.NewReader(line+"\r\n"), 255)
	if err != nil {
		t.Fatalf("ReadBanner failed: %v", err)
	}
	if got != line {
		t.Errorf("got %d bytes, want %d", len(got), len(line))
	}

	_, err = protocol.ReadBanner(strings.NewReader("x"+line+"\r\n"), 255)
	if !errors.Is(err, qerrors.ErrBannerTooLong) {
		t.Errorf("one byte over: got %v, want ErrBannerTooLong", err)
	}
}

func TestWriteBanner(t *testing.T) {
	var buf bytes.Buffer
	if err := protocol.WriteBanner(&buf, "SSH-2.0-sshkex_0.1"); err != nil {
		t.Fatalf("WriteBanner failed: %v", err)
	}
	if buf.String() != "SSH-2.0-sshkex_0.1\r\n" {
		t.Errorf("wrote %q", buf.String())
	}

	round, err := protocol.ReadBanner(&buf, 0)
	if err != nil {
		t.Fatalf("ReadBanner failed: %v", err)
	}
	if _, err := protocol.ParseBanner(round); err != nil {
		t.Errorf("ParseBanner of own banner failed: %v", err)
	}
}

func TestWriteBannerRejects(t *testing.T) {
	tests := []struct {
		name    string
		banner  string
		wantErr error
	}{
		{"newline", "SSH-2.0-x\r\nSSH-2.0-y", qerrors.ErrInvalidBanner},
		{"wrong version", "SSH-1.99-x", qerrors.ErrInvalidBanner},
		{"no software", "SSH-2.0-", qerrors.ErrInvalidBanner},
		{"too long", "SSH-2.0-" + strings.Repeat("x", 246), qerrors.ErrBannerTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := protocol.WriteBanner(&buf, tt.banner); !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
			if buf.Len() != 0 {
				t.Errorf("wrote %d bytes on error", buf.Len())
			}
		})
	}
}
