// banner.go implements the version exchange (RFC 4253 section 4.2).
//
//	SSH-protoversion-softwareversion SP comments CR LF
//
// The server may send other lines before its version line; they are skipped
// as long as everything read fits in the banner limit.
package protocol

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/pzverkov/sshkex/internal/constants"
	qerrors "github.com/pzverkov/sshkex/internal/errors"
)

// Banner is a parsed version line.
type Banner struct {
	// Raw is the line as received with CR LF stripped.
	Raw string `json:"raw"`

	ProtoVersion    string `json:"proto_version"`
	SoftwareVersion string `json:"software_version"`
	Comments        string `json:"comments,omitempty"`
}

// String returns the raw version line.
func (b *Banner) String() string {
	return b.Raw
}

// ReadBanner reads the peer's version line from r, one byte at a time so
// nothing past the line terminator is consumed. At most max bytes are read in
// total, including skipped lines and terminators; max <= 0 means 255.
//
// The returned line has its CR LF (or bare LF) stripped. I/O errors from r are
// returned unwrapped; a clean EOF before any byte is io.EOF and an EOF mid-line
// is io.ErrUnexpectedEOF.
func ReadBanner(r io.Reader, max int) (string, error) {
	if max <= 0 {
		max = constants.MaxBannerLength
	}

	line := make([]byte, 0, 64)
	var buf [1]byte

	for total := 0; total < max; total++ {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			if err == io.EOF && total > 0 {
				return "", io.ErrUnexpectedEOF
			}
			return "", err
		}

		// Several servers terminate with a bare LF.
		if buf[0] != '\n' {
			line = append(line, buf[0])
			continue
		}

		if !bytes.HasPrefix(line, []byte(constants.BannerPrefix)) {
			line = line[:0]
			continue
		}
		return string(bytes.TrimSuffix(line, []byte{'\r'})), nil
	}

	return "", fmt.Errorf("%w: no version line within %d bytes", qerrors.ErrBannerTooLong, max)
}

// ParseBanner parses a version line. A trailing CR LF is tolerated.
//
// A line that is not an SSH version line, or that advertises a protocol
// version other than 2.0, is a *errors.BannerError wrapping
// ErrUnsupportedVersion so the offending text reaches diagnostics verbatim.
func ParseBanner(line string) (*Banner, error) {
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")

	if len(line)+2 > constants.MaxBannerLength {
		return nil, qerrors.NewBannerError(line, qerrors.ErrBannerTooLong)
	}
	if i := controlIndex(line); i >= 0 {
		return nil, qerrors.NewBannerError(line,
			fmt.Errorf("%w: control character %#x at %d", qerrors.ErrInvalidBanner, line[i], i))
	}
	if !strings.HasPrefix(line, constants.BannerPrefix) {
		return nil, qerrors.NewBannerError(line, qerrors.ErrUnsupportedVersion)
	}

	proto, software, found := strings.Cut(line[len(constants.BannerPrefix):], "-")
	if proto != constants.ProtocolVersion {
		return nil, qerrors.NewBannerError(line, qerrors.ErrUnsupportedVersion)
	}

	b := &Banner{Raw: line, ProtoVersion: proto}
	b.SoftwareVersion, b.Comments, _ = strings.Cut(software, " ")
	if !found || b.SoftwareVersion == "" {
		return nil, qerrors.NewBannerError(line,
			fmt.Errorf("%w: missing software version", qerrors.ErrInvalidBanner))
	}

	return b, nil
}

// WriteBanner writes banner followed by CR LF in a single Write.
func WriteBanner(w io.Writer, banner string) error {
	if err := ValidateLocalBanner(banner); err != nil {
		return err
	}
	_, err := io.WriteString(w, banner+"\r\n")
	return err
}

// ValidateLocalBanner checks a version line before it is sent.
func ValidateLocalBanner(banner string) error {
	if len(banner)+2 > constants.MaxBannerLength {
		return fmt.Errorf("%w: %d bytes", qerrors.ErrBannerTooLong, len(banner)+2)
	}
	if i := controlIndex(banner); i >= 0 {
		return fmt.Errorf("%w: control character %#x at %d", qerrors.ErrInvalidBanner, banner[i], i)
	}
	if !strings.HasPrefix(banner, constants.SupportedBannerPrefix) ||
		len(banner) == len(constants.SupportedBannerPrefix) {
		return fmt.Errorf("%w: must start with %q and name the software",
			qerrors.ErrInvalidBanner, constants.SupportedBannerPrefix)
	}
	return nil
}

// controlIndex returns the index of the first control or DEL byte, or -1.
func controlIndex(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] == 0x7f {
			return i
		}
	}
	return -1
}
