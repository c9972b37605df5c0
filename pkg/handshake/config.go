package handshake

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/pzverkov/sshkex/internal/constants"
	qerrors "github.com/pzverkov/sshkex/internal/errors"
	"github.com/pzverkov/sshkex/pkg/protocol"
)

// Dialer opens the byte stream a session runs over. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Config holds configuration for a handshake session.
type Config struct {
	// LocalBanner is the version line sent to the server, without CR LF.
	LocalBanner string

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration

	// MaxBannerLength bounds the bytes read while looking for the server's
	// version line, including any lines before it.
	MaxBannerLength int

	// MaxPacketLength bounds packet_length of the negotiation packet.
	MaxPacketLength uint32

	// LengthSlack is the cursor ceiling used when decoding the payload.
	LengthSlack int

	// ProxyProtocol sends a PROXY protocol header of this version (1 or 2)
	// right after connecting. 0 disables it.
	ProxyProtocol byte

	// Dialer opens connections. Defaults to a *net.Dialer.
	Dialer Dialer

	// Observer receives lifecycle events. Defaults to NopObserver.
	Observer Observer

	// Rand is the randomness source for the codec. Defaults to crypto/rand.
	Rand io.Reader

	// SessionID names the session in logs and traces. Empty generates one.
	SessionID string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		LocalBanner:     constants.DefaultLocalBanner,
		ConnectTimeout:  constants.DefaultConnectTimeout,
		ReadTimeout:     constants.DefaultReadTimeout,
		WriteTimeout:    constants.DefaultWriteTimeout,
		MaxBannerLength: constants.MaxBannerLength,
		MaxPacketLength: constants.MaxPacketLength,
		LengthSlack:     constants.LengthPrefixSlack,
	}
}

// Validate checks the configuration for values a session cannot use.
func (c Config) Validate() error {
	if c.LocalBanner != "" {
		if err := protocol.ValidateLocalBanner(c.LocalBanner); err != nil {
			return fmt.Errorf("local banner: %w", err)
		}
	}
	if c.ConnectTimeout < 0 || c.ReadTimeout < 0 || c.WriteTimeout < 0 {
		return fmt.Errorf("%w: negative timeout", qerrors.ErrInvalidConfig)
	}
	if c.MaxBannerLength < 0 || c.LengthSlack < 0 {
		return fmt.Errorf("%w: negative limit", qerrors.ErrInvalidConfig)
	}
	switch c.ProxyProtocol {
	case 0, 1, 2:
	default:
		return fmt.Errorf("%w: unsupported PROXY protocol version %d", qerrors.ErrInvalidConfig, c.ProxyProtocol)
	}
	return nil
}

// withDefaults fills zero values from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.LocalBanner == "" {
		c.LocalBanner = d.LocalBanner
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.MaxBannerLength == 0 {
		c.MaxBannerLength = d.MaxBannerLength
	}
	if c.MaxPacketLength == 0 {
		c.MaxPacketLength = d.MaxPacketLength
	}
	if c.LengthSlack == 0 {
		c.LengthSlack = d.LengthSlack
	}
	if c.Dialer == nil {
		c.Dialer = &net.Dialer{}
	}
	if c.Observer == nil {
		c.Observer = NopObserver{}
	}
	return c
}

func (c Config) codec() *protocol.Codec {
	codec := protocol.NewCodec()
	codec.MaxPacketLength = c.MaxPacketLength
	codec.LengthCeiling = c.LengthSlack
	if c.Rand != nil {
		codec.Rand = c.Rand
	}
	return codec
}
