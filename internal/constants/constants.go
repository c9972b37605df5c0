// Package constants defines wire-level parameters and limits for the sshkex
// SSH-2 transport handshake.
//
// Values follow RFC 4253 (SSH Transport Layer Protocol) unless noted.
package constants

import "time"

// Protocol identification
const (
	// ProtocolVersion is the only protocol version accepted in peer banners.
	ProtocolVersion = "2.0"

	// BannerPrefix is the literal prefix every version line starts with.
	BannerPrefix = "SSH-"

	// SupportedBannerPrefix is the prefix a peer banner must carry to be accepted.
	SupportedBannerPrefix = BannerPrefix + ProtocolVersion + "-"

	// SoftwareVersion is the software token sent in the local banner.
	SoftwareVersion = "sshkex_0.1"

	// DefaultLocalBanner is the version line sent to the peer, without CRLF.
	DefaultLocalBanner = SupportedBannerPrefix + SoftwareVersion
)

// Banner limits (RFC 4253 section 4.2)
const (
	// MaxBannerLength is the maximum length of a version line including CR LF.
	MaxBannerLength = 255
)

// Binary packet parameters (RFC 4253 section 6)
const (
	// PacketLengthSize is the size of the packet_length field in bytes.
	PacketLengthSize = 4

	// PaddingLengthSize is the size of the padding_length field in bytes.
	PaddingLengthSize = 1

	// PacketHeaderSize is packet_length plus padding_length.
	PacketHeaderSize = PacketLengthSize + PaddingLengthSize

	// MinPaddingLength is the smallest legal amount of random padding.
	MinPaddingLength = 4

	// MaxPaddingLength is the largest amount of padding padding_length can express.
	MaxPaddingLength = 255

	// BlockSize is the cipher block size used for alignment while no cipher
	// has been negotiated.
	BlockSize = 8

	// MaxPacketLength is the largest packet_length accepted from a peer.
	// RFC 4253 requires at least 35000; OpenSSH accepts up to 256 KiB.
	MaxPacketLength = 256 * 1024
)

// Name-list limits
const (
	// LengthPrefixSlack is how far a declared length may exceed the bytes
	// remaining in the buffer before it is reported as an overflow instead
	// of a plain truncation.
	LengthPrefixSlack = 1024
)

// Message numbers (RFC 4250 section 4.1.2)
const (
	MsgDisconnect     = 1
	MsgIgnore         = 2
	MsgUnimplemented  = 3
	MsgDebug          = 4
	MsgServiceRequest = 5
	MsgServiceAccept  = 6
	MsgExtInfo        = 7
	MsgKexInit        = 20
	MsgNewKeys        = 21
)

// KexInit layout
const (
	// CookieSize is the size of the random cookie in SSH_MSG_KEXINIT.
	CookieSize = 16

	// KexInitNameLists is the number of name-list fields in SSH_MSG_KEXINIT.
	KexInitNameLists = 10

	// MinKexInitSize is the smallest legal KEXINIT payload: type, cookie,
	// ten empty name-lists, boolean and reserved word.
	MinKexInitSize = 1 + CookieSize + KexInitNameLists*4 + 1 + 4
)

// Network defaults
const (
	// DefaultPort is the TCP port used when a destination omits one.
	DefaultPort = 22

	DefaultConnectTimeout = 10 * time.Second
	DefaultReadTimeout    = 30 * time.Second
	DefaultWriteTimeout   = 30 * time.Second
)
