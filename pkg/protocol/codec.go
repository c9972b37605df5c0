// codec.go implements the SSH binary packet framing (RFC 4253 section 6)
// for the unencrypted, unauthenticated mode used before key exchange.
//
// Wire Format:
//
//	+---------------+----------------+-----------+-----------------+
//	| packet_length | padding_length | payload   | random padding  |
//	| 4B BE         | 1B             | variable  | padding_length  |
//	+---------------+----------------+-----------+-----------------+
//
// packet_length counts every byte after itself. The whole frame, including
// packet_length, is a multiple of the block size (8 with no cipher), and
// padding_length is between 4 and 255. No MAC follows the padding.
package protocol

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/pzverkov/sshkex/internal/constants"
	qerrors "github.com/pzverkov/sshkex/internal/errors"
	"github.com/pzverkov/sshkex/pkg/wire"
	"golang.org/x/crypto/cryptobyte"
)

// Packet is one deframed binary packet.
type Packet struct {
	// Payload aliases the buffer passed to DecodePacket.
	Payload []byte
}

// Type returns the message number of the payload, or false for an empty payload.
func (p *Packet) Type() (MessageType, bool) {
	if len(p.Payload) == 0 {
		return 0, false
	}
	return MessageType(p.Payload[0]), true
}

// Codec provides packet framing and message serialization.
type Codec struct {
	// MaxPacketLength bounds packet_length on read.
	MaxPacketLength uint32

	// LengthCeiling is passed to the cursor used for message decoding.
	LengthCeiling int

	// Rand is the source of padding bytes and cookies.
	Rand io.Reader

	// Pool supplies frame buffers for ReadPacketPooled. Nil uses a shared pool.
	Pool *BufferPool
}

// NewCodec creates a codec with the default limits and crypto/rand.
func NewCodec() *Codec {
	return &Codec{
		MaxPacketLength: constants.MaxPacketLength,
		LengthCeiling:   constants.LengthPrefixSlack,
		Rand:            rand.Reader,
	}
}

var defaultCodec = NewCodec()

// DecodePacket deframes raw using the default codec.
func DecodePacket(raw []byte) (*Packet, error) {
	return defaultCodec.DecodePacket(raw)
}

// EncodePacket frames payload using the default codec.
func EncodePacket(payload []byte) ([]byte, error) {
	return defaultCodec.EncodePacket(payload)
}

// DecodePacket deframes one complete packet. raw must hold exactly the
// packet: the length field, padding_length, payload and padding.
func (c *Codec) DecodePacket(raw []byte) (*Packet, error) {
	cur := wire.NewCursor(raw)

	packetLen, err := cur.ReadU32()
	if err != nil {
		return nil, qerrors.NewDecodeError("packet_length", err)
	}

	padLen, err := cur.ReadU8()
	if err != nil {
		return nil, qerrors.NewDecodeError("padding_length", err)
	}
	if padLen < constants.MinPaddingLength {
		return nil, qerrors.NewDecodeError("padding_length",
			fmt.Errorf("%w: %d", qerrors.ErrInvalidPadding, padLen))
	}

	// packet_length covers the padding_length byte already consumed.
	if uint64(packetLen) != uint64(cur.Remaining())+constants.PaddingLengthSize {
		return nil, qerrors.NewDecodeError("packet_length",
			fmt.Errorf("%w: declared %d, have %d", qerrors.ErrInvalidFraming,
				packetLen, cur.Remaining()+constants.PaddingLengthSize))
	}
	if packetLen < uint32(padLen)+constants.PaddingLengthSize {
		return nil, qerrors.NewDecodeError("packet_length",
			fmt.Errorf("%w: padding %d exceeds packet length %d", qerrors.ErrInvalidFraming, padLen, packetLen))
	}
	if (uint64(packetLen)+constants.PacketLengthSize)%constants.BlockSize != 0 {
		return nil, qerrors.NewDecodeError("packet_length",
			fmt.Errorf("%w: length %d not aligned to block size %d", qerrors.ErrInvalidFraming,
				packetLen, constants.BlockSize))
	}

	payloadLen := int(packetLen) - int(padLen) - constants.PaddingLengthSize
	payload, err := cur.ReadBytes(payloadLen)
	if err != nil {
		return nil, qerrors.NewDecodeError("payload", err)
	}

	// Padding content is not checked; there is no MAC to verify it against.
	if _, err := cur.ReadBytes(int(padLen)); err != nil {
		return nil, qerrors.NewDecodeError("padding", err)
	}

	return &Packet{Payload: payload}, nil
}

// paddingLength returns the smallest legal padding that aligns a packet
// carrying payloadLen bytes to the block size.
func paddingLength(payloadLen int) int {
	pad := constants.BlockSize - (constants.PacketHeaderSize+payloadLen)%constants.BlockSize
	if pad < constants.MinPaddingLength {
		pad += constants.BlockSize
	}
	return pad
}

// EncodePacket frames payload with the minimal legal padding. Padding bytes
// are read from the codec's Rand.
func (c *Codec) EncodePacket(payload []byte) ([]byte, error) {
	pad := paddingLength(len(payload))
	packetLen := constants.PaddingLengthSize + len(payload) + pad
	if packetLen > int(c.maxPacketLength()) {
		return nil, qerrors.ErrPayloadTooLarge
	}

	padding := make([]byte, pad)
	if _, err := io.ReadFull(c.randReader(), padding); err != nil {
		return nil, fmt.Errorf("packet padding: %w", err)
	}

	b := cryptobyte.NewBuilder(make([]byte, 0, constants.PacketLengthSize+packetLen))
	//nolint:gosec // G115: packetLen is bounded by MaxPacketLength
	b.AddUint32(uint32(packetLen))
	b.AddUint8(uint8(pad))
	b.AddBytes(payload)
	b.AddBytes(padding)

	return b.Bytes()
}

// ReadPacket reads one complete framed packet from r and returns its raw
// bytes, suitable for DecodePacket. The declared length is checked against
// MaxPacketLength before anything is allocated.
//
// I/O errors from r are returned unwrapped so callers can classify them.
func (c *Codec) ReadPacket(r io.Reader) ([]byte, error) {
	packetLen, hdr, err := c.readPacketHeader(r)
	if err != nil {
		return nil, err
	}

	raw := make([]byte, constants.PacketLengthSize+int(packetLen))
	copy(raw, hdr[:])
	if _, err := io.ReadFull(r, raw[constants.PacketLengthSize:]); err != nil {
		return nil, err
	}

	return raw, nil
}

func (c *Codec) readPacketHeader(r io.Reader) (uint32, [constants.PacketLengthSize]byte, error) {
	var hdr [constants.PacketLengthSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, hdr, err
	}

	packetLen, err := wire.NewCursor(hdr[:]).ReadU32()
	if err != nil {
		return 0, hdr, qerrors.NewDecodeError("packet_length", err)
	}
	if packetLen > c.maxPacketLength() {
		return 0, hdr, qerrors.NewDecodeError("packet_length",
			fmt.Errorf("%w: %d exceeds %d", qerrors.ErrLengthOverflow, packetLen, c.maxPacketLength()))
	}
	if packetLen < constants.PaddingLengthSize+constants.MinPaddingLength {
		return 0, hdr, qerrors.NewDecodeError("packet_length",
			fmt.Errorf("%w: %d too short", qerrors.ErrInvalidFraming, packetLen))
	}
	return packetLen, hdr, nil
}

// WritePacket frames payload and writes it to w in a single Write.
func (c *Codec) WritePacket(w io.Writer, payload []byte) error {
	framed, err := c.EncodePacket(payload)
	if err != nil {
		return err
	}
	_, err = w.Write(framed)
	return err
}

func (c *Codec) maxPacketLength() uint32 {
	if c.MaxPacketLength == 0 {
		return constants.MaxPacketLength
	}
	return c.MaxPacketLength
}

func (c *Codec) randReader() io.Reader {
	if c.Rand == nil {
		return rand.Reader
	}
	return c.Rand
}
