// kexinit.go implements SSH_MSG_KEXINIT (RFC 4253 section 7.1).
//
// Wire Format:
//
//	byte         SSH_MSG_KEXINIT (20)
//	byte[16]     cookie
//	name-list    kex_algorithms
//	name-list    server_host_key_algorithms
//	name-list    encryption_algorithms_client_to_server
//	name-list    encryption_algorithms_server_to_client
//	name-list    mac_algorithms_client_to_server
//	name-list    mac_algorithms_server_to_client
//	name-list    compression_algorithms_client_to_server
//	name-list    compression_algorithms_server_to_client
//	name-list    languages_client_to_server
//	name-list    languages_server_to_client
//	boolean      first_kex_packet_follows
//	uint32       0 (reserved for future extension)
package protocol

import (
	"fmt"
	"io"

	"github.com/pzverkov/sshkex/internal/constants"
	qerrors "github.com/pzverkov/sshkex/internal/errors"
	"github.com/pzverkov/sshkex/pkg/wire"
	"golang.org/x/crypto/cryptobyte"
)

// KexInit is a decoded SSH_MSG_KEXINIT.
type KexInit struct {
	// Random value chosen by the sender; not checked.
	Cookie [constants.CookieSize]byte `json:"-"`

	KexAlgos                wire.NameList `json:"kex_algorithms"`
	ServerHostKeyAlgos      wire.NameList `json:"server_host_key_algorithms"`
	CiphersClientServer     wire.NameList `json:"encryption_algorithms_client_to_server"`
	CiphersServerClient     wire.NameList `json:"encryption_algorithms_server_to_client"`
	MACsClientServer        wire.NameList `json:"mac_algorithms_client_to_server"`
	MACsServerClient        wire.NameList `json:"mac_algorithms_server_to_client"`
	CompressionClientServer wire.NameList `json:"compression_algorithms_client_to_server"`
	CompressionServerClient wire.NameList `json:"compression_algorithms_server_to_client"`
	LanguagesClientServer   wire.NameList `json:"languages_client_to_server"`
	LanguagesServerClient   wire.NameList `json:"languages_server_to_client"`

	FirstKexFollows bool `json:"first_kex_packet_follows"`

	// Reserved is kept as received. Non-zero values are accepted.
	Reserved uint32 `json:"reserved"`
}

// NamedList pairs a name-list with its wire field name.
type NamedList struct {
	Field string
	Names wire.NameList
}

// Wire field names, in protocol order.
const (
	FieldMessageType             = "message_type"
	FieldCookie                  = "cookie"
	FieldKexAlgorithms           = "kex_algorithms"
	FieldServerHostKeyAlgorithms = "server_host_key_algorithms"
	FieldCiphersClientServer     = "encryption_algorithms_client_to_server"
	FieldCiphersServerClient     = "encryption_algorithms_server_to_client"
	FieldMACsClientServer        = "mac_algorithms_client_to_server"
	FieldMACsServerClient        = "mac_algorithms_server_to_client"
	FieldCompressionClientServer = "compression_algorithms_client_to_server"
	FieldCompressionServerClient = "compression_algorithms_server_to_client"
	FieldLanguagesClientServer   = "languages_client_to_server"
	FieldLanguagesServerClient   = "languages_server_to_client"
	FieldFirstKexFollows         = "first_kex_packet_follows"
	FieldReserved                = "reserved"
	FieldTrailing                = "end_of_message"
)

// lists returns pointers to the ten name-lists in protocol order.
func (m *KexInit) lists() [constants.KexInitNameLists]struct {
	field string
	list  *wire.NameList
} {
	return [constants.KexInitNameLists]struct {
		field string
		list  *wire.NameList
	}{
		{FieldKexAlgorithms, &m.KexAlgos},
		{FieldServerHostKeyAlgorithms, &m.ServerHostKeyAlgos},
		{FieldCiphersClientServer, &m.CiphersClientServer},
		{FieldCiphersServerClient, &m.CiphersServerClient},
		{FieldMACsClientServer, &m.MACsClientServer},
		{FieldMACsServerClient, &m.MACsServerClient},
		{FieldCompressionClientServer, &m.CompressionClientServer},
		{FieldCompressionServerClient, &m.CompressionServerClient},
		{FieldLanguagesClientServer, &m.LanguagesClientServer},
		{FieldLanguagesServerClient, &m.LanguagesServerClient},
	}
}

// Fields returns the ten name-lists in protocol order.
func (m *KexInit) Fields() []NamedList {
	lists := m.lists()
	out := make([]NamedList, 0, len(lists))
	for _, l := range lists {
		out = append(out, NamedList{Field: l.field, Names: *l.list})
	}
	return out
}

// DecodeKexInit decodes a KEXINIT payload using the default codec.
func DecodeKexInit(payload []byte) (*KexInit, error) {
	return defaultCodec.DecodeKexInit(payload)
}

// DecodeKexInit decodes a packet payload as SSH_MSG_KEXINIT.
//
// Every byte of payload must belong to the message. Errors are wrapped in
// a *errors.DecodeError naming the field that was being read.
func (c *Codec) DecodeKexInit(payload []byte) (*KexInit, error) {
	cur := wire.NewCursorWithCeiling(payload, c.LengthCeiling)

	msgType, err := cur.ReadU8()
	if err != nil {
		return nil, qerrors.NewDecodeError(FieldMessageType, err)
	}
	if MessageType(msgType) != MessageTypeKexInit {
		return nil, qerrors.NewDecodeError(FieldMessageType,
			fmt.Errorf("%w: got %s", qerrors.ErrUnexpectedMessageType, MessageType(msgType)))
	}

	m := &KexInit{}

	cookie, err := cur.ReadBytes(constants.CookieSize)
	if err != nil {
		return nil, qerrors.NewDecodeError(FieldCookie, err)
	}
	copy(m.Cookie[:], cookie)

	for _, l := range m.lists() {
		names, err := wire.ReadNameList(cur)
		if err != nil {
			return nil, qerrors.NewDecodeError(l.field, err)
		}
		*l.list = names
	}

	if m.FirstKexFollows, err = cur.ReadBool(); err != nil {
		return nil, qerrors.NewDecodeError(FieldFirstKexFollows, err)
	}

	if m.Reserved, err = cur.ReadU32(); err != nil {
		return nil, qerrors.NewDecodeError(FieldReserved, err)
	}

	if !cur.Empty() {
		return nil, qerrors.NewDecodeError(FieldTrailing,
			fmt.Errorf("%w: %d bytes", qerrors.ErrTrailingData, cur.Remaining()))
	}

	return m, nil
}

// EncodeKexInit serializes m as a KEXINIT payload (without packet framing).
func (c *Codec) EncodeKexInit(m *KexInit) ([]byte, error) {
	size := constants.MinKexInitSize
	for _, l := range m.lists() {
		if err := l.list.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", l.field, err)
		}
		size += len(l.list.String())
	}
	if size > int(c.maxPacketLength()) {
		return nil, qerrors.ErrPayloadTooLarge
	}

	b := cryptobyte.NewBuilder(make([]byte, 0, size))
	b.AddUint8(uint8(MessageTypeKexInit))
	b.AddBytes(m.Cookie[:])
	for _, l := range m.lists() {
		l.list.Marshal(b)
	}
	if m.FirstKexFollows {
		b.AddUint8(1)
	} else {
		b.AddUint8(0)
	}
	b.AddUint32(m.Reserved)

	return b.Bytes()
}

// NewKexInit returns a KexInit with a fresh cookie from the codec's Rand and
// no algorithms set.
func (c *Codec) NewKexInit() (*KexInit, error) {
	m := &KexInit{}
	if _, err := io.ReadFull(c.randReader(), m.Cookie[:]); err != nil {
		return nil, fmt.Errorf("kexinit cookie: %w", err)
	}
	return m, nil
}
