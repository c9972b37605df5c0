package protocol_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"reflect"
	"strings"
	"testing"

	qerrors "github.com/pzverkov/sshkex/internal/errors"
	"github.com/pzverkov/sshkex/pkg/protocol"
	"github.com/pzverkov/sshkex/pkg/wire"
)

var testCookie = [16]byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}

// kexInitPayload assembles a KEXINIT payload by hand.
func kexInitPayload(msgType byte, lists [10]string, follows byte, reserved uint32) []byte {
	buf := []byte{msgType}
	buf = append(buf, testCookie[:]...)
	for _, l := range lists {
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(l)))
		buf = append(buf, l...)
	}
	buf = append(buf, follows)
	return binary.BigEndian.AppendUint32(buf, reserved)
}

var openSSHLists = [10]string{
	"curve25519-sha256,curve25519-sha256@libssh.org,ecdh-sha2-nistp256,diffie-hellman-group14-sha256,kex-strict-s-v00@openssh.com",
	"rsa-sha2-512,rsa-sha2-256,ecdsa-sha2-nistp256,ssh-ed25519",
	"chacha20-poly1305@openssh.com,aes128-ctr,aes256-gcm@openssh.com",
	"chacha20-poly1305@openssh.com,aes128-ctr,aes256-gcm@openssh.com",
	"umac-64-etm@openssh.com,hmac-sha2-256-etm@openssh.com,hmac-sha2-256",
	"umac-64-etm@openssh.com,hmac-sha2-256-etm@openssh.com,hmac-sha2-256",
	"none,zlib@openssh.com",
	"none,zlib@openssh.com",
	"",
	"",
}

func TestDecodeKexInit(t *testing.T) {
	m, err := protocol.DecodeKexInit(kexInitPayload(20, openSSHLists, 0, 0))
	if err != nil {
		t.Fatalf("DecodeKexInit failed: %v", err)
	}

	if m.Cookie != testCookie {
		t.Errorf("cookie = %x", m.Cookie)
	}
	if len(m.KexAlgos) != 5 || m.KexAlgos[0] != "curve25519-sha256" {
		t.Errorf("kex algorithms = %q", m.KexAlgos)
	}
	if !m.ServerHostKeyAlgos.Contains("ssh-ed25519") {
		t.Errorf("host key algorithms = %q", m.ServerHostKeyAlgos)
	}
	if m.CompressionServerClient.String() != "none,zlib@openssh.com" {
		t.Errorf("compression s2c = %q", m.CompressionServerClient)
	}
	if m.LanguagesClientServer == nil || len(m.LanguagesClientServer) != 0 {
		t.Errorf("languages c2s = %#v, want empty non-nil list", m.LanguagesClientServer)
	}
	if m.FirstKexFollows || m.Reserved != 0 {
		t.Errorf("flag/reserved = %v/%d", m.FirstKexFollows, m.Reserved)
	}

	fields := m.Fields()
	if len(fields) != 10 {
		t.Fatalf("Fields() returned %d entries", len(fields))
	}
	for i, f := range fields {
		if f.Names.String() != openSSHLists[i] {
			t.Errorf("field %d (%s) = %q, want %q", i, f.Field, f.Names, openSSHLists[i])
		}
	}
	if fields[0].Field != protocol.FieldKexAlgorithms || fields[9].Field != protocol.FieldLanguagesServerClient {
		t.Errorf("field order: first %q, last %q", fields[0].Field, fields[9].Field)
	}
}

func TestDecodeKexInitEmptyListsInPacket(t *testing.T) {
	codec := protocol.NewCodec()

	payload := kexInitPayload(20, [10]string{}, 0x01, 0)
	framed, err := codec.EncodePacket(payload)
	if err != nil {
		t.Fatalf("EncodePacket failed: %v", err)
	}

	pkt, err := codec.DecodePacket(framed)
	if err != nil {
		t.Fatalf("DecodePacket failed: %v", err)
	}
	m, err := codec.DecodeKexInit(pkt.Payload)
	if err != nil {
		t.Fatalf("DecodeKexInit failed: %v", err)
	}

	for _, f := range m.Fields() {
		if len(f.Names) != 0 {
			t.Errorf("%s = %q, want empty", f.Field, f.Names)
		}
	}
	if !m.FirstKexFollows {
		t.Error("first_kex_packet_follows should be true")
	}
	if m.Reserved != 0 {
		t.Errorf("reserved = %d", m.Reserved)
	}
}

func TestDecodeKexInitReservedKept(t *testing.T) {
	m, err := protocol.DecodeKexInit(kexInitPayload(20, openSSHLists, 2, 0xdeadbeef))
	if err != nil {
		t.Fatalf("DecodeKexInit failed: %v", err)
	}
	if !m.FirstKexFollows || m.Reserved != 0xdeadbeef {
		t.Errorf("flag/reserved = %v/%#x", m.FirstKexFollows, m.Reserved)
	}
}

func TestDecodeKexInitUnexpectedType(t *testing.T) {
	_, err := protocol.DecodeKexInit(kexInitPayload(21, openSSHLists, 0, 0))
	if !errors.Is(err, qerrors.ErrUnexpectedMessageType) {
		t.Fatalf("got %v, want ErrUnexpectedMessageType", err)
	}
	if got := qerrors.Field(err); got != protocol.FieldMessageType {
		t.Errorf("field = %q", got)
	}
}

func TestDecodeKexInitTruncatedAlgorithmName(t *testing.T) {
	// kex_algorithms declares the full name but the buffer stops mid-string.
	name := "diffie-hellman-group14-sha256"
	payload := []byte{20}
	payload = append(payload, testCookie[:]...)
	payload = binary.BigEndian.AppendUint32(payload, uint32(len(name)))
	payload = append(payload, "diffie-hell"...)

	_, err := protocol.DecodeKexInit(payload)
	if !errors.Is(err, qerrors.ErrTruncated) {
		t.Fatalf("got %v, want ErrTruncated", err)
	}
	if got := qerrors.Field(err); got != protocol.FieldKexAlgorithms {
		t.Errorf("field = %q, want %q", got, protocol.FieldKexAlgorithms)
	}

	// Same with a declared length of 0x0A and fewer than ten bytes present.
	payload = []byte{20}
	payload = append(payload, testCookie[:]...)
	payload = append(payload, 0, 0, 0, 0x0a)
	payload = append(payload, "diffie-he"...)

	_, err = protocol.DecodeKexInit(payload)
	if !errors.Is(err, qerrors.ErrTruncated) || qerrors.Field(err) != protocol.FieldKexAlgorithms {
		t.Errorf("got %v (field %q), want ErrTruncated in kex_algorithms", err, qerrors.Field(err))
	}
}

func TestDecodeKexInitEveryPrefixFails(t *testing.T) {
	full := kexInitPayload(20, openSSHLists, 0, 0)

	for n := 0; n < len(full); n++ {
		_, err := protocol.DecodeKexInit(full[:n])
		if !errors.Is(err, qerrors.ErrTruncated) {
			t.Fatalf("prefix %d/%d: got %v, want ErrTruncated", n, len(full), err)
		}
	}
}

func TestDecodeKexInitTrailingData(t *testing.T) {
	full := kexInitPayload(20, openSSHLists, 0, 0)

	for extra := 1; extra <= 4; extra++ {
		payload := append(append([]byte{}, full...), make([]byte, extra)...)
		_, err := protocol.DecodeKexInit(payload)
		if !errors.Is(err, qerrors.ErrTrailingData) {
			t.Fatalf("extra=%d: got %v, want ErrTrailingData", extra, err)
		}
		if got := qerrors.Field(err); got != protocol.FieldTrailing {
			t.Errorf("extra=%d: field = %q", extra, got)
		}
	}
}

func TestDecodeKexInitLengthOverflow(t *testing.T) {
	payload := []byte{20}
	payload = append(payload, testCookie[:]...)
	payload = binary.BigEndian.AppendUint32(payload, 0)           // kex_algorithms
	payload = binary.BigEndian.AppendUint32(payload, 0x00ffffff)  // server_host_key_algorithms
	payload = append(payload, "ssh-ed25519"...)

	_, err := protocol.DecodeKexInit(payload)
	if !errors.Is(err, qerrors.ErrLengthOverflow) {
		t.Fatalf("got %v, want ErrLengthOverflow", err)
	}
	if got := qerrors.Field(err); got != protocol.FieldServerHostKeyAlgorithms {
		t.Errorf("field = %q", got)
	}

	// A codec with a tighter ceiling reports overflow sooner.
	codec := protocol.NewCodec()
	codec.LengthCeiling = 0
	payload = []byte{20}
	payload = append(payload, testCookie[:]...)
	payload = binary.BigEndian.AppendUint32(payload, 100)
	payload = append(payload, "none"...)
	if _, err := codec.DecodeKexInit(payload); !errors.Is(err, qerrors.ErrLengthOverflow) {
		t.Errorf("zero ceiling: got %v, want ErrLengthOverflow", err)
	}
}

func TestDecodeKexInitInvalidUTF8(t *testing.T) {
	lists := openSSHLists
	lists[4] = "hmac-sha2-256,\xff\xfe"

	_, err := protocol.DecodeKexInit(kexInitPayload(20, lists, 0, 0))
	if !errors.Is(err, qerrors.ErrInvalidUTF8) {
		t.Fatalf("got %v, want ErrInvalidUTF8", err)
	}
	if got := qerrors.Field(err); got != protocol.FieldMACsClientServer {
		t.Errorf("field = %q", got)
	}
}

func TestEncodeDecodeKexInit(t *testing.T) {
	codec := protocol.NewCodec()

	original, err := codec.NewKexInit()
	if err != nil {
		t.Fatalf("NewKexInit failed: %v", err)
	}
	original.KexAlgos = wire.NameList{"curve25519-sha256", "ext-info-c"}
	original.ServerHostKeyAlgos = wire.NameList{"ssh-ed25519"}
	original.CiphersClientServer = wire.NameList{"aes128-ctr"}
	original.CiphersServerClient = wire.NameList{"aes256-ctr"}
	original.MACsClientServer = wire.NameList{"hmac-sha2-256"}
	original.MACsServerClient = wire.NameList{"hmac-sha2-512"}
	original.CompressionClientServer = wire.NameList{"none"}
	original.CompressionServerClient = wire.NameList{"none"}
	original.LanguagesClientServer = wire.NameList{}
	original.LanguagesServerClient = wire.NameList{}
	original.FirstKexFollows = true

	encoded, err := codec.EncodeKexInit(original)
	if err != nil {
		t.Fatalf("EncodeKexInit failed: %v", err)
	}
	if protocol.MessageType(encoded[0]) != protocol.MessageTypeKexInit {
		t.Errorf("wrong message type: %d", encoded[0])
	}

	decoded, err := codec.DecodeKexInit(encoded)
	if err != nil {
		t.Fatalf("DecodeKexInit failed: %v", err)
	}
	if !reflect.DeepEqual(decoded, original) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", decoded, original)
	}
}

func TestEncodeKexInitInvalidName(t *testing.T) {
	m := &protocol.KexInit{CiphersServerClient: wire.NameList{"aes128-ctr,aes256-ctr"}}

	_, err := protocol.NewCodec().EncodeKexInit(m)
	if !errors.Is(err, qerrors.ErrInvalidName) {
		t.Fatalf("got %v, want ErrInvalidName", err)
	}
	if !strings.HasPrefix(err.Error(), protocol.FieldCiphersServerClient+":") {
		t.Errorf("error %q does not name the field", err)
	}
	// Encoding mistakes are local, not malformed peer input.
	var derr *qerrors.DecodeError
	if errors.As(err, &derr) {
		t.Errorf("encode error is a DecodeError: %v", err)
	}
}

func TestNewKexInitCookie(t *testing.T) {
	codec := protocol.NewCodec()
	codec.Rand = bytes.NewReader(bytes.Repeat([]byte{0x5a}, 16))

	m, err := codec.NewKexInit()
	if err != nil {
		t.Fatalf("NewKexInit failed: %v", err)
	}
	if m.Cookie != [16]byte(bytes.Repeat([]byte{0x5a}, 16)) {
		t.Errorf("cookie = %x", m.Cookie)
	}

	if _, err := codec.NewKexInit(); err == nil {
		t.Error("expected error once the random source is exhausted")
	}
}
