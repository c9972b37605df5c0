package protocol

import (
	"fmt"
	"strings"

	qerrors "github.com/pzverkov/sshkex/internal/errors"
	"github.com/pzverkov/sshkex/pkg/wire"
)

// Algorithms is the outcome of algorithm negotiation (RFC 4253 section 7.1).
type Algorithms struct {
	Kex                     string `json:"kex"`
	HostKey                 string `json:"host_key"`
	CipherClientServer      string `json:"cipher_client_to_server"`
	CipherServerClient      string `json:"cipher_server_to_client"`
	MACClientServer         string `json:"mac_client_to_server,omitempty"`
	MACServerClient         string `json:"mac_server_to_client,omitempty"`
	CompressionClientServer string `json:"compression_client_to_server"`
	CompressionServerClient string `json:"compression_server_to_client"`
}

// aeadCiphers carry their own integrity; no MAC is negotiated with them.
var aeadCiphers = map[string]bool{
	"aes128-gcm@openssh.com":        true,
	"aes256-gcm@openssh.com":        true,
	"chacha20-poly1305@openssh.com": true,
}

// isPseudoKex reports names that signal extensions rather than name a
// key exchange method.
func isPseudoKex(name string) bool {
	return strings.HasPrefix(name, "ext-info-") || strings.HasPrefix(name, "kex-strict-")
}

// Negotiate picks, for every category, the first client algorithm that the
// server also supports. Languages are not negotiated.
//
// The result is what a client would agree to; no key exchange is performed.
func Negotiate(client, server *KexInit) (*Algorithms, error) {
	var (
		a   Algorithms
		err error
	)

	kex := make(wire.NameList, 0, len(client.KexAlgos))
	for _, name := range client.KexAlgos {
		if !isPseudoKex(name) {
			kex = append(kex, name)
		}
	}

	steps := []struct {
		field  string
		client wire.NameList
		server wire.NameList
		out    *string
		skip   func() bool
	}{
		{FieldKexAlgorithms, kex, server.KexAlgos, &a.Kex, nil},
		{FieldServerHostKeyAlgorithms, client.ServerHostKeyAlgos, server.ServerHostKeyAlgos, &a.HostKey, nil},
		{FieldCiphersClientServer, client.CiphersClientServer, server.CiphersClientServer, &a.CipherClientServer, nil},
		{FieldCiphersServerClient, client.CiphersServerClient, server.CiphersServerClient, &a.CipherServerClient, nil},
		{FieldMACsClientServer, client.MACsClientServer, server.MACsClientServer, &a.MACClientServer,
			func() bool { return aeadCiphers[a.CipherClientServer] }},
		{FieldMACsServerClient, client.MACsServerClient, server.MACsServerClient, &a.MACServerClient,
			func() bool { return aeadCiphers[a.CipherServerClient] }},
		{FieldCompressionClientServer, client.CompressionClientServer, server.CompressionClientServer, &a.CompressionClientServer, nil},
		{FieldCompressionServerClient, client.CompressionServerClient, server.CompressionServerClient, &a.CompressionServerClient, nil},
	}

	for _, s := range steps {
		if s.skip != nil && s.skip() {
			continue
		}
		if *s.out, err = findCommon(s.field, s.client, s.server); err != nil {
			return nil, err
		}
	}

	return &a, nil
}

func findCommon(field string, client, server wire.NameList) (string, error) {
	for _, c := range client {
		if server.Contains(c) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w for %s: client %q, server %q",
		qerrors.ErrNoCommonAlgorithm, field, client.String(), server.String())
}
