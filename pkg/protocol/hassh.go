package protocol

import (
	"crypto/md5" // #nosec G501 -- fingerprint format is defined over MD5
	"encoding/hex"
	"strings"
)

// Hassh returns the HASSH client fingerprint of m: the MD5 of
// "kex;encryption;mac;compression" over the client-to-server lists.
func (m *KexInit) Hassh() string {
	return hasshOf(m.KexAlgos, m.CiphersClientServer, m.MACsClientServer, m.CompressionClientServer)
}

// HasshServer returns the HASSHServer fingerprint of m, computed over the
// server-to-client lists.
func (m *KexInit) HasshServer() string {
	return hasshOf(m.KexAlgos, m.CiphersServerClient, m.MACsServerClient, m.CompressionServerClient)
}

// HasshServerAlgorithms returns the string HasshServer hashes.
func (m *KexInit) HasshServerAlgorithms() string {
	return hasshInput(m.KexAlgos, m.CiphersServerClient, m.MACsServerClient, m.CompressionServerClient)
}

func hasshInput(lists ...[]string) string {
	parts := make([]string, len(lists))
	for i, l := range lists {
		parts[i] = strings.Join(l, ",")
	}
	return strings.Join(parts, ";")
}

func hasshOf(kex, ciphers, macs, compression []string) string {
	sum := md5.Sum([]byte(hasshInput(kex, ciphers, macs, compression))) // #nosec G401
	return hex.EncodeToString(sum[:])
}
