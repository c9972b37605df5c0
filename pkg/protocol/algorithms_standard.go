//go:build !fips
// +build !fips

// This file is compiled when the "fips" build tag is NOT specified.
// In standard mode the client preferences follow current OpenSSH defaults.
package protocol

import "github.com/pzverkov/sshkex/pkg/wire"

// FIPSMode reports whether the binary was built with the "fips" tag.
const FIPSMode = false

// ClientPreferences returns the algorithm lists this client would offer, in
// preference order. Only the lists take part in negotiation; the cookie is
// left zero.
func ClientPreferences() *KexInit {
	ciphers := wire.NameList{
		"chacha20-poly1305@openssh.com",
		"aes128-ctr", "aes192-ctr", "aes256-ctr",
		"aes128-gcm@openssh.com", "aes256-gcm@openssh.com",
	}
	macs := wire.NameList{
		"umac-64-etm@openssh.com", "umac-128-etm@openssh.com",
		"hmac-sha2-256-etm@openssh.com", "hmac-sha2-512-etm@openssh.com",
		"hmac-sha1-etm@openssh.com",
		"umac-64@openssh.com", "umac-128@openssh.com",
		"hmac-sha2-256", "hmac-sha2-512", "hmac-sha1",
	}
	compression := wire.NameList{"none", "zlib@openssh.com"}

	return &KexInit{
		KexAlgos: wire.NameList{
			"sntrup761x25519-sha512@openssh.com",
			"curve25519-sha256", "curve25519-sha256@libssh.org",
			"ecdh-sha2-nistp256", "ecdh-sha2-nistp384", "ecdh-sha2-nistp521",
			"diffie-hellman-group-exchange-sha256",
			"diffie-hellman-group16-sha512", "diffie-hellman-group18-sha512",
			"diffie-hellman-group14-sha256",
			"ext-info-c", "kex-strict-c-v00@openssh.com",
		},
		ServerHostKeyAlgos: wire.NameList{
			"ssh-ed25519",
			"ecdsa-sha2-nistp256", "ecdsa-sha2-nistp384", "ecdsa-sha2-nistp521",
			"rsa-sha2-512", "rsa-sha2-256",
		},
		CiphersClientServer:     ciphers,
		CiphersServerClient:     ciphers,
		MACsClientServer:        macs,
		MACsServerClient:        macs,
		CompressionClientServer: compression,
		CompressionServerClient: compression,
		LanguagesClientServer:   wire.NameList{},
		LanguagesServerClient:   wire.NameList{},
	}
}
