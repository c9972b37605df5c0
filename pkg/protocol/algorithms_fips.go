//go:build fips
// +build fips

// This file is compiled when the "fips" build tag is specified.
// In FIPS mode only FIPS 140-3 approved algorithms are offered.
package protocol

import "github.com/pzverkov/sshkex/pkg/wire"

// FIPSMode reports whether the binary was built with the "fips" tag.
const FIPSMode = true

// ClientPreferences returns the algorithm lists this client would offer, in
// preference order. Only the lists take part in negotiation; the cookie is
// left zero.
func ClientPreferences() *KexInit {
	ciphers := wire.NameList{
		"aes256-gcm@openssh.com", "aes128-gcm@openssh.com",
		"aes256-ctr", "aes192-ctr", "aes128-ctr",
	}
	macs := wire.NameList{
		"hmac-sha2-256-etm@openssh.com", "hmac-sha2-512-etm@openssh.com",
		"hmac-sha2-256", "hmac-sha2-512",
	}
	compression := wire.NameList{"none"}

	return &KexInit{
		KexAlgos: wire.NameList{
			"ecdh-sha2-nistp256", "ecdh-sha2-nistp384", "ecdh-sha2-nistp521",
			"diffie-hellman-group-exchange-sha256",
			"diffie-hellman-group16-sha512", "diffie-hellman-group14-sha256",
			"ext-info-c", "kex-strict-c-v00@openssh.com",
		},
		ServerHostKeyAlgos: wire.NameList{
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
