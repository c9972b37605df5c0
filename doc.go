// Package sshkex reads what an SSH server offers before any key exchange.
//
// sshkex connects to a server, exchanges version lines (RFC 4253 section
// 4.2) and decodes the server's first binary packet, SSH_MSG_KEXINIT
// (section 7.1). No keys are exchanged and no credentials are sent. The
// result is the server's banner, its algorithm lists, the HASSH server
// fingerprint and what a modern client would negotiate with it.
//
// # Quick Start
//
// A single handshake:
//
//	import "github.com/pzverkov/sshkex/pkg/handshake"
//
//	s := handshake.NewSession(handshake.DefaultConfig())
//	defer s.Close()
//	kexinit, err := s.Run(ctx, "github.com:22")
//	fmt.Println(s.ServerBanner(), kexinit.KexAlgos)
//
// Many destinations, paced and in parallel:
//
//	import "github.com/pzverkov/sshkex/pkg/probe"
//
//	dests, _ := destination.ParseAll([]string{"git@github.com", "git@gitlab.com"})
//	prober, _ := probe.New(probe.DefaultConfig())
//	for _, res := range prober.ProbeAll(ctx, dests) {
//		fmt.Println(res.Target, res.HASSHServer, res.Err)
//	}
//
// Decoding captured bytes without a connection:
//
//	import "github.com/pzverkov/sshkex/pkg/protocol"
//
//	pkt, err := protocol.DecodePacket(frame)
//	msg, err := protocol.DecodeKexInit(pkt.Payload)
//
// # Package Structure
//
//   - pkg/wire: bounds-checked cursor and name-list decoding
//   - pkg/protocol: version lines, packet framing, KEXINIT, negotiation, HASSH
//   - pkg/handshake: the client session state machine and rate limiter
//   - pkg/probe: concurrent probing with bans and fingerprint change detection
//   - pkg/destination: login@host[:port] parsing
//   - pkg/metrics: logging, metrics, tracing and health endpoints
//   - pkg/version: release and build information
//   - internal/config: YAML configuration file
//   - internal/constants: protocol limits and defaults
//   - internal/errors: sentinel errors and error kinds
//   - cmd/sshkex: command-line tool
//
// # Safety
//
// Every length read from the peer is checked against the bytes actually
// available before anything is sliced or allocated. Version lines and
// packets have fixed upper bounds, and every read has a deadline.
//
// # Testing
//
//	go test ./...                                   # All tests
//	go test -fuzz=FuzzDecodeKexInit ./test/fuzz/    # Fuzz tests
//	go test -bench=. ./test/benchmark               # Benchmarks
//	go test -tags fips ./pkg/protocol               # FIPS algorithm set
//
// # References
//
//   - RFC 4251: The Secure Shell (SSH) Protocol Architecture
//   - RFC 4253: The Secure Shell (SSH) Transport Layer Protocol
//   - RFC 8308: Extension Negotiation in the Secure Shell (SSH) Protocol
//   - HASSH: https://github.com/salesforce/hassh
package sshkex
