// Package protocol implements the SSH-2 transport messages exchanged before
// key exchange: the version banner, the binary packet framing and the
// SSH_MSG_KEXINIT algorithm negotiation message.
//
// This file (messages.go) names the transport message numbers:
//
//	Client                                  Server
//	    |                                      |
//	    | <------- "SSH-2.0-..." CRLF -------- |
//	    | -------- "SSH-2.0-..." CRLF -------> |
//	    |                                      |
//	    | <------- SSH_MSG_KEXINIT (20) ------ |
//	    |                                      |
//	    |   [key exchange: not implemented]    |
//
// Only SSH_MSG_KEXINIT is decoded; the other numbers exist so diagnostics can
// say what arrived instead.
package protocol

import (
	"fmt"

	"github.com/pzverkov/sshkex/internal/constants"
)

// MessageType is the first byte of every packet payload.
type MessageType uint8

// Transport layer message numbers (RFC 4250 section 4.1.2).
const (
	MessageTypeDisconnect     MessageType = constants.MsgDisconnect
	MessageTypeIgnore         MessageType = constants.MsgIgnore
	MessageTypeUnimplemented  MessageType = constants.MsgUnimplemented
	MessageTypeDebug          MessageType = constants.MsgDebug
	MessageTypeServiceRequest MessageType = constants.MsgServiceRequest
	MessageTypeServiceAccept  MessageType = constants.MsgServiceAccept
	MessageTypeExtInfo        MessageType = constants.MsgExtInfo

	// MessageTypeKexInit starts algorithm negotiation.
	MessageTypeKexInit MessageType = constants.MsgKexInit
	// MessageTypeNewKeys ends key exchange.
	MessageTypeNewKeys MessageType = constants.MsgNewKeys
)

// String returns the RFC name for the message type.
func (mt MessageType) String() string {
	switch mt {
	case MessageTypeDisconnect:
		return "SSH_MSG_DISCONNECT"
	case MessageTypeIgnore:
		return "SSH_MSG_IGNORE"
	case MessageTypeUnimplemented:
		return "SSH_MSG_UNIMPLEMENTED"
	case MessageTypeDebug:
		return "SSH_MSG_DEBUG"
	case MessageTypeServiceRequest:
		return "SSH_MSG_SERVICE_REQUEST"
	case MessageTypeServiceAccept:
		return "SSH_MSG_SERVICE_ACCEPT"
	case MessageTypeExtInfo:
		return "SSH_MSG_EXT_INFO"
	case MessageTypeKexInit:
		return "SSH_MSG_KEXINIT"
	case MessageTypeNewKeys:
		return "SSH_MSG_NEWKEYS"
	default:
		return fmt.Sprintf("SSH_MSG_UNKNOWN(%d)", uint8(mt))
	}
}
