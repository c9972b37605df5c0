// Package errors defines the error kinds returned by the sshkex handshake
// core. Every failure is one of the sentinel values below, optionally wrapped
// in a struct that adds the field, banner or phase it occurred in.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for transport operations
var (
	// ErrConnection indicates a connect, read or write failure on the byte stream
	ErrConnection = errors.New("transport: connection error")

	// ErrTimeout indicates a blocking operation exceeded its deadline
	ErrTimeout = errors.New("transport: operation timed out")
)

// Sentinel errors for version exchange
var (
	// ErrUnsupportedVersion indicates the peer banner does not advertise SSH-2.0
	ErrUnsupportedVersion = errors.New("banner: unsupported protocol version")

	// ErrInvalidBanner indicates the peer sent a malformed version line
	ErrInvalidBanner = errors.New("banner: invalid version line")

	// ErrBannerTooLong indicates no version line was found within the length limit
	ErrBannerTooLong = errors.New("banner: version line too long")
)

// Sentinel errors for decoding
var (
	// ErrTruncated indicates fewer bytes are available than a field declares
	ErrTruncated = errors.New("decode: truncated input")

	// ErrLengthOverflow indicates a length field implies an implausible amount of data
	ErrLengthOverflow = errors.New("decode: length overflow")

	// ErrInvalidPadding indicates padding_length is outside [4, 255]
	ErrInvalidPadding = errors.New("packet: invalid padding length")

	// ErrInvalidFraming indicates packet_length is inconsistent with the data
	ErrInvalidFraming = errors.New("packet: invalid framing")

	// ErrInvalidUTF8 indicates a name-list is not valid UTF-8
	ErrInvalidUTF8 = errors.New("decode: invalid utf-8 in name-list")

	// ErrUnexpectedMessageType indicates a payload with the wrong message number
	ErrUnexpectedMessageType = errors.New("protocol: unexpected message type")

	// ErrTrailingData indicates bytes left over after a complete message
	ErrTrailingData = errors.New("protocol: trailing data after message")

	// ErrNoCommonAlgorithm indicates negotiation found no algorithm both sides support
	ErrNoCommonAlgorithm = errors.New("protocol: no common algorithm")
)

// Sentinel errors for encoding
var (
	// ErrInvalidName indicates an algorithm name that cannot be placed in a name-list
	ErrInvalidName = errors.New("encode: invalid algorithm name")

	// ErrPayloadTooLarge indicates a payload that does not fit in one packet
	ErrPayloadTooLarge = errors.New("encode: payload too large")
)

// Sentinel errors for the handshake session
var (
	// ErrInvalidState indicates a session method was called out of order
	ErrInvalidState = errors.New("session: invalid state")
)

// Sentinel errors for command-line input
var (
	// ErrInvalidDestination indicates a destination that is not login@host[:port]
	ErrInvalidDestination = errors.New("config: invalid destination")

	// ErrInvalidConfig indicates a configuration value outside its allowed range
	ErrInvalidConfig = errors.New("config: invalid value")

	// ErrDestinationBanned indicates a destination skipped after repeated failures
	ErrDestinationBanned = errors.New("probe: destination temporarily banned")
)

// DecodeError records which field was being read when decoding failed.
type DecodeError struct {
	Field string // Wire field name, e.g. "kex_algorithms"
	Err   error  // Underlying error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// NewDecodeError creates a new DecodeError
func NewDecodeError(field string, err error) *DecodeError {
	return &DecodeError{Field: field, Err: err}
}

// BannerError carries the offending version line for diagnostics.
type BannerError struct {
	Banner string
	Err    error
}

func (e *BannerError) Error() string {
	return fmt.Sprintf("%v: %q", e.Err, e.Banner)
}

func (e *BannerError) Unwrap() error {
	return e.Err
}

// NewBannerError creates a new BannerError
func NewBannerError(banner string, err error) *BannerError {
	return &BannerError{Banner: banner, Err: err}
}

// ProtocolError wraps an error with the handshake phase it occurred in
type ProtocolError struct {
	Phase string // Handshake phase: "connect", "banner" or "kexinit"
	Err   error  // Underlying error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("handshake %s: %v", e.Phase, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// NewProtocolError creates a new ProtocolError
func NewProtocolError(phase string, err error) *ProtocolError {
	return &ProtocolError{Phase: phase, Err: err}
}

// IOError attaches the underlying network error to ErrConnection or ErrTimeout.
type IOError struct {
	Op    string // "dial", "read" or "write"
	Kind  error  // ErrConnection or ErrTimeout
	Cause error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%v: %s: %v", e.Kind, e.Op, e.Cause)
}

// Unwrap exposes both the kind and the cause to errors.Is.
func (e *IOError) Unwrap() []error {
	return []error{e.Kind, e.Cause}
}

// NewIOError creates a new IOError
func NewIOError(op string, kind, cause error) *IOError {
	return &IOError{Op: op, Kind: kind, Cause: cause}
}

var kinds = []struct {
	err  error
	name string
}{
	{ErrTimeout, "timeout"},
	{ErrConnection, "connection"},
	{ErrUnsupportedVersion, "unsupported_version"},
	{ErrInvalidBanner, "invalid_banner"},
	{ErrBannerTooLong, "banner_too_long"},
	{ErrTruncated, "truncated"},
	{ErrLengthOverflow, "length_overflow"},
	{ErrInvalidPadding, "invalid_padding"},
	{ErrInvalidFraming, "invalid_framing"},
	{ErrInvalidUTF8, "invalid_utf8"},
	{ErrUnexpectedMessageType, "unexpected_message_type"},
	{ErrTrailingData, "trailing_data"},
	{ErrNoCommonAlgorithm, "no_common_algorithm"},
	{ErrInvalidName, "invalid_name"},
	{ErrPayloadTooLarge, "payload_too_large"},
	{ErrInvalidState, "invalid_state"},
	{ErrInvalidDestination, "invalid_destination"},
	{ErrInvalidConfig, "invalid_config"},
	{ErrDestinationBanned, "banned"},
}

// Kind returns a stable label for the error kind of err, for use in metrics
// and structured logs. It returns "unknown" for errors outside this package
// and "" for nil.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "unknown"
}

// Field returns the wire field recorded by the first DecodeError in err's
// chain, or "" if there is none.
func Field(err error) string {
	var derr *DecodeError
	if errors.As(err, &derr) {
		return derr.Field
	}
	return ""
}

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience wrapper around errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
