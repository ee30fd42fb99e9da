// Package limits provides centralized packet size limits for the transmitter backends.
// This ensures consistent validation across the UDP, framed-stream and external paths.
package limits

import (
	"errors"
	"fmt"
)

const (
	// MaxDatagramSize is the largest payload a single UDP/IPv4 datagram can carry
	// as seen by the receive path. The IPv4 total length field is 16 bits wide.
	MaxDatagramSize = 65535

	// MaxFramePayload is the largest payload the 2-byte length prefix of the
	// framed-stream wire format can describe.
	MaxFramePayload = 65535

	// FrameLengthPrefixSize is the size of the big-endian length prefix that
	// precedes every frame on a stream connection.
	FrameLengthPrefixSize = 2

	// MaxExternalPacketSize is the largest packet accepted by the external backend.
	MaxExternalPacketSize = 65535

	// DefaultMaxPacketSize is the packet size used when a caller does not pick one.
	// It fits a standard Ethernet MTU after IPv4 and UDP headers.
	DefaultMaxPacketSize = 1400

	// IPv4HeaderSize is the size of an IPv4 header without options.
	IPv4HeaderSize = 20

	// UDPHeaderSize is the size of a UDP header.
	UDPHeaderSize = 8

	// TCPHeaderSize is the size of a TCP header without options.
	TCPHeaderSize = 20

	// UDPv4HeaderOverhead is the per-datagram overhead of the UDP/IPv4 backend.
	UDPv4HeaderOverhead = IPv4HeaderSize + UDPHeaderSize

	// TCPHeaderOverhead is the per-frame overhead of the framed-stream backend,
	// including the length prefix.
	TCPHeaderOverhead = IPv4HeaderSize + TCPHeaderSize + FrameLengthPrefixSize
)

var (
	// ErrPacketTooLarge indicates a packet exceeds the configured maximum size
	ErrPacketTooLarge = errors.New("packet too large")

	// ErrPacketSizeTooBig indicates a configured maximum exceeds the backend's hard limit
	ErrPacketSizeTooBig = errors.New("specified packet size exceeds backend maximum")
)

// ValidatePacketSize validates a packet against the specified maximum size.
// Empty packets are valid; RTP allows zero-length payloads on stream transports.
func ValidatePacketSize(packet []byte, maxSize int) error {
	if len(packet) > maxSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrPacketTooLarge, len(packet), maxSize)
	}
	return nil
}

// ValidateMaxPacketSize checks a requested maximum packet size against a backend's hard limit.
func ValidateMaxPacketSize(requested, hardLimit int) error {
	if requested <= 0 {
		return fmt.Errorf("%w: size %d must be positive", ErrPacketSizeTooBig, requested)
	}
	if requested > hardLimit {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrPacketSizeTooBig, requested, hardLimit)
	}
	return nil
}
