// Package limits provides centralized packet size constants and validation functions
// for the transmitter backends.
//
// # Size Hierarchy
//
//   - MaxDatagramSize (65535 bytes): the receive buffer of the UDP/IPv4 backend and the
//     hard ceiling for its configured maximum packet size.
//
//   - MaxFramePayload (65535 bytes): the largest payload a 2-byte length prefix can
//     describe on a framed stream.
//
//   - MaxExternalPacketSize (65535 bytes): the ceiling for the external backend.
//
// Header overhead constants (UDPv4HeaderOverhead, TCPHeaderOverhead) are reported to
// the session layer so that it can account for transport bytes in bandwidth estimates.
//
// # Validation Functions
//
//	if err := limits.ValidatePacketSize(data, maxPacketSize); err != nil {
//	    // errors.Is(err, limits.ErrPacketTooLarge)
//	}
//
//	if err := limits.ValidateMaxPacketSize(requested, limits.MaxDatagramSize); err != nil {
//	    // errors.Is(err, limits.ErrPacketSizeTooBig)
//	}
package limits
