package tcp

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/opd-ai/rtptransport/limits"
	"github.com/opd-ai/rtptransport/transmitter"
)

// AppendFrame appends the length prefix and payload to dst.
func AppendFrame(dst, payload []byte) ([]byte, error) {
	if len(payload) > limits.MaxFramePayload {
		return dst, fmt.Errorf("%w: %d bytes exceeds frame limit %d", transmitter.ErrPacketTooLarge, len(payload), limits.MaxFramePayload)
	}
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(payload)))
	return append(dst, payload...), nil
}

// FrameReader reassembles length-prefixed frames from a byte stream that may
// deliver them in arbitrary pieces. The zero value is ready to use.
type FrameReader struct {
	lengthBuf   [limits.FrameLengthPrefixSize]byte
	lengthRead  int
	payload     []byte
	payloadRead int
}

// NewFrameReader returns an empty reader.
func NewFrameReader() *FrameReader {
	return &FrameReader{}
}

// Consume reads at most available bytes from r, never more than the current
// length prefix or payload still needs, and returns every frame completed on
// the way. It stops early when r returns no data.
func (f *FrameReader) Consume(r io.Reader, available int) (frames [][]byte, consumed int, err error) {
	for available > 0 {
		var buf []byte
		if f.lengthRead < len(f.lengthBuf) {
			buf = f.lengthBuf[f.lengthRead:]
		} else {
			buf = f.payload[f.payloadRead:]
		}
		if len(buf) > available {
			buf = buf[:available]
		}

		n, err := r.Read(buf)
		consumed += n
		available -= n

		if f.lengthRead < len(f.lengthBuf) {
			f.lengthRead += n
			if f.lengthRead == len(f.lengthBuf) {
				f.startPayload()
			}
		} else {
			f.payloadRead += n
		}
		if f.lengthRead == len(f.lengthBuf) && f.payloadRead == len(f.payload) {
			frames = append(frames, f.payload)
			f.Reset()
		}

		if err != nil {
			return frames, consumed, err
		}
		if n == 0 {
			return frames, consumed, nil
		}
	}
	return frames, consumed, nil
}

func (f *FrameReader) startPayload() {
	length := int(binary.BigEndian.Uint16(f.lengthBuf[:]))
	if length == 0 {
		// One byte is allocated so the empty frame still owns a buffer.
		f.payload = make([]byte, 1)[:0]
	} else {
		f.payload = make([]byte, length)
	}
	f.payloadRead = 0
}

// Pending reports whether a partially read frame is buffered.
func (f *FrameReader) Pending() bool {
	return f.lengthRead > 0
}

// Reset discards any partially read frame.
func (f *FrameReader) Reset() {
	f.lengthBuf = [limits.FrameLengthPrefixSize]byte{}
	f.lengthRead = 0
	f.payload = nil
	f.payloadRead = 0
}
