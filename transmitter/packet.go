package transmitter

import "time"

// RawPacket is one received datagram or reassembled stream frame awaiting
// consumption by the session layer. It owns its byte buffer; ownership moves
// to the caller of GetNextPacket.
type RawPacket struct {
	data        []byte
	source      Address
	receiveTime time.Time
	isData      bool
}

// NewRawPacket wraps data without copying it; the caller hands over
// ownership. The source address is cloned.
func NewRawPacket(data []byte, source Address, receiveTime time.Time, isData bool) *RawPacket {
	var src Address
	if source != nil {
		src = source.Clone()
	}
	return &RawPacket{
		data:        data,
		source:      src,
		receiveTime: receiveTime,
		isData:      isData,
	}
}

// Data returns the packet bytes.
func (p *RawPacket) Data() []byte { return p.data }

// Len returns the number of packet bytes.
func (p *RawPacket) Len() int { return len(p.data) }

// Source returns the address the packet was received from.
func (p *RawPacket) Source() Address { return p.source }

// ReceiveTime returns the time the packet was read from the transport.
func (p *RawPacket) ReceiveTime() time.Time { return p.receiveTime }

// IsData reports whether the packet arrived on, or was classified as, the data channel.
func (p *RawPacket) IsData() bool { return p.isData }

// SetData replaces the packet contents, taking ownership of data.
// Upper layers use it to transform bytes in place, e.g. after decryption.
func (p *RawPacket) SetData(data []byte) {
	p.data = data
}

// ZeroData drops the payload reference without releasing the packet.
func (p *RawPacket) ZeroData() {
	p.data = nil
}

// SetSource replaces the source address with a clone of addr.
func (p *RawPacket) SetSource(addr Address) {
	if addr == nil {
		p.source = nil
		return
	}
	p.source = addr.Clone()
}
