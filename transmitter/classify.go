package transmitter

import "github.com/pion/rtcp"

// CommonHeaderSize is the size of the header shared by every RTCP packet.
// Multiplexed traffic shorter than or equal to this is always data.
const CommonHeaderSize = 4

// IsControlPacket classifies a packet received on a channel that carries
// both data and control traffic. It inspects only the second byte, which is
// the RTCP packet type and falls in [200, 204] for control packets.
func IsControlPacket(b []byte) bool {
	if len(b) <= CommonHeaderSize {
		return false
	}
	pt := rtcp.PacketType(b[1])
	return pt >= rtcp.TypeSenderReport && pt <= rtcp.TypeApplicationDefined
}
