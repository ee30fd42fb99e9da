package sockopt

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// On Linux the pending byte count of a datagram socket is the size of the
// next datagram, not the whole receive queue.
func TestPendingBytesReportsNextDatagram(t *testing.T) {
	receiver := listenLoopback(t)
	sender := listenLoopback(t)
	to := receiver.LocalAddr().(*net.UDPAddr)

	sizes := []int{1, 300, 1400}
	for _, size := range sizes {
		_, err := sender.WriteToUDP(make([]byte, size), to)
		require.NoError(t, err)
	}

	fd, err := Handle(receiver)
	require.NoError(t, err)
	buf := make([]byte, 2048)
	for _, size := range sizes {
		waitReadable(t, fd)
		n, err := PendingBytes(receiver)
		require.NoError(t, err)
		assert.Equal(t, size, n)

		got, _, ok, err := RecvFrom(receiver, buf)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, size, got)
	}
}
