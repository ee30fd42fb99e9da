//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package sockopt

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/rtptransport/wait"
)

func listenLoopback(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitReadable(t *testing.T, fd int) {
	t.Helper()
	ready := make([]bool, 1)
	n, err := wait.Select([]int{fd}, ready, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestHandle(t *testing.T) {
	conn := listenLoopback(t)
	fd, err := Handle(conn)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, fd, 0)
}

func TestPendingBytesAndRecvFrom(t *testing.T) {
	receiver := listenLoopback(t)
	sender := listenLoopback(t)

	n, err := PendingBytes(receiver)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	buf := make([]byte, 64)
	_, _, ok, err := RecvFrom(receiver, buf)
	require.NoError(t, err)
	assert.False(t, ok, "empty socket must not report a datagram")

	payload := []byte{0x80, 0x60, 0x00, 0x01, 0xAA}
	_, err = sender.WriteToUDP(payload, receiver.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)

	fd, err := Handle(receiver)
	require.NoError(t, err)
	waitReadable(t, fd)

	n, err = PendingBytes(receiver)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)

	got, from, ok, err := RecvFrom(receiver, buf)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, payload, buf[:got])
	assert.Equal(t, sender.LocalAddr().(*net.UDPAddr).AddrPort().Port(), from.Port())
	assert.Equal(t, "127.0.0.1", from.Addr().String())
}

func TestReadStream(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	client, err := net.Dial("tcp4", ln.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	server, err := ln.Accept()
	require.NoError(t, err)
	defer server.Close()

	_, err = client.Write([]byte("abc"))
	require.NoError(t, err)

	fd, err := Handle(server.(*net.TCPConn))
	require.NoError(t, err)
	waitReadable(t, fd)

	buf := make([]byte, 8)
	n, ok, err := Read(server.(*net.TCPConn), buf)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "abc", string(buf[:n]))

	_, ok, err = Read(server.(*net.TCPConn), buf)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, client.Close())
	waitReadable(t, fd)
	n, ok, err = Read(server.(*net.TCPConn), buf)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, n, "orderly shutdown reads zero bytes")
}

func TestReuseAddr(t *testing.T) {
	lc := net.ListenConfig{Control: ReuseAddr}
	pc, err := lc.ListenPacket(context.Background(), "udp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	recv, send, err := BufferSizes(pc.(*net.UDPConn))
	require.NoError(t, err)
	assert.Greater(t, recv, 0)
	assert.Greater(t, send, 0)
}
