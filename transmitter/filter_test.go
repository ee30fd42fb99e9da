package transmitter

import (
	"math/rand"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	hostA = netip.MustParseAddr("10.0.0.1")
	hostB = netip.MustParseAddr("10.0.0.2")
)

func TestAcceptIgnoreTableSpecificPorts(t *testing.T) {
	table := NewAcceptIgnoreTable()
	require.NoError(t, table.Add(hostA, 5000))
	require.NoError(t, table.Add(hostA, 5002))

	assert.True(t, table.ShouldAccept(AcceptListed, hostA, 5000))
	assert.True(t, table.ShouldAccept(AcceptListed, hostA, 5002))
	assert.False(t, table.ShouldAccept(AcceptListed, hostA, 5004))
	assert.False(t, table.ShouldAccept(AcceptListed, hostB, 5000))

	assert.ErrorIs(t, table.Add(hostA, 5000), ErrAlreadyExists)
}

func TestAcceptIgnoreTableAllPortsWithExceptions(t *testing.T) {
	table := NewAcceptIgnoreTable()
	require.NoError(t, table.Add(hostA, 0))

	assert.True(t, table.ShouldAccept(AcceptListed, hostA, 1))
	assert.True(t, table.ShouldAccept(AcceptListed, hostA, 6000))

	require.NoError(t, table.Delete(hostA, 6000))
	assert.False(t, table.ShouldAccept(AcceptListed, hostA, 6000))
	assert.True(t, table.ShouldAccept(AcceptListed, hostA, 6002))
	assert.ErrorIs(t, table.Delete(hostA, 6000), ErrNoSuchEntry)

	require.NoError(t, table.Add(hostA, 6000))
	assert.True(t, table.ShouldAccept(AcceptListed, hostA, 6000))
	assert.ErrorIs(t, table.Add(hostA, 6000), ErrAlreadyExists)
}

func TestAcceptIgnoreTableAddAllPortsDropsExceptions(t *testing.T) {
	table := NewAcceptIgnoreTable()
	require.NoError(t, table.Add(hostA, 0))
	require.NoError(t, table.Delete(hostA, 7000))
	require.NoError(t, table.Add(hostA, 0))
	assert.True(t, table.Listed(hostA, 7000))
}

func TestAcceptIgnoreTableDelete(t *testing.T) {
	table := NewAcceptIgnoreTable()
	assert.ErrorIs(t, table.Delete(hostA, 5000), ErrNoSuchEntry)

	require.NoError(t, table.Add(hostA, 5000))
	assert.ErrorIs(t, table.Delete(hostA, 5002), ErrNoSuchEntry)
	require.NoError(t, table.Delete(hostA, 5000))
	assert.Equal(t, 0, table.Len())

	require.NoError(t, table.Add(hostB, 5000))
	require.NoError(t, table.Add(hostB, 5002))
	require.NoError(t, table.Delete(hostB, 0))
	assert.False(t, table.Listed(hostB, 5000))
	assert.Equal(t, 0, table.Len())
}

func TestAcceptIgnoreTableClear(t *testing.T) {
	table := NewAcceptIgnoreTable()
	require.NoError(t, table.Add(hostA, 0))
	require.NoError(t, table.Add(hostB, 1))
	table.Clear()
	assert.Equal(t, 0, table.Len())
	assert.True(t, table.ShouldAccept(IgnoreListed, hostA, 1))
}

func TestAcceptAllIgnoresTable(t *testing.T) {
	table := NewAcceptIgnoreTable()
	assert.True(t, table.ShouldAccept(AcceptAll, hostA, 1))
	require.NoError(t, table.Add(hostA, 1))
	assert.True(t, table.ShouldAccept(AcceptAll, hostA, 1))
	assert.True(t, table.ShouldAccept(AcceptAll, hostB, 9))
}

// For any table state, AcceptListed and IgnoreListed must be exact
// complements, and repeated queries must agree.
func TestAcceptIgnoreTableModesAreComplements(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	hosts := []netip.Addr{hostA, hostB, netip.MustParseAddr("192.168.1.9")}
	ports := []uint16{0, 5000, 5001, 5002, 5003}

	table := NewAcceptIgnoreTable()
	for step := 0; step < 500; step++ {
		ip := hosts[rng.Intn(len(hosts))]
		port := ports[rng.Intn(len(ports))]
		if rng.Intn(2) == 0 {
			_ = table.Add(ip, port)
		} else {
			_ = table.Delete(ip, port)
		}

		for _, qip := range hosts {
			for _, qport := range ports[1:] {
				accept := table.ShouldAccept(AcceptListed, qip, qport)
				ignore := table.ShouldAccept(IgnoreListed, qip, qport)
				require.NotEqual(t, accept, ignore, "step %d: %s:%d", step, qip, qport)
				require.Equal(t, accept, table.ShouldAccept(AcceptListed, qip, qport))
			}
		}
	}
}
