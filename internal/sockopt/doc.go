// Package sockopt hides the per-OS socket calls the transmitter backends
// need beyond what package net offers: raw handle extraction for the
// multiplexed wait, pending-byte queries, non-blocking datagram reads and
// address reuse at bind time.
package sockopt
