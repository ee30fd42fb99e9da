// Package tcp implements a transmitter over already established stream
// connections.
//
// Every packet travels as a two byte big-endian length followed by the
// payload. Connections are supplied by the application through
// AddDestination; the transmitter never dials or accepts. Each connection
// is used for both directions: sends are written to every connection and
// frames read from any of them are queued for GetNextPacket.
//
// Failures on a single connection are reported through an ErrorHandler and
// never interrupt traffic on the others. Handlers run without the
// transmitter lock held, so they may call DeleteDestination.
package tcp
