package tcp

import (
	"fmt"
	"net"
	"time"

	"github.com/opd-ai/rtptransport/abort"
	"github.com/opd-ai/rtptransport/transmitter"
)

// DefaultSendTimeout bounds a single frame write to one connection.
const DefaultSendTimeout = 5 * time.Second

var (
	// ErrSocketAlreadyInDestinations indicates the connection was added before.
	ErrSocketAlreadyInDestinations = fmt.Errorf("socket already in destinations: %w", transmitter.ErrAlreadyExists)

	// ErrSocketNotInDestinations indicates the connection was never added.
	ErrSocketNotInDestinations = fmt.Errorf("socket not in destinations: %w", transmitter.ErrNoSuchEntry)
)

// ErrorHandler is notified of failures on individual connections. It is
// called without the transmitter lock held.
type ErrorHandler interface {
	// OnSendError is called when writing a frame to conn failed.
	OnSendError(conn net.Conn, err error)

	// OnReceiveError is called when reading from conn failed or the peer
	// closed it. Polling of conn continues until it is deleted.
	OnReceiveError(conn net.Conn, err error)
}

// LogErrorHandler is the default ErrorHandler. It logs every failure.
type LogErrorHandler struct{}

// OnSendError implements ErrorHandler.
func (LogErrorHandler) OnSendError(conn net.Conn, err error) {
	transmitter.NewLogger("tcp", "OnSendError").
		WithError(err, "send").
		WithAddress("conn", transmitter.NewStreamAddress(conn)).
		Warn("Failed to send frame")
}

// OnReceiveError implements ErrorHandler.
func (LogErrorHandler) OnReceiveError(conn net.Conn, err error) {
	transmitter.NewLogger("tcp", "OnReceiveError").
		WithError(err, "receive").
		WithAddress("conn", transmitter.NewStreamAddress(conn)).
		Warn("Failed to receive from connection")
}

// Params configures a stream transmitter.
type Params struct {
	// AbortDescriptors is a shared, initialized abort channel. When nil the
	// transmitter creates and owns its own.
	AbortDescriptors *abort.Descriptors

	// ErrorHandler receives per-connection failures. Nil logs them.
	ErrorHandler ErrorHandler

	// SendTimeout is the write deadline per frame and connection. Zero
	// disables the deadline.
	SendTimeout time.Duration

	// TimeProvider stamps received packets. Nil uses the package default.
	TimeProvider transmitter.TimeProvider
}

// DefaultParams returns the parameters used when Create receives nil.
func DefaultParams() *Params {
	return &Params{SendTimeout: DefaultSendTimeout}
}

// Protocol implements transmitter.Params.
func (*Params) Protocol() transmitter.Protocol { return transmitter.ProtocolTCP }

// Info describes a created stream transmitter. Connections are owned by the
// application, so there is nothing further to report.
type Info struct{}

// Protocol implements transmitter.Info.
func (*Info) Protocol() transmitter.Protocol { return transmitter.ProtocolTCP }
