package session

import (
	"io"
	"time"
)

// Conn is the minimal surface a Session needs from a transport: a byte
// stream plus read-deadline control for keep-alive enforcement. net.Conn
// and the network package's Connection (C7) both satisfy it.
type Conn interface {
	io.Reader
	io.Writer
	SetReadDeadline(t time.Time) error
	Close() error
}
