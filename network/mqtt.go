package network

import (
	"context"

	"github.com/axmq/corebroker/hook"
	"github.com/axmq/corebroker/pkg/logger"
	"github.com/axmq/corebroker/session"
)

// SessionFactory builds a new per-connection Session over conn. The
// listener's accept loop owns exactly one such Session per Connection, so
// MQTT semantics never touch the pool/listener's own locking.
type SessionFactory func(conn session.Conn) *session.Session

// ServeMQTT returns a ConnectionHandler that hands every accepted
// Connection to newSession, performs the CONNECT handshake, and runs the
// session to completion on its own goroutine — the C7/C5 seam (spec §4.7
// "accept loop hands the connection to a new per-client task"). hooks may
// be nil, in which case a recovered panic is only logged.
func ServeMQTT(ctx context.Context, log *logger.SlogLogger, hooks *hook.Manager, newSession SessionFactory) ConnectionHandler {
	return func(conn *Connection) error {
		sess := newSession(conn)

		go func() {
			defer conn.Close()
			defer func() {
				if r := recover(); r != nil {
					log.Error("recovered panic in session task", "client_id", sess.ClientID(), "panic", r)
					if hooks != nil {
						hooks.OnPanic("session", sess.ClientID(), r)
					}
				}
			}()

			if err := sess.Handshake(ctx); err != nil {
				log.Debug("handshake failed", "remote", conn.RemoteAddr(), "error", err)
				return
			}

			log.Info("session connected", "client_id", sess.ClientID(), "remote", conn.RemoteAddr())
			if err := sess.Run(ctx); err != nil {
				log.Debug("session ended", "client_id", sess.ClientID(), "error", err)
			}
		}()

		return nil
	}
}
