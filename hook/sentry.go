package hook

import (
	"fmt"

	"github.com/getsentry/sentry-go"
)

// ErrorReportingHook reports panics recovered in the session, router and
// broker tasks to Sentry, mirroring the teacher's hook extension point
// (hook.Hook) as the seam a production deployment hangs observability off.
type ErrorReportingHook struct {
	*Base
	hub *sentry.Hub
}

// NewErrorReportingHook builds a hook bound to hub. Pass sentry.CurrentHub()
// to report through the process-wide client.
func NewErrorReportingHook(hub *sentry.Hub) *ErrorReportingHook {
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	return &ErrorReportingHook{Base: NewHookBase("sentry"), hub: hub}
}

func (h *ErrorReportingHook) Provides(event Event) bool {
	return event == OnPanic
}

// OnPanic captures the recovered value as a Sentry event tagged with the
// origin goroutine and client id, so a panic in one session's task doesn't
// take down the broker without a trace.
func (h *ErrorReportingHook) OnPanic(origin, clientID string, recovered any) error {
	h.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("origin", origin)
		if clientID != "" {
			scope.SetTag("client_id", clientID)
		}
		h.hub.CaptureException(fmt.Errorf("recovered panic in %s: %v", origin, recovered))
	})
	return nil
}
