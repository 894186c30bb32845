package main

import (
	"sync/atomic"

	"impact-backend/internal/mqtt"
	"impact-backend/internal/services"
)

// connectionHooks connects the MQTT client callbacks to components built
// after the client. paho runs the callbacks on its own goroutines.
type connectionHooks struct {
	transport atomic.Pointer[mqtt.Transport]
	monitor   atomic.Pointer[services.MonitorService]
}

// connectionLost clears the stream state of every live session
func (h *connectionHooks) connectionLost(err error) {
	if monitor := h.monitor.Load(); monitor != nil {
		monitor.ResetAll()
	}
}

// reconnected restores the notify subscriptions the broker dropped
func (h *connectionHooks) reconnected() {
	if transport := h.transport.Load(); transport != nil {
		transport.Resubscribe()
	}
}
