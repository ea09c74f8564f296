package email

import (
	"sync"

	"github.com/mailbridge/go-mailbridge/types"
)

// TrackingHandler receives one normalized tracking event. Handlers only ever
// observe events from requests that passed validation.
type TrackingHandler func(esp string, event *types.TrackingEvent)

// InboundHandler receives one normalized inbound message event.
type InboundHandler func(esp string, event *types.InboundEvent)

var (
	handlersMu       sync.RWMutex
	trackingHandlers []TrackingHandler
	inboundHandlers  []InboundHandler
)

// OnTrackingEvent registers a handler for normalized tracking events.
func OnTrackingEvent(h TrackingHandler) {
	handlersMu.Lock()
	defer handlersMu.Unlock()
	trackingHandlers = append(trackingHandlers, h)
}

// OnInboundEvent registers a handler for normalized inbound message events.
func OnInboundEvent(h InboundHandler) {
	handlersMu.Lock()
	defer handlersMu.Unlock()
	inboundHandlers = append(inboundHandlers, h)
}

// DispatchTracking hands each event to every registered handler.
func DispatchTracking(esp string, events []*types.TrackingEvent) {
	handlersMu.RLock()
	handlers := trackingHandlers
	handlersMu.RUnlock()
	for _, event := range events {
		for _, h := range handlers {
			h(esp, event)
		}
	}
}

// DispatchInbound hands each inbound event to every registered handler.
func DispatchInbound(esp string, events []*types.InboundEvent) {
	handlersMu.RLock()
	handlers := inboundHandlers
	handlersMu.RUnlock()
	for _, event := range events {
		for _, h := range handlers {
			h(esp, event)
		}
	}
}

// ResetHandlers clears registered handlers. For tests.
func ResetHandlers() {
	handlersMu.Lock()
	defer handlersMu.Unlock()
	trackingHandlers = nil
	inboundHandlers = nil
}
