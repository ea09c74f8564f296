// Package email normalizes sending and webhook handling across Email Service
// Providers. Each ESP contributes a Backend (outbound) and/or webhook
// normalizers (inbound), registered by name the way database/sql drivers are.
package email

import (
	"context"
	"sort"
	"sync"

	"github.com/mailbridge/go-mailbridge/types"
)

// Backend sends one abstract message through a single ESP and reports a
// uniform per-recipient status. Implementations are safe for concurrent use;
// every Send call owns its payload state exclusively.
type Backend interface {
	Name() string
	Send(ctx context.Context, msg *types.Message) (types.SendResult, error)
}

// TrackingWebhook validates one ESP webhook request and normalizes its
// payload into tracking events. A request that fails validation produces no
// events; a control message (e.g. a subscription handshake) may validly
// produce zero.
type TrackingWebhook interface {
	Name() string
	ReceiveTrackingEvents(req *WebhookRequest) ([]*types.TrackingEvent, error)
}

// InboundWebhook normalizes webhook requests carrying full received messages.
type InboundWebhook interface {
	Name() string
	ReceiveInboundEvents(req *WebhookRequest) ([]*types.InboundEvent, error)
}

var (
	backendsMu sync.RWMutex
	backends   = make(map[string]Backend)

	webhooksMu       sync.RWMutex
	trackingWebhooks = make(map[string]TrackingWebhook)
	inboundWebhooks  = make(map[string]InboundWebhook)
)

// RegisterBackend makes a send backend available by the provided name.
// If RegisterBackend is called twice with the same name or if the backend is
// nil, it panics.
func RegisterBackend(name string, b Backend) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	if b == nil {
		panic("email: Register backend is nil")
	}
	if _, dup := backends[name]; dup {
		panic("email: Register called twice for backend " + name)
	}
	backends[name] = b
}

// GetBackend returns a registered backend or nil.
func GetBackend(name string) Backend {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	return backends[name]
}

// Backends returns a sorted list of the names of the registered backends.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	list := make([]string, 0, len(backends))
	for name := range backends {
		list = append(list, name)
	}
	sort.Strings(list)
	return list
}

// RegisterTrackingWebhook makes a tracking webhook normalizer available by name.
func RegisterTrackingWebhook(name string, w TrackingWebhook) {
	webhooksMu.Lock()
	defer webhooksMu.Unlock()
	if w == nil {
		panic("email: Register tracking webhook is nil")
	}
	if _, dup := trackingWebhooks[name]; dup {
		panic("email: Register called twice for tracking webhook " + name)
	}
	trackingWebhooks[name] = w
}

// GetTrackingWebhook returns a registered tracking webhook or nil.
func GetTrackingWebhook(name string) TrackingWebhook {
	webhooksMu.RLock()
	defer webhooksMu.RUnlock()
	return trackingWebhooks[name]
}

// RegisterInboundWebhook makes an inbound webhook normalizer available by name.
func RegisterInboundWebhook(name string, w InboundWebhook) {
	webhooksMu.Lock()
	defer webhooksMu.Unlock()
	if w == nil {
		panic("email: Register inbound webhook is nil")
	}
	if _, dup := inboundWebhooks[name]; dup {
		panic("email: Register called twice for inbound webhook " + name)
	}
	inboundWebhooks[name] = w
}

// GetInboundWebhook returns a registered inbound webhook or nil.
func GetInboundWebhook(name string) InboundWebhook {
	webhooksMu.RLock()
	defer webhooksMu.RUnlock()
	return inboundWebhooks[name]
}

// UnregisterAll clears every registry. For tests.
func UnregisterAll() {
	backendsMu.Lock()
	backends = make(map[string]Backend)
	backendsMu.Unlock()

	webhooksMu.Lock()
	trackingWebhooks = make(map[string]TrackingWebhook)
	inboundWebhooks = make(map[string]InboundWebhook)
	webhooksMu.Unlock()
}
