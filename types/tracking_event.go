package types

import "time"

// EventType is the uniform category of a delivery/engagement notification.
type EventType string

const (
	EventQueued       EventType = "queued"
	EventSent         EventType = "sent"
	EventDelivered    EventType = "delivered"
	EventDeferred     EventType = "deferred"
	EventBounced      EventType = "bounced"
	EventRejected     EventType = "rejected"
	EventFailed       EventType = "failed"
	EventComplained   EventType = "complained"
	EventUnsubscribed EventType = "unsubscribed"
	EventOpened       EventType = "opened"
	EventClicked      EventType = "clicked"
	EventInbound      EventType = "inbound"
	EventUnknown      EventType = "unknown"
)

// RejectReason subcategorizes bounce/reject events.
type RejectReason string

const (
	RejectReasonBounced      RejectReason = "bounced"
	RejectReasonBlocked      RejectReason = "blocked"
	RejectReasonSpam         RejectReason = "spam"
	RejectReasonInvalid      RejectReason = "invalid"
	RejectReasonTimedOut     RejectReason = "timed_out"
	RejectReasonUnsubscribed RejectReason = "unsubscribed"
	RejectReasonOther        RejectReason = "other"
)

// TrackingEvent is one normalized webhook notification item. Immutable; handed
// to the registered handler and then discarded.
type TrackingEvent struct {
	EventType EventType `json:"eventType"`
	// Timestamp is always UTC
	Timestamp time.Time `json:"timestamp"`
	MessageID string    `json:"messageId,omitempty"`
	// EventID is empty for ESPs that provide no unique event identifier
	EventID      string       `json:"eventId,omitempty"`
	Recipient    string       `json:"recipient,omitempty"`
	RejectReason RejectReason `json:"rejectReason,omitempty"`
	Description  string       `json:"description,omitempty"`
	// MtaResponse is the raw SMTP diagnostic text, when the ESP relays one
	MtaResponse string                 `json:"mtaResponse,omitempty"`
	ClickURL    string                 `json:"clickUrl,omitempty"`
	UserAgent   string                 `json:"userAgent,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Tags        []string               `json:"tags,omitempty"`
	// EspEvent preserves the raw parsed payload for debugging
	EspEvent interface{} `json:"espEvent,omitempty"`
}
