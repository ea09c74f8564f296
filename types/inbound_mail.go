package types

import "time"

// InboundMail is a parsed inbound email, either recovered from raw MIME bytes
// or assembled from an ESP's pre-parsed webhook fields.
type InboundMail struct {
	FromEmail *EmailAddress  `json:"fromEmail,omitempty"`
	To        []EmailAddress `json:"to,omitempty"`
	Cc        []EmailAddress `json:"cc,omitempty"`
	Subject   string         `json:"subject,omitempty"`
	Date      time.Time      `json:"date,omitempty"`

	Text string `json:"text,omitempty"`
	HTML string `json:"html,omitempty"`

	Attachments []*Attachment `json:"attachments,omitempty"`
	// InlineAttachments is keyed by Content-ID (without angle brackets)
	InlineAttachments map[string]*Attachment `json:"inlineAttachments,omitempty"`

	MessageID string              `json:"messageId,omitempty"`
	Headers   map[string][]string `json:"headers,omitempty"`

	// SMTP-level addresses, which may differ from the visible headers
	EnvelopeSender    string `json:"envelopeSender,omitempty"`
	EnvelopeRecipient string `json:"envelopeRecipient,omitempty"`

	// Defects records malformed-but-parseable structural problems instead of
	// rejecting the message.
	Defects []string `json:"defects,omitempty"`
}

// InboundEvent wraps one received message for dispatch to the caller.
type InboundEvent struct {
	Timestamp time.Time    `json:"timestamp"`
	EventID   string       `json:"eventId,omitempty"`
	Message   *InboundMail `json:"message"`
	EspEvent  interface{}  `json:"espEvent,omitempty"`
}
