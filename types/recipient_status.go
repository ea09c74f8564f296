package types

// SendStatus is the uniform per-recipient delivery status of a send attempt.
type SendStatus string

const (
	SendStatusQueued    SendStatus = "queued"
	SendStatusSent      SendStatus = "sent"
	SendStatusDelivered SendStatus = "delivered"
	SendStatusFailed    SendStatus = "failed"
	SendStatusRejected  SendStatus = "rejected"
	SendStatusUnknown   SendStatus = "unknown"
)

// RecipientStatus is the parsed send result for one addressed recipient.
// MessageID is the ESP-assigned identifier, empty when the ESP reported none.
type RecipientStatus struct {
	MessageID string     `json:"messageId,omitempty"`
	Status    SendStatus `json:"status"`
}

// SendResult maps every addressed recipient's addr-spec to its status.
// Recipients the ESP reported neither success nor failure for are defaulted
// to failed by the response interpreter, never left out.
type SendResult map[string]RecipientStatus
