package amazonses

import (
	"encoding/base64"

	"github.com/mailbridge/go-mailbridge/email"
	mailmime "github.com/mailbridge/go-mailbridge/email/mime"
	"github.com/mailbridge/go-mailbridge/global"
	"github.com/mailbridge/go-mailbridge/types"
)

// InboundWebhook normalizes SES "Received" notifications into parsed inbound
// messages. The SES receipt rule must use an SNS action so the raw MIME
// content travels inline in the notification.
type InboundWebhook struct {
	snsWebhook
}

func NewInboundWebhook(cfg global.AmazonSESConfig) *InboundWebhook {
	return &InboundWebhook{snsWebhook: newSNSWebhook(cfg)}
}

func (w *InboundWebhook) Name() string {
	return HandlerName
}

func (w *InboundWebhook) ReceiveInboundEvents(req *email.WebhookRequest) ([]*types.InboundEvent, error) {
	sns, err := w.validateRequest(req)
	if err != nil {
		return nil, err
	}
	switch sns.Type {
	case "Notification":
		event, pErr := w.parseNotification(sns)
		if pErr != nil || event == nil {
			return nil, pErr
		}
		return w.sesToInboundEvents(event, sns)
	case "SubscriptionConfirmation":
		return nil, w.confirmSubscription(sns, req)
	default:
		return nil, nil
	}
}

func (w *InboundWebhook) sesToInboundEvents(event *sesNotification, sns *snsEnvelope) ([]*types.InboundEvent, error) {
	if event.NotificationType != "Received" {
		// delivery events routed to the inbound endpoint are silently dropped
		return nil, nil
	}
	if event.Content == "" {
		actionType := ""
		if event.Receipt != nil && event.Receipt.Action != nil {
			actionType = event.Receipt.Action.Type
		}
		return nil, validationError(
			"Received notification without message content (receipt action type %q); inbound receiving requires an SNS receipt action", actionType)
	}

	raw := []byte(event.Content)
	if event.Receipt != nil && event.Receipt.Action != nil && event.Receipt.Action.Encoding == "BASE64" {
		decoded, err := base64.StdEncoding.DecodeString(event.Content)
		if err != nil {
			return nil, validationError("undecodable base64 content in Received notification: %s", err.Error())
		}
		raw = decoded
	}

	message, err := mailmime.Parse(raw)
	if err != nil {
		return nil, validationError("unparseable message content in Received notification: %s", err.Error())
	}
	if event.Mail != nil {
		message.EnvelopeSender = event.Mail.Source
	}
	if event.Receipt != nil && len(event.Receipt.Recipients) > 0 {
		message.EnvelopeRecipient = event.Receipt.Recipients[0]
	}

	inbound := &types.InboundEvent{
		Timestamp: parseSESTimestamp(sns.Timestamp),
		EventID:   sns.MessageId,
		Message:   message,
		EspEvent:  event.raw,
	}
	if event.Mail != nil {
		if ts := parseSESTimestamp(event.Mail.Timestamp); !ts.IsZero() {
			inbound.Timestamp = ts
		}
	}
	return []*types.InboundEvent{inbound}, nil
}
