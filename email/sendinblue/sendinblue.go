package sendinblue

import (
	"encoding/json"
	"time"

	"github.com/mailbridge/go-mailbridge/email"
	"github.com/mailbridge/go-mailbridge/types"
)

const (
	espName     = "Sendinblue"
	HandlerName = "sendinblue"
)

// trackingPayload is the flat JSON object Sendinblue posts, one event per
// request. Sendinblue supplies the timestamp redundantly: ts and ts_event in
// whole seconds (server local time) and ts_epoch in UTC milliseconds.
type trackingPayload struct {
	Event        string   `json:"event"`
	Email        string   `json:"email"`
	MessageId    string   `json:"message-id"`
	Ts           int64    `json:"ts,omitempty"`
	TsEvent      int64    `json:"ts_event,omitempty"`
	TsEpoch      int64    `json:"ts_epoch,omitempty"`
	Date         string   `json:"date,omitempty"`
	Reason       string   `json:"reason,omitempty"`
	Link         string   `json:"link,omitempty"`
	Tag          string   `json:"tag,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	MailinCustom string   `json:"X-Mailin-custom,omitempty"`
}

type eventMapping struct {
	eventType    types.EventType
	rejectReason types.RejectReason
}

// eventTypes maps Sendinblue's transactional webhook event names. Mappings
// were established against observed webhook payloads; Sendinblue's own
// documentation of the event names is thin.
var eventTypes = map[string]eventMapping{
	"request":       {types.EventSent, ""},
	"delivered":     {types.EventDelivered, ""},
	"hard_bounce":   {types.EventBounced, types.RejectReasonBounced},
	"soft_bounce":   {types.EventBounced, types.RejectReasonBounced},
	"blocked":       {types.EventRejected, types.RejectReasonBlocked},
	"spam":          {types.EventComplained, types.RejectReasonSpam},
	"invalid_email": {types.EventBounced, types.RejectReasonInvalid},
	"deferred":      {types.EventDeferred, ""},
	"opened":        {types.EventOpened, ""},
	// Sendinblue fires unique_opened alongside opened on the first open.
	// Mapping it to opened would double-count, so it stays unknown.
	"unique_opened": {types.EventUnknown, ""},
	"click":         {types.EventClicked, ""},
	"unsubscribe":   {types.EventUnsubscribed, ""},
	"error":         {types.EventFailed, ""},
}

// TrackingWebhook normalizes Sendinblue transactional webhook posts.
type TrackingWebhook struct{}

func NewTrackingWebhook() *TrackingWebhook {
	return &TrackingWebhook{}
}

func (w *TrackingWebhook) Name() string {
	return HandlerName
}

func (w *TrackingWebhook) ReceiveTrackingEvents(req *email.WebhookRequest) ([]*types.TrackingEvent, error) {
	var payload trackingPayload
	if err := json.Unmarshal(req.Body, &payload); err != nil {
		return nil, &types.WebhookValidationError{ESP: espName, Reason: "malformed webhook body: " + err.Error()}
	}

	mapping, known := eventTypes[payload.Event]
	if !known {
		mapping = eventMapping{types.EventUnknown, ""}
	}

	event := &types.TrackingEvent{
		EventType:    mapping.eventType,
		RejectReason: mapping.rejectReason,
		Timestamp:    payload.timestamp(),
		MessageID:    payload.MessageId,
		Recipient:    payload.Email,
		MtaResponse:  payload.Reason,
		ClickURL:     payload.Link,
		Tags:         payload.tags(),
		Metadata:     payload.metadata(),
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(req.Body, &raw); err == nil {
		event.EspEvent = raw
	}
	return []*types.TrackingEvent{event}, nil
}

func (p *trackingPayload) timestamp() time.Time {
	if p.TsEpoch != 0 {
		return time.UnixMilli(p.TsEpoch).UTC()
	}
	seconds := p.TsEvent
	if seconds == 0 {
		seconds = p.Ts
	}
	if seconds == 0 {
		return time.Time{}
	}
	return time.Unix(seconds, 0).UTC()
}

func (p *trackingPayload) tags() []string {
	if len(p.Tags) > 0 {
		return p.Tags
	}
	if p.Tag != "" {
		return []string{p.Tag}
	}
	return nil
}

// metadata decodes the X-Mailin-custom header Sendinblue echoes back; senders
// using it for metadata put a JSON object there.
func (p *trackingPayload) metadata() map[string]interface{} {
	if p.MailinCustom == "" {
		return nil
	}
	var custom map[string]interface{}
	if err := json.Unmarshal([]byte(p.MailinCustom), &custom); err != nil {
		return nil
	}
	return custom
}
