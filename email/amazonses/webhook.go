package amazonses

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-resty/resty/v2"

	"github.com/mailbridge/go-mailbridge/email"
	"github.com/mailbridge/go-mailbridge/global"
	"github.com/mailbridge/go-mailbridge/types"
)

// confirmationSuccess is the informational notification SNS publishes after a
// subscription is confirmed. It is not a delivery event.
const confirmationSuccess = "Successfully validated SNS topic for Amazon SES event publishing."

// snsEnvelope is the SNS wrapper every SES notification arrives in.
type snsEnvelope struct {
	Type         string `json:"Type" validate:"required"`
	MessageId    string `json:"MessageId" validate:"required"`
	TopicArn     string `json:"TopicArn,omitempty"`
	Subject      string `json:"Subject,omitempty"`
	Message      string `json:"Message"`
	Timestamp    string `json:"Timestamp,omitempty"`
	Token        string `json:"Token,omitempty"`
	SubscribeURL string `json:"SubscribeURL,omitempty"`
}

// sesNotification is the SES payload inside the SNS Message string. Event
// publishing uses "eventType"; SNS notification configs use "notificationType".
type sesNotification struct {
	NotificationType string        `json:"notificationType,omitempty"`
	EventType        string        `json:"eventType,omitempty"`
	Mail             *sesMail      `json:"mail"`
	Bounce           *sesBounce    `json:"bounce,omitempty"`
	Complaint        *sesComplaint `json:"complaint,omitempty"`
	Delivery         *sesDelivery  `json:"delivery,omitempty"`
	Reject           *sesReject    `json:"reject,omitempty"`
	Open             *sesOpen      `json:"open,omitempty"`
	Click            *sesClick     `json:"click,omitempty"`
	Failure          *sesFailure   `json:"failure,omitempty"`
	Receipt          *sesReceipt   `json:"receipt,omitempty"`
	Content          string        `json:"content,omitempty"`

	raw map[string]interface{} `json:"-"`
}

type sesMail struct {
	Timestamp   string              `json:"timestamp"`
	Source      string              `json:"source"`
	MessageId   string              `json:"messageId"`
	Destination []string            `json:"destination"`
	Headers     []sesHeader         `json:"headers,omitempty"`
	Tags        map[string][]string `json:"tags,omitempty"`
}

type sesHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type sesBounce struct {
	BounceType        string                `json:"bounceType"`
	BounceSubType     string                `json:"bounceSubType,omitempty"`
	BouncedRecipients []sesBouncedRecipient `json:"bouncedRecipients"`
	Timestamp         string                `json:"timestamp,omitempty"`
	FeedbackId        string                `json:"feedbackId,omitempty"`
	ReportingMTA      string                `json:"reportingMTA,omitempty"`
}

type sesBouncedRecipient struct {
	EmailAddress   string `json:"emailAddress" validate:"required"`
	Status         string `json:"status,omitempty"`
	Action         string `json:"action,omitempty"`
	DiagnosticCode string `json:"diagnosticCode,omitempty"`
}

type sesComplaint struct {
	ComplainedRecipients  []sesComplainedRecipient `json:"complainedRecipients"`
	ComplaintFeedbackType string                   `json:"complaintFeedbackType,omitempty"`
	UserAgent             string                   `json:"userAgent,omitempty"`
	Timestamp             string                   `json:"timestamp,omitempty"`
	FeedbackId            string                   `json:"feedbackId,omitempty"`
}

type sesComplainedRecipient struct {
	EmailAddress string `json:"emailAddress" validate:"required"`
}

type sesDelivery struct {
	Timestamp    string   `json:"timestamp,omitempty"`
	Recipients   []string `json:"recipients"`
	SmtpResponse string   `json:"smtpResponse,omitempty"`
	ReportingMTA string   `json:"reportingMTA,omitempty"`
}

type sesReject struct {
	Reason string `json:"reason"`
}

type sesOpen struct {
	Timestamp string `json:"timestamp,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
	IpAddress string `json:"ipAddress,omitempty"`
}

type sesClick struct {
	Timestamp string `json:"timestamp,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
	Link      string `json:"link,omitempty"`
}

type sesFailure struct {
	TemplateName string `json:"templateName,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

type sesReceipt struct {
	Recipients []string   `json:"recipients"`
	Action     *sesAction `json:"action,omitempty"`
}

type sesAction struct {
	Type     string `json:"type"`
	TopicArn string `json:"topicArn,omitempty"`
	Encoding string `json:"encoding,omitempty"`
}

// snsWebhook is the shared SNS envelope handling (validation, subscription
// management) for both the tracking and the inbound webhook.
type snsWebhook struct {
	autoConfirm bool
	client      *resty.Client
	validate    *validator.Validate
}

func newSNSWebhook(cfg global.AmazonSESConfig) snsWebhook {
	return snsWebhook{
		autoConfirm: cfg.AutoConfirm(),
		client:      resty.New().SetTimeout(10 * time.Second),
		validate:    validator.New(),
	}
}

// validateRequest checks the SNS envelope's shape: the message type and id
// duplicated between header and body must match exactly, and the type must be
// one of the documented SNS message categories.
func (w *snsWebhook) validateRequest(req *email.WebhookRequest) (*snsEnvelope, error) {
	var sns snsEnvelope
	if err := json.Unmarshal(req.Body, &sns); err != nil {
		return nil, validationError("malformed SNS message body: %s", err.Error())
	}
	if err := w.validate.Struct(&sns); err != nil {
		return nil, validationError("incomplete SNS message: %s", err.Error())
	}

	headerType := req.Header.Get("X-Amz-Sns-Message-Type")
	if headerType != sns.Type {
		return nil, validationError("SNS header x-amz-sns-message-type %q doesn't match body Type %q", headerType, sns.Type)
	}
	switch sns.Type {
	case "Notification", "SubscriptionConfirmation", "UnsubscribeConfirmation":
	default:
		return nil, validationError("unknown SNS message type %q", sns.Type)
	}
	headerId := req.Header.Get("X-Amz-Sns-Message-Id")
	if headerId != sns.MessageId {
		return nil, validationError("SNS header x-amz-sns-message-id %q doesn't match body MessageId %q", headerId, sns.MessageId)
	}
	return &sns, nil
}

// confirmSubscription automatically accepts an SNS topic subscription, but
// only when the request proved it was meant for us via the webhook shared
// secret. Without that proof anyone could point their own SNS topic at a
// publicly reachable endpoint and have us subscribe to it, so the request is
// rejected and the manual confirmation token surfaced to the operator
// instead. (A valid Amazon signature would not help here: a hijacker's
// SubscriptionConfirmation is signed by Amazon too.)
func (w *snsWebhook) confirmSubscription(sns *snsEnvelope, req *email.WebhookRequest) error {
	if !w.autoConfirm {
		return nil
	}
	if !req.AuthValid {
		return validationError(
			"unexpected SubscriptionConfirmation for Amazon SNS topic %q; set a webhook shared secret to enable "+
				"automatic confirmation, or confirm manually in the SNS dashboard with token %q",
			sns.TopicArn, sns.Token)
	}
	resp, err := w.client.R().Get(sns.SubscribeURL)
	if err != nil {
		return validationError("error confirming subscription to Amazon SNS topic %q: %s", sns.TopicArn, err.Error())
	}
	if resp.IsError() {
		return validationError("received %d trying to confirm subscription to Amazon SNS topic %q: %s",
			resp.StatusCode(), sns.TopicArn, resp.String())
	}
	return nil
}

// parseNotification recovers the SES payload from the SNS Message string.
// A nil, nil return means the notification is informational and carries no
// events (post-confirmation success message).
func (w *snsWebhook) parseNotification(sns *snsEnvelope) (*sesNotification, error) {
	var event sesNotification
	if err := json.Unmarshal([]byte(sns.Message), &event); err != nil {
		if strings.TrimSpace(sns.Message) == confirmationSuccess {
			return nil, nil
		}
		return nil, validationError("unparseable SNS Message %q", sns.Message)
	}
	// keep the raw payload for TrackingEvent.EspEvent
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(sns.Message), &raw); err == nil {
		event.raw = raw
	}
	return &event, nil
}

// TrackingWebhook normalizes SES delivery-event notifications (SNS wrapped).
type TrackingWebhook struct {
	snsWebhook
}

func NewTrackingWebhook(cfg global.AmazonSESConfig) *TrackingWebhook {
	return &TrackingWebhook{snsWebhook: newSNSWebhook(cfg)}
}

func (w *TrackingWebhook) Name() string {
	return HandlerName
}

func (w *TrackingWebhook) ReceiveTrackingEvents(req *email.WebhookRequest) ([]*types.TrackingEvent, error) {
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
		return sesToTrackingEvents(event, sns), nil
	case "SubscriptionConfirmation":
		return nil, w.confirmSubscription(sns, req)
	default:
		// UnsubscribeConfirmation: deliberately not re-fetched (that would
		// re-enable the subscription); nothing to report
		return nil, nil
	}
}

// eventTypes is the fixed mapping from SES notification names to the uniform
// event type.
var eventTypes = map[string]types.EventType{
	"Bounce":            types.EventBounced,
	"Complaint":         types.EventComplained,
	"Delivery":          types.EventDelivered,
	"DeliveryDelay":     types.EventDeferred,
	"Send":              types.EventSent,
	"Reject":            types.EventRejected,
	"Open":              types.EventOpened,
	"Click":             types.EventClicked,
	"Rendering Failure": types.EventFailed,
}

// bounceDescriptions are Amazon's explanations of bounceType/bounceSubType,
// from the SES notification-contents documentation.
var bounceDescriptions = map[string]string{
	"Undetermined/Undetermined":   "Amazon SES was unable to determine a specific bounce reason.",
	"Permanent/General":           "The server was unable to deliver your message (ex: unknown user, mailbox not found).",
	"Permanent/NoEmail":           "It was not possible to retrieve the recipient email address from the bounce message.",
	"Permanent/Suppressed":        "The recipient's email address is on the suppression list because it has a recent history of bouncing as an invalid address.",
	"Transient/General":           "The recipient's email provider sent a general bounce message.",
	"Transient/MailboxFull":       "The recipient's email provider sent a bounce message because the recipient's inbox was full.",
	"Transient/MessageTooLarge":   "The recipient's email provider sent a bounce message because message you sent was too large.",
	"Transient/ContentRejected":   "The recipient's email provider sent a bounce message because the message you sent contains content that the provider doesn't allow.",
	"Transient/AttachmentRejected": "The recipient's email provider sent a bounce message because the message contained an unacceptable attachment.",
}

func sesToTrackingEvents(event *sesNotification, sns *snsEnvelope) []*types.TrackingEvent {
	typeName := event.EventType
	if typeName == "" {
		typeName = event.NotificationType
	}
	eventType, known := eventTypes[typeName]
	if !known {
		eventType = types.EventUnknown
	}

	base := types.TrackingEvent{
		EventType: eventType,
		EventID:   sns.MessageId,
		Timestamp: parseSESTimestamp(sns.Timestamp),
	}
	if event.Mail != nil {
		base.MessageID = event.Mail.MessageId
		if ts := parseSESTimestamp(event.Mail.Timestamp); !ts.IsZero() {
			base.Timestamp = ts
		}
		base.Tags, base.Metadata = tagsAndMetadata(event.Mail)
	}
	base.EspEvent = event.raw

	destination := []string{}
	if event.Mail != nil {
		destination = event.Mail.Destination
	}

	var events []*types.TrackingEvent
	add := func(recipient string, mutate func(ev *types.TrackingEvent)) {
		ev := base
		ev.Recipient = recipient
		if mutate != nil {
			mutate(&ev)
		}
		events = append(events, &ev)
	}

	switch typeName {
	case "Bounce":
		if event.Bounce == nil {
			return nil
		}
		description := bounceDescriptions[event.Bounce.BounceType+"/"+event.Bounce.BounceSubType]
		timestamp := parseSESTimestamp(event.Bounce.Timestamp)
		for _, recipient := range event.Bounce.BouncedRecipients {
			diagnostic := recipient.DiagnosticCode
			add(recipient.EmailAddress, func(ev *types.TrackingEvent) {
				ev.RejectReason = types.RejectReasonBounced
				ev.Description = description
				ev.MtaResponse = diagnostic
				if !timestamp.IsZero() {
					ev.Timestamp = timestamp
				}
			})
		}
	case "Complaint":
		if event.Complaint == nil {
			return nil
		}
		timestamp := parseSESTimestamp(event.Complaint.Timestamp)
		for _, recipient := range event.Complaint.ComplainedRecipients {
			add(recipient.EmailAddress, func(ev *types.TrackingEvent) {
				ev.RejectReason = types.RejectReasonSpam
				ev.Description = event.Complaint.ComplaintFeedbackType
				ev.UserAgent = event.Complaint.UserAgent
				if !timestamp.IsZero() {
					ev.Timestamp = timestamp
				}
			})
		}
	case "Delivery":
		if event.Delivery == nil {
			return nil
		}
		timestamp := parseSESTimestamp(event.Delivery.Timestamp)
		for _, recipient := range event.Delivery.Recipients {
			add(recipient, func(ev *types.TrackingEvent) {
				ev.MtaResponse = event.Delivery.SmtpResponse
				if !timestamp.IsZero() {
					ev.Timestamp = timestamp
				}
			})
		}
	case "Reject":
		for _, recipient := range destination {
			add(recipient, func(ev *types.TrackingEvent) {
				ev.RejectReason = types.RejectReasonBlocked
				if event.Reject != nil {
					ev.Description = event.Reject.Reason
				}
			})
		}
	case "Open":
		for _, recipient := range destination {
			add(recipient, func(ev *types.TrackingEvent) {
				if event.Open != nil {
					ev.UserAgent = event.Open.UserAgent
					if ts := parseSESTimestamp(event.Open.Timestamp); !ts.IsZero() {
						ev.Timestamp = ts
					}
				}
			})
		}
	case "Click":
		for _, recipient := range destination {
			add(recipient, func(ev *types.TrackingEvent) {
				if event.Click != nil {
					ev.UserAgent = event.Click.UserAgent
					ev.ClickURL = event.Click.Link
					if ts := parseSESTimestamp(event.Click.Timestamp); !ts.IsZero() {
						ev.Timestamp = ts
					}
				}
			})
		}
	case "Rendering Failure":
		for _, recipient := range destination {
			add(recipient, func(ev *types.TrackingEvent) {
				if event.Failure != nil {
					ev.Description = event.Failure.ErrorMessage
				}
			})
		}
	default:
		// Send, DeliveryDelay and anything unrecognized: one event per
		// destination with no extra detail
		for _, recipient := range destination {
			add(recipient, nil)
		}
	}
	return events
}

// tagsAndMetadata recovers the caller's tags and metadata from both delivery
// channels: the custom X-Tag / X-Metadata-* headers carry the uncleaned
// originals, the SES message tags only the cleaned renditions, so headers win
// when present.
func tagsAndMetadata(mailInfo *sesMail) ([]string, map[string]interface{}) {
	var tags []string
	metadata := map[string]interface{}{}

	for _, header := range mailInfo.Headers {
		if strings.EqualFold(header.Name, "X-Tag") {
			tags = append(tags, header.Value)
		} else if len(header.Name) > len("X-Metadata-") && strings.EqualFold(header.Name[:len("X-Metadata-")], "X-Metadata-") {
			metadata[header.Name[len("X-Metadata-"):]] = header.Value
		}
	}
	if tags != nil || len(metadata) > 0 {
		if len(metadata) == 0 {
			metadata = nil
		}
		return tags, metadata
	}

	// fall back to the cleaned SES tag channel
	numbered := map[int]string{}
	for name, values := range mailInfo.Tags {
		if len(values) == 0 || strings.HasPrefix(name, "ses:") {
			continue
		}
		if n, ok := tagIndex(name); ok {
			numbered[n] = values[0]
		} else {
			metadata[name] = values[0]
		}
	}
	if len(numbered) > 0 {
		indexes := make([]int, 0, len(numbered))
		for n := range numbered {
			indexes = append(indexes, n)
		}
		sort.Ints(indexes)
		for _, n := range indexes {
			tags = append(tags, numbered[n])
		}
	}
	if len(metadata) == 0 {
		metadata = nil
	}
	return tags, metadata
}

func tagIndex(name string) (int, bool) {
	if !strings.HasPrefix(name, "Tag") {
		return 0, false
	}
	n, err := strconv.Atoi(name[len("Tag"):])
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseSESTimestamp(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func validationError(format string, args ...interface{}) error {
	return &types.WebhookValidationError{ESP: espName, Reason: fmt.Sprintf(format, args...)}
}
