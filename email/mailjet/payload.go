package mailjet

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/mailbridge/go-mailbridge/types"
	"github.com/mailbridge/go-mailbridge/util"
)

// mailjetEmail is the {"Email": ..., "Name": ...} shape the v3.1 Send API
// uses everywhere an address appears.
type mailjetEmail struct {
	Email string `json:"Email"`
	Name  string `json:"Name,omitempty"`
}

func toMailjetEmail(addr types.EmailAddress) mailjetEmail {
	return mailjetEmail{Email: addr.AddrSpec, Name: addr.DisplayName}
}

func toMailjetEmails(addrs []types.EmailAddress) []mailjetEmail {
	if len(addrs) == 0 {
		return nil
	}
	out := make([]mailjetEmail, len(addrs))
	for i, addr := range addrs {
		out[i] = toMailjetEmail(addr)
	}
	return out
}

type mailjetAttachment struct {
	ContentType   string `json:"ContentType"`
	Filename      string `json:"Filename"`
	Base64Content string `json:"Base64Content"`
	ContentID     string `json:"ContentID,omitempty"`
}

// Payload accumulates one message in Mailjet's v3.1 Send shape. It is built
// as a single message dict, then serialized as {"Messages": [...]}, expanding
// per-recipient when batch merge data requires one message per recipient.
type Payload struct {
	message map[string]interface{}
	headers map[string]string

	to        []types.EmailAddress
	mergeData map[string]map[string]interface{}
	sandbox   bool
}

// BuildPayload walks every message field exactly once and either serializes
// it into Mailjet parameters or returns UnsupportedFeatureError naming the
// field. Nothing is sent from here.
func BuildPayload(msg *types.Message) (*Payload, error) {
	p := &Payload{
		message: map[string]interface{}{},
		headers: map[string]string{},
	}

	if !msg.From.IsZero() {
		p.message["From"] = toMailjetEmail(msg.From)
	}
	p.to = msg.To
	if len(msg.To) > 0 {
		p.message["To"] = toMailjetEmails(msg.To)
	}
	if len(msg.Cc) > 0 {
		p.message["Cc"] = toMailjetEmails(msg.Cc)
	}
	if len(msg.Bcc) > 0 {
		p.message["Bcc"] = toMailjetEmails(msg.Bcc)
	}
	if err := p.setReplyTo(msg.ReplyTo); err != nil {
		return nil, err
	}
	if msg.Subject != "" {
		p.message["Subject"] = msg.Subject
	}
	if msg.BodyText != "" {
		p.message["TextPart"] = msg.BodyText
	}
	if msg.BodyHTML != "" {
		p.message["HTMLPart"] = msg.BodyHTML
	}
	for _, alt := range msg.Alternatives {
		if alt.ContentType == "text/html" {
			if _, exists := p.message["HTMLPart"]; exists {
				return nil, unsupported("multiple html parts")
			}
			p.message["HTMLPart"] = alt.Content
		} else {
			return nil, unsupported(fmt.Sprintf("alternative part of type %q", alt.ContentType))
		}
	}
	if err := p.setAttachments(msg.Attachments); err != nil {
		return nil, err
	}
	for name, value := range msg.ExtraHeaders {
		if strings.EqualFold(name, "Reply-To") {
			// Reply-To must travel in its own param, not in Headers
			addrs, aErr := types.ParseEmailAddressList(value)
			if aErr != nil {
				return nil, aErr
			}
			if err := p.setReplyTo(addrs); err != nil {
				return nil, err
			}
			continue
		}
		p.headers[name] = value
	}
	if msg.EnvelopeSender != nil {
		p.message["Sender"] = msg.EnvelopeSender.AddrSpec
	}
	if len(msg.Metadata) > 0 {
		payload, err := util.MarshalJSONString(msg.Metadata)
		if err != nil {
			return nil, err
		}
		p.message["EventPayload"] = payload
	}
	if err := p.setTags(msg.Tags); err != nil {
		return nil, err
	}
	if msg.TrackOpens != nil {
		p.message["TrackOpens"] = trackingValue(*msg.TrackOpens)
	}
	if msg.TrackClicks != nil {
		p.message["TrackClicks"] = trackingValue(*msg.TrackClicks)
	}
	if msg.SendAt != nil {
		return nil, unsupported("send_at")
	}
	if msg.TemplateID != "" {
		templateID, err := strconv.Atoi(msg.TemplateID)
		if err != nil {
			return nil, unsupported(fmt.Sprintf("non-numeric template_id %q", msg.TemplateID))
		}
		p.message["TemplateID"] = templateID
		p.message["TemplateLanguage"] = true
	}
	p.mergeData = msg.MergeData
	if len(msg.MergeGlobalData) > 0 {
		p.message["Variables"] = stripNone(msg.MergeGlobalData)
	}
	for key, value := range msg.EspExtra {
		if key == "SandboxMode" {
			enabled, ok := value.(bool)
			if !ok {
				return nil, unsupported("non-boolean esp_extra[\"SandboxMode\"]")
			}
			p.sandbox = enabled
			continue
		}
		p.message[key] = value
	}
	return p, nil
}

func (p *Payload) setReplyTo(replyTo []types.EmailAddress) error {
	if len(replyTo) == 0 {
		return nil
	}
	if len(replyTo) > 1 {
		return unsupported("multiple reply_to addresses")
	}
	p.message["ReplyTo"] = toMailjetEmail(replyTo[0])
	return nil
}

func (p *Payload) setAttachments(attachments []*types.Attachment) error {
	var ordinary []mailjetAttachment
	var inlined []mailjetAttachment
	for _, att := range attachments {
		encoded := mailjetAttachment{
			ContentType:   att.ContentType,
			Filename:      att.Filename,
			Base64Content: base64.StdEncoding.EncodeToString(att.Content),
		}
		if att.Inline {
			encoded.ContentID = att.ContentID
			inlined = append(inlined, encoded)
		} else {
			ordinary = append(ordinary, encoded)
		}
	}
	if ordinary != nil {
		p.message["Attachments"] = ordinary
	}
	if inlined != nil {
		p.message["InlinedAttachments"] = inlined
	}
	return nil
}

// setTags maps the first tag onto Mailjet's campaign concept. Mailjet has no
// multi-tag equivalent.
func (p *Payload) setTags(tags []string) error {
	if len(tags) == 0 {
		return nil
	}
	if len(tags) > 1 {
		return unsupported("multiple tags")
	}
	p.message["CustomCampaign"] = tags[0]
	return nil
}

func trackingValue(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

// Serialize produces the v3.1 request body. With per-recipient merge data the
// message is expanded into one Messages entry per To address, each carrying a
// deep copy of the variables so one recipient's values never leak into
// another's.
func (p *Payload) Serialize() (map[string]interface{}, error) {
	message := map[string]interface{}{}
	for key, value := range p.message {
		message[key] = value
	}
	if len(p.headers) > 0 {
		message["Headers"] = p.headers
	}

	var messages []map[string]interface{}
	if len(p.mergeData) > 0 {
		expanded, err := p.expandMergeData(message)
		if err != nil {
			return nil, err
		}
		messages = expanded
	} else {
		messages = []map[string]interface{}{message}
	}

	body := map[string]interface{}{"Messages": messages}
	if p.sandbox {
		body["SandboxMode"] = true
	}
	return body, nil
}

// expandMergeData splits a batch send into one message per To recipient.
// Cc and Bcc stay on every split message, matching Mailjet's own batch
// semantics (each copy goes to one To address plus all Cc/Bcc).
func (p *Payload) expandMergeData(message map[string]interface{}) ([]map[string]interface{}, error) {
	globals, _ := message["Variables"].(map[string]interface{})
	messages := make([]map[string]interface{}, 0, len(p.to))
	for _, recipient := range p.to {
		split := map[string]interface{}{}
		for key, value := range message {
			split[key] = value
		}
		split["To"] = []mailjetEmail{toMailjetEmail(recipient)}

		variables := map[string]interface{}{}
		if globals != nil {
			copied, err := util.DeepCopyMap(globals)
			if err != nil {
				return nil, err
			}
			variables = copied
		}
		if recipientData, exists := p.mergeData[recipient.AddrSpec]; exists {
			copied, err := util.DeepCopyMap(recipientData)
			if err != nil {
				return nil, err
			}
			for key, value := range copied {
				variables[key] = value
			}
		}
		variables = stripNone(variables)
		if len(variables) > 0 {
			split["Variables"] = variables
		} else {
			delete(split, "Variables")
		}
		messages = append(messages, split)
	}
	return messages, nil
}

// stripNone drops nil-valued variables. Mailjet accepts a null
// personalization variable, reports success with a MessageHref, and then
// never delivers the message.
func stripNone(variables map[string]interface{}) map[string]interface{} {
	cleaned := make(map[string]interface{}, len(variables))
	for key, value := range variables {
		if value != nil {
			cleaned[key] = value
		}
	}
	return cleaned
}

func unsupported(feature string) error {
	return &types.UnsupportedFeatureError{ESP: espName, Feature: feature}
}
