package amazonses

import (
	"fmt"
	"net/textproto"
	"strings"
	"unicode"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"

	mailmime "github.com/mailbridge/go-mailbridge/email/mime"
	"github.com/mailbridge/go-mailbridge/types"
)

// Payload accumulates the SendRawEmail wire state for one send. Fields the
// caller never set stay absent from the request so SES account defaults
// remain in effect.
type Payload struct {
	msg      types.Message
	hostname string

	source        *string
	destinations  []string
	tags          []sestypes.MessageTag
	configSetName *string
	fromArn       *string
	sourceArn     *string
	returnPathArn *string

	// wire-only headers (metadata/tag custom-header channel)
	extraHeaders textproto.MIMEHeader

	allRecipients []types.EmailAddress
}

// BuildPayload walks the message's supplied fields into SES wire state.
// Fields SES has no equivalent for fail with UnsupportedFeatureError before
// any API call is made.
func BuildPayload(msg *types.Message, hostname string) (*Payload, error) {
	p := &Payload{
		msg:          *msg,
		hostname:     hostname,
		extraHeaders: textproto.MIMEHeader{},
	}

	if msg.SendAt != nil {
		return nil, unsupported("send_at")
	}
	if msg.TrackOpens != nil {
		return nil, unsupported("track_opens")
	}
	if msg.TrackClicks != nil {
		return nil, unsupported("track_clicks")
	}
	if msg.TemplateID != "" {
		// templated sends use a separate API contract (SendTemplatedEmail)
		// incompatible with raw MIME building
		return nil, unsupported("template_id")
	}
	if msg.MergeData != nil {
		return nil, unsupported("merge_data without template_id")
	}
	if msg.MergeGlobalData != nil {
		return nil, unsupported("merge_global_data without template_id")
	}

	for _, alt := range msg.Alternatives {
		if strings.EqualFold(alt.ContentType, "text/html") && p.msg.BodyHTML == "" {
			p.msg.BodyHTML = alt.Content
			continue
		}
		return nil, unsupported(fmt.Sprintf("alternative part of type %q", alt.ContentType))
	}

	p.allRecipients = msg.AllRecipients()
	for _, recipient := range p.allRecipients {
		if _, err := recipient.ASCIIAddrSpec(); err != nil {
			return nil, tagESP(err)
		}
	}

	if msg.EnvelopeSender != nil {
		spec, err := msg.EnvelopeSender.ASCIIAddrSpec()
		if err != nil {
			return nil, tagESP(err)
		}
		p.source = aws.String(spec)
	}

	_, spoofed := msg.HeaderTo()
	if spoofed || len(msg.Bcc) > 0 {
		// the delivery list diverges from the visible headers (a forced To
		// header, or bcc recipients that never appear in the raw message), so
		// recipients must be passed explicitly
		specs, err := asciiSpecs(p.allRecipients)
		if err != nil {
			return nil, err
		}
		p.destinations = specs
	}

	if msg.Metadata != nil {
		p.setMetadata(msg.Metadata)
	}
	if msg.Tags != nil {
		p.setTags(msg.Tags)
	}
	if msg.EspExtra != nil {
		if err := p.setEspExtra(msg.EspExtra); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// setMetadata populates both channels: SES message tags for analytics event
// streams (values cleaned to the restricted tag charset) and custom headers
// visible in the raw message for inbound relays.
func (p *Payload) setMetadata(metadata map[string]interface{}) {
	for key, value := range metadata {
		str := fmt.Sprintf("%v", value)
		p.tags = append(p.tags, sestypes.MessageTag{
			Name:  aws.String(CleanTag(key)),
			Value: aws.String(CleanTag(str)),
		})
		p.extraHeaders.Add("X-Metadata-"+key, str)
	}
}

// setTags maps each tag to an SES message tag named TagN plus an X-Tag header
// carrying the uncleaned original.
func (p *Payload) setTags(tags []string) {
	for n, tag := range tags {
		p.tags = append(p.tags, sestypes.MessageTag{
			Name:  aws.String(fmt.Sprintf("Tag%d", n)),
			Value: aws.String(CleanTag(tag)),
		})
		p.extraHeaders.Add("X-Tag", tag)
	}
}

// setEspExtra merges the escape-hatch params into the typed request. Unknown
// keys are rejected rather than silently dropped.
func (p *Payload) setEspExtra(extra map[string]interface{}) error {
	for key, value := range extra {
		str, isString := value.(string)
		switch key {
		case "ConfigurationSetName", "FromArn", "SourceArn", "ReturnPathArn", "Source":
			if !isString {
				return unsupported(fmt.Sprintf("non-string esp_extra[%q]", key))
			}
		}
		switch key {
		case "ConfigurationSetName":
			p.configSetName = aws.String(str)
		case "FromArn":
			p.fromArn = aws.String(str)
		case "SourceArn":
			p.sourceArn = aws.String(str)
		case "ReturnPathArn":
			p.returnPathArn = aws.String(str)
		case "Source":
			p.source = aws.String(str)
		default:
			return unsupported(fmt.Sprintf("esp_extra[%q]", key))
		}
	}
	return nil
}

// APIParams serializes the payload into the SendRawEmail request.
func (p *Payload) APIParams() (*ses.SendRawEmailInput, error) {
	raw, err := mailmime.BuildMessage(&p.msg, p.hostname, p.extraHeaders)
	if err != nil {
		return nil, err
	}
	input := &ses.SendRawEmailInput{
		RawMessage: &sestypes.RawMessage{Data: raw},
	}
	// only explicitly built params go on the wire; SES derives the rest from
	// the raw message headers
	input.Source = p.source
	input.Destinations = p.destinations
	input.Tags = p.tags
	input.ConfigurationSetName = p.configSetName
	input.FromArn = p.fromArn
	input.SourceArn = p.sourceArn
	input.ReturnPathArn = p.returnPathArn
	return input, nil
}

// CleanTag maps a value into the restricted SES tag charset (ASCII letters,
// digits, underscore, hyphen). Runs of whitespace collapse to a single "_",
// runs of any other disallowed character collapse to a single "-". The
// transform is deterministic and idempotent, but not reversible.
func CleanTag(value string) string {
	var b strings.Builder
	runes := []rune(value)
	for i := 0; i < len(runes); {
		switch r := runes[i]; {
		case isTagRune(r):
			b.WriteRune(r)
			i++
		case unicode.IsSpace(r):
			b.WriteByte('_')
			for i < len(runes) && unicode.IsSpace(runes[i]) {
				i++
			}
		default:
			b.WriteByte('-')
			for i < len(runes) && !isTagRune(runes[i]) && !unicode.IsSpace(runes[i]) {
				i++
			}
		}
	}
	return b.String()
}

func isTagRune(r rune) bool {
	return r == '_' || r == '-' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func asciiSpecs(emails []types.EmailAddress) ([]string, error) {
	specs := make([]string, 0, len(emails))
	for _, e := range emails {
		spec, err := e.ASCIIAddrSpec()
		if err != nil {
			return nil, tagESP(err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func unsupported(feature string) error {
	return &types.UnsupportedFeatureError{ESP: espName, Feature: feature}
}

func tagESP(err error) error {
	if uf, ok := err.(*types.UnsupportedFeatureError); ok && uf.ESP == "" {
		return &types.UnsupportedFeatureError{ESP: espName, Feature: uf.Feature}
	}
	return err
}
