package mailmime

import (
	"bytes"
	"net/mail"
	"strings"

	"github.com/jhillyerd/enmime"
	"github.com/mailbridge/go-mailbridge/types"
)

// Parse reads raw RFC 5322/MIME bytes into the structured inbound model.
// Structural defects that enmime can work around are recorded on the result
// instead of failing the parse; only an unreadable message returns an error.
func Parse(raw []byte) (*types.InboundMail, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	msg := &types.InboundMail{
		Subject:           env.GetHeader("Subject"),
		Text:              env.Text,
		HTML:              env.HTML,
		MessageID:         strings.Trim(env.GetHeader("Message-Id"), "<>"),
		InlineAttachments: map[string]*types.Attachment{},
	}

	if from := env.GetHeader("From"); from != "" {
		if email, aErr := types.ParseEmailAddress(from); aErr == nil {
			msg.FromEmail = &email
		} else {
			msg.Defects = append(msg.Defects, aErr.Error())
		}
	}
	msg.To = addressHeader(env, "To")
	msg.Cc = addressHeader(env, "Cc")

	if date := env.GetHeader("Date"); date != "" {
		if t, dErr := mail.ParseDate(date); dErr == nil {
			msg.Date = t.UTC()
		} else {
			msg.Defects = append(msg.Defects, "unparseable Date header: "+date)
		}
	}

	for _, part := range env.Attachments {
		msg.Attachments = append(msg.Attachments, partToAttachment(part, false))
	}
	for _, part := range env.Inlines {
		att := partToAttachment(part, true)
		if att.ContentID != "" {
			msg.InlineAttachments[att.ContentID] = att
		} else {
			// inline disposition without a Content-ID cannot be referenced
			// from the html body; expose it as a regular attachment
			msg.Attachments = append(msg.Attachments, att)
		}
	}
	for _, part := range env.OtherParts {
		msg.Attachments = append(msg.Attachments, partToAttachment(part, false))
	}

	if env.Root != nil {
		msg.Headers = map[string][]string(env.Root.Header)
	}
	for _, defect := range env.Errors {
		msg.Defects = append(msg.Defects, defect.Error())
	}

	return msg, nil
}

func addressHeader(env *enmime.Envelope, key string) []types.EmailAddress {
	if env.GetHeader(key) == "" {
		return nil
	}
	addrs, err := env.AddressList(key)
	if err != nil {
		return nil
	}
	emails := make([]types.EmailAddress, 0, len(addrs))
	for _, addr := range addrs {
		emails = append(emails, types.EmailAddress{DisplayName: addr.Name, AddrSpec: addr.Address})
	}
	return emails
}

func partToAttachment(part *enmime.Part, inline bool) *types.Attachment {
	return &types.Attachment{
		Filename:    part.FileName,
		ContentType: part.ContentType,
		Content:     part.Content,
		Inline:      inline,
		ContentID:   strings.Trim(part.ContentID, "<>"),
	}
}
