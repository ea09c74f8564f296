// Package mailmime assembles and parses RFC 5322/MIME messages for ESPs that
// exchange full raw messages (Amazon SES raw sending, inbound relays).
package mailmime

import (
	"bytes"
	"net/mail"
	"net/textproto"
	"strings"

	"github.com/google/uuid"
	"github.com/jhillyerd/enmime"
	"github.com/microcosm-cc/bluemonday"

	"github.com/mailbridge/go-mailbridge/types"
)

// BuildMessage renders the abstract message into raw MIME bytes. Part order is
// fixed: multipart/mixed > multipart/related > multipart/alternative for the
// text/html bodies, with attachments and inline images as sibling parts.
// extra headers are written after the message's own extra headers, so a
// builder can add wire-only headers (metadata/tag channels) without mutating
// the caller's message.
func BuildMessage(msg *types.Message, hostname string, extra textproto.MIMEHeader) ([]byte, error) {
	text := msg.BodyText
	if text == "" && msg.BodyHTML != "" {
		// derive a plaintext alternative so text-only clients see something
		text = htmlToText(msg.BodyHTML)
	}

	builder := enmime.Builder().
		From(msg.From.DisplayName, msg.From.AddrSpec).
		Subject(msg.Subject).
		ToAddrs(toMailAddrs(headerTo(msg))).
		Text([]byte(text))

	if msg.BodyHTML != "" {
		builder = builder.HTML([]byte(msg.BodyHTML))
	}
	if len(msg.Cc) > 0 {
		builder = builder.CCAddrs(toMailAddrs(msg.Cc))
	}
	if len(msg.ReplyTo) > 0 {
		builder = builder.ReplyToAddrs(toMailAddrs(msg.ReplyTo))
	}

	for _, att := range msg.Attachments {
		if att.Inline {
			cid := att.ContentID
			if cid == "" {
				// an inline part is unreachable from the html body without a cid
				cid = uuid.NewString()
			}
			builder = builder.AddInline(att.Content, att.ContentType, att.Filename, cid)
		} else {
			builder = builder.AddAttachment(att.Content, att.ContentType, att.Filename)
		}
	}

	hasMessageID := false
	for name, value := range msg.ExtraHeaders {
		if strings.EqualFold(name, "To") {
			// already applied as the visible To header above
			continue
		}
		if strings.EqualFold(name, "Message-Id") {
			hasMessageID = true
		}
		builder = builder.Header(name, value)
	}
	for name, values := range extra {
		for _, value := range values {
			builder = builder.Header(name, value)
		}
	}
	if !hasMessageID {
		id, err := GenerateMessageID(hostname)
		if err != nil {
			return nil, err
		}
		builder = builder.Header("Message-ID", id)
	}

	part, err := builder.Build()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := part.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// headerTo resolves the visible To header: the true recipients, unless the
// caller forced a "spoofed" To header. The real delivery list must then go
// only into the envelope, never into the visible header.
func headerTo(msg *types.Message) []types.EmailAddress {
	if spoofed, ok := msg.HeaderTo(); ok {
		if addrs, err := types.ParseEmailAddressList(spoofed); err == nil {
			return addrs
		}
	}
	return msg.To
}

func toMailAddrs(emails []types.EmailAddress) []mail.Address {
	addrs := make([]mail.Address, 0, len(emails))
	for _, e := range emails {
		addrs = append(addrs, e.MailAddress())
	}
	return addrs
}

func toMailAddrPtrs(addrs []mail.Address) []*mail.Address {
	ptrs := make([]*mail.Address, 0, len(addrs))
	for i := range addrs {
		ptrs = append(ptrs, &addrs[i])
	}
	return ptrs
}

func htmlToText(html string) string {
	p := bluemonday.NewPolicy()
	p.AllowStandardURLs()
	// Remove all tags to leave only text
	clean := p.Sanitize(html)
	clean = strings.ReplaceAll(clean, "\n", "")
	clean = strings.ReplaceAll(clean, "\t", " ")
	clean = strings.TrimSpace(clean)
	words := strings.Fields(clean)
	return strings.Join(words, " ")
}
