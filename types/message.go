package types

import "time"

// Message is the abstract outbound email model every ESP backend consumes.
// Zero/nil fields mean "not set by the caller": a backend must leave them out
// of the wire request entirely so ESP account defaults stay in effect.
type Message struct {
	From           EmailAddress   `json:"from"`
	To             []EmailAddress `json:"to"`
	Cc             []EmailAddress `json:"cc,omitempty"`
	Bcc            []EmailAddress `json:"bcc,omitempty"`
	ReplyTo        []EmailAddress `json:"replyTo,omitempty"`
	Subject        string         `json:"subject"`
	BodyText       string         `json:"bodyText,omitempty"`
	BodyHTML       string         `json:"bodyHtml,omitempty"`
	Alternatives   []*Alternative `json:"alternatives,omitempty"`
	Attachments    []*Attachment  `json:"attachments,omitempty"`
	ExtraHeaders   map[string]string `json:"extraHeaders,omitempty"`

	// EnvelopeSender overrides the SMTP-level return-path address.
	EnvelopeSender *EmailAddress `json:"envelopeSender,omitempty"`

	Metadata        map[string]interface{}            `json:"metadata,omitempty"`
	Tags            []string                          `json:"tags,omitempty"`
	TemplateID      string                            `json:"templateId,omitempty"`
	MergeData       map[string]map[string]interface{} `json:"mergeData,omitempty"`
	MergeGlobalData map[string]interface{}            `json:"mergeGlobalData,omitempty"`

	// nil means "use the ESP account default", not false
	TrackOpens  *bool      `json:"trackOpens,omitempty"`
	TrackClicks *bool      `json:"trackClicks,omitempty"`
	SendAt      *time.Time `json:"sendAt,omitempty"`

	// EspExtra is merged verbatim into the wire request (escape hatch).
	EspExtra map[string]interface{} `json:"espExtra,omitempty"`
}

// Alternative is an extra body part beside the plaintext body.
type Alternative struct {
	Content     string `json:"content"`
	ContentType string `json:"contentType"`
}

// Attachment is a regular or inline message part.
type Attachment struct {
	Filename    string `json:"filename,omitempty"`
	ContentType string `json:"contentType"`
	Content     []byte `json:"content"`
	Inline      bool   `json:"inline,omitempty"`
	ContentID   string `json:"contentId,omitempty"`
}

// AllRecipients returns to + cc + bcc in order. These are the addresses a send
// result must account for, one RecipientStatus each.
func (m *Message) AllRecipients() []EmailAddress {
	all := make([]EmailAddress, 0, len(m.To)+len(m.Cc)+len(m.Bcc))
	all = append(all, m.To...)
	all = append(all, m.Cc...)
	all = append(all, m.Bcc...)
	return all
}

// HeaderTo returns the caller-forced visible To header ("spoofed to"), if any.
// When set, the real delivery recipients must go only into the envelope and
// never leak into the visible header.
func (m *Message) HeaderTo() (string, bool) {
	if m.ExtraHeaders == nil {
		return "", false
	}
	v, ok := m.ExtraHeaders["To"]
	return v, ok
}
