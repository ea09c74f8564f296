package mailmime

import (
	"net/textproto"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mailbridge/go-mailbridge/types"
)

const testHostname = "example.com"

func buildMessage() *types.Message {
	return &types.Message{
		From:     types.EmailAddress{DisplayName: "Sender", AddrSpec: "sender@example.com"},
		To:       []types.EmailAddress{{AddrSpec: "to@example.com"}},
		Subject:  "Testing",
		BodyText: "Hello from the test suite.",
	}
}

func buildAndParse(t *testing.T, msg *types.Message, extra textproto.MIMEHeader) *types.InboundMail {
	t.Helper()
	raw, err := BuildMessage(msg, testHostname, extra)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	parsed, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse of built message failed: %v", err)
	}
	return parsed
}

func TestBuildMultipartStructure(t *testing.T) {
	msg := buildMessage()
	msg.Cc = []types.EmailAddress{{DisplayName: "Carbon Copy", AddrSpec: "cc@example.com"}}
	msg.BodyHTML = `<p>Hello from the <b>test suite</b>.</p>`
	msg.Attachments = []*types.Attachment{
		{
			Filename:    "report.txt",
			ContentType: "text/plain",
			Content:     []byte("attached text"),
		},
		{
			Filename:    "logo.png",
			ContentType: "image/png",
			Content:     []byte{0x89, 'P', 'N', 'G'},
			Inline:      true,
			ContentID:   "logo-cid",
		},
	}

	parsed := buildAndParse(t, msg, nil)

	assert.Equal(t, "Testing", parsed.Subject)
	assert.Equal(t, "sender@example.com", parsed.FromEmail.AddrSpec)
	assert.Equal(t, "Sender", parsed.FromEmail.DisplayName)
	if assert.Len(t, parsed.To, 1) {
		assert.Equal(t, "to@example.com", parsed.To[0].AddrSpec)
	}
	if assert.Len(t, parsed.Cc, 1) {
		assert.Equal(t, "cc@example.com", parsed.Cc[0].AddrSpec)
	}
	assert.Contains(t, parsed.Text, "Hello from the test suite.")
	assert.Contains(t, parsed.HTML, "<b>test suite</b>")

	if assert.Len(t, parsed.Attachments, 1) {
		assert.Equal(t, "report.txt", parsed.Attachments[0].Filename)
		assert.Equal(t, []byte("attached text"), parsed.Attachments[0].Content)
	}
	inline, ok := parsed.InlineAttachments["logo-cid"]
	if !ok {
		t.Fatalf("inline attachment missing, got %v", parsed.InlineAttachments)
	}
	assert.Equal(t, "logo.png", inline.Filename)
	assert.True(t, inline.Inline)
}

func TestBuildReplyTo(t *testing.T) {
	msg := buildMessage()
	msg.ReplyTo = []types.EmailAddress{{AddrSpec: "replies@example.com"}}

	parsed := buildAndParse(t, msg, nil)

	values := parsed.Headers["Reply-To"]
	if len(values) == 0 {
		t.Fatal("Reply-To header missing")
	}
	assert.Contains(t, values[0], "replies@example.com")
}

func TestBuildGeneratesMessageID(t *testing.T) {
	parsed := buildAndParse(t, buildMessage(), nil)

	if parsed.MessageID == "" {
		t.Fatal("expected a generated Message-ID")
	}
	assert.True(t, strings.HasSuffix(parsed.MessageID, "@"+testHostname),
		"message id %q should end with the sending hostname", parsed.MessageID)
}

func TestBuildKeepsExplicitMessageID(t *testing.T) {
	msg := buildMessage()
	msg.ExtraHeaders = map[string]string{"Message-ID": "<custom-id@example.org>"}

	parsed := buildAndParse(t, msg, nil)

	assert.Equal(t, "custom-id@example.org", parsed.MessageID)
}

func TestBuildSpoofedToHeader(t *testing.T) {
	msg := buildMessage()
	msg.To = []types.EmailAddress{
		{AddrSpec: "one@example.com"},
		{AddrSpec: "two@example.com"},
	}
	msg.ExtraHeaders = map[string]string{"To": "Your Name <you@example.com>"}

	parsed := buildAndParse(t, msg, nil)

	if assert.Len(t, parsed.To, 1) {
		assert.Equal(t, "you@example.com", parsed.To[0].AddrSpec)
		assert.Equal(t, "Your Name", parsed.To[0].DisplayName)
	}
}

func TestBuildDerivesTextFromHTML(t *testing.T) {
	msg := buildMessage()
	msg.BodyText = ""
	msg.BodyHTML = "<h1>Greetings</h1><p>from a html only message</p>"

	parsed := buildAndParse(t, msg, nil)

	assert.Contains(t, parsed.Text, "Greetings")
	assert.Contains(t, parsed.Text, "from a html only message")
	assert.NotContains(t, parsed.Text, "<h1>")
}

func TestBuildExtraWireHeaders(t *testing.T) {
	extra := textproto.MIMEHeader{}
	extra.Add("X-Tag", "welcome")
	extra.Add("X-Tag", "repeat-buyer")

	parsed := buildAndParse(t, buildMessage(), extra)

	assert.Equal(t, []string{"welcome", "repeat-buyer"}, parsed.Headers["X-Tag"])
}
