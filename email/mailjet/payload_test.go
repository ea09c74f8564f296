package mailjet

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mailbridge/go-mailbridge/types"
)

func testMessage() *types.Message {
	from, _ := types.NewEmailAddress("From Name", "from@example.com")
	to, _ := types.NewEmailAddress("", "to@example.com")
	return &types.Message{
		From:     from,
		To:       []types.EmailAddress{to},
		Subject:  "Subject",
		BodyText: "Text body",
	}
}

func serialize(t *testing.T, msg *types.Message) map[string]interface{} {
	t.Helper()
	payload, err := BuildPayload(msg)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	body, err := payload.Serialize()
	if err != nil {
		t.Fatalf("serialize failed: %v", err)
	}
	return body
}

func firstMessage(t *testing.T, body map[string]interface{}) map[string]interface{} {
	t.Helper()
	messages, ok := body["Messages"].([]map[string]interface{})
	if !ok || len(messages) == 0 {
		t.Fatalf("missing Messages in %v", body)
	}
	return messages[0]
}

func TestBasicStructure(t *testing.T) {
	body := serialize(t, testMessage())
	message := firstMessage(t, body)

	assert.Equal(t, mailjetEmail{Email: "from@example.com", Name: "From Name"}, message["From"])
	assert.Equal(t, []mailjetEmail{{Email: "to@example.com"}}, message["To"])
	assert.Equal(t, "Subject", message["Subject"])
	assert.Equal(t, "Text body", message["TextPart"])
	// absent fields stay absent so account defaults apply
	assert.NotContains(t, message, "HTMLPart")
	assert.NotContains(t, message, "Headers")
	assert.NotContains(t, message, "TrackOpens")
	assert.NotContains(t, body, "SandboxMode")
}

func TestReplyToHoistedFromHeaders(t *testing.T) {
	msg := testMessage()
	msg.ExtraHeaders = map[string]string{
		"Reply-To": "replies@example.com",
		"X-Custom": "custom value",
	}

	message := firstMessage(t, serialize(t, msg))
	assert.Equal(t, mailjetEmail{Email: "replies@example.com"}, message["ReplyTo"])
	headers, ok := message["Headers"].(map[string]string)
	assert.True(t, ok)
	assert.Equal(t, map[string]string{"X-Custom": "custom value"}, headers)
}

func TestAttachments(t *testing.T) {
	msg := testMessage()
	msg.Attachments = []*types.Attachment{
		{Filename: "report.pdf", ContentType: "application/pdf", Content: []byte("PDF")},
		{Filename: "logo.png", ContentType: "image/png", Content: []byte("PNG"), Inline: true, ContentID: "logo"},
	}

	message := firstMessage(t, serialize(t, msg))
	attachments := message["Attachments"].([]mailjetAttachment)
	assert.Len(t, attachments, 1)
	assert.Equal(t, "report.pdf", attachments[0].Filename)
	assert.Equal(t, "UERG", attachments[0].Base64Content)

	inlined := message["InlinedAttachments"].([]mailjetAttachment)
	assert.Len(t, inlined, 1)
	assert.Equal(t, "logo", inlined[0].ContentID)
}

func TestMetadataAndTags(t *testing.T) {
	msg := testMessage()
	msg.Metadata = map[string]interface{}{"cohort": "2026"}
	msg.Tags = []string{"welcome"}

	message := firstMessage(t, serialize(t, msg))
	assert.Equal(t, `{"cohort":"2026"}`, message["EventPayload"])
	assert.Equal(t, "welcome", message["CustomCampaign"])
}

func TestTemplateAndTracking(t *testing.T) {
	msg := testMessage()
	msg.TemplateID = "123456"
	yes, no := true, false
	msg.TrackOpens = &yes
	msg.TrackClicks = &no

	message := firstMessage(t, serialize(t, msg))
	assert.Equal(t, 123456, message["TemplateID"])
	assert.Equal(t, true, message["TemplateLanguage"])
	assert.Equal(t, "enabled", message["TrackOpens"])
	assert.Equal(t, "disabled", message["TrackClicks"])
}

func TestEnvelopeSender(t *testing.T) {
	msg := testMessage()
	sender, _ := types.NewEmailAddress("", "bounces@example.com")
	msg.EnvelopeSender = &sender

	message := firstMessage(t, serialize(t, msg))
	assert.Equal(t, "bounces@example.com", message["Sender"])
}

func TestSandboxModeHoistedToRoot(t *testing.T) {
	msg := testMessage()
	msg.EspExtra = map[string]interface{}{"SandboxMode": true, "Priority": 2}

	body := serialize(t, msg)
	assert.Equal(t, true, body["SandboxMode"])
	message := firstMessage(t, body)
	assert.NotContains(t, message, "SandboxMode")
	assert.Equal(t, 2, message["Priority"])
}

func TestMergeDataExpandsPerRecipient(t *testing.T) {
	msg := testMessage()
	bob, _ := types.NewEmailAddress("Bob", "bob@example.com")
	cc, _ := types.NewEmailAddress("", "cc@example.com")
	msg.To = append(msg.To, bob)
	msg.Cc = []types.EmailAddress{cc}
	msg.MergeData = map[string]map[string]interface{}{
		"to@example.com":  {"name": "Alice", "group": "Developers"},
		"bob@example.com": {"name": "Bob"},
	}
	msg.MergeGlobalData = map[string]interface{}{"group": "Users", "site": "ExampleCo"}

	body := serialize(t, msg)
	messages := body["Messages"].([]map[string]interface{})
	assert.Len(t, messages, 2)

	first := messages[0]
	assert.Equal(t, []mailjetEmail{{Email: "to@example.com"}}, first["To"])
	assert.Equal(t, map[string]interface{}{"name": "Alice", "group": "Developers", "site": "ExampleCo"},
		first["Variables"])

	second := messages[1]
	assert.Equal(t, []mailjetEmail{{Email: "bob@example.com", Name: "Bob"}}, second["To"])
	assert.Equal(t, map[string]interface{}{"name": "Bob", "group": "Users", "site": "ExampleCo"},
		second["Variables"])

	// cc rides along on every split message
	assert.Equal(t, []mailjetEmail{{Email: "cc@example.com"}}, first["Cc"])
	assert.Equal(t, []mailjetEmail{{Email: "cc@example.com"}}, second["Cc"])
}

func TestMergeDataDoesNotLeakBetweenRecipients(t *testing.T) {
	msg := testMessage()
	bob, _ := types.NewEmailAddress("", "bob@example.com")
	msg.To = append(msg.To, bob)
	msg.MergeGlobalData = map[string]interface{}{"nested": map[string]interface{}{"value": "original"}}
	msg.MergeData = map[string]map[string]interface{}{
		"to@example.com": {"extra": "alice only"},
	}

	body := serialize(t, msg)
	messages := body["Messages"].([]map[string]interface{})
	assert.Len(t, messages, 2)

	// mutating one recipient's variables must not affect the other's
	first := messages[0]["Variables"].(map[string]interface{})
	first["nested"].(map[string]interface{})["value"] = "mutated"

	second := messages[1]["Variables"].(map[string]interface{})
	assert.Equal(t, "original", second["nested"].(map[string]interface{})["value"])
	assert.NotContains(t, second, "extra")
}

func TestMergeDataStripsNullVariables(t *testing.T) {
	msg := testMessage()
	msg.MergeGlobalData = map[string]interface{}{"keep": "value", "drop": nil}
	msg.MergeData = map[string]map[string]interface{}{
		"to@example.com": {"alsoDrop": nil},
	}

	body := serialize(t, msg)
	variables := body["Messages"].([]map[string]interface{})[0]["Variables"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"keep": "value"}, variables)
}

func TestUnsupportedFeatures(t *testing.T) {
	replyTo1, _ := types.NewEmailAddress("", "r1@example.com")
	replyTo2, _ := types.NewEmailAddress("", "r2@example.com")
	cases := []struct {
		feature string
		mutate  func(msg *types.Message)
	}{
		{"multiple tags", func(msg *types.Message) { msg.Tags = []string{"one", "two"} }},
		{"multiple reply_to", func(msg *types.Message) {
			msg.ReplyTo = []types.EmailAddress{replyTo1, replyTo2}
		}},
		{"multiple html parts", func(msg *types.Message) {
			msg.BodyHTML = "<p>one</p>"
			msg.Alternatives = []*types.Alternative{{Content: "<p>two</p>", ContentType: "text/html"}}
		}},
		{"non-numeric template_id", func(msg *types.Message) { msg.TemplateID = "welcome" }},
	}
	for _, tc := range cases {
		msg := testMessage()
		tc.mutate(msg)
		_, err := BuildPayload(msg)
		var unsupported *types.UnsupportedFeatureError
		assert.True(t, errors.As(err, &unsupported), tc.feature)
		assert.Contains(t, err.Error(), "Mailjet")
	}
}
