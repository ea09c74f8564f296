package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/mailbridge/go-mailbridge/email"
	"github.com/mailbridge/go-mailbridge/types"
)

type fakeSendBackend struct {
	lastMessage *types.Message
	result      types.SendResult
	err         error
}

func (b *fakeSendBackend) Name() string { return "fake" }

func (b *fakeSendBackend) Send(ctx context.Context, msg *types.Message) (types.SendResult, error) {
	b.lastMessage = msg
	return b.result, b.err
}

func messagingRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	ma := NewMessagingAPI()
	router.POST("/api/v1/providers/:provider/messages", ma.SendMessage)
	return router
}

func postMessage(router *gin.Engine, provider, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/api/v1/providers/"+provider+"/messages", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSendMessageUnknownProvider(t *testing.T) {
	email.UnregisterAll()
	t.Cleanup(email.UnregisterAll)

	w := postMessage(messagingRouter(), "nobody", `{"from":"a@example.com","to":["b@example.com"]}`)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSendMessageSuccess(t *testing.T) {
	email.UnregisterAll()
	t.Cleanup(email.UnregisterAll)

	fake := &fakeSendBackend{result: types.SendResult{
		"to@example.com": {MessageID: "abc123", Status: types.SendStatusQueued},
	}}
	email.RegisterBackend("fake", fake)

	w := postMessage(messagingRouter(), "fake", `{
		"from": "Sender <from@example.com>",
		"to": ["to@example.com"],
		"subject": "Hi",
		"text": "body",
		"tags": ["welcome"],
		"attachments": [{"filename": "a.txt", "contentType": "text/plain", "content": "aGVsbG8="}]
	}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "abc123")
	if assert.NotNil(t, fake.lastMessage) {
		assert.Equal(t, "from@example.com", fake.lastMessage.From.AddrSpec)
		assert.Equal(t, "Sender", fake.lastMessage.From.DisplayName)
		if assert.Len(t, fake.lastMessage.Attachments, 1) {
			assert.Equal(t, []byte("hello"), fake.lastMessage.Attachments[0].Content)
		}
	}
}

func TestSendMessageRequiresFromAndTo(t *testing.T) {
	email.UnregisterAll()
	t.Cleanup(email.UnregisterAll)
	email.RegisterBackend("fake", &fakeSendBackend{})

	w := postMessage(messagingRouter(), "fake", `{"subject": "no addresses"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSendMessageUnparseableAddress(t *testing.T) {
	email.UnregisterAll()
	t.Cleanup(email.UnregisterAll)

	fake := &fakeSendBackend{}
	email.RegisterBackend("fake", fake)

	w := postMessage(messagingRouter(), "fake", `{"from":"invalid","to":["to@example.com"]}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, fake.lastMessage)
}

func TestSendMessageUnsupportedFeature(t *testing.T) {
	email.UnregisterAll()
	t.Cleanup(email.UnregisterAll)
	email.RegisterBackend("fake", &fakeSendBackend{
		err: &types.UnsupportedFeatureError{ESP: "fake", Feature: "send_at"},
	})

	w := postMessage(messagingRouter(), "fake", `{"from":"a@example.com","to":["b@example.com"]}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "send_at")
}

func TestSendMessageAPIErrorMapsToBadGateway(t *testing.T) {
	email.UnregisterAll()
	t.Cleanup(email.UnregisterAll)
	email.RegisterBackend("fake", &fakeSendBackend{
		err: &types.APIError{ESP: "fake", Message: "credentials rejected", StatusCode: 401},
	})

	w := postMessage(messagingRouter(), "fake", `{"from":"a@example.com","to":["b@example.com"]}`)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "credentials rejected")
}
