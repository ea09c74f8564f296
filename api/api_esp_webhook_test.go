package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/mailbridge/go-mailbridge/email"
	"github.com/mailbridge/go-mailbridge/global"
	"github.com/mailbridge/go-mailbridge/types"
)

type fakeTrackingWebhook struct {
	lastRequest *email.WebhookRequest
	events      []*types.TrackingEvent
	err         error
}

func (w *fakeTrackingWebhook) Name() string { return "fake" }

func (w *fakeTrackingWebhook) ReceiveTrackingEvents(req *email.WebhookRequest) ([]*types.TrackingEvent, error) {
	w.lastRequest = req
	return w.events, w.err
}

func webhookRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	wa := NewEspWebhookAPI()
	router.POST("/webhook/:provider/tracking", wa.ReceiveTrackingEvents)
	return router
}

func postTracking(router *gin.Engine, provider, body string, auth func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/webhook/"+provider+"/tracking", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if auth != nil {
		auth(req)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func withWebhookSecret(t *testing.T, username, password string) {
	t.Helper()
	prev := global.Conf.Webhook
	global.Conf.Webhook.Username = username
	global.Conf.Webhook.Password = password
	t.Cleanup(func() { global.Conf.Webhook = prev })
}

func TestTrackingWebhookUnknownProvider(t *testing.T) {
	email.UnregisterAll()
	t.Cleanup(email.UnregisterAll)

	w := postTracking(webhookRouter(), "nobody", "{}", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTrackingWebhookDispatchesEvents(t *testing.T) {
	email.UnregisterAll()
	email.ResetHandlers()
	t.Cleanup(email.UnregisterAll)
	t.Cleanup(email.ResetHandlers)

	fake := &fakeTrackingWebhook{events: []*types.TrackingEvent{
		{EventType: types.EventDelivered},
		{EventType: types.EventOpened},
	}}
	email.RegisterTrackingWebhook("fake", fake)

	var dispatched int
	email.OnTrackingEvent(func(esp string, event *types.TrackingEvent) {
		assert.Equal(t, "fake", esp)
		dispatched++
	})

	w := postTracking(webhookRouter(), "fake", `{"some":"payload"}`, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"received":2`)
	assert.Equal(t, 2, dispatched)
	if assert.NotNil(t, fake.lastRequest) {
		assert.Equal(t, `{"some":"payload"}`, string(fake.lastRequest.Body))
		assert.False(t, fake.lastRequest.AuthConfigured)
		// without a configured secret nothing was verified
		assert.False(t, fake.lastRequest.AuthValid)
	}
}

func TestTrackingWebhookValidationFailure(t *testing.T) {
	email.UnregisterAll()
	t.Cleanup(email.UnregisterAll)

	fake := &fakeTrackingWebhook{err: &types.WebhookValidationError{ESP: "fake", Reason: "bad signature"}}
	email.RegisterTrackingWebhook("fake", fake)

	w := postTracking(webhookRouter(), "fake", "{}", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "bad signature")
}

func TestTrackingWebhookRejectsBadCredentials(t *testing.T) {
	email.UnregisterAll()
	t.Cleanup(email.UnregisterAll)
	withWebhookSecret(t, "hook", "s3cret")

	fake := &fakeTrackingWebhook{}
	email.RegisterTrackingWebhook("fake", fake)
	router := webhookRouter()

	// missing credentials
	w := postTracking(router, "fake", "{}", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, `Basic realm="webhook"`, w.Header().Get("WWW-Authenticate"))
	assert.Nil(t, fake.lastRequest)

	// wrong password
	w = postTracking(router, "fake", "{}", func(r *http.Request) {
		r.SetBasicAuth("hook", "wrong")
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Nil(t, fake.lastRequest)
}

func TestTrackingWebhookAcceptsValidCredentials(t *testing.T) {
	email.UnregisterAll()
	t.Cleanup(email.UnregisterAll)
	withWebhookSecret(t, "hook", "s3cret")

	fake := &fakeTrackingWebhook{}
	email.RegisterTrackingWebhook("fake", fake)

	w := postTracking(webhookRouter(), "fake", "{}", func(r *http.Request) {
		r.SetBasicAuth("hook", "s3cret")
	})

	assert.Equal(t, http.StatusOK, w.Code)
	if assert.NotNil(t, fake.lastRequest) {
		assert.True(t, fake.lastRequest.AuthConfigured)
		assert.True(t, fake.lastRequest.AuthValid)
	}
}
