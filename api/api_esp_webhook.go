package api

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mailbridge/go-mailbridge/email"
	"github.com/mailbridge/go-mailbridge/global"
	"github.com/mailbridge/go-mailbridge/metrics"
	"github.com/mailbridge/go-mailbridge/types"
)

const webhookAuthRealm = "webhook"

// EspWebhookAPI terminates the ESP webhook endpoints: it checks the shared
// secret, hands the request to the provider's normalizer and dispatches the
// normalized events to the registered handlers.
type EspWebhookAPI struct {
}

func NewEspWebhookAPI() *EspWebhookAPI {
	return &EspWebhookAPI{}
}

// webhookRequest captures the request body and evaluates the webhook shared
// secret (HTTP basic auth). A configured secret that doesn't match rejects
// the request here; an unconfigured secret lets the request through with
// AuthValid false so provider normalizers can refuse sensitive operations.
func (wa *EspWebhookAPI) webhookRequest(c *gin.Context) (*email.WebhookRequest, bool) {
	req, err := email.NewWebhookRequest(c.Request)
	if err != nil {
		ApiErrorf(c, http.StatusBadRequest, "unreadable request body: %s", err.Error())
		return nil, false
	}

	username := global.Conf.Webhook.Username
	password := global.Conf.Webhook.Password
	if username == "" && password == "" {
		return req, true
	}
	req.AuthConfigured = true

	basicUser, basicPass, ok := c.Request.BasicAuth()
	userMatch := subtle.ConstantTimeCompare([]byte(basicUser), []byte(username)) == 1
	passMatch := subtle.ConstantTimeCompare([]byte(basicPass), []byte(password)) == 1
	if !ok || !userMatch || !passMatch {
		// the WWW-Authenticate challenge matters for Amazon SNS: without it
		// SNS marks the endpoint as failed instead of retrying with the
		// credentials embedded in the subscribed URL
		c.Header("WWW-Authenticate", `Basic realm="`+webhookAuthRealm+`"`)
		authErr := &types.WebhookAuthError{ESP: c.Param("provider"), Realm: webhookAuthRealm}
		ApiErrorf(c, http.StatusUnauthorized, "%s", authErr.Error())
		return nil, false
	}
	req.AuthValid = true
	return req, true
}

// ReceiveTrackingEvents handles delivery tracking posts from a provider.
// @Summary Receive provider tracking events
// @Description Receive provider tracking events
// @Tags Esp Webhook Handler
// @Accept json
// @Produce json
// @Success 200
// @Failure 400 {object} api.ApiError "failed webhook validation"
// @Failure 401 {object} api.ApiError "invalid webhook credentials"
// @Router /webhook/{provider}/tracking [post]
func (wa *EspWebhookAPI) ReceiveTrackingEvents(c *gin.Context) {
	provider := c.Param("provider")
	webhook := email.GetTrackingWebhook(provider)
	if webhook == nil {
		ApiErrorf(c, http.StatusNotFound, "no tracking webhook registered for provider %s", provider)
		return
	}
	req, ok := wa.webhookRequest(c)
	if !ok {
		return
	}

	events, err := webhook.ReceiveTrackingEvents(req)
	if err != nil {
		var validationErr *types.WebhookValidationError
		if errors.As(err, &validationErr) {
			metrics.WebhookValidationFailedMetricsCount.WithLabelValues(provider).Inc()
			global.Logger.Log("webhook validation failed", err.Error(), "provider", provider)
			ApiErrorf(c, http.StatusBadRequest, "%s", err.Error())
			return
		}
		global.Logger.Log("error normalizing tracking events", err.Error(), "provider", provider)
		ApiErrorf(c, http.StatusInternalServerError, "%s", err.Error())
		return
	}

	for _, event := range events {
		metrics.TrackingEventsMetricsCount.WithLabelValues(provider, string(event.EventType)).Inc()
	}
	email.DispatchTracking(provider, events)
	c.JSON(http.StatusOK, gin.H{"received": len(events)})
}

// ReceiveInboundEvents handles inbound message posts from a provider.
// @Summary Receive provider inbound messages
// @Description Receive provider inbound messages
// @Tags Esp Webhook Handler
// @Accept json
// @Produce json
// @Success 200
// @Failure 400 {object} api.ApiError "failed webhook validation"
// @Failure 401 {object} api.ApiError "invalid webhook credentials"
// @Router /webhook/{provider}/inbound [post]
func (wa *EspWebhookAPI) ReceiveInboundEvents(c *gin.Context) {
	provider := c.Param("provider")
	webhook := email.GetInboundWebhook(provider)
	if webhook == nil {
		ApiErrorf(c, http.StatusNotFound, "no inbound webhook registered for provider %s", provider)
		return
	}
	req, ok := wa.webhookRequest(c)
	if !ok {
		return
	}

	events, err := webhook.ReceiveInboundEvents(req)
	if err != nil {
		var validationErr *types.WebhookValidationError
		if errors.As(err, &validationErr) {
			metrics.WebhookValidationFailedMetricsCount.WithLabelValues(provider).Inc()
			global.Logger.Log("webhook validation failed", err.Error(), "provider", provider)
			ApiErrorf(c, http.StatusBadRequest, "%s", err.Error())
			return
		}
		global.Logger.Log("error normalizing inbound message", err.Error(), "provider", provider)
		ApiErrorf(c, http.StatusInternalServerError, "%s", err.Error())
		return
	}

	for range events {
		metrics.InboundMessagesMetricsCount.WithLabelValues(provider).Inc()
	}
	email.DispatchInbound(provider, events)
	c.JSON(http.StatusOK, gin.H{"received": len(events)})
}
