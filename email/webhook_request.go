package email

import (
	"io"
	"net/http"
	"net/url"
)

// WebhookRequest is the transport-independent view of one inbound webhook
// call. It carries no state beyond the single request; the raw body is read
// once so validation and event extraction never re-read the stream.
type WebhookRequest struct {
	Method string
	Header http.Header
	Query  url.Values
	Body   []byte

	// AuthConfigured reports whether a webhook shared secret is configured.
	AuthConfigured bool
	// AuthValid reports whether the caller verified the request's basic auth
	// against that shared secret. ESP normalizers must gate any side effect
	// (e.g. auto-confirming a push subscription) on this.
	AuthValid bool
}

// NewWebhookRequest captures an http.Request. The body is consumed.
func NewWebhookRequest(r *http.Request) (*WebhookRequest, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	return &WebhookRequest{
		Method: r.Method,
		Header: r.Header,
		Query:  r.URL.Query(),
		Body:   body,
	}, nil
}
