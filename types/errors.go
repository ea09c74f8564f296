package types

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidEmail is returned when an email address is invalid
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrInternal (for unhandled exceptions)
	ErrInternal = errors.New("internal error")
)

// AddressParseError reports a free-form address string from which no valid
// addr-spec could be extracted. It is always a local error, never a transport one.
type AddressParseError struct {
	Input string
	Err   error
}

func (e *AddressParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot parse email address %q: %s", e.Input, e.Err.Error())
	}
	return fmt.Sprintf("cannot parse email address %q", e.Input)
}

func (e *AddressParseError) Unwrap() error {
	return e.Err
}

// UnsupportedFeatureError is returned when the caller supplied a message field
// the selected ESP cannot express. The whole send fails rather than silently
// degrading.
type UnsupportedFeatureError struct {
	ESP     string
	Feature string
}

func (e *UnsupportedFeatureError) Error() string {
	if e.ESP == "" {
		return fmt.Sprintf("unsupported feature: %s", e.Feature)
	}
	return fmt.Sprintf("%s does not support %s", e.ESP, e.Feature)
}

// APIError reports that the transport succeeded but the ESP rejected the
// request, or that the response could not be parsed. RawResponse carries the
// original body (when available) for diagnostics.
type APIError struct {
	ESP         string
	Message     string
	StatusCode  int
	RawResponse []byte
	Err         error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s API error: %s", e.ESP, e.Message)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	}
	if len(e.RawResponse) > 0 {
		msg = fmt.Sprintf("%s: %s", msg, string(e.RawResponse))
	}
	return msg
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// WebhookValidationError reports an inbound webhook request that failed
// authenticity or shape checks. No events are produced from such a request.
type WebhookValidationError struct {
	ESP    string
	Reason string
}

func (e *WebhookValidationError) Error() string {
	return fmt.Sprintf("%s webhook validation failed: %s", e.ESP, e.Reason)
}

// WebhookAuthError reports a missing or incorrect webhook shared secret.
// Realm is non-empty when the ESP's delivery agent requires a challenge
// response (401 + WWW-Authenticate) before it will retry with credentials.
type WebhookAuthError struct {
	ESP   string
	Realm string
}

func (e *WebhookAuthError) Error() string {
	return fmt.Sprintf("%s webhook authorization failed", e.ESP)
}
