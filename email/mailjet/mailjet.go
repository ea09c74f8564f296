package mailjet

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mailbridge/go-mailbridge/global"
	"github.com/mailbridge/go-mailbridge/types"
)

const (
	espName     = "Mailjet"
	HandlerName = "mailjet"

	defaultAPIURL = "https://api.mailjet.com/v3.1"
)

// Backend sends through Mailjet's v3.1 Send API.
type Backend struct {
	client *resty.Client
}

func NewBackend(cfg global.MailjetConfig) *Backend {
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	client := resty.New().
		SetBaseURL(apiURL).
		SetBasicAuth(cfg.APIKey, cfg.SecretKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(30 * time.Second)
	return &Backend{client: client}
}

func (b *Backend) Name() string {
	return HandlerName
}

func (b *Backend) Send(ctx context.Context, msg *types.Message) (types.SendResult, error) {
	payload, err := BuildPayload(msg)
	if err != nil {
		return nil, err
	}
	body, err := payload.Serialize()
	if err != nil {
		return nil, err
	}

	resp, err := b.client.R().
		SetContext(ctx).
		SetBody(body).
		Post("/send")
	if err != nil {
		return nil, &types.APIError{ESP: espName, Message: "error calling Mailjet send API", Err: err}
	}
	return interpretResponse(msg, resp.StatusCode(), resp.Body())
}

// sendResponse mirrors the v3.1 response: one Messages entry per submitted
// message, in submission order, each either success with per-recipient ids or
// error with Errors detail. Mailjet reports partial failures with a 4xx
// status but still returns the full Messages array.
type sendResponse struct {
	Messages []messageResult `json:"Messages"`

	// top-level error shape (auth failures and malformed requests)
	ErrorIdentifier string `json:"ErrorIdentifier,omitempty"`
	ErrorCode       string `json:"ErrorCode,omitempty"`
	ErrorMessage    string `json:"ErrorMessage,omitempty"`
	StatusCode      int    `json:"StatusCode,omitempty"`
}

type messageResult struct {
	Status string            `json:"Status"`
	To     []recipientResult `json:"To,omitempty"`
	Cc     []recipientResult `json:"Cc,omitempty"`
	Bcc    []recipientResult `json:"Bcc,omitempty"`
	Errors []messageError    `json:"Errors,omitempty"`
}

type recipientResult struct {
	Email       string      `json:"Email"`
	MessageID   json.Number `json:"MessageID,omitempty"`
	MessageUUID string      `json:"MessageUUID,omitempty"`
	MessageHref string      `json:"MessageHref,omitempty"`
}

type messageError struct {
	ErrorIdentifier string `json:"ErrorIdentifier,omitempty"`
	ErrorCode       string `json:"ErrorCode,omitempty"`
	StatusCode      int    `json:"StatusCode,omitempty"`
	ErrorMessage    string `json:"ErrorMessage,omitempty"`
}

// interpretResponse builds the per-recipient result map. Every recipient of
// the original message gets an entry: recipients Mailjet reported on get
// their reported status, recipients missing from the response (rejected
// before submission) default to failed.
func interpretResponse(msg *types.Message, statusCode int, body []byte) (types.SendResult, error) {
	var parsed sendResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &types.APIError{
			ESP:         espName,
			Message:     "invalid Mailjet API response format",
			StatusCode:  statusCode,
			RawResponse: body,
		}
	}
	// global error: nothing was sent
	if parsed.ErrorCode != "" || parsed.ErrorIdentifier != "" {
		return nil, &types.APIError{
			ESP:         espName,
			Message:     parsed.ErrorMessage,
			StatusCode:  statusCode,
			RawResponse: body,
		}
	}
	if parsed.Messages == nil {
		message := "invalid Mailjet API response format"
		if statusCode >= 400 {
			message = "Mailjet API response " + http.StatusText(statusCode)
		}
		return nil, &types.APIError{
			ESP:         espName,
			Message:     message,
			StatusCode:  statusCode,
			RawResponse: body,
		}
	}

	result := types.SendResult{}
	for _, message := range parsed.Messages {
		status := types.SendStatusFailed
		if message.Status == "success" {
			status = types.SendStatusSent
		}
		for _, recipients := range [][]recipientResult{message.To, message.Cc, message.Bcc} {
			for _, recipient := range recipients {
				result[recipient.Email] = types.RecipientStatus{
					MessageID: recipient.MessageID.String(),
					Status:    status,
				}
			}
		}
	}

	// recipients Mailjet didn't report on were rejected outright
	for _, recipient := range msg.AllRecipients() {
		if _, reported := result[recipient.AddrSpec]; !reported {
			result[recipient.AddrSpec] = types.RecipientStatus{Status: types.SendStatusFailed}
		}
	}
	return result, nil
}
