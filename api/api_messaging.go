package api

import (
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mailbridge/go-mailbridge/email"
	"github.com/mailbridge/go-mailbridge/global"
	"github.com/mailbridge/go-mailbridge/metrics"
	"github.com/mailbridge/go-mailbridge/types"
)

// SendMessageRequest is the JSON shape of a send call. Addresses are RFC 5322
// strings ("Name <box@example.com>" or bare).
type SendMessageRequest struct {
	From            string                            `json:"from" binding:"required"`
	To              []string                          `json:"to" binding:"required,min=1"`
	Cc              []string                          `json:"cc,omitempty"`
	Bcc             []string                          `json:"bcc,omitempty"`
	ReplyTo         []string                          `json:"replyTo,omitempty"`
	Subject         string                            `json:"subject,omitempty"`
	Text            string                            `json:"text,omitempty"`
	HTML            string                            `json:"html,omitempty"`
	Headers         map[string]string                 `json:"headers,omitempty"`
	Attachments     []SendMessageAttachment           `json:"attachments,omitempty"`
	EnvelopeSender  string                            `json:"envelopeSender,omitempty"`
	Metadata        map[string]interface{}            `json:"metadata,omitempty"`
	Tags            []string                          `json:"tags,omitempty"`
	TemplateID      string                            `json:"templateId,omitempty"`
	MergeData       map[string]map[string]interface{} `json:"mergeData,omitempty"`
	MergeGlobalData map[string]interface{}            `json:"mergeGlobalData,omitempty"`
	TrackOpens      *bool                             `json:"trackOpens,omitempty"`
	TrackClicks     *bool                             `json:"trackClicks,omitempty"`
	SendAt          *time.Time                        `json:"sendAt,omitempty"`
	EspExtra        map[string]interface{}            `json:"espExtra,omitempty"`
}

type SendMessageAttachment struct {
	Filename    string `json:"filename,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	Content     string `json:"content" binding:"required"` // base64
	Inline      bool   `json:"inline,omitempty"`
	ContentID   string `json:"contentId,omitempty"`
}

type MessagingAPI struct {
}

func NewMessagingAPI() *MessagingAPI {
	return &MessagingAPI{}
}

// SendMessage submits one message through the provider named in the path.
// @Summary Send a message through a provider
// @Description Send a message through a provider
// @Tags Messaging
// @Accept json
// @Produce json
// @Success 200 {object} types.SendResult
// @Failure 400 {object} api.ApiError "unparseable address or unsupported feature"
// @Failure 404 {object} api.ApiError "unknown provider"
// @Failure 502 {object} api.ApiError "provider API error"
// @Router /api/v1/providers/{provider}/messages [post]
func (ma *MessagingAPI) SendMessage(c *gin.Context) {
	provider := c.Param("provider")
	backend := email.GetBackend(provider)
	if backend == nil {
		ApiErrorf(c, http.StatusNotFound, "no send backend registered for provider %s", provider)
		return
	}

	var request SendMessageRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		ApiErrorf(c, http.StatusBadRequest, "invalid request body: %s", err.Error())
		return
	}
	msg, err := request.toMessage()
	if err != nil {
		ApiErrorf(c, http.StatusBadRequest, "%s", err.Error())
		return
	}

	start := time.Now()
	result, err := backend.Send(c.Request.Context(), msg)
	metrics.MessageSendProcessingLatency.WithLabelValues(provider).Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.MessagesSentMetricsCount.WithLabelValues(provider, "error").Inc()
		global.Logger.Log("error sending message", err.Error(), "provider", provider)

		var unsupported *types.UnsupportedFeatureError
		var apiErr *types.APIError
		switch {
		case errors.As(err, &unsupported):
			ApiErrorf(c, http.StatusBadRequest, "%s", err.Error())
		case errors.As(err, &apiErr):
			ApiErrorf(c, http.StatusBadGateway, "%s", err.Error())
		default:
			ApiErrorf(c, http.StatusInternalServerError, "%s", err.Error())
		}
		return
	}

	metrics.MessagesSentMetricsCount.WithLabelValues(provider, "ok").Inc()
	c.JSON(http.StatusOK, gin.H{"provider": provider, "recipients": result})
}

// toMessage converts the wire request into the provider-independent message.
func (request *SendMessageRequest) toMessage() (*types.Message, error) {
	msg := &types.Message{
		Subject:         request.Subject,
		BodyText:        request.Text,
		BodyHTML:        request.HTML,
		ExtraHeaders:    request.Headers,
		Metadata:        request.Metadata,
		Tags:            request.Tags,
		TemplateID:      request.TemplateID,
		MergeData:       request.MergeData,
		MergeGlobalData: request.MergeGlobalData,
		TrackOpens:      request.TrackOpens,
		TrackClicks:     request.TrackClicks,
		SendAt:          request.SendAt,
		EspExtra:        request.EspExtra,
	}

	from, err := types.ParseEmailAddress(request.From)
	if err != nil {
		return nil, err
	}
	msg.From = from

	for _, parse := range []struct {
		inputs []string
		dest   *[]types.EmailAddress
	}{
		{request.To, &msg.To},
		{request.Cc, &msg.Cc},
		{request.Bcc, &msg.Bcc},
		{request.ReplyTo, &msg.ReplyTo},
	} {
		for _, input := range parse.inputs {
			addr, aErr := types.ParseEmailAddress(input)
			if aErr != nil {
				return nil, aErr
			}
			*parse.dest = append(*parse.dest, addr)
		}
	}

	if request.EnvelopeSender != "" {
		sender, sErr := types.ParseEmailAddress(request.EnvelopeSender)
		if sErr != nil {
			return nil, sErr
		}
		msg.EnvelopeSender = &sender
	}

	for _, att := range request.Attachments {
		content, dErr := base64.StdEncoding.DecodeString(att.Content)
		if dErr != nil {
			return nil, errors.New("undecodable base64 attachment content")
		}
		msg.Attachments = append(msg.Attachments, &types.Attachment{
			Filename:    att.Filename,
			ContentType: att.ContentType,
			Content:     content,
			Inline:      att.Inline,
			ContentID:   att.ContentID,
		})
	}
	return msg, nil
}
