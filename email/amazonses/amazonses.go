// Package amazonses implements sending through the Amazon SES raw-email API
// and normalizing SES event notifications delivered over SNS.
package amazonses

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/smithy-go"

	"github.com/mailbridge/go-mailbridge/global"
	"github.com/mailbridge/go-mailbridge/types"
)

// espName is used in user-facing errors; HandlerName keys the registries.
const (
	espName     = "Amazon SES"
	HandlerName = "amazonses"
)

// rawEmailSender is the slice of the SES client the backend needs; the real
// *ses.Client satisfies it, tests substitute a mock.
type rawEmailSender interface {
	SendRawEmail(ctx context.Context, params *ses.SendRawEmailInput, optFns ...func(*ses.Options)) (*ses.SendRawEmailOutput, error)
}

// Backend sends raw MIME messages through SES. Safe for concurrent use; each
// Send owns its payload exclusively.
type Backend struct {
	client   rawEmailSender
	hostname string
}

// NewBackend builds an SES backend from configuration. Credentials fall back
// to the AWS SDK default chain when not configured explicitly.
func NewBackend(ctx context.Context, cfg global.AmazonSESConfig, hostname string) (*Backend, error) {
	opts := []func(*config.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsConf, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	if hostname == "" {
		hostname = "localhost"
	}
	return &Backend{client: ses.NewFromConfig(awsConf), hostname: hostname}, nil
}

func (b *Backend) Name() string {
	return HandlerName
}

// Send builds the SendRawEmail request for msg, performs the API call and maps
// the response to a per-recipient status. SES reports a single message id for
// the whole call, so every addressed recipient is marked queued; any API or
// transport failure fails the send as a whole.
func (b *Backend) Send(ctx context.Context, msg *types.Message) (types.SendResult, error) {
	payload, err := BuildPayload(msg, b.hostname)
	if err != nil {
		return nil, err
	}
	input, err := payload.APIParams()
	if err != nil {
		return nil, err
	}

	out, sendErr := b.client.SendRawEmail(ctx, input)
	if sendErr != nil {
		apiErr := &types.APIError{ESP: espName, Message: sendErr.Error(), Err: sendErr}
		var ae smithy.APIError
		if errors.As(sendErr, &ae) {
			apiErr.Message = ae.ErrorCode() + ": " + ae.ErrorMessage()
		}
		return nil, apiErr
	}
	return payload.RecipientStatus(out)
}

// RecipientStatus interprets the SendRawEmail response. A response without a
// message id is structurally unparseable and raises an APIError rather than
// returning an empty status map.
func (p *Payload) RecipientStatus(out *ses.SendRawEmailOutput) (types.SendResult, error) {
	if out == nil || out.MessageId == nil || *out.MessageId == "" {
		return nil, &types.APIError{ESP: espName, Message: "missing MessageId parsing Amazon SES send result"}
	}
	status := types.RecipientStatus{MessageID: *out.MessageId, Status: types.SendStatusQueued}
	result := types.SendResult{}
	for _, recipient := range p.allRecipients {
		result[recipient.AddrSpec] = status
	}
	return result, nil
}
