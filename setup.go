package main

import (
	"context"

	"github.com/mailbridge/go-mailbridge/email"
	"github.com/mailbridge/go-mailbridge/email/amazonses"
	"github.com/mailbridge/go-mailbridge/email/mailjet"
	"github.com/mailbridge/go-mailbridge/email/sendinblue"
	"github.com/mailbridge/go-mailbridge/global"
)

// RegisterEspHandlers wires up every provider that has credentials in the
// configuration. A provider without credentials stays unregistered and its
// endpoints return 404.
func RegisterEspHandlers(ctx context.Context, conf *global.Config) error {
	if conf.AmazonSES.Region != "" {
		backend, err := amazonses.NewBackend(ctx, conf.AmazonSES, conf.Host)
		if err != nil {
			return err
		}
		email.RegisterBackend(amazonses.HandlerName, backend)
		email.RegisterTrackingWebhook(amazonses.HandlerName, amazonses.NewTrackingWebhook(conf.AmazonSES))
		email.RegisterInboundWebhook(amazonses.HandlerName, amazonses.NewInboundWebhook(conf.AmazonSES))
	}
	if conf.Mailjet.APIKey != "" {
		email.RegisterBackend(mailjet.HandlerName, mailjet.NewBackend(conf.Mailjet))
	}
	if conf.Sendinblue.Enabled {
		email.RegisterTrackingWebhook(sendinblue.HandlerName, sendinblue.NewTrackingWebhook())
	}
	return nil
}
