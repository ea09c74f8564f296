package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mailbridge/go-mailbridge/email"
	"github.com/mailbridge/go-mailbridge/email/amazonses"
	"github.com/mailbridge/go-mailbridge/email/mailjet"
	"github.com/mailbridge/go-mailbridge/global"
	"github.com/mailbridge/go-mailbridge/types"
)

var (
	sendConfigFile string
	sendProvider   string
)

// sendMessageFile is the JSON shape the send subcommand reads from disk.
type sendMessageFile struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text,omitempty"`
	HTML    string   `json:"html,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

var sendCmd = &cobra.Command{
	Use:   "send [message.json]",
	Short: "Send a message file through a configured provider",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		err := global.LoadConfig(sendConfigFile)
		check(err)

		if global.Conf.Mailjet.APIKey != "" {
			email.RegisterBackend(mailjet.HandlerName, mailjet.NewBackend(global.Conf.Mailjet))
		}
		if global.Conf.AmazonSES.Region != "" {
			backend, bErr := amazonses.NewBackend(cmd.Context(), global.Conf.AmazonSES, global.Conf.Host)
			check(bErr)
			email.RegisterBackend(amazonses.HandlerName, backend)
		}
		backend := email.GetBackend(sendProvider)
		if backend == nil {
			check(fmt.Errorf("no send backend registered for provider %s (available: %v)", sendProvider, email.Backends()))
		}

		raw, err := os.ReadFile(args[0])
		check(err)
		var file sendMessageFile
		check(json.Unmarshal(raw, &file))

		msg, err := file.toMessage()
		check(err)

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		result, err := backend.Send(ctx, msg)
		check(err)

		out, err := json.MarshalIndent(result, "", "  ")
		check(err)
		fmt.Println(string(out))
	},
}

func (file *sendMessageFile) toMessage() (*types.Message, error) {
	from, err := types.ParseEmailAddress(file.From)
	if err != nil {
		return nil, err
	}
	msg := &types.Message{
		From:     from,
		Subject:  file.Subject,
		BodyText: file.Text,
		BodyHTML: file.HTML,
		Tags:     file.Tags,
	}
	for _, input := range file.To {
		addr, aErr := types.ParseEmailAddress(input)
		if aErr != nil {
			return nil, aErr
		}
		msg.To = append(msg.To, addr)
	}
	return msg, nil
}

func init() {
	sendCmd.Flags().StringVarP(&sendConfigFile, "config", "c", "conf.yaml", "Configuration file path")
	sendCmd.Flags().StringVarP(&sendProvider, "provider", "p", mailjet.HandlerName, "Send backend to use")
	rootCmd.AddCommand(sendCmd)
}
