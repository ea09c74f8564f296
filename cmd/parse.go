package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	mailmime "github.com/mailbridge/go-mailbridge/email/mime"
	"github.com/mailbridge/go-mailbridge/types"
)

var parseCmd = &cobra.Command{
	Use:   "parse [file.eml]",
	Short: "Parse a raw MIME message and print the normalized result",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		raw, err := os.ReadFile(args[0])
		check(err)

		message, err := mailmime.Parse(raw)
		check(err)

		summary := map[string]interface{}{
			"messageId":         message.MessageID,
			"subject":           message.Subject,
			"from":              message.FromEmail,
			"to":                message.To,
			"cc":                message.Cc,
			"date":              message.Date,
			"textLength":        len(message.Text),
			"htmlLength":        len(message.HTML),
			"attachments":       attachmentNames(message.Attachments),
			"inlineAttachments": len(message.InlineAttachments),
			"defects":           message.Defects,
		}
		out, err := json.MarshalIndent(summary, "", "  ")
		check(err)
		fmt.Println(string(out))
	},
}

func attachmentNames(attachments []*types.Attachment) []string {
	names := make([]string, 0, len(attachments))
	for _, att := range attachments {
		names = append(names, att.Filename)
	}
	return names
}

func init() {
	rootCmd.AddCommand(parseCmd)
}
