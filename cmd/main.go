package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func check(e error) {
	if e != nil {
		fmt.Printf("%v\n", e.Error())
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "mailbridge",
	Short:   "Mailbridge normalizes sending and receiving email across providers",
	Long:    `Mailbridge exposes one message model, one tracking event model and one inbound message model across email service providers. This CLI sends messages and inspects raw MIME without running the server.`,
	Version: "0.1.0",
	Run: func(cmd *cobra.Command, args []string) {
		// empty
	},
}

func main() {
	Execute()
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}
