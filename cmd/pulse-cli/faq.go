package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/pulse-chat/backend/internal/model/faq"
)

// faqCmd lists the predefined questions
var faqCmd = &cobra.Command{
	Use:   "faq",
	Short: "List the predefined questions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		printFAQs(cmd.OutOrStdout(), faq.Seed())
		return nil
	},
}

func printFAQs(w io.Writer, questions []faq.Question) {
	for i, q := range questions {
		fmt.Fprintf(w, "%2d. %s\n", i+1, q.Text)
	}
}
