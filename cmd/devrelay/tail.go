package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/V4T54L/devrelay/internal/tail"
)

var tailFlags struct {
	url       string
	token     string
	filter    string
	reconnect bool
	page      string
}

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print a running server's log stream in the terminal",
	Example: `  devrelay tail
  devrelay tail --filter 'level <= 1'
  devrelay tail --url http://localhost:3000/_nuxt_logs --token s3cret
  devrelay tail --page http://localhost:3000/db`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := &tail.Client{
			URL:       tailFlags.url,
			Token:     tailFlags.token,
			Filter:    tailFlags.filter,
			Reconnect: tailFlags.reconnect,
			Out:       cmd.OutOrStdout(),
			Styles:    tail.DefaultStyles(),
			Logger:    slog.New(slog.NewTextHandler(os.Stderr, nil)),
		}
		if tailFlags.page != "" {
			_, err := client.Snapshot(cmd.Context(), tailFlags.page)
			return err
		}
		err := client.Run(cmd.Context())
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	tailCmd.Flags().StringVar(&tailFlags.url, "url", "http://localhost:3000/_nuxt_logs", "Log stream URL")
	tailCmd.Flags().StringVar(&tailFlags.token, "token", os.Getenv("DEVRELAY_STREAM_TOKEN"), "Stream token")
	tailCmd.Flags().StringVar(&tailFlags.filter, "filter", "", "Filter expression, for example 'type == \"error\"'")
	tailCmd.Flags().StringVar(&tailFlags.page, "page", "", "Render this page once and print the records embedded in it instead of following the stream")
	tailCmd.Flags().BoolVar(&tailFlags.reconnect, "reconnect", true, "Reconnect when the stream ends")
}
