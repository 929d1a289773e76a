package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/brojonat/luxabot/client"
	"github.com/brojonat/luxabot/service/alert"
	"github.com/brojonat/luxabot/service/normalize"
	"github.com/urfave/cli/v2"
)

func alertCommands() *cli.Command {
	return &cli.Command{
		Name:  "alert",
		Usage: "Discord alert commands",
		Subcommands: []*cli.Command{
			alertTestCommand(),
		},
	}
}

func alertTestCommand() *cli.Command {
	return &cli.Command{
		Name:  "test",
		Usage: "Send a sample alert directly to the Discord webhook",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "nft",
				Usage: "Send an NFT sale alert instead of a wallet transaction alert",
			},
			&cli.StringFlag{
				Name:  "signature",
				Usage: "Override the sample transaction signature",
			},
			&cli.StringFlag{
				Name:    "bot-name",
				Usage:   "Name shown in the alert footer",
				EnvVars: []string{"BOT_NAME"},
				Value:   "LuxaBot",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Delivery timeout",
				Value: 10 * time.Second,
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Print the message instead of sending it",
			},
		},
		Action: func(c *cli.Context) error {
			ev, err := sampleEvent(c.Bool("nft"))
			if err != nil {
				return err
			}
			if sig := c.String("signature"); sig != "" {
				ev.Signature = sig
			}

			formatter := &alert.Formatter{BotName: c.String("bot-name")}
			msg := formatter.Format(ev)

			if c.Bool("dry-run") {
				return writeJSON(c.App.Writer, msg)
			}

			webhookURL := c.String("webhook-url")
			if webhookURL == "" {
				return fmt.Errorf("webhook-url is required (set DISCORD_WEBHOOK_URL env var or use --webhook-url)")
			}

			logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
			d := alert.NewDispatcher(alert.Config{
				WebhookURL: webhookURL,
				Timeout:    c.Duration("timeout"),
			}, formatter, nil, nil, logger)

			delivery, err := d.Send(context.Background(), msg)
			if err != nil {
				if delivery != nil {
					fmt.Fprintf(c.App.ErrWriter, "Response body: %s\n", delivery.Body)
				}
				return fmt.Errorf("failed to send test alert: %w", err)
			}

			if c.Bool("json") {
				return writeJSON(c.App.Writer, map[string]any{
					"status_code": delivery.StatusCode,
					"body":        delivery.Body,
					"kind":        ev.Kind(),
				})
			}
			fmt.Fprintf(c.App.Writer, "✓ Test %s alert delivered (status: %d)\n", ev.Kind(), delivery.StatusCode)
			return nil
		},
	}
}

// sampleEvent runs a built-in example payload through the normalizer so the
// test alert matches what the relay would send.
func sampleEvent(nft bool) (normalize.Event, error) {
	name := "legacy"
	if nft {
		name = "nft"
	}
	raw, err := client.ExamplePayload(name)
	if err != nil {
		return normalize.Event{}, err
	}
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return normalize.Event{}, fmt.Errorf("failed to decode sample payload: %w", err)
	}
	return normalize.Normalize(payload), nil
}
