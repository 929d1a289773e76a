package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/brojonat/luxabot/client"
	"github.com/brojonat/luxabot/service/alert"
	"github.com/brojonat/luxabot/service/normalize"
	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

func webhookCommands() *cli.Command {
	return &cli.Command{
		Name:  "webhook",
		Usage: "Inbound webhook payload commands",
		Subcommands: []*cli.Command{
			webhookSendCommand(),
			webhookNormalizeCommand(),
		},
	}
}

func payloadFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "file",
			Aliases: []string{"f"},
			Usage:   "Read the payload from a file (- for stdin)",
		},
		&cli.StringFlag{
			Name:    "example",
			Aliases: []string{"e"},
			Usage:   fmt.Sprintf("Use a built-in sample payload %v", client.ExampleNames()),
		},
	}
}

// readPayload returns the raw body selected by --file or --example.
func readPayload(c *cli.Context) ([]byte, error) {
	file := c.String("file")
	example := c.String("example")

	switch {
	case file != "" && example != "":
		return nil, fmt.Errorf("--file and --example are mutually exclusive")
	case example != "":
		return client.ExamplePayload(example)
	case file == "-":
		return io.ReadAll(c.App.Reader)
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read payload file: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("a payload is required (use --file or --example)")
	}
}

func webhookSendCommand() *cli.Command {
	return &cli.Command{
		Name:  "send",
		Usage: "POST a payload to the relay's /webhook endpoint",
		Flags: append(payloadFlags(),
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout",
				Value: 30 * time.Second,
			},
		),
		Action: func(c *cli.Context) error {
			body, err := readPayload(c)
			if err != nil {
				return err
			}

			cl := client.NewClient(c.String("server-url"), nil, nil)
			ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
			defer cancel()

			resp, err := cl.SendWebhook(ctx, body)
			if err != nil {
				return fmt.Errorf("failed to send webhook: %w", err)
			}

			if c.Bool("json") {
				return writeJSON(c.App.Writer, map[string]string{
					"status":     resp.Status,
					"request_id": resp.RequestID,
				})
			}
			fmt.Fprintf(c.App.Writer, "✓ Webhook accepted (status: %s)\n", resp.Status)
			if resp.RequestID != "" {
				fmt.Fprintf(c.App.Writer, "  Request ID: %s\n", resp.RequestID)
			}
			return nil
		},
	}
}

// normalizedEvent is the CLI view of an extracted event.
type normalizedEvent struct {
	Shape           normalize.Shape `json:"shape"`
	Kind            string          `json:"kind"`
	Signature       string          `json:"signature,omitempty"`
	ExplorerURL     string          `json:"explorer_url,omitempty"`
	Mint            string          `json:"mint,omitempty"`
	AmountLamports  *float64        `json:"amount_lamports,omitempty"`
	PriceSOL        *float64        `json:"price_sol,omitempty"`
	Buyer           string          `json:"buyer,omitempty"`
	Seller          string          `json:"seller,omitempty"`
	Marketplace     string          `json:"marketplace,omitempty"`
	WouldAlert      bool            `json:"would_alert"`
	ValidationError string          `json:"validation_error,omitempty"`
}

func webhookNormalizeCommand() *cli.Command {
	return &cli.Command{
		Name:  "normalize",
		Usage: "Show what the relay would extract from a payload, without sending anything",
		Flags: append(payloadFlags(),
			&cli.StringFlag{
				Name:  "select",
				Usage: "jq expression applied to the payload before normalizing (e.g. '.[1]')",
			},
		),
		Action: func(c *cli.Context) error {
			body, err := readPayload(c)
			if err != nil {
				return err
			}

			var payload any
			if err := json.Unmarshal(body, &payload); err != nil {
				return fmt.Errorf("payload is not valid JSON: %w", err)
			}

			if expr := c.String("select"); expr != "" {
				payload, err = applySelect(expr, payload)
				if err != nil {
					return err
				}
			}

			ev := normalize.Normalize(payload)
			out := normalizedEvent{
				Shape:          ev.Shape,
				Kind:           ev.Kind(),
				Signature:      ev.Signature,
				Mint:           ev.Mint,
				AmountLamports: ev.AmountLamports,
				PriceSOL:       ev.PriceSOL,
				Buyer:          ev.Buyer,
				Seller:         ev.Seller,
				Marketplace:    ev.Marketplace,
				WouldAlert:     ev.HasSignature(),
			}
			if ev.HasSignature() {
				out.ExplorerURL = (&alert.Formatter{}).ExplorerLink(ev.Signature)
				if err := ev.Validate(); err != nil {
					out.ValidationError = err.Error()
				}
			}

			if c.Bool("json") {
				return writeJSON(c.App.Writer, out)
			}
			printNormalized(c.App.Writer, out)
			return nil
		},
	}
}

// applySelect runs a jq expression over payload and returns its first result.
// The result is round-tripped through encoding/json so numbers come back as float64.
func applySelect(expr string, payload any) (any, error) {
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jq filter %q: %w", expr, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq filter %q: %w", expr, err)
	}

	iter := code.Run(payload)
	v, ok := iter.Next()
	if !ok {
		return nil, fmt.Errorf("jq filter %q produced no result", expr)
	}
	if err, isErr := v.(error); isErr {
		return nil, fmt.Errorf("jq filter %q failed: %w", expr, err)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode jq result: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode jq result: %w", err)
	}
	return out, nil
}

func printNormalized(w io.Writer, ev normalizedEvent) {
	fmt.Fprintf(w, "Shape: %s\n", ev.Shape)
	if !ev.WouldAlert {
		fmt.Fprintf(w, "No signature found; no alert would be sent\n")
		return
	}
	fmt.Fprintf(w, "Kind:      %s\n", ev.Kind)
	fmt.Fprintf(w, "Signature: %s\n", ev.Signature)
	fmt.Fprintf(w, "Explorer:  %s\n", ev.ExplorerURL)
	if ev.Kind == "nft_sale" {
		fmt.Fprintf(w, "Mint:        %s\n", ev.Mint)
		if ev.PriceSOL != nil {
			fmt.Fprintf(w, "Price:       %.2f SOL\n", *ev.PriceSOL)
		}
		fmt.Fprintf(w, "Buyer:       %s\n", ev.Buyer)
		fmt.Fprintf(w, "Seller:      %s\n", ev.Seller)
		fmt.Fprintf(w, "Marketplace: %s\n", ev.Marketplace)
	}
	if ev.ValidationError != "" {
		fmt.Fprintf(w, "Warning: %s\n", ev.ValidationError)
	}
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}
