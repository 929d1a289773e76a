package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/luxabot/service/mirror"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/urfave/cli/v2"
)

func mirrorCommands() *cli.Command {
	natsFlag := &cli.StringFlag{
		Name:    "nats-url",
		Usage:   "NATS server URL",
		EnvVars: []string{"NATS_URL"},
		Value:   "nats://localhost:4222",
	}

	return &cli.Command{
		Name:  "mirror",
		Usage: "Inspect relayed events on the NATS mirror",
		Subcommands: []*cli.Command{
			{
				Name:      "subscribe",
				Usage:     "Stream relayed events from JetStream",
				ArgsUsage: "[transaction|nft_sale]",
				Description: `Stream events the relay mirrored to NATS JetStream.

Events are published to the subject relay.{kind}. With no argument all kinds are shown.

Example:
  luxabot mirror subscribe nft_sale --json`,
				Flags: []cli.Flag{
					natsFlag,
					&cli.BoolFlag{
						Name:    "durable",
						Aliases: []string{"d"},
						Usage:   "Create a durable consumer (survives restarts)",
					},
					&cli.StringFlag{
						Name:  "consumer-name",
						Usage: "Consumer name (required for durable)",
						Value: "luxabot-cli",
					},
				},
				Action: func(c *cli.Context) error {
					subject, err := subjectFilter(c.Args().First())
					if err != nil {
						return err
					}
					return streamEvents(c, subject)
				},
			},
			{
				Name:  "inspect-stream",
				Usage: "Inspect the " + mirror.StreamName + " JetStream stream",
				Flags: []cli.Flag{natsFlag},
				Action: func(c *cli.Context) error {
					nc, err := nats.Connect(c.String("nats-url"))
					if err != nil {
						return fmt.Errorf("failed to connect to NATS: %w", err)
					}
					defer nc.Close()

					js, err := jetstream.New(nc)
					if err != nil {
						return fmt.Errorf("failed to create JetStream context: %w", err)
					}

					stream, err := js.Stream(context.Background(), mirror.StreamName)
					if err != nil {
						return fmt.Errorf("failed to get stream: %w", err)
					}
					info, err := stream.Info(context.Background())
					if err != nil {
						return fmt.Errorf("failed to get stream info: %w", err)
					}

					if c.Bool("json") {
						return writeJSON(c.App.Writer, info)
					}
					w := c.App.Writer
					fmt.Fprintf(w, "Stream: %s\n", info.Config.Name)
					fmt.Fprintf(w, "Subjects:     %v\n", info.Config.Subjects)
					fmt.Fprintf(w, "Messages:     %d\n", info.State.Msgs)
					fmt.Fprintf(w, "Bytes:        %d\n", info.State.Bytes)
					fmt.Fprintf(w, "Consumers:    %d\n", info.State.Consumers)
					fmt.Fprintf(w, "Max Age:      %s\n", info.Config.MaxAge)
					return nil
				},
			},
		},
	}
}

// subjectFilter maps an optional kind argument to a JetStream subject filter.
func subjectFilter(kind string) (string, error) {
	switch kind {
	case "":
		return "relay.*", nil
	case "transaction", "nft_sale":
		return "relay." + kind, nil
	default:
		return "", fmt.Errorf("unknown event kind %q: must be transaction or nft_sale", kind)
	}
}

func streamEvents(c *cli.Context, subject string) error {
	natsURL := c.String("nats-url")
	jsonOutput := c.Bool("json")
	w := c.App.Writer

	nc, err := nats.Connect(natsURL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	consumerConfig := jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	}
	if c.Bool("durable") {
		consumerConfig.Durable = c.String("consumer-name")
		consumerConfig.Name = c.String("consumer-name")
	}

	cons, err := js.CreateOrUpdateConsumer(context.Background(), mirror.StreamName, consumerConfig)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	if !jsonOutput {
		fmt.Fprintf(w, "📡 Subscribing to: %s\n", subject)
		fmt.Fprintf(w, "   NATS: %s\n", natsURL)
		fmt.Fprintf(w, "\nWaiting for events... (Ctrl-C to exit)\n\n")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	msgChan := make(chan jetstream.Msg, 10)
	consumeCtx, err := cons.Consume(func(msg jetstream.Msg) {
		msgChan <- msg
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	defer consumeCtx.Stop()

	count := 0
	for {
		select {
		case msg := <-msgChan:
			var event mirror.Event
			if err := json.Unmarshal(msg.Data(), &event); err != nil {
				fmt.Fprintf(c.App.ErrWriter, "Error parsing event: %v\n", err)
				msg.Ack()
				continue
			}
			count++
			if jsonOutput {
				data, _ := json.Marshal(event)
				fmt.Fprintln(w, string(data))
			} else {
				printMirrorEvent(w, count, &event)
			}
			msg.Ack()

		case <-sigChan:
			if !jsonOutput {
				fmt.Fprintf(w, "\n✅ Received %d events\n", count)
			}
			return nil
		}
	}
}

func printMirrorEvent(w io.Writer, n int, event *mirror.Event) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Event #%d (%s)\n", n, event.Kind)
	fmt.Fprintf(w, "─────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Signature:    %s\n", event.Signature)
	fmt.Fprintf(w, "Shape:        %s\n", event.Shape)
	if event.ExplorerURL != "" {
		fmt.Fprintf(w, "Explorer:     %s\n", event.ExplorerURL)
	}
	if event.Mint != "" {
		fmt.Fprintf(w, "Mint:         %s\n", event.Mint)
	}
	if event.PriceSOL != nil {
		fmt.Fprintf(w, "Price:        %.2f SOL\n", *event.PriceSOL)
	}
	if event.Marketplace != "" {
		fmt.Fprintf(w, "Marketplace:  %s\n", event.Marketplace)
	}
	fmt.Fprintf(w, "Received:     %s\n\n", event.ReceivedAt.Format(time.RFC3339))
}
