package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
)

// KafkaMirror writes relay events to a Kafka topic, keyed by signature.
type KafkaMirror struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaMirror creates a synchronous producer for brokers.
func NewKafkaMirror(brokers []string, topic string) (*KafkaMirror, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewKafkaConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return &KafkaMirror{producer: producer, topic: topic}, nil
}

// NewKafkaConfig returns the producer configuration used by KafkaMirror.
// Network and metadata timeouts are short so an unreachable broker fails a
// publish in seconds instead of sarama's 30s defaults.
func NewKafkaConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.ClientID = "luxabot"
	config.Net.DialTimeout = 2 * time.Second
	config.Net.ReadTimeout = 5 * time.Second
	config.Net.WriteTimeout = 2 * time.Second
	config.Metadata.Retry.Max = 1
	config.Metadata.Retry.Backoff = 100 * time.Millisecond
	config.Metadata.Timeout = 5 * time.Second
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Timeout = 2 * time.Second
	config.Producer.Retry.Max = 0
	return config
}

func (k *KafkaMirror) Name() string { return "kafka" }

// Publish sends one message. The sync producer does not take a context, so
// the send runs in its own goroutine and Publish returns ctx.Err() if ctx
// ends first. The abandoned send is still bounded by the producer timeouts.
func (k *KafkaMirror) Publish(ctx context.Context, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal relay event: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		_, _, err := k.producer.SendMessage(&sarama.ProducerMessage{
			Topic: k.topic,
			Key:   sarama.StringEncoder(event.Signature),
			Value: sarama.ByteEncoder(data),
		})
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (k *KafkaMirror) Close() error { return k.producer.Close() }
