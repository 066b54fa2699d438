package messaging

import (
	"context"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// JetStreamMessageHandler is a function that handles a JetStream message
type JetStreamMessageHandler func(msg jetstream.Msg) error

// EnsureStream creates the stream if needed; CreateOrUpdateStream is
// idempotent so repeated startup calls are safe.
func EnsureStream(ctx context.Context, client *NatsBroker, name string, subjects []string) (jetstream.Stream, error) {
	return client.CreateStream(ctx, jetstream.StreamConfig{
		Name:     name,
		Subjects: subjects,
		Storage:  jetstream.FileStorage,
	})
}

// GetJetStreamConsumer returns a durable consumer for one subject, creating
// the stream and consumer when they do not exist yet.
func GetJetStreamConsumer(client *NatsBroker, streamName, subject string) (jetstream.Consumer, error) {
	if client == nil || client.js == nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// The stream is ensured with a token wildcard so consumers of sibling
	// subjects never shrink each other's subject set.
	wildcard := strings.SplitN(subject, ".", 2)[0] + ".>"
	stream, err := EnsureStream(ctx, client, streamName, []string{wildcard})
	if err != nil {
		return nil, err
	}

	consumerName := "consumer_" + strings.ReplaceAll(subject, ".", "-")
	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          consumerName,
		Durable:       consumerName,
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("stream", streamName).
		Str("subject", subject).
		Str("consumer", consumerName).
		Msg("Got JetStream pull consumer")

	return consumer, nil
}

// ConsumeSubject wires a handler to a durable consumer on the given subject.
// Messages are acked on success and nacked for redelivery on handler error.
func ConsumeSubject(client *NatsBroker, streamName, subject string, handler JetStreamMessageHandler) (jetstream.ConsumeContext, error) {
	consumer, err := GetJetStreamConsumer(client, streamName, subject)
	if err != nil {
		return nil, err
	}
	if consumer == nil {
		return nil, nil
	}

	return consumer.Consume(func(msg jetstream.Msg) {
		if err := handler(msg); err != nil {
			log.Error().Err(err).Str("subject", msg.Subject()).Msg("Message handler failed")
			if nakErr := msg.Nak(); nakErr != nil {
				log.Warn().Err(nakErr).Msg("Failed to nak message")
			}
			return
		}
		if ackErr := msg.Ack(); ackErr != nil {
			log.Warn().Err(ackErr).Msg("Failed to ack message")
		}
	})
}
