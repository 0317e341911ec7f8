package hcs

import (
	"context"
	"errors"
	"fmt"
	"time"

	hedera "github.com/hashgraph/hedera-sdk-go/v2"
	"github.com/rs/zerolog"
)

// PublisherOptions tune topic operations.
type PublisherOptions struct {
	Timeout time.Duration
}

// Publisher submits signal payloads to Hedera Consensus Service topics
// and can lazily provision a topic when an alert has none.
type Publisher struct {
	client *hedera.Client
	opts   PublisherOptions
	logger zerolog.Logger
}

// NewPublisher wraps a Hedera client.
func NewPublisher(client *hedera.Client, opts PublisherOptions, logger zerolog.Logger) *Publisher {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Publisher{
		client: client,
		opts:   opts,
		logger: logger.With().Str("component", "hcs_publisher").Logger(),
	}
}

// EnsureTopic creates a new consensus topic and returns its id.
func (p *Publisher) EnsureTopic(ctx context.Context, memo string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	deadline := p.opts.Timeout
	resp, err := hedera.NewTopicCreateTransaction().
		SetTopicMemo(memo).
		SetGrpcDeadline(&deadline).
		Execute(p.client)
	if err != nil {
		return "", fmt.Errorf("create topic: %w", err)
	}

	receipt, err := resp.GetReceipt(p.client)
	if err != nil {
		return "", fmt.Errorf("topic create receipt: %w", err)
	}
	if receipt.TopicID == nil {
		return "", errors.New("topic create receipt missing topic id")
	}

	topicID := receipt.TopicID.String()
	p.logger.Info().Str("topic_id", topicID).Str("memo", memo).Msg("provisioned consensus topic")
	return topicID, nil
}

// Publish submits an opaque payload to the topic and returns the
// receipt's per-topic sequence number.
func (p *Publisher) Publish(ctx context.Context, topicID string, payload []byte) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	tid, err := hedera.TopicIDFromString(topicID)
	if err != nil {
		return 0, fmt.Errorf("parse topic id: %w", err)
	}

	deadline := p.opts.Timeout
	resp, err := hedera.NewTopicMessageSubmitTransaction().
		SetTopicID(tid).
		SetMessage(payload).
		SetGrpcDeadline(&deadline).
		Execute(p.client)
	if err != nil {
		return 0, fmt.Errorf("submit topic message: %w", err)
	}

	receipt, err := resp.GetReceipt(p.client)
	if err != nil {
		return 0, fmt.Errorf("topic message receipt: %w", err)
	}

	sequence := receipt.TopicSequenceNumber
	p.logger.Debug().Str("topic_id", topicID).Uint64("sequence", sequence).Msg("signal published")
	return sequence, nil
}
