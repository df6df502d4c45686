// Package pubsub announces refreshed snapshots on a Google Cloud Pub/Sub topic.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/JakeFAU/calfire-history/internal/dataset"
)

// Message is the JSON body published for every snapshot.
type Message struct {
	RunID      string    `json:"run_id"`
	CapturedAt time.Time `json:"captured_at"`
	Records    int       `json:"records"`
	Decision   string    `json:"decision"`
	Path       string    `json:"path,omitempty"`
}

type topic interface {
	Publish(ctx context.Context, msg *pubsub.Message) *pubsub.PublishResult
}

// Notifier wraps a Pub/Sub topic.
type Notifier struct {
	topic  topic
	logger *zap.Logger
}

// New creates a Notifier for the provided topic.
func New(t *pubsub.Topic, logger *zap.Logger) (*Notifier, error) {
	if t == nil {
		return nil, fmt.Errorf("pubsub topic is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{topic: t, logger: logger}, nil
}

// Publish implements dataset.Sink.
func (n *Notifier) Publish(ctx context.Context, pub dataset.Publication) error {
	data, err := json.Marshal(Message{
		RunID:      pub.RunID.String(),
		CapturedAt: pub.Snapshot.CapturedAt.UTC(),
		Records:    len(pub.Snapshot.Records),
		Decision:   string(pub.Decision),
		Path:       pub.Path,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	msg := &pubsub.Message{Data: data, Attributes: map[string]string{"decision": string(pub.Decision)}}
	otel.GetTextMapPropagator().Inject(ctx, &pubsubCarrier{attrs: msg.Attributes})

	id, err := n.topic.Publish(ctx, msg).Get(ctx)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	n.logger.Info("snapshot announced", zap.String("message_id", id), zap.String("run_id", pub.RunID.String()))
	return nil
}

// pubsubCarrier implements propagation.TextMapCarrier for Pub/Sub attributes.
type pubsubCarrier struct {
	attrs map[string]string
}

func (c *pubsubCarrier) Get(key string) string {
	return c.attrs[key]
}

func (c *pubsubCarrier) Set(key, value string) {
	c.attrs[key] = value
}

func (c *pubsubCarrier) Keys() []string {
	keys := make([]string, 0, len(c.attrs))
	for k := range c.attrs {
		keys = append(keys, k)
	}
	return keys
}
