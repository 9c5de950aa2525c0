package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"gitlab.com/halodesk/api/halodesk-wa-delivery/pkg/logger"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/pkg/utils"
)

// Event kinds published on the delivery stream.
const (
	KindMessageSent     = "message_sent"
	KindMessageFailed   = "message_failed"
	KindMessageInbound  = "message_inbound"
	KindStatusChanged   = "status_changed"
	KindJobCompleted    = "job_completed"
	KindJobFailed       = "job_failed"
	KindJobCancelled    = "job_cancelled"
)

// Publisher emits domain events for downstream consumers.
type Publisher interface {
	// Publish emits one event for a workspace. Publishing is best effort;
	// implementations log failures instead of propagating them into the
	// delivery path.
	Publish(ctx context.Context, workspaceID, kind string, payload interface{})
	Close()
}

// NatsPublisher publishes domain events to a JetStream stream using subjects
// of the form <prefix>.<workspace>.<kind>.
type NatsPublisher struct {
	nc            *nats.Conn
	js            nats.JetStreamContext
	subjectPrefix string
}

// NewNatsPublisher connects to NATS and ensures the delivery stream exists.
func NewNatsPublisher(url, streamName, subjectPrefix string) (*NatsPublisher, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Log.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Log.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(nc *nats.Conn, s *nats.Subscription, err error) {
			logger.Log.Error("NATS error", zap.Error(err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	p := &NatsPublisher{nc: nc, js: js, subjectPrefix: subjectPrefix}
	if err := p.setupStream(streamName); err != nil {
		nc.Close()
		return nil, err
	}
	return p, nil
}

func (p *NatsPublisher) setupStream(streamName string) error {
	subjects := []string{p.subjectPrefix + ".>"}
	streamConfig := &nats.StreamConfig{
		Name:      streamName,
		Subjects:  subjects,
		Retention: nats.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
		Storage:   nats.FileStorage,
	}

	stream, err := p.js.StreamInfo(streamName)
	if err != nil && !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("failed to get stream info for '%s': %w", streamName, err)
	}
	if stream == nil {
		if _, err := p.js.AddStream(streamConfig); err != nil {
			return fmt.Errorf("failed to add stream '%s': %w", streamName, err)
		}
		logger.Log.Info("Created stream",
			zap.String("name", streamName), zap.Any("subjects", subjects))
	}
	return nil
}

type eventEnvelope struct {
	Kind        string      `json:"kind"`
	WorkspaceID string      `json:"workspace_id"`
	OccurredAt  time.Time   `json:"occurred_at"`
	Payload     interface{} `json:"payload"`
}

// Publish emits one event. Failures are logged and swallowed so that a NATS
// outage never stalls message delivery.
func (p *NatsPublisher) Publish(ctx context.Context, workspaceID, kind string, payload interface{}) {
	subject := fmt.Sprintf("%s.%s.%s", p.subjectPrefix, workspaceID, kind)
	data := utils.MustMarshalJSON(eventEnvelope{
		Kind:        kind,
		WorkspaceID: workspaceID,
		OccurredAt:  utils.Now(),
		Payload:     payload,
	})

	if _, err := p.js.Publish(subject, data); err != nil {
		logger.FromContext(ctx).Warn("Failed to publish domain event",
			zap.String("subject", subject), zap.Error(err))
	}
}

// Close drains the underlying connection.
func (p *NatsPublisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
	}
}

// NoopPublisher discards events. Used when NATS is not configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, workspaceID, kind string, payload interface{}) {}

func (NoopPublisher) Close() {}
