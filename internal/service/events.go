package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/algoprep/algoprep-api/internal/dto"
	"github.com/algoprep/algoprep-api/internal/observability"
)

const (
	busKindChat           = "chat_message"
	busKindTicketsUpdated = "tickets_updated"
)

// chatRoom names the hub room for one question's discussion.
func chatRoom(questionID uint) string {
	return fmt.Sprintf("chat:%d", questionID)
}

type busEvent struct {
	Source  string                   `json:"source"`
	Kind    string                   `json:"kind"`
	Message *dto.ChatMessageResponse `json:"message,omitempty"`
	SentAt  time.Time                `json:"sent_at"`
}

// EventBus delivers chat messages and tickets-updated invalidations to local
// websocket clients and fans them out across nodes via Redis pub/sub and a
// NATS queue subscription. Both transports are optional; events originating
// on this node are filtered out on the consume side.
type EventBus struct {
	hub         *Hub
	redis       *redis.Client
	redisStream string
	nats        *nats.Conn
	natsSubject string
	logger      zerolog.Logger
	nodeID      string
}

// NewEventBus constructs the realtime event bus.
func NewEventBus(hub *Hub, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) *EventBus {
	stream := ""
	subject := ""
	if channelBase != "" {
		stream = channelBase + ":realtime"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".realtime"
	}

	return &EventBus{
		hub:         hub,
		redis:       redisClient,
		redisStream: stream,
		nats:        natsConn,
		natsSubject: subject,
		logger:      logger.With().Str("component", "event_bus").Logger(),
		nodeID:      uuid.NewString(),
	}
}

// Start launches the cross-node consumers. Safe to call with neither
// transport configured.
func (b *EventBus) Start(ctx context.Context) {
	if b.redis != nil && b.redisStream != "" {
		go b.consumeRedis(ctx)
	}
	if b.nats != nil && b.natsSubject != "" {
		go b.consumeNATS(ctx)
	}
}

// PublishChatMessage pushes a decrypted message to the question's room and
// fans it out to peer nodes.
func (b *EventBus) PublishChatMessage(ctx context.Context, message dto.ChatMessageResponse) {
	b.deliverChat(message)

	if err := b.publish(ctx, busEvent{
		Source:  b.nodeID,
		Kind:    busKindChat,
		Message: &message,
		SentAt:  time.Now().UTC(),
	}); err != nil {
		b.logger.Warn().Err(err).Msg("failed to publish chat event")
	}
}

// PublishTicketsUpdated broadcasts the payloadless invalidation signal to all
// connected clients and peer nodes. Clients react by re-fetching their lists.
func (b *EventBus) PublishTicketsUpdated(ctx context.Context) {
	b.deliverTicketsUpdated()

	if err := b.publish(ctx, busEvent{
		Source: b.nodeID,
		Kind:   busKindTicketsUpdated,
		SentAt: time.Now().UTC(),
	}); err != nil {
		b.logger.Warn().Err(err).Msg("failed to publish tickets-updated event")
	}
}

func (b *EventBus) deliverChat(message dto.ChatMessageResponse) {
	envelope, err := NewEnvelope(dto.EventChatMessage, message)
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to build chat envelope")
		return
	}
	b.hub.BroadcastRoom(chatRoom(message.QuestionID), envelope, nil)
}

func (b *EventBus) deliverTicketsUpdated() {
	observability.TicketsUpdatedBroadcasts().Inc()
	b.hub.BroadcastAll(dto.RealtimeEnvelope{Event: dto.EventTicketsUpdated})
}

func (b *EventBus) publish(ctx context.Context, event busEvent) error {
	if (b.redis == nil || b.redisStream == "") && (b.nats == nil || b.natsSubject == "") {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if b.redis != nil && b.redisStream != "" {
		if err := b.redis.Publish(ctx, b.redisStream, payload).Err(); err != nil {
			return err
		}
	}

	if b.nats != nil && b.natsSubject != "" {
		if err := b.nats.Publish(b.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

func (b *EventBus) consumeRedis(ctx context.Context) {
	pubsub := b.redis.Subscribe(ctx, b.redisStream)
	defer func() {
		_ = pubsub.Close()
	}()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			b.logger.Error().Err(err).Msg("realtime redis subscription closed")
			return
		}
		b.handleEvent([]byte(msg.Payload))
	}
}

func (b *EventBus) consumeNATS(ctx context.Context) {
	sub, err := b.nats.QueueSubscribe(b.natsSubject, "algoprep-realtime", func(msg *nats.Msg) {
		b.handleEvent(msg.Data)
	})
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to subscribe to nats realtime subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			b.logger.Warn().Err(err).Msg("failed to drain realtime nats subscription")
		}
	}()
}

func (b *EventBus) handleEvent(data []byte) {
	var event busEvent
	if err := json.Unmarshal(data, &event); err != nil {
		b.logger.Warn().Err(err).Msg("invalid realtime event")
		return
	}

	if event.Source == b.nodeID {
		return
	}

	switch event.Kind {
	case busKindChat:
		if event.Message != nil {
			b.deliverChat(*event.Message)
		}
	case busKindTicketsUpdated:
		b.deliverTicketsUpdated()
	default:
		b.logger.Warn().Str("kind", event.Kind).Msg("unknown realtime event kind")
	}
}

// NewEnvelope marshals a payload into the websocket frame format.
func NewEnvelope(event string, payload interface{}) (dto.RealtimeEnvelope, error) {
	if payload == nil {
		return dto.RealtimeEnvelope{Event: event}, nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return dto.RealtimeEnvelope{}, err
	}

	return dto.RealtimeEnvelope{Event: event, Data: data}, nil
}
