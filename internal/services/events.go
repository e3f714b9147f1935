package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"skilltrack-backend/internal/models"
)

// Publisher delivers live events to a user's connected clients.
type Publisher interface {
	Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) error
}

type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", msg.Type, err)
	}
	return p.client.Publish(ctx, models.UserUpdatesChannel(userID), data).Err()
}

// NopPublisher drops events; used when Redis is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, uuid.UUID, models.WSMessage) error { return nil }

// publish is fire-and-forget: the state change is already committed when events go out.
func publish(ctx context.Context, p Publisher, userID uuid.UUID, eventType string, payload interface{}) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, userID, models.WSMessage{Type: eventType, Payload: payload}); err != nil {
		log.Printf("events: failed to publish %s for user %s: %v", eventType, userID, err)
	}
}
