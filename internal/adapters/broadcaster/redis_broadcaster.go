package broadcaster

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/JoniWarrior/Auction-System-Backend/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func auctionChannel(auctionID uuid.UUID) string {
	return fmt.Sprintf("auction:%s", auctionID.String())
}

func userChannel(userID uuid.UUID) string {
	return fmt.Sprintf("user:%s", userID.String())
}

// RedisBroadcaster implements the broadcaster interface using Redis pub/sub.
// Each client owns one pubsub connection carrying every channel it joined,
// auction-wide and user-targeted alike.
type RedisBroadcaster struct {
	client      *redis.Client
	subscribers map[string]chan outbound.Event // clientID -> local channel
	pubsubs     map[string]*redis.PubSub       // clientID -> pubsub instance
	channels    map[string]map[string]bool     // clientID -> channel name -> subscribed
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	logger      zerolog.Logger
}

type RedisBroadcasterParams struct {
	RedisClient *redis.Client
	Logger      zerolog.Logger
}

func NewBroadcaster(params RedisBroadcasterParams) *RedisBroadcaster {
	ctx, cancel := context.WithCancel(context.Background())

	return &RedisBroadcaster{
		client:      params.RedisClient,
		subscribers: make(map[string]chan outbound.Event),
		pubsubs:     make(map[string]*redis.PubSub),
		channels:    make(map[string]map[string]bool),
		ctx:         ctx,
		cancel:      cancel,
		logger:      params.Logger.With().Str("component", "redis_broadcaster").Logger(),
	}
}

// Subscribe subscribes a client to events for a specific auction
func (r *RedisBroadcaster) Subscribe(ctx context.Context, auctionID uuid.UUID, clientID string, eventChan chan outbound.Event) error {
	return r.subscribeChannel(ctx, auctionChannel(auctionID), clientID, eventChan)
}

// SubscribeUser subscribes a client to events addressed to a single user
func (r *RedisBroadcaster) SubscribeUser(ctx context.Context, userID uuid.UUID, clientID string, eventChan chan outbound.Event) error {
	return r.subscribeChannel(ctx, userChannel(userID), clientID, eventChan)
}

func (r *RedisBroadcaster) subscribeChannel(ctx context.Context, channelName, clientID string, eventChan chan outbound.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.channels[clientID] != nil && r.channels[clientID][channelName] {
		r.logger.Info().
			Str("client_id", clientID).
			Str("channel", channelName).
			Msg("Client already subscribed to channel")
		return nil
	}

	// Store the event channel if this is the first subscription
	if r.subscribers[clientID] == nil {
		r.subscribers[clientID] = eventChan
	}

	if r.channels[clientID] == nil {
		r.channels[clientID] = make(map[string]bool)
	}
	r.channels[clientID][channelName] = true

	// Get or create pubsub connection for this client
	var pubsub *redis.PubSub
	if existingPubsub, exists := r.pubsubs[clientID]; exists {
		pubsub = existingPubsub
	} else {
		pubsub = r.client.Subscribe(ctx)
		r.pubsubs[clientID] = pubsub

		// Forward Redis messages to the client's local channel
		go r.listenForRedisMessages(pubsub, clientID, eventChan)
	}

	if err := pubsub.Subscribe(ctx, channelName); err != nil {
		r.logger.Error().Err(err).Str("client_id", clientID).Str("channel", channelName).Msg("Failed to subscribe to Redis channel")
		return err
	}

	r.logger.Info().
		Str("client_id", clientID).
		Str("channel", channelName).
		Msg("Client subscribed via Redis")
	return nil
}

// Unsubscribe unsubscribes a client from events for a specific auction
func (r *RedisBroadcaster) Unsubscribe(ctx context.Context, auctionID uuid.UUID, clientID string) error {
	return r.unsubscribeChannel(ctx, auctionChannel(auctionID), clientID)
}

// UnsubscribeUser unsubscribes a client from a user's channel
func (r *RedisBroadcaster) UnsubscribeUser(ctx context.Context, userID uuid.UUID, clientID string) error {
	return r.unsubscribeChannel(ctx, userChannel(userID), clientID)
}

func (r *RedisBroadcaster) unsubscribeChannel(ctx context.Context, channelName, clientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clientChannels, exists := r.channels[clientID]
	if !exists {
		return nil
	}

	delete(clientChannels, channelName)

	if len(clientChannels) == 0 {
		// Last subscription gone, tear the client down
		delete(r.channels, clientID)

		if eventChan, exists := r.subscribers[clientID]; exists {
			close(eventChan)
			delete(r.subscribers, clientID)
		}

		if pubsub, exists := r.pubsubs[clientID]; exists {
			if err := pubsub.Close(); err != nil {
				r.logger.Error().Err(err).Str("client_id", clientID).Msg("Error closing Redis pubsub for client")
			}
			delete(r.pubsubs, clientID)
		}
	} else if pubsub, exists := r.pubsubs[clientID]; exists {
		if err := pubsub.Unsubscribe(ctx, channelName); err != nil {
			r.logger.Error().Err(err).Str("client_id", clientID).Str("channel", channelName).Msg("Error unsubscribing from Redis channel")
		}
	}

	r.logger.Info().
		Str("client_id", clientID).
		Str("channel", channelName).
		Msg("Client unsubscribed from channel")
	return nil
}

// Publish publishes an event to all subscribers of an auction via Redis
func (r *RedisBroadcaster) Publish(ctx context.Context, auctionID uuid.UUID, event outbound.Event) error {
	return r.publishChannel(ctx, auctionChannel(auctionID), event)
}

// PublishToUser publishes an event to a single user's channel
func (r *RedisBroadcaster) PublishToUser(ctx context.Context, userID uuid.UUID, event outbound.Event) error {
	return r.publishChannel(ctx, userChannel(userID), event)
}

func (r *RedisBroadcaster) publishChannel(ctx context.Context, channelName string, event outbound.Event) error {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to marshal event")
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	result := r.client.Publish(ctx, channelName, eventJSON)
	if err := result.Err(); err != nil {
		r.logger.Error().Err(err).Str("channel", channelName).Msg("Failed to publish to Redis")
		return fmt.Errorf("failed to publish to Redis: %w", err)
	}

	r.logger.Info().
		Str("event_type", string(event.Type)).
		Str("channel", channelName).
		Int64("subscriber_count", result.Val()).
		Msg("Published event")
	return nil
}

// listenForRedisMessages forwards Redis messages to the client's local channel
func (r *RedisBroadcaster) listenForRedisMessages(pubsub *redis.PubSub, clientID string, localChan chan outbound.Event) {
	defer func() {
		if err := recover(); err != nil {
			r.logger.Error().Interface("panic", err).Str("client_id", clientID).Msg("Redis message listener panic for client")
		}
	}()

	ch := pubsub.Channel()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				r.logger.Info().Str("client_id", clientID).Msg("Redis channel closed for client")
				return
			}

			var event outbound.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				r.logger.Error().Err(err).Str("client_id", clientID).Msg("Failed to unmarshal Redis message for client")
				continue
			}

			select {
			case localChan <- event:
			default:
				r.logger.Warn().Str("client_id", clientID).Msg("Local channel full for client, dropping event")
			}

		case <-r.ctx.Done():
			r.logger.Info().Str("client_id", clientID).Msg("Redis broadcaster context cancelled for client")
			return
		}
	}
}

func (r *RedisBroadcaster) Close() error {
	r.cancel()

	r.mu.Lock()
	defer r.mu.Unlock()

	for clientID, eventChan := range r.subscribers {
		close(eventChan)
		delete(r.subscribers, clientID)
	}

	for clientID, pubsub := range r.pubsubs {
		if err := pubsub.Close(); err != nil {
			r.logger.Error().Err(err).Str("client_id", clientID).Msg("Error closing Redis pubsub for client")
		}
		delete(r.pubsubs, clientID)
	}

	return r.client.Close()
}

func (r *RedisBroadcaster) IsSubscribed(ctx context.Context, auctionID uuid.UUID, clientID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clientChannels, exists := r.channels[clientID]
	if !exists {
		return false
	}

	return clientChannels[auctionChannel(auctionID)]
}
