package outbound

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType represents the type of event being broadcasted
type EventType string

const (
	EventTypeNewBid           EventType = "newBid"
	EventTypeOutBid           EventType = "outBid"
	EventTypeBiddingIndicator EventType = "biddingIndicator"
	EventTypeAuctionClosed    EventType = "auctionClosed"
	EventTypeError            EventType = "error"
)

// Event represents a broadcast event
type Event struct {
	Type      EventType              `json:"type"`
	AuctionID uuid.UUID              `json:"auction_id"`
	Data      map[string]interface{} `json:"data"`
	Timestamp int64                  `json:"timestamp"`
}

// Broadcaster defines the interface for broadcasting auction events.
// All delivery is best-effort; publish failures are logged, never propagated
// into the committing call chain.
type Broadcaster interface {
	// Subscribe subscribes a client to events for a specific auction.
	// Events for every auction a client joins are delivered to the same channel.
	Subscribe(ctx context.Context, auctionID uuid.UUID, clientID string, eventChan chan Event) error

	// SubscribeUser subscribes a client to events addressed to a single user,
	// such as outbid notifications
	SubscribeUser(ctx context.Context, userID uuid.UUID, clientID string, eventChan chan Event) error

	// Unsubscribe unsubscribes a client from events for a specific auction
	Unsubscribe(ctx context.Context, auctionID uuid.UUID, clientID string) error

	// UnsubscribeUser unsubscribes a client from a user's channel
	UnsubscribeUser(ctx context.Context, userID uuid.UUID, clientID string) error

	// Publish publishes an event to all subscribers of an auction
	Publish(ctx context.Context, auctionID uuid.UUID, event Event) error

	// PublishToUser publishes an event to a single user's channel
	PublishToUser(ctx context.Context, userID uuid.UUID, event Event) error

	// IsSubscribed checks if a client is subscribed to an auction
	IsSubscribed(ctx context.Context, auctionID uuid.UUID, clientID string) bool
}

// OutbidEmail carries the payload of an outbid notification email
type OutbidEmail struct {
	AuctionTitle string
	NewBidAmount decimal.Decimal
}

// Mailer defines the interface for outbid email delivery
type Mailer interface {
	// SendOutbidEmail notifies a superseded bidder by email
	SendOutbidEmail(ctx context.Context, to string, data OutbidEmail) error
}
