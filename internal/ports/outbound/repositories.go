package outbound

import (
	"context"
	"time"

	"github.com/JoniWarrior/Auction-System-Backend/internal/domain/auction"
	"github.com/JoniWarrior/Auction-System-Backend/internal/domain/bid"
	"github.com/JoniWarrior/Auction-System-Backend/internal/domain/payment"
	"github.com/JoniWarrior/Auction-System-Backend/internal/domain/shared"

	"github.com/google/uuid"
)

// AuctionRepository defines the interface for auction data operations
type AuctionRepository interface {
	// Create creates a new auction
	Create(ctx context.Context, auction *auction.Auction) error

	// GetByID retrieves an auction by ID, excluding soft-deleted rows
	GetByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error)

	// List retrieves a list of auctions with optional status filter
	List(ctx context.Context, status *auction.Status, page, pageSize int) ([]*auction.Auction, error)

	// FindExpired retrieves auctions whose end time has passed and that are
	// not yet terminal, oldest first
	FindExpired(ctx context.Context, now time.Time, limit int) ([]*auction.Auction, error)

	// FindLiveByItemID retrieves pending or active auctions for an item
	FindLiveByItemID(ctx context.Context, itemID uuid.UUID) ([]*auction.Auction, error)

	// Update updates an auction
	Update(ctx context.Context, auction *auction.Auction) error

	// SoftDelete marks an auction deleted, preserving its bid history
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

// BidRepository defines the interface for bid ledger operations
type BidRepository interface {
	// RecordWithPriceUpdate atomically inserts the bid, links it to its
	// payment hold and writes the auction's new price and status. The caller
	// must hold the auction lock; the transaction only guarantees the commit
	// is all-or-nothing.
	RecordWithPriceUpdate(ctx context.Context, newBid *bid.Bid, auc *auction.Auction) error

	// GetByID retrieves a bid by ID with its bidder and hold loaded
	GetByID(ctx context.Context, id uuid.UUID) (*bid.Bid, error)

	// GetHighestBid retrieves the bid with the maximum amount for an auction,
	// ties broken by earliest creation, with bidder and hold loaded. This is
	// a direct query, never a reduce over a loaded collection.
	GetHighestBid(ctx context.Context, auctionID uuid.UUID) (*bid.Bid, error)

	// ListByAuction retrieves all bids for an auction, highest first
	ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]*bid.Bid, error)

	// ListByBidder retrieves all bids placed by a bidder, newest first
	ListByBidder(ctx context.Context, bidderID uuid.UUID) ([]*bid.Bid, error)

	// SoftDelete marks a bid deleted for audit purposes
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

// HoldRepository defines the interface for payment hold records
type HoldRepository interface {
	// Create creates a new payment hold record
	Create(ctx context.Context, hold *payment.Hold) error

	// GetByID retrieves a hold by ID
	GetByID(ctx context.Context, id uuid.UUID) (*payment.Hold, error)

	// GetBySdkOrderID retrieves a hold by its external gateway order id
	GetBySdkOrderID(ctx context.Context, sdkOrderID string) (*payment.Hold, error)

	// Update updates a hold
	Update(ctx context.Context, hold *payment.Hold) error
}

// ItemRepository defines the interface for item data operations
type ItemRepository interface {
	// Create creates a new item
	Create(ctx context.Context, item *shared.Item) error

	// GetByID retrieves an item by ID
	GetByID(ctx context.Context, id uuid.UUID) (*shared.Item, error)

	// Update updates an item
	Update(ctx context.Context, item *shared.Item) error
}

// UserRepository defines the interface for user data operations
type UserRepository interface {
	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id uuid.UUID) (*shared.User, error)

	// Create creates a new user
	Create(ctx context.Context, user *shared.User) error
}
