package inbound

import (
	"context"

	"github.com/JoniWarrior/Auction-System-Backend/internal/domain/auction"
	"github.com/JoniWarrior/Auction-System-Backend/internal/domain/bid"
	"github.com/JoniWarrior/Auction-System-Backend/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AuctionService defines the interface for auction lifecycle operations
type AuctionService interface {
	// CreateAuction creates a new auction
	CreateAuction(ctx context.Context, req CreateAuctionRequest) (*auction.Auction, error)

	// GetAuction retrieves an auction by ID
	GetAuction(ctx context.Context, auctionID uuid.UUID) (*auction.Auction, error)

	// ListAuctions retrieves a list of auctions
	ListAuctions(ctx context.Context, req ListAuctionsRequest) ([]*auction.Auction, error)

	// CloseAuction settles an auction exactly once. requestingUserID is nil
	// for sweep-triggered closes and enforced as the owner otherwise.
	CloseAuction(ctx context.Context, auctionID uuid.UUID, requestingUserID *uuid.UUID) (*shared.SettlementResult, error)

	// CancelAuction cancels a pending or active auction, releasing any held funds
	CancelAuction(ctx context.Context, auctionID, requestingUserID uuid.UUID) error

	// FindBiddingsOfAuction retrieves the bids of an auction, highest first
	FindBiddingsOfAuction(ctx context.Context, auctionID uuid.UUID) ([]*bid.Bid, error)
}

// BidService defines the interface for bidding operations
type BidService interface {
	// PlaceBid places a new bid on an auction
	PlaceBid(ctx context.Context, req PlaceBidRequest) (*PlaceBidResult, error)

	// GetHighestBid retrieves the highest bid for an auction
	GetHighestBid(ctx context.Context, auctionID uuid.UUID) (*bid.Bid, error)

	// FindBidsByBidder retrieves the bids placed by a user
	FindBidsByBidder(ctx context.Context, bidderID uuid.UUID) ([]*bid.Bid, error)

	// DeleteBid soft-deletes a bid for audit purposes
	DeleteBid(ctx context.Context, bidID uuid.UUID) error
}

// request to create an auction
type CreateAuctionRequest struct {
	ItemID        uuid.UUID       `json:"item_id"`
	OwnerID       uuid.UUID       `json:"owner_id"`
	EndTime       string          `json:"end_time"`
	StartingPrice decimal.Decimal `json:"starting_price"`
}

// request to list auctions
type ListAuctionsRequest struct {
	Status   *auction.Status `json:"status,omitempty"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

// request to place a bid. The bid amount comes from the pre-created payment
// hold referenced by TransactionID; funds are already authorized when the bid
// is submitted.
type PlaceBidRequest struct {
	AuctionID     uuid.UUID `json:"auction_id"`
	BidderID      uuid.UUID `json:"bidder_id"`
	TransactionID uuid.UUID `json:"transaction_id"`
}

// PlaceBidResult carries the persisted bid and, when another bidder was
// superseded, the gateway order reference of their released hold
type PlaceBidResult struct {
	Bid                  *bid.Bid `json:"bidding"`
	SupersededSdkOrderID *string  `json:"previous_transaction,omitempty"`
}
