package app

import (
	"context"
	"errors"
	"time"

	"github.com/JoniWarrior/Auction-System-Backend/internal/domain/auction"
	"github.com/JoniWarrior/Auction-System-Backend/internal/domain/bid"
	"github.com/JoniWarrior/Auction-System-Backend/internal/domain/shared"
	"github.com/JoniWarrior/Auction-System-Backend/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AuctionBiddingHelper holds the bidding checks and the settlement core
// shared by the bid and auction services. Every method that writes assumes
// the caller already holds the auction's resource lock.
type AuctionBiddingHelper struct {
	auctionRepo outbound.AuctionRepository
	bidRepo     outbound.BidRepository
	gateway     outbound.PaymentGateway
	logger      zerolog.Logger
}

type AuctionBiddingHelperParams struct {
	AuctionRepo outbound.AuctionRepository
	BidRepo     outbound.BidRepository
	Gateway     outbound.PaymentGateway
	Logger      zerolog.Logger
}

// NewAuctionBiddingHelper creates a new auction bidding helper
func NewAuctionBiddingHelper(params AuctionBiddingHelperParams) *AuctionBiddingHelper {
	return &AuctionBiddingHelper{
		auctionRepo: params.AuctionRepo,
		bidRepo:     params.BidRepo,
		gateway:     params.Gateway,
		logger:      params.Logger.With().Str("component", "auction_bidding_helper").Logger(),
	}
}

// ValidateForBidding loads the auction and checks it can accept a bid from
// bidderID. An auction found past its end time is settled on the spot, so a
// late bid never wins a race against the expiry sweep; the settlement result
// comes back alongside ErrAuctionExpired so the caller can announce the close.
func (h *AuctionBiddingHelper) ValidateForBidding(ctx context.Context, auctionID, bidderID uuid.UUID) (*auction.Auction, *shared.SettlementResult, error) {
	auc, err := h.auctionRepo.GetByID(ctx, auctionID)
	if err != nil {
		h.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Auction not found")
		return nil, nil, shared.ErrAuctionNotFound
	}

	if auc.OwnerID == bidderID {
		h.logger.Warn().Str("auction_id", auctionID.String()).Str("user_id", bidderID.String()).Msg("Owner attempted to bid on own auction")
		return nil, nil, shared.ErrSelfBidding
	}

	switch auc.Status {
	case auction.StatusFinished:
		return nil, nil, shared.ErrAuctionFinished
	case auction.StatusCancelled:
		return nil, nil, shared.ErrAuctionCancelled
	}

	if auc.IsExpired(time.Now()) {
		h.logger.Info().Str("auction_id", auctionID.String()).Msg("Auction expired, settling before rejecting bid")
		settled, err := h.Settle(ctx, auc)
		if err != nil {
			h.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to settle expired auction on bid path")
			return nil, nil, shared.ErrAuctionExpired
		}
		return nil, settled, shared.ErrAuctionExpired
	}

	return auc, nil, nil
}

// GetHighestBid returns the auction's highest bid, or nil when no bids exist
func (h *AuctionBiddingHelper) GetHighestBid(ctx context.Context, auctionID uuid.UUID) (*bid.Bid, error) {
	highest, err := h.bidRepo.GetHighestBid(ctx, auctionID)
	if err != nil {
		if errors.Is(err, shared.ErrNoBidsFound) {
			return nil, nil
		}
		return nil, err
	}
	return highest, nil
}

// ApplyBid commits an accepted bid: the bid row, its hold link and the
// auction's new price land in one transaction. Returns the stored bid with
// its bidder and hold loaded.
func (h *AuctionBiddingHelper) ApplyBid(ctx context.Context, auc *auction.Auction, newBid *bid.Bid, isFirstBid bool) (*bid.Bid, error) {
	auc.ApplyBid(newBid.Amount, isFirstBid)

	if err := h.bidRepo.RecordWithPriceUpdate(ctx, newBid, auc); err != nil {
		h.logger.Error().Err(err).Str("bid_id", newBid.ID.String()).Msg("Failed to record bid")
		return nil, err
	}

	stored, err := h.bidRepo.GetByID(ctx, newBid.ID)
	if err != nil {
		h.logger.Error().Err(err).Str("bid_id", newBid.ID.String()).Msg("Failed to reload recorded bid")
		return nil, err
	}

	return stored, nil
}

// Settle finishes an auction exactly once. A second call on a finished
// auction reports the recorded outcome without touching the gateway again.
// The winner's hold capture is best-effort: a gateway failure is logged and
// reconciled later, never a reason to leave the auction open.
func (h *AuctionBiddingHelper) Settle(ctx context.Context, auc *auction.Auction) (*shared.SettlementResult, error) {
	if auc.IsFinished() {
		return h.recordedOutcome(ctx, auc)
	}

	highest, err := h.GetHighestBid(ctx, auc.ID)
	if err != nil {
		return nil, err
	}

	if highest == nil {
		auc.Close(nil, auc.StartingPrice)
		if err := h.auctionRepo.Update(ctx, auc); err != nil {
			return nil, err
		}

		h.logger.Info().Str("auction_id", auc.ID.String()).Msg("Auction settled with no bids")
		return &shared.SettlementResult{
			AuctionID:     auc.ID,
			WinningAmount: auc.StartingPrice,
			Status:        string(auction.StatusFinished),
		}, nil
	}

	if highest.Hold != nil && highest.Hold.SdkOrderID != nil && highest.Hold.IsOnHold() {
		if err := h.gateway.Capture(ctx, *highest.Hold.SdkOrderID, highest.Amount); err != nil {
			h.logger.Error().Err(err).
				Str("auction_id", auc.ID.String()).
				Str("sdk_order_id", *highest.Hold.SdkOrderID).
				Msg("Failed to capture winning hold, auction closes anyway")
		}
	}

	auc.Close(&highest.ID, highest.Amount)
	if err := h.auctionRepo.Update(ctx, auc); err != nil {
		return nil, err
	}

	h.logger.Info().
		Str("auction_id", auc.ID.String()).
		Str("winner_id", highest.BidderID.String()).
		Str("final_price", highest.Amount.String()).
		Msg("Auction settled")

	return &shared.SettlementResult{
		AuctionID:     auc.ID,
		WinnerID:      &highest.BidderID,
		WinningBidID:  &highest.ID,
		WinningAmount: highest.Amount,
		Status:        string(auction.StatusFinished),
	}, nil
}

// recordedOutcome rebuilds the settlement result of an already finished
// auction from its stored state
func (h *AuctionBiddingHelper) recordedOutcome(ctx context.Context, auc *auction.Auction) (*shared.SettlementResult, error) {
	result := &shared.SettlementResult{
		AuctionID:     auc.ID,
		WinningBidID:  auc.WinningBidID,
		WinningAmount: auc.CurrentPrice,
		Status:        string(auction.StatusFinished),
	}

	if auc.WinningBidID != nil {
		winning, err := h.bidRepo.GetByID(ctx, *auc.WinningBidID)
		if err != nil {
			return nil, err
		}
		result.WinnerID = &winning.BidderID
	}

	return result, nil
}
