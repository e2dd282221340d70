package app

import (
	"context"
	"errors"
	"time"

	"github.com/JoniWarrior/Auction-System-Backend/internal/config"
	"github.com/JoniWarrior/Auction-System-Backend/internal/domain/auction"
	"github.com/JoniWarrior/Auction-System-Backend/internal/domain/bid"
	"github.com/JoniWarrior/Auction-System-Backend/internal/domain/shared"
	"github.com/JoniWarrior/Auction-System-Backend/internal/ports/inbound"
	"github.com/JoniWarrior/Auction-System-Backend/internal/ports/outbound"

	"github.com/alitto/pond"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BidService implements the bidding use cases
type BidService struct {
	helper      *AuctionBiddingHelper
	bidRepo     outbound.BidRepository
	userRepo    outbound.UserRepository
	holdRepo    outbound.HoldRepository
	itemRepo    outbound.ItemRepository
	gateway     outbound.PaymentGateway
	locker      outbound.ResourceLocker
	broadcaster outbound.Broadcaster
	mailer      outbound.Mailer
	sideEffects *pond.WorkerPool
	logger      zerolog.Logger
}

type BidServiceParams struct {
	Helper      *AuctionBiddingHelper
	BidRepo     outbound.BidRepository
	UserRepo    outbound.UserRepository
	HoldRepo    outbound.HoldRepository
	ItemRepo    outbound.ItemRepository
	Gateway     outbound.PaymentGateway
	Locker      outbound.ResourceLocker
	Broadcaster outbound.Broadcaster
	Mailer      outbound.Mailer
	Logger      zerolog.Logger
}

// NewBidService creates a new bid service
func NewBidService(params BidServiceParams) *BidService {
	return &BidService{
		helper:      params.Helper,
		bidRepo:     params.BidRepo,
		userRepo:    params.UserRepo,
		holdRepo:    params.HoldRepo,
		itemRepo:    params.ItemRepo,
		gateway:     params.Gateway,
		locker:      params.Locker,
		broadcaster: params.Broadcaster,
		mailer:      params.Mailer,
		sideEffects: pond.New(config.SideEffectWorkers, config.SideEffectCapacity),
		logger:      params.Logger.With().Str("component", "bid_service").Logger(),
	}
}

// Stop drains the side effect pool. Call on shutdown.
func (s *BidService) Stop() {
	s.sideEffects.StopAndWait()
}

// supersededBidder carries what the side effect tasks need about the bidder
// who just lost the highest spot
type supersededBidder struct {
	userID     uuid.UUID
	email      string
	sdkOrderID *string
}

// PlaceBid places a new bid on an auction. The whole read-validate-write
// sequence runs under the auction's distributed lock; notifications and the
// release of the previous bidder's hold run afterwards so the lock is never
// held across network calls.
func (s *BidService) PlaceBid(ctx context.Context, req inbound.PlaceBidRequest) (*inbound.PlaceBidResult, error) {
	s.logger.Info().
		Str("auction_id", req.AuctionID.String()).
		Str("user_id", req.BidderID.String()).
		Str("transaction_id", req.TransactionID.String()).
		Msg("Attempting to place bid")

	var (
		stored     *bid.Bid
		auc        *auction.Auction
		superseded *supersededBidder
		lazyClosed *shared.SettlementResult
	)

	err := s.locker.WithLock(ctx, req.AuctionID.String(), func(ctx context.Context) error {
		var err error
		auc, lazyClosed, err = s.helper.ValidateForBidding(ctx, req.AuctionID, req.BidderID)
		if err != nil {
			return err
		}

		if _, err := s.userRepo.GetByID(ctx, req.BidderID); err != nil {
			s.logger.Error().Err(err).Str("user_id", req.BidderID.String()).Msg("Bidder not found")
			return shared.ErrUserNotFound
		}

		hold, err := s.holdRepo.GetByID(ctx, req.TransactionID)
		if err != nil {
			s.logger.Error().Err(err).Str("transaction_id", req.TransactionID.String()).Msg("Payment hold not found")
			return shared.ErrHoldNotFound
		}
		if hold.IsLinked() {
			return shared.ErrHoldAlreadyLinked
		}
		if !hold.IsOnHold() {
			s.logger.Warn().
				Str("transaction_id", hold.ID.String()).
				Str("status", string(hold.Status)).
				Msg("Payment hold not usable for bidding")
			return shared.ErrHoldNotUsable
		}

		highest, err := s.helper.GetHighestBid(ctx, req.AuctionID)
		if err != nil {
			return err
		}

		if highest != nil && highest.BidderID == req.BidderID {
			return shared.ErrAlreadyHighestBidder
		}

		// The amount is whatever the hold authorized, converted to the
		// settlement currency. Ties lose.
		if !hold.FinalAmount.GreaterThan(auc.CurrentPrice) {
			s.logger.Warn().
				Str("auction_id", req.AuctionID.String()).
				Str("current_price", auc.CurrentPrice.String()).
				Str("bid_amount", hold.FinalAmount.String()).
				Msg("Bid amount too low")
			return shared.ErrBidTooLow
		}

		newBid := &bid.Bid{
			ID:             uuid.New(),
			AuctionID:      req.AuctionID,
			BidderID:       req.BidderID,
			Amount:         hold.FinalAmount,
			OriginalAmount: hold.OriginalAmount,
			Currency:       hold.PaymentCurrency,
			TransactionID:  hold.ID,
			CreatedAt:      time.Now(),
		}

		stored, err = s.helper.ApplyBid(ctx, auc, newBid, highest == nil)
		if err != nil {
			return err
		}

		if highest != nil {
			superseded = &supersededBidder{userID: highest.BidderID}
			if highest.Bidder != nil {
				superseded.email = highest.Bidder.Email
			}
			if highest.Hold != nil {
				superseded.sdkOrderID = highest.Hold.SdkOrderID
			}
		}

		return nil
	})
	if err != nil {
		// A rejected late bid may have settled the auction; subscribers
		// still need to hear it closed
		if lazyClosed != nil {
			s.announceClosed(lazyClosed)
		}
		return nil, err
	}

	s.logger.Info().
		Str("bid_id", stored.ID.String()).
		Str("auction_id", stored.AuctionID.String()).
		Str("amount", stored.Amount.String()).
		Msg("Bid placed successfully")

	s.dispatchBidSideEffects(auc, stored, superseded)

	result := &inbound.PlaceBidResult{Bid: stored}
	if superseded != nil {
		result.SupersededSdkOrderID = superseded.sdkOrderID
	}
	return result, nil
}

// dispatchBidSideEffects queues everything that must happen after a bid is
// committed but must not delay or fail it: releasing the previous hold,
// broadcasting the new price and notifying the outbid user.
func (s *BidService) dispatchBidSideEffects(auc *auction.Auction, newBid *bid.Bid, superseded *supersededBidder) {
	s.sideEffects.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		event := outbound.Event{
			Type:      outbound.EventTypeNewBid,
			AuctionID: newBid.AuctionID,
			Data: map[string]interface{}{
				"bid_id":    newBid.ID.String(),
				"user_id":   newBid.BidderID.String(),
				"amount":    newBid.Amount.String(),
				"timestamp": newBid.CreatedAt.Unix(),
			},
			Timestamp: newBid.CreatedAt.Unix(),
		}
		if err := s.broadcaster.Publish(ctx, newBid.AuctionID, event); err != nil {
			s.logger.Error().Err(err).Str("bid_id", newBid.ID.String()).Msg("Failed to broadcast new bid")
		}
	})

	if superseded == nil {
		return
	}

	s.sideEffects.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if superseded.sdkOrderID != nil {
			if err := s.gateway.Cancel(ctx, *superseded.sdkOrderID, "outbid"); err != nil {
				s.logger.Error().Err(err).
					Str("sdk_order_id", *superseded.sdkOrderID).
					Msg("Failed to release superseded hold")
			}
		}

		event := outbound.Event{
			Type:      outbound.EventTypeOutBid,
			AuctionID: newBid.AuctionID,
			Data: map[string]interface{}{
				"auction_id": newBid.AuctionID.String(),
				"new_amount": newBid.Amount.String(),
			},
			Timestamp: time.Now().Unix(),
		}
		if err := s.broadcaster.PublishToUser(ctx, superseded.userID, event); err != nil {
			s.logger.Error().Err(err).Str("user_id", superseded.userID.String()).Msg("Failed to notify outbid user")
		}

		if superseded.email == "" {
			return
		}

		title := ""
		if item, err := s.itemRepo.GetByID(ctx, auc.ItemID); err == nil {
			title = item.Title
		}
		if err := s.mailer.SendOutbidEmail(ctx, superseded.email, outbound.OutbidEmail{
			AuctionTitle: title,
			NewBidAmount: newBid.Amount,
		}); err != nil {
			s.logger.Error().Err(err).Str("to", superseded.email).Msg("Failed to send outbid email")
		}
	})
}

// announceClosed broadcasts the close of an auction settled on the bid path,
// the same event the sweep and owner close paths emit
func (s *BidService) announceClosed(result *shared.SettlementResult) {
	s.sideEffects.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		data := map[string]interface{}{
			"auction_id":  result.AuctionID.String(),
			"status":      result.Status,
			"final_price": result.WinningAmount.String(),
		}
		if result.WinnerID != nil {
			data["winner_id"] = result.WinnerID.String()
		}

		event := outbound.Event{
			Type:      outbound.EventTypeAuctionClosed,
			AuctionID: result.AuctionID,
			Data:      data,
			Timestamp: time.Now().Unix(),
		}
		if err := s.broadcaster.Publish(ctx, result.AuctionID, event); err != nil {
			s.logger.Error().Err(err).Str("auction_id", result.AuctionID.String()).Msg("Failed to broadcast auction close")
		}
	})
}

// GetHighestBid retrieves the highest bid for an auction
func (s *BidService) GetHighestBid(ctx context.Context, auctionID uuid.UUID) (*bid.Bid, error) {
	return s.bidRepo.GetHighestBid(ctx, auctionID)
}

// FindBidsByBidder retrieves the bids placed by a user
func (s *BidService) FindBidsByBidder(ctx context.Context, bidderID uuid.UUID) ([]*bid.Bid, error) {
	return s.bidRepo.ListByBidder(ctx, bidderID)
}

// DeleteBid soft-deletes a bid. The row stays behind for the audit trail.
func (s *BidService) DeleteBid(ctx context.Context, bidID uuid.UUID) error {
	if _, err := s.bidRepo.GetByID(ctx, bidID); err != nil {
		if errors.Is(err, shared.ErrBidNotFound) {
			return shared.ErrBidNotFound
		}
		return err
	}
	return s.bidRepo.SoftDelete(ctx, bidID)
}
