package app

import (
	"context"
	"time"

	"github.com/JoniWarrior/Auction-System-Backend/internal/config"
	"github.com/JoniWarrior/Auction-System-Backend/internal/domain/auction"
	"github.com/JoniWarrior/Auction-System-Backend/internal/domain/bid"
	"github.com/JoniWarrior/Auction-System-Backend/internal/domain/shared"
	"github.com/JoniWarrior/Auction-System-Backend/internal/ports/inbound"
	"github.com/JoniWarrior/Auction-System-Backend/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const maxAuctionDuration = 30 * 24 * time.Hour

// AuctionService implements the auction lifecycle use cases
type AuctionService struct {
	helper         *AuctionBiddingHelper
	auctionRepo    outbound.AuctionRepository
	bidRepo        outbound.BidRepository
	itemRepo       outbound.ItemRepository
	gateway        outbound.PaymentGateway
	locker         outbound.ResourceLocker
	broadcaster    outbound.Broadcaster
	sweepBatchSize int
	logger         zerolog.Logger
}

type AuctionServiceParams struct {
	Helper      *AuctionBiddingHelper
	AuctionRepo outbound.AuctionRepository
	BidRepo     outbound.BidRepository
	ItemRepo    outbound.ItemRepository
	Gateway     outbound.PaymentGateway
	Locker      outbound.ResourceLocker
	Broadcaster outbound.Broadcaster
	Config      *config.Config
	Logger      zerolog.Logger
}

// NewAuctionService creates a new auction service
func NewAuctionService(params AuctionServiceParams) *AuctionService {
	return &AuctionService{
		helper:         params.Helper,
		auctionRepo:    params.AuctionRepo,
		bidRepo:        params.BidRepo,
		itemRepo:       params.ItemRepo,
		gateway:        params.Gateway,
		locker:         params.Locker,
		broadcaster:    params.Broadcaster,
		sweepBatchSize: params.Config.Sweep.BatchSize,
		logger:         params.Logger.With().Str("component", "auction_service").Logger(),
	}
}

// CreateAuction creates a new auction for an item
func (s *AuctionService) CreateAuction(ctx context.Context, req inbound.CreateAuctionRequest) (*auction.Auction, error) {
	endTime, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		return nil, shared.ErrInvalidTimeFormat
	}

	now := time.Now()
	if !endTime.After(now) {
		return nil, shared.ErrInvalidEndTime
	}
	if endTime.After(now.Add(maxAuctionDuration)) {
		return nil, shared.ErrEndTimeTooFar
	}
	if !req.StartingPrice.IsPositive() {
		return nil, shared.ErrInvalidStartingPrice
	}

	if _, err := s.itemRepo.GetByID(ctx, req.ItemID); err != nil {
		s.logger.Error().Err(err).Str("item_id", req.ItemID.String()).Msg("Item not found")
		return nil, shared.ErrItemNotFound
	}

	live, err := s.auctionRepo.FindLiveByItemID(ctx, req.ItemID)
	if err != nil {
		return nil, err
	}
	if len(live) > 0 {
		return nil, shared.ErrItemAlreadyInAuction
	}

	auc := &auction.Auction{
		ID:            uuid.New(),
		ItemID:        req.ItemID,
		OwnerID:       req.OwnerID,
		StartingPrice: req.StartingPrice,
		CurrentPrice:  req.StartingPrice,
		EndTime:       endTime,
		Status:        auction.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.auctionRepo.Create(ctx, auc); err != nil {
		s.logger.Error().Err(err).Str("auction_id", auc.ID.String()).Msg("Failed to create auction")
		return nil, err
	}

	s.logger.Info().
		Str("auction_id", auc.ID.String()).
		Str("item_id", req.ItemID.String()).
		Time("end_time", endTime).
		Str("starting_price", req.StartingPrice.String()).
		Msg("Auction created")

	return auc, nil
}

// GetAuction retrieves an auction by ID
func (s *AuctionService) GetAuction(ctx context.Context, auctionID uuid.UUID) (*auction.Auction, error) {
	return s.auctionRepo.GetByID(ctx, auctionID)
}

// ListAuctions retrieves a list of auctions
func (s *AuctionService) ListAuctions(ctx context.Context, req inbound.ListAuctionsRequest) ([]*auction.Auction, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = 10
	}

	return s.auctionRepo.List(ctx, req.Status, page, pageSize)
}

// CloseAuction settles an auction under its resource lock. With a
// requestingUserID it is an explicit owner close, where closing an already
// finished auction is an error; with nil it is a sweep close, where a
// finished auction just yields its recorded outcome.
func (s *AuctionService) CloseAuction(ctx context.Context, auctionID uuid.UUID, requestingUserID *uuid.UUID) (*shared.SettlementResult, error) {
	var result *shared.SettlementResult

	err := s.locker.WithLock(ctx, auctionID.String(), func(ctx context.Context) error {
		auc, err := s.auctionRepo.GetByID(ctx, auctionID)
		if err != nil {
			return shared.ErrAuctionNotFound
		}

		if requestingUserID != nil {
			if auc.OwnerID != *requestingUserID {
				return shared.ErrNotAuctionOwner
			}
			if auc.IsFinished() {
				return shared.ErrAuctionFinished
			}
		}
		if auc.Status == auction.StatusCancelled {
			return shared.ErrAuctionCancelled
		}

		result, err = s.helper.Settle(ctx, auc)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.broadcastClosed(result)
	return result, nil
}

// CancelAuction cancels a pending or active auction and releases every
// authorization still held against it
func (s *AuctionService) CancelAuction(ctx context.Context, auctionID, requestingUserID uuid.UUID) error {
	var bids []*bid.Bid

	err := s.locker.WithLock(ctx, auctionID.String(), func(ctx context.Context) error {
		auc, err := s.auctionRepo.GetByID(ctx, auctionID)
		if err != nil {
			return shared.ErrAuctionNotFound
		}

		if auc.OwnerID != requestingUserID {
			return shared.ErrNotAuctionOwner
		}
		if auc.IsFinished() {
			return shared.ErrAuctionFinished
		}
		if auc.Status == auction.StatusCancelled {
			return shared.ErrAuctionCancelled
		}

		auc.Cancel()
		if err := s.auctionRepo.Update(ctx, auc); err != nil {
			return err
		}

		bids, err = s.bidRepo.ListByAuction(ctx, auctionID)
		return err
	})
	if err != nil {
		return err
	}

	// Hold releases are best-effort, done after the lock is gone. Failures
	// leave the authorization to expire at the gateway.
	for _, b := range bids {
		if b.Hold == nil || b.Hold.SdkOrderID == nil || !b.Hold.IsOnHold() {
			continue
		}
		if err := s.gateway.Cancel(ctx, *b.Hold.SdkOrderID, "auction_cancelled"); err != nil {
			s.logger.Error().Err(err).
				Str("auction_id", auctionID.String()).
				Str("sdk_order_id", *b.Hold.SdkOrderID).
				Msg("Failed to release hold of cancelled auction")
		}
	}

	event := outbound.Event{
		Type:      outbound.EventTypeAuctionClosed,
		AuctionID: auctionID,
		Data: map[string]interface{}{
			"auction_id": auctionID.String(),
			"status":     string(auction.StatusCancelled),
		},
		Timestamp: time.Now().Unix(),
	}
	if err := s.broadcaster.Publish(ctx, auctionID, event); err != nil {
		s.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to broadcast auction cancellation")
	}

	s.logger.Info().Str("auction_id", auctionID.String()).Msg("Auction cancelled")
	return nil
}

// SweepExpired settles every auction past its end time, each under its own
// lock. One failed auction never stops the rest of the sweep.
func (s *AuctionService) SweepExpired(ctx context.Context) (int, error) {
	expired, err := s.auctionRepo.FindExpired(ctx, time.Now(), s.sweepBatchSize)
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, auc := range expired {
		if _, err := s.CloseAuction(ctx, auc.ID, nil); err != nil {
			s.logger.Error().Err(err).Str("auction_id", auc.ID.String()).Msg("Failed to settle expired auction")
			continue
		}
		settled++
	}

	return settled, nil
}

// FindBiddingsOfAuction retrieves the bids of an auction, highest first
func (s *AuctionService) FindBiddingsOfAuction(ctx context.Context, auctionID uuid.UUID) ([]*bid.Bid, error) {
	if _, err := s.auctionRepo.GetByID(ctx, auctionID); err != nil {
		return nil, shared.ErrAuctionNotFound
	}
	return s.bidRepo.ListByAuction(ctx, auctionID)
}

func (s *AuctionService) broadcastClosed(result *shared.SettlementResult) {
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
}
