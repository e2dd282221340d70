package app

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/JoniWarrior/Auction-System-Backend/internal/domain/auction"
	"github.com/JoniWarrior/Auction-System-Backend/internal/domain/payment"
	"github.com/JoniWarrior/Auction-System-Backend/internal/domain/shared"
	"github.com/JoniWarrior/Auction-System-Backend/internal/ports/inbound"
	"github.com/JoniWarrior/Auction-System-Backend/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceBid_Validation(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(f *fixture) inbound.PlaceBidRequest
		wantErr error
	}{
		{
			name: "auction not found",
			setup: func(f *fixture) inbound.PlaceBidRequest {
				bidder := f.addUser("Ana", "ana@example.com")
				hold := f.addHold(100)
				return inbound.PlaceBidRequest{AuctionID: uuid.New(), BidderID: bidder, TransactionID: hold.ID}
			},
			wantErr: shared.ErrAuctionNotFound,
		},
		{
			name: "owner cannot bid on own auction",
			setup: func(f *fixture) inbound.PlaceBidRequest {
				owner := f.addUser("Owner", "owner@example.com")
				item := f.addItem(owner, "Painting")
				auc := f.addAuction(owner, item, 50, time.Hour, auction.StatusActive)
				hold := f.addHold(100)
				return inbound.PlaceBidRequest{AuctionID: auc.ID, BidderID: owner, TransactionID: hold.ID}
			},
			wantErr: shared.ErrSelfBidding,
		},
		{
			name: "finished auction rejects bids",
			setup: func(f *fixture) inbound.PlaceBidRequest {
				owner := f.addUser("Owner", "owner@example.com")
				bidder := f.addUser("Ana", "ana@example.com")
				item := f.addItem(owner, "Painting")
				auc := f.addAuction(owner, item, 50, time.Hour, auction.StatusFinished)
				hold := f.addHold(100)
				return inbound.PlaceBidRequest{AuctionID: auc.ID, BidderID: bidder, TransactionID: hold.ID}
			},
			wantErr: shared.ErrAuctionFinished,
		},
		{
			name: "cancelled auction rejects bids",
			setup: func(f *fixture) inbound.PlaceBidRequest {
				owner := f.addUser("Owner", "owner@example.com")
				bidder := f.addUser("Ana", "ana@example.com")
				item := f.addItem(owner, "Painting")
				auc := f.addAuction(owner, item, 50, time.Hour, auction.StatusCancelled)
				hold := f.addHold(100)
				return inbound.PlaceBidRequest{AuctionID: auc.ID, BidderID: bidder, TransactionID: hold.ID}
			},
			wantErr: shared.ErrAuctionCancelled,
		},
		{
			name: "unknown bidder",
			setup: func(f *fixture) inbound.PlaceBidRequest {
				owner := f.addUser("Owner", "owner@example.com")
				item := f.addItem(owner, "Painting")
				auc := f.addAuction(owner, item, 50, time.Hour, auction.StatusActive)
				hold := f.addHold(100)
				return inbound.PlaceBidRequest{AuctionID: auc.ID, BidderID: uuid.New(), TransactionID: hold.ID}
			},
			wantErr: shared.ErrUserNotFound,
		},
		{
			name: "missing payment hold",
			setup: func(f *fixture) inbound.PlaceBidRequest {
				owner := f.addUser("Owner", "owner@example.com")
				bidder := f.addUser("Ana", "ana@example.com")
				item := f.addItem(owner, "Painting")
				auc := f.addAuction(owner, item, 50, time.Hour, auction.StatusActive)
				return inbound.PlaceBidRequest{AuctionID: auc.ID, BidderID: bidder, TransactionID: uuid.New()}
			},
			wantErr: shared.ErrHoldNotFound,
		},
		{
			name: "hold already linked to another bid",
			setup: func(f *fixture) inbound.PlaceBidRequest {
				owner := f.addUser("Owner", "owner@example.com")
				bidder := f.addUser("Ana", "ana@example.com")
				item := f.addItem(owner, "Painting")
				auc := f.addAuction(owner, item, 50, time.Hour, auction.StatusActive)
				hold := f.addHold(100)
				linked := uuid.New()
				hold.BidID = &linked
				f.holds.put(hold)
				return inbound.PlaceBidRequest{AuctionID: auc.ID, BidderID: bidder, TransactionID: hold.ID}
			},
			wantErr: shared.ErrHoldAlreadyLinked,
		},
		{
			name: "cancelled hold is not usable",
			setup: func(f *fixture) inbound.PlaceBidRequest {
				owner := f.addUser("Owner", "owner@example.com")
				bidder := f.addUser("Ana", "ana@example.com")
				item := f.addItem(owner, "Painting")
				auc := f.addAuction(owner, item, 50, time.Hour, auction.StatusActive)
				hold := f.addHold(100)
				hold.Status = payment.StatusCancelled
				f.holds.put(hold)
				return inbound.PlaceBidRequest{AuctionID: auc.ID, BidderID: bidder, TransactionID: hold.ID}
			},
			wantErr: shared.ErrHoldNotUsable,
		},
		{
			name: "equal amount loses",
			setup: func(f *fixture) inbound.PlaceBidRequest {
				owner := f.addUser("Owner", "owner@example.com")
				bidder := f.addUser("Ana", "ana@example.com")
				item := f.addItem(owner, "Painting")
				auc := f.addAuction(owner, item, 100, time.Hour, auction.StatusActive)
				hold := f.addHold(100) // equals the current price
				return inbound.PlaceBidRequest{AuctionID: auc.ID, BidderID: bidder, TransactionID: hold.ID}
			},
			wantErr: shared.ErrBidTooLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			req := tt.setup(f)

			result, err := f.bidSvc.PlaceBid(context.Background(), req)

			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, result)
		})
	}
}

func TestPlaceBid_FirstBidActivatesAuction(t *testing.T) {
	f := newFixture()
	owner := f.addUser("Owner", "owner@example.com")
	bidder := f.addUser("Ana", "ana@example.com")
	item := f.addItem(owner, "Painting")
	auc := f.addAuction(owner, item, 50, time.Hour, auction.StatusPending)
	hold := f.addHold(100)

	result, err := f.bidSvc.PlaceBid(context.Background(), inbound.PlaceBidRequest{
		AuctionID:     auc.ID,
		BidderID:      bidder,
		TransactionID: hold.ID,
	})
	require.NoError(t, err)
	f.bidSvc.Stop()

	require.NotNil(t, result.Bid)
	assert.True(t, result.Bid.Amount.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, hold.ID, result.Bid.TransactionID)
	assert.Nil(t, result.SupersededSdkOrderID)

	stored, err := f.auctions.GetByID(context.Background(), auc.ID)
	require.NoError(t, err)
	assert.Equal(t, auction.StatusActive, stored.Status)
	assert.True(t, stored.CurrentPrice.Equal(decimal.NewFromInt(100)))

	linked, err := f.holds.GetByID(context.Background(), hold.ID)
	require.NoError(t, err)
	require.NotNil(t, linked.BidID)
	assert.Equal(t, result.Bid.ID, *linked.BidID)

	newBidEvents := f.broadcaster.eventsOf(outbound.EventTypeNewBid)
	require.Len(t, newBidEvents, 1)
	assert.Equal(t, auc.ID, newBidEvents[0].event.AuctionID)

	assert.Empty(t, f.gateway.callsOf("cancel"), "first bid has nobody to outbid")
	assert.Empty(t, f.mailer.emails())
}

func TestPlaceBid_OutbidsPreviousBidder(t *testing.T) {
	f := newFixture()
	owner := f.addUser("Owner", "owner@example.com")
	first := f.addUser("Ana", "ana@example.com")
	second := f.addUser("Ben", "ben@example.com")
	item := f.addItem(owner, "Painting")
	auc := f.addAuction(owner, item, 50, time.Hour, auction.StatusPending)
	firstHold := f.addHold(100)
	secondHold := f.addHold(150)

	ctx := context.Background()
	_, err := f.bidSvc.PlaceBid(ctx, inbound.PlaceBidRequest{
		AuctionID: auc.ID, BidderID: first, TransactionID: firstHold.ID,
	})
	require.NoError(t, err)

	result, err := f.bidSvc.PlaceBid(ctx, inbound.PlaceBidRequest{
		AuctionID: auc.ID, BidderID: second, TransactionID: secondHold.ID,
	})
	require.NoError(t, err)
	f.bidSvc.Stop()

	require.NotNil(t, result.SupersededSdkOrderID)
	assert.Equal(t, *firstHold.SdkOrderID, *result.SupersededSdkOrderID)

	// The superseded hold is released at the gateway
	cancels := f.gateway.callsOf("cancel")
	require.Len(t, cancels, 1)
	assert.Equal(t, *firstHold.SdkOrderID, cancels[0].sdkOrderID)
	assert.Equal(t, "outbid", cancels[0].reason)

	released, err := f.holds.GetByID(ctx, firstHold.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCancelled, released.Status)

	// The outbid user gets a targeted event and an email
	outBidEvents := f.broadcaster.eventsOf(outbound.EventTypeOutBid)
	require.Len(t, outBidEvents, 1)
	require.NotNil(t, outBidEvents[0].userID)
	assert.Equal(t, first, *outBidEvents[0].userID)

	emails := f.mailer.emails()
	require.Len(t, emails, 1)
	assert.Equal(t, "ana@example.com", emails[0].to)
	assert.Equal(t, "Painting", emails[0].data.AuctionTitle)
	assert.True(t, emails[0].data.NewBidAmount.Equal(decimal.NewFromInt(150)))

	stored, err := f.auctions.GetByID(ctx, auc.ID)
	require.NoError(t, err)
	assert.True(t, stored.CurrentPrice.Equal(decimal.NewFromInt(150)))
}

func TestPlaceBid_HighestBidderCannotRaiseThemselves(t *testing.T) {
	f := newFixture()
	owner := f.addUser("Owner", "owner@example.com")
	bidder := f.addUser("Ana", "ana@example.com")
	item := f.addItem(owner, "Painting")
	auc := f.addAuction(owner, item, 50, time.Hour, auction.StatusActive)
	firstHold := f.addHold(100)
	secondHold := f.addHold(200)

	ctx := context.Background()
	_, err := f.bidSvc.PlaceBid(ctx, inbound.PlaceBidRequest{
		AuctionID: auc.ID, BidderID: bidder, TransactionID: firstHold.ID,
	})
	require.NoError(t, err)

	_, err = f.bidSvc.PlaceBid(ctx, inbound.PlaceBidRequest{
		AuctionID: auc.ID, BidderID: bidder, TransactionID: secondHold.ID,
	})
	require.ErrorIs(t, err, shared.ErrAlreadyHighestBidder)

	// The second hold stays untouched and unlinked
	second, err := f.holds.GetByID(ctx, secondHold.ID)
	require.NoError(t, err)
	assert.Nil(t, second.BidID)
	assert.Equal(t, payment.StatusOnHold, second.Status)
}

func TestPlaceBid_ExpiredAuctionIsSettledLazily(t *testing.T) {
	f := newFixture()
	owner := f.addUser("Owner", "owner@example.com")
	first := f.addUser("Ana", "ana@example.com")
	late := f.addUser("Ben", "ben@example.com")
	item := f.addItem(owner, "Painting")
	auc := f.addAuction(owner, item, 50, time.Hour, auction.StatusActive)
	firstHold := f.addHold(100)
	lateHold := f.addHold(500)

	ctx := context.Background()
	_, err := f.bidSvc.PlaceBid(ctx, inbound.PlaceBidRequest{
		AuctionID: auc.ID, BidderID: first, TransactionID: firstHold.ID,
	})
	require.NoError(t, err)

	// Push the auction past its end time without the sweeper noticing
	stored, err := f.auctions.GetByID(ctx, auc.ID)
	require.NoError(t, err)
	stored.EndTime = time.Now().Add(-time.Minute)
	f.auctions.put(stored)

	_, err = f.bidSvc.PlaceBid(ctx, inbound.PlaceBidRequest{
		AuctionID: auc.ID, BidderID: late, TransactionID: lateHold.ID,
	})
	require.ErrorIs(t, err, shared.ErrAuctionExpired)

	// The late bid triggered settlement: the standing bid won
	settled, err := f.auctions.GetByID(ctx, auc.ID)
	require.NoError(t, err)
	assert.Equal(t, auction.StatusFinished, settled.Status)

	captures := f.gateway.callsOf("capture")
	require.Len(t, captures, 1)
	assert.Equal(t, *firstHold.SdkOrderID, captures[0].sdkOrderID)

	lateUnused, err := f.holds.GetByID(ctx, lateHold.ID)
	require.NoError(t, err)
	assert.Nil(t, lateUnused.BidID)

	// Subscribers hear about the close even though the sweep never ran
	f.bidSvc.Stop()
	closed := f.broadcaster.eventsOf(outbound.EventTypeAuctionClosed)
	require.Len(t, closed, 1)
	assert.Equal(t, auc.ID.String(), closed[0].event.Data["auction_id"])
	assert.Equal(t, first.String(), closed[0].event.Data["winner_id"])
}

func TestPlaceBid_ResourceBusy(t *testing.T) {
	f := newFixture()
	f.locker.acquireErr = shared.ErrResourceBusy

	result, err := f.bidSvc.PlaceBid(context.Background(), inbound.PlaceBidRequest{
		AuctionID:     uuid.New(),
		BidderID:      uuid.New(),
		TransactionID: uuid.New(),
	})

	require.ErrorIs(t, err, shared.ErrResourceBusy)
	assert.Nil(t, result)
}

func TestDeleteBid(t *testing.T) {
	f := newFixture()
	owner := f.addUser("Owner", "owner@example.com")
	bidder := f.addUser("Ana", "ana@example.com")
	item := f.addItem(owner, "Painting")
	auc := f.addAuction(owner, item, 50, time.Hour, auction.StatusActive)
	hold := f.addHold(100)

	ctx := context.Background()
	result, err := f.bidSvc.PlaceBid(ctx, inbound.PlaceBidRequest{
		AuctionID: auc.ID, BidderID: bidder, TransactionID: hold.ID,
	})
	require.NoError(t, err)

	require.NoError(t, f.bidSvc.DeleteBid(ctx, result.Bid.ID))

	_, err = f.bids.GetByID(ctx, result.Bid.ID)
	assert.ErrorIs(t, err, shared.ErrBidNotFound)

	err = f.bidSvc.DeleteBid(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrBidNotFound)
}

func TestFindBidsByBidder(t *testing.T) {
	f := newFixture()
	owner := f.addUser("Owner", "owner@example.com")
	ana := f.addUser("Ana", "ana@example.com")
	ben := f.addUser("Ben", "ben@example.com")
	item := f.addItem(owner, "Painting")
	auc := f.addAuction(owner, item, 50, time.Hour, auction.StatusActive)

	ctx := context.Background()
	_, err := f.bidSvc.PlaceBid(ctx, inbound.PlaceBidRequest{
		AuctionID: auc.ID, BidderID: ana, TransactionID: f.addHold(100).ID,
	})
	require.NoError(t, err)
	_, err = f.bidSvc.PlaceBid(ctx, inbound.PlaceBidRequest{
		AuctionID: auc.ID, BidderID: ben, TransactionID: f.addHold(150).ID,
	})
	require.NoError(t, err)

	bids, err := f.bidSvc.FindBidsByBidder(ctx, ana)
	require.NoError(t, err)
	require.Len(t, bids, 1)
	assert.Equal(t, ana, bids[0].BidderID)
}

func TestPlaceBid_ConcurrentEqualBidsAdmitOneWinner(t *testing.T) {
	f := newFixture()
	owner := f.addUser("Owner", "owner@example.com")
	item := f.addItem(owner, "Painting")
	auc := f.addAuction(owner, item, 100, time.Hour, auction.StatusPending)

	// Every bidder authorizes the same amount; whoever commits first holds
	// the price and the rest lose the tie
	const bidders = 8
	results := make(chan error, bidders)

	var wg sync.WaitGroup
	for i := 0; i < bidders; i++ {
		bidder := f.addUser(fmt.Sprintf("Bidder %d", i), fmt.Sprintf("bidder%d@example.com", i))
		hold := f.addHold(150)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.bidSvc.PlaceBid(context.Background(), inbound.PlaceBidRequest{
				AuctionID: auc.ID, BidderID: bidder, TransactionID: hold.ID,
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	accepted := 0
	for err := range results {
		if err == nil {
			accepted++
			continue
		}
		require.ErrorIs(t, err, shared.ErrBidTooLow)
	}
	require.Equal(t, 1, accepted, "exactly one equal bid may win")

	ctx := context.Background()
	stored, err := f.auctions.GetByID(ctx, auc.ID)
	require.NoError(t, err)
	assert.Equal(t, auction.StatusActive, stored.Status)
	assert.True(t, stored.CurrentPrice.Equal(decimal.NewFromInt(150)))

	highest, err := f.bidSvc.GetHighestBid(ctx, auc.ID)
	require.NoError(t, err)
	assert.True(t, highest.Amount.Equal(decimal.NewFromInt(150)))

	f.bidSvc.Stop()
	assert.Len(t, f.broadcaster.eventsOf(outbound.EventTypeNewBid), 1)
}

func TestPlaceBid_ConcurrentRacersKeepPriceMonotonic(t *testing.T) {
	f := newFixture()
	owner := f.addUser("Owner", "owner@example.com")
	item := f.addItem(owner, "Painting")
	auc := f.addAuction(owner, item, 100, time.Hour, auction.StatusPending)

	amounts := []int64{110, 120, 130, 140, 150}
	top := f.addUser("Top", "top@example.com")
	topHold := f.addHold(150)

	type attempt struct {
		amount int64
		err    error
	}
	results := make(chan attempt, len(amounts))

	var wg sync.WaitGroup
	for i, amount := range amounts {
		bidder := top
		hold := topHold
		if amount != 150 {
			bidder = f.addUser(fmt.Sprintf("Bidder %d", i), fmt.Sprintf("bidder%d@example.com", i))
			hold = f.addHold(amount)
		}
		bidderID, holdID, amount := bidder, hold.ID, amount
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.bidSvc.PlaceBid(context.Background(), inbound.PlaceBidRequest{
				AuctionID: auc.ID, BidderID: bidderID, TransactionID: holdID,
			})
			results <- attempt{amount: amount, err: err}
		}()
	}
	wg.Wait()
	close(results)

	accepted := 0
	for r := range results {
		if r.err == nil {
			accepted++
			continue
		}
		require.ErrorIs(t, r.err, shared.ErrBidTooLow)
		assert.NotEqual(t, int64(150), r.amount, "the largest authorization can never lose")
	}
	require.GreaterOrEqual(t, accepted, 1)

	// Whatever interleaving happened, the price ends at the maximum accepted
	// amount and the largest hold owns the highest bid
	ctx := context.Background()
	stored, err := f.auctions.GetByID(ctx, auc.ID)
	require.NoError(t, err)
	assert.True(t, stored.CurrentPrice.Equal(decimal.NewFromInt(150)))

	highest, err := f.bidSvc.GetHighestBid(ctx, auc.ID)
	require.NoError(t, err)
	assert.Equal(t, top, highest.BidderID)
	assert.True(t, highest.Amount.Equal(decimal.NewFromInt(150)))

	f.bidSvc.Stop()
	assert.Len(t, f.broadcaster.eventsOf(outbound.EventTypeNewBid), accepted)
}
