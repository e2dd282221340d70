package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/JoniWarrior/Auction-System-Backend/internal/config"
	"github.com/JoniWarrior/Auction-System-Backend/internal/domain/auction"
	"github.com/JoniWarrior/Auction-System-Backend/internal/domain/bid"
	"github.com/JoniWarrior/Auction-System-Backend/internal/domain/payment"
	"github.com/JoniWarrior/Auction-System-Backend/internal/domain/shared"
	"github.com/JoniWarrior/Auction-System-Backend/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// In-memory fakes backing the service tests. They mirror the repository
// contracts closely enough that the services cannot tell the difference:
// GetByID and GetHighestBid load relations, RecordWithPriceUpdate claims the
// hold and rejects double links.

type fakeAuctionRepo struct {
	mu       sync.Mutex
	auctions map[uuid.UUID]*auction.Auction
	getErr   error
}

func newFakeAuctionRepo() *fakeAuctionRepo {
	return &fakeAuctionRepo{auctions: make(map[uuid.UUID]*auction.Auction)}
}

func (f *fakeAuctionRepo) put(a *auction.Auction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *a
	f.auctions[a.ID] = &cp
}

func (f *fakeAuctionRepo) Create(ctx context.Context, a *auction.Auction) error {
	f.put(a)
	return nil
}

func (f *fakeAuctionRepo) GetByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.auctions[id]
	if !ok || a.DeletedAt != nil {
		return nil, shared.ErrAuctionNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAuctionRepo) List(ctx context.Context, status *auction.Status, page, pageSize int) ([]*auction.Auction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*auction.Auction
	for _, a := range f.auctions {
		if status != nil && a.Status != *status {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeAuctionRepo) FindExpired(ctx context.Context, now time.Time, limit int) ([]*auction.Auction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*auction.Auction
	for _, a := range f.auctions {
		if a.IsTerminal() || a.EndTime.After(now) {
			continue
		}
		cp := *a
		out = append(out, &cp)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeAuctionRepo) FindLiveByItemID(ctx context.Context, itemID uuid.UUID) ([]*auction.Auction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*auction.Auction
	for _, a := range f.auctions {
		if a.ItemID == itemID && !a.IsTerminal() {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeAuctionRepo) Update(ctx context.Context, a *auction.Auction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.auctions[a.ID]; !ok {
		return shared.ErrAuctionNotFound
	}
	cp := *a
	f.auctions[a.ID] = &cp
	return nil
}

func (f *fakeAuctionRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.auctions[id]
	if !ok {
		return shared.ErrAuctionNotFound
	}
	now := time.Now()
	a.DeletedAt = &now
	return nil
}

type fakeHoldRepo struct {
	mu    sync.Mutex
	holds map[uuid.UUID]*payment.Hold
}

func newFakeHoldRepo() *fakeHoldRepo {
	return &fakeHoldRepo{holds: make(map[uuid.UUID]*payment.Hold)}
}

func (f *fakeHoldRepo) put(h *payment.Hold) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *h
	f.holds[h.ID] = &cp
}

func (f *fakeHoldRepo) Create(ctx context.Context, h *payment.Hold) error {
	f.put(h)
	return nil
}

func (f *fakeHoldRepo) GetByID(ctx context.Context, id uuid.UUID) (*payment.Hold, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.holds[id]
	if !ok {
		return nil, shared.ErrHoldNotFound
	}
	cp := *h
	return &cp, nil
}

func (f *fakeHoldRepo) GetBySdkOrderID(ctx context.Context, sdkOrderID string) (*payment.Hold, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, h := range f.holds {
		if h.SdkOrderID != nil && *h.SdkOrderID == sdkOrderID {
			cp := *h
			return &cp, nil
		}
	}
	return nil, shared.ErrHoldNotFound
}

func (f *fakeHoldRepo) Update(ctx context.Context, h *payment.Hold) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.holds[h.ID]; !ok {
		return shared.ErrHoldNotFound
	}
	cp := *h
	f.holds[h.ID] = &cp
	return nil
}

type fakeBidRepo struct {
	mu        sync.Mutex
	bids      map[uuid.UUID]*bid.Bid
	auctions  *fakeAuctionRepo
	holds     *fakeHoldRepo
	users     *fakeUserRepo
	recordErr error
}

func newFakeBidRepo(auctions *fakeAuctionRepo, holds *fakeHoldRepo, users *fakeUserRepo) *fakeBidRepo {
	return &fakeBidRepo{
		bids:     make(map[uuid.UUID]*bid.Bid),
		auctions: auctions,
		holds:    holds,
		users:    users,
	}
}

func (f *fakeBidRepo) loadRelations(b *bid.Bid) *bid.Bid {
	cp := *b
	if u, err := f.users.GetByID(context.Background(), b.BidderID); err == nil {
		cp.Bidder = u
	}
	if h, err := f.holds.GetByID(context.Background(), b.TransactionID); err == nil {
		cp.Hold = h
	}
	return &cp
}

func (f *fakeBidRepo) RecordWithPriceUpdate(ctx context.Context, newBid *bid.Bid, auc *auction.Auction) error {
	if f.recordErr != nil {
		return f.recordErr
	}

	hold, err := f.holds.GetByID(ctx, newBid.TransactionID)
	if err != nil {
		return err
	}
	if hold.BidID != nil {
		return shared.ErrHoldAlreadyLinked
	}
	hold.BidID = &newBid.ID
	if err := f.holds.Update(ctx, hold); err != nil {
		return err
	}

	f.mu.Lock()
	cp := *newBid
	f.bids[newBid.ID] = &cp
	f.mu.Unlock()

	return f.auctions.Update(ctx, auc)
}

func (f *fakeBidRepo) GetByID(ctx context.Context, id uuid.UUID) (*bid.Bid, error) {
	f.mu.Lock()
	b, ok := f.bids[id]
	f.mu.Unlock()
	if !ok || b.DeletedAt != nil {
		return nil, shared.ErrBidNotFound
	}
	return f.loadRelations(b), nil
}

func (f *fakeBidRepo) GetHighestBid(ctx context.Context, auctionID uuid.UUID) (*bid.Bid, error) {
	f.mu.Lock()
	var highest *bid.Bid
	for _, b := range f.bids {
		if b.AuctionID != auctionID || b.DeletedAt != nil {
			continue
		}
		if highest == nil ||
			b.Amount.GreaterThan(highest.Amount) ||
			(b.Amount.Equal(highest.Amount) && b.CreatedAt.Before(highest.CreatedAt)) {
			highest = b
		}
	}
	f.mu.Unlock()
	if highest == nil {
		return nil, shared.ErrNoBidsFound
	}
	return f.loadRelations(highest), nil
}

func (f *fakeBidRepo) ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]*bid.Bid, error) {
	f.mu.Lock()
	var out []*bid.Bid
	for _, b := range f.bids {
		if b.AuctionID == auctionID && b.DeletedAt == nil {
			out = append(out, b)
		}
	}
	f.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Amount.GreaterThan(out[j].Amount)
	})
	loaded := make([]*bid.Bid, len(out))
	for i, b := range out {
		loaded[i] = f.loadRelations(b)
	}
	return loaded, nil
}

func (f *fakeBidRepo) ListByBidder(ctx context.Context, bidderID uuid.UUID) ([]*bid.Bid, error) {
	f.mu.Lock()
	var out []*bid.Bid
	for _, b := range f.bids {
		if b.BidderID == bidderID && b.DeletedAt == nil {
			out = append(out, b)
		}
	}
	f.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	loaded := make([]*bid.Bid, len(out))
	for i, b := range out {
		loaded[i] = f.loadRelations(b)
	}
	return loaded, nil
}

func (f *fakeBidRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bids[id]
	if !ok {
		return shared.ErrBidNotFound
	}
	now := time.Now()
	b.DeletedAt = &now
	return nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*shared.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*shared.User)}
}

func (f *fakeUserRepo) Create(ctx context.Context, u *shared.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*shared.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, shared.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

type fakeItemRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*shared.Item
}

func newFakeItemRepo() *fakeItemRepo {
	return &fakeItemRepo{items: make(map[uuid.UUID]*shared.Item)}
}

func (f *fakeItemRepo) Create(ctx context.Context, item *shared.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *item
	f.items[item.ID] = &cp
	return nil
}

func (f *fakeItemRepo) GetByID(ctx context.Context, id uuid.UUID) (*shared.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return nil, shared.ErrItemNotFound
	}
	cp := *item
	return &cp, nil
}

func (f *fakeItemRepo) Update(ctx context.Context, item *shared.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[item.ID]; !ok {
		return shared.ErrItemNotFound
	}
	cp := *item
	f.items[item.ID] = &cp
	return nil
}

type gatewayCall struct {
	op         string
	sdkOrderID string
	amount     decimal.Decimal
	reason     string
}

type fakeGateway struct {
	mu         sync.Mutex
	calls      []gatewayCall
	holds      *fakeHoldRepo
	captureErr error
	cancelErr  error
}

func newFakeGateway(holds *fakeHoldRepo) *fakeGateway {
	return &fakeGateway{holds: holds}
}

func (f *fakeGateway) callsOf(op string) []gatewayCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []gatewayCall
	for _, c := range f.calls {
		if c.op == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeGateway) CreateHold(ctx context.Context, req outbound.CreateHoldRequest) (*payment.Hold, error) {
	orderID := uuid.New().String()
	hold := &payment.Hold{
		ID:                  uuid.New(),
		SdkOrderID:          &orderID,
		Status:              payment.StatusOnHold,
		OriginalAmount:      req.Amount,
		FinalAmount:         req.Amount,
		AppliedExchangeRate: decimal.NewFromInt(1),
		PaymentCurrency:     req.Currency,
		CreatedAt:           time.Now(),
	}
	if err := f.holds.Create(ctx, hold); err != nil {
		return nil, err
	}
	return hold, nil
}

func (f *fakeGateway) Capture(ctx context.Context, sdkOrderID string, amount decimal.Decimal) error {
	f.mu.Lock()
	f.calls = append(f.calls, gatewayCall{op: "capture", sdkOrderID: sdkOrderID, amount: amount})
	err := f.captureErr
	f.mu.Unlock()
	if err != nil {
		return &shared.GatewayError{Op: "capture", Err: err}
	}

	hold, getErr := f.holds.GetBySdkOrderID(ctx, sdkOrderID)
	if getErr != nil {
		return getErr
	}
	hold.MarkCaptured()
	return f.holds.Update(ctx, hold)
}

func (f *fakeGateway) Cancel(ctx context.Context, sdkOrderID string, reason string) error {
	f.mu.Lock()
	f.calls = append(f.calls, gatewayCall{op: "cancel", sdkOrderID: sdkOrderID, reason: reason})
	err := f.cancelErr
	f.mu.Unlock()
	if err != nil {
		return &shared.GatewayError{Op: "cancel", Err: err}
	}

	hold, getErr := f.holds.GetBySdkOrderID(ctx, sdkOrderID)
	if getErr != nil {
		return getErr
	}
	hold.MarkCancelled(time.Now())
	return f.holds.Update(ctx, hold)
}

func (f *fakeGateway) Refund(ctx context.Context, sdkOrderID string, reason string, amount decimal.Decimal) error {
	f.mu.Lock()
	f.calls = append(f.calls, gatewayCall{op: "refund", sdkOrderID: sdkOrderID, reason: reason, amount: amount})
	f.mu.Unlock()

	hold, err := f.holds.GetBySdkOrderID(ctx, sdkOrderID)
	if err != nil {
		return err
	}
	hold.MarkRefunded()
	return f.holds.Update(ctx, hold)
}

func (f *fakeGateway) RetrieveOrder(ctx context.Context, sdkOrderID string) (*outbound.GatewayOrder, error) {
	hold, err := f.holds.GetBySdkOrderID(ctx, sdkOrderID)
	if err != nil {
		return nil, err
	}
	return &outbound.GatewayOrder{
		SdkOrderID: sdkOrderID,
		Status:     string(hold.Status),
		Amount:     hold.FinalAmount,
	}, nil
}

// fakeLocker runs work inline under a per-key mutex
type fakeLocker struct {
	mu         sync.Mutex
	keyLocks   map[string]*sync.Mutex
	acquired   []string
	acquireErr error
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{keyLocks: make(map[string]*sync.Mutex)}
}

func (f *fakeLocker) WithLock(ctx context.Context, resourceKey string, work func(ctx context.Context) error) error {
	f.mu.Lock()
	if f.acquireErr != nil {
		err := f.acquireErr
		f.mu.Unlock()
		return err
	}
	keyLock, ok := f.keyLocks[resourceKey]
	if !ok {
		keyLock = &sync.Mutex{}
		f.keyLocks[resourceKey] = keyLock
	}
	f.acquired = append(f.acquired, resourceKey)
	f.mu.Unlock()

	keyLock.Lock()
	defer keyLock.Unlock()
	return work(ctx)
}

type publishedEvent struct {
	userID *uuid.UUID
	event  outbound.Event
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (f *fakeBroadcaster) Subscribe(ctx context.Context, auctionID uuid.UUID, clientID string, eventChan chan outbound.Event) error {
	return nil
}

func (f *fakeBroadcaster) SubscribeUser(ctx context.Context, userID uuid.UUID, clientID string, eventChan chan outbound.Event) error {
	return nil
}

func (f *fakeBroadcaster) Unsubscribe(ctx context.Context, auctionID uuid.UUID, clientID string) error {
	return nil
}

func (f *fakeBroadcaster) UnsubscribeUser(ctx context.Context, userID uuid.UUID, clientID string) error {
	return nil
}

func (f *fakeBroadcaster) Publish(ctx context.Context, auctionID uuid.UUID, event outbound.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedEvent{event: event})
	return nil
}

func (f *fakeBroadcaster) PublishToUser(ctx context.Context, userID uuid.UUID, event outbound.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedEvent{userID: &userID, event: event})
	return nil
}

func (f *fakeBroadcaster) IsSubscribed(ctx context.Context, auctionID uuid.UUID, clientID string) bool {
	return true
}

func (f *fakeBroadcaster) eventsOf(eventType outbound.EventType) []publishedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []publishedEvent
	for _, e := range f.events {
		if e.event.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type sentEmail struct {
	to   string
	data outbound.OutbidEmail
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentEmail
}

func (f *fakeMailer) SendOutbidEmail(ctx context.Context, to string, data outbound.OutbidEmail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentEmail{to: to, data: data})
	return nil
}

func (f *fakeMailer) emails() []sentEmail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentEmail(nil), f.sent...)
}

// fixture wires the services against in-memory fakes
type fixture struct {
	auctions    *fakeAuctionRepo
	bids        *fakeBidRepo
	holds       *fakeHoldRepo
	users       *fakeUserRepo
	items       *fakeItemRepo
	gateway     *fakeGateway
	locker      *fakeLocker
	broadcaster *fakeBroadcaster
	mailer      *fakeMailer
	helper      *AuctionBiddingHelper
	bidSvc      *BidService
	auctionSvc  *AuctionService
}

func newFixture() *fixture {
	auctions := newFakeAuctionRepo()
	holds := newFakeHoldRepo()
	users := newFakeUserRepo()
	items := newFakeItemRepo()
	bids := newFakeBidRepo(auctions, holds, users)
	gateway := newFakeGateway(holds)
	locker := newFakeLocker()
	bcast := &fakeBroadcaster{}
	mail := &fakeMailer{}
	logger := zerolog.Nop()

	helper := NewAuctionBiddingHelper(AuctionBiddingHelperParams{
		AuctionRepo: auctions,
		BidRepo:     bids,
		Gateway:     gateway,
		Logger:      logger,
	})

	cfg := &config.Config{Sweep: config.SweepConfig{BatchSize: 50}}

	return &fixture{
		auctions:    auctions,
		bids:        bids,
		holds:       holds,
		users:       users,
		items:       items,
		gateway:     gateway,
		locker:      locker,
		broadcaster: bcast,
		mailer:      mail,
		helper:      helper,
		bidSvc: NewBidService(BidServiceParams{
			Helper:      helper,
			BidRepo:     bids,
			UserRepo:    users,
			HoldRepo:    holds,
			ItemRepo:    items,
			Gateway:     gateway,
			Locker:      locker,
			Broadcaster: bcast,
			Mailer:      mail,
			Logger:      logger,
		}),
		auctionSvc: NewAuctionService(AuctionServiceParams{
			Helper:      helper,
			AuctionRepo: auctions,
			BidRepo:     bids,
			ItemRepo:    items,
			Gateway:     gateway,
			Locker:      locker,
			Broadcaster: bcast,
			Config:      cfg,
			Logger:      logger,
		}),
	}
}

func (f *fixture) addUser(name, email string) uuid.UUID {
	u := &shared.User{ID: uuid.New(), Name: name, Email: email}
	f.users.Create(context.Background(), u)
	return u.ID
}

func (f *fixture) addItem(sellerID uuid.UUID, title string) uuid.UUID {
	item := &shared.Item{
		ID:        uuid.New(),
		Title:     title,
		SellerID:  sellerID,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	f.items.Create(context.Background(), item)
	return item.ID
}

func (f *fixture) addAuction(ownerID, itemID uuid.UUID, startingPrice int64, endsIn time.Duration, status auction.Status) *auction.Auction {
	price := decimal.NewFromInt(startingPrice)
	auc := &auction.Auction{
		ID:            uuid.New(),
		ItemID:        itemID,
		OwnerID:       ownerID,
		StartingPrice: price,
		CurrentPrice:  price,
		EndTime:       time.Now().Add(endsIn),
		Status:        status,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	f.auctions.put(auc)
	return auc
}

func (f *fixture) addHold(amount int64) *payment.Hold {
	orderID := uuid.New().String()
	hold := &payment.Hold{
		ID:                  uuid.New(),
		SdkOrderID:          &orderID,
		Status:              payment.StatusOnHold,
		OriginalAmount:      decimal.NewFromInt(amount),
		FinalAmount:         decimal.NewFromInt(amount),
		AppliedExchangeRate: decimal.NewFromInt(1),
		PaymentCurrency:     "EUR",
		CreatedAt:           time.Now(),
	}
	f.holds.put(hold)
	return hold
}
