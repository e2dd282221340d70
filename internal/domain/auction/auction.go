package auction

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents the current status of an auction
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusFinished  Status = "finished"
	StatusCancelled Status = "cancelled"
)

// Auction represents an auction listing for an item
type Auction struct {
	ID            uuid.UUID       `json:"id"`
	ItemID        uuid.UUID       `json:"item_id"`
	OwnerID       uuid.UUID       `json:"owner_id"`
	StartingPrice decimal.Decimal `json:"starting_price"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	EndTime       time.Time       `json:"end_time"`
	Status        Status          `json:"status"`
	WinningBidID  *uuid.UUID      `json:"winning_bid_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	DeletedAt     *time.Time      `json:"deleted_at,omitempty"`
}

// IsTerminal returns true if the auction reached a final state
func (a *Auction) IsTerminal() bool {
	return a.Status == StatusFinished || a.Status == StatusCancelled
}

// IsFinished returns true if the auction has been settled
func (a *Auction) IsFinished() bool {
	return a.Status == StatusFinished
}

// IsExpired returns true if the auction end time has passed
func (a *Auction) IsExpired(now time.Time) bool {
	return !now.Before(a.EndTime)
}

// ApplyBid records an accepted bid amount on the auction. The first accepted
// bid moves a pending auction to active. Must be called under the auction lock.
func (a *Auction) ApplyBid(amount decimal.Decimal, isFirstBid bool) {
	a.CurrentPrice = amount
	if isFirstBid && a.Status == StatusPending {
		a.Status = StatusActive
	}
	a.UpdatedAt = time.Now()
}

// Close marks the auction finished with the winning bid and final price
func (a *Auction) Close(winningBidID *uuid.UUID, winningAmount decimal.Decimal) {
	a.Status = StatusFinished
	a.CurrentPrice = winningAmount
	a.WinningBidID = winningBidID
	a.UpdatedAt = time.Now()
}

// Cancel marks the auction cancelled
func (a *Auction) Cancel() {
	a.Status = StatusCancelled
	a.UpdatedAt = time.Now()
}
