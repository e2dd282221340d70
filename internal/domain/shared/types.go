package shared

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SettlementResult represents the outcome of closing an auction
type SettlementResult struct {
	AuctionID     uuid.UUID
	WinnerID      *uuid.UUID
	WinningBidID  *uuid.UUID
	WinningAmount decimal.Decimal
	Status        string
}
