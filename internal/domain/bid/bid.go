package bid

import (
	"time"

	"github.com/JoniWarrior/Auction-System-Backend/internal/domain/payment"
	"github.com/JoniWarrior/Auction-System-Backend/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Bid represents an accepted bid on an auction. Amount is always in the
// settlement currency; OriginalAmount and Currency keep what the bidder paid.
type Bid struct {
	ID             uuid.UUID       `json:"id"`
	AuctionID      uuid.UUID       `json:"auction_id"`
	BidderID       uuid.UUID       `json:"bidder_id"`
	Amount         decimal.Decimal `json:"amount"`
	OriginalAmount decimal.Decimal `json:"original_amount"`
	Currency       string          `json:"currency"`
	TransactionID  uuid.UUID       `json:"transaction_id"`
	CreatedAt      time.Time       `json:"created_at"`
	DeletedAt      *time.Time      `json:"deleted_at,omitempty"`

	// Loaded relations, nil unless the query joined them
	Bidder *shared.User  `json:"bidder,omitempty"`
	Hold   *payment.Hold `json:"transaction,omitempty"`
}

// Beats returns true if the bid amount strictly exceeds price. Equal amounts
// never beat the current price.
func (b *Bid) Beats(price decimal.Decimal) bool {
	return b.Amount.GreaterThan(price)
}
