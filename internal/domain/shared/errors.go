package shared

import (
	"errors"
	"fmt"
)

// Domain-specific errors
var (
	// Auction errors
	ErrAuctionNotFound      = errors.New("auction not found")
	ErrAuctionFinished      = errors.New("auction has already finished")
	ErrAuctionCancelled     = errors.New("auction has been cancelled")
	ErrAuctionExpired       = errors.New("auction has ended")
	ErrSelfBidding          = errors.New("you cannot bid in your own auction")
	ErrNotAuctionOwner      = errors.New("only the owner of the auction can do this")
	ErrInvalidEndTime       = errors.New("auction end time cannot be in the past")
	ErrEndTimeTooFar        = errors.New("auction end time cannot be more than 30 days from now")
	ErrInvalidStartingPrice = errors.New("starting price must be greater than 0")
	ErrItemAlreadyInAuction = errors.New("item is already in a live auction")

	// Bid errors
	ErrBidTooLow            = errors.New("bid must be higher than current highest bid")
	ErrAlreadyHighestBidder = errors.New("you already have the highest bid")
	ErrNoBidsFound          = errors.New("no bids found")
	ErrBidNotFound          = errors.New("bid not found")

	// Payment hold errors
	ErrHoldNotFound      = errors.New("transaction not found")
	ErrHoldNotUsable     = errors.New("transaction is not on hold")
	ErrHoldAlreadyLinked = errors.New("transaction is already linked to a bid")

	// Concurrency-control errors, safe to retry
	ErrResourceBusy = errors.New("too many concurrent requests for this resource")
	ErrLockLost     = errors.New("resource lock lost during operation")

	// User and item errors
	ErrUserNotFound = errors.New("user not found")
	ErrItemNotFound = errors.New("item not found")

	// Validation errors
	ErrInvalidTimeFormat = errors.New("invalid time format")
	ErrInvalidRequest    = errors.New("invalid request")

	// WebSocket message validation errors
	ErrMessageTypeRequired  = errors.New("message type is required")
	ErrAuctionIDRequired    = errors.New("auction_id is required")
	ErrTransactionRequired  = errors.New("transaction_id is required")
	ErrItemIDRequired       = errors.New("item_id is required")
	ErrEndTimeRequired      = errors.New("end_time is required")
	ErrStartingPriceNeeded  = errors.New("starting_price is required")
	ErrUnknownMessageType   = errors.New("unknown message type")
	ErrUserNotSubscribed    = errors.New("user not subscribed to auction")
	ErrClientChannelGone    = errors.New("client event channel not found")
)

// GatewayError reports a failed payment gateway call. Callers on cleanup and
// settlement paths must not unwind committed local state when they see one.
type GatewayError struct {
	Op      string
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("payment gateway %s failed: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("payment gateway %s failed", e.Op)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// IsGatewayError reports whether err is a payment gateway failure
func IsGatewayError(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge)
}
