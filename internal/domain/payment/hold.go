package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents the status of a payment hold
type Status string

const (
	StatusOnHold    Status = "on_hold"
	StatusSuccess   Status = "success"
	StatusFail      Status = "fail"
	StatusCancelled Status = "cancelled"
	StatusRefunded  Status = "refunded"
)

// Hold represents funds authorized against a bid through the payment gateway.
// A hold is created before the bid is submitted and linked to the bid once it
// is accepted; unlinked holds stay orphaned until cancelled.
type Hold struct {
	ID                  uuid.UUID       `json:"id"`
	SdkOrderID          *string         `json:"sdk_order_id,omitempty"`
	Status              Status          `json:"status"`
	OriginalAmount      decimal.Decimal `json:"original_amount"`
	FinalAmount         decimal.Decimal `json:"final_amount"`
	AppliedExchangeRate decimal.Decimal `json:"applied_exchange_rate"`
	PaymentCurrency     string          `json:"payment_currency"`
	BidID               *uuid.UUID      `json:"bid_id,omitempty"`
	CancelledAt         *time.Time      `json:"cancelled_at,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
}

// IsOnHold returns true if the funds are authorized but not yet captured
func (h *Hold) IsOnHold() bool {
	return h.Status == StatusOnHold
}

// IsLinked returns true if the hold already backs an accepted bid
func (h *Hold) IsLinked() bool {
	return h.BidID != nil
}

// MarkCaptured marks the authorized funds as captured
func (h *Hold) MarkCaptured() {
	h.Status = StatusSuccess
}

// MarkCancelled releases the authorization without charging
func (h *Hold) MarkCancelled(at time.Time) {
	h.Status = StatusCancelled
	h.CancelledAt = &at
}

// MarkRefunded marks a captured charge as reversed
func (h *Hold) MarkRefunded() {
	h.Status = StatusRefunded
}
