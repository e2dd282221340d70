package outbound

import (
	"context"

	"github.com/JoniWarrior/Auction-System-Backend/internal/domain/payment"

	"github.com/shopspring/decimal"
)

// CreateHoldRequest describes an authorization of funds before a bid
type CreateHoldRequest struct {
	Amount      decimal.Decimal
	Currency    string
	Description string
	Metadata    map[string]string
}

// GatewayOrder is the gateway's view of an order, used for reconciliation
type GatewayOrder struct {
	SdkOrderID string
	Status     string
	Amount     decimal.Decimal
}

// PaymentGateway wraps the external token-authenticated payment processor.
// Every operation proxies one remote call and updates the local hold record
// so it stays consistent with gateway state. All remote failures surface as
// *shared.GatewayError.
type PaymentGateway interface {
	// CreateHold authorizes funds without capturing them
	CreateHold(ctx context.Context, req CreateHoldRequest) (*payment.Hold, error)

	// Capture captures previously authorized funds; only the winning bid's
	// hold is captured, at settlement time
	Capture(ctx context.Context, sdkOrderID string, amount decimal.Decimal) error

	// Cancel releases an authorization without charging
	Cancel(ctx context.Context, sdkOrderID string, reason string) error

	// Refund reverses a captured charge
	Refund(ctx context.Context, sdkOrderID string, reason string, amount decimal.Decimal) error

	// RetrieveOrder reads the gateway's current view of an order
	RetrieveOrder(ctx context.Context, sdkOrderID string) (*GatewayOrder, error)
}
