package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/JoniWarrior/Auction-System-Backend/internal/config"
	"github.com/JoniWarrior/Auction-System-Backend/internal/domain/payment"
	"github.com/JoniWarrior/Auction-System-Backend/internal/domain/shared"
	"github.com/JoniWarrior/Auction-System-Backend/internal/ports/outbound"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// tokenSlack is subtracted from the advertised token lifetime so a token is
// refreshed before it actually expires mid-request.
const tokenSlack = time.Minute

// Client wraps the POK payments API. It owns the access/refresh token pair and
// transparently authenticates or refreshes before every outbound call, so
// callers never handle gateway auth. Each operation proxies one remote call
// and updates the local hold record to stay consistent with gateway state.
type Client struct {
	http       *resty.Client
	holds      outbound.HoldRepository
	merchantID string
	keyID      string
	keySecret  string
	logger     zerolog.Logger

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	tokenExpiry  time.Time

	now func() time.Time
}

type ClientParams struct {
	Config *config.Config
	Holds  outbound.HoldRepository
	Logger zerolog.Logger
}

// NewClient creates a new payment gateway client
func NewClient(params ClientParams) *Client {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(params.Config.Gateway.BaseURL, "/")).
		SetTimeout(params.Config.Gateway.Timeout).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:       httpClient,
		holds:      params.Holds,
		merchantID: params.Config.Gateway.MerchantID,
		keyID:      params.Config.Gateway.KeyID,
		keySecret:  params.Config.Gateway.KeySecret,
		logger:     params.Logger.With().Str("component", "payment_gateway").Logger(),
		now:        time.Now,
	}
}

// CreateHold authorizes funds without capturing them and records the hold locally
func (c *Client) CreateHold(ctx context.Context, req outbound.CreateHoldRequest) (*payment.Hold, error) {
	var out orderResponse
	body := createOrderRequest{
		Amount:      req.Amount,
		Currency:    req.Currency,
		Description: req.Description,
		Metadata:    req.Metadata,
	}

	path := fmt.Sprintf("/merchants/%s/sdk-orders", c.merchantID)
	if err := c.post(ctx, "create_hold", path, body, &out); err != nil {
		return nil, err
	}

	order := out.Data.SdkOrder
	hold := &payment.Hold{
		ID:                  uuid.New(),
		SdkOrderID:          &order.ID,
		Status:              payment.StatusOnHold,
		OriginalAmount:      order.Amount,
		FinalAmount:         order.FinalAmount,
		AppliedExchangeRate: order.AppliedExchangeRate,
		PaymentCurrency:     order.Currency,
		CreatedAt:           c.now(),
	}

	if err := c.holds.Create(ctx, hold); err != nil {
		return nil, fmt.Errorf("failed to record payment hold: %w", err)
	}

	c.logger.Info().
		Str("sdk_order_id", order.ID).
		Str("amount", req.Amount.String()).
		Str("currency", req.Currency).
		Msg("Payment hold created")

	return hold, nil
}

// Capture captures previously authorized funds and marks the local hold captured
func (c *Client) Capture(ctx context.Context, sdkOrderID string, amount decimal.Decimal) error {
	path := fmt.Sprintf("/merchants/%s/sdk-orders/%s/capture", c.merchantID, sdkOrderID)
	if err := c.post(ctx, "capture", path, captureRequest{Amount: amount}, nil); err != nil {
		return err
	}

	hold, err := c.holds.GetBySdkOrderID(ctx, sdkOrderID)
	if err != nil {
		return fmt.Errorf("captured order %s has no local hold: %w", sdkOrderID, err)
	}

	hold.MarkCaptured()
	if err := c.holds.Update(ctx, hold); err != nil {
		return fmt.Errorf("failed to mark hold captured: %w", err)
	}

	c.logger.Info().
		Str("sdk_order_id", sdkOrderID).
		Str("amount", amount.String()).
		Msg("Payment hold captured")

	return nil
}

// Cancel releases an authorization without charging and marks the local hold cancelled
func (c *Client) Cancel(ctx context.Context, sdkOrderID string, reason string) error {
	path := fmt.Sprintf("/merchants/%s/sdk-orders/%s/cancel", c.merchantID, sdkOrderID)
	if err := c.post(ctx, "cancel", path, cancelRequest{CancellationReason: reason}, nil); err != nil {
		return err
	}

	hold, err := c.holds.GetBySdkOrderID(ctx, sdkOrderID)
	if err != nil {
		return fmt.Errorf("cancelled order %s has no local hold: %w", sdkOrderID, err)
	}

	hold.MarkCancelled(c.now())
	if err := c.holds.Update(ctx, hold); err != nil {
		return fmt.Errorf("failed to mark hold cancelled: %w", err)
	}

	c.logger.Info().
		Str("sdk_order_id", sdkOrderID).
		Str("reason", reason).
		Msg("Payment hold cancelled")

	return nil
}

// Refund reverses a captured charge and marks the local hold refunded
func (c *Client) Refund(ctx context.Context, sdkOrderID string, reason string, amount decimal.Decimal) error {
	path := fmt.Sprintf("/merchants/%s/sdk-orders/%s/refund", c.merchantID, sdkOrderID)
	body := refundRequest{RefundReason: reason}
	if !amount.IsZero() {
		body.RefundAmount = &amount
	}

	if err := c.post(ctx, "refund", path, body, nil); err != nil {
		return err
	}

	hold, err := c.holds.GetBySdkOrderID(ctx, sdkOrderID)
	if err != nil {
		return fmt.Errorf("refunded order %s has no local hold: %w", sdkOrderID, err)
	}

	hold.MarkRefunded()
	if err := c.holds.Update(ctx, hold); err != nil {
		return fmt.Errorf("failed to mark hold refunded: %w", err)
	}

	c.logger.Info().
		Str("sdk_order_id", sdkOrderID).
		Str("reason", reason).
		Msg("Payment hold refunded")

	return nil
}

// RetrieveOrder reads the gateway's current view of an order
func (c *Client) RetrieveOrder(ctx context.Context, sdkOrderID string) (*outbound.GatewayOrder, error) {
	token, err := c.ensureValidToken(ctx)
	if err != nil {
		return nil, err
	}

	var out orderResponse
	path := fmt.Sprintf("/merchants/%s/sdk-orders/%s", c.merchantID, sdkOrderID)
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&out).
		Get(path)
	if err != nil {
		return nil, &shared.GatewayError{Op: "retrieve_order", Message: err.Error(), Err: err}
	}
	if resp.IsError() {
		return nil, &shared.GatewayError{Op: "retrieve_order", Message: resp.String()}
	}

	order := out.Data.SdkOrder
	return &outbound.GatewayOrder{
		SdkOrderID: order.ID,
		Status:     order.Status,
		Amount:     order.Amount,
	}, nil
}

// ApplyOrderWebhook applies a gateway webhook status to the local hold record
func (c *Client) ApplyOrderWebhook(ctx context.Context, sdkOrderID, status string) error {
	hold, err := c.holds.GetBySdkOrderID(ctx, sdkOrderID)
	if err != nil {
		return err
	}

	if strings.EqualFold(status, string(payment.StatusSuccess)) {
		hold.Status = payment.StatusSuccess
	} else {
		hold.Status = payment.StatusFail
	}

	return c.holds.Update(ctx, hold)
}

// post performs an authenticated POST, retrying exactly once after a
// transparent re-authentication when the gateway rejects the token.
func (c *Client) post(ctx context.Context, op, path string, body, out interface{}) error {
	token, err := c.ensureValidToken(ctx)
	if err != nil {
		return err
	}

	resp, err := c.doPost(ctx, token, path, body, out)
	if err != nil {
		return &shared.GatewayError{Op: op, Message: err.Error(), Err: err}
	}

	if resp.StatusCode() == http.StatusUnauthorized {
		token, err = c.forceAuthenticate(ctx)
		if err != nil {
			return err
		}
		resp, err = c.doPost(ctx, token, path, body, out)
		if err != nil {
			return &shared.GatewayError{Op: op, Message: err.Error(), Err: err}
		}
	}

	if resp.IsError() {
		return &shared.GatewayError{Op: op, Message: resp.String()}
	}

	return nil
}

func (c *Client) doPost(ctx context.Context, token, path string, body, out interface{}) (*resty.Response, error) {
	req := c.http.R().SetContext(ctx).SetAuthToken(token).SetBody(body)
	if out != nil {
		req.SetResult(out)
	}
	return req.Post(path)
}

// ensureValidToken returns a usable bearer token, authenticating on first use
// and refreshing on expiry. Safe for concurrent callers.
func (c *Client) ensureValidToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken == "" {
		if err := c.authenticateLocked(ctx); err != nil {
			return "", err
		}
	} else if !c.tokenExpiry.After(c.now()) {
		if err := c.refreshLocked(ctx); err != nil {
			return "", err
		}
	}

	return c.accessToken, nil
}

// forceAuthenticate discards the cached token pair and logs in again
func (c *Client) forceAuthenticate(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.accessToken = ""
	c.refreshToken = ""
	if err := c.authenticateLocked(ctx); err != nil {
		return "", err
	}
	return c.accessToken, nil
}

func (c *Client) authenticateLocked(ctx context.Context) error {
	var out authResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(authRequest{KeyID: c.keyID, KeySecret: c.keySecret}).
		SetResult(&out).
		Post("/auth/sdk/login")
	if err != nil {
		return &shared.GatewayError{Op: "authenticate", Message: err.Error(), Err: err}
	}
	if resp.IsError() {
		return &shared.GatewayError{Op: "authenticate", Message: resp.String()}
	}

	c.storeTokensLocked(out)
	c.logger.Debug().Time("token_expiry", c.tokenExpiry).Msg("Authenticated with payment gateway")
	return nil
}

// refreshLocked refreshes the token pair; a failed refresh falls back to a
// full re-authentication, mirroring gateway session semantics
func (c *Client) refreshLocked(ctx context.Context) error {
	var out authResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(refreshRequest{RefreshToken: c.refreshToken}).
		SetResult(&out).
		Post("/auth/sdk/refresh")
	if err != nil || resp.IsError() {
		c.refreshToken = ""
		return c.authenticateLocked(ctx)
	}

	c.storeTokensLocked(out)
	c.logger.Debug().Time("token_expiry", c.tokenExpiry).Msg("Refreshed payment gateway token")
	return nil
}

func (c *Client) storeTokensLocked(out authResponse) {
	c.accessToken = out.Data.AccessToken
	c.refreshToken = out.Data.RefreshToken

	expiresIn, err := strconv.ParseInt(out.Data.ExpiresIn, 10, 64)
	if err != nil {
		expiresIn = int64(tokenSlack / time.Millisecond)
	}
	c.tokenExpiry = c.now().Add(time.Duration(expiresIn)*time.Millisecond - tokenSlack)
}
