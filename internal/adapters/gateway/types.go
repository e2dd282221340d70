package gateway

import "github.com/shopspring/decimal"

// Wire types for the POK payments API

type authRequest struct {
	KeyID     string `json:"keyId"`
	KeySecret string `json:"keySecret"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type authResponse struct {
	Data struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
		ExpiresIn    string `json:"expiresIn"` // milliseconds
	} `json:"data"`
}

type createOrderRequest struct {
	Amount      decimal.Decimal   `json:"amount"`
	Currency    string            `json:"currency"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type sdkOrder struct {
	ID                  string          `json:"id"`
	Status              string          `json:"status"`
	Amount              decimal.Decimal `json:"amount"`
	FinalAmount         decimal.Decimal `json:"finalAmount"`
	AppliedExchangeRate decimal.Decimal `json:"appliedExchangeRate"`
	Currency            string          `json:"currency"`
}

type orderResponse struct {
	Data struct {
		SdkOrder sdkOrder `json:"sdkOrder"`
	} `json:"data"`
}

type captureRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type cancelRequest struct {
	CancellationReason string `json:"cancellationReason,omitempty"`
}

type refundRequest struct {
	RefundReason string           `json:"refundReason,omitempty"`
	RefundAmount *decimal.Decimal `json:"refundAmount,omitempty"`
}
