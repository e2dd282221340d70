package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/JoniWarrior/Auction-System-Backend/internal/domain/payment"
	"github.com/JoniWarrior/Auction-System-Backend/internal/domain/shared"

	"github.com/google/uuid"
)

// HoldRepository implements the payment hold repository interface
type HoldRepository struct {
	conn *Connection
}

// NewHoldRepository creates a new payment hold repository
func NewHoldRepository(conn *Connection) *HoldRepository {
	return &HoldRepository{conn: conn}
}

const holdColumns = `id, sdk_order_id, status, original_amount, final_amount, applied_exchange_rate, payment_currency, bid_id, cancelled_at, created_at`

func scanHold(row interface{ Scan(...interface{}) error }) (*payment.Hold, error) {
	var h payment.Hold
	var sdkOrderID sql.NullString
	var bidID uuid.NullUUID
	var cancelledAt sql.NullTime

	err := row.Scan(
		&h.ID,
		&sdkOrderID,
		&h.Status,
		&h.OriginalAmount,
		&h.FinalAmount,
		&h.AppliedExchangeRate,
		&h.PaymentCurrency,
		&bidID,
		&cancelledAt,
		&h.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if sdkOrderID.Valid {
		h.SdkOrderID = &sdkOrderID.String
	}
	if bidID.Valid {
		h.BidID = &bidID.UUID
	}
	if cancelledAt.Valid {
		h.CancelledAt = &cancelledAt.Time
	}

	return &h, nil
}

// Create creates a new payment hold record
func (r *HoldRepository) Create(ctx context.Context, h *payment.Hold) error {
	query := `
		INSERT INTO transactions (id, sdk_order_id, status, original_amount, final_amount, applied_exchange_rate, payment_currency, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.conn.GetDB().ExecContext(ctx, query,
		h.ID,
		h.SdkOrderID,
		h.Status,
		h.OriginalAmount,
		h.FinalAmount,
		h.AppliedExchangeRate,
		h.PaymentCurrency,
		h.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	return nil
}

// GetByID retrieves a hold by ID
func (r *HoldRepository) GetByID(ctx context.Context, id uuid.UUID) (*payment.Hold, error) {
	query := `SELECT ` + holdColumns + ` FROM transactions WHERE id = $1`

	h, err := scanHold(r.conn.GetDB().QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, shared.ErrHoldNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return h, nil
}

// GetBySdkOrderID retrieves a hold by its external gateway order id
func (r *HoldRepository) GetBySdkOrderID(ctx context.Context, sdkOrderID string) (*payment.Hold, error) {
	query := `SELECT ` + holdColumns + ` FROM transactions WHERE sdk_order_id = $1`

	h, err := scanHold(r.conn.GetDB().QueryRowContext(ctx, query, sdkOrderID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, shared.ErrHoldNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return h, nil
}

// Update updates a hold
func (r *HoldRepository) Update(ctx context.Context, h *payment.Hold) error {
	query := `
		UPDATE transactions
		SET sdk_order_id = $2, status = $3, bid_id = $4, cancelled_at = $5
		WHERE id = $1
	`

	var bidID uuid.NullUUID
	if h.BidID != nil {
		bidID = uuid.NullUUID{UUID: *h.BidID, Valid: true}
	}

	result, err := r.conn.GetDB().ExecContext(ctx, query,
		h.ID,
		h.SdkOrderID,
		h.Status,
		bidID,
		h.CancelledAt,
	)

	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return shared.ErrHoldNotFound
	}

	return nil
}
