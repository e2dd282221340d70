package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/JoniWarrior/Auction-System-Backend/internal/domain/auction"
	"github.com/JoniWarrior/Auction-System-Backend/internal/domain/bid"
	"github.com/JoniWarrior/Auction-System-Backend/internal/domain/payment"
	"github.com/JoniWarrior/Auction-System-Backend/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// BidRepository implements the bid ledger interface
type BidRepository struct {
	conn *Connection
}

// NewBidRepository creates a new bid repository
func NewBidRepository(conn *Connection) *BidRepository {
	return &BidRepository{conn: conn}
}

const bidSelect = `
	SELECT b.id, b.auction_id, b.bidder_id, b.amount, b.original_amount, b.currency, b.transaction_id, b.created_at,
	       u.name, u.email,
	       t.sdk_order_id, t.status
	FROM bids b
	JOIN users u ON u.id = b.bidder_id
	LEFT JOIN transactions t ON t.id = b.transaction_id
`

func scanBid(row interface{ Scan(...interface{}) error }) (*bid.Bid, error) {
	var b bid.Bid
	var bidderName, bidderEmail string
	var sdkOrderID sql.NullString
	var holdStatus sql.NullString

	err := row.Scan(
		&b.ID,
		&b.AuctionID,
		&b.BidderID,
		&b.Amount,
		&b.OriginalAmount,
		&b.Currency,
		&b.TransactionID,
		&b.CreatedAt,
		&bidderName,
		&bidderEmail,
		&sdkOrderID,
		&holdStatus,
	)
	if err != nil {
		return nil, err
	}

	b.Bidder = &shared.User{ID: b.BidderID, Name: bidderName, Email: bidderEmail}
	if holdStatus.Valid {
		hold := &payment.Hold{ID: b.TransactionID, Status: payment.Status(holdStatus.String)}
		if sdkOrderID.Valid {
			hold.SdkOrderID = &sdkOrderID.String
		}
		b.Hold = hold
	}

	return &b, nil
}

// RecordWithPriceUpdate atomically inserts the bid, claims its payment hold
// and writes the auction's new price and status. Serialization of concurrent
// bidders comes from the auction lock; the transaction only guarantees the
// commit is all-or-nothing.
func (r *BidRepository) RecordWithPriceUpdate(ctx context.Context, newBid *bid.Bid, auc *auction.Auction) error {
	return r.conn.ExecuteTransaction(ctx, func(tx *sql.Tx) error {
		insertBid := `
			INSERT INTO bids (id, auction_id, bidder_id, amount, original_amount, currency, transaction_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`

		_, err := tx.ExecContext(ctx, insertBid,
			newBid.ID,
			newBid.AuctionID,
			newBid.BidderID,
			newBid.Amount,
			newBid.OriginalAmount,
			newBid.Currency,
			newBid.TransactionID,
			newBid.CreatedAt,
		)
		if err != nil {
			if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
				return shared.ErrHoldAlreadyLinked
			}
			return fmt.Errorf("failed to insert bid: %w", err)
		}

		claimHold := `
			UPDATE transactions
			SET bid_id = $2
			WHERE id = $1 AND bid_id IS NULL
		`

		claimed, err := tx.ExecContext(ctx, claimHold, newBid.TransactionID, newBid.ID)
		if err != nil {
			return fmt.Errorf("failed to link bid to transaction: %w", err)
		}
		claimedRows, err := claimed.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if claimedRows == 0 {
			return shared.ErrHoldAlreadyLinked
		}

		updateAuction := `
			UPDATE auctions
			SET current_price = $2, status = $3, updated_at = $4
			WHERE id = $1 AND deleted_at IS NULL
		`

		result, err := tx.ExecContext(ctx, updateAuction,
			auc.ID,
			auc.CurrentPrice,
			auc.Status,
			auc.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to update auction price: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return shared.ErrAuctionNotFound
		}

		return nil
	})
}

// GetByID retrieves a bid by ID with its bidder and hold loaded
func (r *BidRepository) GetByID(ctx context.Context, id uuid.UUID) (*bid.Bid, error) {
	query := bidSelect + ` WHERE b.id = $1 AND b.deleted_at IS NULL`

	b, err := scanBid(r.conn.GetDB().QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, shared.ErrBidNotFound
		}
		return nil, fmt.Errorf("failed to get bid: %w", err)
	}

	return b, nil
}

// GetHighestBid retrieves the highest bid for an auction as a direct query,
// ties broken by earliest creation
func (r *BidRepository) GetHighestBid(ctx context.Context, auctionID uuid.UUID) (*bid.Bid, error) {
	query := bidSelect + `
		WHERE b.auction_id = $1 AND b.deleted_at IS NULL
		ORDER BY b.amount DESC, b.created_at ASC
		LIMIT 1
	`

	b, err := scanBid(r.conn.GetDB().QueryRowContext(ctx, query, auctionID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, shared.ErrNoBidsFound
		}
		return nil, fmt.Errorf("failed to get highest bid: %w", err)
	}

	return b, nil
}

// ListByAuction retrieves all bids for an auction, highest first
func (r *BidRepository) ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]*bid.Bid, error) {
	query := bidSelect + `
		WHERE b.auction_id = $1 AND b.deleted_at IS NULL
		ORDER BY b.amount DESC, b.created_at ASC
	`

	return r.queryBids(ctx, query, auctionID)
}

// ListByBidder retrieves all bids placed by a bidder, newest first
func (r *BidRepository) ListByBidder(ctx context.Context, bidderID uuid.UUID) ([]*bid.Bid, error) {
	query := bidSelect + `
		WHERE b.bidder_id = $1 AND b.deleted_at IS NULL
		ORDER BY b.created_at DESC
	`

	return r.queryBids(ctx, query, bidderID)
}

// SoftDelete marks a bid deleted for audit purposes
func (r *BidRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE bids SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.conn.GetDB().ExecContext(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("failed to delete bid: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return shared.ErrBidNotFound
	}

	return nil
}

func (r *BidRepository) queryBids(ctx context.Context, query string, args ...interface{}) ([]*bid.Bid, error) {
	rows, err := r.conn.GetDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bids: %w", err)
	}
	defer rows.Close()

	var bids []*bid.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		bids = append(bids, b)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bids: %w", err)
	}

	return bids, nil
}
