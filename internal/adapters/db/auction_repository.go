package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/JoniWarrior/Auction-System-Backend/internal/domain/auction"
	"github.com/JoniWarrior/Auction-System-Backend/internal/domain/shared"

	"github.com/google/uuid"
)

// AuctionRepository implements the auction repository interface
type AuctionRepository struct {
	conn *Connection
}

// NewAuctionRepository creates a new auction repository
func NewAuctionRepository(conn *Connection) *AuctionRepository {
	return &AuctionRepository{conn: conn}
}

const auctionColumns = `id, item_id, owner_id, starting_price, current_price, end_time, status, winning_bid_id, created_at, updated_at, deleted_at`

func scanAuction(row interface{ Scan(...interface{}) error }) (*auction.Auction, error) {
	var a auction.Auction
	var winningBidID uuid.NullUUID
	var deletedAt sql.NullTime

	err := row.Scan(
		&a.ID,
		&a.ItemID,
		&a.OwnerID,
		&a.StartingPrice,
		&a.CurrentPrice,
		&a.EndTime,
		&a.Status,
		&winningBidID,
		&a.CreatedAt,
		&a.UpdatedAt,
		&deletedAt,
	)
	if err != nil {
		return nil, err
	}

	if winningBidID.Valid {
		a.WinningBidID = &winningBidID.UUID
	}
	if deletedAt.Valid {
		a.DeletedAt = &deletedAt.Time
	}

	return &a, nil
}

// Create creates a new auction
func (r *AuctionRepository) Create(ctx context.Context, a *auction.Auction) error {
	query := `
		INSERT INTO auctions (id, item_id, owner_id, starting_price, current_price, end_time, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.conn.GetDB().ExecContext(ctx, query,
		a.ID,
		a.ItemID,
		a.OwnerID,
		a.StartingPrice,
		a.CurrentPrice,
		a.EndTime,
		a.Status,
		a.CreatedAt,
		a.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create auction: %w", err)
	}

	return nil
}

// GetByID retrieves an auction by ID, excluding soft-deleted rows
func (r *AuctionRepository) GetByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error) {
	query := `
		SELECT ` + auctionColumns + `
		FROM auctions
		WHERE id = $1 AND deleted_at IS NULL
	`

	a, err := scanAuction(r.conn.GetDB().QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, shared.ErrAuctionNotFound
		}
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}

	return a, nil
}

// List retrieves a list of auctions with optional status filter
func (r *AuctionRepository) List(ctx context.Context, status *auction.Status, page, pageSize int) ([]*auction.Auction, error) {
	baseQuery := `
		SELECT ` + auctionColumns + `
		FROM auctions
		WHERE deleted_at IS NULL
	`

	var args []interface{}
	argCount := 1

	if status != nil {
		baseQuery += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, *status)
		argCount++
	}

	query := baseQuery + fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argCount, argCount+1)
	args = append(args, pageSize, (page-1)*pageSize)

	return r.queryAuctions(ctx, query, args...)
}

// FindExpired retrieves non-terminal auctions whose end time has passed
func (r *AuctionRepository) FindExpired(ctx context.Context, now time.Time, limit int) ([]*auction.Auction, error) {
	query := `
		SELECT ` + auctionColumns + `
		FROM auctions
		WHERE end_time < $1 AND status NOT IN ($2, $3) AND deleted_at IS NULL
		ORDER BY end_time ASC
		LIMIT $4
	`

	return r.queryAuctions(ctx, query, now, auction.StatusFinished, auction.StatusCancelled, limit)
}

// FindLiveByItemID retrieves pending or active auctions for an item
func (r *AuctionRepository) FindLiveByItemID(ctx context.Context, itemID uuid.UUID) ([]*auction.Auction, error) {
	query := `
		SELECT ` + auctionColumns + `
		FROM auctions
		WHERE item_id = $1 AND status IN ($2, $3) AND deleted_at IS NULL
		ORDER BY created_at DESC
	`

	return r.queryAuctions(ctx, query, itemID, auction.StatusPending, auction.StatusActive)
}

// Update updates an auction
func (r *AuctionRepository) Update(ctx context.Context, a *auction.Auction) error {
	query := `
		UPDATE auctions
		SET current_price = $2, end_time = $3, status = $4, winning_bid_id = $5, updated_at = $6
		WHERE id = $1 AND deleted_at IS NULL
	`

	var winningBidID uuid.NullUUID
	if a.WinningBidID != nil {
		winningBidID = uuid.NullUUID{UUID: *a.WinningBidID, Valid: true}
	}

	result, err := r.conn.GetDB().ExecContext(ctx, query,
		a.ID,
		a.CurrentPrice,
		a.EndTime,
		a.Status,
		winningBidID,
		a.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to update auction: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return shared.ErrAuctionNotFound
	}

	return nil
}

// SoftDelete marks an auction deleted, preserving its bid history
func (r *AuctionRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE auctions SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.conn.GetDB().ExecContext(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("failed to delete auction: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return shared.ErrAuctionNotFound
	}

	return nil
}

func (r *AuctionRepository) queryAuctions(ctx context.Context, query string, args ...interface{}) ([]*auction.Auction, error) {
	rows, err := r.conn.GetDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query auctions: %w", err)
	}
	defer rows.Close()

	var auctions []*auction.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan auction: %w", err)
		}
		auctions = append(auctions, a)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating auctions: %w", err)
	}

	return auctions, nil
}
