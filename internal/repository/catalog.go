package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"engage-rewards-service/internal/model"
)

// Catalog-related errors.
var (
	ErrItemNotFound       = errors.New("item not found")
	ErrRedemptionNotFound = errors.New("redemption not found")
	ErrOutOfStock         = errors.New("item out of stock")
)

const itemColumns = `id, name, item_type, points_cost, currency, stock_quantity, is_active, created_at, updated_at`
const redemptionColumns = `id, user_id, item_id, item_name, points_cost, status, fulfillment_details, redeemed_at, updated_at`

// CatalogRepository handles redeemable items and redemption records.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository creates a new CatalogRepository instance.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

func scanItem(row pgx.Row) (*model.RedeemableItem, error) {
	var item model.RedeemableItem
	err := row.Scan(
		&item.ID,
		&item.Name,
		&item.ItemType,
		&item.PointsCost,
		&item.Currency,
		&item.StockQuantity,
		&item.IsActive,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func scanRedemption(row pgx.Row) (*model.RedeemedItem, error) {
	var rec model.RedeemedItem
	err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.ItemID,
		&rec.ItemName,
		&rec.PointsCost,
		&rec.Status,
		&rec.FulfillmentDetails,
		&rec.RedeemedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateItem adds a catalog item. A nil stock means unlimited.
func (r *CatalogRepository) CreateItem(ctx context.Context, name string, itemType model.ItemType, pointsCost int64, currency string, stock *int) (*model.RedeemableItem, error) {
	const query = `
		INSERT INTO redeemable_items (id, name, item_type, points_cost, currency, stock_quantity, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, NOW(), NOW())
		RETURNING ` + itemColumns

	item, err := scanItem(r.pool.QueryRow(ctx, query, uuid.New(), name, itemType, pointsCost, currency, stock))
	if err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}
	return item, nil
}

// GetItemByID retrieves a catalog item.
func (r *CatalogRepository) GetItemByID(ctx context.Context, id uuid.UUID) (*model.RedeemableItem, error) {
	const query = `SELECT ` + itemColumns + ` FROM redeemable_items WHERE id = $1`

	item, err := scanItem(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

// ListActiveItems returns the purchasable catalog, cheapest first.
func (r *CatalogRepository) ListActiveItems(ctx context.Context, limit, offset int) ([]*model.RedeemableItem, error) {
	const query = `
		SELECT ` + itemColumns + `
		FROM redeemable_items
		WHERE is_active
		ORDER BY points_cost ASC, name ASC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []*model.RedeemableItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}
	return items, nil
}

// UpdateItem updates a catalog item's purchasable fields. Existing
// redemption records keep the name and cost they were charged.
func (r *CatalogRepository) UpdateItem(ctx context.Context, id uuid.UUID, name string, pointsCost int64, currency string) (*model.RedeemableItem, error) {
	const query = `
		UPDATE redeemable_items
		SET name = $2, points_cost = $3, currency = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + itemColumns

	item, err := scanItem(r.pool.QueryRow(ctx, query, id, name, pointsCost, currency))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to update item: %w", err)
	}
	return item, nil
}

// SetItemActive flips an item in or out of the store.
func (r *CatalogRepository) SetItemActive(ctx context.Context, id uuid.UUID, active bool) error {
	const query = `UPDATE redeemable_items SET is_active = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, active)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

// Restock sets an item's stock level. A nil stock switches the item to
// unlimited.
func (r *CatalogRepository) Restock(ctx context.Context, id uuid.UUID, stock *int) error {
	const query = `UPDATE redeemable_items SET stock_quantity = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, stock)
	if err != nil {
		return fmt.Errorf("failed to restock item: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

// GetItemForUpdateTx reads an item inside tx with a row lock, pinning
// price, stock, and active flag until commit.
func (r *CatalogRepository) GetItemForUpdateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.RedeemableItem, error) {
	const query = `SELECT ` + itemColumns + ` FROM redeemable_items WHERE id = $1 FOR UPDATE`

	item, err := scanItem(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to lock item: %w", err)
	}
	return item, nil
}

// DecrementStockTx takes one unit of tracked stock inside tx. The
// stock_quantity > 0 guard keeps stock from ever going negative; false
// means the item sold out. Unlimited-stock items pass through
// untouched.
func (r *CatalogRepository) DecrementStockTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error) {
	const query = `
		UPDATE redeemable_items
		SET stock_quantity = CASE WHEN stock_quantity IS NULL THEN NULL ELSE stock_quantity - 1 END,
		    updated_at = NOW()
		WHERE id = $1 AND (stock_quantity IS NULL OR stock_quantity > 0)
	`

	result, err := tx.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to decrement stock: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// InsertRedemptionTx writes the audit row for a successful redemption
// inside tx, pending fulfilment.
func (r *CatalogRepository) InsertRedemptionTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, item *model.RedeemableItem) (*model.RedeemedItem, error) {
	const query = `
		INSERT INTO redeemed_items (id, user_id, item_id, item_name, points_cost, status, redeemed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING ` + redemptionColumns

	rec, err := scanRedemption(tx.QueryRow(ctx, query, uuid.New(), userID, item.ID, item.Name, item.PointsCost, model.RedemptionPending))
	if err != nil {
		return nil, fmt.Errorf("failed to insert redemption: %w", err)
	}
	return rec, nil
}

// GetRedemptionByID retrieves a redemption record.
func (r *CatalogRepository) GetRedemptionByID(ctx context.Context, id uuid.UUID) (*model.RedeemedItem, error) {
	const query = `SELECT ` + redemptionColumns + ` FROM redeemed_items WHERE id = $1`

	rec, err := scanRedemption(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRedemptionNotFound
		}
		return nil, fmt.Errorf("failed to get redemption: %w", err)
	}
	return rec, nil
}

// GetRedemptionForUpdateTx reads a redemption inside tx with a row
// lock, for status transitions.
func (r *CatalogRepository) GetRedemptionForUpdateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.RedeemedItem, error) {
	const query = `SELECT ` + redemptionColumns + ` FROM redeemed_items WHERE id = $1 FOR UPDATE`

	rec, err := scanRedemption(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRedemptionNotFound
		}
		return nil, fmt.Errorf("failed to lock redemption: %w", err)
	}
	return rec, nil
}

// ListRedemptionsByUser returns a user's redemption history, newest
// first.
func (r *CatalogRepository) ListRedemptionsByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.RedeemedItem, error) {
	const query = `
		SELECT ` + redemptionColumns + `
		FROM redeemed_items
		WHERE user_id = $1
		ORDER BY redeemed_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list redemptions: %w", err)
	}
	defer rows.Close()

	var recs []*model.RedeemedItem
	for rows.Next() {
		rec, err := scanRedemption(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan redemption: %w", err)
		}
		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating redemptions: %w", err)
	}
	return recs, nil
}

// ListRedemptionsByStatus returns redemption records awaiting action,
// oldest first, for the fulfilment queue.
func (r *CatalogRepository) ListRedemptionsByStatus(ctx context.Context, status model.RedemptionStatus, limit, offset int) ([]*model.RedeemedItem, error) {
	const query = `
		SELECT ` + redemptionColumns + `
		FROM redeemed_items
		WHERE status = $1
		ORDER BY redeemed_at ASC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list redemptions: %w", err)
	}
	defer rows.Close()

	var recs []*model.RedeemedItem
	for rows.Next() {
		rec, err := scanRedemption(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan redemption: %w", err)
		}
		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating redemptions: %w", err)
	}
	return recs, nil
}

// UpdateRedemptionStatusTx moves a redemption to a new status inside
// tx, recording fulfilment details. Transition legality is checked by
// the caller against the locked row.
func (r *CatalogRepository) UpdateRedemptionStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status model.RedemptionStatus, details *string) error {
	const query = `
		UPDATE redeemed_items
		SET status = $2, fulfillment_details = COALESCE($3, fulfillment_details), updated_at = NOW()
		WHERE id = $1
	`

	result, err := tx.Exec(ctx, query, id, status, details)
	if err != nil {
		return fmt.Errorf("failed to update redemption status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrRedemptionNotFound
	}
	return nil
}

// RestoreStockTx returns one unit of tracked stock inside tx, used
// when a pending redemption is cancelled.
func (r *CatalogRepository) RestoreStockTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	const query = `
		UPDATE redeemable_items
		SET stock_quantity = stock_quantity + 1, updated_at = NOW()
		WHERE id = $1 AND stock_quantity IS NOT NULL
	`

	if _, err := tx.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to restore stock: %w", err)
	}
	return nil
}
