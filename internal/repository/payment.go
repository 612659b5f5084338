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

// ErrPaymentNotFound is returned when a payment transaction does not exist.
var ErrPaymentNotFound = errors.New("payment transaction not found")

const paymentColumns = `id, user_id, amount_cents, currency, gateway, status, reference, redirect_url, created_at, updated_at`

// PaymentRepository persists gateway checkout transactions.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository creates a new PaymentRepository instance.
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

func scanPayment(row pgx.Row) (*model.PaymentTransaction, error) {
	var p model.PaymentTransaction
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.AmountCents,
		&p.Currency,
		&p.Gateway,
		&p.Status,
		&p.Reference,
		&p.RedirectURL,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create records a pending checkout before the user is redirected to
// the gateway.
func (r *PaymentRepository) Create(ctx context.Context, userID uuid.UUID, amountCents int64, currency string, gateway model.PaymentGateway, reference string, redirectURL *string) (*model.PaymentTransaction, error) {
	const query = `
		INSERT INTO payment_transactions (id, user_id, amount_cents, currency, gateway, status, reference, redirect_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING ` + paymentColumns

	p, err := scanPayment(r.pool.QueryRow(ctx, query,
		uuid.New(), userID, amountCents, currency, gateway, model.PaymentPending, reference, redirectURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create payment transaction: %w", err)
	}
	return p, nil
}

// GetByID retrieves a payment transaction.
func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.PaymentTransaction, error) {
	const query = `SELECT ` + paymentColumns + ` FROM payment_transactions WHERE id = $1`

	p, err := scanPayment(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment transaction: %w", err)
	}
	return p, nil
}

// GetByReference retrieves a payment transaction by its gateway
// reference, the key webhooks carry.
func (r *PaymentRepository) GetByReference(ctx context.Context, reference string) (*model.PaymentTransaction, error) {
	const query = `SELECT ` + paymentColumns + ` FROM payment_transactions WHERE reference = $1`

	p, err := scanPayment(r.pool.QueryRow(ctx, query, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment transaction: %w", err)
	}
	return p, nil
}

// SetRedirectURL stores the checkout URL returned by the gateway.
func (r *PaymentRepository) SetRedirectURL(ctx context.Context, id uuid.UUID, redirectURL string) error {
	const query = `
		UPDATE payment_transactions
		SET redirect_url = $2, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id, redirectURL)
	if err != nil {
		return fmt.Errorf("failed to set redirect url: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

// SettleByReference moves a pending transaction to its terminal
// status. Replayed webhooks find no pending row and report false.
func (r *PaymentRepository) SettleByReference(ctx context.Context, reference string, status model.PaymentStatus) (*model.PaymentTransaction, bool, error) {
	const query = `
		UPDATE payment_transactions
		SET status = $2, updated_at = NOW()
		WHERE reference = $1 AND status = $3
		RETURNING ` + paymentColumns

	p, err := scanPayment(r.pool.QueryRow(ctx, query, reference, status, model.PaymentPending))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to settle payment transaction: %w", err)
	}
	return p, true, nil
}

// ListByUser returns a user's payment transactions, newest first.
func (r *PaymentRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.PaymentTransaction, error) {
	const query = `
		SELECT ` + paymentColumns + `
		FROM payment_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment transactions: %w", err)
	}
	defer rows.Close()

	var payments []*model.PaymentTransaction
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment transaction: %w", err)
		}
		payments = append(payments, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payment transactions: %w", err)
	}
	return payments, nil
}
