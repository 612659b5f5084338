package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"engage-rewards-service/internal/model"
	"engage-rewards-service/internal/payment"
	"engage-rewards-service/internal/repository"
)

// Payment errors.
var (
	ErrUnknownGateway  = errors.New("unknown payment gateway")
	ErrInvalidCurrency = errors.New("currency must be a 3-letter code")
	ErrNotSettleable   = errors.New("payment is not awaiting settlement")
)

// PaymentService starts hosted checkouts and records their lifecycle.
// The pending row is written before any gateway call so a crashed
// initiation leaves an auditable trail instead of a silent gap.
type PaymentService struct {
	paymentRepo *repository.PaymentRepository
	authz       *Authorizer
	initiators  map[model.PaymentGateway]payment.Initiator
	callbackURL string
}

// NewPaymentService creates a new PaymentService instance.
func NewPaymentService(
	paymentRepo *repository.PaymentRepository,
	authz *Authorizer,
	callbackURL string,
	initiators ...payment.Initiator,
) *PaymentService {
	byGateway := make(map[model.PaymentGateway]payment.Initiator, len(initiators))
	for _, init := range initiators {
		byGateway[init.Gateway()] = init
	}
	return &PaymentService{
		paymentRepo: paymentRepo,
		authz:       authz,
		initiators:  byGateway,
		callbackURL: callbackURL,
	}
}

// Gateways lists the configured gateway names.
func (s *PaymentService) Gateways() []model.PaymentGateway {
	names := make([]model.PaymentGateway, 0, len(s.initiators))
	for name := range s.initiators {
		names = append(names, name)
	}
	return names
}

// InitiateTopUp starts a checkout and returns the transaction with its
// redirect URL populated. The caller supplies the receipt email since
// profiles do not store one.
func (s *PaymentService) InitiateTopUp(ctx context.Context, userID uuid.UUID, gateway model.PaymentGateway, amountCents int64, currency, email string) (*model.PaymentTransaction, error) {
	if amountCents <= 0 {
		return nil, ErrInvalidAmount
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if len(currency) != 3 {
		return nil, ErrInvalidCurrency
	}
	initiator, ok := s.initiators[gateway]
	if !ok {
		return nil, ErrUnknownGateway
	}

	if _, err := s.authz.RequireActive(ctx, userID); err != nil {
		return nil, err
	}

	reference := fmt.Sprintf("topup-%s", uuid.New())
	txn, err := s.paymentRepo.Create(ctx, userID, amountCents, currency, gateway, reference, nil)
	if err != nil {
		return nil, err
	}

	result, err := initiator.Initiate(ctx, payment.InitRequest{
		Email:       email,
		AmountCents: amountCents,
		Currency:    currency,
		Reference:   reference,
		CallbackURL: s.callbackURL,
	})
	if err != nil {
		// Close out the row so it never lingers as pending.
		if _, _, settleErr := s.paymentRepo.SettleByReference(ctx, reference, model.PaymentFailed); settleErr != nil {
			log.Error().
				Err(settleErr).
				Str("reference", reference).
				Msg("Failed to mark payment as failed")
		}
		return nil, fmt.Errorf("failed to initiate checkout: %w", err)
	}

	if err := s.paymentRepo.SetRedirectURL(ctx, txn.ID, result.RedirectURL); err != nil {
		return nil, err
	}
	txn.RedirectURL = &result.RedirectURL

	log.Info().
		Str("user_id", userID.String()).
		Str("gateway", string(gateway)).
		Int64("amount_cents", amountCents).
		Str("currency", currency).
		Str("reference", reference).
		Msg("Checkout initiated")
	return txn, nil
}

// VerifyWebhook checks a gateway's webhook signature against the raw
// request body.
func (s *PaymentService) VerifyWebhook(gateway model.PaymentGateway, signature string, body []byte) error {
	initiator, ok := s.initiators[gateway]
	if !ok {
		return ErrUnknownGateway
	}
	return initiator.VerifyWebhook(signature, body)
}

// Settle moves a pending transaction to completed or failed. Replays
// of an already-settled reference return ErrNotSettleable so callers
// can acknowledge the duplicate without acting on it.
func (s *PaymentService) Settle(ctx context.Context, reference string, succeeded bool) (*model.PaymentTransaction, error) {
	status := model.PaymentFailed
	if succeeded {
		status = model.PaymentCompleted
	}

	txn, settled, err := s.paymentRepo.SettleByReference(ctx, reference, status)
	if err != nil {
		return nil, err
	}
	if !settled {
		existing, err := s.paymentRepo.GetByReference(ctx, reference)
		if err != nil {
			if errors.Is(err, repository.ErrPaymentNotFound) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		log.Info().
			Str("reference", reference).
			Str("status", string(existing.Status)).
			Msg("Duplicate settlement ignored")
		return existing, ErrNotSettleable
	}

	log.Info().
		Str("user_id", txn.UserID.String()).
		Str("reference", reference).
		Str("status", string(status)).
		Msg("Payment settled")
	return txn, nil
}

// Get returns one of the caller's own transactions.
func (s *PaymentService) Get(ctx context.Context, userID, paymentID uuid.UUID) (*model.PaymentTransaction, error) {
	txn, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if txn.UserID != userID {
		return nil, ErrNotFound
	}
	return txn, nil
}

// History returns the caller's transactions, newest first.
func (s *PaymentService) History(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.PaymentTransaction, error) {
	return s.paymentRepo.ListByUser(ctx, userID, limit, offset)
}
