package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"engage-rewards-service/internal/model"
	"engage-rewards-service/internal/pkg/db"
	"engage-rewards-service/internal/pkg/lock"
	"engage-rewards-service/internal/repository"
	"engage-rewards-service/internal/reward/pricing"
)

// Store errors. Each carries a message distinct enough for the UI to
// surface as-is; "already redeemed", "not enough points", and "out of
// stock" are different user situations and stay different errors.
var (
	ErrItemInactive       = errors.New("this item is no longer available")
	ErrOutOfStock         = errors.New("this item is out of stock")
	ErrInsufficientPoints = errors.New("not enough points for this redemption")
	ErrStalePrice         = errors.New("item price has changed, refresh and try again")
	ErrInvalidItem        = errors.New("item needs a name, a positive cost, and a known type")
	ErrInvalidTransition  = errors.New("redemption can only move from pending to fulfilled or cancelled")
)

// ItemView pairs a catalog item with its fiat-equivalent price in the
// viewer's display currency.
type ItemView struct {
	Item            *model.RedeemableItem `json:"item"`
	DisplayCost     float64               `json:"display_cost"`
	DisplayCurrency string                `json:"display_currency"`
}

// RedemptionResult is a successful redemption.
type RedemptionResult struct {
	Redemption *model.RedeemedItem `json:"redemption"`
	NewBalance int64               `json:"new_balance"`
}

var validItemTypes = map[model.ItemType]bool{
	model.ItemGiftCard:         true,
	model.ItemSubscriptionCode: true,
	model.ItemPaypalPayout:     true,
	model.ItemBankTransfer:     true,
	model.ItemPhysicalItem:     true,
}

// StoreService runs the points store: browsing with display-currency
// pricing, redemption with the stock and balance guarantees, and the
// admin side of catalog and fulfilment management. The redemption path
// is a single transaction over live rows; client-supplied prices are
// only ever used to detect a stale UI, never charged.
type StoreService struct {
	pool        *pgxpool.Pool
	profileRepo *repository.ProfileRepository
	ledgerRepo  *repository.LedgerRepository
	catalogRepo *repository.CatalogRepository
	converter   *pricing.Converter
	authz       *Authorizer
	userLock    *lock.UserLock
}

// NewStoreService creates a new StoreService instance.
func NewStoreService(
	pool *pgxpool.Pool,
	profileRepo *repository.ProfileRepository,
	ledgerRepo *repository.LedgerRepository,
	catalogRepo *repository.CatalogRepository,
	converter *pricing.Converter,
	authz *Authorizer,
	userLock *lock.UserLock,
) *StoreService {
	return &StoreService{
		pool:        pool,
		profileRepo: profileRepo,
		ledgerRepo:  ledgerRepo,
		catalogRepo: catalogRepo,
		converter:   converter,
		authz:       authz,
		userLock:    userLock,
	}
}

// ListItems returns active items priced in displayCurrency. An empty
// currency shows each item in its own stored currency.
func (s *StoreService) ListItems(ctx context.Context, displayCurrency string, limit, offset int) ([]ItemView, error) {
	items, err := s.catalogRepo.ListActiveItems(ctx, limit, offset)
	if err != nil {
		return nil, err
	}

	views := make([]ItemView, 0, len(items))
	for _, item := range items {
		currency := displayCurrency
		if currency == "" {
			currency = item.Currency
		}
		cost, err := s.converter.DisplayCost(*item, currency)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve display cost for item %s: %w", item.ID, err)
		}
		views = append(views, ItemView{
			Item:            item,
			DisplayCost:     cost,
			DisplayCurrency: strings.ToUpper(currency),
		})
	}
	return views, nil
}

// Redeem exchanges points for an item. Inside one transaction: the
// item row is locked, activity / price / stock are validated against
// live data, the points are debited, the stock decremented, and the
// pending fulfilment record written. Any failure leaves every row
// untouched. expectedCost is the price the client saw; a mismatch
// fails fast with ErrStalePrice before anything is charged.
func (s *StoreService) Redeem(ctx context.Context, userID, itemID uuid.UUID, expectedCost int64) (*RedemptionResult, error) {
	if _, err := s.authz.RequireActive(ctx, userID); err != nil {
		return nil, err
	}

	if !s.userLock.TryLock(userID) {
		return nil, ErrConcurrentRequest
	}
	defer s.userLock.Unlock(userID)

	var result RedemptionResult
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		item, err := s.catalogRepo.GetItemForUpdateTx(ctx, tx, itemID)
		if err != nil {
			if errors.Is(err, repository.ErrItemNotFound) {
				return ErrNotFound
			}
			return err
		}

		if !item.IsActive {
			return ErrItemInactive
		}
		if item.PointsCost != expectedCost {
			return ErrStalePrice
		}
		if item.StockQuantity != nil && *item.StockQuantity <= 0 {
			return ErrOutOfStock
		}

		balance, err := s.profileRepo.DebitPointsTx(ctx, tx, userID, item.PointsCost)
		if err != nil {
			if errors.Is(err, repository.ErrInsufficientPoints) {
				return ErrInsufficientPoints
			}
			if errors.Is(err, repository.ErrProfileNotFound) {
				return ErrProfileNotFound
			}
			return err
		}

		decremented, err := s.catalogRepo.DecrementStockTx(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if !decremented {
			return ErrOutOfStock
		}

		redemption, err := s.catalogRepo.InsertRedemptionTx(ctx, tx, userID, item)
		if err != nil {
			return err
		}

		desc := "Redeemed " + item.Name
		if _, err := s.ledgerRepo.InsertTx(ctx, tx, userID, -item.PointsCost, model.EntryRedemption, &desc); err != nil {
			return err
		}

		result = RedemptionResult{Redemption: redemption, NewBalance: balance}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("item_id", itemID.String()).
		Int64("points", result.Redemption.PointsCost).
		Msg("Item redeemed")
	return &result, nil
}

// RedemptionHistory returns a user's redemptions, newest first.
func (s *StoreService) RedemptionHistory(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.RedeemedItem, error) {
	return s.catalogRepo.ListRedemptionsByUser(ctx, userID, limit, offset)
}

// CreateItem adds a catalog item. Admin only.
func (s *StoreService) CreateItem(ctx context.Context, actorID uuid.UUID, name string, itemType model.ItemType, pointsCost int64, currency string, stock *int) (*model.RedeemableItem, error) {
	actor, err := s.authz.RequireAdmin(ctx, actorID, "store.item.create")
	if err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" || pointsCost <= 0 || !validItemTypes[itemType] || (stock != nil && *stock < 0) {
		return nil, ErrInvalidItem
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if !s.converter.Supports(currency) {
		return nil, fmt.Errorf("%w: unsupported currency %q", ErrInvalidItem, currency)
	}

	item, err := s.catalogRepo.CreateItem(ctx, name, itemType, pointsCost, currency, stock)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("actor_id", actor.ID.String()).
		Str("item_id", item.ID.String()).
		Str("operation", "store.item.create").
		Msg("Admin operation executed")
	return item, nil
}

// UpdateItem changes an item's name, cost, or currency. Admin only.
func (s *StoreService) UpdateItem(ctx context.Context, actorID, itemID uuid.UUID, name string, pointsCost int64, currency string) (*model.RedeemableItem, error) {
	actor, err := s.authz.RequireAdmin(ctx, actorID, "store.item.update")
	if err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" || pointsCost <= 0 {
		return nil, ErrInvalidItem
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if !s.converter.Supports(currency) {
		return nil, fmt.Errorf("%w: unsupported currency %q", ErrInvalidItem, currency)
	}

	item, err := s.catalogRepo.UpdateItem(ctx, itemID, name, pointsCost, currency)
	if err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	log.Info().
		Str("actor_id", actor.ID.String()).
		Str("item_id", itemID.String()).
		Str("operation", "store.item.update").
		Msg("Admin operation executed")
	return item, nil
}

// SetItemActive shows or hides an item. Admin only.
func (s *StoreService) SetItemActive(ctx context.Context, actorID, itemID uuid.UUID, active bool) error {
	actor, err := s.authz.RequireAdmin(ctx, actorID, "store.item.set_active")
	if err != nil {
		return err
	}

	if err := s.catalogRepo.SetItemActive(ctx, itemID, active); err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			return ErrNotFound
		}
		return err
	}

	log.Info().
		Str("actor_id", actor.ID.String()).
		Str("item_id", itemID.String()).
		Bool("active", active).
		Str("operation", "store.item.set_active").
		Msg("Admin operation executed")
	return nil
}

// Restock replaces an item's stock count; nil makes it unlimited.
// Admin only.
func (s *StoreService) Restock(ctx context.Context, actorID, itemID uuid.UUID, stock *int) error {
	actor, err := s.authz.RequireAdmin(ctx, actorID, "store.item.restock")
	if err != nil {
		return err
	}
	if stock != nil && *stock < 0 {
		return ErrInvalidItem
	}

	if err := s.catalogRepo.Restock(ctx, itemID, stock); err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			return ErrNotFound
		}
		return err
	}

	log.Info().
		Str("actor_id", actor.ID.String()).
		Str("item_id", itemID.String()).
		Str("operation", "store.item.restock").
		Msg("Admin operation executed")
	return nil
}

// PendingRedemptions lists redemptions awaiting fulfilment, oldest
// first. Admin only.
func (s *StoreService) PendingRedemptions(ctx context.Context, actorID uuid.UUID, limit, offset int) ([]*model.RedeemedItem, error) {
	if _, err := s.authz.RequireAdmin(ctx, actorID, "store.redemption.list_pending"); err != nil {
		return nil, err
	}
	return s.catalogRepo.ListRedemptionsByStatus(ctx, model.RedemptionPending, limit, offset)
}

// Fulfill marks a pending redemption delivered, recording the
// fulfilment details (code, tracking number). Admin only.
func (s *StoreService) Fulfill(ctx context.Context, actorID, redemptionID uuid.UUID, details *string) error {
	actor, err := s.authz.RequireAdmin(ctx, actorID, "store.redemption.fulfill")
	if err != nil {
		return err
	}

	err = db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		redemption, err := s.catalogRepo.GetRedemptionForUpdateTx(ctx, tx, redemptionID)
		if err != nil {
			if errors.Is(err, repository.ErrRedemptionNotFound) {
				return ErrNotFound
			}
			return err
		}
		if !redemption.Status.CanTransitionTo(model.RedemptionFulfilled) {
			return ErrInvalidTransition
		}
		return s.catalogRepo.UpdateRedemptionStatusTx(ctx, tx, redemptionID, model.RedemptionFulfilled, details)
	})
	if err != nil {
		return err
	}

	log.Info().
		Str("actor_id", actor.ID.String()).
		Str("redemption_id", redemptionID.String()).
		Str("operation", "store.redemption.fulfill").
		Msg("Admin operation executed")
	return nil
}

// Cancel voids a pending redemption, refunding the charged points and
// restoring tracked stock in the same transaction. Admin only.
func (s *StoreService) Cancel(ctx context.Context, actorID, redemptionID uuid.UUID, reason *string) error {
	actor, err := s.authz.RequireAdmin(ctx, actorID, "store.redemption.cancel")
	if err != nil {
		return err
	}

	err = db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		redemption, err := s.catalogRepo.GetRedemptionForUpdateTx(ctx, tx, redemptionID)
		if err != nil {
			if errors.Is(err, repository.ErrRedemptionNotFound) {
				return ErrNotFound
			}
			return err
		}
		if !redemption.Status.CanTransitionTo(model.RedemptionCancelled) {
			return ErrInvalidTransition
		}

		if err := s.catalogRepo.UpdateRedemptionStatusTx(ctx, tx, redemptionID, model.RedemptionCancelled, reason); err != nil {
			return err
		}

		if _, err := s.profileRepo.CreditPointsTx(ctx, tx, redemption.UserID, redemption.PointsCost); err != nil {
			return err
		}
		desc := "Refund for cancelled redemption: " + redemption.ItemName
		if _, err := s.ledgerRepo.InsertTx(ctx, tx, redemption.UserID, redemption.PointsCost, model.EntryRedemptionRefund, &desc); err != nil {
			return err
		}

		return s.catalogRepo.RestoreStockTx(ctx, tx, redemption.ItemID)
	})
	if err != nil {
		return err
	}

	log.Info().
		Str("actor_id", actor.ID.String()).
		Str("redemption_id", redemptionID.String()).
		Str("operation", "store.redemption.cancel").
		Msg("Admin operation executed")
	return nil
}
