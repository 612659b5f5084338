// Package model defines the data models for the engagement rewards platform.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role identifies what a profile is allowed to do on the platform.
type Role string

const (
	RoleUser       Role = "user"
	RoleModerator  Role = "moderator"
	RoleAmbassador Role = "ambassador"
	RoleAdmin      Role = "admin"
)

// Profile represents a platform member and their point balance.
// Points only change through ledger-backed credit/debit operations;
// nothing writes the balance from request input directly.
type Profile struct {
	ID          uuid.UUID `db:"id"`
	Username    string    `db:"username"`
	Country     *string   `db:"country"`
	Role        Role      `db:"role"`
	Points      int64     `db:"points"`
	IsSuspended bool      `db:"is_suspended"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// LedgerEntry records a single point balance change.
type LedgerEntry struct {
	ID          int64     `db:"id"`
	UserID      uuid.UUID `db:"user_id"`
	Amount      int64     `db:"amount"`
	EntryType   string    `db:"entry_type"`
	Description *string   `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

// Ledger entry types for categorizing point balance changes.
const (
	EntrySpinPrize        = "spin_prize"        // Daily spin wheel prize
	EntryTriviaBase       = "trivia_base"       // Correct trivia answer base award
	EntryTriviaStreak     = "trivia_streak"     // Consecutive-day trivia bonus
	EntryWatchAd          = "watch_ad"          // Rewarded ad view
	EntryRedemption       = "redemption"        // Store redemption debit
	EntryRedemptionRefund = "redemption_refund" // Cancelled redemption refund
	EntryAdminAdd         = "admin_add"         // Admin added points
	EntryAdminSub         = "admin_sub"         // Admin subtracted points
	EntryReferralBonus    = "referral_bonus"    // Ambassador referral bonus
)

// RewardEntryTypes returns the entry types that count as earned rewards
// on activity boards (redemptions and admin corrections excluded).
func RewardEntryTypes() []string {
	return []string{EntrySpinPrize, EntryTriviaBase, EntryTriviaStreak, EntryWatchAd}
}

// DailyAction names one of the once-per-UTC-day reward actions.
type DailyAction string

const (
	ActionSpin    DailyAction = "spin"
	ActionTrivia  DailyAction = "trivia"
	ActionWatchAd DailyAction = "watch_ad"
)

// CycleStatus reports a user's remaining daily reward actions and
// their current trivia streak. All three flags reset at 00:00:00 UTC.
type CycleStatus struct {
	CanSpin       bool `json:"can_spin"`
	CanPlayTrivia bool `json:"can_play_trivia"`
	CanWatchAd    bool `json:"can_watch_ad"`
	TriviaStreak  int  `json:"trivia_streak"`
}

// Ambassador holds the referral-program state for an enrolled profile.
// Rows are deactivated, never deleted. CommissionRate is a denormalized
// display hint; the live tier table is authoritative.
type Ambassador struct {
	UserID         uuid.UUID `db:"user_id"`
	Country        *string   `db:"country"`
	CommissionRate float64   `db:"commission_rate"`
	TotalReferrals int       `db:"total_referrals"`
	TotalEarnings  float64   `db:"total_earnings"`
	IsActive       bool      `db:"is_active"`
	EnrolledAt     time.Time `db:"enrolled_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// CommissionTier maps a referral-count threshold to a commission
// percentage, with optional per-country overrides.
type CommissionTier struct {
	ID           uuid.UUID          `db:"id"`
	MinReferrals int                `db:"min_referrals"`
	GlobalRate   float64            `db:"global_rate"`
	CountryRates map[string]float64 `db:"country_rates"`
	IsActive     bool               `db:"is_active"`
	CreatedAt    time.Time          `db:"created_at"`
	UpdatedAt    time.Time          `db:"updated_at"`
}

// TriviaQuestion is a single-answer challenge. Questions issued to a
// session are never edited in place; content changes create new rows.
type TriviaQuestion struct {
	ID           uuid.UUID `db:"id"`
	Question     string    `db:"question"`
	Options      []string  `db:"options"`
	CorrectIndex int       `db:"correct_index"`
	Country      *string   `db:"country"`
	IsActive     bool      `db:"is_active"`
	CreatedAt    time.Time `db:"created_at"`
}

// TriviaSession tracks one user's daily challenge from issuance to
// grading. At most one session exists per user per UTC day, and the
// row is answered exactly once.
type TriviaSession struct {
	ID            uuid.UUID  `db:"id"`
	UserID        uuid.UUID  `db:"user_id"`
	QuestionID    uuid.UUID  `db:"question_id"`
	SessionDate   time.Time  `db:"session_date"`
	IssuedAt      time.Time  `db:"issued_at"`
	AnsweredAt    *time.Time `db:"answered_at"`
	SelectedIndex *int       `db:"selected_index"`
	Correct       *bool      `db:"correct"`
	PointsEarned  int64      `db:"points_earned"`
}

// StreakState tracks consecutive-UTC-day correct trivia answers.
type StreakState struct {
	UserID          uuid.UUID  `db:"user_id"`
	Streak          int        `db:"streak"`
	LastCorrectDate *time.Time `db:"last_correct_date"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

// ItemType categorizes what a redeemable item turns into on fulfilment.
type ItemType string

const (
	ItemGiftCard         ItemType = "gift_card"
	ItemSubscriptionCode ItemType = "subscription_code"
	ItemPaypalPayout     ItemType = "paypal_payout"
	ItemBankTransfer     ItemType = "bank_transfer"
	ItemPhysicalItem     ItemType = "physical_item"
)

// RedeemableItem is a store catalog entry. StockQuantity of nil means
// unlimited stock; a tracked stock never goes below zero.
type RedeemableItem struct {
	ID            uuid.UUID `db:"id"`
	Name          string    `db:"name"`
	ItemType      ItemType  `db:"item_type"`
	PointsCost    int64     `db:"points_cost"`
	Currency      string    `db:"currency"`
	StockQuantity *int      `db:"stock_quantity"`
	IsActive      bool      `db:"is_active"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// RedemptionStatus is the fulfilment state of a redeemed item.
type RedemptionStatus string

const (
	RedemptionPending   RedemptionStatus = "pending_fulfillment"
	RedemptionFulfilled RedemptionStatus = "fulfilled"
	RedemptionCancelled RedemptionStatus = "cancelled"
)

// CanTransitionTo reports whether a status change is allowed. Only a
// pending redemption may move, and only to a terminal state.
func (s RedemptionStatus) CanTransitionTo(next RedemptionStatus) bool {
	return s == RedemptionPending &&
		(next == RedemptionFulfilled || next == RedemptionCancelled)
}

// RedeemedItem is the audit row written for every successful
// redemption. PointsCost records the amount actually charged, which
// may differ from the item's current price after catalog edits.
type RedeemedItem struct {
	ID                 uuid.UUID        `db:"id"`
	UserID             uuid.UUID        `db:"user_id"`
	ItemID             uuid.UUID        `db:"item_id"`
	ItemName           string           `db:"item_name"`
	PointsCost         int64            `db:"points_cost"`
	Status             RedemptionStatus `db:"status"`
	FulfillmentDetails *string          `db:"fulfillment_details"`
	RedeemedAt         time.Time        `db:"redeemed_at"`
	UpdatedAt          time.Time        `db:"updated_at"`
}

// CountryMetric is one month of recorded ad revenue for a country, as
// written by the external metrics pipeline.
type CountryMetric struct {
	Country   string    `db:"country"`
	Month     time.Time `db:"month"`
	AdRevenue float64   `db:"ad_revenue"`
}

// PaymentGateway identifies an external checkout provider.
type PaymentGateway string

const (
	GatewayStripe   PaymentGateway = "stripe"
	GatewayPaystack PaymentGateway = "paystack"
)

// PaymentStatus tracks a payment transaction through settlement.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// PaymentTransaction records a gateway checkout. The row exists in
// pending status before any redirect URL is handed out; settlement
// happens in a separate webhook flow.
type PaymentTransaction struct {
	ID          uuid.UUID      `db:"id"`
	UserID      uuid.UUID      `db:"user_id"`
	AmountCents int64          `db:"amount_cents"`
	Currency    string         `db:"currency"`
	Gateway     PaymentGateway `db:"gateway"`
	Status      PaymentStatus  `db:"status"`
	Reference   string         `db:"reference"`
	RedirectURL *string        `db:"redirect_url"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

// Poll is a community question with a fixed option list.
type Poll struct {
	ID        uuid.UUID  `db:"id"`
	Question  string     `db:"question"`
	Options   []string   `db:"options"`
	Country   *string    `db:"country"`
	IsActive  bool       `db:"is_active"`
	CreatedBy uuid.UUID  `db:"created_by"`
	CreatedAt time.Time  `db:"created_at"`
	ClosesAt  *time.Time `db:"closes_at"`
}

// PollResult is one option's vote tally.
type PollResult struct {
	OptionIndex int   `db:"option_index"`
	Votes       int64 `db:"votes"`
}

// UTCDayOf truncates an instant to its UTC calendar day. Every
// once-per-day reward gate keys off this value, never local time.
func UTCDayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NormalizeCountry upper-cases an ISO 3166 alpha-2 country code at the
// service boundary. Empty input stays empty.
func NormalizeCountry(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
