// Service-level integration tests for the flows that span several
// repositories inside one transaction. The pure calculation helpers
// (wheel draws, streak math, tier resolution, pricing) have their own
// tests next to their packages.
// Tests use testcontainers-go to spin up a PostgreSQL container.
package service

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"engage-rewards-service/internal/model"
	"engage-rewards-service/internal/pkg/lock"
	"engage-rewards-service/internal/repository"
	"engage-rewards-service/internal/reward/pricing"
	"engage-rewards-service/internal/reward/spin"
	"engage-rewards-service/internal/settings"
)

// checkDockerAvailable checks if Docker is available and running
func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	err := cmd.Run()
	return err == nil
}

// setupTestDB creates a PostgreSQL container and returns a connection pool
// Skips the test if Docker is not available
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	// Create PostgreSQL container
	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	// Get connection string
	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Create connection pool
	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	// Run migrations
	err = applyTestSchema(ctx, pool)
	require.NoError(t, err)

	// Return cleanup function
	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return pool, cleanup
}

// applyTestSchema creates the tables these flows run against. Payment
// and poll tables are covered by the repository tests instead.
func applyTestSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS profiles (
			id UUID PRIMARY KEY,
			username VARCHAR(32) NOT NULL UNIQUE,
			country VARCHAR(2),
			role VARCHAR(20) NOT NULL DEFAULT 'user',
			points BIGINT NOT NULL DEFAULT 0,
			is_suspended BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS points_ledger (
			id BIGSERIAL PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
			amount BIGINT NOT NULL,
			entry_type VARCHAR(50) NOT NULL,
			description TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS daily_action_claims (
			user_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
			action VARCHAR(20) NOT NULL,
			claim_date DATE NOT NULL,
			claimed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, action, claim_date)
		);

		CREATE TABLE IF NOT EXISTS trivia_questions (
			id UUID PRIMARY KEY,
			question TEXT NOT NULL,
			options TEXT[] NOT NULL,
			correct_index INT NOT NULL,
			country VARCHAR(2),
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS trivia_sessions (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
			question_id UUID NOT NULL REFERENCES trivia_questions(id),
			session_date DATE NOT NULL,
			issued_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			answered_at TIMESTAMPTZ,
			selected_index INT,
			correct BOOLEAN,
			points_earned BIGINT NOT NULL DEFAULT 0,
			UNIQUE (user_id, session_date)
		);

		CREATE TABLE IF NOT EXISTS trivia_streaks (
			user_id UUID PRIMARY KEY REFERENCES profiles(id) ON DELETE CASCADE,
			streak INT NOT NULL DEFAULT 0,
			last_correct_date DATE,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS ambassadors (
			user_id UUID PRIMARY KEY REFERENCES profiles(id) ON DELETE CASCADE,
			country VARCHAR(2),
			commission_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
			total_referrals INT NOT NULL DEFAULT 0,
			total_earnings DOUBLE PRECISION NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			enrolled_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS commission_tiers (
			id UUID PRIMARY KEY,
			min_referrals INT NOT NULL,
			global_rate DOUBLE PRECISION NOT NULL,
			country_rates JSONB NOT NULL DEFAULT '{}',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_commission_tiers_active_min
			ON commission_tiers(min_referrals) WHERE is_active;

		CREATE TABLE IF NOT EXISTS country_metrics (
			country VARCHAR(2) NOT NULL,
			month DATE NOT NULL,
			ad_revenue DOUBLE PRECISION NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (country, month)
		);

		CREATE TABLE IF NOT EXISTS redeemable_items (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			item_type VARCHAR(50) NOT NULL,
			points_cost BIGINT NOT NULL,
			currency VARCHAR(3) NOT NULL,
			stock_quantity INT,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS redeemed_items (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
			item_id UUID NOT NULL REFERENCES redeemable_items(id),
			item_name VARCHAR(255) NOT NULL,
			points_cost BIGINT NOT NULL,
			status VARCHAR(20) NOT NULL,
			fulfillment_details TEXT,
			redeemed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS platform_settings (
			key VARCHAR(100) PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	return err
}

func createUser(t *testing.T, profiles *repository.ProfileRepository, username string, country *string) *model.Profile {
	t.Helper()
	profile, err := profiles.Create(context.Background(), username, country)
	require.NoError(t, err)
	return profile
}

func createAdmin(t *testing.T, profiles *repository.ProfileRepository, username string) *model.Profile {
	t.Helper()
	profile := createUser(t, profiles, username, nil)
	require.NoError(t, profiles.UpdateRole(context.Background(), profile.ID, model.RoleAdmin))
	profile.Role = model.RoleAdmin
	return profile
}

// creditBalance seeds a balance outside the reward flows under test.
func creditBalance(t *testing.T, pool *pgxpool.Pool, profiles *repository.ProfileRepository, userID uuid.UUID, amount int64) {
	t.Helper()
	ctx := context.Background()
	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	_, err = profiles.CreditPointsTx(ctx, tx, userID, amount)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

// ============================================================================
// RewardService Tests
// ============================================================================

func TestRewardService_SpinDailyCycle(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	profiles := repository.NewProfileRepository(pool)
	ledger := repository.NewLedgerRepository(pool)
	claims := repository.NewClaimRepository(pool)
	triviaRepo := repository.NewTriviaRepository(pool)
	settingsRepo := repository.NewSettingsRepository(pool)

	// Single-segment wheel so every draw is the same prize.
	wheel, err := spin.New([]spin.Segment{{Points: 25, Label: "25 points", Weight: 1}})
	require.NoError(t, err)
	resolver := settings.NewResolver(settingsRepo, map[string]string{settings.KeyWatchAdActive: "true"})

	current := time.Date(2025, 3, 1, 23, 59, 59, 0, time.UTC)
	svc := NewRewardService(pool, profiles, ledger, claims, triviaRepo, wheel, resolver, NewAuthorizer(profiles), lock.NewUserLock(), 15).
		WithClock(func() time.Time { return current })

	user := createUser(t, profiles, "spinner", nil)

	res, err := svc.Spin(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(25), res.PrizePoints)
	assert.Equal(t, "25 points", res.Label)
	assert.Equal(t, int64(25), res.NewBalance)

	// One spin per UTC day.
	_, err = svc.Spin(ctx, user.ID)
	assert.ErrorIs(t, err, ErrNotEligible)

	// Two seconds later it is a new UTC day.
	current = time.Date(2025, 3, 2, 0, 0, 1, 0, time.UTC)
	res, err = svc.Spin(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), res.NewBalance)

	entries, err := ledger.GetByUserID(ctx, user.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, entry := range entries {
		assert.Equal(t, model.EntrySpinPrize, entry.EntryType)
		assert.Equal(t, int64(25), entry.Amount)
	}

	// Suspended accounts are rejected before anything is consumed.
	frozen := createUser(t, profiles, "frozen", nil)
	require.NoError(t, profiles.SetSuspended(ctx, frozen.ID, true))
	_, err = svc.Spin(ctx, frozen.ID)
	assert.ErrorIs(t, err, ErrActorSuspended)

	_, err = svc.Spin(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestRewardService_WatchAdKillSwitch(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	profiles := repository.NewProfileRepository(pool)
	ledger := repository.NewLedgerRepository(pool)
	claims := repository.NewClaimRepository(pool)
	triviaRepo := repository.NewTriviaRepository(pool)
	settingsRepo := repository.NewSettingsRepository(pool)

	wheel, err := spin.New([]spin.Segment{{Points: 10, Label: "10 points", Weight: 1}})
	require.NoError(t, err)
	resolver := settings.NewResolver(settingsRepo, map[string]string{settings.KeyWatchAdActive: "true"})

	current := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)
	svc := NewRewardService(pool, profiles, ledger, claims, triviaRepo, wheel, resolver, NewAuthorizer(profiles), lock.NewUserLock(), 15).
		WithClock(func() time.Time { return current })

	user := createUser(t, profiles, "viewer", nil)

	res, err := svc.WatchAd(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(15), res.PointsEarned)
	assert.Equal(t, int64(15), res.NewBalance)

	_, err = svc.WatchAd(ctx, user.ID)
	assert.ErrorIs(t, err, ErrNotEligible)

	entries, err := ledger.GetByUserIDAndType(ctx, user.ID, model.EntryWatchAd, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(15), entries[0].Amount)

	// The stored kill switch overrides the configured default without
	// a restart.
	require.NoError(t, settingsRepo.Set(ctx, settings.KeyWatchAdActive, "false"))
	fresh := createUser(t, profiles, "viewer2", nil)
	_, err = svc.WatchAd(ctx, fresh.ID)
	assert.ErrorIs(t, err, ErrWatchAdDisabled)

	status, err := svc.Status(ctx, fresh.ID)
	require.NoError(t, err)
	assert.False(t, status.CanWatchAd)
	assert.True(t, status.CanSpin)

	// Flipping it back restores the action for anyone still eligible.
	require.NoError(t, settingsRepo.Set(ctx, settings.KeyWatchAdActive, "true"))
	_, err = svc.WatchAd(ctx, fresh.ID)
	require.NoError(t, err)
}

func TestRewardService_Status(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	profiles := repository.NewProfileRepository(pool)
	ledger := repository.NewLedgerRepository(pool)
	claims := repository.NewClaimRepository(pool)
	triviaRepo := repository.NewTriviaRepository(pool)
	settingsRepo := repository.NewSettingsRepository(pool)

	wheel, err := spin.New([]spin.Segment{{Points: 5, Label: "5 points", Weight: 1}})
	require.NoError(t, err)
	resolver := settings.NewResolver(settingsRepo, map[string]string{settings.KeyWatchAdActive: "true"})

	current := time.Date(2025, 4, 20, 8, 0, 0, 0, time.UTC)
	svc := NewRewardService(pool, profiles, ledger, claims, triviaRepo, wheel, resolver, NewAuthorizer(profiles), lock.NewUserLock(), 15).
		WithClock(func() time.Time { return current })

	user := createUser(t, profiles, "cycler", nil)

	status, err := svc.Status(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, status.CanSpin)
	assert.True(t, status.CanPlayTrivia)
	assert.True(t, status.CanWatchAd)
	assert.Equal(t, 0, status.TriviaStreak)

	_, err = svc.Spin(ctx, user.ID)
	require.NoError(t, err)
	_, err = svc.WatchAd(ctx, user.ID)
	require.NoError(t, err)

	status, err = svc.Status(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, status.CanSpin)
	assert.True(t, status.CanPlayTrivia)
	assert.False(t, status.CanWatchAd)

	// Everything resets at UTC midnight.
	current = current.AddDate(0, 0, 1)
	status, err = svc.Status(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, status.CanSpin)
	assert.True(t, status.CanWatchAd)
}

// ============================================================================
// TriviaService Tests
// ============================================================================

func TestTriviaService_DailyChallenge(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	profiles := repository.NewProfileRepository(pool)
	ledger := repository.NewLedgerRepository(pool)
	claims := repository.NewClaimRepository(pool)
	triviaRepo := repository.NewTriviaRepository(pool)

	day1 := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	current := day1
	svc := NewTriviaService(pool, profiles, ledger, claims, triviaRepo, NewAuthorizer(profiles), lock.NewUserLock(), 10, 5, 50).
		WithClock(func() time.Time { return current })

	user := createUser(t, profiles, "quizzer", nil)

	// Empty question pool.
	_, err := svc.IssueQuestion(ctx, user.ID)
	assert.ErrorIs(t, err, ErrNoQuestions)

	question, err := triviaRepo.CreateQuestion(ctx,
		"Which planet is closest to the sun?",
		[]string{"Mercury", "Venus", "Mars"}, 0, nil)
	require.NoError(t, err)

	view, err := svc.IssueQuestion(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, question.ID, view.QuestionID)
	assert.Equal(t, []string{"Mercury", "Venus", "Mars"}, view.Options)

	// Re-issuing returns the same pending question, not a re-roll.
	again, err := svc.IssueQuestion(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, view.QuestionID, again.QuestionID)

	// Grading guards.
	_, err = svc.SubmitAnswer(ctx, user.ID, uuid.New(), 0)
	assert.ErrorIs(t, err, ErrQuestionMismatch)
	_, err = svc.SubmitAnswer(ctx, user.ID, question.ID, 7)
	assert.ErrorIs(t, err, ErrInvalidOption)

	res, err := svc.SubmitAnswer(ctx, user.ID, question.ID, 0)
	require.NoError(t, err)
	assert.True(t, res.Correct)
	assert.Equal(t, 0, res.CorrectIndex)
	assert.Equal(t, int64(10), res.PointsEarned)
	assert.Equal(t, int64(0), res.StreakBonus)
	assert.Equal(t, 1, res.Streak)
	assert.Equal(t, int64(10), res.NewBalance)

	// The day's play is consumed, and stays consumed.
	_, err = svc.SubmitAnswer(ctx, user.ID, question.ID, 0)
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
	_, err = svc.IssueQuestion(ctx, user.ID)
	assert.ErrorIs(t, err, ErrNotEligible)

	// Day 2: the consecutive correct answer earns the streak bonus.
	current = day1.AddDate(0, 0, 1)
	_, err = svc.IssueQuestion(ctx, user.ID)
	require.NoError(t, err)
	res, err = svc.SubmitAnswer(ctx, user.ID, question.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Streak)
	assert.Equal(t, int64(5), res.StreakBonus)
	assert.Equal(t, int64(15), res.PointsEarned)
	assert.Equal(t, int64(25), res.NewBalance)

	// A missed day drops the streak back to 1.
	current = day1.AddDate(0, 0, 3)
	_, err = svc.IssueQuestion(ctx, user.ID)
	require.NoError(t, err)
	res, err = svc.SubmitAnswer(ctx, user.ID, question.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Streak)
	assert.Equal(t, int64(0), res.StreakBonus)
	assert.Equal(t, int64(10), res.PointsEarned)

	// Base and streak awards are separate ledger entries.
	baseEntries, err := ledger.GetByUserIDAndType(ctx, user.ID, model.EntryTriviaBase, 10)
	require.NoError(t, err)
	assert.Len(t, baseEntries, 3)
	bonusEntries, err := ledger.GetByUserIDAndType(ctx, user.ID, model.EntryTriviaStreak, 10)
	require.NoError(t, err)
	require.Len(t, bonusEntries, 1)
	assert.Equal(t, int64(5), bonusEntries[0].Amount)

	// A wrong answer consumes the day but awards nothing and leaves
	// the streak state alone.
	guesser := createUser(t, profiles, "guesser", nil)
	_, err = svc.IssueQuestion(ctx, guesser.ID)
	require.NoError(t, err)
	res, err = svc.SubmitAnswer(ctx, guesser.ID, question.ID, 1)
	require.NoError(t, err)
	assert.False(t, res.Correct)
	assert.Equal(t, 0, res.CorrectIndex)
	assert.Equal(t, int64(0), res.PointsEarned)
	assert.Equal(t, 0, res.Streak)
	assert.Equal(t, int64(0), res.NewBalance)
	_, err = svc.SubmitAnswer(ctx, guesser.ID, question.ID, 0)
	assert.ErrorIs(t, err, ErrAlreadySubmitted)

	// Submitting without an issued question.
	cold := createUser(t, profiles, "cold", nil)
	_, err = svc.SubmitAnswer(ctx, cold.ID, question.ID, 0)
	assert.ErrorIs(t, err, ErrNoIssuedQuestion)

	// Suspended accounts cannot play.
	require.NoError(t, profiles.SetSuspended(ctx, guesser.ID, true))
	_, err = svc.IssueQuestion(ctx, guesser.ID)
	assert.ErrorIs(t, err, ErrActorSuspended)
}

// ============================================================================
// StoreService Tests
// ============================================================================

func TestStoreService_RedeemLifecycle(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	profiles := repository.NewProfileRepository(pool)
	ledger := repository.NewLedgerRepository(pool)
	catalog := repository.NewCatalogRepository(pool)

	converter, err := pricing.NewConverter("USD", map[string]float64{"NGN": 1500})
	require.NoError(t, err)
	svc := NewStoreService(pool, profiles, ledger, catalog, converter, NewAuthorizer(profiles), lock.NewUserLock())

	admin := createAdmin(t, profiles, "storeadmin")
	buyer := createUser(t, profiles, "buyer", nil)
	creditBalance(t, pool, profiles, buyer.ID, 1000)

	item, err := svc.CreateItem(ctx, admin.ID, "10 USD Gift Card", model.ItemGiftCard, 500, "USD", intPtr(2))
	require.NoError(t, err)

	// Non-admins cannot touch the catalog.
	_, err = svc.CreateItem(ctx, buyer.ID, "Nope", model.ItemGiftCard, 100, "USD", nil)
	assert.ErrorIs(t, err, ErrUnauthorized)

	// Display pricing follows the viewer's currency.
	views, err := svc.ListItems(ctx, "NGN", 10, 0)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, float64(750000), views[0].DisplayCost)
	assert.Equal(t, "NGN", views[0].DisplayCurrency)

	res, err := svc.Redeem(ctx, buyer.ID, item.ID, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(500), res.NewBalance)
	assert.Equal(t, model.RedemptionPending, res.Redemption.Status)
	first := res.Redemption.ID

	// The client saw a price that has since changed.
	_, err = svc.Redeem(ctx, buyer.ID, item.ID, 400)
	assert.ErrorIs(t, err, ErrStalePrice)

	poor := createUser(t, profiles, "poor", nil)
	creditBalance(t, pool, profiles, poor.ID, 100)
	_, err = svc.Redeem(ctx, poor.ID, item.ID, 500)
	assert.ErrorIs(t, err, ErrInsufficientPoints)

	// The second unit sells the item out.
	res, err = svc.Redeem(ctx, buyer.ID, item.ID, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.NewBalance)
	second := res.Redemption.ID

	rich := createUser(t, profiles, "rich", nil)
	creditBalance(t, pool, profiles, rich.ID, 10000)
	_, err = svc.Redeem(ctx, rich.ID, item.ID, 500)
	assert.ErrorIs(t, err, ErrOutOfStock)

	_, err = svc.Redeem(ctx, rich.ID, uuid.New(), 500)
	assert.ErrorIs(t, err, ErrNotFound)

	// Cancelling refunds the charge and restores the unit.
	require.NoError(t, svc.Cancel(ctx, admin.ID, first, strPtr("address unreachable")))
	refunded, err := profiles.GetByID(ctx, buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), refunded.Points)
	refunds, err := ledger.GetByUserIDAndType(ctx, buyer.ID, model.EntryRedemptionRefund, 10)
	require.NoError(t, err)
	require.Len(t, refunds, 1)
	assert.Equal(t, int64(500), refunds[0].Amount)
	restocked, err := catalog.GetItemByID(ctx, item.ID)
	require.NoError(t, err)
	require.NotNil(t, restocked.StockQuantity)
	assert.Equal(t, 1, *restocked.StockQuantity)

	// Terminal redemptions cannot move again.
	err = svc.Cancel(ctx, admin.ID, first, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, svc.Fulfill(ctx, admin.ID, second, strPtr("code ABCD-1234")))
	fulfilled, err := catalog.GetRedemptionByID(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, model.RedemptionFulfilled, fulfilled.Status)
	require.NotNil(t, fulfilled.FulfillmentDetails)
	assert.Equal(t, "code ABCD-1234", *fulfilled.FulfillmentDetails)
	err = svc.Fulfill(ctx, admin.ID, second, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// Fulfilment is admin-only.
	err = svc.Cancel(ctx, buyer.ID, second, nil)
	assert.ErrorIs(t, err, ErrUnauthorized)

	// Hidden items cannot be redeemed even with stock left.
	require.NoError(t, svc.SetItemActive(ctx, admin.ID, item.ID, false))
	_, err = svc.Redeem(ctx, buyer.ID, item.ID, 500)
	assert.ErrorIs(t, err, ErrItemInactive)

	// Suspended buyers cannot redeem.
	require.NoError(t, profiles.SetSuspended(ctx, rich.ID, true))
	_, err = svc.Redeem(ctx, rich.ID, item.ID, 500)
	assert.ErrorIs(t, err, ErrActorSuspended)
}

// ============================================================================
// AmbassadorService Tests
// ============================================================================

func TestAmbassadorService_ReferralProgram(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	profiles := repository.NewProfileRepository(pool)
	ledger := repository.NewLedgerRepository(pool)
	ambassadors := repository.NewAmbassadorRepository(pool)
	authz := NewAuthorizer(profiles)
	svc := NewAmbassadorService(pool, ambassadors, profiles, ledger, authz, 50)

	admin := createAdmin(t, profiles, "ambadmin")

	// Tier table: a floor band with an NG override and a higher band
	// from the second referral on.
	_, err := svc.CreateTier(ctx, admin.ID, 0, 5, map[string]float64{"ng": 8})
	require.NoError(t, err)
	_, err = svc.CreateTier(ctx, admin.ID, 2, 10, nil)
	require.NoError(t, err)

	_, err = svc.CreateTier(ctx, admin.ID, 2, 12, nil)
	assert.ErrorIs(t, err, ErrDuplicateThreshold)
	_, err = svc.CreateTier(ctx, admin.ID, 1, -3, nil)
	assert.ErrorIs(t, err, ErrInvalidTier)

	user := createUser(t, profiles, "referrer-ng", strPtr("NG"))
	amb, err := svc.Enroll(ctx, admin.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(8), amb.CommissionRate)
	assert.Equal(t, 0, amb.TotalReferrals)

	enrolled, err := profiles.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAmbassador, enrolled.Role)

	_, err = svc.Enroll(ctx, admin.ID, user.ID)
	assert.ErrorIs(t, err, ErrAlreadyAmbassador)
	_, err = svc.Enroll(ctx, user.ID, user.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	// First referral: counter, cached rate, and the signup bonus.
	amb, err = svc.RecordReferral(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, amb.TotalReferrals)
	assert.Equal(t, float64(8), amb.CommissionRate)

	bonuses, err := ledger.GetByUserIDAndType(ctx, user.ID, model.EntryReferralBonus, 10)
	require.NoError(t, err)
	require.Len(t, bonuses, 1)
	assert.Equal(t, int64(50), bonuses[0].Amount)

	// Crossing the threshold moves the cached rate to the higher band.
	amb, err = svc.RecordReferral(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, amb.TotalReferrals)
	assert.Equal(t, float64(10), amb.CommissionRate)

	// A signup carrying a referral code attributes the referral.
	profileSvc := NewProfileService(pool, profiles, ledger, svc, authz)
	_, err = profileSvc.Register(ctx, "referred-user", strPtr("NG"), &user.ID)
	require.NoError(t, err)
	attributed, err := ambassadors.GetByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, attributed.TotalReferrals)

	// A stale referrer never blocks the signup itself.
	ghost := uuid.New()
	created, err := profileSvc.Register(ctx, "unreferred-user", nil, &ghost)
	require.NoError(t, err)
	require.NotNil(t, created)

	// Commission credits are admin-only and positive.
	amb, err = svc.CreditCommission(ctx, admin.ID, user.ID, 12.5)
	require.NoError(t, err)
	assert.Equal(t, 12.5, amb.TotalEarnings)
	_, err = svc.CreditCommission(ctx, admin.ID, user.ID, 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = svc.CreditCommission(ctx, user.ID, user.ID, 5)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = svc.CreditCommission(ctx, admin.ID, uuid.New(), 5)
	assert.ErrorIs(t, err, ErrNotAmbassador)

	// Deactivation stops accrual and reverts the role.
	require.NoError(t, svc.SetActive(ctx, admin.ID, user.ID, false))
	_, err = svc.RecordReferral(ctx, user.ID)
	assert.ErrorIs(t, err, ErrNotAmbassador)
	reverted, err := profiles.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, reverted.Role)
}

// ============================================================================
// DashboardService Tests
// ============================================================================

func TestDashboardService_AmbassadorView(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	profiles := repository.NewProfileRepository(pool)
	ledger := repository.NewLedgerRepository(pool)
	ambassadors := repository.NewAmbassadorRepository(pool)
	metrics := repository.NewMetricsRepository(pool)
	authz := NewAuthorizer(profiles)
	ambSvc := NewAmbassadorService(pool, ambassadors, profiles, ledger, authz, 0)

	admin := createAdmin(t, profiles, "dashadmin")
	_, err := ambSvc.CreateTier(ctx, admin.ID, 0, 5, map[string]float64{"NG": 8})
	require.NoError(t, err)

	top := createUser(t, profiles, "dash-top", strPtr("NG"))
	runner := createUser(t, profiles, "dash-runner", strPtr("NG"))
	for _, id := range []uuid.UUID{top.ID, runner.ID} {
		_, err = ambSvc.Enroll(ctx, admin.ID, id)
		require.NoError(t, err)
	}
	_, err = ambSvc.CreditCommission(ctx, admin.ID, top.ID, 90)
	require.NoError(t, err)
	_, err = ambSvc.CreditCommission(ctx, admin.ID, runner.ID, 30)
	require.NoError(t, err)

	month := time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, metrics.UpsertRevenue(ctx, "NG", month, 1200))

	// No Redis handle: every build is a live computation.
	svc := NewDashboardService(ambassadors, metrics, nil).
		WithClock(func() time.Time { return month })

	view, err := svc.Dashboard(ctx, runner.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(8), view.CommissionRate)
	assert.Equal(t, 0, view.TierMinReferrals)
	assert.Equal(t, float64(1200), view.MonthlyRevenue)
	assert.Equal(t, float64(96), view.MonthlyEarnings)
	assert.Equal(t, float64(30), view.TotalEarnings)
	assert.Equal(t, 2, view.CountryRank)

	board, err := svc.Leaderboard(ctx, strPtr("NG"), 10)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, top.ID, board[0].UserID)
	assert.Equal(t, 1, board[0].Rank)
	assert.Equal(t, runner.ID, board[1].UserID)
	assert.Equal(t, 2, board[1].Rank)

	_, err = svc.Dashboard(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotAmbassador)
}

// ============================================================================
// ProfileService Tests
// ============================================================================

func TestProfileService_RegistrationAndAdminControls(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	profiles := repository.NewProfileRepository(pool)
	ledger := repository.NewLedgerRepository(pool)
	ambassadors := repository.NewAmbassadorRepository(pool)
	authz := NewAuthorizer(profiles)
	ambSvc := NewAmbassadorService(pool, ambassadors, profiles, ledger, authz, 50)
	svc := NewProfileService(pool, profiles, ledger, ambSvc, authz)

	admin := createAdmin(t, profiles, "padmin")

	created, err := svc.Register(ctx, "new-member", strPtr("gh"), nil)
	require.NoError(t, err)
	require.NotNil(t, created.Country)
	assert.Equal(t, "GH", *created.Country)
	assert.Equal(t, model.RoleUser, created.Role)
	assert.Equal(t, int64(0), created.Points)

	_, err = svc.Register(ctx, "new-member", nil, nil)
	assert.ErrorIs(t, err, ErrUsernameTaken)
	_, err = svc.Register(ctx, "ab", nil, nil)
	assert.ErrorIs(t, err, ErrInvalidUsername)

	// Manual corrections are ledgered and attributable.
	balance, err := svc.AdjustPoints(ctx, admin.ID, created.ID, 200, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(200), balance)
	balance, err = svc.AdjustPoints(ctx, admin.ID, created.ID, -50, strPtr("support goodwill reversal"))
	require.NoError(t, err)
	assert.Equal(t, int64(150), balance)

	adds, err := ledger.GetByUserIDAndType(ctx, created.ID, model.EntryAdminAdd, 10)
	require.NoError(t, err)
	assert.Len(t, adds, 1)
	subs, err := ledger.GetByUserIDAndType(ctx, created.ID, model.EntryAdminSub, 10)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, int64(-50), subs[0].Amount)
	require.NotNil(t, subs[0].Description)
	assert.Equal(t, "support goodwill reversal", *subs[0].Description)

	// A correction never drives the balance negative.
	_, err = svc.AdjustPoints(ctx, admin.ID, created.ID, -1000, nil)
	assert.ErrorIs(t, err, ErrInsufficientPoints)
	_, err = svc.AdjustPoints(ctx, admin.ID, created.ID, 0, nil)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = svc.AdjustPoints(ctx, created.ID, admin.ID, 10, nil)
	assert.ErrorIs(t, err, ErrUnauthorized)

	// Role and suspension levers.
	require.NoError(t, svc.SetRole(ctx, admin.ID, created.ID, model.RoleModerator))
	updated, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleModerator, updated.Role)
	err = svc.SetRole(ctx, admin.ID, created.ID, model.Role("owner"))
	assert.ErrorIs(t, err, ErrInvalidRole)

	require.NoError(t, svc.SetSuspended(ctx, admin.ID, created.ID, true))
	suspended, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, suspended.IsSuspended)

	// Suspension outranks the role check.
	_, err = svc.AdjustPoints(ctx, created.ID, admin.ID, 10, nil)
	assert.ErrorIs(t, err, ErrActorSuspended)
}
