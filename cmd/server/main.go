// Package main is the entry point for the rewards service API.
package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"engage-rewards-service/internal/cache"
	"engage-rewards-service/internal/config"
	"engage-rewards-service/internal/payment"
	"engage-rewards-service/internal/pkg/db"
	"engage-rewards-service/internal/pkg/lock"
	"engage-rewards-service/internal/repository"
	"engage-rewards-service/internal/reward/pricing"
	"engage-rewards-service/internal/reward/spin"
	"engage-rewards-service/internal/server"
	"engage-rewards-service/internal/service"
	"engage-rewards-service/internal/settings"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Info().Msg("Configuration loaded successfully")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	// Run database migrations
	if err := runMigrations(ctx, dbPool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Redis is optional. Without it the API still serves every
	// endpoint, with rate limiting and dashboard caching disabled.
	redisCache, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, continuing without cache")
		redisCache = nil
	}

	// Build the prize wheel from configured segments
	segments := make([]spin.Segment, 0, len(cfg.Rewards.Spin.Segments))
	for _, s := range cfg.Rewards.Spin.Segments {
		segments = append(segments, spin.Segment{Points: s.Points, Label: s.Label, Weight: s.Weight})
	}
	wheel, err := spin.New(segments)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid spin wheel configuration")
	}

	converter, err := pricing.NewConverter(cfg.Currency.Base, cfg.Currency.Rates)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid currency configuration")
	}

	// Initialize repositories
	profileRepo := repository.NewProfileRepository(dbPool.Pool)
	ledgerRepo := repository.NewLedgerRepository(dbPool.Pool)
	claimRepo := repository.NewClaimRepository(dbPool.Pool)
	triviaRepo := repository.NewTriviaRepository(dbPool.Pool)
	ambassadorRepo := repository.NewAmbassadorRepository(dbPool.Pool)
	metricsRepo := repository.NewMetricsRepository(dbPool.Pool)
	catalogRepo := repository.NewCatalogRepository(dbPool.Pool)
	paymentRepo := repository.NewPaymentRepository(dbPool.Pool)
	pollRepo := repository.NewPollRepository(dbPool.Pool)
	settingsRepo := repository.NewSettingsRepository(dbPool.Pool)

	// Platform settings resolve remote-first with config fallbacks
	resolver := settings.NewResolver(settingsRepo, map[string]string{
		settings.KeyAdClientID:    cfg.Settings.AdClientID,
		settings.KeyWatchAdActive: strconv.FormatBool(cfg.Settings.WatchAdEnabled),
	})

	authz := service.NewAuthorizer(profileRepo)

	// Initialize user lock
	userLock := lock.NewUserLock()

	// Initialize services
	rewardService := service.NewRewardService(
		dbPool.Pool,
		profileRepo,
		ledgerRepo,
		claimRepo,
		triviaRepo,
		wheel,
		resolver,
		authz,
		userLock,
		cfg.Rewards.WatchAdPoints,
	)

	triviaService := service.NewTriviaService(
		dbPool.Pool,
		profileRepo,
		ledgerRepo,
		claimRepo,
		triviaRepo,
		authz,
		userLock,
		cfg.Rewards.Trivia.BasePoints,
		cfg.Rewards.Trivia.StreakStep,
		cfg.Rewards.Trivia.StreakCap,
	)

	storeService := service.NewStoreService(
		dbPool.Pool,
		profileRepo,
		ledgerRepo,
		catalogRepo,
		converter,
		authz,
		userLock,
	)

	ambassadorService := service.NewAmbassadorService(
		dbPool.Pool,
		ambassadorRepo,
		profileRepo,
		ledgerRepo,
		authz,
		cfg.Rewards.ReferralBonus,
	)

	dashboardService := service.NewDashboardService(ambassadorRepo, metricsRepo, redisCache)

	profileService := service.NewProfileService(dbPool.Pool, profileRepo, ledgerRepo, ambassadorService, authz)

	paymentService := service.NewPaymentService(
		paymentRepo,
		authz,
		cfg.Payments.CallbackURL,
		payment.NewPaystack(cfg.Payments.Paystack.SecretKey, cfg.Payments.Paystack.BaseURL, nil),
		payment.NewStripe(cfg.Payments.Stripe.SecretKey, cfg.Payments.Stripe.WebhookSecret, cfg.Payments.Stripe.BaseURL, nil),
	)

	pollService := service.NewPollService(pollRepo, profileRepo, authz)

	settingsService := service.NewSettingsService(settingsRepo, authz)

	// Create server dependencies
	srv := server.New(&server.Dependencies{
		Config:            cfg,
		Pool:              dbPool.Pool,
		Redis:             redisCache,
		RewardService:     rewardService,
		TriviaService:     triviaService,
		StoreService:      storeService,
		AmbassadorService: ambassadorService,
		DashboardService:  dashboardService,
		ProfileService:    profileService,
		PaymentService:    paymentService,
		PollService:       pollService,
		SettingsService:   settingsService,
	})

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in a goroutine
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for shutdown signal
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
	log.Info().Msg("Server stopped gracefully")
}

// runMigrations executes database migrations.
func runMigrations(ctx context.Context, pool *db.Pool) error {
	log.Info().Msg("Running database migrations...")

	// Migration 1: Create profiles table
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
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 1: profiles table created")

	// Migration 2: Create points ledger table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS points_ledger (
			id BIGSERIAL PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
			amount BIGINT NOT NULL,
			entry_type VARCHAR(50) NOT NULL,
			description TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_points_ledger_user_time ON points_ledger(user_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_points_ledger_type_time ON points_ledger(entry_type, created_at DESC);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 2: points_ledger table created")

	// Migration 3: Create daily action claims table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS daily_action_claims (
			user_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
			action VARCHAR(20) NOT NULL,
			claim_date DATE NOT NULL,
			claimed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, action, claim_date)
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 3: daily_action_claims table created")

	// Migration 4: Create trivia tables
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS trivia_questions (
			id UUID PRIMARY KEY,
			question TEXT NOT NULL,
			options TEXT[] NOT NULL,
			correct_index INT NOT NULL,
			country VARCHAR(2),
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_trivia_questions_active ON trivia_questions(is_active, country);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 4a: trivia_questions table created")

	_, err = pool.Exec(ctx, `
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
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 4b: trivia_sessions table created")

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS trivia_streaks (
			user_id UUID PRIMARY KEY REFERENCES profiles(id) ON DELETE CASCADE,
			streak INT NOT NULL DEFAULT 0,
			last_correct_date DATE,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 4c: trivia_streaks table created")

	// Migration 5: Create ambassador program tables
	_, err = pool.Exec(ctx, `
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
		CREATE INDEX IF NOT EXISTS idx_ambassadors_earnings ON ambassadors(total_earnings DESC) WHERE is_active;
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 5a: ambassadors table created")

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS commission_tiers (
			id UUID PRIMARY KEY,
			min_referrals INT NOT NULL,
			global_rate DOUBLE PRECISION NOT NULL,
			country_rates JSONB NOT NULL DEFAULT '{}',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_commission_tiers_active_min ON commission_tiers(min_referrals) WHERE is_active;
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 5b: commission_tiers table created")

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS country_metrics (
			country VARCHAR(2) NOT NULL,
			month DATE NOT NULL,
			ad_revenue DOUBLE PRECISION NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (country, month)
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 5c: country_metrics table created")

	// Migration 6: Create store tables
	_, err = pool.Exec(ctx, `
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
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 6a: redeemable_items table created")

	_, err = pool.Exec(ctx, `
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
		CREATE INDEX IF NOT EXISTS idx_redeemed_items_user_time ON redeemed_items(user_id, redeemed_at DESC);
		CREATE INDEX IF NOT EXISTS idx_redeemed_items_status ON redeemed_items(status, redeemed_at);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 6b: redeemed_items table created")

	// Migration 7: Create payment transactions table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS payment_transactions (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
			amount_cents BIGINT NOT NULL,
			currency VARCHAR(3) NOT NULL,
			gateway VARCHAR(20) NOT NULL,
			status VARCHAR(20) NOT NULL,
			reference VARCHAR(64) NOT NULL UNIQUE,
			redirect_url TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_payment_transactions_user_time ON payment_transactions(user_id, created_at DESC);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 7: payment_transactions table created")

	// Migration 8: Create poll tables
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS polls (
			id UUID PRIMARY KEY,
			question TEXT NOT NULL,
			options TEXT[] NOT NULL,
			country VARCHAR(2),
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_by UUID NOT NULL REFERENCES profiles(id),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			closes_at TIMESTAMPTZ
		);
		CREATE TABLE IF NOT EXISTS poll_votes (
			poll_id UUID NOT NULL REFERENCES polls(id) ON DELETE CASCADE,
			user_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
			option_index INT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (poll_id, user_id)
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 8: poll tables created")

	// Migration 9: Create platform settings table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS platform_settings (
			key VARCHAR(100) PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 9: platform_settings table created")

	log.Info().Msg("All migrations completed successfully")
	return nil
}
