package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"engage-rewards-service/internal/cache"
	"engage-rewards-service/internal/config"
	"engage-rewards-service/internal/handler"
	"engage-rewards-service/internal/service"
)

// Server hosts the HTTP API with its middleware stack.
type Server struct {
	cfg        *config.Config
	pool       *pgxpool.Pool
	redis      *cache.Redis
	httpServer *http.Server

	// Handlers
	rewardsHandler    *handler.RewardsHandler
	triviaHandler     *handler.TriviaHandler
	storeHandler      *handler.StoreHandler
	ambassadorHandler *handler.AmbassadorHandler
	profileHandler    *handler.ProfileHandler
	paymentsHandler   *handler.PaymentsHandler
	pollsHandler      *handler.PollsHandler
	settingsHandler   *handler.SettingsHandler
}

// Dependencies holds everything the HTTP layer needs.
type Dependencies struct {
	Config            *config.Config
	Pool              *pgxpool.Pool
	Redis             *cache.Redis
	RewardService     *service.RewardService
	TriviaService     *service.TriviaService
	StoreService      *service.StoreService
	AmbassadorService *service.AmbassadorService
	DashboardService  *service.DashboardService
	ProfileService    *service.ProfileService
	PaymentService    *service.PaymentService
	PollService       *service.PollService
	SettingsService   *service.SettingsService
}

// New creates a Server with all routes and middleware registered.
func New(deps *Dependencies) *Server {
	s := &Server{
		cfg:   deps.Config,
		pool:  deps.Pool,
		redis: deps.Redis,
	}

	// Initialize handlers
	s.rewardsHandler = handler.NewRewardsHandler(deps.RewardService)
	s.triviaHandler = handler.NewTriviaHandler(deps.TriviaService)
	s.storeHandler = handler.NewStoreHandler(deps.StoreService)
	s.ambassadorHandler = handler.NewAmbassadorHandler(deps.AmbassadorService, deps.DashboardService)
	s.profileHandler = handler.NewProfileHandler(deps.ProfileService)
	s.paymentsHandler = handler.NewPaymentsHandler(deps.PaymentService)
	s.pollsHandler = handler.NewPollsHandler(deps.PollService)
	s.settingsHandler = handler.NewSettingsHandler(deps.SettingsService)

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	chained := Chain(mux,
		Recovery(),
		Logging(),
		RateLimit(deps.Redis, deps.Config.Server.RateLimit, deps.Config.Server.RateLimitWindow),
	)

	s.httpServer = &http.Server{
		Addr:         deps.Config.Server.Addr(),
		Handler:      chained,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  deps.Config.Server.IdleTimeout,
	}

	return s
}

// registerRoutes wires every endpoint.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// Health endpoint
	mux.HandleFunc("/health", s.handleHealth)

	// Profile endpoints
	mux.HandleFunc("/register", s.profileHandler.HandleRegister)
	mux.HandleFunc("/me", s.profileHandler.HandleMe)
	mux.HandleFunc("/me/country", s.profileHandler.HandleUpdateCountry)
	mux.HandleFunc("/me/ledger", s.profileHandler.HandleLedger)
	mux.HandleFunc("/me/redemptions", s.storeHandler.HandleRedemptionHistory)
	mux.HandleFunc("/boards/top-earners", s.profileHandler.HandleTopEarners)

	// Daily reward cycle endpoints
	mux.HandleFunc("/rewards/status", s.rewardsHandler.HandleStatus)
	mux.HandleFunc("/rewards/spin", s.rewardsHandler.HandleSpin)
	mux.HandleFunc("/rewards/watch-ad", s.rewardsHandler.HandleWatchAd)
	mux.HandleFunc("/rewards/ad-client", s.rewardsHandler.HandleAdClient)

	// Trivia endpoints
	mux.HandleFunc("/trivia/question", s.triviaHandler.HandleIssueQuestion)
	mux.HandleFunc("/trivia/answer", s.triviaHandler.HandleSubmitAnswer)
	mux.HandleFunc("/trivia/questions", s.triviaHandler.HandleListQuestions)
	mux.HandleFunc("/trivia/questions/create", s.triviaHandler.HandleCreateQuestion)
	mux.HandleFunc("/trivia/questions/set-active", s.triviaHandler.HandleSetQuestionActive)

	// Store endpoints
	mux.HandleFunc("/store/items", s.storeHandler.HandleListItems)
	mux.HandleFunc("/store/redeem", s.storeHandler.HandleRedeem)

	// Ambassador endpoints
	mux.HandleFunc("/ambassador/dashboard", s.ambassadorHandler.HandleDashboard)
	mux.HandleFunc("/ambassador/leaderboard", s.ambassadorHandler.HandleLeaderboard)

	// Payment endpoints
	mux.HandleFunc("/payments/initiate", s.paymentsHandler.HandleInitiate)
	mux.HandleFunc("/payments/webhook/", s.paymentsHandler.HandleWebhook)
	mux.HandleFunc("/payments", s.paymentsHandler.HandleHistory)
	mux.HandleFunc("/payments/", s.paymentsHandler.HandleGet)

	// Poll endpoints
	mux.HandleFunc("/polls", s.pollsHandler.HandleListActive)
	mux.HandleFunc("/polls/", s.pollsHandler.HandleResults)
	mux.HandleFunc("/polls/vote", s.pollsHandler.HandleVote)

	// Admin endpoints
	mux.HandleFunc("/admin/profiles", s.profileHandler.HandleListProfiles)
	mux.HandleFunc("/admin/profiles/adjust-points", s.profileHandler.HandleAdjustPoints)
	mux.HandleFunc("/admin/profiles/set-suspended", s.profileHandler.HandleSetSuspended)
	mux.HandleFunc("/admin/profiles/set-role", s.profileHandler.HandleSetRole)
	mux.HandleFunc("/admin/items/create", s.storeHandler.HandleCreateItem)
	mux.HandleFunc("/admin/items/update", s.storeHandler.HandleUpdateItem)
	mux.HandleFunc("/admin/items/set-active", s.storeHandler.HandleSetItemActive)
	mux.HandleFunc("/admin/items/restock", s.storeHandler.HandleRestock)
	mux.HandleFunc("/admin/redemptions/pending", s.storeHandler.HandlePendingRedemptions)
	mux.HandleFunc("/admin/redemptions/fulfill", s.storeHandler.HandleFulfill)
	mux.HandleFunc("/admin/redemptions/cancel", s.storeHandler.HandleCancelRedemption)
	mux.HandleFunc("/admin/ambassadors/enroll", s.ambassadorHandler.HandleEnroll)
	mux.HandleFunc("/admin/ambassadors/set-active", s.ambassadorHandler.HandleSetAmbassadorActive)
	mux.HandleFunc("/admin/ambassadors/credit-commission", s.ambassadorHandler.HandleCreditCommission)
	mux.HandleFunc("/admin/tiers", s.ambassadorHandler.HandleListTiers)
	mux.HandleFunc("/admin/tiers/create", s.ambassadorHandler.HandleCreateTier)
	mux.HandleFunc("/admin/tiers/update", s.ambassadorHandler.HandleUpdateTier)
	mux.HandleFunc("/admin/tiers/set-active", s.ambassadorHandler.HandleSetTierActive)
	mux.HandleFunc("/admin/tiers/delete", s.ambassadorHandler.HandleDeleteTier)
	mux.HandleFunc("/admin/polls/create", s.pollsHandler.HandleCreatePoll)
	mux.HandleFunc("/admin/polls/close", s.pollsHandler.HandleClosePoll)
	mux.HandleFunc("/admin/settings", s.settingsHandler.HandleList)
	mux.HandleFunc("/admin/settings/set", s.settingsHandler.HandleSet)
	mux.HandleFunc("/admin/settings/delete", s.settingsHandler.HandleDelete)
}

type healthResponse struct {
	Status    string `json:"status"`
	Database  string `json:"database"`
	Redis     string `json:"redis"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbStatus := "connected"
	if err := s.pool.Ping(r.Context()); err != nil {
		dbStatus = "disconnected"
	}

	redisStatus := "connected"
	if s.redis == nil {
		redisStatus = "disabled"
	} else if err := s.redis.Ping(r.Context()); err != nil {
		redisStatus = "disconnected"
	}

	response := healthResponse{
		Status:    "healthy",
		Database:  dbStatus,
		Redis:     redisStatus,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// Start begins serving and blocks until the listener closes.
func (s *Server) Start() error {
	log.Info().Str("addr", s.httpServer.Addr).Msg("Starting HTTP server")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Stopping HTTP server")
	return s.httpServer.Shutdown(ctx)
}
