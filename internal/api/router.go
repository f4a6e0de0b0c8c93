package api

import (
	"context"
	"net/http"

	"arena-combat/internal/ability"
	"arena-combat/internal/catalog"
	"arena-combat/internal/equipment"
	"arena-combat/internal/game"
	"arena-combat/internal/protocol"
	"arena-combat/internal/storage"
	"arena-combat/internal/world"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// EngineInterface defines the game engine methods used by the API.
// Keep this minimal - only include methods the API layer actually calls.
type EngineInterface interface {
	// Snapshot returns the latest lock-free immutable snapshot
	Snapshot() *game.GameSnapshot
	Stats() game.EngineStats
	Scoreboard() *game.Scoreboard

	Join(name string, opts game.JoinOptions) (world.EntityID, error)
	Leave(id world.EntityID) error
	Pawn(id world.EntityID) (game.PawnSnapshot, bool)

	// Session ingress
	Move(id world.EntityID, m protocol.Move) error
	Activate(id world.EntityID, req ability.ActivationRequest) error
	SubmitTargetData(id world.EntityID, sub ability.Submission) error
	Cancel(id world.EntityID, spec ability.SpecHandle) error
	SelectSlot(id world.EntityID, slot int) error
	Reload(id world.EntityID) (int, error)
	OfferSkills(id world.EntityID, n int) ([]ability.Skill, error)
	ChooseSkill(id world.EntityID, skill string) error
	Specs(id world.EntityID) ([]protocol.SpecInfo, error)
	LedgerDelta(id world.EntityID, since uint64) (equipment.Delta, error)
}

// JournalReader reads the persisted combat journal.
type JournalReader interface {
	Recent(ctx context.Context, kind string, limit int) ([]storage.JournalEvent, error)
	Record(ctx context.Context, pawn world.EntityID) (storage.PawnRecord, error)
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
//
// Example usage in tests:
//
//	cfg := api.RouterConfig{
//	    Engine:  engine,
//	    Catalog: catalog.Default(),
//	    RateLimitConfig: &api.RateLimitConfig{
//	        RequestsPerSecond: 1000, // High limit for tests
//	        Burst:             1000,
//	    },
//	}
//	router := api.NewRouter(cfg)
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Engine is the game engine (required)
	Engine EngineInterface

	// Catalog is the equipment catalog (required)
	Catalog *catalog.Catalog

	// Journal is the optional audit store; journal routes are absent without it.
	Journal JournalReader

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one will be created using RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is optional configuration for the rate limiter.
	// Only used if RateLimiter is nil. If both are nil, uses DefaultRateLimitConfig.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins is an optional list of allowed CORS origins.
	// If nil, localhost on any port is allowed.
	CORSOrigins []string

	// MaxBotsPerRequest caps POST /api/bots.
	MaxBotsPerRequest int

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool

	Logger zerolog.Logger
}

// routerHandlers holds the handler functions for the router.
type routerHandlers struct {
	engine  EngineInterface
	catalog *catalog.Catalog
	journal JournalReader
	maxBots int
	logger  zerolog.Logger
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// IMPORTANT: This function is PURE - it has no side effects beyond the rate
// limiter's cleanup goroutine:
//   - No network listeners are opened
//   - The game loop is not started
//
// This makes it safe to use in tests with httptest.NewServer.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware - Order matters!
	if !cfg.DisableLogging {
		r.Use(requestLogger(cfg.Logger))
	}
	r.Use(middleware.Recoverer)

	// Rate limiting (BEFORE CORS to reject early and save CPU)
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = []string{
			"http://localhost:*",
			"http://127.0.0.1:*",
		}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	maxBots := cfg.MaxBotsPerRequest
	if maxBots <= 0 {
		maxBots = 16
	}
	h := &routerHandlers{
		engine:  cfg.Engine,
		catalog: cfg.Catalog,
		journal: cfg.Journal,
		maxBots: maxBots,
		logger:  cfg.Logger,
	}

	r.Route("/api", func(r chi.Router) {
		// Arena state
		r.Get("/state", h.handleGetState)
		r.Get("/stats", h.handleGetStats)
		r.Get("/scoreboard", h.handleGetScoreboard)
		r.Get("/catalog", h.handleGetCatalog)

		// Pawns
		r.Post("/bots", h.handleAddBots)
		r.Route("/pawns/{id}", func(r chi.Router) {
			r.Get("/", h.handleGetPawn)
			r.Get("/specs", h.handleGetSpecs)
			r.Get("/ledger", h.handleGetLedger)
			r.Delete("/", h.handleRemovePawn)
		})

		// Persisted journal
		if cfg.Journal != nil {
			r.Get("/journal", h.handleGetJournal)
			r.Get("/journal/pawns/{id}", h.handleGetRecord)
		}
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})

	return r
}
