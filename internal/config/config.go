// Package config provides centralized configuration management.
// Every tunable of the combat server is declared here with its default and the
// environment variable that overrides it.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           int
	MaxPawns       int      // Hard cap on pawns in the arena
	AllowedOrigins []string // Extra CORS/websocket origins
	RequestsPerSec float64  // Per-IP HTTP rate
	RequestBurst   int
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:           3000,
		MaxPawns:       64,
		RequestsPerSec: 10,
		RequestBurst:   20,
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if mp := getEnvInt("MAX_PAWNS", 0); mp > 0 {
		cfg.MaxPawns = mp
	}
	if o := getEnvList("ALLOWED_ORIGINS"); len(o) > 0 {
		cfg.AllowedOrigins = o
	}
	if r := getEnvFloat("RATE_LIMIT_RPS", 0); r > 0 {
		cfg.RequestsPerSec = r
	}
	if b := getEnvInt("RATE_LIMIT_BURST", 0); b > 0 {
		cfg.RequestBurst = b
	}

	return cfg
}

// =============================================================================
// SIMULATION CONFIGURATION
// =============================================================================

// SimulationConfig holds tick loop settings.
type SimulationConfig struct {
	TickRate int   // Ticks per second
	Seed     int64 // RNG seed, 0 picks one from the clock
	Bots     int   // Server-driven pawns spawned at startup
}

// DefaultSimulation returns the default simulation configuration.
func DefaultSimulation() SimulationConfig {
	return SimulationConfig{
		TickRate: 30,
	}
}

// SimulationFromEnv returns simulation configuration with environment variable overrides.
func SimulationFromEnv() SimulationConfig {
	cfg := DefaultSimulation()

	if t := getEnvInt("TICK_RATE", 0); t > 0 {
		cfg.TickRate = t
	}
	if s := getEnvInt("SIM_SEED", 0); s != 0 {
		cfg.Seed = int64(s)
	}
	if b := getEnvInt("SIM_BOTS", -1); b >= 0 {
		cfg.Bots = b
	}

	return cfg
}

// TickInterval is the wall time of one tick.
func (c SimulationConfig) TickInterval() time.Duration {
	if c.TickRate <= 0 {
		return time.Second / 30
	}
	return time.Second / time.Duration(c.TickRate)
}

// =============================================================================
// COMBAT CONFIGURATION
// =============================================================================

// CombatConfig holds authority-side combat tunables.
type CombatConfig struct {
	MaxLaunchDistance  float64 // Max distance between firer and reported launch point
	MinLaunchFacingDot float64 // Min dot between launch direction and firer facing
	FocalDistance      float64 // Camera aim focal distance
	MaxProjectiles     int     // Live projectile cap
	LedgerLogRetention int     // Equipment change-log entries kept for deltas
	CorrelationWindow  int     // Recent target-data ids remembered per pawn
	MaxHealth          float64 // Health pool of a fresh pawn
	QuickBarSize       int
	SubmitsPerSec      float64 // Per-session target data submissions
	SubmitBurst        int
}

// DefaultCombat returns the default combat configuration.
func DefaultCombat() CombatConfig {
	return CombatConfig{
		MaxLaunchDistance:  300,
		MinLaunchFacingDot: -0.7,
		FocalDistance:      1024,
		MaxProjectiles:     256,
		LedgerLogRetention: 64,
		CorrelationWindow:  128,
		MaxHealth:          100,
		QuickBarSize:       3,
		SubmitsPerSec:      30,
		SubmitBurst:        60,
	}
}

// CombatFromEnv returns combat configuration with environment variable overrides.
func CombatFromEnv() CombatConfig {
	cfg := DefaultCombat()

	if d := getEnvFloat("MAX_LAUNCH_DISTANCE", 0); d > 0 {
		cfg.MaxLaunchDistance = d
	}
	if v, ok := lookupEnvFloat("MIN_LAUNCH_FACING_DOT"); ok && v >= -1 && v <= 1 {
		cfg.MinLaunchFacingDot = v
	}
	if f := getEnvFloat("FOCAL_DISTANCE", 0); f > 0 {
		cfg.FocalDistance = f
	}
	if m := getEnvInt("MAX_PROJECTILES", 0); m > 0 {
		cfg.MaxProjectiles = m
	}
	if r := getEnvInt("LEDGER_LOG_RETENTION", 0); r > 0 {
		cfg.LedgerLogRetention = r
	}
	if w := getEnvInt("CORRELATION_WINDOW", 0); w > 0 {
		cfg.CorrelationWindow = w
	}
	if h := getEnvFloat("MAX_HEALTH", 0); h > 0 {
		cfg.MaxHealth = h
	}
	if q := getEnvInt("QUICKBAR_SIZE", 0); q > 0 {
		cfg.QuickBarSize = q
	}
	if s := getEnvFloat("SUBMITS_PER_SEC", 0); s > 0 {
		cfg.SubmitsPerSec = s
	}
	if b := getEnvInt("SUBMIT_BURST", 0); b > 0 {
		cfg.SubmitBurst = b
	}

	return cfg
}

// =============================================================================
// WORLD CONFIGURATION
// =============================================================================

// WorldConfig holds arena bounds and broad phase settings.
type WorldConfig struct {
	MinX, MinY float64
	MaxX, MaxY float64
	CellSize   float64 // Broad phase grid cell size
	MaxBodies  int
}

// DefaultWorld returns the default world configuration.
func DefaultWorld() WorldConfig {
	return WorldConfig{
		MinX:      -5000,
		MinY:      -5000,
		MaxX:      5000,
		MaxY:      5000,
		CellSize:  250,
		MaxBodies: 1024,
	}
}

// WorldFromEnv returns world configuration with environment variable overrides.
func WorldFromEnv() WorldConfig {
	cfg := DefaultWorld()

	if s := getEnvFloat("WORLD_HALF_SIZE", 0); s > 0 {
		cfg.MinX, cfg.MinY = -s, -s
		cfg.MaxX, cfg.MaxY = s, s
	}
	if c := getEnvFloat("WORLD_CELL_SIZE", 0); c > 0 {
		cfg.CellSize = c
	}
	if m := getEnvInt("WORLD_MAX_BODIES", 0); m > 0 {
		cfg.MaxBodies = m
	}

	return cfg
}

// =============================================================================
// STORAGE CONFIGURATION
// =============================================================================

// StorageConfig selects the audit store backend.
type StorageConfig struct {
	Driver string // none, sqlite or postgres
	DSN    string // File path for sqlite, connection string for postgres
}

// DefaultStorage returns the default storage configuration.
func DefaultStorage() StorageConfig {
	return StorageConfig{
		Driver: "none",
	}
}

// StorageFromEnv returns storage configuration with environment variable overrides.
func StorageFromEnv() StorageConfig {
	cfg := DefaultStorage()

	if d := os.Getenv("STORAGE_DRIVER"); d != "" {
		cfg.Driver = strings.ToLower(d)
	}
	if dsn := os.Getenv("STORAGE_DSN"); dsn != "" {
		cfg.DSN = dsn
	}

	return cfg
}

// =============================================================================
// LOG CONFIGURATION
// =============================================================================

// LogConfig holds logger settings.
type LogConfig struct {
	Level   string // TRACE, DEBUG, INFO, WARN, ERROR
	Format  string // console or json
	Journal string // JSONL combat journal path, empty disables the file
}

// DefaultLog returns the default log configuration.
func DefaultLog() LogConfig {
	return LogConfig{
		Level:   "INFO",
		Format:  "console",
		Journal: "logs/combat.jsonl",
	}
}

// LogFromEnv returns log configuration with environment variable overrides.
func LogFromEnv() LogConfig {
	cfg := DefaultLog()

	if l := os.Getenv("LOG_LEVEL"); l != "" {
		cfg.Level = l
	}
	if f := os.Getenv("LOG_FORMAT"); f != "" {
		cfg.Format = strings.ToLower(f)
	}
	if j, ok := os.LookupEnv("JOURNAL_PATH"); ok {
		cfg.Journal = j
	}

	return cfg
}

// =============================================================================
// OBSERVABILITY CONFIGURATION
// =============================================================================

// ObservabilityConfig holds the debug server settings.
type ObservabilityConfig struct {
	Enabled  bool
	Port     int
	User     string // Basic auth user, empty disables auth
	Password string
}

// DefaultObservability returns the default observability configuration.
func DefaultObservability() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled: true,
		Port:    6060,
	}
}

// ObservabilityFromEnv returns observability configuration with environment variable overrides.
func ObservabilityFromEnv() ObservabilityConfig {
	cfg := DefaultObservability()

	if os.Getenv("DEBUG_SERVER") == "false" {
		cfg.Enabled = false
	}
	if p := getEnvInt("DEBUG_PORT", 0); p > 0 {
		cfg.Port = p
	}
	cfg.User = os.Getenv("DEBUG_USER")
	cfg.Password = os.Getenv("DEBUG_PASSWORD")

	return cfg
}

// =============================================================================
// CATALOG CONFIGURATION
// =============================================================================

// CatalogConfig locates the definitions file.
type CatalogConfig struct {
	Path string // Empty uses the built-in catalog
}

// CatalogFromEnv returns catalog configuration from the environment.
func CatalogFromEnv() CatalogConfig {
	return CatalogConfig{Path: os.Getenv("CATALOG_PATH")}
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Server        ServerConfig
	Simulation    SimulationConfig
	Combat        CombatConfig
	World         WorldConfig
	Storage       StorageConfig
	Log           LogConfig
	Observability ObservabilityConfig
	Catalog       CatalogConfig
}

// Default returns the complete configuration without environment overrides.
func Default() AppConfig {
	return AppConfig{
		Server:        DefaultServer(),
		Simulation:    DefaultSimulation(),
		Combat:        DefaultCombat(),
		World:         DefaultWorld(),
		Storage:       DefaultStorage(),
		Log:           DefaultLog(),
		Observability: DefaultObservability(),
	}
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Server:        ServerFromEnv(),
		Simulation:    SimulationFromEnv(),
		Combat:        CombatFromEnv(),
		World:         WorldFromEnv(),
		Storage:       StorageFromEnv(),
		Log:           LogFromEnv(),
		Observability: ObservabilityFromEnv(),
		Catalog:       CatalogFromEnv(),
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v, ok := lookupEnvFloat(key); ok {
		return v
	}
	return defaultVal
}

func lookupEnvFloat(key string) (float64, bool) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
