package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 30, cfg.Simulation.TickRate)
	assert.Equal(t, 300.0, cfg.Combat.MaxLaunchDistance)
	assert.Equal(t, -0.7, cfg.Combat.MinLaunchFacingDot)
	assert.Equal(t, 1024.0, cfg.Combat.FocalDistance)
	assert.Equal(t, "none", cfg.Storage.Driver)
	assert.Equal(t, "INFO", cfg.Log.Level)
	assert.Empty(t, cfg.Catalog.Path)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("TICK_RATE", "60")
	t.Setenv("MAX_LAUNCH_DISTANCE", "450")
	t.Setenv("MIN_LAUNCH_FACING_DOT", "-0.5")
	t.Setenv("STORAGE_DRIVER", "SQLite")
	t.Setenv("STORAGE_DSN", "audit.db")
	t.Setenv("LOG_FORMAT", "JSON")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("WORLD_HALF_SIZE", "2000")
	t.Setenv("DEBUG_SERVER", "false")
	t.Setenv("CATALOG_PATH", "catalog.yaml")
	t.Setenv("SIM_BOTS", "4")

	cfg := Load()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 60, cfg.Simulation.TickRate)
	assert.Equal(t, 4, cfg.Simulation.Bots)
	assert.Equal(t, 450.0, cfg.Combat.MaxLaunchDistance)
	assert.Equal(t, -0.5, cfg.Combat.MinLaunchFacingDot)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "audit.db", cfg.Storage.DSN)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, -2000.0, cfg.World.MinX)
	assert.Equal(t, 2000.0, cfg.World.MaxY)
	assert.False(t, cfg.Observability.Enabled)
	assert.Equal(t, "catalog.yaml", cfg.Catalog.Path)
}

func TestInvalidEnvKeepsDefaults(t *testing.T) {
	t.Setenv("PORT", "not-a-port")
	t.Setenv("TICK_RATE", "-5")
	t.Setenv("MIN_LAUNCH_FACING_DOT", "3")
	t.Setenv("MAX_PROJECTILES", "lots")

	cfg := Load()

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 30, cfg.Simulation.TickRate)
	assert.Equal(t, -0.7, cfg.Combat.MinLaunchFacingDot)
	assert.Equal(t, 256, cfg.Combat.MaxProjectiles)
}

func TestJournalCanBeDisabled(t *testing.T) {
	t.Setenv("JOURNAL_PATH", "")
	assert.Empty(t, LogFromEnv().Journal)
}

func TestTickInterval(t *testing.T) {
	assert.Equal(t, time.Second/20, SimulationConfig{TickRate: 20}.TickInterval())
	assert.Equal(t, time.Second/30, SimulationConfig{}.TickInterval())
}
