// Package config resolves every runtime tunable from the environment,
// loading a .env file in development via godotenv.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/DoyleJ11/otrio-backend/internal/boardgame"
)

// Config bundles every runtime tunable.
type Config struct {
	Addr                 string
	TurnTimeout          time.Duration
	ReplayVoteWindow     time.Duration
	RoomTTL              time.Duration
	ConsecutiveSkipLimit int
	ReconnectGrace       time.Duration
	CleanupSweep         time.Duration
	MaxInvalidMessages   int
	ColorPalette         []boardgame.Color
	Development          bool
}

// Default returns the built-in defaults for every tunable.
func Default() Config {
	return Config{
		Addr:                 ":8080",
		TurnTimeout:          60 * time.Second,
		ReplayVoteWindow:     30 * time.Second,
		RoomTTL:              time.Hour,
		ConsecutiveSkipLimit: 2,
		ReconnectGrace:       5 * time.Minute,
		CleanupSweep:         5 * time.Minute,
		MaxInvalidMessages:   10,
		ColorPalette:         append([]boardgame.Color(nil), boardgame.DefaultPalette...),
		Development:          false,
	}
}

// Load loads a .env file if present (silently ignored if absent — a
// production deployment sets real environment variables instead), then
// overlays Default() with any of the recognized environment variables.
func Load(logger *zap.Logger) Config {
	if err := godotenv.Load(); err != nil && logger != nil {
		logger.Debug("no .env file loaded", zap.Error(err))
	}

	cfg := Default()
	cfg.Addr = envString("OTRIO_ADDR", cfg.Addr)
	cfg.TurnTimeout = envDuration("OTRIO_TURN_TIMEOUT_MS", cfg.TurnTimeout)
	cfg.ReplayVoteWindow = envDuration("OTRIO_REPLAY_VOTE_WINDOW_MS", cfg.ReplayVoteWindow)
	cfg.RoomTTL = envDuration("OTRIO_ROOM_TTL_MS", cfg.RoomTTL)
	cfg.ConsecutiveSkipLimit = envInt("OTRIO_CONSECUTIVE_SKIP_LIMIT", cfg.ConsecutiveSkipLimit)
	cfg.ReconnectGrace = envDuration("OTRIO_RECONNECT_GRACE_MS", cfg.ReconnectGrace)
	cfg.CleanupSweep = envDuration("OTRIO_CLEANUP_SWEEP_MS", cfg.CleanupSweep)
	cfg.MaxInvalidMessages = envInt("OTRIO_MAX_INVALID_MESSAGES", cfg.MaxInvalidMessages)
	cfg.Development = envBool("OTRIO_DEV", cfg.Development)
	return cfg
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if ms, err := strconv.Atoi(v); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return def
}

func envInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
