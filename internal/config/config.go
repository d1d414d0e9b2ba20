// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for all server and arena settings.
//
// IMPORTANT: When changing values, only modify this file.
// All other parts of the codebase should reference these values.
package config

import (
	"os"
	"strconv"
)

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds the game WebSocket listener's settings.
type ServerConfig struct {
	Port     int
	TickRate int // ticks per second; not read by the server, which ticks at the fixed server.TickDuration (40ms)
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:     1234,
		TickRate: 25, // 40ms ticks
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if tr := getEnvInt("TICK_RATE", 0); tr > 0 {
		cfg.TickRate = tr
	}

	return cfg
}

// =============================================================================
// ARENA CONFIGURATION
// =============================================================================

// ArenaConfig holds the maze grid's shape and which biome template to load.
// server.New reads only BiomeID; it builds a fixed 32x32 grid of 256-unit
// cells (the defaults below), and GridDimension is only reported at startup.
type ArenaConfig struct {
	GridDimension int     // cells per side
	CellSize      float64 // world units per cell
	BiomeID       int
}

// DefaultArena returns the default arena configuration.
func DefaultArena() ArenaConfig {
	return ArenaConfig{
		GridDimension: 32,
		CellSize:      256.0,
		BiomeID:       0,
	}
}

// ArenaFromEnv returns arena configuration with environment variable overrides.
func ArenaFromEnv() ArenaConfig {
	cfg := DefaultArena()

	if d := getEnvInt("ARENA_GRID_DIMENSION", 0); d > 0 {
		cfg.GridDimension = d
	}
	if c := getEnvFloat("ARENA_CELL_SIZE", 0); c > 0 {
		cfg.CellSize = c
	}
	if b := getEnvInt("ARENA_BIOME_ID", -1); b >= 0 {
		cfg.BiomeID = b
	}

	return cfg
}

// =============================================================================
// RESOURCE LIMITS
// =============================================================================

// LimitsConfig holds resource-limit values that are reported at startup.
// None of them is enforced from here: the entity table capacity is the
// constant ecs.MaxEntities, the outgoing queue limit is the constant
// session.MaxQueuedMessages, and no cap on connected clients is applied.
type LimitsConfig struct {
	MaxEntities     int // live ECS entities; the default equals ecs.MaxEntities
	MaxClients      int // concurrently connected sessions
	MaxMessageQueue int // per-client outgoing queue depth; the default equals session.MaxQueuedMessages
}

// DefaultLimits returns the default resource limits.
func DefaultLimits() LimitsConfig {
	return LimitsConfig{
		MaxEntities:     16384,
		MaxClients:      2000,
		MaxMessageQueue: 512,
	}
}

// LimitsFromEnv returns resource limits with environment variable overrides.
func LimitsFromEnv() LimitsConfig {
	cfg := DefaultLimits()

	if me := getEnvInt("MAX_ENTITIES", 0); me > 0 {
		cfg.MaxEntities = me
	}
	if mc := getEnvInt("MAX_CLIENTS", 0); mc > 0 {
		cfg.MaxClients = mc
	}
	if mq := getEnvInt("MAX_MESSAGE_QUEUE", 0); mq > 0 {
		cfg.MaxMessageQueue = mq
	}

	return cfg
}

// =============================================================================
// CRYPTO CONFIGURATION
// =============================================================================

// CryptoConfig holds the rolling-keystream obscuring layer's seeds
// (spec §4.7/§6) and the SANDBOX flag. Only Sandbox is read at startup: the
// handshake obscuring in internal/wire uses its own compiled-in seeds and
// RR_SECRET8, so the seed fields and their RR_SEED* overrides do not change
// what is sent on the wire.
type CryptoConfig struct {
	Seed0, Seed1, Seed2, Seed3 uint64
	Secret8                    byte // RR_SECRET8 handshake-obscuring constant
	Sandbox                    bool
}

// DefaultCrypto returns the hard-coded sandbox seeds, matching
// internal/wire/crypto.go's obscureSeeds default.
func DefaultCrypto() CryptoConfig {
	return CryptoConfig{
		Seed0:   0xA5A5A5A5DEADBEEF,
		Seed1:   0x0123456789ABCDEF,
		Seed2:   0xFEEDFACECAFEBABE,
		Seed3:   0x1122334455667788,
		Secret8: 0x5A,
		Sandbox: true,
	}
}

// CryptoFromEnv returns crypto configuration with environment variable
// overrides. Outside SANDBOX, all four seeds should be supplied; any left
// unset fall back to the sandbox defaults rather than failing startup,
// since a missing seed should never crash the process (spec §7).
func CryptoFromEnv() CryptoConfig {
	cfg := DefaultCrypto()
	cfg.Sandbox = os.Getenv("SANDBOX") != "false"

	if s0 := getEnvInt("RR_SEED0", 0); s0 != 0 {
		cfg.Seed0 = uint64(s0)
	}
	if s1 := getEnvInt("RR_SEED1", 0); s1 != 0 {
		cfg.Seed1 = uint64(s1)
	}
	if s2 := getEnvInt("RR_SEED2", 0); s2 != 0 {
		cfg.Seed2 = uint64(s2)
	}
	if s3 := getEnvInt("RR_SEED3", 0); s3 != 0 {
		cfg.Seed3 = uint64(s3)
	}

	return cfg
}

// =============================================================================
// RIVET CONFIGURATION
// =============================================================================

// RivetConfig holds the optional Rivet matchmaker/lobby integration settings
// (spec §6 external interfaces). Disabled by default; a bare standalone
// deployment never touches these.
type RivetConfig struct {
	Enabled  bool
	Token    string
	LobbyID  string
}

// DefaultRivet returns Rivet integration disabled.
func DefaultRivet() RivetConfig {
	return RivetConfig{}
}

// RivetFromEnv returns Rivet configuration with environment variable
// overrides, enabling the integration only when a token is present.
func RivetFromEnv() RivetConfig {
	cfg := DefaultRivet()

	if token := os.Getenv("RIVET_TOKEN"); token != "" {
		cfg.Token = token
		cfg.LobbyID = os.Getenv("RIVET_LOBBY_ID")
		cfg.Enabled = true
	}

	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Server ServerConfig
	Arena  ArenaConfig
	Limits LimitsConfig
	Crypto CryptoConfig
	Rivet  RivetConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Server: ServerFromEnv(),
		Arena:  ArenaFromEnv(),
		Limits: LimitsFromEnv(),
		Crypto: CryptoFromEnv(),
		Rivet:  RivetFromEnv(),
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
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
