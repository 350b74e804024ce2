// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for all simulation and network settings.
//
// IMPORTANT: When changing values, only modify this file.
// All other parts of the codebase should reference these values.
package config

import (
	"os"
	"strconv"
)

// =============================================================================
// SIMULATION CONFIGURATION
// =============================================================================

// SimConfig holds the fixed-rate simulation settings shared by both peers.
type SimConfig struct {
	TickRate   int // simulation ticks per second
	SnapshotHz int // authoritative snapshot broadcast rate (host only)
}

// DefaultSim returns the default simulation configuration.
func DefaultSim() SimConfig {
	return SimConfig{
		TickRate:   60,
		SnapshotHz: 30, // decoupled from tick rate; enforced by elapsed time
	}
}

// SimFromEnv returns simulation configuration with environment variable
// overrides. Environment variables take precedence over defaults.
func SimFromEnv() SimConfig {
	cfg := DefaultSim()

	if tr := getEnvInt("TICK_RATE", 0); tr > 0 {
		cfg.TickRate = tr
	}
	if hz := getEnvInt("SNAPSHOT_HZ", 0); hz > 0 {
		cfg.SnapshotHz = hz
	}

	return cfg
}

// =============================================================================
// MOVEMENT CONFIGURATION
// =============================================================================

// MovementConfig holds the kinematic integrator tunables. Both peers must
// run identical values or client prediction diverges every tick.
type MovementConfig struct {
	WalkSpeed   float64 // m/s
	SprintSpeed float64 // m/s
	JumpSpeed   float64 // m/s initial vertical velocity
	Gravity     float64 // m/s^2
}

// DefaultMovement returns the default movement configuration.
func DefaultMovement() MovementConfig {
	return MovementConfig{
		WalkSpeed:   4.5,
		SprintSpeed: 7.0,
		JumpSpeed:   4.8,
		Gravity:     14.0,
	}
}

// =============================================================================
// RECONCILIATION TUNING
// =============================================================================

// TuningConfig holds the snapshot-correction tunables. These are tuned
// values with no analytic derivation; keep them configurable rather than
// hard-coded.
type TuningConfig struct {
	SnapThreshold float64 // meters; beyond this, snap instead of blend
	BlendFactor   float64 // fraction corrected per snapshot, (0,1)
}

// DefaultTuning returns the default reconciliation tuning.
func DefaultTuning() TuningConfig {
	return TuningConfig{
		SnapThreshold: 2.0,
		BlendFactor:   0.2,
	}
}

// TuningFromEnv returns tuning with environment variable overrides.
func TuningFromEnv() TuningConfig {
	cfg := DefaultTuning()

	if st := getEnvFloat("SNAP_THRESHOLD", -1); st > 0 {
		cfg.SnapThreshold = st
	}
	if bf := getEnvFloat("BLEND_FACTOR", -1); bf > 0 && bf < 1 {
		cfg.BlendFactor = bf
	}

	return cfg
}

// =============================================================================
// NETWORK CONFIGURATION
// =============================================================================

// NetConfig holds peer link settings.
type NetConfig struct {
	Port     int    // host listen port
	HostURL  string // client-side: ws:// URL of the host peer
	PeerPath string // URL path of the peer-link endpoint
}

// DefaultNet returns the default network configuration.
func DefaultNet() NetConfig {
	return NetConfig{
		Port:     3000,
		HostURL:  "ws://localhost:3000/peer",
		PeerPath: "/peer",
	}
}

// NetFromEnv returns network configuration with environment variable
// overrides.
func NetFromEnv() NetConfig {
	cfg := DefaultNet()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if u := os.Getenv("HOST_URL"); u != "" {
		cfg.HostURL = u
	}

	return cfg
}

// =============================================================================
// JOURNAL CONFIGURATION
// =============================================================================

// JournalConfig holds match event log settings.
type JournalConfig struct {
	Path    string // JSONL output file; empty keeps the journal in memory
	Enabled bool
}

// DefaultJournal returns the default journal configuration.
func DefaultJournal() JournalConfig {
	return JournalConfig{
		Path:    "",
		Enabled: true,
	}
}

// JournalFromEnv returns journal configuration with environment variable
// overrides.
func JournalFromEnv() JournalConfig {
	cfg := DefaultJournal()

	if p := os.Getenv("JOURNAL_PATH"); p != "" {
		cfg.Path = p
	}
	if os.Getenv("JOURNAL_ENABLED") == "false" {
		cfg.Enabled = false
	}

	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Sim      SimConfig
	Movement MovementConfig
	Tuning   TuningConfig
	Net      NetConfig
	Journal  JournalConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Sim:      SimFromEnv(),
		Movement: DefaultMovement(),
		Tuning:   TuningFromEnv(),
		Net:      NetFromEnv(),
		Journal:  JournalFromEnv(),
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
