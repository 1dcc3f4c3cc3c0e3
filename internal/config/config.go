package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all server tuning. Every field has a default so the binary
// runs with no environment at all; a .env file is loaded when present.
type Config struct {
	ListenAddr string
	PublicURL  string

	MinPlayers    int
	Countdown     time.Duration
	StartingDelay time.Duration
	Voting        time.Duration

	GatherCountdown time.Duration
	GatherGrace     time.Duration

	AttackClip     time.Duration
	AttackRange    float64
	AttackFraction float64

	CharacterCount int
	TickInterval   time.Duration
}

func Load() Config {
	// Missing .env is fine: defaults and real env vars still apply.
	_ = godotenv.Load()

	return Config{
		ListenAddr: getString("LISTEN_ADDR", ":8080"),
		PublicURL:  getString("PUBLIC_URL", "http://localhost:8080"),

		MinPlayers:    getInt("MIN_PLAYERS", 2),
		Countdown:     getDuration("ROUND_COUNTDOWN_MS", 10*time.Second),
		StartingDelay: getDuration("ROUND_STARTING_MS", 3*time.Second),
		Voting:        getDuration("ROUND_VOTING_MS", 20*time.Second),

		GatherCountdown: getDuration("GATHER_COUNTDOWN_MS", 15*time.Second),
		GatherGrace:     getDuration("GATHER_GRACE_MS", 1200*time.Millisecond),

		AttackClip:     getDuration("ATTACK_CLIP_MS", 1167*time.Millisecond),
		AttackRange:    getFloat("ATTACK_RANGE", 1.0),
		AttackFraction: getFloat("ATTACK_FRACTION", 0.5),

		CharacterCount: getInt("CHARACTER_COUNT", 4),
		TickInterval:   getDuration("TICK_MS", 100*time.Millisecond),
	}
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return def
}
