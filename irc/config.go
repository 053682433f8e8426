package irc

import (
	"time"

	"github.com/emberd/emberd/irc/logger"
)

// ListenerConfig describes one bind address the gateway should accept
// connections on. Parsing these from a file is out of scope for the core;
// a caller hands in an already-populated Config (spec.md §1).
type ListenerConfig struct {
	Address   string
	TLS       bool
	CertFile  string
	KeyFile   string
	ProxyOnly bool // require PROXY protocol header (behind a trusted LB)
}

// SASLConfig carries the parameters the sasl package needs but has no
// business owning itself (KDF cost, allowed mechanisms).
type SASLConfig struct {
	ScryptEnabled  bool
	BcryptCost     int
	ScramIterCount int
	AllowedMechs   []string
}

// RateLimitConfig is the token-bucket parameters for admission's rate
// limiter stage.
type RateLimitConfig struct {
	DefaultTokens       int
	DefaultRefillPerSec float64
	StrictTokens        int
	StrictRefillPerSec  float64
}

// SpamConfig is the sliding-window spam detector's thresholds.
type SpamConfig struct {
	Window      time.Duration
	RepeatLimit int
	URLLimit    int
}

// RBLConfig lists DNSBL zones and the resolver to query them through.
type RBLConfig struct {
	Zones    []string
	Resolver string
}

// RetentionConfig controls how long historystore keeps rows per target.
type RetentionConfig struct {
	Duration  time.Duration
	MaxPerKey int
}

// Config is the plain struct tree the Matrix accepts fully-populated at
// startup and on REHASH. Nothing in this package parses TOML/YAML/flags
// into a Config; that belongs to an out-of-scope CLI wrapper (spec.md §1).
type Config struct {
	NetworkName string
	ServerName  string
	SID         string

	Listeners []ListenerConfig

	MaxNickLen    int
	MaxChannelLen int
	MaxTopicLen   int

	SASL        SASLConfig
	RateLimit   RateLimitConfig
	Spam        SpamConfig
	RBL         RBLConfig
	Retention   RetentionConfig
	GraceWindow time.Duration

	// HistoryPath is the buntdb file backing CHATHISTORY storage. Empty
	// means in-memory only (":memory:"), fine for tests and single-shot
	// embeddings.
	HistoryPath string

	// RelDSN is the Postgres connection string backing account/channel
	// registration. Empty means the relational store is not constructed;
	// X-lines are then kept in memory only and are not persisted.
	RelDSN string

	// MOTD is served line-by-line by the MOTD command and on welcome.
	MOTD []string

	Log logger.Config
}

// DefaultConfig returns reasonable defaults for fields a test or a minimal
// embedding might otherwise leave zero.
func DefaultConfig() *Config {
	return &Config{
		MaxNickLen:    32,
		MaxChannelLen: 64,
		MaxTopicLen:   390,
		RateLimit: RateLimitConfig{
			DefaultTokens: 20, DefaultRefillPerSec: 2,
			StrictTokens: 4, StrictRefillPerSec: 0.5,
		},
		Spam:        SpamConfig{Window: 10 * time.Second, RepeatLimit: 3, URLLimit: 5},
		Retention:   RetentionConfig{Duration: 30 * 24 * time.Hour, MaxPerKey: 4096},
		GraceWindow: 15 * time.Minute,
	}
}
