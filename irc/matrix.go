package irc

import (
	"context"
	stdsync "sync"
	"time"

	"github.com/emberd/emberd/irc/admission"
	"github.com/emberd/emberd/irc/authz"
	"github.com/emberd/emberd/irc/bans"
	"github.com/emberd/emberd/irc/historystore"
	"github.com/emberd/emberd/irc/ids"
	"github.com/emberd/emberd/irc/logger"
	"github.com/emberd/emberd/irc/persistence/relstore"
	"github.com/emberd/emberd/irc/sync"
)

// Matrix is the process-wide dependency-injection container from spec.md
// §9's "Global mutable state" design note: constructed once at startup and
// threaded through every handler by reference. The only mutation after
// startup is Rehash, which swaps config-derived sub-objects under cfgMu so
// in-flight handlers never observe a half-updated configuration.
type Matrix struct {
	cfgMu stdsync.RWMutex
	cfg   *Config

	Users    *UserManager
	Channels *ChannelManager

	KLines *bans.Table
	DLines *bans.Table
	GLines *bans.Table
	ZLines *bans.Table
	RLines *bans.Table
	Shuns  *bans.Table

	Sync  *sync.Manager
	Authz *authz.Authority
	Log   *logger.Manager

	Admission *admission.Pipeline
	ipDeny    *admission.IPDenyBitmap
	limiter   *admission.RateLimiterSet
	rbl       *admission.RBLChecker
	banCache  *admission.BanCache
	spam      *admission.SpamDetector

	Allocator  *ids.Allocator
	Dispatcher *Dispatcher

	History  *historystore.Store
	Rel      *relstore.Store // nil unless Config.RelDSN is set
	WhoWas   *WhoWasRing
	Monitors *MonitorSet
	Invites  *InviteTable

	StartedAt time.Time
}

// NewMatrix assembles every subsystem from cfg. This is the only
// constructor; every other package's state lives behind one of these
// fields and is reached only through the Matrix.
func NewMatrix(cfg *Config) *Matrix {
	m := &Matrix{
		cfg:      cfg,
		Users:    NewUserManager(),
		Channels: NewChannelManager(),
		KLines:   bans.NewTable(bans.KLine),
		DLines:   bans.NewTable(bans.DLine),
		GLines:   bans.NewTable(bans.GLine),
		ZLines:   bans.NewTable(bans.ZLine),
		RLines:   bans.NewTable(bans.RLine),
		Shuns:    bans.NewTable(bans.Shun),
		Log:      logger.NewManager(cfg.Log),
	}
	m.Sync = sync.NewManager(ids.SID(cfg.SID), cfg.GraceWindow)
	m.Authz = authz.NewAuthority(m.Users)
	m.Allocator = ids.NewAllocator(ids.SID(cfg.SID))
	m.Dispatcher = NewDispatcher()
	m.buildAdmission(cfg)

	hist, err := historystore.Open(cfg.HistoryPath, cfg.Retention.Duration, cfg.Retention.MaxPerKey)
	if err != nil {
		m.Log.Sub("history").Error("falling back to in-memory history store", "error", err)
		hist, _ = historystore.Open("", cfg.Retention.Duration, cfg.Retention.MaxPerKey)
	}
	m.History = hist

	if cfg.RelDSN != "" {
		rel, err := relstore.Open(context.Background(), cfg.RelDSN)
		if err != nil {
			m.Log.Sub("relstore").Error("relational store unavailable", "error", err)
		} else {
			m.Rel = rel
			m.loadPersistedBans(context.Background())
		}
	}

	m.WhoWas = NewWhoWasRing(4096)
	m.Monitors = NewMonitorSet()
	m.Invites = NewInviteTable()
	m.StartedAt = time.Now()
	return m
}

// loadPersistedBans replays every X-line kind from Rel into its matching
// in-memory bans.Table, so a restart does not silently drop K/G/Z/R-lines
// and shuns set before the process last stopped.
func (m *Matrix) loadPersistedBans(ctx context.Context) {
	tables := map[bans.Kind]*bans.Table{
		bans.KLine: m.KLines, bans.DLine: m.DLines, bans.GLine: m.GLines,
		bans.ZLine: m.ZLines, bans.RLine: m.RLines, bans.Shun: m.Shuns,
	}
	for kind, table := range tables {
		entries, err := m.Rel.LoadBans(ctx, kind.String())
		if err != nil {
			m.Log.Sub("relstore").Warning("loading persisted bans failed", "kind", kind.String(), "error", err)
			continue
		}
		for _, e := range entries {
			_ = table.Add(e)
		}
	}
}

// buildAdmission constructs the admission pipeline stages from cfg. Called
// from NewMatrix and again from Rehash, since rate-limit/spam/RBL
// parameters are all config-derived.
func (m *Matrix) buildAdmission(cfg *Config) {
	m.ipDeny = admission.NewIPDenyBitmap()
	m.limiter = admission.NewRateLimiterSet(
		cfg.RateLimit.DefaultTokens, cfg.RateLimit.DefaultRefillPerSec,
		cfg.RateLimit.StrictTokens, cfg.RateLimit.StrictRefillPerSec,
	)
	m.rbl = admission.NewRBLChecker(cfg.RBL.Zones, cfg.RBL.Resolver)
	m.banCache = &admission.BanCache{KLines: m.KLines, GLines: m.GLines, RLines: m.RLines, Shuns: m.Shuns}
	m.spam = admission.NewSpamDetector(cfg.Spam.Window, cfg.Spam.RepeatLimit, cfg.Spam.URLLimit)
	m.Admission = admission.New(m.ipDeny, m.limiter, m.rbl, m.banCache, m.spam)
}

// Config returns the currently active configuration. Callers must not
// mutate the returned pointer; Rehash always installs a new *Config rather
// than editing one in place.
func (m *Matrix) Config() *Config {
	m.cfgMu.RLock()
	defer m.cfgMu.RUnlock()
	return m.cfg
}

// Rehash atomically swaps every config-derived sub-object for ones built
// from next, per spec.md §9: handlers already in flight keep using the
// sub-objects they read before the swap, and nothing observes a partial
// update because the swap happens under a single write lock.
func (m *Matrix) Rehash(next *Config) {
	m.cfgMu.Lock()
	defer m.cfgMu.Unlock()
	m.cfg = next
	m.buildAdmission(next)
	m.Log.SetLevel(next.Log.Level)
}
