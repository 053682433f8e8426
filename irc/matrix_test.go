package irc

import "testing"

func TestNewMatrixWiresSubsystems(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SID = "1AA"
	cfg.ServerName = "irc.example.test"

	m := NewMatrix(cfg)

	if m.Users == nil || m.Channels == nil {
		t.Fatal("expected user and channel directories to be wired")
	}
	if m.Admission == nil {
		t.Fatal("expected admission pipeline to be built")
	}
	if m.Sync == nil || m.Authz == nil || m.Log == nil {
		t.Fatal("expected sync manager, authority, and logger to be wired")
	}
	if m.Config().ServerName != "irc.example.test" {
		t.Fatalf("unexpected server name: %s", m.Config().ServerName)
	}

	uid := m.Allocator.Next()
	if uid.ServerID() != "1AA" {
		t.Fatalf("expected allocated uid to carry local sid, got %s", uid)
	}
}

func TestRehashSwapsAdmissionPipeline(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SID = "1AA"
	m := NewMatrix(cfg)
	before := m.Admission

	next := DefaultConfig()
	next.SID = "1AA"
	next.RateLimit.DefaultTokens = 999
	m.Rehash(next)

	if m.Admission == before {
		t.Fatal("expected rehash to rebuild the admission pipeline")
	}
	if m.Config().RateLimit.DefaultTokens != 999 {
		t.Fatal("expected rehash to install the new config")
	}
}
