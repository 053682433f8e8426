package irc

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/emberd/emberd/irc/ids"
)

func TestConcurrentNickClaimExactlyOneWinner(t *testing.T) {
	um := NewUserManager()
	const attempts = 1000
	var successes int64
	var mu sync.Mutex
	winners := map[ids.UID]bool{}
	var wg sync.WaitGroup
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func(i int) {
			defer wg.Done()
			uid := ids.UID("1AA" + string(rune('A'+i%26)) + "00000")
			if err := um.ClaimNick("alice", uid); err == nil {
				atomic.AddInt64(&successes, 1)
				mu.Lock()
				winners[uid] = true
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	if successes == 0 {
		t.Fatal("expected at least one successful claim")
	}
	// Multiple goroutines reusing the same UID (i%26 collisions) can each
	// legitimately "succeed" since ClaimNick is idempotent for the
	// existing holder; what must never happen is two *different* UIDs both
	// holding the nick at once. Verify that invariant directly.
	if len(winners) != 1 {
		t.Fatalf("expected exactly one UID to win the nick, got %d", len(winners))
	}
	if err := um.ClaimNick("alice", ids.UID("2ZZZZZZZZ")); err != ErrNickInUse {
		t.Fatal("expected alice to be claimed by someone")
	}
}

func TestNickClaimRejectsDifferentUID(t *testing.T) {
	um := NewUserManager()
	uidA := ids.UID("1AAAAAAAA")
	uidB := ids.UID("1AABBBBBB")

	if err := um.ClaimNick("bob", uidA); err != nil {
		t.Fatalf("first claim should succeed: %v", err)
	}
	if err := um.ClaimNick("bob", uidB); err != ErrNickInUse {
		t.Fatalf("second claim by a different uid should fail with ErrNickInUse, got %v", err)
	}
	um.ReleaseNick("bob", uidA)
	if err := um.ClaimNick("bob", uidB); err != nil {
		t.Fatalf("claim after release should succeed: %v", err)
	}
}

type testSink struct{}

func (testSink) Deliver(string) error { return nil }

func TestRegisterAndLookup(t *testing.T) {
	um := NewUserManager()
	u := NewPreRegisteredUser(ids.UID("1AAAAAAAA"), testSink{})
	u.SetScratchNick("carol")
	u.SetScratchUser("carol", "Carol Example")
	if !u.CompleteRegistration("carol.example.net") {
		t.Fatal("expected registration to complete")
	}
	if err := um.ClaimNick(u.NickFold(), u.UID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	um.Register(u)

	got, ok := um.ByNick("carol")
	if !ok || got.UID != u.UID {
		t.Fatal("expected lookup by nick to find the registered user")
	}
	got2, ok := um.ByUID(u.UID)
	if !ok || got2 != u {
		t.Fatal("expected lookup by uid to find the same user")
	}
}
