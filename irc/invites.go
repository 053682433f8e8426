package irc

import "sync"

// InviteTable tracks pending INVITE grants: a casefolded channel name maps
// to the set of casefolded nicks invited past +i, per spec.md §3.
type InviteTable struct {
	mu    sync.Mutex
	byChan map[string]map[string]bool
}

// NewInviteTable returns an empty table.
func NewInviteTable() *InviteTable {
	return &InviteTable{byChan: map[string]map[string]bool{}}
}

// Grant records that nickFold may join casefold once, bypassing +i.
func (t *InviteTable) Grant(casefold, nickFold string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.byChan[casefold] == nil {
		t.byChan[casefold] = map[string]bool{}
	}
	t.byChan[casefold][nickFold] = true
}

// Consume reports whether nickFold held an invite to casefold, removing it
// either way (an invite is single-use).
func (t *InviteTable) Consume(casefold, nickFold string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	invited := t.byChan[casefold][nickFold]
	delete(t.byChan[casefold], nickFold)
	return invited
}
