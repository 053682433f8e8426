package irc

import (
	"sync"

	"github.com/emberd/emberd/irc/ids"
)

// maxMonitorEntries bounds how many nicks one session may watch, per the
// IRCv3 MONITOR draft's MONLISTFULL behavior.
const maxMonitorEntries = 100

// MonitorSet tracks which sessions are watching which nicks, per spec.md
// §6's IRCv3 capability list (`monitor`). Online/offline status is reported
// only when a nick is added with MONITOR +; watchers are not notified when a
// watched nick later connects or disconnects.
type MonitorSet struct {
	mu      sync.RWMutex
	byUser  map[ids.UID]map[string]bool // watcher -> casefolded nicks watched
}

// NewMonitorSet returns an empty tracker.
func NewMonitorSet() *MonitorSet {
	return &MonitorSet{byUser: map[ids.UID]map[string]bool{}}
}

// Add starts uid watching nickFold, reporting false if uid is already at
// maxMonitorEntries.
func (s *MonitorSet) Add(uid ids.UID, nickFold string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	watched := s.byUser[uid]
	if watched == nil {
		watched = map[string]bool{}
		s.byUser[uid] = watched
	}
	if len(watched) >= maxMonitorEntries {
		return false
	}
	watched[nickFold] = true
	return true
}

// Remove stops uid watching nickFold.
func (s *MonitorSet) Remove(uid ids.UID, nickFold string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byUser[uid], nickFold)
}

// Clear removes every nick uid is watching.
func (s *MonitorSet) Clear(uid ids.UID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byUser, uid)
}

// List returns every nick uid currently watches.
func (s *MonitorSet) List(uid ids.UID) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.byUser[uid]))
	for nick := range s.byUser[uid] {
		out = append(out, nick)
	}
	return out
}
