package monitor

import (
	"sort"
	"sync"
	"time"

	"cattleherd/internal/types"
)

// Entry is the last-known state for one herd member. Poll mode keys entries
// by target address; pull intake keys them by announced device ID. The
// public key is recorded verbatim, never pinned; a changed key on reconnect
// overwrites the previous one.
type Entry struct {
	Key         string                      `json:"key"`
	Target      string                      `json:"target,omitempty"`
	DeviceID    string                      `json:"device_id,omitempty"`
	PublicKey   []byte                      `json:"public_key,omitempty"`
	Initial     *types.InitialConnectReport `json:"initial,omitempty"`
	LastUpdate  *types.PeriodicUpdateReport `json:"last_update,omitempty"`
	LastSeen    time.Time                   `json:"last_seen"`
	LastError   string                      `json:"last_error,omitempty"`
	LastErrorAt time.Time                   `json:"last_error_at"`
}

// Registry is the herder's in-memory view of the herd. No persistence.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*Entry),
	}
}

// RecordHandshake stores a completed identity exchange
func (r *Registry) RecordHandshake(key, target string, publicKey []byte, initial *types.InitialConnectReport) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.entry(key)
	e.Target = target
	e.PublicKey = publicKey
	e.Initial = initial
	if initial != nil {
		e.DeviceID = initial.DeviceID.String()
	}
	e.LastSeen = time.Now()
	e.LastError = ""
}

// RecordUpdate stores the latest periodic report
func (r *Registry) RecordUpdate(key string, update *types.PeriodicUpdateReport) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.entry(key)
	e.LastUpdate = update
	e.LastSeen = time.Now()
	e.LastError = ""
}

// RecordFailure stores an explicit failure for the member, never a silent
// gap. The previous successful data stays visible alongside the error.
func (r *Registry) RecordFailure(key, target string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.entry(key)
	if e.Target == "" {
		e.Target = target
	}
	e.LastError = err.Error()
	e.LastErrorAt = time.Now()
}

// Get returns a copy of one entry
func (r *Registry) Get(key string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[key]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Entries returns copies of all entries, sorted by key
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// entry returns the existing entry for key or creates it; callers hold the
// write lock.
func (r *Registry) entry(key string) *Entry {
	e, ok := r.entries[key]
	if !ok {
		e = &Entry{Key: key}
		r.entries[key] = e
	}
	return e
}
