// Package session keeps the most recently loaded authorization state per
// (platform, account) key in memory, in front of the credential store.
package session

import (
	"log"
	"sync"
	"sync/atomic"

	"zaop.zip/paylink/internal/auth/authstate"
	"zaop.zip/paylink/internal/auth/store"
	"zaop.zip/paylink/internal/db/models"
	"zaop.zip/paylink/internal/platform"
)

// Key addresses one linked account.
type Key struct {
	Platform  platform.Platform
	AccountID int64
}

// Handle is the single cache entry for one key. All writes for a key route
// through its handle, which serializes them against concurrent loads.
type Handle struct {
	key   Key
	store *store.Store
	cur   atomic.Pointer[authstate.State]
}

// Key returns the key this handle serves.
func (h *Handle) Key() Key { return h.key }

// Current returns a copy of the cached state, loading it from the credential
// store on first use. The loaded value is installed with compare-and-set: if
// another caller installed a value first, that value wins, so an in-flight
// load can never clobber a concurrent Replace or Delete. Callers get a clone,
// never the cached pointer, so the cache entry itself only ever changes
// through Replace.
func (h *Handle) Current() *authstate.State {
	if s := h.cur.Load(); s != nil {
		return s.Clone()
	}
	loaded := h.load()
	if !h.cur.CompareAndSwap(nil, loaded) {
		loaded = h.cur.Load()
	}
	return loaded.Clone()
}

// load reads the stored blob. A missing record or a corrupt blob both yield a
// fresh unauthorized state; corruption and store failures are logged and
// recovered, not surfaced.
func (h *Handle) load() *authstate.State {
	rec, err := h.store.Get(h.key.Platform, h.key.AccountID)
	if err == store.ErrNotFound {
		return authstate.New()
	}
	if err != nil {
		log.Printf("credential store read failed for %s/%d, treating as unauthorized: %v",
			h.key.Platform, h.key.AccountID, err)
		return authstate.New()
	}
	s, err := authstate.Deserialize(rec.State)
	if err != nil {
		log.Printf("discarding undeserializable auth state for %s/%d: %v",
			h.key.Platform, h.key.AccountID, err)
		return authstate.New()
	}
	return s
}

// Replace writes the state through to the credential store and then
// unconditionally overwrites the cache entry. Replace always wins over any
// in-flight Current load, and the cache is only touched after the durable
// write succeeds: a failed Put leaves the cached value unchanged. The entry
// is cached as a clone, detaching it from the caller's pointer.
func (h *Handle) Replace(s *authstate.State) (*authstate.State, error) {
	err := h.store.Put(&models.AuthorizationRecord{
		Platform:  string(h.key.Platform),
		AccountID: h.key.AccountID,
		State:     s.Serialize(),
	})
	if err != nil {
		return nil, err
	}
	h.cur.Store(s.Clone())
	return s, nil
}

// Delete removes the backing record and pins the cache entry to a fresh
// unauthorized state, mirroring what a reload of the now-missing record would
// yield. Pinning rather than clearing means a load that read the store before
// the delete cannot reinstall the stale authorized value.
func (h *Handle) Delete() error {
	if err := h.store.Delete(h.key.Platform, h.key.AccountID); err != nil {
		return err
	}
	h.cur.Store(authstate.New())
	return nil
}

// Registry hands out at most one Handle per key. It is owned by the
// composition root and passed to whoever needs to resolve a key.
type Registry struct {
	store   *store.Store
	mu      sync.Mutex
	handles map[Key]*Handle
}

// NewRegistry builds an empty registry over the credential store.
func NewRegistry(st *store.Store) *Registry {
	return &Registry{
		store:   st,
		handles: make(map[Key]*Handle),
	}
}

// Handle resolves the handle for a key, creating it on first use.
func (r *Registry) Handle(p platform.Platform, accountID int64) *Handle {
	key := Key{Platform: p, AccountID: accountID}
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.handles[key]; ok {
		return h
	}
	h := &Handle{key: key, store: r.store}
	r.handles[key] = h
	return h
}
