package cart

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	applog "omnishop/internal/log"
)

// Registry hands out one Store per session id. Stores idle for longer than the
// configured window are dropped; the next request rebuilds them from storage.
type Registry struct {
	gw    Gateway
	local func(sid string) LocalStorage
	opts  []Option

	mu     sync.Mutex
	stores *gocache.Cache
}

func NewRegistry(gw Gateway, local func(sid string) LocalStorage, idle time.Duration, opts ...Option) *Registry {
	exp, cleanup := gocache.NoExpiration, time.Duration(0)
	if idle > 0 {
		exp, cleanup = idle, idle
	}
	c := gocache.New(exp, cleanup)
	c.OnEvicted(func(sid string, v interface{}) {
		if st, ok := v.(*Store); ok {
			st.Wait()
		}
		applog.Debug(nil, "cart.session.evict", map[string]any{"sid": sid})
	})
	return &Registry{gw: gw, local: local, opts: opts, stores: c}
}

// Open returns the store for sid bound to userID ("" when anonymous). A user
// change since the last call runs SetIdentity, which merges on login.
func (r *Registry) Open(ctx context.Context, sid, userID string) *Store {
	r.mu.Lock()
	var st *Store
	if v, ok := r.stores.Get(sid); ok {
		st = v.(*Store)
	} else {
		st = NewStore(r.gw, r.local(sid), r.opts...)
	}
	// refresh the idle deadline
	r.stores.SetDefault(sid, st)
	r.mu.Unlock()

	// Fresh stores start anonymous so leftover local items still merge on login.
	st.Init(ctx, "")
	if st.UserID() != userID {
		st.SetIdentity(ctx, userID)
	}
	return st
}

func (r *Registry) Len() int { return r.stores.ItemCount() }

// Wait blocks until every store's background calls have returned.
func (r *Registry) Wait() {
	for _, item := range r.stores.Items() {
		if st, ok := item.Object.(*Store); ok {
			st.Wait()
		}
	}
}

// Close drains every store and drops them. go-cache has no way to stop its
// janitor goroutine; it exits once the Registry is garbage collected.
func (r *Registry) Close() {
	r.Wait()
	r.mu.Lock()
	r.stores.Flush()
	r.mu.Unlock()
}
