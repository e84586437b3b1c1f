package cart

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"omnishop/internal/domain"
	applog "omnishop/internal/log"
)

const defaultSyncTimeout = 10 * time.Second

type Option func(*Store)

func WithClock(c Clock) Option {
	return func(s *Store) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithSyncTimeout bounds each background gateway call.
func WithSyncTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// Store is the in-memory cart of one session. Mutations apply to memory
// immediately; persistence runs afterwards and its failures are only logged.
type Store struct {
	gw      Gateway
	local   LocalStorage
	clock   Clock
	timeout time.Duration

	mu     sync.Mutex
	userID string
	items  []domain.CartItem
	ready  bool

	// syncing suppresses overlapping remote calls; a mutation that finds it set
	// skips its remote call and marks the store dirty until the next fetch.
	syncing atomic.Bool
	dirty   atomic.Bool
	status  atomic.Int32
	wg      sync.WaitGroup
}

func NewStore(gw Gateway, local LocalStorage, opts ...Option) *Store {
	s := &Store{gw: gw, local: local, clock: systemClock{}, timeout: defaultSyncTimeout}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Init hydrates the store for userID: from local storage when anonymous, from
// the gateway otherwise. It runs once; later identity changes go through SetIdentity.
func (s *Store) Init(ctx context.Context, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return
	}
	s.initLocked(ctx, userID)
}

func (s *Store) initLocked(ctx context.Context, userID string) {
	s.wg.Wait()
	s.userID = userID
	if userID == "" {
		s.items = s.readLocal(ctx)
	} else if items, ok := s.fetch(ctx); ok {
		s.items = items
	} else {
		s.items = nil
	}
	s.ready = true
}

// SetIdentity moves the store to userID ("" for anonymous). Anonymous -> user
// merges the local cart into the remote one; see Transition.
func (s *Store) SetIdentity(ctx context.Context, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		s.initLocked(ctx, "")
	}
	from := s.userID
	if from == userID {
		return
	}
	s.wg.Wait()
	s.userID = userID

	if userID == "" {
		s.items = s.readLocal(ctx)
		return
	}

	s.syncing.Store(true)
	defer s.syncing.Store(false)
	s.setStatus(StatusSyncing)

	var local []domain.CartItem
	if from == "" {
		local = s.readLocal(ctx)
	}
	items, err := Transition(ctx, s.gw, from, userID, local, s.saveRemainder)
	if err != nil {
		applog.Error(nil, "cart.identity.fail", err, map[string]any{"from": from, "to": userID, "local_items": len(local)})
		s.setStatus(StatusFailed)
		if from == "" {
			// stay anonymous on what is left locally; the next SetIdentity merges the rest
			s.userID = ""
			s.items = s.readLocal(ctx)
			return
		}
		s.items = nil
		return
	}
	if from == "" {
		applog.Info(nil, "cart.merge", map[string]any{"user_id": userID, "merged": len(local), "items": len(items)})
	}
	s.items = items
	s.dirty.Store(false)
	s.setStatus(StatusIdle)
}

// saveRemainder rewrites the local copy with the items a merge has not pushed yet.
func (s *Store) saveRemainder(ctx context.Context, remaining []domain.CartItem) error {
	if len(remaining) == 0 {
		return s.local.RemoveItem(ctx, StorageKey)
	}
	b, err := json.Marshal(remaining)
	if err != nil {
		return err
	}
	return s.local.SetItem(ctx, StorageKey, string(b))
}

// AddItem adds a line or, when the product/variant pair is already present,
// increases its quantity. The existing line keeps its name, image and price.
func (s *Store) AddItem(item domain.NewCartItem) {
	if item.Quantity < 1 {
		item.Quantity = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id := domain.ItemID(item.ProductID, item.Variant.ID)
	if i := s.indexLocked(id); i >= 0 {
		s.items[i].Quantity += item.Quantity
	} else {
		s.items = append(s.items, domain.CartItem{
			ID:           id,
			ProductID:    item.ProductID,
			ProductName:  item.ProductName,
			ProductImage: item.ProductImage,
			Variant:      item.Variant,
			Quantity:     item.Quantity,
			AddedAt:      s.clock.Now().UnixMilli(),
		})
	}
	s.persistLocked("add", func(ctx context.Context, userID string) error {
		return s.gw.AddItem(ctx, userID, item.ProductID, item.Variant.ID, item.Quantity)
	})
}

// RemoveItem drops the line with itemID. Unknown ids are ignored.
func (s *Store) RemoveItem(itemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(itemID)
}

func (s *Store) removeLocked(itemID string) {
	i := s.indexLocked(itemID)
	if i < 0 {
		return
	}
	variantID := s.items[i].Variant.ID
	s.items = slices.Delete(s.items, i, i+1)
	s.persistLocked("remove", func(ctx context.Context, userID string) error {
		return s.gw.RemoveItem(ctx, userID, variantID)
	})
}

// UpdateQuantity sets the quantity of itemID; below 1 removes the line.
func (s *Store) UpdateQuantity(itemID string, quantity int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if quantity < 1 {
		s.removeLocked(itemID)
		return
	}
	i := s.indexLocked(itemID)
	if i < 0 {
		return
	}
	s.items[i].Quantity = quantity
	variantID := s.items[i].Variant.ID
	s.persistLocked("update", func(ctx context.Context, userID string) error {
		return s.gw.UpdateItem(ctx, userID, variantID, quantity)
	})
}

func (s *Store) ClearCart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = []domain.CartItem{}
	s.persistLocked("clear", func(ctx context.Context, userID string) error {
		return s.gw.ClearCart(ctx, userID)
	})
}

func (s *Store) IsInCart(productID, variantID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexLocked(domain.ItemID(productID, variantID)) >= 0
}

// Items returns a copy of the lines in insertion order.
func (s *Store) Items() []domain.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items)
}

func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.ItemCount(s.items)
}

func (s *Store) Subtotal() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.Subtotal(s.items)
}

func (s *Store) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

func (s *Store) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

func (s *Store) Status() SyncStatus { return SyncStatus(s.status.Load()) }

// Wait blocks until background gateway calls issued so far have returned.
func (s *Store) Wait() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wg.Wait()
}

func (s *Store) setStatus(st SyncStatus) { s.status.Store(int32(st)) }

func (s *Store) indexLocked(id string) int {
	return slices.IndexFunc(s.items, func(it domain.CartItem) bool { return it.ID == id })
}

func (s *Store) persistLocked(op string, remote func(ctx context.Context, userID string) error) {
	if s.userID == "" {
		s.writeLocal(op)
		return
	}
	s.syncRemote(op, s.userID, remote)
}

func (s *Store) syncRemote(op, userID string, fn func(ctx context.Context, userID string) error) {
	if !s.syncing.CompareAndSwap(false, true) {
		s.dirty.Store(true)
		applog.Debug(nil, "cart.sync.skip", map[string]any{"op": op, "user_id": userID})
		return
	}
	s.setStatus(StatusSyncing)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.syncing.Store(false)

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := fn(ctx, userID); err != nil {
			applog.Error(nil, "cart.sync.fail", err, map[string]any{"op": op, "user_id": userID})
			s.setStatus(StatusFailed)
			return
		}
		if s.dirty.Load() {
			// a skipped mutation never reached the gateway
			s.setStatus(StatusFailed)
			return
		}
		s.setStatus(StatusIdle)
	}()
}

func (s *Store) fetch(ctx context.Context) ([]domain.CartItem, bool) {
	s.syncing.Store(true)
	defer s.syncing.Store(false)
	s.setStatus(StatusSyncing)

	items, err := s.gw.FetchCart(ctx, s.userID)
	if err != nil {
		applog.Error(nil, "cart.fetch.fail", err, map[string]any{"user_id": s.userID})
		s.setStatus(StatusFailed)
		return nil, false
	}
	s.dirty.Store(false)
	s.setStatus(StatusIdle)
	return items, true
}

func (s *Store) readLocal(ctx context.Context) []domain.CartItem {
	raw, ok, err := s.local.GetItem(ctx, StorageKey)
	if err != nil {
		applog.Error(nil, "cart.local.read", err, nil)
		return nil
	}
	if !ok {
		return nil
	}
	var items []domain.CartItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		applog.Error(nil, "cart.local.parse", err, map[string]any{"bytes": len(raw)})
		return nil
	}
	return items
}

func (s *Store) writeLocal(op string) {
	items := s.items
	if items == nil {
		items = []domain.CartItem{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		applog.Error(nil, "cart.local.encode", err, map[string]any{"op": op})
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.local.SetItem(ctx, StorageKey, string(b)); err != nil {
		applog.Error(nil, "cart.local.write", err, map[string]any{"op": op})
	}
}
