package tablet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/notices/pkg/notice"
	"github.com/appetiteclub/notices/services/tablet/internal/kv"
	"github.com/google/uuid"
)

// Broadcaster delivers a committed aggregate to the other surfaces of the
// same session.
type Broadcaster interface {
	Broadcast(ctx context.Context, s notice.State) error
}

type StoreConfig struct {
	RestaurantID string
	SessionID    string
	KV           kv.Store
	Broadcaster  Broadcaster
	Now          func() time.Time
	Logger       apt.Logger
}

// LocalNoticeStore holds the session aggregate, persists every change to the
// device store and fans committed states out to subscribers. Callers always
// receive deep copies.
type LocalNoticeStore struct {
	mu           sync.Mutex
	state        notice.State
	kv           kv.Store
	keys         Keys
	restaurantID string
	dismissals   *DismissalRegistry
	forceOpen    *ForceOpen
	broadcaster  Broadcaster
	now          func() time.Time
	logger       apt.Logger

	subMu       sync.RWMutex
	subscribers map[string]chan notice.State
}

func NewLocalNoticeStore(cfg StoreConfig) *LocalNoticeStore {
	logger := cfg.Logger
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	store := cfg.KV
	if store == nil {
		store = kv.NewMemoryStore()
	}
	keys := NewKeys(cfg.RestaurantID, cfg.SessionID)

	return &LocalNoticeStore{
		kv:           store,
		keys:         keys,
		restaurantID: cfg.RestaurantID,
		dismissals:   NewDismissalRegistry(store, keys.Dismissed),
		forceOpen:    NewForceOpen(store, keys.ForceOpen, now),
		broadcaster:  cfg.Broadcaster,
		now:          now,
		logger:       logger.With("store", keys.Namespace()),
		subscribers:  make(map[string]chan notice.State),
	}
}

func (s *LocalNoticeStore) RestaurantID() string {
	return s.restaurantID
}

func (s *LocalNoticeStore) Dismissals() *DismissalRegistry {
	return s.dismissals
}

func (s *LocalNoticeStore) ForceOpen() *ForceOpen {
	return s.forceOpen
}

// SetBroadcaster wires the cross-surface bridge once it is connected.
func (s *LocalNoticeStore) SetBroadcaster(b Broadcaster) {
	s.mu.Lock()
	s.broadcaster = b
	s.mu.Unlock()
}

// Load reads the persisted aggregate and dismissals. A missing or unreadable
// aggregate starts the session empty.
func (s *LocalNoticeStore) Load(ctx context.Context) error {
	if err := s.dismissals.Load(ctx); err != nil {
		return err
	}

	data, ok, err := s.kv.Get(ctx, s.keys.State)
	if err != nil {
		return fmt.Errorf("cannot load notice state: %w", err)
	}

	var loaded notice.State
	if ok {
		loaded, err = decodeState(data)
		if err != nil {
			s.logger.Error("discarding unreadable notice state", "error", err)
			loaded = notice.State{}
		}
	}

	loaded, _ = notice.Without(loaded, s.dismissals.Set())

	s.mu.Lock()
	s.state = loaded
	s.mu.Unlock()

	s.notify(loaded)
	return nil
}

// Snapshot returns a copy of the current aggregate.
func (s *LocalNoticeStore) Snapshot() notice.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Update runs a transition against the current aggregate and commits the
// result. When fn fails nothing is written and the current state is returned.
func (s *LocalNoticeStore) Update(ctx context.Context, fn func(notice.State) (notice.State, error)) (notice.State, error) {
	s.mu.Lock()
	next, err := fn(s.state.Clone())
	if err != nil {
		current := s.state.Clone()
		s.mu.Unlock()
		return current, err
	}

	committed, err := s.commitLocked(ctx, next)
	s.mu.Unlock()
	if err != nil {
		return s.Snapshot(), err
	}

	s.publish(ctx, committed)
	return committed.Clone(), nil
}

// MergeRemote folds fetched notices into the aggregate. Dismissed notices and
// notices of other restaurants are ignored.
func (s *LocalNoticeStore) MergeRemote(ctx context.Context, incoming []notice.OrderNotice) (notice.State, bool, error) {
	dismissed := s.dismissals.Set()
	filtered := make([]notice.OrderNotice, 0, len(incoming))
	for _, n := range incoming {
		if dismissed[n.ID] || n.RestaurantID != s.restaurantID {
			continue
		}
		filtered = append(filtered, n)
	}

	s.mu.Lock()
	merged, changed := notice.Merge(s.state, filtered)
	if !changed {
		current := s.state.Clone()
		s.mu.Unlock()
		return current, false, nil
	}

	committed, err := s.commitLocked(ctx, merged)
	s.mu.Unlock()
	if err != nil {
		return s.Snapshot(), false, err
	}

	s.publish(ctx, committed)
	return committed.Clone(), true, nil
}

// ScopeToRestaurant drops notices left over from other restaurants.
func (s *LocalNoticeStore) ScopeToRestaurant(ctx context.Context) (bool, error) {
	s.mu.Lock()
	scoped, changed := notice.ScopeToRestaurant(s.state, s.restaurantID)
	if !changed {
		s.mu.Unlock()
		return false, nil
	}

	committed, err := s.commitLocked(ctx, scoped)
	s.mu.Unlock()
	if err != nil {
		return false, err
	}

	s.publish(ctx, committed)
	return true, nil
}

// Dismiss clears a notice from the diner's sidebar for good.
func (s *LocalNoticeStore) Dismiss(ctx context.Context, id uuid.UUID) error {
	if err := s.dismissals.Dismiss(ctx, id); err != nil {
		return err
	}
	_, err := s.Update(ctx, func(st notice.State) (notice.State, error) {
		out, _ := notice.Without(st, map[uuid.UUID]bool{id: true})
		return out, nil
	})
	return err
}

// ApplyBroadcast adopts an aggregate written by another surface if it is
// strictly newer than the local one.
func (s *LocalNoticeStore) ApplyBroadcast(ctx context.Context, incoming notice.State) (bool, error) {
	s.mu.Lock()
	if !s.state.Newer(incoming) {
		s.mu.Unlock()
		return false, nil
	}

	adopted, _ := notice.Without(incoming, s.dismissals.Set())
	adopted, _ = notice.ScopeToRestaurant(adopted, s.restaurantID)
	adopted.UpdatedAt = incoming.UpdatedAt

	err := s.kv.Update(ctx, s.keys.State, func(current []byte, ok bool) ([]byte, error) {
		if ok {
			if stored, err := decodeState(current); err == nil && !stored.UpdatedAt.Before(adopted.UpdatedAt) {
				return nil, nil
			}
		}
		return encodeState(adopted)
	})
	if err != nil {
		s.mu.Unlock()
		return false, fmt.Errorf("cannot persist broadcast state: %w", err)
	}

	s.state = adopted
	s.mu.Unlock()

	s.notify(adopted)
	return true, nil
}

// commitLocked stamps next, writes it and makes it current. If another
// surface stored an aggregate this one has not seen, the two are merged by
// notice so neither write is lost. Callers hold s.mu.
func (s *LocalNoticeStore) commitLocked(ctx context.Context, next notice.State) (notice.State, error) {
	base := s.state.UpdatedAt
	next.UpdatedAt = base
	next.Stamp(s.now())

	err := s.kv.Update(ctx, s.keys.State, func(current []byte, ok bool) ([]byte, error) {
		if ok {
			stored, err := decodeState(current)
			if err == nil && stored.UpdatedAt.After(base) {
				merged, _ := notice.Merge(stored, next.Orders)
				merged.Chefs = next.Chefs
				merged.LastServerCode = next.LastServerCode
				merged.Stamp(next.UpdatedAt)
				next = merged
			}
		}
		return encodeState(next)
	})
	if err != nil {
		return notice.State{}, fmt.Errorf("cannot persist notice state: %w", err)
	}

	next, _ = notice.Without(next, s.dismissals.Set())
	s.state = next
	return next, nil
}

func (s *LocalNoticeStore) publish(ctx context.Context, committed notice.State) {
	s.mu.Lock()
	b := s.broadcaster
	s.mu.Unlock()

	if b != nil {
		if err := b.Broadcast(ctx, committed.Clone()); err != nil {
			s.logger.Error("cannot broadcast notice state", "error", err)
		}
	}
	s.notify(committed)
}

func (s *LocalNoticeStore) notify(st notice.State) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()

	for id, ch := range s.subscribers {
		select {
		case ch <- st.Clone():
		default:
			s.logger.Debug("subscriber channel full, dropping state", "subscriber_id", id)
		}
	}
}

// Subscribe returns a channel receiving every committed or adopted aggregate.
func (s *LocalNoticeStore) Subscribe(subscriberID string) <-chan notice.State {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if ch, ok := s.subscribers[subscriberID]; ok {
		return ch
	}
	ch := make(chan notice.State, 16)
	s.subscribers[subscriberID] = ch
	return ch
}

func (s *LocalNoticeStore) Unsubscribe(subscriberID string) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if ch, ok := s.subscribers[subscriberID]; ok {
		close(ch)
		delete(s.subscribers, subscriberID)
	}
}
