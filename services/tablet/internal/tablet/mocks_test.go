package tablet

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/appetiteclub/apt/events"
	"github.com/appetiteclub/notices/pkg/notice"
	"github.com/appetiteclub/notices/services/tablet/internal/kv"
	"github.com/google/uuid"
)

// MockGateway is an in-memory notice service.
type MockGateway struct {
	mu      sync.Mutex
	notices map[uuid.UUID]notice.OrderNotice
	fetches int32
	saves   int32

	SaveFunc  func(ctx context.Context, n notice.OrderNotice, restaurantID string) error
	FetchFunc func(ctx context.Context, restaurantIDs []string) ([]notice.OrderNotice, error)
}

func NewMockGateway() *MockGateway {
	return &MockGateway{notices: make(map[uuid.UUID]notice.OrderNotice)}
}

func (m *MockGateway) Save(ctx context.Context, n notice.OrderNotice, restaurantID string) error {
	atomic.AddInt32(&m.saves, 1)
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, n, restaurantID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.notices[n.ID]; ok && existing.UpdatedAt.After(n.UpdatedAt) {
		return nil
	}
	m.notices[n.ID] = n.Clone()
	return nil
}

func (m *MockGateway) Fetch(ctx context.Context, restaurantIDs []string) ([]notice.OrderNotice, error) {
	atomic.AddInt32(&m.fetches, 1)
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, restaurantIDs)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	want := make(map[string]bool, len(restaurantIDs))
	for _, id := range restaurantIDs {
		want[id] = true
	}
	var out []notice.OrderNotice
	for _, n := range m.notices {
		if want[n.RestaurantID] {
			out = append(out, n.Clone())
		}
	}
	return out, nil
}

// Put stores a notice as if another device had saved it.
func (m *MockGateway) Put(n notice.OrderNotice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notices[n.ID] = n.Clone()
}

func (m *MockGateway) Get(id uuid.UUID) (notice.OrderNotice, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notices[id]
	return n, ok
}

func (m *MockGateway) Fetches() int32 {
	return atomic.LoadInt32(&m.fetches)
}

func (m *MockGateway) Saves() int32 {
	return atomic.LoadInt32(&m.saves)
}

// MockBus delivers published messages to subscribers synchronously.
type MockBus struct {
	mu       sync.Mutex
	handlers map[string][]events.HandlerFunc
	Messages map[string][][]byte

	PublishFunc func(ctx context.Context, topic string, msg []byte) error
}

func NewMockBus() *MockBus {
	return &MockBus{
		handlers: make(map[string][]events.HandlerFunc),
		Messages: make(map[string][][]byte),
	}
}

func (b *MockBus) Publish(ctx context.Context, topic string, msg []byte) error {
	if b.PublishFunc != nil {
		return b.PublishFunc(ctx, topic, msg)
	}
	b.mu.Lock()
	b.Messages[topic] = append(b.Messages[topic], msg)
	handlers := append([]events.HandlerFunc(nil), b.handlers[topic]...)
	b.mu.Unlock()

	for _, h := range handlers {
		_ = h(ctx, msg)
	}
	return nil
}

func (b *MockBus) Subscribe(ctx context.Context, topic string, handler events.HandlerFunc) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], handler)
	return nil
}

// MockStream replays a fixed set of messages.
type MockStream struct {
	Messages []events.StreamMessage
}

func (s *MockStream) Fetch(ctx context.Context, limit int) ([]events.StreamMessage, error) {
	return s.Messages, nil
}

func (s *MockStream) SubscribeStream(ctx context.Context, handler events.HandlerFunc) error {
	return nil
}

// testClock is a manually advanced clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

const testRestaurant = "thai-house"

func newTestStore(store kv.Store, clock *testClock) *LocalNoticeStore {
	if store == nil {
		store = kv.NewMemoryStore()
	}
	return NewLocalNoticeStore(StoreConfig{
		RestaurantID: testRestaurant,
		SessionID:    "s1",
		KV:           store,
		Now:          clock.Now,
	})
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
