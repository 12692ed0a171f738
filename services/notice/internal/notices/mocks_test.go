package notices

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/appetiteclub/notices/pkg/notice"
	"github.com/google/uuid"
)

// MockPublisher records published messages.
type MockPublisher struct {
	mu          sync.Mutex
	Published   []PublishedMessage
	PublishFunc func(ctx context.Context, topic string, msg []byte) error
}

type PublishedMessage struct {
	Topic string
	Msg   []byte
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, msg []byte) error {
	m.mu.Lock()
	m.Published = append(m.Published, PublishedMessage{Topic: topic, Msg: msg})
	m.mu.Unlock()
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, topic, msg)
	}
	return nil
}

func (m *MockPublisher) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Published)
}

// MockNoticeRepo keeps notices in memory with the same last-writer-wins rule
// as the real stores.
type MockNoticeRepo struct {
	mu               sync.RWMutex
	notices          map[uuid.UUID]notice.OrderNotice
	GetFunc          func(ctx context.Context, id uuid.UUID) (*notice.OrderNotice, error)
	ListFunc         func(ctx context.Context, restaurantIDs []string) ([]notice.OrderNotice, error)
	SaveFunc         func(ctx context.Context, n *notice.OrderNotice) (SaveResult, error)
	DeleteByUserFunc func(ctx context.Context, userID string) (int64, error)
}

func NewMockNoticeRepo() *MockNoticeRepo {
	return &MockNoticeRepo{
		notices: make(map[uuid.UUID]notice.OrderNotice),
	}
}

func (m *MockNoticeRepo) Get(ctx context.Context, id uuid.UUID) (*notice.OrderNotice, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.notices[id]
	if !ok {
		return nil, fmt.Errorf("notice %s: %w", id, notice.ErrNotFound)
	}
	return &n, nil
}

func (m *MockNoticeRepo) List(ctx context.Context, restaurantIDs []string) ([]notice.OrderNotice, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, restaurantIDs)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	wanted := make(map[string]bool, len(restaurantIDs))
	for _, id := range restaurantIDs {
		wanted[id] = true
	}
	var result []notice.OrderNotice
	for _, n := range m.notices {
		if wanted[n.RestaurantID] {
			result = append(result, n)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UpdatedAt.After(result[j].UpdatedAt) })
	return result, nil
}

func (m *MockNoticeRepo) Save(ctx context.Context, n *notice.OrderNotice) (SaveResult, error) {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, n)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.notices[n.ID]
	if !ok {
		m.notices[n.ID] = *n
		return SaveResult{Applied: true, Current: *n}, nil
	}
	previous := stored
	if stored.UpdatedAt.After(n.UpdatedAt) {
		return SaveResult{Previous: &previous, Current: stored}, nil
	}
	m.notices[n.ID] = *n
	return SaveResult{Applied: true, Previous: &previous, Current: *n}, nil
}

func (m *MockNoticeRepo) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	if m.DeleteByUserFunc != nil {
		return m.DeleteByUserFunc(ctx, userID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for id, n := range m.notices {
		if n.UserID == userID {
			delete(m.notices, id)
			count++
		}
	}
	return count, nil
}
