package tablet

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/appetiteclub/apt/events"
	"github.com/appetiteclub/notices/pkg/event"
	"github.com/appetiteclub/notices/pkg/notice"
	"github.com/google/uuid"
)

func bridgedStore(t *testing.T, bus *MockBus, clock *testClock, origin string) *LocalNoticeStore {
	t.Helper()
	store := newTestStore(nil, clock)
	bridge := NewSurfaceBridge(BridgeDeps{Store: store, Publisher: bus, Subscriber: bus}, testRestaurant, "s1", origin, nil)
	if err := bridge.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	store.SetBroadcaster(bridge)
	return store
}

func surfaceMessage(t *testing.T, origin string, s notice.State) []byte {
	t.Helper()
	data, err := json.Marshal(event.SurfaceStateEvent{
		EventType:  event.EventSurfaceState,
		OccurredAt: time.Now().UTC(),
		Origin:     origin,
		State:      s,
	})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return data
}

func TestBridgeCarriesCommitsBetweenSurfaces(t *testing.T) {
	clock := newTestClock()
	bus := NewMockBus()
	diner := bridgedStore(t, bus, clock, "diner")
	kitchen := bridgedStore(t, bus, clock, "kitchen")

	n := addDirect(t, diner, clock, "Pho")

	got, ok := kitchen.Snapshot().Find(n.ID)
	if !ok {
		t.Fatal("kitchen surface did not receive the diner's commit")
	}
	if got.Status != statuses.WithKitchen.Code() {
		t.Errorf("kitchen copy status = %s", got.Status)
	}
	if !kitchen.Snapshot().UpdatedAt.Equal(diner.Snapshot().UpdatedAt) {
		t.Error("kitchen adopted a different aggregate stamp")
	}

	subject := event.SurfaceSubject(testRestaurant, "s1")
	if len(bus.Messages[subject]) != 1 {
		t.Fatalf("published %d messages, want 1", len(bus.Messages[subject]))
	}
}

func TestBridgeIgnoresOwnOriginAndBadMessages(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	store := newTestStore(nil, clock)
	bridge := NewSurfaceBridge(BridgeDeps{Store: store}, testRestaurant, "s1", "diner", nil)

	n := activeNotice(uuid.New(), clock.Now())
	st := notice.State{Orders: []notice.OrderNotice{n}, UpdatedAt: clock.Now()}

	if err := bridge.handle(ctx, surfaceMessage(t, "diner", st)); err != nil {
		t.Fatalf("handle(own origin) error = %v", err)
	}
	if len(store.Snapshot().Orders) != 0 {
		t.Fatal("own broadcast was applied")
	}

	bad := st.Clone()
	bad.Orders[0].Status = "COOKING"
	if err := bridge.handle(ctx, surfaceMessage(t, "kitchen", bad)); err == nil {
		t.Fatal("handle() accepted an unknown status")
	}
	if err := bridge.handle(ctx, []byte("{")); err == nil {
		t.Fatal("handle() accepted malformed JSON")
	}

	if err := bridge.handle(ctx, surfaceMessage(t, "kitchen", st)); err != nil {
		t.Fatalf("handle() error = %v", err)
	}
	if _, ok := store.Snapshot().Find(n.ID); !ok {
		t.Fatal("broadcast from another surface not applied")
	}
}

func TestBridgeReplaysNewestState(t *testing.T) {
	clock := newTestClock()
	store := newTestStore(nil, clock)

	older := notice.State{Orders: []notice.OrderNotice{activeNotice(uuid.New(), clock.Now())}, UpdatedAt: clock.Now()}
	newer := notice.State{
		Orders:    []notice.OrderNotice{activeNotice(uuid.New(), clock.Now()), activeNotice(uuid.New(), clock.Now())},
		UpdatedAt: clock.Now().Add(time.Minute),
	}

	stream := &MockStream{Messages: []events.StreamMessage{
		{Data: surfaceMessage(t, "kitchen", newer), Sequence: 1},
		{Data: []byte("garbage"), Sequence: 2},
		{Data: surfaceMessage(t, "kitchen", older), Sequence: 3},
	}}
	bridge := NewSurfaceBridge(BridgeDeps{Store: store, Stream: stream}, testRestaurant, "s1", "diner", nil)

	if err := bridge.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	got := store.Snapshot()
	if len(got.Orders) != 2 || !got.UpdatedAt.Equal(newer.UpdatedAt) {
		t.Fatalf("replay adopted %d orders at %v", len(got.Orders), got.UpdatedAt)
	}
}
