package tablet

import (
	"testing"
	"time"

	"github.com/appetiteclub/notices/pkg/notice"
	"github.com/google/uuid"
)

func padThaiSubmitted(t *testing.T, clock *testClock) (notice.State, uuid.UUID) {
	t.Helper()
	d := testDraft(t, "dine-in", "Pad Thai")
	s, err := notice.RequestServerCode(notice.State{}, d, "A7K2T12", clock.Now())
	if err != nil {
		t.Fatalf("RequestServerCode() error = %v", err)
	}
	clock.Advance(time.Second)
	s, err = notice.SubmitToServer(s, d.ID, "", clock.Now())
	if err != nil {
		t.Fatalf("SubmitToServer() error = %v", err)
	}
	return s, d.ID
}

func TestNotifierPrimesWithoutBanners(t *testing.T) {
	clock := newTestClock()
	s, _ := padThaiSubmitted(t, clock)

	u := NewUpdateNotifier(0, clock.Now, nil)
	if got := u.Observe(s.Orders); len(got) != 0 {
		t.Fatalf("first observation raised %d banners", len(got))
	}
	if got := u.Observe(s.Orders); len(got) != 0 {
		t.Fatalf("unchanged observation raised %d banners", len(got))
	}
}

func TestNotifierBannerPerExternalChange(t *testing.T) {
	clock := newTestClock()
	s, id := padThaiSubmitted(t, clock)

	u := NewUpdateNotifier(0, clock.Now, nil)
	u.Observe(s.Orders)

	clock.Advance(time.Second)
	s, _ = notice.ServerApprove(s, id, clock.Now())
	clock.Advance(time.Second)
	s, _ = notice.KitchenAcknowledge(s, id, "Somchai", clock.Now())

	got := u.Observe(s.Orders)
	if len(got) != 1 {
		t.Fatalf("Observe() raised %d banners, want 1", len(got))
	}
	b := got[0]
	if b.NoticeID != id || b.Actor != notice.ActorKitchen || b.Status != statuses.Acknowledged.Code() {
		t.Fatalf("banner = %+v", b)
	}
	if b.Message != "Acknowledged by Somchai." {
		t.Errorf("banner message = %q", b.Message)
	}
	if len(b.Dishes) != 1 || b.Dishes[0] != "Pad Thai" {
		t.Errorf("banner dishes = %v", b.Dishes)
	}

	// The same change observed again raises nothing.
	if again := u.Observe(s.Orders); len(again) != 0 {
		t.Fatalf("repeat observation raised %d banners", len(again))
	}
	if active := u.Active(); len(active) != 1 {
		t.Fatalf("Active() = %d banners, want 1", len(active))
	}
}

func TestNotifierIgnoresDinerChanges(t *testing.T) {
	clock := newTestClock()
	s, id := padThaiSubmitted(t, clock)

	u := NewUpdateNotifier(0, clock.Now, nil)
	u.Observe(s.Orders)

	clock.Advance(time.Second)
	s, err := notice.Rescind(s, id, clock.Now())
	if err != nil {
		t.Fatalf("Rescind() error = %v", err)
	}
	if got := u.Observe(s.Orders); len(got) != 0 {
		t.Fatalf("diner rescind raised %d banners", len(got))
	}
}

func TestNotifierExpiryDismissAndOpen(t *testing.T) {
	clock := newTestClock()
	s, id := padThaiSubmitted(t, clock)

	u := NewUpdateNotifier(DefaultBannerTTL, clock.Now, nil)
	u.Observe(s.Orders)

	clock.Advance(time.Second)
	s, _ = notice.ServerApprove(s, id, clock.Now())
	first := u.Observe(s.Orders)[0]

	clock.Advance(time.Second)
	s, _ = notice.KitchenAcknowledge(s, id, "Somchai", clock.Now())
	second := u.Observe(s.Orders)[0]

	if !u.Dismiss(first.ID) {
		t.Fatal("Dismiss() = false for an active banner")
	}
	if u.Dismiss(first.ID) {
		t.Fatal("Dismiss() = true for a removed banner")
	}

	opened, ok := u.Open(second.ID)
	if !ok || opened.NoticeID != id {
		t.Fatalf("Open() = %+v, %v", opened, ok)
	}

	clock.Advance(time.Second)
	s, _ = notice.KitchenAskQuestion(s, id, "Is a little fish sauce okay?", clock.Now())
	if got := u.Observe(s.Orders); len(got) != 1 {
		t.Fatalf("question raised %d banners, want 1", len(got))
	}
	clock.Advance(DefaultBannerTTL)
	if active := u.Active(); len(active) != 0 {
		t.Fatalf("expired banners still active: %d", len(active))
	}
}

func TestNotifierPrunesMissingNotices(t *testing.T) {
	clock := newTestClock()
	s, id := padThaiSubmitted(t, clock)

	u := NewUpdateNotifier(0, clock.Now, nil)
	u.Observe(s.Orders)
	if _, ok := u.Snapshot(id); !ok {
		t.Fatal("snapshot missing after observation")
	}

	u.Observe(nil)
	if _, ok := u.Snapshot(id); ok {
		t.Fatal("snapshot kept for a notice that disappeared")
	}

	// Seen again it is primed, not announced.
	clock.Advance(time.Second)
	s, _ = notice.ServerApprove(s, id, clock.Now())
	if got := u.Observe(s.Orders); len(got) != 0 {
		t.Fatalf("re-primed notice raised %d banners", len(got))
	}
}

func TestNotifierOutOfOrderObservations(t *testing.T) {
	clock := newTestClock()
	s0, id := padThaiSubmitted(t, clock)

	clock.Advance(time.Second)
	s1, _ := notice.ServerApprove(s0, id, clock.Now())
	clock.Advance(time.Second)
	s2, _ := notice.KitchenAcknowledge(s1, id, "Somchai", clock.Now())
	ackAt := s2.Orders[0].UpdatedAt

	u := NewUpdateNotifier(0, clock.Now, nil)
	u.Observe(s0.Orders)

	if got := u.Observe(s2.Orders); len(got) != 1 {
		t.Fatalf("Observe(acknowledged) raised %d banners, want 1", len(got))
	}
	if got := u.Observe(s1.Orders); len(got) != 0 {
		t.Fatalf("late older copy raised %d banners", len(got))
	}
	if snap, _ := u.Snapshot(id); !snap.ExternalAt.Equal(ackAt) || snap.Status != statuses.Acknowledged.Code() {
		t.Fatalf("snapshot moved backwards: %+v", snap)
	}
	if got := u.Observe(s2.Orders); len(got) != 0 {
		t.Fatalf("re-observed acknowledgement raised %d banners", len(got))
	}
	if active := u.Active(); len(active) != 1 {
		t.Fatalf("Active() = %d banners, want 1", len(active))
	}
}
