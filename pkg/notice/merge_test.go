package notice

import (
	"testing"

	"github.com/google/uuid"
)

func version(id uuid.UUID, status string, minute int) OrderNotice {
	return OrderNotice{ID: id, RestaurantID: "r1", Status: status, UpdatedAt: at(minute)}
}

func byID(in []OrderNotice) map[uuid.UUID]OrderNotice {
	out := make(map[uuid.UUID]OrderNotice, len(in))
	for _, n := range in {
		out[n.ID] = n
	}
	return out
}

func TestMergeNoticesPrefersNewer(t *testing.T) {
	id := uuid.New()
	local := []OrderNotice{version(id, "WITH_KITCHEN", 2)}

	merged, changed := MergeNotices(local, []OrderNotice{version(id, "SUBMITTED_TO_SERVER", 1)})
	if changed || merged[0].Status != "WITH_KITCHEN" {
		t.Fatalf("older remote copy replaced local: %+v", merged[0])
	}

	merged, changed = MergeNotices(local, []OrderNotice{version(id, "ACKNOWLEDGED", 3)})
	if !changed || merged[0].Status != "ACKNOWLEDGED" {
		t.Fatalf("newer remote copy ignored: %+v", merged[0])
	}

	merged, changed = MergeNotices(local, []OrderNotice{version(id, "ACKNOWLEDGED", 2)})
	if changed || merged[0].Status != "WITH_KITCHEN" {
		t.Fatalf("tie did not keep local copy: %+v", merged[0])
	}
}

func TestMergeNoticesIsCommutativeAndIdempotent(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	x := []OrderNotice{version(a, "WITH_KITCHEN", 1), version(b, "ACKNOWLEDGED", 5)}
	y := []OrderNotice{version(a, "ACKNOWLEDGED", 3), version(b, "WITH_KITCHEN", 4), version(c, "SUBMITTED_TO_SERVER", 2)}

	xy, _ := MergeNotices(x, y)
	yx, _ := MergeNotices(y, x)

	left, right := byID(xy), byID(yx)
	if len(left) != 3 || len(right) != 3 {
		t.Fatalf("merged sizes %d and %d, want 3", len(left), len(right))
	}
	for id, n := range left {
		if right[id].Status != n.Status || !right[id].UpdatedAt.Equal(n.UpdatedAt) {
			t.Fatalf("merge order changed result for %s: %s vs %s", id, n.Status, right[id].Status)
		}
	}
	if left[a].Status != "ACKNOWLEDGED" || left[b].Status != "ACKNOWLEDGED" {
		t.Fatalf("newest copies not kept: %+v", left)
	}

	again, changed := MergeNotices(xy, y)
	if changed {
		t.Fatal("re-merging the same payload reported a change")
	}
	if len(again) != len(xy) {
		t.Fatalf("re-merge size %d, want %d", len(again), len(xy))
	}
}

func TestStateNewerAndStamp(t *testing.T) {
	local := State{UpdatedAt: at(5)}

	if local.Newer(State{UpdatedAt: at(5)}) {
		t.Error("equal stamp must not be newer")
	}
	if local.Newer(State{UpdatedAt: at(4)}) {
		t.Error("older stamp must not be newer")
	}
	if !local.Newer(State{UpdatedAt: at(6)}) {
		t.Error("later stamp must be newer")
	}

	local.Stamp(at(1))
	if !local.UpdatedAt.After(at(5)) {
		t.Fatalf("Stamp went backwards: %v", local.UpdatedAt)
	}
}

func TestScopeToRestaurant(t *testing.T) {
	s := State{Orders: []OrderNotice{
		{ID: uuid.New(), RestaurantID: "r1"},
		{ID: uuid.New(), RestaurantID: "r2"},
		{ID: uuid.New(), RestaurantID: "r1"},
	}}

	scoped, changed := ScopeToRestaurant(s, "r1")
	if !changed || len(scoped.Orders) != 2 {
		t.Fatalf("scoped = %d orders, changed = %v", len(scoped.Orders), changed)
	}
	if len(s.Orders) != 3 || s.Orders[1].RestaurantID != "r2" {
		t.Fatal("ScopeToRestaurant mutated its input")
	}

	_, changed = ScopeToRestaurant(scoped, "r1")
	if changed {
		t.Fatal("second scoping reported a change")
	}
}

func TestWithout(t *testing.T) {
	keep, drop := uuid.New(), uuid.New()
	s := State{Orders: []OrderNotice{{ID: keep}, {ID: drop}}}

	out, changed := Without(s, map[uuid.UUID]bool{drop: true})
	if !changed || len(out.Orders) != 1 || out.Orders[0].ID != keep {
		t.Fatalf("Without() = %+v", out.Orders)
	}

	if len(s.Orders) != 2 || s.Orders[1].ID != drop {
		t.Fatal("Without mutated its input")
	}
}
