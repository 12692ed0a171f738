package tablet

import (
	"context"
	"testing"

	"github.com/appetiteclub/notices/services/tablet/internal/kv"
	"github.com/google/uuid"
)

func TestDismissalRegistryKeepsNewest(t *testing.T) {
	ctx := context.Background()
	backing := kv.NewMemoryStore()
	reg := NewDismissalRegistry(backing, "dismissed")

	ids := make([]uuid.UUID, MaxDismissed+1)
	for i := range ids {
		ids[i] = uuid.New()
		if err := reg.Dismiss(ctx, ids[i]); err != nil {
			t.Fatalf("Dismiss() error = %v", err)
		}
	}

	if reg.Contains(ids[0]) {
		t.Error("oldest dismissal was not evicted")
	}
	got := reg.IDs()
	if len(got) != MaxDismissed {
		t.Fatalf("len(IDs()) = %d, want %d", len(got), MaxDismissed)
	}
	if got[0] != ids[1] || got[len(got)-1] != ids[len(ids)-1] {
		t.Error("dismissals are not in first-in-first-out order")
	}

	reloaded := NewDismissalRegistry(backing, "dismissed")
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reloaded.Contains(ids[len(ids)-1]) || reloaded.Contains(ids[0]) {
		t.Error("reloaded registry differs from the persisted one")
	}
}

func TestDismissalRegistryRedismissMovesToNewest(t *testing.T) {
	ctx := context.Background()
	reg := NewDismissalRegistry(kv.NewMemoryStore(), "dismissed")

	a, b := uuid.New(), uuid.New()
	_ = reg.Dismiss(ctx, a)
	_ = reg.Dismiss(ctx, b)
	_ = reg.Dismiss(ctx, a)

	got := reg.IDs()
	if len(got) != 2 || got[0] != b || got[1] != a {
		t.Fatalf("IDs() = %v, want [%s %s]", got, b, a)
	}
}

func TestDismissalRegistryLoadTrimsOversizedList(t *testing.T) {
	ctx := context.Background()
	backing := kv.NewMemoryStore()

	var raw []byte
	raw = append(raw, '[')
	var last uuid.UUID
	for i := 0; i < MaxDismissed+5; i++ {
		if i > 0 {
			raw = append(raw, ',')
		}
		last = uuid.New()
		raw = append(raw, '"')
		raw = append(raw, last.String()...)
		raw = append(raw, '"')
	}
	raw = append(raw, ']')
	_ = backing.Put(ctx, "dismissed", raw)

	reg := NewDismissalRegistry(backing, "dismissed")
	if err := reg.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := reg.IDs(); len(got) != MaxDismissed || got[len(got)-1] != last {
		t.Fatalf("Load() kept %d ids", len(got))
	}
}
