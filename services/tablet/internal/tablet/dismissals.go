package tablet

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/appetiteclub/notices/services/tablet/internal/kv"
	"github.com/google/uuid"
)

const MaxDismissed = 25

// DismissalRegistry remembers which notices the diner cleared from the
// sidebar. Only the newest MaxDismissed ids are kept.
type DismissalRegistry struct {
	mu  sync.RWMutex
	ids []uuid.UUID
	kv  kv.Store
	key string
}

func NewDismissalRegistry(store kv.Store, key string) *DismissalRegistry {
	return &DismissalRegistry{kv: store, key: key}
}

// Load reads the persisted ids. Unreadable data is treated as an empty registry.
func (d *DismissalRegistry) Load(ctx context.Context) error {
	data, ok, err := d.kv.Get(ctx, d.key)
	if err != nil {
		return fmt.Errorf("cannot load dismissals: %w", err)
	}

	var ids []uuid.UUID
	if ok {
		if err := json.Unmarshal(data, &ids); err != nil {
			ids = nil
		}
	}

	d.mu.Lock()
	d.ids = trimDismissed(ids)
	d.mu.Unlock()
	return nil
}

// Dismiss records id as the newest dismissal, evicting the oldest past the cap.
func (d *DismissalRegistry) Dismiss(ctx context.Context, id uuid.UUID) error {
	var result []uuid.UUID
	err := d.kv.Update(ctx, d.key, func(current []byte, ok bool) ([]byte, error) {
		var ids []uuid.UUID
		if ok {
			if err := json.Unmarshal(current, &ids); err != nil {
				ids = nil
			}
		}
		ids = appendDismissed(ids, id)
		result = ids
		return json.Marshal(ids)
	})
	if err != nil {
		return fmt.Errorf("cannot persist dismissal: %w", err)
	}

	d.mu.Lock()
	d.ids = result
	d.mu.Unlock()
	return nil
}

func (d *DismissalRegistry) Contains(id uuid.UUID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, existing := range d.ids {
		if existing == id {
			return true
		}
	}
	return false
}

// IDs returns the dismissed ids, oldest first.
func (d *DismissalRegistry) IDs() []uuid.UUID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]uuid.UUID(nil), d.ids...)
}

func (d *DismissalRegistry) Set() map[uuid.UUID]bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	set := make(map[uuid.UUID]bool, len(d.ids))
	for _, id := range d.ids {
		set[id] = true
	}
	return set
}

func appendDismissed(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids)+1)
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	out = append(out, id)
	return trimDismissed(out)
}

func trimDismissed(ids []uuid.UUID) []uuid.UUID {
	if len(ids) > MaxDismissed {
		ids = ids[len(ids)-MaxDismissed:]
	}
	return ids
}
