package tablet

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/appetiteclub/notices/services/tablet/internal/kv"
	"github.com/google/uuid"
)

type forceOpenFlag struct {
	OrderID uuid.UUID `json:"order_id"`
	At      time.Time `json:"at"`
}

// ForceOpen is a one-shot request to show a notice's panel expanded the next
// time the dashboard renders it, even across a reload.
type ForceOpen struct {
	kv  kv.Store
	key string
	now func() time.Time
}

func NewForceOpen(store kv.Store, key string, now func() time.Time) *ForceOpen {
	if now == nil {
		now = time.Now
	}
	return &ForceOpen{kv: store, key: key, now: now}
}

func (f *ForceOpen) Set(ctx context.Context, id uuid.UUID) error {
	data, err := json.Marshal(forceOpenFlag{OrderID: id, At: f.now().UTC()})
	if err != nil {
		return fmt.Errorf("cannot encode force-open flag: %w", err)
	}
	if err := f.kv.Put(ctx, f.key, data); err != nil {
		return fmt.Errorf("cannot persist force-open flag: %w", err)
	}
	return nil
}

// Consume reports whether the flag targets id and clears it if so. A flag
// for another notice is left in place.
func (f *ForceOpen) Consume(ctx context.Context, id uuid.UUID) (bool, error) {
	data, ok, err := f.kv.Get(ctx, f.key)
	if err != nil {
		return false, fmt.Errorf("cannot read force-open flag: %w", err)
	}
	if !ok {
		return false, nil
	}

	var flag forceOpenFlag
	if err := json.Unmarshal(data, &flag); err != nil {
		_ = f.kv.Delete(ctx, f.key)
		return false, nil
	}
	if flag.OrderID != id {
		return false, nil
	}

	if err := f.kv.Delete(ctx, f.key); err != nil {
		return false, fmt.Errorf("cannot clear force-open flag: %w", err)
	}
	return true, nil
}
