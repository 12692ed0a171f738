package tablet

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/appetiteclub/notices/pkg/event"
	"github.com/appetiteclub/notices/pkg/notice"
)

// SurfaceBridge carries committed aggregates between the surfaces of one
// session over the event bus. With a stream consumer it also replays the
// last broadcasts when a surface starts.
type SurfaceBridge struct {
	origin     string
	subject    string
	store      *LocalNoticeStore
	publisher  events.Publisher
	subscriber events.Subscriber
	stream     events.StreamConsumer
	logger     apt.Logger
}

type BridgeDeps struct {
	Store      *LocalNoticeStore
	Publisher  events.Publisher
	Subscriber events.Subscriber
	Stream     events.StreamConsumer
}

func NewSurfaceBridge(deps BridgeDeps, restaurantID, sessionID, origin string, logger apt.Logger) *SurfaceBridge {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &SurfaceBridge{
		origin:     origin,
		subject:    event.SurfaceSubject(restaurantID, sessionID),
		store:      deps.Store,
		publisher:  deps.Publisher,
		subscriber: deps.Subscriber,
		stream:     deps.Stream,
		logger:     logger.With("subject", event.SurfaceSubject(restaurantID, sessionID)),
	}
}

func (b *SurfaceBridge) Subject() string {
	return b.subject
}

func (b *SurfaceBridge) Broadcast(ctx context.Context, s notice.State) error {
	if b.publisher == nil {
		return nil
	}

	data, err := json.Marshal(event.SurfaceStateEvent{
		EventType:  event.EventSurfaceState,
		OccurredAt: time.Now().UTC(),
		Origin:     b.origin,
		State:      s,
	})
	if err != nil {
		return fmt.Errorf("cannot encode surface state: %w", err)
	}

	return b.publisher.Publish(ctx, b.subject, data)
}

func (b *SurfaceBridge) Start(ctx context.Context) error {
	if b.stream != nil {
		if err := b.replay(ctx); err != nil {
			b.logger.Error("cannot replay surface broadcasts", "error", err)
		}
	}

	if b.subscriber == nil {
		return nil
	}
	if err := b.subscriber.Subscribe(ctx, b.subject, b.handle); err != nil {
		return fmt.Errorf("cannot subscribe to surface broadcasts: %w", err)
	}

	b.logger.Info("surface bridge started", "origin", b.origin)
	return nil
}

func (b *SurfaceBridge) Stop(ctx context.Context) error {
	return nil
}

func (b *SurfaceBridge) replay(ctx context.Context) error {
	messages, err := b.stream.Fetch(ctx, 100)
	if err != nil {
		return err
	}

	var newest *notice.State
	for _, msg := range messages {
		evt, err := decodeSurfaceEvent(msg.Data)
		if err != nil {
			b.logger.Debug("skipping unreadable surface broadcast", "sequence", msg.Sequence, "error", err)
			continue
		}
		if newest == nil || newest.Newer(evt.State) {
			st := evt.State
			newest = &st
		}
	}

	if newest == nil {
		return nil
	}
	applied, err := b.store.ApplyBroadcast(ctx, *newest)
	if err != nil {
		return err
	}
	b.logger.Debug("replayed surface broadcasts", "messages", len(messages), "applied", applied)
	return nil
}

func (b *SurfaceBridge) handle(ctx context.Context, data []byte) error {
	evt, err := decodeSurfaceEvent(data)
	if err != nil {
		return err
	}
	if evt.Origin == b.origin {
		return nil
	}
	_, err = b.store.ApplyBroadcast(ctx, evt.State)
	return err
}

func decodeSurfaceEvent(data []byte) (event.SurfaceStateEvent, error) {
	var evt event.SurfaceStateEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return evt, fmt.Errorf("cannot decode surface state: %w", err)
	}
	if evt.EventType != event.EventSurfaceState {
		return evt, fmt.Errorf("unexpected event type %q", evt.EventType)
	}
	if err := checkStatuses(evt.State); err != nil {
		return evt, fmt.Errorf("cannot accept surface state: %w", err)
	}
	return evt, nil
}
