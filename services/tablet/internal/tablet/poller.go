package tablet

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/notices/pkg/notice"
)

const (
	DefaultPollInterval = 15 * time.Second
	pollerSubscriberID  = "status-poller"
)

// StatusPoller reconciles the local aggregate with the notice service while
// the diner has a notice in progress. It owns at most one ticker at a time.
type StatusPoller struct {
	gateway  RemoteNoticeGateway
	store    *LocalNoticeStore
	notifier *UpdateNotifier
	interval time.Duration
	logger   apt.Logger

	mu          sync.Mutex
	cancelTimer context.CancelFunc
	cancelWatch context.CancelFunc
	wg          sync.WaitGroup
	loops       int32
	stopped     bool
}

func NewStatusPoller(gateway RemoteNoticeGateway, store *LocalNoticeStore, notifier *UpdateNotifier, interval time.Duration, logger apt.Logger) *StatusPoller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &StatusPoller{
		gateway:  gateway,
		store:    store,
		notifier: notifier,
		interval: interval,
		logger:   logger,
	}
}

// Start scopes the store to its restaurant, fetches once and then keeps the
// ticker in step with whether anything is active.
func (p *StatusPoller) Start(ctx context.Context) error {
	p.mu.Lock()
	p.stopped = false
	p.mu.Unlock()

	if _, err := p.store.ScopeToRestaurant(ctx); err != nil {
		p.logger.Error("cannot scope notices to restaurant", "error", err)
	}

	p.watch()

	if err := p.Poll(ctx); err != nil {
		p.logger.Error("initial notice fetch failed", "error", err)
	}
	return nil
}

// Stop cancels the ticker and the store watch and waits for both to exit.
func (p *StatusPoller) Stop(ctx context.Context) error {
	p.mu.Lock()
	p.stopped = true
	if p.cancelTimer != nil {
		p.cancelTimer()
		p.cancelTimer = nil
	}
	if p.cancelWatch != nil {
		p.cancelWatch()
		p.cancelWatch = nil
	}
	p.mu.Unlock()

	p.store.Unsubscribe(pollerSubscriberID)
	p.wg.Wait()
	return nil
}

// Poll fetches the restaurant's notices once and merges them. A failed fetch
// is returned after the ticker is re-evaluated against local state.
func (p *StatusPoller) Poll(ctx context.Context) error {
	notices, err := p.gateway.Fetch(ctx, []string{p.store.RestaurantID()})
	if err != nil {
		p.evaluate(p.store.Snapshot())
		return err
	}

	st, changed, err := p.store.MergeRemote(ctx, notices)
	if err != nil {
		p.evaluate(p.store.Snapshot())
		return err
	}
	if changed {
		p.logger.Debug("merged remote notices", "count", len(notices))
	}
	p.observe(st)
	p.evaluate(st)
	return nil
}

// Restart replaces any running ticker with a fresh one.
func (p *StatusPoller) Restart() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.startTimerLocked()
}

func (p *StatusPoller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancelTimer != nil
}

func (p *StatusPoller) observe(st notice.State) {
	if p.notifier == nil {
		return
	}
	p.notifier.Observe(SidebarVisible(st.Orders, p.store.RestaurantID(), p.store.Dismissals().Set()))
}

func (p *StatusPoller) evaluate(st notice.State) {
	active := HasActive(st, p.store.RestaurantID(), p.store.Dismissals().Set())

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}

	switch {
	case active && p.cancelTimer == nil:
		p.startTimerLocked()
	case !active && p.cancelTimer != nil:
		p.cancelTimer()
		p.cancelTimer = nil
		p.logger.Debug("no active notices, polling paused")
	}
}

func (p *StatusPoller) startTimerLocked() {
	if p.cancelTimer != nil {
		p.cancelTimer()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancelTimer = cancel

	p.wg.Add(1)
	go p.loop(ctx)
	p.logger.Debug("polling notices", "interval", p.interval.String())
}

func (p *StatusPoller) loop(ctx context.Context) {
	defer p.wg.Done()
	atomic.AddInt32(&p.loops, 1)
	defer atomic.AddInt32(&p.loops, -1)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Poll(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("notice poll failed", "error", err)
			}
		}
	}
}

// watch follows local commits and broadcasts from other surfaces so a notice
// that becomes active between polls restarts the ticker.
func (p *StatusPoller) watch() {
	p.mu.Lock()
	if p.cancelWatch != nil || p.stopped {
		p.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancelWatch = cancel
	p.mu.Unlock()

	ch := p.store.Subscribe(pollerSubscriberID)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case st, ok := <-ch:
				if !ok {
					return
				}
				p.observe(st)
				p.evaluate(st)
			}
		}
	}()
}

func (p *StatusPoller) liveLoops() int32 {
	return atomic.LoadInt32(&p.loops)
}
