package tablet

import (
	"sync"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/notices/pkg/enums/noticestatus"
	"github.com/appetiteclub/notices/pkg/notice"
	"github.com/google/uuid"
)

const DefaultBannerTTL = 8 * time.Second

// NoticeSnapshot is the last state the notifier saw for a notice.
type NoticeSnapshot struct {
	Status         string
	ExternalAt     time.Time
	LatestExternal *notice.HistoryEntry
}

// Banner is a transient alert about something a server, the kitchen or the
// system did to one of the diner's notices.
type Banner struct {
	ID        uuid.UUID    `json:"id"`
	NoticeID  uuid.UUID    `json:"notice_id"`
	Dishes    []string     `json:"dishes"`
	Actor     notice.Actor `json:"actor"`
	Status    string       `json:"status"`
	Message   string       `json:"message"`
	At        time.Time    `json:"at"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// UpdateNotifier turns observed notice changes into banners. The first time a
// notice is seen it is only recorded, so a reload never replays old alerts.
type UpdateNotifier struct {
	mu        sync.Mutex
	snapshots map[uuid.UUID]NoticeSnapshot
	banners   []Banner
	ttl       time.Duration
	now       func() time.Time
	logger    apt.Logger
}

func NewUpdateNotifier(ttl time.Duration, now func() time.Time, logger apt.Logger) *UpdateNotifier {
	if ttl <= 0 {
		ttl = DefaultBannerTTL
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &UpdateNotifier{
		snapshots: make(map[uuid.UUID]NoticeSnapshot),
		ttl:       ttl,
		now:       now,
		logger:    logger,
	}
}

// Observe diffs notices against the cached snapshots and returns the banners
// it raised. A banner is raised only for an external entry newer than the
// cached one. Snapshots of notices missing from the list are dropped.
func (u *UpdateNotifier) Observe(notices []notice.OrderNotice) []Banner {
	u.mu.Lock()
	defer u.mu.Unlock()

	now := u.now()
	seen := make(map[uuid.UUID]bool, len(notices))
	var raised []Banner

	for _, n := range notices {
		seen[n.ID] = true
		latest := n.LatestExternal()

		snap := NoticeSnapshot{Status: n.Status, LatestExternal: latest}
		if latest != nil {
			snap.ExternalAt = latest.At
		}

		prev, known := u.snapshots[n.ID]
		if known && snap.ExternalAt.Before(prev.ExternalAt) {
			// An older copy arrived late; keep the newer snapshot.
			continue
		}
		u.snapshots[n.ID] = snap
		if !known {
			continue
		}
		if latest == nil || !latest.Actor.External() || !latest.At.After(prev.ExternalAt) {
			continue
		}

		banner := Banner{
			ID:        apt.GenerateNewID(),
			NoticeID:  n.ID,
			Dishes:    append([]string(nil), n.Items...),
			Actor:     latest.Actor,
			Status:    n.Status,
			Message:   bannerMessage(n, *latest),
			At:        latest.At,
			ExpiresAt: now.Add(u.ttl),
		}
		raised = append(raised, banner)
		u.logger.Debug("raised notice banner", "notice_id", n.ID.String(), "actor", string(latest.Actor))
	}

	for id := range u.snapshots {
		if !seen[id] {
			delete(u.snapshots, id)
		}
	}

	u.expireLocked(now)
	u.banners = append(u.banners, raised...)
	return raised
}

// Active returns the banners that have not expired or been dismissed.
func (u *UpdateNotifier) Active() []Banner {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.expireLocked(u.now())
	return append([]Banner(nil), u.banners...)
}

// Dismiss removes a banner, as when the diner swipes it away.
func (u *UpdateNotifier) Dismiss(id uuid.UUID) bool {
	_, ok := u.take(id)
	return ok
}

// Open removes a banner and returns it so the caller can show its notice.
func (u *UpdateNotifier) Open(id uuid.UUID) (Banner, bool) {
	return u.take(id)
}

func (u *UpdateNotifier) Snapshot(id uuid.UUID) (NoticeSnapshot, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	snap, ok := u.snapshots[id]
	return snap, ok
}

func (u *UpdateNotifier) take(id uuid.UUID) (Banner, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.expireLocked(u.now())
	for i, b := range u.banners {
		if b.ID == id {
			u.banners = append(u.banners[:i], u.banners[i+1:]...)
			return b, true
		}
	}
	return Banner{}, false
}

func (u *UpdateNotifier) expireLocked(now time.Time) {
	kept := u.banners[:0]
	for _, b := range u.banners {
		if now.Before(b.ExpiresAt) {
			kept = append(kept, b)
		}
	}
	u.banners = kept
}

func bannerMessage(n notice.OrderNotice, entry notice.HistoryEntry) string {
	if entry.Message != "" {
		return entry.Message
	}
	if d, ok := noticestatus.Display(n.Status); ok && d.Message != "" {
		return d.Message
	}
	return n.StatusValue().Label()
}
