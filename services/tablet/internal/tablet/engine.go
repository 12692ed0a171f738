package tablet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/notices/pkg/enums/diningmode"
	"github.com/appetiteclub/notices/pkg/notice"
	"github.com/google/uuid"
)

var (
	ErrNotClearable   = errors.New("notice cannot be cleared yet")
	ErrBannerNotFound = errors.New("banner not found")
)

type transition func(s notice.State, now time.Time) (notice.State, error)

// Outcome is the result of an action. Synced is false when the local commit
// succeeded but the notice service did not take the write.
type Outcome struct {
	Notice notice.OrderNotice `json:"notice"`
	Synced bool               `json:"synced"`
}

// DashboardView is everything the diner's surface renders.
type DashboardView struct {
	Dashboard
	Sidebar SidebarView `json:"sidebar"`
	Banners []Banner    `json:"banners"`
}

type EngineDeps struct {
	Store         *LocalNoticeStore
	Gateway       RemoteNoticeGateway
	Notifier      *UpdateNotifier
	Sidebar       *Sidebar
	Compatibility notice.CompatibilityFunc
	Now           func() time.Time
}

// Engine runs diner, server and kitchen actions against the session store
// and pushes the resulting notices to the notice service.
type Engine struct {
	store    *LocalNoticeStore
	gateway  RemoteNoticeGateway
	notifier *UpdateNotifier
	sidebar  *Sidebar
	compat   notice.CompatibilityFunc
	now      func() time.Time
	logger   apt.Logger
}

func NewEngine(deps EngineDeps, logger apt.Logger) *Engine {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = NewUpdateNotifier(DefaultBannerTTL, now, logger)
	}
	sidebar := deps.Sidebar
	if sidebar == nil {
		sidebar = NewSidebar(deps.Store.ForceOpen())
	}
	return &Engine{
		store:    deps.Store,
		gateway:  deps.Gateway,
		notifier: notifier,
		sidebar:  sidebar,
		compat:   deps.Compatibility,
		now:      now,
		logger:   logger,
	}
}

// CreateNotice turns a draft into a notice: dine-in notices get their server
// code, delivery and pickup notices go straight to the kitchen.
func (e *Engine) CreateNotice(ctx context.Context, d notice.Draft, serverCode string) (Outcome, error) {
	if d.RestaurantID == "" {
		d.RestaurantID = e.store.RestaurantID()
	}
	if d.RestaurantID != e.store.RestaurantID() {
		return Outcome{}, &notice.ValidationError{Messages: []string{"notice belongs to another restaurant"}}
	}

	items := d.Items
	d.Items = nil
	draft, err := notice.NewDraft(d, e.now())
	if err != nil {
		return Outcome{}, err
	}
	if errs := notice.ValidateDraft(notice.Draft{RestaurantID: d.RestaurantID, DiningMode: d.DiningMode, Items: items}); len(errs) > 0 {
		return Outcome{}, &notice.ValidationError{Messages: errs}
	}
	for _, item := range items {
		draft, err = notice.AddDish(draft, item, e.compat, e.now())
		if err != nil {
			return Outcome{}, err
		}
	}

	var fn transition
	if draft.DiningMode == diningmode.Modes.DineIn.Code() {
		fn = func(s notice.State, now time.Time) (notice.State, error) {
			return notice.RequestServerCode(s, draft, serverCode, now)
		}
	} else {
		fn = func(s notice.State, now time.Time) (notice.State, error) {
			return notice.SubmitDirectToKitchen(s, draft, now)
		}
	}

	return e.apply(ctx, draft.ID, fn)
}

func (e *Engine) Submit(ctx context.Context, id uuid.UUID, serverCode string) (Outcome, error) {
	e.refresh(ctx)
	return e.apply(ctx, id, func(s notice.State, now time.Time) (notice.State, error) {
		return notice.SubmitToServer(s, id, serverCode, now)
	})
}

// Rescind is saved remotely before it is committed, so a failed save leaves
// the diner's view unchanged.
func (e *Engine) Rescind(ctx context.Context, id uuid.UUID) (Outcome, error) {
	return e.applyRemoteFirst(ctx, id, func(s notice.State, now time.Time) (notice.State, error) {
		return notice.Rescind(s, id, now)
	})
}

func (e *Engine) Answer(ctx context.Context, id uuid.UUID, response string) (Outcome, error) {
	return e.applyRemoteFirst(ctx, id, func(s notice.State, now time.Time) (notice.State, error) {
		return notice.UserRespondToQuestion(s, id, response, now)
	})
}

// Clear dismisses a finished notice from the diner's sidebar.
func (e *Engine) Clear(ctx context.Context, id uuid.UUID) error {
	n, ok := e.store.Snapshot().Find(id)
	if !ok {
		return fmt.Errorf("%w: %s", notice.ErrNotFound, id)
	}
	if !Clearable(n) {
		return fmt.Errorf("%w: %s", ErrNotClearable, n.Status)
	}
	return e.store.Dismiss(ctx, id)
}

// Sync pushes the local copy of a notice to the notice service again.
func (e *Engine) Sync(ctx context.Context, id uuid.UUID) (Outcome, error) {
	n, ok := e.store.Snapshot().Find(id)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s", notice.ErrNotFound, id)
	}
	if err := e.gateway.Save(ctx, n, e.store.RestaurantID()); err != nil {
		return Outcome{Notice: e.adoptStored(ctx, id, n, err)}, err
	}
	return Outcome{Notice: n, Synced: true}, nil
}

func (e *Engine) Dashboard(ctx context.Context) (DashboardView, error) {
	dash := BuildDashboard(e.store.Snapshot(), e.store.RestaurantID(), e.store.Dismissals().Set())
	view, err := e.sidebar.Sync(ctx, dash)
	if err != nil {
		e.logger.Error("cannot sync sidebar", "error", err)
	}
	return DashboardView{
		Dashboard: dash,
		Sidebar:   view,
		Banners:   e.notifier.Active(),
	}, nil
}

func (e *Engine) ToggleSidebar(open bool) SidebarView {
	return e.sidebar.Toggle(open)
}

func (e *Engine) DismissBanner(id uuid.UUID) error {
	if !e.notifier.Dismiss(id) {
		return ErrBannerNotFound
	}
	return nil
}

// OpenBanner removes the banner and opens the sidebar on its notice.
func (e *Engine) OpenBanner(ctx context.Context, id uuid.UUID) (Banner, error) {
	banner, ok := e.notifier.Open(id)
	if !ok {
		return Banner{}, ErrBannerNotFound
	}
	if err := e.sidebar.OpenAt(ctx, banner.NoticeID); err != nil {
		return banner, err
	}
	return banner, nil
}

// ServerQueue lists the notices waiting on a server.
func (e *Engine) ServerQueue(ctx context.Context) []notice.OrderNotice {
	e.refresh(ctx)
	return e.queue(statuses.SubmittedToServer.Code(), statuses.QueuedForKitchen.Code())
}

func (e *Engine) ServerApprove(ctx context.Context, id uuid.UUID) (Outcome, error) {
	e.refresh(ctx)
	return e.apply(ctx, id, func(s notice.State, now time.Time) (notice.State, error) {
		return notice.ServerApprove(s, id, now)
	})
}

func (e *Engine) ServerDispatch(ctx context.Context, id uuid.UUID) (Outcome, error) {
	e.refresh(ctx)
	return e.apply(ctx, id, func(s notice.State, now time.Time) (notice.State, error) {
		return notice.ServerDispatchToKitchen(s, id, now)
	})
}

func (e *Engine) ServerHold(ctx context.Context, id uuid.UUID) (Outcome, error) {
	e.refresh(ctx)
	return e.apply(ctx, id, func(s notice.State, now time.Time) (notice.State, error) {
		return notice.ServerHold(s, id, now)
	})
}

func (e *Engine) ServerReject(ctx context.Context, id uuid.UUID, reason string) (Outcome, error) {
	e.refresh(ctx)
	return e.apply(ctx, id, func(s notice.State, now time.Time) (notice.State, error) {
		return notice.ServerReject(s, id, reason, now)
	})
}

// KitchenQueue lists the notices the kitchen is handling.
func (e *Engine) KitchenQueue(ctx context.Context) []notice.OrderNotice {
	e.refresh(ctx)
	return e.queue(
		statuses.WithKitchen.Code(),
		statuses.Acknowledged.Code(),
		statuses.AwaitingUserResponse.Code(),
		statuses.QuestionAnswered.Code(),
	)
}

func (e *Engine) KitchenAcknowledge(ctx context.Context, id uuid.UUID, chefID string) (Outcome, error) {
	e.refresh(ctx)
	return e.apply(ctx, id, func(s notice.State, now time.Time) (notice.State, error) {
		return notice.KitchenAcknowledge(s, id, chefID, now)
	})
}

func (e *Engine) KitchenMessage(ctx context.Context, id uuid.UUID, text string) (Outcome, error) {
	e.refresh(ctx)
	return e.apply(ctx, id, func(s notice.State, now time.Time) (notice.State, error) {
		return notice.KitchenSendMessage(s, id, text, now)
	})
}

func (e *Engine) KitchenQuestion(ctx context.Context, id uuid.UUID, text string) (Outcome, error) {
	e.refresh(ctx)
	return e.apply(ctx, id, func(s notice.State, now time.Time) (notice.State, error) {
		return notice.KitchenAskQuestion(s, id, text, now)
	})
}

func (e *Engine) KitchenReject(ctx context.Context, id uuid.UUID, reason string) (Outcome, error) {
	e.refresh(ctx)
	return e.apply(ctx, id, func(s notice.State, now time.Time) (notice.State, error) {
		return notice.KitchenReject(s, id, reason, now)
	})
}

func (e *Engine) Chefs() []notice.Chef {
	return e.store.Snapshot().Chefs
}

func (e *Engine) SetChefs(ctx context.Context, chefs []notice.Chef) ([]notice.Chef, error) {
	var msgs []string
	seen := make(map[string]bool, len(chefs))
	for _, c := range chefs {
		if c.ID == "" || c.Name == "" {
			msgs = append(msgs, "every chef needs an id and a name")
			continue
		}
		if seen[c.ID] {
			msgs = append(msgs, "duplicate chef id: "+c.ID)
		}
		seen[c.ID] = true
	}
	if len(msgs) > 0 {
		return nil, &notice.ValidationError{Messages: msgs}
	}

	st, err := e.store.Update(ctx, func(s notice.State) (notice.State, error) {
		s.Chefs = append([]notice.Chef(nil), chefs...)
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return st.Chefs, nil
}

func (e *Engine) queue(codes ...string) []notice.OrderNotice {
	want := make(map[string]bool, len(codes))
	for _, c := range codes {
		want[c] = true
	}

	out := []notice.OrderNotice{}
	for _, n := range e.store.Snapshot().Orders {
		if n.RestaurantID == e.store.RestaurantID() && want[n.Status] {
			out = append(out, n)
		}
	}
	return out
}

// refresh pulls the latest notices before an action on an existing notice so
// it runs against what other devices wrote. Failures fall back to the local
// copy.
func (e *Engine) refresh(ctx context.Context) {
	notices, err := e.gateway.Fetch(ctx, []string{e.store.RestaurantID()})
	if err != nil {
		e.logger.Error("cannot refresh notices", "error", err)
		return
	}
	if _, _, err := e.store.MergeRemote(ctx, notices); err != nil {
		e.logger.Error("cannot merge refreshed notices", "error", err)
	}
}

// apply commits locally, then saves. A failed save is logged and reported
// through Outcome.Synced.
func (e *Engine) apply(ctx context.Context, id uuid.UUID, fn transition) (Outcome, error) {
	st, err := e.store.Update(ctx, func(s notice.State) (notice.State, error) {
		return fn(s, e.now())
	})
	if err != nil {
		return Outcome{}, err
	}

	n, ok := st.Find(id)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s", notice.ErrNotFound, id)
	}

	if err := e.gateway.Save(ctx, n, e.store.RestaurantID()); err != nil {
		e.logger.Error("cannot save notice", "notice_id", id.String(), "error", err)
		return Outcome{Notice: e.adoptStored(ctx, id, n, err)}, nil
	}
	return Outcome{Notice: n, Synced: true}, nil
}

// adoptStored merges the notice service's copy when it rejected a write as
// stale and returns the notice as the session now holds it.
func (e *Engine) adoptStored(ctx context.Context, id uuid.UUID, sent notice.OrderNotice, err error) notice.OrderNotice {
	var superseded *SupersededError
	if !errors.As(err, &superseded) {
		return sent
	}
	st, _, mergeErr := e.store.MergeRemote(ctx, []notice.OrderNotice{superseded.Current})
	if mergeErr != nil {
		e.logger.Error("cannot merge stored notice", "notice_id", id.String(), "error", mergeErr)
		return sent
	}
	if n, ok := st.Find(id); ok {
		return n
	}
	return sent
}

func (e *Engine) applyRemoteFirst(ctx context.Context, id uuid.UUID, fn transition) (Outcome, error) {
	e.refresh(ctx)
	current := e.store.Snapshot()
	before, ok := current.Find(id)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s", notice.ErrNotFound, id)
	}

	next, err := fn(current, e.now())
	if err != nil {
		return Outcome{Notice: before}, err
	}
	n, _ := next.Find(id)
	if n.UpdatedAt.Equal(before.UpdatedAt) {
		return Outcome{Notice: before, Synced: true}, nil
	}

	if err := e.gateway.Save(ctx, n, e.store.RestaurantID()); err != nil {
		e.logger.Error("cannot save notice, keeping local state", "notice_id", id.String(), "error", err)
		return Outcome{Notice: e.adoptStored(ctx, id, before, err)}, err
	}

	st, err := e.store.Update(ctx, func(s notice.State) (notice.State, error) {
		merged, _ := notice.Merge(s, []notice.OrderNotice{n})
		return merged, nil
	})
	if err != nil {
		return Outcome{Notice: n, Synced: true}, err
	}
	committed, _ := st.Find(id)
	return Outcome{Notice: committed, Synced: true}, nil
}
