package tablet

import (
	"context"
	"sync"

	"github.com/appetiteclub/notices/pkg/notice"
	"github.com/google/uuid"
)

type SidebarView struct {
	NoticeID    *uuid.UUID `json:"notice_id,omitempty"`
	Open        bool       `json:"open"`
	UserToggled bool       `json:"user_toggled"`
}

// Sidebar tracks whether the dashboard panel is expanded. It minimizes
// itself whenever a different notice becomes current, unless a force-open
// flag targets that notice. A manual toggle sticks until the current notice
// changes. A focused notice, set by tapping a banner, takes precedence over
// the dashboard's current notice while it stays visible.
type Sidebar struct {
	mu          sync.Mutex
	focusID     uuid.UUID
	lastSeenID  uuid.UUID
	userToggled bool
	open        bool
	forceOpen   *ForceOpen
}

func NewSidebar(forceOpen *ForceOpen) *Sidebar {
	return &Sidebar{forceOpen: forceOpen}
}

func (s *Sidebar) Sync(ctx context.Context, dash Dashboard) (SidebarView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := dash.Current
	if s.focusID != uuid.Nil {
		if focused := findNotice(dash.Visible, s.focusID); focused != nil {
			current = focused
		} else {
			s.focusID = uuid.Nil
		}
	}

	if current == nil {
		s.lastSeenID = uuid.Nil
		s.userToggled = false
		s.open = false
		return s.viewLocked(), nil
	}

	if current.ID != s.lastSeenID {
		s.lastSeenID = current.ID
		s.userToggled = false
		s.open = false
	}

	if s.forceOpen != nil {
		forced, err := s.forceOpen.Consume(ctx, current.ID)
		if err != nil {
			return s.viewLocked(), err
		}
		if forced {
			s.open = true
		}
	}

	return s.viewLocked(), nil
}

// Toggle records a manual expand or collapse by the diner.
func (s *Sidebar) Toggle(open bool) SidebarView {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = open
	s.userToggled = true
	return s.viewLocked()
}

// OpenAt focuses the panel on id and opens it the next time it renders,
// including after a reload.
func (s *Sidebar) OpenAt(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	s.focusID = id
	s.mu.Unlock()

	if s.forceOpen == nil {
		return nil
	}
	return s.forceOpen.Set(ctx, id)
}

func (s *Sidebar) viewLocked() SidebarView {
	view := SidebarView{Open: s.open, UserToggled: s.userToggled}
	if s.lastSeenID != uuid.Nil {
		id := s.lastSeenID
		view.NoticeID = &id
	}
	return view
}

func findNotice(list []notice.OrderNotice, id uuid.UUID) *notice.OrderNotice {
	for i := range list {
		if list[i].ID == id {
			n := list[i].Clone()
			return &n
		}
	}
	return nil
}
