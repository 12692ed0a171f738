package tablet

import (
	"sort"

	"github.com/appetiteclub/notices/pkg/enums/noticestatus"
	"github.com/appetiteclub/notices/pkg/notice"
	"github.com/google/uuid"
)

var statuses = noticestatus.Statuses

// Dashboard is what the diner's sidebar shows for one restaurant.
type Dashboard struct {
	Visible    []notice.OrderNotice `json:"visible"`
	Active     []notice.OrderNotice `json:"active"`
	Current    *notice.OrderNotice  `json:"current,omitempty"`
	BadgeCount int                  `json:"badge_count"`
}

// SidebarVisible returns the notices the diner can see, newest activity first.
// Drafts and coded notices stay on the order form; dismissed notices and
// notices of other restaurants are hidden.
func SidebarVisible(orders []notice.OrderNotice, restaurantID string, dismissed map[uuid.UUID]bool) []notice.OrderNotice {
	visible := make([]notice.OrderNotice, 0, len(orders))
	for _, n := range orders {
		if n.RestaurantID != restaurantID || dismissed[n.ID] {
			continue
		}
		if n.Status == statuses.Draft.Code() || n.Status == statuses.CodeAssigned.Code() {
			continue
		}
		visible = append(visible, n.Clone())
	}

	sort.SliceStable(visible, func(i, j int) bool {
		return visible[i].LastActivity().After(visible[j].LastActivity())
	})
	return visible
}

// ActiveForBadge drops closed notices from a visible list.
func ActiveForBadge(visible []notice.OrderNotice) []notice.OrderNotice {
	active := make([]notice.OrderNotice, 0, len(visible))
	for _, n := range visible {
		if !n.IsTerminal() {
			active = append(active, n)
		}
	}
	return active
}

// CurrentNotice picks the notice the sidebar opens on: the most recent active
// one, or the most recent visible one when nothing is active.
func CurrentNotice(visible []notice.OrderNotice) *notice.OrderNotice {
	var best *notice.OrderNotice
	for i := range visible {
		n := &visible[i]
		if n.IsTerminal() {
			continue
		}
		if best == nil || n.LastActivity().After(best.LastActivity()) {
			best = n
		}
	}
	if best == nil {
		for i := range visible {
			n := &visible[i]
			if best == nil || n.LastActivity().After(best.LastActivity()) {
				best = n
			}
		}
	}
	if best == nil {
		return nil
	}
	out := best.Clone()
	return &out
}

// Clearable reports whether the diner may dismiss the notice from the sidebar.
func Clearable(n notice.OrderNotice) bool {
	switch n.Status {
	case statuses.Acknowledged.Code(),
		statuses.QuestionAnswered.Code(),
		statuses.RejectedByServer.Code(),
		statuses.RejectedByKitchen.Code(),
		statuses.RescindedByDiner.Code():
		return true
	}
	return false
}

func BuildDashboard(s notice.State, restaurantID string, dismissed map[uuid.UUID]bool) Dashboard {
	visible := SidebarVisible(s.Orders, restaurantID, dismissed)
	active := ActiveForBadge(visible)
	return Dashboard{
		Visible:    visible,
		Active:     active,
		Current:    CurrentNotice(visible),
		BadgeCount: len(active),
	}
}

// HasActive reports whether any visible notice is still in progress.
func HasActive(s notice.State, restaurantID string, dismissed map[uuid.UUID]bool) bool {
	return len(ActiveForBadge(SidebarVisible(s.Orders, restaurantID, dismissed))) > 0
}
