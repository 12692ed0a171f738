package notice

import "github.com/google/uuid"

// MergeNotices folds incoming notices into local by id. The copy with the
// newer UpdatedAt wins and ties keep the local copy, so merging is
// idempotent and the result does not depend on arrival order.
func MergeNotices(local, incoming []OrderNotice) ([]OrderNotice, bool) {
	out := make([]OrderNotice, 0, len(local)+len(incoming))
	pos := make(map[uuid.UUID]int, len(local)+len(incoming))
	for _, n := range local {
		pos[n.ID] = len(out)
		out = append(out, n.Clone())
	}

	changed := false
	for _, n := range incoming {
		i, ok := pos[n.ID]
		if !ok {
			pos[n.ID] = len(out)
			out = append(out, n.Clone())
			changed = true
			continue
		}
		if n.UpdatedAt.After(out[i].UpdatedAt) {
			out[i] = n.Clone()
			changed = true
		}
	}

	return out, changed
}

// Merge applies remote notices to the aggregate. The aggregate version is
// left alone; callers stamp it when they persist.
func Merge(s State, incoming []OrderNotice) (State, bool) {
	orders, changed := MergeNotices(s.Orders, incoming)
	if !changed {
		return s, false
	}
	out := s.Clone()
	out.Orders = orders
	return out, true
}

// ScopeToRestaurant drops notices that belong to other restaurants.
func ScopeToRestaurant(s State, restaurantID string) (State, bool) {
	out := s.Clone()
	out.Orders = out.Orders[:0]
	for _, n := range s.Orders {
		if n.RestaurantID == restaurantID {
			out.Orders = append(out.Orders, n.Clone())
		}
	}
	return out, len(out.Orders) != len(s.Orders)
}

// Without drops the given notice ids.
func Without(s State, ids map[uuid.UUID]bool) (State, bool) {
	if len(ids) == 0 {
		return s, false
	}
	out := s.Clone()
	out.Orders = out.Orders[:0]
	for _, n := range s.Orders {
		if !ids[n.ID] {
			out.Orders = append(out.Orders, n.Clone())
		}
	}
	return out, len(out.Orders) != len(s.Orders)
}
