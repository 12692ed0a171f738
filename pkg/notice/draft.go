package notice

import (
	"strings"
	"time"

	"github.com/appetiteclub/notices/pkg/enums/diningmode"
	"github.com/appetiteclub/notices/pkg/enums/noticestatus"
)

// Draft is what the diner fills in before a notice joins the aggregate.
type Draft struct {
	RestaurantID    string   `json:"restaurant_id"`
	UserID          string   `json:"user_id"`
	CustomerName    string   `json:"customer_name"`
	DiningMode      string   `json:"dining_mode"`
	DeliveryAddress string   `json:"delivery_address"`
	Items           []string `json:"items"`
	Allergies       []string `json:"allergies"`
	Diets           []string `json:"diets"`
	CustomNotes     string   `json:"custom_notes"`
}

// CompatibilityFunc reports why a dish cannot be served to a diner with the
// given allergies and diets. A nil error means the dish is fine.
type CompatibilityFunc func(dish string, allergies, diets []string) error

func ValidateDraft(d Draft) []string {
	var errors []string

	if strings.TrimSpace(d.RestaurantID) == "" {
		errors = append(errors, "restaurant_id is required")
	}

	if diningmode.ByName(d.DiningMode) == nil {
		errors = append(errors, "dining_mode must be one of dine-in, delivery or pickup")
	}

	seen := make(map[string]bool, len(d.Items))
	for _, item := range d.Items {
		name := strings.TrimSpace(item)
		if name == "" {
			errors = append(errors, "items cannot contain empty dish names")
			continue
		}
		if seen[name] {
			errors = append(errors, "duplicate dish: "+name)
		}
		seen[name] = true
	}

	return errors
}

// NewDraft builds a DRAFT notice. Allergies and diets are snapshotted so later
// profile edits do not change what the kitchen sees.
func NewDraft(d Draft, now time.Time) (OrderNotice, error) {
	if errs := ValidateDraft(d); len(errs) > 0 {
		return OrderNotice{}, invalid(errs...)
	}

	now = now.UTC().Truncate(Precision)
	items := make([]string, 0, len(d.Items))
	for _, item := range d.Items {
		items = append(items, strings.TrimSpace(item))
	}

	n := OrderNotice{
		RestaurantID:    strings.TrimSpace(d.RestaurantID),
		UserID:          d.UserID,
		CustomerName:    strings.TrimSpace(d.CustomerName),
		DiningMode:      d.DiningMode,
		DeliveryAddress: d.DeliveryAddress,
		Items:           items,
		Allergies:       cloneStrings(d.Allergies),
		Diets:           cloneStrings(d.Diets),
		CustomNotes:     d.CustomNotes,
		Status:          noticestatus.Statuses.Draft.Code(),
		History:         []HistoryEntry{},
		KitchenMessages: []KitchenMessage{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	n.EnsureID()
	return n, nil
}

// AddDish appends a dish to a draft after checking it against the diner's
// allergies and diets.
func AddDish(n OrderNotice, dish string, check CompatibilityFunc, now time.Time) (OrderNotice, error) {
	if n.Status != noticestatus.Statuses.Draft.Code() {
		return n, ErrIllegalTransition
	}

	dish = strings.TrimSpace(dish)
	if dish == "" {
		return n, invalid("dish name is required")
	}
	if n.HasItem(dish) {
		return n, nil
	}

	if check != nil {
		if err := check(dish, n.Allergies, n.Diets); err != nil {
			return n, invalid(dish + ": " + err.Error())
		}
	}

	out := n.Clone()
	out.Items = append(out.Items, dish)
	out.UpdatedAt = next(n.UpdatedAt, now)
	return out, nil
}

func RemoveDish(n OrderNotice, dish string, now time.Time) (OrderNotice, error) {
	if n.Status != noticestatus.Statuses.Draft.Code() {
		return n, ErrIllegalTransition
	}
	if !n.HasItem(dish) {
		return n, nil
	}

	out := n.Clone()
	out.Items = out.Items[:0]
	for _, item := range n.Items {
		if item != dish {
			out.Items = append(out.Items, item)
		}
	}
	out.UpdatedAt = next(n.UpdatedAt, now)
	return out, nil
}

// ParseServerCode splits a server code into the server id (first four
// characters) and the table number (the rest, possibly empty).
func ParseServerCode(code string) (serverID, tableNumber string) {
	runes := []rune(strings.TrimSpace(code))
	if len(runes) <= 4 {
		serverID = string(runes)
	} else {
		serverID = string(runes[:4])
		tableNumber = string(runes[4:])
	}
	if serverID == "" {
		serverID = DefaultServerID
	}
	return serverID, tableNumber
}
