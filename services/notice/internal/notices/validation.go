package notices

import (
	"strings"

	"github.com/appetiteclub/notices/pkg/enums/diningmode"
	"github.com/appetiteclub/notices/pkg/enums/noticestatus"
	"github.com/appetiteclub/notices/pkg/notice"
	"github.com/google/uuid"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidateSave checks a notice pushed by a tablet before it replaces the
// stored copy.
func ValidateSave(n *notice.OrderNotice, pathID uuid.UUID, restaurantID string) []ValidationError {
	var errs []ValidationError

	if n.ID != pathID {
		errs = append(errs, ValidationError{Field: "id", Message: "must match the notice id in the path"})
	}

	if strings.TrimSpace(n.RestaurantID) == "" {
		errs = append(errs, ValidationError{Field: "restaurant_id", Message: "is required"})
	} else if restaurantID != "" && n.RestaurantID != restaurantID {
		errs = append(errs, ValidationError{Field: "restaurant_id", Message: "does not match the requested restaurant"})
	}

	if noticestatus.ByName(n.Status) == nil {
		errs = append(errs, ValidationError{Field: "status", Message: "unknown status " + n.Status})
	}

	if diningmode.ByName(n.DiningMode) == nil {
		errs = append(errs, ValidationError{Field: "dining_mode", Message: "must be one of dine-in, delivery or pickup"})
	}

	if n.UpdatedAt.IsZero() {
		errs = append(errs, ValidationError{Field: "updated_at", Message: "is required"})
	}

	for i := 1; i < len(n.History); i++ {
		if n.History[i].At.Before(n.History[i-1].At) {
			errs = append(errs, ValidationError{Field: "history", Message: "entries must be in time order"})
			break
		}
	}

	return errs
}
