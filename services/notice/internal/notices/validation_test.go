package notices

import (
	"testing"
	"time"

	"github.com/appetiteclub/notices/pkg/notice"
	"github.com/google/uuid"
)

var (
	testNoticeID = uuid.MustParse("550e8400-e29b-41d4-a716-446655440101")
	testTime     = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)
)

func validNotice(id uuid.UUID, restaurantID string, updatedAt time.Time) notice.OrderNotice {
	return notice.OrderNotice{
		ID:           id,
		RestaurantID: restaurantID,
		CustomerName: "Ana",
		DiningMode:   "delivery",
		Items:        []string{"Pho"},
		Allergies:    []string{"peanut"},
		Status:       "WITH_KITCHEN",
		History: []notice.HistoryEntry{
			{Actor: notice.ActorDiner, Message: "Submitted delivery notice directly to kitchen tablet.", At: updatedAt},
		},
		CreatedAt: updatedAt.Add(-time.Minute),
		UpdatedAt: updatedAt,
	}
}

func TestValidateSave(t *testing.T) {
	tests := []struct {
		name         string
		mutate       func(n *notice.OrderNotice)
		restaurantID string
		wantFields   []string
	}{
		{
			name:         "validNotice",
			mutate:       func(n *notice.OrderNotice) {},
			restaurantID: "thai-house",
		},
		{
			name:   "noRestaurantQuery",
			mutate: func(n *notice.OrderNotice) {},
		},
		{
			name:         "idMismatch",
			mutate:       func(n *notice.OrderNotice) { n.ID = uuid.New() },
			restaurantID: "thai-house",
			wantFields:   []string{"id"},
		},
		{
			name:         "foreignRestaurant",
			mutate:       func(n *notice.OrderNotice) {},
			restaurantID: "noodle-bar",
			wantFields:   []string{"restaurant_id"},
		},
		{
			name:       "missingRestaurant",
			mutate:     func(n *notice.OrderNotice) { n.RestaurantID = " " },
			wantFields: []string{"restaurant_id"},
		},
		{
			name: "unknownStatusAndMode",
			mutate: func(n *notice.OrderNotice) {
				n.Status = "COOKING"
				n.DiningMode = "drive-thru"
			},
			wantFields: []string{"status", "dining_mode"},
		},
		{
			name:       "zeroUpdatedAt",
			mutate:     func(n *notice.OrderNotice) { n.UpdatedAt = time.Time{} },
			wantFields: []string{"updated_at"},
		},
		{
			name: "historyOutOfOrder",
			mutate: func(n *notice.OrderNotice) {
				n.History = append(n.History, notice.HistoryEntry{Actor: notice.ActorKitchen, Message: "Acknowledged by Somchai.", At: testTime.Add(-time.Hour)})
			},
			wantFields: []string{"history"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := validNotice(testNoticeID, "thai-house", testTime)
			tt.mutate(&n)

			errs := ValidateSave(&n, testNoticeID, tt.restaurantID)
			if len(errs) != len(tt.wantFields) {
				t.Fatalf("ValidateSave() = %v, want fields %v", errs, tt.wantFields)
			}
			for i, field := range tt.wantFields {
				if errs[i].Field != field {
					t.Errorf("error %d field = %q, want %q", i, errs[i].Field, field)
				}
			}
		})
	}
}
