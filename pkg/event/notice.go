package event

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/appetiteclub/notices/pkg/notice"
)

const (
	NoticesTopic        = "notices.records"
	EventNoticeSaved    = "notice.saved"
	EventSurfaceState   = "notice.surface.state"
	surfaceSubjectRoot  = "notices.surface"
	surfaceStreamPrefix = "NOTICE_SURFACE"
)

type NoticeSavedEvent struct {
	EventType      string    `json:"event_type"`
	OccurredAt     time.Time `json:"occurred_at"`
	NoticeID       string    `json:"notice_id"`
	RestaurantID   string    `json:"restaurant_id"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	DiningMode     string    `json:"dining_mode"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func NewNoticeSavedEvent(n notice.OrderNotice, previousStatus string) NoticeSavedEvent {
	return NoticeSavedEvent{
		EventType:      EventNoticeSaved,
		OccurredAt:     time.Now().UTC(),
		NoticeID:       n.ID.String(),
		RestaurantID:   n.RestaurantID,
		Status:         n.Status,
		PreviousStatus: previousStatus,
		DiningMode:     n.DiningMode,
		UpdatedAt:      n.UpdatedAt,
	}
}

// NoticeKey extracts the notice id from an encoded notice.saved event so
// brokers can partition by notice.
func NoticeKey(msg []byte) string {
	var ev struct {
		NoticeID string `json:"notice_id"`
	}
	if err := json.Unmarshal(msg, &ev); err != nil {
		return ""
	}
	return ev.NoticeID
}

// SurfaceStateEvent carries the whole aggregate between the surfaces of one
// device session. Origin identifies the surface that wrote it.
type SurfaceStateEvent struct {
	EventType  string       `json:"event_type"`
	OccurredAt time.Time    `json:"occurred_at"`
	Origin     string       `json:"origin"`
	State      notice.State `json:"state"`
}

// SurfaceSubject is the subject shared by all surfaces of a restaurant session.
func SurfaceSubject(restaurantID, sessionID string) string {
	return surfaceSubjectRoot + "." + subjectToken(restaurantID) + "." + subjectToken(sessionID)
}

// SurfaceStreamName is the JetStream stream retaining a session's broadcasts.
func SurfaceStreamName(restaurantID, sessionID string) string {
	return strings.ToUpper(surfaceStreamPrefix + "_" + subjectToken(restaurantID) + "_" + subjectToken(sessionID))
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "default"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		}
		return '_'
	}, s)
}
