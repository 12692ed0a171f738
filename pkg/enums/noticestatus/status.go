package noticestatus

import (
	"strings"
)

type Status struct {
	Name string
}

func (s Status) Code() string {
	return s.Name
}

// Label returns the configured display label, or a title-cased rendering
// of the code when the display table has no entry.
func (s Status) Label() string {
	if d, ok := Display(s.Name); ok && d.Label != "" {
		return d.Label
	}
	parts := strings.Split(strings.ToLower(s.Name), "_")
	for i := range parts {
		if len(parts[i]) > 0 {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, " ")
}

func (s Status) Tone() Tone {
	if d, ok := Display(s.Name); ok {
		return d.Tone
	}
	return Tones.Idle
}

func (s Status) IsTerminal() bool {
	switch s {
	case Statuses.RejectedByServer, Statuses.RejectedByKitchen, Statuses.RescindedByDiner:
		return true
	}
	return false
}

type Enum struct {
	Draft                Status
	CodeAssigned         Status
	SubmittedToServer    Status
	QueuedForKitchen     Status
	WithKitchen          Status
	Acknowledged         Status
	AwaitingUserResponse Status
	QuestionAnswered     Status
	RejectedByServer     Status
	RejectedByKitchen    Status
	RescindedByDiner     Status
}

var Statuses = Enum{
	Draft:                Status{Name: "DRAFT"},
	CodeAssigned:         Status{Name: "CODE_ASSIGNED"},
	SubmittedToServer:    Status{Name: "SUBMITTED_TO_SERVER"},
	QueuedForKitchen:     Status{Name: "QUEUED_FOR_KITCHEN"},
	WithKitchen:          Status{Name: "WITH_KITCHEN"},
	Acknowledged:         Status{Name: "ACKNOWLEDGED"},
	AwaitingUserResponse: Status{Name: "AWAITING_USER_RESPONSE"},
	QuestionAnswered:     Status{Name: "QUESTION_ANSWERED"},
	RejectedByServer:     Status{Name: "REJECTED_BY_SERVER"},
	RejectedByKitchen:    Status{Name: "REJECTED_BY_KITCHEN"},
	RescindedByDiner:     Status{Name: "RESCINDED_BY_DINER"},
}

var All = []Status{
	Statuses.Draft,
	Statuses.CodeAssigned,
	Statuses.SubmittedToServer,
	Statuses.QueuedForKitchen,
	Statuses.WithKitchen,
	Statuses.Acknowledged,
	Statuses.AwaitingUserResponse,
	Statuses.QuestionAnswered,
	Statuses.RejectedByServer,
	Statuses.RejectedByKitchen,
	Statuses.RescindedByDiner,
}

// ByName returns the status for a given name, or nil if not found
func ByName(name string) *Status {
	for _, s := range All {
		if s.Name == name {
			return &s
		}
	}
	return nil
}
