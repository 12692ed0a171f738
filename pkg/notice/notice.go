package notice

import (
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/notices/pkg/enums/noticestatus"
	"github.com/google/uuid"
)

type Actor string

const (
	ActorDiner   Actor = "Diner"
	ActorServer  Actor = "Server"
	ActorKitchen Actor = "Kitchen"
	ActorSystem  Actor = "System"
)

// External reports whether entries by this actor should be surfaced to the diner.
func (a Actor) External() bool {
	return a == ActorServer || a == ActorKitchen || a == ActorSystem
}

const (
	ResponseYes = "yes"
	ResponseNo  = "no"
)

const DefaultServerID = "0000"

type HistoryEntry struct {
	Actor   Actor     `json:"actor" bson:"actor"`
	Message string    `json:"message" bson:"message"`
	At      time.Time `json:"at" bson:"at"`
}

type KitchenMessage struct {
	Text string    `json:"text" bson:"text"`
	At   time.Time `json:"at" bson:"at"`
}

// KitchenQuestion is a yes/no question from the kitchen. An empty Response
// means the diner has not answered yet.
type KitchenQuestion struct {
	Text     string    `json:"text" bson:"text"`
	Response string    `json:"response,omitempty" bson:"response,omitempty"`
	AskedAt  time.Time `json:"asked_at" bson:"asked_at"`
}

func (q *KitchenQuestion) Answered() bool {
	return q != nil && q.Response != ""
}

// OrderNotice is one diner's allergy/diet notice as it moves between the
// diner, server and kitchen surfaces.
type OrderNotice struct {
	ID              uuid.UUID        `json:"id" bson:"_id"`
	RestaurantID    string           `json:"restaurant_id" bson:"restaurant_id"`
	UserID          string           `json:"user_id,omitempty" bson:"user_id,omitempty"`
	CustomerName    string           `json:"customer_name" bson:"customer_name"`
	DiningMode      string           `json:"dining_mode" bson:"dining_mode"`
	TableNumber     string           `json:"table_number" bson:"table_number"`
	ServerID        string           `json:"server_id" bson:"server_id"`
	ServerName      string           `json:"server_name,omitempty" bson:"server_name,omitempty"`
	ServerCode      string           `json:"server_code" bson:"server_code"`
	DeliveryAddress string           `json:"delivery_address,omitempty" bson:"delivery_address,omitempty"`
	Items           []string         `json:"items" bson:"items"`
	Allergies       []string         `json:"allergies" bson:"allergies"`
	Diets           []string         `json:"diets" bson:"diets"`
	CustomNotes     string           `json:"custom_notes,omitempty" bson:"custom_notes,omitempty"`
	Status          string           `json:"status" bson:"status"`
	History         []HistoryEntry   `json:"history" bson:"history"`
	KitchenMessages []KitchenMessage `json:"kitchen_messages" bson:"kitchen_messages"`
	KitchenQuestion *KitchenQuestion `json:"kitchen_question,omitempty" bson:"kitchen_question,omitempty"`
	CreatedAt       time.Time        `json:"created_at" bson:"created_at"`
	SubmittedAt     *time.Time       `json:"submitted_at,omitempty" bson:"submitted_at,omitempty"`
	UpdatedAt       time.Time        `json:"updated_at" bson:"updated_at"`
	RescindedAt     *time.Time       `json:"rescinded_at,omitempty" bson:"rescinded_at,omitempty"`
}

func (n *OrderNotice) GetID() uuid.UUID {
	return n.ID
}

func (n *OrderNotice) ResourceType() string {
	return "notice"
}

func (n *OrderNotice) EnsureID() {
	if n.ID == uuid.Nil {
		n.ID = apt.GenerateNewID()
	}
}

func (n *OrderNotice) StatusValue() noticestatus.Status {
	if s := noticestatus.ByName(n.Status); s != nil {
		return *s
	}
	return noticestatus.Statuses.Draft
}

func (n *OrderNotice) IsTerminal() bool {
	return n.StatusValue().IsTerminal()
}

// LastActivity is the most recent of the update, submission and creation times.
func (n *OrderNotice) LastActivity() time.Time {
	latest := n.CreatedAt
	if n.SubmittedAt != nil && n.SubmittedAt.After(latest) {
		latest = *n.SubmittedAt
	}
	if n.UpdatedAt.After(latest) {
		latest = n.UpdatedAt
	}
	return latest
}

// LatestExternal returns the newest history entry not authored by the diner.
func (n *OrderNotice) LatestExternal() *HistoryEntry {
	for i := len(n.History) - 1; i >= 0; i-- {
		if n.History[i].Actor != ActorDiner {
			entry := n.History[i]
			return &entry
		}
	}
	return nil
}

func (n *OrderNotice) HasItem(dish string) bool {
	for _, item := range n.Items {
		if item == dish {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (n OrderNotice) Clone() OrderNotice {
	out := n
	out.Items = cloneStrings(n.Items)
	out.Allergies = cloneStrings(n.Allergies)
	out.Diets = cloneStrings(n.Diets)
	if n.History != nil {
		out.History = append([]HistoryEntry(nil), n.History...)
	}
	if n.KitchenMessages != nil {
		out.KitchenMessages = append([]KitchenMessage(nil), n.KitchenMessages...)
	}
	if n.KitchenQuestion != nil {
		q := *n.KitchenQuestion
		out.KitchenQuestion = &q
	}
	if n.SubmittedAt != nil {
		t := *n.SubmittedAt
		out.SubmittedAt = &t
	}
	if n.RescindedAt != nil {
		t := *n.RescindedAt
		out.RescindedAt = &t
	}
	return out
}

func (n *OrderNotice) appendHistory(actor Actor, message string, at time.Time) {
	n.History = append(n.History, HistoryEntry{Actor: actor, Message: message, At: at})
}

type Chef struct {
	ID   string `json:"id" bson:"id"`
	Name string `json:"name" bson:"name"`
}

// State is the whole aggregate shared by every surface of a session.
// UpdatedAt is its version stamp.
type State struct {
	Orders         []OrderNotice `json:"orders"`
	Chefs          []Chef        `json:"chefs"`
	LastServerCode string        `json:"last_server_code"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Clone returns a deep copy.
func (s State) Clone() State {
	out := State{
		LastServerCode: s.LastServerCode,
		UpdatedAt:      s.UpdatedAt,
	}
	if s.Orders != nil {
		out.Orders = make([]OrderNotice, len(s.Orders))
		for i := range s.Orders {
			out.Orders[i] = s.Orders[i].Clone()
		}
	}
	if s.Chefs != nil {
		out.Chefs = append([]Chef(nil), s.Chefs...)
	}
	return out
}

// Find returns a copy of the notice with the given id.
func (s State) Find(id uuid.UUID) (OrderNotice, bool) {
	i := s.index(id)
	if i < 0 {
		return OrderNotice{}, false
	}
	return s.Orders[i].Clone(), true
}

func (s State) index(id uuid.UUID) int {
	for i := range s.Orders {
		if s.Orders[i].ID == id {
			return i
		}
	}
	return -1
}

func (s State) chef(id string) (Chef, bool) {
	for _, c := range s.Chefs {
		if c.ID == id {
			return c, true
		}
	}
	return Chef{}, false
}

// Stamp bumps the version so it is strictly newer than the previous stamp.
func (s *State) Stamp(now time.Time) {
	now = now.UTC().Truncate(Precision)
	if !now.After(s.UpdatedAt) {
		now = s.UpdatedAt.Add(Precision)
	}
	s.UpdatedAt = now
}

// Newer reports whether other should replace s.
func (s State) Newer(other State) bool {
	return other.UpdatedAt.After(s.UpdatedAt)
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}
