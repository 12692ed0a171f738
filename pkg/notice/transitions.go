package notice

import (
	"fmt"
	"strings"
	"time"

	"github.com/appetiteclub/notices/pkg/enums/diningmode"
	"github.com/appetiteclub/notices/pkg/enums/noticestatus"
	"github.com/google/uuid"
)

var st = noticestatus.Statuses

// legal lists the non-terminal moves. Terminal statuses are reachable from
// any non-terminal status and are checked separately.
var legal = map[noticestatus.Status][]noticestatus.Status{
	st.Draft:                {st.CodeAssigned, st.WithKitchen},
	st.CodeAssigned:         {st.SubmittedToServer},
	st.SubmittedToServer:    {st.QueuedForKitchen, st.WithKitchen},
	st.QueuedForKitchen:     {st.WithKitchen},
	st.WithKitchen:          {st.Acknowledged},
	st.Acknowledged:         {st.AwaitingUserResponse},
	st.AwaitingUserResponse: {st.AwaitingUserResponse, st.QuestionAnswered},
	st.QuestionAnswered:     {st.AwaitingUserResponse},
}

// CanTransition reports whether a notice in from may move to to.
func CanTransition(from, to noticestatus.Status) bool {
	if from.IsTerminal() {
		return false
	}
	if to.IsTerminal() {
		return true
	}
	for _, allowed := range legal[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func move(n *OrderNotice, to noticestatus.Status) error {
	from := n.StatusValue()
	if from.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrNoticeClosed, from.Code())
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s to %s", ErrIllegalTransition, from.Code(), to.Code())
	}
	n.Status = to.Code()
	return nil
}

// Precision is the resolution of every notice timestamp. Document stores keep
// milliseconds, so coarser stamps survive a round trip unchanged.
const Precision = time.Millisecond

// next returns a timestamp strictly after prev.
func next(prev, now time.Time) time.Time {
	now = now.UTC().Truncate(Precision)
	if now.After(prev) {
		return now
	}
	return prev.Add(Precision)
}

// mutate applies fn to a copy of the notice. On error the original state is
// returned untouched.
func mutate(s State, id uuid.UUID, now time.Time, fn func(n *OrderNotice, at time.Time) error) (State, error) {
	i := s.index(id)
	if i < 0 {
		return s, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	out := s.Clone()
	n := &out.Orders[i]
	at := next(n.UpdatedAt, now)
	if err := fn(n, at); err != nil {
		return s, err
	}
	n.UpdatedAt = at
	return out, nil
}

// RequestServerCode attaches a server code to a dine-in draft and adds it to
// the aggregate.
func RequestServerCode(s State, draft OrderNotice, code string, now time.Time) (State, error) {
	if draft.DiningMode != diningmode.Modes.DineIn.Code() {
		return s, fmt.Errorf("%w: server codes are only used for dine-in", ErrWrongDiningMode)
	}
	if s.index(draft.ID) >= 0 {
		return s, fmt.Errorf("%w: notice %s already submitted", ErrIllegalTransition, draft.ID)
	}

	n := draft.Clone()
	at := next(n.UpdatedAt, now)
	if err := move(&n, st.CodeAssigned); err != nil {
		return s, err
	}

	code = strings.TrimSpace(code)
	n.ServerCode = code
	n.ServerID, n.TableNumber = ParseServerCode(code)
	n.UpdatedAt = at
	n.appendHistory(ActorDiner, fmt.Sprintf("Added server code %s.", codeOrDefault(code)), at)

	out := s.Clone()
	out.Orders = append(out.Orders, n)
	out.LastServerCode = code
	return out, nil
}

// SubmitDirectToKitchen sends a delivery or pickup draft straight to the kitchen.
func SubmitDirectToKitchen(s State, draft OrderNotice, now time.Time) (State, error) {
	mode := diningmode.ByName(draft.DiningMode)
	if mode == nil || !mode.Direct() {
		return s, fmt.Errorf("%w: dine-in notices go through a server", ErrWrongDiningMode)
	}
	if len(draft.Items) == 0 {
		return s, invalid("add at least one dish before sending")
	}
	if s.index(draft.ID) >= 0 {
		return s, fmt.Errorf("%w: notice %s already submitted", ErrIllegalTransition, draft.ID)
	}

	n := draft.Clone()
	at := next(n.UpdatedAt, now)
	if err := move(&n, st.WithKitchen); err != nil {
		return s, err
	}
	n.SubmittedAt = &at
	n.UpdatedAt = at
	n.appendHistory(ActorDiner, fmt.Sprintf("Submitted %s notice directly to kitchen tablet.", mode.Code()), at)

	out := s.Clone()
	out.Orders = append(out.Orders, n)
	return out, nil
}

// SubmitToServer hands a coded dine-in notice to the server. A non-empty code
// replaces the one given earlier.
func SubmitToServer(s State, id uuid.UUID, code string, now time.Time) (State, error) {
	return mutate(s, id, now, func(n *OrderNotice, at time.Time) error {
		if n.DiningMode != diningmode.Modes.DineIn.Code() {
			return fmt.Errorf("%w: only dine-in notices go to a server", ErrWrongDiningMode)
		}
		if len(n.Items) == 0 {
			return invalid("add at least one dish before sending")
		}
		if err := move(n, st.SubmittedToServer); err != nil {
			return err
		}
		if code = strings.TrimSpace(code); code != "" {
			n.ServerCode = code
			n.ServerID, n.TableNumber = ParseServerCode(code)
		}
		n.SubmittedAt = &at
		n.appendHistory(ActorDiner, fmt.Sprintf("Sent notice to server %s.", n.ServerID), at)
		return nil
	})
}

func ServerApprove(s State, id uuid.UUID, now time.Time) (State, error) {
	return mutate(s, id, now, func(n *OrderNotice, at time.Time) error {
		if err := move(n, st.WithKitchen); err != nil {
			return err
		}
		n.appendHistory(ActorServer, "Server approved the notice and sent it to the kitchen.", at)
		return nil
	})
}

func ServerDispatchToKitchen(s State, id uuid.UUID, now time.Time) (State, error) {
	return mutate(s, id, now, func(n *OrderNotice, at time.Time) error {
		if err := move(n, st.WithKitchen); err != nil {
			return err
		}
		n.appendHistory(ActorServer, "Server sent the notice to the kitchen.", at)
		return nil
	})
}

// ServerHold parks a submitted notice until the server dispatches it.
func ServerHold(s State, id uuid.UUID, now time.Time) (State, error) {
	return mutate(s, id, now, func(n *OrderNotice, at time.Time) error {
		if err := move(n, st.QueuedForKitchen); err != nil {
			return err
		}
		n.appendHistory(ActorServer, "Server queued the notice for the kitchen.", at)
		return nil
	})
}

func ServerReject(s State, id uuid.UUID, reason string, now time.Time) (State, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return s, invalid("a reason is required to reject a notice")
	}
	return mutate(s, id, now, func(n *OrderNotice, at time.Time) error {
		if err := move(n, st.RejectedByServer); err != nil {
			return err
		}
		n.appendHistory(ActorServer, "Server rejected the notice: "+reason, at)
		return nil
	})
}

// KitchenAcknowledge records which chef took the notice. The chef id must be
// on the roster when a roster exists.
func KitchenAcknowledge(s State, id uuid.UUID, chefID string, now time.Time) (State, error) {
	chefID = strings.TrimSpace(chefID)
	if chefID == "" {
		return s, invalid("chef_id is required")
	}
	name := chefID
	if len(s.Chefs) > 0 {
		chef, ok := s.chef(chefID)
		if !ok {
			return s, invalid("unknown chef: " + chefID)
		}
		name = chef.Name
	}

	return mutate(s, id, now, func(n *OrderNotice, at time.Time) error {
		if err := move(n, st.Acknowledged); err != nil {
			return err
		}
		n.appendHistory(ActorKitchen, fmt.Sprintf("Acknowledged by %s.", name), at)
		return nil
	})
}

func KitchenSendMessage(s State, id uuid.UUID, text string, now time.Time) (State, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return s, invalid("message text is required")
	}
	return mutate(s, id, now, func(n *OrderNotice, at time.Time) error {
		if err := move(n, st.AwaitingUserResponse); err != nil {
			return err
		}
		n.KitchenMessages = append(n.KitchenMessages, KitchenMessage{Text: text, At: at})
		n.appendHistory(ActorKitchen, "Kitchen message: "+text, at)
		return nil
	})
}

// KitchenAskQuestion replaces any earlier question with a new unanswered one.
func KitchenAskQuestion(s State, id uuid.UUID, text string, now time.Time) (State, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return s, invalid("question text is required")
	}
	return mutate(s, id, now, func(n *OrderNotice, at time.Time) error {
		if err := move(n, st.AwaitingUserResponse); err != nil {
			return err
		}
		n.KitchenQuestion = &KitchenQuestion{Text: text, AskedAt: at}
		n.appendHistory(ActorKitchen, questionPrefix+text, at)
		return nil
	})
}

func KitchenReject(s State, id uuid.UUID, reason string, now time.Time) (State, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return s, invalid("a reason is required to reject a notice")
	}
	return mutate(s, id, now, func(n *OrderNotice, at time.Time) error {
		if err := move(n, st.RejectedByKitchen); err != nil {
			return err
		}
		n.appendHistory(ActorKitchen, "Kitchen rejected the notice: "+reason, at)
		return nil
	})
}

// UserRespondToQuestion answers the kitchen's open question. Notices from
// older tablets may only carry the question in their history, and a plain
// kitchen message is answered as if it were the question.
func UserRespondToQuestion(s State, id uuid.UUID, response string, now time.Time) (State, error) {
	response = strings.ToLower(strings.TrimSpace(response))
	if response != ResponseYes && response != ResponseNo {
		return s, invalid("response must be yes or no")
	}
	return mutate(s, id, now, func(n *OrderNotice, at time.Time) error {
		q := CurrentQuestion(*n)
		if (q == nil || q.Answered()) && len(n.KitchenMessages) > 0 {
			last := n.KitchenMessages[len(n.KitchenMessages)-1]
			if q == nil || last.At.After(q.AskedAt) {
				q = &KitchenQuestion{Text: last.Text, AskedAt: last.At}
			}
		}
		if q == nil || q.Answered() {
			return invalid("the kitchen has no open question")
		}
		if err := move(n, st.QuestionAnswered); err != nil {
			return err
		}
		q.Response = response
		n.KitchenQuestion = q
		n.appendHistory(ActorDiner, fmt.Sprintf("Answered %s to: %s", response, q.Text), at)
		return nil
	})
}

// Rescind withdraws a notice. Rescinding twice is a no-op; rescinding a
// rejected notice leaves it untouched and reports ErrNoticeClosed.
func Rescind(s State, id uuid.UUID, now time.Time) (State, error) {
	n, ok := s.Find(id)
	if !ok {
		return s, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if n.Status == st.RescindedByDiner.Code() {
		return s, nil
	}
	return mutate(s, id, now, func(n *OrderNotice, at time.Time) error {
		if err := move(n, st.RescindedByDiner); err != nil {
			return err
		}
		n.RescindedAt = &at
		n.appendHistory(ActorDiner, "Diner rescinded the notice.", at)
		return nil
	})
}

// Put replaces or appends a whole notice, used when another surface wrote it.
func Put(s State, n OrderNotice) State {
	out := s.Clone()
	if i := out.index(n.ID); i >= 0 {
		out.Orders[i] = n.Clone()
		return out
	}
	out.Orders = append(out.Orders, n.Clone())
	return out
}

func codeOrDefault(code string) string {
	if code == "" {
		return DefaultServerID
	}
	return code
}
