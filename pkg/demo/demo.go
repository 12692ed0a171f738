package demo

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/appetiteclub/notices/pkg/notice"
	"github.com/google/uuid"
	"github.com/jaswdr/faker"
)

const (
	// UserID marks every notice created for demos so it can be cleared later.
	UserID = "demo-seed"

	// SeedID is the tracker id of the demo notice seed.
	SeedID = "2026-03-14_demo_notices_v1"
)

var (
	dishes    = []string{"Pad Thai", "Pho", "Green Curry", "Laksa", "Som Tam", "Massaman Curry", "Khao Soi"}
	allergies = [][]string{{"peanut"}, {"shellfish"}, {"fish", "peanut"}, {"gluten"}, {}}
	diets     = [][]string{{}, {"vegetarian"}, {}, {"vegan"}, {"halal"}}
)

// Notices walks fresh drafts through the handoff so every notice
// carries a real history. Ids are derived from the restaurant, so seeding
// twice yields the same records.
func Notices(restaurantID string, now time.Time) ([]notice.OrderNotice, error) {
	fake := faker.NewWithSeed(rand.NewSource(int64(len(restaurantID)) + 42))
	start := now.Add(-30 * time.Minute)

	type stage func(s notice.State, id uuid.UUID, at time.Time) (notice.State, error)
	at := func(step int) time.Time { return start.Add(time.Duration(step) * time.Minute) }

	plans := []struct {
		mode   string
		code   string
		stages []stage
	}{
		{mode: "dine-in", code: "A7K2T4", stages: []stage{
			func(s notice.State, id uuid.UUID, t time.Time) (notice.State, error) {
				return notice.SubmitToServer(s, id, "", t)
			},
		}},
		{mode: "dine-in", code: "B3M9T11", stages: []stage{
			func(s notice.State, id uuid.UUID, t time.Time) (notice.State, error) {
				return notice.SubmitToServer(s, id, "", t)
			},
			func(s notice.State, id uuid.UUID, t time.Time) (notice.State, error) {
				return notice.ServerDispatchToKitchen(s, id, t)
			},
			func(s notice.State, id uuid.UUID, t time.Time) (notice.State, error) {
				return notice.KitchenAcknowledge(s, id, "chef-1", t)
			},
		}},
		{mode: "delivery", stages: []stage{
			func(s notice.State, id uuid.UUID, t time.Time) (notice.State, error) {
				return notice.KitchenAcknowledge(s, id, "chef-2", t)
			},
			func(s notice.State, id uuid.UUID, t time.Time) (notice.State, error) {
				return notice.KitchenAskQuestion(s, id, "Is a little fish sauce in the broth okay?", t)
			},
		}},
		{mode: "pickup", stages: []stage{
			func(s notice.State, id uuid.UUID, t time.Time) (notice.State, error) {
				return notice.KitchenReject(s, id, "the wok station cannot avoid peanut oil tonight", t)
			},
		}},
	}

	var state notice.State
	var out []notice.OrderNotice
	for i, plan := range plans {
		d := notice.Draft{
			RestaurantID: restaurantID,
			UserID:       UserID,
			CustomerName: fake.Person().Name(),
			DiningMode:   plan.mode,
			Items:        []string{dishes[(i+len(restaurantID))%len(dishes)]},
			Allergies:    allergies[i%len(allergies)],
			Diets:        diets[i%len(diets)],
		}
		if plan.mode == "delivery" {
			d.DeliveryAddress = fake.Address().City()
		}

		draft, err := notice.NewDraft(d, at(i*5))
		if err != nil {
			return nil, err
		}
		draft.ID = uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("notices/demo/%s/%d", restaurantID, i)))

		if plan.code != "" {
			state, err = notice.RequestServerCode(state, draft, plan.code, at(i*5))
		} else {
			state, err = notice.SubmitDirectToKitchen(state, draft, at(i*5))
		}
		if err != nil {
			return nil, err
		}

		for j, st := range plan.stages {
			if state, err = st(state, draft.ID, at(i*5+j+1)); err != nil {
				return nil, err
			}
		}

		n, _ := state.Find(draft.ID)
		out = append(out, n)
	}
	return out, nil
}
