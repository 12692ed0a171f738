package tablet

import "fmt"

// Keys names the durable entries of one restaurant session.
type Keys struct {
	State     string
	Dismissed string
	ForceOpen string
	namespace string
}

func NewKeys(restaurantID, sessionID string) Keys {
	ns := fmt.Sprintf("notices:%s:%s", restaurantID, sessionID)
	return Keys{
		State:     ns + ":state",
		Dismissed: ns + ":dismissed",
		ForceOpen: ns + ":force-open",
		namespace: ns,
	}
}

func (k Keys) Namespace() string {
	return k.namespace
}
