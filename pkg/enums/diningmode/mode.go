package diningmode

type Mode struct {
	Name string
}

func (m Mode) Code() string {
	return m.Name
}

// Direct reports whether notices in this mode skip the server stage.
func (m Mode) Direct() bool {
	return m != Modes.DineIn
}

type Enum struct {
	DineIn   Mode
	Delivery Mode
	Pickup   Mode
}

var Modes = Enum{
	DineIn:   Mode{Name: "dine-in"},
	Delivery: Mode{Name: "delivery"},
	Pickup:   Mode{Name: "pickup"},
}

var All = []Mode{
	Modes.DineIn,
	Modes.Delivery,
	Modes.Pickup,
}

// ByName returns the mode for a given name, or nil if not found
func ByName(name string) *Mode {
	for _, m := range All {
		if m.Name == name {
			return &m
		}
	}
	return nil
}
