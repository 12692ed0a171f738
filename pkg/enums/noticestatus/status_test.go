package noticestatus

import "testing"

func TestByName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{name: "DRAFT", want: true},
		{name: "WITH_KITCHEN", want: true},
		{name: "RESCINDED_BY_DINER", want: true},
		{name: "with_kitchen", want: false},
		{name: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ByName(tt.name)
			if (got != nil) != tt.want {
				t.Fatalf("ByName(%q) found = %v, want %v", tt.name, got != nil, tt.want)
			}
		})
	}
}

func TestIsTerminal(t *testing.T) {
	terminal := map[string]bool{
		"REJECTED_BY_SERVER":  true,
		"REJECTED_BY_KITCHEN": true,
		"RESCINDED_BY_DINER":  true,
	}

	for _, s := range All {
		if s.IsTerminal() != terminal[s.Code()] {
			t.Errorf("%s IsTerminal() = %v", s.Code(), s.IsTerminal())
		}
	}
}

func TestDisplayTableCoversAllStatuses(t *testing.T) {
	for _, s := range All {
		d, ok := Display(s.Code())
		if !ok {
			t.Fatalf("missing display entry for %s", s.Code())
		}
		if !d.Tone.Valid() {
			t.Errorf("%s has invalid tone %q", s.Code(), d.Tone)
		}
		if d.Label == "" {
			t.Errorf("%s has empty label", s.Code())
		}
	}

	if Statuses.RejectedByKitchen.Tone() != Tones.Danger {
		t.Errorf("expected danger tone for kitchen rejection")
	}
	if Statuses.Acknowledged.Label() != "Acknowledged" {
		t.Errorf("unexpected label %q", Statuses.Acknowledged.Label())
	}
}

func TestParseDisplayTableRejectsUnknownTone(t *testing.T) {
	_, err := ParseDisplayTable([]byte("DRAFT:\n  label: Draft\n  tone: loud\n"))
	if err == nil {
		t.Fatal("expected error for unknown tone")
	}

	_, err = ParseDisplayTable([]byte("NOPE:\n  label: Nope\n  tone: idle\n"))
	if err == nil {
		t.Fatal("expected error for unknown status")
	}
}
