package category

import (
	"testing"

	"grocat/backend"
)

func categories(values ...string) *backend.Snapshot {
	s := &backend.Snapshot{}
	for i, v := range values {
		s.List.Items = append(s.List.Items, backend.Item{ID: "cat-" + string(rune('a'+i)), Value: v})
	}
	return s
}

func TestResolve(t *testing.T) {
	cats := categories("Fruit", "Veggies", "Dairy (2)", "Candies", "Frozen Foods")

	tests := []struct {
		name string
		want string
	}{
		{"fruit", "cat-a"},      // exact
		{"FRUIT", "cat-a"},      // case-insensitive
		{"veggie", "cat-b"},     // name + "s"
		{"fruits", "cat-a"},     // drop last character
		{"dairy", "cat-c"},      // duplicate suffix ignored
		{"cand", "cat-d"},       // name + "ies"
		{"candiesxyz", "cat-d"}, // drop last three characters
		{"frozen", "cat-e"},     // first word of the heading
		{"frozen foods", ""},    // only the heading's first word is compared
		{"meat", ""},            // no match
		{"", ""},                // absent name
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Resolve(tt.name, cats); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestResolveDairyWithoutCategory(t *testing.T) {
	if got := Resolve("dairy", categories("Fruit", "Veggies")); got != "" {
		t.Errorf("Resolve(dairy) = %q, want none", got)
	}
}

func TestResolveFirstCandidateWins(t *testing.T) {
	// Both headings match "apple"; list order decides.
	cats := categories("Appl", "Apples")
	if got := Resolve("apple", cats); got != "cat-a" {
		t.Errorf("Resolve(apple) = %q, want cat-a (drop-last-char on first heading)", got)
	}
}

func TestResolveEmptyInputs(t *testing.T) {
	if got := Resolve("milk", nil); got != "" {
		t.Errorf("Resolve with nil snapshot = %q", got)
	}
	if got := Resolve("milk", &backend.Snapshot{}); got != "" {
		t.Errorf("Resolve with empty list = %q", got)
	}
	if got := Resolve("a", categories("   ", "B")); got != "" {
		t.Errorf("short names must not match through underflow, got %q", got)
	}
}

func TestResolveTrimsCharactersNotBytes(t *testing.T) {
	if got := Resolve("café", categories("Caf")); got != "cat-a" {
		t.Errorf("Resolve(café) = %q, want cat-a (drop last character)", got)
	}
	if got := Resolve("cafés", categories("Caf", "Ca")); got != "cat-b" {
		t.Errorf("Resolve(cafés) = %q, want cat-b (drop last three characters)", got)
	}
	if got := Resolve("crème", categories("Crèmes")); got != "cat-a" {
		t.Errorf("Resolve(crème) = %q, want cat-a", got)
	}
}

func TestExists(t *testing.T) {
	cats := categories("Bakery")
	if !Exists("bakery", cats) {
		t.Error("Exists(bakery) = false")
	}
	if Exists("deli", cats) {
		t.Error("Exists(deli) = true")
	}
}
