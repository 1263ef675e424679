package classifier

import (
	"strings"
	"testing"
)

func TestClassifyExamples(t *testing.T) {
	cases := []struct {
		description string
		want        string
	}{
		{"Large pothole near the cafe", "Roads & Infrastructure"},
		{"no idea what this is", "Other"},
		{"", "Other"},
		{"Garbage not collected for 3 days, causing health hazard", "Sanitation"},
		{"Street light not working for past week", "Roads & Infrastructure"},
		{"Water pipe leaking causing road flooding", "Roads & Infrastructure"},
		{"Broken pavement near school entrance creating danger for children", "Roads & Infrastructure"},
		{"Illegal dumping of construction waste", "Sanitation"},
		{"POWER OUTAGE since morning", "Electricity"},
		{"Reported a CRIME in progress", "Public Safety"},
		{"no drinking WATER since yesterday", "Water Supply"},
	}
	for _, tc := range cases {
		if got := Classify(tc.description); got != tc.want {
			t.Fatalf("Classify(%q) = %q, want %q", tc.description, got, tc.want)
		}
	}
}

func TestClassifyUniqueKeywordPicksItsCategory(t *testing.T) {
	all := Categories()
	for _, category := range all {
		for _, keyword := range category.Keywords {
			if containedInOtherCategory(all, category.ID, keyword) {
				continue
			}
			description := "residents report: " + strings.ToUpper(keyword) + " near the market"
			if got := Classify(description); got != category.Name {
				t.Fatalf("keyword %q: got %q, want %q", keyword, got, category.Name)
			}
		}
	}
}

// containedInOtherCategory reports whether text containing keyword could also
// match an earlier or later category (e.g. "streetlight" contains "street").
func containedInOtherCategory(all []Category, selfID, keyword string) bool {
	for _, category := range all {
		if category.ID == selfID {
			continue
		}
		for _, other := range category.Keywords {
			if strings.Contains(keyword, other) {
				return true
			}
		}
	}
	return false
}

func TestClassifyFirstMatchWins(t *testing.T) {
	// "trash" is Sanitation, "bridge" is Roads; Sanitation is declared first.
	if got := Classify("trash dumped under the bridge"); got != "Sanitation" {
		t.Fatalf("expected earlier-declared category, got %q", got)
	}
	// "streetlight" contains "street", so Roads wins over Electricity.
	if got := Classify("broken streetlight"); got != "Roads & Infrastructure" {
		t.Fatalf("expected first-match on substring, got %q", got)
	}
}

func TestCategoriesTableInvariant(t *testing.T) {
	fallbacks := 0
	for _, category := range Categories() {
		if len(category.Keywords) == 0 {
			fallbacks++
			if category.Name != FallbackCategory {
				t.Fatalf("category %q has no keywords but is not the fallback", category.Name)
			}
		}
	}
	if fallbacks != 1 {
		t.Fatalf("expected exactly one fallback category, got %d", fallbacks)
	}
}

func TestCategoriesReturnsCopy(t *testing.T) {
	first := Categories()
	first[0].Keywords[0] = "mutated"
	first[0].Name = "Mutated"
	if Classify("garbage") != "Sanitation" {
		t.Fatalf("mutating the returned table changed classifier behavior")
	}
	if !IsCategory("Sanitation") || IsCategory("Mutated") {
		t.Fatalf("IsCategory affected by caller mutation")
	}
}
