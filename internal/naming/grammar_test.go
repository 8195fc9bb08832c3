package naming

import "testing"

func TestIsValid(t *testing.T) {
	valid := []string{
		"owner-information_name",
		"contact_phone-number",
		"selection_plan-type__opt-2",
		"signatures_owner",
	}
	for _, n := range valid {
		if !IsValid(n) {
			t.Errorf("IsValid(%q) = false, want true", n)
		}
	}

	invalid := []string{
		"",
		"Owner_Name",          // uppercase
		"group_member",        // reserved leading block
		"field_x",             // reserved leading block
		"owner__info__extra",  // malformed double separator structure
		"_leading-underscore",
		"way-too-long-name-that-exceeds-the-fifty-character-name-limit-for-sure",
	}
	for _, n := range invalid {
		if IsValid(n) {
			t.Errorf("IsValid(%q) = true, want false", n)
		}
	}
}

func TestSplitJoinRoundTrip(t *testing.T) {
	name := "owner-information_name__primary"
	block, element, modifier := Split(name)
	if block != "owner-information" || element != "name" || modifier != "primary" {
		t.Fatalf("Split(%q) = (%q, %q, %q)", name, block, element, modifier)
	}
	if got := Join(block, element, modifier); got != name {
		t.Errorf("Join round trip = %q, want %q", got, name)
	}
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"Owner Name":     "owner-name",
		"OWNER_NAME":     "owner-name",
		"owner  name":    "owner-name",
		"_owner_name_":   "owner-name",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSlugifyFallsBackOnEmptyResult(t *testing.T) {
	if got := Slugify("!!!", 3); got != "opt-3" {
		t.Errorf("Slugify(%q, 3) = %q, want %q", "!!!", got, "opt-3")
	}
	if got := Slugify("Primary Beneficiary", 1); got != "primary-beneficiary" {
		t.Errorf("Slugify() = %q, want %q", got, "primary-beneficiary")
	}
}

func TestDisambiguate(t *testing.T) {
	taken := map[string]bool{"selection_plan-type": true, "selection_plan-type__2": true}
	got := Disambiguate("selection_plan-type", taken)
	if got != "selection_plan-type__3" {
		t.Errorf("Disambiguate() = %q, want %q", got, "selection_plan-type__3")
	}
}
