package naming

import "testing"

// fakeSource is a minimal hand-rolled TrainingSource stub.
type fakeSource struct {
	exact   []ExactMatch
	similar []SimilarMatch
}

func (f fakeSource) LookupExact(label, section, kind string, pos [2]float64) []ExactMatch {
	return f.exact
}

func (f fakeSource) LookupSimilar(label, section, kind string, nearby []string, pos [2]float64, topK int) []SimilarMatch {
	return f.similar
}

func (f fakeSource) Patterns() []Pattern { return nil }

func TestDecidePreservesValidTrainingConfirmedName(t *testing.T) {
	src := fakeSource{exact: []ExactMatch{{Name: "owner-information_name", Support: 3}}}
	in := FieldInput{ID: "1", CurrentName: "owner-information_name", Kind: "text", Label: "Name"}
	taken := map[string]bool{}

	d := Decide(in, src, taken)

	if d.Action != ActionPreserve {
		t.Errorf("Action = %q, want preserve", d.Action)
	}
	if d.NewName != "owner-information_name" {
		t.Errorf("NewName = %q, want unchanged", d.NewName)
	}
	if !taken[d.NewName] {
		t.Error("taken should record the assigned name")
	}
}

func TestDecideNormalizesCasingOnlyViolation(t *testing.T) {
	src := fakeSource{}
	in := FieldInput{ID: "1", CurrentName: "Owner_Information_Name", Kind: "text"}
	taken := map[string]bool{}

	d := Decide(in, src, taken)

	if d.Action != ActionImprove {
		t.Errorf("Action = %q, want improve", d.Action)
	}
	if d.NewName != "owner-information-name" {
		t.Errorf("NewName = %q, want normalized separators", d.NewName)
	}
}

func TestDecideUsesDominantExactMatch(t *testing.T) {
	src := fakeSource{exact: []ExactMatch{
		{Name: "owner-information_address", Support: 5},
		{Name: "something-else", Support: 1},
	}}
	in := FieldInput{ID: "1", Kind: "text", Label: "Home Address"}
	taken := map[string]bool{}

	d := Decide(in, src, taken)

	if d.Source != SourceExactMatch {
		t.Errorf("Source = %q, want exact_match", d.Source)
	}
	if d.NewName != "owner-information_address" {
		t.Errorf("NewName = %q, want the dominant exact match", d.NewName)
	}
}

func TestDecideRejectsExactMatchWithoutDominance(t *testing.T) {
	src := fakeSource{exact: []ExactMatch{
		{Name: "owner-information_address", Support: 3},
		{Name: "something-else", Support: 2}, // within 2x of the top match
	}}
	in := FieldInput{ID: "1", Kind: "text", Label: "Address"}
	taken := map[string]bool{}

	d := Decide(in, src, taken)

	if d.Source == SourceExactMatch {
		t.Errorf("Source = %q, exact match should not be trusted without dominance", d.Source)
	}
}

func TestDecideFallsBackToRuleBasedForSignature(t *testing.T) {
	src := fakeSource{}
	in := FieldInput{ID: "1", Kind: "signature"}
	taken := map[string]bool{}

	d := Decide(in, src, taken)

	if d.NewName != "signatures_owner" {
		t.Errorf("NewName = %q, want the signature rule's name", d.NewName)
	}
	if d.Source != SourceRule {
		t.Errorf("Source = %q, want rule", d.Source)
	}
}

func TestDecideFallsBackWhenNothingMatches(t *testing.T) {
	src := fakeSource{}
	in := FieldInput{ID: "42", CurrentName: "xyz123", Kind: "text"}
	taken := map[string]bool{}

	d := Decide(in, src, taken)

	if d.Source != SourceFallback {
		t.Errorf("Source = %q, want fallback", d.Source)
	}
	if !IsValid(d.NewName) {
		t.Errorf("NewName = %q is not grammar-valid", d.NewName)
	}
}

func TestDecideDisambiguatesAgainstTaken(t *testing.T) {
	src := fakeSource{}
	taken := map[string]bool{"signatures_owner": true}
	in := FieldInput{ID: "1", Kind: "signature"}

	d := Decide(in, src, taken)

	if d.NewName == "signatures_owner" {
		t.Error("NewName should have been disambiguated, got the already-taken name")
	}
	if !IsValid(d.NewName) {
		t.Errorf("NewName = %q is not grammar-valid", d.NewName)
	}
}

func TestDecideEnforcesRadioGroupPrefix(t *testing.T) {
	src := fakeSource{}
	taken := map[string]bool{}
	in := FieldInput{
		ID: "1", Kind: "radio_widget",
		GroupNewName: "plan-selection_method", ExportValue: "Monthly",
	}

	d := Decide(in, src, taken)

	if got, want := "plan-selection_method__", d.NewName[:len("plan-selection_method__")]; got != want {
		t.Errorf("NewName = %q, want prefix %q", d.NewName, want)
	}
}

func TestDecideMutatesTakenAcrossCalls(t *testing.T) {
	src := fakeSource{}
	taken := map[string]bool{}
	first := Decide(FieldInput{ID: "1", Kind: "signature"}, src, taken)
	second := Decide(FieldInput{ID: "2", Kind: "signature"}, src, taken)

	if first.NewName == second.NewName {
		t.Errorf("two signature fields got the same name %q, want disambiguation", first.NewName)
	}
}
