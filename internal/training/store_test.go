package training

import "testing"

func sampleRecords() []Record {
	return []Record{
		{Label: "Full Name:", NearbyText: []string{"Full Name:", "First Last"}, Section: "Owner Information",
			Kind: "text", PagePosition: [2]float64{0.1, 0.1}, ApprovedName: "owner-information_name"},
		{Label: "Full Name:", NearbyText: []string{"Full Name:", "First Last"}, Section: "Owner Information",
			Kind: "text", PagePosition: [2]float64{0.1, 0.1}, ApprovedName: "owner-information_name"},
		{Label: "Bad Name", NearbyText: nil, Section: "", Kind: "text",
			PagePosition: [2]float64{0.5, 0.5}, ApprovedName: "Not Valid!!"},
	}
}

func TestLoadDiscardsInvalidNames(t *testing.T) {
	s := New()
	errs, err := s.Load(sampleRecords())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, warns := errs.Count(); warns != 1 {
		t.Errorf("expected 1 discarded-record warning, got %d", warns)
	}
}

func TestLookupExactReturnsSupport(t *testing.T) {
	s := New()
	if _, err := s.Load(sampleRecords()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	matches := s.LookupExact("Full Name:", "Owner Information", "text", [2]float64{0.1, 0.1})
	if len(matches) != 1 {
		t.Fatalf("LookupExact() returned %d matches, want 1", len(matches))
	}
	if matches[0].Name != "owner-information_name" || matches[0].Support != 2 {
		t.Errorf("LookupExact() = %+v, want support=2", matches[0])
	}
}

func TestLookupSimilarRanksByWeightedScore(t *testing.T) {
	s := New()
	if _, err := s.Load(sampleRecords()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	matches := s.LookupSimilar("Full Name", "Owner Information", "text", []string{"First Last"}, [2]float64{0.1, 0.1}, 5)
	if len(matches) == 0 {
		t.Fatal("LookupSimilar() returned no matches")
	}
	if matches[0].Name != "owner-information_name" {
		t.Errorf("top match = %q, want %q", matches[0].Name, "owner-information_name")
	}
}

func TestLoadTwiceIsRejected(t *testing.T) {
	s := New()
	if _, err := s.Load(sampleRecords()); err != nil {
		t.Fatalf("first Load() error = %v", err)
	}
	if _, err := s.Load(sampleRecords()); err == nil {
		t.Error("second Load() expected error, got nil")
	}
}
