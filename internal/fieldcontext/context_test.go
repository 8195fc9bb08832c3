package fieldcontext

import "testing"

func defaultOpts() Options {
	return Options{ProximityInflate: 100, GridSize: 100, MaxNearby: 10}.withDefaults()
}

func TestBuildContextDerivesLabelFromColonSuffix(t *testing.T) {
	rect := [4]float64{200, 700, 300, 720} // field box
	runs := []TextRun{
		{Text: "Full Name:", X: 60, Y: 705, Width: 120, Height: 10},
		{Text: "Unrelated footer", X: 60, Y: 50, Width: 100, Height: 10},
	}

	ctx := buildContext(rect, runs, defaultOpts())

	if ctx.Label != "Full Name:" {
		t.Errorf("Label = %q, want %q", ctx.Label, "Full Name:")
	}
	if len(ctx.NearbyText) != 1 {
		t.Errorf("NearbyText = %v, want just the in-range run", ctx.NearbyText)
	}
}

func TestBuildContextDerivesLabelFromIndicatorWord(t *testing.T) {
	rect := [4]float64{200, 700, 300, 720}
	runs := []TextRun{
		{Text: "Phone Number", X: 60, Y: 705, Width: 120, Height: 10},
	}

	ctx := buildContext(rect, runs, defaultOpts())

	if ctx.Label != "Phone Number" {
		t.Errorf("Label = %q, want the indicator-word run", ctx.Label)
	}
}

func TestBuildContextFallsBackToTextLeft(t *testing.T) {
	rect := [4]float64{300, 700, 400, 720}
	runs := []TextRun{
		{Text: "Misc", X: 100, Y: 705, Width: 50, Height: 10},
	}

	ctx := buildContext(rect, runs, defaultOpts())

	if ctx.Label != "Misc" {
		t.Errorf("Label = %q, want the nearest left-of-field run", ctx.Label)
	}
	if ctx.TextLeft != "Misc" {
		t.Errorf("TextLeft = %q, want %q", ctx.TextLeft, "Misc")
	}
}

func TestNearestDirectionalRequiresOverlap(t *testing.T) {
	rect := [4]float64{200, 700, 300, 720}
	runs := []TextRun{
		// above but no horizontal overlap with the field box
		{Text: "out of band", X: 1000, Y: 800, Width: 50, Height: 10},
		// directly above and overlapping
		{Text: "Section Header", X: 220, Y: 800, Width: 50, Height: 10},
	}

	got := nearestDirectional(runs, rect, directionAbove)
	if got != "Section Header" {
		t.Errorf("nearestDirectional(above) = %q, want the overlapping run", got)
	}
}

func TestDeriveSectionHeaderPrefersAllCapsAboveField(t *testing.T) {
	runs := []TextRun{
		{Text: "OWNER INFORMATION", X: 60, Y: 750, Width: 100, Height: 10},
		{Text: "lowercase noise", X: 60, Y: 760, Width: 100, Height: 10},
	}

	header := deriveSectionHeader(runs, 700)
	if header != "OWNER INFORMATION" {
		t.Errorf("deriveSectionHeader() = %q, want the all-caps run", header)
	}
}

func TestIsSectionHeader(t *testing.T) {
	cases := map[string]bool{
		"OWNER INFORMATION": true,
		"Contact Section":   true,
		"just some text":    false,
		"123":               false,
	}
	for in, want := range cases {
		if got := isSectionHeader(in); got != want {
			t.Errorf("isSectionHeader(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestVisualGroupKeyBucketsByGrid(t *testing.T) {
	if got := visualGroupKey(150, 250, 100); got != "1_2" {
		t.Errorf("visualGroupKey() = %q, want %q", got, "1_2")
	}
}

func TestConfidenceClippedToUnitRange(t *testing.T) {
	ctx := &Context{
		Label:         "Phone Number:",
		NearbyText:    []string{"a", "b", "c"},
		SectionHeader: "OWNER INFORMATION",
		TextAbove:     "x",
	}
	if got := confidence(ctx); got != 1 {
		t.Errorf("confidence() = %v, want clipped to 1", got)
	}

	empty := &Context{}
	if got := confidence(empty); got != 0.3 {
		t.Errorf("confidence(empty) = %v, want the 0.3 base score", got)
	}
}

func TestOptionsWithDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	if o.ProximityInflate != 100 || o.GridSize != 100 || o.MaxNearby != 10 {
		t.Errorf("withDefaults() = %+v, want the documented defaults", o)
	}
}

func TestNewExtractorRejectsMissingFile(t *testing.T) {
	if _, err := NewExtractor("/nonexistent/does-not-exist.pdf", Options{}); err == nil {
		t.Error("NewExtractor() on a missing file should fail")
	}
}
