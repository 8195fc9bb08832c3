package pipeline

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/wsekete/pdf-form-enrichment-tool/internal/field"
	"github.com/wsekete/pdf-form-enrichment-tool/internal/training"
)

// buildFixturePDF assembles a minimal, classic-xref PDF with one AcroForm
// text field merged into its widget annotation: a Catalog, a one-page
// Pages tree, the widget/field object (with a /P back-reference to its
// page, per field.go's page-index resolution), and an AcroForm dictionary.
// Offsets are recorded as each object is written rather than counted by
// hand, so the xref table is correct by construction.
func buildFixturePDF(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int64, 6) // index 0 unused (free entry)
	writeObj := func(num int, body string) {
		offsets[num] = int64(buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", num, body)
	}

	writeObj(1, "<< /Type /Catalog /Pages 2 0 R /AcroForm 5 0 R >>")
	writeObj(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	writeObj(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Annots [4 0 R] >>")
	writeObj(4, "<< /Type /Annot /Subtype /Widget /FT /Tx /T (ownername) /Rect [100 700 300 720] /P 3 0 R /V (John Doe) >>")
	writeObj(5, "<< /Fields [4 0 R] >>")

	xrefOffset := int64(buf.Len())
	buf.WriteString("xref\n0 6\n")
	fmt.Fprintf(&buf, "%010d %05d f\r\n", 0, 65535)
	for num := 1; num <= 5; num++ {
		fmt.Fprintf(&buf, "%010d %05d n\r\n", offsets[num], 0)
	}
	buf.WriteString("trailer\n<< /Size 6 /Root 1 0 R >>\n")
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF", xrefOffset)

	dir := t.TempDir()
	path := filepath.Join(dir, "fixture.pdf")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("WriteFile() = %v", err)
	}
	return path
}

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	store := training.New()
	if _, err := store.Load(nil); err != nil {
		t.Fatalf("store.Load(nil) = %v", err)
	}
	return New(store, Options{})
}

func TestAnalyzeExtractsMergedFieldWidget(t *testing.T) {
	path := buildFixturePDF(t)
	p := newTestPipeline(t)

	result, err := p.Analyze(path, "")
	if err != nil {
		t.Fatalf("Analyze() = %v", err)
	}
	if len(result.Fields) != 1 {
		t.Fatalf("got %d fields, want 1", len(result.Fields))
	}

	f := result.Fields[0]
	if f.Kind != field.KindText {
		t.Errorf("Kind = %q, want %q", f.Kind, field.KindText)
	}
	if f.Name != "ownername" {
		t.Errorf("Name = %q, want %q", f.Name, "ownername")
	}
	if f.Page != 1 {
		t.Errorf("Page = %d, want 1 (resolved via the widget's /P entry)", f.Page)
	}
	if !f.HasRect || f.Rect != [4]float64{100, 700, 300, 720} {
		t.Errorf("Rect = %v, want [100 700 300 720]", f.Rect)
	}
}

func TestPlanProducesADecisionForEveryField(t *testing.T) {
	path := buildFixturePDF(t)
	p := newTestPipeline(t)

	plan, decisions, analysis, err := p.Plan(path, "")
	if err != nil {
		t.Fatalf("Plan() = %v", err)
	}
	if len(analysis.Fields) != 1 {
		t.Fatalf("got %d analyzed fields, want 1", len(analysis.Fields))
	}
	fieldID := analysis.Fields[0].ID
	if _, ok := decisions[fieldID]; !ok {
		t.Fatalf("decisions missing an entry for %s", fieldID)
	}
	if plan.SafetyScore < 0 || plan.SafetyScore > 1 {
		t.Errorf("SafetyScore = %v, want a value in [0,1]", plan.SafetyScore)
	}
}
