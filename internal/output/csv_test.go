package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/wsekete/pdf-form-enrichment-tool/internal/field"
	"github.com/wsekete/pdf-form-enrichment-tool/internal/fieldcontext"
	"github.com/wsekete/pdf-form-enrichment-tool/internal/naming"
)

func TestBuildMappingRowDerivesPartialLabelAndGeometry(t *testing.T) {
	f := &field.Field{
		ID:      "field_0000_0",
		Name:    "owner-information.name",
		Kind:    field.KindText,
		HasRect: true,
		Rect:    [4]float64{10, 20, 110, 50},
	}
	ctx := &fieldcontext.Context{Label: "Owner Name", SectionHeader: "Owner Information", VisualGroup: "3_1"}
	decision := naming.Decision{NewName: "owner-information_name", Source: naming.SourceRule, Rationale: "rule"}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	row := BuildMappingRow(1, f, ctx, decision, "uuid-1", 0, "form-1", now, now)

	if row.PartialLabel != "name" {
		t.Errorf("PartialLabel = %q, want %q", row.PartialLabel, "name")
	}
	if row.Width != 100 || row.Height != 30 {
		t.Errorf("Width/Height = %v/%v, want 100/30", row.Width, row.Height)
	}
	if row.Label != "Owner Name" || row.SectionID != "3_1" {
		t.Errorf("row did not pick up context fields: %+v", row)
	}
	if row.ApiName != "owner-information_name" {
		t.Errorf("ApiName = %q, want the decision's new name", row.ApiName)
	}
}

func TestBuildMappingRowExcludesUnknownKind(t *testing.T) {
	f := &field.Field{ID: "field_0001", Name: "btn1", Kind: field.KindUnknown}
	row := BuildMappingRow(2, f, nil, naming.Decision{}, "uuid-2", 1, "form-1", time.Now(), time.Now())
	if !row.Excluded {
		t.Error("BuildMappingRow() should mark an unknown-kind field Excluded")
	}
}

func TestWriteMappingCSVHeaderAndBOM(t *testing.T) {
	var buf bytes.Buffer
	row := MappingRow{ID: 1, ApiName: "owner-information_name", UUID: "u1", Type: field.KindText}
	if err := WriteMappingCSV(&buf, []MappingRow{row}); err != nil {
		t.Fatalf("WriteMappingCSV() = %v", err)
	}

	out := buf.Bytes()
	if !bytes.HasPrefix(out, []byte{0xEF, 0xBB, 0xBF}) {
		t.Fatal("WriteMappingCSV() did not write a leading UTF-8 BOM")
	}
	if bytes.Contains(out, []byte("\r\n")) {
		t.Error("WriteMappingCSV() wrote CRLF, want LF newlines")
	}

	text := strings.TrimPrefix(string(out), "\xef\xbb\xbf")
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2 (header + one row)", len(lines))
	}
	header := strings.Split(lines[0], ",")
	if len(header) != len(MappingColumns) {
		t.Fatalf("header has %d columns, want %d", len(header), len(MappingColumns))
	}
	if header[0] != "ID" || header[len(header)-1] != "Toggle description" {
		t.Errorf("header = %v, want it to start with ID and end with Toggle description", header)
	}
}

func TestFormatBool(t *testing.T) {
	if formatBool(true) != "TRUE" || formatBool(false) != "FALSE" {
		t.Error("formatBool() must render TRUE/FALSE")
	}
}
