// Package output emits the per-field mapping CSV (bit-exact with the
// historical training schema) and the structured JSON processing report.
package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/wsekete/pdf-form-enrichment-tool/internal/field"
	"github.com/wsekete/pdf-form-enrichment-tool/internal/fieldcontext"
	"github.com/wsekete/pdf-form-enrichment-tool/internal/naming"
)

// MappingColumns is the bit-exact column order for <name>_mapping.csv.
var MappingColumns = []string{
	"ID", "Created at", "Updated at", "Label", "Description", "Form ID",
	"Order", "Api name", "UUID", "Type", "Parent ID", "Delete Parent ID",
	"Acrofieldlabel", "Section ID", "Excluded", "Partial label", "Custom",
	"Show group label", "Height", "Page", "Width", "X", "Y",
	"Unified field ID", "Delete", "Hidden", "Toggle description",
}

// MappingRow is one per-field record destined for a CSV row. UUID,
// CreatedAt and UpdatedAt are assigned by the caller (pipeline), which
// generates a fresh UUID and the current time on every run; identities are
// not carried over between runs over the same document.
type MappingRow struct {
	ID               int
	UUID             string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Label            string
	Description      string
	FormID           string
	Order            int
	ApiName          string
	Type             field.Kind
	ParentID         string
	DeleteParentID   string
	Acrofieldlabel   string
	SectionID        string
	Excluded         bool
	PartialLabel     string
	Custom           bool
	ShowGroupLabel   bool
	Height           float64
	Page             int
	Width            float64
	X                float64
	Y                float64
	UnifiedFieldID   string
	Delete           bool
	Hidden           bool
	ToggleDescription string
}

// BuildMappingRow assembles a MappingRow from one field's extracted record,
// its derived context, and its final naming decision. uuid, createdAt and
// order are assigned by the caller to keep identity/order assignment out of
// this package's concerns.
func BuildMappingRow(id int, f *field.Field, ctx *fieldcontext.Context, decision naming.Decision, uuid string, order int, formID string, createdAt, updatedAt time.Time) MappingRow {
	row := MappingRow{
		ID:             id,
		UUID:           uuid,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
		FormID:         formID,
		Order:          order,
		ApiName:        decision.NewName,
		Type:           f.Kind,
		ParentID:       f.ParentID,
		Acrofieldlabel: f.Name,
		Excluded:       f.Kind == field.KindUnknown,
		Custom:         decision.Source == naming.SourceFallback,
		ShowGroupLabel: f.IsGroupContainer,
		Page:           f.Page,
		UnifiedFieldID: f.ID,
	}
	if ctx != nil {
		row.Label = ctx.Label
		row.Description = ctx.SectionHeader
		row.SectionID = ctx.VisualGroup
	}
	if f.HasRect {
		row.X, row.Y = f.Rect[0], f.Rect[1]
		row.Width = f.Rect[2] - f.Rect[0]
		row.Height = f.Rect[3] - f.Rect[1]
	}
	row.PartialLabel = partialLabel(f.Name)
	if f.Kind == field.KindRadioWidget || f.Kind == field.KindCheckbox {
		row.ToggleDescription = decision.Rationale
	}
	return row
}

func partialLabel(fqName string) string {
	for i := len(fqName) - 1; i >= 0; i-- {
		if fqName[i] == '.' {
			return fqName[i+1:]
		}
	}
	return fqName
}

// WriteMappingCSV writes rows to w as the historical-schema CSV: UTF-8 with
// a leading BOM, LF line endings, booleans as TRUE/FALSE, timestamps
// ISO-8601 UTC.
func WriteMappingCSV(w io.Writer, rows []MappingRow) error {
	if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	cw.UseCRLF = false

	if err := cw.Write(MappingColumns); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(mappingRecord(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func mappingRecord(r MappingRow) []string {
	return []string{
		strconv.Itoa(r.ID),
		r.CreatedAt.UTC().Format(time.RFC3339),
		r.UpdatedAt.UTC().Format(time.RFC3339),
		r.Label,
		r.Description,
		r.FormID,
		strconv.Itoa(r.Order),
		r.ApiName,
		r.UUID,
		string(r.Type),
		r.ParentID,
		r.DeleteParentID,
		r.Acrofieldlabel,
		r.SectionID,
		formatBool(r.Excluded),
		r.PartialLabel,
		formatBool(r.Custom),
		formatBool(r.ShowGroupLabel),
		formatFloat(r.Height),
		strconv.Itoa(r.Page),
		formatFloat(r.Width),
		formatFloat(r.X),
		formatFloat(r.Y),
		r.UnifiedFieldID,
		formatBool(r.Delete),
		formatBool(r.Hidden),
		r.ToggleDescription,
	}
}

func formatBool(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

func formatFloat(f float64) string {
	if f == 0 {
		return "0"
	}
	return fmt.Sprintf("%g", f)
}
