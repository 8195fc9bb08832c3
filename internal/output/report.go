package output

import (
	"encoding/json"
	"io"
	"time"

	"github.com/wsekete/pdf-form-enrichment-tool/internal/field"
	"github.com/wsekete/pdf-form-enrichment-tool/internal/fieldcontext"
	"github.com/wsekete/pdf-form-enrichment-tool/internal/modify"
	"github.com/wsekete/pdf-form-enrichment-tool/internal/naming"
	"github.com/wsekete/pdf-form-enrichment-tool/internal/planner"
)

// DocumentInfo is the report's "document" object.
type DocumentInfo struct {
	Path        string    `json:"path"`
	ProcessedAt time.Time `json:"processed_at"`
	FieldCount  int       `json:"field_count"`
	SafetyScore float64   `json:"safety_score"`
}

// ContextReport mirrors fieldcontext.Context for JSON output.
type ContextReport struct {
	Label         string   `json:"label"`
	SectionHeader string   `json:"section_header"`
	NearbyText    []string `json:"nearby_text"`
	VisualGroup   string   `json:"visual_group"`
	Confidence    float64  `json:"confidence"`
}

// DecisionReport mirrors naming.Decision for JSON output.
type DecisionReport struct {
	Action       naming.Action `json:"action"`
	NewName      string        `json:"new_name"`
	Confidence   float64       `json:"confidence"`
	Source       naming.Source `json:"source"`
	Rationale    string        `json:"rationale"`
	Alternatives []string      `json:"alternatives,omitempty"`
}

// ModificationReport records whether, and how, a field's rename was
// actually applied.
type ModificationReport struct {
	Applied      bool     `json:"applied"`
	Blocked      bool     `json:"blocked"`
	BlockReasons []string `json:"block_reasons,omitempty"`
}

// FieldReport is one entry in the report's "fields" array.
type FieldReport struct {
	ID           string              `json:"id"`
	OriginalName string              `json:"original_name"`
	Kind         field.Kind          `json:"kind"`
	Decision     DecisionReport      `json:"decision"`
	Context      *ContextReport      `json:"context,omitempty"`
	Modification ModificationReport  `json:"modification"`
}

// Report is the <name>_report.json structure written alongside every run.
type Report struct {
	Document DocumentInfo  `json:"document"`
	Fields   []FieldReport `json:"fields"`
	Warnings []string      `json:"warnings"`
	SafetyScore float64    `json:"safety_score"`
}

// BuildReport assembles the processing report from the per-field evidence
// gathered during extraction and decision-making, the plan produced, and
// the integrity report from applying it. When integrity is nil, every
// planned field is reported as applied unless it is blocked.
func BuildReport(path string, processedAt time.Time, fields []*field.Field, contexts map[string]*fieldcontext.Context, decisions map[string]naming.Decision, plan *planner.Plan, integrity *modify.IntegrityReport, warnings []string) *Report {
	blocked := make(map[string][]string)
	applied := make(map[string]bool)
	if plan != nil {
		for _, m := range plan.Modifications {
			for _, dep := range m.DependentRefs {
				if dep.Blocker {
					blocked[m.FieldID] = append(blocked[m.FieldID], dep.Reason)
				}
			}
			applied[m.FieldID] = integrity == nil || integrity.Status != modify.StatusCritical
		}
	}

	report := &Report{
		Document: DocumentInfo{
			Path:        path,
			ProcessedAt: processedAt,
			FieldCount:  len(fields),
		},
		Warnings: warnings,
	}
	if plan != nil {
		report.Document.SafetyScore = plan.SafetyScore
		report.SafetyScore = plan.SafetyScore
	}

	for _, f := range fields {
		fr := FieldReport{
			ID:           f.ID,
			OriginalName: f.Name,
			Kind:         f.Kind,
		}
		if d, ok := decisions[f.ID]; ok {
			fr.Decision = DecisionReport{
				Action:       d.Action,
				NewName:      d.NewName,
				Confidence:   d.Confidence,
				Source:       d.Source,
				Rationale:    d.Rationale,
				Alternatives: d.Alternatives,
			}
		}
		if c, ok := contexts[f.ID]; ok && c != nil {
			fr.Context = &ContextReport{
				Label:         c.Label,
				SectionHeader: c.SectionHeader,
				NearbyText:    c.NearbyText,
				VisualGroup:   c.VisualGroup,
				Confidence:    c.Confidence,
			}
		}
		reasons := blocked[f.ID]
		fr.Modification = ModificationReport{
			Applied:      applied[f.ID] && len(reasons) == 0,
			Blocked:      len(reasons) > 0,
			BlockReasons: reasons,
		}
		report.Fields = append(report.Fields, fr)
	}
	return report
}

// WriteReportJSON writes report to w as indented JSON.
func WriteReportJSON(w io.Writer, report *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
