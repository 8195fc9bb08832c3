// Package planner converts a (field_id -> new_name) decision set into an
// ordered, conflict-aware ModificationPlan over the PDF object graph,
// computing a pre-application safety score before any document mutation
// is allowed to happen.
package planner

import (
	"sort"
	"strings"

	"github.com/wsekete/pdf-form-enrichment-tool/internal/field"
	"github.com/wsekete/pdf-form-enrichment-tool/internal/pdfmodel"
)

// Modification is one FieldModification row in the plan.
type Modification struct {
	FieldID       string
	OldName       string
	NewName       string
	ObjectRef     pdfmodel.ObjectID
	LocalTitle    string
	DependentRefs []DependentRef
}

// DependentRef is a place elsewhere in the document that names a field by
// its fully-qualified old name and must be rewritten alongside it.
type DependentRef struct {
	Kind      string // "javascript", "calculation_order", "named_destination"
	ObjectRef pdfmodel.ObjectID
	Field     string // dictionary key the reference lives under
	Blocker   bool
	Reason    string
}

// ConflictIssue is one entry in the plan's conflict_report.
type ConflictIssue struct {
	FieldID string
	Message string
}

// Plan is the ordered set of field renames to apply, plus the conflicts
// found and the resulting safety score.
type Plan struct {
	Modifications  []Modification
	ConflictReport []ConflictIssue
	SafetyScore    float64
}

const (
	largePlanThreshold      = 500
	largePlanPenalty        = 0.1
	widgetRenamePenaltyEach = 0.01
)

// Decisions maps a field id to its assigned new fully-qualified name.
type Decisions map[string]string

// Build constructs the plan from the extracted fields and the name
// engine's decisions, scanning jsActions for literal old-name references.
func Build(fields []*field.Field, decisions Decisions, jsActions map[pdfmodel.ObjectID]string, calcOrder []string) *Plan {
	byID := make(map[string]*field.Field, len(fields))
	for _, f := range fields {
		byID[f.ID] = f
	}

	ordered := orderTopDown(fields)

	plan := &Plan{}
	widgetRenames := 0

	for _, f := range ordered {
		newName, ok := decisions[f.ID]
		if !ok || newName == f.Name {
			continue
		}
		if f.Kind == field.KindRadioGroup || f.Kind == field.KindRadioWidget {
			widgetRenames++
		}

		localTitle := localTitleFor(f, byID, decisions)

		mod := Modification{
			FieldID:    f.ID,
			OldName:    f.Name,
			NewName:    newName,
			ObjectRef:  f.ObjectRef,
			LocalTitle: localTitle,
		}
		mod.DependentRefs = collectDependentRefs(f.Name, jsActions, calcOrder)
		plan.Modifications = append(plan.Modifications, mod)
	}

	plan.ConflictReport = detectConflicts(plan.Modifications)
	plan.SafetyScore = safetyScore(plan, widgetRenames)
	return plan
}

// orderTopDown sorts fields so a parent's modification always precedes its
// children's.
func orderTopDown(fields []*field.Field) []*field.Field {
	depth := make(map[string]int)
	byID := make(map[string]*field.Field, len(fields))
	for _, f := range fields {
		byID[f.ID] = f
	}
	var depthOf func(id string) int
	depthOf = func(id string) int {
		if d, ok := depth[id]; ok {
			return d
		}
		f, ok := byID[id]
		if !ok || f.ParentID == "" {
			depth[id] = 0
			return 0
		}
		d := depthOf(f.ParentID) + 1
		depth[id] = d
		return d
	}
	out := append([]*field.Field{}, fields...)
	for _, f := range out {
		depthOf(f.ID)
	}
	sort.SliceStable(out, func(i, j int) bool { return depth[out[i].ID] < depth[out[j].ID] })
	return out
}

// localTitleFor computes the local title a field's own dictionary should
// carry: the new fully-qualified name with the parent's new fully-qualified
// prefix stripped.
func localTitleFor(f *field.Field, byID map[string]*field.Field, decisions Decisions) string {
	newName := decisions[f.ID]
	parent, ok := byID[f.ParentID]
	if !ok || f.ParentID == "" {
		return newName
	}
	parentNewName, ok := decisions[parent.ID]
	if !ok {
		parentNewName = parent.Name
	}
	prefix := parentNewName + "."
	if strings.HasPrefix(newName, prefix) {
		return strings.TrimPrefix(newName, prefix)
	}
	return newName
}

// collectDependentRefs scans JavaScript action strings for literal
// substring references to oldName. A reference is a blocker only when the
// old name appears to be built dynamically (heuristically: the literal
// substring is absent but a shorter stem of the name is present); literal
// matches are rewritable, dynamic references block the rename.
func collectDependentRefs(oldName string, jsActions map[pdfmodel.ObjectID]string, calcOrder []string) []DependentRef {
	var refs []DependentRef
	for objID, src := range jsActions {
		if strings.Contains(src, oldName) {
			refs = append(refs, DependentRef{Kind: "javascript", ObjectRef: objID, Field: "JS"})
			continue
		}
		if looksDynamicallyReferenced(src, oldName) {
			refs = append(refs, DependentRef{
				Kind: "javascript", ObjectRef: objID, Field: "JS", Blocker: true,
				Reason: "field name likely computed dynamically, not a literal substring",
			})
		}
	}
	for _, name := range calcOrder {
		if name == oldName {
			refs = append(refs, DependentRef{Kind: "calculation_order", Field: "CO"})
		}
	}
	return refs
}

func looksDynamicallyReferenced(src, oldName string) bool {
	stem := oldName
	if idx := strings.LastIndex(stem, "."); idx >= 0 {
		stem = stem[idx+1:]
	}
	return stem != "" && strings.Contains(src, stem) && !strings.Contains(src, oldName)
}

func detectConflicts(mods []Modification) []ConflictIssue {
	seen := map[string]string{}
	var issues []ConflictIssue
	for _, m := range mods {
		if existing, ok := seen[m.NewName]; ok {
			issues = append(issues, ConflictIssue{
				FieldID: m.FieldID,
				Message: "new_name collides with field " + existing,
			})
			continue
		}
		seen[m.NewName] = m.FieldID
	}
	return issues
}

func safetyScore(plan *Plan, widgetRenames int) float64 {
	if len(plan.Modifications) == 0 {
		return 1.0
	}
	blockers := 0
	for _, m := range plan.Modifications {
		for _, dep := range m.DependentRefs {
			if dep.Blocker {
				blockers++
			}
		}
	}
	score := 1 - float64(blockers)/float64(len(plan.Modifications))
	if len(plan.Modifications) > largePlanThreshold {
		score -= largePlanPenalty
	}
	score -= float64(widgetRenames) * widgetRenamePenaltyEach
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}
