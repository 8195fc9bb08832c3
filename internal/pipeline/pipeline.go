// Package pipeline wires the renaming stages together: PDF -> Field
// Extractor -> (Context Extractor, Modification Planner); Training Store
// pre-loaded; (Field Extractor, Context Extractor, Training Store) ->
// Name Engine -> Modification Planner -> Safe Modifier -> Output Emitter.
// It exposes analyze/plan/apply/rollback/process as a thin outer surface
// delegating to typed internal packages for every real decision, for any
// CLI or server wrapper to call.
package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wsekete/pdf-form-enrichment-tool/internal/field"
	"github.com/wsekete/pdf-form-enrichment-tool/internal/fieldcontext"
	"github.com/wsekete/pdf-form-enrichment-tool/internal/modify"
	"github.com/wsekete/pdf-form-enrichment-tool/internal/naming"
	"github.com/wsekete/pdf-form-enrichment-tool/internal/output"
	"github.com/wsekete/pdf-form-enrichment-tool/internal/pdferrors"
	"github.com/wsekete/pdf-form-enrichment-tool/internal/pdfmodel"
	"github.com/wsekete/pdf-form-enrichment-tool/internal/planner"
	"github.com/wsekete/pdf-form-enrichment-tool/internal/training"
)

// AnalyzeResult is Analyze's return shape.
type AnalyzeResult struct {
	Metadata Metadata
	Fields   []*field.Field
	Contexts map[string]*fieldcontext.Context
}

// Metadata is the subset of document facts worth surfacing to a caller
// before any decision is made.
type Metadata struct {
	Path       string
	Version    string
	FieldCount int
}

// ApplyResult is Apply's return shape.
type ApplyResult struct {
	ModifiedPath string
	MappingPath  string
	ReportPath   string
	BackupID     string
}

// ProcessResult is Process's return shape.
type ProcessResult struct {
	ModifiedPath string
	MappingPath  string
	ReportPath   string
}

// Pipeline bundles the shared, read-only Training Store every document
// run consults; it is loaded once and never mutated afterward.
type Pipeline struct {
	Training *training.Store
	Options  Options
}

// Options configures the pipeline's own cross-cutting thresholds, a
// subset of internal/config.Options the orchestration layer needs
// directly rather than through a caller-supplied value each call.
type Options struct {
	FieldOptions   field.Options
	ContextOptions fieldcontext.Options
	OutputDir      string
}

// New constructs a Pipeline around an already-loaded Training Store.
func New(store *training.Store, opts Options) *Pipeline {
	return &Pipeline{Training: store, Options: opts}
}

// Analyze parses the document, extracts fields, and derives context for
// every non-container field.
func (p *Pipeline) Analyze(path, passphrase string) (*AnalyzeResult, error) {
	r, err := pdfmodel.Open(path, passphrase)
	if err != nil {
		return nil, err
	}

	fields, errs, err := field.Extract(r, p.Options.FieldOptions)
	if err != nil {
		return nil, err
	}
	if errs.HasCritical() {
		return nil, pdferrors.New(pdferrors.KindPdfInvalid, "field extraction reported a critical error").WithContext(path)
	}

	ctxExtractor, err := fieldcontext.NewExtractor(path, p.Options.ContextOptions)
	if err != nil {
		return nil, err
	}

	contexts := make(map[string]*fieldcontext.Context, len(fields))
	for _, f := range fields {
		if f.IsGroupContainer {
			continue
		}
		ctx, err := ctxExtractor.ForField(path, f)
		if err != nil {
			continue
		}
		contexts[f.ID] = ctx
	}

	return &AnalyzeResult{
		Metadata: Metadata{Path: path, Version: r.Version, FieldCount: len(fields)},
		Fields:   fields,
		Contexts: contexts,
	}, nil
}

// decide runs the name engine over every non-widget field first, in
// document order, then over every radio widget, so a radio group's decision
// is available (as GroupNewName) before its widgets are decided.
func (p *Pipeline) decide(fields []*field.Field, contexts map[string]*fieldcontext.Context) map[string]naming.Decision {
	source := training.Adapter{Store: p.Training}
	byID := make(map[string]*field.Field, len(fields))
	for _, f := range fields {
		byID[f.ID] = f
	}

	taken := map[string]bool{}
	decisions := make(map[string]naming.Decision, len(fields))

	for _, f := range fields {
		if f.Kind == field.KindRadioWidget {
			continue // decided after their group, see below
		}
		decisions[f.ID] = p.decideOne(f, byID, decisions, contexts, source, taken)
	}
	for _, f := range fields {
		if f.Kind != field.KindRadioWidget {
			continue
		}
		decisions[f.ID] = p.decideOne(f, byID, decisions, contexts, source, taken)
	}
	return decisions
}

func (p *Pipeline) decideOne(f *field.Field, byID map[string]*field.Field, decisions map[string]naming.Decision, contexts map[string]*fieldcontext.Context, source naming.TrainingSource, taken map[string]bool) naming.Decision {
	in := naming.FieldInput{
		ID:          f.ID,
		CurrentName: f.Name,
		Kind:        string(f.Kind),
		IsGroup:     f.IsGroupContainer,
	}
	if ctx, ok := contexts[f.ID]; ok && ctx != nil {
		in.Label = ctx.Label
		in.NearbyText = ctx.NearbyText
		in.Section = ctx.SectionHeader
	}
	if f.HasRect {
		in.PagePosition = [2]float64{f.Rect[0], f.Rect[1]}
	}
	if f.ExportValue != nil {
		in.ExportValue = *f.ExportValue
	}
	if f.Kind == field.KindRadioWidget {
		if gd, ok := decisions[f.ParentID]; ok {
			in.GroupNewName = gd.NewName
		} else if parent, ok := byID[f.ParentID]; ok {
			in.GroupNewName = parent.Name
		}
	}
	return naming.Decide(in, source, taken)
}

// Plan decides every field's new name, then builds the ordered
// ModificationPlan over the object graph.
func (p *Pipeline) Plan(path, passphrase string) (*planner.Plan, map[string]naming.Decision, *AnalyzeResult, error) {
	analysis, err := p.Analyze(path, passphrase)
	if err != nil {
		return nil, nil, nil, err
	}

	decisions := p.decide(analysis.Fields, analysis.Contexts)
	plain := make(planner.Decisions, len(decisions))
	for id, d := range decisions {
		plain[id] = d.NewName
	}

	r, err := pdfmodel.Open(path, passphrase)
	if err != nil {
		return nil, nil, nil, err
	}
	jsActions, calcOrder := collectDependentReferenceSources(r, analysis.Fields)

	plan := planner.Build(analysis.Fields, plain, jsActions, calcOrder)
	if plan.SafetyScore < 0.5 {
		return plan, decisions, analysis, pdferrors.New(pdferrors.KindPlanBlocker, "safety score below threshold").WithContext(path)
	}
	return plan, decisions, analysis, nil
}

// collectDependentReferenceSources scans every indirect object for
// JavaScript action strings and the AcroForm's calculation order, so the
// planner can find literal name references elsewhere in the document.
func collectDependentReferenceSources(r *pdfmodel.Reader, fields []*field.Field) (map[pdfmodel.ObjectID]string, []string) {
	jsActions := make(map[pdfmodel.ObjectID]string)
	if r.XRef != nil {
		for num := range r.XRef.Entries {
			id := pdfmodel.ObjectID{Number: num}
			obj, err := r.Resolve(&pdfmodel.IndirectRef{ID: id})
			if err != nil {
				continue
			}
			dict, ok := obj.(*pdfmodel.Dictionary)
			if !ok {
				continue
			}
			if dict.GetName("S") == "JavaScript" {
				if js := dict.GetString("JS"); js != "" {
					jsActions[id] = js
				}
			}
		}
	}

	byRef := make(map[pdfmodel.ObjectID]string, len(fields))
	for _, f := range fields {
		if f.ObjectRef.IsValid() {
			byRef[f.ObjectRef] = f.Name
		}
	}

	var calcOrder []string
	acroForm := r.Catalog.Get("AcroForm")
	if formDict, ok, err := resolveDict(r, acroForm); err == nil && ok {
		co := formDict.GetArray("CO")
		for i := 0; i < co.Len(); i++ {
			if ref, ok := co.Get(i).(*pdfmodel.IndirectRef); ok {
				if name, ok := byRef[ref.ID]; ok {
					calcOrder = append(calcOrder, name)
				}
			}
		}
	}
	return jsActions, calcOrder
}

func resolveDict(r *pdfmodel.Reader, obj pdfmodel.Object) (*pdfmodel.Dictionary, bool, error) {
	resolved, err := r.Resolve(obj)
	if err != nil {
		return nil, false, err
	}
	d, ok := resolved.(*pdfmodel.Dictionary)
	return d, ok, nil
}

// Apply applies the plan under the lock/backup/validate protocol, then
// emits the modified document, mapping CSV, and report.
func (p *Pipeline) Apply(path, passphrase string, plan *planner.Plan, decisions map[string]naming.Decision, analysis *AnalyzeResult, outDir string) (*ApplyResult, error) {
	for _, m := range plan.Modifications {
		for _, dep := range m.DependentRefs {
			if dep.Blocker {
				return nil, pdferrors.New(pdferrors.KindPlanBlocker, "plan has a dependent reference that cannot be rewritten").WithField(m.FieldID).WithContext(path)
			}
		}
	}

	if outDir == "" {
		outDir = p.Options.OutputDir
	}
	if outDir == "" {
		outDir = filepath.Dir(path)
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	modifiedPath := filepath.Join(outDir, base+"_parsed.pdf")
	integrity, err := modify.Apply(path, modifiedPath, plan, passphrase)
	if err != nil {
		return nil, err
	}
	if integrity.Status == modify.StatusCritical {
		return nil, pdferrors.New(pdferrors.KindValidationFailure, "post-apply validation failed, changes rolled back").WithContext(path)
	}

	now := time.Now()
	rows := make([]output.MappingRow, 0, len(analysis.Fields))
	for i, f := range analysis.Fields {
		d := decisions[f.ID]
		rows = append(rows, output.BuildMappingRow(i+1, f, analysis.Contexts[f.ID], d, uuid.NewString(), i, base, now, now))
	}
	mappingPath := filepath.Join(outDir, base+"_mapping.csv")
	if err := writeFile(mappingPath, func(f *os.File) error { return output.WriteMappingCSV(f, rows) }); err != nil {
		return nil, err
	}

	report := output.BuildReport(path, now, analysis.Fields, analysis.Contexts, decisions, plan, integrity, nil)
	reportPath := filepath.Join(outDir, base+"_report.json")
	if err := writeFile(reportPath, func(f *os.File) error { return output.WriteReportJSON(f, report) }); err != nil {
		return nil, err
	}

	return &ApplyResult{
		ModifiedPath: modifiedPath,
		MappingPath:  mappingPath,
		ReportPath:   reportPath,
		BackupID:     integrity.Backup.BackupID,
	}, nil
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return pdferrors.Wrap(pdferrors.KindIoFailure, err).WithContext(path)
	}
	defer f.Close()
	return write(f)
}

// Rollback restores the original document from a prior run's backup.
func (p *Pipeline) Rollback(backup modify.BackupRecord) (string, error) {
	if err := modify.Rollback(backup); err != nil {
		return "", err
	}
	return backup.OriginalPath, nil
}

// Process bundles analyze+decide+plan+apply into a single call for the
// common case.
func (p *Pipeline) Process(path, passphrase, outDir string) (*ProcessResult, error) {
	plan, decisions, analysis, err := p.Plan(path, passphrase)
	if err != nil {
		return nil, err
	}
	result, err := p.Apply(path, passphrase, plan, decisions, analysis, outDir)
	if err != nil {
		return nil, err
	}
	return &ProcessResult{
		ModifiedPath: result.ModifiedPath,
		MappingPath:  result.MappingPath,
		ReportPath:   result.ReportPath,
	}, nil
}
