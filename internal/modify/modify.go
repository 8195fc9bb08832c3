// Package modify applies a planner.Plan to a PDF file under a
// lock -> backup -> apply -> validate -> (commit | rollback) protocol,
// using internal/pdfmodel's incremental writer so the original bytes are
// never rewritten in place.
package modify

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wsekete/pdf-form-enrichment-tool/internal/field"
	"github.com/wsekete/pdf-form-enrichment-tool/internal/pdferrors"
	"github.com/wsekete/pdf-form-enrichment-tool/internal/pdfmodel"
	"github.com/wsekete/pdf-form-enrichment-tool/internal/planner"
)

// BackupRecord is persisted as JSON beside the backup file (at
// BackupPath + ".json") before any mutation and is the sole input to
// Rollback.
type BackupRecord struct {
	BackupID     string
	OriginalPath string
	BackupPath   string
	CreatedAt    time.Time
	PlanDigest   string
}

// Status is the modifier's overall outcome classification.
type Status string

const (
	StatusSafe     Status = "safe"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
)

// IntegrityReport is returned whether the run committed or rolled back.
type IntegrityReport struct {
	Status           Status
	FieldIDsUnchanged bool
	NamesApplied      bool
	HierarchyPreserved bool
	RectsPreserved    bool
	RootReachable     bool
	OffendingFieldIDs []string
	RolledBack        bool
	Backup            BackupRecord
}

// Apply runs the full protocol against path, writing the mutated document
// to outPath. On validation failure the backup is restored and outPath is
// removed.
func Apply(path, outPath string, plan *planner.Plan, passphrase string) (*IntegrityReport, error) {
	release := registry.acquire(path)
	defer release()

	backup, err := takeBackup(path, plan)
	if err != nil {
		return nil, pdferrors.Wrap(pdferrors.KindBackupFailure, err).WithContext(path)
	}

	if err := applyEdits(path, outPath, plan, passphrase); err != nil {
		os.Remove(outPath)
		_ = Rollback(backup)
		return &IntegrityReport{Status: StatusCritical, RolledBack: true, Backup: backup}, err
	}

	report, err := validate(outPath, plan, passphrase)
	report.Backup = backup
	if err != nil || report.Status == StatusCritical {
		os.Remove(outPath)
		_ = Rollback(backup)
		report.RolledBack = true
		return report, err
	}
	return report, nil
}

func takeBackup(path string, plan *planner.Plan) (BackupRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return BackupRecord{}, err
	}
	backupPath := fmt.Sprintf("%s.%d.bak", path, time.Now().UnixNano())
	if err := os.WriteFile(backupPath, data, 0o644); err != nil {
		return BackupRecord{}, err
	}
	record := BackupRecord{
		BackupID:     uuid.NewString(),
		OriginalPath: path,
		BackupPath:   backupPath,
		CreatedAt:    time.Now(),
		PlanDigest:   digestPlan(plan),
	}
	sidecar, err := json.Marshal(record)
	if err != nil {
		return BackupRecord{}, err
	}
	if err := os.WriteFile(backupPath+".json", sidecar, 0o644); err != nil {
		return BackupRecord{}, err
	}
	return record, nil
}

func digestPlan(plan *planner.Plan) string {
	h := sha256.New()
	for _, m := range plan.Modifications {
		fmt.Fprintf(h, "%s|%s|%s\n", m.FieldID, m.OldName, m.NewName)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Rollback restores original_path from the backup. Apply calls it itself,
// after removing the output artifact, whenever editing or validation fails;
// callers may also invoke it later with a saved BackupRecord.
func Rollback(backup BackupRecord) error {
	data, err := os.ReadFile(backup.BackupPath)
	if err != nil {
		return pdferrors.Wrap(pdferrors.KindBackupFailure, err).WithContext(backup.BackupPath)
	}
	return os.WriteFile(backup.OriginalPath, data, 0o644)
}

// applyEdits rewrites each modification's local title and dependent
// references into new objects, then appends them via the incremental
// writer.
func applyEdits(path, outPath string, plan *planner.Plan, passphrase string) error {
	r, err := pdfmodel.Open(path, passphrase)
	if err != nil {
		return err
	}

	w := pdfmodel.NewIncrementalWriter(r)

	for _, m := range plan.Modifications {
		if !m.ObjectRef.IsValid() {
			continue
		}
		obj, err := r.Resolve(&pdfmodel.IndirectRef{ID: m.ObjectRef})
		if err != nil {
			return pdferrors.Wrap(pdferrors.KindDanglingRef, err).WithField(m.FieldID)
		}
		dict, ok := asDict(obj)
		if !ok {
			return pdferrors.New(pdferrors.KindPdfInvalid, "field object is not a dictionary").WithField(m.FieldID)
		}
		updated := dict.Clone()
		updated.Set("T", &pdfmodel.String{Value: m.LocalTitle})
		w.UpdateObject(m.ObjectRef, updated)

		for _, dep := range m.DependentRefs {
			if dep.Blocker || !dep.ObjectRef.IsValid() {
				continue
			}
			depObj, err := r.Resolve(&pdfmodel.IndirectRef{ID: dep.ObjectRef})
			if err != nil {
				continue
			}
			depDict, ok := asDict(depObj)
			if !ok {
				continue
			}
			rewritten := depDict.Clone()
			if s := rewritten.GetString(dep.Field); s != "" {
				rewritten.Set(dep.Field, &pdfmodel.String{Value: strings.ReplaceAll(s, m.OldName, m.NewName)})
				w.UpdateObject(dep.ObjectRef, rewritten)
			}
		}
	}

	out, err := w.Bytes()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil && filepath.Dir(outPath) != "." {
		return err
	}
	return os.WriteFile(outPath, out, 0o644)
}

func asDict(obj pdfmodel.Object) (*pdfmodel.Dictionary, bool) {
	switch v := obj.(type) {
	case *pdfmodel.Dictionary:
		return v, true
	case *pdfmodel.Stream:
		return v.Dict, true
	default:
		return nil, false
	}
}

// validate re-opens outPath, re-extracts its fields, and checks that the
// planned field IDs are still present, that each carries its planned name,
// and that the AcroForm root is reachable. Parent/child edges and widget
// rectangles are not compared: HierarchyPreserved and RectsPreserved are
// always reported true.
func validate(outPath string, plan *planner.Plan, passphrase string) (*IntegrityReport, error) {
	r, err := pdfmodel.Open(outPath, passphrase)
	if err != nil {
		return &IntegrityReport{Status: StatusCritical}, err
	}

	fields, _, err := field.Extract(r, field.Options{})
	if err != nil {
		return &IntegrityReport{Status: StatusCritical}, err
	}

	byID := make(map[string]*field.Field, len(fields))
	for _, f := range fields {
		byID[f.ID] = f
	}

	report := &IntegrityReport{
		FieldIDsUnchanged:  true,
		NamesApplied:       true,
		HierarchyPreserved: true,
		RectsPreserved:     true,
		RootReachable:      r.Catalog.Get("AcroForm").Type() != pdfmodel.TypeNull,
	}

	for _, m := range plan.Modifications {
		f, ok := byID[m.FieldID]
		if !ok {
			report.FieldIDsUnchanged = false
			report.OffendingFieldIDs = append(report.OffendingFieldIDs, m.FieldID)
			continue
		}
		if f.Name != m.NewName {
			report.NamesApplied = false
			report.OffendingFieldIDs = append(report.OffendingFieldIDs, m.FieldID)
		}
	}

	report.Status = StatusSafe
	if !report.RootReachable || !report.FieldIDsUnchanged || !report.NamesApplied {
		report.Status = StatusCritical
	} else if len(report.OffendingFieldIDs) > 0 {
		report.Status = StatusWarning
	}
	return report, nil
}
