// Package field walks a document's AcroForm field tree into a flat,
// ordered list of Field records, resolving inherited attributes and
// expanding radio groups into a container plus widget children.
package field

import (
	"fmt"
	"strings"

	"github.com/wsekete/pdf-form-enrichment-tool/internal/pdferrors"
	"github.com/wsekete/pdf-form-enrichment-tool/internal/pdfmodel"
)

// Kind classifies the widget/field type of a Field.
type Kind string

const (
	KindText       Kind = "text"
	KindCheckbox   Kind = "checkbox"
	KindRadioGroup Kind = "radio_group"
	KindRadioWidget Kind = "radio_widget"
	KindChoice     Kind = "choice"
	KindSignature  Kind = "signature"
	KindUnknown    Kind = "unknown"
)

// Flag is one bit of the set-of-flags attribute on a Field.
type Flag string

const (
	FlagRequired   Flag = "required"
	FlagReadOnly   Flag = "readonly"
	FlagMultiline  Flag = "multiline"
	FlagPassword   Flag = "password"
	FlagRadio      Flag = "radio"
	FlagPushbutton Flag = "pushbutton"
	FlagCombo      Flag = "combo"
)

// Field flag bits from the PDF field-flags (Ff) word, ISO 32000-1 Table 221/226/228.
const (
	ffReadOnly   = 1 << 0
	ffRequired   = 1 << 1
	ffNoExport   = 1 << 2
	ffMultiline  = 1 << 12
	ffPassword   = 1 << 13
	ffNoToggleTo = 1 << 14
	ffRadio      = 1 << 15
	ffPushbutton = 1 << 16
	ffCombo      = 1 << 17
)

// Field is the flat record emitted for every logical field and widget.
type Field struct {
	ID              string
	Name            string
	Kind            Kind
	Page            int
	Rect            [4]float64
	HasRect         bool
	Value           interface{}
	Flags           map[Flag]bool
	ParentID        string
	ChildIDs        []string
	ExportValue     *string
	ObjectRef       pdfmodel.ObjectID
	IsGroupContainer bool

	// ft is the raw /FT token this field resolved to (its own, or
	// inherited from an ancestor), kept around so a Kids-less child can
	// inherit the same raw token rather than its parent's already
	// classified Kind.
	ft string
}

func (f *Field) HasFlag(fl Flag) bool { return f.Flags != nil && f.Flags[fl] }

// Extractor walks a Reader's AcroForm tree into the flat Field list.
type Extractor struct {
	reader         *pdfmodel.Reader
	errors         *pdferrors.Collection
	visited        map[pdfmodel.ObjectID]bool
	largeFormLimit int
	nextIndex      []int
	pageOf         map[pdfmodel.ObjectID]int
}

// pageIndex walks the document's page tree (Root/Pages, recursing through
// any intermediate Pages nodes) and returns each leaf page object's
// 1-based page number, so a widget's /P entry can be resolved to a page.
func pageIndex(r *pdfmodel.Reader) map[pdfmodel.ObjectID]int {
	idx := make(map[pdfmodel.ObjectID]int)
	n := 1
	var walk func(obj pdfmodel.Object)
	walk = func(obj pdfmodel.Object) {
		ref, isRef := obj.(*pdfmodel.IndirectRef)
		dict, ok := resolveRefDict(r, obj)
		if !ok {
			return
		}
		kids := dict.GetArray("Kids")
		if dict.GetName("Type") == "Pages" || kids.Len() > 0 {
			for i := 0; i < kids.Len(); i++ {
				walk(kids.Get(i))
			}
			return
		}
		if isRef {
			idx[ref.ID] = n
		}
		n++
	}
	walk(r.Catalog.Get("Pages"))
	return idx
}

func resolveRefDict(r *pdfmodel.Reader, obj pdfmodel.Object) (*pdfmodel.Dictionary, bool) {
	resolved, err := r.Resolve(obj)
	if err != nil {
		return nil, false
	}
	d, ok := resolved.(*pdfmodel.Dictionary)
	return d, ok
}

// Options configures Extract's guard-rail thresholds.
type Options struct {
	// LargeFormThreshold is the field count above which a LargeForm
	// warning is emitted; processing still continues. Default 1000.
	LargeFormThreshold int
}

// Extract walks r's AcroForm field tree and returns the flat Field list
// plus any non-fatal warnings/errors accumulated along the way.
func Extract(r *pdfmodel.Reader, opts Options) ([]*Field, *pdferrors.Collection, error) {
	if opts.LargeFormThreshold <= 0 {
		opts.LargeFormThreshold = 1000
	}
	ex := &Extractor{
		reader:         r,
		errors:         pdferrors.NewCollection(r.Path),
		visited:        make(map[pdfmodel.ObjectID]bool),
		largeFormLimit: opts.LargeFormThreshold,
		pageOf:         pageIndex(r),
	}

	acroFormObj := r.Catalog.Get("AcroForm")
	if acroFormObj.Type() == pdfmodel.TypeNull {
		return nil, ex.errors, nil
	}
	formDict, err := ex.resolveDict(acroFormObj)
	if err != nil {
		return nil, ex.errors, pdferrors.Wrap(pdferrors.KindPdfInvalid, err).WithContext("AcroForm")
	}

	fieldsArr := formDict.GetArray("Fields")
	var out []*Field
	for i := 0; i < fieldsArr.Len(); i++ {
		fields := ex.walk(fieldsArr.Get(i), nil, fmt.Sprintf("field_%04d", i))
		out = append(out, fields...)
	}

	if len(out) > ex.largeFormLimit {
		ex.errors.Add(pdferrors.New(pdferrors.KindLargeForm, "field count exceeds threshold").
			WithContext(fmt.Sprintf("%d fields, threshold %d", len(out), ex.largeFormLimit)))
	}

	return out, ex.errors, nil
}

// inherited carries the attributes a child resolves from its nearest
// ancestor when its own dictionary omits them.
type inherited struct {
	name  string
	kind  string // raw FT token, before Kind classification
	flags int64
}

func (ex *Extractor) walk(obj pdfmodel.Object, parent *Field, id string) []*Field {
	ref, isRef := obj.(*pdfmodel.IndirectRef)
	if isRef {
		if ex.visited[ref.ID] {
			ex.errors.Add(pdferrors.New(pdferrors.KindCircularField, "field cycle detected").
				WithObject(ref.ID.Number, ref.ID.Generation))
			return nil
		}
		ex.visited[ref.ID] = true
	}

	resolved, err := ex.reader.Resolve(obj)
	if err != nil {
		ex.errors.Add(pdferrors.Wrap(pdferrors.KindPdfInvalid, err).WithContext("resolving field"))
		return nil
	}
	dict, ok := resolved.(*pdfmodel.Dictionary)
	if !ok {
		if s, ok := resolved.(*pdfmodel.Stream); ok {
			dict = s.Dict
		} else {
			ex.errors.Add(pdferrors.New(pdferrors.KindPdfInvalid, "field object is not a dictionary"))
			return nil
		}
	}

	parentInherit := inherited{}
	var parentID string
	if parent != nil {
		parentInherit = inherited{name: parent.Name, kind: parent.ft, flags: flagsWord(parent.Flags)}
		parentID = parent.ID
	}

	localTitle := dict.GetString("T")
	rawKind := dict.GetName("FT")
	if rawKind == "" {
		rawKind = parentInherit.kind
	}
	flagsVal := dict.GetInt("Ff")
	if flagsVal == 0 {
		flagsVal = parentInherit.flags
	}

	fqName := localTitle
	if parentInherit.name != "" {
		if localTitle != "" {
			fqName = parentInherit.name + "." + localTitle
		} else {
			fqName = parentInherit.name
		}
	}

	f := &Field{
		ID:       id,
		Name:     fqName,
		ParentID: parentID,
		Flags:    flagsToSet(flagsVal),
		ft:       rawKind,
	}
	f.ObjectRef = refID(ref, isRef)

	if pageRef, ok := dict.Get("P").(*pdfmodel.IndirectRef); ok {
		f.Page = ex.pageOf[pageRef.ID]
	}
	if f.Page == 0 && parent != nil {
		f.Page = parent.Page
	}

	if dict.Has("Rect") {
		if rect, ok := parseRect(dict.GetArray("Rect")); ok {
			f.Rect = rect
			f.HasRect = true
		} else {
			ex.errors.Add(pdferrors.New(pdferrors.KindBadRect, "rect does not have four numeric entries").
				WithField(id))
		}
	}

	valueObj := dict.Get("V")
	if valueObj.Type() != pdfmodel.TypeNull {
		f.Value = scalarValue(valueObj)
	}

	kidsObj := dict.Get("Kids")
	hasKids := kidsObj.Type() != pdfmodel.TypeNull

	isRadio := flagsVal&ffRadio != 0
	isPush := flagsVal&ffPushbutton != 0
	isWidget := dict.GetName("Subtype") == "Widget"

	switch {
	case hasKids && rawKind == "Btn" && isRadio && !isPush:
		f.Kind = KindRadioGroup
		f.IsGroupContainer = true
		f.HasRect = false
	case hasKids:
		f.Kind = classify(rawKind, flagsVal)
		f.IsGroupContainer = true
		f.HasRect = false
	default:
		f.Kind = classify(rawKind, flagsVal)
		if parent != nil && parent.Kind == KindRadioGroup {
			f.Kind = KindRadioWidget
		}
	}

	// Kind must be settled before recursing: a widget kid with no /FT of
	// its own relies on parent.Kind == KindRadioGroup to classify as
	// KindRadioWidget rather than KindUnknown.
	var childFields []*Field
	if hasKids {
		kidsArr, err := ex.resolveArray(kidsObj)
		if err == nil {
			for i := 0; i < kidsArr.Len(); i++ {
				childID := fmt.Sprintf("%s_%d", id, i)
				childFields = append(childFields, ex.walk(kidsArr.Get(i), f, childID)...)
			}
		}
	}

	if f.Kind == KindRadioWidget || (isWidget && rawKind == "Btn" && isRadio) {
		ev := exportValue(dict)
		if ev != "" {
			f.ExportValue = &ev
			if parent != nil {
				f.Name = parent.Name + "__" + ev
			}
		}
	}

	for _, c := range childFields {
		f.ChildIDs = append(f.ChildIDs, c.ID)
	}

	result := append(childFields, f)
	return result
}

func refID(ref *pdfmodel.IndirectRef, isRef bool) pdfmodel.ObjectID {
	if isRef {
		return ref.ID
	}
	return pdfmodel.ObjectID{}
}

func classify(ft string, flags int64) Kind {
	switch ft {
	case "Tx":
		return KindText
	case "Btn":
		switch {
		case flags&ffPushbutton != 0:
			return KindUnknown // pushbuttons carry no renameable identity of their own kind set
		case flags&ffRadio != 0:
			return KindRadioWidget
		default:
			return KindCheckbox
		}
	case "Ch":
		return KindChoice
	case "Sig":
		return KindSignature
	default:
		return KindUnknown
	}
}

func flagsToSet(word int64) map[Flag]bool {
	set := map[Flag]bool{}
	if word&ffReadOnly != 0 {
		set[FlagReadOnly] = true
	}
	if word&ffRequired != 0 {
		set[FlagRequired] = true
	}
	if word&ffMultiline != 0 {
		set[FlagMultiline] = true
	}
	if word&ffPassword != 0 {
		set[FlagPassword] = true
	}
	if word&ffRadio != 0 {
		set[FlagRadio] = true
	}
	if word&ffPushbutton != 0 {
		set[FlagPushbutton] = true
	}
	if word&ffCombo != 0 {
		set[FlagCombo] = true
	}
	return set
}

func flagsWord(set map[Flag]bool) int64 {
	var w int64
	if set[FlagReadOnly] {
		w |= ffReadOnly
	}
	if set[FlagRequired] {
		w |= ffRequired
	}
	if set[FlagMultiline] {
		w |= ffMultiline
	}
	if set[FlagPassword] {
		w |= ffPassword
	}
	if set[FlagRadio] {
		w |= ffRadio
	}
	if set[FlagPushbutton] {
		w |= ffPushbutton
	}
	if set[FlagCombo] {
		w |= ffCombo
	}
	return w
}

func parseRect(arr *pdfmodel.Array) ([4]float64, bool) {
	if arr.Len() != 4 {
		return [4]float64{}, false
	}
	var out [4]float64
	for i := 0; i < 4; i++ {
		n, ok := arr.Get(i).(*pdfmodel.Number)
		if !ok {
			return [4]float64{}, false
		}
		out[i] = n.Float()
	}
	return out, true
}

func scalarValue(obj pdfmodel.Object) interface{} {
	switch v := obj.(type) {
	case *pdfmodel.String:
		return v.Value
	case *pdfmodel.Name:
		return v.Value
	case *pdfmodel.Number:
		return v.Value
	case *pdfmodel.Bool:
		return v.Value
	default:
		return nil
	}
}

// exportValue derives a radio/checkbox widget's export value from its
// appearance state (AS) when present and not an off-state, else from the
// first non-off key of its normal-appearance (AP/N) subdictionary.
func exportValue(dict *pdfmodel.Dictionary) string {
	as := dict.GetName("AS")
	if as != "" && !isOffState(as) {
		return as
	}

	ap := dict.Get("AP")
	apDict, ok := ap.(*pdfmodel.Dictionary)
	if !ok {
		return ""
	}
	n := apDict.Get("N")
	nDict, ok := n.(*pdfmodel.Dictionary)
	if !ok {
		return ""
	}
	for _, k := range nDict.Keys {
		if !isOffState(k) {
			return k
		}
	}
	return ""
}

func isOffState(s string) bool {
	return strings.EqualFold(s, "Off")
}

func (ex *Extractor) resolveDict(obj pdfmodel.Object) (*pdfmodel.Dictionary, error) {
	resolved, err := ex.reader.Resolve(obj)
	if err != nil {
		return nil, err
	}
	if d, ok := resolved.(*pdfmodel.Dictionary); ok {
		return d, nil
	}
	if s, ok := resolved.(*pdfmodel.Stream); ok {
		return s.Dict, nil
	}
	return nil, fmt.Errorf("expected dictionary, got %s", resolved.Type())
}

func (ex *Extractor) resolveArray(obj pdfmodel.Object) (*pdfmodel.Array, error) {
	resolved, err := ex.reader.Resolve(obj)
	if err != nil {
		return nil, err
	}
	if a, ok := resolved.(*pdfmodel.Array); ok {
		return a, nil
	}
	return nil, fmt.Errorf("expected array, got %s", resolved.Type())
}
