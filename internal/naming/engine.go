package naming

import (
	"fmt"
	"strings"
)

// Action classifies the decision made for a field's name.
type Action string

const (
	ActionPreserve    Action = "preserve"
	ActionImprove     Action = "improve"
	ActionRestructure Action = "restructure"
)

// Source identifies which stage of the pipeline produced a decision.
type Source string

const (
	SourceExactMatch     Source = "exact_match"
	SourceAdaptedPattern Source = "adapted_pattern"
	SourceRule           Source = "rule"
	SourceFallback       Source = "fallback"
)

// Decision is the result of naming a single field.
type Decision struct {
	Action       Action
	NewName      string
	Confidence   float64
	Source       Source
	Rationale    string
	Alternatives []string
}

// ExactMatch, SimilarMatch, and Pattern are the narrow shapes the engine
// needs from a training index; TrainingSource is satisfied by
// training.Adapter without this package importing the training package
// directly (training already imports naming for grammar validation, so a
// direct import back would cycle).
type ExactMatch struct {
	Name    string
	Support int
}

type SimilarMatch struct {
	Name    string
	Score   float64
	Support int
}

type Pattern struct {
	TriggerTokens []string
	Block         string
	Element       string
	ModifierHint  string
	Support       int
	Confidence    float64
}

// TrainingSource is the read-only view of the training store. The engine
// consults LookupExact and LookupSimilar at stages 1-2 of the generation
// pipeline; Patterns is part of the view but Decide does not call it.
type TrainingSource interface {
	LookupExact(label, section, kind string, pos [2]float64) []ExactMatch
	LookupSimilar(label, section, kind string, nearby []string, pos [2]float64, topK int) []SimilarMatch
	Patterns() []Pattern
}

// FieldInput is the (Field, FieldContext) pair the engine decides over,
// kept free of the field/fieldcontext package types so this package has
// no import-cycle exposure to the rest of the pipeline.
type FieldInput struct {
	ID           string
	CurrentName  string
	Kind         string
	Label        string
	NearbyText   []string
	Section      string
	PagePosition [2]float64
	IsGroup      bool
	GroupNewName string // set by the caller once the field's radio group has been decided
	ExportValue  string
}

const maxRetries = 5

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "of": true, "for": true, "and": true,
	"or": true, "to": true, "is": true, "your": true, "please": true,
}

// Decide runs the full per-field decision state machine: preservation
// analysis first, then (if not preserved/improved) the four-stage
// generation pipeline, then validation/uniqueness against taken.
// taken is mutated to include the field's assigned name before returning.
func Decide(in FieldInput, source TrainingSource, taken map[string]bool) Decision {
	var d Decision

	if in.CurrentName != "" {
		if d, ok := tryPreserve(in, source); ok {
			return finalize(d, in, taken)
		}
	}

	d = generate(in, source, taken)
	return finalize(d, in, taken)
}

func tryPreserve(in FieldInput, source TrainingSource) (Decision, bool) {
	if IsValid(in.CurrentName) {
		matches := source.LookupExact(in.Label, in.Section, in.Kind, in.PagePosition)
		for _, m := range matches {
			if m.Name == in.CurrentName && m.Support >= 1 {
				return Decision{
					Action: ActionPreserve, NewName: in.CurrentName, Confidence: 0.9,
					Source: SourceExactMatch, Rationale: "current name already BEM-valid and training-confirmed",
				}, true
			}
		}
	}
	if IsCasingOrUnderscoreViolationOnly(in.CurrentName) {
		return Decision{
			Action: ActionImprove, NewName: Normalize(in.CurrentName), Confidence: 0.6,
			Source: SourceRule, Rationale: "normalized casing/separator style, structure unchanged",
		}, true
	}
	return Decision{}, false
}

// generate runs the ordered four-stage pipeline, first success wins.
func generate(in FieldInput, source TrainingSource, taken map[string]bool) Decision {
	if d, ok := exactPatternMatch(in, source); ok {
		return d
	}
	if d, ok := similarityAdaptation(in, source, taken); ok {
		return d
	}
	if d, ok := ruleBased(in); ok {
		return d
	}
	return fallback(in)
}

func exactPatternMatch(in FieldInput, source TrainingSource) (Decision, bool) {
	matches := source.LookupExact(in.Label, in.Section, in.Kind, in.PagePosition)
	if len(matches) == 0 || matches[0].Support < 2 {
		return Decision{}, false
	}
	if len(matches) > 1 && matches[0].Support < 2*matches[1].Support {
		return Decision{}, false
	}
	return Decision{
		Action: ActionRestructure, NewName: matches[0].Name, Confidence: 0.9,
		Source: SourceExactMatch, Rationale: "dominant exact training match",
	}, true
}

func similarityAdaptation(in FieldInput, source TrainingSource, taken map[string]bool) (Decision, bool) {
	matches := source.LookupSimilar(in.Label, in.Section, in.Kind, in.NearbyText, in.PagePosition, 5)
	if len(matches) == 0 {
		return Decision{}, false
	}
	top := matches[0]
	name := top.Name
	if taken[name] {
		if token := contentToken(in.Label); token != "" {
			block, _, modifier := Split(name)
			name = Join(block, token, modifier)
		}
	}
	alts := make([]string, 0, len(matches)-1)
	for _, m := range matches[1:] {
		alts = append(alts, m.Name)
	}
	return Decision{
		Action: ActionRestructure, NewName: name, Confidence: 0.7,
		Source: SourceAdaptedPattern, Rationale: "adapted from similar training example",
		Alternatives: alts,
	}, true
}

// ruleBased evaluates the fixed semantic rule table, in order; first
// matching rule wins.
func ruleBased(in FieldInput) (Decision, bool) {
	text := strings.ToLower(in.Label + " " + strings.Join(in.NearbyText, " "))

	type rule struct {
		kind    string
		hasAny  []string
		newName string
	}
	rules := []rule{
		{kind: "text", hasAny: []string{"name"}, newName: "owner-information_name"},
		{kind: "text", hasAny: []string{"address"}, newName: "owner-information_address"},
		{kind: "text", hasAny: []string{"phone"}, newName: "contact_phone-number"},
		{kind: "signature", newName: "signatures_owner"},
		{kind: "text", hasAny: []string{"date"}, newName: "general_date"},
		{kind: "checkbox", hasAny: []string{"agree", "acknowledge", "consent"}, newName: "acknowledgment_agreement"},
	}

	for _, r := range rules {
		if r.kind != "" && r.kind != in.Kind {
			continue
		}
		if len(r.hasAny) > 0 && !containsAny(text, r.hasAny) {
			continue
		}
		return Decision{
			Action: ActionRestructure, NewName: r.newName, Confidence: 0.6,
			Source: SourceRule, Rationale: fmt.Sprintf("matched rule for kind=%s", in.Kind),
		}, true
	}

	if in.Kind == "radio_group" {
		block := contentToken(in.Label)
		if block == "" {
			block = "selection"
		}
		return Decision{
			Action: ActionRestructure, NewName: "selection_" + block, Confidence: 0.6,
			Source: SourceRule, Rationale: "radio group rule",
		}, true
	}

	return Decision{}, false
}

func fallback(in FieldInput) Decision {
	tail := contentToken(in.Label)
	if tail == "" {
		tail = Slugify(in.ID, 1)
	}
	name := fmt.Sprintf("form_%s__%s", safeSegment(in.Kind), tail)
	return Decision{
		Action: ActionRestructure, NewName: name, Confidence: 0.4,
		Source: SourceFallback, Rationale: "no training or rule match",
	}
}

func safeSegment(s string) string {
	out := Slugify(s, 1)
	if out == "" {
		return "field"
	}
	return out
}

// contentToken extracts a single stop-word-filtered token from label, for
// substitution into an element/tail segment.
func contentToken(label string) string {
	for _, tok := range strings.Fields(strings.ToLower(label)) {
		tok = strings.TrimRight(tok, ":,.;")
		if tok == "" || stopWords[tok] {
			continue
		}
		slug := Slugify(tok, 1)
		if slug != "" && !strings.HasPrefix(slug, "opt-") {
			return slug
		}
	}
	return ""
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// finalize runs validation/uniqueness checks, the group-prefix invariant
// for radio widgets, and a retry-bounded loop that repairs an invalid name
// or disambiguates a taken one (the generation stages are not re-run),
// then records the assigned name in taken.
func finalize(d Decision, in FieldInput, taken map[string]bool) Decision {
	if in.IsGroup {
		// Groups are assigned first by the caller's processing order; no
		// prefix constraint applies to the group itself.
	} else if in.GroupNewName != "" {
		prefix := in.GroupNewName + "__"
		if !strings.HasPrefix(d.NewName, prefix) {
			tail := in.ExportValue
			if tail == "" {
				tail = contentToken(in.Label)
			}
			slug := Slugify(tail, 1)
			d.NewName = prefix + slug
			d.Rationale += "; rewritten to satisfy group prefix invariant"
		}
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		if IsValid(d.NewName) && !taken[d.NewName] {
			break
		}
		if !IsValid(d.NewName) {
			d.NewName = repair(d.NewName)
			continue
		}
		d.NewName = Disambiguate(d.NewName, taken)
		d.Rationale += "; disambiguated for uniqueness"
	}

	if !IsValid(d.NewName) || taken[d.NewName] {
		d.NewName = Disambiguate(ensureValid(d.NewName), taken)
		d.Rationale += "; retry exhausted, suffix forced"
	}

	taken[d.NewName] = true
	return d
}

// repair coerces a grammar-invalid candidate into something valid enough
// to retry against: normalize casing/separators, fall back to a slugified
// single block if that still fails.
func repair(name string) string {
	normalized := Normalize(name)
	if IsValid(normalized) {
		return normalized
	}
	return ensureValid(name)
}

func ensureValid(name string) string {
	if IsValid(name) {
		return name
	}
	block, element, modifier := Split(Normalize(name))
	if block == "" || reservedBlocks[block] {
		block = "custom-field"
	}
	candidate := Join(block, element, modifier)
	if len(candidate) > maxNameLength {
		candidate = candidate[:maxNameLength]
	}
	if IsValid(candidate) {
		return candidate
	}
	return "custom-field"
}
