// Package training holds the historical (context -> approved name)
// evidence and the derived NamingPattern catalog that the name engine
// consults during its generation pipeline.
package training

import (
	"sort"
	"strings"

	"github.com/wsekete/pdf-form-enrichment-tool/internal/naming"
	"github.com/wsekete/pdf-form-enrichment-tool/internal/pdferrors"
)

// Record is one normalized historical training example, as consumed by
// Load.
type Record struct {
	Label        string
	NearbyText   []string
	Section      string
	Kind         string
	PagePosition [2]float64 // normalized (x, y) in [0,1]
	ApprovedName string
}

// Fingerprint is the lowercased tuple lookup_exact keys on.
type Fingerprint struct {
	Label           string
	Section         string
	Kind            string
	HorizontalBand  int
	VerticalBand    int
}

// NamingPattern is the extracted pattern record exposed through Patterns.
// The name engine's rule-based stage uses its own fixed rule table and does
// not read this catalog.
type NamingPattern struct {
	TriggerTokens []string
	Block         string
	Element       string
	ModifierHint  string
	Support       int
	Confidence    float64
}

// Match is one (name, support) or (name, score) row returned by a lookup.
type Match struct {
	Name    string
	Support int
	Score   float64
}

// Adapter exposes a *Store as a naming.TrainingSource, translating this
// package's Match/NamingPattern shapes into the name engine's leaner
// ExactMatch/SimilarMatch/Pattern types. Kept separate from Store itself
// so the training package's own richer return types (carrying both
// Support and Score on one struct) don't leak into the name engine's
// narrower per-stage contracts.
type Adapter struct{ *Store }

func (a Adapter) LookupExact(label, section, kind string, pos [2]float64) []naming.ExactMatch {
	matches := a.Store.LookupExact(label, section, kind, pos)
	out := make([]naming.ExactMatch, len(matches))
	for i, m := range matches {
		out[i] = naming.ExactMatch{Name: m.Name, Support: m.Support}
	}
	return out
}

func (a Adapter) LookupSimilar(label, section, kind string, nearby []string, pos [2]float64, topK int) []naming.SimilarMatch {
	matches := a.Store.LookupSimilar(label, section, kind, nearby, pos, topK)
	out := make([]naming.SimilarMatch, len(matches))
	for i, m := range matches {
		out[i] = naming.SimilarMatch{Name: m.Name, Score: m.Score, Support: m.Support}
	}
	return out
}

func (a Adapter) Patterns() []naming.Pattern {
	patterns := a.Store.Patterns()
	out := make([]naming.Pattern, len(patterns))
	for i, p := range patterns {
		out[i] = naming.Pattern{
			TriggerTokens: p.TriggerTokens,
			Block:         p.Block,
			Element:       p.Element,
			ModifierHint:  p.ModifierHint,
			Support:       p.Support,
			Confidence:    p.Confidence,
		}
	}
	return out
}

const bandCount = 4 // quartile bands for fingerprinting and spatial similarity

// Store is the immutable-after-Load in-memory training index.
type Store struct {
	byFingerprint map[Fingerprint][]string
	records       []normalizedRecord
	patterns      []NamingPattern
	loaded        bool
}

type normalizedRecord struct {
	fp           Fingerprint
	tokens       map[string]bool
	section      string
	kind         string
	pos          [2]float64
	approvedName string
}

// New returns an empty store; call Load exactly once before use.
func New() *Store {
	return &Store{byFingerprint: make(map[Fingerprint][]string)}
}

// Load consumes the training records, discarding any whose ApprovedName
// fails the BEM grammar, and builds the fingerprint index and the
// NamingPattern catalog. The store is immutable after Load returns.
func (s *Store) Load(records []Record) (*pdferrors.Collection, error) {
	if s.loaded {
		return nil, pdferrors.New(pdferrors.KindTrainingCorrupt, "Load called more than once")
	}
	errs := pdferrors.NewCollection("training")

	patternHits := map[string]int{}
	fingerprintsObserved := 0

	for _, r := range records {
		if !naming.IsValid(r.ApprovedName) {
			errs.Add(pdferrors.New(pdferrors.KindNameGrammarViolation, "discarding training record").
				WithContext(r.ApprovedName))
			continue
		}

		fp := Fingerprint{
			Label:          normalize(r.Label),
			Section:        normalize(r.Section),
			Kind:           normalize(r.Kind),
			HorizontalBand: band(r.PagePosition[0]),
			VerticalBand:   band(r.PagePosition[1]),
		}
		s.byFingerprint[fp] = append(s.byFingerprint[fp], r.ApprovedName)
		fingerprintsObserved++

		tokens := tokenSet(r.Label, r.NearbyText)
		s.records = append(s.records, normalizedRecord{
			fp:           fp,
			tokens:       tokens,
			section:      normalize(r.Section),
			kind:         normalize(r.Kind),
			pos:          r.PagePosition,
			approvedName: r.ApprovedName,
		})

		block, element, modifier := naming.Split(r.ApprovedName)
		key := block + "/" + element
		patternHits[key]++
		s.patterns = append(s.patterns, NamingPattern{
			TriggerTokens: tokenSlice(tokens),
			Block:         block,
			Element:       element,
			ModifierHint:  modifier,
		})
	}

	if fingerprintsObserved > 0 {
		for i := range s.patterns {
			key := s.patterns[i].Block + "/" + s.patterns[i].Element
			s.patterns[i].Support = patternHits[key]
			s.patterns[i].Confidence = float64(patternHits[key]) / float64(fingerprintsObserved)
		}
	}

	s.loaded = true
	return errs, nil
}

// LookupExact returns (name, support) pairs whose fingerprint equals the
// given context's fingerprint, most-supported first.
func (s *Store) LookupExact(label, section, kind string, pos [2]float64) []Match {
	fp := Fingerprint{
		Label:          normalize(label),
		Section:        normalize(section),
		Kind:           normalize(kind),
		HorizontalBand: band(pos[0]),
		VerticalBand:   band(pos[1]),
	}
	names := s.byFingerprint[fp]
	counts := map[string]int{}
	for _, n := range names {
		counts[n]++
	}
	out := make([]Match, 0, len(counts))
	for n, c := range counts {
		out = append(out, Match{Name: n, Support: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Support != out[j].Support {
			return out[i].Support > out[j].Support
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// LookupSimilar ranks training records by a weighted similarity score:
// text (0.35) + spatial (0.20) + kind (0.15) + section (0.20) +
// visual-group/grid proximity (0.10).
func (s *Store) LookupSimilar(label, section, kind string, nearbyText []string, pos [2]float64, topK int) []Match {
	queryTokens := tokenSet(label, nearbyText)
	qSection := normalize(section)
	qKind := normalize(kind)

	type scoredName struct {
		name    string
		score   float64
		support int
	}
	best := map[string]scoredName{}

	for _, rec := range s.records {
		textSim := tokenOverlap(queryTokens, rec.tokens)
		spatial := 1 - clamp01(distance(pos, rec.pos)/1.4142135623730951)
		kindMatch := 0.0
		if qKind != "" && qKind == rec.kind {
			kindMatch = 1.0
		}
		sectionMatch := 0.0
		if qSection != "" && qSection == rec.section {
			sectionMatch = 1.0
		}
		visualMatch := 0.0
		if band(pos[0]) == band(rec.pos[0]) && band(pos[1]) == band(rec.pos[1]) {
			visualMatch = 1.0
		}

		score := 0.35*textSim + 0.20*spatial + 0.15*kindMatch + 0.20*sectionMatch + 0.10*visualMatch

		existing, ok := best[rec.approvedName]
		if !ok || score > existing.score {
			best[rec.approvedName] = scoredName{name: rec.approvedName, score: score, support: existing.support + 1}
		} else {
			existing.support++
			best[rec.approvedName] = existing
		}
	}

	out := make([]Match, 0, len(best))
	for _, v := range best {
		out = append(out, Match{Name: v.name, Score: v.score, Support: v.support})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Support > out[j].Support
	})
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}

// Patterns returns the extracted NamingPattern catalog.
func (s *Store) Patterns() []NamingPattern { return s.patterns }

func normalize(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func band(v float64) int {
	v = clamp01(v)
	b := int(v * float64(bandCount))
	if b >= bandCount {
		b = bandCount - 1
	}
	return b
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func distance(a, b [2]float64) float64 {
	dx, dy := a[0]-b[0], a[1]-b[1]
	return dx*dx + dy*dy
}

func tokenSet(label string, nearby []string) map[string]bool {
	set := map[string]bool{}
	for _, tok := range strings.Fields(normalize(label)) {
		set[tok] = true
	}
	for _, line := range nearby {
		for _, tok := range strings.Fields(normalize(line)) {
			set[tok] = true
		}
	}
	return set
}

func tokenSlice(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// tokenOverlap is a normalized token-set overlap (Jaccard-style): shared
// tokens over the size of the union.
func tokenOverlap(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	for t := range a {
		if b[t] {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}
