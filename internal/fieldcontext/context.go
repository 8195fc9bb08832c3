// Package fieldcontext extracts, per field, the nearby page text, a
// probable label, section header, visual grouping key, and a confidence
// score: the evidence the name engine and the training store key on.
package fieldcontext

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/wsekete/pdf-form-enrichment-tool/internal/field"
)

// TextRun is one positioned run of page text, in PDF user-space units with
// the origin at the bottom-left of the page (ledongthuc/pdf convention).
type TextRun struct {
	Text   string
	X, Y   float64
	Width  float64
	Height float64
}

func (r TextRun) centerX() float64 { return r.X + r.Width/2 }
func (r TextRun) centerY() float64 { return r.Y + r.Height/2 }

// Context is the per-field evidence record attached to a Field.
type Context struct {
	Label         string
	SectionHeader string
	NearbyText    []string
	TextAbove     string
	TextBelow     string
	TextLeft      string
	TextRight     string
	VisualGroup   string
	Confidence    float64
}

// Options configures the proximity/grid thresholds used when deriving a
// field's context.
type Options struct {
	ProximityInflate float64 // default 100
	GridSize         float64 // default 100
	MaxNearby        int     // default 10
}

func (o Options) withDefaults() Options {
	if o.ProximityInflate <= 0 {
		o.ProximityInflate = 100
	}
	if o.GridSize <= 0 {
		o.GridSize = 100
	}
	if o.MaxNearby <= 0 {
		o.MaxNearby = 10
	}
	return o
}

var labelIndicators = []string{"name", "address", "phone", "email", "date", "ssn", "amount", "signature"}
var sectionSuffixes = []string{"Information", "Section"}

// Extractor caches each page's text runs so repeated lookups for fields on
// the same page do not re-parse the page content stream.
type Extractor struct {
	opts  Options
	pages map[int][]TextRun
}

// NewExtractor opens path (again; independent of the pdfmodel.Reader used
// for field extraction, since ledongthuc/pdf owns its own file handle) and
// prepares an empty per-page cache populated lazily on first use.
func NewExtractor(path string, opts Options) (*Extractor, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return &Extractor{opts: opts.withDefaults(), pages: make(map[int][]TextRun)}, nil
}

// ForField computes the Context for a single non-container field. Callers
// should skip container fields; context derivation only applies to leaf
// fields and widgets.
func (e *Extractor) ForField(path string, f *field.Field) (*Context, error) {
	runs, err := e.pageRuns(path, f.Page)
	if err != nil {
		return nil, err
	}
	return buildContext(f.Rect, runs, e.opts), nil
}

func (e *Extractor) pageRuns(path string, page int) ([]TextRun, error) {
	if runs, ok := e.pages[page]; ok {
		return runs, nil
	}

	file, pdfReader, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if page < 1 || page > pdfReader.NumPage() {
		e.pages[page] = nil
		return nil, nil
	}

	p := pdfReader.Page(page)
	if p.V.IsNull() {
		e.pages[page] = nil
		return nil, nil
	}

	content := p.Content()
	runs := make([]TextRun, 0, len(content.Text))
	for _, t := range content.Text {
		runs = append(runs, TextRun{
			Text:   t.S,
			X:      t.X,
			Y:      t.Y,
			Width:  t.W,
			Height: t.FontSize,
		})
	}
	e.pages[page] = runs
	return runs, nil
}

func buildContext(rect [4]float64, runs []TextRun, opts Options) *Context {
	cx := (rect[0] + rect[2]) / 2
	cy := (rect[1] + rect[3]) / 2

	x1 := rect[0] - opts.ProximityInflate
	y1 := rect[1] - opts.ProximityInflate
	x2 := rect[2] + opts.ProximityInflate
	y2 := rect[3] + opts.ProximityInflate

	type scored struct {
		run  TextRun
		dist float64
	}
	var near []scored
	seen := map[string]bool{}
	for _, r := range runs {
		rcx, rcy := r.centerX(), r.centerY()
		if rcx < x1 || rcx > x2 || rcy < y1 || rcy > y2 {
			continue
		}
		trimmed := strings.TrimSpace(r.Text)
		if trimmed == "" || seen[trimmed] {
			continue
		}
		seen[trimmed] = true
		dx, dy := rcx-cx, rcy-cy
		near = append(near, scored{run: r, dist: dx*dx + dy*dy})
	}
	sort.Slice(near, func(i, j int) bool { return near[i].dist < near[j].dist })
	if len(near) > opts.MaxNearby {
		near = near[:opts.MaxNearby]
	}

	nearby := make([]string, 0, len(near))
	for _, s := range near {
		nearby = append(nearby, strings.TrimSpace(s.run.Text))
	}

	ctx := &Context{NearbyText: nearby}
	ctx.TextAbove = nearestDirectional(runs, rect, directionAbove)
	ctx.TextBelow = nearestDirectional(runs, rect, directionBelow)
	ctx.TextLeft = nearestDirectional(runs, rect, directionLeft)
	ctx.TextRight = nearestDirectional(runs, rect, directionRight)
	ctx.Label = deriveLabel(nearby, ctx.TextLeft)
	ctx.SectionHeader = deriveSectionHeader(runs, cy)
	ctx.VisualGroup = visualGroupKey(cx, cy, opts.GridSize)
	ctx.Confidence = confidence(ctx)
	return ctx
}

type direction int

const (
	directionAbove direction = iota
	directionBelow
	directionLeft
	directionRight
)

// nearestDirectional finds the nearest run in the given half-plane,
// requiring horizontal overlap for above/below and vertical overlap for
// left/right.
func nearestDirectional(runs []TextRun, rect [4]float64, dir direction) string {
	best := ""
	bestDist := -1.0
	for _, r := range runs {
		rcx, rcy := r.centerX(), r.centerY()
		var ok bool
		var dist float64
		switch dir {
		case directionAbove:
			ok = rcy > rect[3] && rcx >= rect[0] && rcx <= rect[2]
			dist = rcy - rect[3]
		case directionBelow:
			ok = rcy < rect[1] && rcx >= rect[0] && rcx <= rect[2]
			dist = rect[1] - rcy
		case directionLeft:
			ok = rcx < rect[0] && rcy >= rect[1] && rcy <= rect[3]
			dist = rect[0] - rcx
		case directionRight:
			ok = rcx > rect[2] && rcy >= rect[1] && rcy <= rect[3]
			dist = rcx - rect[2]
		}
		if !ok {
			continue
		}
		if bestDist < 0 || dist < bestDist {
			bestDist = dist
			best = strings.TrimSpace(r.Text)
		}
	}
	return best
}

func deriveLabel(nearby []string, textLeft string) string {
	for _, t := range nearby {
		if strings.HasSuffix(t, ":") {
			return t
		}
	}
	lower := func(s string) string { return strings.ToLower(s) }
	for _, t := range nearby {
		tl := lower(t)
		for _, ind := range labelIndicators {
			if strings.Contains(tl, ind) {
				return t
			}
		}
	}
	if textLeft != "" {
		return textLeft
	}
	if len(nearby) > 0 {
		return nearby[0]
	}
	return ""
}

// deriveSectionHeader scans for the nearest preceding run (at or above the
// field's vertical center, since PDF y grows upward and "preceding" reading
// order is higher-y) that is all-caps or ends with a recognized suffix.
func deriveSectionHeader(runs []TextRun, fieldCY float64) string {
	best := ""
	bestY := -1.0
	for _, r := range runs {
		trimmed := strings.TrimSpace(r.Text)
		if trimmed == "" || r.centerY() < fieldCY {
			continue
		}
		if !isSectionHeader(trimmed) {
			continue
		}
		if bestY < 0 || r.centerY() < bestY {
			bestY = r.centerY()
			best = trimmed
		}
	}
	return best
}

func isSectionHeader(s string) bool {
	if s == strings.ToUpper(s) && strings.ToLower(s) != strings.ToUpper(s) {
		return true
	}
	for _, suffix := range sectionSuffixes {
		if strings.HasSuffix(s, suffix) {
			return true
		}
	}
	return false
}

func visualGroupKey(cx, cy, grid float64) string {
	gx := int(cx / grid)
	gy := int(cy / grid)
	return fmt.Sprintf("%d_%d", gx, gy)
}

// confidence computes a weighted score clipped to [0, 1].
func confidence(ctx *Context) float64 {
	score := 0.3
	labelStrong := strings.HasSuffix(ctx.Label, ":") || matchesIndicator(ctx.Label)
	if ctx.Label != "" && labelStrong {
		score += 0.3
	}
	if len(ctx.NearbyText) >= 3 {
		score += 0.2
	}
	if ctx.SectionHeader != "" {
		score += 0.1
	}
	if ctx.TextAbove != "" || ctx.TextBelow != "" || ctx.TextLeft != "" || ctx.TextRight != "" {
		score += 0.1
	}
	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}

func matchesIndicator(label string) bool {
	lower := strings.ToLower(label)
	for _, ind := range labelIndicators {
		if strings.Contains(lower, ind) {
			return true
		}
	}
	return false
}
