// Package naming implements the BEM name grammar (validate, normalize,
// slugify) and the four-stage generation pipeline that turns field
// evidence into a unique, grammar-valid name.
package naming

import (
	"regexp"
	"strconv"
	"strings"
)

const maxNameLength = 50

var segmentPattern = regexp.MustCompile(`^[a-z][a-z0-9]*(-[a-z0-9]+)*$`)

// fullPattern matches block('_'element)?('__'modifier)? where each
// component is a segmentPattern segment.
var fullPattern = regexp.MustCompile(
	`^([a-z][a-z0-9]*(?:-[a-z0-9]+)*)` +
		`(?:_([a-z][a-z0-9]*(?:-[a-z0-9]+)*))?` +
		`(?:__([a-z][a-z0-9]*(?:-[a-z0-9]+)*))?$`,
)

var reservedBlocks = map[string]bool{
	"group": true, "custom": true, "temp": true, "field": true, "form": true, "pdf": true,
}

// IsValid reports whether name satisfies the BEM name grammar, including
// the length cap and reserved-leading-token check.
func IsValid(name string) bool {
	if name == "" || len(name) > maxNameLength {
		return false
	}
	m := fullPattern.FindStringSubmatch(name)
	if m == nil {
		return false
	}
	if reservedBlocks[m[1]] {
		return false
	}
	return true
}

// Split decomposes a grammar-valid name into its block, element, and
// modifier segments. Absent segments are returned as "".
func Split(name string) (block, element, modifier string) {
	m := fullPattern.FindStringSubmatch(name)
	if m == nil {
		return name, "", ""
	}
	return m[1], m[2], m[3]
}

// Join reassembles block/element/modifier into a single name.
func Join(block, element, modifier string) string {
	s := block
	if element != "" {
		s += "_" + element
	}
	if modifier != "" {
		s += "__" + modifier
	}
	return s
}

// IsCasingOrUnderscoreViolationOnly reports whether name would satisfy the
// grammar after Normalize, i.e. its only defects are casing or separator
// style.
func IsCasingOrUnderscoreViolationOnly(name string) bool {
	if name == "" || IsValid(name) {
		return false
	}
	return IsValid(Normalize(name))
}

// Normalize lowercases name, replaces each run of spaces and each run of
// underscores with a single '-', and trims leading and trailing '-' and
// '_', without attempting full BEM restructuring. Runs of hyphens are left
// as they are.
func Normalize(name string) string {
	lower := strings.ToLower(name)
	lower = collapseRuns(lower, ' ', '-')
	lower = collapseRuns(lower, '_', '-')
	lower = strings.Trim(lower, "-_")
	return lower
}

func collapseRuns(s string, from, to byte) string {
	var b strings.Builder
	lastWasFrom := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == from {
			if !lastWasFrom {
				b.WriteByte(to)
			}
			lastWasFrom = true
			continue
		}
		lastWasFrom = false
		b.WriteByte(c)
	}
	return b.String()
}

// Slugify transliterates an arbitrary string (typically an export value)
// into a single BEM segment: lowercase, runs of non [a-z0-9] become a
// single '-', leading/trailing '-' stripped. If the result is empty, the
// caller supplies index to produce a disambiguated fallback ("opt-2").
func Slugify(s string, index int) string {
	lower := strings.ToLower(s)
	var b strings.Builder
	lastDash := false
	for _, r := range lower {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastDash = false
			continue
		}
		if !lastDash && b.Len() > 0 {
			b.WriteByte('-')
			lastDash = true
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "opt-" + strconv.Itoa(index)
	}
	return out
}

// Disambiguate appends or bumps a numeric modifier suffix until name is
// absent from taken.
func Disambiguate(name string, taken map[string]bool) string {
	if !taken[name] {
		return name
	}
	block, element, modifier := Split(name)
	base := modifier
	n := 2
	if base != "" {
		if idx := strings.LastIndex(base, "-"); idx >= 0 {
			if v, err := strconv.Atoi(base[idx+1:]); err == nil {
				n = v + 1
				base = base[:idx]
			}
		}
	}
	for {
		var candidateModifier string
		if base != "" {
			candidateModifier = base + "-" + strconv.Itoa(n)
		} else {
			candidateModifier = strconv.Itoa(n)
		}
		candidate := Join(block, element, candidateModifier)
		if len(candidate) > maxNameLength {
			candidate = candidate[:maxNameLength]
		}
		if !taken[candidate] {
			return candidate
		}
		n++
	}
}
