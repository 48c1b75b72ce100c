package core

import (
	"strconv"
	"strings"
)

// HeaderNormalizer maps raw header names to canonical column keys.
type HeaderNormalizer struct {
	catalog *Catalog
}

// NewHeaderNormalizer creates a normalizer backed by c.
func NewHeaderNormalizer(c *Catalog) *HeaderNormalizer {
	return &HeaderNormalizer{catalog: c}
}

// Normalize returns the canonical key for a single header.
//
// An exact match in the alias table wins. Otherwise the first keyword from
// the keyword table found in the name decides. Everything else passes
// through trimmed.
func (n *HeaderNormalizer) Normalize(raw string) string {
	name := CleanCell(raw)
	if key, ok := n.catalog.LookupHeader(name); ok {
		return key
	}

	for _, rule := range n.catalog.keywords {
		if containsUnit(name, rule.Keyword) {
			return rule.Key
		}
	}
	return name
}

// containsUnit reports whether kw occurs in name. A keyword made of ASCII
// letters must stand alone, so "ms" matches "GCT (ms)" but not "Comments".
func containsUnit(name, kw string) bool {
	if !isASCIILetters(kw) {
		return strings.Contains(name, kw)
	}
	for from := 0; ; {
		i := strings.Index(name[from:], kw)
		if i < 0 {
			return false
		}
		i += from
		end := i + len(kw)
		if (i == 0 || !isASCIILetter(name[i-1])) && (end == len(name) || !isASCIILetter(name[end])) {
			return true
		}
		from = i + 1
	}
}

func isASCIILetters(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isASCIILetter(s[i]) {
			return false
		}
	}
	return s != ""
}

func isASCIILetter(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

// NormalizeAll normalizes a header row. Repeated keys get a numeric suffix
// ("avg_hr", "avg_hr_2") so every column stays addressable.
func (n *HeaderNormalizer) NormalizeAll(raw []string) []string {
	out := make([]string, len(raw))
	for i, h := range raw {
		out[i] = n.Normalize(h)
	}

	resolveLapTime(out)

	seen := make(map[string]int, len(out))
	for i, key := range out {
		seen[key]++
		if c := seen[key]; c > 1 {
			out[i] = key + "_" + strconv.Itoa(c)
		}
	}
	return out
}

// resolveLapTime handles English device exports, where the per-lap time
// column is just "Time". In a lap table it is the lap time.
func resolveLapTime(cols []string) {
	hasLap, hasLapTime := false, false
	for _, c := range cols {
		switch c {
		case ColLapNumber:
			hasLap = true
		case ColLapTime:
			hasLapTime = true
		}
	}
	if !hasLap || hasLapTime {
		return
	}
	for i, c := range cols {
		if strings.EqualFold(c, ColTime) {
			cols[i] = ColLapTime
			return
		}
	}
}
