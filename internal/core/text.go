package core

import (
	"strings"
	"unicode/utf8"
)

// latinDominanceRatio is the share of sub-U+0100 runes above which text
// with any non-ASCII rune is treated as single-byte mojibake.
const latinDominanceRatio = 0.7

// IsPlausibleText reports whether s reads as correctly decoded text.
//
// Text is implausible when it contains a known garbled fragment, when it is
// mostly Latin-1 range runes yet not pure ASCII, when the same non-ASCII rune
// repeats three times in a row, or when it carries replacement characters,
// surrogates or out-of-range code points. Empty text is plausible.
func (c *Catalog) IsPlausibleText(s string) bool {
	for _, frag := range c.fragments {
		if strings.Contains(s, frag) {
			return false
		}
	}

	var (
		total, low int
		nonASCII   bool
		prev       rune = -1
		run        int
	)
	for _, r := range s {
		if r == utf8.RuneError || r > utf8.MaxRune || (r >= 0xD800 && r <= 0xDFFF) {
			return false
		}
		total++
		if r < 0x100 {
			low++
		}
		if r > 0x7F {
			nonASCII = true
			if r == prev {
				run++
				if run >= 3 {
					return false
				}
			} else {
				run = 1
			}
		} else {
			run = 0
		}
		prev = r
	}

	if nonASCII && float64(low)/float64(total) > latinDominanceRatio {
		return false
	}
	return true
}

// garbledColumns returns the raw header names that fail IsPlausibleText.
func (c *Catalog) garbledColumns(raw []string) []string {
	var out []string
	for _, name := range raw {
		if !c.IsPlausibleText(name) {
			out = append(out, name)
		}
	}
	return out
}
