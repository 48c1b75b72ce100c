package core

// encoding.go detects the text encoding of an uploaded buffer.
//
// Detection order:
//  1. Byte-order mark (unconditional)
//  2. Scored trial decode over the candidate list, earlier candidates win ties
//  3. Pure-ASCII input returns the first candidate
//  4. Statistical detection, accepted only when confident and plausible
//  5. utf-8

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Encoding names reported by the detector.
const (
	EncShiftJIS   = "shift_jis"
	EncCP932      = "cp932"
	EncUTF8Sig    = "utf-8-sig"
	EncUTF8       = "utf-8"
	EncEUCJP      = "euc-jp"
	EncISO2022JP  = "iso-2022-jp"
	EncUTF16LE    = "utf-16-le"
	EncUTF16BE    = "utf-16-be"
	defaultEncode = EncUTF8
)

// codecs maps detector names to decoders. cp932 is Shift_JIS with the
// Microsoft extensions, which x/text's ShiftJIS already includes.
var codecs = map[string]encoding.Encoding{
	EncShiftJIS:  japanese.ShiftJIS,
	EncCP932:     japanese.ShiftJIS,
	EncUTF8Sig:   unicode.UTF8BOM,
	EncUTF8:      unicode.UTF8,
	EncEUCJP:     japanese.EUCJP,
	EncISO2022JP: japanese.ISO2022JP,
	EncUTF16LE:   unicode.UTF16(unicode.LittleEndian, unicode.UseBOM),
	EncUTF16BE:   unicode.UTF16(unicode.BigEndian, unicode.UseBOM),
}

// candidateOrder is the trial-decode priority list.
var candidateOrder = []string{EncShiftJIS, EncCP932, EncUTF8Sig, EncUTF8, EncEUCJP, EncISO2022JP}

// htmlindex canonical names that differ from ours.
var htmlindexNames = map[string]string{
	"utf-16le": EncUTF16LE,
	"utf-16be": EncUTF16BE,
}

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

var (
	errUnknownEncoding = errors.New("unknown encoding")
	errInvalidBytes    = errors.New("invalid byte sequence")
)

// CandidateEncodings returns the trial-decode priority list.
func CandidateEncodings() []string {
	return append([]string(nil), candidateOrder...)
}

// resolveEncoding maps a user or library supplied name to a decoder.
// Our own names are tried first, then the WHATWG index.
func resolveEncoding(name string) (string, encoding.Encoding, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if enc, ok := codecs[key]; ok {
		return key, enc, nil
	}
	if alt := strings.ReplaceAll(key, "_", "-"); alt != key {
		if enc, ok := codecs[alt]; ok {
			return alt, enc, nil
		}
	}

	enc, err := htmlindex.Get(key)
	if err != nil {
		enc, err = htmlindex.Get(strings.ReplaceAll(key, "-", ""))
	}
	if err != nil {
		return "", nil, fmt.Errorf("%w: %q", errUnknownEncoding, name)
	}
	canon, err := htmlindex.Name(enc)
	if err != nil {
		canon = key
	}
	if mapped, ok := htmlindexNames[canon]; ok {
		canon = mapped
	}
	return canon, enc, nil
}

// decodeStrict decodes data and fails on any byte sequence the codec
// cannot map. x/text decoders substitute U+FFFD for such bytes, so a
// replacement character in the output is the hard error.
func decodeStrict(name string, data []byte) (string, error) {
	canon, enc, err := resolveEncoding(name)
	if err != nil {
		return "", err
	}
	if canon == EncUTF8 && !utf8.Valid(data) {
		return "", fmt.Errorf("decode %s: %w", canon, errInvalidBytes)
	}

	out, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", canon, err)
	}
	if bytes.ContainsRune(out, utf8.RuneError) {
		return "", fmt.Errorf("decode %s: %w", canon, errInvalidBytes)
	}
	return string(out), nil
}

// detectBOM returns the encoding implied by a byte-order mark.
func detectBOM(data []byte) (string, bool) {
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		return EncUTF8Sig, true
	case bytes.HasPrefix(data, bomUTF16LE):
		return EncUTF16LE, true
	case bytes.HasPrefix(data, bomUTF16BE):
		return EncUTF16BE, true
	}
	return "", false
}

// EncodingDetector picks the most likely encoding of a raw buffer.
type EncodingDetector struct {
	catalog    *Catalog
	heuristics *Heuristics
	logger     *slog.Logger
}

// NewEncodingDetector creates a detector. A nil logger uses slog.Default().
func NewEncodingDetector(c *Catalog, h *Heuristics, logger *slog.Logger) *EncodingDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &EncodingDetector{catalog: c, heuristics: h, logger: logger}
}

// Detect returns the encoding name for data. It never fails; the worst
// case is "utf-8".
func (d *EncodingDetector) Detect(data []byte) string {
	if len(data) == 0 {
		return defaultEncode
	}
	if name, ok := detectBOM(data); ok {
		d.logger.Debug("encoding from BOM", "encoding", name)
		return name
	}

	candidates := d.Candidates(data)
	var best *EncodingCandidate
	for i := range candidates {
		if best == nil || candidates[i].Score > best.Score {
			best = &candidates[i]
		}
	}
	if best != nil && best.Score > 0 {
		d.logger.Debug("encoding from trial decode", "encoding", best.Name, "score", best.Score)
		return best.Name
	}

	if isASCII(data) {
		return candidateOrder[0]
	}

	if name, ok := d.statistical(data); ok {
		d.logger.Debug("encoding from statistical detection", "encoding", name)
		return name
	}

	d.logger.Debug("encoding detection fell back to default", "encoding", defaultEncode)
	return defaultEncode
}

// Candidates trial-decodes data with every candidate in priority order and
// returns the ones that decoded cleanly, with their scores.
func (d *EncodingDetector) Candidates(data []byte) []EncodingCandidate {
	var out []EncodingCandidate
	for _, name := range candidateOrder {
		text, err := decodeStrict(name, data)
		if err != nil {
			continue
		}
		sample := truncateRunes(text, d.heuristics.SampleChars)
		out = append(out, EncodingCandidate{
			Name:   name,
			Score:  d.Score(sample),
			Sample: sample,
		})
	}
	return out
}

// Score rates how much a decoded sample looks like correct Japanese text.
func (d *EncodingDetector) Score(sample string) int {
	h := d.heuristics
	score := 0

	var total, low int
	nonASCII := false
	for _, r := range sample {
		total++
		if r < 0x100 {
			low++
		}
		if r > 0x7F {
			nonASCII = true
			score += h.NonASCIIWeight
		}
	}

	for _, name := range d.catalog.KnownHeaders() {
		score += strings.Count(sample, name) * h.KnownHeaderBonus
	}
	for _, frag := range d.catalog.GarbledFragments() {
		score -= strings.Count(sample, frag) * h.GarbledPenalty
	}

	if nonASCII && total > 0 && float64(low)/float64(total) > h.LatinDominanceRatio {
		score -= h.LatinDominancePenalty
	}
	return score
}

// statistical asks chardet for a guess and keeps it only when the guess
// is confident and its first decoded line reads as plausible text.
func (d *EncodingDetector) statistical(data []byte) (string, bool) {
	result, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil || result == nil {
		return "", false
	}
	if float64(result.Confidence)/100 <= d.heuristics.StatisticalMinConf {
		return "", false
	}

	name, _, err := resolveEncoding(result.Charset)
	if err != nil {
		d.logger.Debug("statistical guess not supported", "charset", result.Charset)
		return "", false
	}
	text, err := decodeStrict(name, data)
	if err != nil {
		return "", false
	}
	sample := truncateRunes(text, d.heuristics.SampleChars)
	if !d.catalog.IsPlausibleText(firstLine(sample)) {
		return "", false
	}
	return name, true
}

func isASCII(data []byte) bool {
	for _, b := range data {
		if b >= 0x80 {
			return false
		}
	}
	return true
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimRight(s, "\r")
}
