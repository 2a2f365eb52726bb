package risk

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	snippetContext = 40
	snippetMax     = 160
	redacted       = "REDACTED"
)

var cardCandidate = regexp.MustCompile(`\b\d(?:[ -]?\d){12,18}\b`)

// luhnValid checks the card number checksum of a digit string.
func luhnValid(digits string) bool {
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if d < 0 || d > 9 {
			return false
		}
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// maskCard keeps separators and the last four digits.
func maskCard(s string) string {
	keep := len(digitsOf(s)) - 4
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			if keep > 0 {
				b.WriteByte('*')
				keep--
				continue
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}

// span byte range within a line holding sensitive content
type span struct {
	start, end  int
	replacement string
}

// cardSpans finds Luhn-valid card numbers on a line.
func cardSpans(line string) []span {
	var out []span
	for _, loc := range cardCandidate.FindAllStringIndex(line, -1) {
		raw := line[loc[0]:loc[1]]
		if !luhnValid(digitsOf(raw)) {
			continue
		}
		out = append(out, span{start: loc[0], end: loc[1], replacement: maskCard(raw)})
	}
	return out
}

// secretSpans locates each detected secret on a line.
func secretSpans(line string, secrets []string) []span {
	var out []span
	for _, s := range secrets {
		if s == "" {
			continue
		}
		from := 0
		for {
			i := strings.Index(line[from:], s)
			if i < 0 {
				break
			}
			out = append(out, span{start: from + i, end: from + i + len(s), replacement: redacted})
			from += i + len(s)
		}
	}
	return out
}

// snippet cuts a bounded window around [start,end) and rewrites every
// sensitive span that falls inside it.
func snippet(line string, start, end int, spans []span) string {
	lo := runeOffset(line, start, -snippetContext)
	hi := runeOffset(line, end, snippetContext)

	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	var b strings.Builder
	pos := lo
	for _, sp := range spans {
		if sp.end <= pos || sp.start >= hi {
			continue
		}
		if sp.start > pos {
			b.WriteString(line[pos:sp.start])
		}
		b.WriteString(partial(sp, max(pos, sp.start), min(hi, sp.end)))
		pos = min(hi, sp.end)
	}
	if pos < hi {
		b.WriteString(line[pos:hi])
	}

	out := strings.TrimSpace(b.String())
	if utf8.RuneCountInString(out) > snippetMax {
		out = string([]rune(out)[:snippetMax])
	}
	return out
}

// partial returns the replacement for the part [from,to) of sp. Length
// preserving replacements are cut to the same part, others are emitted whole.
func partial(sp span, from, to int) string {
	if len(sp.replacement) != sp.end-sp.start {
		return sp.replacement
	}
	return sp.replacement[from-sp.start : to-sp.start]
}

// runeOffset moves n runes from byte offset i, clamped to the line.
func runeOffset(s string, i, n int) int {
	for ; n < 0 && i > 0; n++ {
		_, size := utf8.DecodeLastRuneInString(s[:i])
		i -= size
	}
	for ; n > 0 && i < len(s); n-- {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return i
}
