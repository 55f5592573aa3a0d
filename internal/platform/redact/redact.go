// Package redact holds the shared PHI redaction rule set used by both
// the segment-stream guard and the export-time sanitizer. Scanning is a
// pure function over the input text: every call returns an owned span
// list and no scanner state is shared between calls.
package redact

import (
	"regexp"
	"strings"
)

// Span is a half-open [Start, End) byte range within the scanned text.
type Span struct {
	Start int
	End   int
}

// Finding records one applied or detected redaction. Sample is a
// truncated, obfuscated preview of the match; the original cleartext is
// never stored.
type Finding struct {
	Type     string   `json:"type"`
	Start    int      `json:"start"`
	End      int      `json:"end"`
	Sample   string   `json:"sample"`
	Severity Severity `json:"severity"`
}

// Role titles that end in an honorific but are not patient names.
var honorificAllow = map[string]bool{
	"선생님":  true,
	"교수님":  true,
	"간호사님": true,
	"보호자님": true,
	"원장님":  true,
	"수선생님": true,
}

// FindAll returns every non-overlapping match of re in text as an owned
// span list, earliest-first.
func FindAll(re *regexp.Regexp, text string) []Span {
	idx := re.FindAllStringIndex(text, -1)
	if len(idx) == 0 {
		return nil
	}
	spans := make([]Span, 0, len(idx))
	for _, m := range idx {
		spans = append(spans, Span{Start: m[0], End: m[1]})
	}
	return spans
}

// Apply replaces every rule match in text with the Redacted token,
// recording one Finding per match. Rules run in order; each rule scans
// the text as left by the rules before it. Offsets in the returned
// findings refer to the text at the time the rule matched.
func Apply(text string, rules []Rule) (string, []Finding) {
	var findings []Finding
	for _, rule := range rules {
		spans := FindAll(rule.Pattern, text)
		if len(spans) == 0 {
			continue
		}
		var b strings.Builder
		b.Grow(len(text))
		prev := 0
		for _, s := range spans {
			matched := text[s.Start:s.End]
			if skipMatch(rule.Type, matched) {
				continue
			}
			findings = append(findings, Finding{
				Type:     rule.Type,
				Start:    s.Start,
				End:      s.End,
				Sample:   Preview(matched),
				Severity: rule.Severity,
			})
			b.WriteString(text[prev:s.Start])
			b.WriteString(Redacted)
			prev = s.End
		}
		b.WriteString(text[prev:])
		text = b.String()
	}
	return text, findings
}

// Scan detects rule matches without modifying the text. Used for the
// residual leak check over already-masked output.
func Scan(text string, rules []Rule) []Finding {
	var findings []Finding
	for _, rule := range rules {
		for _, s := range FindAll(rule.Pattern, text) {
			matched := text[s.Start:s.End]
			if skipMatch(rule.Type, matched) {
				continue
			}
			if strings.Contains(matched, Redacted) {
				continue
			}
			findings = append(findings, Finding{
				Type:     rule.Type,
				Start:    s.Start,
				End:      s.End,
				Sample:   Preview(matched),
				Severity: rule.Severity,
			})
		}
	}
	return findings
}

func skipMatch(ruleType, matched string) bool {
	if ruleType != "name_honorific" {
		return false
	}
	return honorificAllow[strings.TrimSpace(matched)]
}

// Preview obfuscates a matched value for audit trails: the first rune is
// kept, everything else becomes '*', capped at eight runes total.
func Preview(matched string) string {
	runes := []rune(matched)
	if len(runes) == 0 {
		return ""
	}
	n := len(runes)
	if n > 8 {
		n = 8
	}
	var b strings.Builder
	b.WriteRune(runes[0])
	for i := 1; i < n; i++ {
		b.WriteByte('*')
	}
	return b.String()
}
