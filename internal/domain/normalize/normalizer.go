// Package normalize canonicalizes Korean clinical handover text: room
// mentions, bilingual terminology, time expressions, and the
// data-quality uncertainties a reviewer has to see. Normalization is
// deterministic so that audits can be reproduced from the raw transcript.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Normalizer canonicalizes raw segments against an immutable lexicon.
type Normalizer struct {
	lexicon *Lexicon
}

// NewNormalizer creates a Normalizer sharing the given lexicon. The
// lexicon must not be mutated after construction.
func NewNormalizer(lexicon *Lexicon) *Normalizer {
	return &Normalizer{lexicon: lexicon}
}

// Normalize canonicalizes each raw segment, order-preserving and 1:1.
// It is pure: the same input always yields byte-identical output.
func (n *Normalizer) Normalize(raw []RawSegment) []NormalizedSegment {
	out := make([]NormalizedSegment, 0, len(raw))
	for _, seg := range raw {
		text := canonWhitespace(seg.RawText)
		text = normalizeRooms(text)
		text = n.lexicon.Expand(text)
		text = normalizeTimes(text)
		out = append(out, NormalizedSegment{
			RawSegment:     seg,
			NormalizedText: text,
			Uncertainties:  n.detectUncertainties(seg.RawText, text),
		})
	}
	return out
}

var (
	reMultiSpace = regexp.MustCompile(`\s+`)
	rePunctRun   = regexp.MustCompile(`[,.!?]{2,}`)
)

func canonWhitespace(text string) string {
	text = strings.ReplaceAll(text, " ", " ")
	text = rePunctRun.ReplaceAllStringFunc(text, func(m string) string {
		return m[:1]
	})
	text = reMultiSpace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// -- Room mentions --

var (
	reSpacedRoom   = regexp.MustCompile(`\d(?: \d){2,3}\s*호`)
	reWordRoom     = regexp.MustCompile(`[공영일이삼사오육칠팔구]{3,4}\s*호`)
	reRoomKeyword  = regexp.MustCompile(`(\d{3,4})\s*(?:호실|병실|룸)`)
	reKeywordRoom  = regexp.MustCompile(`(?:병실|룸)\s*(\d{3,4})\s*호?`)
	reRoomSpaceSfx = regexp.MustCompile(`(\d{3,4})\s+호`)
)

var koreanDigits = map[rune]byte{
	'공': '0', '영': '0', '일': '1', '이': '2', '삼': '3', '사': '4',
	'오': '5', '육': '6', '칠': '7', '팔': '8', '구': '9',
}

// normalizeRooms collapses every room-mention surface form into the
// canonical "NNN호" shape so that downstream anchoring sees one token.
func normalizeRooms(text string) string {
	text = reSpacedRoom.ReplaceAllStringFunc(text, func(m string) string {
		var b strings.Builder
		for _, r := range m {
			if r >= '0' && r <= '9' {
				b.WriteRune(r)
			}
		}
		b.WriteString("호")
		return b.String()
	})
	text = reWordRoom.ReplaceAllStringFunc(text, func(m string) string {
		var b strings.Builder
		for _, r := range m {
			if d, ok := koreanDigits[r]; ok {
				b.WriteByte(d)
			}
		}
		b.WriteString("호")
		return b.String()
	})
	text = reRoomKeyword.ReplaceAllString(text, "${1}호")
	text = reKeywordRoom.ReplaceAllString(text, "${1}호")
	text = reRoomSpaceSfx.ReplaceAllString(text, "${1}호")
	return text
}

// -- Time expressions --

var (
	reAmPm       = regexp.MustCompile(`(\d{1,2})(?::(\d{2}))?\s*([AaPp])\.?[Mm]\.?`)
	reKoreanTime = regexp.MustCompile(`(새벽|아침|오전|오후|저녁|밤)?\s*(\d{1,2})\s*시(간)?(?:\s*(반|(\d{1,2})\s*분))?`)
)

// normalizeTimes rewrites clock expressions to 24-hour HH:MM form.
func normalizeTimes(text string) string {
	text = reAmPm.ReplaceAllStringFunc(text, func(m string) string {
		parts := reAmPm.FindStringSubmatch(m)
		hour, _ := strconv.Atoi(parts[1])
		minute := 0
		if parts[2] != "" {
			minute, _ = strconv.Atoi(parts[2])
		}
		if strings.EqualFold(parts[3], "p") && hour < 12 {
			hour += 12
		}
		if strings.EqualFold(parts[3], "a") && hour == 12 {
			hour = 0
		}
		return fmt.Sprintf("%02d:%02d", hour%24, minute)
	})
	text = reKoreanTime.ReplaceAllStringFunc(text, func(m string) string {
		parts := reKoreanTime.FindStringSubmatch(m)
		if parts[3] == "간" {
			// Duration ("3시간"), not a clock time.
			return m
		}
		hour, _ := strconv.Atoi(parts[2])
		if hour > 24 {
			return m
		}
		minute := 0
		if parts[4] == "반" {
			minute = 30
		} else if parts[5] != "" {
			minute, _ = strconv.Atoi(parts[5])
		}
		switch parts[1] {
		case "오후", "저녁", "밤":
			if hour < 12 {
				hour += 12
			}
		case "오전", "새벽", "아침":
			if hour == 12 {
				hour = 0
			}
		}
		prefix := ""
		if strings.HasPrefix(m, " ") {
			prefix = " "
		}
		return prefix + fmt.Sprintf("%02d:%02d", hour%24, minute)
	})
	return text
}
