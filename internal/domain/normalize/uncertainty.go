package normalize

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	taskHintTerms = []string{"오더", "재측정", "확인", "투약", "드레싱", "체크", "검사", "예정", "추후", "처치", "보고", "팔로우"}
	completedCues = []string{"했습니다", "했음", "완료", "끝났", "마쳤", "드렸", "됐습니다", "되었습니다", "시행함"}

	vitalTopicTerms = []string{"혈압", "혈당", "체온", "산소포화도", "심박수", "호흡수", "소변량", "맥박", "통증점수", "배액량"}
	qualitativeCues = []string{"안정", "정상", "양호", "특이사항 없", "이상 없", "무증상", "괜찮"}

	hedgeCues = []string{"미기재", "불명", "애매", "모호", "불확실", "확인 안", "잘 모르", "기억이 안"}

	reClockTime  = regexp.MustCompile(`\d{1,2}:\d{2}`)
	reAbbrevTok  = regexp.MustCompile(`[A-Za-z][A-Za-z0-9-]{1,9}`)
	reDigit      = regexp.MustCompile(`\d`)
)

// confusablePair describes an abbreviation with two competing clinical
// readings. The surrounding context decides the reading; when keyword
// hits land on both readings or on neither, the token is flagged for a
// human.
type confusablePair struct {
	token string
	aKeys []string
	bKeys []string
}

var confusablePairs = []confusablePair{
	{token: "HR", aKeys: []string{"심박", "맥박", "빈맥", "서맥", "부정맥", "bpm"}, bKeys: []string{"호흡", "산소포화도", "객담", "천명", "흡인", "기침"}},
	{token: "RR", aKeys: []string{"호흡", "산소포화도", "객담", "천명", "흡인"}, bKeys: []string{"심박", "맥박", "빈맥", "서맥"}},
	{token: "DC", aKeys: []string{"퇴원", "퇴실", "전원"}, bKeys: []string{"중단", "중지", "오더", "약"}},
	{token: "Cr", aKeys: []string{"크레아티닌", "신장", "콩팥", "투석", "BUN"}, bKeys: []string{"염증", "감염", "항생제", "발열"}},
	{token: "PR", aKeys: []string{"맥박", "심박", "분당"}, bKeys: []string{"필요시", "진통제", "투약", "처방"}},
	{token: "PE", aKeys: []string{"색전", "호흡곤란", "흉통", "항응고"}, bKeys: []string{"심정지", "맥박 없", "CPR", "제세동"}},
}

// contextWindow is how far around a token (in runes) the confusable
// check scans for reading keywords.
const contextWindow = 24

func (n *Normalizer) detectUncertainties(rawText, normalizedText string) []Uncertainty {
	var out []Uncertainty
	seen := make(map[string]bool)
	add := func(kind UncertaintyKind, reason string) {
		key := string(kind) + "|" + reason
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, Uncertainty{Kind: kind, Reason: reason})
	}

	if containsAny(normalizedText, taskHintTerms) &&
		!hasTimeExpression(normalizedText) &&
		!containsAny(normalizedText, completedCues) {
		add(UncertaintyMissingTime, "작업 지시에 시간 정보가 없습니다")
	}

	if topic, ok := vitalTopicWithoutValue(normalizedText); ok &&
		!containsAny(normalizedText, qualitativeCues) {
		add(UncertaintyMissingValue, fmt.Sprintf("%s 언급에 수치가 없습니다", topic))
	}

	for _, tok := range reAbbrevTok.FindAllString(normalizedText, -1) {
		if !isAbbrevCandidate(tok) {
			continue
		}
		if n.lexicon.KnownAbbreviation(tok) {
			continue
		}
		add(UncertaintyUnresolvedAbbreviation, fmt.Sprintf("알 수 없는 약어: %s", tok))
	}

	for _, pair := range confusablePairs {
		for _, span := range tokenSpans(normalizedText, pair.token) {
			ctx := runeWindow(normalizedText, span, contextWindow)
			aHit := containsAny(ctx, pair.aKeys)
			bHit := containsAny(ctx, pair.bKeys)
			if aHit == bHit {
				add(UncertaintyConfusableAbbreviation, fmt.Sprintf("약어 %s 해석이 모호합니다", pair.token))
			}
		}
	}

	if containsAny(rawText, hedgeCues) {
		add(UncertaintyManualReview, "원문에 불확실 표현이 있습니다")
	}

	return out
}

func containsAny(text string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

func hasTimeExpression(text string) bool {
	return reClockTime.MatchString(text) || strings.Contains(text, "시 ") ||
		strings.HasSuffix(text, "시") || strings.Contains(text, "분 후")
}

// vitalTopicWithoutValue reports the first vital/lab topic term that has
// no numeric value within a short window after it.
func vitalTopicWithoutValue(text string) (string, bool) {
	for _, topic := range vitalTopicTerms {
		idx := strings.Index(text, topic)
		if idx < 0 {
			continue
		}
		tail := text[idx+len(topic):]
		window := tail
		if r := []rune(tail); len(r) > 16 {
			window = string(r[:16])
		}
		if !reDigit.MatchString(window) {
			return topic, true
		}
	}
	return "", false
}

// isAbbrevCandidate reports whether a token looks like a clinical
// abbreviation: at least two characters, every letter uppercase,
// optionally digit-bearing.
func isAbbrevCandidate(tok string) bool {
	if len(tok) < 2 {
		return false
	}
	letters := 0
	for _, r := range tok {
		switch {
		case r >= 'A' && r <= 'Z':
			letters++
		case r >= 'a' && r <= 'z':
			return false
		}
	}
	return letters >= 2
}

type tokenSpan struct{ start, end int }

func tokenSpans(text, token string) []tokenSpan {
	var spans []tokenSpan
	from := 0
	for {
		idx := strings.Index(text[from:], token)
		if idx < 0 {
			return spans
		}
		start := from + idx
		end := start + len(token)
		if isWordBounded(text, start, end) {
			spans = append(spans, tokenSpan{start: start, end: end})
		}
		from = end
	}
}

func isWordBounded(text string, start, end int) bool {
	if start > 0 {
		prev := text[start-1]
		if isASCIIWord(prev) {
			return false
		}
	}
	if end < len(text) {
		next := text[end]
		if isASCIIWord(next) {
			return false
		}
	}
	return true
}

func isASCIIWord(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

// runeWindow returns the text within `window` runes on either side of
// the span, token included.
func runeWindow(text string, span tokenSpan, window int) string {
	before := []rune(text[:span.start])
	after := []rune(text[span.end:])
	if len(before) > window {
		before = before[len(before)-window:]
	}
	if len(after) > window {
		after = after[:window]
	}
	return string(before) + text[span.start:span.end] + string(after)
}
