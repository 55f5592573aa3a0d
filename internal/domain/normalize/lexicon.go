package normalize

import (
	"regexp"
	"sort"
	"strings"
)

// LexiconEntry maps surface variants (English terms, jargon, safe
// abbreviations) to one canonical Korean clinical term.
type LexiconEntry struct {
	Canonical string
	Variants  []string
}

// Lexicon is an immutable lookup structure built once at startup and
// shared by reference with every Normalizer. It must not be mutated
// after construction.
type Lexicon struct {
	exact       map[string]string // folded single token -> canonical
	phrases     []phraseRule      // multi-word variants, longest-first
	knownAbbrev map[string]bool
}

type phraseRule struct {
	re        *regexp.Regexp
	canonical string
	length    int
}

// Abbreviations that are acceptable in handover text as-is and must not
// raise an unresolved_abbreviation flag. Pair tokens (HR, RR, DC, Cr,
// PR, PE) are deliberately kept out of the replacement lexicon because
// their expansion is context-dependent; they are still "known".
var knownAbbreviations = []string{
	"HR", "RR", "BP", "BT", "BST", "DC", "D-C", "Cr", "CRP", "PR", "PRN",
	"PE", "PEA", "SpO2", "O2", "CT", "MRI", "ICU", "ER", "OR", "IV", "IM",
	"PO", "NPO", "CPR", "DNR", "ABGA", "CBC", "EKG", "ECG", "BUN", "WBC",
	"Hb", "PLT", "Na", "K", "PT", "PTT", "INR", "GCS", "POD", "NS", "DW",
	"EVD", "PCA", "HD", "PD", "RRT", "CXR", "A-line", "C-line", "L-tube",
	"T-tube", "JP", "EDBC", "SOB", "LOC",
}

// DefaultLexiconEntries returns the built-in bilingual clinical lexicon.
// Variants are matched case-insensitively; multi-word variants are
// replaced longest-first so "vital signs" wins over "vital".
func DefaultLexiconEntries() []LexiconEntry {
	return []LexiconEntry{
		{Canonical: "생체징후", Variants: []string{"vital signs", "vital sign", "vitals", "v/s", "바이탈 사인", "바이탈"}},
		{Canonical: "산소포화도", Variants: []string{"SpO2", "spo2", "oxygen saturation", "saturation", "새츄레이션", "새춰레이션"}},
		{Canonical: "혈압", Variants: []string{"blood pressure"}},
		{Canonical: "심박수", Variants: []string{"heart rate"}},
		{Canonical: "호흡수", Variants: []string{"respiratory rate", "resp rate"}},
		{Canonical: "체온", Variants: []string{"body temperature", "temperature"}},
		{Canonical: "혈당", Variants: []string{"blood sugar", "glucose", "글루코스"}},
		{Canonical: "섭취배설량", Variants: []string{"I/O", "intake output", "인테이크 아웃풋"}},
		{Canonical: "금식", Variants: []string{"NPO 상태", "엔피오"}},
		{Canonical: "필요시", Variants: []string{"피알엔"}},
		{Canonical: "정맥주사", Variants: []string{"IV line", "정맥 라인"}},
		{Canonical: "경구투여", Variants: []string{"per oral"}},
		{Canonical: "수술", Variants: []string{"operation", "오퍼레이션"}},
		{Canonical: "진단", Variants: []string{"diagnosis"}},
		{Canonical: "병력", Variants: []string{"history taking"}},
		{Canonical: "항생제", Variants: []string{"antibiotics", "antibiotic", "abx"}},
		{Canonical: "흉부방사선", Variants: []string{"chest x-ray", "chest xray", "체스트"}},
		{Canonical: "심전도", Variants: []string{"이케이지"}},
		{Canonical: "검사결과", Variants: []string{"lab result", "lab results", "랩 결과"}},
		{Canonical: "유치도뇨관", Variants: []string{"foley", "폴리", "폴리 카테터"}},
		{Canonical: "흡인", Variants: []string{"suction", "석션"}},
		{Canonical: "드레싱", Variants: []string{"dressing"}},
		{Canonical: "전동", Variants: []string{"transfer"}},
		{Canonical: "입원", Variants: []string{"admission", "어드미션"}},
		{Canonical: "퇴원", Variants: []string{"discharge"}},
		{Canonical: "경련", Variants: []string{"seizure", "씨저"}},
		{Canonical: "의식상태", Variants: []string{"mental status", "멘탈"}},
		{Canonical: "통증", Variants: []string{"페인"}},
		{Canonical: "발열", Variants: []string{"fever", "피버"}},
		{Canonical: "산소포화도저하", Variants: []string{"desaturation", "desat", "디셋"}},
		{Canonical: "천명음", Variants: []string{"wheezing", "위징"}},
		{Canonical: "객담", Variants: []string{"sputum"}},
		{Canonical: "인공호흡기", Variants: []string{"ventilator", "벤트"}},
		{Canonical: "인슐린", Variants: []string{"insulin"}},
		{Canonical: "진통제", Variants: []string{"painkiller", "pain killer"}},
		{Canonical: "수혈", Variants: []string{"transfusion", "트랜스퓨전"}},
		{Canonical: "낙상", Variants: []string{"fall down", "폴 다운"}},
		{Canonical: "욕창", Variants: []string{"bed sore", "sore"}},
		{Canonical: "소변량", Variants: []string{"urine output", "유린 아웃풋"}},
		{Canonical: "안정적", Variants: []string{"stable", "스테이블"}},
	}
}

// NewLexicon builds the immutable lookup structure from entries. Single
// tokens go into an exact-match map keyed by folded form; multi-word
// variants become phrase regexes sorted by folded length descending.
func NewLexicon(entries []LexiconEntry) *Lexicon {
	lex := &Lexicon{
		exact:       make(map[string]string),
		knownAbbrev: make(map[string]bool, len(knownAbbreviations)),
	}
	for _, a := range knownAbbreviations {
		lex.knownAbbrev[strings.ToUpper(a)] = true
	}
	for _, e := range entries {
		for _, v := range e.Variants {
			folded := strings.ToLower(strings.TrimSpace(v))
			if folded == "" {
				continue
			}
			if strings.ContainsAny(folded, " -/") {
				re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(v))
				lex.phrases = append(lex.phrases, phraseRule{re: re, canonical: e.Canonical, length: len(folded)})
				continue
			}
			lex.exact[folded] = e.Canonical
			if looksAbbrev(v) {
				lex.knownAbbrev[strings.ToUpper(v)] = true
			}
		}
	}
	sort.SliceStable(lex.phrases, func(i, j int) bool {
		return lex.phrases[i].length > lex.phrases[j].length
	})
	return lex
}

// DefaultLexicon builds the lexicon from the built-in entries.
func DefaultLexicon() *Lexicon {
	return NewLexicon(DefaultLexiconEntries())
}

// KnownAbbreviation reports whether the token is an accepted clinical
// abbreviation (including lexicon-derived ones).
func (l *Lexicon) KnownAbbreviation(token string) bool {
	return l.knownAbbrev[strings.ToUpper(token)]
}

var reToken = regexp.MustCompile(`[A-Za-z0-9가-힣/%-]+`)

// Expand replaces lexicon variants in text with their canonical Korean
// terms. Phrase variants are applied longest-first; remaining single
// tokens are looked up exactly, preserving any trailing Korean particle
// glued to the token.
func (l *Lexicon) Expand(text string) string {
	for _, p := range l.phrases {
		text = p.re.ReplaceAllString(text, p.canonical)
	}
	return reToken.ReplaceAllStringFunc(text, func(tok string) string {
		if canon, ok := l.exact[strings.ToLower(tok)]; ok {
			return canon
		}
		// Token glued to a trailing Korean particle, e.g. "stable하고".
		if head, tail, ok := splitParticle(tok); ok {
			if canon, found := l.exact[strings.ToLower(head)]; found {
				return canon + tail
			}
		}
		return tok
	})
}

// Longest particles first so "으로" wins over "로".
var trailingParticles = []string{"으로", "에서", "하고", "이고", "인데", "은", "는", "이", "가", "을", "를", "로", "에", "임", "도"}

func splitParticle(tok string) (head, tail string, ok bool) {
	for _, p := range trailingParticles {
		if strings.HasSuffix(tok, p) && len(tok) > len(p) {
			return tok[:len(tok)-len(p)], p, true
		}
	}
	return "", "", false
}

func looksAbbrev(v string) bool {
	upper := 0
	for _, r := range v {
		if r >= 'A' && r <= 'Z' {
			upper++
		}
	}
	return upper >= 2
}
