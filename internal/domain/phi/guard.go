// Package phi masks patient-identifying surface forms in the segment
// stream and keeps every mention of the same patient on one stable
// alias. The guard never fails on malformed input: absence of PHI is
// the default, not an exception.
package phi

import (
	"regexp"
	"sort"
	"strings"

	"github.com/handover/handover/internal/domain/normalize"
	"github.com/handover/handover/internal/platform/redact"
)

var (
	reRoomAnchor   = regexp.MustCompile(`\d{3,4}호`)
	reMaskedName   = regexp.MustCompile(`[가-힣][OoO0○◯*×]{1,3}`)
	reNameHonorif  = regexp.MustCompile(`([가-힣]{2,3})\s?(환자분|환자|어르신|님|씨)`)
	nameStopwords  = map[string]bool{"해당": true, "담당": true, "우리": true, "옆방": true, "신규": true, "전체": true, "모든": true, "다음": true, "이번": true, "환자실": true}
	// Common Korean family names. A token before an honorific only
	// counts as a name anchor when it starts with one of these, which
	// keeps ward vocabulary like "중환자실 환자" from anchoring.
	koreanSurnames = map[rune]bool{
		'김': true, '이': true, '박': true, '최': true, '정': true, '강': true,
		'조': true, '윤': true, '장': true, '임': true, '한': true, '오': true,
		'서': true, '신': true, '권': true, '황': true, '안': true, '송': true,
		'류': true, '전': true, '홍': true, '고': true, '문': true, '양': true,
		'손': true, '배': true, '백': true, '허': true, '유': true, '남': true,
		'심': true, '노': true, '하': true, '곽': true, '성': true, '차': true,
		'주': true, '우': true, '구': true, '민': true, '진': true, '지': true,
	}
	transitionCues = []string{"다음 환자", "그다음", "다음은", "다음 분", "넘어가", "다른 환자"}
	continuationVocab = []string{
		"혈압", "혈당", "체온", "산소포화도", "심박수", "호흡수", "소변량", "통증",
		"투약", "오더", "드레싱", "배액", "항생제", "인슐린", "검사", "수치", "관찰",
	}
	patientPronouns = []string{"해당 환자", "이 환자", "그 환자", "환자분", "이분", "그분"}
)

type anchor struct {
	token  string
	isRoom bool
}

// Guard runs alias resolution and redaction over a normalized stream.
type Guard struct{}

// NewGuard creates a Guard.
func NewGuard() *Guard {
	return &Guard{}
}

// Apply walks the segments in order, carrying the active alias and the
// pending-transition flag across iterations, and returns the masked
// stream with its alias map and audit findings. SafeToPersist and
// ExportAllowed are false whenever the residual scan found anything.
func (g *Guard) Apply(segments []normalize.NormalizedSegment) Result {
	resolver := NewAliasResolver()
	result := Result{
		Segments: make([]MaskedSegment, 0, len(segments)),
	}

	activeAlias := ""
	transitionPending := false

	for _, seg := range segments {
		anchors := extractAnchors(seg.NormalizedText)
		alias, anchored := selectAlias(resolver, anchors, activeAlias, transitionPending, seg.NormalizedText)

		if anchored {
			for _, a := range anchors {
				resolver.Register(a.token, alias, a.isRoom)
			}
			transitionPending = false
		}

		masked, hits := substituteAnchors(seg.NormalizedText, anchors, resolver)

		masked, findings := redact.Apply(masked, redact.HighSeverityRules())
		masked, medium := redact.Apply(masked, redact.MediumSeverityRules())
		findings = append(findings, medium...)

		residual := redact.Scan(masked, redact.ResidualRules())

		result.Segments = append(result.Segments, MaskedSegment{
			NormalizedSegment: seg,
			MaskedText:        masked,
			PatientAlias:      alias,
			PhiHits:           hits,
			Findings:          findings,
			ResidualFindings:  residual,
			EvidenceRef:       seg.Evidence(),
		})
		result.Findings = append(result.Findings, findings...)
		result.ResidualFindings = append(result.ResidualFindings, residual...)

		// A transition cue in this segment takes effect for the next one.
		if containsAny(seg.NormalizedText, transitionCues) {
			activeAlias = ""
			transitionPending = true
		} else if alias != "" {
			activeAlias = alias
		}
	}

	result.AliasMap = resolver.Map()
	result.SafeToPersist = len(result.ResidualFindings) == 0
	result.ExportAllowed = result.SafeToPersist
	return result
}

// selectAlias applies the precedence order room-anchor > name-anchor >
// continuation-pronoun. This order is safety-sensitive: room evidence
// always beats a known name alias, which is what splits two patients
// who share a name in different rooms. anchored reports whether the
// alias came from anchor evidence (and should register the anchors).
func selectAlias(resolver *AliasResolver, anchors []anchor, activeAlias string, transitionPending bool, text string) (string, bool) {
	var rooms, names []anchor
	for _, a := range anchors {
		if a.isRoom {
			rooms = append(rooms, a)
		} else {
			names = append(names, a)
		}
	}

	// Known aliases among room anchors, weighted vote with room at 5x.
	if alias := voteKnown(resolver, rooms, names, true); alias != "" {
		return alias, true
	}

	// A room anchor with no known alias mints a fresh identity.
	if len(rooms) > 0 {
		return resolver.Mint(), true
	}

	// Name evidence alone: reuse by majority, else mint.
	if alias := voteKnown(resolver, nil, names, false); alias != "" {
		return alias, true
	}
	if len(names) > 0 {
		return resolver.Mint(), true
	}

	// No anchors: inherit the active alias only for clinical
	// continuations with no pending transition cue.
	if !transitionPending && activeAlias != "" && looksContinuation(text) {
		return activeAlias, false
	}
	return "", false
}

// voteKnown picks the winning known alias among the anchors. Room-token
// matches weigh 5x. requireRoom restricts the vote to runs where at
// least one room anchor has a known alias.
func voteKnown(resolver *AliasResolver, rooms, names []anchor, requireRoom bool) string {
	votes := make(map[string]int)
	order := make([]string, 0, 4)
	roomKnown := false
	tally := func(a anchor, weight int) {
		alias, ok := resolver.Lookup(a.token)
		if !ok {
			return
		}
		if a.isRoom {
			roomKnown = true
		}
		if _, seen := votes[alias]; !seen {
			order = append(order, alias)
		}
		votes[alias] += weight
	}
	for _, a := range rooms {
		tally(a, 5)
	}
	for _, a := range names {
		tally(a, 1)
	}
	if requireRoom && !roomKnown {
		return ""
	}
	best := ""
	bestVotes := 0
	for _, alias := range order {
		if votes[alias] > bestVotes {
			best = alias
			bestVotes = votes[alias]
		}
	}
	return best
}

func extractAnchors(text string) []anchor {
	var anchors []anchor
	seen := make(map[string]bool)
	add := func(token string, isRoom bool) {
		if token == "" || seen[token] {
			return
		}
		seen[token] = true
		anchors = append(anchors, anchor{token: token, isRoom: isRoom})
	}
	for _, m := range reRoomAnchor.FindAllString(text, -1) {
		add(m, true)
	}
	for _, m := range reMaskedName.FindAllString(text, -1) {
		add(m, false)
	}
	for _, m := range reNameHonorif.FindAllStringSubmatch(text, -1) {
		name := m[1]
		if nameStopwords[name] || !startsWithSurname(name) {
			continue
		}
		add(name, false)
	}
	return anchors
}

// substituteAnchors replaces registered anchor tokens with their alias,
// longest token first so partial overlaps cannot corrupt shorter forms.
func substituteAnchors(text string, anchors []anchor, resolver *AliasResolver) (string, []redact.Finding) {
	sorted := make([]anchor, len(anchors))
	copy(sorted, anchors)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].token) > len(sorted[j].token)
	})

	var hits []redact.Finding
	for _, a := range sorted {
		alias, ok := resolver.Lookup(a.token)
		if !ok {
			continue
		}
		if !strings.Contains(text, a.token) {
			continue
		}
		kind := "name_anchor"
		if a.isRoom {
			kind = "room_anchor"
		}
		idx := strings.Index(text, a.token)
		hits = append(hits, redact.Finding{
			Type:     kind,
			Start:    idx,
			End:      idx + len(a.token),
			Sample:   redact.Preview(a.token),
			Severity: redact.SeverityHigh,
		})
		text = strings.ReplaceAll(text, a.token, alias)
	}
	return text, hits
}

func startsWithSurname(name string) bool {
	for _, r := range name {
		return koreanSurnames[r]
	}
	return false
}

func looksContinuation(text string) bool {
	return containsAny(text, continuationVocab) || containsAny(text, patientPronouns)
}

func containsAny(text string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}
