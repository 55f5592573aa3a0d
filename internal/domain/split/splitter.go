// Package split routes masked segments into per-alias buckets or
// ward-level events. Ungrouped clinical content is never discarded: a
// backfill pass and a last-resort fallback alias keep every segment
// attributable to a reviewer-visible bucket.
package split

import (
	"regexp"
	"sort"
	"strings"

	"github.com/handover/handover/internal/domain/normalize"
	"github.com/handover/handover/internal/domain/phi"
)

// WardEvent is a fact about the unit or shift as a whole, not
// attributable to one patient.
type WardEvent struct {
	Kind        string                `json:"kind"`
	Text        string                `json:"text"`
	EvidenceRef normalize.EvidenceRef `json:"evidenceRef"`
}

// Result is the output of one split over a masked stream.
type Result struct {
	WardEvents      []WardEvent                    `json:"wardEvents"`
	PatientSegments map[string][]phi.MaskedSegment `json:"patientSegments"`
	Unmatched       []phi.MaskedSegment            `json:"unmatchedSegments"`
	FallbackApplied bool                           `json:"fallbackApplied"`
}

var reInlineAlias = regexp.MustCompile(phi.AliasPrefix + `[A-Z]+`)

// Ward event categories, first match wins.
var wardCategories = []struct {
	kind  string
	terms []string
}{
	{kind: "discharge", terms: []string{"퇴원"}},
	{kind: "admission", terms: []string{"입원", "전입"}},
	{kind: "round", terms: []string{"회진", "라운딩"}},
	{kind: "equipment", terms: []string{"장비", "수리", "점검", "고장", "교체"}},
	{kind: "complaint", terms: []string{"민원", "컴플레인", "항의"}},
}

var (
	wardScopeCues     = []string{"명", "예정", "병동", "전체", "오늘", "내일", "건"}
	splitTransitions  = []string{"다음 환자", "그다음", "다음은", "다음 분", "넘어가", "다른 환자"}
	splitContinuation = []string{
		"혈압", "혈당", "체온", "산소포화도", "심박수", "호흡수", "소변량", "통증",
		"투약", "오더", "드레싱", "배액", "항생제", "인슐린", "검사", "수치",
		"해당 환자", "이 환자", "그 환자", "환자분", "이분", "그분",
	}
)

// ByPatient processes segments chronologically and routes each into a
// ward event, a patient bucket, or the unmatched list. A second pass
// backfills unmatched continuation segments sandwiched between
// same-alias anchors. If no patient at all was identified, everything
// falls into a single fallback alias and FallbackApplied is set.
func ByPatient(segments []phi.MaskedSegment) Result {
	ordered := make([]phi.MaskedSegment, len(segments))
	copy(ordered, segments)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].StartMs != ordered[j].StartMs {
			return ordered[i].StartMs < ordered[j].StartMs
		}
		return ordered[i].SegmentID < ordered[j].SegmentID
	})

	result := Result{PatientSegments: make(map[string][]phi.MaskedSegment)}

	// timeline records the alias assigned per ordered position, "" for
	// ward events and unmatched. Used by the backfill pass.
	timeline := make([]string, len(ordered))
	unmatchedIdx := make([]int, 0)

	activeAlias := ""
	transitionPending := false

	for i, seg := range ordered {
		alias := seg.PatientAlias
		if alias == "" {
			if m := reInlineAlias.FindString(seg.MaskedText); m != "" {
				alias = m
			}
		}

		switch {
		case alias == "" && isWardEvent(seg.MaskedText):
			result.WardEvents = append(result.WardEvents, WardEvent{
				Kind:        wardKind(seg.MaskedText),
				Text:        seg.MaskedText,
				EvidenceRef: seg.EvidenceRef,
			})
		case alias != "":
			result.PatientSegments[alias] = append(result.PatientSegments[alias], seg)
			timeline[i] = alias
			activeAlias = alias
			transitionPending = false
		case !transitionPending && activeAlias != "" && isContinuation(seg.MaskedText):
			result.PatientSegments[activeAlias] = append(result.PatientSegments[activeAlias], seg)
			timeline[i] = activeAlias
		default:
			result.Unmatched = append(result.Unmatched, seg)
			unmatchedIdx = append(unmatchedIdx, i)
		}

		if containsAny(seg.MaskedText, splitTransitions) {
			activeAlias = ""
			transitionPending = true
		}
	}

	backfill(&result, ordered, timeline, unmatchedIdx)

	if len(result.PatientSegments) == 0 && len(ordered) > 0 {
		fallback := phi.AliasPrefix + "A"
		var absorbed []phi.MaskedSegment
		absorbed = append(absorbed, result.Unmatched...)
		if len(absorbed) == 0 {
			absorbed = ordered
		}
		result.PatientSegments[fallback] = absorbed
		result.Unmatched = nil
		result.FallbackApplied = true
	}

	return result
}

// backfill retroactively assigns unmatched continuation segments that
// sit between two anchors of the same alias, or trail after the last
// anchor with nothing else following.
func backfill(result *Result, ordered []phi.MaskedSegment, timeline []string, unmatchedIdx []int) {
	if len(unmatchedIdx) == 0 {
		return
	}
	var remaining []phi.MaskedSegment
	for _, i := range unmatchedIdx {
		seg := ordered[i]
		if !isContinuation(seg.MaskedText) {
			remaining = append(remaining, seg)
			continue
		}
		before := nearestAlias(timeline, i, -1)
		after := nearestAlias(timeline, i, +1)
		switch {
		case before != "" && before == after:
			result.PatientSegments[before] = append(result.PatientSegments[before], seg)
			timeline[i] = before
		case before != "" && after == "":
			result.PatientSegments[before] = append(result.PatientSegments[before], seg)
			timeline[i] = before
		default:
			remaining = append(remaining, seg)
		}
	}
	result.Unmatched = remaining
}

func nearestAlias(timeline []string, from, step int) string {
	for i := from + step; i >= 0 && i < len(timeline); i += step {
		if timeline[i] != "" {
			return timeline[i]
		}
	}
	return ""
}

func isWardEvent(text string) bool {
	if isContinuation(text) {
		return false
	}
	return wardKind(text) != "" && containsAny(text, wardScopeCues)
}

func wardKind(text string) string {
	for _, c := range wardCategories {
		if containsAny(text, c.terms) {
			return c.kind
		}
	}
	return ""
}

func isContinuation(text string) bool {
	return containsAny(text, splitContinuation)
}

func containsAny(text string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}
