package normalize

import (
	"reflect"
	"strings"
	"testing"
)

func testNormalizer() *Normalizer {
	return NewNormalizer(DefaultLexicon())
}

func seg(id, text string, startMs, endMs int64) RawSegment {
	return RawSegment{SegmentID: id, RawText: text, StartMs: startMs, EndMs: endMs}
}

func TestNormalize_RoomForms(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"spaced digits", "7 0 1 호 환자입니다", "701호"},
		{"korean digit words", "칠공일호 환자입니다", "701호"},
		{"byeongsil keyword", "701 병실 환자입니다", "701호"},
		{"room keyword first", "룸 701 환자입니다", "701호"},
		{"digit space ho", "701 호 환자입니다", "701호"},
	}
	n := testNormalizer()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := n.Normalize([]RawSegment{seg("s1", tc.in, 0, 1000)})
			if !strings.Contains(out[0].NormalizedText, tc.want) {
				t.Errorf("normalize(%q) = %q, want containing %q", tc.in, out[0].NormalizedText, tc.want)
			}
		})
	}
}

func TestNormalize_CollapsesWhitespaceAndPunctuation(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"repeated periods", "투약 완료했습니다...", "투약 완료했습니다."},
		{"repeated commas", "혈압 안정,, 산소 유지 중", "혈압 안정, 산소 유지 중"},
		{"repeated question marks", "오더 확인했나요??", "오더 확인했나요?"},
		{"run of spaces", "혈당   재측정   예정", "혈당 재측정 예정"},
		{"leading and trailing space", "  수액 교체 완료  ", "수액 교체 완료"},
	}
	n := testNormalizer()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := n.Normalize([]RawSegment{seg("s1", tc.in, 0, 1000)})
			if out[0].NormalizedText != tc.want {
				t.Errorf("normalize(%q) = %q, want %q", tc.in, out[0].NormalizedText, tc.want)
			}
		})
	}
}

func TestNormalize_TimeForms(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"새벽 2시 재측정했습니다", "02:00"},
		{"오후 3시 투약 완료", "15:00"},
		{"3pm 검사 완료", "15:00"},
		{"10시 30분 드레싱 완료", "10:30"},
		{"저녁 7시 반 식사", "19:30"},
		{"오전 12시 확인 완료", "00:00"},
	}
	n := testNormalizer()
	for _, tc := range cases {
		out := n.Normalize([]RawSegment{seg("s1", tc.in, 0, 1000)})
		if !strings.Contains(out[0].NormalizedText, tc.want) {
			t.Errorf("normalize(%q) = %q, want containing %q", tc.in, out[0].NormalizedText, tc.want)
		}
	}
}

func TestNormalize_DurationIsNotClockTime(t *testing.T) {
	n := testNormalizer()
	out := n.Normalize([]RawSegment{seg("s1", "3시간 후 재측정 예정입니다", 0, 1000)})
	if strings.Contains(out[0].NormalizedText, "03:00") {
		t.Errorf("duration rewritten as clock time: %q", out[0].NormalizedText)
	}
}

func TestNormalize_LexiconExpansion(t *testing.T) {
	n := testNormalizer()
	out := n.Normalize([]RawSegment{
		seg("s1", "701호 김민준 환자 인계입니다. vital signs stable. SpO2 96% 유지.", 0, 4000),
	})

	text := out[0].NormalizedText
	if !strings.Contains(text, "생체징후") {
		t.Errorf("expected 생체징후 in %q", text)
	}
	if !strings.Contains(text, "산소포화도 96%") {
		t.Errorf("expected 산소포화도 96%% in %q", text)
	}
	for _, u := range out[0].Uncertainties {
		if u.Kind == UncertaintyUnresolvedAbbreviation {
			t.Errorf("unexpected unresolved_abbreviation: %+v", u)
		}
	}
}

func TestNormalize_UnresolvedAbbreviation(t *testing.T) {
	n := testNormalizer()
	out := n.Normalize([]RawSegment{seg("s1", "환자A XYZ 오더 다시 확인 필요", 0, 2000)})

	found := false
	for _, u := range out[0].Uncertainties {
		if u.Kind == UncertaintyUnresolvedAbbreviation && strings.Contains(u.Reason, "XYZ") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected unresolved_abbreviation for XYZ, got %+v", out[0].Uncertainties)
	}
}

func TestNormalize_MissingTime(t *testing.T) {
	n := testNormalizer()

	out := n.Normalize([]RawSegment{seg("s1", "혈당 재측정 오더 있습니다", 0, 2000)})
	if !hasKind(out[0].Uncertainties, UncertaintyMissingTime) {
		t.Errorf("expected missing_time, got %+v", out[0].Uncertainties)
	}

	// With a time the flag must not fire.
	out = n.Normalize([]RawSegment{seg("s1", "혈당 120 재측정 오더 10시입니다", 0, 2000)})
	if hasKind(out[0].Uncertainties, UncertaintyMissingTime) {
		t.Errorf("unexpected missing_time with explicit time: %+v", out[0].Uncertainties)
	}

	// Completed work needs no time either.
	out = n.Normalize([]RawSegment{seg("s1", "드레싱 교체 완료했습니다", 0, 2000)})
	if hasKind(out[0].Uncertainties, UncertaintyMissingTime) {
		t.Errorf("unexpected missing_time on completed task: %+v", out[0].Uncertainties)
	}
}

func TestNormalize_MissingValue(t *testing.T) {
	n := testNormalizer()

	out := n.Normalize([]RawSegment{seg("s1", "혈압 다시 체크 부탁한다고 전달받았어요", 0, 2000)})
	if !hasKind(out[0].Uncertainties, UncertaintyMissingValue) {
		t.Errorf("expected missing_value, got %+v", out[0].Uncertainties)
	}

	out = n.Normalize([]RawSegment{seg("s1", "혈압 130/80 확인 10시", 0, 2000)})
	if hasKind(out[0].Uncertainties, UncertaintyMissingValue) {
		t.Errorf("unexpected missing_value with numeric: %+v", out[0].Uncertainties)
	}

	// Qualitative statements are fine without a number.
	out = n.Normalize([]RawSegment{seg("s1", "혈압 안정적으로 유지 중입니다", 0, 2000)})
	if hasKind(out[0].Uncertainties, UncertaintyMissingValue) {
		t.Errorf("unexpected missing_value on qualitative statement: %+v", out[0].Uncertainties)
	}
}

func TestNormalize_ConfusableAbbreviation(t *testing.T) {
	n := testNormalizer()

	// No reading keywords near HR at all: both-or-neither fires.
	out := n.Normalize([]RawSegment{seg("s1", "HR 수치 다시 봐주세요", 0, 2000)})
	if !hasKind(out[0].Uncertainties, UncertaintyConfusableAbbreviation) {
		t.Errorf("expected confusable_abbreviation, got %+v", out[0].Uncertainties)
	}

	// A clear cardiac context resolves HR.
	out = n.Normalize([]RawSegment{seg("s1", "HR 110 빈맥 경향 맥박 관찰 중", 0, 2000)})
	if hasKind(out[0].Uncertainties, UncertaintyConfusableAbbreviation) {
		t.Errorf("unexpected confusable_abbreviation in cardiac context: %+v", out[0].Uncertainties)
	}
}

func TestNormalize_ManualReview(t *testing.T) {
	n := testNormalizer()
	out := n.Normalize([]RawSegment{seg("s1", "투약 시간 미기재 상태입니다", 0, 2000)})
	if !hasKind(out[0].Uncertainties, UncertaintyManualReview) {
		t.Errorf("expected manual_review, got %+v", out[0].Uncertainties)
	}
}

func TestNormalize_Deterministic(t *testing.T) {
	n := testNormalizer()
	input := []RawSegment{
		seg("s1", "701호 김민준 환자 혈압 90/60 오더 확인", 0, 3000),
		seg("s2", "새벽 2시 SpO2 저하 XYZ 재측정 필요", 3000, 6000),
	}
	first := n.Normalize(input)
	second := n.Normalize(input)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("normalize is not deterministic:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestNormalize_EmptyInput(t *testing.T) {
	n := testNormalizer()
	out := n.Normalize(nil)
	if len(out) != 0 {
		t.Errorf("expected empty output, got %d segments", len(out))
	}
}

func hasKind(us []Uncertainty, kind UncertaintyKind) bool {
	for _, u := range us {
		if u.Kind == kind {
			return true
		}
	}
	return false
}
