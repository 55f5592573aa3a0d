package split

import (
	"testing"

	"github.com/handover/handover/internal/domain/normalize"
	"github.com/handover/handover/internal/domain/phi"
)

func masked(id, text, alias string, startMs int64) phi.MaskedSegment {
	return phi.MaskedSegment{
		NormalizedSegment: normalize.NormalizedSegment{
			RawSegment: normalize.RawSegment{
				SegmentID: id,
				RawText:   text,
				StartMs:   startMs,
				EndMs:     startMs + 3000,
			},
			NormalizedText: text,
		},
		MaskedText:   text,
		PatientAlias: alias,
	}
}

func TestByPatient_RoutesByAlias(t *testing.T) {
	res := ByPatient([]phi.MaskedSegment{
		masked("s1", "PATIENT_A 혈압 130/80", "PATIENT_A", 0),
		masked("s2", "PATIENT_B 혈당 240", "PATIENT_B", 3000),
		masked("s3", "PATIENT_A 드레싱 완료", "PATIENT_A", 6000),
	})

	if len(res.PatientSegments["PATIENT_A"]) != 2 {
		t.Errorf("PATIENT_A segments = %d, want 2", len(res.PatientSegments["PATIENT_A"]))
	}
	if len(res.PatientSegments["PATIENT_B"]) != 1 {
		t.Errorf("PATIENT_B segments = %d, want 1", len(res.PatientSegments["PATIENT_B"]))
	}
	if res.FallbackApplied {
		t.Error("fallback applied with identified patients")
	}
}

func TestByPatient_OrdersByStartMs(t *testing.T) {
	res := ByPatient([]phi.MaskedSegment{
		masked("s2", "PATIENT_A 두 번째", "PATIENT_A", 5000),
		masked("s1", "PATIENT_A 첫 번째", "PATIENT_A", 1000),
	})
	segs := res.PatientSegments["PATIENT_A"]
	if len(segs) != 2 {
		t.Fatalf("segments = %d, want 2", len(segs))
	}
	if segs[0].SegmentID != "s1" || segs[1].SegmentID != "s2" {
		t.Errorf("order = %s, %s; want s1, s2", segs[0].SegmentID, segs[1].SegmentID)
	}
}

func TestByPatient_WardEvents(t *testing.T) {
	res := ByPatient([]phi.MaskedSegment{
		masked("s1", "오늘 퇴원 3명 예정입니다", "", 0),
		masked("s2", "병동 모니터 2대 수리 요청 건 있습니다", "", 3000),
		masked("s3", "PATIENT_A 혈압 안정", "PATIENT_A", 6000),
	})

	if len(res.WardEvents) != 2 {
		t.Fatalf("ward events = %d, want 2: %+v", len(res.WardEvents), res.WardEvents)
	}
	if res.WardEvents[0].Kind != "discharge" {
		t.Errorf("event 1 kind = %q, want discharge", res.WardEvents[0].Kind)
	}
	if res.WardEvents[1].Kind != "equipment" {
		t.Errorf("event 2 kind = %q, want equipment", res.WardEvents[1].Kind)
	}
}

func TestByPatient_ContinuationFollowsActiveAlias(t *testing.T) {
	res := ByPatient([]phi.MaskedSegment{
		masked("s1", "PATIENT_A 인계 시작 혈압 안정", "PATIENT_A", 0),
		masked("s2", "인슐린 오더 6시 재측정", "", 3000),
	})
	if len(res.PatientSegments["PATIENT_A"]) != 2 {
		t.Errorf("continuation not routed to active alias: %+v", res.PatientSegments)
	}
	if len(res.Unmatched) != 0 {
		t.Errorf("unexpected unmatched: %+v", res.Unmatched)
	}
}

func TestByPatient_BackfillSandwich(t *testing.T) {
	// A transition cue suspends routing, but a clinical segment framed by
	// the same alias on both sides is recovered by the backfill pass.
	res := ByPatient([]phi.MaskedSegment{
		masked("s1", "PATIENT_A 혈압 안정 다음은 검사 결과", "PATIENT_A", 0),
		masked("s2", "배액 양상 혈성으로 변함", "", 3000),
		masked("s3", "PATIENT_A 검사 결과 나오면 보고", "PATIENT_A", 6000),
	})

	if len(res.PatientSegments["PATIENT_A"]) != 3 {
		t.Errorf("sandwiched segment not backfilled: %+v", res.PatientSegments)
	}
}

func TestByPatient_NonClinicalStaysUnmatched(t *testing.T) {
	res := ByPatient([]phi.MaskedSegment{
		masked("s1", "PATIENT_A 혈압 안정", "PATIENT_A", 0),
		masked("s2", "주차장 공사 안내문 부착했습니다", "", 3000),
	})
	if len(res.Unmatched) != 1 {
		t.Errorf("unmatched = %+v, want the non-clinical segment", res.Unmatched)
	}
}

func TestByPatient_FallbackWhenNoPatient(t *testing.T) {
	res := ByPatient([]phi.MaskedSegment{
		masked("s1", "바이탈 전반적으로 문제 없었습니다", "", 0),
		masked("s2", "식사량 저조한 편입니다", "", 3000),
	})

	if !res.FallbackApplied {
		t.Fatal("fallback not applied")
	}
	if len(res.PatientSegments["PATIENT_A"]) != 2 {
		t.Errorf("fallback bucket = %+v", res.PatientSegments)
	}
	if len(res.Unmatched) != 0 {
		t.Errorf("unmatched should be absorbed: %+v", res.Unmatched)
	}
}

func TestByPatient_Empty(t *testing.T) {
	res := ByPatient(nil)
	if res.FallbackApplied {
		t.Error("fallback applied on empty input")
	}
	if len(res.PatientSegments) != 0 || len(res.WardEvents) != 0 {
		t.Errorf("unexpected output: %+v", res)
	}
}
