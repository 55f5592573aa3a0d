package refine

import (
	"strings"
	"testing"
)

var sessionAliases = []string{"PATIENT_A", "PATIENT_B"}

func TestValidate_AcceptsExactPatch(t *testing.T) {
	raw := []byte(`{
		"patients": [
			{"patientKey": "PATIENT_A", "summary": "혈당 조절 관찰 필요"},
			{"patientKey": "PATIENT_B", "summary": "수술 후 배액 관찰 중"}
		]
	}`)
	summaries, err := Validate(raw, sessionAliases)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if summaries["PATIENT_A"] != "혈당 조절 관찰 필요" {
		t.Errorf("summary A = %q", summaries["PATIENT_A"])
	}
	if summaries["PATIENT_B"] != "수술 후 배액 관찰 중" {
		t.Errorf("summary B = %q", summaries["PATIENT_B"])
	}
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		wantErr string
	}{
		{
			name:    "not json",
			raw:     `정리된 결과입니다: ...`,
			wantErr: "decode",
		},
		{
			name:    "unknown field",
			raw:     `{"patients": [{"patientKey": "PATIENT_A", "summary": "x", "name": "김민준"}, {"patientKey": "PATIENT_B", "summary": "y"}]}`,
			wantErr: "decode",
		},
		{
			name:    "trailing content",
			raw:     `{"patients": [{"patientKey": "PATIENT_A", "summary": "x"}, {"patientKey": "PATIENT_B", "summary": "y"}]} 참고하세요`,
			wantErr: "trailing",
		},
		{
			name:    "missing patient",
			raw:     `{"patients": [{"patientKey": "PATIENT_A", "summary": "x"}]}`,
			wantErr: "count",
		},
		{
			name:    "extra patient",
			raw:     `{"patients": [{"patientKey": "PATIENT_A", "summary": "x"}, {"patientKey": "PATIENT_B", "summary": "y"}, {"patientKey": "PATIENT_C", "summary": "z"}]}`,
			wantErr: "count",
		},
		{
			name:    "unknown alias",
			raw:     `{"patients": [{"patientKey": "PATIENT_A", "summary": "x"}, {"patientKey": "PATIENT_Z", "summary": "y"}]}`,
			wantErr: "unknown patientKey",
		},
		{
			name:    "duplicate alias",
			raw:     `{"patients": [{"patientKey": "PATIENT_A", "summary": "x"}, {"patientKey": "PATIENT_A", "summary": "y"}]}`,
			wantErr: "duplicate",
		},
		{
			name:    "empty summary",
			raw:     `{"patients": [{"patientKey": "PATIENT_A", "summary": "  "}, {"patientKey": "PATIENT_B", "summary": "y"}]}`,
			wantErr: "empty summary",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			summaries, err := Validate([]byte(tc.raw), sessionAliases)
			if err == nil {
				t.Fatalf("expected error, got summaries %+v", summaries)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error = %q, want containing %q", err, tc.wantErr)
			}
			if summaries != nil {
				t.Errorf("rejected patch returned summaries: %+v", summaries)
			}
		})
	}
}

func TestValidate_EmptySessionEmptyPatch(t *testing.T) {
	summaries, err := Validate([]byte(`{"patients": []}`), nil)
	if err != nil {
		t.Fatalf("empty-for-empty should validate: %v", err)
	}
	if len(summaries) != 0 {
		t.Errorf("summaries = %+v", summaries)
	}
}
