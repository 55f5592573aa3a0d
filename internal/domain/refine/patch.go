// Package refine validates the patch an optional LLM post-processor
// hands back. The adapter is never trusted: any shape mismatch discards
// the whole patch, and callers must re-sanitize whatever they merge.
package refine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Patch is the only accepted patch shape.
type Patch struct {
	Patients []PatientPatch `json:"patients"`
}

// PatientPatch replaces one patient's summary, keyed by alias.
type PatientPatch struct {
	PatientKey string `json:"patientKey"`
	Summary    string `json:"summary"`
}

// Validate parses raw against the strict patch schema and checks it
// field by field against the session's alias set: the patch must cover
// exactly the known aliases, once each, with non-empty summaries.
// Any mismatch returns an error and the patch must be discarded whole;
// a rejected patch never partially applies.
func Validate(raw []byte, aliases []string) (map[string]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var patch Patch
	if err := dec.Decode(&patch); err != nil {
		return nil, fmt.Errorf("refine patch: decode: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("refine patch: trailing content after patch object")
	}

	if len(patch.Patients) != len(aliases) {
		return nil, fmt.Errorf("refine patch: patient count %d does not match session count %d", len(patch.Patients), len(aliases))
	}

	want := make(map[string]bool, len(aliases))
	for _, a := range aliases {
		want[a] = true
	}

	summaries := make(map[string]string, len(patch.Patients))
	for _, p := range patch.Patients {
		if !want[p.PatientKey] {
			return nil, fmt.Errorf("refine patch: unknown patientKey %q", p.PatientKey)
		}
		if _, dup := summaries[p.PatientKey]; dup {
			return nil, fmt.Errorf("refine patch: duplicate patientKey %q", p.PatientKey)
		}
		if strings.TrimSpace(p.Summary) == "" {
			return nil, fmt.Errorf("refine patch: empty summary for %q", p.PatientKey)
		}
		summaries[p.PatientKey] = p.Summary
	}
	return summaries, nil
}
