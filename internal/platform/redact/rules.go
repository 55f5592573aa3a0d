package redact

import "regexp"

// Severity ranks how directly a matched pattern identifies a patient.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Rule pairs a compiled pattern with the PHI category it detects.
type Rule struct {
	Type     string
	Severity Severity
	Pattern  *regexp.Regexp
}

// Redacted is the replacement token substituted for every rule match.
const Redacted = "[REDACTED]"

var (
	// Direct identifiers. These are removed unconditionally on the first
	// redaction pass.
	rePhoneMobile = regexp.MustCompile(`01[016789][-.\s]?\d{3,4}[-.\s]?\d{4}`)
	rePhoneLand   = regexp.MustCompile(`0\d{1,2}[-.\s]\d{3,4}[-.\s]\d{4}`)
	reRRN         = regexp.MustCompile(`\d{6}[-\s]?[1-4]\d{6}`)
	reDOBKorean   = regexp.MustCompile(`(19|20)\d{2}\s?년\s?\d{1,2}\s?월\s?\d{1,2}\s?일생?`)
	reDOBNumeric  = regexp.MustCompile(`(19|20)\d{2}[./-]\d{1,2}[./-]\d{1,2}일?생?`)
	reMRN         = regexp.MustCompile(`(등록번호|차트번호|병록번호|환자번호|MRN|[Cc]hart\s?(?:[Nn]o\.?|#)?)\s*[:#]?\s*\d{4,}`)
	reAddress     = regexp.MustCompile(`(서울|부산|대구|인천|광주|대전|울산|세종|경기|강원|충북|충남|전북|전남|경북|경남|제주)[가-힣]*\s?[가-힣]+[구군시]\s?[가-힣0-9-]+`)

	// Heuristic identifiers. Higher false-positive rate, so they run on a
	// second pass after the direct rules have already cleaned the text.
	reLongNumber = regexp.MustCompile(`\d{7,12}`)
	reHonorific  = regexp.MustCompile(`[가-힣]{2,4}\s?(님|씨|어르신)`)
	reRoomName   = regexp.MustCompile(`\d{3,4}호\s?[가-힣]{2,4}(님|씨)?`)

	// Structure-level patterns used by the export sanitizer beyond the
	// stream rules: tokens that should never survive into a structured,
	// alias-only payload.
	reMaskedName = regexp.MustCompile(`[가-힣][OoO0○◯*×]{1,3}`)
	reRoomToken  = regexp.MustCompile(`\d{3,4}\s?호`)
	reEmail      = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	rePatientID  = regexp.MustCompile(`([Pp]atient[-_\s]?[Ii][Dd]|환자\s?ID)\s*[:#]?\s*[A-Za-z0-9-]+`)

	// Residual-only variants. Looser than the masking rules: they tolerate
	// unusual separators the first pass does not, so a hit on already
	// masked text signals a leak the masker could not have caught.
	rePhoneLoose = regexp.MustCompile(`0\d{1,2}[-./\s]*\d{3,4}[-./\s]*\d{4}`)
	reRRNLoose   = regexp.MustCompile(`\d{6}[-./\s]*[1-4]\d{6}`)
	reDigitRuns  = regexp.MustCompile(`\d{2,4}([-./\s]\d{2,4}){2,}`)
)

// HighSeverityRules returns the pass-1 direct identifier rules, in the
// order they are applied.
func HighSeverityRules() []Rule {
	return []Rule{
		{Type: "phone", Severity: SeverityHigh, Pattern: rePhoneMobile},
		{Type: "phone", Severity: SeverityHigh, Pattern: rePhoneLand},
		{Type: "rrn", Severity: SeverityHigh, Pattern: reRRN},
		{Type: "dob", Severity: SeverityHigh, Pattern: reDOBKorean},
		{Type: "dob", Severity: SeverityHigh, Pattern: reDOBNumeric},
		{Type: "mrn", Severity: SeverityHigh, Pattern: reMRN},
		{Type: "address", Severity: SeverityHigh, Pattern: reAddress},
	}
}

// MediumSeverityRules returns the pass-2 heuristic rules.
func MediumSeverityRules() []Rule {
	return []Rule{
		{Type: "room_name", Severity: SeverityMedium, Pattern: reRoomName},
		{Type: "long_number", Severity: SeverityMedium, Pattern: reLongNumber},
		{Type: "name_honorific", Severity: SeverityMedium, Pattern: reHonorific},
	}
}

// StructureRules returns the additional patterns the export sanitizer
// applies to structured output. Room tokens and masked names are legal in
// the raw stream (they are alias anchors) but must never appear in a
// finished, alias-only payload.
func StructureRules() []Rule {
	return []Rule{
		{Type: "masked_name", Severity: SeverityHigh, Pattern: reMaskedName},
		{Type: "room", Severity: SeverityHigh, Pattern: reRoomToken},
		{Type: "email", Severity: SeverityHigh, Pattern: reEmail},
		{Type: "patient_id", Severity: SeverityHigh, Pattern: rePatientID},
	}
}

// ResidualRules returns the leak-detection rule set: everything the
// masker applies plus loosened variants that tolerate separator styles
// the masking rules do not. Any hit against already-masked text means a
// surface form slipped through and the payload must not leave the
// process.
func ResidualRules() []Rule {
	rules := HighSeverityRules()
	rules = append(rules, MediumSeverityRules()...)
	rules = append(rules,
		Rule{Type: "phone_loose", Severity: SeverityHigh, Pattern: rePhoneLoose},
		Rule{Type: "rrn_loose", Severity: SeverityHigh, Pattern: reRRNLoose},
		Rule{Type: "digit_run", Severity: SeverityMedium, Pattern: reDigitRuns},
	)
	return rules
}
