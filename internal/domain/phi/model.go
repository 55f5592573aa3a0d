package phi

import (
	"github.com/handover/handover/internal/domain/normalize"
	"github.com/handover/handover/internal/platform/redact"
)

// MaskedSegment is a normalized segment after alias substitution and
// PHI redaction. EvidenceRef keeps the binding back to the source
// utterance through every later transformation.
type MaskedSegment struct {
	normalize.NormalizedSegment
	MaskedText       string                `json:"maskedText"`
	PatientAlias     string                `json:"patientAlias,omitempty"`
	PhiHits          []redact.Finding      `json:"phiHits,omitempty"`
	Findings         []redact.Finding      `json:"findings,omitempty"`
	ResidualFindings []redact.Finding      `json:"residualFindings,omitempty"`
	EvidenceRef      normalize.EvidenceRef `json:"evidenceRef"`
}

// Result is the output of one guard run over a segment stream.
type Result struct {
	Segments         []MaskedSegment   `json:"segments"`
	AliasMap         map[string]string `json:"aliasMap"`
	Findings         []redact.Finding  `json:"findings,omitempty"`
	ResidualFindings []redact.Finding  `json:"residualFindings,omitempty"`
	SafeToPersist    bool              `json:"safeToPersist"`
	ExportAllowed    bool              `json:"exportAllowed"`
}
