package handover

import (
	"github.com/handover/handover/internal/domain/normalize"
	"github.com/handover/handover/internal/domain/priority"
	"github.com/handover/handover/internal/domain/split"
)

// Safety carries the privacy gate the consuming UI/export layer must
// check before offering export, share or persist actions.
type Safety struct {
	PhiSafe        bool `json:"phiSafe"`
	ResidualCount  int  `json:"residualCount"`
	ExportAllowed  bool `json:"exportAllowed"`
	PersistAllowed bool `json:"persistAllowed"`
}

// Provenance records how the result was produced.
type Provenance struct {
	STTEngine      string `json:"sttEngine"`
	RulesetVersion string `json:"rulesetVersion"`
	LLMRefined     bool   `json:"llmRefined"`
}

// UncertaintyItem is a reviewer-facing, deduplicated uncertainty with a
// merged evidence time range over all segments that raised it.
type UncertaintyItem struct {
	Kind    normalize.UncertaintyKind `json:"kind"`
	Reason  string                    `json:"reason"`
	Count   int                       `json:"count"`
	StartMs int64                     `json:"startMs"`
	EndMs   int64                     `json:"endMs"`
}

// HandoverSessionResult is the full exportable payload of one pipeline
// run. It never contains raw patient identifiers; the sanitizer
// enforces that before any persist or export.
type HandoverSessionResult struct {
	SessionID     string                   `json:"sessionId"`
	Patients      []priority.PatientCard   `json:"patients"`
	WardEvents    []split.WardEvent        `json:"wardEvents"`
	GlobalTop     []priority.GlobalTopItem `json:"globalTop"`
	Uncertainties []UncertaintyItem        `json:"uncertainties"`
	Safety        Safety                   `json:"safety"`
	Provenance    Provenance               `json:"provenance"`
}
