package normalize

// RawSegment is one utterance or sentence as delivered by the upstream
// ASR/transcript splitter. It is never mutated by the pipeline.
type RawSegment struct {
	SegmentID string `json:"segmentId"`
	RawText   string `json:"rawText"`
	StartMs   int64  `json:"startMs"`
	EndMs     int64  `json:"endMs"`
}

// EvidenceRef binds a structured fact back to its source utterance. Every
// downstream transformation must carry it forward unchanged.
type EvidenceRef struct {
	SegmentID string `json:"segmentId"`
	StartMs   int64  `json:"startMs"`
	EndMs     int64  `json:"endMs"`
}

// Evidence returns the segment's evidence reference.
func (s RawSegment) Evidence() EvidenceRef {
	return EvidenceRef{SegmentID: s.SegmentID, StartMs: s.StartMs, EndMs: s.EndMs}
}

// UncertaintyKind classifies a data-quality issue detected during
// normalization. Uncertainties never block the pipeline; they are
// surfaced to a human reviewer.
type UncertaintyKind string

const (
	UncertaintyMissingTime            UncertaintyKind = "missing_time"
	UncertaintyMissingValue           UncertaintyKind = "missing_value"
	UncertaintyConfusableAbbreviation UncertaintyKind = "confusable_abbreviation"
	UncertaintyUnresolvedAbbreviation UncertaintyKind = "unresolved_abbreviation"
	UncertaintyAmbiguousPatient       UncertaintyKind = "ambiguous_patient"
	UncertaintyManualReview           UncertaintyKind = "manual_review"
)

// Uncertainty is one data-quality flag attached to a segment.
type Uncertainty struct {
	Kind   UncertaintyKind `json:"kind"`
	Reason string          `json:"reason"`
}

// NormalizedSegment is a RawSegment plus its canonicalized text and the
// uncertainties detected while normalizing. Normalization is pure: the
// same RawText always yields the same NormalizedText and uncertainty set.
type NormalizedSegment struct {
	RawSegment
	NormalizedText string        `json:"normalizedText"`
	Uncertainties  []Uncertainty `json:"uncertainties,omitempty"`
}
