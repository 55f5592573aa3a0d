// Package handover assembles the full de-identified session result:
// normalize, guard, split, prioritize, then sanitize before anything
// leaves the process.
package handover

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/handover/handover/internal/domain/normalize"
	"github.com/handover/handover/internal/domain/phi"
	"github.com/handover/handover/internal/domain/priority"
	"github.com/handover/handover/internal/domain/split"
)

// Service orchestrates one pipeline run per request. The text pipeline
// is pure; the Service itself holds only immutable collaborators and is
// safe for concurrent use.
type Service struct {
	normalizer     *normalize.Normalizer
	guard          *phi.Guard
	rulesetVersion string
	defaultDuty    priority.DutyType
	logger         zerolog.Logger
}

// NewService creates the pipeline service.
func NewService(lexicon *normalize.Lexicon, rulesetVersion string, defaultDuty priority.DutyType, logger zerolog.Logger) *Service {
	if defaultDuty == "" {
		defaultDuty = priority.DutyDay
	}
	return &Service{
		normalizer:     normalize.NewNormalizer(lexicon),
		guard:          phi.NewGuard(),
		rulesetVersion: rulesetVersion,
		defaultDuty:    defaultDuty,
		logger:         logger.With().Str("component", "handover-service").Logger(),
	}
}

// Process runs the full pipeline over raw segments and returns the
// sanitized session result. Malformed input degrades gracefully: an
// empty transcript yields an empty (but valid) result, never an error.
func (s *Service) Process(sessionID, sttEngine string, duty priority.DutyType, raw []normalize.RawSegment) HandoverSessionResult {
	if duty == "" {
		duty = s.defaultDuty
	}

	normalized := s.normalizer.Normalize(raw)
	guarded := s.guard.Apply(normalized)
	buckets := split.ByPatient(guarded.Segments)
	cards := priority.BuildPatientCards(buckets.PatientSegments, duty)

	result := HandoverSessionResult{
		SessionID:  sessionID,
		Patients:   cards,
		WardEvents: buckets.WardEvents,
		GlobalTop:  priority.BuildGlobalTop(cards),
		Provenance: Provenance{
			STTEngine:      sttEngine,
			RulesetVersion: s.rulesetVersion,
		},
	}
	result.Uncertainties = compactUncertainties(normalized, buckets)

	sanitized, issues, residual := SanitizeStructuredSession(result)
	result = sanitized

	residualCount := len(residual) + len(guarded.ResidualFindings)
	safe := residualCount == 0
	result.Safety = Safety{
		PhiSafe:        safe,
		ResidualCount:  residualCount,
		ExportAllowed:  safe,
		PersistAllowed: safe,
	}

	s.logger.Info().
		Str("session_id", sessionID).
		Int("segments", len(raw)).
		Int("patients", len(result.Patients)).
		Int("ward_events", len(result.WardEvents)).
		Int("sanitizer_issues", len(issues)).
		Int("residual", residualCount).
		Bool("fallback_applied", buckets.FallbackApplied).
		Msg("handover session processed")

	return result
}

// ApplyRefinement merges validated per-patient summaries produced by an
// external refine adapter. The merged result is re-sanitized; if the
// patch introduces residual PHI the refusal flags flip and the caller
// must not persist or export.
func (s *Service) ApplyRefinement(result HandoverSessionResult, summaries map[string]string) HandoverSessionResult {
	for i := range result.Patients {
		if summary, ok := summaries[result.Patients[i].Alias]; ok {
			result.Patients[i].Summary = summary
		}
	}
	result.Provenance.LLMRefined = true

	sanitized, _, residual := SanitizeStructuredSession(result)
	result = sanitized
	if len(residual) > 0 {
		result.Safety.PhiSafe = false
		result.Safety.ExportAllowed = false
		result.Safety.PersistAllowed = false
		result.Safety.ResidualCount += len(residual)
		s.logger.Warn().
			Str("session_id", result.SessionID).
			Int("residual", len(residual)).
			Msg("refine patch introduced residual PHI, export blocked")
	}
	return result
}

// compactUncertainties dedupes segment uncertainties by kind and reason
// and merges their evidence time ranges. The splitter fallback surfaces
// as an ambiguous_patient item so ungrouped content is never silent.
func compactUncertainties(segments []normalize.NormalizedSegment, buckets split.Result) []UncertaintyItem {
	type key struct {
		kind   normalize.UncertaintyKind
		reason string
	}
	merged := make(map[key]*UncertaintyItem)
	var order []key

	observe := func(kind normalize.UncertaintyKind, reason string, startMs, endMs int64) {
		k := key{kind: kind, reason: reason}
		item, ok := merged[k]
		if !ok {
			merged[k] = &UncertaintyItem{Kind: kind, Reason: reason, Count: 1, StartMs: startMs, EndMs: endMs}
			order = append(order, k)
			return
		}
		item.Count++
		if startMs < item.StartMs {
			item.StartMs = startMs
		}
		if endMs > item.EndMs {
			item.EndMs = endMs
		}
	}

	for _, seg := range segments {
		for _, u := range seg.Uncertainties {
			observe(u.Kind, u.Reason, seg.StartMs, seg.EndMs)
		}
	}

	if buckets.FallbackApplied {
		var startMs, endMs int64
		if n := len(segments); n > 0 {
			startMs = segments[0].StartMs
			endMs = segments[n-1].EndMs
		}
		observe(normalize.UncertaintyAmbiguousPatient, "환자 구분 단서가 없어 전체를 단일 환자로 묶었습니다", startMs, endMs)
	}

	items := make([]UncertaintyItem, 0, len(order))
	for _, k := range order {
		items = append(items, *merged[k])
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].StartMs != items[j].StartMs {
			return items[i].StartMs < items[j].StartMs
		}
		return items[i].Reason < items[j].Reason
	})
	return items
}
