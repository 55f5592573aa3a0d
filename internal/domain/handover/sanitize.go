package handover

import (
	"fmt"

	"github.com/handover/handover/internal/platform/redact"
)

// Issue locates one sanitizer hit inside the structured payload.
type Issue struct {
	Field   string `json:"field"`
	Pattern string `json:"pattern"`
}

// SanitizeStructuredSession sweeps every string-bearing field of the
// result with the full redaction rule set plus the structure-specific
// rules, then re-scans the sanitized output for residual PHI. A
// non-empty residual list is a hard stop: persistence, export and any
// LLM hand-off must refuse the payload. The two passes exist because
// single-pass regex redaction is known to miss unusual surface forms;
// the residual pass is the only defense against silent leakage.
func SanitizeStructuredSession(result HandoverSessionResult) (HandoverSessionResult, []Issue, []Issue) {
	var issues []Issue
	rules := sanitizeRules()

	clean := func(field string, value *string) {
		masked, findings := redact.Apply(*value, rules)
		for _, f := range findings {
			issues = append(issues, Issue{Field: field, Pattern: f.Type})
		}
		*value = masked
	}

	walkStrings(&result, clean)

	var residual []Issue
	walkStrings(&result, func(field string, value *string) {
		for _, f := range redact.Scan(*value, redact.ResidualRules()) {
			residual = append(residual, Issue{Field: field, Pattern: f.Type})
		}
		for _, f := range redact.Scan(*value, redact.StructureRules()) {
			residual = append(residual, Issue{Field: field, Pattern: f.Type})
		}
	})

	return result, issues, residual
}

func sanitizeRules() []redact.Rule {
	rules := redact.HighSeverityRules()
	rules = append(rules, redact.MediumSeverityRules()...)
	rules = append(rules, redact.StructureRules()...)
	return rules
}

// walkStrings visits every string-bearing field of the result with a
// JSON-path-like locator. The walk is explicit rather than reflective
// so that adding a field to the model forces a conscious decision here.
func walkStrings(result *HandoverSessionResult, visit func(field string, value *string)) {
	for pi := range result.Patients {
		card := &result.Patients[pi]
		base := fmt.Sprintf("patients[%d]", pi)
		visit(base+".alias", &card.Alias)
		visit(base+".summary", &card.Summary)
		for i := range card.TopItems {
			visit(fmt.Sprintf("%s.topItems[%d].text", base, i), &card.TopItems[i].Text)
		}
		for i := range card.Todos {
			visit(fmt.Sprintf("%s.todos[%d].text", base, i), &card.Todos[i].Text)
			visit(fmt.Sprintf("%s.todos[%d].owner", base, i), &card.Todos[i].Owner)
		}
		for i := range card.Problems {
			visit(fmt.Sprintf("%s.problems[%d].text", base, i), &card.Problems[i].Text)
		}
		for i := range card.Risks {
			visit(fmt.Sprintf("%s.risks[%d].rationale", base, i), &card.Risks[i].Rationale)
		}
	}
	for i := range result.WardEvents {
		visit(fmt.Sprintf("wardEvents[%d].text", i), &result.WardEvents[i].Text)
	}
	for i := range result.GlobalTop {
		visit(fmt.Sprintf("globalTop[%d].text", i), &result.GlobalTop[i].Text)
	}
	for i := range result.Uncertainties {
		visit(fmt.Sprintf("uncertainties[%d].reason", i), &result.Uncertainties[i].Reason)
	}
}
