// Package priority scores clinical salience per masked segment and
// folds each patient's stream into a compact card: top findings, todos,
// problems and coded risks, all still carrying their evidence
// references.
package priority

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/handover/handover/internal/domain/phi"
)

const (
	maxTopItems = 3
	maxTodos    = 4
	maxProblems = 6
	maxRisks    = 4
	maxGlobal   = 5
)

var (
	reClock   = regexp.MustCompile(`\d{1,2}:\d{2}`)
	reDigits  = regexp.MustCompile(`\d+`)
	reAliases = regexp.MustCompile(phi.AliasPrefix + `[A-Z]+`)
)

// BuildPatientCards folds each alias bucket into a PatientCard. The
// alias iteration order is sorted so output is deterministic.
func BuildPatientCards(patientSegments map[string][]phi.MaskedSegment, duty DutyType) []PatientCard {
	aliases := make([]string, 0, len(patientSegments))
	for alias := range patientSegments {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)

	cards := make([]PatientCard, 0, len(aliases))
	for _, alias := range aliases {
		cards = append(cards, buildCard(alias, patientSegments[alias], duty))
	}
	return cards
}

func buildCard(alias string, segments []phi.MaskedSegment, duty DutyType) PatientCard {
	card := PatientCard{Alias: alias}

	bestPerTopic := make(map[string]CardItem)
	var topicOrder []string

	for _, seg := range segments {
		text := seg.MaskedText
		topic := classifyTopic(text)
		score := scoreSegment(text, topic, duty)
		severity := severityFor(score)

		item := CardItem{
			Text:        text,
			Topic:       topic,
			Score:       score,
			Severity:    severity,
			EvidenceRef: seg.EvidenceRef,
		}
		if prev, ok := bestPerTopic[topic]; !ok || item.Score > prev.Score {
			if !ok {
				topicOrder = append(topicOrder, topic)
			}
			bestPerTopic[topic] = item
		}

		if isTodoCandidate(text) {
			card.Todos = append(card.Todos, TodoItem{
				Text:        text,
				Priority:    severity,
				Due:         reClock.FindString(text),
				EvidenceRef: seg.EvidenceRef,
			})
		}
		if isProblemCandidate(text, severity) {
			card.Problems = append(card.Problems, ProblemItem{
				Text:        text,
				Topic:       topic,
				Severity:    severity,
				EvidenceRef: seg.EvidenceRef,
			})
		}
		for _, risk := range extractRisks(text, seg) {
			card.Risks = append(card.Risks, risk)
		}
	}

	for _, topic := range topicOrder {
		card.TopItems = append(card.TopItems, bestPerTopic[topic])
	}
	sort.SliceStable(card.TopItems, func(i, j int) bool {
		return card.TopItems[i].Score > card.TopItems[j].Score
	})
	if len(card.TopItems) > maxTopItems {
		card.TopItems = card.TopItems[:maxTopItems]
	}

	card.Todos = dedupeTodos(card.Todos)
	sort.SliceStable(card.Todos, func(i, j int) bool {
		return severityRank(card.Todos[i].Priority) > severityRank(card.Todos[j].Priority)
	})
	if len(card.Todos) > maxTodos {
		card.Todos = card.Todos[:maxTodos]
	}

	card.Problems = dedupeProblems(card.Problems)
	sort.SliceStable(card.Problems, func(i, j int) bool {
		return severityRank(card.Problems[i].Severity) > severityRank(card.Problems[j].Severity)
	})
	if len(card.Problems) > maxProblems {
		card.Problems = card.Problems[:maxProblems]
	}

	card.Risks = dedupeRisks(card.Risks)
	sort.SliceStable(card.Risks, func(i, j int) bool {
		if severityRank(card.Risks[i].Level) != severityRank(card.Risks[j].Level) {
			return severityRank(card.Risks[i].Level) > severityRank(card.Risks[j].Level)
		}
		return card.Risks[i].Score > card.Risks[j].Score
	})
	if len(card.Risks) > maxRisks {
		card.Risks = card.Risks[:maxRisks]
	}

	card.Summary = summarize(card)
	return card
}

// BuildGlobalTop flattens every patient's top items, sorts by score
// descending, and keeps the system-wide top entries.
func BuildGlobalTop(cards []PatientCard) []GlobalTopItem {
	var items []GlobalTopItem
	for _, card := range cards {
		for _, it := range card.TopItems {
			items = append(items, GlobalTopItem{
				Alias:       card.Alias,
				Text:        it.Text,
				Topic:       it.Topic,
				Score:       it.Score,
				EvidenceRef: it.EvidenceRef,
			})
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].Alias < items[j].Alias
	})
	if len(items) > maxGlobal {
		items = items[:maxGlobal]
	}
	return items
}

func classifyTopic(text string) string {
	for _, rule := range topicRules {
		if rule.terms == nil {
			return rule.topic
		}
		for _, t := range rule.terms {
			if strings.Contains(text, t) {
				return rule.topic
			}
		}
	}
	return "general"
}

func scoreSegment(text, topic string, duty DutyType) int {
	score := 0
	for _, rule := range scoreRules {
		if strings.Contains(text, rule.term) {
			score += rule.weight
		}
	}
	weight := topicWeights[topic]
	if duty == DutyNight && nightBoostTopics[topic] {
		score++
		weight++
	}
	return score + weight
}

func severityFor(score int) string {
	switch {
	case score >= 7:
		return SeverityHigh
	case score >= 4:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func severityRank(s string) int {
	switch s {
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}

func isTodoCandidate(text string) bool {
	for _, v := range todoVerbs {
		if strings.Contains(text, v) {
			return true
		}
	}
	if reClock.MatchString(text) {
		for _, c := range pendingCues {
			if strings.Contains(text, c) {
				return true
			}
		}
	}
	return false
}

func isProblemCandidate(text, severity string) bool {
	for _, c := range abnormalCues {
		if strings.Contains(text, c) {
			return true
		}
	}
	return severity != SeverityLow
}

func extractRisks(text string, seg phi.MaskedSegment) []RiskItem {
	var risks []RiskItem
	for _, rule := range riskRules {
		for _, t := range rule.terms {
			if strings.Contains(text, t) {
				risks = append(risks, RiskItem{
					Code:        rule.code,
					Score:       rule.score,
					Level:       severityFor(rule.score + 2),
					Rationale:   text,
					EvidenceRef: seg.EvidenceRef,
				})
				break
			}
		}
	}
	return risks
}

// dedupeKey collapses digits, clock times and aliases so that two
// phrasings of the same instruction ("재확인 13:00" / "재확인 15:00")
// cannot both survive.
func dedupeKey(text string) string {
	key := strings.ToLower(text)
	key = reAliases.ReplaceAllString(key, "@")
	key = reClock.ReplaceAllString(key, "#")
	key = reDigits.ReplaceAllString(key, "#")
	key = strings.Join(strings.Fields(key), " ")
	return key
}

func dedupeTodos(in []TodoItem) []TodoItem {
	seen := make(map[string]bool)
	out := in[:0]
	for _, t := range in {
		k := dedupeKey(t.Text)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, t)
	}
	return out
}

func dedupeProblems(in []ProblemItem) []ProblemItem {
	seen := make(map[string]bool)
	out := in[:0]
	for _, p := range in {
		k := dedupeKey(p.Text)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, p)
	}
	return out
}

func dedupeRisks(in []RiskItem) []RiskItem {
	seen := make(map[string]bool)
	out := in[:0]
	for _, r := range in {
		if seen[r.Code] {
			continue
		}
		seen[r.Code] = true
		out = append(out, r)
	}
	return out
}

func summarize(card PatientCard) string {
	if len(card.TopItems) == 0 {
		return "특이사항 없음"
	}
	topics := make([]string, 0, len(card.TopItems))
	for _, it := range card.TopItems {
		topics = append(topics, topicLabel(it.Topic))
	}
	return fmt.Sprintf("%s 관련 %d건, 할 일 %d건", strings.Join(topics, "/"), len(card.TopItems), len(card.Todos))
}

func topicLabel(topic string) string {
	labels := map[string]string{
		"respiratory": "호흡",
		"hemodynamic": "혈역학",
		"glycemic":    "혈당",
		"infection":   "감염",
		"io":          "섭취배설",
		"medication":  "투약",
		"lab":         "검사",
		"neuro":       "신경",
		"fall":        "낙상",
		"general":     "일반",
	}
	if l, ok := labels[topic]; ok {
		return l
	}
	return topic
}
