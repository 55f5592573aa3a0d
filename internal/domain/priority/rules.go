package priority

// Topic classification rules. First match wins, so the order is part of
// the contract: a segment mentioning both 산소포화도 and 혈압 is a
// respiratory fact.
var topicRules = []struct {
	topic string
	terms []string
}{
	{topic: "respiratory", terms: []string{"호흡", "산소포화도", "산소", "객담", "천명", "흡인", "인공호흡기", "기도", "기침"}},
	{topic: "hemodynamic", terms: []string{"혈압", "맥박", "심박", "출혈", "빈맥", "서맥", "부정맥", "수혈", "쇼크"}},
	{topic: "glycemic", terms: []string{"혈당", "인슐린", "저혈당", "고혈당"}},
	{topic: "infection", terms: []string{"발열", "감염", "항생제", "염증", "체온", "배양"}},
	{topic: "io", terms: []string{"소변량", "섭취배설량", "배액", "수분", "유치도뇨관"}},
	{topic: "medication", terms: []string{"투약", "투여", "약물", "진통제", "처방", "항응고"}},
	{topic: "lab", terms: []string{"검사결과", "검사", "수치", "채혈", "CRP", "크레아티닌"}},
	{topic: "neuro", terms: []string{"의식", "경련", "동공", "섬망", "신경"}},
	{topic: "fall", terms: []string{"낙상", "침상난간", "억제대"}},
	{topic: "general", terms: nil},
}

// Base priority keyword weights. Airway, bleeding, anticoagulation and
// consciousness changes dominate.
var scoreRules = []struct {
	term   string
	weight int
}{
	{term: "기도", weight: 4},
	{term: "출혈", weight: 4},
	{term: "항응고", weight: 4},
	{term: "의식", weight: 4},
	{term: "산소포화도저하", weight: 4},
	{term: "심정지", weight: 5},
	{term: "쇼크", weight: 4},
	{term: "저혈당", weight: 3},
	{term: "경련", weight: 3},
	{term: "발열", weight: 2},
	{term: "혈압", weight: 2},
	{term: "산소포화도", weight: 2},
	{term: "수혈", weight: 3},
	{term: "통증", weight: 1},
	{term: "낙상", weight: 2},
	{term: "욕창", weight: 1},
	{term: "감소", weight: 1},
	{term: "상승", weight: 1},
	{term: "악화", weight: 2},
	{term: "불안정", weight: 2},
}

// Per-topic weights added on top of the keyword score.
var topicWeights = map[string]int{
	"respiratory": 3,
	"hemodynamic": 3,
	"neuro":       3,
	"glycemic":    2,
	"infection":   2,
	"medication":  2,
	"fall":        2,
	"io":          1,
	"lab":         1,
	"general":     0,
}

// Topics that get the night-duty bonus.
var nightBoostTopics = map[string]bool{
	"respiratory": true,
	"hemodynamic": true,
	"neuro":       true,
	"glycemic":    true,
}

var (
	todoVerbs    = []string{"확인", "재측정", "투약", "체크", "드레싱", "보고", "채혈", "시행", "교체", "관찰"}
	pendingCues  = []string{"예정", "필요", "해야", "부탁"}
	abnormalCues = []string{"저하", "상승", "악화", "감소", "증가", "불안정", "이상", "발열", "출혈", "통증", "경련", "저혈당", "고혈당"}
)

// Coded risk rules: keyword presence maps to a risk code with a base
// score.
var riskRules = []struct {
	code  string
	score int
	terms []string
}{
	{code: "AIRWAY", score: 5, terms: []string{"기도", "흡인", "산소포화도저하"}},
	{code: "BLEEDING", score: 5, terms: []string{"출혈", "항응고", "수혈"}},
	{code: "NEURO", score: 4, terms: []string{"의식", "경련", "섬망"}},
	{code: "HYPOGLYCEMIA", score: 4, terms: []string{"저혈당"}},
	{code: "INFECTION", score: 3, terms: []string{"발열", "감염", "배양"}},
	{code: "FALL", score: 3, terms: []string{"낙상"}},
	{code: "PRESSURE_SORE", score: 2, terms: []string{"욕창"}},
}
