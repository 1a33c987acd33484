package qualify

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/siftly/siftly/internal/lead"
)

// Classification thresholds. These are policy, not configuration.
const (
	HotThreshold  = 7
	WarmThreshold = 4
)

// Rubric weights.
const (
	UrgencyPoints     = 4
	BudgetPoints      = 3
	ReplacementPoints = 2
	ZipPoints         = 1

	// BudgetThreshold is the smallest budget, in dollars, that earns BudgetPoints.
	BudgetThreshold = 5000
)

var (
	urgencyRe     = regexp.MustCompile(`(?i)\b(immediate|immediately|emergency)\b`)
	insuranceRe   = regexp.MustCompile(`(?i)\binsurance\b`)
	fullReplaceRe = regexp.MustCompile(`(?i)\bfull\s+replacement\b`)
	bareReplaceRe = regexp.MustCompile(`(?i)^replace(ment)?$`)
	qualifierRe   = regexp.MustCompile(`(?i)\b(no|not|partial|partly|without|don['’]?t)\b`)
	clauseRe      = regexp.MustCompile(`[.,;!?\n]+`)
	optionBRe     = regexp.MustCompile(`(?i)^\(?b\)?(\s*[:.)\-]|\s*$)`)
	zipRe         = regexp.MustCompile(`\b\d{5}(-\d{4})?\b`)

	// amountRe groups: currency sign, digits, k/thousand multiplier,
	// currency word.
	amountRe = regexp.MustCompile(`(?i)(\$)?\s*(\d{1,3}(?:,\d{3})+|\d+(?:\.\d+)?)\s*(k\b|thousand\b)?\s*(dollars?\b|usd\b|bucks\b)?`)
)

// Clamp bounds a score to [lead.MinScore, lead.MaxScore].
func Clamp(score int) int {
	if score < lead.MinScore {
		return lead.MinScore
	}
	if score > lead.MaxScore {
		return lead.MaxScore
	}
	return score
}

// Classify maps a score to its bucket: >=7 HOT, 4-6 WARM, <4 COLD.
func Classify(score int) lead.Classification {
	switch {
	case score >= HotThreshold:
		return lead.ClassHot
	case score >= WarmThreshold:
		return lead.ClassWarm
	default:
		return lead.ClassCold
	}
}

// Signals are the rubric facts found in a lead's answers.
type Signals struct {
	Urgent      bool `json:"urgent"`
	Budget      bool `json:"budget"`
	Replacement bool `json:"replacement"`
	ValidZip    bool `json:"valid_zip"`
}

// Score sums the rubric weights for s, clamped.
func (s Signals) Score() int {
	score := 0
	if s.Urgent {
		score += UrgencyPoints
	}
	if s.Budget {
		score += BudgetPoints
	}
	if s.Replacement {
		score += ReplacementPoints
	}
	if s.ValidZip {
		score += ZipPoints
	}
	return Clamp(score)
}

// Answers are the facts the rubric reads. On the scripted path they are the
// three collected answers; on the conversational path Transcript holds the
// lead's own turns and the other fields are empty.
type Answers struct {
	ZipCode        string
	ProjectType    string
	TimelineBudget string
	Transcript     []lead.Turn
}

// Detect extracts rubric signals from a.
func Detect(a Answers) Signals {
	if len(a.Transcript) > 0 {
		var parts []string
		for _, t := range a.Transcript {
			if t.Role == lead.RoleUser {
				parts = append(parts, t.Text)
			}
		}
		text := strings.Join(parts, "\n")
		return Signals{
			Urgent:      urgencyRe.MatchString(text),
			Budget:      mentionsBudget(text, false),
			Replacement: mentionsReplacement(text),
			ValidZip:    zipRe.MatchString(text),
		}
	}

	// Bare figures count only in the timeline/budget answer.
	answers := a.ProjectType + "\n" + a.TimelineBudget
	return Signals{
		Urgent:      urgencyRe.MatchString(answers),
		Budget:      mentionsBudget(a.ProjectType, false) || mentionsBudget(a.TimelineBudget, true),
		Replacement: isReplacement(a.ProjectType),
		ValidZip:    zipRe.MatchString(a.ZipCode),
	}
}

// RubricScore is the deterministic local score for a.
func RubricScore(a Answers) int {
	return Detect(a).Score()
}

func isReplacement(projectType string) bool {
	return optionBRe.MatchString(strings.TrimSpace(projectType)) || mentionsReplacement(projectType)
}

// mentionsReplacement reports whether any clause of text asks for a full
// replacement. Clauses carrying a negation or "partial" never count.
func mentionsReplacement(text string) bool {
	for _, clause := range clauseRe.Split(text, -1) {
		clause = strings.TrimSpace(clause)
		if clause == "" || qualifierRe.MatchString(clause) {
			continue
		}
		if fullReplaceRe.MatchString(clause) || bareReplaceRe.MatchString(clause) {
			return true
		}
	}
	return false
}

// mentionsBudget reports an insurance claim or an amount of at least
// BudgetThreshold. Unless bare is set, a number needs a currency sign,
// currency word, thousands separator or k suffix to count, so ZIP codes
// in free text are not read as money.
func mentionsBudget(text string, bare bool) bool {
	if insuranceRe.MatchString(text) {
		return true
	}
	return maxAmount(text, bare) >= BudgetThreshold
}

// maxAmount returns the largest dollar amount mentioned in text, or 0.
func maxAmount(text string, bare bool) float64 {
	var best float64
	for _, m := range amountRe.FindAllStringSubmatch(text, -1) {
		marked := m[1] != "" || m[3] != "" || m[4] != "" || strings.Contains(m[2], ",")
		if !marked && !bare {
			continue
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(m[2], ",", ""), 64)
		if err != nil {
			continue
		}
		if m[3] != "" {
			v *= 1000
		}
		if v > best {
			best = v
		}
	}
	return best
}
