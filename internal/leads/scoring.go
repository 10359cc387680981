package leads

import "strings"

// Category is the lead bucket derived from the score.
type Category string

const (
	CategoryPremium   Category = "premium"
	CategoryQualified Category = "qualified"
	CategoryNurture   Category = "nurture"
	CategoryCold      Category = "cold"
)

// Canonical cut lines.
const (
	PremiumThreshold   = 80
	QualifiedThreshold = 60
	NurtureThreshold   = 45
)

// Score is a 0-100 rating plus the points each factor contributed.
type Score struct {
	Value     int            `json:"value"`
	Category  Category       `json:"category"`
	Breakdown map[string]int `json:"breakdown"`
}

type incomeBand struct {
	min    float64
	points int
}

var incomeBands = []incomeBand{
	{20_000, 35},
	{15_000, 30},
	{10_000, 25},
	{7_000, 18},
	{5_000, 12},
	{3_000, 6},
}

// ScoreProfile rates a profile. It is a pure function of the profile and is
// non-decreasing in income and urgency.
func ScoreProfile(p ApplicantProfile) Score {
	breakdown := map[string]int{
		"income":       incomePoints(p.TotalIncome()),
		"loan_type":    loanTypePoints(p.LoanType),
		"timeline":     timelinePoints(p.PurchaseTimeline, p.Urgent),
		"property":     propertyPoints(p.PropertyPrice),
		"completeness": completenessPoints(p),
	}
	total := 0
	for _, v := range breakdown {
		total += v
	}
	if total > 100 {
		total = 100
	}
	return Score{Value: total, Category: Categorize(total), Breakdown: breakdown}
}

// Categorize maps a score to its bucket.
func Categorize(score int) Category {
	switch {
	case score >= PremiumThreshold:
		return CategoryPremium
	case score >= QualifiedThreshold:
		return CategoryQualified
	case score >= NurtureThreshold:
		return CategoryNurture
	default:
		return CategoryCold
	}
}

func incomePoints(total float64) int {
	for _, b := range incomeBands {
		if total >= b.min {
			return b.points
		}
	}
	return 0
}

func loanTypePoints(t LoanType) int {
	switch t {
	case LoanCommercial:
		return 15
	case LoanNewPurchase:
		return 12
	case LoanRefinance:
		return 10
	default:
		return 0
	}
}

func timelinePoints(timeline string, urgent bool) int {
	if urgent {
		return 25
	}
	switch strings.ToLower(strings.TrimSpace(timeline)) {
	case TimelineImmediate:
		return 25
	case TimelineOneToThree:
		return 18
	case TimelineThreeToSix:
		return 10
	case TimelineLater:
		return 5
	default:
		return 0
	}
}

func propertyPoints(price float64) int {
	switch {
	case price >= 2_000_000:
		return 15
	case price >= 1_000_000:
		return 12
	case price >= 500_000:
		return 8
	case price > 0:
		return 4
	default:
		return 0
	}
}

func completenessPoints(p ApplicantProfile) int {
	points := 0
	if strings.TrimSpace(p.Name) != "" {
		points += 2
	}
	if strings.TrimSpace(p.Email) != "" {
		points += 3
	}
	if strings.TrimSpace(p.Phone) != "" {
		points += 3
	}
	if len(p.Ages) > 0 {
		points++
	}
	if strings.TrimSpace(p.EmploymentType) != "" {
		points++
	}
	return points
}
