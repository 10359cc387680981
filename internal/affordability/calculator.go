package affordability

import (
	"fmt"
	"math"
)

// Input carries the applicant figures the calculator needs.
type Input struct {
	PropertyPrice       float64      `json:"propertyPrice"`
	PropertyType        PropertyType `json:"propertyType"`
	MonthlyIncomes      []float64    `json:"monthlyIncomes"`
	ExistingCommitments float64      `json:"existingCommitments"`
	Ages                []int        `json:"ages"`
	Citizenship         Citizenship  `json:"citizenship"`
	// PropertyCount is the number of properties already owned. Each is assumed
	// to carry an outstanding housing loan for LTV purposes unless
	// OutstandingLoans is set.
	PropertyCount    int       `json:"propertyCount"`
	OutstandingLoans *int      `json:"outstandingLoans,omitempty"`
	Financing        Financing `json:"financing,omitempty"`
	TenureYears      int       `json:"tenureYears,omitempty"`
}

// Ceilings exposes the individual loan limits so callers can check which one
// bound. MSRLoan is only meaningful when MSRApplies.
type Ceilings struct {
	LTVLoan    float64 `json:"ltvLoan"`
	TDSRLoan   float64 `json:"tdsrLoan"`
	MSRLoan    float64 `json:"msrLoan"`
	MSRApplies bool    `json:"msrApplies"`
	// LTVReducedByAge is set when the LTV ceiling was cut because the loan
	// tenure runs past the full-LTV age or tenure limit.
	LTVReducedByAge bool `json:"ltvReducedByAge"`
}

// Result is the outcome of a calculation. Percentages are 0-100.
type Result struct {
	MaxLoan         float64        `json:"maxLoan"`
	MonthlyPayment  float64        `json:"monthlyPayment"`
	DownPayment     float64        `json:"downPayment"`
	MinCashRequired float64        `json:"minCashRequired"`
	TDSRUsed        float64        `json:"tdsrUsed"`
	MSRUsed         float64        `json:"msrUsed"`
	LTVUsed         float64        `json:"ltvUsed"`
	LimitingFactor  LimitingFactor `json:"limitingFactor"`
	MASCompliant    bool           `json:"masCompliant"`
	Warnings        []string       `json:"warnings"`
	TenureYears     int            `json:"tenureYears"`
	StressRate      float64        `json:"stressRate"`
	StampDuty       StampDuty      `json:"stampDuty"`
	Ceilings        Ceilings       `json:"ceilings"`
}

// Calculate runs the calculator with DefaultRules.
func Calculate(in Input) Result {
	return CalculateWithRules(in, DefaultRules())
}

// CalculateWithRules never fails: problems with the inputs surface as
// warnings and a zero MaxLoan.
func CalculateWithRules(in Input, rules Rules) Result {
	res := Result{Warnings: []string{}}
	price := math.Max(in.PropertyPrice, 0)
	income := totalIncome(in.MonthlyIncomes)
	commitments := math.Max(in.ExistingCommitments, 0)
	financing := in.Financing
	if financing == "" {
		financing = FinancingBank
	}
	if in.Citizenship == "" {
		in.Citizenship = Citizen
	}

	if !in.PropertyType.Valid() {
		res.Warnings = append(res.Warnings, fmt.Sprintf("unsupported property type %q", in.PropertyType))
		res.LimitingFactor = LimitLTV
		return res
	}
	if financing == FinancingHDB && in.PropertyType != PropertyHDB {
		res.Warnings = append(res.Warnings, "HDB concessionary loans are only available for HDB flats; assuming bank financing")
		financing = FinancingBank
	}

	res.StampDuty = rules.ComputeStampDuty(price, in.PropertyType, in.Citizenship, in.PropertyCount)
	stress := stressRate(in.PropertyType, financing, rules)
	res.StressRate = stress * 100

	tenure, ltvReduced, tenureWarnings := resolveTenure(in, financing, rules)
	res.Warnings = append(res.Warnings, tenureWarnings...)
	res.TenureYears = tenure
	months := tenure * 12

	ltv, cashPct, eligible, eligibility := loanToValue(in, financing, ltvReduced, rules)
	res.Warnings = append(res.Warnings, eligibility...)

	c := Ceilings{LTVReducedByAge: ltvReduced && eligible}
	if tenure > 0 {
		c.LTVLoan = price * ltv
	} else {
		c.LTVReducedByAge = eligible
	}
	if income <= 0 {
		res.Warnings = append(res.Warnings, "monthly income must be greater than zero to qualify for a loan")
	}
	tdsrBudget := math.Max(income*rules.TDSRLimit-commitments, 0)
	if income > 0 && tdsrBudget == 0 {
		res.Warnings = append(res.Warnings, "existing commitments already exceed the TDSR limit")
	}
	c.TDSRLoan = LoanFromPayment(tdsrBudget, stress, months)
	c.MSRApplies = msrApplies(in.PropertyType, financing)
	if c.MSRApplies {
		c.MSRLoan = LoanFromPayment(math.Max(income*rules.MSRLimit, 0), stress, months)
	}
	res.Ceilings = c

	res.MaxLoan, res.LimitingFactor = bind(c)
	res.LTVUsed = ltv * 100
	if price > 0 {
		res.LTVUsed = res.MaxLoan / price * 100
	}
	res.MonthlyPayment = MonthlyPayment(res.MaxLoan, stress, months)
	res.DownPayment = math.Max(price-res.MaxLoan, 0)
	res.MinCashRequired = price*cashPct + res.StampDuty.Total

	if income > 0 {
		res.TDSRUsed = (res.MonthlyPayment + commitments) / income * 100
		res.MSRUsed = res.MonthlyPayment / income * 100
	}
	res.MASCompliant = eligible && income > 0 && res.MaxLoan > 0 &&
		res.TDSRUsed <= rules.TDSRLimit*100+1e-6 &&
		(!c.MSRApplies || res.MSRUsed <= rules.MSRLimit*100+1e-6)

	if res.MaxLoan < c.LTVLoan && res.MaxLoan > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("loan limited by %s; the balance above %.0f must come from cash or CPF", res.LimitingFactor, res.MaxLoan))
	}
	return res
}

// bind picks the lowest ceiling. Ties resolve to LTV, then TDSR, then MSR so
// that a zero-income applicant is reported as TDSR-bound.
func bind(c Ceilings) (float64, LimitingFactor) {
	loan, factor := c.LTVLoan, LimitLTV
	if c.TDSRLoan < loan {
		loan, factor = c.TDSRLoan, LimitTDSR
	}
	if c.MSRApplies && c.MSRLoan < loan {
		loan, factor = c.MSRLoan, LimitMSR
	}
	if factor == LimitLTV && c.LTVReducedByAge {
		factor = LimitAge
	}
	return loan, factor
}

// msrApplies: MSR binds ECs and HDB flats financed with an HDB concessionary
// loan. Bank-financed HDB purchases are held to TDSR only.
func msrApplies(pt PropertyType, f Financing) bool {
	switch pt {
	case PropertyEC:
		return true
	case PropertyHDB:
		return f == FinancingHDB
	default:
		return false
	}
}

func stressRate(pt PropertyType, f Financing, rules Rules) float64 {
	switch {
	case pt == PropertyCommercial:
		return rules.CommercialStressRate
	case f == FinancingHDB:
		return rules.HDBLoanStressRate
	default:
		return rules.ResidentialStressRate
	}
}

func resolveTenure(in Input, f Financing, rules Rules) (int, bool, []string) {
	var warnings []string
	maxTenure := rules.MaxTenureBank
	switch {
	case in.PropertyType == PropertyCommercial:
		maxTenure = rules.MaxTenureCommercial
	case f == FinancingHDB:
		maxTenure = rules.MaxTenureHDBLoan
	}

	tenure := maxTenure
	if in.TenureYears > 0 {
		tenure = in.TenureYears
		if tenure > maxTenure {
			warnings = append(warnings, fmt.Sprintf("requested tenure capped at %d years", maxTenure))
			tenure = maxTenure
		}
	}

	age, ok := weightedAge(in.Ages, in.MonthlyIncomes)
	if !ok {
		warnings = append(warnings, "applicant age not provided; assuming the loan ends before the age limit")
		return tenure, false, warnings
	}
	if byAge := rules.MaxLoanEndAge - age; tenure > byAge {
		tenure = byAge
	}
	if tenure <= 0 {
		warnings = append(warnings, fmt.Sprintf("applicants aged %d or above cannot take a new housing loan", rules.MaxLoanEndAge))
		return 0, true, warnings
	}
	reduced := in.PropertyType.Residential() && f == FinancingBank &&
		(age+tenure > rules.FullLTVAge || tenure > rules.FullLTVTenure)
	if reduced {
		warnings = append(warnings, fmt.Sprintf("loan runs past age %d; lower LTV limit applies", rules.FullLTVAge))
	}
	return tenure, reduced, warnings
}

func loanToValue(in Input, f Financing, reduced bool, rules Rules) (ltv, cash float64, eligible bool, warnings []string) {
	switch in.PropertyType {
	case PropertyCommercial:
		return rules.CommercialLTV, rules.CommercialCash, true, nil
	case PropertyHDB:
		if in.Citizenship == Foreigner {
			return 0, 1, false, []string{"foreigners are not eligible to purchase HDB flats"}
		}
	case PropertyEC:
		if in.Citizenship == Foreigner {
			return 0, 1, false, []string{"foreigners are not eligible to purchase executive condominiums"}
		}
	}
	if f == FinancingHDB {
		return rules.HDBLoanLTV, rules.HDBLoanCash, true, nil
	}
	outstanding := in.PropertyCount
	if in.OutstandingLoans != nil {
		outstanding = *in.OutstandingLoans
	}
	tier := rules.tier(outstanding)
	if reduced {
		return tier.Reduced, tier.ReducedCash, true, nil
	}
	return tier.Full, tier.FullCash, true, nil
}

func totalIncome(incomes []float64) float64 {
	var total float64
	for _, v := range incomes {
		if v > 0 {
			total += v
		}
	}
	return total
}

// weightedAge is the income-weighted average age of the applicants, rounded
// up. With no positive income the plain average is used.
func weightedAge(ages []int, incomes []float64) (int, bool) {
	if len(ages) == 0 {
		return 0, false
	}
	var weighted, weights, sum float64
	for i, age := range ages {
		sum += float64(age)
		if i < len(incomes) && incomes[i] > 0 {
			weighted += float64(age) * incomes[i]
			weights += incomes[i]
		}
	}
	if weights == 0 {
		return int(math.Ceil(sum / float64(len(ages)))), true
	}
	return int(math.Ceil(weighted/weights - 1e-9)), true
}

// Rounded returns a copy with money and percentages rounded to 2dp for
// presentation. Internal math never uses the rounded values.
func (r Result) Rounded() Result {
	out := r
	out.MaxLoan = round2(r.MaxLoan)
	out.MonthlyPayment = round2(r.MonthlyPayment)
	out.DownPayment = round2(r.DownPayment)
	out.MinCashRequired = round2(r.MinCashRequired)
	out.TDSRUsed = round2(r.TDSRUsed)
	out.MSRUsed = round2(r.MSRUsed)
	out.LTVUsed = round2(r.LTVUsed)
	out.StressRate = round2(r.StressRate)
	out.StampDuty = StampDuty{
		BSD:      round2(r.StampDuty.BSD),
		ABSD:     round2(r.StampDuty.ABSD),
		ABSDRate: round2(r.StampDuty.ABSDRate),
		Total:    round2(r.StampDuty.Total),
	}
	out.Ceilings.LTVLoan = round2(r.Ceilings.LTVLoan)
	out.Ceilings.TDSRLoan = round2(r.Ceilings.TDSRLoan)
	out.Ceilings.MSRLoan = round2(r.Ceilings.MSRLoan)
	out.Warnings = append([]string{}, r.Warnings...)
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
