package conversation

import (
	"strconv"
	"strings"

	"github.com/wolfman30/mortgage-ai-platform/internal/affordability"
)

// Conversation custom attribute keys. The lead form writes the profile
// figures; the service writes the lead and persona fields.
const (
	AttrLeadID              = "lead_id"
	AttrLeadScore           = "lead_score"
	AttrLeadCategory        = "lead_category"
	AttrPersonaID           = "persona_id"
	AttrFormSubmitted       = "form_submitted"
	AttrCustomerName        = "customer_name"
	AttrLoanType            = "loan_type"
	AttrPropertyPrice       = "property_price"
	AttrPropertyType        = "property_type"
	AttrMonthlyIncome       = "monthly_income"
	AttrCoApplicantIncome   = "co_applicant_income"
	AttrExistingCommitments = "existing_commitments"
	AttrAge                 = "age"
	AttrCoApplicantAge      = "co_applicant_age"
	AttrCitizenship         = "citizenship"
	AttrPropertyCount       = "property_count"
	AttrFinancing           = "financing"
	AttrTenureYears         = "tenure_years"
)

// attrFloat reads a number that may arrive as a JSON number or a string
// such as "8,500".
func attrFloat(attrs map[string]any, key string) (float64, bool) {
	switch v := attrs[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		s := strings.NewReplacer(",", "", "$", "", "S", "", " ", "").Replace(v)
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	return 0, false
}

func attrInt(attrs map[string]any, key string) (int, bool) {
	f, ok := attrFloat(attrs, key)
	return int(f), ok
}

func attrString(attrs map[string]any, key string) string {
	switch v := attrs[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func attrBool(attrs map[string]any, key string) bool {
	switch v := attrs[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

// ProfileFromAttributes builds calculator input from conversation custom
// attributes. It reports false unless price, income and age are present.
func ProfileFromAttributes(attrs map[string]any) (affordability.Input, bool) {
	if len(attrs) == 0 {
		return affordability.Input{}, false
	}
	price, okPrice := attrFloat(attrs, AttrPropertyPrice)
	income, okIncome := attrFloat(attrs, AttrMonthlyIncome)
	age, okAge := attrInt(attrs, AttrAge)
	if !okPrice || !okIncome || !okAge || price <= 0 || income <= 0 || age <= 0 {
		return affordability.Input{}, false
	}

	in := affordability.Input{
		PropertyPrice:  price,
		PropertyType:   affordability.PropertyType(strings.ToLower(attrString(attrs, AttrPropertyType))),
		MonthlyIncomes: []float64{income},
		Ages:           []int{age},
		Citizenship:    affordability.Citizenship(strings.ToLower(attrString(attrs, AttrCitizenship))),
		Financing:      affordability.Financing(strings.ToLower(attrString(attrs, AttrFinancing))),
	}
	if !in.PropertyType.Valid() {
		in.PropertyType = affordability.PropertyPrivate
	}
	if in.Citizenship == "" {
		in.Citizenship = affordability.Citizen
	}
	if co, ok := attrFloat(attrs, AttrCoApplicantIncome); ok && co > 0 {
		in.MonthlyIncomes = append(in.MonthlyIncomes, co)
		if coAge, ok := attrInt(attrs, AttrCoApplicantAge); ok && coAge > 0 {
			in.Ages = append(in.Ages, coAge)
		} else {
			in.Ages = append(in.Ages, age)
		}
	}
	if v, ok := attrFloat(attrs, AttrExistingCommitments); ok && v > 0 {
		in.ExistingCommitments = v
	}
	if v, ok := attrInt(attrs, AttrPropertyCount); ok && v > 0 {
		in.PropertyCount = v
	}
	if v, ok := attrInt(attrs, AttrTenureYears); ok && v > 0 {
		in.TenureYears = v
	}
	return in, true
}
