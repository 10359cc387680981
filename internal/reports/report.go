// Package reports builds the downloadable affordability report and archives
// it to S3.
package reports

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/wolfman30/mortgage-ai-platform/internal/affordability"
	"github.com/wolfman30/mortgage-ai-platform/internal/compliance"
	"github.com/wolfman30/mortgage-ai-platform/internal/leads"
	"github.com/wolfman30/mortgage-ai-platform/internal/persona"
)

// Summary is the non-identifying part of the applicant profile kept in a
// report. Names and contact details never leave the request.
type Summary struct {
	LoanType         leads.LoanType             `json:"loanType"`
	PropertyType     affordability.PropertyType `json:"propertyType"`
	PropertyPrice    float64                    `json:"propertyPrice"`
	Applicants       int                        `json:"applicants"`
	CombinedIncome   float64                    `json:"combinedIncome"`
	Commitments      float64                    `json:"existingCommitments"`
	Citizenship      affordability.Citizenship  `json:"citizenship"`
	PropertiesOwned  int                        `json:"propertiesOwned"`
	PurchaseTimeline string                     `json:"purchaseTimeline,omitempty"`
}

// Report is the generated affordability report.
type Report struct {
	ID              string               `json:"id"`
	GeneratedAt     time.Time            `json:"generatedAt"`
	Summary         Summary              `json:"summary"`
	Score           leads.Score          `json:"score"`
	Persona         persona.Persona      `json:"persona"`
	Calculation     affordability.Result `json:"calculation"`
	Recommendations []string             `json:"recommendations"`
	Disclaimer      string               `json:"disclaimer"`
	ArchiveKey      string               `json:"archiveKey,omitempty"`
}

// Builder assembles reports from applicant profiles.
type Builder struct {
	rules      affordability.Rules
	selector   *persona.Selector
	disclaimer *compliance.DisclaimerService
	now        func() time.Time
	printer    *message.Printer
}

// NewBuilder panics on a nil selector.
func NewBuilder(rules affordability.Rules, selector *persona.Selector, disclaimer *compliance.DisclaimerService) *Builder {
	if selector == nil {
		panic("reports: persona selector cannot be nil")
	}
	if disclaimer == nil {
		disclaimer = compliance.NewDisclaimerService(compliance.DisclaimerConfig{Level: compliance.DisclaimerFull, Enabled: true})
	}
	return &Builder{
		rules:      rules,
		selector:   selector,
		disclaimer: disclaimer,
		now:        time.Now,
		printer:    message.NewPrinter(language.English),
	}
}

// Validate checks only what the report needs: calculator inputs. Contact
// details and consent are not required because nothing identifying is kept.
func Validate(p leads.ApplicantProfile) error {
	details := p.CalculatorInput().Validate()
	if p.PropertyType != "" && !p.PropertyType.Valid() {
		details = append(details, fmt.Sprintf("propertyType %q is not supported", p.PropertyType))
	}
	if len(p.MonthlyIncomes) == 0 {
		details = append(details, "at least one monthly income is required")
	}
	if len(details) > 0 {
		return &leads.ValidationError{Details: details}
	}
	return nil
}

// Build scores the profile, picks a persona, runs the calculator and derives
// recommendations.
func (b *Builder) Build(p leads.ApplicantProfile) (*Report, error) {
	if err := Validate(p); err != nil {
		return nil, err
	}

	score := leads.ScoreProfile(p)
	chosen := b.selector.Select(score.Value, persona.Context{LoanType: string(p.LoanType), Urgent: p.Urgent})
	calc := affordability.CalculateWithRules(p.CalculatorInput(), b.rules).Rounded()

	return &Report{
		ID:          uuid.NewString(),
		GeneratedAt: b.now().UTC(),
		Summary: Summary{
			LoanType:         p.LoanType,
			PropertyType:     p.PropertyType,
			PropertyPrice:    p.PropertyPrice,
			Applicants:       len(p.MonthlyIncomes),
			CombinedIncome:   p.TotalIncome(),
			Commitments:      p.ExistingCommitments,
			Citizenship:      p.Citizenship,
			PropertiesOwned:  p.PropertyCount,
			PurchaseTimeline: p.PurchaseTimeline,
		},
		Score:           score,
		Persona:         chosen,
		Calculation:     calc,
		Recommendations: b.recommend(p, calc),
		Disclaimer:      b.disclaimer.Text(),
	}, nil
}

func (b *Builder) recommend(p leads.ApplicantProfile, calc affordability.Result) []string {
	var out []string
	if calc.MaxLoan <= 0 {
		out = append(out, "Current figures do not support a housing loan. Speak to a broker about restructuring commitments or adding a co-applicant.")
		return out
	}

	switch calc.LimitingFactor {
	case affordability.LimitTDSR:
		if p.ExistingCommitments > 0 {
			out = append(out, b.printer.Sprintf("Your loan is capped by TDSR. Clearing S$%.0f of monthly commitments would raise the ceiling.", p.ExistingCommitments))
		} else {
			out = append(out, "Your loan is capped by TDSR. Adding a co-applicant's income would raise the ceiling.")
		}
	case affordability.LimitMSR:
		out = append(out, "Your loan is capped by MSR, which applies to HDB and EC purchases. A co-applicant's income counts toward the limit.")
	case affordability.LimitLTV:
		out = append(out, b.printer.Sprintf("Your loan is capped by LTV at %.0f%%. Plan for a cash and CPF down payment of S$%.0f.", calc.LTVUsed, calc.DownPayment))
	case affordability.LimitAge:
		out = append(out, "Your tenure is limited by age. A younger co-applicant or a shorter tenure changes the LTV band.")
	}

	if calc.Ceilings.LTVReducedByAge {
		out = append(out, "The LTV limit was reduced because the tenure runs past the full-LTV age or tenure limit.")
	}
	if calc.MinCashRequired > 0 {
		out = append(out, b.printer.Sprintf("Set aside at least S$%.0f in cash for the minimum cash portion and stamp duty.", calc.MinCashRequired))
	}
	if sd := calc.StampDuty; sd.ABSD > 0 {
		out = append(out, b.printer.Sprintf("Budget S$%.0f for stamp duty, including S$%.0f ABSD at %.0f%%.", sd.Total, sd.ABSD, sd.ABSDRate))
	} else if sd.Total > 0 {
		out = append(out, b.printer.Sprintf("Budget S$%.0f for buyer's stamp duty.", sd.Total))
	}
	for _, w := range calc.Warnings {
		if w = strings.TrimSpace(w); w != "" {
			out = append(out, w)
		}
	}
	return out
}
