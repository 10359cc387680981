package leads

import (
	"github.com/wolfman30/mortgage-ai-platform/internal/affordability"
)

func qualifiedProfile() ApplicantProfile {
	return ApplicantProfile{
		Name:             "Daniel Koh",
		Email:            "Daniel.Koh@example.com",
		LoanType:         LoanNewPurchase,
		PropertyType:     affordability.PropertyHDB,
		PropertyPrice:    800_000,
		MonthlyIncomes:   []float64{10_000},
		Ages:             []int{35},
		Citizenship:      affordability.Citizen,
		PurchaseTimeline: TimelineOneToThree,
		ConsentGiven:     true,
	}
}

func premiumProfile() ApplicantProfile {
	return ApplicantProfile{
		Name:           "Alicia Ng",
		Email:          "alicia@example.com",
		Phone:          "+65 9123 4567",
		LoanType:       LoanCommercial,
		PropertyType:   affordability.PropertyCommercial,
		PropertyPrice:  2_500_000,
		MonthlyIncomes: []float64{18_000, 9_000},
		Ages:           []int{45, 43},
		Citizenship:    affordability.Citizen,
		EmploymentType: "self_employed",
		Urgent:         true,
		ConsentGiven:   true,
	}
}
