package affordability

import (
	"errors"
	"math"
)

// ErrPaymentTooSmall is returned when a payment never amortizes the loan.
var ErrPaymentTooSmall = errors.New("affordability: payment does not cover interest")

// MonthlyPayment returns the level payment for a loan of principal over
// months at annualRate (fraction). A zero rate degenerates to principal/months.
func MonthlyPayment(principal, annualRate float64, months int) float64 {
	if principal <= 0 || months <= 0 {
		return 0
	}
	r := annualRate / 12
	if r == 0 {
		return principal / float64(months)
	}
	growth := math.Pow(1+r, float64(months))
	return principal * r * growth / (growth - 1)
}

// LoanFromPayment is the inverse of MonthlyPayment for the principal.
func LoanFromPayment(payment, annualRate float64, months int) float64 {
	if payment <= 0 || months <= 0 {
		return 0
	}
	r := annualRate / 12
	if r == 0 {
		return payment * float64(months)
	}
	return payment * (1 - math.Pow(1+r, -float64(months))) / r
}

// TenureFromPayment returns the (fractional) number of months needed to
// repay principal with the given payment.
func TenureFromPayment(principal, payment, annualRate float64) (float64, error) {
	if principal <= 0 {
		return 0, nil
	}
	if payment <= 0 {
		return 0, ErrPaymentTooSmall
	}
	r := annualRate / 12
	if r == 0 {
		return principal / payment, nil
	}
	ratio := r * principal / payment
	if ratio >= 1 {
		return 0, ErrPaymentTooSmall
	}
	return -math.Log(1-ratio) / math.Log(1+r), nil
}
