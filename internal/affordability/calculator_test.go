package affordability

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculate_FirstHDBIsLTVBound(t *testing.T) {
	res := Calculate(Input{
		PropertyPrice:  1_000_000,
		PropertyType:   PropertyHDB,
		MonthlyIncomes: []float64{10_000},
		Ages:           []int{35},
		Citizenship:    Citizen,
		PropertyCount:  0,
	})

	assert.Equal(t, 750_000.0, res.MaxLoan)
	assert.Equal(t, LimitLTV, res.LimitingFactor)
	assert.True(t, res.MASCompliant)
	assert.Equal(t, 30, res.TenureYears)
	assert.InDelta(t, 75.0, res.LTVUsed, 1e-9)
	assert.Equal(t, 250_000.0, res.DownPayment)
	assert.False(t, res.Ceilings.MSRApplies)
	// 5% cash plus BSD of 24,600 on a 1M flat.
	assert.InDelta(t, 50_000+24_600, res.MinCashRequired, 1e-6)
}

func TestCalculate_MaxTenureByTypeAndFinancing(t *testing.T) {
	tests := []struct {
		name      string
		pt        PropertyType
		financing Financing
		want      int
		msr       bool
	}{
		{"hdb bank loan", PropertyHDB, FinancingBank, 30, false},
		{"hdb concessionary loan", PropertyHDB, FinancingHDB, 25, true},
		{"ec", PropertyEC, FinancingBank, 30, true},
		{"private", PropertyPrivate, FinancingBank, 30, false},
		{"commercial", PropertyCommercial, FinancingBank, 30, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Calculate(Input{
				PropertyPrice:  600_000,
				PropertyType:   tt.pt,
				MonthlyIncomes: []float64{8_000},
				Ages:           []int{28},
				Citizenship:    Citizen,
				Financing:      tt.financing,
			})
			assert.Equal(t, tt.want, res.TenureYears)
			assert.Equal(t, tt.msr, res.Ceilings.MSRApplies)
		})
	}
}

func TestCalculate_ZeroIncomeReturnsWarning(t *testing.T) {
	res := Calculate(Input{
		PropertyPrice: 800_000,
		PropertyType:  PropertyPrivate,
		Ages:          []int{40},
		Citizenship:   Citizen,
	})

	assert.Zero(t, res.MaxLoan)
	assert.Equal(t, LimitTDSR, res.LimitingFactor)
	assert.False(t, res.MASCompliant)
	assert.Contains(t, res.Warnings, "monthly income must be greater than zero to qualify for a loan")
}

func TestCalculate_NegativeIncomeTreatedAsZero(t *testing.T) {
	res := Calculate(Input{
		PropertyPrice:  800_000,
		PropertyType:   PropertyPrivate,
		MonthlyIncomes: []float64{-5000},
		Ages:           []int{40},
	})
	assert.Zero(t, res.MaxLoan)
	assert.NotEmpty(t, res.Warnings)
}

func TestCalculate_ForeignerCannotBuyHDB(t *testing.T) {
	res := Calculate(Input{
		PropertyPrice:  600_000,
		PropertyType:   PropertyHDB,
		MonthlyIncomes: []float64{12_000},
		Ages:           []int{30},
		Citizenship:    Foreigner,
	})
	assert.Zero(t, res.MaxLoan)
	assert.Equal(t, LimitLTV, res.LimitingFactor)
	assert.False(t, res.MASCompliant)
	assert.Contains(t, res.Warnings, "foreigners are not eligible to purchase HDB flats")
}

func TestCalculate_AgeLimits(t *testing.T) {
	t.Run("too old for any loan", func(t *testing.T) {
		res := Calculate(Input{
			PropertyPrice:  900_000,
			PropertyType:   PropertyPrivate,
			MonthlyIncomes: []float64{15_000},
			Ages:           []int{75},
		})
		assert.Zero(t, res.MaxLoan)
		assert.Equal(t, LimitAge, res.LimitingFactor)
		assert.Zero(t, res.TenureYears)
	})

	t.Run("loan past 65 reduces LTV", func(t *testing.T) {
		res := Calculate(Input{
			PropertyPrice:  1_000_000,
			PropertyType:   PropertyPrivate,
			MonthlyIncomes: []float64{20_000},
			Ages:           []int{45},
		})
		assert.InDelta(t, 550_000, res.MaxLoan, 1e-6)
		assert.Equal(t, LimitAge, res.LimitingFactor)
		assert.True(t, res.Ceilings.LTVReducedByAge)
		// 5% cash becomes 10% once the reduced tier applies.
		assert.InDelta(t, 100_000+24_600, res.MinCashRequired, 1e-6)
	})

	t.Run("shorter tenure keeps full LTV", func(t *testing.T) {
		res := Calculate(Input{
			PropertyPrice:  1_000_000,
			PropertyType:   PropertyPrivate,
			MonthlyIncomes: []float64{20_000},
			Ages:           []int{45},
			TenureYears:    20,
		})
		assert.InDelta(t, 750_000, res.MaxLoan, 1e-6)
		assert.Equal(t, LimitLTV, res.LimitingFactor)
	})
}

func TestCalculate_HDBLoanIsMSRBound(t *testing.T) {
	res := Calculate(Input{
		PropertyPrice:  500_000,
		PropertyType:   PropertyHDB,
		MonthlyIncomes: []float64{5_000},
		Ages:           []int{30},
		Financing:      FinancingHDB,
	})

	require.True(t, res.Ceilings.MSRApplies)
	assert.Equal(t, LimitMSR, res.LimitingFactor)
	assert.Equal(t, 25, res.TenureYears)
	assert.InDelta(t, res.Ceilings.MSRLoan, res.MaxLoan, 1e-9)
	assert.Less(t, res.MaxLoan, 400_000.0)
	assert.InDelta(t, 30.0, res.MSRUsed, 1e-6)
	assert.True(t, res.MASCompliant)
}

func TestCalculate_ECAppliesMSR(t *testing.T) {
	res := Calculate(Input{
		PropertyPrice:  1_300_000,
		PropertyType:   PropertyEC,
		MonthlyIncomes: []float64{6_000, 4_000},
		Ages:           []int{32, 30},
		Citizenship:    Citizen,
	})
	require.True(t, res.Ceilings.MSRApplies)
	assert.Equal(t, LimitMSR, res.LimitingFactor)
	assert.LessOrEqual(t, res.MSRUsed, 30.0+1e-6)
}

func TestCalculate_SecondPropertyTier(t *testing.T) {
	res := Calculate(Input{
		PropertyPrice:  2_000_000,
		PropertyType:   PropertyPrivate,
		MonthlyIncomes: []float64{40_000},
		Ages:           []int{35},
		Citizenship:    Citizen,
		PropertyCount:  1,
	})
	assert.InDelta(t, 900_000, res.MaxLoan, 1e-6)
	assert.Equal(t, LimitLTV, res.LimitingFactor)
	assert.InDelta(t, 20.0, res.StampDuty.ABSDRate, 1e-9)
	assert.InDelta(t, 400_000, res.StampDuty.ABSD, 1e-6)
}

func TestCalculate_OutstandingLoansOverridePropertyCount(t *testing.T) {
	none := 0
	res := Calculate(Input{
		PropertyPrice:    2_000_000,
		PropertyType:     PropertyPrivate,
		MonthlyIncomes:   []float64{40_000},
		Ages:             []int{35},
		PropertyCount:    1,
		OutstandingLoans: &none,
	})
	assert.InDelta(t, 1_500_000, res.MaxLoan, 1e-6)
}

func TestCalculate_Commercial(t *testing.T) {
	res := Calculate(Input{
		PropertyPrice:  3_000_000,
		PropertyType:   PropertyCommercial,
		MonthlyIncomes: []float64{50_000},
		Ages:           []int{40},
		Citizenship:    Foreigner,
	})
	assert.InDelta(t, 5.0, res.StressRate, 1e-9)
	assert.Zero(t, res.StampDuty.ABSD)
	assert.False(t, res.Ceilings.MSRApplies)
	assert.LessOrEqual(t, res.MaxLoan, 2_400_000.0)
}

func TestCalculate_UnsupportedPropertyType(t *testing.T) {
	res := Calculate(Input{
		PropertyPrice:  1_000_000,
		PropertyType:   "houseboat",
		MonthlyIncomes: []float64{10_000},
	})
	assert.Zero(t, res.MaxLoan)
	assert.Len(t, res.Warnings, 1)
}

func TestCalculate_StressRateOverride(t *testing.T) {
	in := Input{
		PropertyPrice:  2_000_000,
		PropertyType:   PropertyPrivate,
		MonthlyIncomes: []float64{8_000},
		Ages:           []int{30},
	}
	base := Calculate(in)
	stressed := CalculateWithRules(in, DefaultRules().WithStressRate(5))
	assert.Equal(t, LimitTDSR, base.LimitingFactor)
	assert.Less(t, stressed.MaxLoan, base.MaxLoan)
	assert.InDelta(t, 5.0, stressed.StressRate, 1e-9)
}

func TestCalculate_CeilingsHoldForRandomInputs(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	types := []PropertyType{PropertyHDB, PropertyEC, PropertyPrivate, PropertyCommercial}
	cits := []Citizenship{Citizen, PR, Foreigner}
	fin := []Financing{FinancingBank, FinancingHDB}

	for i := 0; i < 2000; i++ {
		in := Input{
			PropertyPrice:       float64(100_000 + rng.Intn(5_000_000)),
			PropertyType:        types[rng.Intn(len(types))],
			MonthlyIncomes:      []float64{float64(rng.Intn(40_000))},
			ExistingCommitments: float64(rng.Intn(5_000)),
			Ages:                []int{21 + rng.Intn(60)},
			Citizenship:         cits[rng.Intn(len(cits))],
			PropertyCount:       rng.Intn(4),
			Financing:           fin[rng.Intn(len(fin))],
			TenureYears:         rng.Intn(36),
		}
		if rng.Intn(3) == 0 {
			in.MonthlyIncomes = append(in.MonthlyIncomes, float64(rng.Intn(20_000)))
			in.Ages = append(in.Ages, 21+rng.Intn(50))
		}

		res := Calculate(in)
		c := res.Ceilings
		require.GreaterOrEqual(t, res.MaxLoan, 0.0)
		require.LessOrEqual(t, res.MaxLoan, c.LTVLoan+1e-6, "input %+v", in)
		require.LessOrEqual(t, res.MaxLoan, c.TDSRLoan+1e-6, "input %+v", in)
		if c.MSRApplies {
			require.LessOrEqual(t, res.MaxLoan, c.MSRLoan+1e-6, "input %+v", in)
		}

		var bound float64
		switch res.LimitingFactor {
		case LimitLTV, LimitAge:
			bound = c.LTVLoan
		case LimitTDSR:
			bound = c.TDSRLoan
		case LimitMSR:
			require.True(t, c.MSRApplies)
			bound = c.MSRLoan
		default:
			t.Fatalf("unexpected limiting factor %q", res.LimitingFactor)
		}
		require.InDelta(t, bound, res.MaxLoan, 1e-6, "input %+v", in)
		if res.LimitingFactor == LimitAge {
			require.True(t, c.LTVReducedByAge)
		}
	}
}

func TestRounded(t *testing.T) {
	res := Result{MaxLoan: 1234.5678, TDSRUsed: 33.333333, Warnings: []string{"a"}}
	out := res.Rounded()
	assert.Equal(t, 1234.57, out.MaxLoan)
	assert.Equal(t, 33.33, out.TDSRUsed)
	out.Warnings[0] = "b"
	assert.Equal(t, "a", res.Warnings[0])
	assert.Equal(t, 1234.5678, res.MaxLoan)
}

func TestWeightedAge(t *testing.T) {
	age, ok := weightedAge([]int{30, 40}, []float64{9_000, 3_000})
	require.True(t, ok)
	assert.Equal(t, 33, age)

	age, ok = weightedAge([]int{30, 41}, nil)
	require.True(t, ok)
	assert.Equal(t, 36, age)

	_, ok = weightedAge(nil, []float64{1})
	assert.False(t, ok)
}
