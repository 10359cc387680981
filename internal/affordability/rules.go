// Package affordability computes Singapore mortgage limits: the loan-to-value
// ceiling, TDSR and MSR servicing ceilings at a stress rate, amortized monthly
// payments and stamp duty. Everything here is pure; callers supply the
// applicant figures and get a Result back with warnings instead of errors.
package affordability

// PropertyType is the kind of property being financed.
type PropertyType string

const (
	PropertyHDB        PropertyType = "hdb"
	PropertyEC         PropertyType = "ec"
	PropertyPrivate    PropertyType = "private"
	PropertyCommercial PropertyType = "commercial"
)

// Residential reports whether residential rules (LTV tiers, ABSD) apply.
func (p PropertyType) Residential() bool {
	return p == PropertyHDB || p == PropertyEC || p == PropertyPrivate
}

// Valid reports whether p is a supported property type.
func (p PropertyType) Valid() bool {
	return p.Residential() || p == PropertyCommercial
}

// Citizenship drives ABSD rates and HDB/EC eligibility.
type Citizenship string

const (
	Citizen   Citizenship = "citizen"
	PR        Citizenship = "pr"
	Foreigner Citizenship = "foreigner"
)

// Financing distinguishes bank loans from HDB concessionary loans.
type Financing string

const (
	FinancingBank Financing = "bank"
	FinancingHDB  Financing = "hdb"
)

// LimitingFactor names the ceiling that produced MaxLoan.
type LimitingFactor string

const (
	LimitTDSR LimitingFactor = "TDSR"
	LimitMSR  LimitingFactor = "MSR"
	LimitLTV  LimitingFactor = "LTV"
	LimitAge  LimitingFactor = "AGE"
)

// LTVTier is one row of the loan-to-value table, keyed by the number of
// housing loans the applicant already has.
type LTVTier struct {
	Full    float64 // tenure within limits
	Reduced float64 // tenure runs past FullLTVAge or the full-LTV tenure
	// Minimum cash down payment as a fraction of price.
	FullCash    float64
	ReducedCash float64
}

// Rules holds the regulatory constants. Rates and ratios are fractions.
type Rules struct {
	TDSRLimit float64
	MSRLimit  float64

	ResidentialStressRate float64
	HDBLoanStressRate     float64
	CommercialStressRate  float64

	// Indexed by outstanding housing loans; the last tier covers anything above.
	LTVTiers []LTVTier

	HDBLoanLTV             float64
	HDBLoanCash            float64
	CommercialLTV          float64
	CommercialCash         float64
	MaxTenureBank          int
	MaxTenureHDBLoan       int
	MaxTenureCommercial    int
	FullLTVTenure          int
	FullLTVAge             int
	MaxLoanEndAge          int
	ResidentialBSDBands    []Band
	NonResidentialBSDBands []Band
	ABSD                   map[Citizenship][]float64
}

// DefaultRules returns the MAS/IRAS figures in force since April 2023.
func DefaultRules() Rules {
	return Rules{
		TDSRLimit: 0.55,
		MSRLimit:  0.30,

		ResidentialStressRate: 0.04,
		HDBLoanStressRate:     0.03,
		CommercialStressRate:  0.05,

		LTVTiers: []LTVTier{
			{Full: 0.75, Reduced: 0.55, FullCash: 0.05, ReducedCash: 0.10},
			{Full: 0.45, Reduced: 0.25, FullCash: 0.25, ReducedCash: 0.25},
			{Full: 0.35, Reduced: 0.15, FullCash: 0.25, ReducedCash: 0.25},
		},

		HDBLoanLTV:          0.80,
		HDBLoanCash:         0,
		CommercialLTV:       0.80,
		CommercialCash:      0.20,
		MaxTenureBank:       30,
		MaxTenureHDBLoan:    25,
		MaxTenureCommercial: 30,
		FullLTVTenure:       30,
		FullLTVAge:          65,
		MaxLoanEndAge:       75,

		ResidentialBSDBands: []Band{
			{Upto: 180_000, Rate: 0.01},
			{Upto: 360_000, Rate: 0.02},
			{Upto: 1_000_000, Rate: 0.03},
			{Upto: 1_500_000, Rate: 0.04},
			{Upto: 3_000_000, Rate: 0.05},
			{Upto: 0, Rate: 0.06},
		},
		NonResidentialBSDBands: []Band{
			{Upto: 180_000, Rate: 0.01},
			{Upto: 360_000, Rate: 0.02},
			{Upto: 1_000_000, Rate: 0.03},
			{Upto: 1_500_000, Rate: 0.04},
			{Upto: 0, Rate: 0.05},
		},
		ABSD: map[Citizenship][]float64{
			Citizen:   {0, 0.20, 0.30},
			PR:        {0.05, 0.30, 0.35},
			Foreigner: {0.60},
		},
	}
}

// WithStressRate overrides the residential stress rate. Values above 1 are
// read as percentages. Zero leaves the rules unchanged.
func (r Rules) WithStressRate(rate float64) Rules {
	if rate <= 0 {
		return r
	}
	if rate > 1 {
		rate /= 100
	}
	r.ResidentialStressRate = rate
	return r
}

func (r Rules) tier(outstanding int) LTVTier {
	if outstanding < 0 {
		outstanding = 0
	}
	if outstanding >= len(r.LTVTiers) {
		return r.LTVTiers[len(r.LTVTiers)-1]
	}
	return r.LTVTiers[outstanding]
}
