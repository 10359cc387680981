package affordability

// Band is one marginal stamp duty band. Upto is the cumulative upper bound of
// the band; zero marks the open-ended top band.
type Band struct {
	Upto float64
	Rate float64
}

// StampDuty is buyer's stamp duty plus additional buyer's stamp duty.
type StampDuty struct {
	BSD      float64 `json:"bsd"`
	ABSD     float64 `json:"absd"`
	ABSDRate float64 `json:"absdRate"`
	Total    float64 `json:"total"`
}

// BuyerStampDuty applies the marginal bands to price.
func BuyerStampDuty(price float64, bands []Band) float64 {
	if price <= 0 {
		return 0
	}
	var (
		duty  float64
		lower float64
	)
	for _, b := range bands {
		upper := b.Upto
		if upper == 0 || price < upper {
			upper = price
		}
		if upper > lower {
			duty += (upper - lower) * b.Rate
		}
		if b.Upto == 0 || price <= b.Upto {
			break
		}
		lower = b.Upto
	}
	return duty
}

// ABSDRate returns the additional stamp duty rate for a buyer who already
// owns propertiesOwned residential properties.
func (r Rules) ABSDRate(c Citizenship, propertiesOwned int) float64 {
	rates, ok := r.ABSD[c]
	if !ok || len(rates) == 0 {
		rates = r.ABSD[Foreigner]
	}
	if propertiesOwned < 0 {
		propertiesOwned = 0
	}
	if propertiesOwned >= len(rates) {
		return rates[len(rates)-1]
	}
	return rates[propertiesOwned]
}

// ComputeStampDuty returns BSD and ABSD for a purchase.
func (r Rules) ComputeStampDuty(price float64, pt PropertyType, c Citizenship, propertiesOwned int) StampDuty {
	if !pt.Residential() {
		bsd := BuyerStampDuty(price, r.NonResidentialBSDBands)
		return StampDuty{BSD: bsd, Total: bsd}
	}
	bsd := BuyerStampDuty(price, r.ResidentialBSDBands)
	rate := r.ABSDRate(c, propertiesOwned)
	absd := price * rate
	return StampDuty{BSD: bsd, ABSD: absd, ABSDRate: rate * 100, Total: bsd + absd}
}
