package billing

import (
	"github.com/shopspring/decimal"
)

// Usage is the per-meter input to the calculator, taken over one window.
type Usage struct {
	MeterRef       string
	MaxDemandW     float64
	MaxDemandVAR   float64
	MaxDemandVA    float64
	OnPeakKWh      float64
	OffPeakKWh     float64
	AvgPowerFactor float64
}

// Validate checks usage invariants.
func (u Usage) Validate() error {
	if u.MeterRef == "" {
		return ErrEmptyMeterRef
	}
	if u.MaxDemandW < 0 || u.MaxDemandVA < 0 || u.OnPeakKWh < 0 || u.OffPeakKWh < 0 {
		return ErrNegativeUsage
	}
	return nil
}

// Result holds charges in full precision. Use Rounded for presentation.
type Result struct {
	MeterRef             string
	Usage                Usage
	OnPeakDemand         decimal.Decimal
	OffPeakDemand        decimal.Decimal
	EnergyCharge         decimal.Decimal
	DemandCharge         decimal.Decimal
	PowerFactorSurcharge decimal.Decimal
	FTCharge             decimal.Decimal
	Subtotal             decimal.Decimal
	Tax                  decimal.Decimal
	GrandTotal           decimal.Decimal
}

// Calculator derives tariff charges.
type Calculator struct {
	rates Rates
}

// NewCalculator constructs a calculator.
func NewCalculator(rates Rates) (*Calculator, error) {
	if err := rates.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{rates: rates}, nil
}

// Rates returns the configured tariff.
func (c *Calculator) Rates() Rates {
	return c.rates
}

// Calculate computes charges for one meter. Nothing is rounded here.
func (c *Calculator) Calculate(usage Usage) (Result, error) {
	if err := usage.Validate(); err != nil {
		return Result{}, err
	}
	r := c.rates
	demand := dec(usage.MaxDemandW)
	onKWh := dec(usage.OnPeakKWh)
	offKWh := dec(usage.OffPeakKWh)

	result := Result{MeterRef: usage.MeterRef, Usage: usage}
	result.OnPeakDemand = demand.Mul(dec(r.OnPeakDemandRatio))
	result.OffPeakDemand = demand.Mul(dec(r.OffPeakDemandRatio))
	result.EnergyCharge = onKWh.Mul(dec(r.OnPeakRate)).Add(offKWh.Mul(dec(r.OffPeakRate)))
	result.DemandCharge = result.OnPeakDemand.Add(result.OffPeakDemand).Mul(dec(r.DemandRate))
	result.PowerFactorSurcharge = c.powerFactorSurcharge(usage)
	result.FTCharge = demand.Add(onKWh).Add(offKWh).Mul(dec(r.FTRate))
	result.Subtotal = result.EnergyCharge.Add(result.DemandCharge).Add(result.PowerFactorSurcharge)
	net := result.Subtotal.Sub(result.FTCharge)
	result.Tax = net.Mul(dec(r.TaxRate))
	result.GrandTotal = result.Tax.Add(net)
	return result, nil
}

// CalculateAll computes results keyed by meter reference. Invalid usage is
// returned in the error map and skipped.
func (c *Calculator) CalculateAll(usages []Usage) (map[string]Result, map[string]error) {
	results := make(map[string]Result, len(usages))
	var failures map[string]error
	for _, usage := range usages {
		result, err := c.Calculate(usage)
		if err != nil {
			if failures == nil {
				failures = make(map[string]error)
			}
			failures[usage.MeterRef] = err
			continue
		}
		results[usage.MeterRef] = result
	}
	return results, failures
}

// powerFactorSurcharge bills the apparent demand exceeding threshold × W.
func (c *Calculator) powerFactorSurcharge(usage Usage) decimal.Decimal {
	if usage.MaxDemandW <= 0 {
		return decimal.Zero
	}
	threshold := dec(c.rates.PFThreshold)
	w := dec(usage.MaxDemandW)
	va := dec(usage.MaxDemandVA)
	if !va.Div(w).GreaterThan(threshold) {
		return decimal.Zero
	}
	return va.Sub(threshold.Mul(w)).Mul(dec(c.rates.PFSurchargeRate))
}

// Line is one presentation row of a result.
type Line struct {
	Label  string
	Amount string
}

// Lines returns the charges rounded to two decimals, in statement order.
func (r Result) Lines() []Line {
	return []Line{
		{Label: "Energy charge", Amount: Present(r.EnergyCharge)},
		{Label: "Demand charge", Amount: Present(r.DemandCharge)},
		{Label: "Power factor surcharge", Amount: Present(r.PowerFactorSurcharge)},
		{Label: "Subtotal", Amount: Present(r.Subtotal)},
		{Label: "FT", Amount: Present(r.FTCharge)},
		{Label: "Tax", Amount: Present(r.Tax)},
		{Label: "Grand total", Amount: Present(r.GrandTotal)},
	}
}

// Present rounds a monetary value to two decimals.
func Present(value decimal.Decimal) string {
	return value.StringFixed(2)
}
