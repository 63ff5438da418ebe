package billing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Rates is the tariff configuration.
type Rates struct {
	OnPeakRate         float64 `yaml:"on_peak_rate"`
	OffPeakRate        float64 `yaml:"off_peak_rate"`
	DemandRate         float64 `yaml:"demand_rate"`
	OnPeakDemandRatio  float64 `yaml:"on_peak_demand_ratio"`
	OffPeakDemandRatio float64 `yaml:"off_peak_demand_ratio"`
	// PFThreshold is the VA/W ratio above which the power factor surcharge applies.
	PFThreshold     float64 `yaml:"pf_threshold"`
	PFSurchargeRate float64 `yaml:"pf_surcharge_rate"`
	FTRate          float64 `yaml:"ft_rate"`
	TaxRate         float64 `yaml:"tax_rate"`
}

// DefaultRates returns the tariff used when no configuration is supplied.
func DefaultRates() Rates {
	return Rates{
		OnPeakRate:         4.1839,
		OffPeakRate:        2.6037,
		DemandRate:         132.93,
		OnPeakDemandRatio:  1,
		OffPeakDemandRatio: 0,
		PFThreshold:        1.1,
		PFSurchargeRate:    56.07,
		FTRate:             0.3972,
		TaxRate:            0.07,
	}
}

// Validate rejects negative rates.
func (r Rates) Validate() error {
	fields := map[string]float64{
		"on_peak_rate":          r.OnPeakRate,
		"off_peak_rate":         r.OffPeakRate,
		"demand_rate":           r.DemandRate,
		"on_peak_demand_ratio":  r.OnPeakDemandRatio,
		"off_peak_demand_ratio": r.OffPeakDemandRatio,
		"pf_threshold":          r.PFThreshold,
		"pf_surcharge_rate":     r.PFSurchargeRate,
		"ft_rate":               r.FTRate,
		"tax_rate":              r.TaxRate,
	}
	for name, value := range fields {
		if value < 0 {
			return fmt.Errorf("%w: %s", ErrNegativeRate, name)
		}
	}
	return nil
}

func dec(value float64) decimal.Decimal {
	return decimal.NewFromFloat(value)
}
