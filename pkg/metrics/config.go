package metrics

import (
	"fmt"
	"strconv"

	"github.com/levenlabs/go-lflag"
)

// Configured sets up the metrics engine based on flags.
func Configured(portal Portal, prices PriceSource) *Engine {
	cups := lflag.String("metrics-cups", "", "CUPS of the supply point to monitor, empty picks the first")
	short := lflag.Duration("metrics-short-interval", DefaultShortInterval, "How often to read the meter")
	long := lflag.Duration("metrics-long-interval", DefaultLongInterval, "How often to refresh curves and cycles")

	def := DefaultRates()
	powerP1 := lflag.String("rates-power-p1", fmtRate(def.PowerP1EURPerKWYear), "Access toll for P1 contracted power, euros per kW per year")
	powerP2 := lflag.String("rates-power-p2", fmtRate(def.PowerP2EURPerKWYear), "Access toll for P2 contracted power, euros per kW per year")
	marketing := lflag.String("rates-marketing", fmtRate(def.MarketingEURPerKWYear), "Regulated marketing margin on P1 power, euros per kW per year")
	fixed := lflag.String("rates-fixed-month", fmtRate(def.FixedEURPerMonth), "Fixed per-contract charges, euros per month")
	tax := lflag.String("rates-electricity-tax", fmtRate(def.ElectricityTax), "Electricity tax multiplier applied to energy and power cost")
	vat := lflag.String("rates-vat", fmtRate(def.VAT), "VAT multiplier applied to the bill")

	e := &Engine{}

	lflag.Do(func() {
		rates := Rates{
			PowerP1EURPerKWYear:   parseRate("rates-power-p1", *powerP1),
			PowerP2EURPerKWYear:   parseRate("rates-power-p2", *powerP2),
			MarketingEURPerKWYear: parseRate("rates-marketing", *marketing),
			FixedEURPerMonth:      parseRate("rates-fixed-month", *fixed),
			ElectricityTax:        parseRate("rates-electricity-tax", *tax),
			VAT:                   parseRate("rates-vat", *vat),
		}
		e.init(portal, prices, Opts{
			CUPS:          *cups,
			ShortInterval: *short,
			LongInterval:  *long,
			Rates:         &rates,
		})
	})

	return e
}

func fmtRate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseRate(name, s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		panic(fmt.Sprintf("invalid value for -%s: %v", name, err))
	}
	return v
}
