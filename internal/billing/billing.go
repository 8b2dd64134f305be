package billing

// Rates holds the pricing and telemetry constants for one ride. Values are
// configuration; Defaults() matches the production pricing.
type Rates struct {
	UnlockFee          float64
	PerMinuteRate      float64
	AddOnFee           float64
	MilesPerSecond     float64
	BatteryStart       float64
	BatteryDrainPerSec float64
}

// Defaults returns the standard rates: $1.00 unlock, $0.15/min, $1.00 add-on,
// ~10 mph simulated speed, battery from 85% draining 0.05%/s.
func Defaults() Rates {
	return Rates{
		UnlockFee:          1.00,
		PerMinuteRate:      0.15,
		AddOnFee:           1.00,
		MilesPerSecond:     0.00278,
		BatteryStart:       85,
		BatteryDrainPerSec: 0.05,
	}
}

// Cost returns the accumulated ride cost after t elapsed whole seconds.
// The add-on fee applies once the add-on has been purchased; purchase is
// sticky for the session.
func (r Rates) Cost(t int64, addOnPurchased bool) float64 {
	cost := r.UnlockFee + float64(t)/60.0*r.PerMinuteRate
	if addOnPurchased {
		cost += r.AddOnFee
	}
	return cost
}

// Distance returns the simulated distance in miles after t elapsed seconds.
func (r Rates) Distance(t int64) float64 {
	if t < 0 {
		return 0
	}
	return float64(t) * r.MilesPerSecond
}

// Battery returns the simulated battery percentage after t elapsed seconds,
// floored at zero. It never regenerates within a session.
func (r Rates) Battery(t int64) float64 {
	b := r.BatteryStart - r.BatteryDrainPerSec*float64(t)
	if b < 0 {
		return 0
	}
	return b
}
