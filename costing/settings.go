package costing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// KFactorBand is the advisory interpretation of a k-factor.
type KFactorBand string

const (
	BandProfitable KFactorBand = "profitable"
	BandBreakEven  KFactorBand = "break_even"
	BandStressed   KFactorBand = "stressed"
)

// KFactorThresholds buckets a k-factor. Values below ProfitableBelow are
// profitable, values at or above StressedFrom are stressed, anything between
// is break-even.
type KFactorThresholds struct {
	ProfitableBelow decimal.Decimal
	StressedFrom    decimal.Decimal
}

// Classify returns the band for k.
func (t KFactorThresholds) Classify(k decimal.Decimal) KFactorBand {
	switch {
	case k.LessThan(t.ProfitableBelow):
		return BandProfitable
	case k.GreaterThanOrEqual(t.StressedFrom):
		return BandStressed
	default:
		return BandBreakEven
	}
}

// Settings are the engine's tunables. They carry no business meaning of their own.
type Settings struct {
	// MassBalanceTolerancePct is a fraction of griller weight (0.005 = 0.5%).
	MassBalanceTolerancePct decimal.Decimal

	// ScenarioToleranceKg is the absolute guard used by the scenario differ.
	// Zero derives it from MassBalanceTolerancePct and the griller weight.
	ScenarioToleranceKg decimal.Decimal

	KFactor KFactorThresholds
}

// DefaultSettings returns 0.5% mass balance tolerance and a single 1.0 k-factor cut.
func DefaultSettings() Settings {
	return Settings{
		MassBalanceTolerancePct: MustParseDecimal("0.005"),
		ScenarioToleranceKg:     decimal.Zero,
		KFactor: KFactorThresholds{
			ProfitableBelow: one,
			StressedFrom:    one,
		},
	}
}

// Validate rejects settings the engine cannot use.
func (s Settings) Validate() error {
	if s.MassBalanceTolerancePct.IsNegative() || s.MassBalanceTolerancePct.GreaterThanOrEqual(one) {
		return fmt.Errorf("mass balance tolerance must be in [0, 1), got %s", s.MassBalanceTolerancePct)
	}
	if s.ScenarioToleranceKg.IsNegative() {
		return fmt.Errorf("scenario tolerance must be >= 0, got %s", s.ScenarioToleranceKg)
	}
	if s.KFactor.StressedFrom.LessThan(s.KFactor.ProfitableBelow) {
		return fmt.Errorf("k-factor stressed_from (%s) must be >= profitable_below (%s)",
			s.KFactor.StressedFrom, s.KFactor.ProfitableBelow)
	}
	return nil
}

func (s Settings) toleranceKg(grillerKg decimal.Decimal) decimal.Decimal {
	return grillerKg.Mul(s.MassBalanceTolerancePct)
}

func (s Settings) scenarioToleranceKg(grillerKg decimal.Decimal) decimal.Decimal {
	if s.ScenarioToleranceKg.IsPositive() {
		return s.ScenarioToleranceKg
	}
	return s.toleranceKg(grillerKg)
}
