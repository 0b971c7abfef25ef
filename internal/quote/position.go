// Package quote implements the seven position-projection operations. Each
// operation fetches the current market snapshot, validates its preconditions,
// asks the routing service for swap/flash-loan quotations, orders the routed
// steps and projects the resulting target position.
package quote

import (
	"github.com/shopspring/decimal"

	"github.com/gustavo/comet-kit/internal/calc"
	"github.com/gustavo/comet-kit/internal/comet"
)

// Position is an account's risk snapshot. Two instances ship per quotation:
// the observed current position and the projected target position.
type Position struct {
	Utilization          string `json:"utilization"`
	HealthRate           string `json:"healthRate"`
	LiquidationThreshold string `json:"liquidationThreshold"`
	SupplyUSD            string `json:"supplyUSD"`
	BorrowUSD            string `json:"borrowUSD"`
	CollateralUSD        string `json:"collateralUSD"`
	NetAPR               string `json:"netAPR"`
}

func currentPosition(info *comet.MarketInfo) Position {
	return Position{
		Utilization:          info.Utilization,
		HealthRate:           info.HealthRate,
		LiquidationThreshold: info.LiquidationThreshold,
		SupplyUSD:            info.SupplyUSD,
		BorrowUSD:            info.BorrowUSD,
		CollateralUSD:        info.CollateralUSD,
		NetAPR:               info.NetAPR,
	}
}

// projection carries the USD figures of a hypothetical position. Operations
// start from the current snapshot, apply their deltas and render a Position.
type projection struct {
	SupplyUSD           decimal.Decimal
	BorrowUSD           decimal.Decimal
	CollateralUSD       decimal.Decimal
	BorrowCapacityUSD   decimal.Decimal
	LiquidationLimitUSD decimal.Decimal
	SupplyAPR           decimal.Decimal
	BorrowAPR           decimal.Decimal
}

func newProjection(info *comet.MarketInfo) projection {
	return projection{
		SupplyUSD:           dec(info.SupplyUSD),
		BorrowUSD:           dec(info.BorrowUSD),
		CollateralUSD:       dec(info.CollateralUSD),
		BorrowCapacityUSD:   dec(info.BorrowCapacityUSD),
		LiquidationLimitUSD: dec(info.LiquidationLimit),
		SupplyAPR:           dec(info.SupplyAPR),
		BorrowAPR:           dec(info.BorrowAPR),
	}
}

// position re-derives every metric from the projected USD figures through the
// calculator. Metrics are never adjusted incrementally; that would compound
// rounding error across operations.
func (p projection) position() Position {
	threshold := "0"
	thresholdValue := decimal.Zero
	if !p.CollateralUSD.IsZero() {
		thresholdValue = p.LiquidationLimitUSD.Div(p.CollateralUSD).Round(4)
		threshold = thresholdValue.String()
	}
	return Position{
		Utilization:          calc.Utilization(p.BorrowCapacityUSD, p.BorrowUSD),
		HealthRate:           calc.HealthRate(p.CollateralUSD, p.BorrowUSD, thresholdValue),
		LiquidationThreshold: threshold,
		SupplyUSD:            calc.FormatUSD(p.SupplyUSD),
		BorrowUSD:            calc.FormatUSD(p.BorrowUSD),
		CollateralUSD:        calc.FormatUSD(p.CollateralUSD),
		NetAPR:               calc.NetAPR(p.SupplyUSD, p.SupplyUSD.Mul(p.SupplyAPR), p.BorrowUSD.Mul(p.BorrowAPR), p.CollateralUSD),
	}
}

// dec parses a locally produced decimal string. Malformed input means a bug
// upstream, so the zero value is an acceptable fallback.
func dec(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return v
}
