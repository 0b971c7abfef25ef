// Package calc holds the pure position math. Every function operates on
// arbitrary-precision decimals and returns string-encoded values so USD
// comparisons stay exact at the stated precision; native floats never enter
// the pipeline.
package calc

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// SecondsPerYear converts Comet per-second rates into annualized rates.
const SecondsPerYear = 31_536_000

// HealthRateInfinite is the canonical health rate of a debt-free account.
// Callers treat it as "no liquidation risk", never as an error.
const HealthRateInfinite = "Infinity"

var rateScale = decimal.New(1, 18)

// APR annualizes a Comet per-second rate (1e18 fixed point), rounded to 4
// decimal places.
func APR(ratePerSecond *big.Int) string {
	rate := decimal.NewFromBigInt(ratePerSecond, 0)
	return rate.Mul(decimal.NewFromInt(SecondsPerYear)).Div(rateScale).Round(4).String()
}

// Utilization is borrowUSD / borrowCapacityUSD at 4 decimal places, "0" when
// the account has no borrow capacity.
func Utilization(borrowCapacityUSD, borrowUSD decimal.Decimal) string {
	if borrowCapacityUSD.IsZero() {
		return "0"
	}
	return borrowUSD.Div(borrowCapacityUSD).Round(4).String()
}

// HealthRate is collateralUSD * liquidationThreshold / borrowUSD at 2 decimal
// places. A zero borrow yields HealthRateInfinite.
func HealthRate(collateralUSD, borrowUSD, liquidationThreshold decimal.Decimal) string {
	if borrowUSD.IsZero() {
		return HealthRateInfinite
	}
	return collateralUSD.Mul(liquidationThreshold).Div(borrowUSD).Round(2).String()
}

// NetAPR blends the yield legs of a position:
// (positiveProportion - negativeProportion) / (supplyUSD + collateralUSD),
// 4 decimal places, "0" when the account holds nothing. Collateral
// contributes to the denominator but earns no APR; the proportions are
// supplyUSD*supplyAPR and borrowUSD*borrowAPR respectively.
func NetAPR(supplyUSD, positiveProportion, negativeProportion, collateralUSD decimal.Decimal) string {
	totalSupplyUSD := supplyUSD.Add(collateralUSD)
	if totalSupplyUSD.IsZero() {
		return "0"
	}
	return positiveProportion.Sub(negativeProportion).Div(totalSupplyUSD).Round(4).String()
}

// LiquidationThreshold is liquidationLimitUSD / collateralUSD at 4 decimal
// places, "0" for an empty collateral position.
func LiquidationThreshold(liquidationLimitUSD, collateralUSD decimal.Decimal) string {
	if collateralUSD.IsZero() {
		return "0"
	}
	return liquidationLimitUSD.Div(collateralUSD).Round(4).String()
}

// TokenUnits converts a USD value into base-token units at the token's
// decimal precision. Rounding is always floor: rounding up could report more
// borrowable/withdrawable than the chain will accept.
func TokenUnits(valueUSD, priceUSD decimal.Decimal, decimals int32) decimal.Decimal {
	return valueUSD.Div(priceUSD).RoundFloor(decimals)
}

// FormatUSD renders a USD figure at 2 decimal places.
func FormatUSD(v decimal.Decimal) string {
	return v.Round(2).String()
}
