package amm

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// pricePrecision is the number of decimal places kept when converting a
// sqrt price to a human price.
const pricePrecision = 18

// PriceFromSqrtX96 converts a Q64.96 sqrt price to the price of one whole
// token0 expressed in whole token1.
func PriceFromSqrtX96(sqrtPriceX96 *big.Int, decimals0, decimals1 uint8) decimal.Decimal {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() == 0 {
		return decimal.Zero
	}
	num := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)
	num.Mul(num, pow10(int(decimals0)+pricePrecision))
	den := new(big.Int).Mul(Q192, pow10(int(decimals1)))
	return decimal.NewFromBigInt(num.Quo(num, den), -pricePrecision)
}

// TickToPrice returns the token0 price in token1 at a tick.
func TickToPrice(tick int, decimals0, decimals1 uint8) decimal.Decimal {
	sqrt, err := GetSqrtRatioAtTick(tick)
	if err != nil {
		return decimal.Zero
	}
	return PriceFromSqrtX96(sqrt, decimals0, decimals1)
}

// ToDecimal converts a raw integer token amount to whole units.
func ToDecimal(raw *big.Int, decimals uint8) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -int32(decimals))
}

// FromDecimal converts whole units to a raw integer amount, truncating dust.
func FromDecimal(amount decimal.Decimal, decimals uint8) *big.Int {
	if !amount.IsPositive() {
		return new(big.Int)
	}
	return amount.Shift(int32(decimals)).Truncate(0).BigInt()
}

// ValueIn1 values raw token amounts in whole token1 at price0In1.
func ValueIn1(amount0, amount1 *big.Int, decimals0, decimals1 uint8, price0In1 decimal.Decimal) decimal.Decimal {
	return ToDecimal(amount0, decimals0).Mul(price0In1).Add(ToDecimal(amount1, decimals1))
}

func pow10(n int) *big.Int {
	if n <= 0 {
		return big.NewInt(1)
	}
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
