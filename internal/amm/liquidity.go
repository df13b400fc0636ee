package amm

import "math/big"

func mulDivRoundingUp(a, b, denom *big.Int) *big.Int {
	product := new(big.Int).Mul(a, b)
	q, r := new(big.Int).QuoRem(product, denom, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

func divRoundingUp(a, b *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(a, b, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

func sortRatios(a, b *big.Int) (*big.Int, *big.Int) {
	if a.Cmp(b) > 0 {
		return b, a
	}
	return a, b
}

// Amount0Delta is the token0 amount spanned by liquidity between two sqrt prices.
func Amount0Delta(sqrtA, sqrtB, liquidity *big.Int, roundUp bool) *big.Int {
	sqrtA, sqrtB = sortRatios(sqrtA, sqrtB)
	if sqrtA.Sign() == 0 {
		return new(big.Int)
	}
	numerator1 := new(big.Int).Lsh(liquidity, 96)
	numerator2 := new(big.Int).Sub(sqrtB, sqrtA)
	if roundUp {
		return divRoundingUp(mulDivRoundingUp(numerator1, numerator2, sqrtB), sqrtA)
	}
	out := new(big.Int).Mul(numerator1, numerator2)
	out.Quo(out, sqrtB)
	return out.Quo(out, sqrtA)
}

// Amount1Delta is the token1 amount spanned by liquidity between two sqrt prices.
func Amount1Delta(sqrtA, sqrtB, liquidity *big.Int, roundUp bool) *big.Int {
	sqrtA, sqrtB = sortRatios(sqrtA, sqrtB)
	diff := new(big.Int).Sub(sqrtB, sqrtA)
	if roundUp {
		return mulDivRoundingUp(liquidity, diff, Q96)
	}
	out := new(big.Int).Mul(liquidity, diff)
	return out.Quo(out, Q96)
}

// PositionAmounts returns the token amounts held by liquidity in [tickLower, tickUpper)
// at the pool's current tick and sqrt price. roundUp is used when sizing a mint.
func PositionAmounts(currentTick int, sqrtPriceX96 *big.Int, tickLower, tickUpper int, liquidity *big.Int, roundUp bool) (*big.Int, *big.Int) {
	sqrtLower := MustSqrtRatioAtTick(tickLower)
	sqrtUpper := MustSqrtRatioAtTick(tickUpper)

	switch {
	case currentTick < tickLower:
		return Amount0Delta(sqrtLower, sqrtUpper, liquidity, roundUp), new(big.Int)
	case currentTick < tickUpper:
		return Amount0Delta(sqrtPriceX96, sqrtUpper, liquidity, roundUp),
			Amount1Delta(sqrtLower, sqrtPriceX96, liquidity, roundUp)
	default:
		return new(big.Int), Amount1Delta(sqrtLower, sqrtUpper, liquidity, roundUp)
	}
}

func liquidityForAmount0(sqrtA, sqrtB, amount0 *big.Int) *big.Int {
	sqrtA, sqrtB = sortRatios(sqrtA, sqrtB)
	numerator := new(big.Int).Mul(amount0, sqrtA)
	numerator.Mul(numerator, sqrtB)
	denominator := new(big.Int).Sub(sqrtB, sqrtA)
	denominator.Mul(denominator, Q96)
	if denominator.Sign() == 0 {
		return new(big.Int)
	}
	return numerator.Quo(numerator, denominator)
}

func liquidityForAmount1(sqrtA, sqrtB, amount1 *big.Int) *big.Int {
	sqrtA, sqrtB = sortRatios(sqrtA, sqrtB)
	diff := new(big.Int).Sub(sqrtB, sqrtA)
	if diff.Sign() == 0 {
		return new(big.Int)
	}
	out := new(big.Int).Mul(amount1, Q96)
	return out.Quo(out, diff)
}

// MaxLiquidityForAmounts computes the largest liquidity that amount0 and amount1
// can fund in [sqrtA, sqrtB] at the current sqrt price, at full precision.
func MaxLiquidityForAmounts(sqrtPriceX96, sqrtA, sqrtB, amount0, amount1 *big.Int) *big.Int {
	sqrtA, sqrtB = sortRatios(sqrtA, sqrtB)

	switch {
	case sqrtPriceX96.Cmp(sqrtA) <= 0:
		return liquidityForAmount0(sqrtA, sqrtB, amount0)
	case sqrtPriceX96.Cmp(sqrtB) < 0:
		l0 := liquidityForAmount0(sqrtPriceX96, sqrtB, amount0)
		l1 := liquidityForAmount1(sqrtA, sqrtPriceX96, amount1)
		if l0.Cmp(l1) < 0 {
			return l0
		}
		return l1
	default:
		return liquidityForAmount1(sqrtA, sqrtB, amount1)
	}
}
