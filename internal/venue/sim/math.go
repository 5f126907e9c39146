package sim

import (
	"math"
	"math/big"
	"math/bits"
)

const bpsScale = 10_000

// mulDiv computes a*b/div with a 128-bit intermediate, saturating at MaxUint64
func mulDiv(a, b, div uint64) uint64 {
	if div == 0 {
		return 0
	}
	hi, lo := bits.Mul64(a, b)
	if hi == 0 {
		return lo / div
	}
	if hi < div {
		q, _ := bits.Div64(hi, lo, div)
		return q
	}

	var x, y, d big.Int
	x.SetUint64(hi)
	x.Lsh(&x, 64)
	y.SetUint64(lo)
	x.Add(&x, &y)
	d.SetUint64(div)
	x.Div(&x, &d)
	if x.IsUint64() {
		return x.Uint64()
	}
	return math.MaxUint64
}

// applyBps scales amount by (10000 - fee) / 10000
func applyBps(amount uint64, feeBps uint32) uint64 {
	if feeBps >= bpsScale {
		return 0
	}
	return mulDiv(amount, bpsScale-uint64(feeBps), bpsScale)
}

// swapOut is the constant-product output for amountIn against the given reserves
func swapOut(amountIn, reserveIn, reserveOut uint64, feeBps uint32) uint64 {
	in := applyBps(amountIn, feeBps)
	denom := reserveIn + in
	if denom < reserveIn {
		denom = math.MaxUint64
	}
	return mulDiv(in, reserveOut, denom)
}
