package v3math

import (
	"math/big"

	"github.com/holiman/uint256"
)

// MulDiv computes a*b/denominator with a 512-bit intermediate.
// A zero denominator or a quotient wider than 256 bits yields zero.
func MulDiv(a, b, denominator *uint256.Int) *uint256.Int {
	if denominator.IsZero() {
		return new(uint256.Int)
	}
	result, overflow := new(uint256.Int).MulDivOverflow(a, b, denominator)
	if overflow {
		return new(uint256.Int)
	}
	return result
}

// MulDivRoundingUp is MulDiv rounded towards positive infinity.
func MulDivRoundingUp(a, b, denominator *uint256.Int) *uint256.Int {
	result := MulDiv(a, b, denominator)
	if denominator.IsZero() {
		return result
	}
	if new(uint256.Int).MulMod(a, b, denominator).IsZero() {
		return result
	}
	if result.Eq(maxUint256) {
		return result
	}
	return result.AddUint64(result, 1)
}

func toU256(value *big.Int) *uint256.Int {
	if value == nil || value.Sign() <= 0 {
		return new(uint256.Int)
	}
	out, overflow := uint256.FromBig(value)
	if overflow {
		return new(uint256.Int).Set(maxUint256)
	}
	return out
}

// wrap256 reduces value modulo 2^256 into [0, 2^256).
func wrap256(value *big.Int) *big.Int {
	return new(big.Int).Mod(value, two256)
}

// SubMod256 returns (a - b) mod 2^256.
func SubMod256(a, b *big.Int) *big.Int {
	return wrap256(new(big.Int).Sub(a, b))
}

// AddMod256 returns (a + b) mod 2^256.
func AddMod256(a, b *big.Int) *big.Int {
	return wrap256(new(big.Int).Add(a, b))
}
