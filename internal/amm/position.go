package amm

import (
	"math/big"

	"github.com/ChiShengChen/katana-amm-backtest/internal/v3math"
)

// Position is a liquidity position held in the pool registry.
type Position struct {
	Owner                    string
	Lower                    int32
	Upper                    int32
	Liquidity                *big.Int
	Amount0                  *big.Int
	Amount1                  *big.Int
	FeeGrowthInside0LastX128 *big.Int
	FeeGrowthInside1LastX128 *big.Int
	TokensOwed0              *big.Int
	TokensOwed1              *big.Int
}

// InRange reports lower <= tick < upper.
func (p Position) InRange(tick int32) bool {
	return p.Lower <= tick && tick < p.Upper
}

func (p Position) clone() Position {
	return Position{
		Owner:                    p.Owner,
		Lower:                    p.Lower,
		Upper:                    p.Upper,
		Liquidity:                copyInt(p.Liquidity),
		Amount0:                  copyInt(p.Amount0),
		Amount1:                  copyInt(p.Amount1),
		FeeGrowthInside0LastX128: copyInt(p.FeeGrowthInside0LastX128),
		FeeGrowthInside1LastX128: copyInt(p.FeeGrowthInside1LastX128),
		TokensOwed0:              copyInt(p.TokensOwed0),
		TokensOwed1:              copyInt(p.TokensOwed1),
	}
}

func (p Position) sqrtBounds() (*big.Int, *big.Int, error) {
	sqrtA, err := v3math.TickToSqrtPriceX96(p.Lower)
	if err != nil {
		return nil, nil, err
	}
	sqrtB, err := v3math.TickToSqrtPriceX96(p.Upper)
	if err != nil {
		return nil, nil, err
	}
	return sqrtA, sqrtB, nil
}

// Withdrawal is the result of removing liquidity.
type Withdrawal struct {
	Amount0 *big.Int
	Amount1 *big.Int
	Fees0   *big.Int
	Fees1   *big.Int
}

func emptyWithdrawal() Withdrawal {
	return Withdrawal{
		Amount0: new(big.Int),
		Amount1: new(big.Int),
		Fees0:   new(big.Int),
		Fees1:   new(big.Int),
	}
}

func copyInt(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

func minInt(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}
