package v3math

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

const (
	MinTick int32 = -887272
	MaxTick int32 = -MinTick
)

// Fee tiers are expressed in hundredths of a bip, so 3000 is 0.3%.
const FeeDenominator = 1_000_000

var (
	// Q96 and Q128 must be treated as read-only.
	Q96  = new(big.Int).Lsh(big.NewInt(1), 96)
	Q128 = new(big.Int).Lsh(big.NewInt(1), 128)

	MinSqrtRatio    = big.NewInt(4295128739)
	MaxSqrtRatio, _ = new(big.Int).SetString("1461446703485210103287273052203988822378723970342", 10)

	two256 = new(big.Int).Lsh(big.NewInt(1), 256)

	q96U256     = uint256.NewInt(0).Lsh(uint256.NewInt(1), 96)
	maxUint256  = new(uint256.Int).SetAllOne()
	minSqrtU256 = toU256(MinSqrtRatio)
	maxSqrtU256 = toU256(MaxSqrtRatio)
)

// ErrTickOutOfRange is returned for ticks outside [MinTick, MaxTick].
var ErrTickOutOfRange = errors.New("tick out of range")

var feeTickSpacing = map[uint32]int32{
	100:   1,
	500:   10,
	3000:  60,
	10000: 200,
}

// TickSpacingForFee returns the tick spacing of a fee tier, 60 when unknown.
func TickSpacingForFee(fee uint32) int32 {
	if spacing, ok := feeTickSpacing[fee]; ok {
		return spacing
	}
	return 60
}

// AlignTick rounds tick down to a multiple of spacing.
func AlignTick(tick, spacing int32) int32 {
	if spacing <= 0 {
		return tick
	}
	mod := tick % spacing
	if mod < 0 {
		mod += spacing
	}
	return tick - mod
}
