package v3math

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

var (
	ratioOdd  = uint256.MustFromHex("0xfffcb933bd6fad37aa2d162d1a594001")
	ratioEven = uint256.MustFromHex("0x100000000000000000000000000000000")

	// ratioSteps[i] multiplies the ratio when bit i+1 of |tick| is set.
	ratioSteps = []*uint256.Int{
		uint256.MustFromHex("0xfff97272373d413259a46990580e213a"),
		uint256.MustFromHex("0xfff2e50f5f656932ef12357cf3c7fdcc"),
		uint256.MustFromHex("0xffe5caca7e10e4e61c3624eaa0941cd0"),
		uint256.MustFromHex("0xffcb9843d60f6159c9db58835c926644"),
		uint256.MustFromHex("0xff973b41fa98c081472e6896dfb254c0"),
		uint256.MustFromHex("0xff2ea16466c96a3843ec78b326b52861"),
		uint256.MustFromHex("0xfe5dee046a99a2a811c461f1969c3053"),
		uint256.MustFromHex("0xfcbe86c7900a88aedcffc83b479aa3a4"),
		uint256.MustFromHex("0xf987a7253ac413176f2b074cf7815e54"),
		uint256.MustFromHex("0xf3392b0822b70005940c7a398e4b70f3"),
		uint256.MustFromHex("0xe7159475a2c29b7443b29c7fa6e889d9"),
		uint256.MustFromHex("0xd097f3bdfd2022b8845ad8f792aa5825"),
		uint256.MustFromHex("0xa9f746462d870fdf8a65dc1f90e061e5"),
		uint256.MustFromHex("0x70d869a156d2a1b890bb3df62baf32f7"),
		uint256.MustFromHex("0x31be135f97d08fd981231505542fcfa6"),
		uint256.MustFromHex("0x9aa508b5b7a84e1c677de54f3e99bc9"),
		uint256.MustFromHex("0x5d6af8dedb81196699c329225ee604"),
		uint256.MustFromHex("0x2216e584f5fa1ea926041bedfe98"),
		uint256.MustFromHex("0x48a170391f7dc42444e8fa2"),
	}
)

// TickToSqrtPriceX96 returns sqrt(1.0001^tick) as a Q64.96 value.
func TickToSqrtPriceX96(tick int32) (*big.Int, error) {
	ratio, err := sqrtRatioAtTick(tick)
	if err != nil {
		return nil, err
	}
	return ratio.ToBig(), nil
}

// MustTickToSqrtPriceX96 panics on ticks outside the valid domain.
func MustTickToSqrtPriceX96(tick int32) *big.Int {
	ratio, err := TickToSqrtPriceX96(tick)
	if err != nil {
		panic(err)
	}
	return ratio
}

func sqrtRatioAtTick(tick int32) (*uint256.Int, error) {
	if tick < MinTick || tick > MaxTick {
		return nil, fmt.Errorf("%w: %d", ErrTickOutOfRange, tick)
	}
	absTick := uint32(tick)
	if tick < 0 {
		absTick = uint32(-tick)
	}

	var ratio *uint256.Int
	if absTick&0x1 != 0 {
		ratio = new(uint256.Int).Set(ratioOdd)
	} else {
		ratio = new(uint256.Int).Set(ratioEven)
	}
	for i, step := range ratioSteps {
		if absTick&(uint32(2)<<uint(i)) != 0 {
			ratio.Mul(ratio, step)
			ratio.Rsh(ratio, 128)
		}
	}
	if tick > 0 {
		ratio.Div(maxUint256, ratio)
	}

	// Q128.128 to Q64.96, rounding up.
	rem := new(uint256.Int).Mod(ratio, uint256.NewInt(1<<32))
	ratio.Rsh(ratio, 32)
	if !rem.IsZero() {
		ratio.AddUint64(ratio, 1)
	}
	return ratio, nil
}

// SqrtPriceX96ToTick returns the greatest tick whose sqrt ratio does not exceed sqrtPriceX96.
// Inputs outside the representable ratio range clamp to MinTick or MaxTick.
func SqrtPriceX96ToTick(sqrtPriceX96 *big.Int) int32 {
	target := toU256(sqrtPriceX96)
	if target.Cmp(minSqrtU256) <= 0 {
		return MinTick
	}
	if target.Cmp(maxSqrtU256) >= 0 {
		return MaxTick
	}

	lo, hi := MinTick, MaxTick
	for lo < hi {
		mid := lo + (hi-lo+1)/2
		ratio, _ := sqrtRatioAtTick(mid)
		if ratio.Cmp(target) <= 0 {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}
