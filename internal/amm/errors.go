package amm

import "errors"

var (
	// ErrPoolNotInitialized is returned by liquidity operations before Initialize.
	ErrPoolNotInitialized = errors.New("pool not initialized")
	// ErrInvalidTickRange is returned for lower >= upper or ticks outside the domain.
	ErrInvalidTickRange = errors.New("invalid tick range")
	// ErrTickMisaligned is returned when a bound is not a multiple of the tick spacing.
	ErrTickMisaligned = errors.New("tick not aligned to spacing")
)
