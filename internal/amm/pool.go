package amm

import (
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"github.com/ChiShengChen/katana-amm-backtest/internal/model"
	"github.com/ChiShengChen/katana-amm-backtest/internal/v3math"
)

// DefaultFeeCeilingDivisor caps a single fee settlement at 0.001% of the deposit.
const DefaultFeeCeilingDivisor = 100_000

// Config configures a simulated pool.
type Config struct {
	FeeTier     uint32
	TickSpacing int32
	Decimals0   uint8
	Decimals1   uint8
	// FeeCeilingDivisor bounds each settlement to deposit/divisor (at least 1 unit).
	// Zero selects the default, a negative value disables the ceiling.
	FeeCeilingDivisor int64
}

func (c Config) withDefaults() Config {
	if c.FeeTier == 0 {
		c.FeeTier = 3000
	}
	if c.TickSpacing <= 0 {
		c.TickSpacing = v3math.TickSpacingForFee(c.FeeTier)
	}
	if c.FeeCeilingDivisor == 0 {
		c.FeeCeilingDivisor = DefaultFeeCeilingDivisor
	}
	return c
}

// State is a snapshot of the pool's scalar state.
type State struct {
	Initialized          bool
	SqrtPriceX96         *big.Int
	Tick                 int32
	Liquidity            *big.Int
	FeeGrowthGlobal0X128 *big.Int
	FeeGrowthGlobal1X128 *big.Int
}

// SwapUpdate is a swap as reported by the event stream.
type SwapUpdate struct {
	Amount0      *big.Int
	Amount1      *big.Int
	SqrtPriceX96 *big.Int
	Tick         int32
	Liquidity    *big.Int
	Timestamp    uint64
}

// Pool simulates a concentrated liquidity pool against a replayed event stream.
// It owns every Position; callers only see copies.
type Pool struct {
	cfg    Config
	logger *zap.Logger

	initialized   bool
	sqrtPriceX96  *big.Int
	tick          int32
	baseLiquidity *big.Int
	liquidity     *big.Int
	feeGrowth     v3math.FeeGrowth

	positions    map[string][]Position
	priceHistory []model.PricePoint
}

// NewPool builds an uninitialized pool.
func NewPool(cfg Config, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		cfg:           cfg.withDefaults(),
		logger:        logger,
		sqrtPriceX96:  new(big.Int),
		baseLiquidity: new(big.Int),
		liquidity:     new(big.Int),
		feeGrowth:     v3math.ZeroFeeGrowth(),
		positions:     make(map[string][]Position),
	}
}

// Config returns the effective configuration.
func (p *Pool) Config() Config {
	return p.cfg
}

// Initialize sets the starting price and externally reported liquidity.
func (p *Pool) Initialize(sqrtPriceX96 *big.Int, tick int32, liquidity *big.Int, timestamp uint64) {
	p.sqrtPriceX96 = copyInt(sqrtPriceX96)
	p.tick = tick
	p.baseLiquidity = copyInt(liquidity)
	p.initialized = true
	p.refreshLiquidity()

	if timestamp > 0 {
		p.priceHistory = append(p.priceHistory, model.PricePoint{Timestamp: timestamp, Price: p.DisplayPrice()})
	}
	p.logger.Debug("pool initialized",
		zap.Int32("tick", tick),
		zap.String("sqrt_price_x96", p.sqrtPriceX96.String()),
		zap.String("liquidity", p.baseLiquidity.String()),
	)
}

// Initialized reports whether Initialize has run.
func (p *Pool) Initialized() bool {
	return p.initialized
}

// State returns a copy of the scalar state.
func (p *Pool) State() State {
	return State{
		Initialized:          p.initialized,
		SqrtPriceX96:         copyInt(p.sqrtPriceX96),
		Tick:                 p.tick,
		Liquidity:            copyInt(p.liquidity),
		FeeGrowthGlobal0X128: copyInt(p.feeGrowth.Token0),
		FeeGrowthGlobal1X128: copyInt(p.feeGrowth.Token1),
	}
}

// Tick returns the current tick.
func (p *Pool) Tick() int32 {
	return p.tick
}

// SqrtPriceX96 returns a copy of the current square root price.
func (p *Pool) SqrtPriceX96() *big.Int {
	return copyInt(p.sqrtPriceX96)
}

// FeeGrowthGlobal returns a copy of both global accumulators.
func (p *Pool) FeeGrowthGlobal() v3math.FeeGrowth {
	return p.feeGrowth.Clone()
}

// DisplayPrice is the current human price (token1 per token0).
func (p *Pool) DisplayPrice() float64 {
	return v3math.DisplayPrice(p.sqrtPriceX96, p.cfg.Decimals0, p.cfg.Decimals1)
}

// PriceHistory returns the recorded display prices.
func (p *Pool) PriceHistory() []model.PricePoint {
	out := make([]model.PricePoint, len(p.priceHistory))
	copy(out, p.priceHistory)
	return out
}

// Positions returns copies of owner's positions.
func (p *Pool) Positions(owner string) []Position {
	list := p.positions[owner]
	out := make([]Position, 0, len(list))
	for _, pos := range list {
		out = append(out, pos.clone())
	}
	return out
}

// ActiveLiquidityOf sums the liquidity of registry positions containing the current tick.
func (p *Pool) ActiveLiquidityOf() *big.Int {
	total := new(big.Int)
	for _, list := range p.positions {
		for _, pos := range list {
			if pos.InRange(p.tick) {
				total.Add(total, pos.Liquidity)
			}
		}
	}
	return total
}

func (p *Pool) refreshLiquidity() {
	p.liquidity = new(big.Int).Add(p.baseLiquidity, p.ActiveLiquidityOf())
}

func (p *Pool) findPosition(owner string, lower, upper int32) int {
	for i, pos := range p.positions[owner] {
		if pos.Lower == lower && pos.Upper == upper {
			return i
		}
	}
	return -1
}

func (p *Pool) validateRange(lower, upper int32) error {
	if lower >= upper {
		return fmt.Errorf("%w: lower %d >= upper %d", ErrInvalidTickRange, lower, upper)
	}
	if lower < v3math.MinTick || upper > v3math.MaxTick {
		return fmt.Errorf("%w: [%d, %d) outside tick domain", ErrInvalidTickRange, lower, upper)
	}
	if spacing := p.cfg.TickSpacing; lower%spacing != 0 || upper%spacing != 0 {
		return fmt.Errorf("%w: [%d, %d) with spacing %d", ErrTickMisaligned, lower, upper, spacing)
	}
	return nil
}

// AddLiquidity mints liquidity for owner over [lower, upper).
// Minting into an existing range settles its pending fees first. A nil or
// zero liquidity is derived from the amounts at the current price.
func (p *Pool) AddLiquidity(owner string, lower, upper int32, amount0, amount1, liquidity *big.Int) error {
	if !p.initialized {
		return ErrPoolNotInitialized
	}
	if err := p.validateRange(lower, upper); err != nil {
		return err
	}

	if liquidity == nil || liquidity.Sign() <= 0 {
		probe := Position{Lower: lower, Upper: upper}
		sqrtA, sqrtB, err := probe.sqrtBounds()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTickRange, err)
		}
		liquidity = v3math.GetLiquidityForAmounts(p.sqrtPriceX96, sqrtA, sqrtB, copyInt(amount0), copyInt(amount1))
	}
	if liquidity.Sign() <= 0 {
		return nil
	}

	if idx := p.findPosition(owner, lower, upper); idx >= 0 {
		pos := &p.positions[owner][idx]
		p.settle(pos)
		pos.Liquidity.Add(pos.Liquidity, liquidity)
		pos.Amount0.Add(pos.Amount0, copyInt(amount0))
		pos.Amount1.Add(pos.Amount1, copyInt(amount1))
	} else {
		p.positions[owner] = append(p.positions[owner], Position{
			Owner:                    owner,
			Lower:                    lower,
			Upper:                    upper,
			Liquidity:                copyInt(liquidity),
			Amount0:                  copyInt(amount0),
			Amount1:                  copyInt(amount1),
			FeeGrowthInside0LastX128: copyInt(p.feeGrowth.Token0),
			FeeGrowthInside1LastX128: copyInt(p.feeGrowth.Token1),
			TokensOwed0:              new(big.Int),
			TokensOwed1:              new(big.Int),
		})
	}

	p.refreshLiquidity()
	p.logger.Debug("liquidity added",
		zap.String("owner", owner),
		zap.Int32("lower", lower),
		zap.Int32("upper", upper),
		zap.String("liquidity", liquidity.String()),
	)
	return nil
}

// RemoveLiquidity burns up to liquidity from owner's [lower, upper) position.
// The settled fee is prorated by the fraction of liquidity removed. A missing
// position or non-positive amount yields an empty withdrawal.
func (p *Pool) RemoveLiquidity(owner string, lower, upper int32, liquidity *big.Int) (Withdrawal, error) {
	if !p.initialized {
		return emptyWithdrawal(), ErrPoolNotInitialized
	}
	idx := p.findPosition(owner, lower, upper)
	if idx < 0 || liquidity == nil {
		return emptyWithdrawal(), nil
	}
	pos := &p.positions[owner][idx]
	amount := minInt(liquidity, pos.Liquidity)
	if amount.Sign() <= 0 {
		return emptyWithdrawal(), nil
	}

	p.settle(pos)
	sqrtA, sqrtB, err := pos.sqrtBounds()
	if err != nil {
		return emptyWithdrawal(), fmt.Errorf("%w: %v", ErrInvalidTickRange, err)
	}
	amount0, amount1 := v3math.GetAmountsForLiquidity(p.sqrtPriceX96, sqrtA, sqrtB, amount)

	fees0 := prorate(pos.TokensOwed0, amount, pos.Liquidity)
	fees1 := prorate(pos.TokensOwed1, amount, pos.Liquidity)

	pos.Liquidity.Sub(pos.Liquidity, amount)
	pos.TokensOwed0.Sub(pos.TokensOwed0, fees0)
	pos.TokensOwed1.Sub(pos.TokensOwed1, fees1)

	if pos.Liquidity.Sign() == 0 {
		p.deletePosition(owner, idx)
	}
	p.refreshLiquidity()

	return Withdrawal{Amount0: amount0, Amount1: amount1, Fees0: fees0, Fees1: fees1}, nil
}

func (p *Pool) deletePosition(owner string, idx int) {
	list := p.positions[owner]
	list = append(list[:idx], list[idx+1:]...)
	if len(list) == 0 {
		delete(p.positions, owner)
		return
	}
	p.positions[owner] = list
}

func prorate(owed, part, whole *big.Int) *big.Int {
	if whole.Sign() <= 0 {
		return new(big.Int)
	}
	out := new(big.Int).Mul(owed, part)
	return out.Quo(out, whole)
}

// CollectFees settles and pays out the owed fees of a position.
func (p *Pool) CollectFees(owner string, lower, upper int32) (*big.Int, *big.Int, error) {
	if !p.initialized {
		return new(big.Int), new(big.Int), ErrPoolNotInitialized
	}
	idx := p.findPosition(owner, lower, upper)
	if idx < 0 {
		return new(big.Int), new(big.Int), nil
	}
	pos := &p.positions[owner][idx]
	p.settle(pos)
	fees0, fees1 := copyInt(pos.TokensOwed0), copyInt(pos.TokensOwed1)
	pos.TokensOwed0.SetInt64(0)
	pos.TokensOwed1.SetInt64(0)
	return fees0, fees1, nil
}

// settle credits fees accrued since the last snapshot, bounded by the fee
// ceiling, when the position is in range. The snapshot always advances so
// growth accrued while out of range is never credited later.
func (p *Pool) settle(pos *Position) {
	if pos.Liquidity.Sign() <= 0 {
		return
	}
	if pos.InRange(p.tick) {
		raw0 := v3math.TokensOwed(pos.Liquidity, p.feeGrowth.Token0, pos.FeeGrowthInside0LastX128)
		raw1 := v3math.TokensOwed(pos.Liquidity, p.feeGrowth.Token1, pos.FeeGrowthInside1LastX128)
		pos.TokensOwed0.Add(pos.TokensOwed0, p.capFee(raw0, pos.Amount0))
		pos.TokensOwed1.Add(pos.TokensOwed1, p.capFee(raw1, pos.Amount1))
	}
	pos.FeeGrowthInside0LastX128 = copyInt(p.feeGrowth.Token0)
	pos.FeeGrowthInside1LastX128 = copyInt(p.feeGrowth.Token1)
}

// FeeCeiling is the most a single settlement may credit for a deposit.
func (p *Pool) FeeCeiling(deposit *big.Int) *big.Int {
	if p.cfg.FeeCeilingDivisor < 0 {
		return nil
	}
	ceiling := new(big.Int).Quo(copyInt(deposit), big.NewInt(p.cfg.FeeCeilingDivisor))
	if ceiling.Cmp(big.NewInt(1)) < 0 {
		ceiling.SetInt64(1)
	}
	return ceiling
}

func (p *Pool) capFee(raw, deposit *big.Int) *big.Int {
	ceiling := p.FeeCeiling(deposit)
	if ceiling == nil {
		return raw
	}
	return minInt(raw, ceiling)
}

// ProcessSwap applies a reported swap. The fee side follows v3math.SwapFees
// and the fee is distributed against the event's liquidity, which stands for
// the whole market's active depth; the pool's own liquidity is used only when
// the event carries none.
func (p *Pool) ProcessSwap(swap SwapUpdate) error {
	if !p.initialized {
		return ErrPoolNotInitialized
	}

	amount0 := copyInt(swap.Amount0)
	amount1 := copyInt(swap.Amount1)
	fee0, fee1 := v3math.SwapFees(amount0, amount1, p.cfg.FeeTier)

	active := copyInt(swap.Liquidity)
	if active.Sign() <= 0 {
		active = copyInt(p.liquidity)
	}
	if active.Sign() > 0 {
		p.feeGrowth.Token0 = v3math.AddMod256(p.feeGrowth.Token0, v3math.FeeGrowthDelta(fee0, active))
		p.feeGrowth.Token1 = v3math.AddMod256(p.feeGrowth.Token1, v3math.FeeGrowthDelta(fee1, active))
	}

	for owner := range p.positions {
		list := p.positions[owner]
		for i := range list {
			p.settle(&list[i])
		}
	}

	if swap.SqrtPriceX96 != nil && swap.SqrtPriceX96.Sign() > 0 {
		p.sqrtPriceX96 = copyInt(swap.SqrtPriceX96)
	}
	p.tick = swap.Tick
	p.refreshLiquidity()
	p.priceHistory = append(p.priceHistory, model.PricePoint{Timestamp: swap.Timestamp, Price: p.DisplayPrice()})
	return nil
}

// PositionValue settles owner's positions and values tokens plus owed fees
// in quote units at the current price.
func (p *Pool) PositionValue(owner string) float64 {
	price := p.DisplayPrice()
	var total float64
	list := p.positions[owner]
	for i := range list {
		pos := &list[i]
		p.settle(pos)
		sqrtA, sqrtB, err := pos.sqrtBounds()
		if err != nil {
			continue
		}
		amount0, amount1 := v3math.GetAmountsForLiquidity(p.sqrtPriceX96, sqrtA, sqrtB, pos.Liquidity)
		total += p.QuoteValue(amount0, amount1, price)
		total += p.QuoteValue(pos.TokensOwed0, pos.TokensOwed1, price)
	}
	return total
}

// QuoteValue converts raw token amounts into quote units at a display price.
func (p *Pool) QuoteValue(amount0, amount1 *big.Int, price float64) float64 {
	return toHuman(amount0, p.cfg.Decimals0)*price + toHuman(amount1, p.cfg.Decimals1)
}

func toHuman(raw *big.Int, decimals uint8) float64 {
	if raw == nil {
		return 0
	}
	value := new(big.Float).SetInt(raw)
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	out, _ := value.Quo(value, scale).Float64()
	return out
}
