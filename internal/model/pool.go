package model

// TokenMeta describes an ERC20 token.
type TokenMeta struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol,omitempty"`
	Name     string `json:"name,omitempty"`
	Decimals uint8  `json:"decimals"`
}

// PoolMeta is the static configuration of a V3 pool plus its state at a block.
type PoolMeta struct {
	ChainID      uint64    `json:"chainId"`
	Address      string    `json:"address"`
	Token0       TokenMeta `json:"token0"`
	Token1       TokenMeta `json:"token1"`
	Fee          uint32    `json:"fee"`
	TickSpacing  int32     `json:"tickSpacing"`
	Block        uint64    `json:"block,omitempty"`
	SqrtPriceX96 string    `json:"sqrtPriceX96,omitempty"`
	Tick         *int32    `json:"tick,omitempty"`
	Liquidity    string    `json:"liquidity,omitempty"`
}
