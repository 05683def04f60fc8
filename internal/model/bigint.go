package model

import (
	"bytes"
	"fmt"
	"math/big"
)

// BigInt is an arbitrary precision integer that decodes from a JSON number
// or a decimal string and encodes as a JSON number.
type BigInt struct {
	big.Int
}

// NewBigInt copies v into a BigInt. A nil v yields zero.
func NewBigInt(v *big.Int) *BigInt {
	out := &BigInt{}
	if v != nil {
		out.Set(v)
	}
	return out
}

// BigIntFromInt64 wraps an int64.
func BigIntFromInt64(v int64) *BigInt {
	return NewBigInt(big.NewInt(v))
}

// Big returns a copy of the value, zero for a nil receiver.
func (b *BigInt) Big() *big.Int {
	if b == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(&b.Int)
}

func (b *BigInt) MarshalJSON() ([]byte, error) {
	if b == nil {
		return []byte("null"), nil
	}
	return []byte(b.Int.String()), nil
}

func (b *BigInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	data = bytes.Trim(data, `"`)
	if len(data) == 0 {
		return nil
	}
	if _, ok := b.Int.SetString(string(data), 10); !ok {
		return fmt.Errorf("invalid integer: %s", data)
	}
	return nil
}
