package subgraph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/math"
)

// BigInt decodes the BigInt scalar, which the subgraphs serialize as decimal string.
// Plain JSON numbers and null are accepted too, null decodes to zero.
type BigInt struct {
	val *big.Int
}

func (b *BigInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		b.val = nil
		return nil
	}

	str := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
	}

	val, ok := math.ParseBig256(str)
	if !ok {
		return fmt.Errorf("invalid BigInt value: %v", string(data))
	}
	b.val = val
	return nil
}

// Big returns a copy of the value, zero if unset.
func (b BigInt) Big() *big.Int {
	if b.val == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(b.val)
}

// Int64 returns the value as int64, values outside the int64 range are truncated.
func (b BigInt) Int64() int64 {
	if b.val == nil {
		return 0
	}
	return b.val.Int64()
}

type entityRef struct {
	ID string `json:"id"`
}
