package types

import (
	"encoding/json"
	"math/big"

	"github.com/shopspring/decimal"
)

const NotApplicable = "N/A"

var hundred = big.NewInt(100)

// Percentage is a share of a total, rounded to two decimals.
// An invalid Percentage means the metric is not applicable (no data or zero total).
type Percentage struct {
	Value decimal.Decimal
	Valid bool
}

// NewPercentage computes part / total * 100 without going through floating point.
// Returns a not applicable Percentage if total is nil or not positive.
func NewPercentage(part, total *big.Int) Percentage {
	if total == nil || total.Sign() <= 0 {
		return Percentage{}
	}
	if part == nil {
		part = new(big.Int)
	}

	scaled := new(big.Int).Mul(part, hundred)
	value := decimal.NewFromBigInt(scaled, 0).DivRound(decimal.NewFromBigInt(total, 0), 2)

	return Percentage{
		Value: value,
		Valid: true,
	}
}

// ZeroPercentage is a valid 0.00%.
func ZeroPercentage() Percentage {
	return Percentage{
		Value: decimal.Zero,
		Valid: true,
	}
}

func (p Percentage) String() string {
	if !p.Valid {
		return NotApplicable
	}
	return p.Value.StringFixed(2) + "%"
}

// Float64 returns the percentage as float for metric export, 0 if not applicable.
func (p Percentage) Float64() float64 {
	if !p.Valid {
		return 0
	}
	return p.Value.InexactFloat64()
}

func (p Percentage) MarshalJSON() ([]byte, error) {
	if !p.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(p.Value.StringFixed(2))
}
