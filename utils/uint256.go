package utils

import (
	"math/big"

	"github.com/holiman/uint256"
)

var (
	MaxUint32  = maxUint(32)
	MaxUint64  = maxUint(64)
	MaxUint128 = maxUint(128)
	MaxUint256 = maxUint(256)
)

func maxUint(bits uint) *big.Int {
	max := new(big.Int).Lsh(big.NewInt(1), bits)
	return max.Sub(max, big.NewInt(1))
}

// IsUint256 reports whether the decimal string s is a valid unsigned 256 bit integer.
func IsUint256(s string) bool {
	_, err := uint256.FromDecimal(s)
	return err == nil
}

// SlotOffset returns the 32 byte storage slot at base + offset.
func SlotOffset(base [32]byte, offset uint64) [32]byte {
	slot := new(uint256.Int).SetBytes32(base[:])
	slot.AddUint64(slot, offset)
	return slot.Bytes32()
}

// BigOrZero returns val, or a new zero big.Int if val is nil.
func BigOrZero(val *big.Int) *big.Int {
	if val == nil {
		return new(big.Int)
	}
	return val
}

// SubClamped returns a - b, or zero if the result would be negative.
func SubClamped(a, b *big.Int) *big.Int {
	res := new(big.Int).Sub(BigOrZero(a), BigOrZero(b))
	if res.Sign() < 0 {
		return res.SetUint64(0)
	}
	return res
}
