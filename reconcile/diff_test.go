package reconcile

import (
	"math"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/horizon-monitor/types"
)

type testPayload struct {
	ID      string   `json:"id"`
	Tokens  *big.Int `json:"tokens"`
	Cut     uint32   `json:"cut"`
	Tags    []string `json:"tags"`
	Hidden  string   `json:"-"`
	private string
}

type testRecordPayload struct {
	Attrs map[string]string `json:"attrs"`
}

func TestDeepEqual(t *testing.T) {
	tests := []struct {
		name     string
		a        any
		b        any
		expected bool
	}{
		{name: "both nil", a: nil, b: nil, expected: true},
		{name: "nil and value", a: nil, b: "x", expected: false},
		{name: "big ints by value", a: big.NewInt(42), b: big.NewInt(42), expected: true},
		{name: "big int and native int", a: big.NewInt(42), b: uint64(42), expected: true},
		{name: "big int differs", a: big.NewInt(42), b: big.NewInt(43), expected: false},
		{name: "strings", a: "abc", b: "abc", expected: true},
		{name: "string and number", a: "42", b: 42, expected: false},
		{name: "records ignore key order", a: map[string]any{"a": 1, "b": 2}, b: map[string]any{"b": 2, "a": 1}, expected: true},
		{name: "records differ in key set", a: map[string]any{"a": 1}, b: map[string]any{"a": 1, "b": 2}, expected: false},
		{name: "sequences element wise", a: []int{1, 2, 3}, b: []int64{1, 2, 3}, expected: true},
		{name: "sequences differ in length", a: []int{1, 2}, b: []int{1, 2, 3}, expected: false},
		{name: "sequences differ in order", a: []int{1, 2}, b: []int{2, 1}, expected: false},
		{name: "nil and empty sequence", a: []string(nil), b: []string{}, expected: true},
		{name: "nil and empty record", a: map[string]any(nil), b: map[string]any{}, expected: true},
		{name: "nil and empty nested record", a: testRecordPayload{Attrs: nil}, b: testRecordPayload{Attrs: map[string]string{}}, expected: true},
		{name: "nil record and nil value", a: map[string]any{"a": map[string]any(nil)}, b: map[string]any{"a": nil}, expected: false},
		{name: "nan leaves", a: map[string]any{"x": math.NaN()}, b: map[string]any{"x": math.NaN()}, expected: true},
		{name: "nan and number", a: math.NaN(), b: 1.5, expected: false},
		{name: "bytes and hex string", a: []byte{0xde, 0xad}, b: "0xdead", expected: true},
		{
			name:     "address and lower case string",
			a:        common.HexToAddress("0x00669A4CF01450B64E8A2A20E9b1FCB71E61eF03"),
			b:        "0x00669a4cf01450b64e8a2a20e9b1fcb71e61ef03",
			expected: true,
		},
		{
			name:     "struct and record",
			a:        &testPayload{ID: "a", Tokens: big.NewInt(5), Cut: 7, Hidden: "x", private: "y"},
			b:        map[string]any{"id": "a", "tokens": big.NewInt(5), "cut": big.NewInt(7), "tags": []string{}},
			expected: true,
		},
		{
			name:     "nested records",
			a:        map[string]any{"inner": map[string]any{"v": big.NewInt(1)}},
			b:        map[string]any{"inner": map[string]any{"v": big.NewInt(2)}},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DeepEqual(tt.a, tt.b))
			assert.Equal(t, tt.expected, DeepEqual(tt.b, tt.a), "DeepEqual must be symmetric")
		})
	}
}

func TestFindMismatchesShallow(t *testing.T) {
	a := map[string]any{
		"same":   big.NewInt(1),
		"diff":   big.NewInt(2),
		"nested": map[string]any{"x": 1, "y": 2},
		"onlyA":  "a",
	}
	b := map[string]any{
		"same":   big.NewInt(1),
		"diff":   big.NewInt(3),
		"nested": map[string]any{"x": 1, "y": 5},
		"onlyB":  nil,
	}

	mismatches := FindMismatches(a, b)
	require.Len(t, mismatches, 4)

	keys := make([]string, len(mismatches))
	for i, m := range mismatches {
		keys[i] = m.Key
	}
	assert.Equal(t, []string{"diff", "nested", "onlyA", "onlyB"}, keys)

	// nested values are carried whole, not drilled into
	assert.Equal(t, map[string]any{"x": big.NewInt(1), "y": big.NewInt(2)}, mismatches[1].RPCValue)
	assert.Equal(t, map[string]any{"x": big.NewInt(1), "y": big.NewInt(5)}, mismatches[1].SubgraphValue)

	// a key on one side only is reported even if the other side would be nil
	assert.Equal(t, "a", mismatches[2].RPCValue)
	assert.Nil(t, mismatches[2].SubgraphValue)
	assert.Nil(t, mismatches[3].RPCValue)
	assert.Nil(t, mismatches[3].SubgraphValue)
}

func TestFindMismatchesCommutative(t *testing.T) {
	a := &types.GraphNetwork{MaxThawingPeriod: big.NewInt(2419200)}
	b := &types.GraphNetwork{MaxThawingPeriod: big.NewInt(1209600)}

	forward := FindMismatches(a, b)
	backward := FindMismatches(b, a)
	require.Len(t, forward, 1)
	require.Len(t, backward, 1)

	assert.Equal(t, "maxThawingPeriod", forward[0].Key)
	assert.Equal(t, forward[0].Key, backward[0].Key)
	assert.Equal(t, forward[0].RPCValue, backward[0].SubgraphValue)
	assert.Equal(t, forward[0].SubgraphValue, backward[0].RPCValue)
}

func TestFindMismatchesEqualRecords(t *testing.T) {
	a := &testPayload{ID: "a", Tokens: big.NewInt(5), Tags: []string{}}
	b := &testPayload{ID: "a", Tokens: big.NewInt(5)}

	assert.Empty(t, FindMismatches(a, b))
	assert.True(t, DeepEqual(a, b))
}

func TestFindMismatchesReflexive(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{"nan leaf", map[string]any{"x": math.NaN()}},
		{"nan root", math.NaN()},
		{"nil record field", testRecordPayload{}},
		{"payload", &testPayload{ID: "a", Tokens: big.NewInt(5), Tags: []string{"x"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, FindMismatches(tt.value, tt.value))
			assert.True(t, DeepEqual(tt.value, tt.value))
		})
	}
}

func TestFindMismatchesRoot(t *testing.T) {
	mismatches := FindMismatches(big.NewInt(1), big.NewInt(2))
	require.Len(t, mismatches, 1)
	assert.Equal(t, RootKey, mismatches[0].Key)
	assert.Equal(t, big.NewInt(1), mismatches[0].RPCValue)
	assert.Equal(t, big.NewInt(2), mismatches[0].SubgraphValue)

	assert.Empty(t, FindMismatches("x", "x"))

	mismatches = FindMismatches(map[string]any{"a": 1}, []any{1})
	require.Len(t, mismatches, 1)
	assert.Equal(t, RootKey, mismatches[0].Key)
}

func TestToTree(t *testing.T) {
	tree := ToTree(&testPayload{ID: "a", Tokens: big.NewInt(5), Cut: 7, Tags: []string{"x"}})
	assert.Equal(t, map[string]any{
		"id":     "a",
		"tokens": big.NewInt(5),
		"cut":    big.NewInt(7),
		"tags":   []any{"x"},
	}, tree)

	original := big.NewInt(9)
	copied := ToTree(original).(*big.Int)
	copied.SetInt64(10)
	assert.Equal(t, int64(9), original.Int64(), "ToTree must not alias big.Int values")
}
