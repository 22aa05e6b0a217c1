// Package reconcile compares the payloads returned by independent data sources.
//
// Values are first normalized into a tree of map[string]any, []any, *big.Int and
// scalar leaves so that payloads decoded from different wire formats compare equal
// when they carry the same facts.
package reconcile

import (
	"encoding"
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/ethpandaops/horizon-monitor/types"
)

// RootKey is the mismatch key used when the compared values are not records.
const RootKey = "root"

var (
	bigIntType        = reflect.TypeOf(big.Int{})
	byteType          = reflect.TypeOf(byte(0))
	textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()

	treeCompareOptions = cmp.Options{
		cmp.Comparer(func(a, b *big.Int) bool {
			if a == nil || b == nil {
				return a == nil && b == nil
			}
			return a.Cmp(b) == 0
		}),
		cmpopts.EquateEmpty(),
		cmpopts.EquateNaNs(),
	}
)

// DeepEqual reports whether a and b carry the same facts.
// Arbitrary precision integers compare by numeric value, records compare key by key
// regardless of order, sequences compare element by element. Nil maps and slices equal empty ones
// and NaN equals NaN.
func DeepEqual(a, b any) bool {
	return cmp.Equal(ToTree(a), ToTree(b), treeCompareOptions)
}

// FindMismatches lists the top-level fields on which a and b disagree.
// Records are compared shallowly over the union of their keys, a key present on one side only
// is always reported. Nested values are carried whole. Non-record inputs that differ yield a
// single mismatch keyed "root". The result is sorted by key.
func FindMismatches(a, b any) []types.Mismatch {
	treeA := ToTree(a)
	treeB := ToTree(b)

	recordA, isRecordA := treeA.(map[string]any)
	recordB, isRecordB := treeB.(map[string]any)
	if !isRecordA || !isRecordB {
		if cmp.Equal(treeA, treeB, treeCompareOptions) {
			return nil
		}
		return []types.Mismatch{{
			Key:           RootKey,
			RPCValue:      treeA,
			SubgraphValue: treeB,
		}}
	}

	keys := make([]string, 0, len(recordA)+len(recordB))
	for key := range recordA {
		keys = append(keys, key)
	}
	for key := range recordB {
		if _, ok := recordA[key]; !ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	mismatches := []types.Mismatch{}
	for _, key := range keys {
		valA, okA := recordA[key]
		valB, okB := recordB[key]
		if okA && okB && cmp.Equal(valA, valB, treeCompareOptions) {
			continue
		}
		mismatches = append(mismatches, types.Mismatch{
			Key:           key,
			RPCValue:      valA,
			SubgraphValue: valB,
		})
	}

	if len(mismatches) == 0 {
		return nil
	}
	return mismatches
}

// ToTree normalizes v into a comparable tree.
func ToTree(v any) any {
	if v == nil {
		return nil
	}
	switch val := v.(type) {
	case *big.Int:
		if val == nil {
			return nil
		}
		return new(big.Int).Set(val)
	case big.Int:
		return new(big.Int).Set(&val)
	case json.Number:
		if num, ok := new(big.Int).SetString(val.String(), 10); ok {
			return num
		}
		return val.String()
	}
	return toTree(reflect.ValueOf(v))
}

func toTree(val reflect.Value) any {
	if !val.IsValid() {
		return nil
	}

	switch val.Kind() {
	case reflect.Pointer, reflect.Interface:
		if val.IsNil() {
			return nil
		}
		if val.Kind() == reflect.Pointer && val.Elem().Type() == bigIntType {
			return new(big.Int).Set(val.Interface().(*big.Int))
		}
		return toTree(val.Elem())
	case reflect.Struct:
		if val.Type() == bigIntType {
			bigVal := val.Interface().(big.Int)
			return new(big.Int).Set(&bigVal)
		}
		if val.Type().Implements(textMarshalerType) {
			if text, err := val.Interface().(encoding.TextMarshaler).MarshalText(); err == nil {
				return string(text)
			}
		}
		return structToTree(val)
	case reflect.Map:
		if val.IsNil() {
			return map[string]any{}
		}
		record := make(map[string]any, val.Len())
		iter := val.MapRange()
		for iter.Next() {
			record[mapKeyString(iter.Key())] = toTree(iter.Value())
		}
		return record
	case reflect.Slice:
		if val.IsNil() {
			return []any{}
		}
		fallthrough
	case reflect.Array:
		if val.Type().Elem() == byteType {
			bytes := make([]byte, val.Len())
			reflect.Copy(reflect.ValueOf(bytes), val)
			return hexutil.Encode(bytes)
		}
		items := make([]any, val.Len())
		for i := 0; i < val.Len(); i++ {
			items[i] = toTree(val.Index(i))
		}
		return items
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return big.NewInt(val.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return new(big.Int).SetUint64(val.Uint())
	case reflect.Float32, reflect.Float64:
		return val.Float()
	case reflect.String:
		return val.String()
	case reflect.Bool:
		return val.Bool()
	default:
		return val.Interface()
	}
}

func structToTree(val reflect.Value) map[string]any {
	record := map[string]any{}
	valType := val.Type()
	for i := 0; i < valType.NumField(); i++ {
		field := valType.Field(i)
		if !field.IsExported() {
			continue
		}

		name := field.Name
		if tag, ok := field.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}

		fieldVal := val.Field(i)
		if field.Anonymous && fieldVal.Kind() == reflect.Struct {
			for key, embedded := range structToTree(fieldVal) {
				if _, exists := record[key]; !exists {
					record[key] = embedded
				}
			}
			continue
		}

		record[name] = toTree(fieldVal)
	}
	return record
}

func mapKeyString(key reflect.Value) string {
	if key.Kind() == reflect.String {
		return key.String()
	}
	return fmt.Sprint(key.Interface())
}
