package resource

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/big"

	"github.com/crmarques/quayconf/faults"
)

// Normalize converts value into the canonical JSON value space used for
// comparisons: nil, bool, string, int64, float64, []any and map[string]any.
// Integral numbers always become int64 so that a decoded `5` and a caller
// supplied `5` compare equal.
func Normalize(value Value) (Value, error) {
	return normalizeValue(value)
}

func normalizeValue(value any) (any, error) {
	switch typed := value.(type) {
	case nil, bool, string:
		return typed, nil
	case int:
		return int64(typed), nil
	case int32:
		return int64(typed), nil
	case int64:
		return typed, nil
	case uint:
		return normalizeUint(uint64(typed))
	case uint32:
		return int64(typed), nil
	case uint64:
		return normalizeUint(typed)
	case float32:
		return normalizeFloat(float64(typed))
	case float64:
		return normalizeFloat(typed)
	case json.Number:
		return normalizeJSONNumber(typed)
	case []any:
		normalized := make([]any, len(typed))
		for idx, item := range typed {
			itemValue, err := normalizeValue(item)
			if err != nil {
				return nil, err
			}
			normalized[idx] = itemValue
		}
		return normalized, nil
	case []string:
		normalized := make([]any, len(typed))
		for idx, item := range typed {
			normalized[idx] = item
		}
		return normalized, nil
	case map[string]any:
		normalized := make(map[string]any, len(typed))
		for key, item := range typed {
			itemValue, err := normalizeValue(item)
			if err != nil {
				return nil, err
			}
			normalized[key] = itemValue
		}
		return normalized, nil
	case *Object:
		if typed == nil {
			return nil, nil
		}
		return normalizeValue(typed.Fields())
	}

	return normalizeThroughJSON(value)
}

// normalizeThroughJSON handles structs, typed maps and typed slices by
// round-tripping them through their JSON encoding.
func normalizeThroughJSON(value any) (any, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, faults.Validation(fmt.Sprintf("unsupported payload type %T", value), err)
	}

	decoder := json.NewDecoder(bytes.NewReader(encoded))
	decoder.UseNumber()

	var decoded any
	if err := decoder.Decode(&decoded); err != nil {
		return nil, faults.Validation(fmt.Sprintf("unsupported payload type %T", value), err)
	}
	return normalizeValue(decoded)
}

func normalizeFloat(value float64) (any, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, faults.Validation("payload contains non-finite float", nil)
	}
	if value == math.Trunc(value) && math.Abs(value) < 1<<53 {
		return int64(value), nil
	}
	return value, nil
}

func normalizeUint(value uint64) (int64, error) {
	if value > math.MaxInt64 {
		return 0, faults.Validation("payload contains integer out of range", nil)
	}
	return int64(value), nil
}

func normalizeJSONNumber(value json.Number) (any, error) {
	if asInt, err := value.Int64(); err == nil {
		return asInt, nil
	}
	if asBig, ok := new(big.Int).SetString(value.String(), 10); ok {
		if asBig.IsInt64() {
			return asBig.Int64(), nil
		}
		return nil, faults.Validation("payload contains integer out of range", nil)
	}

	asFloat, err := value.Float64()
	if err != nil {
		return nil, faults.Validation("payload contains invalid number", err)
	}
	return normalizeFloat(asFloat)
}
